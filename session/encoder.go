package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// CurrentSchemaVersion is the first byte of every encoded Record.
const CurrentSchemaVersion byte = 1

// ErrRecordTooLarge is returned by Encode when a field exceeds its length prefix.
var ErrRecordTooLarge = errors.New("record field too large to cache")

// Encode serialises r into the current binary schema.
func Encode(r *Record) ([]byte, error) {
	if r == nil {
		return nil, errors.New("nil record")
	}

	var buf bytes.Buffer
	buf.WriteByte(CurrentSchemaVersion)

	for _, field := range []struct {
		name  string
		value string
	}{
		{"userID", r.UserID},
		{"username", r.Username},
		{"phone", r.Phone},
		{"email", r.Email},
	} {
		if err := writeShort(&buf, field.name, field.value); err != nil {
			return nil, err
		}
	}
	if err := writeLong(&buf, "avatarURL", r.AvatarURL); err != nil {
		return nil, err
	}
	if err := writeLong(&buf, "bio", r.Bio); err != nil {
		return nil, err
	}

	buf.WriteByte(r.Role)
	buf.WriteByte(r.Status)

	if err := binary.Write(&buf, binary.BigEndian, r.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, r.UpdatedAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses data written by Encode. Trailing bytes are rejected.
func Decode(data []byte) (*Record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != CurrentSchemaVersion {
		return nil, fmt.Errorf("unsupported record schema version %d", version)
	}

	r := &Record{}
	for _, dst := range []*string{&r.UserID, &r.Username, &r.Phone, &r.Email} {
		if *dst, err = readShort(reader); err != nil {
			return nil, err
		}
	}
	if r.AvatarURL, err = readLong(reader); err != nil {
		return nil, err
	}
	if r.Bio, err = readLong(reader); err != nil {
		return nil, err
	}

	if r.Role, err = reader.ReadByte(); err != nil {
		return nil, err
	}
	if r.Status, err = reader.ReadByte(); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &r.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &r.UpdatedAt); err != nil {
		return nil, err
	}

	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes after record")
	}
	if r.UserID == "" {
		return nil, errors.New("record without user id")
	}

	return r, nil
}

func writeShort(buf *bytes.Buffer, name, value string) error {
	if len(value) > math.MaxUint8 {
		return fmt.Errorf("%w: %s", ErrRecordTooLarge, name)
	}
	buf.WriteByte(byte(len(value)))
	buf.WriteString(value)
	return nil
}

func writeLong(buf *bytes.Buffer, name, value string) error {
	if len(value) > math.MaxUint16 {
		return fmt.Errorf("%w: %s", ErrRecordTooLarge, name)
	}
	_ = binary.Write(buf, binary.BigEndian, uint16(len(value)))
	buf.WriteString(value)
	return nil
}

func readShort(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	return readN(r, int(n))
}

func readLong(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	return readN(r, int(n))
}

func readN(r *bytes.Reader, n int) (string, error) {
	if n > r.Len() {
		return "", io.ErrUnexpectedEOF
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
