// Package sqlite is a shelfauth.UserProvider backed by an embedded SQLite
// database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/shelfauth"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type Store struct {
	db  *sql.DB
	dsn string
	now func() time.Time
}

var _ shelfauth.UserProvider = (*Store)(nil)

// NewStore opens dsn and applies pending migrations. ":memory:" is
// supported; the pool is pinned to one connection so every query sees the
// same database.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), `PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db, dsn: dsn, now: time.Now}
	if err := s.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrations: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const userColumns = `id, username, phone, email, password_hash, avatar_url, bio, role, status, deleted, created_at, updated_at`

func (s *Store) GetUserByIdentifier(ctx context.Context, phoneOrEmail string) (shelfauth.UserRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE phone = ? OR email = ? LIMIT 1`,
		phoneOrEmail, phoneOrEmail,
	)
	return scanUser(row)
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (shelfauth.UserRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, userID)
	return scanUser(row)
}

func (s *Store) CreateUser(ctx context.Context, in shelfauth.CreateUserInput) (shelfauth.UserRecord, error) {
	now := s.now().UTC().Truncate(time.Millisecond)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, phone, email, password_hash, role, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.UserID, in.Username, mapStringNull(in.Phone), mapStringNull(in.Email), in.PasswordHash,
		in.Role, uint8(in.Status), now.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return shelfauth.UserRecord{}, shelfauth.ErrProviderDuplicateIdentifier
		}
		return shelfauth.UserRecord{}, err
	}

	return shelfauth.UserRecord{
		UserID:       in.UserID,
		Username:     in.Username,
		Phone:        in.Phone,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		Status:       in.Status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	return s.update(ctx, `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`, newHash, userID)
}

func (s *Store) update(ctx context.Context, query string, value any, userID string) error {
	res, err := s.db.ExecContext(ctx, query, value, s.now().UTC().UnixMilli(), userID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return shelfauth.ErrUserNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (shelfauth.UserRecord, error) {
	var (
		u                    shelfauth.UserRecord
		phone, email         sql.NullString
		status               uint8
		createdAt, updatedAt int64
	)
	err := row.Scan(&u.UserID, &u.Username, &phone, &email, &u.PasswordHash, &u.AvatarURL, &u.Bio,
		&u.Role, &status, &u.Deleted, &createdAt, &updatedAt)
	if err != nil {
		return shelfauth.UserRecord{}, mapNotFound(err)
	}
	u.Phone = mapNullString(phone)
	u.Email = mapNullString(email)
	u.Status = shelfauth.AccountStatus(status)
	u.CreatedAt = time.UnixMilli(createdAt).UTC()
	u.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return u, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return shelfauth.ErrUserNotFound
	}
	return err
}

func mapNullString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func mapStringNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
