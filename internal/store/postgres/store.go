// Package postgres is a shelfauth.UserProvider backed by PostgreSQL through
// the pgx database/sql driver. Schema changes are applied with goose.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/shelfauth"
	"github.com/MrEthical07/shelfauth/internal/store/postgres/migrations"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const uniqueViolation = "23505"

type Store struct {
	db *sql.DB
}

var _ shelfauth.UserProvider = (*Store)(nil)

// NewStore connects to dsn and runs pending migrations.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	s := &Store{db: db}
	if err := s.RunMigrations(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return s, nil
}

func (s *Store) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	return goose.UpContext(ctx, s.db, ".")
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const userColumns = `id, username, phone, email, password_hash, avatar_url, bio, role, status, deleted, created_at, updated_at`

func (s *Store) GetUserByIdentifier(ctx context.Context, phoneOrEmail string) (shelfauth.UserRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE phone = $1 OR email = $1 LIMIT 1`,
		phoneOrEmail,
	)
	return scanUser(row)
}

func (s *Store) GetUserByID(ctx context.Context, userID string) (shelfauth.UserRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	return scanUser(row)
}

func (s *Store) CreateUser(ctx context.Context, in shelfauth.CreateUserInput) (shelfauth.UserRecord, error) {
	var createdAt, updatedAt time.Time
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO users (id, username, phone, email, password_hash, role, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at, updated_at`,
		in.UserID, in.Username, nullString(in.Phone), nullString(in.Email), in.PasswordHash,
		int16(in.Role), int16(in.Status),
	).Scan(&createdAt, &updatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return shelfauth.UserRecord{}, shelfauth.ErrProviderDuplicateIdentifier
		}
		return shelfauth.UserRecord{}, fmt.Errorf("error performing sql request: %w", err)
	}

	return shelfauth.UserRecord{
		UserID:       in.UserID,
		Username:     in.Username,
		Phone:        in.Phone,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		Status:       in.Status,
		CreatedAt:    createdAt.UTC(),
		UpdatedAt:    updatedAt.UTC(),
	}, nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID, newHash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $1, updated_at = now() WHERE id = $2`,
		newHash, userID,
	)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
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
		u            shelfauth.UserRecord
		phone, email sql.NullString
		role, status int16
	)
	err := row.Scan(&u.UserID, &u.Username, &phone, &email, &u.PasswordHash, &u.AvatarURL, &u.Bio,
		&role, &status, &u.Deleted, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return shelfauth.UserRecord{}, shelfauth.ErrUserNotFound
		}
		return shelfauth.UserRecord{}, fmt.Errorf("error performing sql request: %w", err)
	}
	u.Phone = phone.String
	u.Email = email.String
	u.Role = uint8(role)
	u.Status = shelfauth.AccountStatus(status)
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
