package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/vestibule/vestibule/internal/model"
)

// SQLiteRepository is a single-file credential store for local runs.
type SQLiteRepository struct {
	db *sql.DB
}

var _ UserStore = (*SQLiteRepository)(nil)

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// OpenSQLite opens the database at path and applies bundled migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepository, error) {
	db, err := openSQLiteDB(ctx, path)
	if err != nil {
		return nil, err
	}

	migrator, err := NewSQLiteMigrator(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := migrator.Up(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLiteRepository{db: db}, nil
}

func openSQLiteDB(ctx context.Context, path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := filepath.Clean(path) +
		"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return db, nil
}

// Ping checks database connectivity.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database handle.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// CreateUser inserts a new user.
func (r *SQLiteRepository) CreateUser(ctx context.Context, user *model.User) error {
	createdAt := time.Now().UTC().Truncate(time.Millisecond)

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		user.Username,
		user.Email,
		user.PasswordHash,
		toMillis(createdAt),
	)
	if err != nil {
		if dupErr := sqliteUniqueViolation(err); dupErr != nil {
			return dupErr
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read inserted user id: %w", err)
	}

	user.ID = id
	user.CreatedAt = createdAt
	return nil
}

// FindUserByEmail retrieves a user by their email address.
func (r *SQLiteRepository) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := r.findOne(ctx, `WHERE email = ?`, email)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

// FindUserByUsername retrieves a user by their username.
func (r *SQLiteRepository) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	user, err := r.findOne(ctx, `WHERE username = ?`, username)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return user, nil
}

func (r *SQLiteRepository) findOne(ctx context.Context, where string, arg any) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users `+where, arg)

	var (
		user      model.User
		createdAt int64
	)
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	user.CreatedAt = fromMillis(createdAt)

	return &user, nil
}

// sqliteUniqueViolation maps a UNIQUE constraint failure on users to the
// matching sentinel error, or returns nil for any other error.
func sqliteUniqueViolation(err error) error {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return nil
	}

	msg := sqliteErr.Error()
	switch {
	case strings.Contains(msg, "users.username"):
		return ErrUsernameExists
	case strings.Contains(msg, "users.email"):
		return ErrEmailExists
	default:
		return nil
	}
}
