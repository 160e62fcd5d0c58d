package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"lamp_control/internal/models"
)

// ErrUsernameTaken is returned by Create when the users table already holds the name.
var ErrUsernameTaken = errors.New("username already registered")

// OperatorSQLite stores the accounts allowed to open the admin log stream.
type OperatorSQLite struct {
	db *sql.DB
}

func NewOperatorSQLite(db *sql.DB) *OperatorSQLite {
	return &OperatorSQLite{db: db}
}

var _ Authorization = (*OperatorSQLite)(nil)

const (
	insertOperatorSQL = `
		INSERT INTO users (username, password_hash) VALUES (?, ?)
	`

	selectOperatorSQL = `
		SELECT id, username, password_hash FROM users WHERE username=?
	`
)

// Create inserts an operator and returns the new row id.
func (r *OperatorSQLite) Create(ctx context.Context, username, passwordHash string) (int, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return 0, errors.New("empty username")
	}

	res, err := r.db.ExecContext(ctx, insertOperatorSQL, username, passwordHash)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return 0, fmt.Errorf("operator %q: %w", username, ErrUsernameTaken)
		}
		return 0, fmt.Errorf("insert operator %q: %w", username, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("operator %q id: %w", username, err)
	}
	return int(id), nil
}

// GetByUsername returns (nil, nil) when no operator has that name.
func (r *OperatorSQLite) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	row := r.db.QueryRowContext(ctx, selectOperatorSQL, strings.TrimSpace(username))
	switch err := row.Scan(&u.ID, &u.Username, &u.PasswordHash); {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("select operator %q: %w", username, err)
	}
	return &u, nil
}
