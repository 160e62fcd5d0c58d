package repository

import (
	"context"
	"database/sql"
	"time"

	"lamp_control/internal/models"
)

type Authorization interface {
	Create(ctx context.Context, username, hash string) (int, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// StateRepo stores the last reported state per device id.
type StateRepo interface {
	Save(ctx context.Context, deviceID string, s models.DeviceState) error
	Load(ctx context.Context, deviceID string) (models.DeviceState, bool, error)
	List(ctx context.Context) ([]models.DeviceRecord, error)
}

// EventFilter narrows List results; zero values mean "no bound".
type EventFilter struct {
	From     time.Time
	To       time.Time
	Type     string
	DeviceID string
}

type EventRepo interface {
	Append(ctx context.Context, e models.DeviceEvent) error
	List(ctx context.Context, f EventFilter) ([]models.DeviceEvent, error)
}

type Repository struct {
	StateRepo StateRepo
	EventRepo EventRepo
	Auth      Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		StateRepo: NewStateSQLite(db),
		EventRepo: NewEventSQLite(db),
		Auth:      NewOperatorSQLite(db),
	}
}
