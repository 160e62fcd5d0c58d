package service

import (
	"context"

	"lamp_control/internal/models"
	"lamp_control/internal/repository"
)

type Authorization interface {
	SignUp(ctx context.Context, username, password string) (int, error)
	GenerateToken(ctx context.Context, username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Devices keeps the last state reported by every device.
type Devices interface {
	RecordState(ctx context.Context, deviceID string, st models.DeviceState) error
	LastState(ctx context.Context, deviceID string) (models.DeviceState, bool, error)
	States(ctx context.Context) ([]models.DeviceRecord, error)
}

// EventLog exposes the append-only relay history with filtering access.
type EventLog interface {
	Record(ctx context.Context, e models.DeviceEvent) error
	List(ctx context.Context, f LogFilter) ([]models.DeviceEvent, error)
}

// Service aggregates all sub-services.
type Service struct {
	Devices
	EventLog
	Authorization
}

func NewService(repos *repository.Repository, auth AuthOptions) *Service {
	return &Service{
		Devices:       NewDeviceService(repos.StateRepo),
		EventLog:      NewEventLogService(repos.EventRepo),
		Authorization: NewAuthService(repos.Auth, auth),
	}
}
