package service

import (
	"context"
	"errors"
	"strings"

	"lamp_control/internal/models"
	"lamp_control/internal/repository"
)

var ErrEmptyDeviceID = errors.New("device id is required")

type DeviceService struct {
	stateRepo repository.StateRepo
}

func NewDeviceService(stateRepo repository.StateRepo) *DeviceService {
	return &DeviceService{stateRepo: stateRepo}
}

// RecordState persists what the device reported. Values are stored as received;
// the firmware is the authority on its own state.
func (s *DeviceService) RecordState(ctx context.Context, deviceID string, st models.DeviceState) error {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return ErrEmptyDeviceID
	}
	return s.stateRepo.Save(ctx, deviceID, st)
}

func (s *DeviceService) LastState(ctx context.Context, deviceID string) (models.DeviceState, bool, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return models.DeviceState{}, false, ErrEmptyDeviceID
	}
	return s.stateRepo.Load(ctx, deviceID)
}

func (s *DeviceService) States(ctx context.Context) ([]models.DeviceRecord, error) {
	return s.stateRepo.List(ctx)
}
