package station

import (
	"context"
)

// Service exposes the station/port directory to the booking core.
// Station and port CRUD live outside this service.
type Service interface {
	GetByID(ctx context.Context, id string) (*Station, error)
	GetPort(ctx context.Context, id string) (*Port, error)
	// GetPortOfStation returns the port only if it belongs to the station.
	GetPortOfStation(ctx context.Context, stationID, portID string) (*Port, error)
	ListPorts(ctx context.Context, stationID string) ([]*Port, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) GetByID(ctx context.Context, id string) (*Station, error) {
	st, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := st.OperatingHours.Validate(); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *service) GetPort(ctx context.Context, id string) (*Port, error) {
	return s.repo.GetPort(ctx, id)
}

func (s *service) GetPortOfStation(ctx context.Context, stationID, portID string) (*Port, error) {
	p, err := s.repo.GetPort(ctx, portID)
	if err != nil {
		return nil, err
	}
	if p.StationID != stationID {
		return nil, ErrPortNotFound
	}
	return p, nil
}

func (s *service) ListPorts(ctx context.Context, stationID string) ([]*Port, error) {
	if _, err := s.repo.GetByID(ctx, stationID); err != nil {
		return nil, err
	}
	return s.repo.ListPorts(ctx, stationID)
}
