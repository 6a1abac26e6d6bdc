package booking

import (
	"context"
	"slices"
	"time"

	"github.com/nekogravitycat/port-booking-backend/internal/station"
)

type PortAvailability struct {
	Port  *station.Port
	Slots []Slot
}

type Availability struct {
	StationID string
	Date      string
	Timezone  string
	Ports     []PortAvailability
}

// AvailabilityService answers read-only slot queries. It never writes.
type AvailabilityService interface {
	// GetAvailability lists slots for every port of the station on date
	// (YYYY-MM-DD in the station's timezone), or only portID when set.
	GetAvailability(ctx context.Context, stationID, date, portID string) (*Availability, error)
}

type availabilityService struct {
	repo      Repository
	stations  station.Service
	generator SlotGenerator
	policy    Policy
	now       func() time.Time
}

func NewAvailabilityService(repo Repository, stations station.Service, policy Policy, now func() time.Time) AvailabilityService {
	if now == nil {
		now = time.Now
	}
	return &availabilityService{
		repo:      repo,
		stations:  stations,
		generator: NewSlotGenerator(policy),
		policy:    policy,
		now:       now,
	}
}

func (s *availabilityService) GetAvailability(ctx context.Context, stationID, date, portID string) (*Availability, error) {
	st, err := s.stations.GetByID(ctx, stationID)
	if err != nil {
		return nil, err
	}
	loc := st.Location()
	day, err := time.ParseInLocation(time.DateOnly, date, loc)
	if err != nil {
		return nil, ErrInvalidDate
	}

	var ports []*station.Port
	if portID != "" {
		p, err := s.stations.GetPortOfStation(ctx, st.ID, portID)
		if err != nil {
			return nil, err
		}
		ports = []*station.Port{p}
	} else {
		ports, err = s.stations.ListPorts(ctx, st.ID)
		if err != nil {
			return nil, err
		}
	}

	w, err := st.OperatingHours.WindowFor(day.Weekday())
	if err != nil {
		return nil, err
	}
	openAt, closeAt := w.Bounds(day, loc)
	search := Interval{Start: openAt, End: closeAt}
	now := s.now()

	out := &Availability{
		StationID: st.ID,
		Date:      date,
		Timezone:  loc.String(),
		Ports:     make([]PortAvailability, 0, len(ports)),
	}
	for _, p := range ports {
		pa := PortAvailability{Port: p}
		if st.IsActive && p.IsOperational() {
			pa.Slots, err = s.portSlots(ctx, st, p, day, now, search)
			if err != nil {
				return nil, err
			}
		}
		out.Ports = append(out.Ports, pa)
	}
	return out, nil
}

func (s *availabilityService) portSlots(ctx context.Context, st *station.Station, p *station.Port, day, now time.Time, search Interval) ([]Slot, error) {
	held, err := s.repo.ListHolding(ctx, p.ID, search.Start, search.End, "")
	if err != nil {
		return nil, err
	}
	booked := make([]Interval, 0, len(held))
	for _, b := range held {
		booked = append(booked, b.TimeSlot.Interval())
	}

	seq, err := s.generator.Generate(SlotRequest{
		Date:     day,
		Location: st.Location(),
		Hours:    st.OperatingHours,
		Now:      now,
		Booked:   booked,
		Port:     p,
	})
	if err != nil {
		return nil, err
	}
	return slices.Collect(seq), nil
}
