package foodorder

import (
	"context"
	"errors"
	"strings"
	"time"
)

// MatchInput carries what is known about a cancelled booking when looking
// for its food order.
type MatchInput struct {
	OrderID          *string // direct link, when the booking recorded one
	BookingID        string
	VendorID         string
	Email            string
	Phone            string
	BookingCreatedAt time.Time
}

// Strategy finds the order linked to a booking, or returns nil when it has
// no opinion. Strategies are tried in order.
type Strategy interface {
	Name() string
	Match(ctx context.Context, repo Repository, in MatchInput) (*Order, error)
}

// ByReference follows the order ID stored on the booking.
type ByReference struct{}

func (ByReference) Name() string { return "direct_reference" }

func (ByReference) Match(ctx context.Context, repo Repository, in MatchInput) (*Order, error) {
	if in.OrderID == nil || *in.OrderID == "" {
		return nil, nil
	}
	o, err := repo.GetByID(ctx, *in.OrderID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return o, err
}

// ByIdentityWindow picks an open order from the same vendor and contact
// placed within Window of the booking's creation. The closest one wins.
type ByIdentityWindow struct {
	Window time.Duration
}

func (ByIdentityWindow) Name() string { return "identity_time_window" }

func (s ByIdentityWindow) Match(ctx context.Context, repo Repository, in MatchInput) (*Order, error) {
	if in.VendorID == "" || (in.Email == "" && in.Phone == "") {
		return nil, nil
	}
	candidates, err := repo.ListOpenByVendor(ctx, in.VendorID,
		in.BookingCreatedAt.Add(-s.Window), in.BookingCreatedAt.Add(s.Window))
	if err != nil {
		return nil, err
	}

	var (
		best     *Order
		bestDist time.Duration
	)
	for _, o := range candidates {
		if o.BookingID != nil && *o.BookingID != in.BookingID {
			continue
		}
		if !sameContact(o, in) {
			continue
		}
		dist := o.CreatedAt.Sub(in.BookingCreatedAt).Abs()
		if best == nil || dist < bestDist {
			best, bestDist = o, dist
		}
	}
	return best, nil
}

func sameContact(o *Order, in MatchInput) bool {
	if in.Email != "" && strings.EqualFold(o.ContactEmail, in.Email) {
		return true
	}
	return in.Phone != "" && o.ContactPhone == in.Phone
}

// Matcher runs strategies until one finds an order.
type Matcher struct {
	repo       Repository
	strategies []Strategy
}

// DefaultMatchWindow bounds how far apart booking and order creation may be
// for the identity fallback.
const DefaultMatchWindow = 5 * time.Minute

func NewMatcher(repo Repository, strategies ...Strategy) *Matcher {
	if len(strategies) == 0 {
		strategies = []Strategy{ByReference{}, ByIdentityWindow{Window: DefaultMatchWindow}}
	}
	return &Matcher{repo: repo, strategies: strategies}
}

// Find returns the matched order and the strategy name, or a nil order when
// no strategy matched.
func (m *Matcher) Find(ctx context.Context, in MatchInput) (*Order, string, error) {
	for _, s := range m.strategies {
		o, err := s.Match(ctx, m.repo, in)
		if err != nil {
			return nil, s.Name(), err
		}
		if o != nil {
			return o, s.Name(), nil
		}
	}
	return nil, "", nil
}
