package http

import (
	"time"

	"github.com/nekogravitycat/port-booking-backend/internal/booking"
	"github.com/nekogravitycat/port-booking-backend/internal/pkg/request"
	"github.com/nekogravitycat/port-booking-backend/internal/station"
)

// AvailabilityRequest defines query parameters for the slot listing.
type AvailabilityRequest struct {
	Date   string `form:"date" binding:"required,datetime=2006-01-02"`
	PortID string `form:"port_id" binding:"omitempty,uuid"`
}

// ListBookingsRequest defines query parameters for listing the caller's bookings.
type ListBookingsRequest struct {
	request.ListParams
	PortID string `form:"port_id" binding:"omitempty,uuid"`
	Status string `form:"status" binding:"omitempty,oneof=pending confirmed active completed cancelled expired no_show"`
}

type CreateBookingRequest struct {
	StationID       string     `json:"station_id" binding:"required,uuid"`
	PortID          string     `json:"port_id" binding:"required,uuid"`
	StartTime       time.Time  `json:"start_time" binding:"required"`
	EndTime         *time.Time `json:"end_time"`
	DurationMinutes int        `json:"duration_minutes" binding:"required,min=1"`
	FoodOrderID     *string    `json:"food_order_id" binding:"omitempty,uuid"`
}

// Validate performs custom validation for CreateBookingRequest.
func (r *CreateBookingRequest) Validate() error {
	if r.EndTime != nil && !r.EndTime.After(r.StartTime) {
		return booking.ErrInvalidTimeRange
	}
	return nil
}

type ExtendBookingRequest struct {
	AdditionalMinutes int `json:"additional_minutes" binding:"required,min=1"`
}

type PriceOptionResponse struct {
	DurationMinutes int     `json:"duration_minutes"`
	EstimatedUnits  float64 `json:"estimated_units"`
	TotalAmount     float64 `json:"total_amount"`
}

type SlotResponse struct {
	StartTime time.Time             `json:"start_time"`
	EndTime   time.Time             `json:"end_time"`
	Available bool                  `json:"available"`
	Prices    []PriceOptionResponse `json:"prices,omitempty"`
}

type PortTag struct {
	ID            string  `json:"id"`
	Label         string  `json:"label"`
	ConnectorType string  `json:"connector_type"`
	PowerOutputKW float64 `json:"power_output_kw"`
	Status        string  `json:"status"`
}

func NewPortTag(p *station.Port) PortTag {
	return PortTag{
		ID:            p.ID,
		Label:         p.Label,
		ConnectorType: p.ConnectorType,
		PowerOutputKW: p.PowerOutputKW,
		Status:        string(p.Status),
	}
}

type PortAvailabilityResponse struct {
	Port  PortTag        `json:"port"`
	Slots []SlotResponse `json:"slots"`
}

type AvailabilityResponse struct {
	StationID string                     `json:"station_id"`
	Date      string                     `json:"date"`
	Timezone  string                     `json:"timezone"`
	Ports     []PortAvailabilityResponse `json:"ports"`
}

func NewAvailabilityResponse(a *booking.Availability) AvailabilityResponse {
	resp := AvailabilityResponse{
		StationID: a.StationID,
		Date:      a.Date,
		Timezone:  a.Timezone,
		Ports:     make([]PortAvailabilityResponse, len(a.Ports)),
	}
	for i, pa := range a.Ports {
		slots := make([]SlotResponse, len(pa.Slots))
		for j, s := range pa.Slots {
			slots[j] = SlotResponse{StartTime: s.Start, EndTime: s.End, Available: s.Available}
			for _, p := range s.Prices {
				slots[j].Prices = append(slots[j].Prices, PriceOptionResponse(p))
			}
		}
		resp.Ports[i] = PortAvailabilityResponse{Port: NewPortTag(pa.Port), Slots: slots}
	}
	return resp
}

type PricingResponse struct {
	UnitPrice      float64 `json:"unit_price"`
	EstimatedUnits float64 `json:"estimated_units"`
	BaseCost       float64 `json:"base_cost"`
	Taxes          float64 `json:"taxes"`
	ServiceCharges float64 `json:"service_charges"`
	PlatformFee    float64 `json:"platform_fee"`
	TotalAmount    float64 `json:"total_amount"`
}

type CancellationResponse struct {
	CancelledBy      string    `json:"cancelled_by"`
	Reason           string    `json:"reason,omitempty"`
	CancelledAt      time.Time `json:"cancelled_at"`
	RefundEligible   bool      `json:"refund_eligible"`
	HoursBeforeStart float64   `json:"hours_before_start"`
}

type UsageResponse struct {
	ActualStart    *time.Time `json:"actual_start,omitempty"`
	ActualEnd      *time.Time `json:"actual_end,omitempty"`
	ChargedMinutes *int       `json:"charged_minutes,omitempty"`
	EarlyRefund    *float64   `json:"early_refund,omitempty"`
	FinalAmount    *float64   `json:"final_amount,omitempty"`
}

type BookingResponse struct {
	ID              string                `json:"id"`
	Reference       string                `json:"reference"`
	StationID       string                `json:"station_id"`
	PortID          string                `json:"port_id"`
	StartTime       time.Time             `json:"start_time"`
	EndTime         time.Time             `json:"end_time"`
	DurationMinutes int                   `json:"duration_minutes"`
	Pricing         PricingResponse       `json:"pricing"`
	Status          string                `json:"status"`
	PaymentStatus   string                `json:"payment_status"`
	Cancellation    *CancellationResponse `json:"cancellation,omitempty"`
	Usage           UsageResponse         `json:"usage"`
	FoodOrderID     *string               `json:"food_order_id,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

func NewBookingResponse(b *booking.Booking) BookingResponse {
	resp := BookingResponse{
		ID:              b.ID,
		Reference:       b.Reference,
		StationID:       b.StationID,
		PortID:          b.PortID,
		StartTime:       b.TimeSlot.Start,
		EndTime:         b.TimeSlot.End,
		DurationMinutes: b.TimeSlot.DurationMinutes,
		Pricing: PricingResponse{
			UnitPrice:      b.Pricing.UnitPrice,
			EstimatedUnits: b.Pricing.EstimatedUnits,
			BaseCost:       b.Pricing.BaseCost,
			Taxes:          b.Pricing.Taxes,
			ServiceCharges: b.Pricing.ServiceCharges,
			PlatformFee:    b.Pricing.PlatformFee,
			TotalAmount:    b.Pricing.TotalAmount,
		},
		Status:        string(b.Status),
		PaymentStatus: string(b.PaymentStatus),
		Usage: UsageResponse{
			ActualStart:    b.ActualUsage.ActualStart,
			ActualEnd:      b.ActualUsage.ActualEnd,
			ChargedMinutes: b.ActualUsage.ChargedMinutes,
			EarlyRefund:    b.ActualUsage.EarlyRefund,
			FinalAmount:    b.ActualUsage.FinalAmount,
		},
		FoodOrderID: b.FoodOrderID,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
	if c := b.Cancellation; c != nil {
		resp.Cancellation = &CancellationResponse{
			CancelledBy:      c.CancelledBy,
			Reason:           c.Reason,
			CancelledAt:      c.CancelledAt,
			RefundEligible:   c.RefundEligible,
			HoursBeforeStart: c.HoursBeforeStart,
		}
	}
	return resp
}
