package http

import (
	"time"

	bookingHttp "github.com/nekogravitycat/port-booking-backend/internal/booking/http"
	"github.com/nekogravitycat/port-booking-backend/internal/cancellation"
	"github.com/nekogravitycat/port-booking-backend/internal/refund"
)

type CancelBookingRequest struct {
	Reason       string   `json:"reason" binding:"max=500"`
	ClientAmount *float64 `json:"client_amount" binding:"omitempty,min=0"`
}

type CalculationResponse struct {
	OriginalAmount             float64 `json:"original_amount"`
	HoursBeforeStart           float64 `json:"hours_before_start"`
	RefundPercentage           float64 `json:"refund_percentage"`
	BaseRefundAmount           float64 `json:"base_refund_amount"`
	SlotOccupancyFee           float64 `json:"slot_occupancy_fee"`
	SlotOccupancyFeePercentage float64 `json:"slot_occupancy_fee_percentage"`
	PlatformFeeDeducted        float64 `json:"platform_fee_deducted"`
	FinalRefundAmount          float64 `json:"final_refund_amount"`
	IsEligible                 bool    `json:"is_eligible"`
}

func NewCalculationResponse(c refund.Calculation) CalculationResponse {
	return CalculationResponse(c)
}

type RefundTag struct {
	ID          string `json:"id"`
	ReferenceID string `json:"reference_id"`
	Status      string `json:"status"`
}

type FoodOrderTag struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type PreviewResponse struct {
	BookingID        string              `json:"booking_id"`
	Reference        string              `json:"reference"`
	CanCancel        bool                `json:"can_cancel"`
	BlockedReason    string              `json:"blocked_reason,omitempty"`
	HoursBeforeStart float64             `json:"hours_before_start"`
	Refund           CalculationResponse `json:"refund"`
	CalculatedAt     time.Time           `json:"calculated_at"`
}

func NewPreviewResponse(p *cancellation.Preview) PreviewResponse {
	return PreviewResponse{
		BookingID:        p.BookingID,
		Reference:        p.Reference,
		CanCancel:        p.CanCancel,
		BlockedReason:    p.BlockedReason,
		HoursBeforeStart: p.HoursBeforeStart,
		Refund:           NewCalculationResponse(p.Calculation),
		CalculatedAt:     p.At,
	}
}

type CancelResponse struct {
	Booking   bookingHttp.BookingResponse `json:"booking"`
	Breakdown CalculationResponse         `json:"breakdown"`
	Refund    *RefundTag                  `json:"refund,omitempty"`
	FoodOrder *FoodOrderTag               `json:"cancelled_food_order,omitempty"`
}

func NewCancelResponse(r *cancellation.Result) CancelResponse {
	resp := CancelResponse{
		Booking:   bookingHttp.NewBookingResponse(r.Booking),
		Breakdown: NewCalculationResponse(r.Calculation),
	}
	if rf := r.Refund; rf != nil {
		resp.Refund = &RefundTag{ID: rf.ID, ReferenceID: rf.ReferenceID, Status: string(rf.Status)}
	}
	if o := r.CascadedOrder; o != nil {
		resp.FoodOrder = &FoodOrderTag{ID: o.ID, Status: string(o.Status)}
	}
	return resp
}
