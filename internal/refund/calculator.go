package refund

import "math"

// OccupancyFeeRate is kept from every eligible refund for the slot held unused.
const OccupancyFeeRate = 0.05

type tier struct {
	minHours   float64 // exclusive lower bound
	percentage float64
}

// Tiers are checked top-down; the first whose bound is exceeded applies.
var tiers = []tier{
	{minHours: 24, percentage: 100},
	{minHours: 4, percentage: 75},
	{minHours: 1, percentage: 50},
}

type Calculation struct {
	OriginalAmount             float64
	HoursBeforeStart           float64
	RefundPercentage           float64
	BaseRefundAmount           float64
	SlotOccupancyFee           float64
	SlotOccupancyFeePercentage float64
	PlatformFeeDeducted        float64
	FinalRefundAmount          float64
	IsEligible                 bool
}

// Percentage returns the refundable share for a cancellation made
// hoursBeforeStart ahead of the slot. Negative hours yield 0.
func Percentage(hoursBeforeStart float64) float64 {
	for _, t := range tiers {
		if hoursBeforeStart > t.minHours {
			return t.percentage
		}
	}
	return 0
}

// Calculate splits originalAmount into what goes back to the user. The
// platform fee is never refunded; the occupancy fee is taken from the tiered base.
func Calculate(originalAmount, platformFee, hoursBeforeStart float64) Calculation {
	pct := Percentage(hoursBeforeStart)
	refundable := math.Max(originalAmount-platformFee, 0)

	c := Calculation{
		OriginalAmount:      round2(originalAmount),
		HoursBeforeStart:    round2(hoursBeforeStart),
		RefundPercentage:    pct,
		PlatformFeeDeducted: round2(math.Min(platformFee, originalAmount)),
	}
	if pct == 0 || refundable == 0 {
		return c
	}

	base := refundable * pct / 100
	fee := base * OccupancyFeeRate
	c.BaseRefundAmount = round2(base)
	c.SlotOccupancyFee = round2(fee)
	c.SlotOccupancyFeePercentage = OccupancyFeeRate * 100
	c.FinalRefundAmount = round2(base - fee)
	c.IsEligible = c.FinalRefundAmount > 0
	return c
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
