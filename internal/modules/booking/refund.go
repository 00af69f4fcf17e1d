package booking

import (
	"time"

	"github.com/shopspring/decimal"

	"slapp/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Refund is advisory: it states what is owed, it never moves money.
type Refund struct {
	Amount        decimal.Decimal `json:"amount"`
	Guaranteed    bool            `json:"guaranteed"`
	PolicyMissing bool            `json:"policy_missing"`
	Percentage    int             `json:"percentage"`
}

// ComputeRefund applies policy to a cancellation at now. A missing or inactive
// policy yields no guaranteed refund. Cancelling exactly HoursBeforeEvent
// before the start still earns the refund.
func ComputeRefund(r domain.Reservation, policy *domain.CancellationPolicy, now time.Time) Refund {
	if policy == nil || !policy.Active {
		return Refund{Amount: decimal.Zero, PolicyMissing: true}
	}

	threshold := time.Duration(policy.HoursBeforeEvent) * time.Hour
	if r.StartTime.Sub(now) < threshold {
		return Refund{Amount: decimal.Zero, Guaranteed: true}
	}

	pct := policy.RefundPercentage
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	amount := r.TotalPrice.Mul(decimal.NewFromInt(int64(pct))).Div(hundred).Round(2)
	return Refund{Amount: amount, Guaranteed: true, Percentage: pct}
}
