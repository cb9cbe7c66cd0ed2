// Package promo validates discount codes at checkout.
package promo

import (
	"context"
	"fmt"
	"math"

	"github.com/dmitrijs2005/promptmarket/internal/metrics"
	"github.com/dmitrijs2005/promptmarket/internal/models"
)

const (
	ReasonInvalid   = "invalid code"
	ReasonExhausted = "usage limit reached"
)

// Codes is the promo code store the validator reads and increments.
type Codes interface {
	Lookup(code string) (models.PromoCode, bool)
	IncrementUsage(ctx context.Context, code string) (models.PromoCode, error)
}

// Result is returned for every validation; a failure is not an error.
type Result struct {
	Success bool
	Code    string
	Reason  string
	Message string
	// Discount is the fraction taken off the price, 0.25 for 25%.
	Discount float64
}

type Validator struct {
	codes   Codes
	metrics *metrics.Metrics
}

func NewValidator(codes Codes, m *metrics.Metrics) *Validator {
	return &Validator{codes: codes, metrics: m}
}

// Validate looks the code up case-insensitively and checks its usage limit.
// It never changes the usage counter.
func (v *Validator) Validate(code string) Result {
	id := models.NormalizeCode(code)
	p, ok := v.codes.Lookup(id)
	if !ok {
		v.metrics.PromoValidation("invalid")
		return Result{Code: id, Reason: ReasonInvalid, Message: "Invalid promo code"}
	}
	if p.Exhausted() {
		v.metrics.PromoValidation("exhausted")
		return Result{Code: id, Reason: ReasonExhausted, Message: "This promo code has reached its usage limit"}
	}
	v.metrics.PromoValidation("ok")
	return Result{
		Success:  true,
		Code:     id,
		Message:  fmt.Sprintf("Promo code applied: %d%% off", p.DiscountPercentage),
		Discount: float64(p.DiscountPercentage) / 100,
	}
}

// IncrementUsage records one use of code. Call it only after the associated
// payment succeeded, and only once per payment.
func (v *Validator) IncrementUsage(ctx context.Context, code string) error {
	if _, err := v.codes.IncrementUsage(ctx, models.NormalizeCode(code)); err != nil {
		return fmt.Errorf("promo usage: %w", err)
	}
	return nil
}

// Apply returns priceCents reduced by discount, rounded to the nearest cent.
func Apply(priceCents int64, discount float64) int64 {
	if discount <= 0 {
		return priceCents
	}
	if discount >= 1 {
		return 0
	}
	return int64(math.Round(float64(priceCents) * (1 - discount)))
}
