package models

import (
	"strings"
	"time"
)

// PromoCode lives at promoCodes/{CODE}; the id is the upper-cased code.
type PromoCode struct {
	ID                 string    `json:"id" validate:"required,alphanum,max=32"`
	DiscountPercentage int       `json:"discountPercentage" validate:"gte=1,lte=100"`
	UsageLimit         int       `json:"usageLimit" validate:"gte=1"`
	TimesUsed          int       `json:"timesUsed" validate:"gte=0"`
	CreatedAt          time.Time `json:"createdAt"`
}

func (p PromoCode) Key() string { return p.ID }

func (p PromoCode) WithKey(id string) PromoCode {
	p.ID = id
	return p
}

func (p PromoCode) Clone() PromoCode { return p }

// Exhausted reports whether the usage limit has been reached.
func (p PromoCode) Exhausted() bool { return p.TimesUsed >= p.UsageLimit }

// NormalizeCode upper-cases and trims a code for storage and lookup.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
