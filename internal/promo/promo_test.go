package promo

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/promptmarket/internal/common"
	"github.com/dmitrijs2005/promptmarket/internal/docstore/memory"
	"github.com/dmitrijs2005/promptmarket/internal/logging"
	"github.com/dmitrijs2005/promptmarket/internal/repositories/cache"
	"github.com/dmitrijs2005/promptmarket/internal/repositories/promocodes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidator(t *testing.T) (*Validator, *promocodes.Repository) {
	t.Helper()
	store := memory.New()
	codes := promocodes.New(cache.NewMirror(store, nil, logging.NewNop(), nil), logging.NewNop(), nil)
	codes.Load(context.Background())
	return NewValidator(codes, nil), codes
}

func TestValidate_CaseInsensitive(t *testing.T) {
	v, codes := newValidator(t)
	_, err := codes.Create(context.Background(), "SAVE25", 25, 10)
	require.NoError(t, err)
	codes.Wait()

	lower := v.Validate("save25")
	upper := v.Validate("SAVE25")
	assert.Equal(t, upper, lower)
	assert.True(t, upper.Success)
	assert.Equal(t, 0.25, upper.Discount)
	assert.Contains(t, upper.Message, "25%")
}

func TestValidate_UnknownCode(t *testing.T) {
	v, _ := newValidator(t)

	got := v.Validate("NOPE")
	assert.False(t, got.Success)
	assert.Equal(t, ReasonInvalid, got.Reason)
	assert.Equal(t, 0.0, got.Discount)
}

func TestValidate_UsageLimitBoundary(t *testing.T) {
	v, codes := newValidator(t)
	ctx := context.Background()
	_, err := codes.Create(ctx, "ONCE", 10, 1)
	require.NoError(t, err)
	codes.Wait()

	first := v.Validate("ONCE")
	require.True(t, first.Success, "timesUsed=0, usageLimit=1 succeeds")

	again := v.Validate("once")
	require.True(t, again.Success, "validation alone never consumes a use")

	require.NoError(t, v.IncrementUsage(ctx, "once"))
	codes.Wait()

	after := v.Validate("ONCE")
	assert.False(t, after.Success)
	assert.Equal(t, ReasonExhausted, after.Reason)
	assert.Equal(t, 0.0, after.Discount)
}

func TestIncrementUsage_Unknown(t *testing.T) {
	v, _ := newValidator(t)
	err := v.IncrementUsage(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestApply(t *testing.T) {
	tests := []struct {
		price    int64
		discount float64
		want     int64
	}{
		{999, 0, 999},
		{999, 0.25, 749},
		{1000, 0.5, 500},
		{999, 1, 0},
		{999, -0.1, 999},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Apply(tt.price, tt.discount))
	}
}
