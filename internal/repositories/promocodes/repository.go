// Package promocodes holds the discount codes, keyed by their upper-cased
// code string.
package promocodes

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/promptmarket/internal/common"
	"github.com/dmitrijs2005/promptmarket/internal/docstore"
	"github.com/dmitrijs2005/promptmarket/internal/logging"
	"github.com/dmitrijs2005/promptmarket/internal/metrics"
	"github.com/dmitrijs2005/promptmarket/internal/models"
	"github.com/dmitrijs2005/promptmarket/internal/repositories/cache"
	"github.com/go-playground/validator/v10"
)

const Root = "promoCodes"

var validate = validator.New()

type Repository struct {
	*cache.Repository[models.PromoCode]
	now func() time.Time
}

func New(mirror *cache.Mirror, log logging.Logger, m *metrics.Metrics) *Repository {
	return &Repository{
		Repository: cache.New[models.PromoCode](mirror, cache.Options[models.PromoCode]{
			Entity:  "promoCodes",
			Root:    Root,
			Log:     log,
			Metrics: m,
		}),
		now: time.Now,
	}
}

// Create stores a new code with a zero usage counter.
func (r *Repository) Create(ctx context.Context, code string, discountPercentage, usageLimit int) (models.PromoCode, error) {
	p := models.PromoCode{
		ID:                 models.NormalizeCode(code),
		DiscountPercentage: discountPercentage,
		UsageLimit:         usageLimit,
		CreatedAt:          r.now(),
	}
	if err := validate.Struct(p); err != nil {
		return models.PromoCode{}, fmt.Errorf("%w: %v", common.ErrorInvalidArgument, err)
	}
	if _, ok := r.Get(p.ID); ok {
		return models.PromoCode{}, fmt.Errorf("promo code %s: %w", p.ID, common.ErrorAlreadyExists)
	}
	return r.Add(ctx, p), nil
}

// Lookup finds a code case-insensitively.
func (r *Repository) Lookup(code string) (models.PromoCode, bool) {
	return r.Get(models.NormalizeCode(code))
}

func (r *Repository) Delete(ctx context.Context, code string) error {
	return r.Remove(ctx, models.NormalizeCode(code))
}

// IncrementUsage adds one use. A failed write takes the use back. Callers
// must invoke it once per successful payment; nothing here deduplicates.
func (r *Repository) IncrementUsage(ctx context.Context, code string) (models.PromoCode, error) {
	id := models.NormalizeCode(code)
	return r.MutateRevert(ctx, cache.OpPromoUsage, id, func(p models.PromoCode) (models.PromoCode, error) {
		p.TimesUsed++
		return p, nil
	}, func(p models.PromoCode) cache.Write {
		return func(ctx context.Context, s docstore.Store) error {
			return s.Update(ctx, r.Path(id), map[string]any{"timesUsed": p.TimesUsed})
		}
	}, func(cur, _ models.PromoCode) models.PromoCode {
		cur.TimesUsed = max(0, cur.TimesUsed-1)
		return cur
	})
}
