package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/promptmarket/internal/common"
	"github.com/dmitrijs2005/promptmarket/internal/logging"
	"github.com/dmitrijs2005/promptmarket/internal/models"
	"github.com/dmitrijs2005/promptmarket/internal/payment"
	"github.com/dmitrijs2005/promptmarket/internal/promo"
)

// ErrPromoRejected wraps a failed promo validation.
var ErrPromoRejected = errors.New("promo code rejected")

// Quote is the price after an optional promo code.
type Quote struct {
	PriceCents  int64
	AmountCents int64
	Promo       *promo.Result
}

// CheckoutService sells collections and the pro tier.
type CheckoutService struct {
	repos         Repositories
	promos        *promo.Validator
	payments      payment.Processor
	proPriceCents int64
	log           logging.Logger
}

func NewCheckoutService(repos Repositories, v *promo.Validator, p payment.Processor, proPriceCents int64, log logging.Logger) *CheckoutService {
	return &CheckoutService{repos: repos, promos: v, payments: p, proPriceCents: proPriceCents, log: log.With("module", "checkout")}
}

// Quote prices priceCents with code. An empty code means no promo. A
// rejected code returns ErrPromoRejected along with the validation result.
func (s *CheckoutService) Quote(priceCents int64, code string) (Quote, error) {
	q := Quote{PriceCents: priceCents, AmountCents: priceCents}
	if strings.TrimSpace(code) == "" {
		return q, nil
	}
	res := s.promos.Validate(code)
	q.Promo = &res
	if !res.Success {
		return q, fmt.Errorf("%w: %s", ErrPromoRejected, res.Reason)
	}
	q.AmountCents = promo.Apply(priceCents, res.Discount)
	return q, nil
}

func (s *CheckoutService) ProPriceCents() int64 { return s.proPriceCents }

// BuyCollection charges the user for an approved collection and records the
// purchase.
func (s *CheckoutService) BuyCollection(ctx context.Context, userID, collectionID, code string) (models.User, error) {
	u, err := s.repos.active(userID)
	if err != nil {
		return models.User{}, err
	}
	c, err := s.repos.collection(collectionID)
	if err != nil {
		return models.User{}, err
	}
	if c.Status != models.StatusApproved {
		return models.User{}, fmt.Errorf("collection %s: %w", collectionID, common.ErrorNotFound)
	}
	if u.Owns(collectionID) {
		return models.User{}, fmt.Errorf("collection %s: %w", collectionID, common.ErrorAlreadyExists)
	}

	if err := s.charge(ctx, userID, c.PriceCents, code); err != nil {
		return models.User{}, err
	}
	return s.repos.Users.AddPurchased(ctx, userID, collectionID)
}

// UpgradeToPro charges the pro price and switches the tier.
func (s *CheckoutService) UpgradeToPro(ctx context.Context, userID, code string) (models.User, error) {
	u, err := s.repos.active(userID)
	if err != nil {
		return models.User{}, err
	}
	if u.IsPro() {
		return models.User{}, fmt.Errorf("user %s is pro: %w", userID, common.ErrorAlreadyExists)
	}

	if err := s.charge(ctx, userID, s.proPriceCents, code); err != nil {
		return models.User{}, err
	}
	return s.repos.Users.UpgradeToPro(ctx, userID)
}

// charge takes the money and then counts one promo use. The usage counter is
// never touched when the charge fails.
func (s *CheckoutService) charge(ctx context.Context, userID string, priceCents int64, code string) error {
	q, err := s.Quote(priceCents, code)
	if err != nil {
		return err
	}
	if q.AmountCents > 0 {
		if err := s.payments.Charge(ctx, userID, q.AmountCents); err != nil {
			return fmt.Errorf("charge: %w", err)
		}
	}
	if q.Promo != nil {
		if err := s.promos.IncrementUsage(ctx, q.Promo.Code); err != nil {
			s.log.Error(ctx, "promo usage not recorded", "code", q.Promo.Code, "user", userID, "error", err)
		}
	}
	return nil
}
