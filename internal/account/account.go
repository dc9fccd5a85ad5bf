// Package account orchestrates connected-account creation, onboarding links
// and the webhook-driven status sync for seller users.
package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v81"

	"bowlsbackend/internal/config"
	"bowlsbackend/internal/docstore"
	"bowlsbackend/internal/httpapi"
	"bowlsbackend/internal/logger"
	"bowlsbackend/internal/model"
	"bowlsbackend/internal/payments"
)

// metadataUserKey is set on every connected account at creation so the
// connect webhook can trace an account back to its owning user.
const metadataUserKey = "user_id"

// Service groups the connected-account operations. Every call is a pure
// request/response pair; callers decide what to persist and when.
type Service struct {
	Docs      *docstore.Store
	Processor payments.Client
	Cfg       *config.Config
}

// CreateAccount requests a connected account for the user. The service
// agreement is "full" in the home country and "recipient" everywhere else.
// Nothing is persisted here: callers must only write the returned account ID
// after this succeeds.
func (s *Service) CreateAccount(ctx context.Context, user *model.UserProperties, country string) (*stripe.Account, error) {
	if country == "" {
		country = s.Cfg.HomeCountry
	}

	agreement := "recipient"
	if country == s.Cfg.HomeCountry {
		agreement = "full"
	}

	account, err := s.Processor.CreateAccount(ctx, payments.AccountRequest{
		Email:            user.Email,
		Country:          country,
		BusinessURL:      s.Cfg.StorePageURL(user.Immutable.UID),
		ServiceAgreement: agreement,
		Metadata:         map[string]string{metadataUserKey: user.Immutable.UID},
	})
	if err != nil {
		return nil, httpapi.Wrap(httpapi.KindInternal, "error creating connected account", err)
	}

	logger.LogInfo("Connected account %s created for user %s (%s agreement)", account.ID, user.Immutable.UID, agreement)
	return account, nil
}

// GenerateLink issues an onboarding link for an existing connected account.
// It refuses an empty account ID rather than passing it to the processor.
func (s *Service) GenerateLink(ctx context.Context, accountID string) (string, error) {
	if accountID == "" {
		return "", httpapi.E(httpapi.KindNotFound, "user has no connected account")
	}

	// Confirm the account exists before issuing a link against it.
	if _, err := s.Processor.GetAccount(ctx, accountID); err != nil {
		return "", httpapi.Wrap(httpapi.KindInternal, "error generating account link", err)
	}

	link, err := s.Processor.CreateAccountLink(ctx, accountID, s.Cfg.OnboardingRefreshURL(), s.Cfg.OnboardingReturnURL())
	if err != nil {
		return "", httpapi.Wrap(httpapi.KindInternal, "error generating account link", err)
	}
	return link.URL, nil
}

// SyncAccountStatus refetches the account and overwrites the owning user's
// stripe_properties with its current flags. A user that cannot be located is
// a no-op, not an error.
func (s *Service) SyncAccountStatus(ctx context.Context, accountID string) error {
	account, err := s.Processor.GetAccount(ctx, accountID)
	if err != nil {
		return fmt.Errorf("syncing account %s: %w", accountID, err)
	}

	uid := account.Metadata[metadataUserKey]
	var user model.UserProperties
	err = s.Docs.Get(ctx, model.CollectionUsers, uid, &user)
	if errors.Is(err, docstore.ErrNotFound) {
		logger.LogWarn("No user found for account %s (uid=%q), skipping sync", accountID, uid)
		return nil
	}
	if err != nil {
		return fmt.Errorf("syncing account %s: %w", accountID, err)
	}

	user.Immutable.StripeProperties = model.StripeAccountProperties{
		PayoutsEnabled:   account.PayoutsEnabled,
		ChargesEnabled:   account.ChargesEnabled,
		DetailsSubmitted: account.DetailsSubmitted,
		StripeID:         account.ID,
	}

	if err := s.Docs.Set(ctx, model.CollectionUsers, uid, &user); err != nil {
		return fmt.Errorf("syncing account %s: %w", accountID, err)
	}

	logger.LogInfo("Account status synced for user %s: charges=%t payouts=%t details=%t",
		uid, account.ChargesEnabled, account.PayoutsEnabled, account.DetailsSubmitted)
	return nil
}
