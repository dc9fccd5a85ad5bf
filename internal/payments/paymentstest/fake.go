// Package paymentstest provides an in-memory payments.Client for handler
// tests, with per-call failure toggles and attempt counters.
package paymentstest

import (
	"context"
	"fmt"
	"sync"

	"github.com/stripe/stripe-go/v81"

	"bowlsbackend/internal/payments"
)

// CreatedSession records one CreateCheckoutSession call.
type CreatedSession struct {
	ID         string
	Items      []payments.CheckoutLineItem
	SuccessURL string
	CancelURL  string
}

// Fake implements payments.Client in memory.
type Fake struct {
	mu sync.Mutex

	Sessions           []CreatedSession
	LineItemsBySession map[string][]*stripe.LineItem
	Accounts           map[string]*stripe.Account
	AccountRequests    []payments.AccountRequest
	DeletedAccounts    []string
	LinksIssued        int

	FailCreateSession bool
	FailListLineItems bool
	FailCreateAccount bool
	FailGetAccount    bool
	FailDeleteAccount bool
	FailCreateLink    bool

	SessionAttempts int
	AccountAttempts int
}

var _ payments.Client = (*Fake)(nil)

// New returns an empty fake.
func New() *Fake {
	return &Fake{
		LineItemsBySession: make(map[string][]*stripe.LineItem),
		Accounts:           make(map[string]*stripe.Account),
	}
}

// LineItem builds a processor line item carrying checkout metadata, the shape
// ListLineItems returns for a paid session.
func LineItem(storeRefID, foodID string, quantity, unitAmount int64) *stripe.LineItem {
	return &stripe.LineItem{
		Quantity: quantity,
		Price: &stripe.Price{
			UnitAmount: unitAmount,
			Metadata: map[string]string{
				"store_reference_id": storeRefID,
				"foodid":             foodID,
			},
		},
	}
}

func (f *Fake) CreateCheckoutSession(_ context.Context, items []payments.CheckoutLineItem, successURL, cancelURL string) (*stripe.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.SessionAttempts++
	if f.FailCreateSession {
		return nil, fmt.Errorf("fake: session creation failed")
	}

	id := fmt.Sprintf("cs_test_%d", len(f.Sessions)+1)
	f.Sessions = append(f.Sessions, CreatedSession{
		ID:         id,
		Items:      items,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
	})
	return &stripe.CheckoutSession{ID: id, URL: "https://checkout.stripe.test/pay/" + id}, nil
}

func (f *Fake) ListLineItems(_ context.Context, sessionID string) ([]*stripe.LineItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailListLineItems {
		return nil, fmt.Errorf("fake: listing line items failed")
	}
	return f.LineItemsBySession[sessionID], nil
}

func (f *Fake) CreateAccount(_ context.Context, req payments.AccountRequest) (*stripe.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.AccountAttempts++
	if f.FailCreateAccount {
		return nil, fmt.Errorf("fake: account creation failed")
	}

	f.AccountRequests = append(f.AccountRequests, req)
	account := &stripe.Account{
		ID:       fmt.Sprintf("acct_test_%d", len(f.Accounts)+1),
		Email:    req.Email,
		Metadata: req.Metadata,
	}
	f.Accounts[account.ID] = account
	return account, nil
}

func (f *Fake) GetAccount(_ context.Context, accountID string) (*stripe.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailGetAccount {
		return nil, fmt.Errorf("fake: account fetch failed")
	}
	account, ok := f.Accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("fake: no such account %s", accountID)
	}
	return account, nil
}

func (f *Fake) DeleteAccount(_ context.Context, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailDeleteAccount {
		return fmt.Errorf("fake: account deletion failed")
	}
	delete(f.Accounts, accountID)
	f.DeletedAccounts = append(f.DeletedAccounts, accountID)
	return nil
}

func (f *Fake) CreateAccountLink(_ context.Context, accountID, refreshURL, returnURL string) (*stripe.AccountLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailCreateLink {
		return nil, fmt.Errorf("fake: account link creation failed")
	}
	f.LinksIssued++
	return &stripe.AccountLink{URL: "https://connect.stripe.test/setup/" + accountID}, nil
}
