// Package payments wraps the Stripe API behind an interface so handlers can
// be exercised against fakes in tests.
package payments

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

// CheckoutLineItem is one priced unit of a checkout session request. The
// metadata rides along on the processor side and comes back on fulfillment.
type CheckoutLineItem struct {
	Name        string
	Description string
	UnitAmount  int64 // minor currency units
	Quantity    int64
	Metadata    map[string]string
}

// AccountRequest describes a connected account to create for a seller.
type AccountRequest struct {
	Email            string
	Country          string
	BusinessURL      string
	ServiceAgreement string // "full" or "recipient"
	Metadata         map[string]string
}

// Client is the payment processor surface this backend uses.
type Client interface {
	CreateCheckoutSession(ctx context.Context, items []CheckoutLineItem, successURL, cancelURL string) (*stripe.CheckoutSession, error)
	ListLineItems(ctx context.Context, sessionID string) ([]*stripe.LineItem, error)
	CreateAccount(ctx context.Context, req AccountRequest) (*stripe.Account, error)
	GetAccount(ctx context.Context, accountID string) (*stripe.Account, error)
	DeleteAccount(ctx context.Context, accountID string) error
	CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (*stripe.AccountLink, error)
}

// StripeClient implements Client over the Stripe SDK.
type StripeClient struct {
	api *client.API
}

// NewStripeClient builds a client bound to the given secret key.
func NewStripeClient(secretKey string) *StripeClient {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeClient{api: api}
}

// CreateCheckoutSession opens a hosted card payment session for the items.
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, items []CheckoutLineItem, successURL, cancelURL string) (*stripe.CheckoutSession, error) {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(items))
	for _, item := range items {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(string(stripe.CurrencyUSD)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(item.Name),
					Description: stripe.String(item.Description),
					Metadata:    item.Metadata,
				},
				UnitAmount: stripe.Int64(item.UnitAmount),
			},
			Quantity: stripe.Int64(item.Quantity),
		})
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:          lineItems,
		SuccessURL:         stripe.String(successURL),
		CancelURL:          stripe.String(cancelURL),
	}
	params.Context = ctx

	session, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("creating checkout session: %w", err)
	}
	return session, nil
}

// ListLineItems fetches all line items of a checkout session.
func (c *StripeClient) ListLineItems(ctx context.Context, sessionID string) ([]*stripe.LineItem, error) {
	params := &stripe.CheckoutSessionListLineItemsParams{
		Session: stripe.String(sessionID),
	}
	params.Context = ctx

	var items []*stripe.LineItem
	iter := c.api.CheckoutSessions.ListLineItems(params)
	for iter.Next() {
		items = append(items, iter.LineItem())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("listing line items for session %s: %w", sessionID, err)
	}
	return items, nil
}

// CreateAccount creates an Express connected account for a seller.
func (c *StripeClient) CreateAccount(ctx context.Context, req AccountRequest) (*stripe.Account, error) {
	params := &stripe.AccountParams{
		Type:    stripe.String(string(stripe.AccountTypeExpress)),
		Country: stripe.String(req.Country),
		Email:   stripe.String(req.Email),
		Capabilities: &stripe.AccountCapabilitiesParams{
			CardPayments: &stripe.AccountCapabilitiesCardPaymentsParams{Requested: stripe.Bool(true)},
			Transfers:    &stripe.AccountCapabilitiesTransfersParams{Requested: stripe.Bool(true)},
		},
		BusinessType: stripe.String("individual"),
		BusinessProfile: &stripe.AccountBusinessProfileParams{
			MCC:                stripe.String("7299"),
			ProductDescription: stripe.String("Food"),
			URL:                stripe.String(req.BusinessURL),
			SupportEmail:       stripe.String(req.Email),
		},
		TOSAcceptance: &stripe.AccountTOSAcceptanceParams{
			ServiceAgreement: stripe.String(req.ServiceAgreement),
		},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	account, err := c.api.Accounts.New(params)
	if err != nil {
		return nil, fmt.Errorf("creating connected account: %w", err)
	}
	return account, nil
}

// GetAccount fetches a connected account by ID.
func (c *StripeClient) GetAccount(ctx context.Context, accountID string) (*stripe.Account, error) {
	params := &stripe.AccountParams{}
	params.Context = ctx

	account, err := c.api.Accounts.GetByID(accountID, params)
	if err != nil {
		return nil, fmt.Errorf("fetching account %s: %w", accountID, err)
	}
	return account, nil
}

// DeleteAccount removes a connected account.
func (c *StripeClient) DeleteAccount(ctx context.Context, accountID string) error {
	params := &stripe.AccountParams{}
	params.Context = ctx

	if _, err := c.api.Accounts.Del(accountID, params); err != nil {
		return fmt.Errorf("deleting account %s: %w", accountID, err)
	}
	return nil
}

// CreateAccountLink issues an onboarding link for a connected account.
func (c *StripeClient) CreateAccountLink(ctx context.Context, accountID, refreshURL, returnURL string) (*stripe.AccountLink, error) {
	params := &stripe.AccountLinkParams{
		Account:    stripe.String(accountID),
		RefreshURL: stripe.String(refreshURL),
		ReturnURL:  stripe.String(returnURL),
		Type:       stripe.String("account_onboarding"),
	}
	params.Context = ctx

	link, err := c.api.AccountLinks.New(params)
	if err != nil {
		return nil, fmt.Errorf("creating account link for %s: %w", accountID, err)
	}
	return link, nil
}
