// Package checkout validates cart payloads against store menus and opens
// hosted payment sessions for them.
package checkout

import (
	"context"
	"errors"
	"net/http"

	"bowlsbackend/internal/docstore"
	"bowlsbackend/internal/httpapi"
	"bowlsbackend/internal/logger"
	"bowlsbackend/internal/model"
	"bowlsbackend/internal/payments"
)

// SessionRequest is the checkout request body.
type SessionRequest struct {
	Contents []model.CartItem `json:"contents"`
}

// Service builds priced line items from carts and requests sessions for them.
type Service struct {
	Docs       *docstore.Store
	Processor  payments.Client
	SuccessURL string
	CancelURL  string
}

// BuildLineItems resolves each cart item against its store's menu and prices
// it from the stored menu entry. The whole cart is rejected on the first
// invalid item; nothing is partially accepted.
func (s *Service) BuildLineItems(ctx context.Context, contents []model.CartItem) ([]payments.CheckoutLineItem, error) {
	if len(contents) == 0 {
		return nil, httpapi.E(httpapi.KindInvalidArgument, "invalid request")
	}

	lineItems := make([]payments.CheckoutLineItem, 0, len(contents))
	for _, item := range contents {
		// Quantity must be strictly greater than 1. Single-unit purchases are
		// rejected by this bound; see DESIGN.md before changing it.
		if item.StoreReferenceID == "" || item.UID == "" || item.Quantity <= 1 {
			return nil, httpapi.E(httpapi.KindInvalidArgument, "invalid item properties")
		}

		var storeDoc model.StoreProperties
		err := s.Docs.Get(ctx, model.CollectionStores, item.StoreReferenceID, &storeDoc)
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, httpapi.E(httpapi.KindNotFound, "store not found")
		}
		if err != nil {
			return nil, httpapi.Wrap(httpapi.KindInternal, "internal server error", err)
		}

		foodItem := storeDoc.FindMenuItem(item.UID)
		if foodItem == nil {
			return nil, httpapi.E(httpapi.KindNotFound, "food item not found")
		}

		lineItems = append(lineItems, payments.CheckoutLineItem{
			Name:        foodItem.Name,
			Description: foodItem.Description,
			UnitAmount:  foodItem.Price,
			Quantity:    item.Quantity,
			Metadata: map[string]string{
				"store_reference_id": item.StoreReferenceID,
				"foodid":             item.UID,
			},
		})
	}

	return lineItems, nil
}

// Handler serves POST /api/checkout: validate the cart, open a session and
// redirect the caller to its hosted URL. No state is persisted here; orders
// materialize later when the completed-session webhook arrives.
func Handler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SessionRequest
		if err := httpapi.ParseJSONRequest(r, &req); err != nil {
			httpapi.WriteError(w, r, err)
			return
		}

		lineItems, err := svc.BuildLineItems(r.Context(), req.Contents)
		if err != nil {
			httpapi.WriteError(w, r, err)
			return
		}

		session, err := svc.Processor.CreateCheckoutSession(r.Context(), lineItems, svc.SuccessURL, svc.CancelURL)
		if err != nil {
			httpapi.WriteError(w, r, httpapi.Wrap(httpapi.KindInternal, "session creation failed", err))
			return
		}
		if session.URL == "" {
			httpapi.WriteError(w, r, httpapi.E(httpapi.KindInternal, "session creation failed"))
			return
		}

		logger.LogInfo("Checkout session %s created with %d line items", session.ID, len(lineItems))
		http.Redirect(w, r, session.URL, http.StatusSeeOther)
	}
}
