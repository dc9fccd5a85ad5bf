// Package fulfill turns completed checkout sessions into pending orders on
// the stores that sold the items.
package fulfill

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v81"

	"bowlsbackend/internal/docstore"
	"bowlsbackend/internal/logger"
	"bowlsbackend/internal/model"
	"bowlsbackend/internal/payments"
)

// lineItemRef is one purchased item traced back to its store and menu entry.
type lineItemRef struct {
	StoreReferenceID string
	FoodID           string
	Quantity         int64
}

// Reconciler resolves a session's line items against current store menus and
// appends a pending order per item.
type Reconciler struct {
	Docs      *docstore.Store
	Processor payments.Client
}

// FulfillOrder reconciles one completed checkout session. When an item no
// longer resolves to a store or menu entry the whole remaining list is
// abandoned: the menu changed between checkout and payment, and a processor
// retry can never repair that, so the event is still acknowledged.
//
// Replaying the same session appends the same pending orders again; nothing
// here deduplicates.
func (rc *Reconciler) FulfillOrder(ctx context.Context, sessionID string) error {
	lineItems, err := rc.Processor.ListLineItems(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("fulfilling session %s: %w", sessionID, err)
	}

	for _, li := range lineItems {
		ref := resolveLineItem(li)

		var storeDoc model.StoreProperties
		err := rc.Docs.Get(ctx, model.CollectionStores, ref.StoreReferenceID, &storeDoc)
		if errors.Is(err, docstore.ErrNotFound) {
			logger.LogError("Store not found during fulfillment: store_reference_id=%q session=%s", ref.StoreReferenceID, sessionID)
			return nil
		}
		if err != nil {
			return fmt.Errorf("fulfilling session %s: %w", sessionID, err)
		}

		foodItem := storeDoc.FindMenuItem(ref.FoodID)
		if foodItem == nil {
			logger.LogError("Food item not found during fulfillment: foodid=%q session=%s", ref.FoodID, sessionID)
			return nil
		}

		order := model.PendingOrder{
			StoreReferenceID: ref.StoreReferenceID,
			FoodID:           ref.FoodID,
			Quantity:         ref.Quantity,
			Price:            foodItem.Price,
			Status:           "pending",
		}

		if err := rc.Docs.ArrayAppend(ctx, model.CollectionStores, ref.StoreReferenceID, "pendingOrders", order); err != nil {
			return fmt.Errorf("appending pending order for session %s: %w", sessionID, err)
		}

		logger.LogInfo("Pending order appended: store=%s foodid=%s quantity=%d", ref.StoreReferenceID, ref.FoodID, ref.Quantity)
	}

	return nil
}

// resolveLineItem extracts the correlation metadata attached at checkout.
// Missing metadata yields empty strings, which then fail the store and menu
// lookups above.
func resolveLineItem(li *stripe.LineItem) lineItemRef {
	ref := lineItemRef{Quantity: li.Quantity}
	if li.Price != nil {
		ref.StoreReferenceID = li.Price.Metadata["store_reference_id"]
		ref.FoodID = li.Price.Metadata["foodid"]
	}
	return ref
}
