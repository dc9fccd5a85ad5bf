// Package webhook receives processor event deliveries, verifies their
// signatures against the raw request body and dispatches by event kind.
//
// Two independent routers exist: one for direct-charge events and one for
// connected-account events. Each knows only its own secret and handlers.
package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v81"
	stripewebhook "github.com/stripe/stripe-go/v81/webhook"

	"bowlsbackend/internal/logger"
)

// Event kinds this backend reacts to. Anything else is acknowledged and
// dropped; unknown kinds are not errors.
const (
	KindCheckoutSessionCompleted = "checkout.session.completed"
	KindAccountUpdated           = "account.updated"
)

// Fulfiller reconciles a completed checkout session into pending orders.
type Fulfiller interface {
	FulfillOrder(ctx context.Context, sessionID string) error
}

// AccountSyncer mirrors a connected account's status onto its owning user.
type AccountSyncer interface {
	SyncAccountStatus(ctx context.Context, accountID string) error
}

// Router verifies and dispatches one webhook endpoint's events. At most one
// of the handler fields is set per instance.
type Router struct {
	secret    string
	fulfiller Fulfiller
	syncer    AccountSyncer
}

// NewPaymentRouter builds the direct-charge endpoint router.
func NewPaymentRouter(secret string, fulfiller Fulfiller) *Router {
	return &Router{secret: secret, fulfiller: fulfiller}
}

// NewConnectRouter builds the connected-account endpoint router.
func NewConnectRouter(secret string, syncer AccountSyncer) *Router {
	return &Router{secret: secret, syncer: syncer}
}

// ServeHTTP implements the webhook contract: POST only, raw-body signature
// verification, then an exhaustive dispatch over known kinds. Handler
// failures answer 400 so the processor redelivers; handlers must tolerate
// that replay.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// Verification must see the exact bytes the processor signed; a
	// re-serialized body would break legitimate signatures.
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		logger.LogHTTPError(r, http.StatusBadRequest, err)
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	event, err := stripewebhook.ConstructEvent(payload, r.Header.Get("Stripe-Signature"), rt.secret)
	if err != nil {
		logger.LogError("Webhook event could not be constructed: %v", err)
		http.Error(w, "webhook error", http.StatusBadRequest)
		return
	}

	logger.LogInfo("Webhook event received: %s", event.Type)

	switch event.Type {
	case KindCheckoutSessionCompleted:
		if rt.fulfiller == nil {
			break
		}
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			logger.LogError("Failed to decode checkout session from event: %v", err)
			http.Error(w, "webhook error", http.StatusBadRequest)
			return
		}
		if err := rt.fulfiller.FulfillOrder(r.Context(), session.ID); err != nil {
			logger.LogError("Fulfillment failed for session %s: %v", session.ID, err)
			http.Error(w, "webhook error", http.StatusBadRequest)
			return
		}

	case KindAccountUpdated:
		if rt.syncer == nil {
			break
		}
		var account stripe.Account
		if err := json.Unmarshal(event.Data.Raw, &account); err != nil {
			logger.LogError("Failed to decode account from event: %v", err)
			http.Error(w, "webhook error", http.StatusBadRequest)
			return
		}
		if err := rt.syncer.SyncAccountStatus(r.Context(), account.ID); err != nil {
			logger.LogError("Account sync failed for %s: %v", account.ID, err)
			http.Error(w, "webhook error", http.StatusBadRequest)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
}
