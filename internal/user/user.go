// Package user implements the user lifecycle: provisioning, profile updates,
// deletion, account setup and seller onboarding links.
package user

import (
	"errors"
	"net/http"

	"bowlsbackend/internal/account"
	"bowlsbackend/internal/auth"
	"bowlsbackend/internal/docstore"
	"bowlsbackend/internal/httpapi"
	"bowlsbackend/internal/logger"
	"bowlsbackend/internal/model"
	"bowlsbackend/internal/payments"
)

// Service wires the user handlers to their collaborators.
type Service struct {
	Docs      *docstore.Store
	Accounts  *account.Service
	Processor payments.Client
}

type createRequest struct {
	Email           string `json:"email"`
	Name            string `json:"name"`
	ProfileImageDir string `json:"profile_image_dir"`
}

// CreateHandler provisions the user document and an empty store document for
// a freshly authenticated uid.
func CreateHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := auth.UID(r.Context())

		var req createRequest
		if err := httpapi.ParseJSONRequest(r, &req); err != nil {
			httpapi.WriteError(w, r, err)
			return
		}

		exists, err := svc.Docs.Exists(r.Context(), model.CollectionUsers, uid)
		if err != nil {
			httpapi.WriteError(w, r, httpapi.Wrap(httpapi.KindInternal, "error creating new user", err))
			return
		}
		if exists {
			httpapi.WriteError(w, r, httpapi.E(httpapi.KindAlreadyExists, "user already exists"))
			return
		}

		name := req.Name
		if name == "" {
			name = "John Doe"
		}

		storeDoc := model.StoreProperties{
			StoreName:      req.Name,
			MenuItems:      []model.MenuItem{},
			SalesAnalytics: []model.SalesAnalytic{},
			PendingOrders:  []model.PendingOrder{},
			Schedule: model.StoreSchedule{
				Specialty: []model.ScheduledItem{},
				Routine:   []model.ScheduledItem{},
			},
		}

		userDoc := model.UserProperties{
			Email: req.Email,
			Name:  name,
			Customer: model.UserCustomer{
				CartItems: []model.MenuItem{},
			},
			Settings: model.UserSettings{
				FS: model.UserFSSettings{
					ProfileImageDir: req.ProfileImageDir,
				},
				Notifications: model.UserNotifications{
					Orders:     true,
					Feedback:   true,
					Promotions: true,
				},
			},
			Immutable: model.UserImmutable{
				TOSAccepted: false,
				AccountType: model.AccountTypeNone,
				UID:         uid,
			},
		}

		if err := svc.Docs.Set(r.Context(), model.CollectionStores, uid, &storeDoc); err != nil {
			httpapi.WriteError(w, r, httpapi.Wrap(httpapi.KindInternal, "error creating new user", err))
			return
		}
		if err := svc.Docs.Set(r.Context(), model.CollectionUsers, uid, &userDoc); err != nil {
			httpapi.WriteError(w, r, httpapi.Wrap(httpapi.KindInternal, "error creating new user", err))
			return
		}

		logger.LogInfo("Provisioned user and store documents for %s", uid)
		httpapi.WriteSuccess(w, r, userDoc)
	}
}

type updateRequest struct {
	UpdatedProperties map[string]interface{} `json:"updatedProperties"`
}

// UpdateHandler shallow-merges client-supplied properties over the stored
// user. The immutable block always survives the merge untouched.
func UpdateHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := auth.UID(r.Context())

		var req updateRequest
		if err := httpapi.ParseJSONRequest(r, &req); err != nil {
			httpapi.WriteError(w, r, err)
			return
		}

		current := make(map[string]interface{})
		err := svc.Docs.Get(r.Context(), model.CollectionUsers, uid, &current)
		if errors.Is(err, docstore.ErrNotFound) {
			httpapi.WriteError(w, r, httpapi.E(httpapi.KindNotFound, "user not found"))
			return
		}
		if err != nil {
			httpapi.WriteError(w, r, httpapi.Wrap(httpapi.KindInternal, "error updating user", err))
			return
		}

		immutable := current["immutable"]
		for k, v := range req.UpdatedProperties {
			current[k] = v
		}
		current["immutable"] = immutable

		if err := svc.Docs.Set(r.Context(), model.CollectionUsers, uid, current); err != nil {
			httpapi.WriteError(w, r, httpapi.Wrap(httpapi.KindInternal, "error updating user", err))
			return
		}

		httpapi.WriteSuccess(w, r, current)
	}
}

// DeleteHandler removes the user's documents and, when one exists, their
// connected account.
func DeleteHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := auth.UID(r.Context())

		var userDoc model.UserProperties
		err := svc.Docs.Get(r.Context(), model.CollectionUsers, uid, &userDoc)
		if errors.Is(err, docstore.ErrNotFound) {
			httpapi.WriteError(w, r, httpapi.E(httpapi.KindNotFound, "user not found"))
			return
		}
		if err != nil {
			httpapi.WriteError(w, r, httpapi.Wrap(httpapi.KindInternal, "error deleting user", err))
			return
		}

		if stripeID := userDoc.Immutable.StripeProperties.StripeID; stripeID != "" {
			if err := svc.Processor.DeleteAccount(r.Context(), stripeID); err != nil {
				httpapi.WriteError(w, r, httpapi.Wrap(httpapi.KindInternal, "error deleting user", err))
				return
			}
		}

		if err := svc.Docs.Delete(r.Context(), model.CollectionStores, uid); err != nil {
			httpapi.WriteError(w, r, httpapi.Wrap(httpapi.KindInternal, "error deleting user", err))
			return
		}
		if err := svc.Docs.Delete(r.Context(), model.CollectionUsers, uid); err != nil {
			httpapi.WriteError(w, r, httpapi.Wrap(httpapi.KindInternal, "error deleting user", err))
			return
		}

		logger.LogInfo("Deleted user %s", uid)
		httpapi.WriteSuccess(w, r, map[string]string{"status": "deleted"})
	}
}

type setupRequest struct {
	TypeSetup         string `json:"type_setup"`
	UpdatedProperties struct {
		Immutable struct {
			AccountType model.AccountType `json:"account_type"`
		} `json:"immutable"`
	} `json:"updatedProperties"`
}

// SetupHandler finalizes one-time account choices: the account type and the
// terms-of-service agreement. Either can be set exactly once. Choosing the
// chef type also creates the seller's connected account; its ID is persisted
// only after the processor call succeeds.
func SetupHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := auth.UID(r.Context())

		var req setupRequest
		if err := httpapi.ParseJSONRequest(r, &req); err != nil {
			httpapi.WriteError(w, r, err)
			return
		}

		var userDoc model.UserProperties
		err := svc.Docs.Get(r.Context(), model.CollectionUsers, uid, &userDoc)
		if errors.Is(err, docstore.ErrNotFound) {
			httpapi.WriteError(w, r, httpapi.E(httpapi.KindNotFound, "user not found"))
			return
		}
		if err != nil {
			httpapi.WriteError(w, r, httpapi.Wrap(httpapi.KindInternal, "error setting up account", err))
			return
		}

		switch req.TypeSetup {
		case "account_type":
			if userDoc.Immutable.AccountType != model.AccountTypeNone {
				httpapi.WriteError(w, r, httpapi.E(httpapi.KindAlreadyExists, "user account type already set"))
				return
			}

			accountType := req.UpdatedProperties.Immutable.AccountType
			if accountType != model.AccountTypeCustomer && accountType != model.AccountTypeChef {
				httpapi.WriteError(w, r, httpapi.E(httpapi.KindInvalidArgument, "invalid account type"))
				return
			}

			if accountType == model.AccountTypeChef {
				acct, err := svc.Accounts.CreateAccount(r.Context(), &userDoc, svc.Accounts.Cfg.HomeCountry)
				if err != nil {
					httpapi.WriteError(w, r, err)
					return
				}
				userDoc.Immutable.StripeProperties.StripeID = acct.ID
			}

			userDoc.Immutable.AccountType = accountType
			if err := svc.Docs.Set(r.Context(), model.CollectionUsers, uid, &userDoc); err != nil {
				httpapi.WriteError(w, r, httpapi.Wrap(httpapi.KindInternal, "error setting up account", err))
				return
			}
			httpapi.WriteSuccess(w, r, userDoc)

		case "tos_agreement":
			if userDoc.Immutable.TOSAccepted {
				httpapi.WriteError(w, r, httpapi.E(httpapi.KindAlreadyExists, "user has already accepted the terms of service"))
				return
			}

			userDoc.Immutable.TOSAccepted = true
			if err := svc.Docs.Set(r.Context(), model.CollectionUsers, uid, &userDoc); err != nil {
				httpapi.WriteError(w, r, httpapi.Wrap(httpapi.KindInternal, "error setting up account", err))
				return
			}
			httpapi.WriteSuccess(w, r, userDoc)

		default:
			httpapi.WriteError(w, r, httpapi.E(httpapi.KindInvalidArgument, "invalid setup type"))
		}
	}
}

// AccountLinkHandler returns a fresh onboarding link for the caller's
// connected account.
func AccountLinkHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := auth.UID(r.Context())

		var userDoc model.UserProperties
		err := svc.Docs.Get(r.Context(), model.CollectionUsers, uid, &userDoc)
		if errors.Is(err, docstore.ErrNotFound) {
			httpapi.WriteError(w, r, httpapi.E(httpapi.KindNotFound, "user not found"))
			return
		}
		if err != nil {
			httpapi.WriteError(w, r, httpapi.Wrap(httpapi.KindInternal, "error generating account link", err))
			return
		}

		url, err := svc.Accounts.GenerateLink(r.Context(), userDoc.Immutable.StripeProperties.StripeID)
		if err != nil {
			httpapi.WriteError(w, r, err)
			return
		}

		httpapi.WriteSuccess(w, r, map[string]string{"url": url})
	}
}
