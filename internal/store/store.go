// Package store handles seller store profile updates.
package store

import (
	"errors"
	"net/http"

	"bowlsbackend/internal/auth"
	"bowlsbackend/internal/docstore"
	"bowlsbackend/internal/httpapi"
	"bowlsbackend/internal/model"
)

// guardedFields are system-owned store fields a profile update may never
// touch; the menu and analytics have their own write paths and pendingOrders
// belongs to fulfillment.
var guardedFields = []string{"menuItems", "salesAnalytics", "pendingOrders"}

// Service wires the store handlers to the document store.
type Service struct {
	Docs *docstore.Store
}

type updateRequest struct {
	UpdatedProperties map[string]interface{} `json:"updatedProperties"`
}

// UpdateHandler shallow-merges client-supplied properties over the caller's
// store document.
func UpdateHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid := auth.UID(r.Context())

		var req updateRequest
		if err := httpapi.ParseJSONRequest(r, &req); err != nil {
			httpapi.WriteError(w, r, err)
			return
		}

		for _, field := range guardedFields {
			if _, ok := req.UpdatedProperties[field]; ok {
				httpapi.WriteError(w, r, httpapi.E(httpapi.KindInvalidArgument, "cannot update "+field))
				return
			}
		}

		err := svc.Docs.Update(r.Context(), model.CollectionStores, uid, req.UpdatedProperties)
		if errors.Is(err, docstore.ErrNotFound) {
			httpapi.WriteError(w, r, httpapi.E(httpapi.KindNotFound, "store not found"))
			return
		}
		if err != nil {
			httpapi.WriteError(w, r, httpapi.Wrap(httpapi.KindInternal, "error updating store", err))
			return
		}

		httpapi.WriteSuccess(w, r, map[string]string{"message": "store updated successfully"})
	}
}
