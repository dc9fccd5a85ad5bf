// Package waitlist stores signup-form submissions keyed by email.
package waitlist

import (
	"net/http"

	"bowlsbackend/internal/docstore"
	"bowlsbackend/internal/httpapi"
	"bowlsbackend/internal/logger"
	"bowlsbackend/internal/model"
)

// Service wires the waitlist handler to the document store.
type Service struct {
	Docs *docstore.Store
}

// JoinHandler adds one entry to the waitlist. Entries are keyed by email and
// immutable: a second signup with the same email is rejected, never merged.
func JoinHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var entry model.WaitlistEntry
		if err := httpapi.ParseJSONRequest(r, &entry); err != nil {
			httpapi.WriteError(w, r, err)
			return
		}

		if entry.Name == "" || entry.Email == "" || entry.Phone == "" {
			httpapi.WriteError(w, r, httpapi.E(httpapi.KindInvalidArgument, "missing required fields"))
			return
		}

		exists, err := svc.Docs.Exists(r.Context(), model.CollectionWaitlist, entry.Email)
		if err != nil {
			httpapi.WriteError(w, r, httpapi.Wrap(httpapi.KindInternal, "error adding user to waitlist", err))
			return
		}
		if exists {
			httpapi.WriteError(w, r, httpapi.E(httpapi.KindAlreadyExists, "user already on waitlist"))
			return
		}

		if err := svc.Docs.Set(r.Context(), model.CollectionWaitlist, entry.Email, &entry); err != nil {
			httpapi.WriteError(w, r, httpapi.Wrap(httpapi.KindInternal, "error adding user to waitlist", err))
			return
		}

		logger.LogInfo("Waitlist signup stored for %s", entry.Email)
		httpapi.WriteSuccess(w, r, entry)
	}
}
