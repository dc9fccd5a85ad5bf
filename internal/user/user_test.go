package user

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"bowlsbackend/internal/account"
	"bowlsbackend/internal/auth"
	"bowlsbackend/internal/config"
	"bowlsbackend/internal/docstore"
	"bowlsbackend/internal/model"
	"bowlsbackend/internal/payments/paymentstest"
)

func newTestService(t *testing.T) (*Service, *docstore.Store, *paymentstest.Fake) {
	t.Helper()

	docs, err := docstore.Open(filepath.Join(t.TempDir(), "documents.db"))
	if err != nil {
		t.Fatalf("opening docstore: %v", err)
	}
	t.Cleanup(func() { docs.Close() })

	fake := paymentstest.New()
	cfg := &config.Config{HomeCountry: "US", SiteBaseURL: "https://example.test"}
	accounts := &account.Service{Docs: docs, Processor: fake, Cfg: cfg}
	return &Service{Docs: docs, Accounts: accounts, Processor: fake}, docs, fake
}

// do runs handler with an authenticated request carrying body as JSON.
func do(t *testing.T, handler http.HandlerFunc, uid, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(auth.WithUID(req.Context(), uid))
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

func getUser(t *testing.T, docs *docstore.Store, uid string) model.UserProperties {
	t.Helper()
	var userDoc model.UserProperties
	if err := docs.Get(context.Background(), model.CollectionUsers, uid, &userDoc); err != nil {
		t.Fatalf("reading user %s: %v", uid, err)
	}
	return userDoc
}

func TestCreateProvisionsUserAndStore(t *testing.T) {
	svc, docs, _ := newTestService(t)

	rr := do(t, CreateHandler(svc), "u1", `{"email":"u1@example.test","name":"Nori"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	userDoc := getUser(t, docs, "u1")
	if userDoc.Email != "u1@example.test" || userDoc.Name != "Nori" {
		t.Errorf("user = %+v", userDoc)
	}
	if userDoc.Immutable.UID != "u1" {
		t.Errorf("uid = %q, want u1", userDoc.Immutable.UID)
	}
	if userDoc.Immutable.AccountType != model.AccountTypeNone {
		t.Errorf("account type = %q, want none", userDoc.Immutable.AccountType)
	}
	if userDoc.Immutable.TOSAccepted {
		t.Error("new user has tos_accepted set")
	}
	n := userDoc.Settings.Notifications
	if !n.Orders || !n.Feedback || !n.Promotions {
		t.Errorf("notifications = %+v, want all enabled", n)
	}

	ok, err := docs.Exists(context.Background(), model.CollectionStores, "u1")
	if err != nil || !ok {
		t.Errorf("store document missing after create (exists=%t, err=%v)", ok, err)
	}
}

func TestCreateDefaultsName(t *testing.T) {
	svc, docs, _ := newTestService(t)

	rr := do(t, CreateHandler(svc), "u1", `{"email":"u1@example.test"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	if got := getUser(t, docs, "u1").Name; got != "John Doe" {
		t.Errorf("Name = %q, want the placeholder", got)
	}
}

func TestCreateRejectsExistingUser(t *testing.T) {
	svc, _, _ := newTestService(t)

	do(t, CreateHandler(svc), "u1", `{"email":"u1@example.test","name":"Nori"}`)
	rr := do(t, CreateHandler(svc), "u1", `{"email":"other@example.test","name":"Imposter"}`)

	if rr.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusConflict)
	}
}

func TestUpdatePreservesImmutable(t *testing.T) {
	svc, docs, _ := newTestService(t)
	do(t, CreateHandler(svc), "u1", `{"email":"u1@example.test","name":"Nori"}`)

	body := `{"updatedProperties":{
		"name":"New Name",
		"immutable":{"account_type":"chef","tos_accepted":true,"uid":"u1"}
	}}`
	rr := do(t, UpdateHandler(svc), "u1", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	userDoc := getUser(t, docs, "u1")
	if userDoc.Name != "New Name" {
		t.Errorf("Name = %q, want the updated value", userDoc.Name)
	}
	if userDoc.Immutable.AccountType != model.AccountTypeNone || userDoc.Immutable.TOSAccepted {
		t.Errorf("immutable block was overwritten by the client: %+v", userDoc.Immutable)
	}
}

func TestUpdateUnknownUser(t *testing.T) {
	svc, _, _ := newTestService(t)

	rr := do(t, UpdateHandler(svc), "ghost", `{"updatedProperties":{"name":"x"}}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestSetupAccountTypeCustomer(t *testing.T) {
	svc, docs, fake := newTestService(t)
	do(t, CreateHandler(svc), "u1", `{"email":"u1@example.test","name":"Nori"}`)

	body := `{"type_setup":"account_type","updatedProperties":{"immutable":{"account_type":"customer"}}}`
	rr := do(t, SetupHandler(svc), "u1", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	userDoc := getUser(t, docs, "u1")
	if userDoc.Immutable.AccountType != model.AccountTypeCustomer {
		t.Errorf("account type = %q, want customer", userDoc.Immutable.AccountType)
	}
	if fake.AccountAttempts != 0 {
		t.Error("a connected account was created for a customer")
	}
}

func TestSetupAccountTypeChefCreatesConnectedAccount(t *testing.T) {
	svc, docs, fake := newTestService(t)
	do(t, CreateHandler(svc), "u1", `{"email":"u1@example.test","name":"Nori"}`)

	body := `{"type_setup":"account_type","updatedProperties":{"immutable":{"account_type":"chef"}}}`
	rr := do(t, SetupHandler(svc), "u1", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	userDoc := getUser(t, docs, "u1")
	if userDoc.Immutable.AccountType != model.AccountTypeChef {
		t.Errorf("account type = %q, want chef", userDoc.Immutable.AccountType)
	}
	if userDoc.Immutable.StripeProperties.StripeID == "" {
		t.Error("chef user has no connected account ID")
	}
	if _, ok := fake.Accounts[userDoc.Immutable.StripeProperties.StripeID]; !ok {
		t.Errorf("persisted account ID %q does not match a created account", userDoc.Immutable.StripeProperties.StripeID)
	}
}

func TestSetupChefProcessorFailureLeavesUserUntouched(t *testing.T) {
	svc, docs, fake := newTestService(t)
	do(t, CreateHandler(svc), "u1", `{"email":"u1@example.test","name":"Nori"}`)
	fake.FailCreateAccount = true

	body := `{"type_setup":"account_type","updatedProperties":{"immutable":{"account_type":"chef"}}}`
	rr := do(t, SetupHandler(svc), "u1", body)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusInternalServerError)
	}

	userDoc := getUser(t, docs, "u1")
	if userDoc.Immutable.StripeProperties.StripeID != "" {
		t.Error("an account ID was persisted although account creation failed")
	}
	if userDoc.Immutable.AccountType != model.AccountTypeNone {
		t.Errorf("account type = %q, want it still unset", userDoc.Immutable.AccountType)
	}
}

func TestSetupAccountTypeIsOneTime(t *testing.T) {
	svc, _, _ := newTestService(t)
	do(t, CreateHandler(svc), "u1", `{"email":"u1@example.test","name":"Nori"}`)

	body := `{"type_setup":"account_type","updatedProperties":{"immutable":{"account_type":"customer"}}}`
	do(t, SetupHandler(svc), "u1", body)
	rr := do(t, SetupHandler(svc), "u1", body)

	if rr.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d on a second type choice", rr.Code, http.StatusConflict)
	}
}

func TestSetupRejectsInvalidAccountType(t *testing.T) {
	svc, docs, _ := newTestService(t)
	do(t, CreateHandler(svc), "u1", `{"email":"u1@example.test","name":"Nori"}`)

	body := `{"type_setup":"account_type","updatedProperties":{"immutable":{"account_type":"admin"}}}`
	rr := do(t, SetupHandler(svc), "u1", body)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
	if got := getUser(t, docs, "u1").Immutable.AccountType; got != model.AccountTypeNone {
		t.Errorf("account type = %q after a rejected setup", got)
	}
}

func TestSetupTOSAgreementIsOneTime(t *testing.T) {
	svc, docs, _ := newTestService(t)
	do(t, CreateHandler(svc), "u1", `{"email":"u1@example.test","name":"Nori"}`)

	body := `{"type_setup":"tos_agreement"}`
	rr := do(t, SetupHandler(svc), "u1", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if !getUser(t, docs, "u1").Immutable.TOSAccepted {
		t.Error("tos_accepted not set")
	}

	rr = do(t, SetupHandler(svc), "u1", body)
	if rr.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d on a second acceptance", rr.Code, http.StatusConflict)
	}
}

func TestSetupRejectsUnknownSetupType(t *testing.T) {
	svc, _, _ := newTestService(t)
	do(t, CreateHandler(svc), "u1", `{"email":"u1@example.test","name":"Nori"}`)

	rr := do(t, SetupHandler(svc), "u1", `{"type_setup":"favorite_color"}`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestDeleteRemovesDocumentsAndConnectedAccount(t *testing.T) {
	svc, docs, fake := newTestService(t)
	do(t, CreateHandler(svc), "u1", `{"email":"u1@example.test","name":"Nori"}`)
	do(t, SetupHandler(svc), "u1",
		`{"type_setup":"account_type","updatedProperties":{"immutable":{"account_type":"chef"}}}`)

	stripeID := getUser(t, docs, "u1").Immutable.StripeProperties.StripeID

	rr := do(t, DeleteHandler(svc), "u1", `{}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	for _, collection := range []string{model.CollectionUsers, model.CollectionStores} {
		ok, err := docs.Exists(context.Background(), collection, "u1")
		if err != nil {
			t.Fatalf("Exists(%s): %v", collection, err)
		}
		if ok {
			t.Errorf("%s document still present after delete", collection)
		}
	}

	if len(fake.DeletedAccounts) != 1 || fake.DeletedAccounts[0] != stripeID {
		t.Errorf("DeletedAccounts = %v, want [%s]", fake.DeletedAccounts, stripeID)
	}
}

func TestDeleteWithoutConnectedAccount(t *testing.T) {
	svc, _, fake := newTestService(t)
	do(t, CreateHandler(svc), "u1", `{"email":"u1@example.test","name":"Nori"}`)

	rr := do(t, DeleteHandler(svc), "u1", `{}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if len(fake.DeletedAccounts) != 0 {
		t.Errorf("DeletedAccounts = %v for a user without one", fake.DeletedAccounts)
	}
}

func TestAccountLinkForChef(t *testing.T) {
	svc, _, _ := newTestService(t)
	do(t, CreateHandler(svc), "u1", `{"email":"u1@example.test","name":"Nori"}`)
	do(t, SetupHandler(svc), "u1",
		`{"type_setup":"account_type","updatedProperties":{"immutable":{"account_type":"chef"}}}`)

	rr := do(t, AccountLinkHandler(svc), "u1", `{}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}

	var body struct {
		Result struct {
			URL string `json:"url"`
		} `json:"result"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if !strings.HasPrefix(body.Result.URL, "https://connect.stripe.test/setup/") {
		t.Errorf("url = %q", body.Result.URL)
	}
}

func TestAccountLinkWithoutConnectedAccount(t *testing.T) {
	svc, _, _ := newTestService(t)
	do(t, CreateHandler(svc), "u1", `{"email":"u1@example.test","name":"Nori"}`)

	rr := do(t, AccountLinkHandler(svc), "u1", `{}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}
