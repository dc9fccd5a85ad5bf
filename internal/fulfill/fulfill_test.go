package fulfill

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stripe/stripe-go/v81"

	"bowlsbackend/internal/docstore"
	"bowlsbackend/internal/model"
	"bowlsbackend/internal/payments/paymentstest"
)

func newTestReconciler(t *testing.T) (*Reconciler, *docstore.Store, *paymentstest.Fake) {
	t.Helper()

	docs, err := docstore.Open(filepath.Join(t.TempDir(), "documents.db"))
	if err != nil {
		t.Fatalf("opening docstore: %v", err)
	}
	t.Cleanup(func() { docs.Close() })

	fake := paymentstest.New()
	return &Reconciler{Docs: docs, Processor: fake}, docs, fake
}

func seedStore(t *testing.T, docs *docstore.Store, id string, existing []model.PendingOrder) {
	t.Helper()
	storeDoc := model.StoreProperties{
		StoreName: id,
		MenuItems: []model.MenuItem{
			{Name: "Ramen", Price: 1250},
			{Name: "Gyoza", Price: 600},
		},
		PendingOrders: existing,
	}
	if err := docs.Set(context.Background(), model.CollectionStores, id, &storeDoc); err != nil {
		t.Fatalf("seeding store %s: %v", id, err)
	}
}

func pendingOrders(t *testing.T, docs *docstore.Store, id string) []model.PendingOrder {
	t.Helper()
	var storeDoc model.StoreProperties
	if err := docs.Get(context.Background(), model.CollectionStores, id, &storeDoc); err != nil {
		t.Fatalf("reading store %s: %v", id, err)
	}
	return storeDoc.PendingOrders
}

func TestFulfillOrderAppendsOnePendingOrderPerItem(t *testing.T) {
	rc, docs, fake := newTestReconciler(t)
	seedStore(t, docs, "store-1", nil)
	seedStore(t, docs, "store-2", nil)

	fake.LineItemsBySession["cs_test_1"] = []*stripe.LineItem{
		paymentstest.LineItem("store-1", "Ramen", 2, 1250),
		paymentstest.LineItem("store-2", "Gyoza", 3, 600),
	}

	if err := rc.FulfillOrder(context.Background(), "cs_test_1"); err != nil {
		t.Fatalf("FulfillOrder: %v", err)
	}

	orders := pendingOrders(t, docs, "store-1")
	if len(orders) != 1 {
		t.Fatalf("store-1 has %d pending orders, want 1", len(orders))
	}
	want := model.PendingOrder{
		StoreReferenceID: "store-1",
		FoodID:           "Ramen",
		Quantity:         2,
		Price:            1250,
		Status:           "pending",
	}
	if orders[0] != want {
		t.Errorf("pending order = %+v, want %+v", orders[0], want)
	}

	if got := pendingOrders(t, docs, "store-2"); len(got) != 1 || got[0].FoodID != "Gyoza" {
		t.Errorf("store-2 pending orders = %+v", got)
	}
}

func TestFulfillOrderPricesFromCurrentMenu(t *testing.T) {
	rc, docs, fake := newTestReconciler(t)
	seedStore(t, docs, "store-1", nil)

	// The session carries the price paid at checkout; the pending order must
	// record whatever the menu says now.
	fake.LineItemsBySession["cs_test_1"] = []*stripe.LineItem{
		paymentstest.LineItem("store-1", "Ramen", 2, 999),
	}

	if err := rc.FulfillOrder(context.Background(), "cs_test_1"); err != nil {
		t.Fatalf("FulfillOrder: %v", err)
	}

	orders := pendingOrders(t, docs, "store-1")
	if orders[0].Price != 1250 {
		t.Errorf("Price = %d, want the menu price 1250", orders[0].Price)
	}
}

func TestFulfillOrderPreservesExistingOrders(t *testing.T) {
	rc, docs, fake := newTestReconciler(t)
	existing := model.PendingOrder{StoreReferenceID: "store-1", FoodID: "Gyoza", Quantity: 1, Price: 600, Status: "pending"}
	seedStore(t, docs, "store-1", []model.PendingOrder{existing})

	fake.LineItemsBySession["cs_test_1"] = []*stripe.LineItem{
		paymentstest.LineItem("store-1", "Ramen", 2, 1250),
	}

	if err := rc.FulfillOrder(context.Background(), "cs_test_1"); err != nil {
		t.Fatalf("FulfillOrder: %v", err)
	}

	orders := pendingOrders(t, docs, "store-1")
	if len(orders) != 2 {
		t.Fatalf("got %d pending orders, want 2", len(orders))
	}
	if orders[0] != existing {
		t.Errorf("existing order was rewritten: %+v", orders[0])
	}
}

func TestFulfillOrderReplayAppendsAgain(t *testing.T) {
	rc, docs, fake := newTestReconciler(t)
	seedStore(t, docs, "store-1", nil)

	fake.LineItemsBySession["cs_test_1"] = []*stripe.LineItem{
		paymentstest.LineItem("store-1", "Ramen", 2, 1250),
	}

	for i := 0; i < 2; i++ {
		if err := rc.FulfillOrder(context.Background(), "cs_test_1"); err != nil {
			t.Fatalf("FulfillOrder replay %d: %v", i, err)
		}
	}

	if orders := pendingOrders(t, docs, "store-1"); len(orders) != 2 {
		t.Errorf("got %d pending orders after replay, want 2", len(orders))
	}
}

func TestFulfillOrderAbandonsSessionOnUnknownStore(t *testing.T) {
	rc, docs, fake := newTestReconciler(t)
	seedStore(t, docs, "store-1", nil)

	// The first item no longer resolves, so the valid second item must not be
	// appended either.
	fake.LineItemsBySession["cs_test_1"] = []*stripe.LineItem{
		paymentstest.LineItem("store-gone", "Ramen", 2, 1250),
		paymentstest.LineItem("store-1", "Ramen", 2, 1250),
	}

	if err := rc.FulfillOrder(context.Background(), "cs_test_1"); err != nil {
		t.Fatalf("FulfillOrder: %v", err)
	}

	if orders := pendingOrders(t, docs, "store-1"); len(orders) != 0 {
		t.Errorf("store-1 gained %d pending orders from an abandoned session", len(orders))
	}
}

func TestFulfillOrderAbandonsSessionOnUnknownMenuItem(t *testing.T) {
	rc, docs, fake := newTestReconciler(t)
	seedStore(t, docs, "store-1", nil)

	fake.LineItemsBySession["cs_test_1"] = []*stripe.LineItem{
		paymentstest.LineItem("store-1", "Sushi", 2, 900),
	}

	if err := rc.FulfillOrder(context.Background(), "cs_test_1"); err != nil {
		t.Fatalf("FulfillOrder: %v", err)
	}

	if orders := pendingOrders(t, docs, "store-1"); len(orders) != 0 {
		t.Errorf("got %d pending orders for a removed menu item", len(orders))
	}
}

func TestFulfillOrderToleratesMissingMetadata(t *testing.T) {
	rc, docs, fake := newTestReconciler(t)
	seedStore(t, docs, "store-1", nil)

	fake.LineItemsBySession["cs_test_1"] = []*stripe.LineItem{
		{Quantity: 2}, // no Price, no metadata
	}

	if err := rc.FulfillOrder(context.Background(), "cs_test_1"); err != nil {
		t.Fatalf("FulfillOrder: %v", err)
	}

	if orders := pendingOrders(t, docs, "store-1"); len(orders) != 0 {
		t.Errorf("got %d pending orders from an item without metadata", len(orders))
	}
}

func TestFulfillOrderProcessorFailure(t *testing.T) {
	rc, _, fake := newTestReconciler(t)
	fake.FailListLineItems = true

	if err := rc.FulfillOrder(context.Background(), "cs_test_1"); err == nil {
		t.Error("FulfillOrder returned nil when listing line items failed")
	}
}
