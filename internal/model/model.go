// Package model holds the document shapes stored in the document store and
// the transient request payloads that reference them.
package model

// AccountType is the role a user account has picked during setup.
type AccountType string

const (
	AccountTypeCustomer AccountType = "customer"
	AccountTypeChef     AccountType = "chef"
	AccountTypeNone     AccountType = "none"
)

// Document store collection names.
const (
	CollectionStores   = "stores"
	CollectionUsers    = "users"
	CollectionWaitlist = "waitlist"
)

// MenuItem is a dish on a store's menu. Names act as the item key within a
// single store's menu; they are not globally unique.
type MenuItem struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Cuisine      string   `json:"cuisine"`
	DishType     string   `json:"dish_type"`
	Price        int64    `json:"price"` // minor currency units
	Hidden       bool     `json:"hidden"`
	IsRoutine    bool     `json:"is_routine"`
	IsAvailable  bool     `json:"is_available"`
	ImageURLs    []string `json:"imageURLs"`
	Restrictions []string `json:"restrictions"`
}

// PendingOrder is appended to a store's pendingOrders list when a paid
// checkout session is reconciled. It is append-only: fulfillment never reads
// or rewrites existing entries.
type PendingOrder struct {
	StoreReferenceID string `json:"store_reference_id"`
	FoodID           string `json:"foodid"`
	Quantity         int64  `json:"quantity"`
	Price            int64  `json:"price"`
	Status           string `json:"status"`
}

// SalesAnalytic is a per-item sales counter maintained outside this backend.
type SalesAnalytic struct {
	Name  string `json:"name"`
	Sales int64  `json:"sales"`
}

// Billing is a postal billing address, shared by users and stores.
type Billing struct {
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
}

// StoreSettings carries store presentation settings.
type StoreSettings struct {
	BannerDir string `json:"banner_dir"`
}

// StoreSchedule lists which menu items rotate on which days.
type StoreSchedule struct {
	Specialty []ScheduledItem `json:"specialty"`
	Routine   []ScheduledItem `json:"routine"`
}

// ScheduledItem pins a menu item to a day of the week.
type ScheduledItem struct {
	Day  int      `json:"day"`
	Item MenuItem `json:"item"`
}

// StoreProperties is the store document, keyed by the owning seller's uid.
type StoreProperties struct {
	StoreName      string          `json:"store_name"`
	StoreBilling   Billing         `json:"store_billing"`
	StoreSettings  StoreSettings   `json:"store_settings"`
	MenuItems      []MenuItem      `json:"menuItems"`
	SalesAnalytics []SalesAnalytic `json:"salesAnalytics"`
	PendingOrders  []PendingOrder  `json:"pendingOrders"`
	Schedule       StoreSchedule   `json:"schedule"`
}

// FindMenuItem returns the menu item whose name matches, or nil.
func (s *StoreProperties) FindMenuItem(name string) *MenuItem {
	for i := range s.MenuItems {
		if s.MenuItems[i].Name == name {
			return &s.MenuItems[i]
		}
	}
	return nil
}

// StripeAccountProperties mirrors the connected account's status flags. Only
// backend handlers and the connect webhook may write these.
type StripeAccountProperties struct {
	PayoutsEnabled   bool   `json:"payouts_enabled"`
	ChargesEnabled   bool   `json:"charges_enabled"`
	DetailsSubmitted bool   `json:"details_submitted"`
	StripeID         string `json:"stripe_id"`
}

// UserImmutable holds the system-owned part of a user document. Clients can
// read it but every write path must go through a backend handler.
type UserImmutable struct {
	TOSAccepted           bool                    `json:"tos_accepted"`
	AccountType           AccountType             `json:"account_type"`
	UID                   string                  `json:"uid"`
	StripeProperties      StripeAccountProperties `json:"stripe_properties"`
	LastEmailVerification int64                   `json:"lastEmailVerification"`
}

// UserCustomer carries customer-side state.
type UserCustomer struct {
	CartItems []MenuItem `json:"cart_items"`
}

// UserFSSettings points at the user's uploaded imagery.
type UserFSSettings struct {
	ProfileImageDir string `json:"profile_image_dir"`
	CoverImageDir   string `json:"cover_image_dir"`
}

// UserNotifications toggles notification categories.
type UserNotifications struct {
	Orders     bool `json:"orders"`
	Feedback   bool `json:"feedback"`
	Promotions bool `json:"promotions"`
}

// UserSettings groups the client-editable settings.
type UserSettings struct {
	FS            UserFSSettings    `json:"fs"`
	Notifications UserNotifications `json:"notifications"`
}

// UserProperties is the user document, keyed by uid.
type UserProperties struct {
	Email     string        `json:"email"`
	Name      string        `json:"name"`
	Billing   Billing       `json:"billing"`
	Customer  UserCustomer  `json:"customer"`
	Settings  UserSettings  `json:"settings"`
	Immutable UserImmutable `json:"immutable"`
}

// WaitlistEntry is a signup form submission, keyed by email. Entries are
// immutable once created.
type WaitlistEntry struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// CartItem is one entry of a checkout request. It is never persisted; uid is
// the menu item name within the referenced store.
type CartItem struct {
	StoreReferenceID string `json:"store_reference_id"`
	UID              string `json:"uid"`
	Quantity         int64  `json:"quantity"`
}
