// Package cart owns the authoritative per-user shopping cart. State lives
// in a persistent key-value store and every mutation writes the full cart
// back (write-through, last writer wins). Storage failures never propagate
// to callers: the cart is not safety-critical and must not block the
// storefront, so failures are logged and the user sees an empty cart.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/sondregut/pvelite/internal/domain"
	"github.com/sondregut/pvelite/internal/kvstore"
	"github.com/sondregut/pvelite/internal/money"
	"github.com/sondregut/pvelite/internal/notify"
	"golang.org/x/sync/singleflight"
)

const (
	cartKeyPrefix     = "cart:"
	purchaseKeyPrefix = "lastPurchase:"
)

type Manager struct {
	store    kvstore.Store
	notifier notify.Notifier
	sfg      singleflight.Group // collapses concurrent loads per user

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	panelMu sync.Mutex
	panel   map[string]bool
}

func NewManager(store kvstore.Store, notifier notify.Notifier) *Manager {
	return &Manager{
		store:    store,
		notifier: notifier,
		locks:    make(map[string]*sync.Mutex),
		panel:    make(map[string]bool),
	}
}

// userLock serializes mutations per user so merge-or-append stays atomic.
// Carts for different users never contend.
func (m *Manager) userLock(userID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		m.locks[userID] = l
	}
	return l
}

// Get loads the user's cart. A missing key yields an empty cart; a corrupt
// or unreadable stored value is logged and also yields an empty cart.
func (m *Manager) Get(ctx context.Context, userID string) *domain.Cart {
	v, _, _ := m.sfg.Do(cartKeyPrefix+userID, func() (interface{}, error) {
		return m.load(ctx, userID), nil
	})
	return v.(*domain.Cart)
}

func (m *Manager) load(ctx context.Context, userID string) *domain.Cart {
	cart := &domain.Cart{UserID: userID}

	data, err := m.store.Get(ctx, cartKeyPrefix+userID)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			log.Printf("cart load failed for user %s: %v", userID, err)
		}
		return cart
	}

	items, err := decodeItems(data)
	if err != nil {
		log.Printf("discarding unparseable stored cart for user %s: %v", userID, err)
		return cart
	}

	cart.Items = items
	return cart
}

func (m *Manager) persist(ctx context.Context, cart *domain.Cart) {
	data, err := encodeItems(cart.Items)
	if err != nil {
		log.Printf("cart encode failed for user %s: %v", cart.UserID, err)
		return
	}
	if err := m.store.Set(ctx, cartKeyPrefix+cart.UserID, data); err != nil {
		log.Printf("cart persist failed for user %s: %v", cart.UserID, err)
	}
}

// AddToCart merges the candidate item into the cart. An existing line with
// the same (product, option) key gets its quantity incremented in place;
// otherwise the item is appended. Opens the cart panel and emits an
// "added" or "quantity updated" notification.
func (m *Manager) AddToCart(ctx context.Context, userID string, item domain.LineItem) {
	if item.Quantity <= 0 {
		log.Printf("ignoring add of %q with non-positive quantity %d", item.Name, item.Quantity)
		return
	}
	if item.UnitPriceCents == 0 {
		item.UnitPriceCents = money.ParseDisplayPrice(item.Price)
	}

	l := m.userLock(userID)
	l.Lock()
	defer l.Unlock()

	cart := m.load(ctx, userID)

	merged := false
	for i := range cart.Items {
		if cart.Items[i].SameKey(item.ProductID, item.Option) {
			cart.Items[i].Quantity += item.Quantity
			merged = true
			break
		}
	}
	if !merged {
		cart.Items = append(cart.Items, item)
	}

	m.persist(ctx, cart)
	m.setPanelOpen(userID, true)

	if merged {
		m.notifier.Notify(userID, notify.Event{Level: notify.LevelSuccess, Message: fmt.Sprintf("%s quantity updated", item.Name)})
	} else {
		m.notifier.Notify(userID, notify.Event{Level: notify.LevelSuccess, Message: fmt.Sprintf("%s added to cart", item.Name)})
	}
}

// RemoveFromCart removes the line matching (productID, option). Removing an
// absent line is a silent no-op, not an error.
func (m *Manager) RemoveFromCart(ctx context.Context, userID string, productID int64, option string) {
	l := m.userLock(userID)
	l.Lock()
	defer l.Unlock()

	cart := m.load(ctx, userID)

	for i := range cart.Items {
		if cart.Items[i].SameKey(productID, option) {
			name := cart.Items[i].Name
			cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
			m.persist(ctx, cart)
			m.notifier.Notify(userID, notify.Event{Level: notify.LevelInfo, Message: fmt.Sprintf("%s removed from cart", name)})
			return
		}
	}
}

// UpdateQuantity sets the matching line's quantity to exactly quantity.
// A value <= 0 removes the line; the cart never holds a zero-quantity row.
// No-op if no line matches.
func (m *Manager) UpdateQuantity(ctx context.Context, userID string, productID int64, quantity int, option string) {
	if quantity <= 0 {
		m.RemoveFromCart(ctx, userID, productID, option)
		return
	}

	l := m.userLock(userID)
	l.Lock()
	defer l.Unlock()

	cart := m.load(ctx, userID)

	for i := range cart.Items {
		if cart.Items[i].SameKey(productID, option) {
			cart.Items[i].Quantity = quantity
			m.persist(ctx, cart)
			return
		}
	}
}

// ClearCart empties the cart. Pass notifyUser=false for automatic clears
// (checkout completion) so the user is not told about something they
// already know happened.
func (m *Manager) ClearCart(ctx context.Context, userID string, notifyUser bool) {
	l := m.userLock(userID)
	l.Lock()
	defer l.Unlock()

	m.persist(ctx, &domain.Cart{UserID: userID})

	if notifyUser {
		m.notifier.Notify(userID, notify.Event{Level: notify.LevelInfo, Message: "cart cleared"})
	}
}

// TotalCents recomputes the cart total on every call.
func (m *Manager) TotalCents(ctx context.Context, userID string) int64 {
	return m.Get(ctx, userID).TotalCents()
}

// ItemCount sums quantities across all lines.
func (m *Manager) ItemCount(ctx context.Context, userID string) int {
	return m.Get(ctx, userID).ItemCount()
}

// StorePurchaseInfo copies the live cart's lines into the independently
// keyed purchase snapshot, overwriting any prior snapshot. Called right
// before handing off to the hosted payment page so the post-checkout view
// can still describe the order after the cart is cleared.
func (m *Manager) StorePurchaseInfo(ctx context.Context, userID string) {
	cart := m.Get(ctx, userID)

	data, err := json.Marshal(domain.PurchaseSnapshot{Items: cart.Items})
	if err != nil {
		log.Printf("purchase snapshot encode failed for user %s: %v", userID, err)
		return
	}
	if err := m.store.Set(ctx, purchaseKeyPrefix+userID, data); err != nil {
		log.Printf("purchase snapshot persist failed for user %s: %v", userID, err)
	}
}

// LastPurchaseInfo returns the stored purchase snapshot, or nil if none
// exists or the stored value is unparseable (logged, not surfaced).
func (m *Manager) LastPurchaseInfo(ctx context.Context, userID string) *domain.PurchaseSnapshot {
	data, err := m.store.Get(ctx, purchaseKeyPrefix+userID)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			log.Printf("purchase snapshot load failed for user %s: %v", userID, err)
		}
		return nil
	}

	var snap domain.PurchaseSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Printf("discarding unparseable purchase snapshot for user %s: %v", userID, err)
		return nil
	}
	return &snap
}

// ClearPurchaseInfo deletes the purchase snapshot key entirely.
func (m *Manager) ClearPurchaseInfo(ctx context.Context, userID string) {
	if err := m.store.Delete(ctx, purchaseKeyPrefix+userID); err != nil {
		log.Printf("purchase snapshot delete failed for user %s: %v", userID, err)
	}
}

// PanelOpen reports the show-cart-panel UI intent for the user and resets
// nothing; the storefront dismisses it via SetPanelOpen.
func (m *Manager) PanelOpen(userID string) bool {
	m.panelMu.Lock()
	defer m.panelMu.Unlock()
	return m.panel[userID]
}

func (m *Manager) SetPanelOpen(userID string, open bool) {
	m.setPanelOpen(userID, open)
}

func (m *Manager) setPanelOpen(userID string, open bool) {
	m.panelMu.Lock()
	defer m.panelMu.Unlock()
	if open {
		m.panel[userID] = true
		return
	}
	delete(m.panel, userID)
}
