package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/example/technest/internal/backend"
	"github.com/example/technest/internal/infrastructure/store"
	"github.com/example/technest/internal/metrics"
)

// Operation names used in sync errors, logs and metrics.
const (
	OpAdd       = "add"
	OpRemove    = "remove"
	OpIncrement = "increment"
	OpDecrement = "decrement"
	OpClear     = "clear"
	OpRefresh   = "refresh"
)

// SyncError reports a remote cart call that failed after the local mutation
// was applied. It is recoverable: the local cart stays usable.
type SyncError struct {
	Op         string
	Err        error
	RolledBack bool
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("failed to sync cart %s: %v", e.Op, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// Options configures a Container.
type Options struct {
	SessionID string
	// Remote is the backend cart. Nil keeps the cart purely local.
	Remote  backend.CartAPI
	State   store.StateStore
	Events  store.EventLog
	Log     logrus.FieldLogger
	Metrics *metrics.Metrics
	// RollbackOnSyncFailure restores the pre-mutation cart when the remote
	// call fails.
	RollbackOnSyncFailure bool
}

// Container holds one session's cart. Mutations are applied locally first and
// then synced to the remote cart when one is configured.
type Container struct {
	mu   sync.Mutex
	cart Cart

	sessionID string
	remote    backend.CartAPI
	state     store.StateStore
	events    store.EventLog
	log       logrus.FieldLogger
	metrics   *metrics.Metrics
	rollback  bool

	refreshes singleflight.Group
	now       func() time.Time
}

func NewContainer(opts Options) *Container {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Container{
		cart:      Cart{}.Clear(),
		sessionID: opts.SessionID,
		remote:    opts.Remote,
		state:     opts.State,
		events:    opts.Events,
		log:       log.WithField("session_id", opts.SessionID),
		metrics:   opts.Metrics,
		rollback:  opts.RollbackOnSyncFailure,
		now:       time.Now,
	}
}

// Remote reports whether mutations are synced to a backend cart.
func (c *Container) Remote() bool {
	return c.remote != nil
}

// Snapshot returns a copy of the current cart.
func (c *Container) Snapshot() Cart {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Cart{Items: c.cart.items(), TotalQuantity: c.cart.TotalQuantity, TotalPrice: c.cart.TotalPrice}
}

func (c *Container) Totals() (quantity int, price int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cart.TotalQuantity, c.cart.TotalPrice
}

// Load rehydrates the cart. The persisted copy is read first so that remote
// lines without display data keep the snapshots captured locally.
func (c *Container) Load(ctx context.Context) error {
	var persisted Cart
	if c.state != nil {
		found, err := c.state.Load(ctx, c.sessionID, store.KeyCart, &persisted)
		if err != nil {
			return fmt.Errorf("failed to load persisted cart: %w", err)
		}
		if found {
			c.set(persisted.Normalize())
		}
	}
	if c.remote == nil {
		return nil
	}
	return c.fetch(ctx)
}

// Refresh re-syncs the cart from the backend. Concurrent calls share one
// request. Without a remote cart it reloads the persisted copy.
func (c *Container) Refresh(ctx context.Context) error {
	_, err, _ := c.refreshes.Do(OpRefresh, func() (any, error) {
		if c.remote == nil {
			return nil, c.Load(ctx)
		}
		return nil, c.fetch(ctx)
	})
	return err
}

func (c *Container) fetch(ctx context.Context) error {
	remote, err := c.remote.GetCart(ctx)
	if err != nil {
		c.metrics.CartSyncFailure(OpRefresh)
		return &SyncError{Op: OpRefresh, Err: err}
	}

	c.mu.Lock()
	known := make(map[string]*Snapshot, len(c.cart.Items))
	for _, item := range c.cart.Items {
		known[item.ProductID] = item.Snapshot
	}
	items := make([]LineItem, 0, len(remote.Products))
	for _, line := range remote.Products {
		items = append(items, LineItem{
			ProductID: line.Product.ID,
			Quantity:  line.Quantity,
			Snapshot:  snapshotOf(line.Product, known[line.Product.ID]),
		})
	}
	c.cart = build(items)
	next := c.cart
	c.mu.Unlock()

	c.persist(ctx, next)
	return nil
}

// snapshotOf prefers the backend's product data and falls back to what was
// captured locally when the backend only knows the id.
func snapshotOf(p backend.Product, fallback *Snapshot) *Snapshot {
	if p.Name == "" && p.Price == 0 {
		return fallback
	}
	return &Snapshot{Name: p.Name, Price: p.Price, Image: p.Image}
}

func (c *Container) AddItem(ctx context.Context, item LineItem, quantity int) (Cart, error) {
	if item.ProductID == "" {
		return c.Snapshot(), ErrInvalidProduct
	}
	if quantity <= 0 {
		return c.Snapshot(), ErrInvalidQuantity
	}

	var price int64
	if item.Snapshot != nil {
		price = item.Snapshot.Price
	}
	event := ItemAddedToCart{
		SessionID: c.sessionID,
		ProductID: item.ProductID,
		Quantity:  quantity,
		Price:     price,
		AddedAt:   c.now(),
	}
	var existed bool
	return c.mutate(ctx, OpAdd, EventItemAdded, event,
		func(cur Cart) (Cart, bool) {
			_, existed = cur.Find(item.ProductID)
			return cur.Add(item, quantity), true
		},
		func(cur Cart) Cart { return cur.withoutAdded(item.ProductID, quantity, existed) },
		func(ctx context.Context, _ Cart) error { return c.remote.AddToCart(ctx, item.ProductID, quantity) },
	)
}

// RemoveItem drops the line. An unknown id is a no-op.
func (c *Container) RemoveItem(ctx context.Context, productID string) (Cart, error) {
	if productID == "" {
		return c.Snapshot(), ErrInvalidProduct
	}
	event := ItemRemovedFromCart{SessionID: c.sessionID, ProductID: productID, RemovedAt: c.now()}
	var removed LineItem
	at := -1
	return c.mutate(ctx, OpRemove, EventItemRemoved, event,
		func(cur Cart) (Cart, bool) {
			if at = cur.index(productID); at < 0 {
				return cur, false
			}
			removed = cur.Items[at]
			return cur.Remove(productID), true
		},
		func(cur Cart) Cart { return cur.restore(removed, at) },
		func(ctx context.Context, _ Cart) error { return c.remote.DeleteCartItem(ctx, productID) },
	)
}

func (c *Container) IncrementQuantity(ctx context.Context, productID string) (Cart, error) {
	return c.changeQuantity(ctx, OpIncrement, productID, 1)
}

// DecrementQuantity floors at one. Decrementing a line already at one changes
// nothing and makes no remote call.
func (c *Container) DecrementQuantity(ctx context.Context, productID string) (Cart, error) {
	return c.changeQuantity(ctx, OpDecrement, productID, -1)
}

func (c *Container) changeQuantity(ctx context.Context, op, productID string, delta int) (Cart, error) {
	if productID == "" {
		return c.Snapshot(), ErrInvalidProduct
	}
	event := &ItemQuantityChanged{SessionID: c.sessionID, ProductID: productID, ChangedAt: c.now()}
	return c.mutate(ctx, op, EventQuantityChanged, event,
		func(cur Cart) (Cart, bool) {
			before, ok := cur.Find(productID)
			if !ok {
				return cur, false
			}
			next := cur.adjust(productID, delta)
			after, _ := next.Find(productID)
			event.Quantity = after.Quantity
			return next, after.Quantity != before.Quantity
		},
		func(cur Cart) Cart { return cur.adjust(productID, -delta) },
		func(ctx context.Context, next Cart) error {
			line, _ := next.Find(productID)
			return c.remote.UpdateCartQuantity(ctx, productID, line.Quantity)
		},
	)
}

func (c *Container) ClearCart(ctx context.Context) (Cart, error) {
	event := CartCleared{SessionID: c.sessionID, ClearedAt: c.now()}
	var cleared []LineItem
	return c.mutate(ctx, OpClear, EventCartCleared, event,
		func(cur Cart) (Cart, bool) {
			cleared = cur.items()
			return cur.Clear(), true
		},
		func(cur Cart) Cart {
			for i, line := range cleared {
				cur = cur.restore(line, i)
			}
			return cur
		},
		func(ctx context.Context, _ Cart) error { return c.remote.ClearCart(ctx) },
	)
}

// mutate applies the reducer under the lock and persists the change, then
// runs the remote sync outside the lock. Responses are not ordered: the last
// one to return wins. On a failed sync with rollback enabled, undo reverts
// this mutation on the current cart so changes that landed meanwhile stay.
// The activity event is recorded once the change sticks.
func (c *Container) mutate(
	ctx context.Context,
	op, eventType string,
	event any,
	apply func(Cart) (Cart, bool),
	undo func(Cart) Cart,
	push func(context.Context, Cart) error,
) (Cart, error) {
	c.mu.Lock()
	next, changed := apply(c.cart)
	if !changed {
		c.mu.Unlock()
		return c.Snapshot(), nil
	}
	c.cart = next
	c.mu.Unlock()

	c.metrics.CartMutation(op)
	c.persist(ctx, next)

	if c.remote == nil {
		c.record(ctx, eventType, event)
		return c.Snapshot(), nil
	}
	if err := push(ctx, next); err != nil {
		c.metrics.CartSyncFailure(op)
		syncErr := &SyncError{Op: op, Err: err, RolledBack: c.rollback}
		entry := c.log.WithError(err).WithField("op", op)
		if c.rollback {
			c.mu.Lock()
			c.cart = undo(c.cart)
			reverted := c.cart
			c.mu.Unlock()
			c.persist(ctx, reverted)
			entry.Warn("cart sync failed, local change rolled back")
		} else {
			c.record(ctx, eventType, event)
			entry.Warn("cart sync failed, keeping local change")
		}
		return c.Snapshot(), syncErr
	}
	c.record(ctx, eventType, event)
	return c.Snapshot(), nil
}

func (c *Container) set(cart Cart) {
	c.mu.Lock()
	c.cart = cart
	c.mu.Unlock()
}

func (c *Container) persist(ctx context.Context, cart Cart) {
	if c.state == nil {
		return
	}
	if err := c.state.Save(ctx, c.sessionID, store.KeyCart, cart); err != nil {
		c.log.WithError(err).Warn("failed to persist cart")
	}
}

func (c *Container) record(ctx context.Context, eventType string, event any) {
	if c.events == nil {
		return
	}
	if _, err := c.events.Append(ctx, c.sessionID, AggregateType, eventType, event); err != nil {
		c.log.WithError(err).WithField("event", eventType).Warn("failed to record cart event")
	}
}
