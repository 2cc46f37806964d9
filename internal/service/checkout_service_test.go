package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/fjod/storefront-checkout/internal/domain"
	"github.com/fjod/storefront-checkout/internal/idempotency"
	"github.com/fjod/storefront-checkout/internal/metrics"
	r "github.com/fjod/storefront-checkout/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const submittedAt = "2026-10-18T10:00:00.000Z"

func intPtr(v int) *int { return &v }

func seedShirt(store *r.MemoryStore) primitive.ObjectID {
	return store.SetProduct(domain.Product{
		Title: "Shirt",
		Price: 45.00,
		Image: "shirt.png",
		Variants: []domain.Variant{
			{Color: "Black", Size: "M", Stock: 5, Price: 49.99},
			{Color: "White", Size: "L", Stock: 2},
		},
	})
}

func seedMug(store *r.MemoryStore, stock int) primitive.ObjectID {
	return store.SetProduct(domain.Product{Title: "Mug", Price: 12.50, Stock: intPtr(stock)})
}

func submission(t *testing.T, items string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{
		"items": `+items+`,
		"shippingOption": "EXPRESS",
		"contact": {"email": "jane@example.com"},
		"shippingAddress": {
			"firstName": "Jane", "lastName": "Doe", "street": "Main 1",
			"city": "Belgrade", "postalCode": "11000", "country": "RS"
		},
		"metadata": {"submittedAt": "`+submittedAt+`"}
	}`), &m))
	return m
}

func payloadFor(email string, option domain.ShippingOption, items ...domain.CartItem) *domain.CheckoutPayload {
	return &domain.CheckoutPayload{
		Items:          items,
		ShippingOption: option,
		Contact:        domain.Contact{Email: email},
		ShippingAddress: domain.Address{
			FirstName: "Jane", LastName: "Doe", Street: "Main 1",
			City: "Belgrade", PostalCode: "11000", Country: "RS",
		},
		Metadata: domain.SubmissionMetadata{Origin: "web", Source: "storefront"},
	}
}

func bucketStock(t *testing.T, store *r.MemoryStore, id primitive.ObjectID, color, size string) int {
	t.Helper()
	p, ok := store.Product(id)
	require.True(t, ok)
	for _, v := range p.Variants {
		if v.Color == color && v.Size == size {
			return v.Stock
		}
	}
	t.Fatalf("bucket %s/%s not found", color, size)
	return 0
}

func flatStock(t *testing.T, store *r.MemoryStore, id primitive.ObjectID) int {
	t.Helper()
	p, ok := store.Product(id)
	require.True(t, ok)
	return p.FlatStock()
}

func TestCheckout_VariantOrderTotals(t *testing.T) {
	store := r.NewMemoryStore()
	shirt := seedShirt(store)
	svc := NewCheckoutService(store, Options{})

	raw := submission(t, `[{"productId": "`+shirt.Hex()+`", "quantity": 2, "unitPrice": 0, "color": "Black", "size": "M"}]`)
	res, err := svc.Checkout(context.Background(), raw, nil)

	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	require.NotNil(t, res.Order)
	assert.Equal(t, 99.98, res.Order.Subtotal)
	assert.Equal(t, 10.00, res.Order.ShippingAmount)
	assert.Equal(t, 109.98, res.Order.Total)
	assert.Equal(t, domain.OrderStatusPending, res.Order.Status)
	assert.Equal(t, domain.OrderStatusPending, res.Order.FulfillmentStatus)
	assert.Equal(t, 3, bucketStock(t, store, shirt, "Black", "M"))

	require.Len(t, res.Order.Items, 1)
	item := res.Order.Items[0]
	assert.Equal(t, "Shirt", item.Title)
	assert.Equal(t, "shirt.png", item.Image)
	assert.Equal(t, 49.99, item.UnitPrice)
	assert.Equal(t, "Black", item.Color)
	assert.Equal(t, "M", item.Size)

	stored, err := svc.GetOrder(context.Background(), res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, res.Order.Metadata.Fingerprint, stored.Metadata.Fingerprint)
	assert.NotEmpty(t, stored.Metadata.Fingerprint)
}

func TestCheckout_IdenticalSubmissionIsDuplicate(t *testing.T) {
	store := r.NewMemoryStore()
	shirt := seedShirt(store)
	svc := NewCheckoutService(store, Options{})
	items := `[{"productId": "` + shirt.Hex() + `", "quantity": 2, "color": "Black", "size": "M"}]`

	first, err := svc.Checkout(context.Background(), submission(t, items), nil)
	require.NoError(t, err)
	second, err := svc.Checkout(context.Background(), submission(t, items), nil)
	require.NoError(t, err)

	assert.False(t, first.Duplicate)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Len(t, store.Orders(), 1)
	assert.Equal(t, 3, bucketStock(t, store, shirt, "Black", "M"))
}

func TestCheckout_MergedLinesCommitOneItem(t *testing.T) {
	store := r.NewMemoryStore()
	shirt := seedShirt(store)
	svc := NewCheckoutService(store, Options{})

	raw := submission(t, `[
		{"productId": "`+shirt.Hex()+`", "quantity": 1, "color": "Black", "size": "M"},
		{"productId": "`+shirt.Hex()+`", "quantity": 2, "color": "Black", "size": "M"}
	]`)
	res, err := svc.Checkout(context.Background(), raw, nil)

	require.NoError(t, err)
	require.Len(t, res.Order.Items, 1)
	assert.Equal(t, 3, res.Order.Items[0].Quantity)
	assert.Equal(t, 2, bucketStock(t, store, shirt, "Black", "M"))
}

func TestCheckout_ValidationRejectedBeforeStorage(t *testing.T) {
	store := &FlakyStore{MemoryStore: r.NewMemoryStore()}
	svc := NewCheckoutService(store, Options{})

	raw := submission(t, `[{"productId": "`+primitive.NewObjectID().Hex()+`", "quantity": 1}]`)
	delete(raw, "contact")

	res, err := svc.Checkout(context.Background(), raw, nil)

	assert.Nil(t, res)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 0, store.TxCalls)
}

func TestCommit_InsufficientStockLeavesNoTrace(t *testing.T) {
	store := r.NewMemoryStore()
	mug := seedMug(store, 1)
	svc := NewCheckoutService(store, Options{})

	payload := payloadFor("jane@example.com", domain.ShippingFree,
		domain.CartItem{ProductID: mug, Quantity: 2})
	res, err := svc.Commit(context.Background(), payload, domain.PaymentAck{})

	assert.Nil(t, res)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	var lineErr *domain.LineError
	require.ErrorAs(t, err, &lineErr)
	assert.Equal(t, mug.Hex(), lineErr.ProductID)
	assert.Equal(t, "Mug", lineErr.Title)
	assert.Equal(t, 2, lineErr.Requested)
	assert.Equal(t, 1, lineErr.Available)

	assert.Empty(t, store.Orders())
	assert.Equal(t, 1, flatStock(t, store, mug))
	events, err := store.GetUnprocessedEvents(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestCommit_LaterLineFailureRollsBackEarlierLines(t *testing.T) {
	store := r.NewMemoryStore()
	mug := seedMug(store, 10)
	svc := NewCheckoutService(store, Options{})

	missing := primitive.NewObjectID()
	payload := payloadFor("jane@example.com", domain.ShippingFree,
		domain.CartItem{ProductID: mug, Quantity: 3},
		domain.CartItem{ProductID: missing, Quantity: 1, Title: "Ghost"})
	_, err := svc.Commit(context.Background(), payload, domain.PaymentAck{})

	require.ErrorIs(t, err, domain.ErrProductNotFound)
	var lineErr *domain.LineError
	require.ErrorAs(t, err, &lineErr)
	assert.Equal(t, missing.Hex(), lineErr.ProductID)
	assert.Equal(t, "Ghost", lineErr.Title)
	assert.Empty(t, store.Orders())
	assert.Equal(t, 10, flatStock(t, store, mug))
}

func TestCommit_OutOfRangeLinesRejected(t *testing.T) {
	tests := []struct {
		name string
		item func(mug primitive.ObjectID) domain.CartItem
	}{
		{name: "wrapped quantity", item: func(mug primitive.ObjectID) domain.CartItem {
			return domain.CartItem{ProductID: mug, Quantity: -8446744073709551616}
		}},
		{name: "zero quantity", item: func(mug primitive.ObjectID) domain.CartItem {
			return domain.CartItem{ProductID: mug}
		}},
		{name: "quantity over cap", item: func(mug primitive.ObjectID) domain.CartItem {
			return domain.CartItem{ProductID: mug, Quantity: domain.MaxLineQuantity + 1}
		}},
		{name: "huge price hint", item: func(mug primitive.ObjectID) domain.CartItem {
			return domain.CartItem{ProductID: mug, Quantity: 1, UnitPrice: 1e300}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := r.NewMemoryStore()
			mug := seedMug(store, 3)
			svc := NewCheckoutService(store, Options{})

			payload := payloadFor("jane@example.com", domain.ShippingFree, tt.item(mug))
			res, err := svc.Commit(context.Background(), payload, domain.PaymentAck{})

			assert.Nil(t, res)
			require.ErrorIs(t, err, domain.ErrValidation)
			assert.Empty(t, store.Orders())
			assert.Equal(t, 3, flatStock(t, store, mug))
		})
	}
}

func TestCommit_VariantUnresolved(t *testing.T) {
	tests := []struct {
		name      string
		selection domain.Selection
	}{
		{name: "unknown color", selection: domain.Selection{Color: "Red", Size: "M"}},
		{name: "no selection", selection: domain.Selection{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := r.NewMemoryStore()
			shirt := seedShirt(store)
			svc := NewCheckoutService(store, Options{})

			payload := payloadFor("jane@example.com", domain.ShippingFree, domain.CartItem{
				ProductID: shirt, Quantity: 1, Color: tt.selection.Color, Size: tt.selection.Size,
			})
			_, err := svc.Commit(context.Background(), payload, domain.PaymentAck{})

			assert.ErrorIs(t, err, domain.ErrVariantUnresolved)
			assert.Empty(t, store.Orders())
		})
	}
}

func TestCommit_LinesSharingABucketAreCheckedTogether(t *testing.T) {
	store := r.NewMemoryStore()
	shirt := seedShirt(store)
	svc := NewCheckoutService(store, Options{})

	// both lines resolve to Black/M, which holds 5
	payload := payloadFor("jane@example.com", domain.ShippingFree,
		domain.CartItem{ProductID: shirt, Quantity: 3, Color: "Black"},
		domain.CartItem{ProductID: shirt, Quantity: 3, Color: "black", Size: "m"})
	_, err := svc.Commit(context.Background(), payload, domain.PaymentAck{})

	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	var lineErr *domain.LineError
	require.ErrorAs(t, err, &lineErr)
	assert.Equal(t, 2, lineErr.Available)
	assert.Equal(t, 5, bucketStock(t, store, shirt, "Black", "M"))
}

func TestCommit_ConcurrentLastUnit(t *testing.T) {
	store := r.NewMemoryStore()
	mug := seedMug(store, 1)
	svc := NewCheckoutService(store, Options{})

	const buyers = 2
	errs := make([]error, buyers)
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := payloadFor(fmt.Sprintf("buyer%d@example.com", i), domain.ShippingFree,
				domain.CartItem{ProductID: mug, Quantity: 1})
			_, errs[i] = svc.Commit(context.Background(), payload, domain.PaymentAck{})
		}(i)
	}
	wg.Wait()

	var succeeded, outOfStock int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrInsufficientStock):
			outOfStock++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, outOfStock)
	assert.Equal(t, 0, flatStock(t, store, mug))
	assert.Len(t, store.Orders(), 1)
}

func TestCommit_ConcurrentIdenticalSubmissions(t *testing.T) {
	store := r.NewMemoryStore()
	shirt := seedShirt(store)
	svc := NewCheckoutService(store, Options{})
	payload := payloadFor("jane@example.com", domain.ShippingExpress,
		domain.CartItem{ProductID: shirt, Quantity: 1, Color: "Black", Size: "M"})
	payload.Metadata.SubmittedAt = submittedAt

	const attempts = 8
	results := make([]*Result, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.Commit(context.Background(), payload, domain.PaymentAck{})
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	created := 0
	for _, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, results[0].OrderID, res.OrderID)
		if !res.Duplicate {
			created++
		}
	}
	assert.Equal(t, 1, created)
	assert.Len(t, store.Orders(), 1)
	assert.Equal(t, 4, bucketStock(t, store, shirt, "Black", "M"))
}

func TestCommit_CancelledFirstRequestStillCommitsForSecond(t *testing.T) {
	memory := r.NewMemoryStore()
	mug := seedMug(memory, 5)
	store := NewBlockingStore(memory)
	svc := NewCheckoutService(store, Options{})
	payload := payloadFor("jane@example.com", domain.ShippingFree,
		domain.CartItem{ProductID: mug, Quantity: 1})
	payload.Metadata.SubmittedAt = submittedAt

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstDone := make(chan error, 1)
	go func() {
		_, err := svc.Commit(firstCtx, payload, domain.PaymentAck{})
		firstDone <- err
	}()
	<-store.Entered

	type outcome struct {
		res *Result
		err error
	}
	secondDone := make(chan outcome, 1)
	go func() {
		res, err := svc.Commit(context.Background(), payload, domain.PaymentAck{})
		secondDone <- outcome{res, err}
	}()

	// the browser drops the first request while its transaction is in flight
	time.Sleep(50 * time.Millisecond)
	cancelFirst()
	time.Sleep(20 * time.Millisecond)
	close(store.Release)

	second := <-secondDone
	require.NoError(t, second.err)
	require.NotNil(t, second.res)
	assert.True(t, second.res.Duplicate)
	assert.NoError(t, <-firstDone)

	assert.Len(t, memory.Orders(), 1)
	assert.Equal(t, second.res.OrderID, memory.Orders()[0].ID.Hex())
	assert.Equal(t, 4, flatStock(t, memory, mug))
}

func TestCommit_DuplicateByPaymentReference(t *testing.T) {
	store := r.NewMemoryStore()
	mug := seedMug(store, 10)
	svc := NewCheckoutService(store, Options{})
	ack := idempotency.PaymentAck(map[string]any{"orderID": "PAY-123", "status": "completed"})

	first, err := svc.Commit(context.Background(),
		payloadFor("jane@example.com", domain.ShippingFree, domain.CartItem{ProductID: mug, Quantity: 1}), ack)
	require.NoError(t, err)
	assert.Equal(t, "PAY-123", first.Order.Metadata.PaymentReference)
	assert.Equal(t, "COMPLETED", first.Order.PaymentStatus)

	second, err := svc.Commit(context.Background(),
		payloadFor("john@example.com", domain.ShippingFree, domain.CartItem{ProductID: mug, Quantity: 4}), ack)
	require.NoError(t, err)

	assert.True(t, second.Duplicate)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, 9, flatStock(t, store, mug))
}

func TestCommit_DuplicateBySubmissionTimeAndEmail(t *testing.T) {
	store := r.NewMemoryStore()
	mug := seedMug(store, 10)
	svc := NewCheckoutService(store, Options{})

	first := payloadFor("jane@example.com", domain.ShippingFree, domain.CartItem{ProductID: mug, Quantity: 1})
	first.Metadata.SubmittedAt = submittedAt
	res, err := svc.Commit(context.Background(), first, domain.PaymentAck{})
	require.NoError(t, err)

	sameMoment := payloadFor("jane@example.com", domain.ShippingFree, domain.CartItem{ProductID: mug, Quantity: 2})
	sameMoment.Metadata.SubmittedAt = submittedAt
	dup, err := svc.Commit(context.Background(), sameMoment, domain.PaymentAck{})
	require.NoError(t, err)
	assert.True(t, dup.Duplicate)
	assert.Equal(t, res.OrderID, dup.OrderID)

	otherBuyer := payloadFor("john@example.com", domain.ShippingFree, domain.CartItem{ProductID: mug, Quantity: 2})
	otherBuyer.Metadata.SubmittedAt = submittedAt
	fresh, err := svc.Commit(context.Background(), otherBuyer, domain.PaymentAck{})
	require.NoError(t, err)
	assert.False(t, fresh.Duplicate)
	assert.Equal(t, 7, flatStock(t, store, mug))
}

func TestCommit_RetriesAfterFingerprintConflict(t *testing.T) {
	store := &FlakyStore{MemoryStore: r.NewMemoryStore()}
	shirt := seedShirt(store.MemoryStore)
	svc := NewCheckoutService(store, Options{})
	payload := payloadFor("jane@example.com", domain.ShippingFree,
		domain.CartItem{ProductID: shirt, Quantity: 2, Color: "Black", Size: "M"})

	first, err := svc.Commit(context.Background(), payload, domain.PaymentAck{})
	require.NoError(t, err)

	store.HideDuplicatesOnce = true
	second, err := svc.Commit(context.Background(), payload, domain.PaymentAck{})

	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, 3, store.TxCalls)
	assert.Len(t, store.Orders(), 1)
	assert.Equal(t, 3, bucketStock(t, store.MemoryStore, shirt, "Black", "M"))
}

func TestCommit_TransientFailure(t *testing.T) {
	store := &FlakyStore{
		MemoryStore: r.NewMemoryStore(),
		TxErr:       fmt.Errorf("%w: write conflict", domain.ErrTransientStorage),
	}
	mug := seedMug(store.MemoryStore, 5)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	svc := NewCheckoutService(store, Options{Metrics: m})

	_, err := svc.Commit(context.Background(),
		payloadFor("jane@example.com", domain.ShippingFree, domain.CartItem{ProductID: mug, Quantity: 1}),
		domain.PaymentAck{})

	assert.ErrorIs(t, err, domain.ErrTransientStorage)
	assert.Equal(t, 5, flatStock(t, store.MemoryStore, mug))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commits.WithLabelValues(OutcomeTransient)))
}

func TestCommit_ReplayCache(t *testing.T) {
	store := &FlakyStore{MemoryStore: r.NewMemoryStore()}
	mug := seedMug(store.MemoryStore, 5)
	replay := NewMockCache()
	svc := NewCheckoutService(store, Options{Cache: replay})
	payload := payloadFor("jane@example.com", domain.ShippingFree, domain.CartItem{ProductID: mug, Quantity: 1})

	first, err := svc.Commit(context.Background(), payload, domain.PaymentAck{})
	require.NoError(t, err)
	assert.Equal(t, 1, replay.Sets)
	assert.Equal(t, first.OrderID, replay.Entries[first.Order.Metadata.Fingerprint])

	store.TxErr = errors.New("transaction must not be opened")
	second, err := svc.Commit(context.Background(), payload, domain.PaymentAck{})

	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, 1, store.TxCalls)
}

func TestCommit_ReplayCacheMissesFallThrough(t *testing.T) {
	tests := []struct {
		name  string
		setup func(c *MockCache, fingerprint string)
	}{
		{
			name: "stale entry",
			setup: func(c *MockCache, fingerprint string) {
				c.Entries[fingerprint] = primitive.NewObjectID().Hex()
			},
		},
		{
			name: "cache unavailable",
			setup: func(c *MockCache, _ string) {
				c.GetErr = errors.New("connection refused")
				c.SetErr = errors.New("connection refused")
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := r.NewMemoryStore()
			mug := seedMug(store, 5)
			replay := NewMockCache()
			svc := NewCheckoutService(store, Options{Cache: replay})
			payload := payloadFor("jane@example.com", domain.ShippingFree, domain.CartItem{ProductID: mug, Quantity: 1})
			fp, err := idempotency.Fingerprint(payload)
			require.NoError(t, err)
			tt.setup(replay, fp)

			res, err := svc.Commit(context.Background(), payload, domain.PaymentAck{})

			require.NoError(t, err)
			assert.False(t, res.Duplicate)
			assert.Equal(t, 4, flatStock(t, store, mug))
		})
	}
}

func TestCommit_TotalsAddUp(t *testing.T) {
	carts := []struct {
		prices     []float64
		quantities []int
		option     domain.ShippingOption
		shipping   *float64
	}{
		{prices: []float64{0.1, 0.2}, quantities: []int{1, 1}, option: domain.ShippingFree},
		{prices: []float64{19.99, 0.33}, quantities: []int{3, 7}, option: domain.ShippingExpress},
		{prices: []float64{12.345}, quantities: []int{3}, option: domain.ShippingExpress, shipping: func() *float64 { v := 4.99; return &v }()},
	}
	for i, cart := range carts {
		t.Run(fmt.Sprintf("cart %d", i), func(t *testing.T) {
			store := r.NewMemoryStore()
			svc := NewCheckoutService(store, Options{})
			var items []domain.CartItem
			for j, price := range cart.prices {
				id := store.SetProduct(domain.Product{Title: "Item", Price: price, Stock: intPtr(100)})
				items = append(items, domain.CartItem{ProductID: id, Quantity: cart.quantities[j]})
			}
			payload := payloadFor("jane@example.com", cart.option, items...)
			payload.ShippingAmount = cart.shipping

			res, err := svc.Commit(context.Background(), payload, domain.PaymentAck{})

			require.NoError(t, err)
			o := res.Order
			assert.Equal(t, o.Total, domain.Round2(o.Subtotal+o.ShippingAmount))
		})
	}
}

func TestCommit_WritesOutboxEvent(t *testing.T) {
	store := r.NewMemoryStore()
	shirt := seedShirt(store)
	svc := NewCheckoutService(store, Options{})

	res, err := svc.Commit(context.Background(),
		payloadFor("jane@example.com", domain.ShippingExpress, domain.CartItem{ProductID: shirt, Quantity: 2, Color: "Black", Size: "M"}),
		domain.PaymentAck{})
	require.NoError(t, err)

	events, err := store.GetUnprocessedEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventOrderCreated, events[0].EventType)
	assert.Equal(t, res.OrderID, events[0].AggregateID)

	var body map[string]any
	require.NoError(t, json.Unmarshal(events[0].Payload, &body))
	assert.Equal(t, res.OrderID, body["order_id"])
	assert.Equal(t, 109.98, body["total"])
}

func TestCommit_RecordsOutcomeMetrics(t *testing.T) {
	store := r.NewMemoryStore()
	mug := seedMug(store, 1)
	m := metrics.New(prometheus.NewRegistry())
	svc := NewCheckoutService(store, Options{Metrics: m})
	payload := payloadFor("jane@example.com", domain.ShippingFree, domain.CartItem{ProductID: mug, Quantity: 1})

	_, err := svc.Commit(context.Background(), payload, domain.PaymentAck{})
	require.NoError(t, err)
	_, err = svc.Commit(context.Background(), payload, domain.PaymentAck{})
	require.NoError(t, err)
	_, err = svc.Commit(context.Background(),
		payloadFor("john@example.com", domain.ShippingFree, domain.CartItem{ProductID: mug, Quantity: 1}),
		domain.PaymentAck{})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commits.WithLabelValues(OutcomeCreated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commits.WithLabelValues(OutcomeDuplicate)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Commits.WithLabelValues(OutcomeInsufficientStock)))
}

func TestGetOrder_InvalidID(t *testing.T) {
	svc := NewCheckoutService(r.NewMemoryStore(), Options{})

	_, err := svc.GetOrder(context.Background(), "not-an-id")
	assert.ErrorIs(t, err, r.ErrOrderNotFound)

	_, err = svc.GetOrder(context.Background(), primitive.NewObjectID().Hex())
	assert.ErrorIs(t, err, r.ErrOrderNotFound)
}

func TestUnitPrice(t *testing.T) {
	bucket := &domain.Variant{Color: "Black", Size: "M", Stock: 1, Price: 49.99}
	product := &domain.Product{Price: 45}

	tests := []struct {
		name     string
		hint     float64
		resolved domain.ResolvedVariant
		product  *domain.Product
		want     float64
	}{
		{name: "hint wins", hint: 39.999, resolved: domain.ResolvedVariant{Bucket: bucket}, product: product, want: 40.00},
		{name: "bucket price", resolved: domain.ResolvedVariant{Bucket: bucket}, product: product, want: 49.99},
		{name: "base price", resolved: domain.ResolvedVariant{}, product: product, want: 45},
		{name: "bucket without price", resolved: domain.ResolvedVariant{Bucket: &domain.Variant{}}, product: product, want: 45},
		{name: "nothing priced", resolved: domain.ResolvedVariant{}, product: &domain.Product{}, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := unitPrice(domain.CartItem{UnitPrice: tt.hint}, tt.product, tt.resolved)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShippingAmount(t *testing.T) {
	svc := NewCheckoutService(r.NewMemoryStore(), Options{ExpressFee: 15})
	explicit := 3.5
	zero := 0.0

	assert.Equal(t, 0.0, svc.shippingAmount(&domain.CheckoutPayload{ShippingOption: domain.ShippingFree}))
	assert.Equal(t, 15.0, svc.shippingAmount(&domain.CheckoutPayload{ShippingOption: domain.ShippingExpress}))
	assert.Equal(t, 3.5, svc.shippingAmount(&domain.CheckoutPayload{ShippingOption: domain.ShippingExpress, ShippingAmount: &explicit}))
	assert.Equal(t, 0.0, svc.shippingAmount(&domain.CheckoutPayload{ShippingOption: domain.ShippingExpress, ShippingAmount: &zero}))
}
