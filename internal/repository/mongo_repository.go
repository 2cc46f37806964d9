package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/storefront-checkout/internal/domain"
	"github.com/fjod/storefront-checkout/internal/idempotency"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const (
	productsCollection = "products"
	ordersCollection   = "orders"
	outboxCollection   = "outbox"

	defaultMaxCommitTime = 10 * time.Second
)

type MongoRepository struct {
	client        *mongo.Client
	products      *mongo.Collection
	orders        *mongo.Collection
	outbox        *mongo.Collection
	maxCommitTime time.Duration
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		client:        db.Client(),
		products:      db.Collection(productsCollection),
		orders:        db.Collection(ordersCollection),
		outbox:        db.Collection(outboxCollection),
		maxCommitTime: defaultMaxCommitTime,
	}
}

// RunInTransaction runs fn with snapshot reads and majority writes. The driver
// retries fn on transient transaction errors until ctx expires; whatever is still
// transient after that is reported as domain.ErrTransientStorage.
func (m *MongoRepository) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("%w: failed to start session: %v", domain.ErrTransientStorage, err)
	}
	defer session.EndSession(context.Background())

	txOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority()).
		SetMaxCommitTime(&m.maxCommitTime)

	tx := &mongoTx{repo: m, session: session}
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc, tx)
	}, txOpts)

	return classifyError(err)
}

func (m *MongoRepository) GetOrder(ctx context.Context, id primitive.ObjectID) (*domain.Order, error) {
	var order domain.Order
	err := m.orders.FindOne(ctx, bson.M{"_id": id}).Decode(&order)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

// UpsertProduct writes a catalog record. The catalog is owned elsewhere; this is
// used for seeding and tests.
func (m *MongoRepository) UpsertProduct(ctx context.Context, p *domain.Product) error {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	_, err := m.products.ReplaceOne(ctx, bson.M{"_id": p.ID}, p, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert product: %w", err)
	}
	return nil
}

func (m *MongoRepository) GetProduct(ctx context.Context, id primitive.ObjectID) (*domain.Product, error) {
	var p domain.Product
	err := m.products.FindOne(ctx, bson.M{"_id": id}).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

func (m *MongoRepository) CountOrders(ctx context.Context) (int64, error) {
	n, err := m.orders.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return n, nil
}

func (m *MongoRepository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*OutboxEvent, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := m.outbox.Find(ctx, bson.M{"processedAt": nil}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query outbox: %w", err)
	}
	defer cursor.Close(ctx)

	var events []*OutboxEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, fmt.Errorf("failed to decode outbox events: %w", err)
	}
	return events, nil
}

func (m *MongoRepository) MarkEventAsProcessed(ctx context.Context, id string) error {
	now := time.Now().UTC()
	result, err := m.outbox.UpdateOne(ctx,
		bson.M{"_id": id, "processedAt": nil},
		bson.M{"$set": bson.M{"processedAt": now}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	if result.MatchedCount == 0 {
		return ErrEventNotFound
	}
	return nil
}

func (m *MongoRepository) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// mongoTx binds every operation to the transaction's session, whatever context
// the caller passes.
type mongoTx struct {
	repo    *MongoRepository
	session mongo.Session
}

func (t *mongoTx) scope(ctx context.Context) mongo.SessionContext {
	return mongo.NewSessionContext(ctx, t.session)
}

func (t *mongoTx) FindProducts(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*domain.Product, error) {
	sc := t.scope(ctx)
	cursor, err := t.repo.products.Find(sc, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer cursor.Close(sc)

	found := make(map[primitive.ObjectID]*domain.Product, len(ids))
	for cursor.Next(sc) {
		var p domain.Product
		if err := cursor.Decode(&p); err != nil {
			return nil, fmt.Errorf("failed to decode product: %w", err)
		}
		found[p.ID] = &p
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}
	return found, nil
}

func (t *mongoTx) FindDuplicateOrder(ctx context.Context, q idempotency.DuplicateQuery) (*domain.Order, error) {
	filter := duplicateFilter(q)
	if filter == nil {
		return nil, ErrOrderNotFound
	}

	var order domain.Order
	err := t.repo.orders.FindOne(t.scope(ctx), filter).Decode(&order)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to look up duplicate order: %w", err)
	}
	return &order, nil
}

// duplicateFilter mirrors idempotency.DuplicateQuery.Matches.
func duplicateFilter(q idempotency.DuplicateQuery) bson.M {
	var or bson.A
	if q.PaymentReference != "" {
		or = append(or,
			bson.M{"metadata.paymentReference": q.PaymentReference},
			bson.M{"metadata.paypalOrderId": q.PaymentReference},
		)
	}
	if q.Fingerprint != "" {
		or = append(or, bson.M{"metadata.fingerprint": q.Fingerprint})
	}
	if q.SubmittedAt != "" && q.Email != "" {
		or = append(or, bson.M{"metadata.submittedAt": q.SubmittedAt, "contact.email": q.Email})
	}
	if len(or) == 0 {
		return nil
	}
	return bson.M{"$or": or}
}

func (t *mongoTx) DecrementStock(ctx context.Context, d Decrement) error {
	if d.Quantity <= 0 {
		return ErrInvalidDecrement
	}
	sc := t.scope(ctx)
	now := time.Now().UTC()

	if d.Bucket == nil {
		result, err := t.repo.products.UpdateOne(sc,
			bson.M{"_id": d.ProductID, "stock": bson.M{"$gte": d.Quantity}},
			bson.M{
				"$inc": bson.M{"stock": -d.Quantity},
				"$set": bson.M{"updatedAt": now},
			},
		)
		if err != nil {
			return fmt.Errorf("failed to decrement stock: %w", err)
		}
		if result.MatchedCount == 0 || result.ModifiedCount == 0 {
			return ErrStockConflict
		}
		return nil
	}

	bucket := bson.M{
		"color": attrMatch(d.Bucket.Color),
		"size":  attrMatch(d.Bucket.Size),
		"stock": bson.M{"$gte": d.Quantity},
	}
	filter := bson.M{
		"_id":      d.ProductID,
		"variants": bson.M{"$elemMatch": bucket},
	}
	update := bson.M{
		"$inc": bson.M{"variants.$[v].stock": -d.Quantity},
		"$set": bson.M{"updatedAt": now},
	}
	arrayFilters := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{
			bson.M{
				"v.color": attrMatch(d.Bucket.Color),
				"v.size":  attrMatch(d.Bucket.Size),
				"v.stock": bson.M{"$gte": d.Quantity},
			},
		},
	})

	result, err := t.repo.products.UpdateOne(sc, filter, update, arrayFilters)
	if err != nil {
		return fmt.Errorf("failed to decrement variant stock: %w", err)
	}
	if result.MatchedCount == 0 || result.ModifiedCount == 0 {
		return ErrStockConflict
	}
	return nil
}

// attrMatch treats an empty stored attribute as matching a missing field too.
func attrMatch(v string) interface{} {
	if v == "" {
		return bson.M{"$in": bson.A{nil, ""}}
	}
	return v
}

func (t *mongoTx) InsertOrder(ctx context.Context, order *domain.Order) error {
	result, err := t.repo.orders.InsertOne(t.scope(ctx), order)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("failed to insert order: %w", err)
	}
	if id, ok := result.InsertedID.(primitive.ObjectID); ok {
		order.ID = id
	}
	return nil
}

func (t *mongoTx) InsertOutboxEvent(ctx context.Context, event *OutboxEvent) error {
	if _, err := t.repo.outbox.InsertOne(t.scope(ctx), event); err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

// classifyError maps driver failures that are safe to retry onto
// domain.ErrTransientStorage and leaves everything else untouched.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrValidation) ||
		errors.Is(err, domain.ErrProductNotFound) ||
		errors.Is(err, domain.ErrVariantUnresolved) ||
		errors.Is(err, domain.ErrInsufficientStock) ||
		errors.Is(err, ErrDuplicateOrder) ||
		errors.Is(err, domain.ErrTransientStorage) {
		return err
	}
	if isTransient(err) {
		return fmt.Errorf("%w: %v", domain.ErrTransientStorage, err)
	}
	return err
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return true
	}
	var labeled mongo.LabeledError
	if errors.As(err, &labeled) {
		return labeled.HasErrorLabel("TransientTransactionError") ||
			labeled.HasErrorLabel("UnknownTransactionCommitResult")
	}
	return false
}
