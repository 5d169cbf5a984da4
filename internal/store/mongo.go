package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront-service/internal/domain"
)

const (
	productsCollection   = "products"
	categoriesCollection = "categories"
	ordersCollection     = "orders"
	settingsCollection   = "settings"
)

// MongoStore implements the store interfaces on MongoDB. It has no change stream
// wiring; the catalog feed polls it.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// ConnectMongo dials uri, pings it and returns a store bound to database.
func ConnectMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	clientOptions := options.Client().
		ApplyURI(uri).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("store: failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("store: failed to ping mongodb: %w", err)
	}
	s := NewMongoStore(client.Database(database))
	s.client = client
	return s, nil
}

// NewMongoStore wraps an already connected database handle.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

// EnsureIndexes creates the unique category name index.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(categoriesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("store: EnsureIndexes failed: %w", err)
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

func (s *MongoStore) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

type mongoProduct struct {
	ID        string    `bson:"_id"`
	Version   int64     `bson:"version"`
	Document  bson.M    `bson:"document"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

func (m mongoProduct) toDocument() (*ProductDocument, error) {
	data, err := json.Marshal(plainValue(m.Document))
	if err != nil {
		return nil, fmt.Errorf("encode document %s: %w", m.ID, err)
	}
	return &ProductDocument{ID: m.ID, Version: m.Version, Data: data, UpdatedAt: m.UpdatedAt}, nil
}

// plainValue converts decoded BSON containers into the map/slice shapes the JSON
// encoder and the normalizer understand.
func plainValue(v any) any {
	switch t := v.(type) {
	case bson.M:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = plainValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = plainValue(e)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = plainValue(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plainValue(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = plainValue(e)
		}
		return out
	case primitive.DateTime:
		return t.Time().UnixMilli()
	}
	return v
}

// --- ProductStorer Implementation ---

func (s *MongoStore) ListProductDocuments(ctx context.Context) ([]ProductDocument, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := s.db.Collection(productsCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("store: ListProductDocuments failed to query products: %w", err)
	}
	defer cursor.Close(ctx)

	docs := make([]ProductDocument, 0)
	for cursor.Next(ctx) {
		var m mongoProduct
		if err := cursor.Decode(&m); err != nil {
			return nil, fmt.Errorf("store: ListProductDocuments failed to decode product: %w", err)
		}
		doc, err := m.toDocument()
		if err != nil {
			return nil, fmt.Errorf("store: ListProductDocuments: %w", err)
		}
		docs = append(docs, *doc)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("store: ListProductDocuments iteration error: %w", err)
	}
	return docs, nil
}

func (s *MongoStore) GetProductDocument(ctx context.Context, id string) (*ProductDocument, error) {
	var m mongoProduct
	err := s.db.Collection(productsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("store: GetProductDocument failed: %w", err)
	}
	return m.toDocument()
}

func (s *MongoStore) CreateProduct(ctx context.Context, doc map[string]any) (*ProductDocument, error) {
	now := time.Now().UTC()
	m := mongoProduct{
		ID:        uuid.NewString(),
		Version:   1,
		Document:  bson.M(doc),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.db.Collection(productsCollection).InsertOne(ctx, m); err != nil {
		return nil, fmt.Errorf("store: CreateProduct failed to insert: %w", err)
	}
	return m.toDocument()
}

func (s *MongoStore) UpdateProduct(ctx context.Context, id string, doc map[string]any, expectedVersion *int64) (*ProductDocument, error) {
	filter := bson.M{"_id": id}
	if expectedVersion != nil {
		filter["version"] = *expectedVersion
	}
	update := bson.M{
		"$set": bson.M{"document": doc, "updatedAt": time.Now().UTC()},
		"$inc": bson.M{"version": 1},
	}
	updated, err := s.findAndUpdateProduct(ctx, filter, update)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, s.missingOrConflict(ctx, id, expectedVersion != nil)
		}
		return nil, fmt.Errorf("store: UpdateProduct failed: %w", err)
	}
	return updated, nil
}

func (s *MongoStore) PatchProduct(ctx context.Context, id string, fields map[string]any) (*ProductDocument, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	for k, v := range fields {
		set["document."+k] = v
	}
	update := bson.M{"$set": set, "$inc": bson.M{"version": 1}}
	patched, err := s.findAndUpdateProduct(ctx, bson.M{"_id": id}, update)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("store: PatchProduct failed: %w", err)
	}
	return patched, nil
}

func (s *MongoStore) findAndUpdateProduct(ctx context.Context, filter, update bson.M) (*ProductDocument, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var m mongoProduct
	if err := s.db.Collection(productsCollection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&m); err != nil {
		return nil, err
	}
	return m.toDocument()
}

func (s *MongoStore) missingOrConflict(ctx context.Context, id string, versioned bool) error {
	if !versioned {
		return ErrProductNotFound
	}
	n, err := s.db.Collection(productsCollection).CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("store: UpdateProduct failed to check existence: %w", err)
	}
	if n > 0 {
		return ErrVersionConflict
	}
	return ErrProductNotFound
}

func (s *MongoStore) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.Collection(productsCollection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("store: DeleteProduct failed: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrProductNotFound
	}
	return nil
}

// --- CategoryStorer Implementation ---

func (s *MongoStore) CreateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	now := time.Now().UTC()
	created := domain.Category{ID: uuid.NewString(), Name: category.Name, CreatedAt: now, UpdatedAt: now}
	if _, err := s.db.Collection(categoriesCollection).InsertOne(ctx, created); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrCategoryNameExists
		}
		return nil, fmt.Errorf("store: CreateCategory failed: %w", err)
	}
	return &created, nil
}

func (s *MongoStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := s.db.Collection(categoriesCollection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("store: ListCategories failed: %w", err)
	}
	categories := make([]domain.Category, 0)
	if err := cursor.All(ctx, &categories); err != nil {
		return nil, fmt.Errorf("store: ListCategories failed to decode: %w", err)
	}
	return categories, nil
}

func (s *MongoStore) UpdateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{"$set": bson.M{"name": category.Name, "updatedAt": time.Now().UTC()}}
	var updated domain.Category
	err := s.db.Collection(categoriesCollection).FindOneAndUpdate(ctx, bson.M{"_id": category.ID}, update, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCategoryNotFound
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrCategoryNameExists
		}
		return nil, fmt.Errorf("store: UpdateCategory failed: %w", err)
	}
	return &updated, nil
}

func (s *MongoStore) DeleteCategory(ctx context.Context, id string) error {
	res, err := s.db.Collection(categoriesCollection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("store: DeleteCategory failed: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

// --- OrderStorer Implementation ---

func (s *MongoStore) CreateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	created := *order
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	if _, err := s.db.Collection(ordersCollection).InsertOne(ctx, created); err != nil {
		return nil, fmt.Errorf("store: CreateOrder failed: %w", err)
	}
	return &created, nil
}

func (s *MongoStore) ListOrders(ctx context.Context, period Period) ([]domain.Order, error) {
	filter := bson.M{"weekNumber": period.WeekNumber, "year": period.Year}
	opts := options.Find().SetSort(bson.D{{Key: "orderDate", Value: -1}})
	cursor, err := s.db.Collection(ordersCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("store: ListOrders failed: %w", err)
	}
	orders := make([]domain.Order, 0)
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("store: ListOrders failed to decode: %w", err)
	}
	return orders, nil
}

func (s *MongoStore) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{"$set": bson.M{"status": string(status)}}
	var o domain.Order
	err := s.db.Collection(ordersCollection).FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&o)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("store: UpdateOrderStatus failed: %w", err)
	}
	return &o, nil
}

func (s *MongoStore) DeleteOrders(ctx context.Context, period Period) (int64, error) {
	filter := bson.M{"weekNumber": period.WeekNumber, "year": period.Year}
	res, err := s.db.Collection(ordersCollection).DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("store: DeleteOrders failed: %w", err)
	}
	return res.DeletedCount, nil
}

// --- PolicyStorer Implementation ---

type mongoPolicies struct {
	Key             string `bson:"_id"`
	domain.Policies `bson:",inline"`
}

func (s *MongoStore) GetPolicies(ctx context.Context) (*domain.Policies, error) {
	var m mongoPolicies
	err := s.db.Collection(settingsCollection).FindOne(ctx, bson.M{"_id": policiesKey}).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &domain.Policies{}, nil
		}
		return nil, fmt.Errorf("store: GetPolicies failed: %w", err)
	}
	return &m.Policies, nil
}

func (s *MongoStore) SavePolicies(ctx context.Context, policies *domain.Policies) (*domain.Policies, error) {
	m := mongoPolicies{Key: policiesKey, Policies: *policies}
	opts := options.Replace().SetUpsert(true)
	if _, err := s.db.Collection(settingsCollection).ReplaceOne(ctx, bson.M{"_id": policiesKey}, m, opts); err != nil {
		return nil, fmt.Errorf("store: SavePolicies failed: %w", err)
	}
	saved := *policies
	return &saved, nil
}
