package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"storefront-service/internal/auth"
	"storefront-service/internal/cart"
	"storefront-service/internal/catalog"
	"storefront-service/internal/checkout"
	"storefront-service/internal/domain"
	"storefront-service/internal/media"
	"storefront-service/internal/store"
)

const (
	testAdminEmail    = "owner@example.com"
	testAdminPassword = "correct horse"
)

// MockProductStorer is a mock implementation of store.ProductStorer
type MockProductStorer struct {
	mock.Mock
}

func (m *MockProductStorer) ListProductDocuments(ctx context.Context) ([]store.ProductDocument, error) {
	args := m.Called(ctx)
	var docs []store.ProductDocument
	if arg0 := args.Get(0); arg0 != nil {
		docs = arg0.([]store.ProductDocument)
	}
	return docs, args.Error(1)
}

func (m *MockProductStorer) GetProductDocument(ctx context.Context, id string) (*store.ProductDocument, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.ProductDocument), args.Error(1)
}

func (m *MockProductStorer) CreateProduct(ctx context.Context, doc map[string]any) (*store.ProductDocument, error) {
	args := m.Called(ctx, doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.ProductDocument), args.Error(1)
}

func (m *MockProductStorer) UpdateProduct(ctx context.Context, id string, doc map[string]any, expectedVersion *int64) (*store.ProductDocument, error) {
	args := m.Called(ctx, id, doc, expectedVersion)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.ProductDocument), args.Error(1)
}

func (m *MockProductStorer) PatchProduct(ctx context.Context, id string, fields map[string]any) (*store.ProductDocument, error) {
	args := m.Called(ctx, id, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.ProductDocument), args.Error(1)
}

func (m *MockProductStorer) DeleteProduct(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockCategoryStorer is a mock implementation of store.CategoryStorer
type MockCategoryStorer struct {
	mock.Mock
}

func (m *MockCategoryStorer) CreateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	args := m.Called(ctx, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *MockCategoryStorer) ListCategories(ctx context.Context) ([]domain.Category, error) {
	args := m.Called(ctx)
	var categories []domain.Category
	if arg0 := args.Get(0); arg0 != nil {
		categories = arg0.([]domain.Category)
	}
	return categories, args.Error(1)
}

func (m *MockCategoryStorer) UpdateCategory(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	args := m.Called(ctx, category)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Category), args.Error(1)
}

func (m *MockCategoryStorer) DeleteCategory(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockOrderStorer is a mock implementation of store.OrderStorer. CreateOrder may be
// given a func(*domain.Order) *domain.Order to echo the submitted order back.
type MockOrderStorer struct {
	mock.Mock
}

func (m *MockOrderStorer) CreateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	args := m.Called(ctx, order)
	if fn, ok := args.Get(0).(func(*domain.Order) *domain.Order); ok {
		return fn(order), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderStorer) ListOrders(ctx context.Context, period store.Period) ([]domain.Order, error) {
	args := m.Called(ctx, period)
	var orders []domain.Order
	if arg0 := args.Get(0); arg0 != nil {
		orders = arg0.([]domain.Order)
	}
	return orders, args.Error(1)
}

func (m *MockOrderStorer) UpdateOrderStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockOrderStorer) DeleteOrders(ctx context.Context, period store.Period) (int64, error) {
	args := m.Called(ctx, period)
	return args.Get(0).(int64), args.Error(1)
}

// MockPolicyStorer is a mock implementation of store.PolicyStorer
type MockPolicyStorer struct {
	mock.Mock
}

func (m *MockPolicyStorer) GetPolicies(ctx context.Context) (*domain.Policies, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Policies), args.Error(1)
}

func (m *MockPolicyStorer) SavePolicies(ctx context.Context, policies *domain.Policies) (*domain.Policies, error) {
	args := m.Called(ctx, policies)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Policies), args.Error(1)
}

type testEnv struct {
	server     *httptest.Server
	table      *catalog.Table
	sessions   *cart.Sessions
	products   *MockProductStorer
	categories *MockCategoryStorer
	orders     *MockOrderStorer
	policies   *MockPolicyStorer
}

// Helper for setting up tests with a chi router and handler
func setupTestChiServer(t *testing.T) *testEnv {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminPassword), bcrypt.MinCost)
	require.NoError(t, err)
	authenticator, err := auth.NewAuthenticator("test-secret", time.Hour, []auth.Account{
		{Email: testAdminEmail, PasswordHash: string(hash)},
	}, nil)
	require.NoError(t, err)

	env := &testEnv{
		table:      catalog.NewTable(nil),
		sessions:   cart.NewSessions(time.Hour, nil),
		products:   new(MockProductStorer),
		categories: new(MockCategoryStorer),
		orders:     new(MockOrderStorer),
		policies:   new(MockPolicyStorer),
	}
	delivery, err := checkout.LoadDeliveryTable("")
	require.NoError(t, err)

	normalizer := catalog.NewNormalizer(nil)
	handler := NewHTTPHandler(Deps{
		Table:      env.table,
		Admin:      catalog.NewAdmin(env.products, env.table, normalizer, catalog.CapacityCheck{}, nil),
		Categories: env.categories,
		Orders:     env.orders,
		Policies:   env.policies,
		Sessions:   env.sessions,
		Checkout: checkout.NewService(env.sessions, env.table, env.orders, delivery, nil, checkout.StoreProfile{
			Name:           "Atelier",
			WhatsAppNumber: "201000000000",
			Currency:       "EGP",
		}, nil),
		Auth:     authenticator,
		Uploader: media.NewUploader(media.NewCompressor(media.Options{}, nil), media.InlineStore{}),
	})
	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	env.server = httptest.NewServer(router)
	t.Cleanup(env.server.Close)
	return env
}

// Helper function to get a pointer (useful for optional fields in domain structs)
func PtrTo[T any](v T) *T {
	return &v
}

func linenDress() domain.Product {
	return domain.Product{
		ID:       "p1",
		Name:     "Linen Dress",
		Price:    600,
		Category: "Dresses",
		Sizes:    []string{"S", "M"},
		Colors: []domain.Color{{
			Color:     "Red",
			Image:     "red.jpg",
			Images:    []string{"red.jpg"},
			Available: true,
			Sizes: []domain.SizeAvailability{
				{Size: "S", Available: true},
				{Size: "M", Available: true, OutOfStock: true},
			},
		}},
		DisplayOrder: PtrTo(2),
	}
}

func silkScarf() domain.Product {
	return domain.Product{
		ID:           "p2",
		Name:         "Silk Scarf",
		Price:        250,
		Category:     "Accessories",
		Image:        "scarf.jpg",
		DisplayOrder: PtrTo(1),
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, header http.Header) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })
	return res
}

// login signs the test administrator in and returns the bearer header.
func (e *testEnv) login(t *testing.T) http.Header {
	t.Helper()
	res := e.do(t, http.MethodPost, "/api/v1/admin/login", LoginInput{Email: testAdminEmail, Password: testAdminPassword}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var out LoginResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	require.NotEmpty(t, out.Token)
	return http.Header{"Authorization": []string{"Bearer " + out.Token}}
}

func decodeBody[T any](t *testing.T, res *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(res.Body).Decode(&v))
	return v
}
