package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ariefcatur/go-storefront-orders.git/internal/orders"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	placeIn    *orders.PlaceOrderInput
	placeOut   *orders.Order
	placeErr   error
	getOut     *orders.Order
	getErr     error
	statusPrev orders.Status
	statusErr  error
	products   []orders.Product
}

func (m *mockStore) PlaceOrderTx(_ context.Context, in orders.PlaceOrderInput) (*orders.Order, error) {
	m.placeIn = &in
	return m.placeOut, m.placeErr
}

func (m *mockStore) GetOrderByCode(_ context.Context, code string) (*orders.Order, error) {
	return m.getOut, m.getErr
}

func (m *mockStore) UpdateStatus(_ context.Context, code string, next orders.Status) (orders.Status, error) {
	return m.statusPrev, m.statusErr
}

func (m *mockStore) ListProducts(_ context.Context) ([]orders.Product, error) {
	return m.products, nil
}

type capturingPublisher struct {
	values [][]byte
}

func (p *capturingPublisher) Publish(_, value []byte, _ ...kafkago.Header) {
	p.values = append(p.values, value)
}

func newHandler(store *mockStore) (http.Handler, *capturingPublisher, *capturingPublisher) {
	placed := &capturingPublisher{}
	cancelled := &capturingPublisher{}
	router := NewRouter()
	h := &OrdersHandler{Store: store, Producer: placed, CancelProducer: cancelled, Service: "test-api"}
	h.Register(router)
	return router, placed, cancelled
}

func sampleOrder(code string) *orders.Order {
	return &orders.Order{
		ID:         uuid.NewString(),
		Code:       code,
		Status:     orders.StatusPending,
		TotalCents: 10000,
		UserID:     uuid.NewString(),
		Lines: []orders.OrderLine{
			{ProductID: uuid.NewString(), Qty: 2, UnitPriceCents: 5000},
		},
	}
}

func TestPlaceOrderHandler(t *testing.T) {
	t.Run("success publishes and returns 201", func(t *testing.T) {
		store := &mockStore{placeOut: sampleOrder("ORD-OK")}
		router, placed, _ := newHandler(store)

		body := `{"user_id":"u1","address_id":"a1","lines":[{"product_id":"p1","qty":2,"unit_price_cents":5000}]}`
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(body)))

		require.Equal(t, http.StatusCreated, rec.Code)
		var got orders.Order
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "ORD-OK", got.Code)

		require.NotNil(t, store.placeIn)
		assert.NotEmpty(t, store.placeIn.Code, "a code must be generated when the client omits one")

		require.Len(t, placed.values, 1)
		var env orders.Envelope
		require.NoError(t, json.Unmarshal(placed.values[0], &env))
		assert.Equal(t, orders.EventOrderPlaced, env.EventType)
	})

	t.Run("client code is kept", func(t *testing.T) {
		store := &mockStore{placeOut: sampleOrder("ORD-CLIENT")}
		router, _, _ := newHandler(store)

		body := `{"code":"ORD-CLIENT","user_id":"u1","address_id":"a1","lines":[{"product_id":"p1","qty":1,"unit_price_cents":100}]}`
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(body)))

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "ORD-CLIENT", store.placeIn.Code)
	})

	t.Run("bad json", func(t *testing.T) {
		router, placed, _ := newHandler(&mockStore{})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString("{")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, placed.values)
	})

	t.Run("failure mapping", func(t *testing.T) {
		cases := []struct {
			name string
			err  error
			want int
		}{
			{"invalid input", &orders.InvalidInputError{Field: "lines", Reason: "must not be empty"}, http.StatusBadRequest},
			{"product missing", &orders.NotFoundError{Entity: "product", ID: "p1"}, http.StatusNotFound},
			{"insufficient stock", &orders.InsufficientStockError{Entity: "product", ID: "p1", Requested: 2, Available: 1}, http.StatusConflict},
			{"duplicate code", &orders.DuplicateCodeError{Code: "ORD-1"}, http.StatusConflict},
			{"unknown", errors.New("boom"), http.StatusInternalServerError},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				store := &mockStore{placeErr: tc.err}
				router, placed, _ := newHandler(store)

				body := `{"user_id":"u1","address_id":"a1","lines":[{"product_id":"p1","qty":2,"unit_price_cents":100}]}`
				rec := httptest.NewRecorder()
				router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(body)))

				assert.Equal(t, tc.want, rec.Code)
				assert.Empty(t, placed.values, "failed placements must not publish")
			})
		}
	})
}

func TestGetOrderHandler(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		store := &mockStore{getOut: sampleOrder("ORD-GET")}
		router, _, _ := newHandler(store)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/ORD-GET", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var got orders.Order
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "ORD-GET", got.Code)
		assert.Len(t, got.Lines, 1)
	})

	t.Run("not found", func(t *testing.T) {
		store := &mockStore{getErr: &orders.NotFoundError{Entity: "order", ID: "ORD-NOPE"}}
		router, _, _ := newHandler(store)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/ORD-NOPE", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestUpdateStatusHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		store := &mockStore{statusPrev: orders.StatusPending}
		router, _, cancelled := newHandler(store)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/orders/ORD-1/status",
			bytes.NewBufferString(`{"status":"CONFIRMED"}`)))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "PENDING", resp["from"])
		assert.Equal(t, "CONFIRMED", resp["to"])
		assert.Empty(t, cancelled.values)
	})

	t.Run("cancellation publishes", func(t *testing.T) {
		store := &mockStore{statusPrev: orders.StatusPending}
		router, _, cancelled := newHandler(store)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/orders/ORD-2/status",
			bytes.NewBufferString(`{"status":"CANCELLED"}`)))

		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, cancelled.values, 1)
		var env orders.Envelope
		require.NoError(t, json.Unmarshal(cancelled.values[0], &env))
		assert.Equal(t, orders.EventOrderCancelled, env.EventType)
	})

	t.Run("illegal transition", func(t *testing.T) {
		store := &mockStore{statusErr: &orders.IllegalTransitionError{From: orders.StatusPending, To: orders.StatusDelivered}}
		router, _, cancelled := newHandler(store)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/orders/ORD-3/status",
			bytes.NewBufferString(`{"status":"DELIVERED"}`)))

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Empty(t, cancelled.values)
	})
}

func TestListProductsHandler(t *testing.T) {
	store := &mockStore{products: []orders.Product{
		{ID: uuid.NewString(), SKU: "SKU-1", Name: "Widget", Stock: 3, PriceCents: 5000},
	}}
	router, _, _ := newHandler(store)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/products", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got []orders.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "SKU-1", got[0].SKU)
}

func TestHealthz(t *testing.T) {
	router, _, _ := newHandler(&mockStore{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
