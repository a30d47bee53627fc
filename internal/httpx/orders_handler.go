package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	kafkax "github.com/ariefcatur/go-storefront-orders.git/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders.git/internal/orders"
	"github.com/ariefcatur/go-storefront-orders.git/internal/redisx"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

// OrderStore is what the handler needs from internal/orders.Repo.
type OrderStore interface {
	PlaceOrderTx(ctx context.Context, in orders.PlaceOrderInput) (*orders.Order, error)
	GetOrderByCode(ctx context.Context, code string) (*orders.Order, error)
	UpdateStatus(ctx context.Context, code string, next orders.Status) (orders.Status, error)
	ListProducts(ctx context.Context) ([]orders.Product, error)
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Producers are topic-bound, one per emitted event stream.
type OrdersHandler struct {
	Store          OrderStore
	Producer       Publisher // order.placed
	CancelProducer Publisher // order.cancelled
	Redis          *redis.Client // optional; nil disables caching
	Service        string
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.placeOrder)
	r.Get("/orders/{code}", h.getOrder)
	r.Patch("/orders/{code}/status", h.updateStatus)
	r.Get("/products", h.listProducts)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

// statusFor maps the failure taxonomy to HTTP codes. Unknown failures stay
// generic 500s.
func statusFor(err error) int {
	var (
		invalid  *orders.InvalidInputError
		notFound *orders.NotFoundError
		stock    *orders.InsufficientStockError
		dup      *orders.DuplicateCodeError
		illegal  *orders.IllegalTransitionError
	)
	switch {
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &stock):
		return http.StatusConflict
	case errors.As(err, &dup):
		return http.StatusConflict
	case errors.As(err, &illegal):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// newOrderCode generates a short human-readable code when the client does
// not supply one.
func newOrderCode() string {
	return "ORD-" + strings.ToUpper(uuid.NewString()[:8])
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var in orders.PlaceOrderInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if in.Code == "" {
		in.Code = newOrderCode()
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	order, err := h.Store.PlaceOrderTx(ctx, in)
	if err != nil {
		writeError(w, err)
		return
	}

	h.cacheOrder(ctx, order)
	h.publishPlaced(order, r.Header.Get("X-Request-Id"))

	writeJSON(w, http.StatusCreated, order)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing code"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if h.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderCache, code)
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(s))
			return
		}
	}

	order, err := h.Store.GetOrderByCode(ctx, code)
	if err != nil {
		writeError(w, err)
		return
	}
	h.cacheOrder(ctx, order)
	writeJSON(w, http.StatusOK, order)
}

type updateStatusReq struct {
	Status orders.Status `json:"status"`
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	var req updateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	prev, err := h.Store.UpdateStatus(ctx, code, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}

	// drop any cached copy with the old status
	if h.Redis != nil {
		_ = h.Redis.Del(ctx, fmt.Sprintf(redisx.KeyOrderCache, code)).Err()
	}
	if req.Status == orders.StatusCancelled {
		h.publishCancelled(code, r.Header.Get("X-Request-Id"))
	}

	writeJSON(w, http.StatusOK, map[string]any{"code": code, "from": prev, "to": req.Status})
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Store.ListProducts(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *OrdersHandler) cacheOrder(ctx context.Context, o *orders.Order) {
	if h.Redis == nil {
		return
	}
	b, err := json.Marshal(o)
	if err != nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderCache, o.Code)
	if err := h.Redis.Set(ctx, key, b, redisx.TTLOrderCache).Err(); err != nil {
		log.WithError(err).Debug("order cache set failed")
	}
}

func (h *OrdersHandler) publishPlaced(o *orders.Order, trace string) {
	if h.Producer == nil {
		return
	}
	lines := make([]orders.LineQty, 0, len(o.Lines))
	for _, ln := range o.Lines {
		lines = append(lines, orders.LineQty{ProductID: ln.ProductID, VariationID: ln.VariationID, Qty: ln.Qty})
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderPlaced,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       trace,
		CorrelationID: o.Code,
		Payload: kafkax.MustMarshal(orders.OrderPlacedPayload{
			OrderID: o.ID, Code: o.Code, UserID: o.UserID, TotalCents: o.TotalCents, Lines: lines,
		}),
	}
	h.Producer.Publish(orders.PartitionKey(o.Code), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderPlaced)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (h *OrdersHandler) publishCancelled(code, trace string) {
	if h.CancelProducer == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderCancelled,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       trace,
		CorrelationID: code,
		Payload:       kafkax.MustMarshal(orders.OrderCancelledPayload{Code: code}),
	}
	h.CancelProducer.Publish(orders.PartitionKey(code), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderCancelled)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
