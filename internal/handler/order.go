package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/wanderhub/checkout-service/internal/checkout"
	"github.com/wanderhub/checkout-service/internal/order"
)

// userIDHeader carries the authenticated user id injected by the identity
// layer in front of this service. It is trusted unconditionally.
const userIDHeader = "X-User-ID"

type OrderHandler struct {
	svc      order.Service
	validate *validator.Validate
}

func NewOrderHandler(svc order.Service) *OrderHandler {
	return &OrderHandler{
		svc:      svc,
		validate: validator.New(),
	}
}

type lineItemPayload struct {
	ProductID string            `json:"product_id" validate:"required,uuid"`
	Quantity  int               `json:"quantity" validate:"required,min=1"`
	Variant   *checkout.Variant `json:"variant,omitempty"`
}

type validateCartPayload struct {
	Items     []lineItemPayload `json:"items" validate:"required,min=1,dive"`
	PromoCode string            `json:"promo_code"`
}

// createOrderPayload's billing address is optional; when omitted the
// shipping address is copied into it.
type createOrderPayload struct {
	Items           []lineItemPayload `json:"items" validate:"required,min=1,dive"`
	PromoCode       string            `json:"promo_code"`
	ShippingAddress *order.Address    `json:"shipping_address" validate:"required"`
	BillingAddress  *order.Address    `json:"billing_address"`
	Notes           string            `json:"notes"`
}

type updateOrderPayload struct {
	ShippingAddress *order.Address `json:"shipping_address"`
	BillingAddress  *order.Address `json:"billing_address"`
	Notes           *string        `json:"notes"`
	TrackingNumber  *string        `json:"tracking_number"`
}

type cancelOrderPayload struct {
	Reason        string `json:"reason"`
	RequestRefund bool   `json:"request_refund"`
}

type updateStatusPayload struct {
	Status         string `json:"status" validate:"required"`
	Reason         string `json:"reason"`
	TrackingNumber string `json:"tracking_number"`
}

func (h *OrderHandler) ValidateCart(w http.ResponseWriter, r *http.Request) {
	var payload validateCartPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := toLineItems(payload.Items)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	verdict, err := h.svc.ValidateCart(r.Context(), items, payload.PromoCode)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, verdict)
}

func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var payload createOrderPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	items, err := toLineItems(payload.Items)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	billing := payload.BillingAddress
	if billing == nil {
		billing = payload.ShippingAddress
	}

	ord, err := h.svc.CreateOrder(r.Context(), order.CreateOrderRequest{
		UserID:          userID,
		Items:           items,
		PromoCode:       payload.PromoCode,
		ShippingAddress: *payload.ShippingAddress,
		BillingAddress:  *billing,
		Notes:           payload.Notes,
	})
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, ord)
}

func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	ord, err := h.svc.GetOrder(r.Context(), id, userIDFromRequest(r))
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, ord)
}

func (h *OrderHandler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var payload updateOrderPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if payload.ShippingAddress != nil {
		if err := h.validate.Struct(payload.ShippingAddress); err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if payload.BillingAddress != nil {
		if err := h.validate.Struct(payload.BillingAddress); err != nil {
			respondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	ord, err := h.svc.UpdateOrder(r.Context(), id, order.OrderPatch{
		ShippingAddress: payload.ShippingAddress,
		BillingAddress:  payload.BillingAddress,
		Notes:           payload.Notes,
		TrackingNumber:  payload.TrackingNumber,
	}, userID)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, ord)
}

func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var payload cancelOrderPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ord, err := h.svc.CancelOrder(r.Context(), id, payload.Reason, payload.RequestRefund, userID)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, ord)
}

func (h *OrderHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var payload updateStatusPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	newStatus := order.OrderStatus(payload.Status)
	if !newStatus.Valid() {
		respondWithError(w, http.StatusBadRequest, "unknown order status "+payload.Status)
		return
	}

	ord, err := h.svc.UpdateOrderStatus(r.Context(), id, newStatus, payload.Reason, payload.TrackingNumber, userIDFromRequest(r))
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, ord)
}

func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	orders, pagination, err := h.svc.ListOrders(r.Context(), filter)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"orders":     orders,
		"pagination": pagination,
	})
}

func (h *OrderHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	filter, err := parseStatsFilter(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	stats, err := h.svc.GetStats(r.Context(), filter)
	if err != nil {
		respondWithDomainError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, stats)
}

func toLineItems(payload []lineItemPayload) ([]checkout.LineItem, error) {
	items := make([]checkout.LineItem, 0, len(payload))
	for _, p := range payload {
		productID, err := uuid.FromString(p.ProductID)
		if err != nil {
			return nil, fmt.Errorf("invalid product id %q", p.ProductID)
		}
		items = append(items, checkout.LineItem{
			ProductID: productID,
			Quantity:  p.Quantity,
			Variant:   p.Variant,
		})
	}
	return items, nil
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.FromString(raw)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid order id")
		return uuid.Nil, false
	}
	return id, true
}

func userIDFromRequest(r *http.Request) uuid.UUID {
	id, err := uuid.FromString(r.Header.Get(userIDHeader))
	if err != nil {
		return uuid.Nil
	}
	return id
}

func requireUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id := userIDFromRequest(r)
	if id == uuid.Nil {
		respondWithError(w, http.StatusUnauthorized, "authentication required")
		return uuid.Nil, false
	}
	return id, true
}

func parseListFilter(r *http.Request) (order.ListFilter, error) {
	q := r.URL.Query()
	f := order.ListFilter{
		Search:   q.Get("search"),
		SortBy:   q.Get("sort_by"),
		SortDesc: q.Get("sort_dir") != "asc",
	}

	if v := q.Get("status"); v != "" {
		status := order.OrderStatus(v)
		if !status.Valid() {
			return f, errBadParam("status", v)
		}
		f.Status = &status
	}
	if v := q.Get("user_id"); v != "" {
		id, err := uuid.FromString(v)
		if err != nil {
			return f, errBadParam("user_id", v)
		}
		f.UserID = &id
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, errBadParam("from", v)
		}
		f.CreatedFrom = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, errBadParam("to", v)
		}
		f.CreatedTo = &t
	}
	if v := q.Get("min_total"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return f, errBadParam("min_total", v)
		}
		f.MinTotal = &n
	}
	if v := q.Get("max_total"); v != "" {
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return f, errBadParam("max_total", v)
		}
		f.MaxTotal = &n
	}
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, errBadParam("page", v)
		}
		f.Page = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, errBadParam("limit", v)
		}
		f.Limit = n
	}

	return f, nil
}

func parseStatsFilter(r *http.Request) (order.StatsFilter, error) {
	q := r.URL.Query()
	var f order.StatsFilter

	if v := q.Get("user_id"); v != "" {
		id, err := uuid.FromString(v)
		if err != nil {
			return f, errBadParam("user_id", v)
		}
		f.UserID = &id
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, errBadParam("from", v)
		}
		f.CreatedFrom = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, errBadParam("to", v)
		}
		f.CreatedTo = &t
	}

	return f, nil
}

func errBadParam(name, value string) error {
	return fmt.Errorf("invalid query parameter %s: %q", name, value)
}
