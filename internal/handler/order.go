package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/rosegold-gallery/storefront/internal/auth"
	"github.com/rosegold-gallery/storefront/internal/middleware"
	"github.com/rosegold-gallery/storefront/internal/order"
)

type OrderItemRequest struct {
	ProductID string  `json:"product_id" validate:"required"`
	Name      string  `json:"name" validate:"required"`
	Quantity  int     `json:"quantity" validate:"required,min=1"`
	Price     float64 `json:"price" validate:"gte=0"`
	ImageRef  string  `json:"image_ref"`
}

type AddressRequest struct {
	City   string `json:"city" validate:"required"`
	Street string `json:"street" validate:"required"`
}

type CreateOrderRequest struct {
	Items           []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
	TotalAmount     float64            `json:"total_amount" validate:"required,gt=0"`
	ShippingAddress AddressRequest     `json:"shipping_address" validate:"required"`
}

type CreateOrderResponse struct {
	OrderID      uuid.UUID `json:"order_id"`
	TrackingCode string    `json:"tracking_code"`
}

// UpdateOrderRequest is the admin mutation body: at least one of status and
// shipping_address is required. Force bypasses the forward-only transition
// table for manual correction.
type UpdateOrderRequest struct {
	Status          *string         `json:"status,omitempty"`
	ShippingAddress *AddressRequest `json:"shipping_address,omitempty"`
	Force           bool            `json:"force,omitempty"`
}

type BulkAddressRequest struct {
	ShippingAddress AddressRequest `json:"shipping_address" validate:"required"`
}

type BulkAddressResponse struct {
	UpdatedCount int64 `json:"updated_count"`
}

type OrderHandler struct {
	svc      order.Service
	validate *validator.Validate
}

func NewOrderHandler(svc order.Service) *OrderHandler {
	return &OrderHandler{svc: svc, validate: validator.New()}
}

// RegisterRoutes mounts the authenticated user-facing order routes.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/orders", h.handleCreateOrder)
	r.Get("/orders", h.handleListMine)
	// Mounted before /orders/{id} so the literal segment is not swallowed
	// by the id parameter.
	r.Put("/orders/update-address/all", h.handleBulkUpdateAddress)
	r.Get("/orders/{id}", h.handleGetOrder)
}

// RegisterAdminRoutes mounts the admin-only order routes; the caller wraps
// them in the role-checking middleware.
func (h *OrderHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/orders", h.handleListAll)
	r.Put("/orders/{id}", h.handleUpdateOrder)
	r.Delete("/orders/{id}", h.handleDeleteOrder)
}

func (h *OrderHandler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	ok := false
	defer func() { middleware.RecordOrderOperation("create", ok) }()

	identity, ownerID, valid := requireOwner(w, r)
	if !valid {
		return
	}

	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	items := make([]order.Item, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, order.Item{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: it.Price,
			ImageRef:  it.ImageRef,
		})
	}
	addr := order.ShippingAddress{City: req.ShippingAddress.City, Street: req.ShippingAddress.Street}

	created, err := h.svc.Create(r.Context(), ownerID, items, addr, req.TotalAmount)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err))
		return
	}

	ok = true
	log.Info().Stringer("order_id", created.ID).Str("owner", identity.ID).Msg("handler: order created")
	respondWithJSON(w, http.StatusCreated, CreateOrderResponse{
		OrderID:      created.ID,
		TrackingCode: created.TrackingCode,
	})
}

func (h *OrderHandler) handleListMine(w http.ResponseWriter, r *http.Request) {
	ok := false
	defer func() { middleware.RecordOrderOperation("list", ok) }()

	_, ownerID, valid := requireOwner(w, r)
	if !valid {
		return
	}

	orders, err := h.svc.ListForOwner(r.Context(), ownerID)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err))
		return
	}

	ok = true
	respondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	ok := false
	defer func() { middleware.RecordOrderOperation("get", ok) }()

	identity, found := auth.IdentityFromContext(r.Context())
	if !found {
		respondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := h.svc.Get(r.Context(), id, identity)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err))
		return
	}

	ok = true
	respondWithJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) handleBulkUpdateAddress(w http.ResponseWriter, r *http.Request) {
	ok := false
	defer func() { middleware.RecordOrderOperation("bulk_address", ok) }()

	_, ownerID, valid := requireOwner(w, r)
	if !valid {
		return
	}

	var req BulkAddressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondWithError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	addr := order.ShippingAddress{City: req.ShippingAddress.City, Street: req.ShippingAddress.Street}
	count, err := h.svc.BulkUpdateAddress(r.Context(), ownerID, addr)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err))
		return
	}

	ok = true
	respondWithJSON(w, http.StatusOK, BulkAddressResponse{UpdatedCount: count})
}

func (h *OrderHandler) handleListAll(w http.ResponseWriter, r *http.Request) {
	ok := false
	defer func() { middleware.RecordOrderOperation("list_all", ok) }()

	identity, found := auth.IdentityFromContext(r.Context())
	if !found {
		respondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	orders, err := h.svc.ListAll(r.Context(), identity)
	if err != nil {
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err))
		return
	}

	ok = true
	respondWithJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) handleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	ok := false
	defer func() { middleware.RecordOrderOperation("update", ok) }()

	identity, found := auth.IdentityFromContext(r.Context())
	if !found {
		respondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req UpdateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status == nil && req.ShippingAddress == nil {
		respondWithError(w, http.StatusBadRequest, "nothing to update: provide status and/or shipping_address")
		return
	}

	// Both fields are checked before either is applied: a bad half of the
	// body must not leave a half-applied update behind.
	if req.Status != nil && !order.Status(*req.Status).Valid() {
		respondWithError(w, http.StatusBadRequest, clientMessage(order.ErrInvalidStatus))
		return
	}
	var addr order.ShippingAddress
	if req.ShippingAddress != nil {
		addr = order.ShippingAddress{City: req.ShippingAddress.City, Street: req.ShippingAddress.Street}
		if !addr.Complete() {
			respondWithError(w, http.StatusBadRequest, clientMessage(order.ErrInvalidAddress))
			return
		}
	}

	var updated *order.Order
	if req.Status != nil {
		updated, err = h.svc.UpdateStatus(r.Context(), id, order.Status(*req.Status), req.Force, identity)
		if err != nil {
			respondWithError(w, mapErrorToStatusCode(err), clientMessage(err))
			return
		}
	}
	if req.ShippingAddress != nil {
		updated, err = h.svc.UpdateShippingAddress(r.Context(), id, addr, identity)
		if err != nil {
			respondWithError(w, mapErrorToStatusCode(err), clientMessage(err))
			return
		}
	}

	ok = true
	respondWithJSON(w, http.StatusOK, updated)
}

func (h *OrderHandler) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	ok := false
	defer func() { middleware.RecordOrderOperation("delete", ok) }()

	identity, found := auth.IdentityFromContext(r.Context())
	if !found {
		respondWithError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	if err := h.svc.Delete(r.Context(), id, identity); err != nil {
		respondWithError(w, mapErrorToStatusCode(err), clientMessage(err))
		return
	}

	ok = true
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "order deleted"})
}

// requireOwner extracts the authenticated identity and its uuid subject.
// A token whose subject is not a uuid never maps to an owner, so it is
// rejected as unauthenticated.
func requireOwner(w http.ResponseWriter, r *http.Request) (auth.Identity, uuid.UUID, bool) {
	identity, found := auth.IdentityFromContext(r.Context())
	if !found {
		respondWithError(w, http.StatusUnauthorized, "authentication required")
		return auth.Identity{}, uuid.Nil, false
	}
	ownerID, err := uuid.FromString(identity.ID)
	if err != nil {
		log.Warn().Str("subject", identity.ID).Msg("handler: token subject is not a valid owner id")
		respondWithError(w, http.StatusUnauthorized, "authentication required")
		return auth.Identity{}, uuid.Nil, false
	}
	return identity, ownerID, true
}
