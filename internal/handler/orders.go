package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/washline/washsync/internal/enum"
	"github.com/washline/washsync/internal/lifecycle"
	"github.com/washline/washsync/internal/model"
	"github.com/washline/washsync/internal/store"
)

// Lifecycle defines the controller methods needed by order handlers.
// Satisfied by *lifecycle.Controller.
type Lifecycle interface {
	RequestTransition(ctx context.Context, orderID string, target enum.OrderStatus) error
	AssignService(ctx context.Context, req lifecycle.AssignRequest) (*model.ServiceAssignment, error)
	RemoveAssignment(ctx context.Context, orderID, assignmentID string) error
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	store *store.Store
	lc    Lifecycle
	lg    *zap.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(s *store.Store, lc Lifecycle, lg *zap.Logger) *OrderHandler {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &OrderHandler{store: s, lc: lc, lg: lg}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted at /orders.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/transition", h.Transition)
	r.Post("/{id}/services", h.AddService)
	r.Delete("/{id}/services/{sid}", h.RemoveService)
}

// --- Request / Response types ---

type orderResponse struct {
	ID            string               `json:"id"`
	Brand         string               `json:"brand"`
	Model         string               `json:"model"`
	LicensePlate  string               `json:"license_plate"`
	PhoneNumber   string               `json:"phone_number"`
	CreatedAt     *time.Time           `json:"created_at"`
	Status        enum.OrderStatus     `json:"status"`
	TotalServices string               `json:"total_services"`
	Paid          bool                 `json:"paid"`
	Placeholder   bool                 `json:"placeholder"`
	Services      []assignmentResponse `json:"services"`
}

type assignmentResponse struct {
	ID          string `json:"id"`
	ServiceID   string `json:"service_id"`
	ServiceName string `json:"service_name"`
	UserID      string `json:"user_id"`
	Price       string `json:"price"`
	Salary      string `json:"salary"`
}

type orderListResponse struct {
	Version uint64          `json:"version"`
	Orders  []orderResponse `json:"orders"`
}

type transitionRequest struct {
	Status string `json:"status"`
}

type addServiceRequest struct {
	ServiceID string  `json:"service_id"`
	UserID    string  `json:"user_id"`
	Price     string  `json:"price"`
	Salary    *string `json:"salary"`
}

func newOrderResponse(o model.Order) orderResponse {
	resp := orderResponse{
		ID:            o.ID,
		Brand:         o.Brand,
		Model:         o.Model,
		LicensePlate:  o.LicensePlate,
		PhoneNumber:   o.PhoneNumber,
		Status:        o.Status,
		TotalServices: o.TotalServices.String(),
		Paid:          o.Paid,
		Placeholder:   o.Placeholder,
		Services:      make([]assignmentResponse, 0, len(o.Assignments)),
	}
	if !o.CreatedAt.IsZero() {
		createdAt := o.CreatedAt
		resp.CreatedAt = &createdAt
	}
	for _, a := range o.Assignments {
		resp.Services = append(resp.Services, newAssignmentResponse(a))
	}
	return resp
}

func newAssignmentResponse(a model.ServiceAssignment) assignmentResponse {
	return assignmentResponse{
		ID:          a.ID,
		ServiceID:   a.ServiceID,
		ServiceName: a.ServiceName,
		UserID:      a.UserID,
		Price:       a.Price.String(),
		Salary:      a.Salary.String(),
	}
}

// --- Handlers ---

// List handles GET /orders?q=&status=open,ready.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	filters := []store.Filter{store.Search(r.URL.Query().Get("q"))}

	if raw := r.URL.Query().Get("status"); raw != "" {
		var statuses []enum.OrderStatus
		for _, part := range strings.Split(raw, ",") {
			s := enum.OrderStatus(strings.TrimSpace(part))
			if !s.Valid() {
				writeBadRequest(w, "invalid status filter: "+part)
				return
			}
			statuses = append(statuses, s)
		}
		filters = append(filters, store.WithStatus(statuses...))
	}

	// Version first: a mutation racing the query shows up as a newer
	// version on the next poll.
	version := h.store.Version()
	orders := h.store.Query(store.All(filters...))

	resp := orderListResponse{Version: version, Orders: make([]orderResponse, 0, len(orders))}
	for _, o := range orders {
		resp.Orders = append(resp.Orders, newOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	o, ok := h.store.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, h.lg, lifecycle.ErrOrderNotFound)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(o))
}

// Transition handles POST /orders/{id}/transition.
func (h *OrderHandler) Transition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	target := enum.OrderStatus(req.Status)
	if !target.Valid() {
		writeBadRequest(w, "invalid status")
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.lc.RequestTransition(r.Context(), id, target); err != nil {
		writeError(w, h.lg, err)
		return
	}

	if target == enum.OrderStatusDeleted {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	o, ok := h.store.Get(id)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, newOrderResponse(o))
}

// AddService handles POST /orders/{id}/services.
func (h *OrderHandler) AddService(w http.ResponseWriter, r *http.Request) {
	var req addServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	if req.ServiceID == "" {
		writeBadRequest(w, "service_id is required")
		return
	}

	assign := lifecycle.AssignRequest{
		OrderID:   chi.URLParam(r, "id"),
		ServiceID: req.ServiceID,
		UserID:    req.UserID,
	}
	if req.Price != "" {
		price, err := decimal.NewFromString(req.Price)
		if err != nil {
			writeBadRequest(w, "invalid price")
			return
		}
		assign.Price = price
	}
	if req.Salary != nil {
		salary, err := decimal.NewFromString(*req.Salary)
		if err != nil {
			writeBadRequest(w, "invalid salary")
			return
		}
		assign.Salary = &salary
	}

	a, err := h.lc.AssignService(r.Context(), assign)
	if err != nil {
		writeError(w, h.lg, err)
		return
	}
	writeJSON(w, http.StatusCreated, newAssignmentResponse(*a))
}

// RemoveService handles DELETE /orders/{id}/services/{sid}.
func (h *OrderHandler) RemoveService(w http.ResponseWriter, r *http.Request) {
	if err := h.lc.RemoveAssignment(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "sid")); err != nil {
		writeError(w, h.lg, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
