package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/washline/washsync/internal/enum"
	"github.com/washline/washsync/internal/model"
	"github.com/washline/washsync/internal/payment"
)

// Payments defines the reconciler methods needed by payment handlers.
// Satisfied by *payment.Reconciler.
type Payments interface {
	Prepare(ctx context.Context, req payment.Request) (*payment.Quote, error)
	Pay(ctx context.Context, req payment.Request) (*model.PaymentTransaction, error)
}

// PaymentHandler handles payment endpoints.
type PaymentHandler struct {
	payments Payments
	lg       *zap.Logger
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(p Payments, lg *zap.Logger) *PaymentHandler {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &PaymentHandler{payments: p, lg: lg}
}

// RegisterRoutes registers payment endpoints. Expected to be mounted at
// /orders/{id}/payment.
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/quote", h.Quote)
	r.Post("/", h.Pay)
}

type paymentRequest struct {
	Method    string `json:"method"`
	Tendered  string `json:"tendered"`
	Confirmed bool   `json:"confirmed"`
}

type quoteResponse struct {
	Method            enum.PaymentMethod `json:"method"`
	PaymentMethodID   int                `json:"payment_method_id"`
	Total             string             `json:"total"`
	Summ              string             `json:"summ"`
	ToPay             string             `json:"to_pay"`
	Change            string             `json:"change"`
	CashPortion       string             `json:"cash_portion"`
	NonCashPortion    string             `json:"non_cash_portion"`
	ExceedsAmount     bool               `json:"exceeds_amount"`
	NeedsConfirmation bool               `json:"needs_confirmation"`
}

type transactionResponse struct {
	ID              string             `json:"id"`
	OrderID         string             `json:"order_id"`
	Method          enum.PaymentMethod `json:"method"`
	PaymentMethodID int                `json:"payment_method_id"`
	Summ            string             `json:"summ"`
	ToPay           string             `json:"to_pay"`
	Change          string             `json:"change"`
	CashPortion     string             `json:"cash_portion"`
	NonCashPortion  string             `json:"non_cash_portion"`
}

func newTransactionResponse(tx model.PaymentTransaction) transactionResponse {
	return transactionResponse{
		ID:              tx.ID,
		OrderID:         tx.OrderID,
		Method:          tx.Method,
		PaymentMethodID: tx.PaymentMethodID,
		Summ:            tx.Summ.String(),
		ToPay:           tx.ToPay.String(),
		Change:          tx.Change.String(),
		CashPortion:     tx.CashPortion.String(),
		NonCashPortion:  tx.NonCashPortion.String(),
	}
}

func (h *PaymentHandler) decode(w http.ResponseWriter, r *http.Request) (payment.Request, bool) {
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid request body")
		return payment.Request{}, false
	}
	out := payment.Request{
		OrderID:   chi.URLParam(r, "id"),
		Method:    enum.PaymentMethod(req.Method),
		Confirmed: req.Confirmed,
	}
	if req.Tendered != "" {
		tendered, err := decimal.NewFromString(req.Tendered)
		if err != nil {
			writeBadRequest(w, "invalid tendered amount")
			return payment.Request{}, false
		}
		out.Tendered = tendered
	}
	return out, true
}

// Quote handles POST /orders/{id}/payment/quote.
func (h *PaymentHandler) Quote(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	q, err := h.payments.Prepare(r.Context(), req)
	if err != nil {
		writeError(w, h.lg, err)
		return
	}
	writeJSON(w, http.StatusOK, quoteResponse{
		Method:            q.Method,
		PaymentMethodID:   q.PaymentMethodID,
		Total:             q.Total.String(),
		Summ:              q.Summ.String(),
		ToPay:             q.ToPay.String(),
		Change:            q.Change.String(),
		CashPortion:       q.CashPortion.String(),
		NonCashPortion:    q.NonCashPortion.String(),
		ExceedsAmount:     q.ExceedsAmount,
		NeedsConfirmation: q.NeedsConfirmation,
	})
}

// Pay handles POST /orders/{id}/payment.
func (h *PaymentHandler) Pay(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	tx, err := h.payments.Pay(r.Context(), req)
	if err != nil {
		writeError(w, h.lg, err)
		return
	}
	writeJSON(w, http.StatusCreated, newTransactionResponse(*tx))
}
