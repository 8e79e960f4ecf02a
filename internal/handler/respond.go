// Package handler is the local HTTP bridge the presentation shell calls
// into. It exposes the order store, the lifecycle controller and the
// payment reconciler as JSON endpoints.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/washline/washsync/internal/backend"
	"github.com/washline/washsync/internal/lifecycle"
	"github.com/washline/washsync/internal/payment"
)

type errorResponse struct {
	Error       string               `json:"error"`
	Code        string               `json:"code"`
	Transaction *transactionResponse `json:"transaction,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg, Code: "bad_request"})
}

// writeError maps the client's error taxonomy onto HTTP statuses and
// stable codes the shell switches on.
func writeError(w http.ResponseWriter, lg *zap.Logger, err error) {
	var (
		status = http.StatusInternalServerError
		code   = "internal"
		msg    = err.Error()
		resp   errorResponse

		verr *backend.ValidationError
		terr *lifecycle.TransitionError
		ierr *lifecycle.IllegalTransitionError
		perr *payment.PostPaymentCompletionError
	)

	switch {
	// Checked first: it wraps the completion failure.
	case errors.As(err, &perr):
		status, code = http.StatusBadGateway, "paid_not_completed"
		tx := newTransactionResponse(perr.Transaction)
		resp.Transaction = &tx
	case errors.Is(err, backend.ErrSubscriptionExpired):
		status, code = http.StatusForbidden, "subscription_expired"
	case errors.Is(err, backend.ErrNetworkUnavailable):
		status, code = http.StatusServiceUnavailable, "network_unavailable"
	case errors.Is(err, backend.ErrAuthTokenMissing):
		status, code = http.StatusUnauthorized, "auth_token_missing"
	case errors.Is(err, lifecycle.ErrConcurrentMutation):
		status, code = http.StatusConflict, "concurrent_mutation"
	case errors.Is(err, payment.ErrConfirmationRequired):
		status, code = http.StatusPreconditionRequired, "confirmation_required"
	case errors.Is(err, lifecycle.ErrOrderNotFound),
		errors.Is(err, lifecycle.ErrAssignmentNotFound),
		errors.Is(err, backend.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, lifecycle.ErrNoServicesAssigned):
		status, code = http.StatusUnprocessableEntity, "no_services_assigned"
	case errors.Is(err, lifecycle.ErrPaymentRequired):
		status, code = http.StatusUnprocessableEntity, "payment_required"
	case errors.As(err, &ierr):
		status, code = http.StatusUnprocessableEntity, "illegal_transition"
	case errors.Is(err, lifecycle.ErrOrderClosed),
		errors.Is(err, lifecycle.ErrInvalidPrice),
		errors.Is(err, lifecycle.ErrInvalidSalary),
		errors.Is(err, lifecycle.ErrUnknownAssignee),
		errors.Is(err, payment.ErrInsufficientCash),
		errors.Is(err, payment.ErrInvalidAmount),
		errors.Is(err, payment.ErrUnsupportedMethod),
		errors.Is(err, payment.ErrAlreadyPaid):
		status, code = http.StatusUnprocessableEntity, "rejected"
	case errors.As(err, &terr):
		status, code, msg = http.StatusBadGateway, "transition_failed", terr.Reason
	case errors.As(err, &verr):
		status, code, msg = http.StatusBadRequest, "validation_rejected", verr.Message
	}

	if status == http.StatusInternalServerError {
		lg.Error("Request failed", zap.Error(err))
	}
	resp.Error = msg
	resp.Code = code
	writeJSON(w, status, resp)
}
