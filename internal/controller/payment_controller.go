package controller

import (
	"errors"
	"net/http"
	"strconv"

	paymentApp "github.com/cassiomorais/payflow/internal/application/payment"
	domainErrors "github.com/cassiomorais/payflow/internal/domain/errors"
	"github.com/cassiomorais/payflow/internal/domain/payment"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PaymentController handles payment-related HTTP requests.
type PaymentController struct {
	createUC    *paymentApp.CreatePaymentUseCase
	processUC   *paymentApp.ProcessPaymentUseCase
	refundUC    *paymentApp.RefundPaymentUseCase
	paymentRepo payment.Repository
	logger      zerolog.Logger
}

// NewPaymentController creates a new PaymentController.
func NewPaymentController(
	createUC *paymentApp.CreatePaymentUseCase,
	processUC *paymentApp.ProcessPaymentUseCase,
	refundUC *paymentApp.RefundPaymentUseCase,
	paymentRepo payment.Repository,
	logger zerolog.Logger,
) *PaymentController {
	return &PaymentController{
		createUC:    createUC,
		processUC:   processUC,
		refundUC:    refundUC,
		paymentRepo: paymentRepo,
		logger:      logger,
	}
}

// CreatePayment handles POST /api/v1/payments.
// A replayed idempotent request returns 200 with the original payment;
// a fresh one is created, processed, and returned with 201.
func (h *PaymentController) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")
	if idempotencyKey == "" {
		idempotencyKey = uuid.New().String()
	}

	resp, err := h.createUC.Execute(r.Context(), paymentApp.CreatePaymentRequest{
		IdempotencyKey: idempotencyKey,
		MerchantID:     req.MerchantID,
		OrderID:        req.OrderID,
		Amount:         floatToCents(req.Amount),
		Currency:       req.Currency,
		Method:         payment.Method(req.Method),
		Provider:       req.Provider,
		Metadata:       req.Metadata,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if resp.Replayed {
		writeJSON(w, http.StatusOK, FromPayment(resp.Payment))
		return
	}

	// Synchronous processing path. A provider rejection lands in the
	// payment's own status, not in the HTTP status; only a known-down
	// provider (open breaker) is surfaced as a 503.
	if err := h.processUC.Execute(r.Context(), resp.Payment.ID); err != nil {
		if errors.Is(err, domainErrors.ErrCircuitOpen) {
			writeError(w, err)
			return
		}
		h.logger.Warn().Err(err).Str("payment_id", resp.Payment.ID.String()).Msg("payment processing failed")
	}

	p, err := h.paymentRepo.GetByID(r.Context(), resp.Payment.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, FromPayment(p))
}

// GetPayment handles GET /api/v1/payments/{id}
func (h *PaymentController) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid payment id", Code: "invalid_id"})
		return
	}

	p, err := h.paymentRepo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromPayment(p))
}

// ListPayments handles GET /api/v1/payments
func (h *PaymentController) ListPayments(w http.ResponseWriter, r *http.Request) {
	filter := payment.ListFilter{}

	if s := r.URL.Query().Get("status"); s != "" {
		status := payment.Status(s)
		filter.Status = &status
	}
	if s := r.URL.Query().Get("merchant_id"); s != "" {
		filter.MerchantID = &s
	}
	if s := r.URL.Query().Get("order_id"); s != "" {
		filter.OrderID = &s
	}
	if s := r.URL.Query().Get("provider"); s != "" {
		filter.Provider = &s
	}
	filter.Limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	filter.Offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	filter.SortBy = r.URL.Query().Get("sort_by")
	filter.SortOrder = r.URL.Query().Get("sort_order")

	payments, err := h.paymentRepo.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]*PaymentResponse, 0, len(payments))
	for _, p := range payments {
		resp = append(resp, FromPayment(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetEvents handles GET /api/v1/payments/{id}/events
func (h *PaymentController) GetEvents(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid payment id", Code: "invalid_id"})
		return
	}

	events, err := h.paymentRepo.GetEvents(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]*EventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, FromEventRecord(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

// RefundPayment handles POST /api/v1/payments/{id}/refund
func (h *PaymentController) RefundPayment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid payment id", Code: "invalid_id"})
		return
	}

	var req RefundPaymentRequest
	if r.ContentLength > 0 {
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}

	p, err := h.refundUC.Execute(r.Context(), id, floatToCents(req.Amount))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FromPayment(p))
}
