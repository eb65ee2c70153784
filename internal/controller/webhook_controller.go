package controller

import (
	"net/http"
	"strconv"

	"github.com/cassiomorais/payflow/internal/domain/webhook"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// WebhookController exposes read access to webhook delivery state, used
// by merchants and operators to inspect retry progress and terminal
// failures.
type WebhookController struct {
	webhookRepo webhook.Repository
}

func NewWebhookController(webhookRepo webhook.Repository) *WebhookController {
	return &WebhookController{webhookRepo: webhookRepo}
}

// ListByPayment handles GET /api/v1/payments/{id}/webhooks
func (h *WebhookController) ListByPayment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid payment id", Code: "invalid_id"})
		return
	}

	deliveries, err := h.webhookRepo.ListByPayment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]*DeliveryResponse, 0, len(deliveries))
	for _, d := range deliveries {
		resp = append(resp, FromDelivery(d))
	}
	writeJSON(w, http.StatusOK, resp)
}

// List handles GET /api/v1/webhooks
func (h *WebhookController) List(w http.ResponseWriter, r *http.Request) {
	var status *webhook.Status
	if s := r.URL.Query().Get("status"); s != "" {
		st := webhook.Status(s)
		status = &st
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	deliveries, err := h.webhookRepo.List(r.Context(), status, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]*DeliveryResponse, 0, len(deliveries))
	for _, d := range deliveries {
		resp = append(resp, FromDelivery(d))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /api/v1/webhooks/{id}
func (h *WebhookController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid delivery id", Code: "invalid_id"})
		return
	}

	d, err := h.webhookRepo.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, FromDelivery(d))
}
