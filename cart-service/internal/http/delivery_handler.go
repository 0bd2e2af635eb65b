package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/pos_cart/cart-service/internal/domain"
	"github.com/fjod/pos_cart/cart-service/internal/recovery"
	"github.com/fjod/pos_cart/pkg/logger"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type DeliveryAPI interface {
	Get(ctx context.Context, eventID string) (*domain.DeliveryStatus, error)
	Acknowledge(ctx context.Context, eventID, service, status, message string) (*domain.DeliveryStatus, error)
}

// Sweeper triggers an out-of-band recovery sweep.
type Sweeper interface {
	Sweep(ctx context.Context) (recovery.Result, error)
}

type DeliveryHandler struct {
	deliveries DeliveryAPI
	sweeper    Sweeper
	timeout    time.Duration
	logger     *zap.Logger
}

func NewDeliveryHandler(deliveries DeliveryAPI, sweeper Sweeper, timeout time.Duration, l *zap.Logger) *DeliveryHandler {
	return &DeliveryHandler{deliveries: deliveries, sweeper: sweeper, timeout: timeout, logger: l}
}

type AcknowledgeRequestDTO struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func (h *DeliveryHandler) GetDelivery(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	ds, err := h.deliveries.Get(ctx, chi.URLParam(r, "event_id"))
	if err != nil {
		handleError(w, logger.FromContext(r.Context(), h.logger), err)
		return
	}
	respondJSON(w, http.StatusOK, ds)
}

func (h *DeliveryHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AcknowledgeRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	ds, err := h.deliveries.Acknowledge(ctx, chi.URLParam(r, "event_id"), chi.URLParam(r, "service"), req.Status, req.Message)
	if err != nil {
		handleError(w, logger.FromContext(r.Context(), h.logger), err)
		return
	}
	respondJSON(w, http.StatusOK, ds)
}

// Sweep runs one recovery sweep now; it is rejected while another sweep runs.
func (h *DeliveryHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	res, err := h.sweeper.Sweep(r.Context())
	if err != nil {
		handleError(w, logger.FromContext(r.Context(), h.logger), err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}
