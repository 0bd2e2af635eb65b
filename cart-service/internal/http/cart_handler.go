package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/pos_cart/cart-service/internal/domain"
	"github.com/fjod/pos_cart/cart-service/internal/service"
	"github.com/fjod/pos_cart/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CartAPI is the cart use-case surface served over HTTP.
type CartAPI interface {
	CreateCart(ctx context.Context, terminalID string) (*domain.Cart, error)
	GetCart(ctx context.Context, cartID string) (*domain.Cart, error)
	AddItems(ctx context.Context, cartID string, items []service.AddItemInput) (*domain.Cart, error)
	UpdateQuantity(ctx context.Context, cartID string, lineNo, quantity int) (*domain.Cart, error)
	UpdateUnitPrice(ctx context.Context, cartID string, lineNo int, price decimal.Decimal) (*domain.Cart, error)
	CancelLineItem(ctx context.Context, cartID string, lineNo int) (*domain.Cart, error)
	AddLineDiscounts(ctx context.Context, cartID string, lineNo int, discounts []service.DiscountInput) (*domain.Cart, error)
	Subtotal(ctx context.Context, cartID string) (*domain.Cart, error)
	AddCartDiscounts(ctx context.Context, cartID string, discounts []service.DiscountInput) (*domain.Cart, error)
	AddPayments(ctx context.Context, cartID string, payments []service.PaymentInput) (*domain.Cart, error)
	CancelTransaction(ctx context.Context, cartID string) (*domain.Cart, error)
	ResumeItemEntry(ctx context.Context, cartID string) (*domain.Cart, error)
	Bill(ctx context.Context, cartID string) (*service.BillResult, error)
}

type CartHandler struct {
	carts   CartAPI
	timeout time.Duration
	logger  *zap.Logger
}

func NewCartHandler(carts CartAPI, timeout time.Duration, l *zap.Logger) *CartHandler {
	return &CartHandler{carts: carts, timeout: timeout, logger: l}
}

type CreateCartRequestDTO struct {
	TerminalID string `json:"terminal_id"`
}

type AddItemRequestDTO struct {
	ItemCode  string           `json:"item_code"`
	Quantity  int              `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type UpdateUnitPriceRequestDTO struct {
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type DiscountRequestDTO struct {
	Type   domain.DiscountKind `json:"discount_type"`
	Value  decimal.Decimal     `json:"discount_value"`
	Detail string              `json:"discount_detail,omitempty"`
}

type PaymentRequestDTO struct {
	PaymentCode string          `json:"payment_code"`
	Amount      decimal.Decimal `json:"amount"`
}

type BillResponseDTO struct {
	Cart          *domain.Cart `json:"cart"`
	ReceiptNo     int          `json:"receipt_no"`
	EventID       string       `json:"event_id"`
	DeliveryError string       `json:"delivery_error,omitempty"`
	CartSaveError string       `json:"cart_save_error,omitempty"`
}

func (h *CartHandler) CreateCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CreateCartRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.TerminalID == "" {
		respondError(w, http.StatusBadRequest, "invalid_terminal_id", "terminal_id is required")
		return
	}

	cart, err := h.carts.CreateCart(ctx, req.TerminalID)
	h.respondCart(w, r, http.StatusCreated, cart, err)
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.GetCart(ctx, chi.URLParam(r, "cart_id"))
	h.respondCart(w, r, http.StatusOK, cart, err)
}

func (h *CartHandler) AddItems(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req []AddItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req) == 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "at least one item is required")
		return
	}

	items := make([]service.AddItemInput, 0, len(req))
	for _, it := range req {
		items = append(items, service.AddItemInput{ItemCode: it.ItemCode, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	cart, err := h.carts.AddItems(ctx, chi.URLParam(r, "cart_id"), items)
	h.respondCart(w, r, http.StatusOK, cart, err)
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	lineNo, ok := lineNoParam(w, r)
	if !ok {
		return
	}
	var req UpdateQuantityRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	cart, err := h.carts.UpdateQuantity(ctx, chi.URLParam(r, "cart_id"), lineNo, req.Quantity)
	h.respondCart(w, r, http.StatusOK, cart, err)
}

func (h *CartHandler) UpdateUnitPrice(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	lineNo, ok := lineNoParam(w, r)
	if !ok {
		return
	}
	var req UpdateUnitPriceRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	cart, err := h.carts.UpdateUnitPrice(ctx, chi.URLParam(r, "cart_id"), lineNo, req.UnitPrice)
	h.respondCart(w, r, http.StatusOK, cart, err)
}

func (h *CartHandler) CancelLineItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	lineNo, ok := lineNoParam(w, r)
	if !ok {
		return
	}

	cart, err := h.carts.CancelLineItem(ctx, chi.URLParam(r, "cart_id"), lineNo)
	h.respondCart(w, r, http.StatusOK, cart, err)
}

func (h *CartHandler) AddLineDiscounts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	lineNo, ok := lineNoParam(w, r)
	if !ok {
		return
	}
	var req []DiscountRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	cart, err := h.carts.AddLineDiscounts(ctx, chi.URLParam(r, "cart_id"), lineNo, toDiscounts(req))
	h.respondCart(w, r, http.StatusOK, cart, err)
}

func (h *CartHandler) Subtotal(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.Subtotal(ctx, chi.URLParam(r, "cart_id"))
	h.respondCart(w, r, http.StatusOK, cart, err)
}

func (h *CartHandler) AddCartDiscounts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req []DiscountRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	cart, err := h.carts.AddCartDiscounts(ctx, chi.URLParam(r, "cart_id"), toDiscounts(req))
	h.respondCart(w, r, http.StatusOK, cart, err)
}

func (h *CartHandler) AddPayments(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req []PaymentRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}

	payments := make([]service.PaymentInput, 0, len(req))
	for _, p := range req {
		payments = append(payments, service.PaymentInput{PaymentCode: p.PaymentCode, Amount: p.Amount})
	}
	cart, err := h.carts.AddPayments(ctx, chi.URLParam(r, "cart_id"), payments)
	h.respondCart(w, r, http.StatusOK, cart, err)
}

func (h *CartHandler) CancelTransaction(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.CancelTransaction(ctx, chi.URLParam(r, "cart_id"))
	h.respondCart(w, r, http.StatusOK, cart, err)
}

func (h *CartHandler) ResumeItemEntry(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	cart, err := h.carts.ResumeItemEntry(ctx, chi.URLParam(r, "cart_id"))
	h.respondCart(w, r, http.StatusOK, cart, err)
}

// Bill answers 200 once the transaction log is stored; a failed publish is
// reported in delivery_error and left to the recovery sweep. cart_save_error
// asks the client to bill the cart again.
func (h *CartHandler) Bill(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	res, err := h.carts.Bill(ctx, chi.URLParam(r, "cart_id"))
	if err != nil {
		handleError(w, logger.FromContext(r.Context(), h.logger), err)
		return
	}

	resp := BillResponseDTO{Cart: res.Cart, EventID: res.EventID}
	if res.Log != nil {
		resp.ReceiptNo = res.Log.ReceiptNo
	}
	if res.DeliveryErr != nil {
		resp.DeliveryError = res.DeliveryErr.Error()
	}
	if res.SaveErr != nil {
		resp.CartSaveError = res.SaveErr.Error()
	}
	respondJSON(w, http.StatusOK, resp)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

func (h *CartHandler) respondCart(w http.ResponseWriter, r *http.Request, status int, cart *domain.Cart, err error) {
	if err != nil {
		handleError(w, logger.FromContext(r.Context(), h.logger), err)
		return
	}
	respondJSON(w, status, cart)
}

func lineNoParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	lineNo, err := strconv.Atoi(chi.URLParam(r, "line_no"))
	if err != nil || lineNo <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_line_no", "line_no must be a positive integer")
		return 0, false
	}
	return lineNo, true
}

func toDiscounts(req []DiscountRequestDTO) []service.DiscountInput {
	out := make([]service.DiscountInput, 0, len(req))
	for _, d := range req {
		out = append(out, service.DiscountInput{Kind: d.Type, Value: d.Value, Detail: d.Detail})
	}
	return out
}
