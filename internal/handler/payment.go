package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tradepost/marketplace/internal/auth"
	"github.com/tradepost/marketplace/internal/domain"
	"github.com/tradepost/marketplace/internal/service"
)

// PaymentHandler handles buyer-facing payment endpoints.
type PaymentHandler struct {
	paymentSvc *service.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentSvc *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentSvc: paymentSvc}
}

type createIntentRequest struct {
	ListingID string `json:"listing_id"`
}

// CreateIntent handles POST /payments/intent.
func (h *PaymentHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		RespondError(w, r, err)
		return
	}

	var req createIntentRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, r, domain.ErrValidation("invalid request body"))
		return
	}
	listingID, err := uuid.Parse(req.ListingID)
	if err != nil {
		RespondError(w, r, domain.ErrValidation("invalid listing_id"))
		return
	}

	resp, err := h.paymentSvc.CreatePaymentIntent(r.Context(), userID, listingID)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, resp)
}

type createMilestoneRequest struct {
	ListingID   string `json:"listing_id"`
	Title       string `json:"title"`
	AmountCents int64  `json:"amount_cents"`
}

// CreateMilestone handles POST /payments/milestones.
func (h *PaymentHandler) CreateMilestone(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		RespondError(w, r, err)
		return
	}

	var req createMilestoneRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, r, domain.ErrValidation("invalid request body"))
		return
	}
	listingID, err := uuid.Parse(req.ListingID)
	if err != nil {
		RespondError(w, r, domain.ErrValidation("invalid listing_id"))
		return
	}

	resp, err := h.paymentSvc.CreateMilestoneIntent(r.Context(), userID, listingID, req.Title, req.AmountCents)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, resp)
}

// ListPayments handles GET /payments.
func (h *PaymentHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		RespondError(w, r, err)
		return
	}

	payments, err := h.paymentSvc.ListPayments(r.Context(), userID)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, payments)
}

// GetPayment handles GET /payments/{id}.
func (h *PaymentHandler) GetPayment(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r)
	if err != nil {
		RespondError(w, r, err)
		return
	}

	paymentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, domain.ErrValidation("invalid payment id"))
		return
	}

	payment, err := h.paymentSvc.GetPayment(r.Context(), userID, paymentID)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, payment)
}

// userIDFromContext parses the authenticated subject as a user UUID.
func userIDFromContext(r *http.Request) (uuid.UUID, error) {
	sub := auth.SubjectFromContext(r.Context())
	if sub == "" {
		return uuid.Nil, domain.ErrUnauthorized("no auth context")
	}
	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, domain.ErrUnauthorized("invalid subject")
	}
	return userID, nil
}
