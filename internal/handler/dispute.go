package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tradepost/marketplace/internal/domain"
	"github.com/tradepost/marketplace/internal/service"
)

// DisputeHandler handles admin dispute actions.
type DisputeHandler struct {
	disputeSvc *service.DisputeService
}

// NewDisputeHandler creates a new DisputeHandler.
func NewDisputeHandler(disputeSvc *service.DisputeService) *DisputeHandler {
	return &DisputeHandler{disputeSvc: disputeSvc}
}

// RefundDispute handles POST /admin/disputes/{id}/refund.
func (h *DisputeHandler) RefundDispute(w http.ResponseWriter, r *http.Request) {
	adminID, disputeID, err := disputeParams(r)
	if err != nil {
		RespondError(w, r, err)
		return
	}

	payment, err := h.disputeSvc.RefundDispute(r.Context(), adminID, disputeID)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, payment)
}

// ResolveDispute handles POST /admin/disputes/{id}/resolve.
func (h *DisputeHandler) ResolveDispute(w http.ResponseWriter, r *http.Request) {
	adminID, disputeID, err := disputeParams(r)
	if err != nil {
		RespondError(w, r, err)
		return
	}

	payment, err := h.disputeSvc.ResolveDispute(r.Context(), adminID, disputeID)
	if err != nil {
		RespondError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, payment)
}

func disputeParams(r *http.Request) (adminID, disputeID uuid.UUID, err error) {
	adminID, err = userIDFromContext(r)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	disputeID, err = uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, domain.ErrValidation("invalid dispute id")
	}
	return adminID, disputeID, nil
}
