package handlers

import (
	"net/http"

	"pendakian-services/internal/apperror"
	"pendakian-services/internal/payment"
	"pendakian-services/internal/queue"
	"pendakian-services/internal/reservation"
	"pendakian-services/pkg/response"
)

type paymentConfirmRequest struct {
	ReservationID int64 `json:"id_reservasi"`
}

// AdminPaymentConfirm relays a manual payment confirmation to the database
// procedure as the calling admin. The body keeps the {status, message} shape
// the admin console already parses.
func (h *Handler) AdminPaymentConfirm(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireAuth(w, r)
	if !ok {
		return
	}
	var req paymentConfirmRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx := r.Context()
	result, err := payment.Confirm(ctx, h.Payments, req.ReservationID, authCtx.AccessToken)
	if err != nil {
		appErr := apperror.From(err)
		h.Logger.Warn("payment confirmation failed",
			zapInt64("reservationId", req.ReservationID),
			zapString("code", string(appErr.Code)),
			zapError(err),
		)
		response.JSON(w, appErr.StatusCode, payment.Result{Status: payment.StatusFailed, Message: appErr.Message})
		return
	}
	if !result.OK() {
		h.Logger.Info("payment confirmation rejected",
			zapInt64("reservationId", req.ReservationID),
			zapString("message", result.Message),
		)
		response.JSON(w, http.StatusBadRequest, result)
		return
	}

	invalidateDashboardCache()
	if res, err := reservation.GetByID(ctx, h.DB, req.ReservationID); err == nil && res != nil {
		h.Reservations.Notify(ctx, res.Code)
		h.Events.Publish(ctx, reservation.EventFor(queue.ReservationEvent{
			Type:          queue.EventPaymentConfirmed,
			PreviousState: string(reservation.StatusAwaitingPayment),
			Actor:         actorName(authCtx),
		}, res))
	} else {
		h.Logger.Warn("reservation reload after payment failed", zapInt64("reservationId", req.ReservationID), zapError(err))
	}
	h.Logger.Info("payment confirmed", zapInt64("reservationId", req.ReservationID), zapString("by", authCtx.UserID))
	response.JSON(w, http.StatusOK, result)
}
