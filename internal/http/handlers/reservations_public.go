package handlers

import (
	"net/http"
	"strings"

	"pendakian-services/internal/apperror"
	"pendakian-services/internal/queue"
	"pendakian-services/internal/reservation"
	"pendakian-services/pkg/response"
)

// PublicReservationCreate books a climb. The response body is the flat
// creation result so existing clients can read kode_reservasi directly.
func (h *Handler) PublicReservationCreate(w http.ResponseWriter, r *http.Request) {
	var req reservation.CreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.Reservations.Create(r.Context(), req)
	if err != nil {
		response.Fail(w, err)
		return
	}
	invalidateDashboardCache()
	response.JSON(w, http.StatusCreated, result)
}

// loadPublicReservation resolves {code} and checks the caller's token or email.
// Unknown codes and failed checks both answer 404.
func (h *Handler) loadPublicReservation(w http.ResponseWriter, r *http.Request) (*reservation.Reservation, bool) {
	code := strings.ToUpper(readPathString(r, "code"))
	if code == "" {
		response.Fail(w, apperror.Validation("Kode reservasi wajib diisi", map[string]any{"code": "required"}))
		return nil, false
	}
	res, err := reservation.GetByCode(r.Context(), h.DB, code)
	if err != nil {
		h.Logger.Error("reservation lookup failed", zapString("code", code), zapError(err))
		response.Fail(w, apperror.Upstream("Gagal mengambil reservasi", err))
		return nil, false
	}
	q := r.URL.Query()
	if res == nil || !h.Reservations.VerifyAccess(res, strings.TrimSpace(q.Get("token")), q.Get("email")) {
		response.Fail(w, apperror.NotFound("Reservasi tidak ditemukan"))
		return nil, false
	}
	return res, true
}

func (h *Handler) PublicReservationGet(w http.ResponseWriter, r *http.Request) {
	res, ok := h.loadPublicReservation(w, r)
	if !ok {
		return
	}
	detail, err := reservation.GetDetail(r.Context(), h.DB, res.ID)
	if err != nil {
		response.Fail(w, apperror.Upstream("Gagal mengambil detail reservasi", err))
		return
	}
	if detail == nil {
		response.Fail(w, apperror.NotFound("Reservasi tidak ditemukan"))
		return
	}
	response.Success(w, detail)
}

// PublicReservationCancel lets the party leader drop an unpaid booking and
// return its capacity to the day's quota.
func (h *Handler) PublicReservationCancel(w http.ResponseWriter, r *http.Request) {
	res, ok := h.loadPublicReservation(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	if err := reservation.CancelByCode(ctx, h.DB, res.Code); err != nil {
		response.Fail(w, err)
		return
	}

	invalidateDashboardCache()
	h.Reservations.Notify(ctx, res.Code)
	h.Events.Publish(ctx, reservation.EventFor(queue.ReservationEvent{
		Type:    queue.EventReservationCancelled,
		Status:  string(reservation.StatusCancelled),
		Actor:   "ketua_rombongan",
		Message: "Dibatalkan oleh ketua rombongan",
	}, res))
	h.Logger.Info("reservation cancelled by leader", zapString("code", res.Code))
	response.SuccessMessage(w, http.StatusOK, "Reservasi berhasil dibatalkan", map[string]any{
		"kode_reservasi": res.Code,
		"status":         reservation.StatusCancelled,
	})
}
