package handlers

import (
	"net/http"
	"strings"

	"pendakian-services/internal/apperror"
	"pendakian-services/internal/middleware"
	"pendakian-services/internal/queue"
	"pendakian-services/internal/reservation"
	"pendakian-services/internal/storage"
	"pendakian-services/internal/validation"
	"pendakian-services/pkg/response"
)

func (h *Handler) AdminReservationsList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := reservation.ListFilter{
		Search:   strings.TrimSpace(q.Get("q")),
		Page:     queryInt(r, "page", 1),
		PageSize: queryInt(r, "page_size", 20),
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, ok := reservation.ParseStatus(raw)
		if !ok {
			response.Fail(w, apperror.Validation("Status reservasi tidak dikenal", map[string]any{"status": "oneof"}))
			return
		}
		filter.Status = status
	}
	var err error
	if filter.DateFrom, err = queryDate(r, "dari"); err != nil {
		response.Fail(w, apperror.Validation("Format tanggal harus YYYY-MM-DD", map[string]any{"dari": "date"}))
		return
	}
	if filter.DateTo, err = queryDate(r, "sampai"); err != nil {
		response.Fail(w, apperror.Validation("Format tanggal harus YYYY-MM-DD", map[string]any{"sampai": "date"}))
		return
	}

	result, err := reservation.List(r.Context(), h.DB, filter)
	if err != nil {
		h.Logger.Error("reservation list failed", zapError(err))
		response.Fail(w, apperror.Upstream("Gagal mengambil daftar reservasi", err))
		return
	}
	response.Success(w, result)
}

func (h *Handler) AdminReservationDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	detail, err := reservation.GetDetail(r.Context(), h.DB, id)
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

type statusUpdateRequest struct {
	Status string `json:"status"`
	Reason string `json:"alasan"`
}

// AdminReservationStatusUpdate moves a reservation along the status table.
// Confirmation is reserved for the payment confirmation endpoint.
func (h *Handler) AdminReservationStatusUpdate(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireAuth(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req statusUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	to, valid := reservation.ParseStatus(req.Status)
	if !valid {
		response.Fail(w, apperror.Validation("Status reservasi tidak dikenal", map[string]any{"status": "oneof"}))
		return
	}
	if to == reservation.StatusConfirmed {
		response.Fail(w, apperror.BusinessRule(apperror.CodeInvalidTransition,
			"Gunakan konfirmasi pembayaran untuk mengonfirmasi reservasi",
			map[string]any{"ke": string(to)},
		))
		return
	}

	ctx := r.Context()
	from, err := reservation.UpdateStatus(ctx, h.DB, id, to)
	if err != nil {
		response.Fail(w, err)
		return
	}

	invalidateDashboardCache()
	res, err := reservation.GetByID(ctx, h.DB, id)
	if err != nil || res == nil {
		h.Logger.Warn("reservation reload after status change failed", zapInt64("id", id), zapError(err))
		response.SuccessMessage(w, http.StatusOK, "Status reservasi diperbarui", map[string]any{"id_reservasi": id, "status": to})
		return
	}

	evtType := queue.EventReservationStatus
	if to == reservation.StatusCancelled {
		evtType = queue.EventReservationCancelled
	}
	h.Reservations.Notify(ctx, res.Code)
	h.Events.Publish(ctx, reservation.EventFor(queue.ReservationEvent{
		Type:          evtType,
		Status:        string(to),
		PreviousState: string(from),
		Actor:         actorName(authCtx),
		Message:       strings.TrimSpace(req.Reason),
	}, res))
	h.Logger.Info("reservation status changed",
		zapString("code", res.Code),
		zapString("from", string(from)),
		zapString("to", string(to)),
		zapString("by", authCtx.UserID),
	)
	response.SuccessMessage(w, http.StatusOK, "Status reservasi diperbarui", res)
}

type wasteStatusRequest struct {
	Status string `json:"status_sampah"`
}

// AdminReservationWasteStatus records the ranger's check of carried-down waste.
func (h *Handler) AdminReservationWasteStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req wasteStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	status, valid := reservation.ParseWasteStatus(req.Status)
	if !valid {
		response.Fail(w, apperror.Validation("Status sampah tidak dikenal", map[string]any{"status_sampah": "oneof"}))
		return
	}
	updated, err := reservation.UpdateWasteStatus(r.Context(), h.DB, id, status)
	if err != nil {
		response.Fail(w, apperror.Upstream("Gagal memperbarui status sampah", err))
		return
	}
	if !updated {
		response.Fail(w, apperror.NotFound("Reservasi tidak ditemukan"))
		return
	}
	invalidateDashboardCache()
	response.SuccessMessage(w, http.StatusOK, "Status sampah diperbarui", map[string]any{
		"id_reservasi":  id,
		"status_sampah": status,
	})
}

func (h *Handler) AdminReservationDelete(w http.ResponseWriter, r *http.Request) {
	authCtx, ok := requireAuth(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	ctx := r.Context()
	res, err := reservation.GetByID(ctx, h.DB, id)
	if err != nil {
		response.Fail(w, apperror.Upstream("Gagal mengambil reservasi", err))
		return
	}
	if res == nil {
		response.Fail(w, apperror.NotFound("Reservasi tidak ditemukan"))
		return
	}
	if _, err := reservation.Delete(ctx, h.DB, id); err != nil {
		response.Fail(w, err)
		return
	}

	if res.PaymentProof != nil {
		if store, err := h.makeStore(ctx); err == nil {
			if err := store.DeletePrefix(ctx, storage.PaymentProofPrefix(res.Code)); err != nil {
				h.Logger.Warn("payment proof cleanup failed", zapString("code", res.Code), zapError(err))
			}
		}
	}

	invalidateDashboardCache()
	h.Reservations.Notify(ctx, res.Code)
	h.Events.Publish(ctx, reservation.EventFor(queue.ReservationEvent{
		Type:  queue.EventReservationDeleted,
		Actor: actorName(authCtx),
	}, res))
	h.Logger.Info("reservation deleted", zapString("code", res.Code), zapString("by", authCtx.UserID))
	response.SuccessMessage(w, http.StatusOK, "Reservasi dihapus", nil)
}

func (h *Handler) AdminMemberUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var in reservation.MemberUpdate
	if !decodeJSON(w, r, &in) {
		return
	}
	in.FullName = trimmedPtr(in.FullName)
	in.NIK = trimmedPtr(in.NIK)
	in.Address = trimmedPtr(in.Address)
	in.Phone = trimmedPtr(in.Phone)
	in.EmergencyContact = trimmedPtr(in.EmergencyContact)
	in.HealthCertificate = trimmedPtr(in.HealthCertificate)
	if verr := validation.Struct(&in, "Data pendaki tidak valid"); verr != nil {
		response.Fail(w, verr)
		return
	}

	member, err := reservation.UpdateMember(r.Context(), h.DB, id, in)
	if err != nil {
		response.Fail(w, apperror.Upstream("Gagal memperbarui data pendaki", err))
		return
	}
	if member == nil {
		response.Fail(w, apperror.NotFound("Pendaki tidak ditemukan"))
		return
	}
	response.SuccessMessage(w, http.StatusOK, "Data pendaki diperbarui", member)
}

func (h *Handler) AdminMemberDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	deleted, err := reservation.DeleteMember(r.Context(), h.DB, id)
	if err != nil {
		response.Fail(w, apperror.Upstream("Gagal menghapus pendaki", err))
		return
	}
	if !deleted {
		response.Fail(w, apperror.NotFound("Pendaki tidak ditemukan"))
		return
	}
	response.SuccessMessage(w, http.StatusOK, "Pendaki dihapus", nil)
}

func actorName(authCtx *middleware.AuthContext) string {
	if authCtx == nil {
		return ""
	}
	if authCtx.Name != "" {
		return authCtx.Name
	}
	if authCtx.Email != "" {
		return authCtx.Email
	}
	return authCtx.UserID
}
