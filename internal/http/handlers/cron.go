package handlers

import (
	"context"
	"net/http"
	"time"

	"pendakian-services/internal/apperror"
	"pendakian-services/internal/jobs"
	"pendakian-services/pkg/response"
)

// CronReservationsExpire cancels unpaid reservations past the payment window.
// It runs the same job as the in-process scheduler for deployments that
// trigger maintenance from an external cron.
func (h *Handler) CronReservationsExpire(w http.ResponseWriter, r *http.Request) {
	h.runCronJob(w, r, h.Jobs.ExpireUnpaid)
}

// CronReservationsComplete marks confirmed climbs dated before today as finished.
func (h *Handler) CronReservationsComplete(w http.ResponseWriter, r *http.Request) {
	h.runCronJob(w, r, h.Jobs.CompletePast)
}

func (h *Handler) runCronJob(w http.ResponseWriter, r *http.Request, job func(context.Context) (jobs.Result, error)) {
	startedAt := time.Now().UTC()
	result, err := job(r.Context())
	if err != nil {
		h.Logger.Error("cron job failed", zapString("job", result.Job), zapError(err))
		response.Fail(w, apperror.Upstream("Tugas terjadwal gagal dijalankan", err))
		return
	}
	if result.Affected > 0 {
		invalidateDashboardCache()
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"job":       result.Job,
		"affected":  result.Affected,
		"codes":     result.Codes,
		"startedAt": startedAt,
		"endedAt":   time.Now().UTC(),
	})
}
