package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pendakian-services/internal/apperror"
	"pendakian-services/internal/queue"
	"pendakian-services/internal/reservation"
	"pendakian-services/internal/storage"
	"pendakian-services/internal/utils"
	"pendakian-services/pkg/response"
)

const (
	cacheControlImmutable = "public, max-age=31536000, immutable"
	photoMaxSide          = 1600
	photoQuality          = 85
	posterThumbSide       = 480
)

type fileReadErrorKind string

const (
	fileReadErrMissing     fileReadErrorKind = "missing"
	fileReadErrReadFailed  fileReadErrorKind = "read_failed"
	fileReadErrTooLarge    fileReadErrorKind = "too_large"
	fileReadErrInvalidType fileReadErrorKind = "invalid_type"
)

type fileReadError struct {
	Kind    fileReadErrorKind
	Message string
	Err     error
}

type uploadedFile struct {
	Data        []byte
	ContentType string
	Filename    string
}

// readFileBytes reads one multipart file bounded by maxBytes and checks its
// type against the accepted image formats (and PDF when allowPDF is set).
func readFileBytes(r *http.Request, field string, allowPDF bool, maxBytes int64) (uploadedFile, *fileReadError) {
	if maxBytes <= 0 {
		maxBytes = 2 * 1024 * 1024
	}
	maxSizeMB := float64(maxBytes) / (1024 * 1024)

	file, header, err := r.FormFile(field)
	if err != nil {
		return uploadedFile{}, &fileReadError{Kind: fileReadErrMissing, Message: "File wajib diunggah", Err: err}
	}
	defer file.Close()

	data, readErr := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if readErr != nil {
		return uploadedFile{}, &fileReadError{Kind: fileReadErrReadFailed, Message: "Gagal membaca file", Err: readErr}
	}
	if int64(len(data)) > maxBytes {
		return uploadedFile{}, &fileReadError{Kind: fileReadErrTooLarge, Message: fmt.Sprintf("Ukuran file maksimal %.0fMB", maxSizeMB)}
	}

	ct, err := utils.ValidateUpload(header.Header.Get("Content-Type"), header.Filename, data, allowPDF)
	if err != nil {
		msg := "Tipe file tidak didukung. Unggah gambar (JPG, PNG, WEBP, HEIC)"
		if allowPDF {
			msg = "Tipe file tidak didukung. Unggah gambar atau PDF"
		}
		return uploadedFile{}, &fileReadError{Kind: fileReadErrInvalidType, Message: msg, Err: err}
	}
	return uploadedFile{Data: data, ContentType: ct, Filename: header.Filename}, nil
}

func writeFileError(w http.ResponseWriter, ferr *fileReadError) {
	switch ferr.Kind {
	case fileReadErrMissing:
		response.Fail(w, apperror.Validation(ferr.Message, map[string]any{"file": "required"}))
	case fileReadErrTooLarge:
		response.Fail(w, apperror.Validation(ferr.Message, map[string]any{"file": "max_size"}))
	case fileReadErrInvalidType:
		response.Fail(w, apperror.Validation(ferr.Message, map[string]any{"file": "mime"}))
	default:
		response.Fail(w, apperror.Internal(ferr.Message, ferr.Err))
	}
}

func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request) bool {
	limit := h.Config.MaxFileSizeBytes + 1<<20
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.Fail(w, apperror.Validation(fmt.Sprintf("Ukuran file maksimal %dMB", h.Config.MaxFileSizeBytes/(1024*1024)), map[string]any{"file": "max_size"}))
			return false
		}
		response.Fail(w, apperror.Validation("Form unggahan tidak valid", nil))
		return false
	}
	return true
}

func (h *Handler) storeOrFail(w http.ResponseWriter, r *http.Request) (storage.Store, bool) {
	store, err := h.makeStore(r.Context())
	if err != nil {
		h.Logger.Error("object store unavailable", zapError(err))
		response.Fail(w, apperror.Upstream("Penyimpanan file tidak tersedia", err))
		return nil, false
	}
	return store, true
}

// PublicUploadHealthCertificate stores a climber's health certificate. Photos
// are re-encoded to an upright JPEG; PDFs are stored as they are.
func (h *Handler) PublicUploadHealthCertificate(w http.ResponseWriter, r *http.Request) {
	if !h.parseMultipart(w, r) {
		return
	}
	file, ferr := readFileBytes(r, "file", true, h.Config.MaxFileSizeBytes)
	if ferr != nil {
		writeFileError(w, ferr)
		return
	}

	body, contentType, ext := file.Data, file.ContentType, "pdf"
	if contentType != utils.ContentTypePDF {
		encoded, _, err := utils.EncodeJpegFitInside(file.Data, photoMaxSide, photoQuality)
		if err != nil {
			response.Fail(w, apperror.Validation("Gambar tidak dapat diproses", map[string]any{"file": "decode"}))
			return
		}
		body, contentType, ext = encoded, "image/jpeg", "jpg"
	}

	store, ok := h.storeOrFail(w, r)
	if !ok {
		return
	}
	url, err := store.PutObject(r.Context(), storage.HealthCertificateKey(time.Now(), ext), body, contentType, cacheControlImmutable)
	if err != nil {
		h.Logger.Error("health certificate upload failed", zapError(err))
		response.Fail(w, apperror.Upstream("Gagal mengunggah surat sehat", err))
		return
	}
	response.SuccessMessage(w, http.StatusCreated, "Surat sehat berhasil diunggah", map[string]any{"url": url})
}

// PublicReservationUploadPaymentProof attaches a transfer receipt to an unpaid
// reservation. The caller proves ownership with the reservation access token.
func (h *Handler) PublicReservationUploadPaymentProof(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := strings.ToUpper(readPathString(r, "code"))
	if code == "" {
		response.Fail(w, apperror.Validation("Kode reservasi wajib diisi", map[string]any{"code": "required"}))
		return
	}
	if !h.parseMultipart(w, r) {
		return
	}
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		token = strings.TrimSpace(r.FormValue("token"))
	}

	res, err := reservation.GetByCode(ctx, h.DB, code)
	if err != nil {
		response.Fail(w, apperror.Upstream("Gagal mengambil reservasi", err))
		return
	}
	if res == nil || !h.Reservations.VerifyAccess(res, token, "") {
		response.Fail(w, apperror.NotFound("Reservasi tidak ditemukan"))
		return
	}
	if res.Status != reservation.StatusAwaitingPayment {
		response.Fail(w, apperror.BusinessRule(apperror.CodeInvalidTransition,
			"Bukti pembayaran hanya dapat diunggah selama menunggu pembayaran",
			map[string]any{"status": string(res.Status)},
		))
		return
	}

	file, ferr := readFileBytes(r, "file", false, h.Config.MaxFileSizeBytes)
	if ferr != nil {
		writeFileError(w, ferr)
		return
	}
	encoded, _, err := utils.EncodeJpegFitInside(file.Data, photoMaxSide, photoQuality)
	if err != nil {
		response.Fail(w, apperror.Validation("Gambar tidak dapat diproses", map[string]any{"file": "decode"}))
		return
	}

	store, ok := h.storeOrFail(w, r)
	if !ok {
		return
	}
	url, err := store.PutObject(ctx, storage.PaymentProofKey(code, time.Now()), encoded, "image/jpeg", cacheControlImmutable)
	if err != nil {
		h.Logger.Error("payment proof upload failed", zapString("code", code), zapError(err))
		response.Fail(w, apperror.Upstream("Gagal mengunggah bukti pembayaran", err))
		return
	}

	attached, err := reservation.AttachPaymentProof(ctx, h.DB, code, url)
	if err != nil || !attached {
		_ = store.DeleteURL(ctx, url)
		if err != nil {
			response.Fail(w, apperror.Upstream("Gagal menyimpan bukti pembayaran", err))
			return
		}
		response.Fail(w, apperror.Conflict("Status reservasi berubah, bukti pembayaran tidak disimpan", nil))
		return
	}
	if res.PaymentProof != nil && *res.PaymentProof != url {
		if err := store.DeleteURL(ctx, *res.PaymentProof); err != nil {
			h.Logger.Warn("old payment proof cleanup failed", zapString("code", code), zapError(err))
		}
	}

	invalidateDashboardCache()
	h.Reservations.Notify(ctx, code)
	h.Events.Publish(ctx, reservation.EventFor(queue.ReservationEvent{Type: queue.EventPaymentProofUploaded}, res))
	response.SuccessMessage(w, http.StatusCreated, "Bukti pembayaran berhasil diunggah", map[string]any{"url_bukti_pembayaran": url})
}

// AdminUploadPoster stores an announcement poster plus a square thumbnail.
func (h *Handler) AdminUploadPoster(w http.ResponseWriter, r *http.Request) {
	if !h.parseMultipart(w, r) {
		return
	}
	file, ferr := readFileBytes(r, "file", false, h.Config.MaxFileSizeBytes)
	if ferr != nil {
		writeFileError(w, ferr)
		return
	}

	full, meta, err := utils.EncodeJpegFitInside(file.Data, photoMaxSide, photoQuality)
	if err != nil {
		response.Fail(w, apperror.Validation("Gambar tidak dapat diproses", map[string]any{"file": "decode"}))
		return
	}
	thumb, _, err := utils.EncodeJpegCoverSquare(file.Data, posterThumbSide, 80)
	if err != nil {
		response.Fail(w, apperror.Validation("Gambar tidak dapat diproses", map[string]any{"file": "decode"}))
		return
	}

	store, ok := h.storeOrFail(w, r)
	if !ok {
		return
	}
	now := time.Now()
	url, err := store.PutObject(r.Context(), storage.PosterKey(now, "full"), full, "image/jpeg", cacheControlImmutable)
	if err != nil {
		response.Fail(w, apperror.Upstream("Gagal mengunggah poster", err))
		return
	}
	thumbURL, err := store.PutObject(r.Context(), storage.PosterKey(now, "thumb"), thumb, "image/jpeg", cacheControlImmutable)
	if err != nil {
		_ = store.DeleteURL(r.Context(), url)
		response.Fail(w, apperror.Upstream("Gagal mengunggah poster", err))
		return
	}
	response.SuccessMessage(w, http.StatusCreated, "Poster berhasil diunggah", map[string]any{
		"url":       url,
		"thumb_url": thumbURL,
		"source":    meta,
	})
}
