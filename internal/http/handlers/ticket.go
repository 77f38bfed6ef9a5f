package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"pendakian-services/internal/apperror"
	"pendakian-services/internal/notify"
	"pendakian-services/internal/quota"
	"pendakian-services/internal/reservation"
	"pendakian-services/internal/utils"
	"pendakian-services/pkg/response"

	"github.com/phpdave11/gofpdf"
)

// PublicReservationTicket renders the e-ticket for a paid reservation.
func (h *Handler) PublicReservationTicket(w http.ResponseWriter, r *http.Request) {
	res, ok := h.loadPublicReservation(w, r)
	if !ok {
		return
	}
	h.writeTicket(w, r, res.ID)
}

func (h *Handler) AdminReservationTicket(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	h.writeTicket(w, r, id)
}

func (h *Handler) writeTicket(w http.ResponseWriter, r *http.Request, id int64) {
	detail, err := reservation.GetDetail(r.Context(), h.DB, id)
	if err != nil {
		response.Fail(w, apperror.Upstream("Gagal mengambil detail reservasi", err))
		return
	}
	if detail == nil {
		response.Fail(w, apperror.NotFound("Reservasi tidak ditemukan"))
		return
	}
	if detail.Status != reservation.StatusConfirmed && detail.Status != reservation.StatusCompleted {
		response.Fail(w, apperror.BusinessRule(apperror.CodeInvalidTransition,
			"Tiket hanya tersedia untuk reservasi yang sudah dibayar",
			map[string]any{"status": string(detail.Status)},
		))
		return
	}

	buf, err := renderTicketPDF(detail, time.Now().In(utils.LoadLocation(h.Config.Timezone)))
	if err != nil {
		h.Logger.Error("ticket render failed", zapString("code", detail.Code), zapError(err))
		response.Fail(w, apperror.Internal("Gagal membuat tiket", err))
		return
	}

	filename := fmt.Sprintf("tiket_%s.pdf", sanitizeFilename(detail.Code))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=\"%s\"", filename))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

var filenameUnsafe = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

func sanitizeFilename(value string) string {
	return strings.Trim(filenameUnsafe.ReplaceAllString(value, "_"), "_")
}

func renderTicketPDF(d *reservation.Detail, printedAt time.Time) (*bytes.Buffer, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 9, "E-TIKET PENDAKIAN", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(0, 7, d.Code, "", 1, "C", false, 0, "")
	pdf.Ln(4)

	row := func(label, value string) {
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(55, 6, label, "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(0, 6, tr(value), "", 1, "L", false, 0, "")
	}
	row("Tanggal pendakian", d.ClimbDate.Format(quota.DateLayout))
	row("Jumlah pendaki", fmt.Sprintf("%d orang", d.ClimberCount))
	row("Tiket parkir", fmt.Sprintf("%d", d.ParkingCount))
	row("Total pembayaran", notify.FormatRupiah(d.TotalPrice))
	row("Status", string(d.Status))
	if d.Leader != nil {
		row("Ketua rombongan", d.Leader.FullName)
		row("Email", d.Leader.Email)
		if d.Leader.Phone != nil {
			row("Telepon", *d.Leader.Phone)
		}
	}

	pdf.Ln(3)
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, "Anggota rombongan", "B", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	if len(d.Members) == 0 {
		pdf.CellFormat(0, 5, "-", "", 1, "L", false, 0, "")
	}
	for i, m := range d.Members {
		pdf.CellFormat(0, 5, tr(fmt.Sprintf("%d. %s (NIK %s)", i+1, m.FullName, m.NIK)), "", 1, "L", false, 0, "")
		pdf.CellFormat(0, 5, tr(fmt.Sprintf("    Kontak darurat: %s", m.EmergencyContact)), "", 1, "L", false, 0, "")
	}

	pdf.Ln(3)
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 7, fmt.Sprintf("Barang bawaan (potensi sampah: %d)", d.PotentialWaste), "B", 1, "L", false, 0, "")
	pdf.SetFont("Arial", "", 9)
	if len(d.WasteItems) == 0 {
		pdf.CellFormat(0, 5, "-", "", 1, "L", false, 0, "")
	}
	for _, item := range d.WasteItems {
		pdf.CellFormat(0, 5, tr(fmt.Sprintf("- %s (%s)", item.Name, item.Kind)), "", 1, "L", false, 0, "")
	}

	pdf.Ln(5)
	pdf.SetFont("Arial", "I", 8)
	pdf.MultiCell(0, 4, "Tunjukkan tiket ini kepada petugas di pos registrasi. Seluruh sampah wajib dibawa turun dan akan dicocokkan dengan daftar barang bawaan.", "", "L", false)
	pdf.CellFormat(0, 4, fmt.Sprintf("Dicetak %s", printedAt.Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
