package reservation

import (
	"strings"

	"pendakian-services/internal/apperror"
	"pendakian-services/internal/utils"
	"pendakian-services/internal/validation"
)

type LeaderInput struct {
	FullName string `json:"nama_lengkap" validate:"required,max=150"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"nomor_telepon" validate:"required,max=32"`
	Address  string `json:"alamat" validate:"required"`
}

type MemberInput struct {
	FullName          string  `json:"nama_lengkap" validate:"required,max=150"`
	NIK               string  `json:"nik" validate:"required,max=32"`
	Address           string  `json:"alamat" validate:"required"`
	Phone             string  `json:"nomor_telepon" validate:"required,max=32"`
	EmergencyContact  string  `json:"kontak_darurat" validate:"required,max=64"`
	HealthCertificate *string `json:"url_surat_sehat" validate:"omitempty,url"`
}

type WasteItemInput struct {
	Name string `json:"nama_barang" validate:"required,max=150"`
	Kind string `json:"jenis_sampah" validate:"required,max=64"`
}

type CreateRequest struct {
	ClimbDate      string           `json:"tanggal_pendakian" validate:"required,datetime=2006-01-02"`
	ClimberCount   int              `json:"jumlah_pendaki" validate:"min=1,max=100"`
	ParkingCount   *int             `json:"jumlah_tiket_parkir" validate:"required,min=0"`
	TotalPrice     *int64           `json:"total_harga" validate:"required,min=0"`
	PotentialWaste *int             `json:"jumlah_potensi_sampah" validate:"omitempty,min=0"`
	PromoCode      string           `json:"kode_promo" validate:"max=64"`
	Leader         *LeaderInput     `json:"ketua_rombongan" validate:"required"`
	Members        []MemberInput    `json:"anggota_rombongan" validate:"required,min=1,dive"`
	WasteItems     []WasteItemInput `json:"barang_bawaan" validate:"omitempty,dive"`
}

const invalidRequestMessage = "Data reservasi tidak lengkap atau tidak valid"

func (r *CreateRequest) normalize() {
	r.ClimbDate = strings.TrimSpace(r.ClimbDate)
	r.PromoCode = strings.TrimSpace(r.PromoCode)
	if r.Leader != nil {
		r.Leader.FullName = strings.TrimSpace(r.Leader.FullName)
		r.Leader.Email = strings.ToLower(strings.TrimSpace(r.Leader.Email))
		r.Leader.Phone = strings.TrimSpace(r.Leader.Phone)
		r.Leader.Address = strings.TrimSpace(r.Leader.Address)
	}
	for i := range r.Members {
		m := &r.Members[i]
		m.FullName = strings.TrimSpace(m.FullName)
		m.NIK = strings.TrimSpace(m.NIK)
		m.Phone = strings.TrimSpace(m.Phone)
		m.EmergencyContact = strings.TrimSpace(m.EmergencyContact)
		if m.HealthCertificate != nil {
			v := strings.TrimSpace(*m.HealthCertificate)
			if v == "" {
				m.HealthCertificate = nil
			} else {
				m.HealthCertificate = &v
			}
		}
	}
	for i := range r.WasteItems {
		r.WasteItems[i].Name = strings.TrimSpace(r.WasteItems[i].Name)
		r.WasteItems[i].Kind = strings.TrimSpace(r.WasteItems[i].Kind)
	}
}

// Validate normalizes the request in place and checks it without touching any store.
func (r *CreateRequest) Validate(timezone string) *apperror.Error {
	r.normalize()
	if err := validation.Struct(r, invalidRequestMessage); err != nil {
		return err
	}

	details := map[string]any{}
	if utils.IsPastDate(r.ClimbDate, timezone) {
		details["tanggal_pendakian"] = "not_past"
	}
	if len(r.Members) > r.ClimberCount {
		details["anggota_rombongan"] = "max=jumlah_pendaki"
	}
	if len(details) > 0 {
		return apperror.Validation(invalidRequestMessage, details)
	}
	return nil
}

func (r *CreateRequest) parking() int {
	if r.ParkingCount == nil {
		return 0
	}
	return *r.ParkingCount
}

func (r *CreateRequest) potentialWaste() int {
	if r.PotentialWaste != nil {
		return *r.PotentialWaste
	}
	return len(r.WasteItems)
}
