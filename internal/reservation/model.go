package reservation

import (
	"encoding/json"
	"time"

	"pendakian-services/internal/queue"
	"pendakian-services/internal/quota"
)

type Leader struct {
	ID       string  `json:"id"`
	FullName string  `json:"nama_lengkap"`
	Email    string  `json:"email"`
	Phone    *string `json:"nomor_telepon"`
	Address  *string `json:"alamat"`
}

type Reservation struct {
	ID             int64       `json:"id_reservasi"`
	Code           string      `json:"kode_reservasi"`
	UserID         string      `json:"id_pengguna"`
	ClimbDate      time.Time   `json:"-"`
	ClimberCount   int         `json:"jumlah_pendaki"`
	ParkingCount   int         `json:"jumlah_tiket_parkir"`
	TotalPrice     int64       `json:"total_harga"`
	PotentialWaste int         `json:"jumlah_potensi_sampah"`
	Status         Status      `json:"status"`
	WasteStatus    WasteStatus `json:"status_sampah"`
	PaymentProof   *string     `json:"url_bukti_pembayaran"`
	BookedAt       time.Time   `json:"dipesan_pada"`
	Leader         *Leader     `json:"ketua_rombongan,omitempty"`
}

func (r Reservation) MarshalJSON() ([]byte, error) {
	type alias Reservation
	return json.Marshal(struct {
		alias
		ClimbDate string `json:"tanggal_pendakian"`
	}{alias: alias(r), ClimbDate: r.ClimbDate.Format(quota.DateLayout)})
}

type Member struct {
	ID                int64   `json:"id_pendaki"`
	ReservationID     int64   `json:"id_reservasi"`
	FullName          string  `json:"nama_lengkap"`
	NIK               string  `json:"nik"`
	Address           string  `json:"alamat"`
	Phone             string  `json:"nomor_telepon"`
	EmergencyContact  string  `json:"kontak_darurat"`
	HealthCertificate *string `json:"url_surat_sehat"`
}

type WasteItem struct {
	ID            int64  `json:"id_barang"`
	ReservationID int64  `json:"id_reservasi"`
	Name          string `json:"nama_barang"`
	Kind          string `json:"jenis_sampah"`
}

type Detail struct {
	Reservation
	Members    []Member    `json:"anggota_rombongan"`
	WasteItems []WasteItem `json:"barang_bawaan"`
}

func (d Detail) MarshalJSON() ([]byte, error) {
	base, err := d.Reservation.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(base, &out); err != nil {
		return nil, err
	}
	out["anggota_rombongan"] = d.Members
	out["barang_bawaan"] = d.WasteItems
	return json.Marshal(out)
}

type ListFilter struct {
	Status   Status
	DateFrom *time.Time
	DateTo   *time.Time
	Search   string
	Page     int
	PageSize int
}

func (f *ListFilter) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 20
	}
	if f.PageSize > 100 {
		f.PageSize = 100
	}
}

type ListResult struct {
	Items    []Reservation `json:"items"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"page_size"`
}

type MemberUpdate struct {
	FullName          *string `json:"nama_lengkap" validate:"omitempty,min=1,max=150"`
	NIK               *string `json:"nik" validate:"omitempty,min=1,max=32"`
	Address           *string `json:"alamat" validate:"omitempty,min=1"`
	Phone             *string `json:"nomor_telepon" validate:"omitempty,min=1,max=32"`
	EmergencyContact  *string `json:"kontak_darurat" validate:"omitempty,min=1,max=64"`
	HealthCertificate *string `json:"url_surat_sehat" validate:"omitempty,url"`
}

// EventFor fills the reservation and leader fields of evt from r.
func EventFor(evt queue.ReservationEvent, r *Reservation) queue.ReservationEvent {
	evt.ReservationID = r.ID
	evt.Code = r.Code
	evt.ClimbDate = r.ClimbDate.Format(quota.DateLayout)
	evt.ClimberCount = r.ClimberCount
	evt.TotalPrice = r.TotalPrice
	if evt.Status == "" {
		evt.Status = string(r.Status)
	}
	if r.Leader != nil {
		evt.LeaderName = r.Leader.FullName
		evt.LeaderEmail = r.Leader.Email
		if r.Leader.Phone != nil {
			evt.LeaderPhone = *r.Leader.Phone
		}
	}
	return evt
}
