package queue

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	EventsExchange = "pendakian.events"
	ActivityQueue  = "pendakian.activity"
	ActivityDLQ    = "pendakian.activity.dlq"
	deadExchange   = "pendakian.events.dead"
	deadRK         = "dead"

	EventReservationCreated   = "reservasi.dibuat"
	EventReservationCancelled = "reservasi.dibatalkan"
	EventReservationExpired   = "reservasi.kedaluwarsa"
	EventReservationStatus    = "reservasi.status_diubah"
	EventReservationDeleted   = "reservasi.dihapus"
	EventPaymentConfirmed     = "pembayaran.dikonfirmasi"
	EventPaymentProofUploaded = "pembayaran.bukti_diunggah"
)

// ReservationEvent is the envelope published for every reservation lifecycle change.
type ReservationEvent struct {
	Type          string    `json:"type"`
	ReservationID int64     `json:"id_reservasi,omitempty"`
	Code          string    `json:"kode_reservasi"`
	ClimbDate     string    `json:"tanggal_pendakian,omitempty"`
	ClimberCount  int       `json:"jumlah_pendaki,omitempty"`
	TotalPrice    int64     `json:"total_harga,omitempty"`
	Status        string    `json:"status,omitempty"`
	PreviousState string    `json:"status_sebelumnya,omitempty"`
	LeaderName    string    `json:"nama_ketua,omitempty"`
	LeaderEmail   string    `json:"email_ketua,omitempty"`
	LeaderPhone   string    `json:"telepon_ketua,omitempty"`
	Actor         string    `json:"oleh,omitempty"`
	Message       string    `json:"pesan,omitempty"`
	OccurredAt    time.Time `json:"terjadi_pada"`
}

// EnsureEventsTopology declares the events exchange and the activity queue with its dead-letter queue.
func EnsureEventsTopology(qc *Client) error {
	if qc == nil {
		return nil
	}
	if err := qc.EnsureExchange(EventsExchange); err != nil {
		return err
	}
	if err := qc.EnsureExchangeKind(deadExchange, "direct"); err != nil {
		return err
	}
	if _, err := qc.EnsureQueue(ActivityDLQ); err != nil {
		return err
	}
	if err := qc.BindQueue(ActivityDLQ, deadExchange, deadRK); err != nil {
		return err
	}
	if _, err := qc.EnsureQueueWithArgs(ActivityQueue, amqp.Table{
		"x-dead-letter-exchange":    deadExchange,
		"x-dead-letter-routing-key": deadRK,
	}); err != nil {
		return err
	}
	// '#' matches multi-segment keys such as 'reservasi.status_diubah'.
	for _, pattern := range []string{"reservasi.#", "pembayaran.#"} {
		if err := qc.BindQueue(ActivityQueue, EventsExchange, pattern); err != nil {
			return err
		}
	}
	return nil
}

// Publisher sends events on a best-effort basis; a nil client only logs.
type Publisher struct {
	client *Client
	logger *zap.Logger
}

func NewPublisher(client *Client, logger *zap.Logger) *Publisher {
	return &Publisher{client: client, logger: logger}
}

func (p *Publisher) Publish(ctx context.Context, evt ReservationEvent) {
	if p == nil {
		return
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	if p.client == nil {
		if p.logger != nil {
			p.logger.Debug("event not published; queue disabled", zap.String("type", evt.Type), zap.String("code", evt.Code))
		}
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.client.PublishJSON(pubCtx, EventsExchange, evt.Type, evt); err != nil && p.logger != nil {
		p.logger.Warn("event publish failed", zap.String("type", evt.Type), zap.String("code", evt.Code), zap.Error(err))
	}
}
