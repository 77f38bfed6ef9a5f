package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"pendakian-services/internal/db"
	"pendakian-services/internal/notify"

	"go.uber.org/zap"
)

// Messenger is the subset of notify.Notifier the consumer needs.
type Messenger interface {
	EmailEnabled() bool
	SMSEnabled() bool
	SendEmail(ctx context.Context, toEmail, toName string, msg notify.Message) error
	SendSMS(toPhone, body string) error
}

type ActivityProcessor struct {
	db        db.Querier
	messenger Messenger
	logger    *zap.Logger
}

func NewActivityProcessor(q db.Querier, messenger Messenger, logger *zap.Logger) *ActivityProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityProcessor{db: q, messenger: messenger, logger: logger}
}

// Handle records the event in log_aktivitas and notifies the party leader.
// Only the activity insert is retried; notification failures are logged.
func (p *ActivityProcessor) Handle(ctx context.Context, body []byte) error {
	var evt ReservationEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		// Malformed payloads are dropped rather than retried forever.
		p.logger.Warn("activity event decode failed", zap.Error(err))
		return nil
	}
	if strings.TrimSpace(evt.Type) == "" || strings.TrimSpace(evt.Code) == "" {
		return nil
	}

	if p.db != nil {
		if _, err := p.db.Exec(ctx, `
			insert into log_aktivitas (jenis, kode_reservasi, payload, dicatat_pada)
			values ($1, $2, $3::jsonb, $4)
		`, evt.Type, evt.Code, string(body), evt.OccurredAt); err != nil {
			return err
		}
	}

	if err := p.notifyLeader(ctx, evt); err != nil {
		p.logger.Warn("leader notification failed", zap.String("type", evt.Type), zap.String("code", evt.Code), zap.Error(err))
	}
	return nil
}

func (p *ActivityProcessor) notifyLeader(ctx context.Context, evt ReservationEvent) error {
	msg, ok := MessageFor(evt)
	if !ok || p.messenger == nil {
		return nil
	}

	var errs []error
	if p.messenger.EmailEnabled() && evt.LeaderEmail != "" {
		if err := p.messenger.SendEmail(ctx, evt.LeaderEmail, evt.LeaderName, msg); err != nil {
			errs = append(errs, err)
		}
	}
	if p.messenger.SMSEnabled() && evt.LeaderPhone != "" {
		if err := p.messenger.SendSMS(evt.LeaderPhone, notify.SMSText(msg)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MessageFor picks the leader-facing message for an event type.
func MessageFor(evt ReservationEvent) (notify.Message, bool) {
	info := notify.ReservationInfo{
		LeaderName:   evt.LeaderName,
		Code:         evt.Code,
		ClimbDate:    evt.ClimbDate,
		ClimberCount: evt.ClimberCount,
		TotalPrice:   evt.TotalPrice,
	}
	switch evt.Type {
	case EventReservationCreated:
		return notify.ReservationCreated(info), true
	case EventPaymentConfirmed:
		return notify.PaymentConfirmed(info), true
	case EventReservationCancelled, EventReservationExpired:
		return notify.ReservationCancelled(info, evt.Message), true
	}
	return notify.Message{}, false
}
