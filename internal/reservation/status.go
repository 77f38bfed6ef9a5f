package reservation

import "pendakian-services/internal/apperror"

type Status string

const (
	StatusAwaitingPayment Status = "menunggu_pembayaran"
	StatusConfirmed       Status = "terkonfirmasi"
	StatusCancelled       Status = "dibatalkan"
	StatusCompleted       Status = "selesai"
)

type WasteStatus string

const (
	WasteUnchecked  WasteStatus = "belum_dicek"
	WasteMatched    WasteStatus = "sesuai"
	WasteMismatched WasteStatus = "tidak_sesuai"
)

// Confirmation only happens through the payment procedure, so it is not an
// admin-settable target here.
var transitions = map[Status][]Status{
	StatusAwaitingPayment: {StatusCancelled},
	StatusConfirmed:       {StatusCompleted, StatusCancelled},
}

func ParseStatus(value string) (Status, bool) {
	switch Status(value) {
	case StatusAwaitingPayment, StatusConfirmed, StatusCancelled, StatusCompleted:
		return Status(value), true
	}
	return "", false
}

func ParseWasteStatus(value string) (WasteStatus, bool) {
	switch WasteStatus(value) {
	case WasteUnchecked, WasteMatched, WasteMismatched:
		return WasteStatus(value), true
	}
	return "", false
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// HoldsCapacity reports whether a reservation in s still counts against the daily quota.
func (s Status) HoldsCapacity() bool {
	return s == StatusAwaitingPayment || s == StatusConfirmed
}

func transitionError(from, to Status) *apperror.Error {
	return apperror.BusinessRule(apperror.CodeInvalidTransition,
		"Perubahan status reservasi tidak diizinkan",
		map[string]any{"dari": string(from), "ke": string(to)},
	)
}
