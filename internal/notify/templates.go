package notify

import (
	"fmt"
	"html"
	"strings"
)

type Message struct {
	Subject string
	Text    string
	HTML    string
}

type ReservationInfo struct {
	LeaderName   string
	Code         string
	ClimbDate    string
	ClimberCount int
	TotalPrice   int64
}

func FormatRupiah(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}
	s := fmt.Sprintf("%d", amount)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-Rp " + b.String()
	}
	return "Rp " + b.String()
}

func ReservationCreated(info ReservationInfo) Message {
	text := fmt.Sprintf(
		"Halo %s,\n\nReservasi pendakian Anda telah kami terima.\nKode reservasi: %s\nTanggal pendakian: %s\nJumlah pendaki: %d\nTotal pembayaran: %s\n\nSilakan lakukan pembayaran dan unggah bukti transfer agar reservasi dapat dikonfirmasi.",
		info.LeaderName, info.Code, info.ClimbDate, info.ClimberCount, FormatRupiah(info.TotalPrice),
	)
	return Message{
		Subject: "Reservasi " + info.Code + " menunggu pembayaran",
		Text:    text,
		HTML:    toHTML(text),
	}
}

func PaymentConfirmed(info ReservationInfo) Message {
	text := fmt.Sprintf(
		"Halo %s,\n\nPembayaran untuk reservasi %s telah dikonfirmasi.\nTanggal pendakian: %s\nJumlah pendaki: %d\n\nTunjukkan kode reservasi ini kepada petugas saat registrasi ulang di basecamp.",
		info.LeaderName, info.Code, info.ClimbDate, info.ClimberCount,
	)
	return Message{
		Subject: "Reservasi " + info.Code + " terkonfirmasi",
		Text:    text,
		HTML:    toHTML(text),
	}
}

func ReservationCancelled(info ReservationInfo, reason string) Message {
	text := fmt.Sprintf(
		"Halo %s,\n\nReservasi %s untuk tanggal %s telah dibatalkan.",
		info.LeaderName, info.Code, info.ClimbDate,
	)
	if reason != "" {
		text += "\nKeterangan: " + reason
	}
	return Message{
		Subject: "Reservasi " + info.Code + " dibatalkan",
		Text:    text,
		HTML:    toHTML(text),
	}
}

// SMSText is the short form sent over SMS.
func SMSText(msg Message) string {
	return msg.Subject
}

func toHTML(text string) string {
	return "<p>" + strings.ReplaceAll(html.EscapeString(text), "\n", "<br>") + "</p>"
}
