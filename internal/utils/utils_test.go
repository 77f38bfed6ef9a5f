package utils

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
	"time"
)

func TestReservationToken(t *testing.T) {
	token := CreateReservationToken("secret", "PDK-20250817-AB12CD")

	cases := []struct {
		name   string
		secret string
		token  string
		code   string
		want   bool
	}{
		{name: "valid", secret: "secret", token: token, code: "PDK-20250817-AB12CD", want: true},
		{name: "other code", secret: "secret", token: token, code: "PDK-20250817-ZZZZZZ", want: false},
		{name: "other secret", secret: "nope", token: token, code: "PDK-20250817-AB12CD", want: false},
		{name: "malformed", secret: "secret", token: "abc", code: "PDK-20250817-AB12CD", want: false},
		{name: "tampered signature", secret: "secret", token: token + "x", code: "PDK-20250817-AB12CD", want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := VerifyReservationToken(tc.secret, tc.token, tc.code); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 40, G: 120, B: 60, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	return buf.Bytes()
}

func TestValidateUpload(t *testing.T) {
	pngData := pngBytes(t, 4, 4)
	pdfData := []byte("%PDF-1.4\n%test")

	cases := []struct {
		name        string
		contentType string
		filename    string
		data        []byte
		allowPDF    bool
		want        string
		wantErr     bool
	}{
		{name: "png", contentType: "image/png", filename: "surat.png", data: pngData, want: "image/png"},
		{name: "sniffed png", contentType: "", filename: "surat.png", data: pngData, want: "image/png"},
		{name: "extension mismatch", contentType: "image/png", filename: "surat.exe", data: pngData, wantErr: true},
		{name: "pdf allowed", contentType: "application/pdf", filename: "surat.pdf", data: pdfData, allowPDF: true, want: ContentTypePDF},
		{name: "pdf not allowed", contentType: "application/pdf", filename: "surat.pdf", data: pdfData, wantErr: true},
		{name: "fake pdf", contentType: "application/pdf", filename: "surat.pdf", data: pngData, allowPDF: true, wantErr: true},
		{name: "text", contentType: "text/plain", filename: "a.txt", data: []byte("hello"), wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ValidateUpload(tc.contentType, tc.filename, tc.data, tc.allowPDF)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestEncodeJpegFitInside(t *testing.T) {
	out, meta, err := EncodeJpegFitInside(pngBytes(t, 300, 150), 100, 80)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta.Width == nil || *meta.Width != 300 {
		t.Fatalf("expected source width 300, got %v", meta.Width)
	}
	img, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not jpeg: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 100 || b.Dy() != 50 {
		t.Fatalf("expected 100x50, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestEncodeJpegCoverSquare(t *testing.T) {
	out, _, err := EncodeJpegCoverSquare(pngBytes(t, 300, 150), 64, 80)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not jpeg: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 64 {
		t.Fatalf("expected 64x64, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestStartOfDay(t *testing.T) {
	// 2025-08-16 20:00 UTC is already 2025-08-17 in Jakarta (UTC+7).
	ts := time.Date(2025, 8, 16, 20, 0, 0, 0, time.UTC)
	got := StartOfDay(ts, "Asia/Jakarta")
	if got.Format("2006-01-02") != "2025-08-17" || got.Hour() != 0 {
		t.Fatalf("unexpected start of day %s", got)
	}
}
