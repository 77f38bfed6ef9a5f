package storage

import (
	"strings"
	"testing"
	"time"
)

func TestResolveKey(t *testing.T) {
	base := "https://abc.supabase.co/storage/v1/object/public/dokumen"
	cases := []struct {
		name   string
		raw    string
		want   string
		wantOK bool
	}{
		{name: "public base", raw: base + "/poster/2025/08/x.jpg", want: "poster/2025/08/x.jpg", wantOK: true},
		{name: "signed url", raw: "https://abc.supabase.co/storage/v1/object/sign/dokumen/surat-sehat/a.pdf?token=1", want: "surat-sehat/a.pdf", wantOK: true},
		{name: "other bucket", raw: "https://abc.supabase.co/storage/v1/object/public/lain/x.jpg", wantOK: false},
		{name: "foreign", raw: "https://example.com/x.jpg", wantOK: false},
		{name: "empty", raw: "", wantOK: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := resolveKey(base, "dokumen", tc.raw)
			if ok != tc.wantOK {
				t.Fatalf("expected ok=%v, got %v", tc.wantOK, ok)
			}
			if ok && got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestKeys(t *testing.T) {
	now := time.Date(2025, 8, 17, 10, 0, 0, 0, time.UTC)

	if key := HealthCertificateKey(now, ".pdf"); !strings.HasPrefix(key, "surat-sehat/2025/08/17/") || !strings.HasSuffix(key, ".pdf") {
		t.Fatalf("unexpected certificate key %s", key)
	}
	if key := PaymentProofKey("pdk-20250817-ab12cd", now); !strings.HasPrefix(key, "bukti-pembayaran/PDK-20250817-AB12CD/bukti-") {
		t.Fatalf("unexpected proof key %s", key)
	}
	if key := PosterKey(now, "thumb"); !strings.HasPrefix(key, "poster/2025/08/") || !strings.HasSuffix(key, "-thumb.jpg") {
		t.Fatalf("unexpected poster key %s", key)
	}
}
