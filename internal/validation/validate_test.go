package validation

import "testing"

type child struct {
	Email string `json:"email" validate:"required,email"`
}

type sample struct {
	Name     string  `json:"nama" validate:"required"`
	Count    int     `json:"jumlah" validate:"min=1"`
	Children []child `json:"anak" validate:"required,min=1,dive"`
}

func TestStruct(t *testing.T) {
	valid := sample{Name: "Rinjani", Count: 2, Children: []child{{Email: "a@example.com"}}}
	if err := Struct(valid, "invalid"); err != nil {
		t.Fatalf("expected valid, got %v", err.Details)
	}

	invalid := sample{Count: 0, Children: []child{{Email: "a@example.com"}, {Email: "bukan-email"}}}
	err := Struct(invalid, "Data tidak valid")
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if err.Message != "Data tidak valid" {
		t.Fatalf("unexpected message %s", err.Message)
	}

	want := map[string]string{
		"nama":          "required",
		"jumlah":        "min=1",
		"anak[1].email": "email",
	}
	for field, tag := range want {
		if got := err.Details[field]; got != tag {
			t.Fatalf("expected %s=%s, got %v (all: %v)", field, tag, got, err.Details)
		}
	}
}
