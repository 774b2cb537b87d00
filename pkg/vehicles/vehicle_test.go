package vehicles

import (
	"testing"
	"time"

	"github.com/Combine-Capital/imoto/pkg/errors"
)

func TestSellerName(t *testing.T) {
	tests := []struct {
		name   string
		seller Seller
		want   string
	}{
		{"first and last", Seller{FirstName: "Thabo", LastName: "Mokoena", Email: "t@example.com"}, "Thabo Mokoena"},
		{"first only", Seller{FirstName: "Thabo", Email: "t@example.com"}, "Thabo"},
		{"last only", Seller{LastName: "Mokoena"}, "Mokoena"},
		{"email local part", Seller{Email: "sipho.n@example.com"}, "sipho.n"},
		{"nothing known", Seller{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sellerName(tt.seller); got != tt.want {
				t.Errorf("sellerName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMapRecordDefaults(t *testing.T) {
	v := mapRecord(Record{ID: "v1", UserID: "u1", Make: "Toyota"})

	if v.Status != StatusActive {
		t.Errorf("Status = %q, want %q", v.Status, StatusActive)
	}
	if v.Images == nil || len(v.Images) != 0 {
		t.Errorf("Images = %v, want empty list", v.Images)
	}
	if v.SellerName != "" || v.SellerEmail != "" {
		t.Errorf("seller fields = %q / %q, want empty without a joined user", v.SellerName, v.SellerEmail)
	}
}

func TestMapRecordSeller(t *testing.T) {
	v := mapRecord(Record{
		ID:     "v1",
		Status: "sold",
		Images: []string{"a.jpg"},
		Users: &Seller{
			FirstName:  "Lerato",
			Email:      "lerato@example.com",
			Phone:      "0820000000",
			Suburb:     "Sandton",
			City:       "Johannesburg",
			Province:   "Gauteng",
			ProfilePic: "p.jpg",
		},
	})

	if v.Status != "sold" {
		t.Errorf("Status = %q, want sold", v.Status)
	}
	if v.SellerName != "Lerato" || v.SellerPhone != "0820000000" || v.SellerSuburb != "Sandton" ||
		v.SellerCity != "Johannesburg" || v.SellerProvince != "Gauteng" || v.SellerProfilePic != "p.jpg" {
		t.Errorf("seller fields = %+v", v)
	}
}

func TestFormDataValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*FormData)
		wantErr bool
	}{
		{"valid", func(*FormData) {}, false},
		{"missing make", func(d *FormData) { d.Make = "" }, true},
		{"missing city", func(d *FormData) { d.City = "" }, true},
		{"year too old", func(d *FormData) { d.Year = 1850 }, true},
		{"zero price", func(d *FormData) { d.Price = 0 }, true},
		{"negative mileage", func(d *FormData) { d.Mileage = -1 }, true},
		{"empty image url", func(d *FormData) { d.Images = []string{""} }, true},
		{"no images", func(d *FormData) { d.Images = nil }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validForm()
			tt.mutate(&d)
			err := d.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.IsInvalidInput(err) {
				t.Errorf("Validate() error = %v, want InvalidInputError", err)
			}
		})
	}
}

func TestFormDataRecord(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	d := validForm()
	d.Images = nil

	rec := d.record("u1", now)
	if rec["user_id"] != "u1" || rec["status"] != StatusActive {
		t.Errorf("record() = %v", rec)
	}
	if rec["created_at"] != "2024-03-01T12:00:00Z" || rec["updated_at"] != rec["created_at"] {
		t.Errorf("timestamps = %v / %v", rec["created_at"], rec["updated_at"])
	}
	if imgs, ok := rec["images"].([]string); !ok || imgs == nil {
		t.Errorf("images = %#v, want empty list", rec["images"])
	}
}

func TestPatchRecord(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	empty := ""
	variant := ""
	price := 5000.0
	year := 0
	private := true

	rec := Patch{
		Make:                  &empty,
		Variant:               &variant,
		Price:                 &price,
		Year:                  &year,
		ContactPrivacyEnabled: &private,
	}.record(now)

	want := map[string]any{
		"updated_at":              "2024-03-01T12:00:00Z",
		"variant":                 "",
		"price":                   5000.0,
		"contact_privacy_enabled": true,
	}
	if len(rec) != len(want) {
		t.Fatalf("record() = %v, want %v", rec, want)
	}
	for k, v := range want {
		if rec[k] != v {
			t.Errorf("record()[%q] = %v, want %v", k, rec[k], v)
		}
	}
}
