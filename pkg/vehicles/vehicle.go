package vehicles

import (
	"strings"
	"time"

	"github.com/Combine-Capital/imoto/pkg/errors"
	"github.com/go-playground/validator/v10"
)

// Backend tables.
const (
	TableVehicles = "vehicles"
	TableSaved    = "saved_vehicles"
)

// StatusActive is the status of a listing open for sale, and the status a
// new listing is created with.
const StatusActive = "active"

// Columns is the column list requested for a vehicle row, with the seller
// embedded from the users table.
const Columns = "id, user_id, make, model, variant, year, price, mileage, transmission, fuel, " +
	"engine_capacity, body_type, province, city, description, images, status, " +
	"contact_privacy_enabled, created_at, updated_at, " +
	"users(id, email, first_name, last_name, phone, profile_pic, suburb, city, province)"

// SavedColumns is the column list requested for a saved-vehicle row.
const SavedColumns = "id, user_id, vehicle_id, vehicles(" + Columns + ")"

// Vehicle is a listing as presented to callers and stored in the cache.
type Vehicle struct {
	ID                    string   `json:"id"`
	UserID                string   `json:"userId"`
	Make                  string   `json:"make"`
	Model                 string   `json:"model"`
	Variant               string   `json:"variant"`
	Year                  int      `json:"year"`
	Price                 float64  `json:"price"`
	Mileage               int      `json:"mileage"`
	Transmission          string   `json:"transmission"`
	Fuel                  string   `json:"fuel"`
	EngineCapacity        string   `json:"engineCapacity"`
	BodyType              string   `json:"bodyType"`
	Province              string   `json:"province"`
	City                  string   `json:"city"`
	Description           string   `json:"description"`
	Images                []string `json:"images"`
	Status                string   `json:"status"`
	ContactPrivacyEnabled bool     `json:"contactPrivacyEnabled"`
	SellerName            string   `json:"sellerName"`
	SellerEmail           string   `json:"sellerEmail"`
	SellerPhone           string   `json:"sellerPhone"`
	SellerSuburb          string   `json:"sellerSuburb"`
	SellerCity            string   `json:"sellerCity"`
	SellerProvince        string   `json:"sellerProvince"`
	SellerProfilePic      string   `json:"sellerProfilePic"`
	CreatedAt             string   `json:"createdAt"`
	UpdatedAt             string   `json:"updatedAt"`
}

// Record is a vehicle row as returned by the backend.
type Record struct {
	ID                    string   `json:"id"`
	UserID                string   `json:"user_id"`
	Make                  string   `json:"make"`
	Model                 string   `json:"model"`
	Variant               string   `json:"variant"`
	Year                  int      `json:"year"`
	Price                 float64  `json:"price"`
	Mileage               int      `json:"mileage"`
	Transmission          string   `json:"transmission"`
	Fuel                  string   `json:"fuel"`
	EngineCapacity        string   `json:"engine_capacity"`
	BodyType              string   `json:"body_type"`
	Province              string   `json:"province"`
	City                  string   `json:"city"`
	Description           string   `json:"description"`
	Images                []string `json:"images"`
	Status                string   `json:"status"`
	ContactPrivacyEnabled bool     `json:"contact_privacy_enabled"`
	CreatedAt             string   `json:"created_at"`
	UpdatedAt             string   `json:"updated_at"`
	Users                 *Seller  `json:"users"`
}

// Seller is the users row embedded in a vehicle record.
type Seller struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Phone      string `json:"phone"`
	ProfilePic string `json:"profile_pic"`
	Suburb     string `json:"suburb"`
	City       string `json:"city"`
	Province   string `json:"province"`
}

// savedRecord is a saved_vehicles row with the vehicle embedded.
type savedRecord struct {
	ID        string  `json:"id"`
	VehicleID string  `json:"vehicle_id"`
	Vehicles  *Record `json:"vehicles"`
}

// mapRecord converts a backend row to a Vehicle.
func mapRecord(r Record) Vehicle {
	var s Seller
	if r.Users != nil {
		s = *r.Users
	}

	status := r.Status
	if status == "" {
		status = StatusActive
	}
	images := r.Images
	if images == nil {
		images = []string{}
	}

	return Vehicle{
		ID:                    r.ID,
		UserID:                r.UserID,
		Make:                  r.Make,
		Model:                 r.Model,
		Variant:               r.Variant,
		Year:                  r.Year,
		Price:                 r.Price,
		Mileage:               r.Mileage,
		Transmission:          r.Transmission,
		Fuel:                  r.Fuel,
		EngineCapacity:        r.EngineCapacity,
		BodyType:              r.BodyType,
		Province:              r.Province,
		City:                  r.City,
		Description:           r.Description,
		Images:                images,
		Status:                status,
		ContactPrivacyEnabled: r.ContactPrivacyEnabled,
		SellerName:            sellerName(s),
		SellerEmail:           s.Email,
		SellerPhone:           s.Phone,
		SellerSuburb:          s.Suburb,
		SellerCity:            s.City,
		SellerProvince:        s.Province,
		SellerProfilePic:      s.ProfilePic,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
	}
}

// sellerName is "First Last" when both are known, else whichever is known,
// else the local part of the email address.
func sellerName(s Seller) string {
	switch {
	case s.FirstName != "" && s.LastName != "":
		return s.FirstName + " " + s.LastName
	case s.FirstName != "":
		return s.FirstName
	case s.LastName != "":
		return s.LastName
	case s.Email != "":
		local, _, _ := strings.Cut(s.Email, "@")
		return local
	}
	return ""
}

// FormData is the input for a new listing.
type FormData struct {
	Make                  string   `json:"make" validate:"required"`
	Model                 string   `json:"model" validate:"required"`
	Variant               string   `json:"variant"`
	Year                  int      `json:"year" validate:"required,gte=1900,lte=2100"`
	Price                 float64  `json:"price" validate:"gt=0"`
	Mileage               int      `json:"mileage" validate:"gte=0"`
	Transmission          string   `json:"transmission" validate:"required"`
	Fuel                  string   `json:"fuel" validate:"required"`
	EngineCapacity        string   `json:"engineCapacity"`
	BodyType              string   `json:"bodyType"`
	Province              string   `json:"province" validate:"required"`
	City                  string   `json:"city" validate:"required"`
	Description           string   `json:"description"`
	Images                []string `json:"images" validate:"dive,required"`
	ContactPrivacyEnabled bool     `json:"contactPrivacyEnabled"`
}

var validate = validator.New()

// Validate checks the required fields and ranges of d.
func (d FormData) Validate() error {
	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			return errors.NewInvalidInputWithCause(
				strings.ToLower(f.Field()), "failed "+f.Tag()+" check", err)
		}
		return errors.NewInvalidInputWithCause("vehicle", "invalid form data", err)
	}
	return nil
}

// record builds the insert payload for d owned by userID.
func (d FormData) record(userID string, now time.Time) map[string]any {
	images := d.Images
	if images == nil {
		images = []string{}
	}
	ts := now.UTC().Format(time.RFC3339Nano)
	return map[string]any{
		"user_id":                 userID,
		"make":                    d.Make,
		"model":                   d.Model,
		"variant":                 d.Variant,
		"year":                    d.Year,
		"price":                   d.Price,
		"mileage":                 d.Mileage,
		"transmission":            d.Transmission,
		"fuel":                    d.Fuel,
		"engine_capacity":         d.EngineCapacity,
		"body_type":               d.BodyType,
		"province":                d.Province,
		"city":                    d.City,
		"description":             d.Description,
		"images":                  images,
		"contact_privacy_enabled": d.ContactPrivacyEnabled,
		"status":                  StatusActive,
		"created_at":              ts,
		"updated_at":              ts,
	}
}

// Patch is a partial update. Nil fields are left unchanged; empty strings
// for the identifying fields (make, model, transmission, fuel, province,
// city) are ignored as well.
type Patch struct {
	Make                  *string
	Model                 *string
	Variant               *string
	Year                  *int
	Price                 *float64
	Mileage               *int
	Transmission          *string
	Fuel                  *string
	EngineCapacity        *string
	BodyType              *string
	Province              *string
	City                  *string
	Description           *string
	Images                []string
	Status                *string
	ContactPrivacyEnabled *bool
}

// record builds the update payload. updated_at is always set.
func (p Patch) record(now time.Time) map[string]any {
	out := map[string]any{
		"updated_at": now.UTC().Format(time.RFC3339Nano),
	}

	nonEmpty := func(column string, v *string) {
		if v != nil && *v != "" {
			out[column] = *v
		}
	}
	nonEmpty("make", p.Make)
	nonEmpty("model", p.Model)
	nonEmpty("transmission", p.Transmission)
	nonEmpty("fuel", p.Fuel)
	nonEmpty("province", p.Province)
	nonEmpty("city", p.City)
	nonEmpty("status", p.Status)

	if p.Variant != nil {
		out["variant"] = *p.Variant
	}
	if p.EngineCapacity != nil {
		out["engine_capacity"] = *p.EngineCapacity
	}
	if p.BodyType != nil {
		out["body_type"] = *p.BodyType
	}
	if p.Description != nil {
		out["description"] = *p.Description
	}
	if p.Year != nil && *p.Year != 0 {
		out["year"] = *p.Year
	}
	if p.Price != nil {
		out["price"] = *p.Price
	}
	if p.Mileage != nil {
		out["mileage"] = *p.Mileage
	}
	if p.Images != nil {
		out["images"] = p.Images
	}
	if p.ContactPrivacyEnabled != nil {
		out["contact_privacy_enabled"] = *p.ContactPrivacyEnabled
	}
	return out
}
