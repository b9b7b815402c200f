// Package appointment defines the working record of the appointment
// being negotiated over chat. The backend extracts structured details
// from conversation state; the client merges each response into its
// snapshot and never clears a field on an empty response.
package appointment

import "strings"

// Intent tags supplied by the backend that drive engine transitions.
type Intent string

const (
	IntentNone                 Intent = ""
	IntentError                Intent = "error"
	IntentReadyForConfirmation Intent = "ready_for_confirmation"
	IntentConfirmAppointment   Intent = "confirm_appointment"
	IntentBookingConfirmed     Intent = "booking_confirmed"
)

// Customer carries identity and service-address fields. Coordinates
// are pointers so "absent" is distinguishable from zero.
type Customer struct {
	Name        string   `json:"name,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	Email       string   `json:"email,omitempty"`
	Address     string   `json:"address,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	HouseNumber string   `json:"house_number,omitempty"`
	Sector      string   `json:"sector,omitempty"`
	City        string   `json:"city,omitempty"`
	State       string   `json:"state,omitempty"`
}

// Service carries what is being booked and when.
type Service struct {
	Requirement string `json:"requirement,omitempty"`
	Date        string `json:"date,omitempty"` // YYYY-MM-DD
	Time        string `json:"time,omitempty"` // HH:MM, 24-hour
}

// Details is the possibly-partial appointment record. Once the intent
// is booking_confirmed and an appointment id is present the record is
// final and handed to the host page.
type Details struct {
	Intent        Intent   `json:"intent,omitempty"`
	Customer      Customer `json:"customer,omitempty"`
	Service       Service  `json:"service,omitempty"`
	AppointmentID string   `json:"appointment_id,omitempty"`
	HTMLSummary   string   `json:"html_summary,omitempty"`
}

// Clean normalizes backend placeholder values to empty strings.
func Clean(v string) string {
	switch strings.TrimSpace(v) {
	case "", "N/A", "null":
		return ""
	}
	return v
}

// IsZero reports whether the payload carries nothing at all.
func (d Details) IsZero() bool {
	return d.Intent == IntentNone &&
		d.AppointmentID == "" &&
		d.HTMLSummary == "" &&
		d.Customer == (Customer{}) &&
		d.Service == (Service{})
}

// Merge folds a new response payload into the snapshot. Fields present
// in the incoming payload overwrite; absent fields are preserved.
func (d *Details) Merge(in Details) {
	if in.Intent != IntentNone {
		d.Intent = in.Intent
	}
	if v := Clean(in.AppointmentID); v != "" {
		d.AppointmentID = v
	}
	if v := Clean(in.HTMLSummary); v != "" {
		d.HTMLSummary = v
	}

	mergeString(&d.Customer.Name, in.Customer.Name)
	mergeString(&d.Customer.Phone, in.Customer.Phone)
	mergeString(&d.Customer.Email, in.Customer.Email)
	mergeString(&d.Customer.Address, in.Customer.Address)
	mergeString(&d.Customer.HouseNumber, in.Customer.HouseNumber)
	mergeString(&d.Customer.Sector, in.Customer.Sector)
	mergeString(&d.Customer.City, in.Customer.City)
	mergeString(&d.Customer.State, in.Customer.State)
	if in.Customer.Latitude != nil {
		lat := *in.Customer.Latitude
		d.Customer.Latitude = &lat
	}
	if in.Customer.Longitude != nil {
		lng := *in.Customer.Longitude
		d.Customer.Longitude = &lng
	}

	mergeString(&d.Service.Requirement, in.Service.Requirement)
	mergeString(&d.Service.Date, in.Service.Date)
	mergeString(&d.Service.Time, in.Service.Time)
}

func mergeString(dst *string, src string) {
	if v := Clean(src); v != "" {
		*dst = v
	}
}

// AddressMissing reports whether the record lacks a resolvable address:
// true unless the address string is non-empty and both coordinates are
// set. A record with an address but no coordinates is incomplete and
// must block confirmation.
func (d Details) AddressMissing() bool {
	if strings.TrimSpace(d.Customer.Address) == "" {
		return true
	}
	return d.Customer.Latitude == nil || d.Customer.Longitude == nil
}

// HasAddress reports whether any address text is known, regardless of
// coordinates. Drives the add-vs-edit affordance.
func (d Details) HasAddress() bool {
	return strings.TrimSpace(d.Customer.Address) != ""
}
