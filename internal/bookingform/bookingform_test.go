package bookingform

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetelca/booking-widget/internal/appointment"
	"github.com/vetelca/booking-widget/internal/engine"
	"github.com/vetelca/booking-widget/internal/i18n"
	"github.com/vetelca/booking-widget/internal/schedapi"
)

type stubSender struct {
	texts []string
	opts  []engine.SendOptions
}

func (s *stubSender) Send(ctx context.Context, text string, opts engine.SendOptions) {
	s.texts = append(s.texts, text)
	s.opts = append(s.opts, opts)
}

type stubViability struct {
	result *schedapi.Viability
	err    error
	calls  int
}

func (s *stubViability) CheckViability(ctx context.Context, lat, lng float64) (*schedapi.Viability, error) {
	s.calls++
	return s.result, s.err
}

type stubLeads struct {
	lead *schedapi.Lead
	err  error
}

func (s *stubLeads) VerifyLead(ctx context.Context, token string) (*schedapi.Lead, error) {
	return s.lead, s.err
}

type stubIssues struct {
	issues []string
	err    error
}

func (s *stubIssues) ActiveIssues(ctx context.Context) ([]string, error) {
	return s.issues, s.err
}

func floatPtr(v float64) *float64 { return &v }

// fixedNow pins validation to 2026-08-31.
func fixedNow() time.Time {
	return time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
}

func validFields() Fields {
	return Fields{
		Name:        "Maria Perez",
		DialCode:    "+58",
		Phone:       "04141234567",
		Email:       "maria@example.com",
		Requirement: "New installation",
		Address:     "Centro, Valencia",
		Latitude:    floatPtr(10.21),
		Longitude:   floatPtr(-68.01),
		Date:        "2026-09-15",
		Time:        "10:30",
	}
}

func newTestForm(sender Sender, viability ViabilityChecker, leads LeadVerifier, issues IssueLister) *Form {
	return New(Config{
		Sender:     sender,
		Viability:  viability,
		Leads:      leads,
		Issues:     issues,
		Translator: i18n.New("en"),
		Now:        fixedNow,
	})
}

func TestOpenPrefillsFromSnapshot(t *testing.T) {
	f := newTestForm(&stubSender{}, nil, nil, &stubIssues{issues: []string{"New installation", "Repair"}})

	f.Open(context.Background(), appointment.Details{
		Customer: appointment.Customer{
			Name:      "Jose Gomez",
			Phone:     "+584141234567",
			Email:     "jose@example.com",
			Address:   "Av. Bolivar 12",
			Latitude:  floatPtr(10.2),
			Longitude: floatPtr(-68.0),
		},
		Service: appointment.Service{Requirement: "Repair", Date: "2026-09-10", Time: "14:00"},
	})

	fields := f.Fields()
	assert.Equal(t, "Jose Gomez", fields.Name)
	assert.Equal(t, "+58", fields.DialCode)
	assert.Equal(t, "4141234567", fields.Phone, "dial code is split off the stored number")
	assert.Equal(t, "Av. Bolivar 12", fields.Address)
	require.NotNil(t, fields.Latitude)
	assert.Equal(t, 10.2, *fields.Latitude)
	assert.Equal(t, ModeFresh, f.Mode())
	assert.Equal(t, []string{"New installation", "Repair"}, f.Requirements())
}

func TestOpenSurvivesCatalogFailure(t *testing.T) {
	f := newTestForm(&stubSender{}, nil, nil, &stubIssues{err: errors.New("down")})

	f.Open(context.Background(), appointment.Details{})

	assert.True(t, f.IsOpen())
	assert.Empty(t, f.Requirements())
}

func TestOpenWithTokenPrefillsFromLead(t *testing.T) {
	lead := &schedapi.Lead{}
	lead.Customer.FirstName = "Ana"
	lead.Customer.LastName = "Diaz"
	lead.Customer.Phone = "+14155550123"
	lead.Customer.Email = "ana@example.com"
	lead.Address.FiscalAddress = "Calle 5"
	lead.Address.Latitude = floatPtr(10.3)
	lead.Address.Longitude = floatPtr(-68.1)
	lead.Contract.InstallationNotes = "Fiber install"

	issues := &stubIssues{issues: []string{"Fiber install", "Repair"}}
	f := newTestForm(&stubSender{}, nil, &stubLeads{lead: lead}, issues)
	f.OpenWithToken(context.Background(), "tok-1")

	fields := f.Fields()
	assert.Equal(t, "Ana Diaz", fields.Name)
	assert.Equal(t, "+1", fields.DialCode)
	assert.Equal(t, "4155550123", fields.Phone)
	assert.Equal(t, "Fiber install", fields.Requirement)
	assert.Equal(t, ModeEdit, f.Mode())
	assert.Empty(t, f.LoadError())
}

func TestOpenWithTokenFailureSetsLoadError(t *testing.T) {
	f := newTestForm(&stubSender{}, nil, &stubLeads{err: errors.New("expired")}, nil)

	f.OpenWithToken(context.Background(), "tok-bad")

	assert.True(t, f.IsOpen())
	assert.Equal(t, i18n.New("en").T("tokenError"), f.LoadError())
}

func TestValidateAcceptsCompleteForm(t *testing.T) {
	f := newTestForm(&stubSender{}, nil, nil, nil)
	f.Open(context.Background(), appointment.Details{})
	f.Set(validFields())

	assert.True(t, f.Validate())
	assert.Empty(t, f.Errors())
}

func TestValidateFreshModeRequiredFields(t *testing.T) {
	f := newTestForm(&stubSender{}, nil, nil, nil)
	f.Open(context.Background(), appointment.Details{})
	f.Set(Fields{DialCode: "+58"})

	require.False(t, f.Validate())
	errs := f.Errors()
	tr := i18n.New("en")
	assert.Empty(t, errs["name"], "identity fields are optional while the chat collects them")
	assert.Empty(t, errs["phone"])
	assert.Empty(t, errs["email"])
	assert.Equal(t, tr.T("fieldRequired"), errs["requirement"])
	assert.Equal(t, tr.T("fieldRequired"), errs["date"])
	assert.Equal(t, tr.T("pleaseSelectTimeSlot"), errs["time"])
	assert.Equal(t, tr.T("pleaseSelectAddressOnMap"), errs["address"])
}

func TestValidateEditModeRequiresIdentity(t *testing.T) {
	f := newTestForm(&stubSender{}, nil, &stubLeads{lead: &schedapi.Lead{}}, nil)
	f.OpenWithToken(context.Background(), "tok-1")
	f.Set(Fields{DialCode: "+58"})

	require.False(t, f.Validate())
	errs := f.Errors()
	tr := i18n.New("en")
	assert.Equal(t, tr.T("fieldRequired"), errs["name"])
	assert.Equal(t, tr.T("fieldRequired"), errs["phone"])
	assert.Equal(t, tr.T("fieldRequired"), errs["email"])
}

func TestValidateFreshModeAllowsEmptyIdentity(t *testing.T) {
	f := newTestForm(&stubSender{}, nil, nil, nil)
	f.Open(context.Background(), appointment.Details{})

	fields := validFields()
	fields.Name = ""
	fields.Phone = ""
	fields.Email = ""
	f.Set(fields)

	assert.True(t, f.Validate())
	assert.Empty(t, f.Errors())
}

func TestValidatePhoneByDialCode(t *testing.T) {
	f := newTestForm(&stubSender{}, nil, nil, nil)
	f.Open(context.Background(), appointment.Details{})
	tr := i18n.New("en")

	fields := validFields()
	fields.Phone = "123456"
	f.Set(fields)
	require.False(t, f.Validate())
	assert.Equal(t, tr.T("phoneValidationError"), f.Errors()["phone"])

	fields.DialCode = "+1"
	fields.Phone = "123456"
	f.Set(fields)
	require.False(t, f.Validate())
	assert.Equal(t, tr.T("phoneValidationErrorInternational"), f.Errors()["phone"])

	fields.Phone = "1234567"
	f.Set(fields)
	assert.True(t, f.Validate(), "7 digits is enough outside the default country")
}

func TestValidateEmail(t *testing.T) {
	f := newTestForm(&stubSender{}, nil, nil, nil)
	f.Open(context.Background(), appointment.Details{})

	fields := validFields()
	fields.Email = "not-an-email"
	f.Set(fields)

	require.False(t, f.Validate())
	assert.Equal(t, i18n.New("en").T("emailValidationError"), f.Errors()["email"])
}

func TestValidateDateMustBeFuture(t *testing.T) {
	f := newTestForm(&stubSender{}, nil, nil, nil)
	f.Open(context.Background(), appointment.Details{})
	tr := i18n.New("en")

	fields := validFields()
	fields.Date = "2026-08-31" // today in the pinned clock
	f.Set(fields)
	require.False(t, f.Validate())
	assert.Equal(t, tr.T("pleaseSelectFutureDate"), f.Errors()["date"])

	fields.Date = "2026-09-01"
	f.Set(fields)
	assert.True(t, f.Validate(), "tomorrow is the earliest valid date")
}

func TestValidateTimeWindow(t *testing.T) {
	f := newTestForm(&stubSender{}, nil, nil, nil)
	f.Open(context.Background(), appointment.Details{})

	cases := map[string]bool{
		"08:59": false,
		"09:00": true,
		"13:30": true,
		"18:00": true,
		"18:01": false,
	}
	for value, ok := range cases {
		fields := validFields()
		fields.Time = value
		f.Set(fields)
		assert.Equal(t, ok, f.Validate(), "time %s", value)
	}
}

func TestSubmitComposesLabeledMessage(t *testing.T) {
	sender := &stubSender{}
	viability := &stubViability{result: &schedapi.Viability{Installable: true}}
	f := newTestForm(sender, viability, nil, nil)
	f.Open(context.Background(), appointment.Details{})

	fields := validFields()
	fields.HouseNumber = "12-4"
	fields.City = "Valencia"
	f.Set(fields)

	require.True(t, f.Submit(context.Background()))
	require.Len(t, sender.texts, 1)

	lines := strings.Split(sender.texts[0], "\n")
	assert.Equal(t, []string{
		"Customer Name: Maria Perez",
		"Contact Number: +58 04141234567",
		"Email: maria@example.com",
		"Customer Requirements: New installation",
		"Address: Centro, Valencia (Coordinates: 10.21, -68.01)",
		"House Number: 12-4",
		"City: Valencia",
		"Date: 15/09/2026",
		"Time: 10:30 AM",
	}, lines)
	assert.False(t, sender.opts[0].AddressUpdate, "submission rides as an ordinary user message")
	assert.False(t, sender.opts[0].Init)
	assert.False(t, f.IsOpen(), "submit closes the form")
}

func TestSubmitAfternoonTimeUses12HourClock(t *testing.T) {
	sender := &stubSender{}
	f := newTestForm(sender, &stubViability{result: &schedapi.Viability{Installable: true}}, nil, nil)
	f.Open(context.Background(), appointment.Details{})

	fields := validFields()
	fields.Time = "14:05"
	f.Set(fields)

	require.True(t, f.Submit(context.Background()))
	assert.Contains(t, sender.texts[0], "Time: 2:05 PM")
}

func TestSubmitRejectedViabilityClearsCoordinates(t *testing.T) {
	sender := &stubSender{}
	viability := &stubViability{result: &schedapi.Viability{Installable: false}}
	f := newTestForm(sender, viability, nil, nil)
	f.Open(context.Background(), appointment.Details{})
	f.Set(validFields())

	require.False(t, f.Submit(context.Background()))

	assert.Empty(t, sender.texts)
	assert.Equal(t, i18n.New("en").T("addressNotInstallable"), f.Errors()["address"])
	fields := f.Fields()
	assert.Equal(t, "Centro, Valencia", fields.Address, "label survives so the visitor sees what was rejected")
	assert.Nil(t, fields.Latitude)
	assert.Nil(t, fields.Longitude)
	assert.True(t, f.IsOpen())
}

func TestSubmitViabilityErrorKeepsForm(t *testing.T) {
	sender := &stubSender{}
	viability := &stubViability{err: errors.New("unreachable")}
	f := newTestForm(sender, viability, nil, nil)
	f.Open(context.Background(), appointment.Details{})
	f.Set(validFields())

	require.False(t, f.Submit(context.Background()))

	assert.Equal(t, i18n.New("en").T("viabilityCheckError"), f.Errors()["address"])
	fields := f.Fields()
	assert.NotNil(t, fields.Latitude, "a transient check failure does not discard the point")
}

func TestSubmitInvalidFormSkipsViability(t *testing.T) {
	viability := &stubViability{result: &schedapi.Viability{Installable: true}}
	f := newTestForm(&stubSender{}, viability, nil, nil)
	f.Open(context.Background(), appointment.Details{})
	f.Set(Fields{})

	require.False(t, f.Submit(context.Background()))
	assert.Zero(t, viability.calls)
}

func TestApplyAddressClearsAddressError(t *testing.T) {
	f := newTestForm(&stubSender{}, nil, nil, nil)
	f.Open(context.Background(), appointment.Details{})
	f.Set(Fields{DialCode: "+58"})
	require.False(t, f.Validate())
	require.NotEmpty(t, f.Errors()["address"])

	f.ApplyAddress(context.Background(), "Centro, Valencia", 10.21, -68.01)

	assert.Empty(t, f.Errors()["address"])
	fields := f.Fields()
	assert.Equal(t, "Centro, Valencia", fields.Address)
	require.NotNil(t, fields.Latitude)
}

func TestApplyAddressViabilityRejectionClearsPoint(t *testing.T) {
	viability := &stubViability{result: &schedapi.Viability{Installable: false}}
	f := newTestForm(&stubSender{}, viability, nil, nil)
	f.Open(context.Background(), appointment.Details{})

	f.ApplyAddress(context.Background(), "Centro, Valencia", 10.21, -68.01)

	assert.Equal(t, 1, viability.calls, "adopted coordinates are gated immediately")
	fields := f.Fields()
	assert.Equal(t, "Centro, Valencia", fields.Address)
	assert.Nil(t, fields.Latitude)
	assert.Nil(t, fields.Longitude)
	assert.Equal(t, i18n.New("en").T("addressNotInstallable"), f.Errors()["address"])
}

func TestOpenWithTokenViabilityRejectionClearsPoint(t *testing.T) {
	lead := &schedapi.Lead{}
	lead.Address.FiscalAddress = "Calle 5"
	lead.Address.Latitude = floatPtr(10.3)
	lead.Address.Longitude = floatPtr(-68.1)
	viability := &stubViability{result: &schedapi.Viability{Installable: false}}

	f := newTestForm(&stubSender{}, viability, &stubLeads{lead: lead}, nil)
	f.OpenWithToken(context.Background(), "tok-1")

	assert.Equal(t, 1, viability.calls)
	fields := f.Fields()
	assert.Equal(t, "Calle 5", fields.Address, "rejected point keeps its label")
	assert.Nil(t, fields.Latitude)
	assert.Nil(t, fields.Longitude)
}

func TestOpenWithTokenRequirementMustMatchCatalog(t *testing.T) {
	lead := &schedapi.Lead{}
	lead.Contract.InstallationNotes = "free-form installer note"

	f := newTestForm(&stubSender{}, nil, &stubLeads{lead: lead},
		&stubIssues{issues: []string{"New installation", "Repair"}})
	f.OpenWithToken(context.Background(), "tok-1")

	assert.Empty(t, f.Fields().Requirement, "notes outside the catalog are not adopted")
}

func TestValidateRequirementMustBeFromCatalog(t *testing.T) {
	f := newTestForm(&stubSender{}, nil, nil,
		&stubIssues{issues: []string{"New installation", "Repair"}})
	f.Open(context.Background(), appointment.Details{})

	fields := validFields()
	fields.Requirement = "something else entirely"
	f.Set(fields)

	require.False(t, f.Validate())
	assert.Equal(t, i18n.New("en").T("requirementInvalid"), f.Errors()["requirement"])

	fields.Requirement = "Repair"
	f.Set(fields)
	assert.True(t, f.Validate())
}

func TestSetSanitizesPhone(t *testing.T) {
	f := newTestForm(&stubSender{}, nil, nil, nil)
	f.Open(context.Background(), appointment.Details{})

	fields := validFields()
	fields.Phone = "(0414) 123-45678999"
	f.Set(fields)

	assert.Equal(t, "04141234567", f.Fields().Phone, "digits only, capped at 11 for the default country")
}

func TestCloseResetsState(t *testing.T) {
	f := newTestForm(&stubSender{}, nil, nil, nil)
	f.Open(context.Background(), appointment.Details{})
	f.Set(validFields())

	f.Close()

	assert.False(t, f.IsOpen())
	assert.Empty(t, f.Fields().Name)
}
