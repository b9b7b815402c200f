// Package bookingform runs the structured appointment form: prefill
// from the conversation snapshot or a verified lead link, field
// validation, the service-viability gate on the chosen coordinates,
// and composition of the submission message sent back into the chat.
package bookingform

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vetelca/booking-widget/internal/appointment"
	"github.com/vetelca/booking-widget/internal/countrycode"
	"github.com/vetelca/booking-widget/internal/engine"
	"github.com/vetelca/booking-widget/internal/i18n"
	"github.com/vetelca/booking-widget/internal/observability/metrics"
	"github.com/vetelca/booking-widget/internal/schedapi"
	"github.com/vetelca/booking-widget/pkg/logging"
)

// Mode distinguishes how the form was opened.
type Mode int

const (
	// ModeFresh prefills from the conversation snapshot.
	ModeFresh Mode = iota
	// ModeEdit prefills from a verified lead link.
	ModeEdit
)

// Sender delivers the composed submission into the conversation.
type Sender interface {
	Send(ctx context.Context, text string, opts engine.SendOptions)
}

// ViabilityChecker answers whether a coordinate pair is serviceable.
type ViabilityChecker interface {
	CheckViability(ctx context.Context, lat, lng float64) (*schedapi.Viability, error)
}

// LeadVerifier resolves an edit-link token into a lead record.
type LeadVerifier interface {
	VerifyLead(ctx context.Context, token string) (*schedapi.Lead, error)
}

// IssueLister fetches the requirement catalog for the dropdown.
type IssueLister interface {
	ActiveIssues(ctx context.Context) ([]string, error)
}

// Fields is the editable form content. Phone holds local digits only;
// the dial code is tracked separately.
type Fields struct {
	Name        string
	DialCode    string
	Phone       string
	Email       string
	Requirement string
	Address     string
	Latitude    *float64
	Longitude   *float64
	HouseNumber string
	Sector      string
	City        string
	State       string
	Date        string // YYYY-MM-DD
	Time        string // HH:MM, 24-hour
}

// Config assembles a Form.
type Config struct {
	Sender     Sender
	Viability  ViabilityChecker
	Leads      LeadVerifier
	Issues     IssueLister
	Translator *i18n.Translator
	Logger     *logging.Logger
	Metrics    *metrics.WidgetMetrics

	// Now is the clock used for date/time validation; real time when
	// nil.
	Now func() time.Time
}

// Form is the appointment form state machine.
type Form struct {
	sender    Sender
	viability ViabilityChecker
	leads     LeadVerifier
	issues    IssueLister
	tr        *i18n.Translator
	logger    *logging.Logger
	metrics   *metrics.WidgetMetrics
	now       func() time.Time

	mu           sync.Mutex
	open         bool
	mode         Mode
	fields       Fields
	errors       map[string]string
	requirements []string
	loadError    string
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// New creates a closed form.
func New(cfg Config) *Form {
	tr := cfg.Translator
	if tr == nil {
		tr = i18n.New("")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Form{
		sender:    cfg.Sender,
		viability: cfg.Viability,
		leads:     cfg.Leads,
		issues:    cfg.Issues,
		tr:        tr,
		logger:    logger,
		metrics:   cfg.Metrics,
		now:       now,
		errors:    map[string]string{},
	}
}

// Open starts a fresh-mode pass prefilled from the conversation
// snapshot and loads the requirement catalog. A catalog failure
// degrades to a free-text requirement field.
func (f *Form) Open(ctx context.Context, details appointment.Details) {
	f.mu.Lock()
	f.open = true
	f.mode = ModeFresh
	f.errors = map[string]string{}
	f.loadError = ""

	dial, local := countrycode.Detect(details.Customer.Phone)
	f.fields = Fields{
		Name:        appointment.Clean(details.Customer.Name),
		DialCode:    dial,
		Phone:       countrycode.SanitizeLocal(local, dial),
		Email:       appointment.Clean(details.Customer.Email),
		Requirement: appointment.Clean(details.Service.Requirement),
		Address:     appointment.Clean(details.Customer.Address),
		HouseNumber: appointment.Clean(details.Customer.HouseNumber),
		Sector:      appointment.Clean(details.Customer.Sector),
		City:        appointment.Clean(details.Customer.City),
		State:       appointment.Clean(details.Customer.State),
		Date:        appointment.Clean(details.Service.Date),
		Time:        appointment.Clean(details.Service.Time),
	}
	if details.Customer.Latitude != nil && details.Customer.Longitude != nil {
		lat, lng := *details.Customer.Latitude, *details.Customer.Longitude
		f.fields.Latitude, f.fields.Longitude = &lat, &lng
	}
	f.mu.Unlock()

	f.loadRequirements(ctx)
}

// OpenWithToken starts an edit-mode pass prefilled from a lead link.
// A verification failure leaves the form open with a load error so the
// host can show the failure instead of an empty form.
func (f *Form) OpenWithToken(ctx context.Context, token string) {
	f.mu.Lock()
	f.open = true
	f.mode = ModeEdit
	f.errors = map[string]string{}
	f.loadError = ""
	f.fields = Fields{DialCode: countrycode.DefaultDial}
	f.mu.Unlock()

	lead, err := f.leads.VerifyLead(ctx, token)

	f.mu.Lock()
	if !f.open || f.mode != ModeEdit {
		f.mu.Unlock()
		return
	}
	if err != nil {
		f.logger.Warn("lead verification failed", "error", err)
		f.loadError = f.tr.T("tokenError")
		f.mu.Unlock()
		return
	}
	name := strings.TrimSpace(lead.Customer.FirstName + " " + lead.Customer.LastName)
	dial, local := countrycode.Detect(lead.Customer.Phone)
	f.fields = Fields{
		Name:        name,
		DialCode:    dial,
		Phone:       countrycode.SanitizeLocal(local, dial),
		Email:       appointment.Clean(lead.Customer.Email),
		Requirement: appointment.Clean(lead.Contract.InstallationNotes),
		Address:     appointment.Clean(lead.Address.FiscalAddress),
		HouseNumber: appointment.Clean(lead.Address.HouseNumber),
		Sector:      appointment.Clean(lead.Address.Sector),
		City:        appointment.Clean(lead.Address.City),
		State:       appointment.Clean(lead.Address.State),
	}
	var lat, lng float64
	hasPoint := lead.Address.Latitude != nil && lead.Address.Longitude != nil
	if hasPoint {
		lat, lng = *lead.Address.Latitude, *lead.Address.Longitude
		f.fields.Latitude, f.fields.Longitude = &lat, &lng
	}
	f.mu.Unlock()

	if hasPoint {
		f.checkViability(ctx, lat, lng)
	}

	f.loadRequirements(ctx)

	// Installation notes only become the requirement when they name a
	// catalog entry; free text would fail the dropdown.
	f.mu.Lock()
	if f.fields.Requirement != "" && !containsString(f.requirements, f.fields.Requirement) {
		f.fields.Requirement = ""
	}
	f.mu.Unlock()
}

func (f *Form) loadRequirements(ctx context.Context) {
	if f.issues == nil {
		return
	}
	issues, err := f.issues.ActiveIssues(ctx)
	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.logger.Warn("requirement catalog unavailable", "error", err)
		f.requirements = nil
		return
	}
	f.requirements = issues
}

// Set replaces the editable fields. The phone is sanitized against the
// selected dial code; a dial-code change re-caps the digits.
func (f *Form) Set(fields Fields) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return
	}
	if fields.DialCode == "" {
		fields.DialCode = countrycode.DefaultDial
	}
	fields.Phone = countrycode.SanitizeLocal(fields.Phone, fields.DialCode)
	f.fields = fields
}

// ApplyAddress adopts a selection from the map picker: label and both
// coordinates together. The point is viability-gated on adoption; a
// rejected point keeps the label but loses the coordinates.
func (f *Form) ApplyAddress(ctx context.Context, label string, lat, lng float64) {
	f.mu.Lock()
	if !f.open {
		f.mu.Unlock()
		return
	}
	f.fields.Address = label
	la, ln := lat, lng
	f.fields.Latitude, f.fields.Longitude = &la, &ln
	delete(f.errors, "address")
	f.mu.Unlock()

	f.checkViability(ctx, lat, lng)
}

// checkViability gates adopted coordinates. A rejection drops the
// point but keeps the label so the visitor sees what was refused; a
// transient checker failure keeps the point and reports the error.
func (f *Form) checkViability(ctx context.Context, lat, lng float64) bool {
	if f.viability == nil {
		return true
	}
	result, err := f.viability.CheckViability(ctx, lat, lng)

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return false
	}
	if err != nil {
		f.logger.Warn("viability check failed", "error", err, "lat", lat, "lng", lng)
		f.errors["address"] = f.tr.T("viabilityCheckError")
		return false
	}
	f.metrics.ObserveViability(result.Installable)
	if !result.Installable {
		f.fields.Latitude = nil
		f.fields.Longitude = nil
		f.errors["address"] = f.tr.T("addressNotInstallable")
		return false
	}
	return true
}

// Validate checks every field and records per-field messages. It
// returns true when the form is submittable.
func (f *Form) Validate() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validateLocked()
}

func (f *Form) validateLocked() bool {
	errs := map[string]string{}
	edit := f.mode == ModeEdit

	// Identity fields are mandatory only in edit mode; in fresh mode
	// the conversation may still be collecting them and only the
	// format of what is present gets checked.
	if edit && strings.TrimSpace(f.fields.Name) == "" {
		errs["name"] = f.tr.T("fieldRequired")
	}
	if edit && f.fields.Phone == "" {
		errs["phone"] = f.tr.T("fieldRequired")
	} else if f.fields.Phone != "" && !countrycode.ValidLocal(f.fields.Phone, f.fields.DialCode) {
		if f.fields.DialCode == countrycode.DefaultDial {
			errs["phone"] = f.tr.T("phoneValidationError")
		} else {
			errs["phone"] = f.tr.T("phoneValidationErrorInternational")
		}
	}
	if edit && strings.TrimSpace(f.fields.Email) == "" {
		errs["email"] = f.tr.T("fieldRequired")
	} else if strings.TrimSpace(f.fields.Email) != "" && !emailPattern.MatchString(strings.TrimSpace(f.fields.Email)) {
		errs["email"] = f.tr.T("emailValidationError")
	}
	if strings.TrimSpace(f.fields.Requirement) == "" {
		errs["requirement"] = f.tr.T("fieldRequired")
	} else if len(f.requirements) > 0 && !containsString(f.requirements, f.fields.Requirement) {
		errs["requirement"] = f.tr.T("requirementInvalid")
	}

	if f.fields.Date == "" {
		errs["date"] = f.tr.T("fieldRequired")
	} else if !f.futureDate(f.fields.Date) {
		errs["date"] = f.tr.T("pleaseSelectFutureDate")
	}

	if f.fields.Time == "" {
		errs["time"] = f.tr.T("pleaseSelectTimeSlot")
	} else if !withinBusinessHours(f.fields.Time) {
		errs["time"] = f.tr.T("timeRangeError")
	}

	if strings.TrimSpace(f.fields.Address) == "" || f.fields.Latitude == nil || f.fields.Longitude == nil {
		errs["address"] = f.tr.T("pleaseSelectAddressOnMap")
	}

	f.errors = errs
	return len(errs) == 0
}

// futureDate reports whether the date is strictly after today in the
// widget's clock.
func (f *Form) futureDate(value string) bool {
	d, err := time.Parse("2006-01-02", value)
	if err != nil {
		return false
	}
	now := f.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return d.After(today)
}

// withinBusinessHours accepts 09:00 through 18:00 inclusive.
func withinBusinessHours(value string) bool {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return false
	}
	minutes := t.Hour()*60 + t.Minute()
	return minutes >= 9*60 && minutes <= 18*60
}

// Submit validates, gates on service viability, and on success sends
// the composed message into the conversation and closes the form. A
// non-installable address keeps the label but drops the coordinates so
// the visitor has to pick a new point.
func (f *Form) Submit(ctx context.Context) bool {
	f.mu.Lock()
	if !f.open {
		f.mu.Unlock()
		return false
	}
	if !f.validateLocked() {
		f.mu.Unlock()
		return false
	}
	lat, lng := *f.fields.Latitude, *f.fields.Longitude
	f.mu.Unlock()

	if !f.checkViability(ctx, lat, lng) {
		return false
	}

	f.mu.Lock()
	message := f.composeLocked()
	f.open = false
	f.mu.Unlock()

	// The submission is an ordinary user message; the backend parses
	// the labeled lines, address included, from the chat turn itself.
	f.sender.Send(ctx, message, engine.SendOptions{})
	return true
}

// composeLocked renders the labeled-line submission message the
// backend parses field by field.
func (f *Form) composeLocked() string {
	var lines []string
	add := func(key, value string) {
		if strings.TrimSpace(value) != "" {
			lines = append(lines, f.tr.T(key)+": "+value)
		}
	}

	add("customerName", f.fields.Name)
	add("contactNumber", f.fields.DialCode+" "+f.fields.Phone)
	add("customerEmail", f.fields.Email)
	add("customerRequirement", f.fields.Requirement)

	address := f.fields.Address
	if f.fields.Latitude != nil && f.fields.Longitude != nil {
		address += " (" + f.tr.T("coordinates") + " " +
			formatCoord(*f.fields.Latitude) + ", " + formatCoord(*f.fields.Longitude) + ")"
	}
	add("address", address)
	add("houseNumber", f.fields.HouseNumber)
	add("sector", f.fields.Sector)
	add("city", f.fields.City)
	add("state", f.fields.State)

	if d, err := time.Parse("2006-01-02", f.fields.Date); err == nil {
		add("date", d.Format("02/01/2006"))
	}
	if t, err := time.Parse("15:04", f.fields.Time); err == nil {
		add("time", t.Format("3:04 PM"))
	}

	return strings.Join(lines, "\n")
}

// Close abandons the pass without submitting.
func (f *Form) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	f.fields = Fields{}
	f.errors = map[string]string{}
	f.loadError = ""
}

// IsOpen reports whether a form pass is in progress.
func (f *Form) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

// Mode reports how the current pass was opened.
func (f *Form) Mode() Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}

// Fields returns a copy of the current field values.
func (f *Form) Fields() Fields {
	f.mu.Lock()
	defer f.mu.Unlock()
	fields := f.fields
	if fields.Latitude != nil {
		lat := *fields.Latitude
		fields.Latitude = &lat
	}
	if fields.Longitude != nil {
		lng := *fields.Longitude
		fields.Longitude = &lng
	}
	return fields
}

// Errors returns the per-field validation messages from the last
// Validate or Submit.
func (f *Form) Errors() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]string, len(f.errors))
	for k, v := range f.errors {
		out[k] = v
	}
	return out
}

// Requirements returns the loaded requirement catalog, empty when the
// catalog could not be fetched.
func (f *Form) Requirements() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.requirements))
	copy(out, f.requirements)
	return out
}

// LoadError returns the edit-mode verification failure message, empty
// when prefill succeeded.
func (f *Form) LoadError() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadError
}

// SetTranslator switches the language for subsequent validation
// messages and submissions.
func (f *Form) SetTranslator(tr *i18n.Translator) {
	if tr == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tr = tr
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
