// Package addressflow runs the map-based address picker: search a
// free-text query, drop a point, and submit the selection back into
// the conversation as a chat message. The flow never writes the
// appointment snapshot itself; the backend re-extracts the address
// from the submitted message and the next reply merges it in.
package addressflow

import (
	"context"
	"strconv"
	"sync"

	"github.com/vetelca/booking-widget/internal/appointment"
	"github.com/vetelca/booking-widget/internal/engine"
	"github.com/vetelca/booking-widget/internal/geocode"
	"github.com/vetelca/booking-widget/internal/i18n"
	"github.com/vetelca/booking-widget/internal/observability/metrics"
	"github.com/vetelca/booking-widget/pkg/logging"
)

// Geocoder resolves free text and coordinates to labeled places.
type Geocoder interface {
	Forward(ctx context.Context, query string) (*geocode.Result, error)
	Reverse(ctx context.Context, lat, lng float64) (*geocode.Result, error)
}

// Sender delivers the composed address message into the conversation.
type Sender interface {
	Send(ctx context.Context, text string, opts engine.SendOptions)
}

// Config assembles a Flow.
type Config struct {
	Geocoder   Geocoder
	Sender     Sender
	Translator *i18n.Translator
	Logger     *logging.Logger
	Metrics    *metrics.WidgetMetrics

	// Map center when no address is known yet.
	DefaultLat  float64
	DefaultLng  float64
	DefaultZoom int
}

// View is the renderable state of the picker.
type View struct {
	Open      bool    `json:"open"`
	CenterLat float64 `json:"center_lat"`
	CenterLng float64 `json:"center_lng"`
	Zoom      int     `json:"zoom"`
	HasMarker bool    `json:"has_marker"`
	MarkerLat float64 `json:"marker_lat"`
	MarkerLng float64 `json:"marker_lng"`
	Label     string  `json:"label"`
	Alert     string  `json:"alert"`
}

// Flow is the address picker state machine. One instance per widget
// session; Open/Close bracket each use.
type Flow struct {
	geocoder Geocoder
	sender   Sender
	tr       *i18n.Translator
	logger   *logging.Logger
	metrics  *metrics.WidgetMetrics

	defaultLat  float64
	defaultLng  float64
	defaultZoom int

	mu    sync.Mutex
	open  bool
	epoch int // bumped on close so stale lookups are discarded
	label string
	city  string
	state string
	lat   *float64
	lng   *float64
	alert string
}

// New creates a closed flow.
func New(cfg Config) *Flow {
	tr := cfg.Translator
	if tr == nil {
		tr = i18n.New("")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	zoom := cfg.DefaultZoom
	if zoom <= 0 {
		zoom = 10
	}
	return &Flow{
		geocoder:    cfg.Geocoder,
		sender:      cfg.Sender,
		tr:          tr,
		logger:      logger,
		metrics:     cfg.Metrics,
		defaultLat:  cfg.DefaultLat,
		defaultLng:  cfg.DefaultLng,
		defaultZoom: zoom,
	}
}

// Open starts a picker pass seeded from the current snapshot. A known
// address with coordinates places the marker directly; an address
// without coordinates is forward-geocoded so the visitor starts from
// the best guess instead of the default center.
func (f *Flow) Open(ctx context.Context, details appointment.Details) {
	f.mu.Lock()
	f.open = true
	f.alert = ""
	if f.geocoder == nil {
		f.alert = f.tr.T("mapNotConfigured")
	}
	f.label = ""
	f.city = ""
	f.state = ""
	f.lat = nil
	f.lng = nil
	epoch := f.epoch

	address := appointment.Clean(details.Customer.Address)
	if address != "" {
		f.label = address
		if details.Customer.Latitude != nil && details.Customer.Longitude != nil {
			lat, lng := *details.Customer.Latitude, *details.Customer.Longitude
			f.lat, f.lng = &lat, &lng
			f.mu.Unlock()
			return
		}
	}
	f.mu.Unlock()

	if address == "" || f.geocoder == nil {
		return
	}

	result, err := f.geocoder.Forward(ctx, address)

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open || f.epoch != epoch {
		return
	}
	if err != nil {
		f.metrics.ObserveGeocode("forward", "error")
		f.logger.Warn("address prefill geocode failed", "error", err)
		return
	}
	f.metrics.ObserveGeocode("forward", "ok")
	f.applySelection(result)
}

// Search forward-geocodes a query and moves the marker to the best
// match. A result arriving after the picker was closed is discarded.
func (f *Flow) Search(ctx context.Context, query string) {
	f.mu.Lock()
	if !f.open || f.geocoder == nil {
		f.mu.Unlock()
		return
	}
	epoch := f.epoch
	f.mu.Unlock()

	result, err := f.geocoder.Forward(ctx, query)

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open || f.epoch != epoch {
		return
	}
	if err != nil {
		f.metrics.ObserveGeocode("forward", "error")
		if err == geocode.ErrNoResults {
			f.alert = f.tr.T("addressNotFound")
		} else {
			f.logger.Warn("address search failed", "error", err, "query", query)
			f.alert = f.tr.T("addressSearchError")
		}
		return
	}
	f.metrics.ObserveGeocode("forward", "ok")
	f.alert = ""
	f.applySelection(result)
}

// PickPoint places the marker at a tapped point. The coordinates are
// authoritative immediately; the reverse lookup only supplies a label,
// and when it fails the raw coordinate pair stands in as the label so
// submission is never blocked by the provider.
func (f *Flow) PickPoint(ctx context.Context, lat, lng float64) {
	f.mu.Lock()
	if !f.open {
		f.mu.Unlock()
		return
	}
	la, ln := lat, lng
	f.lat, f.lng = &la, &ln
	f.label = formatCoord(lat) + ", " + formatCoord(lng)
	f.city = ""
	f.state = ""
	f.alert = ""
	epoch := f.epoch
	f.mu.Unlock()

	if f.geocoder == nil {
		return
	}
	result, err := f.geocoder.Reverse(ctx, lat, lng)

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open || f.epoch != epoch {
		return
	}
	if f.lat == nil || *f.lat != lat || f.lng == nil || *f.lng != lng {
		return // the marker moved again while the lookup ran
	}
	if err != nil {
		f.metrics.ObserveGeocode("reverse", "error")
		f.logger.Warn("reverse geocode failed", "error", err, "lat", lat, "lng", lng)
		return
	}
	f.metrics.ObserveGeocode("reverse", "ok")
	if result.Label != "" {
		f.label = result.Label
	}
	f.city = result.City
	f.state = result.State
}

// Submit sends the selection into the conversation and closes the
// picker. Without a marker it only raises an alert. The message is
// flagged as an address update so the engine's address guard lets it
// through.
func (f *Flow) Submit(ctx context.Context) {
	f.mu.Lock()
	if !f.open {
		f.mu.Unlock()
		return
	}
	if f.lat == nil || f.lng == nil {
		f.alert = f.tr.T("selectLocationAlert")
		f.mu.Unlock()
		return
	}
	message := f.tr.T("myAddressIs") + " " + f.label + ". " +
		f.tr.T("coordinates") + " " + formatCoord(*f.lat) + ", " + formatCoord(*f.lng)
	f.closeLocked()
	f.mu.Unlock()

	f.sender.Send(ctx, message, engine.SendOptions{AddressUpdate: true})
}

// Close abandons the picker pass and discards the selection.
func (f *Flow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeLocked()
}

func (f *Flow) closeLocked() {
	f.open = false
	f.epoch++
	f.label = ""
	f.city = ""
	f.state = ""
	f.lat = nil
	f.lng = nil
	f.alert = ""
}

// IsOpen reports whether a picker pass is in progress.
func (f *Flow) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

// Selection returns the current label and coordinates; ok is false
// until a marker exists.
func (f *Flow) Selection() (label string, lat, lng float64, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lat == nil || f.lng == nil {
		return f.label, 0, 0, false
	}
	return f.label, *f.lat, *f.lng, true
}

// SetTranslator switches the language for subsequent alerts.
func (f *Flow) SetTranslator(tr *i18n.Translator) {
	if tr == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tr = tr
}

// View returns a render snapshot. The map centers on the marker when
// one exists, otherwise on the configured default.
func (f *Flow) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := View{
		Open:      f.open,
		CenterLat: f.defaultLat,
		CenterLng: f.defaultLng,
		Zoom:      f.defaultZoom,
		Label:     f.label,
		Alert:     f.alert,
	}
	if f.lat != nil && f.lng != nil {
		v.HasMarker = true
		v.MarkerLat = *f.lat
		v.MarkerLng = *f.lng
		v.CenterLat = *f.lat
		v.CenterLng = *f.lng
	}
	return v
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
