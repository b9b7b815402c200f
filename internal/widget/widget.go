// Package widget assembles the embeddable booking widget: conversation
// engine, address picker, appointment form, language preference, and
// the backend clients behind them. One Widget per embedded instance.
package widget

import (
	"context"
	"net/http"

	"github.com/vetelca/booking-widget/internal/addressflow"
	"github.com/vetelca/booking-widget/internal/appointment"
	"github.com/vetelca/booking-widget/internal/bookingform"
	"github.com/vetelca/booking-widget/internal/config"
	"github.com/vetelca/booking-widget/internal/engine"
	"github.com/vetelca/booking-widget/internal/geocode"
	"github.com/vetelca/booking-widget/internal/i18n"
	"github.com/vetelca/booking-widget/internal/identity"
	"github.com/vetelca/booking-widget/internal/observability/metrics"
	"github.com/vetelca/booking-widget/internal/prefs"
	"github.com/vetelca/booking-widget/internal/schedapi"
	"github.com/vetelca/booking-widget/pkg/logging"
)

// Backend is the scheduling API surface the widget needs. Satisfied by
// *schedapi.Client.
type Backend interface {
	engine.ChatClient
	bookingform.ViabilityChecker
	bookingform.LeadVerifier
	bookingform.IssueLister
}

// Options configures one widget instance. Identity comes from explicit
// values or, failing that, the host page URL.
type Options struct {
	Config *config.Config

	WidgetID    string
	AccessToken string
	PageURL     string
	Language    string
	Timezone    string

	// OnBookingCompleted is the host-page hook invoked with the final
	// record when a booking is confirmed.
	OnBookingCompleted func(appointment.Details)

	// Overridable collaborators; built from Config when nil.
	Backend    Backend
	Geocoder   addressflow.Geocoder
	Prefs      prefs.Store
	Logger     *logging.Logger
	Metrics    *metrics.WidgetMetrics
	HTTPClient *http.Client
}

// Widget is one assembled instance.
type Widget struct {
	engine  *engine.Engine
	address *addressflow.Flow
	form    *bookingform.Form
	prefs   prefs.Store
	logger  *logging.Logger

	widgetID    string
	accessToken string
	language    string
}

// New wires a widget from options. The returned widget is idle until
// Start runs the bootstrap.
func New(opts Options) (*Widget, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Load()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}

	widgetID := identity.WidgetID(opts.WidgetID, opts.PageURL)
	accessToken := identity.AccessToken(opts.AccessToken, opts.PageURL)

	backend := opts.Backend
	if backend == nil {
		client, err := schedapi.New(schedapi.Config{
			BaseURL:    cfg.ChatAPIBaseURL,
			Timeout:    cfg.RequestTimeout,
			HTTPClient: opts.HTTPClient,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		backend = client
	}

	geocoder := opts.Geocoder
	if geocoder == nil && cfg.GeocoderAccessToken != "" {
		client, err := geocode.New(geocode.Config{
			BaseURL:     cfg.GeocoderBaseURL,
			AccessToken: cfg.GeocoderAccessToken,
			Language:    cfg.DefaultLanguage,
			Timeout:     cfg.RequestTimeout,
			HTTPClient:  opts.HTTPClient,
			Logger:      logger,
		})
		if err != nil {
			return nil, err
		}
		geocoder = client
	}

	store := opts.Prefs
	if store == nil {
		store = prefs.NewMemoryStore()
	}

	language := opts.Language
	if language == "" {
		language = cfg.DefaultLanguage
	}
	tr := i18n.New(language)

	w := &Widget{
		prefs:       store,
		logger:      logger,
		widgetID:    widgetID,
		accessToken: accessToken,
		language:    tr.Lang(),
	}

	w.engine = engine.New(engine.Config{
		Chat:               backend,
		WidgetID:           widgetID,
		Timezone:           opts.Timezone,
		Translator:         tr,
		Logger:             logger,
		Metrics:            opts.Metrics,
		OnBookingCompleted: opts.OnBookingCompleted,
		OnConfirmationRequested: func(d appointment.Details) {
			// The form is the confirmation surface; opening it here
			// keeps the chat free while details are reviewed.
			w.form.Open(context.Background(), d)
		},
	})

	w.address = addressflow.New(addressflow.Config{
		Geocoder:    geocoder,
		Sender:      w.engine,
		Translator:  tr,
		Logger:      logger,
		Metrics:     opts.Metrics,
		DefaultLat:  cfg.DefaultMapLat,
		DefaultLng:  cfg.DefaultMapLng,
		DefaultZoom: cfg.DefaultMapZoom,
	})

	w.form = bookingform.New(bookingform.Config{
		Sender:     w.engine,
		Viability:  backend,
		Leads:      backend,
		Issues:     backend,
		Translator: tr,
		Logger:     logger,
		Metrics:    opts.Metrics,
	})

	return w, nil
}

// Start runs the bootstrap: restore the persisted language, open the
// edit form when an access token is present, and initialize the
// conversation session.
func (w *Widget) Start(ctx context.Context) {
	if lang, err := w.prefs.Language(ctx); err != nil {
		w.logger.Warn("language preference unavailable", "error", err)
	} else if lang != "" && lang != w.language {
		w.applyLanguage(lang)
	}

	if w.accessToken != "" {
		w.form.OpenWithToken(ctx, w.accessToken)
	}

	w.engine.Init(ctx)
}

// Engine exposes the conversation engine.
func (w *Widget) Engine() *engine.Engine { return w.engine }

// AddressFlow exposes the address picker.
func (w *Widget) AddressFlow() *addressflow.Flow { return w.address }

// Form exposes the appointment form.
func (w *Widget) Form() *bookingform.Form { return w.form }

// WidgetID returns the resolved widget identifier.
func (w *Widget) WidgetID() string { return w.widgetID }

// Language returns the active language code.
func (w *Widget) Language() string { return w.language }

// SetLanguage switches the widget language and persists the choice.
// A persistence failure is logged; the in-memory switch still applies.
func (w *Widget) SetLanguage(ctx context.Context, lang string) {
	w.applyLanguage(lang)
	if err := w.prefs.SetLanguage(ctx, w.language); err != nil {
		w.logger.Warn("persist language failed", "error", err, "language", w.language)
	}
}

func (w *Widget) applyLanguage(lang string) {
	tr := i18n.New(lang)
	w.language = tr.Lang()
	w.engine.SetTranslator(tr)
	w.address.SetTranslator(tr)
	w.form.SetTranslator(tr)
}

// OpenAddressPicker opens the map picker seeded from the current
// conversation snapshot.
func (w *Widget) OpenAddressPicker(ctx context.Context) {
	details, _ := w.engine.Details()
	w.address.Open(ctx, details)
}

// ConfirmAddress resolves the picker selection. With the form open the
// selection lands in the form's address field; otherwise it is
// submitted straight into the conversation.
func (w *Widget) ConfirmAddress(ctx context.Context) {
	if w.form.IsOpen() {
		if label, lat, lng, ok := w.address.Selection(); ok {
			w.form.ApplyAddress(ctx, label, lat, lng)
			w.address.Close()
		} else {
			w.address.Submit(ctx) // raises the select-location alert
		}
		return
	}
	w.address.Submit(ctx)
}

// NewConversation abandons the session and starts over. Open sub-flows
// are discarded with it.
func (w *Widget) NewConversation(ctx context.Context) {
	w.address.Close()
	w.form.Close()
	w.engine.Reset()
	w.engine.Init(ctx)
}
