// Package host bridges widget instances to HTTP for the demo embed
// page. Each browser session gets its own widget keyed by a server
// session id; handlers translate requests into widget operations and
// reply with a full state snapshot so the page can re-render from
// scratch on every call.
package host

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vetelca/booking-widget/internal/addressflow"
	"github.com/vetelca/booking-widget/internal/bookingform"
	"github.com/vetelca/booking-widget/internal/config"
	"github.com/vetelca/booking-widget/internal/engine"
	"github.com/vetelca/booking-widget/internal/observability/metrics"
	"github.com/vetelca/booking-widget/internal/prefs"
	"github.com/vetelca/booking-widget/internal/widget"
	"github.com/vetelca/booking-widget/pkg/logging"
)

// Builder creates a widget for a new browser session. Overridable in
// tests; defaults to widget.New.
type Builder func(opts widget.Options) (*widget.Widget, error)

// Config holds handler configuration.
type Config struct {
	Config  *config.Config
	Logger  *logging.Logger
	Metrics *metrics.WidgetMetrics
	Prefs   prefs.Store
	Build   Builder
}

// Handler serves the widget bridge endpoints.
type Handler struct {
	cfg     *config.Config
	logger  *logging.Logger
	metrics *metrics.WidgetMetrics
	prefs   prefs.Store
	build   Builder

	mu      sync.RWMutex
	widgets map[string]*widget.Widget
}

// New creates a handler with an empty session table.
func New(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	build := cfg.Build
	if build == nil {
		build = widget.New
	}
	return &Handler{
		cfg:     cfg.Config,
		logger:  logger,
		metrics: cfg.Metrics,
		prefs:   cfg.Prefs,
		build:   build,
		widgets: make(map[string]*widget.Widget),
	}
}

// Routes returns the bridge router, mounted under /widget.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/sessions", h.createSession)
	r.Route("/sessions/{session}", func(r chi.Router) {
		r.Get("/state", h.state)
		r.Post("/messages", h.sendMessage)
		r.Post("/reset", h.reset)
		r.Put("/language", h.setLanguage)
		r.Route("/address", func(r chi.Router) {
			r.Post("/open", h.openAddress)
			r.Post("/close", h.closeAddress)
			r.Post("/search", h.searchAddress)
			r.Post("/pick", h.pickPoint)
			r.Post("/confirm", h.confirmAddress)
		})
		r.Route("/form", func(r chi.Router) {
			r.Post("/open", h.openForm)
			r.Post("/close", h.closeForm)
			r.Put("/fields", h.setFields)
			r.Post("/submit", h.submitForm)
		})
	})
	return r
}

type createSessionRequest struct {
	WidgetID    string `json:"widget_id"`
	AccessToken string `json:"access_token"`
	PageURL     string `json:"page_url"`
	Language    string `json:"language"`
	Timezone    string `json:"timezone"`
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	wd, err := h.build(widget.Options{
		Config:      h.cfg,
		WidgetID:    req.WidgetID,
		AccessToken: req.AccessToken,
		PageURL:     req.PageURL,
		Language:    req.Language,
		Timezone:    req.Timezone,
		Prefs:       h.prefs,
		Logger:      h.logger,
		Metrics:     h.metrics,
	})
	if err != nil {
		h.logger.Error("widget build failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create widget")
		return
	}
	wd.Start(r.Context())

	session := uuid.New().String()
	h.mu.Lock()
	h.widgets[session] = wd
	h.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{
		"session": session,
		"state":   snapshot(wd),
	})
}

func (h *Handler) widget(w http.ResponseWriter, r *http.Request) *widget.Widget {
	session := chi.URLParam(r, "session")
	h.mu.RLock()
	wd, ok := h.widgets[session]
	h.mu.RUnlock()
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return nil
	}
	return wd
}

func (h *Handler) state(w http.ResponseWriter, r *http.Request) {
	if wd := h.widget(w, r); wd != nil {
		writeJSON(w, http.StatusOK, snapshot(wd))
	}
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	wd := h.widget(w, r)
	if wd == nil {
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	wd.Engine().Send(r.Context(), req.Text, engine.SendOptions{})
	writeJSON(w, http.StatusOK, snapshot(wd))
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	wd := h.widget(w, r)
	if wd == nil {
		return
	}
	wd.NewConversation(r.Context())
	writeJSON(w, http.StatusOK, snapshot(wd))
}

func (h *Handler) setLanguage(w http.ResponseWriter, r *http.Request) {
	wd := h.widget(w, r)
	if wd == nil {
		return
	}
	var req struct {
		Language string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	wd.SetLanguage(r.Context(), req.Language)
	writeJSON(w, http.StatusOK, snapshot(wd))
}

func (h *Handler) openAddress(w http.ResponseWriter, r *http.Request) {
	wd := h.widget(w, r)
	if wd == nil {
		return
	}
	wd.OpenAddressPicker(r.Context())
	writeJSON(w, http.StatusOK, snapshot(wd))
}

func (h *Handler) closeAddress(w http.ResponseWriter, r *http.Request) {
	wd := h.widget(w, r)
	if wd == nil {
		return
	}
	wd.AddressFlow().Close()
	writeJSON(w, http.StatusOK, snapshot(wd))
}

func (h *Handler) searchAddress(w http.ResponseWriter, r *http.Request) {
	wd := h.widget(w, r)
	if wd == nil {
		return
	}
	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	wd.AddressFlow().Search(r.Context(), req.Query)
	writeJSON(w, http.StatusOK, snapshot(wd))
}

func (h *Handler) pickPoint(w http.ResponseWriter, r *http.Request) {
	wd := h.widget(w, r)
	if wd == nil {
		return
	}
	var req struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	wd.AddressFlow().PickPoint(r.Context(), req.Lat, req.Lng)
	writeJSON(w, http.StatusOK, snapshot(wd))
}

func (h *Handler) confirmAddress(w http.ResponseWriter, r *http.Request) {
	wd := h.widget(w, r)
	if wd == nil {
		return
	}
	wd.ConfirmAddress(r.Context())
	writeJSON(w, http.StatusOK, snapshot(wd))
}

func (h *Handler) openForm(w http.ResponseWriter, r *http.Request) {
	wd := h.widget(w, r)
	if wd == nil {
		return
	}
	details, _ := wd.Engine().Details()
	wd.Form().Open(r.Context(), details)
	writeJSON(w, http.StatusOK, snapshot(wd))
}

func (h *Handler) closeForm(w http.ResponseWriter, r *http.Request) {
	wd := h.widget(w, r)
	if wd == nil {
		return
	}
	wd.Form().Close()
	writeJSON(w, http.StatusOK, snapshot(wd))
}

type fieldsRequest struct {
	Name        string   `json:"name"`
	DialCode    string   `json:"dial_code"`
	Phone       string   `json:"phone"`
	Email       string   `json:"email"`
	Requirement string   `json:"requirement"`
	Address     string   `json:"address"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	HouseNumber string   `json:"house_number"`
	Sector      string   `json:"sector"`
	City        string   `json:"city"`
	State       string   `json:"state"`
	Date        string   `json:"date"`
	Time        string   `json:"time"`
}

func (h *Handler) setFields(w http.ResponseWriter, r *http.Request) {
	wd := h.widget(w, r)
	if wd == nil {
		return
	}
	var req fieldsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	wd.Form().Set(bookingform.Fields{
		Name:        req.Name,
		DialCode:    req.DialCode,
		Phone:       req.Phone,
		Email:       req.Email,
		Requirement: req.Requirement,
		Address:     req.Address,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		HouseNumber: req.HouseNumber,
		Sector:      req.Sector,
		City:        req.City,
		State:       req.State,
		Date:        req.Date,
		Time:        req.Time,
	})
	writeJSON(w, http.StatusOK, snapshot(wd))
}

func (h *Handler) submitForm(w http.ResponseWriter, r *http.Request) {
	wd := h.widget(w, r)
	if wd == nil {
		return
	}
	wd.Form().Submit(r.Context())
	writeJSON(w, http.StatusOK, snapshot(wd))
}

// State is the full render snapshot returned by every endpoint.
type State struct {
	Language          string           `json:"language"`
	Messages          []engine.Message `json:"messages"`
	SessionID         string           `json:"session_id"`
	Awaiting          bool             `json:"awaiting"`
	Confirmed         bool             `json:"confirmed"`
	NeedsConfirmation bool             `json:"needs_confirmation"`
	AddressMissing    bool             `json:"address_missing"`
	HasAddress        bool             `json:"has_address"`
	Map               addressflow.View `json:"map"`
	Form              FormState        `json:"form"`
}

// FormState is the form portion of the snapshot.
type FormState struct {
	Open         bool              `json:"open"`
	EditMode     bool              `json:"edit_mode"`
	Fields       fieldsRequest     `json:"fields"`
	Errors       map[string]string `json:"errors"`
	Requirements []string          `json:"requirements"`
	LoadError    string            `json:"load_error,omitempty"`
}

func snapshot(wd *widget.Widget) State {
	e := wd.Engine()
	f := wd.Form()
	fields := f.Fields()
	return State{
		Language:          wd.Language(),
		Messages:          e.Messages(),
		SessionID:         e.SessionID(),
		Awaiting:          e.Awaiting(),
		Confirmed:         e.Confirmed(),
		NeedsConfirmation: e.NeedsConfirmation(),
		AddressMissing:    e.AddressMissing(),
		HasAddress:        e.HasAddress(),
		Map:               wd.AddressFlow().View(),
		Form: FormState{
			Open:     f.IsOpen(),
			EditMode: f.Mode() == bookingform.ModeEdit,
			Fields: fieldsRequest{
				Name:        fields.Name,
				DialCode:    fields.DialCode,
				Phone:       fields.Phone,
				Email:       fields.Email,
				Requirement: fields.Requirement,
				Address:     fields.Address,
				Latitude:    fields.Latitude,
				Longitude:   fields.Longitude,
				HouseNumber: fields.HouseNumber,
				Sector:      fields.Sector,
				City:        fields.City,
				State:       fields.State,
				Date:        fields.Date,
				Time:        fields.Time,
			},
			Errors:       f.Errors(),
			Requirements: f.Requirements(),
			LoadError:    f.LoadError(),
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{"message": message},
	})
}
