// Package engine owns the conversation: message history, session
// continuity, the single-flight send/receive cycle against the chat
// backend, and the appointment-detail snapshot merged from responses.
// Sub-flows never mutate the snapshot directly; they communicate back
// exclusively by sending a new chat message through here.
package engine

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vetelca/booking-widget/internal/appointment"
	"github.com/vetelca/booking-widget/internal/i18n"
	"github.com/vetelca/booking-widget/internal/observability/metrics"
	"github.com/vetelca/booking-widget/internal/schedapi"
	"github.com/vetelca/booking-widget/pkg/logging"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// Message is one entry in the conversation log. Append-only; insertion
// order is display order. Structured messages carry backend-rendered
// rich content the presentation layer displays verbatim.
type Message struct {
	ID                string `json:"id"`
	Role              Role   `json:"role"`
	Text              string `json:"text"`
	Structured        bool   `json:"structured"`
	StructuredContent string `json:"structured_content,omitempty"`
}

// ChatClient posts one conversation turn to the backend.
type ChatClient interface {
	Chat(ctx context.Context, req schedapi.ChatRequest) (*schedapi.ChatResponse, error)
}

// Config assembles an Engine.
type Config struct {
	Chat       ChatClient
	WidgetID   string
	Timezone   string // IANA name; defaults to the runtime zone
	Translator *i18n.Translator
	Logger     *logging.Logger
	Metrics    *metrics.WidgetMetrics

	// OnBookingCompleted receives the finalized record exactly once
	// when the backend confirms the booking.
	OnBookingCompleted func(appointment.Details)

	// OnConfirmationRequested opens the confirmation view with the
	// current snapshot when the backend asks for confirmation.
	OnConfirmationRequested func(appointment.Details)
}

// SendOptions qualifies a Send call.
type SendOptions struct {
	// Init marks the session-bootstrap call: the empty message is
	// allowed and no user entry is appended.
	Init bool

	// AddressUpdate marks the message that supplies new address data.
	// It bypasses the address-missing guard on purpose: the guard
	// would otherwise block the very message that fixes the address.
	AddressUpdate bool
}

// Engine is the conversation state machine.
type Engine struct {
	chat    ChatClient
	tr      *i18n.Translator
	logger  *logging.Logger
	metrics *metrics.WidgetMetrics

	widgetID string
	timezone string

	onBookingCompleted      func(appointment.Details)
	onConfirmationRequested func(appointment.Details)

	mu                sync.Mutex
	sessionID         string
	messages          []Message
	details           appointment.Details
	hasDetails        bool
	awaiting          bool
	initDone          bool
	confirmed         bool
	needsConfirmation bool
}

// New creates an engine with a greeting seeded into the log.
func New(cfg Config) *Engine {
	tr := cfg.Translator
	if tr == nil {
		tr = i18n.New("")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	// The backend expects an IANA zone name; the runtime location
	// stringifies as "Local" when TZ is unset, which is useless on the
	// wire, so fall back to the TZ variable and then UTC.
	tz := cfg.Timezone
	if tz == "" {
		tz = os.Getenv("TZ")
	}
	if tz == "" {
		tz = "UTC"
	}
	e := &Engine{
		chat:                    cfg.Chat,
		tr:                      tr,
		logger:                  logger,
		metrics:                 cfg.Metrics,
		widgetID:                cfg.WidgetID,
		timezone:                tz,
		onBookingCompleted:      cfg.OnBookingCompleted,
		onConfirmationRequested: cfg.OnConfirmationRequested,
	}
	e.messages = []Message{e.botMessage(tr.T("greeting"))}
	return e
}

// Init issues the one-shot bootstrap call that obtains a session token
// and greeting. The latch prevents duplicate initialization from
// concurrent triggers; without a widget identifier there is nothing to
// initialize.
func (e *Engine) Init(ctx context.Context) {
	e.mu.Lock()
	if e.widgetID == "" || e.sessionID != "" || e.initDone || e.awaiting {
		e.mu.Unlock()
		return
	}
	e.initDone = true
	e.mu.Unlock()

	e.Send(ctx, "", SendOptions{Init: true})
}

// Send runs one chat round-trip. Non-init sends are single-flight: a
// send while a reply is pending is dropped, not queued. Errors never
// escape; every failure ends as a bot message in the log with the
// busy flag cleared.
func (e *Engine) Send(ctx context.Context, text string, opts SendOptions) {
	text = strings.TrimSpace(text)

	e.mu.Lock()
	if !opts.Init && (text == "" || e.awaiting || e.confirmed) {
		e.mu.Unlock()
		return
	}

	// Pre-submission address guard: once the backend has asked for
	// confirmation with an unresolvable address, free-text sends are
	// answered locally instead of contacting the backend. Address
	// updates skip this so they cannot block themselves.
	if !opts.Init && !opts.AddressUpdate && e.needsConfirmation && e.hasDetails && e.details.AddressMissing() {
		e.messages = append(e.messages, e.botMessage(e.tr.T("coordinatesNotFound")))
		e.mu.Unlock()
		return
	}

	if !opts.Init {
		e.messages = append(e.messages, Message{ID: uuid.New().String(), Role: RoleUser, Text: text})
	}
	e.awaiting = true
	req := schedapi.ChatRequest{
		Message:   text,
		SessionID: e.sessionID,
		Timezone:  e.timezone,
		ID:        e.widgetID,
		ChatbotID: e.widgetID,
	}
	e.mu.Unlock()

	start := time.Now()
	resp, err := e.chat.Chat(ctx, req)
	elapsed := time.Since(start).Seconds()

	e.mu.Lock()
	e.awaiting = false
	if err != nil {
		e.metrics.ObserveChatSend("error", elapsed)
		e.logger.Error("chat send failed", "error", err, "widget_id", e.widgetID)
		e.messages = append(e.messages, e.botMessage(e.tr.T("connectionError")))
		e.mu.Unlock()
		return
	}
	e.metrics.ObserveChatSend("ok", elapsed)

	callbacks := e.applyResponse(resp, opts)
	e.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}

// applyResponse folds one backend reply into the session. Caller holds
// the lock; returned callbacks run after it is released.
func (e *Engine) applyResponse(resp *schedapi.ChatResponse, opts SendOptions) []func() {
	var callbacks []func()

	if resp.SessionID != "" {
		e.sessionID = resp.SessionID
	}

	intent := appointment.IntentNone
	htmlSummary := ""
	if resp.Details != nil && !resp.Details.IsZero() {
		intent = resp.Details.Intent
		htmlSummary = appointment.Clean(resp.Details.HTMLSummary)

		e.details.Merge(*resp.Details)
		e.hasDetails = true

		needsConfirmation := intent == appointment.IntentConfirmAppointment || resp.NeedsConfirmation
		e.needsConfirmation = needsConfirmation
		if needsConfirmation && intent != appointment.IntentBookingConfirmed {
			snapshot := e.details
			if cb := e.onConfirmationRequested; cb != nil {
				callbacks = append(callbacks, func() { cb(snapshot) })
			}
		} else if !e.details.AddressMissing() {
			e.needsConfirmation = false
		}
	}

	if htmlSummary != "" && intent != appointment.IntentError {
		e.messages = append(e.messages, Message{
			ID:                uuid.New().String(),
			Role:              RoleBot,
			Structured:        true,
			StructuredContent: htmlSummary,
		})
	} else {
		text := resp.Response
		if text == "" {
			if opts.Init {
				text = e.tr.T("greeting")
			} else {
				text = e.tr.T("somethingWentWrong")
			}
		}
		e.messages = append(e.messages, e.botMessage(text))
	}

	if intent == appointment.IntentReadyForConfirmation {
		text := resp.Response
		if text == "" {
			text = e.tr.T("confirmMessage")
		}
		e.messages = append(e.messages, e.botMessage(text))
	}

	if intent == appointment.IntentBookingConfirmed && e.details.AppointmentID != "" && !e.confirmed {
		e.confirmed = true
		e.needsConfirmation = false
		e.metrics.ObserveBookingConfirmed()
		record := e.details
		if cb := e.onBookingCompleted; cb != nil {
			callbacks = append(callbacks, func() { cb(record) })
		}
		e.logger.Info("booking confirmed",
			"appointment_id", record.AppointmentID,
			"widget_id", e.widgetID,
		)
	}

	return callbacks
}

// Reset discards the conversation and starts a fresh session: empty
// token, greeting-only log, empty snapshot, re-armed init latch.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessionID = ""
	e.messages = []Message{e.botMessage(e.tr.T("greeting"))}
	e.details = appointment.Details{}
	e.hasDetails = false
	e.awaiting = false
	e.initDone = false
	e.confirmed = false
	e.needsConfirmation = false
}

// SetTranslator switches the language. When the log still holds only
// the seeded greeting, the greeting follows the language.
func (e *Engine) SetTranslator(tr *i18n.Translator) {
	if tr == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tr = tr
	if len(e.messages) == 1 && e.messages[0].Role == RoleBot && !e.messages[0].Structured {
		e.messages[0] = e.botMessage(tr.T("greeting"))
	}
}

// Messages returns a copy of the conversation log.
func (e *Engine) Messages() []Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Message, len(e.messages))
	copy(out, e.messages)
	return out
}

// SessionID returns the backend-issued session token, empty until the
// first reply supplies one.
func (e *Engine) SessionID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionID
}

// Awaiting reports whether a chat round-trip is in flight.
func (e *Engine) Awaiting() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.awaiting
}

// Confirmed reports whether the session reached the terminal confirmed
// state; further sends are blocked until Reset.
func (e *Engine) Confirmed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.confirmed
}

// NeedsConfirmation reports whether the last backend reply asked the
// visitor to confirm.
func (e *Engine) NeedsConfirmation() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.needsConfirmation
}

// Details returns the current snapshot and whether any response has
// populated it yet.
func (e *Engine) Details() (appointment.Details, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.details, e.hasDetails
}

// AddressMissing reports whether the snapshot lacks a resolvable
// address. Gates the add/edit-address affordance and the pre-send
// guard.
func (e *Engine) AddressMissing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.hasDetails || e.details.AddressMissing()
}

// HasAddress reports whether any address text is known yet.
func (e *Engine) HasAddress() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasDetails && e.details.HasAddress()
}

func (e *Engine) botMessage(text string) Message {
	return Message{ID: uuid.New().String(), Role: RoleBot, Text: text}
}
