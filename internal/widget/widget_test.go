package widget

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vetelca/booking-widget/internal/appointment"
	"github.com/vetelca/booking-widget/internal/config"
	"github.com/vetelca/booking-widget/internal/engine"
	"github.com/vetelca/booking-widget/internal/geocode"
	"github.com/vetelca/booking-widget/internal/prefs"
	"github.com/vetelca/booking-widget/internal/schedapi"
)

type stubBackend struct {
	mu        sync.Mutex
	chatCalls []schedapi.ChatRequest
	chatResp  *schedapi.ChatResponse
	lead      *schedapi.Lead
	issues    []string
	viability *schedapi.Viability
}

func (s *stubBackend) Chat(ctx context.Context, req schedapi.ChatRequest) (*schedapi.ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chatCalls = append(s.chatCalls, req)
	if s.chatResp != nil {
		return s.chatResp, nil
	}
	return &schedapi.ChatResponse{Response: "hello", SessionID: "sess-1"}, nil
}

func (s *stubBackend) CheckViability(ctx context.Context, lat, lng float64) (*schedapi.Viability, error) {
	if s.viability != nil {
		return s.viability, nil
	}
	return &schedapi.Viability{Installable: true}, nil
}

func (s *stubBackend) VerifyLead(ctx context.Context, token string) (*schedapi.Lead, error) {
	return s.lead, nil
}

func (s *stubBackend) ActiveIssues(ctx context.Context) ([]string, error) {
	return s.issues, nil
}

func (s *stubBackend) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chatCalls)
}

type stubGeocoder struct {
	result *geocode.Result
}

func (s *stubGeocoder) Forward(ctx context.Context, query string) (*geocode.Result, error) {
	return s.result, nil
}

func (s *stubGeocoder) Reverse(ctx context.Context, lat, lng float64) (*geocode.Result, error) {
	return s.result, nil
}

func testConfig() *config.Config {
	return &config.Config{
		ChatAPIBaseURL:  "http://localhost:8000",
		DefaultDialCode: "+58",
		DefaultMapLat:   10.2144164,
		DefaultMapLng:   -68.0113295,
		DefaultMapZoom:  10,
		DefaultLanguage: "es",
	}
}

func newTestWidget(t *testing.T, opts Options) *Widget {
	t.Helper()
	if opts.Config == nil {
		opts.Config = testConfig()
	}
	if opts.Backend == nil {
		opts.Backend = &stubBackend{}
	}
	w, err := New(opts)
	require.NoError(t, err)
	return w
}

func TestNewResolvesIdentityFromPageURL(t *testing.T) {
	w := newTestWidget(t, Options{
		PageURL: "https://example.com/chatbot?id=widget-9&token=tok-5",
	})

	assert.Equal(t, "widget-9", w.WidgetID())
	assert.Equal(t, "tok-5", w.accessToken)
}

func TestStartInitializesConversation(t *testing.T) {
	backend := &stubBackend{}
	w := newTestWidget(t, Options{WidgetID: "w1", Backend: backend})

	w.Start(context.Background())

	require.Equal(t, 1, backend.calls())
	assert.Empty(t, backend.chatCalls[0].Message)
	assert.Equal(t, "sess-1", w.Engine().SessionID())
}

func TestStartRestoresPersistedLanguage(t *testing.T) {
	store := prefs.NewMemoryStore()
	require.NoError(t, store.SetLanguage(context.Background(), "en"))
	w := newTestWidget(t, Options{WidgetID: "w1", Prefs: store})
	require.Equal(t, "es", w.Language(), "config default applies before Start")

	w.Start(context.Background())

	assert.Equal(t, "en", w.Language())
	msgs := w.Engine().Messages()
	assert.True(t, strings.HasPrefix(msgs[0].Text, "Hi!"), "seeded greeting follows the restored language")
}

func TestStartWithTokenOpensEditForm(t *testing.T) {
	backend := &stubBackend{lead: &schedapi.Lead{}}
	backend.lead.Customer.FirstName = "Ana"
	w := newTestWidget(t, Options{WidgetID: "w1", AccessToken: "tok-1", Backend: backend})

	w.Start(context.Background())

	assert.True(t, w.Form().IsOpen())
	assert.Equal(t, "Ana", w.Form().Fields().Name)
}

func TestSetLanguagePersists(t *testing.T) {
	store := prefs.NewMemoryStore()
	w := newTestWidget(t, Options{WidgetID: "w1", Prefs: store})

	w.SetLanguage(context.Background(), "en")

	assert.Equal(t, "en", w.Language())
	lang, err := store.Language(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "en", lang)
}

func TestConfirmationIntentOpensForm(t *testing.T) {
	backend := &stubBackend{chatResp: &schedapi.ChatResponse{
		Response: "please confirm",
		Details: &appointment.Details{
			Intent:   appointment.IntentConfirmAppointment,
			Customer: appointment.Customer{Name: "Luis"},
		},
	}}
	w := newTestWidget(t, Options{WidgetID: "w1", Backend: backend})

	w.Engine().Send(context.Background(), "book me", engine.SendOptions{})

	assert.True(t, w.Form().IsOpen())
	assert.Equal(t, "Luis", w.Form().Fields().Name)
}

func TestConfirmAddressIntoChat(t *testing.T) {
	backend := &stubBackend{}
	geo := &stubGeocoder{result: &geocode.Result{Lat: 10.2, Lng: -68.0, Label: "Centro"}}
	w := newTestWidget(t, Options{WidgetID: "w1", Backend: backend, Geocoder: geo})

	w.OpenAddressPicker(context.Background())
	w.AddressFlow().PickPoint(context.Background(), 10.2, -68.0)
	w.ConfirmAddress(context.Background())

	require.Equal(t, 1, backend.calls())
	assert.Contains(t, backend.chatCalls[0].Message, "Centro")
	assert.False(t, w.AddressFlow().IsOpen())
}

func TestConfirmAddressIntoOpenForm(t *testing.T) {
	backend := &stubBackend{}
	geo := &stubGeocoder{result: &geocode.Result{Lat: 10.2, Lng: -68.0, Label: "Centro"}}
	w := newTestWidget(t, Options{WidgetID: "w1", Backend: backend, Geocoder: geo})

	w.Form().Open(context.Background(), appointment.Details{})
	w.OpenAddressPicker(context.Background())
	w.AddressFlow().PickPoint(context.Background(), 10.2, -68.0)
	w.ConfirmAddress(context.Background())

	assert.Zero(t, backend.calls(), "form-bound selection sends nothing to chat")
	fields := w.Form().Fields()
	assert.Equal(t, "Centro", fields.Address)
	require.NotNil(t, fields.Latitude)
	assert.Equal(t, 10.2, *fields.Latitude)
	assert.False(t, w.AddressFlow().IsOpen())
}

func TestNewConversationResets(t *testing.T) {
	backend := &stubBackend{}
	w := newTestWidget(t, Options{WidgetID: "w1", Backend: backend})
	w.Start(context.Background())
	w.Engine().Send(context.Background(), "hello", engine.SendOptions{})
	require.Equal(t, 2, backend.calls())

	w.NewConversation(context.Background())

	assert.Equal(t, 3, backend.calls(), "reset re-runs the bootstrap")
	assert.Len(t, w.Engine().Messages(), 2, "greeting plus the fresh bootstrap reply")
	assert.False(t, w.Form().IsOpen())
}

func TestNewWithoutBackendConfigErrors(t *testing.T) {
	cfg := testConfig()
	cfg.ChatAPIBaseURL = ""

	_, err := New(Options{Config: cfg, WidgetID: "w1"})

	assert.Error(t, err)
}
