package webhooks_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gpus/backend/internal/application/services"
	"github.com/gpus/backend/internal/domain/models"
	"github.com/gpus/backend/internal/interfaces/webhooks"
	apperrors "github.com/gpus/backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPayments struct{ mock.Mock }

func (m *MockPayments) ReceiveWebhook(ctx context.Context, body []byte) (string, string, error) {
	args := m.Called(ctx, body)
	return args.String(0), args.String(1), args.Error(2)
}

type MockEmailEvents struct{ mock.Mock }

func (m *MockEmailEvents) RecordEvent(ctx context.Context, input services.EmailEventInput) (*models.EmailEvent, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EmailEvent), args.Error(1)
}

type MockMessages struct{ mock.Mock }

func (m *MockMessages) UpdateMessageStatus(ctx context.Context, messageID string, status models.MessageStatus) (*models.Message, error) {
	args := m.Called(ctx, messageID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

type MockCapture struct{ mock.Mock }

func (m *MockCapture) Create(ctx context.Context, input models.MarketingLeadInput, clientIP, userAgent string) (*models.MarketingLead, bool, error) {
	args := m.Called(ctx, input, clientIP, userAgent)
	if args.Get(0) == nil {
		return nil, false, args.Error(2)
	}
	return args.Get(0).(*models.MarketingLead), args.Bool(1), args.Error(2)
}

type MockTeam struct{ mock.Mock }

func (m *MockTeam) UpsertFromIdentityProvider(ctx context.Context, in services.IdentityUser) (*models.User, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockTeam) DeactivateFromIdentityProvider(ctx context.Context, clerkID string) error {
	return m.Called(ctx, clerkID).Error(0)
}

type fixture struct {
	router   *gin.Engine
	payments *MockPayments
	events   *MockEmailEvents
	messages *MockMessages
	capture  *MockCapture
	team     *MockTeam
}

var testSecrets = webhooks.Secrets{
	Brevo:      "brevo-secret",
	Messaging:  "msg-secret",
	Typebot:    "typebot-secret",
	WordPress:  "wp-secret",
	Clerk:      "clerk-secret",
	AsaasToken: "asaas-token",
}

func newFixture(secrets webhooks.Secrets) *fixture {
	gin.SetMode(gin.TestMode)
	f := &fixture{
		router:   gin.New(),
		payments: new(MockPayments),
		events:   new(MockEmailEvents),
		messages: new(MockMessages),
		capture:  new(MockCapture),
		team:     new(MockTeam),
	}
	h := webhooks.NewHandler(secrets, webhooks.Deps{
		Payments:              f.payments,
		EmailEvents:           f.events,
		Messages:              f.messages,
		Capture:               f.capture,
		Team:                  f.team,
		DefaultOrganizationID: "org-1",
	})
	h.Register(f.router)
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func jsonRequest(t *testing.T, path string, body interface{}, headers map[string]string) *http.Request {
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func TestSecretMatches(t *testing.T) {
	assert.True(t, webhooks.SecretMatches("abc", "abc"))
	assert.False(t, webhooks.SecretMatches("abc", "abd"))
	assert.False(t, webhooks.SecretMatches("abc", ""))
	assert.False(t, webhooks.SecretMatches("", ""))
}

func TestNormalizeBrevoEvent(t *testing.T) {
	cases := map[string]string{
		"delivered":     models.EmailEventDelivered,
		"opened":        models.EmailEventOpened,
		"unique_opened": models.EmailEventOpened,
		"click":         models.EmailEventClicked,
		"soft_bounce":   models.EmailEventBounced,
		"hard_bounce":   models.EmailEventBounced,
		"spam":          models.EmailEventSpam,
		"complaint":     models.EmailEventSpam,
		"unsubscribed":  models.EmailEventUnsubscribed,
		"invalid_email": models.EmailEventBounced,
	}
	for in, want := range cases {
		assert.Equal(t, want, webhooks.NormalizeBrevoEvent(in), in)
	}
}

func TestNormalizeMessageStatus(t *testing.T) {
	assert.Equal(t, models.MessageEnviando, webhooks.NormalizeMessageStatus("sending"))
	assert.Equal(t, models.MessageEnviado, webhooks.NormalizeMessageStatus("sent"))
	assert.Equal(t, models.MessageEntregue, webhooks.NormalizeMessageStatus("DELIVERED"))
	assert.Equal(t, models.MessageLido, webhooks.NormalizeMessageStatus("read"))
	assert.Equal(t, models.MessageFalhou, webhooks.NormalizeMessageStatus("error"))
	assert.Equal(t, models.MessageFalhou, webhooks.NormalizeMessageStatus("whatever"))
}

func TestVerifyAsaasRequest(t *testing.T) {
	body := []byte(`{"event":"PAYMENT_RECEIVED"}`)
	mac := hmac.New(sha256.New, []byte("tok"))
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))

	assert.True(t, webhooks.VerifyAsaasRequest("tok", "tok", "", body))
	assert.True(t, webhooks.VerifyAsaasRequest("tok", "", sig, body))
	assert.False(t, webhooks.VerifyAsaasRequest("tok", "", sig, []byte(`{}`)))
	assert.False(t, webhooks.VerifyAsaasRequest("tok", "wrong", "zz", body))
	assert.False(t, webhooks.VerifyAsaasRequest("", "", sig, body))
}

func TestBrevo_RejectsMissingSecret(t *testing.T) {
	f := newFixture(testSecrets)
	w := f.do(jsonRequest(t, "/webhooks/brevo", map[string]interface{}{"event": "delivered", "email": "a@b.com"}, nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	f.events.AssertNotCalled(t, "RecordEvent", mock.Anything, mock.Anything)
}

func TestBrevo_UnsetSecretRejectsEverything(t *testing.T) {
	f := newFixture(webhooks.Secrets{})
	w := f.do(jsonRequest(t, "/brevo/webhook?secret=", map[string]interface{}{"event": "delivered", "email": "a@b.com"}, nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBrevo_RecordsNormalizedEvent(t *testing.T) {
	f := newFixture(testSecrets)
	f.events.On("RecordEvent", mock.Anything, mock.MatchedBy(func(in services.EmailEventInput) bool {
		return in.OrganizationID == "org-1" &&
			in.Email == "ana@example.com" &&
			in.EventType == models.EmailEventBounced &&
			in.RawEvent == "hard_bounce" &&
			in.CampaignID == "42" &&
			in.OccurredAt.Equal(time.UnixMilli(1700000000123).UTC())
	})).Return(&models.EmailEvent{}, nil)

	body := map[string]interface{}{
		"event":    "hard_bounce",
		"email":    "ana@example.com",
		"ts":       1700000000,
		"ts_epoch": 1700000000123,
		"camp_id":  42,
	}
	w := f.do(jsonRequest(t, "/brevo/webhook?secret=brevo-secret", body, nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
	f.events.AssertExpectations(t)
}

func TestBrevo_FailureLogMasksEmail(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	f := newFixture(testSecrets)
	f.events.On("RecordEvent", mock.Anything, mock.Anything).Return(nil, errors.New("deadlock found"))

	body := map[string]interface{}{"event": "delivered", "email": "ana.souza@example.com"}
	w := f.do(jsonRequest(t, "/brevo/webhook?secret=brevo-secret", body, nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, buf.String(), "a***@example.com")
	assert.NotContains(t, buf.String(), "ana.souza@example.com")
}

func TestBrevo_RequiresEventAndEmail(t *testing.T) {
	f := newFixture(testSecrets)
	w := f.do(jsonRequest(t, "/webhooks/brevo", map[string]interface{}{"event": "delivered"},
		map[string]string{"X-Brevo-Secret": "brevo-secret"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMessaging_UnknownMessage(t *testing.T) {
	f := newFixture(testSecrets)
	f.messages.On("UpdateMessageStatus", mock.Anything, "m-404", models.MessageLido).
		Return(nil, apperrors.NewNotFoundError("Message", "m-404"))

	w := f.do(jsonRequest(t, "/webhooks/messaging", map[string]string{"messageId": "m-404", "status": "read"},
		map[string]string{"X-Messaging-Secret": "msg-secret"}))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMessaging_UpdatesStatus(t *testing.T) {
	f := newFixture(testSecrets)
	f.messages.On("UpdateMessageStatus", mock.Anything, "m-1", models.MessageEntregue).
		Return(&models.Message{ID: "m-1", Status: models.MessageEntregue}, nil)

	w := f.do(jsonRequest(t, "/messaging/webhook", map[string]string{"messageId": "m-1", "status": "delivered"},
		map[string]string{"X-Messaging-Secret": "msg-secret"}))

	assert.Equal(t, http.StatusOK, w.Code)
	f.messages.AssertExpectations(t)
}

func TestTypebot_CreatesLead(t *testing.T) {
	f := newFixture(testSecrets)
	f.capture.On("Create", mock.Anything, mock.MatchedBy(func(in models.MarketingLeadInput) bool {
		return in.Origin == models.OriginTypebot &&
			in.Phone == "(11) 98765-4321" &&
			in.LGPDConsent &&
			in.ResultID != nil && *in.ResultID == "r-1" &&
			in.ExternalTimestamp != nil
	}), mock.Anything, mock.Anything).Return(&models.MarketingLead{ID: "ml-1"}, true, nil)

	body := map[string]interface{}{
		"name":        "Ana",
		"email":       "ana@example.com",
		"phone":       "5511987654321",
		"interest":    "Harmonização facial",
		"lgpdConsent": "true",
		"resultId":    "r-1",
		"timestamp":   1700000000000,
	}
	w := f.do(jsonRequest(t, "/webhooks/typebot", body, map[string]string{"X-Typebot-Secret": "typebot-secret"}))

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ml-1", resp["id"])
	assert.Equal(t, false, resp["duplicate"])
}

func TestWordPress_FormEncoded(t *testing.T) {
	f := newFixture(testSecrets)
	f.capture.On("Create", mock.Anything, mock.MatchedBy(func(in models.MarketingLeadInput) bool {
		return in.Origin == models.OriginWordPress &&
			in.Email == "joao@example.com" &&
			in.LGPDConsent &&
			in.UTMSource != nil && *in.UTMSource == "google"
	}), mock.Anything, mock.Anything).Return(&models.MarketingLead{ID: "ml-2"}, false, nil)

	form := url.Values{}
	form.Set("name", "João")
	form.Set("email", "joao@example.com")
	form.Set("phone", "11987654321")
	form.Set("interest", "corporal")
	form.Set("lgpd_consent", "on")
	form.Set("utm_source", "google")
	req := httptest.NewRequest(http.MethodPost, "/webhooks/wordpress", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-WordPress-Secret", "wp-secret")

	w := f.do(req)

	assert.Equal(t, http.StatusOK, w.Code)
	f.capture.AssertExpectations(t)
}

func TestClerk_IgnoresUnknownType(t *testing.T) {
	f := newFixture(testSecrets)
	w := f.do(jsonRequest(t, "/webhooks/clerk", map[string]interface{}{"type": "session.created", "data": map[string]string{"id": "u"}},
		map[string]string{"X-Webhook-Secret": "clerk-secret"}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ignored","type":"session.created"}`, w.Body.String())
}

func TestClerk_UpsertsUser(t *testing.T) {
	f := newFixture(testSecrets)
	f.team.On("UpsertFromIdentityProvider", mock.Anything, mock.MatchedBy(func(in services.IdentityUser) bool {
		return in.ClerkID == "user_1" && in.Email == "ana@example.com" && in.Name == "Ana Souza" &&
			in.OrganizationID == "org_9" && in.Role == "org:admin"
	})).Return(&models.User{ID: "u-1"}, nil)

	body := map[string]interface{}{
		"type": "user.created",
		"data": map[string]interface{}{
			"id":              "user_1",
			"first_name":      "Ana",
			"last_name":       "Souza",
			"email_addresses": []map[string]string{{"email_address": "ana@example.com"}},
			"organization_memberships": []map[string]interface{}{
				{"role": "org:admin", "organization": map[string]string{"id": "org_9"}},
			},
		},
	}
	w := f.do(jsonRequest(t, "/webhooks/clerk", body, map[string]string{"X-Webhook-Secret": "clerk-secret"}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"processed","type":"user.created"}`, w.Body.String())
	f.team.AssertExpectations(t)
}

func TestClerk_DeactivatesUser(t *testing.T) {
	f := newFixture(testSecrets)
	f.team.On("DeactivateFromIdentityProvider", mock.Anything, "user_1").Return(nil)

	w := f.do(jsonRequest(t, "/webhooks/clerk", map[string]interface{}{"type": "user.deleted", "data": map[string]string{"id": "user_1"}},
		map[string]string{"X-Webhook-Secret": "clerk-secret"}))

	assert.Equal(t, http.StatusOK, w.Code)
	f.team.AssertExpectations(t)
}

func TestAsaas_SignedBodyAccepted(t *testing.T) {
	f := newFixture(testSecrets)
	body := []byte(`{"id":"evt_1","event":"PAYMENT_CONFIRMED"}`)
	mac := hmac.New(sha256.New, []byte("asaas-token"))
	mac.Write(body)
	f.payments.On("ReceiveWebhook", mock.Anything, body).Return("received", "wh-1", nil)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/asaas", bytes.NewReader(body))
	req.Header.Set("asaas-signature", hex.EncodeToString(mac.Sum(nil)))
	w := f.do(req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"received","id":"wh-1"}`, w.Body.String())
}

func TestAsaas_RejectsBadToken(t *testing.T) {
	f := newFixture(testSecrets)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/asaas", strings.NewReader(`{}`))
	req.Header.Set("asaas-access-token", "nope")
	w := f.do(req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	f.payments.AssertNotCalled(t, "ReceiveWebhook", mock.Anything, mock.Anything)
}
