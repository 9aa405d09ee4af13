package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"menucal/internal/config"
	"menucal/internal/model"
)

type mockActivityStore struct{ mock.Mock }

func (m *mockActivityStore) LogActivity(ctx context.Context, a *model.Activity) error {
	return m.Called(ctx, a).Error(0)
}

type mockSlack struct{ mock.Mock }

func (m *mockSlack) PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	args := m.Called(ctx, channelID, options)
	return args.String(0), args.String(1), args.Error(2)
}

type mockTwilio struct{ mock.Mock }

func (m *mockTwilio) CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error) {
	args := m.Called(params)
	msg, _ := args.Get(0).(*twilioApi.ApiV2010Message)
	return msg, args.Error(1)
}

type mockText struct{ mock.Mock }

func (m *mockText) SendText(ctx context.Context, to []string, subject, body string) error {
	return m.Called(ctx, to, subject, body).Error(0)
}

func TestActivityLogDefaultsStatus(t *testing.T) {
	store := &mockActivityStore{}
	store.On("LogActivity", mock.Anything, mock.MatchedBy(func(a *model.Activity) bool {
		return a.Action == "menu_check" && a.Status == model.StatusSuccess && a.Details == "nothing due"
	})).Return(nil).Once()

	err := ActivityLog{Store: store}.Notify(context.Background(), Event{Action: "menu_check", Details: "nothing due"})
	require.NoError(t, err)
	store.AssertExpectations(t)
}

func TestFilter(t *testing.T) {
	var got []string
	sink := Func(func(_ context.Context, ev Event) error {
		got = append(got, ev.Action)
		return nil
	})
	f := Filter{Next: sink, Min: model.StatusWarning}
	ctx := context.Background()

	require.NoError(t, f.Notify(ctx, Event{Action: "ok", Status: model.StatusSuccess}))
	require.NoError(t, f.Notify(ctx, Event{Action: "warn", Status: model.StatusWarning}))
	require.NoError(t, f.Notify(ctx, Event{Action: "err", Status: model.StatusError}))
	require.NoError(t, f.Notify(ctx, Event{Action: "routine-err", Status: model.StatusError, Routine: true}))

	assert.Equal(t, []string{"warn", "err"}, got)
}

func TestMultiSwallowsFailures(t *testing.T) {
	calls := 0
	failing := Func(func(context.Context, Event) error {
		calls++
		return errors.New("channel down")
	})
	counting := Func(func(context.Context, Event) error {
		calls++
		return nil
	})

	err := Multi{failing, nil, counting}.Notify(context.Background(), Event{Action: "menu_sent"})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestSlackNotify(t *testing.T) {
	client := &mockSlack{}
	client.On("PostMessageContext", mock.Anything, "C123", mock.Anything).Return("C123", "1700000000.000100", nil).Once()

	s := &Slack{client: client, channel: "C123"}
	require.NoError(t, s.Notify(context.Background(), Event{Action: "menu_sent", Status: model.StatusSuccess}))
	client.AssertExpectations(t)

	client.On("PostMessageContext", mock.Anything, "C123", mock.Anything).Return("", "", errors.New("invalid_auth")).Once()
	err := s.Notify(context.Background(), Event{Action: "menu_sent"})
	assert.ErrorContains(t, err, "invalid_auth")
}

func TestSMSNotifyTruncatesBody(t *testing.T) {
	api := &mockTwilio{}
	sid := "SM123"
	api.On("CreateMessage", mock.MatchedBy(func(p *twilioApi.CreateMessageParams) bool {
		return p.To != nil && *p.To == "+15550100" &&
			p.From != nil && *p.From == "+15550199" &&
			p.Body != nil && len(*p.Body) == smsLimit && strings.HasSuffix(*p.Body, "...")
	})).Return(&twilioApi.ApiV2010Message{Sid: &sid}, nil).Once()

	s := &SMS{api: api, from: "+15550199", to: "+15550100"}
	err := s.Notify(context.Background(), Event{
		Action:  "menu_send_failed",
		Details: strings.Repeat("x", 500),
		Status:  model.StatusError,
	})
	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestSMSNotifyKeepsMultiByteCharacters(t *testing.T) {
	api := &mockTwilio{}
	api.On("CreateMessage", mock.MatchedBy(func(p *twilioApi.CreateMessageParams) bool {
		return p.Body != nil && utf8.ValidString(*p.Body) &&
			utf8.RuneCountInString(*p.Body) == smsLimit && strings.HasSuffix(*p.Body, "é...")
	})).Return(&twilioApi.ApiV2010Message{}, nil).Once()

	s := &SMS{api: api, from: "+15550199", to: "+15550100"}
	err := s.Notify(context.Background(), Event{
		Action:  "menu_send_failed",
		Details: strings.Repeat("é", 400),
		Status:  model.StatusError,
	})
	require.NoError(t, err)
	api.AssertExpectations(t)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "short", truncateRunes("short", 10))
	assert.Equal(t, "日本語...", truncateRunes("日本語テキストです", 6))
	assert.Equal(t, "abcdef", truncateRunes("abcdef", 6))
}

func TestAdminEmail(t *testing.T) {
	sender := &mockText{}
	sender.On("SendText", mock.Anything, []string{"admin@example.com"}, "Menu service error: menu_send_failed", "smtp down").
		Return(nil).Once()

	err := AdminEmail{Sender: sender, To: "admin@example.com"}.Notify(context.Background(), Event{
		Action: "menu_send_failed", Details: "smtp down", Status: model.StatusError,
	})
	require.NoError(t, err)
	sender.AssertExpectations(t)
}

func TestFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.Len(t, FromConfig(cfg, &mockActivityStore{}, nil), 1)

	cfg.Notify.Slack = config.SlackConfig{Token: "xoxb", Channel: "C1"}
	cfg.Notify.Twilio = config.TwilioConfig{AccountSID: "AC1", AuthToken: "t", From: "+1", To: "+2"}
	cfg.Notify.AdminEmail = "admin@example.com"
	assert.Len(t, FromConfig(cfg, &mockActivityStore{}, &mockText{}), 4)
}
