package notify

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/slack-go/slack"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"menucal/internal/config"
	appLog "menucal/internal/log"
	"menucal/internal/model"
)

// SlackPoster is the slice of the Slack API client used here.
type SlackPoster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Slack posts events to one channel.
type Slack struct {
	client  SlackPoster
	channel string
}

func NewSlack(cfg config.SlackConfig) *Slack {
	return &Slack{client: slack.New(cfg.Token), channel: cfg.Channel}
}

func (s *Slack) Notify(ctx context.Context, ev Event) error {
	text := fmt.Sprintf("%s *%s* %s", statusIcon(ev.Status), ev.Action, ev.Details)
	_, _, err := s.client.PostMessageContext(ctx, s.channel,
		slack.MsgOptionText(text, false),
		slack.MsgOptionAsUser(false),
	)
	if err != nil {
		return fmt.Errorf("notify: slack post: %w", err)
	}
	return nil
}

// MessageCreator is the slice of the Twilio REST API used here.
type MessageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// SMS texts an on-call number through Twilio.
type SMS struct {
	api  MessageCreator
	from string
	to   string
}

// smsLimit keeps alerts to a couple of SMS segments.
const smsLimit = 300

func NewSMS(cfg config.TwilioConfig) *SMS {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &SMS{api: client.Api, from: cfg.From, to: cfg.To}
}

func (s *SMS) Notify(_ context.Context, ev Event) error {
	body := fmt.Sprintf("menucal %s: %s - %s", ev.Status, ev.Action, ev.Details)
	body = truncateRunes(body, smsLimit)

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(s.to)
	params.SetFrom(s.from)
	params.SetBody(body)

	resp, err := s.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("notify: twilio send: %w", err)
	}
	if resp != nil && resp.Sid != nil {
		appLog.Debug("sms alert sent", "sid", *resp.Sid)
	}
	return nil
}

// truncateRunes cuts s to at most limit characters, ending in "...", without
// splitting a multi-byte character.
func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	return string(r[:limit-3]) + "..."
}

// TextSender is satisfied by *mailer.Mailer.
type TextSender interface {
	SendText(ctx context.Context, to []string, subject, body string) error
}

// AdminEmail mails events to the administrator.
type AdminEmail struct {
	Sender TextSender
	To     string
}

func (a AdminEmail) Notify(ctx context.Context, ev Event) error {
	subject := fmt.Sprintf("Menu service %s: %s", ev.Status, ev.Action)
	return a.Sender.SendText(ctx, []string{a.To}, subject, ev.Details)
}

// FromConfig assembles the configured channels behind the activity log.
// Slack gets every non-routine event; SMS and admin email only errors.
func FromConfig(cfg *config.Config, activity ActivityStore, mail TextSender) Multi {
	out := Multi{ActivityLog{Store: activity}}
	if cfg.Notify.Slack.Token != "" && cfg.Notify.Slack.Channel != "" {
		out = append(out, Filter{Next: NewSlack(cfg.Notify.Slack), Min: model.StatusSuccess})
	}
	if t := cfg.Notify.Twilio; t.AccountSID != "" && t.AuthToken != "" && t.From != "" && t.To != "" {
		out = append(out, Filter{Next: NewSMS(t), Min: model.StatusError})
	}
	if cfg.Notify.AdminEmail != "" && mail != nil {
		out = append(out, Filter{Next: AdminEmail{Sender: mail, To: cfg.Notify.AdminEmail}, Min: model.StatusError})
	}
	return out
}
