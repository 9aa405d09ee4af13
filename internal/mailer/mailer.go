// Package mailer composes and delivers the menu email over SMTP.
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"strings"

	"gopkg.in/gomail.v2"

	"menucal/internal/config"
	"menucal/internal/model"
)

// ErrNoRecipients is returned when a message has nobody to go to.
var ErrNoRecipients = errors.New("mailer: no recipients")

// WeekImage is the merged menu for one template week.
type WeekImage struct {
	Week int
	PNG  []byte
}

// Menu is everything needed to mail one period.
type Menu struct {
	Period     model.MenuPeriod
	Recipients []string
	Images     []WeekImage
}

// Mailer sends messages through a gomail.Sender.
type Mailer struct {
	from string
	send func(msgs ...*gomail.Message) error
}

// NewSMTP dials the configured server for every send.
func NewSMTP(cfg config.SMTPConfig) *Mailer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return &Mailer{from: cfg.From, send: d.DialAndSend}
}

// New sends through s; used by tests and alternate transports.
func New(from string, s gomail.Sender) *Mailer {
	return &Mailer{
		from: from,
		send: func(msgs ...*gomail.Message) error { return gomail.Send(s, msgs...) },
	}
}

// Subject is e.g. "Menu for week starting January 15, 2024".
func Subject(p model.MenuPeriod) string {
	return "Menu for week starting " + p.PeriodStart.Format("January 02, 2006")
}

// DateRange is the whole period, e.g. "15 Jan - 28 Jan 2024".
func DateRange(p model.MenuPeriod) string {
	return p.PeriodStart.Format("02 Jan") + " - " + p.EndDate().Format("02 Jan 2006")
}

// AttachmentName is e.g. "menu_2024-01-15_week3.png".
func AttachmentName(p model.MenuPeriod, week int) string {
	return fmt.Sprintf("menu_%s_week%d.png", p.PeriodStart.Format(model.DateLayout), week)
}

var htmlBody = template.Must(template.New("menu").Parse(`<html>
<body style="font-family: sans-serif">
<h2>{{.Subject}}</h2>
<p><strong>Dates:</strong> {{.Range}}</p>
<p><strong>Menu type:</strong> {{.MenuType}}</p>
<p>The menus for {{len .Weeks}} week(s) are attached:</p>
<ul>{{range .Weeks}}<li>Week {{.}}</li>{{end}}</ul>
</body>
</html>`))

// ComposeMenu builds the menu email with one PNG attachment per week.
func (m *Mailer) ComposeMenu(menu Menu) (*gomail.Message, error) {
	if len(menu.Recipients) == 0 {
		return nil, ErrNoRecipients
	}
	if len(menu.Images) == 0 {
		return nil, errors.New("mailer: no menu images")
	}

	subject := Subject(menu.Period)
	weeks := make([]int, 0, len(menu.Images))
	for _, img := range menu.Images {
		weeks = append(weeks, img.Week)
	}

	var html bytes.Buffer
	err := htmlBody.Execute(&html, struct {
		Subject  string
		Range    string
		MenuType string
		Weeks    []int
	}{subject, DateRange(menu.Period), menu.Period.MenuType(), weeks})
	if err != nil {
		return nil, fmt.Errorf("mailer: render body: %w", err)
	}

	text := fmt.Sprintf("%s\n\nDates: %s\nMenu type: %s\n", subject, DateRange(menu.Period), menu.Period.MenuType())

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", menu.Recipients...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", text)
	msg.AddAlternative("text/html", html.String())

	for _, img := range menu.Images {
		data := img.PNG
		msg.Attach(AttachmentName(menu.Period, img.Week),
			gomail.SetHeader(map[string][]string{"Content-Type": {"image/png"}}),
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			}),
		)
	}
	return msg, nil
}

// SendMenu composes and delivers the menu email.
func (m *Mailer) SendMenu(ctx context.Context, menu Menu) error {
	msg, err := m.ComposeMenu(menu)
	if err != nil {
		return err
	}
	return m.deliver(ctx, msg)
}

// SendText sends a plain-text message, used for test emails and admin alerts.
func (m *Mailer) SendText(ctx context.Context, to []string, subject, body string) error {
	to = cleanAddresses(to)
	if len(to) == 0 {
		return ErrNoRecipients
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)
	return m.deliver(ctx, msg)
}

func (m *Mailer) deliver(ctx context.Context, msg *gomail.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.send(msg); err != nil {
		return fmt.Errorf("mailer: send: %w", err)
	}
	return nil
}

func cleanAddresses(in []string) []string {
	out := make([]string, 0, len(in))
	for _, a := range in {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}
