package mailer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"

	"menucal/internal/model"
)

type sent struct {
	from string
	to   []string
	raw  string
}

func captureSender(out *[]sent) gomail.SendFunc {
	return func(from string, to []string, msg io.WriterTo) error {
		var buf bytes.Buffer
		if _, err := msg.WriteTo(&buf); err != nil {
			return err
		}
		*out = append(*out, sent{from: from, to: to, raw: buf.String()})
		return nil
	}
}

func samplePeriod() model.MenuPeriod {
	return model.MenuPeriod{
		PeriodStart: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		SendDate:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		WeekPair:    model.WeekPairSecond,
		Season:      model.SeasonSummer,
		Index:       1,
	}
}

func TestFormatting(t *testing.T) {
	p := samplePeriod()
	assert.Equal(t, "Menu for week starting January 15, 2024", Subject(p))
	assert.Equal(t, "15 Jan - 28 Jan 2024", DateRange(p))
	assert.Equal(t, "menu_2024-01-15_week4.png", AttachmentName(p, 4))

	p.PeriodStart = time.Date(2024, 12, 23, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "23 Dec - 05 Jan 2025", DateRange(p))
	assert.Equal(t, "Menu for week starting December 23, 2024", Subject(p))
}

func TestSendMenu(t *testing.T) {
	var out []sent
	m := New("kitchen@example.com", captureSender(&out))

	err := m.SendMenu(context.Background(), Menu{
		Period:     samplePeriod(),
		Recipients: []string{"parents@example.com", "staff@example.com"},
		Images: []WeekImage{
			{Week: 3, PNG: []byte("week-three")},
			{Week: 4, PNG: []byte("week-four")},
		},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Equal(t, "kitchen@example.com", out[0].from)
	assert.Equal(t, []string{"parents@example.com", "staff@example.com"}, out[0].to)
	assert.Contains(t, out[0].raw, "Subject: Menu for week starting January 15, 2024")
	assert.Contains(t, out[0].raw, "Summer Weeks 3&amp;4")
	assert.Contains(t, out[0].raw, `filename="menu_2024-01-15_week3.png"`)
	assert.Contains(t, out[0].raw, `filename="menu_2024-01-15_week4.png"`)
	assert.Contains(t, out[0].raw, "image/png")
}

func TestComposeMenuValidation(t *testing.T) {
	m := New("kitchen@example.com", gomail.SendFunc(func(string, []string, io.WriterTo) error { return nil }))

	_, err := m.ComposeMenu(Menu{Period: samplePeriod(), Images: []WeekImage{{Week: 1}}})
	assert.ErrorIs(t, err, ErrNoRecipients)

	_, err = m.ComposeMenu(Menu{Period: samplePeriod(), Recipients: []string{"a@example.com"}})
	assert.Error(t, err)
}

func TestSendText(t *testing.T) {
	var out []sent
	m := New("kitchen@example.com", captureSender(&out))

	require.NoError(t, m.SendText(context.Background(), []string{" admin@example.com ", ""}, "Test", "hello"))
	require.Len(t, out, 1)
	assert.Equal(t, []string{"admin@example.com"}, out[0].to)
	assert.Contains(t, out[0].raw, "hello")

	assert.ErrorIs(t, m.SendText(context.Background(), []string{"  "}, "Test", "x"), ErrNoRecipients)
}

func TestSendErrorsAreWrapped(t *testing.T) {
	boom := errors.New("connection refused")
	m := New("kitchen@example.com", gomail.SendFunc(func(string, []string, io.WriterTo) error { return boom }))

	err := m.SendText(context.Background(), []string{"a@example.com"}, "s", "b")
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = m.SendText(ctx, []string{"a@example.com"}, "s", "b")
	assert.ErrorIs(t, err, context.Canceled)
}
