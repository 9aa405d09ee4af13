package store

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"menucal/internal/model"
)

// setupTestStore opens an in-memory database with all migrations applied.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(":memory:")
	require.NoError(t, err, "failed to open test database")
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})

	clock := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := setupTestStore(t)
	require.NoError(t, Migrate(s.db))
	require.NoError(t, s.Ping(context.Background()))
}

func TestLoadMigrationsOrdersByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/010_later.sql":      {Data: []byte("SELECT 1;")},
		"sql/002_second_one.sql": {Data: []byte("SELECT 2;")},
		"sql/README.md":          {Data: []byte("ignored")},
	}
	got, err := loadMigrations(fsys, "sql")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2.0, got[0].Version)
	assert.Equal(t, "second one", got[0].Description)
	assert.Equal(t, 10.0, got[1].Version)

	_, err = loadMigrations(fstest.MapFS{"sql/init.sql": {Data: []byte("")}}, "sql")
	assert.Error(t, err)
}

func TestSettingsLatestWins(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	_, err := s.LatestSettings(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	first := &model.Settings{
		Schedule:   model.RawSchedule{AnchorDate: "2024-01-01", LeadDays: 14, Season: "summer"},
		Recipients: []string{"chef@example.com"},
	}
	require.NoError(t, s.SaveSettings(ctx, first))
	assert.NotZero(t, first.ID)

	second := &model.Settings{
		Schedule: model.RawSchedule{
			AnchorDate:       "2024-01-15",
			LeadDays:         7,
			Season:           "winter",
			SeasonChangeDate: "2024-06-01",
		},
		Recipients: []string{"a@example.com", "b@example.com"},
	}
	require.NoError(t, s.SaveSettings(ctx, second))

	got, err := s.LatestSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
	assert.Equal(t, second.Schedule, got.Schedule)
	assert.Equal(t, second.Recipients, got.Recipients)
	assert.True(t, second.CreatedAt.Equal(got.CreatedAt))
}

func TestSettingsNilRecipients(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	require.NoError(t, s.SaveSettings(ctx, &model.Settings{
		Schedule: model.RawSchedule{AnchorDate: "2024-01-01", Season: "summer"},
	}))
	got, err := s.LatestSettings(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.Recipients)
	assert.Empty(t, got.Schedule.SeasonChangeDate)
}

func TestTemplatesCRUD(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	prev, err := s.PutTemplate(ctx, &model.Template{Season: "summer", Week: 1, Ref: "templates/a.png"})
	require.NoError(t, err)
	assert.Empty(t, prev)

	tpl := &model.Template{Season: "summer", Week: 1, Ref: "templates/b.png"}
	prev, err = s.PutTemplate(ctx, tpl)
	require.NoError(t, err)
	assert.Equal(t, "templates/a.png", prev)
	assert.NotZero(t, tpl.ID)

	_, err = s.PutTemplate(ctx, &model.Template{Season: model.DatesSeason, Week: 0, Ref: "https://cdn.example.com/dates.png"})
	require.NoError(t, err)

	got, err := s.GetTemplate(ctx, "summer", 1)
	require.NoError(t, err)
	assert.Equal(t, "templates/b.png", got.Ref)

	list, err := s.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, model.DatesSeason, list[0].Season)
	assert.Equal(t, "summer", list[1].Season)

	ref, err := s.DeleteTemplate(ctx, "summer", 1)
	require.NoError(t, err)
	assert.Equal(t, "templates/b.png", ref)

	_, err = s.GetTemplate(ctx, "summer", 1)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.DeleteTemplate(ctx, "summer", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTemplateWeekIsChecked(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.PutTemplate(context.Background(), &model.Template{Season: "summer", Week: 5, Ref: "x"})
	assert.Error(t, err)
}

func TestActivityLog(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	for i, status := range []model.ActivityStatus{model.StatusSuccess, model.StatusWarning, ""} {
		a := &model.Activity{Action: "check", Details: string(rune('a' + i)), Status: status}
		require.NoError(t, s.LogActivity(ctx, a))
		assert.NotZero(t, a.ID)
	}

	got, err := s.RecentActivity(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].Details)
	assert.Equal(t, model.StatusSuccess, got[0].Status)
	assert.Equal(t, "b", got[1].Details)
	assert.Equal(t, model.StatusWarning, got[1].Status)

	err = s.LogActivity(ctx, &model.Activity{Action: "bad", Status: "fatal"})
	assert.Error(t, err)

	n, err := s.ClearActivity(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	got, err = s.RecentActivity(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestServiceFlags(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	active, err := s.ServiceActive(ctx)
	require.NoError(t, err)
	assert.False(t, active)

	require.NoError(t, s.SetServiceActive(ctx, true))
	require.NoError(t, s.SetDebugMode(ctx, true))
	require.NoError(t, s.SetDebugMode(ctx, false))

	active, err = s.ServiceActive(ctx)
	require.NoError(t, err)
	assert.True(t, active)

	debug, err := s.DebugMode(ctx)
	require.NoError(t, err)
	assert.False(t, debug)
}

func TestSendLog(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	p := model.MenuPeriod{
		PeriodStart: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		WeekPair:    model.WeekPairSecond,
		Season:      model.SeasonSummer,
	}

	_, err := s.LastSent(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.MarkSent(ctx, p, 2, true))
	sent, err := s.WasSent(ctx, p.PeriodStart)
	require.NoError(t, err)
	assert.False(t, sent, "forced sends do not count")

	require.NoError(t, s.MarkSent(ctx, p, 3, false))
	sent, err = s.WasSent(ctx, p.PeriodStart)
	require.NoError(t, err)
	assert.True(t, sent)

	require.NoError(t, s.MarkSent(ctx, p, 3, true))
	sent, err = s.WasSent(ctx, p.PeriodStart)
	require.NoError(t, err)
	assert.True(t, sent, "a later forced resend keeps the scheduled mark")

	last, err := s.LastSent(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15", last.PeriodStart)
	assert.Equal(t, "3&4", last.WeekPair)
	assert.False(t, last.Forced)
}

func TestInTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx *Store) error {
		require.NoError(t, tx.LogActivity(ctx, &model.Activity{Action: "inside"}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, err := s.RecentActivity(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, got)

	err = s.InTx(ctx, func(tx *Store) error {
		if _, err := tx.ClearActivity(ctx); err != nil {
			return err
		}
		return tx.LogActivity(ctx, &model.Activity{Action: "cleared"})
	})
	require.NoError(t, err)

	got, err = s.RecentActivity(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "cleared", got[0].Action)
}
