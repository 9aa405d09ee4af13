package period

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"menucal/internal/model"
)

func TestUpcoming(t *testing.T) {
	cfg := &model.ScheduleConfig{
		AnchorDate:       date(2024, 1, 1),
		LeadDays:         14,
		Season:           model.SeasonSummer,
		SeasonChangeDate: ptr(date(2024, 2, 1)),
	}

	got, err := Upcoming(date(2024, 1, 1), cfg, 4)
	require.NoError(t, err)
	require.Len(t, got, 4)

	first, err := NextPeriod(date(2024, 1, 1), cfg)
	require.NoError(t, err)
	assert.Equal(t, first, got[0])

	wantStarts := []string{"2024-01-15", "2024-01-29", "2024-02-12", "2024-02-26"}
	for i, p := range got {
		assert.Equal(t, wantStarts[i], p.PeriodStart.Format(model.DateLayout))
		assert.Equal(t, first.Index+i, p.Index)

		// Each entry must match what NextPeriod says the day before it starts.
		direct, err := NextPeriod(p.PeriodStart.AddDate(0, 0, -1), cfg)
		require.NoError(t, err)
		assert.Equal(t, direct, p)
	}
	assert.Equal(t, model.SeasonSummer, got[1].Season)
	assert.Equal(t, model.SeasonWinter, got[2].Season)
}

func TestUpcomingEdgeCounts(t *testing.T) {
	cfg := &model.ScheduleConfig{AnchorDate: date(2024, 1, 1), Season: model.SeasonWinter}

	got, err := Upcoming(date(2024, 3, 1), cfg, 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = Upcoming(date(2024, 3, 1), cfg, 1000)
	require.NoError(t, err)
	assert.Len(t, got, maxUpcoming)

	_, err = Upcoming(date(2024, 3, 1), nil, 3)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
