package period

import (
	"strings"

	"menucal/internal/model"
)

// ParseConfig turns a stored schedule record into a validated ScheduleConfig.
func ParseConfig(raw model.RawSchedule) (*model.ScheduleConfig, error) {
	if strings.TrimSpace(raw.AnchorDate) == "" {
		return nil, &ConfigError{Field: "anchor_date", Reason: "missing"}
	}
	anchor, err := model.ParseDate(raw.AnchorDate)
	if err != nil {
		return nil, &ConfigError{Field: "anchor_date", Reason: "not a YYYY-MM-DD date", Err: err}
	}

	season, err := model.ParseSeason(raw.Season)
	if err != nil {
		return nil, &ConfigError{Field: "season", Reason: "must be summer or winter", Err: err}
	}

	cfg := &model.ScheduleConfig{
		AnchorDate: anchor,
		LeadDays:   raw.LeadDays,
		Season:     season,
	}

	if strings.TrimSpace(raw.SeasonChangeDate) != "" {
		change, err := model.ParseDate(raw.SeasonChangeDate)
		if err != nil {
			return nil, &ConfigError{Field: "season_change_date", Reason: "not a YYYY-MM-DD date", Err: err}
		}
		cfg.SeasonChangeDate = &change
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks an already-typed ScheduleConfig.
func Validate(cfg *model.ScheduleConfig) error {
	if cfg == nil {
		return ErrNotConfigured
	}
	if cfg.AnchorDate.IsZero() {
		return &ConfigError{Field: "anchor_date", Reason: "missing"}
	}
	if cfg.LeadDays < 0 {
		return &ConfigError{Field: "lead_days", Reason: "must not be negative"}
	}
	if cfg.Season != model.SeasonSummer && cfg.Season != model.SeasonWinter {
		return &ConfigError{Field: "season", Reason: "must be summer or winter"}
	}
	return nil
}
