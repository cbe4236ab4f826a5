package transform

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"gamestats-pipeline/internal/constants"
	"gamestats-pipeline/internal/domain"

	"github.com/tidwall/gjson"
)

var (
	ErrUnparseableTimestamp = errors.New("unparseable timestamp")
	ErrValidation           = errors.New("validation failed")
)

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp accepts epoch seconds, ISO-8601, or one of a few common
// layouts. Zone-less inputs are taken as UTC. The result is always UTC.
func ParseTimestamp(s string) (time.Time, error) {
	return parseTimestamp(s, EpochSeconds)
}

func parseTimestamp(s string, unit EpochUnit) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrUnparseableTimestamp)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fromEpoch(f, unit)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseableTimestamp, s)
}

// maxEpochSeconds is the first second of year 10000, past what the store's
// date functions accept.
var maxEpochSeconds = float64(time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC).Unix())

// fromEpoch rejects values outside (1970, 10000). A millisecond value read
// under a seconds rule lands far beyond that and is dropped, not stored.
func fromEpoch(v float64, unit EpochUnit) (time.Time, error) {
	seconds := v
	if unit == EpochMillis {
		seconds = v / 1000
	}
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) || seconds >= maxEpochSeconds {
		return time.Time{}, fmt.Errorf("%w: epoch %v", ErrUnparseableTimestamp, v)
	}
	if unit == EpochMillis {
		return time.UnixMilli(int64(v)).UTC(), nil
	}
	sec, frac := math.Modf(v)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
}

func timestampOf(doc gjson.Result, r Rule) (time.Time, error) {
	v, ok := r.value(doc)
	if !ok {
		if r.Const != "" {
			return parseTimestamp(r.Const, r.Epoch)
		}
		return time.Time{}, fmt.Errorf("%w: missing", ErrUnparseableTimestamp)
	}
	switch v.Type {
	case gjson.Number:
		return fromEpoch(v.Float(), r.Epoch)
	case gjson.String:
		return parseTimestamp(v.String(), r.Epoch)
	default:
		return time.Time{}, fmt.Errorf("%w: %s", ErrUnparseableTimestamp, v.Raw)
	}
}

// CleanNumeric returns v as a number, or def when it is missing, non-numeric
// or not finite.
func CleanNumeric(v gjson.Result, def float64) float64 {
	var f float64
	switch v.Type {
	case gjson.Number:
		f = v.Num
	case gjson.String:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		if err != nil {
			return def
		}
		f = parsed
	default:
		return def
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

// NormalizeDuration converts a raw duration to whole minutes.
func NormalizeDuration(v float64, unit DurationUnit) int {
	switch unit {
	case UnitSeconds:
		v /= 60
	case UnitMillis:
		v /= 60000
	case UnitMinutes:
	default:
		if v > 60 {
			v /= 60
		}
	}
	return int(v)
}

func ValidateMatch(m domain.Match) error {
	switch {
	case m.MatchID == "":
		return fmt.Errorf("%w: match_id is required", ErrValidation)
	case m.GameID == "":
		return fmt.Errorf("%w: game_id is required", ErrValidation)
	case m.MatchDate.IsZero():
		return fmt.Errorf("%w: match_date is required", ErrValidation)
	case m.DurationMinutes < 0 || m.DurationMinutes > constants.MaxDurationMinutes:
		return fmt.Errorf("%w: duration_minutes %d outside [0,%d]", ErrValidation, m.DurationMinutes, constants.MaxDurationMinutes)
	}
	return nil
}

func ValidatePlayerStat(s domain.PlayerStat) error {
	switch {
	case s.StatID == "":
		return fmt.Errorf("%w: stat_id is required", ErrValidation)
	case s.PlayerID == "":
		return fmt.Errorf("%w: player_id is required", ErrValidation)
	case s.MatchID == "":
		return fmt.Errorf("%w: match_id is required", ErrValidation)
	case s.Kills < 0, s.Deaths < 0, s.Assists < 0, s.Score < 0:
		return fmt.Errorf("%w: negative count in %s", ErrValidation, s.StatID)
	}
	return nil
}
