package transform

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"gamestats-pipeline/internal/constants"
	"gamestats-pipeline/internal/domain"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Report counts what happened to a batch of raw records.
type Report struct {
	Input      int `json:"input"`
	Output     int `json:"output"`
	Dropped    int `json:"dropped"`
	Duplicates int `json:"duplicates"`
	// records with no mapping for their (game, source); also counted in Dropped
	Unmapped int `json:"unmapped"`
}

type Transformer struct {
	table  Table
	logger zerolog.Logger
}

func NewTransformer(logger zerolog.Logger) (*Transformer, error) {
	return New(DefaultTable(), logger)
}

func New(table Table, logger zerolog.Logger) (*Transformer, error) {
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate field mapping: %w", err)
	}
	return &Transformer{
		table:  table,
		logger: logger.With().Str("component", "transform").Logger(),
	}, nil
}

type document struct {
	record  domain.RawRecord
	mapping Mapping
	root    gjson.Result
}

// documents resolves the mapping and parses the payload of every record,
// counting the ones that cannot be used at all.
func (t *Transformer) documents(records []domain.RawRecord, report *Report) []document {
	docs := make([]document, 0, len(records))
	for _, rec := range records {
		key := Key{Game: rec.GameID, Source: rec.Source}
		mapping, ok := t.table[key]
		if !ok {
			report.Unmapped++
			report.Dropped++
			t.logger.Debug().Str("key", key.String()).Msg("no mapping for record")
			continue
		}
		if !gjson.ValidBytes(rec.Payload) {
			report.Dropped++
			t.logger.Warn().Str("key", key.String()).Msg("dropping record with invalid JSON payload")
			continue
		}
		docs = append(docs, document{record: rec, mapping: mapping, root: gjson.ParseBytes(rec.Payload)})
	}
	return docs
}

// Matches maps raw records to validated, deduplicated matches.
func (t *Transformer) Matches(records []domain.RawRecord) ([]domain.Match, Report) {
	report := Report{Input: len(records)}

	matches := make([]domain.Match, 0, len(records))
	for _, doc := range t.documents(records, &report) {
		m, err := matchFrom(doc)
		if err == nil {
			err = ValidateMatch(m)
		}
		if err != nil {
			report.Dropped++
			t.logger.Warn().Err(err).
				Str("game_id", doc.record.GameID).
				Str("source", doc.record.Source).
				Msg("dropping match record")
			continue
		}
		matches = append(matches, m)
	}

	matches, report.Duplicates = DeduplicateMatches(matches)
	report.Output = len(matches)
	return matches, report
}

func matchFrom(doc document) (domain.Match, error) {
	rules := doc.mapping.Match

	id, _ := rules[FieldMatchID].text(doc.root)
	date, err := timestampOf(doc.root, rules[FieldMatchDate])
	if err != nil {
		return domain.Match{}, fmt.Errorf("failed to parse match_date of %q: %w", id, err)
	}

	duration := 0
	if rule, ok := rules[FieldDuration]; ok {
		duration = NormalizeDuration(rule.number(doc.root, 0), rule.Unit)
	}
	matchType, _ := rules[FieldMatchType].text(doc.root)
	platform, _ := rules[FieldPlatform].text(doc.root)

	additional, err := additionalData(doc.root, doc.mapping)
	if err != nil {
		return domain.Match{}, fmt.Errorf("failed to build additional_data of %q: %w", id, err)
	}

	return domain.Match{
		MatchID:         id,
		GameID:          doc.record.GameID,
		MatchDate:       date,
		DurationMinutes: duration,
		MatchType:       matchType,
		Platform:        platform,
		Source:          doc.record.Source,
		AdditionalData:  additional,
	}, nil
}

// PlayerStats maps the per-player arrays of raw match records. Records whose
// mapping has no players path contribute nothing and are not counted.
func (t *Transformer) PlayerStats(records []domain.RawRecord) ([]domain.PlayerStat, Report) {
	var report Report

	var stats []domain.PlayerStat
	for _, doc := range t.documents(records, &report) {
		if doc.mapping.PlayersPath == "" {
			continue
		}
		matchID, ok := doc.mapping.Match[FieldMatchID].text(doc.root)
		if !ok || matchID == "" {
			continue
		}

		players := doc.root.Get(doc.mapping.PlayersPath).Array()
		if len(players) > constants.PlayersPerMatch {
			players = players[:constants.PlayersPerMatch]
		}
		for _, p := range players {
			report.Input++
			stat, err := statFrom(doc, matchID, p)
			if err == nil {
				err = ValidatePlayerStat(stat)
			}
			if err != nil {
				report.Dropped++
				t.logger.Debug().Err(err).Str("match_id", matchID).Msg("dropping player stat")
				continue
			}
			stats = append(stats, stat)
		}
	}

	stats, report.Duplicates = DeduplicateStats(stats)
	report.Output = len(stats)
	return stats, report
}

func statFrom(doc document, matchID string, p gjson.Result) (domain.PlayerStat, error) {
	rules := doc.mapping.Player

	idRule := rules[FieldPlayerID]
	rawID, ok := idRule.raw(p)
	if !ok || rawID == "" {
		return domain.PlayerStat{}, fmt.Errorf("%w: player without id in match %s", ErrValidation, matchID)
	}

	username, _ := rules[FieldUsername].text(p)
	platformID, _ := rules[FieldPlatformID].text(p)

	var rank *int
	if rule, ok := rules[FieldRank]; ok {
		if _, found := rule.value(p); found {
			r := int(rule.number(p, 0))
			rank = &r
		}
	}

	additional, err := extras(p, doc.mapping.PlayerExtra)
	if err != nil {
		return domain.PlayerStat{}, fmt.Errorf("failed to build additional_stats: %w", err)
	}

	return domain.PlayerStat{
		StatID:          "stat_" + matchID + "_" + rawID,
		PlayerID:        idRule.Prefix + rawID,
		MatchID:         matchID,
		GameID:          doc.record.GameID,
		Username:        username,
		PlatformID:      platformID,
		Kills:           int(rules[FieldKills].number(p, 0)),
		Deaths:          int(rules[FieldDeaths].number(p, 0)),
		Assists:         int(rules[FieldAssists].number(p, 0)),
		Score:           int(rules[FieldScore].number(p, 0)),
		Rank:            rank,
		AdditionalStats: additional,
	}, nil
}

// Events maps the event arrays of raw match records. Event timestamps are the
// match start plus the event's offset in seconds.
func (t *Transformer) Events(records []domain.RawRecord) ([]domain.GameEvent, Report) {
	var report Report

	var events []domain.GameEvent
	for _, doc := range t.documents(records, &report) {
		if doc.mapping.EventsPath == "" {
			continue
		}
		matchID, ok := doc.mapping.Match[FieldMatchID].text(doc.root)
		if !ok || matchID == "" {
			continue
		}
		start, err := timestampOf(doc.root, doc.mapping.Match[FieldMatchDate])
		if err != nil {
			continue
		}

		for i, e := range doc.root.Get(doc.mapping.EventsPath).Array() {
			report.Input++
			eventType, ok := doc.mapping.Event[FieldEventType].text(e)
			if !ok || eventType == "" {
				report.Dropped++
				continue
			}
			offset := doc.mapping.Event[FieldEventOffset].number(e, 0)

			events = append(events, domain.GameEvent{
				EventID:        fmt.Sprintf("event_%s_%d", matchID, i),
				MatchID:        matchID,
				GameID:         doc.record.GameID,
				EventType:      eventType,
				EventTimestamp: start.Add(time.Duration(offset * float64(time.Second))),
				EventData:      e.Raw,
			})
		}
	}

	events, report.Duplicates = DeduplicateEvents(events)
	report.Output = len(events)
	return events, report
}

// additionalData keeps every top-level field without a canonical column, plus
// the mapping's named extras.
func additionalData(root gjson.Result, mapping Mapping) (string, error) {
	consumed := mapping.consumed()

	out := "{}"
	var err error
	root.ForEach(func(key, value gjson.Result) bool {
		if _, ok := consumed[key.String()]; ok {
			return true
		}
		out, err = sjson.SetRaw(out, escapeKey(key.String()), value.Raw)
		return err == nil
	})
	if err != nil {
		return "", err
	}

	return setExtras(out, root, mapping.Extra)
}

func extras(root gjson.Result, paths map[string]string) (string, error) {
	return setExtras("{}", root, paths)
}

func setExtras(out string, root gjson.Result, paths map[string]string) (string, error) {
	names := make([]string, 0, len(paths))
	for name := range paths {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		v := root.Get(paths[name])
		if !present(v) {
			continue
		}
		var err error
		if out, err = sjson.SetRaw(out, escapeKey(name), v.Raw); err != nil {
			return "", err
		}
	}
	return out, nil
}

var keyEscaper = strings.NewReplacer(
	`\`, `\\`,
	".", `\.`,
	":", `\:`,
	"*", `\*`,
	"?", `\?`,
	"|", `\|`,
	"#", `\#`,
	"@", `\@`,
)

// escapeKey turns an object key into a single sjson path component.
func escapeKey(key string) string {
	return keyEscaper.Replace(key)
}
