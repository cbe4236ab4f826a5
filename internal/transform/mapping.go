package transform

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// Field is a canonical column a source value can be mapped onto.
type Field string

const (
	FieldMatchID   Field = "match_id"
	FieldMatchDate Field = "match_date"
	FieldDuration  Field = "duration_minutes"
	FieldMatchType Field = "match_type"
	FieldPlatform  Field = "platform"

	FieldPlayerID   Field = "player_id"
	FieldUsername   Field = "username"
	FieldPlatformID Field = "platform_id"
	FieldKills      Field = "kills"
	FieldDeaths     Field = "deaths"
	FieldAssists    Field = "assists"
	FieldScore      Field = "score"
	FieldRank       Field = "rank"

	FieldEventType Field = "event_type"
	// seconds since match start
	FieldEventOffset Field = "event_offset"
)

var (
	matchFields = fieldSet(FieldMatchID, FieldMatchDate, FieldDuration, FieldMatchType, FieldPlatform)
	statFields  = fieldSet(FieldPlayerID, FieldUsername, FieldPlatformID, FieldKills, FieldDeaths, FieldAssists, FieldScore, FieldRank)
	eventFields = fieldSet(FieldEventType, FieldEventOffset)
)

func fieldSet(fields ...Field) map[Field]struct{} {
	set := make(map[Field]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

type DurationUnit int

const (
	// UnitAuto treats values above 60 as seconds. It misreads genuine
	// matches longer than an hour reported in minutes, so sources with a
	// known unit should declare it.
	UnitAuto DurationUnit = iota
	UnitSeconds
	UnitMillis
	UnitMinutes
)

type EpochUnit int

const (
	EpochSeconds EpochUnit = iota
	EpochMillis
)

// Rule says where a canonical value lives in a source document. Path and
// Fallback are gjson paths tried in order; Const is used when neither yields
// a non-null value. Lookup rewrites the raw value, Prefix namespaces it.
type Rule struct {
	Path     string
	Fallback string
	Const    string
	Prefix   string
	Lookup   map[string]string
	Unit     DurationUnit
	Epoch    EpochUnit
}

func present(v gjson.Result) bool {
	return v.Exists() && v.Type != gjson.Null
}

func (r Rule) value(doc gjson.Result) (gjson.Result, bool) {
	for _, path := range []string{r.Path, r.Fallback} {
		if path == "" {
			continue
		}
		if v := doc.Get(path); present(v) {
			return v, true
		}
	}
	return gjson.Result{}, false
}

// raw resolves the value as a string before the prefix is applied.
func (r Rule) raw(doc gjson.Result) (string, bool) {
	if v, ok := r.value(doc); ok {
		s := v.String()
		if mapped, ok := r.Lookup[s]; ok {
			s = mapped
		}
		return s, true
	}
	if r.Const != "" {
		return r.Const, true
	}
	return "", false
}

func (r Rule) text(doc gjson.Result) (string, bool) {
	s, ok := r.raw(doc)
	if !ok {
		return "", false
	}
	return r.Prefix + s, true
}

func (r Rule) number(doc gjson.Result, def float64) float64 {
	if v, ok := r.value(doc); ok {
		return CleanNumeric(v, def)
	}
	if r.Const != "" {
		return CleanNumeric(gjson.Parse(r.Const), def)
	}
	return def
}

// Mapping describes how one source's documents for one game become canonical
// records.
type Mapping struct {
	Match map[Field]Rule
	// Extra copies nested values into additional_data, keyed by name.
	Extra map[string]string
	// Omit lists top-level keys never copied into additional_data.
	Omit []string

	PlayersPath string
	Player      map[Field]Rule
	PlayerExtra map[string]string

	EventsPath string
	Event      map[Field]Rule
}

// consumed is the set of top-level keys that already have a canonical home.
func (m Mapping) consumed() map[string]struct{} {
	out := make(map[string]struct{})
	for _, rule := range m.Match {
		for _, path := range []string{rule.Path, rule.Fallback} {
			if path != "" && !strings.ContainsAny(path, ".#|@") {
				out[path] = struct{}{}
			}
		}
	}
	for _, key := range m.Omit {
		out[key] = struct{}{}
	}
	for _, path := range []string{m.PlayersPath, m.EventsPath} {
		if path != "" {
			out[strings.SplitN(path, ".", 2)[0]] = struct{}{}
		}
	}
	return out
}

type Key struct {
	Game   string
	Source string
}

func (k Key) String() string { return k.Game + "/" + k.Source }

type Table map[Key]Mapping

var ErrInvalidMapping = errors.New("invalid field mapping")

// Validate checks every entry against the canonical field sets.
func (t Table) Validate() error {
	keys := make([]Key, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	var errs []error
	for _, key := range keys {
		m := t[key]
		errs = append(errs, checkRules(key, "match", m.Match, matchFields, FieldMatchID, FieldMatchDate)...)
		if m.PlayersPath != "" {
			errs = append(errs, checkRules(key, "player", m.Player, statFields, FieldPlayerID)...)
		} else if len(m.Player) > 0 {
			errs = append(errs, fmt.Errorf("%w: %s: player rules without a players path", ErrInvalidMapping, key))
		}
		if m.EventsPath != "" {
			errs = append(errs, checkRules(key, "event", m.Event, eventFields, FieldEventType, FieldEventOffset)...)
		} else if len(m.Event) > 0 {
			errs = append(errs, fmt.Errorf("%w: %s: event rules without an events path", ErrInvalidMapping, key))
		}
	}
	return errors.Join(errs...)
}

func checkRules(key Key, kind string, rules map[Field]Rule, allowed map[Field]struct{}, required ...Field) []error {
	var errs []error
	for _, f := range required {
		if _, ok := rules[f]; !ok {
			errs = append(errs, fmt.Errorf("%w: %s: %s rule %q is required", ErrInvalidMapping, key, kind, f))
		}
	}
	for f, rule := range rules {
		if _, ok := allowed[f]; !ok {
			errs = append(errs, fmt.Errorf("%w: %s: %q is not a canonical %s field", ErrInvalidMapping, key, f, kind))
		}
		if rule.Path == "" && rule.Const == "" {
			errs = append(errs, fmt.Errorf("%w: %s: %s rule %q has neither path nor constant", ErrInvalidMapping, key, kind, f))
		}
	}
	return errs
}
