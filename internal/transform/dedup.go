package transform

import "gamestats-pipeline/internal/domain"

// dedupe keeps the first occurrence of every key, preserving order, and
// returns how many items were removed.
func dedupe[T any](items []T, key func(T) string) ([]T, int) {
	seen := make(map[string]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		k := key(item)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, item)
	}
	return out, len(items) - len(out)
}

func DeduplicateMatches(matches []domain.Match) ([]domain.Match, int) {
	return dedupe(matches, func(m domain.Match) string { return m.MatchID })
}

func DeduplicateStats(stats []domain.PlayerStat) ([]domain.PlayerStat, int) {
	return dedupe(stats, func(s domain.PlayerStat) string { return s.StatID })
}

func DeduplicateEvents(events []domain.GameEvent) ([]domain.GameEvent, int) {
	return dedupe(events, func(e domain.GameEvent) string { return e.EventID })
}
