package repository

import (
	"time"

	"gamestats-pipeline/internal/db"
)

const dayLayout = "2006-01-02"

// sinceDay renders the first day of a trailing window of days ending at now.
func sinceDay(now time.Time, days int) string {
	if days < 1 {
		days = 1
	}
	return now.UTC().AddDate(0, 0, -(days - 1)).Format(dayLayout)
}

// pick returns the transaction-scoped queries when the caller has one.
func pick(base, tx *db.Queries) *db.Queries {
	if tx != nil {
		return tx
	}
	return base
}
