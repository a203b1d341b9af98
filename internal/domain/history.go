package domain

import (
	"fmt"
	"strings"
	"time"
)

type Bucket string

const (
	BucketDaily   Bucket = "daily"
	BucketWeekly  Bucket = "weekly"
	BucketMonthly Bucket = "monthly"
)

func ParseBucket(s string) (Bucket, bool) {
	switch Bucket(strings.ToLower(strings.TrimSpace(s))) {
	case BucketDaily:
		return BucketDaily, true
	case BucketWeekly:
		return BucketWeekly, true
	case BucketMonthly:
		return BucketMonthly, true
	}
	return "", false
}

// LookbackDays is how far back a history query reaches for each bucket size.
func (b Bucket) LookbackDays() int {
	switch b {
	case BucketWeekly:
		return 84
	case BucketMonthly:
		return 365
	default:
		return 30
	}
}

// MonitoringReading is one ingested sensor sample. It is read-only here.
type MonitoringReading struct {
	EntityID     string    `json:"entityId"`
	ConnectionID int64     `json:"haConnectionId"`
	CapturedAt   time.Time `json:"capturedAt"`
	Unit         *string   `json:"unit"`
	NumericValue *float64  `json:"numericValue"`
}

type HistoryPoint struct {
	Key         string    `json:"key,omitempty"`
	BucketStart time.Time `json:"bucketStart"`
	Label       string    `json:"label"`
	Value       float64   `json:"value"`
	Count       int       `json:"count"`
}

type HistoryResult struct {
	Unit   *string        `json:"unit"`
	Points []HistoryPoint `json:"points"`
}

// BucketSlot identifies the calendar window a timestamp falls into.
type BucketSlot struct {
	Key   string
	Label string
	Start time.Time
}

// SlotFor computes the UTC calendar bucket of t. Weeks start on Monday and
// are keyed by ISO year and week.
func SlotFor(b Bucket, t time.Time) BucketSlot {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	switch b {
	case BucketWeekly:
		year, week := t.ISOWeek()
		offset := (int(day.Weekday()) + 6) % 7
		start := day.AddDate(0, 0, -offset)
		return BucketSlot{
			Key:   fmt.Sprintf("%d-W%02d", year, week),
			Label: "Week of " + start.Format(time.DateOnly),
			Start: start,
		}
	case BucketMonthly:
		start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		return BucketSlot{
			Key:   fmt.Sprintf("%d-%02d", start.Year(), int(start.Month())),
			Label: fmt.Sprintf("%s %d", start.Month(), start.Year()),
			Start: start,
		}
	default:
		return BucketSlot{
			Key:   day.Format(time.DateOnly),
			Label: day.Format(time.DateOnly),
			Start: day,
		}
	}
}

// IsEnergyUnit reports whether readings in unit are interval energy that must
// be summed rather than averaged.
func IsEnergyUnit(unit string) bool {
	return strings.Contains(strings.ToLower(unit), "wh")
}
