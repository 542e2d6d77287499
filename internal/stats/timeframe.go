package stats

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Bucket is a calendar window identified by its UTC start
type Bucket struct {
	ID    string
	Start time.Time
}

// DayBucket returns the UTC calendar day containing ts (unix seconds)
func DayBucket(ts uint64) Bucket {
	t := time.Unix(int64(ts), 0).UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return Bucket{ID: start.Format("2006-01-02"), Start: start}
}

// MonthBucket returns the UTC calendar month containing ts (unix seconds)
func MonthBucket(ts uint64) Bucket {
	t := time.Unix(int64(ts), 0).UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Bucket{ID: start.Format("2006-01"), Start: start}
}

// RecordActivity counts one transaction for user in its day and month
// buckets. A user is counted unique once per bucket, detected by the absence
// of its marker row.
func (e *Engine) RecordActivity(ctx context.Context, user string, ts uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recordActivity(ctx, user, ts)
}

func (e *Engine) recordActivity(ctx context.Context, user string, ts uint64) error {
	user = Canonical(user)
	day, month := DayBucket(ts), MonthBucket(ts)

	dayErr := bucket(ctx, e, KindUserDay, compositeID(day.ID, user), KindDailyUserData, day.ID,
		func() *DailyUserData {
			return &DailyUserData{ID: day.ID, Date: uint64(day.Start.Unix())}
		},
		func(d *DailyUserData, first bool) {
			d.TotalTransactions++
			if first {
				d.UniqueUserCount++
			}
		},
	)
	if dayErr != nil {
		dayErr = fmt.Errorf("daily activity: %w", dayErr)
	}

	monthErr := bucket(ctx, e, KindUserMonth, compositeID(month.ID, user), KindMonthlyUserData, month.ID,
		func() *MonthlyUserData {
			return &MonthlyUserData{ID: month.ID, MonthStartDate: uint64(month.Start.Unix())}
		},
		func(m *MonthlyUserData, first bool) {
			m.TotalTransactions++
			if first {
				m.UniqueUserCount++
			}
		},
	)
	if monthErr != nil {
		monthErr = fmt.Errorf("monthly activity: %w", monthErr)
	}

	return errors.Join(dayErr, monthErr)
}

// bucket marks the user in one bucket kind and bumps that bucket's counters
func bucket[T any](ctx context.Context, e *Engine, markerKind Kind, markerID string, kind Kind, id string, init func() *T, delta func(*T, bool)) error {
	first, err := e.mark(ctx, markerKind, markerID)
	if err != nil {
		return err
	}
	_, err = apply(ctx, e.store, kind, id, init, func(v *T) { delta(v, first) })
	return err
}

// mark writes a marker row if absent and reports whether it was absent
func (e *Engine) mark(ctx context.Context, kind Kind, id string) (bool, error) {
	seen, err := exists(ctx, e.store, kind, id)
	if err != nil {
		return false, err
	}
	if seen {
		return false, nil
	}
	if err := Put(ctx, e.store, kind, id, &Marker{ID: id}); err != nil {
		return false, err
	}
	return true, nil
}
