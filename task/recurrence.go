package task

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/klchiu/waops/errors"
)

// Trigger is one concrete firing registration derived from a task's
// recurrence: either a 5-field cron expression (minute hour dom month
// dow) or, for specific calendar dates, a one-shot instant.
type Trigger struct {
	Slot    int       // index into Task.Times
	Expr    string    // cron expression, when recurring
	At      time.Time // firing instant, when one-shot
	OneShot bool
}

// Triggers resolves a task's recurrence declaration into one trigger
// registration per (time-of-day, recurrence) pair. Empty weekly or
// monthly day sets are refused. Specific dates already in the past at
// resolution time are skipped; a specific-date task whose dates are all
// past resolves to zero triggers.
func Triggers(t Task, now time.Time, loc *time.Location) ([]Trigger, error) {
	if len(t.Times) == 0 {
		return nil, errors.Newf("task %s has no times of day", t.ID)
	}

	var triggers []Trigger
	for slot, tod := range t.Times {
		hour, minute, err := parseTimeOfDay(tod)
		if err != nil {
			return nil, errors.Wrapf(err, "task %s time #%d", t.ID, slot+1)
		}

		switch t.Recurrence.Type {
		case Everyday:
			triggers = append(triggers, Trigger{
				Slot: slot,
				Expr: fmt.Sprintf("%d %d * * *", minute, hour),
			})

		case Weekly:
			if len(t.Recurrence.Days) == 0 {
				return nil, errors.Newf("task %s has a weekly recurrence with no weekdays", t.ID)
			}
			triggers = append(triggers, Trigger{
				Slot: slot,
				Expr: fmt.Sprintf("%d %d * * %s", minute, hour, joinDays(t.Recurrence.Days)),
			})

		case Monthly:
			if len(t.Recurrence.Days) == 0 {
				return nil, errors.Newf("task %s has a monthly recurrence with no days", t.ID)
			}
			triggers = append(triggers, Trigger{
				Slot: slot,
				Expr: fmt.Sprintf("%d %d %s * *", minute, hour, joinDays(t.Recurrence.Days)),
			})

		case Specific:
			if len(t.Recurrence.Dates) == 0 {
				return nil, errors.Newf("task %s has a specific recurrence with no dates", t.ID)
			}
			for _, d := range t.Recurrence.Dates {
				day, err := parseDate(d)
				if err != nil {
					return nil, errors.Wrapf(err, "task %s date %q", t.ID, d)
				}
				at := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
				if !at.After(now) {
					continue
				}
				triggers = append(triggers, Trigger{Slot: slot, At: at, OneShot: true})
			}

		default:
			return nil, errors.Newf("task %s has an unknown recurrence type %q", t.ID, string(t.Recurrence.Type))
		}
	}

	return triggers, nil
}

// joinDays renders a sorted, deduplicated day set as a cron list.
func joinDays(days []int) string {
	sorted := append([]int(nil), days...)
	sort.Ints(sorted)

	parts := make([]string, 0, len(sorted))
	for i, d := range sorted {
		if i > 0 && sorted[i-1] == d {
			continue
		}
		parts = append(parts, fmt.Sprintf("%d", d))
	}
	return strings.Join(parts, ",")
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}
