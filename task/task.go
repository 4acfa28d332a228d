// Package task defines scheduled tasks: the entity, its validation
// rules, the recurrence-to-trigger resolver, and the in-memory
// collection that is the source of truth between snapshots.
package task

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/klchiu/waops/wa"
)

// Kind is the closed set of task action kinds.
type Kind string

const (
	KindSendMessage    Kind = "sendMessage"
	KindDeleteMessage  Kind = "deleteMessage"
	KindForwardMessage Kind = "forwardMessage"
	KindRunCommand     Kind = "runCommand"
)

// Mode is the execution mode of a task.
type Mode string

const (
	ModeOnce   Mode = "once"
	ModeRepeat Mode = "repeat"
)

// RecurrenceType discriminates the recurrence variants.
type RecurrenceType string

const (
	Everyday RecurrenceType = "everyday"
	Weekly   RecurrenceType = "weekly"
	Monthly  RecurrenceType = "monthly"
	Specific RecurrenceType = "specific"
)

// Recurrence is the tagged recurrence declaration of a task.
// Days carries weekdays (0-6, Sunday=0) for weekly and days-of-month
// (1-31) for monthly. Dates carries YYYY-MM-DD calendar dates for
// specific.
type Recurrence struct {
	Type  RecurrenceType `json:"type"`
	Days  []int          `json:"days,omitempty"`
	Dates []string       `json:"dates,omitempty"`
}

// Target identifies the chat a task sends to.
type Target struct {
	Type wa.ChatType `json:"type"`
	ID   string      `json:"id"`
	Name string      `json:"displayName,omitempty"`
}

// Task is an operator-defined scheduled action.
type Task struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Kind          Kind       `json:"taskType"`
	Mode          Mode       `json:"executionType"`
	RepeatCount   int        `json:"repeatCount,omitempty"`
	Times         []string   `json:"times"`
	Recurrence    Recurrence `json:"executionDays"`
	Target        Target     `json:"target"`
	Message       string     `json:"message"`
	Command       string     `json:"command,omitempty"`
	OutputFilters []string   `json:"outputFilters,omitempty"`
	Enabled       bool       `json:"enabled"`
}

// Clone returns a deep copy so callers cannot alias the collection's
// internal slices.
func (t Task) Clone() Task {
	c := t
	c.Times = append([]string(nil), t.Times...)
	c.OutputFilters = append([]string(nil), t.OutputFilters...)
	c.Recurrence.Days = append([]int(nil), t.Recurrence.Days...)
	c.Recurrence.Dates = append([]string(nil), t.Recurrence.Dates...)
	return c
}

// TargetJID returns the task's target in protocol address format.
func (t Task) TargetJID() string {
	return wa.JID(t.Target.ID, t.Target.Type)
}

var timeOfDayRe = regexp.MustCompile(`^([01]?\d|2[0-3]):[0-5]\d$`)

// Validate returns a list of human-readable reasons the task cannot be
// saved, empty when the task is valid. Regex output filters are
// compiled here so a bad pattern surfaces at save time instead of at
// first command execution.
func (t Task) Validate() []string {
	var reasons []string

	if strings.TrimSpace(t.Title) == "" {
		reasons = append(reasons, "title is required")
	}

	switch t.Kind {
	case KindSendMessage, KindDeleteMessage, KindForwardMessage, KindRunCommand:
	default:
		reasons = append(reasons, fmt.Sprintf("unknown task type %q", string(t.Kind)))
	}

	if t.Kind == KindRunCommand && strings.TrimSpace(t.Command) == "" {
		reasons = append(reasons, "command is required for command tasks")
	}

	switch t.Target.Type {
	case wa.ChatUser, wa.ChatGroup:
	default:
		reasons = append(reasons, fmt.Sprintf("unknown target type %q", string(t.Target.Type)))
	}
	if strings.TrimSpace(t.Target.ID) == "" {
		reasons = append(reasons, "target id is required")
	}

	switch t.Mode {
	case ModeOnce:
		if len(t.Times) != 1 {
			reasons = append(reasons, "a one-time task needs exactly one time of day")
		}
	case ModeRepeat:
		if t.RepeatCount < 1 {
			reasons = append(reasons, "repeat count must be at least 1")
		} else if len(t.Times) != t.RepeatCount {
			reasons = append(reasons, fmt.Sprintf("expected %d times of day, got %d", t.RepeatCount, len(t.Times)))
		}
	default:
		reasons = append(reasons, fmt.Sprintf("unknown execution type %q", string(t.Mode)))
	}

	for i, tod := range t.Times {
		if !timeOfDayRe.MatchString(tod) {
			reasons = append(reasons, fmt.Sprintf("time #%d is not a valid HH:MM value: %q", i+1, tod))
		}
	}

	reasons = append(reasons, t.Recurrence.validate()...)
	reasons = append(reasons, validateFilters(t.OutputFilters)...)

	return reasons
}

func (r Recurrence) validate() []string {
	var reasons []string

	switch r.Type {
	case Everyday:
	case Weekly:
		if len(r.Days) == 0 {
			reasons = append(reasons, "weekly recurrence needs at least one weekday")
		}
		for _, d := range r.Days {
			if d < 0 || d > 6 {
				reasons = append(reasons, fmt.Sprintf("weekday %d is out of range 0-6", d))
			}
		}
	case Monthly:
		if len(r.Days) == 0 {
			reasons = append(reasons, "monthly recurrence needs at least one day of month")
		}
		for _, d := range r.Days {
			if d < 1 || d > 31 {
				reasons = append(reasons, fmt.Sprintf("day of month %d is out of range 1-31", d))
			}
		}
	case Specific:
		if len(r.Dates) == 0 {
			reasons = append(reasons, "specific recurrence needs at least one date")
		}
		for _, d := range r.Dates {
			if _, err := parseDate(d); err != nil {
				reasons = append(reasons, fmt.Sprintf("date %q is not a valid YYYY-MM-DD value", d))
			}
		}
	default:
		reasons = append(reasons, fmt.Sprintf("unknown recurrence type %q", string(r.Type)))
	}

	return reasons
}

// validateFilters eagerly compiles /…/ regex filters.
func validateFilters(filters []string) []string {
	var reasons []string
	for _, f := range filters {
		expr, ok := regexFilter(f)
		if !ok {
			continue
		}
		if _, err := regexp.Compile(expr); err != nil {
			reasons = append(reasons, fmt.Sprintf("output filter %q is not a valid regular expression", f))
		}
	}
	return reasons
}

// regexFilter reports whether a filter uses the /…/ regex sigil and
// returns the inner expression.
func regexFilter(filter string) (string, bool) {
	if len(filter) >= 2 && strings.HasPrefix(filter, "/") && strings.HasSuffix(filter, "/") {
		return filter[1 : len(filter)-1], true
	}
	return "", false
}

// parseTimeOfDay splits an HH:MM value.
func parseTimeOfDay(tod string) (hour, minute int, err error) {
	parts := strings.SplitN(tod, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time of day %q", tod)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", tod)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", tod)
	}
	return hour, minute, nil
}
