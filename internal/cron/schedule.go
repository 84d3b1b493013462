package cron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(
	cron.SecondOptional |
		cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// ScheduleKind discriminates the Schedule tagged union.
type ScheduleKind string

const (
	ScheduleAt    ScheduleKind = "at"
	ScheduleEvery ScheduleKind = "every"
	ScheduleCron  ScheduleKind = "cron"
)

// Schedule is a tagged union of the three ways a job can be fired. Exactly
// one of AtMS/IntervalMS/Expr is meaningful, selected by Kind.
type Schedule struct {
	Kind ScheduleKind `json:"kind"`

	AtMS int64 `json:"at_ms,omitempty"`

	IntervalMS int64 `json:"interval_ms,omitempty"`

	Expr string `json:"expr,omitempty"`
	Tz   string `json:"tz,omitempty"`
}

// NewAtSchedule builds an "at" schedule firing once at atMS.
func NewAtSchedule(atMS int64) (Schedule, error) {
	if atMS <= 0 {
		return Schedule{}, fmt.Errorf("cron: at schedule requires a positive timestamp")
	}
	return Schedule{Kind: ScheduleAt, AtMS: atMS}, nil
}

// NewEverySchedule builds an "every" schedule firing every intervalMS.
func NewEverySchedule(intervalMS int64) (Schedule, error) {
	if intervalMS <= 0 {
		return Schedule{}, fmt.Errorf("cron: every schedule requires interval_ms > 0")
	}
	return Schedule{Kind: ScheduleEvery, IntervalMS: intervalMS}, nil
}

// NewCronSchedule builds a "cron" schedule from a standard cron expression,
// optionally evaluated in tz (UTC if empty). The expression is validated
// eagerly so a malformed job is rejected at add-time, not at first fire.
func NewCronSchedule(expr, tz string) (Schedule, error) {
	if expr == "" {
		return Schedule{}, fmt.Errorf("cron: cron schedule requires an expression")
	}
	if _, err := cronParser.Parse(expr); err != nil {
		return Schedule{}, fmt.Errorf("cron: invalid cron expression: %w", err)
	}
	if tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return Schedule{}, fmt.Errorf("cron: invalid timezone %q: %w", tz, err)
		}
	}
	return Schedule{Kind: ScheduleCron, Expr: expr, Tz: tz}, nil
}

// Next returns the next fire time strictly after now, and whether one exists.
// An "at" schedule whose timestamp has already passed returns ok=false — it
// fires at most once.
func (s Schedule) Next(now time.Time) (time.Time, bool, error) {
	switch s.Kind {
	case ScheduleAt:
		if s.AtMS <= 0 {
			return time.Time{}, false, fmt.Errorf("cron: at schedule missing timestamp")
		}
		at := time.UnixMilli(s.AtMS)
		if !now.Before(at) {
			return time.Time{}, false, nil
		}
		return at, true, nil
	case ScheduleEvery:
		if s.IntervalMS <= 0 {
			return time.Time{}, false, fmt.Errorf("cron: every schedule missing interval")
		}
		return now.Add(time.Duration(s.IntervalMS) * time.Millisecond), true, nil
	case ScheduleCron:
		if s.Expr == "" {
			return time.Time{}, false, fmt.Errorf("cron: cron schedule missing expression")
		}
		loc := time.UTC
		if s.Tz != "" {
			if tz, err := time.LoadLocation(s.Tz); err == nil {
				loc = tz
			}
		}
		schedule, err := cronParser.Parse(s.Expr)
		if err != nil {
			return time.Time{}, false, fmt.Errorf("cron: parse expression: %w", err)
		}
		next := schedule.Next(now.In(loc))
		return next, !next.IsZero(), nil
	default:
		return time.Time{}, false, fmt.Errorf("cron: unknown schedule kind %q", s.Kind)
	}
}
