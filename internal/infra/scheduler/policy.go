package scheduler

import (
	"fmt"
	"time"

	"drip_campaign_bot/internal/infra/config"

	"github.com/robfig/cron/v3"
)

// Policy computes when the next step fires, given the current moment.
type Policy interface {
	Next(now time.Time) time.Time
	String() string
}

// DailyPolicy fires at a fixed wall-clock time in a time zone: the next
// occurrence strictly after now, which is tomorrow once today's has passed.
type DailyPolicy struct {
	spec     string
	schedule cron.Schedule
}

func NewDailyPolicy(timezone string, hour, minute int) (*DailyPolicy, error) {
	spec := fmt.Sprintf("CRON_TZ=%s %d %d * * *", timezone, minute, hour)
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid daily delivery time %02d:%02d %s: %w", hour, minute, timezone, err)
	}
	return &DailyPolicy{spec: spec, schedule: sched}, nil
}

func (p *DailyPolicy) Next(now time.Time) time.Time {
	return p.schedule.Next(now)
}

func (p *DailyPolicy) String() string {
	return "daily(" + p.spec + ")"
}

// IntervalPolicy fires a fixed offset after now. Used to run a whole
// campaign in minutes while testing.
type IntervalPolicy struct {
	Interval time.Duration
}

func (p IntervalPolicy) Next(now time.Time) time.Time {
	return now.Add(p.Interval)
}

func (p IntervalPolicy) String() string {
	return "interval(" + p.Interval.String() + ")"
}

// NewPolicy picks the accelerated interval policy when TEST_INTERVAL is set
// and the daily policy otherwise.
func NewPolicy(cfg *config.AppConfig) (Policy, error) {
	if cfg.TestInterval > 0 {
		return IntervalPolicy{Interval: cfg.TestInterval}, nil
	}
	return NewDailyPolicy(cfg.TargetTimezone, cfg.TargetHour, cfg.TargetMinute)
}
