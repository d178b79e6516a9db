package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// IntervalSpec renders a fixed interval as a cron descriptor.
func IntervalSpec(every time.Duration) string {
	return "@every " + every.String()
}

// ParseSpec normalizes a schedule string. Accepted forms:
//   - cron expressions and descriptors: "*/5 * * * *", "@hourly", "@every 90s"
//   - Go durations: "90s", "2m"
//
// Intervals must be at least one second.
func ParseSpec(raw string) (string, cron.Schedule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", nil, fmt.Errorf("schedule required")
	}
	if !strings.ContainsAny(s, " \t") && !strings.HasPrefix(s, "@") {
		d, err := time.ParseDuration(s)
		if err != nil {
			return "", nil, fmt.Errorf("invalid schedule %q (use a cron expression or a duration like '60s')", raw)
		}
		s = IntervalSpec(d)
	}
	if rest, ok := strings.CutPrefix(s, "@every "); ok {
		d, err := time.ParseDuration(strings.TrimSpace(rest))
		if err != nil {
			return "", nil, fmt.Errorf("invalid interval in %q: %w", raw, err)
		}
		if d < time.Second {
			return "", nil, fmt.Errorf("interval %v is below 1s", d)
		}
	}
	sched, err := parser.Parse(s)
	if err != nil {
		return "", nil, fmt.Errorf("invalid schedule %q: %w", raw, err)
	}
	return s, sched, nil
}
