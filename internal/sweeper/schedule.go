package sweeper

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер cron-выражений (пятипольный формат).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NextTick вычисляет время следующего прохода.
//
// Если cronExpr непустой — по cron-выражению (SWEEP_CRON), иначе —
// фиксированный интервал. Cron удобен, когда развёртывание хочет
// сметать строго по границам часа независимо от момента старта.
func NextTick(cronExpr string, interval time.Duration, from time.Time) (time.Time, error) {
	if cronExpr != "" {
		schedule, err := cronParser.Parse(cronExpr)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse sweep cron %q: %w", cronExpr, err)
		}
		return schedule.Next(from), nil
	}

	if interval <= 0 {
		return time.Time{}, fmt.Errorf("sweep interval must be positive, got %s", interval)
	}
	return from.Add(interval), nil
}
