package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер cron-выражений (5 полей и дескрипторы @daily, @every).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Schedule — расписание повторяющихся runs.
// Задаётся либо cron-выражением, либо интервалом.
type Schedule struct {
	CronExpr string
	Interval time.Duration

	// Timezone для cron-выражения (default: UTC).
	Timezone string
}

// IsCron возвращает true для расписания по cron-выражению.
func (s Schedule) IsCron() bool {
	return s.CronExpr != ""
}

// IsInterval возвращает true для расписания по интервалу.
func (s Schedule) IsInterval() bool {
	return s.Interval > 0
}

// Validate проверяет, что задан ровно один способ и он корректен.
func (s Schedule) Validate() error {
	switch {
	case s.IsCron() && s.IsInterval():
		return ErrAmbiguousSchedule
	case s.IsCron():
		return ValidateCronExpr(s.CronExpr)
	case s.IsInterval():
		return nil
	default:
		return ErrEmptySchedule
	}
}

func (s Schedule) String() string {
	if s.IsCron() {
		return s.CronExpr
	}
	return "every " + s.Interval.String()
}

// CalculateNextDue вычисляет следующее время выполнения после from.
// Для интервалов просто добавляет Interval к from.
// Учитывает timezone расписания.
func CalculateNextDue(sched Schedule, from time.Time) (time.Time, error) {
	loc := time.UTC
	if sched.Timezone != "" {
		l, err := time.LoadLocation(sched.Timezone)
		if err != nil {
			return time.Time{}, fmt.Errorf("load timezone %q: %w", sched.Timezone, err)
		}
		loc = l
	}

	fromInTz := from.In(loc)

	switch {
	case sched.IsCron():
		return calculateNextCron(sched.CronExpr, fromInTz)
	case sched.IsInterval():
		return fromInTz.Add(sched.Interval).UTC(), nil
	default:
		return time.Time{}, ErrEmptySchedule
	}
}

// calculateNextCron вычисляет следующее время по cron-выражению.
func calculateNextCron(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := cronParser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return schedule.Next(from).UTC(), nil
}

// ValidateCronExpr проверяет валидность cron-выражения.
func ValidateCronExpr(cronExpr string) error {
	if _, err := cronParser.Parse(cronExpr); err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidCron, cronExpr, err)
	}
	return nil
}
