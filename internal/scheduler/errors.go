package scheduler

import "errors"

// Ошибки расписания.
var (
	ErrEmptySchedule     = errors.New("schedule has neither cron expression nor interval")
	ErrAmbiguousSchedule = errors.New("schedule has both cron expression and interval")
	ErrInvalidCron       = errors.New("invalid cron expression")
	ErrNoJob             = errors.New("scheduler job is not configured")
)
