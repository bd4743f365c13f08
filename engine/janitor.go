package engine

import (
	"github.com/robfig/cron/v3"

	"github.com/bingo1234588/modelbox/types"
)

// SessionJanitor periodically sweeps a SessionManager's expired weak
// entries on a cron schedule, so the backing table does not grow
// unbounded between explicit DeleteSession calls (spec.md §9).
type SessionJanitor struct {
	mgr    *SessionManager
	logger types.Logger
	cron   *cron.Cron
}

// NewSessionJanitor builds a janitor for mgr. Call Start with a cron
// schedule to begin sweeping.
func NewSessionJanitor(mgr *SessionManager, logger types.Logger) *SessionJanitor {
	return &SessionJanitor{mgr: mgr, logger: logger, cron: cron.New(cron.WithSeconds())}
}

// Start schedules a sweep on the given cron expression (seconds
// field included, e.g. "*/30 * * * * *" for every 30s).
func (j *SessionJanitor) Start(schedule string) error {
	_, err := j.cron.AddFunc(schedule, j.sweep)
	if err != nil {
		return err
	}
	j.cron.Start()
	return nil
}

// Stop halts future sweeps; in-flight ones are allowed to finish.
func (j *SessionJanitor) Stop() {
	if j.cron != nil {
		j.cron.Stop()
	}
}

func (j *SessionJanitor) sweep() {
	defer func() {
		if r := recover(); r != nil && j.logger != nil {
			j.logger.Printf("session janitor sweep panicked: %v", r)
		}
	}()
	removed := j.mgr.Sweep()
	if removed > 0 && j.logger != nil {
		j.logger.Printf("session janitor: swept %d expired session(s)", removed)
	}
}
