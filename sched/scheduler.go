// Package sched turns task recurrence declarations into live cron
// registrations and one-shot timers, and drives task execution when
// they fire.
package sched

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/klchiu/waops/task"
	"github.com/klchiu/waops/wa"
)

// fireTimeout bounds a single task execution, command run and send
// included.
const fireTimeout = 60 * time.Second

// Dispatcher executes one occurrence of a task.
type Dispatcher interface {
	Fire(ctx context.Context, t task.Task) error
}

// Persister writes the task snapshot after scheduler-driven state
// changes, such as a once-task disabling itself.
type Persister interface {
	SaveTasks(tasks []task.Task) error
}

// registration holds the live trigger handles for one task. pending
// counts one-shot timers that have not gone off yet; when it reaches
// zero with no cron entries the registration is spent.
type registration struct {
	entries []cron.EntryID
	timers  []*time.Timer
	pending int
}

// Scheduler owns the cron runner and the per-task trigger registry.
// Replacing a task's triggers is atomic: the old registration is torn
// down and the new one installed under the same lock.
type Scheduler struct {
	cron    *cron.Cron
	tasks   *task.Collection
	session wa.Session
	disp    Dispatcher
	persist Persister
	loc     *time.Location
	log     *zap.SugaredLogger
	now     func() time.Time

	mu       sync.Mutex
	registry map[string]*registration
}

// New creates a scheduler. Call Start before scheduling and Stop on
// shutdown.
func New(tasks *task.Collection, session wa.Session, disp Dispatcher, persist Persister, loc *time.Location, log *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		tasks:    tasks,
		session:  session,
		disp:     disp,
		persist:  persist,
		loc:      loc,
		log:      log,
		now:      time.Now,
		registry: make(map[string]*registration),
	}
}

// Start begins cron processing.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop tears down all triggers and halts the cron runner.
func (s *Scheduler) Stop() {
	s.StopAll()
	s.cron.Stop()
}

// Schedule installs triggers for a task, replacing any existing ones.
// Disabled tasks are only torn down. Resolution failures are logged and
// leave the task without triggers; they never break other tasks.
func (s *Scheduler) Schedule(t task.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(t.ID)

	if !t.Enabled {
		return
	}

	triggers, err := task.Triggers(t, s.now(), s.loc)
	if err != nil {
		s.log.Warnw("Failed to resolve task triggers", "task", t.ID, "error", err)
		return
	}
	if len(triggers) == 0 {
		s.log.Infow("Task has no future triggers", "task", t.ID)
		return
	}

	reg := &registration{}
	taskID := t.ID
	for _, trig := range triggers {
		if trig.OneShot {
			delay := trig.At.Sub(s.now())
			reg.pending++
			reg.timers = append(reg.timers, time.AfterFunc(delay, func() {
				s.fire(taskID)
				s.timerExpired(taskID, reg)
			}))
			continue
		}
		entryID, err := s.cron.AddFunc(trig.Expr, func() {
			s.fire(taskID)
		})
		if err != nil {
			s.log.Warnw("Failed to register cron trigger", "task", taskID, "expr", trig.Expr, "error", err)
			continue
		}
		reg.entries = append(reg.entries, entryID)
	}

	s.registry[t.ID] = reg
	s.log.Infow("Task scheduled", "task", t.ID, "title", t.Title, "triggers", len(triggers))
}

// Unschedule removes all triggers for a task. Unknown IDs are a no-op.
func (s *Scheduler) Unschedule(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(id)
}

// Reconcile drops every registration and schedules the given tasks
// fresh. Used at startup and after the session reconnects.
func (s *Scheduler) Reconcile(tasks []task.Task) {
	s.StopAll()
	for _, t := range tasks {
		s.Schedule(t)
	}
}

// StopAll removes every trigger registration, leaving the cron runner
// itself alive.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.registry {
		s.removeLocked(id)
	}
}

// Scheduled reports whether a task currently has live triggers.
func (s *Scheduler) Scheduled(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.registry[id]
	return ok
}

// timerExpired marks one of a task's one-shot timers as consumed and
// drops the registration once nothing live remains, so a task whose
// specific dates have all passed no longer reports as scheduled. The
// caller passes its own registration; a reschedule may have replaced
// it, in which case the expiry belongs to a dead registration and is
// ignored.
func (s *Scheduler) timerExpired(id string, reg *registration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.registry[id] != reg {
		return
	}
	reg.pending--
	if reg.pending <= 0 && len(reg.entries) == 0 {
		s.removeLocked(id)
	}
}

func (s *Scheduler) removeLocked(id string) {
	reg, ok := s.registry[id]
	if !ok {
		return
	}
	for _, entryID := range reg.entries {
		s.cron.Remove(entryID)
	}
	for _, timer := range reg.timers {
		timer.Stop()
	}
	delete(s.registry, id)
}

// fire runs when a trigger goes off. It re-reads the task so edits made
// after scheduling are honored, skips when the session is down, and
// disables once-tasks after their first successful run.
func (s *Scheduler) fire(id string) {
	t, ok := s.tasks.Get(id)
	if !ok {
		s.log.Infow("Trigger fired for a deleted task, removing", "task", id)
		s.Unschedule(id)
		return
	}
	if !t.Enabled {
		return
	}
	if !s.session.IsConnected() {
		s.log.Warnw("Skipping task fire, session disconnected", "task", id, "title", t.Title)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), fireTimeout)
	defer cancel()

	if err := s.disp.Fire(ctx, t); err != nil {
		s.log.Errorw("Task execution failed", "task", id, "title", t.Title, "error", err)
		return
	}

	if t.Mode == task.ModeOnce {
		if _, err := s.tasks.SetEnabled(id, false); err == nil {
			if err := s.persist.SaveTasks(s.tasks.Snapshot()); err != nil {
				s.log.Errorw("Failed to persist task snapshot", "task", id, "error", err)
			}
		}
		s.Unschedule(id)
	}
}
