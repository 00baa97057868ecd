package escalation

import (
	"context"
	"docflow/session"
	"sync"
	"time"

	cron "github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// DefaultSpec runs a sweep at the top of every hour.
const DefaultSpec = "0 0 * * * *"

type Sweeper interface {
	EscalateOverdueInstances(s *session.Session) (int, error)
}

// Scheduler runs escalation sweeps on a cron schedule. Ticks that arrive
// while a sweep is still running are skipped.
type Scheduler struct {
	sweeper Sweeper
	timeout time.Duration

	lock    sync.Mutex
	running bool
	crontab *cron.Cron
}

func NewScheduler(sweeper Sweeper, timeout time.Duration) *Scheduler {
	return &Scheduler{sweeper: sweeper, timeout: timeout}
}

func (s *Scheduler) Start(spec string) error {
	if spec == "" {
		spec = DefaultSpec
	}
	crontab := cron.New(cron.WithSeconds())
	if _, err := crontab.AddFunc(spec, func() { s.RunOnce() }); err != nil {
		return err
	}

	s.lock.Lock()
	s.crontab = crontab
	s.lock.Unlock()

	crontab.Start()
	logrus.Infof("escalation sweeps scheduled at %q", spec)
	return nil
}

// Stop waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	s.lock.Lock()
	crontab := s.crontab
	s.crontab = nil
	s.lock.Unlock()
	if crontab != nil {
		<-crontab.Stop().Done()
	}
}

// RunOnce sweeps with the system identity. It returns false without sweeping
// when another sweep is in progress.
func (s *Scheduler) RunOnce() (int, bool) {
	s.lock.Lock()
	if s.running {
		s.lock.Unlock()
		logrus.Warn("escalation sweep skipped, previous sweep still running")
		return 0, false
	}
	s.running = true
	s.lock.Unlock()

	defer func() {
		s.lock.Lock()
		s.running = false
		s.lock.Unlock()
	}()

	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	count, err := s.sweeper.EscalateOverdueInstances(session.SystemSession(ctx))
	if err != nil {
		logrus.Errorf("escalation sweep failed: %v", err)
		return count, true
	}
	logrus.Debugf("escalation sweep finished, %d instances escalated", count)
	return count, true
}
