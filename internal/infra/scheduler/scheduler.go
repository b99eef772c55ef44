package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const digestTimeout = time.Minute

// Digester produces and sends the periodic admin report.
type Digester interface {
	SendDigest(ctx context.Context) error
}

// DigestScheduler runs the admin digest on a cron spec in the campaign timezone.
type DigestScheduler struct {
	cronEngine *cron.Cron
	digester   Digester
	logger     *logrus.Entry
	cronSpec   string
}

func NewDigestScheduler(digester Digester, logger *logrus.Entry, cronSpec string, loc *time.Location) *DigestScheduler {
	if loc == nil {
		loc = time.Local
	}
	return &DigestScheduler{
		cronEngine: cron.New(cron.WithLocation(loc)),
		digester:   digester,
		logger:     logger,
		cronSpec:   cronSpec,
	}
}

// Start registers the digest job and starts the cron engine. An empty spec
// disables the digest.
func (s *DigestScheduler) Start() error {
	if s.cronSpec == "" {
		s.logger.Info("Admin digest disabled")
		return nil
	}
	if _, err := s.cronEngine.AddFunc(s.cronSpec, s.runDigest); err != nil {
		return fmt.Errorf("could not add admin digest cron job %q: %w", s.cronSpec, err)
	}
	s.cronEngine.Start()
	s.logger.WithField("cron_spec", s.cronSpec).Info("Admin digest scheduler started")
	return nil
}

func (s *DigestScheduler) runDigest() {
	s.logger.Info("Cron job triggered for admin digest")
	ctx, cancel := context.WithTimeout(context.Background(), digestTimeout)
	defer cancel()
	if err := s.digester.SendDigest(ctx); err != nil {
		s.logger.WithError(err).Error("Error during admin digest")
	}
}

func (s *DigestScheduler) Stop() {
	s.logger.Info("Stopping admin digest scheduler...")
	ctx := s.cronEngine.Stop() // waits for a running job
	<-ctx.Done()
	s.logger.Info("Admin digest scheduler gracefully stopped")
}
