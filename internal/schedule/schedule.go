// Package schedule repeats a refresh run on a cron schedule.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job is one scheduled run.
type Job func(ctx context.Context) error

// Scheduler runs a job on a cron schedule. A run that is still going when the
// next tick fires causes that tick to be skipped.
type Scheduler struct {
	spec      string
	schedule  cron.Schedule
	logger    logrus.FieldLogger
	immediate bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// RunImmediately also runs the job once when Run starts.
func RunImmediately() Option {
	return func(s *Scheduler) { s.immediate = true }
}

// New parses spec as a standard five-field cron expression or descriptor.
func New(spec string, logger logrus.FieldLogger, opts ...Option) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	s := &Scheduler{spec: spec, schedule: schedule, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Next returns the first activation after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// Run blocks until ctx is done, then waits for an in-flight run to finish.
// Job errors are logged and the schedule continues.
func (s *Scheduler) Run(ctx context.Context, job Job) error {
	log := cronLogger{s.logger}
	c := cron.New(
		cron.WithLogger(log),
		cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
	)

	run := func() {
		start := time.Now()
		if err := job(ctx); err != nil {
			s.logger.WithError(err).Error("Scheduled run failed")
			return
		}
		s.logger.WithField("duration", time.Since(start).Round(time.Millisecond)).Info("Scheduled run finished")
	}
	id := c.Schedule(s.schedule, cron.FuncJob(run))

	c.Start()
	if s.immediate {
		c.Entry(id).WrappedJob.Run()
	}
	s.logger.WithFields(logrus.Fields{
		"schedule": s.spec,
		"next":     c.Entry(id).Next,
	}).Info("Scheduler started")

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("Scheduler stopped")
	return nil
}

// cronLogger adapts logrus to cron.Logger.
type cronLogger struct {
	logger logrus.FieldLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(toFields(keysAndValues)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(toFields(keysAndValues)).WithError(err).Error("cron: " + msg)
}

func toFields(kv []interface{}) logrus.Fields {
	fields := make(logrus.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
