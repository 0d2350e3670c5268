package schedule

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type Scheduler interface {
	AddJob(job Job, spec string) error
	Start(ctx context.Context)
	Stop()
}

type CronScheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	runs    map[string]func()
	ctx     context.Context
}

type Option func(*CronScheduler)

// WithRunTimeout bounds every single run of a job.
func WithRunTimeout(d time.Duration) Option {
	return func(c *CronScheduler) {
		c.timeout = d
	}
}

func NewCronScheduler(opts ...Option) *CronScheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := &CronScheduler{
		cron: cron.New(cron.WithParser(parser)),
		runs: make(map[string]func()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddJob schedules job on spec. A blank spec leaves the job disabled.
func (c *CronScheduler) AddJob(job Job, spec string) error {
	name := job.Name()
	spec = strings.TrimSpace(spec)
	logger := logutil.GetLogger(context.Background()).With(zap.String("job", name), zap.String("spec", spec))
	if spec == "" {
		logger.Info("job disabled")
		return nil
	}
	if _, ok := c.runs[name]; ok {
		return fmt.Errorf("job %s already scheduled", name)
	}
	run := c.wrap(job, spec)
	if _, err := c.cron.AddFunc(spec, run); err != nil {
		logger.Error("schedule job failed", zap.Error(err))
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	c.runs[name] = run
	logger.Info("job scheduled")
	return nil
}

// Trigger runs a scheduled job immediately on the caller goroutine.
func (c *CronScheduler) Trigger(name string) bool {
	run, ok := c.runs[name]
	if !ok {
		return false
	}
	run()
	return true
}

func (c *CronScheduler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.ctx = ctx
	c.cron.Start()
}

func (c *CronScheduler) Stop() {
	ctx := c.cron.Stop()
	<-ctx.Done()
}

func (c *CronScheduler) wrap(job Job, spec string) func() {
	var running atomic.Bool
	return func() {
		if !running.CompareAndSwap(false, true) {
			logutil.GetLogger(context.Background()).With(
				zap.String("job", job.Name()),
				zap.String("spec", spec),
			).Info("job skipped: still running")
			return
		}
		defer running.Store(false)

		ctx := c.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		if c.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}
		logger := logutil.GetLogger(ctx).With(
			zap.String("job", job.Name()),
			zap.String("spec", spec),
		)
		start := time.Now()
		err := runSafe(ctx, job)
		elapsed := time.Since(start)
		if err != nil {
			logger.Error("job finished", zap.Error(err), zap.Duration("duration", elapsed))
			return
		}
		logger.Info("job finished", zap.Duration("duration", elapsed))
	}
}

func runSafe(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panic: %v", r)
		}
	}()
	return job.Run(ctx)
}
