package task

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/leadloop/internal/clients"
	"github.com/MarkoPoloResearchLab/leadloop/internal/metrics"
	"github.com/MarkoPoloResearchLab/leadloop/internal/model"
)

const (
	JobIngestion  = "client_ingestion"
	JobReminders  = "authorization_reminders"
	JobEmailQueue = "email_queue"
	JobDocuments  = "document_watch"

	jobResultSuccess = "success"
	jobResultFailure = "failure"
)

// Job is a unit of periodic work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// JobRunner adapts a Job for a Scheduler, logging and counting each run.
func JobRunner(job Job, logger *zap.Logger) RunnerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context) {
		if err := job.Run(ctx); err != nil {
			metrics.ObserveJobRun(job.Name(), jobResultFailure)
			logger.Warn("scheduled_job_failed", zap.String("job", job.Name()), zap.Error(err))
			return
		}
		metrics.ObserveJobRun(job.Name(), jobResultSuccess)
	}
}

// Ingester turns pending lead notifications into clients.
type Ingester interface {
	ScanAndIngest(ctx context.Context) (clients.IngestReport, error)
}

// IngestionJob polls the notification log for new submissions.
type IngestionJob struct {
	ingester Ingester
	logger   *zap.Logger
}

func NewIngestionJob(ingester Ingester, logger *zap.Logger) *IngestionJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestionJob{ingester: ingester, logger: logger}
}

func (job *IngestionJob) Name() string {
	return JobIngestion
}

func (job *IngestionJob) Run(ctx context.Context) error {
	report, err := job.ingester.ScanAndIngest(ctx)
	if err != nil {
		return err
	}
	if report.Scanned > 0 {
		job.logger.Debug("ingestion_pass", zap.Int("scanned", report.Scanned), zap.Int("created", report.Created))
	}
	return nil
}

// Waker returns due deferred authorizations to pending.
type Waker interface {
	WakeDeferred(ctx context.Context, now time.Time) []model.AuthorizationRequest
}

// ReminderJob wakes deferred authorization requests once their reminder is due.
type ReminderJob struct {
	waker  Waker
	clock  func() time.Time
	logger *zap.Logger
}

func NewReminderJob(waker Waker, clock func() time.Time, logger *zap.Logger) *ReminderJob {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderJob{waker: waker, clock: clock, logger: logger}
}

func (job *ReminderJob) Name() string {
	return JobReminders
}

func (job *ReminderJob) Run(ctx context.Context) error {
	woken := job.waker.WakeDeferred(ctx, job.clock())
	if len(woken) > 0 {
		job.logger.Info("authorizations_reminded", zap.Int("count", len(woken)))
	}
	return nil
}

// FuncJob wraps a plain function as a Job.
type FuncJob struct {
	name string
	run  func(context.Context)
}

func NewFuncJob(name string, run func(context.Context)) FuncJob {
	return FuncJob{name: name, run: run}
}

func (job FuncJob) Name() string {
	return job.name
}

func (job FuncJob) Run(ctx context.Context) error {
	if job.run != nil {
		job.run(ctx)
	}
	return nil
}
