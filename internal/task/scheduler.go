package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

type RunnerFunc func(context.Context)

type SchedulerOption func(*Scheduler)

// WithSchedulerLogger attaches a logger used for recovered panics.
func WithSchedulerLogger(logger *zap.Logger) SchedulerOption {
	return func(scheduler *Scheduler) {
		if logger != nil {
			scheduler.logger = logger
		}
	}
}

// WithImmediateRun runs the job once as soon as the scheduler starts.
func WithImmediateRun() SchedulerOption {
	return func(scheduler *Scheduler) {
		scheduler.immediate = true
	}
}

type Scheduler struct {
	interval     time.Duration
	runner       RunnerFunc
	trigger      chan struct{}
	logger       *zap.Logger
	immediate    bool
	controlMutex sync.Mutex
	cancel       context.CancelFunc
	done         chan struct{}
}

func NewScheduler(interval time.Duration, runner RunnerFunc, options ...SchedulerOption) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	scheduler := &Scheduler{
		interval: interval,
		runner:   runner,
		trigger:  make(chan struct{}, 1),
		logger:   zap.NewNop(),
	}
	for _, option := range options {
		option(scheduler)
	}
	return scheduler
}

func (scheduler *Scheduler) Start(ctx context.Context) {
	if scheduler == nil || scheduler.runner == nil {
		return
	}
	scheduler.controlMutex.Lock()
	if scheduler.cancel != nil {
		scheduler.controlMutex.Unlock()
		return
	}
	runtimeCtx, cancel := context.WithCancel(ctx)
	scheduler.cancel = cancel
	done := make(chan struct{})
	scheduler.done = done
	scheduler.controlMutex.Unlock()

	if scheduler.immediate {
		scheduler.Trigger()
	}
	go scheduler.loop(runtimeCtx, done)
}

func (scheduler *Scheduler) Trigger() {
	if scheduler == nil {
		return
	}
	select {
	case scheduler.trigger <- struct{}{}:
	default:
	}
}

func (scheduler *Scheduler) Stop() {
	if scheduler == nil {
		return
	}
	scheduler.controlMutex.Lock()
	cancel := scheduler.cancel
	done := scheduler.done
	scheduler.cancel = nil
	scheduler.done = nil
	scheduler.controlMutex.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (scheduler *Scheduler) loop(ctx context.Context, done chan struct{}) {
	timer := time.NewTimer(scheduler.interval)
	defer func() {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}()
	defer func() {
		if done != nil {
			close(done)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case <-scheduler.trigger:
			scheduler.run(ctx)
		case <-timer.C:
			scheduler.run(ctx)
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(scheduler.interval)
	}
}

func (scheduler *Scheduler) run(ctx context.Context) {
	if scheduler.runner == nil {
		return
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			logger := scheduler.logger
			if logger == nil {
				logger = zap.NewNop()
			}
			logger.Error("scheduled_run_panic", zap.String("panic", fmt.Sprint(recovered)))
		}
	}()
	scheduler.runner(ctx)
}
