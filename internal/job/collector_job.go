package job

import (
	"context"
	"errors"
	"log"
	"time"

	"coinpulse/internal/collector"
	"coinpulse/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type CycleRunner interface {
	RunCycle(ctx context.Context, requestedAssets []string) (*domain.CollectionCycle, error)
}

type CycleSink interface {
	SaveCycle(ctx context.Context, cycle *domain.CollectionCycle) error
}

type CycleNotifier interface {
	NotifyCycle(cycle *domain.CollectionCycle)
}

// CollectorJob runs collection cycles on a fixed interval. An overlapping
// cycle is skipped, never queued, so a slow run can't build a backlog.
type CollectorJob struct {
	tracer   trace.Tracer
	runner   CycleRunner
	sink     CycleSink
	notify   CycleNotifier
	assets   []string
	interval time.Duration
}

func NewCollectorJob(tracer trace.Tracer, runner CycleRunner, sink CycleSink, notify CycleNotifier, assets []string, intervalSecs int) *CollectorJob {
	if intervalSecs <= 0 {
		intervalSecs = 300
	}
	return &CollectorJob{
		tracer:   tracer,
		runner:   runner,
		sink:     sink,
		notify:   notify,
		assets:   assets,
		interval: time.Duration(intervalSecs) * time.Second,
	}
}

// Start blocks until ctx is cancelled, running one cycle immediately and then
// one per interval.
func (j *CollectorJob) Start(ctx context.Context) {
	log.Printf("collector job starting, interval %s", j.interval)

	j.runOnce(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("collector job stopped")
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *CollectorJob) runOnce(ctx context.Context) {
	ctx, span := j.tracer.Start(ctx, "collector-job.run-once")
	defer span.End()

	cycle, err := j.runner.RunCycle(ctx, j.assets)
	if err != nil {
		if errors.Is(err, collector.ErrCycleInProgress) {
			log.Println("collector job: previous cycle still running, skipping tick")
			return
		}
		log.Printf("collector job: %v", err)
		return
	}

	if j.sink != nil {
		if err := j.sink.SaveCycle(ctx, cycle); err != nil {
			log.Printf("collector job: save cycle %s: %v", cycle.CycleID, err)
		}
	}
	if j.notify != nil {
		j.notify.NotifyCycle(cycle)
	}
}
