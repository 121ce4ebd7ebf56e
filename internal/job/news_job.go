package job

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel/trace"
)

type NewsIngester interface {
	Ingest(ctx context.Context) (int, error)
}

// NewsJob polls the configured news sources on its own cadence, decoupled
// from price collection.
type NewsJob struct {
	tracer   trace.Tracer
	ingester NewsIngester
	interval time.Duration
}

func NewNewsJob(tracer trace.Tracer, ingester NewsIngester, intervalSecs int) *NewsJob {
	if intervalSecs <= 0 {
		intervalSecs = 900
	}
	return &NewsJob{
		tracer:   tracer,
		ingester: ingester,
		interval: time.Duration(intervalSecs) * time.Second,
	}
}

// Start blocks until ctx is cancelled.
func (j *NewsJob) Start(ctx context.Context) {
	log.Printf("news job starting, interval %s", j.interval)

	j.runOnce(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("news job stopped")
			return
		case <-ticker.C:
			j.runOnce(ctx)
		}
	}
}

func (j *NewsJob) runOnce(ctx context.Context) {
	ctx, span := j.tracer.Start(ctx, "news-job.run-once")
	defer span.End()

	if _, err := j.ingester.Ingest(ctx); err != nil {
		log.Printf("news job: %v", err)
	}
}
