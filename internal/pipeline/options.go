package pipeline

import (
	"time"

	"github.com/dataforge/ingest/internal/events"
)

type OrchestratorOption func(o *Orchestrator)

func WithPipelineName(name string) OrchestratorOption {
	return func(o *Orchestrator) {
		o.pipelineName = name
	}
}

func WithMaxRetries(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		o.maxRetries = n
	}
}

func WithRetryBaseDelay(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.baseDelay = d
	}
}

func WithClock(c Clock) OrchestratorOption {
	return func(o *Orchestrator) {
		o.clock = c
	}
}

func WithEventProducer(ep *events.EventProducer) OrchestratorOption {
	return func(o *Orchestrator) {
		o.producer = ep
	}
}

func WithWarningsAffectStatus(v bool) OrchestratorOption {
	return func(o *Orchestrator) {
		o.warningsAffectStatus = v
	}
}

func WithStagingBatchSize(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		o.stagingBatch = n
	}
}
