package worker

import (
	"github.com/okian/stagegate/internal/domain/dedupe"
	"github.com/okian/stagegate/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithPending sets the pending-key set the worker releases as it picks up
// each event.
func WithPending(d dedupe.Deduper) Option {
	return func(w *InMemoryWorker) {
		w.pending = d
	}
}
