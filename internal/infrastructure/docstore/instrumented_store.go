package docstore

import (
	"context"
	"time"

	"archie-builder-credential-broker/internal/infrastructure/metrics"
	"archie-builder-credential-broker/internal/ports"
)

// InstrumentedStore records latency and outcome of every call to the wrapped store
type InstrumentedStore struct {
	next    ports.DocumentStore
	metrics *metrics.Metrics
}

// NewInstrumentedStore wraps next with Prometheus instrumentation
func NewInstrumentedStore(next ports.DocumentStore, m *metrics.Metrics) *InstrumentedStore {
	return &InstrumentedStore{next: next, metrics: m}
}

var _ ports.DocumentStore = (*InstrumentedStore)(nil)

func (s *InstrumentedStore) Query(ctx context.Context, database, collection string, filters []ports.Filter) ([]ports.Document, error) {
	start := time.Now()
	docs, err := s.next.Query(ctx, database, collection, filters)
	s.metrics.ObserveDocstore("query", outcome(err), time.Since(start))
	return docs, err
}

func (s *InstrumentedStore) WriteByKey(ctx context.Context, database, collection string, doc ports.WriteDocument, opts ports.WriteOptions) (ports.WriteResult, error) {
	start := time.Now()
	op := "write"
	if opts.Delete {
		op = "delete"
	}
	res, err := s.next.WriteByKey(ctx, database, collection, doc, opts)
	s.metrics.ObserveDocstore(op, outcome(err), time.Since(start))
	return res, err
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
