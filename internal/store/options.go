package store

import (
	"time"

	"go.uber.org/zap"

	"workflow-portal-go/internal/metrics"
)

// SchemaValidator checks record fields against a feature's form schema.
type SchemaValidator interface {
	ValidateRecord(departmentID, featureID string, fields map[string]any) error
}

type Option func(*options)

type options struct {
	now       func() time.Time
	log       *zap.Logger
	metrics   *metrics.Metrics
	validator SchemaValidator
}

func buildOptions(opts []Option) options {
	o := options{
		now: func() time.Time { return time.Now().UTC() },
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithClock replaces the wall clock used for timestamps and metric windows.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithValidator makes RecordStore.AddRecord reject records whose fields do
// not match the feature's form schema.
func WithValidator(v SchemaValidator) Option {
	return func(o *options) { o.validator = v }
}
