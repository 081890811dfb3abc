package sync

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/vellankikoti/tool-versions/internal/config"
	"github.com/vellankikoti/tool-versions/internal/document"
	"github.com/vellankikoti/tool-versions/internal/logging"
	"github.com/vellankikoti/tool-versions/internal/otel"
	"github.com/vellankikoti/tool-versions/internal/sources"
	"github.com/vellankikoti/tool-versions/internal/status"
)

// Pipeline is one complete run: load the previous document, fetch, persist
// the new document and record per-tool status
type Pipeline struct {
	registry    sources.AdapterRegistry
	persister   document.Persister
	statusStore status.StatusPersistence
	orchOpts    []Option
	tracer      trace.Tracer
	now         func() time.Time
}

// PipelineOption configures a Pipeline
type PipelineOption func(*Pipeline)

// WithStatusStore records per-tool status after each run
func WithStatusStore(store status.StatusPersistence) PipelineOption {
	return func(p *Pipeline) {
		p.statusStore = store
	}
}

// WithOrchestratorOptions passes options to the orchestrator of each run
func WithOrchestratorOptions(opts ...Option) PipelineOption {
	return func(p *Pipeline) {
		p.orchOpts = append(p.orchOpts, opts...)
	}
}

// WithPipelineTracer sets the tracer for the persist span and the orchestrator
func WithPipelineTracer(tracer trace.Tracer) PipelineOption {
	return func(p *Pipeline) {
		p.tracer = tracer
	}
}

// WithClock overrides the time source used for status timestamps
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		p.now = now
	}
}

// NewPipeline creates a pipeline fetching through registry and writing through persister
func NewPipeline(registry sources.AdapterRegistry, persister document.Persister, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		registry:  registry,
		persister: persister,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Execute runs the pipeline once. The returned error is non-nil only when the
// document could not be written; it then wraps document.ErrPersistence. The
// result is returned in every case.
func (p *Pipeline) Execute(ctx context.Context, tools []config.ToolSource) (*Result, error) {
	logger := logging.FromContext(ctx)

	previous, err := p.persister.Load(ctx)
	if err != nil {
		logger.Error(err, "Ignoring unreadable previous document")
		previous = document.VersionDocument{}
	}

	opts := make([]Option, 0, len(p.orchOpts)+2)
	opts = append(opts, WithTracer(p.tracer))
	opts = append(opts, p.orchOpts...)
	opts = append(opts, WithPreviousDocument(previous))

	result := NewOrchestrator(p.registry, opts...).Run(ctx, tools)

	if err := p.persist(ctx, result.Document); err != nil {
		return result, err
	}

	p.recordStatus(ctx, result)
	return result, nil
}

func (p *Pipeline) persist(ctx context.Context, doc document.VersionDocument) error {
	ctx, span := otel.StartSpan(ctx, p.tracer, otel.SpanPersist,
		trace.WithAttributes(otel.AttrEntryCount.Int(len(doc))))
	defer span.End()

	if fp, ok := p.persister.(*document.FilePersister); ok {
		span.SetAttributes(otel.AttrDocumentPath.String(fp.Path()))
	}

	logger := logging.FromContext(ctx)
	if err := p.persister.Save(ctx, doc); err != nil {
		otel.RecordError(span, err)
		logger.Error(err, "Failed to save version document", "entries", len(doc))
		return fmt.Errorf("failed to save version document: %w", err)
	}

	logger.Info("Saved tool versions", "entries", len(doc), "tools", doc.IDs())
	return nil
}

// recordStatus updates the status store. Failures are logged only; status
// is advisory and must not fail a run whose document was written.
func (p *Pipeline) recordStatus(ctx context.Context, result *Result) {
	if p.statusStore == nil {
		return
	}
	logger := logging.FromContext(ctx)

	prev, err := p.statusStore.Load(ctx)
	if err != nil {
		logger.Error(err, "Ignoring unreadable status file")
		prev = nil
	}

	next := status.Apply(prev, result.Observations(), p.now().UTC())
	if err := p.statusStore.Save(ctx, next); err != nil {
		logger.Error(err, "Failed to save status file")
	}
}
