// Package orchestrator sequences and parallelizes agent sessions to produce
// catalogs, documents, mind maps, and translations.
//
// Every operation is built from one primitive: an agent session executed
// with retry/backoff (transient failures only), per-call timeout, and token
// usage accounting. Fan-out operations run sessions under a bounded worker
// pool with per-item timeouts layered under a shared cancellation context;
// per-item failures are counted and isolated, cancellation aborts the batch.
package orchestrator

import (
	"context"
	"time"

	"github.com/fyrsmithlabs/wikid/internal/agent"
	"github.com/fyrsmithlabs/wikid/internal/config"
	"github.com/fyrsmithlabs/wikid/internal/logging"
	"github.com/fyrsmithlabs/wikid/internal/store"
	"github.com/fyrsmithlabs/wikid/internal/workspace"
)

// Operation names, used for usage records, metrics, and log correlation.
const (
	OpGenerateCatalog    = "generate_catalog"
	OpGenerateDocuments  = "generate_documents"
	OpRegenerateDocument = "regenerate_document"
	OpIncrementalUpdate  = "incremental_update"
	OpGenerateMindMap    = "generate_mindmap"
	OpTranslateCatalog   = "translate_catalog"
	OpTranslateDocuments = "translate_documents"
	OpTranslateMindMap   = "translate_mindmap"
)

// OperationContext carries the identity of one orchestration run. It is
// passed explicitly through every entry point; nothing rides on ambient or
// goroutine-local state.
type OperationContext struct {
	RepositoryID     string
	BranchLanguageID string
	Workspace        *workspace.Workspace
}

// ProgressSink receives human-readable progress messages per major step.
// Optional; correctness never depends on it.
type ProgressSink interface {
	Progress(ctx context.Context, message string)
}

type nopProgress struct{}

func (nopProgress) Progress(context.Context, string) {}

// Orchestrator is the generation pipeline core.
type Orchestrator struct {
	runner   *agent.Runner
	store    store.Store
	cfg      config.GenerationConfig
	logger   *logging.Logger
	progress ProgressSink

	// sleep is swapped in tests to observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithProgressSink directs progress messages to sink.
func WithProgressSink(sink ProgressSink) Option {
	return func(o *Orchestrator) {
		if sink != nil {
			o.progress = sink
		}
	}
}

// New creates an orchestrator.
func New(runner *agent.Runner, st store.Store, cfg config.GenerationConfig, logger *logging.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	o := &Orchestrator{
		runner:   runner,
		store:    st,
		cfg:      cfg,
		logger:   logger,
		progress: nopProgress{},
		sleep:    ctxSleep,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// opContext attaches correlation fields for logging.
func (o *Orchestrator) opContext(ctx context.Context, opCtx OperationContext, opName string) context.Context {
	ctx = logging.WithRepository(ctx, opCtx.RepositoryID)
	ctx = logging.WithBranchLanguage(ctx, opCtx.BranchLanguageID)
	return logging.WithOperation(ctx, opName)
}

// ctxSleep waits for d or until ctx is done.
func ctxSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
