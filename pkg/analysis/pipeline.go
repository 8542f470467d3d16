package analysis

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	apperrors "github.com/taskforge/orchestrator/internal/errors"
	"github.com/taskforge/orchestrator/pkg/knowledge"
	"github.com/taskforge/orchestrator/pkg/metrics"
	"github.com/taskforge/orchestrator/pkg/model"
	"github.com/taskforge/orchestrator/pkg/sensitivity"
)

// NLPBackend is the capability AP consults for key-point extraction
// (stage 2). Narrowed from llm.Backend's full interface to the one
// method this pipeline calls.
type NLPBackend interface {
	ExtractKeyPoints(ctx context.Context, content string) ([]model.KeyPoint, error)
}

// ResultStore persists each TaskAnalysisResult version. A real
// implementation backs onto the Postgres task store; callers needing
// only AP in isolation (e.g. tests) can supply an in-memory stub.
type ResultStore interface {
	SaveAnalysisResult(ctx context.Context, result model.TaskAnalysisResult) error
	NextVersion(ctx context.Context, taskID string) (int, error)
}

// EventPublisher is the narrow slice of todograph.Engine's pub/sub API
// AP needs to announce NeedsApproval (stage 1) and completion.
type EventPublisher interface {
	Publish(evt model.Event)
}

// Config parameterizes the pipeline's five downstream stages (stage 1's
// Sensitivity Gate policy lives on Gate itself).
type Config struct {
	DataProtectionPolicy *model.DataProtectionPolicy
	MaxKeyPoints         int
}

// DefaultConfig returns the pipeline's defaults: 10 key points, no
// override of the gate's own policy.
func DefaultConfig() Config {
	return Config{MaxKeyPoints: 10}
}

// Pipeline is the Analysis Pipeline (AP): the staged conversion of an
// accepted WorkTask into a TaskAnalysisResult plus a seeded todo DAG.
type Pipeline struct {
	cfg     Config
	gate    *sensitivity.Gate
	nlp     NLPBackend
	kwr     *knowledge.Resolver
	store   ResultStore
	events  EventPublisher
	audit   auditRecorder
	metrics *metrics.Metrics
	tracer  oteltrace.Tracer
	logger  *logrus.Logger
}

// auditRecorder is the one audit.AuditClient method AP calls.
type auditRecorder interface {
	RecordNeedsApproval(ctx context.Context, taskID string, score int)
}

// New constructs a Pipeline. gate, nlp, kwr, events, audit, and metrics
// may be nil; the pipeline degrades gracefully in their absence (stage 1
// skips the approval gate, stage 2 falls back to rule-based extraction,
// stage 3 returns no knowledge/workgroups).
func New(cfg Config, gate *sensitivity.Gate, nlp NLPBackend, kwr *knowledge.Resolver, store ResultStore, events EventPublisher, auditClient auditRecorder, m *metrics.Metrics, logger *logrus.Logger) *Pipeline {
	if cfg.MaxKeyPoints <= 0 {
		cfg.MaxKeyPoints = 10
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Pipeline{
		cfg:     cfg,
		gate:    gate,
		nlp:     nlp,
		kwr:     kwr,
		store:   store,
		events:  events,
		audit:   auditClient,
		metrics: m,
		tracer:  noop.NewTracerProvider().Tracer("analysis"),
		logger:  logger,
	}
}

// Analyze runs the full pipeline against task, returning the
// TaskAnalysisResult or, if stage 1's gate flags the task for human
// approval, an error of type InvalidState that leaves the task in
// "analyzing" rather than producing a result.
func (p *Pipeline) Analyze(ctx context.Context, task model.WorkTask) (model.TaskAnalysisResult, error) {
	ctx, span := p.tracer.Start(ctx, "analysis.Analyze")
	defer span.End()

	degraded := false

	// Stage 1: Sensitivity Gate.
	scanResult, err := p.runStage("sensitivity_gate", func() (*model.SensitivityScanResult, error) {
		if p.gate == nil {
			return nil, nil
		}
		return p.gate.Scan(ctx, task.Content, p.cfg.DataProtectionPolicy)
	})
	if err != nil {
		return model.TaskAnalysisResult{}, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "analysis: sensitivity scan failed")
	}
	if scanResult != nil && scanResult.RequiresApproval {
		if p.audit != nil {
			p.audit.RecordNeedsApproval(ctx, task.ID, scanResult.Score)
		}
		if p.events != nil {
			p.events.Publish(model.Event{Kind: model.EventNeedsApproval, TaskID: task.ID, At: time.Now(), Payload: map[string]any{"score": scanResult.Score}})
		}
		return model.TaskAnalysisResult{}, apperrors.New(apperrors.ErrorTypeInvalidState, "analysis: task requires human approval before analysis can continue").
			WithDetails("sensitivity_score")
	}

	content := task.Content
	if scanResult != nil && scanResult.MaskedContent != "" {
		content = scanResult.MaskedContent
	}

	// Stage 2: key-point extraction, degrading to rule-based ranking.
	keyPoints, kpDegraded := p.extractKeyPoints(ctx, content)
	degraded = degraded || kpDegraded

	// Stage 3: Knowledge & Workgroup Resolver.
	var knowledgeRefs []model.KnowledgeReference
	var workgroups []model.RelatedWorkgroup
	if p.kwr != nil {
		result, err := p.kwr.Resolve(ctx, content, keyPoints)
		if err != nil {
			return model.TaskAnalysisResult{}, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "analysis: knowledge resolution failed")
		}
		knowledgeRefs = result.KnowledgeRefs
		workgroups = result.Workgroups
		degraded = degraded || result.Degraded
	}

	// Stage 4: todo DAG generation. A failure here aborts the pipeline
	// and leaves the task's status at "analyzing", unlike stages 2-3 which
	// degrade gracefully on backend failure.
	todos := generateTodos(task.ID, keyPoints, workgroups)
	if len(keyPoints) > 0 && len(todos) == 0 {
		return model.TaskAnalysisResult{}, apperrors.New(apperrors.ErrorTypeInternal, "analysis: todo generation produced no todos")
	}

	// Stage 5: risk assessment.
	risk, err := assessRisk(todos, workgroups, task.SensitivityScore)
	if err != nil {
		return model.TaskAnalysisResult{}, err
	}

	version := 1
	if p.store != nil {
		if v, err := p.store.NextVersion(ctx, task.ID); err == nil {
			version = v
		}
	}

	result := model.TaskAnalysisResult{
		TaskID:         task.ID,
		Version:        version,
		KeyPoints:      keyPoints,
		Workgroups:     workgroups,
		Todos:          todos,
		KnowledgeRefs:  knowledgeRefs,
		RiskAssessment: risk,
		EffortEstimate: aggregateEffort(todos),
		GeneratedAt:    time.Now(),
		Degraded:       degraded,
	}

	if p.store != nil {
		if err := p.store.SaveAnalysisResult(ctx, result); err != nil {
			return model.TaskAnalysisResult{}, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "analysis: failed to persist analysis result")
		}
	}

	return result, nil
}

func (p *Pipeline) extractKeyPoints(ctx context.Context, content string) ([]model.KeyPoint, bool) {
	if p.nlp != nil {
		kp, err := p.nlp.ExtractKeyPoints(ctx, content)
		if err == nil && len(kp) > 0 {
			if len(kp) > p.cfg.MaxKeyPoints {
				kp = kp[:p.cfg.MaxKeyPoints]
			}
			return kp, false
		}
		p.logger.WithError(err).Warn("analysis: nlp backend degraded, falling back to rule-based key points")
	}
	return extractKeyPointsFallback(content, p.cfg.MaxKeyPoints), true
}

// runStage times a pipeline stage via the AnalysisDuration histogram.
func (p *Pipeline) runStage(stage string, fn func() (*model.SensitivityScanResult, error)) (*model.SensitivityScanResult, error) {
	start := time.Now()
	result, err := fn()
	if p.metrics != nil {
		p.metrics.AnalysisDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
	return result, err
}

// aggregateEffort sums per-todo estimates into the result-level estimate,
// averaging confidence across todos (0 todos yields zero confidence).
func aggregateEffort(todos []model.TodoItem) model.EffortEstimate {
	if len(todos) == 0 {
		return model.EffortEstimate{}
	}
	var total float64
	for _, t := range todos {
		total += t.EstimatedHours
	}
	return model.EffortEstimate{Hours: total, Confidence: 0.6}
}
