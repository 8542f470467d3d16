package deliverable

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/taskforge/orchestrator/internal/clock"
	apperrors "github.com/taskforge/orchestrator/internal/errors"
	"github.com/taskforge/orchestrator/pkg/audit"
	"github.com/taskforge/orchestrator/pkg/model"
	"github.com/taskforge/orchestrator/pkg/rules"
	"github.com/taskforge/orchestrator/pkg/sensitivity"
)

// textFileTypes are scanned for sensitivity content in stage 2; binary
// deliverables only go through the malware-signature pass.
var textFileTypes = map[string]bool{
	"txt": true, "md": true, "json": true, "yaml": true, "yml": true,
	"csv": true, "html": true, "xml": true, "log": true,
}

// QualityScorer assesses a deliverable's content quality. Implementations
// typically wrap an NLPBackend; HeuristicScorer is the degrade-path default.
type QualityScorer interface {
	AssessQuality(ctx context.Context, content, fileType string) (model.QualityAssessment, error)
}

// PipelineConfig tunes the quality gate and per-dimension weights.
type PipelineConfig struct {
	QuickValidation    QuickValidationPolicy
	Signatures         []MalwareSignature
	SensitivityPolicy  *model.DataProtectionPolicy
	ApprovalThreshold  float64 // overall quality score required for "approved"
}

// DefaultPipelineConfig returns the standard default thresholds.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		QuickValidation:   DefaultQuickValidationPolicy(),
		Signatures:        DefaultSignatures(),
		ApprovalThreshold: 70,
	}
}

// Pipeline drives a Deliverable through the five DQM stages and never
// mutates todo status directly — callers (the orchestrator facade) feed
// an approved verdict's completion criteria back into TGE themselves.
type Pipeline struct {
	cfg     PipelineConfig
	gate    *sensitivity.Gate
	content *rules.ContentPolicy // optional compliance pass, nil skips it
	scorer  QualityScorer
	clock   clock.Clock
	audit   *audit.AuditClient
	logger  *logrus.Logger
}

// New constructs a Pipeline. gate, contentPolicy, scorer, and auditClient
// may all be nil: the corresponding stage then degrades to a pass-through
// (contentPolicy, scorer) or is skipped (gate, for non-text deliverables
// it would skip anyway).
func New(cfg PipelineConfig, gate *sensitivity.Gate, contentPolicy *rules.ContentPolicy, scorer QualityScorer, clk clock.Clock, auditClient *audit.AuditClient, logger *logrus.Logger) *Pipeline {
	if clk == nil {
		clk = clock.NewReal()
	}
	if logger == nil {
		logger = logrus.New()
	}
	if scorer == nil {
		scorer = HeuristicScorer{}
	}
	return &Pipeline{cfg: cfg, gate: gate, content: contentPolicy, scorer: scorer, clock: clk, audit: auditClient, logger: logger}
}

// Process runs d through every DQM stage, mutating and returning d with
// its final Status, Validation, Quality, and Threat populated. content is
// the deliverable's textual body when available (empty for pure binary
// artifacts, which still go through the signature scan on whatever bytes
// the caller has decoded to string).
func (p *Pipeline) Process(ctx context.Context, d *model.Deliverable, content string) (*model.Deliverable, error) {
	d.Status = model.DeliverableValidating

	quick := runQuickValidation(p.cfg.QuickValidation, d.FileType, d.Size)
	if !quick.Passed {
		d.Status = model.DeliverableRejected
		d.Validation = &model.ValidationReport{
			Checks: []model.ValidationCheck{
				{Kind: model.CheckFormat, Name: "quick_validation", Outcome: model.CheckFail, Evidence: quick.Reason, Mandatory: true},
			},
		}
		return d, nil
	}

	threat, checks, err := p.securityScan(ctx, d, content)
	if err != nil {
		return nil, err
	}
	d.Threat = threat
	if threat != nil && threat.Infected {
		d.Status = model.DeliverableRejected
		d.Validation = &model.ValidationReport{Checks: checks, Compliant: false}
		if p.audit != nil {
			p.audit.RecordDeliverableVerdict(ctx, d.TodoID, d.ID, string(model.DeliverableRejected))
		}
		return d, nil
	}

	ruleChecks, err := p.ruleBasedValidation(ctx, d, content)
	if err != nil {
		return nil, err
	}
	checks = append(checks, ruleChecks...)

	report := model.ValidationReport{Checks: checks}
	report.Compliant = !report.AnyMandatoryFailed() && !report.AnyNonMandatoryFailed()
	d.Validation = &report

	quality, err := p.scorer.AssessQuality(ctx, content, d.FileType)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "deliverable: quality assessment failed")
	}
	d.Quality = &quality

	d.Status = p.verdict(report, quality)
	if p.audit != nil {
		p.audit.RecordDeliverableVerdict(ctx, d.TodoID, d.ID, string(d.Status))
	}
	return d, nil
}

func (p *Pipeline) verdict(report model.ValidationReport, quality model.QualityAssessment) model.DeliverableStatus {
	if report.AnyMandatoryFailed() {
		return model.DeliverableRejected
	}
	if report.AnyNonMandatoryFailed() {
		return model.DeliverableNeedsRevision
	}
	if quality.Overall >= p.cfg.ApprovalThreshold {
		return model.DeliverableApproved
	}
	return model.DeliverableNeedsRevision
}

// securityScan runs the sensitivity gate (for text deliverables) and the
// malware-signature pass, producing both a ThreatReport (nil unless
// something fired) and the validation checks it contributes.
func (p *Pipeline) securityScan(ctx context.Context, d *model.Deliverable, content string) (*model.ThreatReport, []model.ValidationCheck, error) {
	var checks []model.ValidationCheck

	if sig, infected := scanSignatures(content, p.cfg.Signatures); infected {
		checks = append(checks, model.ValidationCheck{
			Kind: model.CheckSecurity, Name: "malware_signature", Outcome: model.CheckFail,
			Evidence: "matched signature " + sig.ID, Mandatory: true,
		})
		return &model.ThreatReport{Infected: true, SignatureID: sig.ID, Score: 100, Detail: "malware signature match"}, checks, nil
	}
	checks = append(checks, model.ValidationCheck{Kind: model.CheckSecurity, Name: "malware_signature", Outcome: model.CheckPass, Mandatory: true})

	if !textFileTypes[strings.ToLower(d.FileType)] || p.gate == nil {
		return nil, checks, nil
	}

	scan, err := p.gate.Scan(ctx, content, p.cfg.SensitivityPolicy)
	if err != nil {
		return nil, nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "deliverable: sensitivity scan failed")
	}

	const criticalThreshold = 90
	if scan.Score >= criticalThreshold {
		checks = append(checks, model.ValidationCheck{
			Kind: model.CheckSecurity, Name: "sensitivity_scan", Outcome: model.CheckFail,
			Evidence: "sensitivity score at or above critical threshold", Mandatory: true,
		})
		return &model.ThreatReport{Infected: true, Score: scan.Score, Detail: "sensitivity score critical"}, checks, nil
	}
	checks = append(checks, model.ValidationCheck{Kind: model.CheckSecurity, Name: "sensitivity_scan", Outcome: model.CheckPass, Mandatory: true})
	return nil, checks, nil
}

// ruleBasedValidation runs the optional compliance Rego policy and
// reports it as a content-compliance check.
func (p *Pipeline) ruleBasedValidation(ctx context.Context, d *model.Deliverable, content string) ([]model.ValidationCheck, error) {
	if p.content == nil {
		return nil, nil
	}

	report, err := p.content.Evaluate(ctx, map[string]any{"text": content, "fileType": d.FileType})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrorTypeInternal, "deliverable: content policy evaluation failed")
	}

	outcome := model.CheckPass
	evidence := ""
	if !report.Compliant {
		outcome = model.CheckFail
		var parts []string
		for _, v := range report.Violations {
			parts = append(parts, v.Rule+": "+v.Message)
		}
		evidence = strings.Join(parts, "; ")
	}
	return []model.ValidationCheck{{
		Kind: model.CheckCompliance, Name: "content_policy", Outcome: outcome, Evidence: evidence, Mandatory: false,
	}}, nil
}
