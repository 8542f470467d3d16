package model

import "time"

// DeliverableStatus is the lifecycle state of a Deliverable.
type DeliverableStatus string

const (
	DeliverableSubmitted     DeliverableStatus = "submitted"
	DeliverableValidating    DeliverableStatus = "validating"
	DeliverableApproved      DeliverableStatus = "approved"
	DeliverableRejected      DeliverableStatus = "rejected"
	DeliverableNeedsRevision DeliverableStatus = "needs_revision"
)

// ValidationCheckKind classifies one ValidationCheck.
type ValidationCheckKind string

const (
	CheckFormat     ValidationCheckKind = "format"
	CheckContent    ValidationCheckKind = "content"
	CheckSecurity   ValidationCheckKind = "security"
	CheckCompliance ValidationCheckKind = "compliance"
	CheckTechnical  ValidationCheckKind = "technical"
)

// CheckOutcome is a ValidationCheck's result.
type CheckOutcome string

const (
	CheckPass CheckOutcome = "pass"
	CheckFail CheckOutcome = "fail"
	CheckWarn CheckOutcome = "warning"
)

// ValidationCheck is one rule-based validation result.
type ValidationCheck struct {
	Kind      ValidationCheckKind
	Name      string
	Outcome   CheckOutcome
	Evidence  string
	Mandatory bool
}

// ValidationReport is the aggregate of all ValidationChecks for a
// deliverable.
type ValidationReport struct {
	Checks   []ValidationCheck
	Compliant bool
}

// AnyMandatoryFailed reports whether a mandatory check failed.
func (r ValidationReport) AnyMandatoryFailed() bool {
	for _, c := range r.Checks {
		if c.Mandatory && c.Outcome == CheckFail {
			return true
		}
	}
	return false
}

// AnyNonMandatoryFailed reports whether a non-mandatory check failed.
func (r ValidationReport) AnyNonMandatoryFailed() bool {
	for _, c := range r.Checks {
		if !c.Mandatory && c.Outcome != CheckPass {
			return true
		}
	}
	return false
}

// QualityDimension is one scored aspect of deliverable quality.
type QualityDimension string

const (
	DimCompleteness    QualityDimension = "completeness"
	DimAccuracy        QualityDimension = "accuracy"
	DimConsistency     QualityDimension = "consistency"
	DimUsability       QualityDimension = "usability"
	DimMaintainability QualityDimension = "maintainability"
	DimPerformance     QualityDimension = "performance"
)

// DimensionScore is one weighted quality dimension score.
type DimensionScore struct {
	Dimension QualityDimension
	Score     float64 // [0,100]
	Weight    float64 // [0,1]
}

// QualityAssessment is the full per-dimension quality result.
type QualityAssessment struct {
	Dimensions  []DimensionScore
	Overall     float64 // sum(weight*score)
	Suggestions []string
}

// ThreatReport is produced when a deliverable's security scan finds an
// infection or a critical sensitivity score.
type ThreatReport struct {
	Infected    bool
	SignatureID string
	Score       int
	Detail      string
}

// Deliverable is a user-submitted artifact attached to a todo.
type Deliverable struct {
	ID                string
	TodoID            string
	FileName          string
	FileType          string
	Size              int64
	StorageKey        string
	Submitter         string
	SubmittedAt       time.Time
	Version           int
	PreviousVersionID *string
	Validation        *ValidationReport
	Quality           *QualityAssessment
	Threat            *ThreatReport
	Status            DeliverableStatus
	Checksum          string
}
