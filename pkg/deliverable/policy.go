// Package deliverable implements the Deliverable Quality Machine (DQM):
// the per-deliverable pipeline of quick validation, security scan,
// rule-based validation, and quality assessment that produces an
// approved/rejected/needs_revision verdict.
package deliverable

// QuickValidationPolicy gates a deliverable before any scan runs.
// Rejection here is terminal: the pipeline never reaches the security
// scan or quality stages.
type QuickValidationPolicy struct {
	MaxSizeBytes int64
	AllowedTypes []string // empty means "all except BlockedTypes"
	BlockedTypes []string
}

// DefaultQuickValidationPolicy blocks common executable and script
// extensions by default, per the documented step 1.
func DefaultQuickValidationPolicy() QuickValidationPolicy {
	return QuickValidationPolicy{
		MaxSizeBytes: 100 * 1024 * 1024, // 100MB
		BlockedTypes: []string{
			"exe", "dll", "so", "dylib", "bat", "cmd", "sh", "ps1", "msi", "scr", "com", "vbs",
		},
	}
}

func (p QuickValidationPolicy) typeAllowed(fileType string) bool {
	for _, blocked := range p.BlockedTypes {
		if blocked == fileType {
			return false
		}
	}
	if len(p.AllowedTypes) == 0 {
		return true
	}
	for _, allowed := range p.AllowedTypes {
		if allowed == fileType {
			return true
		}
	}
	return false
}

// quickValidationResult is the pass/fail outcome of stage 1.
type quickValidationResult struct {
	Passed bool
	Reason string
}

func runQuickValidation(policy QuickValidationPolicy, fileType string, size int64) quickValidationResult {
	if size > policy.MaxSizeBytes {
		return quickValidationResult{Reason: "file exceeds maximum allowed size"}
	}
	if !policy.typeAllowed(fileType) {
		return quickValidationResult{Reason: "file type is not permitted: " + fileType}
	}
	return quickValidationResult{Passed: true}
}
