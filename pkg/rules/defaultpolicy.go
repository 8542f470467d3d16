package rules

import "context"

// DefaultComplianceModule is the baseline deliverable content policy:
// flags unredacted secret-looking markers and raw PII labels that should
// have already been caught (and masked) by the Sensitivity Gate before a
// deliverable reaches the Deliverable Quality Machine. Deployments with
// their own compliance rules compile a replacement module with
// CompileContentPolicy instead of this one.
const DefaultComplianceModule = `
package content_policy

default compliant := true

violations[v] {
	some marker in ["-----begin", "aws_secret_access_key", "password:", "ssn:"]
	contains(lower(input.text), marker)
	v := {"rule": "unredacted_sensitive_marker", "message": sprintf("content contains an unredacted marker: %v", [marker])}
}

violations[v] {
	input.fileType == "exe"
	v := {"rule": "blocked_file_type", "message": "executable content is never an acceptable deliverable type"}
}

compliant := false {
	count(violations) > 0
}

score := 100 {
	count(violations) == 0
} else := 30

result := {"compliant": compliant, "score": score, "violations": [v | v := violations[_]]}
`

// DefaultResultQuery is the rego query paired with DefaultComplianceModule.
const DefaultResultQuery = "data.content_policy.result"

// CompileDefaultContentPolicy compiles DefaultComplianceModule, giving
// callers a ready-to-use ContentPolicy without hand-authoring rego.
func CompileDefaultContentPolicy(ctx context.Context) (*ContentPolicy, error) {
	return CompileContentPolicy(ctx, DefaultComplianceModule, DefaultResultQuery)
}
