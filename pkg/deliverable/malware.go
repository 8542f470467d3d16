package deliverable

import "strings"

// MalwareSignature is one byte-pattern signature a deliverable's content
// is checked against.
type MalwareSignature struct {
	ID      string
	Pattern string
}

// eicarPattern is the industry-standard antivirus test string; any file
// containing it is treated exactly like a real infection by every
// compliant scanner, and so is this one.
const eicarPattern = `X5O!P%@AP[4\PZX54(P^)7CC)7}$EICAR-STANDARD-ANTIVIRUS-TEST-FILE!$H+H*`

// DefaultSignatures returns the built-in signature set.
func DefaultSignatures() []MalwareSignature {
	return []MalwareSignature{
		{ID: "EICAR-TEST-FILE", Pattern: eicarPattern},
	}
}

// scanSignatures reports the first matching signature, if any.
func scanSignatures(content string, signatures []MalwareSignature) (MalwareSignature, bool) {
	for _, sig := range signatures {
		if strings.Contains(content, sig.Pattern) {
			return sig, true
		}
	}
	return MalwareSignature{}, false
}
