package model

// FlagSeverity grades a compliance finding.
type FlagSeverity string

// Flag severities.
const (
	SeverityError   FlagSeverity = "ERROR"
	SeverityWarning FlagSeverity = "WARNING"
)

// ComplianceFlag is one DGI compliance finding on an invoice. The vocabulary
// of codes is stable; the UI and the validation step consume flags as
// advisory information only.
type ComplianceFlag struct {
	Code     string       `json:"code"`
	Message  string       `json:"message"`
	Severity FlagSeverity `json:"severity"`
	Field    string       `json:"field"`
}

// HasErrors reports whether any flag in the list has ERROR severity.
func HasErrors(flags []ComplianceFlag) bool {
	for _, f := range flags {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}
