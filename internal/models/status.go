package models

import "strings"

// Status is the RMA lifecycle state of an asset.
type Status string

const (
	StatusNormal         Status = "Normal"
	StatusRMARequested   Status = "RMARequested"
	StatusRMAShipped     Status = "RMAShipped"
	StatusRMAEligible    Status = "RMAEligible"
	StatusRMANotEligible Status = "RMANotEligible"
	StatusDeprecated     Status = "Deprecated"
	StatusUnknown        Status = "Unknown"
)

// AllStatuses lists every status in declaration order.
var AllStatuses = []Status{
	StatusNormal,
	StatusRMARequested,
	StatusRMAShipped,
	StatusRMAEligible,
	StatusRMANotEligible,
	StatusDeprecated,
	StatusUnknown,
}

// Valid reports whether s is one of the declared statuses.
func (s Status) Valid() bool {
	_, ok := ParseStatus(string(s))
	return ok
}

// ParseStatus matches free text against the enumeration, case-insensitively
// and ignoring separators, so "rma requested" and "RMA-Requested" both parse
// to StatusRMARequested.
func ParseStatus(raw string) (Status, bool) {
	folded := foldStatusKey(raw)
	if folded == "" {
		return "", false
	}
	for _, s := range AllStatuses {
		if foldStatusKey(string(s)) == folded {
			return s, true
		}
	}
	return "", false
}

// InferStatus resolves arbitrary free text to a status. Absent text defaults
// to Normal; an exact enum match wins; otherwise substring heuristics apply
// in this frozen precedence order: "request", "ship", "not eligible",
// "eligible", "deprecated". "not eligible" is checked before "eligible"
// because the latter is a substring of the former. Anything else is Unknown.
func InferStatus(raw string) Status {
	text := strings.TrimSpace(raw)
	if text == "" {
		return StatusNormal
	}
	if s, ok := ParseStatus(text); ok {
		return s
	}
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "request"):
		return StatusRMARequested
	case strings.Contains(lower, "ship"):
		return StatusRMAShipped
	case strings.Contains(lower, "not eligible"):
		return StatusRMANotEligible
	case strings.Contains(lower, "eligible"):
		return StatusRMAEligible
	case strings.Contains(lower, "deprecated"):
		return StatusDeprecated
	default:
		return StatusUnknown
	}
}

func foldStatusKey(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		}
	}
	return b.String()
}
