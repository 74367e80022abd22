package conversation

import "strings"

// DefaultMaxContentLength bounds user message content when no limit is
// configured.
const DefaultMaxContentLength = 100000

// Validation is the outcome of validating raw message content. When
// invalid, Errors lists every violated rule, not just the first.
type Validation struct {
	Valid  bool
	Errors []string
}

// Sanitize normalizes raw content: trims surrounding whitespace and
// strips non-printing control characters. Tabs and newlines survive.
func Sanitize(content string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		if r < 0x20 || r == 0x7F {
			return -1
		}
		return r
	}, content)
	return strings.TrimSpace(cleaned)
}

// ValidateContent checks sanitized content against the message rules.
// A maxLength <= 0 selects DefaultMaxContentLength.
func ValidateContent(content string, maxLength int) Validation {
	if maxLength <= 0 {
		maxLength = DefaultMaxContentLength
	}

	var errs []string
	if strings.TrimSpace(content) == "" {
		errs = append(errs, "message content cannot be empty")
	}
	if len([]rune(content)) > maxLength {
		errs = append(errs, "message content exceeds maximum length")
	}

	return Validation{
		Valid:  len(errs) == 0,
		Errors: errs,
	}
}
