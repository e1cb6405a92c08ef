package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Validator provides input validation and sanitization
type Validator struct {
	// Patterns for validation
	uidPattern         *regexp.Regexp
	tokenPattern       *regexp.Regexp
	profileNamePattern *regexp.Regexp
	hostPattern        *regexp.Regexp

	// Security patterns to detect injection attempts
	commandInjectionPatterns []*regexp.Regexp
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		// Valid UID format: alphanumeric with underscores and hyphens, 16-32 characters
		uidPattern: regexp.MustCompile(`^[a-zA-Z0-9_-]{16,32}$`),

		// Token format: US:TOKEN or EU:TOKEN format
		tokenPattern: regexp.MustCompile(`^(US|EU|AU|JP|CA|GOV):[A-Za-z0-9+/=_-]+$`),

		// Profile name: alphanumeric with underscores, hyphens, dots (1-64 chars)
		profileNamePattern: regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`),

		// Hostname, IPv4, or IPv6 literal. Targets end up in launcher
		// argv, so the accepted character set is deliberately narrow.
		hostPattern: regexp.MustCompile(`^[a-zA-Z0-9:][a-zA-Z0-9.:_-]{0,253}$`),

		// Command injection patterns
		commandInjectionPatterns: []*regexp.Regexp{
			regexp.MustCompile(`[;&|]`),     // Command separators
			regexp.MustCompile("`"),         // Backticks
			regexp.MustCompile(`\$\(`),      // Command substitution
			regexp.MustCompile(`\$\{`),      // Variable expansion
			regexp.MustCompile(`<<|>>`),     // Redirections
			regexp.MustCompile(`\|\||\&\&`), // Logical operators
			regexp.MustCompile(`\n|\r`),     // Newlines
			regexp.MustCompile(`[<>]`),      // IO redirection
			regexp.MustCompile(`\x00`),      // Null bytes
		},
	}
}

// ValidateUID validates a KSM record UID
func (v *Validator) ValidateUID(uid string) error {
	if uid == "" {
		return fmt.Errorf("UID cannot be empty")
	}

	if len(uid) < 16 || len(uid) > 32 {
		return fmt.Errorf("UID must be between 16 and 32 characters")
	}

	if !v.uidPattern.MatchString(uid) {
		return fmt.Errorf("invalid UID format: must contain only alphanumeric characters, underscores, and hyphens")
	}

	if v.containsCommandInjection(uid) {
		return fmt.Errorf("UID contains invalid characters")
	}

	return nil
}

// ValidateToken validates a KSM one-time token
func (v *Validator) ValidateToken(token string) error {
	if token == "" {
		return fmt.Errorf("token cannot be empty")
	}

	if !v.tokenPattern.MatchString(token) {
		return fmt.Errorf("invalid token format: expected format REGION:TOKEN (e.g., US:TOKEN_HERE)")
	}

	parts := strings.SplitN(token, ":", 2)
	if len(parts) != 2 {
		return fmt.Errorf("invalid token format: missing region prefix")
	}

	if len(parts[1]) < 20 {
		return fmt.Errorf("token appears to be too short")
	}

	return nil
}

// ValidateProfileName validates a profile name
func (v *Validator) ValidateProfileName(name string) error {
	if name == "" {
		return fmt.Errorf("profile name cannot be empty")
	}

	if len(name) > 64 {
		return fmt.Errorf("profile name too long: maximum 64 characters")
	}

	if !v.profileNamePattern.MatchString(name) {
		return fmt.Errorf("invalid profile name: must contain only alphanumeric characters, dots, underscores, and hyphens")
	}

	return nil
}

// ValidateHostTarget validates a connection target supplied on the command
// line. The value is later handed to external launchers verbatim, so it must
// look like a hostname or IP literal and nothing else.
func (v *Validator) ValidateHostTarget(host string) error {
	if host == "" {
		return fmt.Errorf("host cannot be empty")
	}

	if len(host) > 255 {
		return fmt.Errorf("host too long: maximum 255 characters")
	}

	if v.containsCommandInjection(host) {
		return fmt.Errorf("host contains invalid characters")
	}

	if !v.hostPattern.MatchString(host) {
		return fmt.Errorf("invalid host format: must be a hostname or IP address")
	}

	return nil
}

// ValidateSearchQuery validates a free-text search term. Terms are matched
// against record titles client-side and never interpolated into a command or
// query language, so only length and control characters are restricted.
func (v *Validator) ValidateSearchQuery(query string) error {
	if query == "" {
		return fmt.Errorf("search query cannot be empty")
	}

	if len(query) > 256 {
		return fmt.Errorf("search query too long: maximum 256 characters")
	}

	if strings.ContainsAny(query, "\x00\n\r") {
		return fmt.Errorf("search query contains invalid characters")
	}

	return nil
}

// SanitizeString removes potentially dangerous characters from a string
func (v *Validator) SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters except tab, newline, carriage return
	var sanitized strings.Builder
	for _, r := range input {
		if unicode.IsControl(r) && r != '\t' && r != '\n' && r != '\r' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// containsCommandInjection checks if input contains command injection patterns
func (v *Validator) containsCommandInjection(input string) bool {
	for _, pattern := range v.commandInjectionPatterns {
		if pattern.MatchString(input) {
			return true
		}
	}
	return false
}

// ValidatePasswordStrength validates password meets minimum requirements
func (v *Validator) ValidatePasswordStrength(password string) error {
	if len(password) < 12 {
		return fmt.Errorf("password must be at least 12 characters long")
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool

	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit || !hasSpecial {
		return fmt.Errorf("password must contain uppercase, lowercase, digits, and special characters")
	}

	return nil
}

// TruncateString safely truncates a string to a maximum length
func (v *Validator) TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}

	// Truncate at rune boundary to avoid breaking multi-byte characters
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}

	return string(runes[:maxLen-3]) + "..."
}
