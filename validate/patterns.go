package validate

import "regexp"

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	passwordUpper  = regexp.MustCompile(`[A-Z]`)
	passwordLower  = regexp.MustCompile(`[a-z]`)
	passwordDigit  = regexp.MustCompile(`[0-9]`)
	passwordSymbol = regexp.MustCompile(`[^a-zA-Z0-9]`)

	filenamePattern = regexp.MustCompile(`^[a-zA-Z0-9._\- ]+$`)
)

// injectionSignatures are screened against every string-typed input.
// Defense-in-depth only: matching input is rejected even though the
// business layer must still use parameterized queries and output escaping.
var injectionSignatures = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<\s*script`),
	regexp.MustCompile(`(?i)<\s*iframe`),
	regexp.MustCompile(`(?i)\bon(load|error|click|mouseover|focus|submit)\s*=`),
	regexp.MustCompile(`(?i)javascript\s*:`),
	regexp.MustCompile(`(?i)\bunion\s+(all\s+)?select\b`),
	regexp.MustCompile(`(?i)\binsert\s+into\b`),
	regexp.MustCompile(`(?i)\bupdate\s+\w+\s+set\b`),
	regexp.MustCompile(`(?i)\bdelete\s+from\b`),
	regexp.MustCompile(`(?i)\bdrop\s+(table|database)\b`),
	regexp.MustCompile(`(?i)\bexec(ute)?\s*\(`),
	regexp.MustCompile(`--\s*$`),
	regexp.MustCompile(`/\*.*\*/`),
	regexp.MustCompile(`(?i)'\s*or\s+'?\d*'?\s*=\s*'?\d*`),
}

// commonWeakPasswords is the rejection list for the password kind. Matched
// case-insensitively against the whole input.
var commonWeakPasswords = map[string]struct{}{
	"password":   {},
	"password1":  {},
	"password1!": {},
	"passw0rd":   {},
	"123456":     {},
	"1234567":    {},
	"12345678":   {},
	"123456789":  {},
	"qwerty":     {},
	"qwerty123":  {},
	"abc123":     {},
	"letmein":    {},
	"welcome":    {},
	"welcome1":   {},
	"iloveyou":   {},
	"admin":      {},
	"admin123":   {},
	"monkey":     {},
	"dragon":     {},
	"sunshine":   {},
	"111111":     {},
	"000000":     {},
}

func matchesInjectionSignature(value string) bool {
	for _, sig := range injectionSignatures {
		if sig.MatchString(value) {
			return true
		}
	}
	return false
}
