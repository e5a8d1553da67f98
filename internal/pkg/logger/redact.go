package logger

import "strings"

// RedactEmail masks the local part of an address so log lines don't carry
// PII: "john.doe@example.com" becomes "jo***@example.com". Local parts of
// two characters or fewer are masked entirely, and anything that doesn't
// look like an address is masked wholesale.
func RedactEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || strings.Contains(email[:at], "@") {
		return "***@***"
	}
	local, domain := email[:at], email[at+1:]
	if len(local) <= 2 {
		return "***@" + domain
	}
	return local[:2] + "***@" + domain
}
