package cliutil

import (
	"regexp"
	"strings"
)

const redactedPlaceholder = "[redacted]"

// Keys whose values must never reach a console or the log tail endpoint.
// Matching is case-insensitive and covers KEY=value and KEY: value forms.
var secretKeyNames = []string{
	"AWS_ACCESS_KEY_ID",
	"AWS_SECRET_ACCESS_KEY",
	"AWS_SESSION_TOKEN",
	"AZURE_CLIENT_SECRET",
	"GCP_SERVICE_ACCOUNT_KEY",
	"DATABASE_PASSWORD",
	"DB_PASSWORD",
	"POSTGRES_PASSWORD",
	"REDIS_PASSWORD",
	"API_KEY",
	"API_TOKEN",
	"ACCESS_TOKEN",
	"REFRESH_TOKEN",
	"CLIENT_SECRET",
	"SESSION_SECRET",
	"PRIVATE_KEY",
}

var (
	templateVarPattern = regexp.MustCompile(`\$\{[^}]+\}`)
	secretKeyPattern   = buildSecretKeyPattern()
)

func buildSecretKeyPattern() *regexp.Regexp {
	quoted := make([]string, len(secretKeyNames))
	for i, name := range secretKeyNames {
		quoted[i] = regexp.QuoteMeta(name)
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b(\s*[:=]\s*)(["']?)([^"'\s]+)(["']?)`)
}

// RedactSecrets masks ${VAR} template references and the values of known
// secret keys so child process output can be surfaced without leaking
// credentials.
func RedactSecrets(message string) string {
	if message == "" {
		return message
	}
	masked := templateVarPattern.ReplaceAllStringFunc(message, func(string) string {
		return "${" + redactedPlaceholder + "}"
	})
	return secretKeyPattern.ReplaceAllString(masked, "$1$2$3"+redactedPlaceholder+"$5")
}
