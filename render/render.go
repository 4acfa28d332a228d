// Package render substitutes the well-known placeholders into message
// templates.
package render

import (
	"strings"
	"time"
)

// Placeholders recognized in message templates.
const (
	TimestampPlaceholder = "{timestamp}"
	ResponsePlaceholder  = "{command_response_content}"
)

// NoResponseText replaces the response placeholder when a command
// produced no output.
const NoResponseText = "no response"

// timestampLayout is the fixed token format: day-of-week, month, date,
// 24h time, timezone label, year. Locale-independent.
const timestampLayout = "Mon Jan 02 15:04:05 MST 2006"

// Timestamp renders an instant in the fixed dashboard format.
func Timestamp(t time.Time) string {
	return t.Format(timestampLayout)
}

// Message renders a template. All occurrences of {timestamp} are
// replaced; only the first occurrence of {command_response_content} is
// replaced, with NoResponseText standing in for empty output. Templates
// without placeholders pass through unchanged.
func Message(template string, ts time.Time, output string) string {
	text := strings.ReplaceAll(template, TimestampPlaceholder, Timestamp(ts))

	response := output
	if strings.TrimSpace(response) == "" {
		response = NoResponseText
	}
	return strings.Replace(text, ResponsePlaceholder, response, 1)
}
