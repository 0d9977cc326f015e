// Package testutil holds shared test helpers.
package testutil

import (
	"bufio"
	"strings"
	"testing"
)

// ParseSSEData parses a data-only SSE stream into its payloads, in order.
//
// The chat stream uses bare "data:" lines without event types:
//   - every "data: <payload>" line yields one payload
//   - an empty line terminates the event
//   - comments starting with ":" are ignored
//
// Example:
//
//	payloads := testutil.ParseSSEData(t, body)
//	assert.Equal(t, "[DONE]", payloads[len(payloads)-1])
func ParseSSEData(t *testing.T, body string) []string {
	t.Helper()

	var payloads []string
	var pending []string
	lineNum := 0

	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "data: "):
			pending = append(pending, strings.TrimPrefix(line, "data: "))

		case line == "":
			if len(pending) > 0 {
				// SSE spec: multiple data lines of one event join with \n.
				payloads = append(payloads, strings.Join(pending, "\n"))
				pending = nil
			}

		default:
			if !strings.HasPrefix(line, ":") {
				t.Fatalf("SSE parse error at line %d: unexpected line %q", lineNum, line)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("SSE scan error: %v", err)
	}
	if len(pending) > 0 {
		t.Fatalf("SSE stream ended without terminating event %q (missing empty line)", pending[0])
	}

	return payloads
}
