package sesiweb

import (
	"html"
	"net/http"
	"strings"
)

// extractTraceback pulls a readable message out of an error response body.
// On a 500 the server embeds the backend stack trace in an HTML <textarea>;
// the lines between the "Traceback:" marker and the closing tag are cut out
// and HTML-unescaped. Any other status carries its message as plain text, so
// the body is returned as is.
func extractTraceback(statusCode int, body string) string {
	if statusCode != http.StatusInternalServerError {
		return body
	}

	var trace strings.Builder
	found := false
	for _, line := range strings.Split(body, "\n") {
		if found && line == "</textarea>" {
			break
		}
		if line == "Traceback:" {
			found = true
		}
		if found {
			trace.WriteString(line)
			trace.WriteByte('\n')
		}
	}

	if !found {
		// No marker, trace was not wrapped in a debug page.
		return html.UnescapeString(body)
	}
	return html.UnescapeString(trace.String())
}
