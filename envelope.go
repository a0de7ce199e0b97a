package sesiweb

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// requestEnvelope is the wire form of one API invocation: a JSON array of
// [command, positional args, keyword args]. The server dispatches on the
// command name; the published commands take keyword arguments only.
type requestEnvelope struct {
	Command string
	Args    []any
	Kwargs  any
}

func newEnvelope(command string, kwargs any) requestEnvelope {
	return requestEnvelope{Command: command, Args: []any{}, Kwargs: kwargs}
}

// MarshalJSON emits the ordered triple. Args and Kwargs are never null; the
// server rejects envelopes whose elements are not array and object.
func (e requestEnvelope) MarshalJSON() ([]byte, error) {
	args := e.Args
	if args == nil {
		args = []any{}
	}
	kwargs := e.Kwargs
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	return json.Marshal([]any{e.Command, args, kwargs})
}

// encodeForm wraps the marshaled envelope in the single "json" form field
// the API expects as request body.
func (e requestEnvelope) encodeForm() (string, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("sesiweb: encoding %s request: %w", e.Command, err)
	}

	form := url.Values{"json": []string{string(payload)}}
	return form.Encode(), nil
}
