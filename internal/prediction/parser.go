package prediction

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Parse classifies an engine Outcome. Only a Completed outcome is decoded;
// its stdout must hold exactly one JSON object carrying shape's
// discriminating field. The exit code is not consulted.
func Parse(outcome Outcome, shape Shape) ParseOutcome {
	completed, ok := outcome.(Completed)
	if !ok {
		return Empty{}
	}

	raw := bytes.TrimSpace(completed.Stdout)
	if len(raw) == 0 {
		return Empty{}
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc map[string]json.RawMessage
	if err := dec.Decode(&doc); err != nil {
		return Malformed{Raw: completed.Stdout, Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Malformed{Raw: completed.Stdout, Reason: "unexpected data after JSON document"}
	}
	if doc == nil {
		return Malformed{Raw: completed.Stdout, Reason: "document is not a JSON object"}
	}

	if shape.Discriminator != "" {
		v, ok := doc[shape.Discriminator]
		if !ok || string(v) == "null" {
			reason := fmt.Sprintf("missing %q field", shape.Discriminator)
			if msg := engineError(doc); msg != "" {
				reason = fmt.Sprintf("engine reported error: %s", msg)
			}
			return Malformed{Raw: completed.Stdout, Reason: reason}
		}
	}

	return Decoded{Document: json.RawMessage(raw)}
}

// engineError extracts the engine's own {"error": "..."} message, if any.
func engineError(doc map[string]json.RawMessage) string {
	v, ok := doc["error"]
	if !ok {
		return ""
	}
	var msg string
	if err := json.Unmarshal(v, &msg); err != nil {
		return string(v)
	}
	return msg
}
