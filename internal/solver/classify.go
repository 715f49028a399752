package solver

import (
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/piwi3910/slabcut-remote/internal/model"
)

// FallbackMessage is shown when a failure carries nothing more specific.
const FallbackMessage = "could not reach the optimization service"

// maxMessageRunes bounds raw response text shown to the user.
const maxMessageRunes = 300

// Classify turns any failure from a submit into the single message shown to
// the user. It returns "" for a nil error and never fails itself.
func Classify(err error) string {
	if err == nil {
		return ""
	}

	var verr *model.ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}

	var herr *HTTPError
	if errors.As(err, &herr) {
		if msg := BodyMessage(herr.Body); msg != "" {
			return msg
		}
		return herr.Error()
	}

	var merr *MalformedResponseError
	if errors.As(err, &merr) {
		return merr.Error()
	}

	var terr *TransportError
	if errors.As(err, &terr) {
		if terr.Err != nil {
			if msg := strings.TrimSpace(terr.Err.Error()); msg != "" {
				return msg
			}
		}
		return FallbackMessage
	}

	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return FallbackMessage
}

// BodyMessage extracts a message from an error response body: the JSON
// "message" field, then the JSON "error" field (a string or an object with
// its own "message"), then the trimmed raw text. It returns "" when the body
// has nothing usable.
func BodyMessage(body []byte) string {
	var fields map[string]any
	if json.Unmarshal(body, &fields) == nil {
		if msg := stringField(fields, "message"); msg != "" {
			return msg
		}
		if msg := stringField(fields, "error"); msg != "" {
			return msg
		}
		if nested, ok := fields["error"].(map[string]any); ok {
			if msg := stringField(nested, "message"); msg != "" {
				return msg
			}
		}
	}
	return truncate(strings.TrimSpace(string(body)), maxMessageRunes)
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}
