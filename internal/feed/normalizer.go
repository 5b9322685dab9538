package feed

import (
	"bytes"
	"encoding/json"

	"github.com/BrandonHuang23/odds-dashboard/internal/models"
)

// ParseFrame decodes one raw feed frame into logical messages.
//
// The feed sends either a single JSON object per frame or a JSON array of
// objects (batching, common during the initial burst where a single frame
// can carry 100+ messages). Non-object elements inside a batch are dropped
// silently; a frame that is not valid JSON at all yields a DecodeError.
func ParseFrame(data []byte) ([]models.FeedMessage, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &DecodeError{Err: errEmptyFrame}
	}

	switch trimmed[0] {
	case '{':
		var msg models.FeedMessage
		if err := json.Unmarshal(trimmed, &msg); err != nil {
			return nil, &DecodeError{Err: err}
		}
		return []models.FeedMessage{msg}, nil

	case '[':
		var elements []json.RawMessage
		if err := json.Unmarshal(trimmed, &elements); err != nil {
			return nil, &DecodeError{Err: err}
		}
		messages := make([]models.FeedMessage, 0, len(elements))
		for _, element := range elements {
			element = bytes.TrimSpace(element)
			if len(element) == 0 || element[0] != '{' {
				continue
			}
			var msg models.FeedMessage
			if err := json.Unmarshal(element, &msg); err != nil {
				continue
			}
			messages = append(messages, msg)
		}
		return messages, nil

	default:
		// A bare scalar is valid JSON but carries no messages.
		if json.Valid(trimmed) {
			return nil, nil
		}
		return nil, &DecodeError{Err: errNotJSON}
	}
}

var (
	errEmptyFrame = jsonError("empty frame")
	errNotJSON    = jsonError("frame is not a JSON value")
)

type jsonError string

func (e jsonError) Error() string { return string(e) }
