// Package transcript encodes query exchanges to and from the JSON column a
// thread stores them in. Decoding is strict: threads written by older or
// foreign code must fail loudly rather than replay a half-understood history.
package transcript

import (
	"bytes"
	"encoding/json"

	"gorm.io/datatypes"

	"github.com/SarthakJariwala/sqlsaber-web/engine"
	"github.com/SarthakJariwala/sqlsaber-web/errors"
)

func Encode(conversations []engine.Conversation) (datatypes.JSON, error) {
	if conversations == nil {
		conversations = []engine.Conversation{}
	}

	content, err := json.Marshal(conversations)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode transcript")
	}

	return datatypes.JSON(content), nil
}

func Decode(content datatypes.JSON) ([]engine.Conversation, error) {
	if len(content) == 0 {
		return nil, nil
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(content, &elements); err != nil {
		return nil, errors.Wrapf(errors.ErrMalformedHistory, "content is not a list")
	}

	conversations := make([]engine.Conversation, 0, len(elements))
	for i, element := range elements {
		var conv engine.Conversation
		decoder := json.NewDecoder(bytes.NewReader(element))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&conv); err != nil {
			return nil, errors.Wrapf(errors.ErrMalformedHistory, "element %d: %v", i, err)
		}

		switch conv.Role {
		case engine.RoleUser, engine.RoleAssistant:
		default:
			return nil, errors.Wrapf(errors.ErrMalformedHistory, "element %d: unknown role %q", i, conv.Role)
		}

		conversations = append(conversations, conv)
	}

	return conversations, nil
}
