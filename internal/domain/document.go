package domain

import (
	"bytes"
	"encoding/json"
)

// Document is an opaque structured payload (step input/output, media
// metadata, product articles). It is stored and returned verbatim; its
// internal shape is never inspected.
type Document []byte

// MarshalJSON emits the stored bytes, or null when nothing was stored.
func (d Document) MarshalJSON() ([]byte, error) {
	if len(d) == 0 {
		return []byte("null"), nil
	}
	return d, nil
}

// UnmarshalJSON keeps a copy of the raw value. A literal null leaves the
// document empty so callers can tell "absent" from "{}".
func (d *Document) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*d = nil
		return nil
	}
	*d = append((*d)[:0], trimmed...)
	return nil
}

// Present reports whether a value was supplied.
func (d Document) Present() bool {
	return len(d) > 0
}

// Bytes returns the stored payload or nil, suitable for a jsonb parameter.
func (d Document) Bytes() []byte {
	if len(d) == 0 {
		return nil
	}
	return []byte(d)
}

// DocumentOf marshals v into a Document. Marshal failures yield an empty document.
func DocumentOf(v any) Document {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return Document(raw)
}

// EmptyObject is the stored default for documents that were never reported.
var EmptyObject = Document(`{}`)
