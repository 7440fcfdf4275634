package platelog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// jsonObjectWriter builds a JSON object whose keys keep the order they were
// written in, so that stored lines stay stable and diff-friendly.
//
// Methods chain; the first error stops the writing and is returned by
// MarshalJSON. Its zero value is ready to use.
type jsonObjectWriter struct {
	members bytes.Buffer
	err     error
}

// member writes one raw "key":value pair, or raw object members.
func (w *jsonObjectWriter) member(raw ...[]byte) {
	if w.members.Len() > 0 {
		w.members.WriteByte(',')
	}
	for _, b := range raw {
		w.members.Write(b)
	}
}

// Embed merges the members of a raw JSON object into the object being built.
func (w *jsonObjectWriter) Embed(object []byte) *jsonObjectWriter {
	if w.err != nil {
		return w
	}
	object = bytes.TrimSpace(object)
	inner, ok := bytes.CutPrefix(object, []byte("{"))
	if ok {
		inner, ok = bytes.CutSuffix(inner, []byte("}"))
	}
	if !ok {
		w.err = fmt.Errorf("cannot embed %q: not a JSON object", object)
		return w
	}
	if inner = bytes.TrimSpace(inner); len(inner) > 0 {
		w.member(inner)
	}
	return w
}

// EmbedFrom marshals v, which must encode as an object, and merges its members.
func (w *jsonObjectWriter) EmbedFrom(v any) *jsonObjectWriter {
	if w.err != nil {
		return w
	}
	object, err := json.Marshal(v)
	if err != nil {
		w.err = fmt.Errorf("cannot embed %T: %w", v, err)
		return w
	}
	return w.Embed(object)
}

// Append writes key with the JSON encoding of value.
func (w *jsonObjectWriter) Append(key string, value any) *jsonObjectWriter {
	if w.err != nil {
		return w
	}
	v, err := json.Marshal(value)
	if err != nil {
		w.err = fmt.Errorf("cannot write %q: %w", key, err)
		return w
	}
	k, _ := json.Marshal(key)
	w.member(k, []byte{':'}, v)
	return w
}

// Optional is Append, except that zero values are skipped.
func (w *jsonObjectWriter) Optional(key string, value any) *jsonObjectWriter {
	if v := reflect.ValueOf(value); !v.IsValid() || v.IsZero() {
		return w
	}
	return w.Append(key, value)
}

// MarshalJSON closes the object.
func (w *jsonObjectWriter) MarshalJSON() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	out := make([]byte, 0, w.members.Len()+2)
	out = append(out, '{')
	out = append(out, w.members.Bytes()...)
	return append(out, '}'), nil
}
