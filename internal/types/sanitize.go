package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// The document store is intolerant of missing containers: a persisted
// template or instance must always carry concrete (possibly empty) section
// trees so that every reader sees the same shape. Sanitize walks the closed
// set of document types and normalizes nil containers in place before a
// write. Unknown fields are handled on the read side by the strict decoders.

// SanitizeTemplate normalizes a template for persistence.
func SanitizeTemplate(m *Template) {
	if m.Sections == nil {
		m.Sections = []*Section{}
	}
	sanitizeSections(m.Sections)
}

// SanitizeInstance normalizes an instance for persistence.
func SanitizeInstance(in *Instance) {
	if in.Sections == nil {
		in.Sections = []*Section{}
	}
	sanitizeSections(in.Sections)
	if in.ActiveUsers == nil {
		in.ActiveUsers = map[string]PresenceInfo{}
	}
}

// SanitizeUser normalizes a user document for persistence.
func SanitizeUser(u *User) {
	if u.ActionSet == nil {
		u.ActionSet = []ActionSetItem{}
	}
	if u.Scratchpad == nil {
		u.Scratchpad = []ScratchpadItem{}
	}
}

func sanitizeSections(sections []*Section) {
	for _, sec := range sections {
		if sec.Subsections == nil {
			sec.Subsections = []*Subsection{}
		}
		for _, sub := range sec.Subsections {
			if sub.Tasks == nil {
				sub.Tasks = []*Task{}
			}
		}
	}
}

// MarshalTemplate sanitizes and encodes a template.
func MarshalTemplate(m *Template) ([]byte, error) {
	SanitizeTemplate(m)
	return json.Marshal(m)
}

// MarshalInstance sanitizes and encodes an instance.
func MarshalInstance(in *Instance) ([]byte, error) {
	SanitizeInstance(in)
	return json.Marshal(in)
}

// MarshalUser sanitizes and encodes a user document.
func MarshalUser(u *User) ([]byte, error) {
	SanitizeUser(u)
	return json.Marshal(u)
}

// DecodeTemplate parses a template document, rejecting unknown fields so a
// shape drift in the store surfaces as an error instead of silently passing
// through the merge.
func DecodeTemplate(data []byte) (*Template, error) {
	var m Template
	if err := strictUnmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode template: %w", err)
	}
	return &m, nil
}

// DecodeInstance parses an instance document, rejecting unknown fields.
func DecodeInstance(data []byte) (*Instance, error) {
	var in Instance
	if err := strictUnmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("decode instance: %w", err)
	}
	return &in, nil
}

// DecodeUser parses a user document, rejecting unknown fields.
func DecodeUser(data []byte) (*User, error) {
	var u User
	if err := strictUnmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &u, nil
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
