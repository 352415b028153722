package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeInstanceFillsContainers(t *testing.T) {
	in := &Instance{ID: "ins-1", Sections: []*Section{{ID: "sec-1", Subsections: []*Subsection{{ID: "sub-1"}}}}}
	data, err := MarshalInstance(in)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "sections")
	assert.Contains(t, raw, "activeUsers")
	assert.JSONEq(t, `{}`, string(raw["activeUsers"]))

	// nil Tasks on the subsection becomes an empty array, not null
	assert.NotContains(t, string(data), `"tasks":null`)
}

func TestSanitizeUserFillsContainers(t *testing.T) {
	u := &User{ID: "u1", Name: "Ana"}
	data, err := MarshalUser(u)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"actionSet":[]`)
	assert.Contains(t, string(data), `"scratchpad":[]`)
}

func TestDecodeRoundTrip(t *testing.T) {
	m := sampleTemplate()
	data, err := MarshalTemplate(m)
	require.NoError(t, err)

	got, err := DecodeTemplate(data)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)
	assert.Equal(t, m.Version, got.Version)
	require.NotNil(t, got.FindTask("t1"))
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := DecodeTemplate([]byte(`{"id":"tpl-1","title":"x","version":1,"bogus":true}`))
	require.Error(t, err)

	_, err = DecodeInstance([]byte(`{"id":"ins-1","unexpected":{}}`))
	require.Error(t, err)

	_, err = DecodeUser([]byte(`{"id":"u1","legacyField":"y"}`))
	require.Error(t, err)
}
