package httprpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type auditInfo struct {
	Actor *string `json:"actor"`
}

type tagged struct {
	auditInfo
	ID      int     `json:"id"`
	Note    *string `json:"note,omitempty"`
	Extra   any     `json:"extra"`
	Skipped string  `json:"-"`
}

func TestJSONSerializerOmitsNil(t *testing.T) {
	s := NewJSONSerializer()

	out, err := s.Marshal(tagged{ID: 1, Skipped: "x"})
	require.NoError(t, err)
	assert.Equal(t, `{"id":1}`, string(out))

	actor := "bob"
	out, err = s.Marshal(tagged{auditInfo: auditInfo{Actor: &actor}, ID: 2, Extra: map[string]int{"n": 1}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"actor":"bob","id":2,"extra":{"n":1}}`, string(out))

	// maps keep explicit nil values, only struct fields are dropped
	out, err = s.Marshal(map[string]any{"a": nil})
	require.NoError(t, err)
	assert.Equal(t, `{"a":null}`, string(out))

	var back tagged
	require.NoError(t, s.Unmarshal([]byte(`{"id":3,"actor":"eve","unknown":true}`), &back))
	assert.Equal(t, 3, back.ID)
	require.NotNil(t, back.Actor)
	assert.Equal(t, "eve", *back.Actor)
}
