package httprpc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSigner struct {
	canonical string
	key       string
	err       error
}

func (s *recordingSigner) Sign(canonical, key string) (string, error) {
	s.canonical = canonical
	s.key = key
	if s.err != nil {
		return "", s.err
	}
	return "sig:" + key, nil
}

func TestCanonicalForm(t *testing.T) {
	assert.Equal(t, "a=1&b=2&c=", canonicalForm(map[string]string{"c": "", "b": "2", "a": "1"}, ""))
	assert.Equal(t, "a=1&1700000000", canonicalForm(map[string]string{"a": "1"}, "1700000000"))
	assert.Equal(t, "1700000000", canonicalForm(nil, "1700000000"))
}

func TestCanonicalJSON(t *testing.T) {
	got, err := canonicalJSON([]byte(`{"b":1,"a":"x"}`), false, "99")
	require.NoError(t, err)
	assert.Equal(t, `{"b":1,"a":"x"}&99`, got)

	got, err = canonicalJSON([]byte(`{"b":1, "a":"x"}`), true, "")
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":1}`, got)

	_, err = canonicalJSON([]byte(`{`), true, "")
	assert.Error(t, err)
}

func TestSignRequest(t *testing.T) {
	formMethod := MustDescribe(Method{
		Name: "pay", Verb: POST, URL: "http://h",
		Params:          []Param{Field("b"), Field("a"), HeaderParam("stamp"), SigningKey()},
		SignatureHeader: "X-Sign",
	})

	t.Run("form", func(t *testing.T) {
		st, err := newBinder(formMethod, NewJSONSerializer()).bind([]any{"2", "1", "1700000000", "k1"})
		require.NoError(t, err)
		s := &recordingSigner{}
		require.NoError(t, signRequest(formMethod, s, st, nil))
		assert.Equal(t, "a=1&b=2&1700000000", s.canonical)
		assert.Equal(t, "k1", s.key)
		assert.Equal(t, "sig:k1", st.headers["X-Sign"])
	})

	t.Run("no key skips signing", func(t *testing.T) {
		st, err := newBinder(formMethod, NewJSONSerializer()).bind([]any{"2", "1", nil, nil})
		require.NoError(t, err)
		require.NoError(t, signRequest(formMethod, nil, st, nil))
		assert.NotContains(t, st.headers, "X-Sign")
	})

	t.Run("missing signer", func(t *testing.T) {
		st, err := newBinder(formMethod, NewJSONSerializer()).bind([]any{"2", "1", nil, "k"})
		require.NoError(t, err)
		assert.ErrorIs(t, signRequest(formMethod, nil, st, nil), ErrConfiguration)
	})

	t.Run("signer failure", func(t *testing.T) {
		st, err := newBinder(formMethod, NewJSONSerializer()).bind([]any{"2", "1", nil, "k"})
		require.NoError(t, err)
		boom := errors.New("bad key")
		err = signRequest(formMethod, &recordingSigner{err: boom}, st, nil)
		assert.ErrorIs(t, err, ErrSigning)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("json", func(t *testing.T) {
		d := MustDescribe(Method{
			Name: "create", Verb: POSTJSON, URL: "http://h",
			Params:        []Param{Body(), SigningKey()},
			Headers:       map[string]string{"stamp": "5"},
			CanonicalJSON: true,
		})
		st, err := newBinder(d, NewJSONSerializer()).bind([]any{item{SKU: "a", Qty: 1}, "k"})
		require.NoError(t, err)
		s := &recordingSigner{}
		require.NoError(t, signRequest(d, s, st, []byte(`{"sku":"a","qty":1}`)))
		assert.Equal(t, `{"qty":1,"sku":"a"}&5`, s.canonical)
		assert.Equal(t, "sig:k", st.headers[DefaultSignatureHeader])
	})
}
