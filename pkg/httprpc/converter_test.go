package httprpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type token string

func TestConvertResponse(t *testing.T) {
	s := NewJSONSerializer()

	t.Run("void", func(t *testing.T) {
		d := MustDescribe(Method{Name: "m", Verb: GET, URL: "http://h"})
		v, err := convertResponse[Void](d, s, []byte("ignored"))
		require.NoError(t, err)
		assert.Equal(t, Void{}, v)
	})

	t.Run("text", func(t *testing.T) {
		d := MustDescribe(Method{Name: "m", Verb: GET, URL: "http://h", Returns: ReturnsText()})
		v, err := convertResponse[string](d, s, []byte("not json"))
		require.NoError(t, err)
		assert.Equal(t, "not json", v)

		d = MustDescribe(Method{Name: "m", Verb: GET, URL: "http://h", Returns: Returns[token]()})
		tok, err := convertResponse[token](d, s, []byte("abc"))
		require.NoError(t, err)
		assert.Equal(t, token("abc"), tok)
	})

	t.Run("generic", func(t *testing.T) {
		d := MustDescribe(Method{Name: "m", Verb: GET, URL: "http://h", Returns: Returns[user]()})
		v, err := convertResponse[user](d, s, []byte(`{"id":42,"name":"bob","extra":true}`))
		require.NoError(t, err)
		assert.Equal(t, user{ID: 42, Name: "bob"}, v)

		list := MustDescribe(Method{Name: "m", Verb: GET, URL: "http://h", Returns: Returns[[]user]()})
		users, err := convertResponse[[]user](list, s, []byte(`[{"id":1},{"id":2}]`))
		require.NoError(t, err)
		assert.Equal(t, []user{{ID: 1}, {ID: 2}}, users)
	})

	t.Run("async inner type", func(t *testing.T) {
		d := MustDescribe(Method{Name: "m", Verb: GET, URL: "http://h", Async: true, Returns: ReturnsAsync[map[string]int]()})
		v, err := convertResponse[map[string]int](d, s, []byte(`{"a":1}`))
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"a": 1}, v)
	})

	t.Run("bytes", func(t *testing.T) {
		d := MustDescribe(Method{Name: "m", Verb: GET, URL: "http://h", Returns: Returns[[]byte]()})
		v, err := convertResponse[[]byte](d, s, []byte{0x01, 0x02})
		require.NoError(t, err)
		assert.Equal(t, []byte{0x01, 0x02}, v)
	})

	t.Run("result path", func(t *testing.T) {
		body := []byte(`{"code":0,"data":{"user":{"id":7,"name":"eve"}},"msg":"ok"}`)

		d := MustDescribe(Method{Name: "m", Verb: GET, URL: "http://h", Returns: Returns[user](), ResultPath: "data.user"})
		v, err := convertResponse[user](d, s, body)
		require.NoError(t, err)
		assert.Equal(t, user{ID: 7, Name: "eve"}, v)

		msg := MustDescribe(Method{Name: "m", Verb: GET, URL: "http://h", Returns: ReturnsText(), ResultPath: "msg"})
		text, err := convertResponse[string](msg, s, body)
		require.NoError(t, err)
		assert.Equal(t, "ok", text)

		missing := MustDescribe(Method{Name: "m", Verb: GET, URL: "http://h", Returns: Returns[user](), ResultPath: "data.nope"})
		_, err = convertResponse[user](missing, s, body)
		assert.ErrorIs(t, err, ErrResponseDecode)
	})

	t.Run("malformed", func(t *testing.T) {
		d := MustDescribe(Method{Name: "m", Verb: GET, URL: "http://h", Returns: Returns[user]()})
		_, err := convertResponse[user](d, s, []byte(`{"id":"x"`))
		assert.ErrorIs(t, err, ErrResponseDecode)

		_, err = convertResponse[user](d, s, nil)
		assert.ErrorIs(t, err, ErrResponseDecode)
	})
}

func TestCheckResultType(t *testing.T) {
	d := MustDescribe(Method{Name: "m", Verb: GET, URL: "http://h", Returns: Returns[user]()})
	assert.NoError(t, checkResultType[user](d))
	assert.ErrorIs(t, checkResultType[*user](d), ErrConfiguration)

	void := MustDescribe(Method{Name: "m", Verb: GET, URL: "http://h"})
	assert.NoError(t, checkResultType[Void](void))
	assert.ErrorIs(t, checkResultType[string](void), ErrConfiguration)
}
