package httprpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveURL(t *testing.T) {
	cfg := ConfigFunc(func(key string) (string, bool) {
		if key == "user.url" {
			return " http://cfg/users/{id} ", true
		}
		return "", false
	})

	tests := []struct {
		name string
		m    Method
		args []any
		want string
	}{
		{
			name: "template substitution leaves other placeholders",
			m:    Method{Name: "m", Verb: GET, URL: "http://h/{a}/{b}", Params: []Param{PathParam("a")}},
			args: []any{"x y"},
			want: "http://h/x%20y/{b}",
		},
		{
			name: "nil path value keeps placeholder",
			m:    Method{Name: "m", Verb: GET, URL: "http://h/{a}", Params: []Param{PathParam("a")}},
			args: []any{nil},
			want: "http://h/{a}",
		},
		{
			name: "config key",
			m:    Method{Name: "m", Verb: GET, URLKey: "user.url", Params: []Param{PathParam("id")}},
			args: []any{42},
			want: "http://cfg/users/42",
		},
		{
			name: "default url",
			m:    Method{Name: "m", Verb: GET, URLKey: "missing", DefaultURL: "http://default"},
			want: "http://default",
		},
		{
			name: "url fields appended in order",
			m:    Method{Name: "m", Verb: POST, URL: "http://h/p", Params: []Param{QueryField("b"), Field("form"), QueryField("a")}},
			args: []any{"1 2", "f", "&"},
			want: "http://h/p?b=1+2&a=%26",
		},
		{
			name: "existing query",
			m:    Method{Name: "m", Verb: GET, URL: "http://h/p?x=1", Params: []Param{QueryField("y")}},
			args: []any{"2"},
			want: "http://h/p?x=1&y=2",
		},
		{
			name: "trailing question mark",
			m:    Method{Name: "m", Verb: GET, URL: "http://h/p?", Params: []Param{QueryField("y")}},
			args: []any{"2"},
			want: "http://h/p?y=2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Describe(tt.m)
			require.NoError(t, err)
			st, err := newBinder(d, NewJSONSerializer()).bind(tt.args)
			require.NoError(t, err)
			got, err := resolveURL(d, cfg, st)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveURLMissing(t *testing.T) {
	d := MustDescribe(Method{Name: "m", Verb: GET, URLKey: "absent"})
	st, err := newBinder(d, NewJSONSerializer()).bind(nil)
	require.NoError(t, err)

	_, err = resolveURL(d, nil, st)
	assert.ErrorIs(t, err, ErrMissingEndpointConfiguration)

	_, err = resolveURL(d, ConfigFunc(func(string) (string, bool) { return "", true }), st)
	assert.ErrorIs(t, err, ErrMissingEndpointConfiguration)
}
