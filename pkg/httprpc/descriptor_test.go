package httprpc

import (
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type user struct {
	ID   int    `json:"id"`
	Name string `json:"name,omitempty"`
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name    string
		method  Method
		wantErr bool
	}{
		{
			name:   "sync get",
			method: Method{Name: "getUser", Verb: GET, URL: "http://h/users/{id}", Params: []Param{PathParam("id")}, Returns: Returns[user]()},
		},
		{
			name:   "url key with default",
			method: Method{Name: "m", Verb: GET, URLKey: "svc.url", DefaultURL: "http://h", Returns: ReturnsText()},
		},
		{
			name:    "missing url",
			method:  Method{Name: "m", Verb: GET},
			wantErr: true,
		},
		{
			name:    "url and key",
			method:  Method{Name: "m", Verb: GET, URL: "http://h", URLKey: "k"},
			wantErr: true,
		},
		{
			name:    "default url without key",
			method:  Method{Name: "m", Verb: GET, URL: "http://h", DefaultURL: "http://d"},
			wantErr: true,
		},
		{
			name:    "empty name",
			method:  Method{Verb: GET, URL: "http://h"},
			wantErr: true,
		},
		{
			name:    "unknown verb",
			method:  Method{Name: "m", Verb: Verb(42), URL: "http://h"},
			wantErr: true,
		},
		{
			name:    "async returning a value",
			method:  Method{Name: "m", Verb: GET, URL: "http://h", Async: true, Returns: Returns[user]()},
			wantErr: true,
		},
		{
			name:    "sync returning a future",
			method:  Method{Name: "m", Verb: GET, URL: "http://h", Returns: ReturnsAsync[user]()},
			wantErr: true,
		},
		{
			name:   "async future",
			method: Method{Name: "m", Verb: GET, URL: "http://h", Async: true, Returns: ReturnsAsync[user]()},
		},
		{
			name:   "async callback",
			method: Method{Name: "m", Verb: GET, URL: "http://h", Async: true, Params: []Param{Field("a"), CallbackParam()}},
		},
		{
			name:    "callback not last",
			method:  Method{Name: "m", Verb: GET, URL: "http://h", Async: true, Params: []Param{CallbackParam(), Field("a")}},
			wantErr: true,
		},
		{
			name:    "callback on sync method",
			method:  Method{Name: "m", Verb: GET, URL: "http://h", Params: []Param{CallbackParam()}},
			wantErr: true,
		},
		{
			name:    "callback with future",
			method:  Method{Name: "m", Verb: GET, URL: "http://h", Async: true, Params: []Param{CallbackParam()}, Returns: ReturnsAsync[user]()},
			wantErr: true,
		},
		{
			name:    "two signing keys",
			method:  Method{Name: "m", Verb: POST, URL: "http://h", Params: []Param{SigningKey(), SigningKey()}},
			wantErr: true,
		},
		{
			name:    "unnamed field",
			method:  Method{Name: "m", Verb: GET, URL: "http://h", Params: []Param{{Role: RoleField}}},
			wantErr: true,
		},
		{
			name:    "form field on json method",
			method:  Method{Name: "m", Verb: POSTJSON, URL: "http://h", Params: []Param{Field("a")}},
			wantErr: true,
		},
		{
			name:   "query field on json method",
			method: Method{Name: "m", Verb: POSTJSON, URL: "http://h", Params: []Param{QueryField("a"), Body()}},
		},
		{
			name:    "two json bodies",
			method:  Method{Name: "m", Verb: POSTJSON, URL: "http://h", Params: []Param{Body(), Body()}},
			wantErr: true,
		},
		{
			name:   "json body and header body",
			method: Method{Name: "m", Verb: POSTJSON, URL: "http://h", Params: []Param{Body(), BodyHeaders()}},
		},
		{
			name:    "unknown role",
			method:  Method{Name: "m", Verb: GET, URL: "http://h", Params: []Param{{Name: "a", Role: Role(99)}}},
			wantErr: true,
		},
		{
			name:    "url flag on header",
			method:  Method{Name: "m", Verb: GET, URL: "http://h", Params: []Param{{Name: "a", Role: RoleHeader, InURL: true}}},
			wantErr: true,
		},
		{
			name:    "generic without type",
			method:  Method{Name: "m", Verb: GET, URL: "http://h", Returns: ReturnShape{Kind: ReturnGeneric}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Describe(tt.method)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrConfiguration)
				assert.Nil(t, d)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, d)
		})
	}
}

func TestDescriptorFlags(t *testing.T) {
	d, err := Describe(Method{
		Name:    "notify",
		Verb:    POST,
		URL:     "http://h/notify",
		Async:   true,
		Params:  []Param{Field("msg"), SigningKey(), CallbackParam()},
		Headers: map[string]string{"X-App": "demo"},
	})
	require.NoError(t, err)
	assert.True(t, d.IsAsync())
	assert.True(t, d.HasInlineCallback())
	assert.True(t, d.RequiresSignature())
	assert.Equal(t, ReturnVoid, d.ReturnShape().Kind)
	assert.Len(t, d.Params(), 2)
	assert.Equal(t, "notify", d.FullName())
	assert.Equal(t, DefaultSignatureHeader, d.signatureHeader)
	assert.Equal(t, DefaultTimestampKey, d.timestampKey)

	fire, err := Describe(Method{Name: "fire", Verb: GET, URL: "http://h", Async: true})
	require.NoError(t, err)
	assert.Equal(t, ReturnAsync, fire.ReturnShape().Kind)
	assert.Equal(t, reflect.TypeFor[Void](), fire.ReturnShape().Inner)
}

func TestParseVerb(t *testing.T) {
	for in, want := range map[string]Verb{"get": GET, "POST": POST, "post_json": POSTJSON, "POSTJSON": POSTJSON} {
		v, err := ParseVerb(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, v)
	}
	_, err := ParseVerb("PATCH")
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Equal(t, "POST", POSTJSON.HTTPMethod())
	assert.Equal(t, "POST_JSON", POSTJSON.String())
}

func TestService(t *testing.T) {
	svc := NewService("users", WithServiceHeaders(map[string]string{"X-App": "svc", "X-Tenant": "t1"}))

	d, err := svc.Declare(Method{
		Name:    "getUser",
		Verb:    GET,
		URL:     "http://h/users/{id}",
		Params:  []Param{PathParam("id")},
		Returns: Returns[user](),
		Headers: map[string]string{"X-App": "method"},
	})
	require.NoError(t, err)
	assert.Equal(t, "users.getUser", d.FullName())
	assert.Equal(t, map[string]string{"X-App": "method", "X-Tenant": "t1"}, d.headers)

	got, ok := svc.Lookup("getUser")
	require.True(t, ok)
	assert.Same(t, d, got)

	_, err = svc.Declare(Method{Name: "getUser", Verb: GET, URL: "http://h"})
	assert.ErrorIs(t, err, ErrConfiguration)

	svc.MustDeclare(Method{Name: "addUser", Verb: POSTJSON, URL: "http://h/users", Params: []Param{Body()}})
	methods := svc.Methods()
	require.Len(t, methods, 2)
	assert.Equal(t, "addUser", methods[0].Name())
	assert.Equal(t, "getUser", methods[1].Name())

	assert.Panics(t, func() { svc.MustDeclare(Method{Name: "bad", Verb: GET}) })
}

func TestServiceConcurrentDeclare(t *testing.T) {
	svc := NewService("svc")
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Declare(Method{Name: "same", Verb: GET, URL: "http://h"}); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, succeeded)
}
