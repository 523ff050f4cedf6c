package httprpc

import (
	"fmt"
	"maps"
	"reflect"
	"strings"
	"time"
)

// Verb selects how the bound parameters are submitted.
type Verb int

const (
	// GET encodes the parameter map as the query string.
	GET Verb = iota
	// POST submits the parameter map as an url-encoded form.
	POST
	// POSTJSON submits the body object as JSON.
	POSTJSON
)

func (v Verb) String() string {
	switch v {
	case GET:
		return "GET"
	case POST:
		return "POST"
	case POSTJSON:
		return "POST_JSON"
	}
	return fmt.Sprintf("Verb(%d)", int(v))
}

// HTTPMethod returns the HTTP method used on the wire.
func (v Verb) HTTPMethod() string {
	if v == GET {
		return "GET"
	}
	return "POST"
}

// ParseVerb parses GET, POST and POST_JSON (also POSTJSON), case-insensitively.
func ParseVerb(s string) (Verb, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "GET":
		return GET, nil
	case "POST":
		return POST, nil
	case "POST_JSON", "POSTJSON":
		return POSTJSON, nil
	}
	return 0, ErrConfiguration.Msg(fmt.Sprintf("unknown verb %q", s))
}

// Role is the part a parameter plays in the request.
type Role int

const (
	// RoleURLPath substitutes the {name} placeholder of the URL.
	RoleURLPath Role = iota + 1
	// RoleField binds a query parameter (GET) or form field (POST).
	RoleField
	// RoleHeader binds a request header.
	RoleHeader
	// RoleBodyObject contributes every field of a model: flattened into the form for GET
	// and POST, passed through unchanged as the JSON body for POSTJSON.
	RoleBodyObject
	// RoleSigningInput carries the private key used to sign the request.
	RoleSigningInput
	// RoleCallback marks the trailing completion sink of an async method.
	RoleCallback
)

func (r Role) String() string {
	switch r {
	case RoleURLPath:
		return "URL_PATH"
	case RoleField:
		return "QUERY_OR_BODY_FIELD"
	case RoleHeader:
		return "HEADER"
	case RoleBodyObject:
		return "BODY_OBJECT"
	case RoleSigningInput:
		return "SIGNING_INPUT"
	case RoleCallback:
		return "CALLBACK"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// Param declares one method parameter.
type Param struct {
	Name     string // wire key: placeholder, field or header name
	Role     Role
	InURL    bool   // RoleField only: always appended to the URL query string
	Header   bool   // RoleBodyObject only: fields become request headers
	Format   string // Go time layout for date arguments
	Validate string // go-playground/validator tag checked against the argument
}

// PathParam declares a {name} placeholder substitution.
func PathParam(name string) Param { return Param{Name: name, Role: RoleURLPath} }

// Field declares a query parameter or form field.
func Field(name string) Param { return Param{Name: name, Role: RoleField} }

// QueryField declares a field that is always sent in the URL query string.
func QueryField(name string) Param { return Param{Name: name, Role: RoleField, InURL: true} }

// DateField declares a date field formatted with layout.
func DateField(name, layout string) Param {
	return Param{Name: name, Role: RoleField, Format: layout}
}

// HeaderParam declares a request header.
func HeaderParam(name string) Param { return Param{Name: name, Role: RoleHeader} }

// Body declares a body object.
func Body() Param { return Param{Role: RoleBodyObject} }

// BodyHeaders declares a model whose fields are sent as request headers.
func BodyHeaders() Param { return Param{Role: RoleBodyObject, Header: true} }

// SigningKey declares the private key argument of a signed method.
func SigningKey() Param { return Param{Role: RoleSigningInput} }

// CallbackParam declares the trailing inline callback of an async method.
func CallbackParam() Param { return Param{Role: RoleCallback} }

// WithValidation returns a copy of p checked with the given validator tag.
func (p Param) WithValidation(tag string) Param {
	p.Validate = tag
	return p
}

// WithFormat returns a copy of p formatting dates with layout.
func (p Param) WithFormat(layout string) Param {
	p.Format = layout
	return p
}

// Named returns a copy of p with the given wire name.
func (p Param) Named(name string) Param {
	p.Name = name
	return p
}

// ReturnKind classifies the declared return type.
type ReturnKind int

const (
	ReturnVoid ReturnKind = iota
	ReturnScalar
	ReturnGeneric
	ReturnAsync
)

func (k ReturnKind) String() string {
	switch k {
	case ReturnVoid:
		return "VOID"
	case ReturnScalar:
		return "SCALAR"
	case ReturnGeneric:
		return "GENERIC"
	case ReturnAsync:
		return "ASYNC_WRAPPER"
	}
	return fmt.Sprintf("ReturnKind(%d)", int(k))
}

// ReturnShape is the declared return type. Inner is the decoded type; for ReturnAsync it is
// the type the future resolves to.
type ReturnShape struct {
	Kind  ReturnKind
	Inner reflect.Type
}

var textType = reflect.TypeFor[string]()

// ReturnsVoid declares a method without a result.
func ReturnsVoid() ReturnShape { return ReturnShape{Kind: ReturnVoid} }

// ReturnsText declares a method returning the raw response text.
func ReturnsText() ReturnShape { return ReturnShape{Kind: ReturnScalar, Inner: textType} }

// Returns declares a method whose response is decoded into T.
func Returns[T any]() ReturnShape {
	return ReturnShape{Kind: ReturnGeneric, Inner: reflect.TypeFor[T]()}
}

// ReturnsAsync declares an async method returning a *Future[T].
func ReturnsAsync[T any]() ReturnShape {
	return ReturnShape{Kind: ReturnAsync, Inner: reflect.TypeFor[T]()}
}

func (s ReturnShape) String() string {
	if s.Inner == nil {
		return s.Kind.String()
	}
	return fmt.Sprintf("%s(%s)", s.Kind, s.Inner)
}

// isText reports whether the response is handed back as raw text.
func (s ReturnShape) isText() bool {
	return s.Kind != ReturnVoid && s.Inner != nil && s.Inner.Kind() == reflect.String
}

// KeyCase rewrites the keys of flattened body objects.
type KeyCase int

const (
	KeyCaseAsIs KeyCase = iota
	KeyCaseSnake
	KeyCaseLowerCamel
)

// Default header names used by signed methods.
const (
	DefaultSignatureHeader = "sign"
	DefaultTimestampKey    = "stamp"
)

// Method is the declaration of one remote method.
type Method struct {
	Name       string
	Verb       Verb
	URL        string // URL template, may contain {name} placeholders
	URLKey     string // configuration key resolving to the URL template
	DefaultURL string // used when URLKey is not configured
	Async      bool
	Params     []Param
	Returns    ReturnShape

	Headers         map[string]string // static request headers
	SignatureHeader string            // header receiving the signature, default "sign"
	TimestampKey    string            // header whose value is appended to the signing input, default "stamp"
	CanonicalJSON   bool              // canonicalize JSON bodies (RFC 8785) before signing
	KeyCase         KeyCase           // key rewriting for flattened body objects
	ResultPath      string            // gjson path selecting the result inside the response
	Timeout         time.Duration     // per-call timeout, zero uses the client default
}

// MethodDescriptor is the validated, immutable form of a Method.
type MethodDescriptor struct {
	service           string
	name              string
	verb              Verb
	urlTemplate       string
	urlConfigKey      string
	defaultURL        string
	isAsync           bool
	hasInlineCallback bool
	requiresSignature bool
	returns           ReturnShape

	params          []Param // binding parameters, callback excluded
	headers         map[string]string
	signatureHeader string
	timestampKey    string
	canonicalJSON   bool
	keyCase         KeyCase
	resultPath      string
	timeout         time.Duration
}

func (d *MethodDescriptor) Name() string             { return d.name }
func (d *MethodDescriptor) Service() string          { return d.service }
func (d *MethodDescriptor) Verb() Verb               { return d.verb }
func (d *MethodDescriptor) URLTemplate() string      { return d.urlTemplate }
func (d *MethodDescriptor) URLConfigKey() string     { return d.urlConfigKey }
func (d *MethodDescriptor) DefaultURL() string       { return d.defaultURL }
func (d *MethodDescriptor) IsAsync() bool            { return d.isAsync }
func (d *MethodDescriptor) HasInlineCallback() bool  { return d.hasInlineCallback }
func (d *MethodDescriptor) RequiresSignature() bool  { return d.requiresSignature }
func (d *MethodDescriptor) ReturnShape() ReturnShape { return d.returns }
func (d *MethodDescriptor) Timeout() time.Duration   { return d.timeout }

// Params returns a copy of the binding parameters. The inline callback is not included.
func (d *MethodDescriptor) Params() []Param {
	return append([]Param(nil), d.params...)
}

// FullName returns service.method, or the method name for standalone descriptors.
func (d *MethodDescriptor) FullName() string {
	if d.service == "" {
		return d.name
	}
	return d.service + "." + d.name
}

// Describe validates m and returns its descriptor.
func Describe(m Method) (*MethodDescriptor, error) {
	return describe("", nil, m)
}

// MustDescribe is like Describe but panics on an invalid declaration. It is intended for
// package-level declarations.
func MustDescribe(m Method) *MethodDescriptor {
	d, err := Describe(m)
	if err != nil {
		panic(err)
	}
	return d
}

func describe(service string, serviceHeaders map[string]string, m Method) (*MethodDescriptor, error) {
	fail := func(format string, args ...any) (*MethodDescriptor, error) {
		return nil, ErrConfiguration.Msg(fmt.Sprintf("%s: ", m.Name) + fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(m.Name) == "" {
		return nil, ErrConfiguration.Msg("method name is required")
	}
	if m.Verb != GET && m.Verb != POST && m.Verb != POSTJSON {
		return fail("unknown verb %s", m.Verb)
	}
	if m.URL == "" && m.URLKey == "" {
		return fail("either a url or a url key is required")
	}
	if m.URL != "" && m.URLKey != "" {
		return fail("url and url key are mutually exclusive")
	}
	if m.DefaultURL != "" && m.URLKey == "" {
		return fail("a default url requires a url key")
	}

	switch m.Returns.Kind {
	case ReturnVoid:
	case ReturnScalar, ReturnGeneric, ReturnAsync:
		if m.Returns.Inner == nil {
			return fail("return shape %s requires a result type", m.Returns.Kind)
		}
	default:
		return fail("unknown return shape %s", m.Returns.Kind)
	}
	if m.Async && m.Returns.Kind != ReturnVoid && m.Returns.Kind != ReturnAsync {
		return fail("async methods must return void or a future, not %s", m.Returns)
	}
	if !m.Async && m.Returns.Kind == ReturnAsync {
		return fail("only async methods may return a future")
	}

	d := &MethodDescriptor{
		service:         service,
		name:            m.Name,
		verb:            m.Verb,
		urlTemplate:     m.URL,
		urlConfigKey:    m.URLKey,
		defaultURL:      m.DefaultURL,
		isAsync:         m.Async,
		returns:         m.Returns,
		headers:         make(map[string]string, len(serviceHeaders)+len(m.Headers)),
		signatureHeader: m.SignatureHeader,
		timestampKey:    m.TimestampKey,
		canonicalJSON:   m.CanonicalJSON,
		keyCase:         m.KeyCase,
		resultPath:      m.ResultPath,
		timeout:         m.Timeout,
	}
	if d.signatureHeader == "" {
		d.signatureHeader = DefaultSignatureHeader
	}
	if d.timestampKey == "" {
		d.timestampKey = DefaultTimestampKey
	}
	maps.Copy(d.headers, serviceHeaders)
	maps.Copy(d.headers, m.Headers)

	jsonBodies := 0
	for i, p := range m.Params {
		switch p.Role {
		case RoleURLPath, RoleField, RoleHeader:
			if p.Name == "" {
				return fail("parameter %d (%s) requires a name", i, p.Role)
			}
			if p.Role == RoleField && m.Verb == POSTJSON && !p.InURL {
				return fail("parameter %q: form fields are not supported for %s, use a query field", p.Name, m.Verb)
			}
		case RoleBodyObject:
			if m.Verb == POSTJSON && !p.Header {
				jsonBodies++
				if jsonBodies > 1 {
					return fail("%s accepts a single body object", m.Verb)
				}
			}
		case RoleSigningInput:
			if d.requiresSignature {
				return fail("only one signing key parameter is allowed")
			}
			d.requiresSignature = true
		case RoleCallback:
			if i != len(m.Params)-1 {
				return fail("the callback must be the last parameter")
			}
			if !m.Async {
				return fail("callbacks are only allowed on async methods")
			}
			if m.Returns.Kind != ReturnVoid {
				return fail("methods with a callback must return void")
			}
			d.hasInlineCallback = true
			continue
		default:
			return fail("parameter %d has unknown role %s", i, p.Role)
		}
		if p.InURL && p.Role != RoleField {
			return fail("parameter %d: only fields can be sent in the url", i)
		}
		if p.Header && p.Role != RoleBodyObject {
			return fail("parameter %d: the header flag applies to body objects only", i)
		}
		d.params = append(d.params, p)
	}

	if m.Async && !d.hasInlineCallback && m.Returns.Kind == ReturnVoid {
		// fire-and-forget: the engine still allocates a future so failures are observable
		d.returns = ReturnShape{Kind: ReturnAsync, Inner: reflect.TypeFor[Void]()}
	}
	return d, nil
}

// Void is the result type of methods declared without a result.
type Void = struct{}
