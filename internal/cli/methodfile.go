package cli

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/tansive/httprpc/pkg/httprpc"
)

// serviceDoc is the optional Service document of a method file. It names the service and
// declares headers sent by every method.
type serviceDoc struct {
	Kind    string            `mapstructure:"kind"`
	Name    string            `mapstructure:"name"`
	Headers map[string]string `mapstructure:"headers"`
}

// methodDoc declares one method.
type methodDoc struct {
	Kind            string            `mapstructure:"kind"`
	Name            string            `mapstructure:"name"`
	Verb            string            `mapstructure:"verb"`
	URL             string            `mapstructure:"url"`
	URLKey          string            `mapstructure:"url_key"`
	DefaultURL      string            `mapstructure:"default_url"`
	Async           bool              `mapstructure:"async"`
	Result          string            `mapstructure:"result"` // json, text or void
	ResultPath      string            `mapstructure:"result_path"`
	Timeout         time.Duration     `mapstructure:"timeout"`
	KeyCase         string            `mapstructure:"key_case"`
	CanonicalJSON   bool              `mapstructure:"canonical_json"`
	SignatureHeader string            `mapstructure:"signature_header"`
	TimestampKey    string            `mapstructure:"timestamp_key"`
	Headers         map[string]string `mapstructure:"headers"`
	Params          []paramDoc        `mapstructure:"params"`
}

type paramDoc struct {
	Name     string `mapstructure:"name"`
	Role     string `mapstructure:"role"`
	Format   string `mapstructure:"format"`
	Validate string `mapstructure:"validate"`
}

// LoadMethodFile declares the methods of a method file on a new service. Documents
// without a kind are methods.
func LoadMethodFile(filename string, dotenvFiles ...string) (*httprpc.Service, error) {
	docs, err := ParseMultiYAML(filename, dotenvFiles...)
	if err != nil {
		return nil, err
	}
	return declareMethods(docs)
}

func declareMethods(docs []yamlDoc) (*httprpc.Service, error) {
	var svcDoc serviceDoc
	var methods []methodDoc
	var lines []int
	for _, doc := range docs {
		kind, _ := doc.Fields["kind"].(string)
		if kind == "" {
			kind = KindMethod
		}
		if !ValidateKind(kind) {
			return nil, fmt.Errorf("line %d: unknown kind %q", doc.Line, kind)
		}

		if kind == KindService {
			if svcDoc.Name != "" {
				return nil, fmt.Errorf("line %d: only one %s document is allowed", doc.Line, KindService)
			}
			if err := decodeDoc(doc.Fields, &svcDoc); err != nil {
				return nil, fmt.Errorf("line %d: %w", doc.Line, err)
			}
			if svcDoc.Name == "" {
				return nil, fmt.Errorf("line %d: service name is required", doc.Line)
			}
			continue
		}

		var m methodDoc
		if err := decodeDoc(doc.Fields, &m); err != nil {
			return nil, fmt.Errorf("line %d: %w", doc.Line, err)
		}
		methods = append(methods, m)
		lines = append(lines, doc.Line)
	}

	svc := httprpc.NewService(svcDoc.Name, httprpc.WithServiceHeaders(svcDoc.Headers))
	for i, md := range methods {
		m, err := md.method()
		if err != nil {
			return nil, fmt.Errorf("line %d: method %s: %w", lines[i], md.Name, err)
		}
		if _, err := svc.Declare(m); err != nil {
			return nil, fmt.Errorf("line %d: %w", lines[i], err)
		}
	}
	return svc, nil
}

func decodeDoc(doc map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(doc)
}

func (md methodDoc) method() (httprpc.Method, error) {
	verb := httprpc.GET
	if md.Verb != "" {
		var err error
		if verb, err = httprpc.ParseVerb(md.Verb); err != nil {
			return httprpc.Method{}, err
		}
	}
	keyCase, err := parseKeyCase(md.KeyCase)
	if err != nil {
		return httprpc.Method{}, err
	}

	m := httprpc.Method{
		Name:            md.Name,
		Verb:            verb,
		URL:             md.URL,
		URLKey:          md.URLKey,
		DefaultURL:      md.DefaultURL,
		Async:           md.Async,
		Headers:         md.Headers,
		SignatureHeader: md.SignatureHeader,
		TimestampKey:    md.TimestampKey,
		CanonicalJSON:   md.CanonicalJSON,
		KeyCase:         keyCase,
		ResultPath:      md.ResultPath,
		Timeout:         md.Timeout,
	}
	for _, pd := range md.Params {
		p, err := pd.param()
		if err != nil {
			return httprpc.Method{}, err
		}
		m.Params = append(m.Params, p)
	}
	if m.Returns, err = resultShape(md.Result, md.Async, hasCallback(m.Params)); err != nil {
		return httprpc.Method{}, err
	}
	return m, nil
}

func (pd paramDoc) param() (httprpc.Param, error) {
	var p httprpc.Param
	switch strings.ToLower(pd.Role) {
	case "path":
		p = httprpc.PathParam(pd.Name)
	case "", "field":
		p = httprpc.Field(pd.Name)
	case "query":
		p = httprpc.QueryField(pd.Name)
	case "header":
		p = httprpc.HeaderParam(pd.Name)
	case "body":
		p = httprpc.Body().Named(pd.Name)
	case "body_headers":
		p = httprpc.BodyHeaders().Named(pd.Name)
	case "signing_key":
		p = httprpc.SigningKey().Named(pd.Name)
	case "callback":
		p = httprpc.CallbackParam()
	default:
		return p, fmt.Errorf("parameter %s: unknown role %q", pd.Name, pd.Role)
	}
	if pd.Format != "" {
		p = p.WithFormat(pd.Format)
	}
	if pd.Validate != "" {
		p = p.WithValidation(pd.Validate)
	}
	return p, nil
}

func hasCallback(params []httprpc.Param) bool {
	for _, p := range params {
		if p.Role == httprpc.RoleCallback {
			return true
		}
	}
	return false
}

var anyType = reflect.TypeFor[any]()

// resultShape maps a declared result format to a return shape. Methods with a callback
// return nothing; the callback receives the raw response.
func resultShape(result string, async, callback bool) (httprpc.ReturnShape, error) {
	if callback {
		return httprpc.ReturnsVoid(), nil
	}
	kind := httprpc.ReturnGeneric
	if async {
		kind = httprpc.ReturnAsync
	}
	switch strings.ToLower(result) {
	case "", ResultJSON:
		return httprpc.ReturnShape{Kind: kind, Inner: anyType}, nil
	case ResultText:
		return httprpc.ReturnShape{Kind: kind, Inner: stringType}, nil
	case ResultVoid:
		return httprpc.ReturnsVoid(), nil
	}
	return httprpc.ReturnShape{}, fmt.Errorf("unknown result format %q", result)
}

func parseKeyCase(s string) (httprpc.KeyCase, error) {
	switch strings.ToLower(s) {
	case "", "as_is":
		return httprpc.KeyCaseAsIs, nil
	case "snake":
		return httprpc.KeyCaseSnake, nil
	case "lower_camel":
		return httprpc.KeyCaseLowerCamel, nil
	}
	return httprpc.KeyCaseAsIs, fmt.Errorf("unknown key case %q", s)
}
