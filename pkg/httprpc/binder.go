package httprpc

import (
	"fmt"
	"maps"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Binding records how one argument was bound.
type Binding struct {
	Role  Role
	Name  string
	Value string // stringified value for scalar roles
	Raw   any
}

type queryPair struct {
	key, value string
}

// boundArgs is the outcome of binding a call's arguments.
type boundArgs struct {
	bindings []Binding

	form     map[string]string // GET query or POST form
	explicit map[string]bool   // form keys bound by fields, as opposed to flattened models
	headers  map[string]string
	pathVars map[string]string
	query    []queryPair // fields always sent in the url

	body    any
	hasBody bool

	signingKey    string
	hasSigningKey bool
}

type bindFunc func(b *binder, st *boundArgs, p Param, arg reflect.Value) error

// roleBinders maps each role to its bind function.
var roleBinders = map[Role]bindFunc{
	RoleURLPath:      bindPath,
	RoleField:        bindField,
	RoleHeader:       bindHeader,
	RoleBodyObject:   bindBody,
	RoleSigningInput: bindSigningKey,
}

type binder struct {
	d          *MethodDescriptor
	serializer Serializer
	multi      bool // more than one binding parameter: model collections are index-qualified
}

func newBinder(d *MethodDescriptor, s Serializer) *binder {
	return &binder{d: d, serializer: s, multi: len(d.params) > 1}
}

// bind binds args positionally against the descriptor's binding parameters. Nil arguments
// are skipped.
func (b *binder) bind(args []any) (*boundArgs, error) {
	if len(args) != len(b.d.params) {
		return nil, ErrInvalidArguments.Msg(fmt.Sprintf("%s expects %d arguments, got %d", b.d.FullName(), len(b.d.params), len(args)))
	}
	st := &boundArgs{
		form:     make(map[string]string),
		explicit: make(map[string]bool),
		headers:  make(map[string]string, len(b.d.headers)),
		pathVars: make(map[string]string),
	}
	maps.Copy(st.headers, b.d.headers)

	for i, p := range b.d.params {
		v, ok := deref(reflect.ValueOf(args[i]))
		if !ok {
			continue
		}
		fn, found := roleBinders[p.Role]
		if !found {
			return nil, ErrConfiguration.Msg(fmt.Sprintf("no binder for role %s", p.Role))
		}
		if err := fn(b, st, p, v); err != nil {
			return nil, err
		}
	}
	return st, nil
}

func bindPath(b *binder, st *boundArgs, p Param, v reflect.Value) error {
	s, err := b.scalarText(p, v)
	if err != nil {
		return err
	}
	st.pathVars[p.Name] = s
	st.bindings = append(st.bindings, Binding{Role: p.Role, Name: p.Name, Value: s, Raw: v.Interface()})
	return nil
}

func bindHeader(b *binder, st *boundArgs, p Param, v reflect.Value) error {
	s, err := b.scalarText(p, v)
	if err != nil {
		return err
	}
	st.headers[p.Name] = s
	st.bindings = append(st.bindings, Binding{Role: p.Role, Name: p.Name, Value: s, Raw: v.Interface()})
	return nil
}

func bindField(b *binder, st *boundArgs, p Param, v reflect.Value) error {
	if p.InURL {
		s, err := b.scalarText(p, v)
		if err != nil {
			return err
		}
		st.query = append(st.query, queryPair{key: p.Name, value: s})
		st.bindings = append(st.bindings, Binding{Role: p.Role, Name: p.Name, Value: s, Raw: v.Interface()})
		return nil
	}

	switch classify(v) {
	case kindModel:
		if err := b.mergeModel(st, v.Interface(), ""); err != nil {
			return err
		}
		st.bindings = append(st.bindings, Binding{Role: p.Role, Name: p.Name, Raw: v.Interface()})
		return nil
	case kindCollection:
		if hasModelElements(v) {
			for i := range v.Len() {
				ev, ok := deref(v.Index(i))
				if !ok {
					continue
				}
				if classify(ev) != kindModel {
					return ErrUnsupportedParameterType.Msg(fmt.Sprintf("%s: collections cannot mix models and scalars", p.Name))
				}
				prefix := ""
				if b.multi {
					prefix = p.Name + "[" + strconv.Itoa(i) + "]"
				}
				if err := b.mergeModel(st, ev.Interface(), prefix); err != nil {
					return err
				}
			}
			st.bindings = append(st.bindings, Binding{Role: p.Role, Name: p.Name, Raw: v.Interface()})
			return nil
		}
	}

	s, err := b.scalarText(p, v)
	if err != nil {
		return err
	}
	if err := st.setExplicit(p.Name, s); err != nil {
		return err
	}
	st.bindings = append(st.bindings, Binding{Role: p.Role, Name: p.Name, Value: s, Raw: v.Interface()})
	return nil
}

func bindBody(b *binder, st *boundArgs, p Param, v reflect.Value) error {
	if p.Header {
		if classify(v) != kindModel {
			return ErrUnsupportedParameterType.Msg(fmt.Sprintf("header body must be a model, got %s", v.Type()))
		}
		flat, err := flattenModel(b.serializer, v.Interface(), "", b.d.keyCase)
		if err != nil {
			return err
		}
		maps.Copy(st.headers, flat)
		st.bindings = append(st.bindings, Binding{Role: p.Role, Name: p.Name, Raw: v.Interface()})
		return nil
	}

	if b.d.verb == POSTJSON {
		st.body = v.Interface()
		st.hasBody = true
		st.bindings = append(st.bindings, Binding{Role: p.Role, Name: p.Name, Raw: st.body})
		return nil
	}

	switch classify(v) {
	case kindModel:
		if err := b.mergeModel(st, v.Interface(), ""); err != nil {
			return err
		}
	case kindCollection:
		for i := range v.Len() {
			ev, ok := deref(v.Index(i))
			if !ok {
				continue
			}
			if classify(ev) != kindModel {
				return ErrUnsupportedParameterType.Msg(fmt.Sprintf("body collections must hold models, got %s", ev.Type()))
			}
			prefix := ""
			if b.multi && p.Name != "" {
				prefix = p.Name + "[" + strconv.Itoa(i) + "]"
			}
			if err := b.mergeModel(st, ev.Interface(), prefix); err != nil {
				return err
			}
		}
	default:
		return ErrUnsupportedParameterType.Msg(fmt.Sprintf("body must be a model, got %s", v.Type()))
	}
	st.bindings = append(st.bindings, Binding{Role: p.Role, Name: p.Name, Raw: v.Interface()})
	return nil
}

func bindSigningKey(_ *binder, st *boundArgs, p Param, v reflect.Value) error {
	var key string
	switch {
	case v.Kind() == reflect.String:
		key = v.String()
	case v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.Uint8:
		key = string(v.Bytes())
	default:
		return ErrUnsupportedParameterType.Msg(fmt.Sprintf("signing key must be a string or []byte, got %s", v.Type()))
	}
	st.signingKey = key
	st.hasSigningKey = true
	st.bindings = append(st.bindings, Binding{Role: p.Role, Name: p.Name})
	return nil
}

// mergeModel flattens a model into the form. Flattened keys never override fields bound
// explicitly; such collisions are rejected.
func (b *binder) mergeModel(st *boundArgs, model any, prefix string) error {
	flat, err := flattenModel(b.serializer, model, prefix, b.d.keyCase)
	if err != nil {
		return err
	}
	for k, val := range flat {
		if st.explicit[k] {
			return ErrParameterConflict.Msg(fmt.Sprintf("model field %q collides with an explicitly bound field", k))
		}
		st.form[k] = val
	}
	return nil
}

func (st *boundArgs) setExplicit(key, value string) error {
	if existing, ok := st.form[key]; ok {
		if !st.explicit[key] {
			return ErrParameterConflict.Msg(fmt.Sprintf("field %q collides with a model field", key))
		}
		st.form[key] = existing + "," + value
		return nil
	}
	st.form[key] = value
	st.explicit[key] = true
	return nil
}

type argKind int

const (
	kindUnsupported argKind = iota
	kindScalar
	kindDate
	kindModel
	kindCollection
)

var timeType = reflect.TypeFor[time.Time]()

// classify inspects a dereferenced value.
func classify(v reflect.Value) argKind {
	if v.Type() == timeType {
		return kindDate
	}
	switch v.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return kindScalar
	case reflect.Struct:
		return kindModel
	case reflect.Map:
		if v.Type().Key().Kind() == reflect.String {
			return kindModel
		}
	case reflect.Slice, reflect.Array:
		return kindCollection
	}
	return kindUnsupported
}

// deref unwraps pointers and interfaces. It reports false for nil values.
func deref(v reflect.Value) (reflect.Value, bool) {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	if !v.IsValid() {
		return v, false
	}
	if (v.Kind() == reflect.Slice || v.Kind() == reflect.Map) && v.IsNil() {
		return reflect.Value{}, false
	}
	return v, true
}

func isNil(arg any) bool {
	_, ok := deref(reflect.ValueOf(arg))
	return !ok
}

func hasModelElements(v reflect.Value) bool {
	for i := range v.Len() {
		if ev, ok := deref(v.Index(i)); ok {
			return classify(ev) == kindModel
		}
	}
	return false
}

// scalarText renders scalars, dates and collections of those. Collection elements are
// comma-joined in order; nil elements are skipped.
func (b *binder) scalarText(p Param, v reflect.Value) (string, error) {
	switch classify(v) {
	case kindScalar:
		return scalarString(v), nil
	case kindDate:
		if p.Format == "" {
			return "", ErrFormatRequired.Msg(fmt.Sprintf("parameter %q is a date but declares no format", p.Name))
		}
		return v.Interface().(time.Time).Format(p.Format), nil
	case kindCollection:
		parts := make([]string, 0, v.Len())
		for i := range v.Len() {
			ev, ok := deref(v.Index(i))
			if !ok {
				continue
			}
			switch classify(ev) {
			case kindScalar, kindDate:
				s, err := b.scalarText(p, ev)
				if err != nil {
					return "", err
				}
				parts = append(parts, s)
			default:
				return "", ErrUnsupportedParameterType.Msg(fmt.Sprintf("parameter %q: unsupported element type %s", p.Name, ev.Type()))
			}
		}
		return strings.Join(parts, ","), nil
	}
	return "", ErrUnsupportedParameterType.Msg(fmt.Sprintf("parameter %q: unsupported type %s for role %s", paramLabel(p), v.Type(), p.Role))
}

func scalarString(v reflect.Value) string {
	switch v.Kind() {
	case reflect.String:
		return v.String()
	case reflect.Bool:
		return strconv.FormatBool(v.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(v.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(v.Uint(), 10)
	case reflect.Float32:
		return strconv.FormatFloat(v.Float(), 'f', -1, 32)
	case reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', -1, 64)
	}
	return fmt.Sprint(v.Interface())
}
