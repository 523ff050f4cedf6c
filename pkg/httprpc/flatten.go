package httprpc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/iancoleman/strcase"
	"github.com/tidwall/gjson"
)

// flattenModel serializes a model and flattens the resulting JSON object into dotted keys.
// Nested objects become "a.b", arrays of scalars are comma-joined (nulls skipped) and arrays holding objects
// are index-qualified ("a[0].b"). Null members are omitted. Every key gets prefix, when set.
func flattenModel(s Serializer, model any, prefix string, kc KeyCase) (map[string]string, error) {
	raw, err := s.Marshal(model)
	if err != nil {
		return nil, ErrUnsupportedParameterType.MsgErr(fmt.Sprintf("failed to serialize %T: %v", model, err), err)
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return nil, ErrUnsupportedParameterType.Msg(fmt.Sprintf("%T does not serialize to an object", model))
	}
	out := make(map[string]string)
	flattenObject(doc, prefix, kc, out)
	return out, nil
}

func flattenObject(obj gjson.Result, prefix string, kc KeyCase, out map[string]string) {
	obj.ForEach(func(k, v gjson.Result) bool {
		flattenValue(v, joinKey(prefix, applyKeyCase(k.String(), kc)), kc, out)
		return true
	})
}

func flattenValue(v gjson.Result, key string, kc KeyCase, out map[string]string) {
	switch {
	case v.Type == gjson.Null:
	case v.IsObject():
		flattenObject(v, key, kc, out)
	case v.IsArray():
		elems := v.Array()
		if allScalar(elems) {
			parts := make([]string, 0, len(elems))
			for _, e := range elems {
				if e.Type != gjson.Null {
					parts = append(parts, jsonScalar(e))
				}
			}
			out[key] = strings.Join(parts, ",")
			return
		}
		for i, e := range elems {
			flattenValue(e, key+"["+strconv.Itoa(i)+"]", kc, out)
		}
	default:
		out[key] = jsonScalar(v)
	}
}

// allScalar reports whether elems holds no objects or arrays. Nulls are skipped when
// joining, as for bound collections.
func allScalar(elems []gjson.Result) bool {
	for _, e := range elems {
		if e.IsObject() || e.IsArray() {
			return false
		}
	}
	return true
}

// jsonScalar keeps numbers in their serialized form so large integers survive untouched.
func jsonScalar(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		return v.String()
	case gjson.Number, gjson.True, gjson.False:
		return v.Raw
	}
	return ""
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func applyKeyCase(key string, kc KeyCase) string {
	switch kc {
	case KeyCaseSnake:
		return strcase.ToSnake(key)
	case KeyCaseLowerCamel:
		return strcase.ToLowerCamel(key)
	}
	return key
}
