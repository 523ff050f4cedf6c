package httprpc

import (
	"fmt"
	"reflect"

	"github.com/tidwall/gjson"
)

var bytesType = reflect.TypeFor[[]byte]()

// checkResultType verifies that T is the declared result type of d.
func checkResultType[T any](d *MethodDescriptor) error {
	want := d.returns.Inner
	if d.returns.Kind == ReturnVoid {
		want = reflect.TypeFor[Void]()
	}
	if got := reflect.TypeFor[T](); got != want {
		return ErrConfiguration.Msg(fmt.Sprintf("%s returns %s, called with %s", d.FullName(), want, got))
	}
	return nil
}

// convertResponse decodes body into the declared result type. Text and []byte results are
// returned as received. A result path selects a sub-document first.
func convertResponse[T any](d *MethodDescriptor, s Serializer, body []byte) (T, error) {
	var out T
	if d.returns.Kind == ReturnVoid || d.returns.Inner == reflect.TypeFor[Void]() {
		return out, nil
	}

	var selected gjson.Result
	if d.resultPath != "" {
		if !gjson.ValidBytes(body) {
			return out, ErrResponseDecode.Msg(fmt.Sprintf("%s: response is not valid JSON", d.FullName()))
		}
		selected = gjson.GetBytes(body, d.resultPath)
		if !selected.Exists() {
			return out, ErrResponseDecode.Msg(fmt.Sprintf("%s: result path %q not found in response", d.FullName(), d.resultPath))
		}
	}

	switch {
	case d.returns.isText():
		text := string(body)
		if d.resultPath != "" {
			text = selected.String()
		}
		reflect.ValueOf(&out).Elem().SetString(text)
		return out, nil
	case d.returns.Inner == bytesType:
		raw := body
		if d.resultPath != "" {
			raw = []byte(selected.Raw)
		}
		reflect.ValueOf(&out).Elem().SetBytes(append([]byte(nil), raw...))
		return out, nil
	}

	data := body
	if d.resultPath != "" {
		data = []byte(selected.Raw)
	}
	if len(data) == 0 {
		return out, ErrResponseDecode.Msg(fmt.Sprintf("%s: empty response, expected %s", d.FullName(), d.returns.Inner))
	}
	if err := s.Unmarshal(data, &out); err != nil {
		var zero T
		return zero, ErrResponseDecode.MsgErr(fmt.Sprintf("%s: cannot decode response into %s: %v", d.FullName(), d.returns.Inner, err), err)
	}
	return out, nil
}
