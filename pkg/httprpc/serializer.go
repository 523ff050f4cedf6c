package httprpc

import (
	"reflect"
	"unsafe"

	jsonitor "github.com/json-iterator/go"
	"github.com/modern-go/reflect2"
)

// Serializer converts between Go values and request/response payloads.
type Serializer interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONSerializer is the default Serializer. It honors encoding/json struct tags, ignores
// unknown fields when decoding and never encodes a nil struct field: nil pointers, slices,
// maps and interfaces are left out whatever their tags say.
type JSONSerializer struct {
	api jsonitor.API
}

// NewJSONSerializer returns a serializer compatible with encoding/json apart from the
// omission of nil fields.
func NewJSONSerializer() *JSONSerializer {
	api := jsonitor.Config{
		EscapeHTML:             true,
		SortMapKeys:            true,
		ValidateJsonRawMessage: true,
	}.Froze()
	api.RegisterExtension(&omitNilExtension{})
	return &JSONSerializer{api: api}
}

func (s *JSONSerializer) Marshal(v any) ([]byte, error) {
	return s.api.Marshal(v)
}

func (s *JSONSerializer) Unmarshal(data []byte, v any) error {
	return s.api.Unmarshal(data, v)
}

var _ Serializer = (*JSONSerializer)(nil)

// omitNilExtension makes the struct encoder skip nil-able fields holding nil.
type omitNilExtension struct {
	jsonitor.DummyExtension
}

func (e *omitNilExtension) UpdateStructDescriptor(sd *jsonitor.StructDescriptor) {
	for _, b := range sd.Fields {
		switch b.Field.Type().Kind() {
		case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
			b.Encoder = &omitNilEncoder{ValEncoder: b.Encoder, typ: b.Field.Type()}
		}
	}
}

// omitNilEncoder reports a nil field through IsEmbeddedPtrNil, which the struct encoder
// checks for every field regardless of omitempty.
type omitNilEncoder struct {
	jsonitor.ValEncoder
	typ reflect2.Type
}

func (e *omitNilEncoder) IsEmbeddedPtrNil(ptr unsafe.Pointer) bool {
	return e.typ.UnsafeIsNil(ptr)
}
