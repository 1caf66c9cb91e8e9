package codecs

import (
	"errors"
	"fmt"
	"reflect"

	sppb "cloud.google.com/go/spanner/apiv1/spannerpb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ErrUnsupportedType is reported when no registered codec can handle an
// encode or decode request.
var ErrUnsupportedType = errors.New("unsupported type")

// Codec converts between one native Go type and its wire representation.
type Codec interface {
	// CanEncode reports whether this codec handles the native value v.
	CanEncode(v any) bool

	Encode(v any) (*structpb.Value, error)

	// CanDecode reports whether this codec handles the declared column
	// type paired with the requested native target type.
	CanDecode(dataType *sppb.Type, target reflect.Type) bool

	Decode(v *structpb.Value, dataType *sppb.Type, target reflect.Type) (any, error)
}

// Codecs converts values by delegating to an ordered list of codecs. The
// first codec whose predicate accepts the request wins, so registration
// order is significant. Implementations are immutable after construction
// and safe for concurrent use.
type Codecs interface {
	// Encode converts a native value to its wire representation. A nil
	// value always encodes to the wire null without consulting the list.
	Encode(v any) (*structpb.Value, error)

	// Decode converts a wire value to the target native type, directed by
	// the declared column type.
	Decode(v *structpb.Value, dataType *sppb.Type, target reflect.Type) (any, error)
}

type scalarCodec struct {
	nativeType reflect.Type
	typeCode   sppb.TypeCode
	encode     func(v any) (*structpb.Value, error)
}

func (c *scalarCodec) CanEncode(v any) bool {
	return v != nil && reflect.TypeOf(v) == c.nativeType
}

func (c *scalarCodec) Encode(v any) (*structpb.Value, error) {
	return c.encode(v)
}

func (c *scalarCodec) CanDecode(dataType *sppb.Type, target reflect.Type) bool {
	return dataType.GetCode() == c.typeCode && target == c.nativeType
}

func (c *scalarCodec) Decode(v *structpb.Value, dataType *sppb.Type, target reflect.Type) (any, error) {
	return decodeValue(dataType, v)
}

// arrayCodec handles one concrete []T. Elements are encoded through the
// registry, so the element rules (int64 as decimal string, float64
// specials, base64 bytes) apply inside arrays without array-specific code.
type arrayCodec struct {
	codecs     Codecs
	nativeType reflect.Type
	elemCode   sppb.TypeCode
}

func (c *arrayCodec) CanEncode(v any) bool {
	return v != nil && reflect.TypeOf(v) == c.nativeType
}

func (c *arrayCodec) Encode(v any) (*structpb.Value, error) {
	rv := reflect.ValueOf(v)
	values := make([]*structpb.Value, rv.Len())

	for i := range values {
		encoded, err := c.codecs.Encode(rv.Index(i).Interface())

		if err != nil {
			return nil, fmt.Errorf("array element %d: %w", i, err)
		}

		values[i] = encoded
	}

	return structpb.NewListValue(&structpb.ListValue{Values: values}), nil
}

func (c *arrayCodec) CanDecode(dataType *sppb.Type, target reflect.Type) bool {
	return dataType.GetCode() == sppb.TypeCode_ARRAY &&
		dataType.GetArrayElementType().GetCode() == c.elemCode &&
		target == c.nativeType
}

func (c *arrayCodec) Decode(v *structpb.Value, dataType *sppb.Type, target reflect.Type) (any, error) {
	return decodeValue(dataType, v)
}
