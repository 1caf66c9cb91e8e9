package codecs

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	sppb "cloud.google.com/go/spanner/apiv1/spannerpb"
	"google.golang.org/protobuf/types/known/structpb"
)

// decodeValue converts a wire value to the default native type for the
// declared column type. A wire null decodes to nil regardless of type.
func decodeValue(dataType *sppb.Type, v *structpb.Value) (any, error) {
	if _, ok := v.GetKind().(*structpb.Value_NullValue); ok {
		return nil, nil
	}

	switch dataType.GetCode() {
	case sppb.TypeCode_BOOL:
		if _, ok := v.GetKind().(*structpb.Value_BoolValue); !ok {
			return nil, malformed(dataType, v)
		}

		return v.GetBoolValue(), nil
	case sppb.TypeCode_BYTES:
		if _, ok := v.GetKind().(*structpb.Value_StringValue); !ok {
			return nil, malformed(dataType, v)
		}

		return base64.StdEncoding.DecodeString(v.GetStringValue())
	case sppb.TypeCode_DATE:
		if _, ok := v.GetKind().(*structpb.Value_StringValue); !ok {
			return nil, malformed(dataType, v)
		}

		return civil.ParseDate(v.GetStringValue())
	case sppb.TypeCode_FLOAT64:
		return decodeFloat64(v)
	case sppb.TypeCode_INT64:
		if _, ok := v.GetKind().(*structpb.Value_StringValue); !ok {
			return nil, malformed(dataType, v)
		}

		return strconv.ParseInt(v.GetStringValue(), 10, 64)
	case sppb.TypeCode_STRING:
		if _, ok := v.GetKind().(*structpb.Value_StringValue); !ok {
			return nil, malformed(dataType, v)
		}

		return v.GetStringValue(), nil
	case sppb.TypeCode_TIMESTAMP:
		if _, ok := v.GetKind().(*structpb.Value_StringValue); !ok {
			return nil, malformed(dataType, v)
		}

		return time.Parse(time.RFC3339Nano, v.GetStringValue())
	case sppb.TypeCode_ARRAY:
		return decodeArray(dataType.GetArrayElementType(), v)
	}

	return nil, fmt.Errorf("no default decoding for column type %s: %w",
		dataType.GetCode(), ErrUnsupportedType)
}

func decodeFloat64(v *structpb.Value) (any, error) {
	switch kind := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		return kind.NumberValue, nil
	case *structpb.Value_StringValue:
		switch kind.StringValue {
		case "NaN":
			return math.NaN(), nil
		case "Infinity":
			return math.Inf(1), nil
		case "-Infinity":
			return math.Inf(-1), nil
		}
	}

	return nil, malformed(&sppb.Type{Code: sppb.TypeCode_FLOAT64}, v)
}

func decodeArray(elemType *sppb.Type, v *structpb.Value) (any, error) {
	list, ok := v.GetKind().(*structpb.Value_ListValue)

	if !ok {
		return nil, malformed(&sppb.Type{Code: sppb.TypeCode_ARRAY}, v)
	}

	elems := list.ListValue.GetValues()

	switch elemType.GetCode() {
	case sppb.TypeCode_BOOL:
		return decodeTypedArray[bool](elemType, elems)
	case sppb.TypeCode_BYTES:
		return decodeTypedArray[[]byte](elemType, elems)
	case sppb.TypeCode_DATE:
		return decodeTypedArray[civil.Date](elemType, elems)
	case sppb.TypeCode_FLOAT64:
		return decodeTypedArray[float64](elemType, elems)
	case sppb.TypeCode_INT64:
		return decodeTypedArray[int64](elemType, elems)
	case sppb.TypeCode_STRING:
		return decodeTypedArray[string](elemType, elems)
	case sppb.TypeCode_TIMESTAMP:
		return decodeTypedArray[time.Time](elemType, elems)
	}

	return nil, fmt.Errorf("no default decoding for arrays of %s: %w",
		elemType.GetCode(), ErrUnsupportedType)
}

func decodeTypedArray[T any](elemType *sppb.Type, elems []*structpb.Value) ([]T, error) {
	out := make([]T, len(elems))

	for i, elem := range elems {
		decoded, err := decodeValue(elemType, elem)

		if err != nil {
			return nil, fmt.Errorf("array element %d: %w", i, err)
		}

		if decoded == nil {
			// Typed slices cannot carry SQL NULL elements.
			return nil, fmt.Errorf("array element %d is null: %w", i, ErrUnsupportedType)
		}

		out[i] = decoded.(T)
	}

	return out, nil
}

func malformed(dataType *sppb.Type, v *structpb.Value) error {
	return fmt.Errorf("malformed wire value %T for column type %s: %w",
		v.GetKind(), dataType.GetCode(), ErrUnsupportedType)
}
