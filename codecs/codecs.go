package codecs

import (
	"encoding/base64"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	sppb "cloud.google.com/go/spanner/apiv1/spannerpb"
	"google.golang.org/protobuf/types/known/structpb"
)

var nullValue = structpb.NewNullValue()

var (
	boolType         = reflect.TypeOf(false)
	bytesType        = reflect.TypeOf([]byte(nil))
	dateType         = reflect.TypeOf(civil.Date{})
	float64Type      = reflect.TypeOf(float64(0))
	int64Type        = reflect.TypeOf(int64(0))
	stringType       = reflect.TypeOf("")
	timeType         = reflect.TypeOf(time.Time{})
	boolSliceType    = reflect.TypeOf([]bool(nil))
	bytesSliceType   = reflect.TypeOf([][]byte(nil))
	dateSliceType    = reflect.TypeOf([]civil.Date(nil))
	float64SliceType = reflect.TypeOf([]float64(nil))
	int64SliceType   = reflect.TypeOf([]int64(nil))
	stringSliceType  = reflect.TypeOf([]string(nil))
	timeSliceType    = reflect.TypeOf([]time.Time(nil))
)

type defaultCodecs struct {
	codecs []Codec
}

// DefaultCodecs builds the registry with the standard codec list.
//
// Array codecs are registered per concrete element type, ahead of the
// scalar codecs. There is no generic derivation of []T from a scalar T
// codec: a new scalar type needs its own array registration or []T stays
// unsupported.
func DefaultCodecs() Codecs {
	c := &defaultCodecs{}

	c.codecs = []Codec{
		&arrayCodec{c, boolSliceType, sppb.TypeCode_BOOL},
		&arrayCodec{c, bytesSliceType, sppb.TypeCode_BYTES},
		&arrayCodec{c, dateSliceType, sppb.TypeCode_DATE},
		&arrayCodec{c, float64SliceType, sppb.TypeCode_FLOAT64},
		&arrayCodec{c, int64SliceType, sppb.TypeCode_INT64},
		&arrayCodec{c, stringSliceType, sppb.TypeCode_STRING},
		&arrayCodec{c, timeSliceType, sppb.TypeCode_TIMESTAMP},
		&scalarCodec{boolType, sppb.TypeCode_BOOL, encodeBool},
		&scalarCodec{bytesType, sppb.TypeCode_BYTES, encodeBytes},
		&scalarCodec{dateType, sppb.TypeCode_DATE, encodeDate},
		&scalarCodec{float64Type, sppb.TypeCode_FLOAT64, encodeFloat64},
		&scalarCodec{int64Type, sppb.TypeCode_INT64, encodeInt64},
		&scalarCodec{stringType, sppb.TypeCode_STRING, encodeString},
		&scalarCodec{timeType, sppb.TypeCode_TIMESTAMP, encodeTimestamp},
	}

	return c
}

func (c *defaultCodecs) Encode(v any) (*structpb.Value, error) {
	if v == nil {
		return nullValue, nil
	}

	for _, codec := range c.codecs {
		if codec.CanEncode(v) {
			return codec.Encode(v)
		}
	}

	return nil, fmt.Errorf("cannot encode parameter of type %T: %w", v, ErrUnsupportedType)
}

func (c *defaultCodecs) Decode(v *structpb.Value, dataType *sppb.Type, target reflect.Type) (any, error) {
	if v == nil || dataType == nil || target == nil {
		return nil, fmt.Errorf("value, dataType and target must not be nil: %w", ErrUnsupportedType)
	}

	for _, codec := range c.codecs {
		if codec.CanDecode(dataType, target) {
			return codec.Decode(v, dataType, target)
		}
	}

	return nil, fmt.Errorf("cannot decode value of type %s to %s: %w",
		dataType.GetCode(), target, ErrUnsupportedType)
}

// NativeType returns the default Go type a declared column type decodes
// to, or nil when the type has no registered default.
func NativeType(dataType *sppb.Type) reflect.Type {
	switch dataType.GetCode() {
	case sppb.TypeCode_BOOL:
		return boolType
	case sppb.TypeCode_BYTES:
		return bytesType
	case sppb.TypeCode_DATE:
		return dateType
	case sppb.TypeCode_FLOAT64:
		return float64Type
	case sppb.TypeCode_INT64:
		return int64Type
	case sppb.TypeCode_STRING:
		return stringType
	case sppb.TypeCode_TIMESTAMP:
		return timeType
	case sppb.TypeCode_ARRAY:
		switch dataType.GetArrayElementType().GetCode() {
		case sppb.TypeCode_BOOL:
			return boolSliceType
		case sppb.TypeCode_BYTES:
			return bytesSliceType
		case sppb.TypeCode_DATE:
			return dateSliceType
		case sppb.TypeCode_FLOAT64:
			return float64SliceType
		case sppb.TypeCode_INT64:
			return int64SliceType
		case sppb.TypeCode_STRING:
			return stringSliceType
		case sppb.TypeCode_TIMESTAMP:
			return timeSliceType
		}
	}

	return nil
}

// TypeOf returns the declared column type matching a native parameter
// value, used as the type hint when binding parameters.
func TypeOf(v any) (*sppb.Type, error) {
	var code, elemCode sppb.TypeCode

	switch reflect.TypeOf(v) {
	case boolType:
		code = sppb.TypeCode_BOOL
	case bytesType:
		code = sppb.TypeCode_BYTES
	case dateType:
		code = sppb.TypeCode_DATE
	case float64Type:
		code = sppb.TypeCode_FLOAT64
	case int64Type:
		code = sppb.TypeCode_INT64
	case stringType:
		code = sppb.TypeCode_STRING
	case timeType:
		code = sppb.TypeCode_TIMESTAMP
	case boolSliceType:
		code, elemCode = sppb.TypeCode_ARRAY, sppb.TypeCode_BOOL
	case bytesSliceType:
		code, elemCode = sppb.TypeCode_ARRAY, sppb.TypeCode_BYTES
	case dateSliceType:
		code, elemCode = sppb.TypeCode_ARRAY, sppb.TypeCode_DATE
	case float64SliceType:
		code, elemCode = sppb.TypeCode_ARRAY, sppb.TypeCode_FLOAT64
	case int64SliceType:
		code, elemCode = sppb.TypeCode_ARRAY, sppb.TypeCode_INT64
	case stringSliceType:
		code, elemCode = sppb.TypeCode_ARRAY, sppb.TypeCode_STRING
	case timeSliceType:
		code, elemCode = sppb.TypeCode_ARRAY, sppb.TypeCode_TIMESTAMP
	default:
		return nil, fmt.Errorf("no column type for parameter of type %T: %w", v, ErrUnsupportedType)
	}

	if code == sppb.TypeCode_ARRAY {
		return &sppb.Type{
			Code:             code,
			ArrayElementType: &sppb.Type{Code: elemCode},
		}, nil
	}

	return &sppb.Type{Code: code}, nil
}

func encodeBool(v any) (*structpb.Value, error) {
	return structpb.NewBoolValue(v.(bool)), nil
}

// Bytes travel as base64 text: the wire has no binary scalar kind.
func encodeBytes(v any) (*structpb.Value, error) {
	return structpb.NewStringValue(base64.StdEncoding.EncodeToString(v.([]byte))), nil
}

func encodeDate(v any) (*structpb.Value, error) {
	return structpb.NewStringValue(v.(civil.Date).String()), nil
}

// The wire's number kind cannot represent NaN or the infinities, so those
// are sent as string literals.
func encodeFloat64(v any) (*structpb.Value, error) {
	f := v.(float64)

	switch {
	case math.IsNaN(f):
		return structpb.NewStringValue("NaN"), nil
	case math.IsInf(f, -1):
		return structpb.NewStringValue("-Infinity"), nil
	case math.IsInf(f, 1):
		return structpb.NewStringValue("Infinity"), nil
	}

	return structpb.NewNumberValue(f), nil
}

// The wire's number kind is a double, which cannot hold the full signed
// 64-bit range, so integers are sent as decimal strings.
func encodeInt64(v any) (*structpb.Value, error) {
	return structpb.NewStringValue(strconv.FormatInt(v.(int64), 10)), nil
}

func encodeString(v any) (*structpb.Value, error) {
	return structpb.NewStringValue(v.(string)), nil
}

func encodeTimestamp(v any) (*structpb.Value, error) {
	return structpb.NewStringValue(v.(time.Time).UTC().Format(time.RFC3339Nano)), nil
}
