package result

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// mergeValues joins a pending fragment with the first value of the next
// chunk. The rule is type-directed and must match the server's chunking
// contract exactly: strings concatenate, lists concatenate with their
// boundary elements merged recursively when both are chunkable kinds,
// structs merge field-wise. Numbers, booleans and nulls are never split,
// so finding one as a fragment is a protocol violation.
func mergeValues(pending, incoming *structpb.Value) (*structpb.Value, error) {
	switch kind := pending.GetKind().(type) {
	case *structpb.Value_StringValue:
		next, ok := incoming.GetKind().(*structpb.Value_StringValue)

		if !ok {
			return nil, mergeMismatch(pending, incoming)
		}

		return structpb.NewStringValue(kind.StringValue + next.StringValue), nil
	case *structpb.Value_ListValue:
		next, ok := incoming.GetKind().(*structpb.Value_ListValue)

		if !ok {
			return nil, mergeMismatch(pending, incoming)
		}

		return mergeLists(kind.ListValue, next.ListValue)
	case *structpb.Value_StructValue:
		next, ok := incoming.GetKind().(*structpb.Value_StructValue)

		if !ok {
			return nil, mergeMismatch(pending, incoming)
		}

		return mergeStructs(kind.StructValue, next.StructValue)
	}

	return nil, fmt.Errorf("value of kind %T cannot span chunks: %w",
		pending.GetKind(), ErrProtocol)
}

// mergeLists concatenates two list fragments. When the trailing element
// of the first and the leading element of the second are both chunkable
// kinds they are one split value and merge recursively, e.g.
// ["a", ["b", "c"]] + [["d"], "e"] yields ["a", ["b", "cd"], "e"].
func mergeLists(pending, incoming *structpb.ListValue) (*structpb.Value, error) {
	head := pending.GetValues()
	tail := incoming.GetValues()

	if len(head) > 0 && len(tail) > 0 && chunkableKindsMatch(head[len(head)-1], tail[0]) {
		merged, err := mergeValues(head[len(head)-1], tail[0])

		if err != nil {
			return nil, err
		}

		head = head[:len(head)-1]
		tail = append([]*structpb.Value{merged}, tail[1:]...)
	}

	values := make([]*structpb.Value, 0, len(head)+len(tail))
	values = append(values, head...)
	values = append(values, tail...)

	return structpb.NewListValue(&structpb.ListValue{Values: values}), nil
}

// mergeStructs joins two struct fragments field-wise: fields present in
// both merge recursively, the rest carry over unchanged.
func mergeStructs(pending, incoming *structpb.Struct) (*structpb.Value, error) {
	fields := make(map[string]*structpb.Value, len(pending.GetFields())+len(incoming.GetFields()))

	for name, value := range pending.GetFields() {
		fields[name] = value
	}

	for name, value := range incoming.GetFields() {
		existing, ok := fields[name]

		if !ok {
			fields[name] = value
			continue
		}

		merged, err := mergeValues(existing, value)

		if err != nil {
			return nil, err
		}

		fields[name] = merged
	}

	return structpb.NewStructValue(&structpb.Struct{Fields: fields}), nil
}

// chunkableKindsMatch reports whether two boundary elements are the same
// kind and that kind can be split across chunks.
func chunkableKindsMatch(last, first *structpb.Value) bool {
	switch last.GetKind().(type) {
	case *structpb.Value_StringValue:
		_, ok := first.GetKind().(*structpb.Value_StringValue)
		return ok
	case *structpb.Value_ListValue:
		_, ok := first.GetKind().(*structpb.Value_ListValue)
		return ok
	case *structpb.Value_StructValue:
		_, ok := first.GetKind().(*structpb.Value_StructValue)
		return ok
	}

	return false
}

func mergeMismatch(pending, incoming *structpb.Value) error {
	return fmt.Errorf("cannot merge fragment of kind %T with %T: %w",
		pending.GetKind(), incoming.GetKind(), ErrProtocol)
}
