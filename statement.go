package spanner

import (
	"context"
	"fmt"

	sppb "cloud.google.com/go/spanner/apiv1/spannerpb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/eddumelendez/cloud-spanner-go/client"
	"github.com/eddumelendez/cloud-spanner-go/codecs"
	"github.com/eddumelendez/cloud-spanner-go/result"
)

// Statement binds SQL text to a connection. It is stateless beyond the
// text, the bound parameters and the connection, so it can be executed
// repeatedly; each execution issues a fresh streaming call.
type Statement struct {
	connection *Connection
	sql        string
	params     []any
}

// Bind sets the zero-based positional parameter, referenced in the SQL
// text as @p1, @p2, and so on.
func (s *Statement) Bind(index int, value any) *Statement {
	for len(s.params) <= index {
		s.params = append(s.params, nil)
	}

	s.params[index] = value

	return s
}

// Execute issues the streaming query and returns its lazy result. The
// transaction context is resolved at this point: the connection's
// explicit transaction if one is begun, an implicit single-use strong
// read-only transaction otherwise.
func (s *Statement) Execute(ctx context.Context) (*Result, error) {
	params, paramTypes, err := s.encodeParams()

	if err != nil {
		return nil, err
	}

	stream, err := s.connection.client.ExecuteStreamingSql(ctx, &client.ExecuteRequest{
		Session:    s.connection.session,
		Selector:   s.connection.selector(),
		SQL:        s.sql,
		Params:     params,
		ParamTypes: paramTypes,
	})

	if err != nil {
		return nil, err
	}

	return newResult(stream, result.NewAssembler(s.connection.codecs)), nil
}

func (s *Statement) encodeParams() (*structpb.Struct, map[string]*sppb.Type, error) {
	if len(s.params) == 0 {
		return nil, nil, nil
	}

	fields := make(map[string]*structpb.Value, len(s.params))
	types := make(map[string]*sppb.Type, len(s.params))

	for i, param := range s.params {
		name := fmt.Sprintf("p%d", i+1)

		encoded, err := s.connection.codecs.Encode(param)

		if err != nil {
			return nil, nil, fmt.Errorf("parameter %s: %w", name, err)
		}

		fields[name] = encoded

		// Untyped nulls carry no type hint.
		if param != nil {
			paramType, err := codecs.TypeOf(param)

			if err != nil {
				return nil, nil, fmt.Errorf("parameter %s: %w", name, err)
			}

			types[name] = paramType
		}
	}

	return &structpb.Struct{Fields: fields}, types, nil
}
