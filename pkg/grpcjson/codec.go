// Package grpcjson registers a gRPC codec that carries plain Go structs as JSON. Services
// use it to expose their application DTOs without generated protobuf types.
package grpcjson

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// Name is the content-subtype clients select with grpc.CallContentSubtype.
const Name = "json"

func init() {
	encoding.RegisterCodec(codec{})
}

// codec marshals with encoding/json, so decimals keep their exact string form.
type codec struct{}

func (codec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (codec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (codec) Name() string {
	return Name
}
