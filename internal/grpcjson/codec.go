// Package grpcjson registers a JSON codec with gRPC so services can be
// described with plain Go structs instead of generated protobuf types.
//
// Clients select it per call with grpc.CallContentSubtype(Name); the server
// picks it from the application/grpc+json content type.
package grpcjson

import (
	"encoding/json"

	"google.golang.org/grpc/encoding"
)

// Name is the codec name and content subtype.
const Name = "json"

type codec struct{}

func (codec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (codec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func (codec) Name() string { return Name }

func init() {
	encoding.RegisterCodec(codec{})
}
