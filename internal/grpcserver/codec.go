package grpcserver

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc/encoding"
)

// codecName is the content-subtype both the server and the client of the
// internal RPC surface agree on. The service has no generated protobuf
// bindings; plain JSON over gRPC framing is enough for its two methods.
const codecName = "json"

type jsonCodec struct{}

func (jsonCodec) Marshal(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("in internal/grpcserver/codec.go/Marshal(): error while `json.Marshal()` calling: %w", err)
	}

	return data, nil
}

func (jsonCodec) Unmarshal(data []byte, v interface{}) error {
	err := json.Unmarshal(data, v)
	if err != nil {
		return fmt.Errorf("in internal/grpcserver/codec.go/Unmarshal(): error while `json.Unmarshal()` calling: %w", err)
	}

	return nil
}

func (jsonCodec) Name() string {
	return codecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}
