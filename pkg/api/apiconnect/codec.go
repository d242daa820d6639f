package apiconnect

import (
	"encoding/json"

	"connectrpc.com/connect"
)

// codec serializes the plain api messages as JSON. It registers under the
// "json" name so it replaces Connect's protobuf JSON codec.
type codec struct{}

var _ connect.Codec = codec{}

func (codec) Name() string { return "json" }

func (codec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (codec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, msg)
}

func withCodec() connect.Option {
	return connect.WithCodec(codec{})
}
