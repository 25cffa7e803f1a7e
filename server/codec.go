package server

import (
	"encoding/json"

	"connectrpc.com/connect"
)

// jsonCodec is a connect.Codec that serializes plain Go structs with
// encoding/json. The session and library services use hand-written
// message types rather than generated protobuf, so both handlers and
// clients register this codec explicitly.
type jsonCodec struct{}

// JSONCodec returns the codec used by all brainfuck connect endpoints.
// Pass it with connect.WithCodec on clients talking to the server.
func JSONCodec() connect.Codec {
	return jsonCodec{}
}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonCodec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, msg)
}
