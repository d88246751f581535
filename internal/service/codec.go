package service

import (
	"encoding/json"
)

// CodecName replaces connect's protobuf JSON codec for this service.
const CodecName = "json"

// Codec encodes plain Go messages as JSON.
type Codec struct{}

func (Codec) Name() string {
	return CodecName
}

func (Codec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

func (Codec) Unmarshal(data []byte, msg any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, msg)
}
