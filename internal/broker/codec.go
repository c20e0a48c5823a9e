package broker

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"almaconnector/internal/constants"
)

const contentTypeHeader = "content-type"

// Codec turns envelopes into message values and back.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	ContentType() string
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) ContentType() string                { return "application/json" }

type msgpackCodec struct{}

func (msgpackCodec) Marshal(v any) ([]byte, error)      { return msgpack.Marshal(v) }
func (msgpackCodec) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }
func (msgpackCodec) ContentType() string                { return "application/msgpack" }

func NewCodec(encoding string) (Codec, error) {
	switch encoding {
	case "", constants.EncodingJSON:
		return jsonCodec{}, nil
	case constants.EncodingMsgpack:
		return msgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown message encoding: %s", encoding)
	}
}

// codecFor picks the codec named by a message's content-type header and
// falls back to the configured one.
func codecFor(contentType string, fallback Codec) Codec {
	switch contentType {
	case jsonCodec{}.ContentType():
		return jsonCodec{}
	case msgpackCodec{}.ContentType():
		return msgpackCodec{}
	default:
		return fallback
	}
}
