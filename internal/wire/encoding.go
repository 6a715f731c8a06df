package wire

import (
	"bytes"
	"fmt"
	"mime"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// Encoding is the body encoding of requests and responses.
type Encoding uint8

const (
	EncodingJSON Encoding = iota
	EncodingMsgPack
)

const (
	ContentTypeJSON    = "application/json; charset=utf-8"
	ContentTypeMsgPack = "application/msgpack"
)

func (e Encoding) String() string {
	if e == EncodingMsgPack {
		return "msgpack"
	}
	return "json"
}

// ContentType is the Content-Type header value for the encoding.
func (e Encoding) ContentType() string {
	if e == EncodingMsgPack {
		return ContentTypeMsgPack
	}
	return ContentTypeJSON
}

// EncodingOf maps a media type to an encoding. Unknown media types are JSON.
func EncodingOf(mediaType string) Encoding {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		mt = strings.ToLower(strings.TrimSpace(mediaType))
	}
	switch mt {
	case "application/msgpack", "application/x-msgpack", "application/vnd.msgpack":
		return EncodingMsgPack
	default:
		return EncodingJSON
	}
}

// PreferredEncoding picks the first supported media type of an Accept header,
// e.g. "application/msgpack, application/json". Defaults to JSON.
func PreferredEncoding(accept string) Encoding {
	for _, part := range strings.Split(accept, ",") {
		mt, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		switch strings.ToLower(strings.TrimSpace(mt)) {
		case "application/msgpack", "application/x-msgpack", "application/vnd.msgpack":
			return EncodingMsgPack
		case "application/json", "*/*":
			return EncodingJSON
		}
	}
	return EncodingJSON
}

func Marshal(v any, enc Encoding) ([]byte, error) {
	switch enc {
	case EncodingJSON:
		return jsonMarshal(v)
	case EncodingMsgPack:
		var buf bytes.Buffer
		e := msgpack.NewEncoder(&buf)
		e.SetCustomStructTag("json")
		e.UseCompactInts(true)
		if err := e.Encode(v); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unknown encoding: %d", enc)
	}
}

func Unmarshal(data []byte, v any, enc Encoding) error {
	switch enc {
	case EncodingJSON:
		return jsonUnmarshal(data, v)
	case EncodingMsgPack:
		d := msgpack.NewDecoder(bytes.NewReader(data))
		d.SetCustomStructTag("json")
		return d.Decode(v)
	default:
		return fmt.Errorf("unknown encoding: %d", enc)
	}
}
