package serializer

import (
	"io"
	"reflect"

	"github.com/hashicorp/go-msgpack/v2/codec"
)

type msgpackSerializer struct {
	handle *codec.MsgpackHandle
}

// MsgPack encodes payloads as MessagePack. Nested maps decode as
// map[string]any and strings as string.
func MsgPack() Serializer {
	h := &codec.MsgpackHandle{}
	h.MapType = reflect.TypeOf(map[string]any(nil))
	h.RawToString = true
	h.WriteExt = true
	return msgpackSerializer{handle: h}
}

func (msgpackSerializer) Name() string { return "msgpack" }

func (msgpackSerializer) Extension(base string) string { return base + ".msgpack" }

func (s msgpackSerializer) Encode(w io.Writer, v map[string]any) error {
	return codec.NewEncoder(w, s.handle).Encode(v)
}

func (s msgpackSerializer) Decode(r io.Reader) (map[string]any, error) {
	var v map[string]any
	if err := codec.NewDecoder(r, s.handle).Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
