package serializer

import (
	"encoding/json"
	"io"
	"math"
	"strconv"
	"strings"
)

type jsonSerializer struct{}

// JSON encodes payloads as indented JSON. Integral floats are written with a
// trailing ".0" so that floats decode as float64 and integers as int, also
// inside nested maps and slices. Integers beyond the int range decode as
// float64.
func JSON() Serializer { return jsonSerializer{} }

func (jsonSerializer) Name() string { return "json" }

func (jsonSerializer) Extension(base string) string { return base + ".json" }

func (jsonSerializer) Encode(w io.Writer, v map[string]any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(markFloats(v))
}

func (jsonSerializer) Decode(r io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var v map[string]any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return convertNumbers(v).(map[string]any), nil
}

// markFloats copies v, replacing integral floats by numbers that keep a
// fractional part in the encoded text.
func markFloats(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = markFloats(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = markFloats(e)
		}
		return out
	case float64:
		return floatNumber(x)
	case float32:
		return floatNumber(float64(x))
	}
	return v
}

func floatNumber(f float64) any {
	// Larger magnitudes are written in exponent form and NaN or Inf fail
	// to encode either way.
	if f != math.Trunc(f) || math.Abs(f) >= 1e21 {
		return f
	}
	return json.Number(strconv.FormatFloat(f, 'f', -1, 64) + ".0")
}

func convertNumbers(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, e := range x {
			x[k] = convertNumbers(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = convertNumbers(e)
		}
		return x
	case json.Number:
		s := x.String()
		if !strings.ContainsAny(s, ".eE") {
			if i, err := strconv.ParseInt(s, 10, strconv.IntSize); err == nil {
				return int(i)
			}
		}
		f, err := x.Float64()
		if err != nil {
			return s
		}
		return f
	}
	return v
}
