// Package jsoncodec is the JSON codec of the management HTTP binding.
package jsoncodec

import (
	"io"

	"github.com/bytedance/sonic"
)

// Std-compatible config: sorted map keys and HTML escaping, so attribute
// documents render identically to encoding/json.
var defaultConfig = sonic.ConfigStd

func Marshal(v any) ([]byte, error) {
	return defaultConfig.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return defaultConfig.Unmarshal(data, v)
}

// Encode writes v followed by a newline.
func Encode(w io.Writer, v any) error {
	return defaultConfig.NewEncoder(w).Encode(v)
}

// DecodeArgs reads a JSON array of operation arguments. An empty body yields no arguments.
func DecodeArgs(r io.Reader) ([]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	var args []any
	if err := defaultConfig.Unmarshal(data, &args); err != nil {
		return nil, err
	}
	return args, nil
}
