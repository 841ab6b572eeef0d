package serializer

import (
	"errors"
	"io"

	"gopkg.in/yaml.v3"
)

type yamlSerializer struct{}

// YAML encodes payloads as YAML documents.
func YAML() Serializer { return yamlSerializer{} }

func (yamlSerializer) Name() string { return "yaml" }

func (yamlSerializer) Extension(base string) string { return base + ".yaml" }

func (yamlSerializer) Encode(w io.Writer, v map[string]any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func (yamlSerializer) Decode(r io.Reader) (map[string]any, error) {
	var v map[string]any
	if err := yaml.NewDecoder(r).Decode(&v); err != nil {
		// An empty document is an empty payload.
		if errors.Is(err, io.EOF) {
			return map[string]any{}, nil
		}
		return nil, err
	}
	return v, nil
}
