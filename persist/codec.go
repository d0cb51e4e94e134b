package persist

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// Codec converts whole-store snapshots to and from their stored form.
type Codec interface {
	Marshal(v map[string]any) ([]byte, error)
	Unmarshal(data []byte, v *map[string]any) error
	ContentType() string
}

type JSONCodec struct{}

func (JSONCodec) Marshal(v map[string]any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Unmarshal(data []byte, v *map[string]any) error {
	return json.Unmarshal(data, v)
}

func (JSONCodec) ContentType() string {
	return "application/json"
}

// YAMLCodec stores snapshots as YAML documents. Values decoded by it keep
// YAML's scalar types, so integers come back as int instead of float64.
type YAMLCodec struct{}

func (YAMLCodec) Marshal(v map[string]any) ([]byte, error) {
	return yaml.Marshal(v)
}

func (YAMLCodec) Unmarshal(data []byte, v *map[string]any) error {
	return yaml.Unmarshal(data, v)
}

func (YAMLCodec) ContentType() string {
	return "application/x-yaml"
}

var (
	_ Codec = JSONCodec{}
	_ Codec = YAMLCodec{}
)
