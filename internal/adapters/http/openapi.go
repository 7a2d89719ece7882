package http

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var openAPISource []byte

// openAPIDocument returns the embedded OpenAPI document as JSON. It is
// converted once and cached.
var openAPIDocument = sync.OnceValues(func() ([]byte, error) {
	return yamlToJSON(openAPISource)
})

// yamlToJSON converts a YAML document to JSON. Mapping keys are kept as
// written, so unquoted status codes survive as "200".
func yamlToJSON(src []byte) ([]byte, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(src, &root); err != nil {
		return nil, fmt.Errorf("parsing OpenAPI document: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, fmt.Errorf("empty OpenAPI document")
	}

	v, err := nodeValue(root.Content[0])
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(v, "", "  ")
}

func nodeValue(n *yaml.Node) (interface{}, error) {
	switch n.Kind {
	case yaml.MappingNode:
		m := make(map[string]interface{}, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := nodeValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			m[n.Content[i].Value] = v
		}
		return m, nil
	case yaml.SequenceNode:
		s := make([]interface{}, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := nodeValue(c)
			if err != nil {
				return nil, err
			}
			s = append(s, v)
		}
		return s, nil
	case yaml.AliasNode:
		return nodeValue(n.Alias)
	default:
		var v interface{}
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	}
}
