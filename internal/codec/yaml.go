package codec

import (
	"bytes"
	"fmt"
	"math"
	"regexp"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// Line breaks inside a flow collection are plain whitespace, so folding them
// keeps the document equivalent while making it fit on one line.
var flowBreak = regexp.MustCompile(`\n[ \t]*`)

// YAML is the "yaml" codec. Messages are rendered in flow style, e.g.
// {cmd: welcome, id: 01J...}.
type YAML struct{}

func (YAML) Name() string { return "yaml" }

func (YAML) Parse(data []byte) (map[string]any, error) {
	var v map[string]any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, oops.In("codec").With("codec", "yaml").Wrapf(err, "invalid yaml")
	}
	if v == nil {
		return nil, notAnObject("yaml")
	}
	for k, e := range v {
		n, err := normalize(e)
		if err != nil {
			return nil, err
		}
		v[k] = n
	}
	return v, nil
}

// normalize rewrites decoded values into the shape the json codec also
// produces: nested map keys become strings and non-finite numbers are
// refused.
func normalize(v any) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			n, err := normalize(e)
			if err != nil {
				return nil, err
			}
			t[k] = n
		}
		return t, nil
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			n, err := normalize(e)
			if err != nil {
				return nil, err
			}
			out[fmt.Sprint(k)] = n
		}
		return out, nil
	case []any:
		for i, e := range t {
			n, err := normalize(e)
			if err != nil {
				return nil, err
			}
			t[i] = n
		}
		return t, nil
	case float64:
		if math.IsInf(t, 0) || math.IsNaN(t) {
			return nil, oops.In("codec").With("codec", "yaml").Errorf("non-finite number %v", t)
		}
	}
	return v, nil
}

func (YAML) Render(v map[string]any) ([]byte, error) {
	var node yaml.Node
	if err := node.Encode(v); err != nil {
		return nil, oops.In("codec").With("codec", "yaml").Wrapf(err, "encode yaml")
	}
	setFlowStyle(&node)

	out, err := yaml.Marshal(&node)
	if err != nil {
		return nil, oops.In("codec").With("codec", "yaml").Wrapf(err, "render yaml")
	}
	out = bytes.TrimSpace(out)
	return flowBreak.ReplaceAll(out, []byte(" ")), nil
}

func setFlowStyle(n *yaml.Node) {
	if n.Kind == yaml.MappingNode || n.Kind == yaml.SequenceNode {
		n.Style |= yaml.FlowStyle
	}
	for _, child := range n.Content {
		setFlowStyle(child)
	}
}
