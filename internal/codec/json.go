package codec

import (
	"encoding/json"

	"github.com/samber/oops"
)

// JSON is the "json" codec.
type JSON struct{}

func (JSON) Name() string { return "json" }

func (JSON) Parse(data []byte) (map[string]any, error) {
	var v map[string]any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, oops.In("codec").With("codec", "json").Wrapf(err, "invalid json")
	}
	if v == nil {
		return nil, notAnObject("json")
	}
	return v, nil
}

func (JSON) Render(v map[string]any) ([]byte, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return nil, oops.In("codec").With("codec", "json").Wrapf(err, "render json")
	}
	return out, nil
}
