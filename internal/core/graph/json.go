package graph

import (
	"encoding/json"
	"fmt"
)

// DecodeData decodes a payload for the given node type. Missing fields keep
// the type defaults.
func DecodeData(t NodeType, raw []byte) (NodeData, error) {
	def, err := NewData(t)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return def, nil
	}
	switch d := def.(type) {
	case ImageInputData:
		err = json.Unmarshal(raw, &d)
		def = d
	case AnnotationData:
		err = json.Unmarshal(raw, &d)
		def = d
	case PromptData:
		err = json.Unmarshal(raw, &d)
		def = d
	case GenerateImageData:
		err = json.Unmarshal(raw, &d)
		def = d
	case LLMGenerateData:
		err = json.Unmarshal(raw, &d)
		def = d
	case SplitGridData:
		err = json.Unmarshal(raw, &d)
		def = d
	case OutputData:
		err = json.Unmarshal(raw, &d)
		def = d
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s data: %w", t, err)
	}
	if def.State().Status == "" {
		def = def.withState(RunState{Status: StatusIdle, Error: def.State().Error})
	}
	return def, nil
}

// UnmarshalJSON decodes a node, choosing the payload variant from its type.
func (n *Node) UnmarshalJSON(b []byte) error {
	type alias Node
	var raw struct {
		alias
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	data, err := DecodeData(raw.Type, raw.Data)
	if err != nil {
		return err
	}
	*n = Node(raw.alias)
	n.Data = data
	return nil
}
