package mxs

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type PropsType int

const (
	PROP_TYPE_STRING PropsType = iota
	PROP_TYPE_INT
	PROP_TYPE_FLOAT
	PROP_TYPE_BOOL
	PROP_TYPE_ARRAY
	PROP_TYPE_MAP
)

var propsTypeNames = [...]string{
	PROP_TYPE_STRING: "string",
	PROP_TYPE_INT:    "int",
	PROP_TYPE_FLOAT:  "float",
	PROP_TYPE_BOOL:   "bool",
	PROP_TYPE_ARRAY:  "array",
	PROP_TYPE_MAP:    "map",
}

func (t PropsType) String() string {
	if t < 0 || int(t) >= len(propsTypeNames) {
		return fmt.Sprintf("PropsType(%d)", int(t))
	}
	return propsTypeNames[t]
}

func parsePropsType(s string) (PropsType, error) {
	for i, n := range propsTypeNames {
		if n == s {
			return PropsType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown property type %q", s)
}

// PropsValue is a typed renderer parameter. Value holds a string, int64,
// float64, bool, []PropsValue or Properties according to Type.
type PropsValue struct {
	Type  PropsType
	Value interface{}
}

func StringValue(s string) PropsValue           { return PropsValue{PROP_TYPE_STRING, s} }
func IntValue(i int64) PropsValue               { return PropsValue{PROP_TYPE_INT, i} }
func FloatValue(f float64) PropsValue           { return PropsValue{PROP_TYPE_FLOAT, f} }
func BoolValue(b bool) PropsValue               { return PropsValue{PROP_TYPE_BOOL, b} }
func ArrayValue(items ...PropsValue) PropsValue { return PropsValue{PROP_TYPE_ARRAY, items} }
func MapValue(props Properties) PropsValue      { return PropsValue{PROP_TYPE_MAP, props} }

// Properties is a set of named renderer parameters.
type Properties map[string]PropsValue

// Keys returns the property names in sorted order.
func (p Properties) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (p Properties) Float(key string, def float64) float64 {
	v, ok := p[key]
	if !ok {
		return def
	}
	switch x := v.Value.(type) {
	case float64:
		return x
	case int64:
		return float64(x)
	}
	return def
}

func (p Properties) Int(key string, def int64) int64 {
	if v, ok := p[key]; ok {
		if x, ok := v.Value.(int64); ok {
			return x
		}
	}
	return def
}

func (p Properties) Bool(key string, def bool) bool {
	if v, ok := p[key]; ok {
		if x, ok := v.Value.(bool); ok {
			return x
		}
	}
	return def
}

func (p Properties) String(key string, def string) string {
	if v, ok := p[key]; ok {
		if x, ok := v.Value.(string); ok {
			return x
		}
	}
	return def
}

// Clone returns a deep copy of p.
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v.clone()
	}
	return out
}

func (v PropsValue) clone() PropsValue {
	switch x := v.Value.(type) {
	case []PropsValue:
		items := make([]PropsValue, len(x))
		for i := range x {
			items[i] = x[i].clone()
		}
		return PropsValue{v.Type, items}
	case Properties:
		return PropsValue{v.Type, x.Clone()}
	}
	return v
}

type taggedValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

func (v PropsValue) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(v.Value)
	if err != nil {
		return nil, fmt.Errorf("marshal %s property failed: %w", v.Type, err)
	}
	return json.Marshal(taggedValue{Type: v.Type.String(), Value: raw})
}

func (v *PropsValue) UnmarshalJSON(b []byte) error {
	var tv taggedValue
	if err := json.Unmarshal(b, &tv); err != nil {
		return err
	}
	t, err := parsePropsType(tv.Type)
	if err != nil {
		return err
	}
	var target interface{}
	switch t {
	case PROP_TYPE_STRING:
		var s string
		err = json.Unmarshal(tv.Value, &s)
		target = s
	case PROP_TYPE_INT:
		var i int64
		err = json.Unmarshal(tv.Value, &i)
		target = i
	case PROP_TYPE_FLOAT:
		var f float64
		err = json.Unmarshal(tv.Value, &f)
		target = f
	case PROP_TYPE_BOOL:
		var x bool
		err = json.Unmarshal(tv.Value, &x)
		target = x
	case PROP_TYPE_ARRAY:
		var items []PropsValue
		err = json.Unmarshal(tv.Value, &items)
		target = items
	case PROP_TYPE_MAP:
		var props Properties
		err = json.Unmarshal(tv.Value, &props)
		target = props
	}
	if err != nil {
		return fmt.Errorf("unmarshal %s property failed: %w", t, err)
	}
	*v = PropsValue{Type: t, Value: target}
	return nil
}

// UnmarshalYAML infers the property type from the YAML node, so scene
// snapshots can carry plain values.
func (v *PropsValue) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var items []PropsValue
		if err := node.Decode(&items); err != nil {
			return err
		}
		*v = ArrayValue(items...)
		return nil
	case yaml.MappingNode:
		var props Properties
		if err := node.Decode(&props); err != nil {
			return err
		}
		*v = MapValue(props)
		return nil
	case yaml.ScalarNode:
	default:
		return fmt.Errorf("line %d: unsupported property node", node.Line)
	}
	switch node.Tag {
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return err
		}
		*v = BoolValue(b)
	case "!!int":
		var i int64
		if err := node.Decode(&i); err != nil {
			return err
		}
		*v = IntValue(i)
	case "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return err
		}
		*v = FloatValue(f)
	default:
		*v = StringValue(node.Value)
	}
	return nil
}

// MarshalYAML writes floats with a fraction or exponent so that they load
// back as floats.
func (v PropsValue) MarshalYAML() (interface{}, error) {
	f, ok := v.Value.(float64)
	if !ok {
		return v.Value, nil
	}
	var s string
	switch {
	case math.IsNaN(f):
		s = ".nan"
	case math.IsInf(f, 1):
		s = ".inf"
	case math.IsInf(f, -1):
		s = "-.inf"
	default:
		s = strconv.FormatFloat(f, 'g', -1, 64)
		if !strings.ContainsAny(s, ".e") {
			s += ".0"
		}
	}
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: s}, nil
}
