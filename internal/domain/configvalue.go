package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ConfigKind identifies which variant a ConfigValue holds.
type ConfigKind int

const (
	ConfigNull ConfigKind = iota
	ConfigString
	ConfigNumber
	ConfigBool
	ConfigStringList
	ConfigNumberList
	ConfigObject
)

func (k ConfigKind) String() string {
	switch k {
	case ConfigNull:
		return "null"
	case ConfigString:
		return "string"
	case ConfigNumber:
		return "number"
	case ConfigBool:
		return "bool"
	case ConfigStringList:
		return "string_list"
	case ConfigNumberList:
		return "number_list"
	case ConfigObject:
		return "object"
	}
	return "unknown"
}

// ConfigValue is a remote config value. Exactly one variant is populated,
// selected by Kind. The zero value is null.
type ConfigValue struct {
	kind    ConfigKind
	str     string
	num     float64
	boolean bool
	strs    []string
	nums    []float64
	obj     map[string]any
}

func NullValue() ConfigValue            { return ConfigValue{} }
func StringValue(s string) ConfigValue  { return ConfigValue{kind: ConfigString, str: s} }
func NumberValue(n float64) ConfigValue { return ConfigValue{kind: ConfigNumber, num: n} }
func BoolValue(b bool) ConfigValue      { return ConfigValue{kind: ConfigBool, boolean: b} }

func StringListValue(items []string) ConfigValue {
	return ConfigValue{kind: ConfigStringList, strs: append([]string{}, items...)}
}

func NumberListValue(items []float64) ConfigValue {
	return ConfigValue{kind: ConfigNumberList, nums: append([]float64{}, items...)}
}

func ObjectValue(obj map[string]any) ConfigValue {
	cp := make(map[string]any, len(obj))
	for k, v := range obj {
		cp[k] = v
	}
	return ConfigValue{kind: ConfigObject, obj: cp}
}

func (v ConfigValue) Kind() ConfigKind { return v.kind }
func (v ConfigValue) IsNull() bool     { return v.kind == ConfigNull }

func (v ConfigValue) AsString() (string, bool) {
	return v.str, v.kind == ConfigString
}

func (v ConfigValue) AsNumber() (float64, bool) {
	return v.num, v.kind == ConfigNumber
}

func (v ConfigValue) AsBool() (bool, bool) {
	return v.boolean, v.kind == ConfigBool
}

func (v ConfigValue) AsStringList() ([]string, bool) {
	if v.kind != ConfigStringList {
		return nil, false
	}
	return append([]string{}, v.strs...), true
}

func (v ConfigValue) AsNumberList() ([]float64, bool) {
	if v.kind != ConfigNumberList {
		return nil, false
	}
	return append([]float64{}, v.nums...), true
}

func (v ConfigValue) AsObject() (map[string]any, bool) {
	if v.kind != ConfigObject {
		return nil, false
	}
	cp := make(map[string]any, len(v.obj))
	for k, val := range v.obj {
		cp[k] = val
	}
	return cp, true
}

func (v ConfigValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case ConfigNull:
		return []byte("null"), nil
	case ConfigString:
		return json.Marshal(v.str)
	case ConfigNumber:
		return json.Marshal(v.num)
	case ConfigBool:
		return json.Marshal(v.boolean)
	case ConfigStringList:
		if v.strs == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.strs)
	case ConfigNumberList:
		if v.nums == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.nums)
	case ConfigObject:
		if v.obj == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.obj)
	}
	return nil, fmt.Errorf("config value: unknown kind %d", v.kind)
}

// UnmarshalJSON decodes any JSON document into the matching variant. Arrays
// of numbers become number lists; any other array becomes a string list with
// non-string elements rendered as text.
func (v *ConfigValue) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*v = ConfigValue{}
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(trimmed, &b); err != nil {
			return err
		}
		*v = BoolValue(b)
	case '{':
		var obj map[string]any
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return err
		}
		*v = ObjectValue(obj)
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		*v = listValue(items)
	default:
		var n float64
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return err
		}
		*v = NumberValue(n)
	}
	return nil
}

func listValue(items []json.RawMessage) ConfigValue {
	nums := make([]float64, 0, len(items))
	for _, item := range items {
		var n float64
		if err := json.Unmarshal(item, &n); err != nil {
			nums = nil
			break
		}
		nums = append(nums, n)
	}
	if nums != nil && len(items) > 0 {
		return NumberListValue(nums)
	}
	return StringListValue(stringifyJSON(items))
}

func stringifyJSON(items []json.RawMessage) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var n float64
		if err := json.Unmarshal(item, &n); err == nil {
			out = append(out, formatNumber(n))
			continue
		}
		out = append(out, string(bytes.TrimSpace(item)))
	}
	return out
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// FeatureConfigEntry is one row of remote configuration.
type FeatureConfigEntry struct {
	Key         string      `json:"key"`
	Value       ConfigValue `json:"value"`
	Description *string     `json:"description"`
	CreatedAt   *time.Time  `json:"createdAt,omitempty"`
	UpdatedAt   *time.Time  `json:"updatedAt,omitempty"`
}

// Well-known feature config keys.
const (
	ConfigKeyBlockedTerms = "moderation_blocked_terms"
	ConfigKeyReviewTerms  = "moderation_review_terms"
	ConfigKeyTermsVersion = "terms_version"
	ConfigKeyTermsURL     = "terms_url"
)

// ConfigDescriptions holds the default description written with each well-known key.
var ConfigDescriptions = map[string]string{
	ConfigKeyBlockedTerms: "Terms that block content immediately.",
	ConfigKeyReviewTerms:  "Terms that place content into review.",
	ConfigKeyTermsVersion: "Current Terms of Service version required for acceptance.",
	ConfigKeyTermsURL:     "Public Terms of Service URL.",
}
