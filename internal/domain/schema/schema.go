// Package schema implements the small parameter descriptor language used to
// describe and validate tool input: objects, arrays, strings, numbers,
// integers, booleans and enums, each with optional constraints.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/pkg/errors"
)

// Kind is the value type a Schema accepts.
type Kind string

// Supported kinds
const (
	KindObject  Kind = "object"
	KindArray   Kind = "array"
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindInteger Kind = "integer"
	KindBoolean Kind = "boolean"
)

// Schema describes the accepted shape of a value.
type Schema struct {
	Kind        Kind
	Description string

	// object
	Properties           map[string]*Schema
	Required             []string
	AdditionalProperties bool

	// array
	Items    *Schema
	MinItems *int
	MaxItems *int

	// string
	MinLength *int
	MaxLength *int
	Pattern   string
	Format    string

	// number / integer
	Minimum *float64
	Maximum *float64

	// any kind
	Enum []any

	once       sync.Once
	resolved   *jsonschema.Resolved
	resolveErr error
}

// Violation is a single validation failure.
type Violation struct {
	Path    string
	Message string
}

func (v Violation) String() string {
	if v.Path == "" {
		return v.Message
	}
	return v.Path + ": " + v.Message
}

// Object returns an object schema with the given properties and required keys.
func Object(props map[string]*Schema, required ...string) *Schema {
	return &Schema{Kind: KindObject, Properties: props, Required: required}
}

// String returns a string schema.
func String(description string) *Schema {
	return &Schema{Kind: KindString, Description: description}
}

// Number returns a number schema.
func Number(description string) *Schema {
	return &Schema{Kind: KindNumber, Description: description}
}

// Integer returns an integer schema.
func Integer(description string) *Schema {
	return &Schema{Kind: KindInteger, Description: description}
}

// Boolean returns a boolean schema.
func Boolean(description string) *Schema {
	return &Schema{Kind: KindBoolean, Description: description}
}

// Array returns an array schema whose elements match items.
func Array(description string, items *Schema) *Schema {
	return &Schema{Kind: KindArray, Description: description, Items: items}
}

// Enum returns a string schema restricted to the given values.
func Enum(description string, values ...string) *Schema {
	enum := make([]any, len(values))
	for i, v := range values {
		enum[i] = v
	}
	return &Schema{Kind: KindString, Description: description, Enum: enum}
}

// WithRange sets numeric bounds and returns s.
func (s *Schema) WithRange(min, max float64) *Schema {
	s.Minimum = &min
	s.Maximum = &max
	return s
}

// WithLength sets string length bounds and returns s. A negative max means unbounded.
func (s *Schema) WithLength(min, max int) *Schema {
	s.MinLength = &min
	if max >= 0 {
		s.MaxLength = &max
	}
	return s
}

// WithPattern sets a regular expression the string must match and returns s.
func (s *Schema) WithPattern(pattern string) *Schema {
	s.Pattern = pattern
	return s
}

// WithFormat records a format hint (e.g. "uuid", "date-time") and returns s.
func (s *Schema) WithFormat(format string) *Schema {
	s.Format = format
	return s
}

// Validate checks v against s and returns every violation found.
// The root path is "params".
func (s *Schema) Validate(v any) []Violation {
	if s == nil {
		return nil
	}
	var out []Violation
	s.validate("params", v, &out)
	return out
}

// ValidateParams is Validate for a decoded parameter object. A nil map is
// treated as an empty object.
func (s *Schema) ValidateParams(params map[string]any) []Violation {
	if params == nil {
		params = map[string]any{}
	}
	return s.Validate(params)
}

func (s *Schema) validate(path string, v any, out *[]Violation) {
	if msg := s.check(v); msg != "" {
		*out = append(*out, Violation{Path: path, Message: msg})
		return
	}

	switch s.Kind {
	case KindObject:
		obj, ok := v.(map[string]any)
		if !ok {
			return
		}
		for _, name := range s.Required {
			if val, present := obj[name]; !present || val == nil {
				*out = append(*out, Violation{Path: path + "." + name, Message: "is required"})
			}
		}
		for _, name := range sortedKeys(obj) {
			prop, known := s.Properties[name]
			if !known {
				if !s.AdditionalProperties && s.Properties != nil {
					*out = append(*out, Violation{Path: path + "." + name, Message: "is not allowed"})
				}
				continue
			}
			if obj[name] == nil {
				continue
			}
			prop.validate(path+"."+name, obj[name], out)
		}

	case KindArray:
		if arr, ok := v.([]any); ok && s.Items != nil {
			for i, item := range arr {
				s.Items.validate(fmt.Sprintf("%s[%d]", path, i), item, out)
			}
		}
	}
}

// check validates v against the node's own keywords, leaving properties and
// items to the caller, and returns the first failure as a message.
func (s *Schema) check(v any) string {
	rs, err := s.resolve()
	if err != nil {
		return "has an invalid schema: " + err.Error()
	}
	err = rs.Validate(normalize(v))
	if err == nil {
		return ""
	}
	for errors.Unwrap(err) != nil {
		err = errors.Unwrap(err)
	}
	keyword, detail, _ := strings.Cut(err.Error(), ": ")

	switch keyword {
	case "type":
		if s.Kind == KindInteger {
			if f, ok := toFloat(v); ok {
				return fmt.Sprintf("expected integer, got %v", f)
			}
		}
		return fmt.Sprintf("expected %s, got %s", s.Kind, typeName(v))
	case "enum":
		return "must be one of " + formatEnum(s.Enum)
	case "minimum":
		return fmt.Sprintf("must be >= %v", *s.Minimum)
	case "maximum":
		return fmt.Sprintf("must be <= %v", *s.Maximum)
	case "minLength":
		return fmt.Sprintf("must be at least %d characters", *s.MinLength)
	case "maxLength":
		return fmt.Sprintf("must be at most %d characters", *s.MaxLength)
	case "pattern":
		return fmt.Sprintf("must match pattern %q", s.Pattern)
	case "minItems":
		return fmt.Sprintf("must contain at least %d items", *s.MinItems)
	case "maxItems":
		return fmt.Sprintf("must contain at most %d items", *s.MaxItems)
	}
	if detail == "" {
		return keyword
	}
	return keyword + ": " + detail
}

// resolve builds the node-local JSON Schema once: properties, required keys
// and items are checked by validate so every violation gets reported.
func (s *Schema) resolve() (*jsonschema.Resolved, error) {
	s.once.Do(func() {
		local := s.JSONSchema()
		local.Properties = nil
		local.Required = nil
		local.Items = nil
		s.resolved, s.resolveErr = local.Resolve(nil)
	})
	return s.resolved, s.resolveErr
}

// normalize turns json.Number into float64 so it validates as a number.
func normalize(v any) any {
	if n, ok := v.(json.Number); ok {
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	return v
}

// JSONSchema projects s into a JSON Schema document for discovery responses.
func (s *Schema) JSONSchema() *jsonschema.Schema {
	if s == nil {
		return &jsonschema.Schema{Type: string(KindObject)}
	}
	js := &jsonschema.Schema{
		Type:        string(s.Kind),
		Description: s.Description,
		Pattern:     s.Pattern,
		Format:      s.Format,
		Minimum:     s.Minimum,
		Maximum:     s.Maximum,
		MinLength:   s.MinLength,
		MaxLength:   s.MaxLength,
		MinItems:    s.MinItems,
		MaxItems:    s.MaxItems,
		Enum:        s.Enum,
	}
	if len(s.Required) > 0 {
		js.Required = append([]string(nil), s.Required...)
	}
	if len(s.Properties) > 0 {
		js.Properties = make(map[string]*jsonschema.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			js.Properties[name] = prop.JSONSchema()
		}
	}
	if s.Items != nil {
		js.Items = s.Items.JSONSchema()
	}
	return js
}

// MarshalJSON renders the JSON Schema projection.
func (s *Schema) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.JSONSchema())
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	}
	if _, ok := toFloat(v); ok {
		return "number"
	}
	return fmt.Sprintf("%T", v)
}

func formatEnum(enum []any) string {
	parts := make([]string, len(enum))
	for i, e := range enum {
		parts[i] = fmt.Sprintf("%v", e)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
