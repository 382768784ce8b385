package types

import (
	"embed"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type FieldKind string

const (
	KindString FieldKind = "string"
	KindNumber FieldKind = "number"
)

type Field struct {
	Name     string    `yaml:"name" json:"name"`
	Header   string    `yaml:"header" json:"header"`
	Kind     FieldKind `yaml:"kind" json:"kind"`
	Required bool      `yaml:"required" json:"required"`
}

// Rule is a CEL boolean expression over the record bound as `r`.
type Rule struct {
	Name    string `yaml:"name" json:"name"`
	Expr    string `yaml:"expr" json:"expr"`
	Message string `yaml:"message" json:"message"`
}

type Schema struct {
	Name          string        `yaml:"name" json:"name"`
	Collection    string        `yaml:"collection" json:"collection"`
	Title         string        `yaml:"title" json:"title"`
	Fields        []Field       `yaml:"fields" json:"fields"`
	Filterable    []string      `yaml:"filterable" json:"filterable"`
	PrefixField   string        `yaml:"prefix_field" json:"prefix_field,omitempty"`
	CountTTL      time.Duration `yaml:"count_ttl" json:"count_ttl"`
	AllTTL        time.Duration `yaml:"all_ttl" json:"all_ttl"`
	PersistMirror bool          `yaml:"persist_mirror" json:"persist_mirror"`
	Rules         []Rule        `yaml:"rules" json:"rules,omitempty"`
}

func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func (s Schema) FieldNames() []string {
	out := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		out = append(out, f.Name)
	}
	return out
}

func (s Schema) Headers() []string {
	out := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		out = append(out, f.Header)
	}
	return out
}

func (s Schema) IsFilterable(name string) bool {
	return slices.Contains(s.Filterable, name) || (s.PrefixField != "" && name == s.PrefixField)
}

var schemaNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Validate checks structural consistency. CEL rules are compiled separately
// by the services layer.
func (s Schema) Validate() error {
	if !schemaNameRe.MatchString(s.Name) {
		return fmt.Errorf("schema %q: invalid name", s.Name)
	}
	if strings.TrimSpace(s.Collection) == "" {
		return fmt.Errorf("schema %s: collection required", s.Name)
	}
	if len(s.Fields) == 0 {
		return fmt.Errorf("schema %s: no fields", s.Name)
	}
	seen := make(map[string]struct{}, len(s.Fields))
	for _, f := range s.Fields {
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("schema %s: field without name", s.Name)
		}
		if IsSystemField(f.Name) {
			return fmt.Errorf("schema %s: field %s is reserved", s.Name, f.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("schema %s: duplicate field %s", s.Name, f.Name)
		}
		seen[f.Name] = struct{}{}
		switch f.Kind {
		case KindString, KindNumber:
		default:
			return fmt.Errorf("schema %s: field %s has unknown kind %q", s.Name, f.Name, f.Kind)
		}
	}
	// Filter values are strings; equality against stored numbers never matches.
	for _, name := range s.Filterable {
		f, ok := s.Field(name)
		if !ok {
			return fmt.Errorf("schema %s: filterable field %s not declared", s.Name, name)
		}
		if f.Kind != KindString {
			return fmt.Errorf("schema %s: filterable field %s must be a string field", s.Name, name)
		}
	}
	if s.PrefixField != "" {
		f, ok := s.Field(s.PrefixField)
		if !ok || f.Kind != KindString {
			return fmt.Errorf("schema %s: prefix field %s must be a declared string field", s.Name, s.PrefixField)
		}
	}
	if s.CountTTL <= 0 || s.AllTTL <= 0 {
		return fmt.Errorf("schema %s: ttl must be positive", s.Name)
	}
	for _, r := range s.Rules {
		if strings.TrimSpace(r.Name) == "" || strings.TrimSpace(r.Expr) == "" {
			return fmt.Errorf("schema %s: rule requires name and expr", s.Name)
		}
	}
	return nil
}

const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

func IsSystemField(name string) bool {
	return name == FieldID || name == FieldCreatedAt || name == FieldUpdatedAt
}

//go:embed schemas/*.yaml
var builtinFS embed.FS

// ParseSchema decodes and validates one YAML schema document.
func ParseSchema(raw []byte) (Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return Schema{}, err
	}
	if err := s.Validate(); err != nil {
		return Schema{}, err
	}
	return s, nil
}

// BuiltinSchemas returns the registries shipped with the console, sorted by name.
func BuiltinSchemas() ([]Schema, error) {
	entries, err := builtinFS.ReadDir("schemas")
	if err != nil {
		return nil, err
	}
	out := make([]Schema, 0, len(entries))
	names := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		raw, err := builtinFS.ReadFile("schemas/" + e.Name())
		if err != nil {
			return nil, err
		}
		s, err := ParseSchema(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		if _, dup := names[s.Name]; dup {
			return nil, errors.New("duplicate schema " + s.Name)
		}
		names[s.Name] = struct{}{}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
