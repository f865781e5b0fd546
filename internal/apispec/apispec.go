// Package apispec loads the OpenAPI description of the HTTP API and checks
// it for internal consistency and against the registered routes.
package apispec

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the OpenAPI document relative to the repository root.
const DefaultPath = "api/openapi.yaml"

var methods = map[string]bool{
	"get": true, "put": true, "post": true, "delete": true, "patch": true, "head": true, "options": true,
}

// Doc is the subset of an OpenAPI 3 document the checks need.
type Doc struct {
	Paths      map[string]map[string]Operation `yaml:"paths"`
	Components struct {
		Schemas map[string]Schema `yaml:"schemas"`
	} `yaml:"components"`

	root yaml.Node
}

type Operation struct {
	Summary   string               `yaml:"summary"`
	Responses map[string]yaml.Node `yaml:"responses"`
}

type Schema struct {
	Type       string            `yaml:"type"`
	Ref        string            `yaml:"$ref"`
	Properties map[string]Schema `yaml:"properties"`
	Required   []string          `yaml:"required"`
	Items      *Schema           `yaml:"items"`
}

// Load reads and parses an OpenAPI document.
func Load(path string) (*Doc, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse parses an OpenAPI document from YAML.
func Parse(raw []byte) (*Doc, error) {
	doc := &Doc{}
	if err := yaml.Unmarshal(raw, &doc.root); err != nil {
		return nil, fmt.Errorf("parse openapi: %w", err)
	}
	if err := doc.root.Decode(doc); err != nil {
		return nil, fmt.Errorf("decode openapi: %w", err)
	}
	return doc, nil
}

// Operations returns the documented operations as sorted "METHOD /path"
// strings, the same form net/http patterns use.
func (d *Doc) Operations() []string {
	var out []string
	for path, item := range d.Paths {
		for method := range item {
			if methods[strings.ToLower(method)] {
				out = append(out, strings.ToUpper(method)+" "+path)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Validate checks the shared response schemas, that every operation
// documents a response, and that every $ref resolves.
func (d *Doc) Validate() error {
	var errs []error
	errs = append(errs, d.requireSchema("ErrorResponse", map[string]string{"error": "string"})...)
	errs = append(errs, d.requireSchema("DecisionResponse", map[string]string{
		"message":   "string",
		"status":    "string",
		"emailSent": "boolean",
	})...)
	for _, op := range d.Operations() {
		method, path, _ := strings.Cut(op, " ")
		if len(d.Paths[path][strings.ToLower(method)].Responses) == 0 {
			errs = append(errs, fmt.Errorf("%s: no responses documented", op))
		}
	}
	for _, ref := range collectRefs(&d.root) {
		if !d.resolves(ref) {
			errs = append(errs, fmt.Errorf("unresolved $ref %q", ref))
		}
	}
	return errors.Join(errs...)
}

// Compare reports routes that are served but not documented, and
// documented operations nothing serves.
func (d *Doc) Compare(routes []string) error {
	documented := make(map[string]bool)
	for _, op := range d.Operations() {
		documented[op] = true
	}
	served := make(map[string]bool, len(routes))
	var errs []error
	for _, route := range routes {
		served[route] = true
		if !documented[route] {
			errs = append(errs, fmt.Errorf("route %q is not documented", route))
		}
	}
	for _, op := range d.Operations() {
		if !served[op] {
			errs = append(errs, fmt.Errorf("documented operation %q is not served", op))
		}
	}
	return errors.Join(errs...)
}

func (d *Doc) requireSchema(name string, fields map[string]string) []error {
	s, ok := d.Components.Schemas[name]
	if !ok {
		return []error{fmt.Errorf("schema %q missing", name)}
	}
	if s.Type != "object" {
		return []error{fmt.Errorf("%s must be object", name)}
	}
	required := make(map[string]bool, len(s.Required))
	for _, field := range s.Required {
		required[field] = true
	}
	var errs []error
	keys := make([]string, 0, len(fields))
	for field := range fields {
		keys = append(keys, field)
	}
	sort.Strings(keys)
	for _, field := range keys {
		if !required[field] {
			errs = append(errs, fmt.Errorf("%s.required must include %q", name, field))
		}
		if prop, ok := s.Properties[field]; !ok || prop.Type != fields[field] {
			errs = append(errs, fmt.Errorf("%s.%s must be %s", name, field, fields[field]))
		}
	}
	return errs
}

func (d *Doc) resolves(ref string) bool {
	if !strings.HasPrefix(ref, "#/") {
		return false
	}
	node := &d.root
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	for _, key := range strings.Split(strings.TrimPrefix(ref, "#/"), "/") {
		node = mappingValue(node, key)
		if node == nil {
			return false
		}
	}
	return true
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func collectRefs(node *yaml.Node) []string {
	var refs []string
	var walk func(n *yaml.Node)
	walk = func(n *yaml.Node) {
		if n.Kind == yaml.MappingNode {
			for i := 0; i+1 < len(n.Content); i += 2 {
				if n.Content[i].Value == "$ref" && n.Content[i+1].Kind == yaml.ScalarNode {
					refs = append(refs, n.Content[i+1].Value)
				}
			}
		}
		for _, child := range n.Content {
			walk(child)
		}
	}
	walk(node)
	return refs
}
