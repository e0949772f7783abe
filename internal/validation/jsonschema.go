package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rendis/flowgpt/internal/ops"
	"github.com/rendis/flowgpt/pkg/schema"
)

const schemaBaseURL = "https://flowgpt.dev/schemas/"

// formSchemas describe the records accepted from API and MCP callers.
// Node configs are validated separately against their type's schema.
var formSchemas = map[string]string{
	"node": `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["name", "node_type"],
  "properties": {
    "name": { "type": "string", "minLength": 1, "maxLength": 100 },
    "node_type": { "type": "string", "minLength": 1 },
    "config": { "type": "object" }
  }
}`,
	"pipeline": `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["name"],
  "properties": {
    "name": { "type": "string", "minLength": 1, "maxLength": 100 },
    "description": { "type": "string" }
  }
}`,
	"contact": `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["name", "email", "message"],
  "properties": {
    "name": { "type": "string", "minLength": 1, "maxLength": 100 },
    "email": { "type": "string", "format": "email" },
    "phone": { "type": "string", "maxLength": 20 },
    "message": { "type": "string", "minLength": 1 }
  }
}`,
}

// JSONSchemaValidator implements Validator. All schemas are compiled once at
// construction, so it is safe for concurrent use.
type JSONSchemaValidator struct {
	forms   map[string]*jsonschema.Schema
	configs map[ops.Kind]*jsonschema.Schema
}

// NewJSONSchemaValidator compiles the form schemas and every registered node
// type's config schema.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	c := newCompiler()
	v := &JSONSchemaValidator{
		forms:   make(map[string]*jsonschema.Schema, len(formSchemas)),
		configs: make(map[ops.Kind]*jsonschema.Schema),
	}

	for name, src := range formSchemas {
		compiled, err := compile(c, schemaBaseURL+name+".json", src)
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", name, err)
		}
		v.forms[name] = compiled
	}

	for _, d := range ops.List() {
		compiled, err := compile(c, schemaBaseURL+"config/"+string(d.Kind)+".json", d.ConfigSchema)
		if err != nil {
			return nil, fmt.Errorf("compile %s config schema: %w", d.Kind, err)
		}
		v.configs[d.Kind] = compiled
	}
	return v, nil
}

// ValidateNode checks a node's name, type tag and config. The config must
// satisfy the type's schema and decode into its operation.
func (v *JSONSchemaValidator) ValidateNode(name, nodeType string, config map[string]any) error {
	if config == nil {
		config = map[string]any{}
	}
	result := &schema.ValidationResult{}
	result.Merge(v.validateForm("node", map[string]any{
		"name":      name,
		"node_type": nodeType,
		"config":    config,
	}))
	if !result.Valid() {
		return result.ToError()
	}

	kind := ops.Kind(nodeType)
	compiled, ok := v.configs[kind]
	if !ok {
		result.AddError("/node_type", schema.ErrCodeValidation,
			fmt.Sprintf("unknown node type %q (expected one of %s)", nodeType, kindList()))
		return result.ToError()
	}

	result.Merge(validateDoc(compiled, "/config", config))
	if !result.Valid() {
		return result.ToError()
	}

	if _, err := ops.Parse(kind, config); err != nil {
		result.AddError("/config", schema.ErrCodeValidation, schema.MessageOf(err))
	}
	return result.ToError()
}

// ValidatePipeline checks a pipeline's name and description.
func (v *JSONSchemaValidator) ValidatePipeline(name, description string) error {
	return v.validateForm("pipeline", map[string]any{
		"name":        name,
		"description": description,
	}).ToError()
}

// ValidateContact checks a contact form submission.
func (v *JSONSchemaValidator) ValidateContact(name, email, phone, message string) error {
	return v.validateForm("contact", map[string]any{
		"name":    name,
		"email":   email,
		"phone":   phone,
		"message": message,
	}).ToError()
}

func (v *JSONSchemaValidator) validateForm(form string, doc map[string]any) *schema.ValidationResult {
	return validateDoc(v.forms[form], "", doc)
}

func validateDoc(compiled *jsonschema.Schema, prefix string, doc any) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	val, err := toJSONValue(doc)
	if err != nil {
		result.AddError(prefix+"/", schema.ErrCodeValidation, "failed to serialize document: "+err.Error())
		return result
	}

	if err := compiled.Validate(val); err != nil {
		verr, ok := err.(*jsonschema.ValidationError)
		if !ok {
			result.AddError(prefix+"/", schema.ErrCodeValidation, err.Error())
			return result
		}
		for _, vi := range collectViolations(verr) {
			result.AddError(prefix+vi.path, schema.ErrCodeValidation, vi.message)
		}
	}
	return result
}

func newCompiler() *jsonschema.Compiler {
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	return c
}

func compile(c *jsonschema.Compiler, url, src string) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return c.Compile(url)
}

// toJSONValue round-trips a Go value through JSON encoding/decoding so that
// numeric values become json.Number (required by the jsonschema library).
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

type violation struct {
	path    string
	message string
}

// collectViolations walks a ValidationError tree and collects leaf error
// messages with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []violation {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []violation{{path: loc, message: fmt.Sprintf("%s: %s", loc, verr.Error())}}
	}

	var out []violation
	for _, cause := range verr.Causes {
		out = append(out, collectViolations(cause)...)
	}
	return out
}

func kindList() string {
	kinds := ops.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
