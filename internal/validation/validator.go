package validation

// Validator checks catalog writes before they reach the store.
// Uses JSON Schema Draft 2020-12 for node configs and form payloads.
type Validator interface {
	ValidateNode(name, nodeType string, config map[string]any) error
	ValidatePipeline(name, description string) error
	ValidateContact(name, email, phone, message string) error
}

var _ Validator = (*JSONSchemaValidator)(nil)
