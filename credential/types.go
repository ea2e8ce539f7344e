package credential

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Credential type names used by the grant processor.
const (
	// TypeBasicAuth holds a resource owner's password (one-way hashed)
	TypeBasicAuth = "basic-auth"

	// TypeOAuth2 holds a client's secret (reversibly encrypted) together
	// with its authorized-scope set
	TypeOAuth2 = "oauth2"
)

// Property names recognized on credential payloads beyond the secret field.
const (
	propertyScopes        = "scopes"
	propertyAllowsRefresh = "allowsRefresh"
)

// Definition describes a credential type: where its secret lives, whether one
// may be generated when absent, how the secret is stored, and the schema of
// additional payload properties.
type Definition struct {
	// PasswordKey names the payload field that carries the secret
	PasswordKey string `yaml:"password_key"`

	// AutoGeneratePassword permits generating a random secret when the
	// payload omits the PasswordKey field
	AutoGeneratePassword bool `yaml:"auto_generate_password"`

	// EncryptSecret stores the secret reversibly encrypted instead of
	// one-way hashed. Required for client secrets that must be compared
	// via decrypt.
	EncryptSecret bool `yaml:"encrypt_secret"`

	// Properties is the schema of additional payload properties
	Properties map[string]Property `yaml:"properties"`
}

// Property describes a single additional payload property.
type Property struct {
	IsRequired bool `yaml:"is_required"`
}

// Validate checks a definition for internal consistency.
func (d Definition) Validate() error {
	if d.PasswordKey == "" {
		return fmt.Errorf("password_key is required")
	}
	if _, clash := d.Properties[d.PasswordKey]; clash {
		return fmt.Errorf("password_key %q must not also be declared as a property", d.PasswordKey)
	}
	return nil
}

// DefaultDefinitions returns the built-in credential type registry:
// basic-auth for resource owner passwords and oauth2 for client secrets.
func DefaultDefinitions() map[string]Definition {
	return map[string]Definition{
		TypeBasicAuth: {
			PasswordKey:          "password",
			AutoGeneratePassword: true,
			Properties: map[string]Property{
				propertyScopes: {IsRequired: false},
			},
		},
		TypeOAuth2: {
			PasswordKey:          "secret",
			AutoGeneratePassword: true,
			EncryptSecret:        true,
			Properties: map[string]Property{
				propertyScopes:        {IsRequired: false},
				propertyAllowsRefresh: {IsRequired: false},
			},
		},
	}
}

// ParseDefinitions parses a YAML mapping from credential type name to
// definition.
func ParseDefinitions(data []byte) (map[string]Definition, error) {
	var defs map[string]Definition
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("failed to parse credential type definitions: %w", err)
	}

	for name, def := range defs {
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("credential type %q: %w", name, err)
		}
	}

	return defs, nil
}

// LoadDefinitions loads credential type definitions from a YAML file.
func LoadDefinitions(path string) (map[string]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credential type definitions: %w", err)
	}
	return ParseDefinitions(data)
}
