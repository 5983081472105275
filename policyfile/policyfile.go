// Package policyfile loads a client encryption policy from a configuration
// file.
//
// Any format viper reads is accepted. In YAML:
//
//	policy_format_version: 2
//	default_client_encryption_key_id: dek1
//	included_paths:
//	  - path: /ssn
//	    encryption_algorithm: AEAD_XSalsa20_Poly1305_HMAC_SHA256_Deterministic
//	    data_type: String
//	  - path: /balance
//	    client_encryption_key_id: dek2
//	    encryption_algorithm: AEAD_XSalsa20_Poly1305_HMAC_SHA256_Deterministic
//	    data_type: Long
//	    sql_compatible: true
//
// The defaults can be set or overridden with the environment variables
// ENCRYPTEDQUERY_DEFAULT_CLIENT_ENCRYPTION_KEY_ID and
// ENCRYPTEDQUERY_DEFAULT_ENCRYPTION_ALGORITHM. Paths with identical settings
// share one group of the resulting policy.
package policyfile

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"github.com/xeipuuv/gojsonschema"

	"github.com/ai8future/encryptedquery"
)

// EnvPrefix prefixes the environment variables read by Load.
const EnvPrefix = "ENCRYPTEDQUERY"

// ErrInvalidPolicyFile indicates a policy file that cannot be read or does not
// match the policy file schema.
var ErrInvalidPolicyFile = errors.New("policyfile: invalid policy file")

// File is the decoded policy file.
type File struct {
	PolicyFormatVersion int `mapstructure:"policy_format_version"`
	// DefaultKeyID applies to paths without client_encryption_key_id.
	DefaultKeyID string `mapstructure:"default_client_encryption_key_id"`
	// DefaultAlgorithm applies to paths without encryption_algorithm.
	DefaultAlgorithm string         `mapstructure:"default_encryption_algorithm"`
	IncludedPaths    []IncludedPath `mapstructure:"included_paths"`
}

// IncludedPath is one encrypted property.
type IncludedPath struct {
	Path                  string `mapstructure:"path"`
	ClientEncryptionKeyID string `mapstructure:"client_encryption_key_id"`
	EncryptionAlgorithm   string `mapstructure:"encryption_algorithm"`
	DataType              string `mapstructure:"data_type"`
	SQLCompatible         bool   `mapstructure:"sql_compatible"`
}

const schemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["included_paths"],
  "properties": {
    "policy_format_version": {"type": "integer", "enum": [1, 2]},
    "default_client_encryption_key_id": {"type": "string", "minLength": 1},
    "default_encryption_algorithm": {"type": "string", "minLength": 1},
    "included_paths": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["path", "data_type"],
        "additionalProperties": false,
        "properties": {
          "path": {"type": "string", "pattern": "^/[^/]+$"},
          "client_encryption_key_id": {"type": "string", "minLength": 1},
          "encryption_algorithm": {"type": "string", "minLength": 1},
          "data_type": {"enum": ["String", "Boolean", "Long", "Double"]},
          "sql_compatible": {"type": "boolean"}
        }
      }
    }
  }
}`

var schema = mustSchema(schemaJSON)

func mustSchema(s string) *gojsonschema.Schema {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic("policyfile: invalid schema: " + err.Error())
	}
	return compiled
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	// Bound explicitly so they show up in AllSettings when only the
	// environment sets them.
	_ = v.BindEnv("default_client_encryption_key_id")
	_ = v.BindEnv("default_encryption_algorithm")
	return v
}

// Load reads the policy file at path. The format follows the file extension.
func Load(path string) (*encryptedquery.ClientEncryptionPolicy, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(ErrInvalidPolicyFile, "read %s: %v", path, err)
	}
	return build(v)
}

// Read reads a policy file of the given format ("yaml", "json", "toml", ...) from r.
func Read(r io.Reader, format string) (*encryptedquery.ClientEncryptionPolicy, error) {
	v := newViper()
	v.SetConfigType(format)
	if err := v.ReadConfig(r); err != nil {
		return nil, errors.Wrapf(ErrInvalidPolicyFile, "read %s: %v", format, err)
	}
	return build(v)
}

// Decode validates the settings held by v and decodes them.
func Decode(v *viper.Viper) (*File, error) {
	result, err := schema.Validate(gojsonschema.NewGoLoader(v.AllSettings()))
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidPolicyFile, "validate: %v", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, errors.Wrap(ErrInvalidPolicyFile, strings.Join(msgs, "; "))
	}

	var f File
	if err := v.Unmarshal(&f); err != nil {
		return nil, errors.Wrapf(ErrInvalidPolicyFile, "decode: %v", err)
	}
	return &f, nil
}

func build(v *viper.Viper) (*encryptedquery.ClientEncryptionPolicy, error) {
	f, err := Decode(v)
	if err != nil {
		return nil, err
	}
	return f.Policy()
}

// Policy converts the file to a policy, applying the defaults.
func (f *File) Policy() (*encryptedquery.ClientEncryptionPolicy, error) {
	var groups []encryptedquery.PathGroup
	index := make(map[encryptedquery.PropertyEncryptionSetting]int)

	for _, p := range f.IncludedPaths {
		setting := encryptedquery.PropertyEncryptionSetting{
			DataEncryptionKeyID: p.ClientEncryptionKeyID,
			EncryptionAlgorithm: p.EncryptionAlgorithm,
			PropertyDataType:    encryptedquery.DataType(p.DataType),
			IsSQLCompatible:     p.SQLCompatible,
		}
		if setting.DataEncryptionKeyID == "" {
			setting.DataEncryptionKeyID = f.DefaultKeyID
		}
		if setting.EncryptionAlgorithm == "" {
			setting.EncryptionAlgorithm = f.DefaultAlgorithm
		}

		i, ok := index[setting]
		if !ok {
			i = len(groups)
			index[setting] = i
			groups = append(groups, encryptedquery.PathGroup{Setting: setting})
		}
		groups[i].Paths = append(groups[i].Paths, p.Path)
	}

	return encryptedquery.NewClientEncryptionPolicy(groups...)
}
