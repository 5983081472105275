package encryptedquery

import (
	"strings"

	"github.com/pkg/errors"
)

// DataType is the declared type of an encrypted property.
type DataType string

// Supported property data types.
const (
	DataTypeString  DataType = "String"
	DataTypeBoolean DataType = "Boolean"
	DataTypeLong    DataType = "Long"
	DataTypeDouble  DataType = "Double"
)

func (t DataType) valid() bool {
	switch t {
	case DataTypeString, DataTypeBoolean, DataTypeLong, DataTypeDouble:
		return true
	}
	return false
}

// PropertyEncryptionSetting says how one group of properties is encrypted.
type PropertyEncryptionSetting struct {
	DataEncryptionKeyID string
	EncryptionAlgorithm string
	PropertyDataType    DataType
	IsSQLCompatible     bool
}

// PathGroup maps property paths such as "/ssn" to a shared setting.
type PathGroup struct {
	Paths   []string
	Setting PropertyEncryptionSetting
}

// Paths reserved by the database or by the legacy encryption format.
const (
	pathID             = "/id"
	pathEncryptionInfo = "/" + legacyInfoKey
)

// ClientEncryptionPolicy is an ordered set of path groups. Each path belongs to
// at most one group. A policy is immutable and safe for concurrent use.
type ClientEncryptionPolicy struct {
	groups []PathGroup
	paths  []string
	index  map[string]PropertyEncryptionSetting
}

// NewClientEncryptionPolicy validates groups and builds a policy.
//
// Paths must name top-level properties ("/ssn"); "/id" and "/_ei" are reserved.
func NewClientEncryptionPolicy(groups ...PathGroup) (*ClientEncryptionPolicy, error) {
	p := &ClientEncryptionPolicy{
		index: make(map[string]PropertyEncryptionSetting),
	}

	for i, g := range groups {
		if len(g.Paths) == 0 {
			return nil, errors.Wrapf(ErrInvalidPolicy, "group %d has no paths", i)
		}
		if g.Setting.DataEncryptionKeyID == "" || g.Setting.EncryptionAlgorithm == "" {
			return nil, errors.Wrapf(ErrInvalidPolicy, "group %d needs a key id and an algorithm", i)
		}
		if !g.Setting.PropertyDataType.valid() {
			return nil, errors.Wrapf(ErrInvalidPolicy, "group %d has unsupported data type %q", i, g.Setting.PropertyDataType)
		}

		for _, path := range g.Paths {
			if err := validatePath(path); err != nil {
				return nil, err
			}
			if _, dup := p.index[path]; dup {
				return nil, errors.Wrapf(ErrDuplicatePath, "%q", path)
			}
			p.index[path] = g.Setting
			p.paths = append(p.paths, path)
		}

		p.groups = append(p.groups, PathGroup{
			Paths:   append([]string(nil), g.Paths...),
			Setting: g.Setting,
		})
	}

	return p, nil
}

func validatePath(path string) error {
	if len(path) < 2 || path[0] != '/' {
		return errors.Wrapf(ErrInvalidPath, "%q must start with '/'", path)
	}
	if strings.Contains(path[1:], "/") {
		return errors.Wrapf(ErrInvalidPath, "%q is not a top-level property", path)
	}
	if path == pathID || path == pathEncryptionInfo {
		return errors.Wrapf(ErrInvalidPath, "%q is reserved", path)
	}
	return nil
}

// Lookup returns the setting for an exact property path.
func (p *ClientEncryptionPolicy) Lookup(path string) (PropertyEncryptionSetting, bool) {
	s, ok := p.index[path]
	return s, ok
}

// Paths returns every encrypted path in declaration order.
func (p *ClientEncryptionPolicy) Paths() []string {
	return append([]string(nil), p.paths...)
}

// Groups returns a copy of the policy's path groups.
func (p *ClientEncryptionPolicy) Groups() []PathGroup {
	groups := make([]PathGroup, len(p.groups))
	for i, g := range p.groups {
		groups[i] = PathGroup{Paths: append([]string(nil), g.Paths...), Setting: g.Setting}
	}
	return groups
}
