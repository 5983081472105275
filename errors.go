package encryptedquery

import "github.com/pkg/errors"

var (
	// ErrMalformedEnvelope indicates a page body without a Documents array.
	ErrMalformedEnvelope = errors.New("encryptedquery: malformed page envelope")

	// ErrTypeConversion indicates a predicate literal cannot be read as the property's declared type.
	ErrTypeConversion = errors.New("encryptedquery: literal type conversion failed")

	// ErrSerializerNotFound indicates no serializer exists for a data type and compatibility mode.
	ErrSerializerNotFound = errors.New("encryptedquery: serializer not found")

	// ErrTypeMismatch indicates a serializer was given a value of the wrong Go type.
	ErrTypeMismatch = errors.New("encryptedquery: value type mismatch")

	// ErrEncryptFailed indicates the crypto collaborator failed to encrypt a value.
	ErrEncryptFailed = errors.New("encryptedquery: encrypt failed")

	// ErrDecryptFailed indicates the crypto collaborator failed to decrypt a value.
	ErrDecryptFailed = errors.New("encryptedquery: decrypt failed")

	// ErrUnboundParameter indicates an encrypted predicate compares against a parameter with no bound value.
	ErrUnboundParameter = errors.New("encryptedquery: unbound parameter")

	// ErrParameterCorrelation indicates predicates of the bound and resolved query text do not line up.
	ErrParameterCorrelation = errors.New("encryptedquery: parameter correlation failed")

	// ErrMalformedPredicate indicates an operand that is not a property, literal or parameter.
	ErrMalformedPredicate = errors.New("encryptedquery: malformed predicate")

	// ErrInvalidEncryptedValue indicates a stored encrypted property is not a base64 string.
	ErrInvalidEncryptedValue = errors.New("encryptedquery: invalid encrypted value")

	// ErrDuplicatePath indicates a property path appears in more than one policy group.
	ErrDuplicatePath = errors.New("encryptedquery: duplicate policy path")

	// ErrInvalidPath indicates a policy path is empty, relative or reserved.
	ErrInvalidPath = errors.New("encryptedquery: invalid policy path")

	// ErrInvalidPolicy indicates a policy group without paths or with an incomplete setting.
	ErrInvalidPolicy = errors.New("encryptedquery: invalid encryption policy")

	// ErrNilCollaborator indicates a required collaborator (encryptor, factory, iterator) was nil.
	ErrNilCollaborator = errors.New("encryptedquery: nil collaborator")
)
