package meals

import "github.com/google/uuid"

// IDProvider issues identifiers for new meals.
type IDProvider interface {
	NewID() (string, error)
}

type uuidProvider struct{}

// NewUUIDProvider constructs an IDProvider that issues UUIDv7 identifiers.
func NewUUIDProvider() IDProvider {
	return &uuidProvider{}
}

func (p *uuidProvider) NewID() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return value.String(), nil
}

// MustNewID returns a fresh identifier from provider, falling back to a random
// UUIDv4 when the provider fails. The table uses it for ghost rows, which must
// always have an identifier.
func MustNewID(provider IDProvider) string {
	if provider != nil {
		if value, err := provider.NewID(); err == nil && value != "" {
			return value
		}
	}
	return uuid.NewString()
}
