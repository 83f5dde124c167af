package emulator

import (
	"fmt"
	"regexp"
	"strings"
)

// Domain is the top-level namespace of a storage path.
type Domain string

const (
	DomainStorage Domain = "storage"
	DomainPublic  Domain = "public"
	DomainPrivate Domain = "private"
)

// Valid reports whether d is one of the known domains.
func (d Domain) Valid() bool {
	switch d {
	case DomainStorage, DomainPublic, DomainPrivate:
		return true
	}
	return false
}

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Path addresses a value in an account's storage, written /domain/identifier.
type Path struct {
	Domain     Domain
	Identifier string
}

// ParsePath parses a path of the form /domain/identifier.
func ParsePath(s string) (Path, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 || parts[0] != "" {
		return Path{}, fmt.Errorf("%w: %q must have the form /domain/identifier", ErrInvalidPath, s)
	}
	p := Path{Domain: Domain(parts[1]), Identifier: parts[2]}
	if err := p.Validate(); err != nil {
		return Path{}, err
	}
	return p, nil
}

// MustParsePath is like ParsePath but panics on error.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}

// StoragePath returns /storage/<identifier>.
func StoragePath(identifier string) Path {
	return Path{Domain: DomainStorage, Identifier: identifier}
}

// PublicPath returns /public/<identifier>.
func PublicPath(identifier string) Path {
	return Path{Domain: DomainPublic, Identifier: identifier}
}

// Validate checks the domain and identifier.
func (p Path) Validate() error {
	if !p.Domain.Valid() {
		return fmt.Errorf("%w: unknown domain %q", ErrInvalidPath, p.Domain)
	}
	if !identifierRe.MatchString(p.Identifier) {
		return fmt.Errorf("%w: invalid identifier %q", ErrInvalidPath, p.Identifier)
	}
	return nil
}

func (p Path) String() string {
	return "/" + string(p.Domain) + "/" + p.Identifier
}
