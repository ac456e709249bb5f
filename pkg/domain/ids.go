// Package domain holds typed identifiers shared across features. Wrapping
// uuid.UUID in distinct types lets the compiler catch a form ID passed where a
// principal ID belongs.
package domain

import (
	"github.com/google/uuid"

	dErrors "formbridge/pkg/domain-errors"
)

// PrincipalID identifies an authenticated identity at the remote store.
type PrincipalID uuid.UUID

// FormID identifies a saved form.
type FormID uuid.UUID

func (p PrincipalID) String() string { return uuid.UUID(p).String() }

func (p PrincipalID) IsNil() bool { return uuid.UUID(p) == uuid.Nil }

func (f FormID) String() string { return uuid.UUID(f).String() }

func (f FormID) IsNil() bool { return uuid.UUID(f) == uuid.Nil }

// ParsePrincipalID parses a principal ID from its string form. IDs must be
// valid, non-nil UUIDs; anything else is invalid input at the trust boundary.
func ParsePrincipalID(s string) (PrincipalID, error) {
	u, err := parseUUID(s, "principal id")
	return PrincipalID(u), err
}

// ParseFormID parses a form ID from its string form.
func ParseFormID(s string) (FormID, error) {
	u, err := parseUUID(s, "form id")
	return FormID(u), err
}

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" must not be nil")
	}
	return u, nil
}
