package domain

import (
	"github.com/google/uuid"

	dErrors "gesservorconv/pkg/domain-errors"
)

// Typed identifiers keep the compiler between us and cross-entity mixups:
// a SolicitudID can never be passed where a UsuarioID is expected.

// UsuarioID identifies a portal user account (the notification recipient).
type UsuarioID uuid.UUID

// ComitenteID identifies a service-requesting party.
type ComitenteID uuid.UUID

// ResponsableID identifies a technical officer.
type ResponsableID uuid.UUID

// SecretarioID identifies an administrative secretary.
type SecretarioID uuid.UUID

// SolicitudID identifies a service request.
type SolicitudID uuid.UUID

// PropuestaID identifies a proposal attached to a solicitud.
type PropuestaID uuid.UUID

func (id UsuarioID) String() string     { return uuid.UUID(id).String() }
func (id ComitenteID) String() string   { return uuid.UUID(id).String() }
func (id ResponsableID) String() string { return uuid.UUID(id).String() }
func (id SecretarioID) String() string  { return uuid.UUID(id).String() }
func (id SolicitudID) String() string   { return uuid.UUID(id).String() }
func (id PropuestaID) String() string   { return uuid.UUID(id).String() }

func (id UsuarioID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id ComitenteID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id ResponsableID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id SecretarioID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }
func (id SolicitudID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id PropuestaID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }

// parseUUID enforces the shared invariant: IDs must be valid, non-empty,
// non-nil UUIDs. Parsing happens at trust boundaries (HTTP, websocket).
func parseUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be empty")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must be a valid UUID")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "id must not be the nil UUID")
	}
	return parsed, nil
}

func ParseUsuarioID(s string) (UsuarioID, error) {
	parsed, err := parseUUID(s)
	if err != nil {
		return UsuarioID{}, err
	}
	return UsuarioID(parsed), nil
}

func ParseComitenteID(s string) (ComitenteID, error) {
	parsed, err := parseUUID(s)
	if err != nil {
		return ComitenteID{}, err
	}
	return ComitenteID(parsed), nil
}

func ParseResponsableID(s string) (ResponsableID, error) {
	parsed, err := parseUUID(s)
	if err != nil {
		return ResponsableID{}, err
	}
	return ResponsableID(parsed), nil
}

func ParseSecretarioID(s string) (SecretarioID, error) {
	parsed, err := parseUUID(s)
	if err != nil {
		return SecretarioID{}, err
	}
	return SecretarioID(parsed), nil
}

func ParseSolicitudID(s string) (SolicitudID, error) {
	parsed, err := parseUUID(s)
	if err != nil {
		return SolicitudID{}, err
	}
	return SolicitudID(parsed), nil
}

func ParsePropuestaID(s string) (PropuestaID, error) {
	parsed, err := parseUUID(s)
	if err != nil {
		return PropuestaID{}, err
	}
	return PropuestaID(parsed), nil
}
