package cuentas

import (
	"strconv"
	"strings"
	"time"

	"gesservorconv/pkg/domain"
)

// The account entities are owned by the accounts subsystem; this service
// stores them as the watched tables of the change-audit engine and observes
// Habilitado transitions. The scalar flag gates the role's ability to act;
// the per-organization array is tracked but not covered by the gate.

const (
	TablaComitentes   = "comitentes"
	TablaResponsables = "responsables_tecnicos"
	TablaSecretarios  = "secretarios"
)

// Comitente is the service-requesting party.
type Comitente struct {
	ID                       domain.ComitenteID
	UsuarioID                domain.UsuarioID
	RazonSocial              string
	CUIT                     uint64
	Habilitado               bool
	HabilitadoOrganizaciones []bool
	CreadoEn                 time.Time
	ActualizadoEn            time.Time
}

// ResponsableTecnico is the technical officer who executes requests.
type ResponsableTecnico struct {
	ID                       domain.ResponsableID
	UsuarioID                domain.UsuarioID
	Nombre                   string
	CUIL                     uint64
	Habilitado               bool
	HabilitadoOrganizaciones []bool
	CreadoEn                 time.Time
	ActualizadoEn            time.Time
}

// Secretario is the administrative role that finalizes and cancels
// services. No enablement notification exists for it; the flag only gates
// workflow operations.
type Secretario struct {
	ID            domain.SecretarioID
	UsuarioID     domain.UsuarioID
	Nombre        string
	Habilitado    bool
	CreadoEn      time.Time
	ActualizadoEn time.Time
}

// Snapshot helpers build the column-to-text maps the audit ledger records.
// Absent columns are omitted, never written as empty entries.

func (c *Comitente) Snapshot() map[string]string {
	return map[string]string{
		"id":                        c.ID.String(),
		"usuario_id":                c.UsuarioID.String(),
		"razon_social":              c.RazonSocial,
		"cuit":                      strconv.FormatUint(c.CUIT, 10),
		"habilitado":                strconv.FormatBool(c.Habilitado),
		"habilitado_organizaciones": formatFlags(c.HabilitadoOrganizaciones),
	}
}

func (r *ResponsableTecnico) Snapshot() map[string]string {
	return map[string]string{
		"id":                        r.ID.String(),
		"usuario_id":                r.UsuarioID.String(),
		"nombre":                    r.Nombre,
		"cuil":                      strconv.FormatUint(r.CUIL, 10),
		"habilitado":                strconv.FormatBool(r.Habilitado),
		"habilitado_organizaciones": formatFlags(r.HabilitadoOrganizaciones),
	}
}

func (s *Secretario) Snapshot() map[string]string {
	return map[string]string{
		"id":         s.ID.String(),
		"usuario_id": s.UsuarioID.String(),
		"nombre":     s.Nombre,
		"habilitado": strconv.FormatBool(s.Habilitado),
	}
}

func formatFlags(flags []bool) string {
	parts := make([]string, len(flags))
	for i, f := range flags {
		parts[i] = strconv.FormatBool(f)
	}
	return "{" + strings.Join(parts, ",") + "}"
}
