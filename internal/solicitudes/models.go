package solicitudes

import (
	"strconv"
	"time"

	"gesservorconv/pkg/domain"
)

const (
	TablaSolicitudes = "solicitudes"
	TablaPropuestas  = "propuestas"
)

// EstadoSolicitud is the request's position in the negotiation state
// machine.
type EstadoSolicitud string

const (
	SolicitudPendiente     EstadoSolicitud = "pendiente"
	SolicitudEnNegociacion EstadoSolicitud = "en_negociacion"
	SolicitudAceptada      EstadoSolicitud = "aceptada"
	SolicitudFinalizada    EstadoSolicitud = "finalizada"
	SolicitudCancelada     EstadoSolicitud = "cancelada"
)

// Resultado is the document kind a successful negotiation produces.
type Resultado string

const (
	ResultadoConvenio      Resultado = "convenio"
	ResultadoOrdenServicio Resultado = "orden_servicio"
)

// EstadoPropuesta tracks one proposal's decision state.
type EstadoPropuesta string

const (
	PropuestaPendiente EstadoPropuesta = "pendiente"
	PropuestaAceptada  EstadoPropuesta = "aceptada"
	PropuestaRechazada EstadoPropuesta = "rechazada"
)

// Solicitud is a technical-service request raised by a comitente,
// negotiated with an assigned responsable técnico and closed out by a
// secretario.
type Solicitud struct {
	ID            domain.SolicitudID
	ComitenteID   domain.ComitenteID
	ResponsableID domain.ResponsableID // nil until assigned
	Titulo        string
	Descripcion   string
	Estado        EstadoSolicitud
	Resultado     Resultado // set when the solicitud is accepted
	CreadaEn      time.Time
	ActualizadaEn time.Time
}

// Propuesta is one offer inside a solicitud's negotiation. At most one
// proposal per solicitud is actual; presenting a new one demotes the
// previous.
type Propuesta struct {
	ID            domain.PropuestaID
	SolicitudID   domain.SolicitudID
	ResponsableID domain.ResponsableID
	Descripcion   string
	MontoCentavos int64
	PlazoDias     int
	Actual        bool
	Estado        EstadoPropuesta
	CreadaEn      time.Time
	ActualizadaEn time.Time
}

func (s *Solicitud) Snapshot() map[string]string {
	snapshot := map[string]string{
		"id":           s.ID.String(),
		"comitente_id": s.ComitenteID.String(),
		"titulo":       s.Titulo,
		"descripcion":  s.Descripcion,
		"estado":       string(s.Estado),
	}
	if !s.ResponsableID.IsNil() {
		snapshot["responsable_id"] = s.ResponsableID.String()
	}
	if s.Resultado != "" {
		snapshot["resultado"] = string(s.Resultado)
	}
	return snapshot
}

func (p *Propuesta) Snapshot() map[string]string {
	return map[string]string{
		"id":             p.ID.String(),
		"solicitud_id":   p.SolicitudID.String(),
		"responsable_id": p.ResponsableID.String(),
		"descripcion":    p.Descripcion,
		"monto_centavos": strconv.FormatInt(p.MontoCentavos, 10),
		"plazo_dias":     strconv.Itoa(p.PlazoDias),
		"actual":         strconv.FormatBool(p.Actual),
		"estado":         string(p.Estado),
	}
}

// ResultadoValido reports whether r names a known output document kind.
func ResultadoValido(r Resultado) bool {
	return r == ResultadoConvenio || r == ResultadoOrdenServicio
}
