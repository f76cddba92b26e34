package realtime

import "encoding/json"

// Evento tags a live message with its domain event kind. Clients switch on
// the tag to decide where the payload lands in the UI.
type Evento string

const (
	EventoComitenteHabilitado        Evento = "comitente_habilitado"
	EventoResponsableHabilitado      Evento = "responsable_habilitado"
	EventoComitenteAsociado          Evento = "comitente_asociado"
	EventoComitentesAsociados        Evento = "comitentes_asociados"
	EventoResponsableTecnicoAsociado Evento = "responsable_tecnico_asociado"
	EventoPropuestaComitente         Evento = "propuesta_comitente"
)

// Mensaje is the wire payload pushed over the live channel. The id/title/
// message/link contract is shared with the stored notification so clients
// can reconcile a live push against a later catch-up read.
type Mensaje struct {
	Tipo    Evento `json:"tipo"`
	ID      int64  `json:"id"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Link    string `json:"link"`
}

// Serializa encodes the message for the channel. A message that cannot be
// encoded is a programming error; callers treat nil as "drop".
func (m Mensaje) Serializa() []byte {
	encoded, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return encoded
}
