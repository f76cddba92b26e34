package notificaciones

import "time"

// Notificacion is a stored notification. The store is the durable side of
// the realtime channel: whatever was pushed live can be read back here, and
// whatever was missed while offline is waiting here.
type Notificacion struct {
	ID             int64      `json:"id"`
	DestinatarioID string     `json:"destinatario_id"`
	Tipo           string     `json:"tipo"`
	Titulo         string     `json:"titulo"`
	Cuerpo         string     `json:"cuerpo"`
	Enlace         string     `json:"enlace,omitempty"`
	CreadaEn       time.Time  `json:"creada_en"`
	LeidaEn        *time.Time `json:"leida_en,omitempty"`
}

// Leida reports whether the recipient has already seen the notification.
func (n Notificacion) Leida() bool {
	return n.LeidaEn != nil
}
