// Package enlaces builds the absolute links embedded in notifications.
// Scheme and host come from deployment configuration so the same code
// produces secure links in production and plain ones locally.
package enlaces

import "gesservorconv/pkg/domain"

type Builder struct {
	scheme string
	host   string
}

func New(scheme, host string) Builder {
	if scheme == "" {
		scheme = "https"
	}
	return Builder{scheme: scheme, host: host}
}

func (b Builder) base() string {
	return b.scheme + "://" + b.host
}

// PerfilComitente is the requester role's landing page.
func (b Builder) PerfilComitente() string {
	return b.base() + "/cuentas/comitente"
}

// PerfilResponsable is the technical officer role's landing page.
func (b Builder) PerfilResponsable() string {
	return b.base() + "/cuentas/responsable-tecnico"
}

// Solicitud links to one request's detail page, where proposals are
// reviewed and decided.
func (b Builder) Solicitud(id domain.SolicitudID) string {
	return b.base() + "/solicitudes/" + id.String()
}
