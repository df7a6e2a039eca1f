// Package email entrega los one-time codes y avisos out-of-band.
package email

import "context"

// Message es un email listo para enviar.
type Message struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// Sender es el puerto de entrega. La implementación SMTP vive acá mismo;
// los tests usan un fake.
type Sender interface {
	Send(ctx context.Context, m Message) error
}
