// Package channel реализует доставку уведомлений по конкретному каналу
// (email, sms) — стратегия выбирается по полю channel события
// notifications.send.
package channel

import "context"

// Channel — канал доставки уведомления.
type Channel interface {
	// Name возвращает идентификатор канала (email, sms), под которым он
	// зарегистрирован в реестре.
	Name() string

	// Send доставляет уведомление получателю to. subject используется
	// только каналами, которые его поддерживают (email); остальные игнорируют.
	Send(ctx context.Context, to, subject, body string) error
}
