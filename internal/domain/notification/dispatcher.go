package notification

import "context"

// Dispatcher определяет контракт доставки уведомлений.
// Реализации обязаны быть best-effort: ошибка доставки логируется,
// но не возвращается наверх как фатальная для бизнес-операции.
type Dispatcher interface {
	// Dispatch отправляет уведомление получателю.
	Dispatch(ctx context.Context, n *Notification) error
}
