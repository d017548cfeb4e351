// Package template рендерит содержимое уведомлений по шаблону и переменным
// события. Никакой внешней библиотеки шаблонизации не требуется — набор
// шаблонов платформы фиксирован и невелик, как и в оригинальном сервисе.
package template

import (
	"fmt"

	"example.com/saga-platform/pkg/events"
)

// Content — отрендеренное содержимое уведомления по всем каналам сразу.
// Канал сам решает, какое поле использовать (Body для email, SMS для sms).
type Content struct {
	Subject string
	Body    string
	SMS     string
}

// Render собирает Content по templateId и переменным события
// notifications.send. Неизвестный templateId не считается ошибкой —
// рендерится родовое уведомление, чтобы не терять доставку из-за
// опечатки в шаблоне на стороне продюсера события.
func Render(templateID string, vars map[string]string) Content {
	switch templateID {
	case events.TemplateOrderConfirmed:
		return Content{
			Subject: fmt.Sprintf("Ваш заказ %s подтверждён!", vars["orderId"]),
			Body:    fmt.Sprintf("Ваш заказ %s на сумму %s %s подтверждён.", vars["orderId"], vars["totalAmount"], vars["currency"]),
			SMS:     fmt.Sprintf("Заказ %s подтверждён. Сумма: %s %s.", vars["orderId"], vars["totalAmount"], vars["currency"]),
		}
	case events.TemplateOrderCancelled:
		return Content{
			Subject: fmt.Sprintf("Заказ %s отменён", vars["orderId"]),
			Body:    fmt.Sprintf("Ваш заказ %s был отменён. Причина: %s. Списанные средства будут возвращены.", vars["orderId"], vars["reason"]),
			SMS:     fmt.Sprintf("Заказ %s отменён. Причина: %s.", vars["orderId"], vars["reason"]),
		}
	default:
		return Content{Subject: "Уведомление платформы", Body: fmt.Sprintf("%v", vars), SMS: fmt.Sprintf("%v", vars)}
	}
}
