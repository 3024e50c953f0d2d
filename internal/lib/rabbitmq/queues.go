package rabbitmq

// Exchange обменник для писем и уведомлений.
const Exchange = "notifications"

// Ключи маршрутизации.
const (
	RoutingMail     = "mail"
	RoutingExpiring = "expiring"
)

// Очереди, которые читает sender.
const (
	QueueMail     = "mail.outgoing"
	QueueExpiring = "notification.expiring"
)

// QueueConfig очередь и её ключ маршрутизации.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetNotificationQueues возвращает все очереди сервиса.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: QueueMail, RoutingKey: RoutingMail},
		{QueueName: QueueExpiring, RoutingKey: RoutingExpiring},
	}
}
