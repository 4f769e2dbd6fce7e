package types

// Log action tags for infrastructure events. Request-scoped actions are
// set inline where the request is handled.
const (
	ActionRabbitMQConnected       = "rabbitmq_connected"
	ActionRabbitConnectionClosed  = "rabbitmq_connection_closed"
	ActionRabbitConnectionClosing = "rabbitmq_connection_closing"
	ActionRabbitReconnected       = "rabbitmq_reconnection_success"

	ActionExternalServiceFailed = "external_service_failed"
)
