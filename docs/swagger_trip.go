package docs

// @title           Trip Service API
// @version         1.0
// @description     Trip service orchestrates the complete trip lifecycle: requesting, driver matching, acceptance, start, completion and cancellation. Exposes a WebSocket stream of live trip events for participants.
// @termsOfService  http://swagger.io/terms/

// @contact.name   API Support
// @contact.url    http://www.swagger.io/support
// @contact.email  support@swagger.io

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:3000
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
