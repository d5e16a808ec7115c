package broadcast

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/campusbid/auction-service/internal/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers cannot set headers on websocket dials, so the origin
	// check is left to the deployment's reverse proxy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWS upgrades GET /v1/live to a websocket.  The subscriber's
// identity is validated exactly once per connection — via the
// standard bearer header or, for browser clients, a `token` query
// parameter — and never again per topic join.
func ServeWS(hub *Hub, jwtSecret string) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := middleware.BearerToken(c)
		if raw == "" {
			raw = c.QueryParam("token")
		}
		principal, err := middleware.ParsePrincipal(jwtSecret, raw)
		if err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
		}

		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			// Upgrade already wrote the failure response.
			return nil
		}

		client := newClient(hub, conn, principal)
		log.WithFields(log.Fields{"user_id": principal.ID}).Debug("websocket connected")

		go client.writePump()
		go client.readPump()
		return nil
	}
}
