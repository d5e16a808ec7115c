// Package router wires HTTP routes to handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/campusbid/auction-service/internal/broadcast"
	"github.com/campusbid/auction-service/internal/config"
	"github.com/campusbid/auction-service/internal/handler"
	"github.com/campusbid/auction-service/internal/middleware"
	"github.com/campusbid/auction-service/internal/model"
)

// Deps carries everything the route table needs.
type Deps struct {
	Cfg      config.Config
	RateCfg  config.RateLimitConfig
	Redis    *redis.Client
	Auth     *handler.AuthHandler
	Items    *handler.ItemHandler
	Auctions *handler.AuctionHandler
	Admin    *handler.AdminHandler
	Hub      *broadcast.Hub
}

// Register attaches all routes to e.
//
// Browse endpoints are public. Everything that mutates state sits
// behind JWT auth; bid placement is additionally rate limited.
func Register(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)

	// Public browse surface.
	e.GET("/v1/auctions", d.Auctions.List)
	e.GET("/v1/auctions/:id", d.Auctions.Detail)
	e.GET("/v1/auctions/:id/bids", d.Auctions.ListBids)

	// Live event stream. The handler authenticates the connection
	// itself since websocket clients cannot always set headers.
	e.GET("/v1/live", broadcast.ServeWS(d.Hub, d.Cfg.JWTSecret))

	// Session endpoints.
	auth := e.Group("/v1/auth")
	auth.POST("/register", d.Auth.Register)
	auth.POST("/login", d.Auth.Login)

	// Anything below requires a valid access token.
	v1 := e.Group("/v1", middleware.JWTAuth(d.Cfg.JWTSecret))

	v1.GET("/me", d.Auth.Me)
	v1.PATCH("/me/contact", d.Auth.UpdateContact)

	v1.GET("/my/bids", d.Auctions.MyBids)
	v1.GET("/my/auctions", d.Auctions.MyAuctions)

	// Selling requires the seller (or admin) role.
	sell := middleware.RequireRole(model.RoleSeller, model.RoleAdmin)
	v1.POST("/items", d.Items.Create, sell)
	v1.GET("/items", d.Items.ListMine, sell)
	v1.POST("/auctions", d.Auctions.Create, sell)
	v1.POST("/auctions/:id/end", d.Auctions.End)

	// Any authenticated user may bid; the self-bid rule is enforced
	// in the core, not by role.
	v1.POST("/auctions/:id/bid", d.Auctions.PlaceBid,
		middleware.RateLimit(d.RateCfg, d.Redis))

	// Moderation surface.
	admin := v1.Group("/admin", middleware.RequireRole(model.RoleAdmin))
	admin.GET("/stats", d.Admin.Stats)
	admin.GET("/users", d.Admin.ListUsers)
	admin.PUT("/users/:id/role", d.Admin.UpdateRole)
	admin.POST("/auctions/:id/cancel", d.Admin.CancelAuction)
}
