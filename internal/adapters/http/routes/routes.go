package routes

import (
	"time"

	"dealflow/internal/adapters/http/handlers"
	"dealflow/internal/adapters/http/middleware"
	"dealflow/internal/config"
	"dealflow/internal/core/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
)

// Services are the application services exposed over HTTP.
type Services struct {
	Auth        *services.AuthService
	Deals       *services.DealService
	Invitations *services.InvitationService
	Contracts   *services.ContractService
	Signing     *services.SigningService
	Expiry      *services.ExpiryService
}

// Setup configures all routes for the application
func Setup(app *fiber.App, cfg *config.Config, svc Services, checks map[string]handlers.HealthCheck) {
	healthHandler := handlers.NewHealthHandler(checks)
	authHandler := handlers.NewAuthHandler(svc.Auth, cfg)
	dealHandler := handlers.NewDealHandler(svc.Deals)
	invitationHandler := handlers.NewInvitationHandler(svc.Invitations)
	contractHandler := handlers.NewContractHandler(svc.Contracts)
	signingHandler := handlers.NewSigningHandler(svc.Signing)
	adminHandler := handlers.NewAdminHandler(svc.Expiry)

	// Health check & root routes
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	apiV1 := app.Group("/api/v1")
	apiV1.Get("/", middleware.CacheControl(time.Hour), healthHandler.APIInfo)

	setupAuthRoutes(apiV1.Group("/auth", middleware.NoCacheHeaders()), authHandler, cfg)

	// Signing links are public; the token is the credential
	setupSigningRoutes(apiV1.Group("/sign", middleware.NoCacheHeaders()), signingHandler)

	auth := middleware.AuthMiddleware(cfg)
	setupDealRoutes(apiV1.Group("/deals", auth), dealHandler, invitationHandler, contractHandler, signingHandler)
	setupInvitationRoutes(apiV1.Group("/invitations", auth), invitationHandler)
	setupContractRoutes(apiV1.Group("/contracts", auth), contractHandler)

	// Maintenance (finance/admin only)
	adminRoutes := apiV1.Group("/admin", auth, middleware.StaffOnly())
	adminRoutes.Post("/expiry/run", adminHandler.RunExpiry)
}

// setupAuthRoutes configures authentication routes
func setupAuthRoutes(router fiber.Router, handler *handlers.AuthHandler, cfg *config.Config) {
	// Public routes
	router.Post("/register", middleware.AuthRateLimiter(), handler.Register)
	router.Post("/login", middleware.AuthRateLimiter(), handler.Login)
	router.Post("/refresh", handler.RefreshToken)
	router.Post("/logout", handler.Logout)

	// Protected routes
	router.Get("/me", middleware.AuthMiddleware(cfg), handler.Me)
	router.Post("/logout-all", middleware.AuthMiddleware(cfg), handler.LogoutAll)
}

func setupSigningRoutes(router fiber.Router, handler *handlers.SigningHandler) {
	router.Get("/:token", handler.GetSession)
	router.Post("/:token/request-code", middleware.SigningRateLimiter(), handler.RequestCode)
	router.Post("/:token/verify", middleware.SigningRateLimiter(), handler.Verify)
	router.Post("/:token/dispute", handler.OpenDispute)
}

func setupDealRoutes(
	router fiber.Router,
	deals *handlers.DealHandler,
	invitations *handlers.InvitationHandler,
	contracts *handlers.ContractHandler,
	signing *handlers.SigningHandler,
) {
	router.Post("/quote", deals.Quote)
	router.Post("/", deals.Create)
	router.Get("/", middleware.PrivateCacheHeaders(0), deals.List)
	router.Get("/:id", deals.Get)
	router.Post("/:id/transition", deals.Transition)
	router.Post("/:id/submit", deals.Submit)
	router.Put("/:id/owner-split", deals.SetOwnerSplit)
	router.Get("/:id/history", deals.History)

	router.Post("/:id/invitations", invitations.Invite)
	router.Get("/:id/invitations", invitations.List)

	router.Post("/:id/contracts", contracts.Generate)
	router.Get("/:id/contracts", contracts.List)

	router.Get("/:id/disputes", signing.ListDisputes)
}

func setupInvitationRoutes(router fiber.Router, handler *handlers.InvitationHandler) {
	router.Post("/:id/accept", handler.Accept)
	router.Post("/:id/decline", handler.Decline)
	router.Delete("/:id", handler.Cancel)
}

func setupContractRoutes(router fiber.Router, handler *handlers.ContractHandler) {
	router.Get("/:id", handler.Get)
	router.Post("/:id/send", handler.Send)
	router.Post("/:id/cancel", handler.Cancel)
}
