package handlers

import (
	"time"

	"github.com/ballotbox/backend/internal/middleware"
	"github.com/ballotbox/backend/internal/security"
	"github.com/ballotbox/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// Deps carries everything the route tree needs. Tests build one against
// an in-memory database and a memory forgery store.
type Deps struct {
	DB           *gorm.DB
	Auth         *services.AuthService
	MFA          *services.MFAService
	Audit        *services.AuditService
	ForgeryStore security.ForgeryTokenStore
	ForgeryTTL   time.Duration

	// AuthRateMax of 0 disables the login rate limiter (tests).
	AuthRateMax    int
	AuthRateWindow time.Duration
}

// Register mounts the full API surface on app.
func Register(app *fiber.App, deps Deps) {
	authHandler := NewAuthHandler(deps.DB, deps.Auth, deps.Audit)
	mfaHandler := NewMFAHandler(deps.DB, deps.MFA)
	csrfHandler := NewCSRFHandler(deps.ForgeryStore, deps.ForgeryTTL)
	auditHandler := NewAuditHandler(deps.Audit)
	userHandler := NewUserHandler(deps.DB, deps.Auth, deps.Audit)
	orgHandler := NewOrganizationHandler(deps.DB)
	electionHandler := NewElectionHandler(deps.DB)

	app.Use(middleware.RequestLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	api.Get("/csrf-token", csrfHandler.Token)

	auth := api.Group("/auth", middleware.SecurityLogger())
	auth.Use(middleware.ForgeryGuard(deps.ForgeryStore, deps.Audit))
	if deps.AuthRateMax > 0 {
		auth.Use(middleware.AuthRateLimit(deps.Audit, deps.AuthRateMax, deps.AuthRateWindow))
	}
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/verify-2fa", authHandler.VerifySecondFactor)
	auth.Post("/verify-recovery", authHandler.VerifyRecoveryCode)
	auth.Post("/refresh", authHandler.Refresh)
	auth.Get("/me", middleware.RequireAuth(), authHandler.Me)
	auth.Get("/activity", middleware.RequireAuth(), auditHandler.MyActivity)
	auth.Post("/change-password", middleware.RequireAuth(), authHandler.ChangePassword)

	mfa := api.Group("/mfa", middleware.RequireAuth())
	mfa.Post("/setup", mfaHandler.Setup)
	mfa.Post("/enable", mfaHandler.Enable)
	mfa.Post("/disable", mfaHandler.Disable)
	mfa.Post("/recovery-codes/regenerate", mfaHandler.RegenerateRecoveryCodes)
	mfa.Get("/status", mfaHandler.Status)

	orgs := api.Group("/organizations", middleware.RequireAuth())
	orgs.Post("/", orgHandler.Create)
	orgs.Get("/", orgHandler.List)
	orgs.Get("/:id", orgHandler.Get)
	orgs.Put("/:id", orgHandler.Update)

	elections := api.Group("/elections", middleware.RequireAuth())
	elections.Post("/", electionHandler.Create)
	elections.Get("/", electionHandler.List)
	elections.Get("/:id", electionHandler.Get)
	elections.Put("/:id", electionHandler.Update)

	admin := api.Group("/admin", middleware.RequireAuth(), middleware.AdminOnly(deps.Audit))
	admin.Get("/users", userHandler.List)
	admin.Get("/users/:id", userHandler.Get)
	admin.Put("/users/:id/role", userHandler.UpdateRole)
	admin.Post("/users/:id/verify-email", userHandler.VerifyEmail)
	admin.Post("/users/:id/unlock", userHandler.Unlock)
	admin.Get("/audit", auditHandler.List)
	admin.Get("/audit/security", auditHandler.SecurityFeed)
	admin.Get("/audit/suspicious", auditHandler.SuspiciousFeed)
	admin.Get("/audit/report", auditHandler.Report)
	admin.Get("/audit/export", auditHandler.Export)
}
