package server

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/Altrii-recovery/Altrii/internal/config"
	"github.com/Altrii-recovery/Altrii/internal/enroll"
	"github.com/Altrii-recovery/Altrii/internal/mdm"
	"github.com/Altrii-recovery/Altrii/internal/model"
	"github.com/Altrii-recovery/Altrii/internal/profile"
	"github.com/Altrii-recovery/Altrii/internal/pushclient"
	"github.com/Altrii-recovery/Altrii/internal/service"
	"github.com/Altrii-recovery/Altrii/internal/storage"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server wires HTTP handlers.
type Server struct {
	app        *fiber.App
	cfg        *config.Config
	store      storage.Store
	engine     *mdm.Engine
	registrar  *enroll.Registrar
	builder    *profile.Builder
	signer     profile.Signer
	statusSvc  *service.StatusService
	auditSvc   *service.AuditService
	authSvc    *service.AuthService
	pushClient *pushclient.Client
}

// New builds a server instance. signer may be nil; profiles are then served
// unsigned.
func New(cfg *config.Config, store storage.Store, engine *mdm.Engine, registrar *enroll.Registrar,
	builder *profile.Builder, signer profile.Signer, statusSvc *service.StatusService,
	auditSvc *service.AuditService, authSvc *service.AuthService, pushClient *pushclient.Client) *Server {

	app := fiber.New(fiber.Config{
		IdleTimeout:  cfg.HTTP.ReadTimeout,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		AppName:      "altrii-mdm",
	})
	s := &Server{
		app:        app,
		cfg:        cfg,
		store:      store,
		engine:     engine,
		registrar:  registrar,
		builder:    builder,
		signer:     signer,
		statusSvc:  statusSvc,
		auditSvc:   auditSvc,
		authSvc:    authSvc,
		pushClient: pushClient,
	}
	s.registerRoutes()
	return s
}

// Start listens and serves HTTP traffic.
func (s *Server) Start() error {
	return s.app.Listen(s.cfg.HTTP.Addr)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) registerRoutes() {
	s.app.Get("/healthz", s.handleHealth)
	s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	s.app.Post("/auth/login", s.handleLogin)

	// Protocol endpoints stay open: devices authenticate through the
	// protocol's own handshake.
	s.app.Put("/mdm/checkin", s.handleCheckin)
	s.app.Put("/mdm/command", s.handleCommand)
	s.app.Get("/enroll/:code", s.handleEnrollDownload)

	api := s.app.Group("/api/v1", s.requireOperator)
	api.Post("/devices", s.handleRegisterDevice)
	api.Get("/devices", s.handleListDevices)
	api.Get("/devices/:udid/status", s.handleDeviceStatus)
	api.Get("/devices/:udid/audit", s.handleDeviceAudit)
	api.Post("/devices/:udid/commands", s.handleSendCommand)
	api.Delete("/devices/:udid/commands/:uuid", s.handleCancelCommand)
	api.Post("/devices/:udid/verify", s.handleVerifyDevice)
	api.Post("/profiles/generate", s.handleGenerateProfile)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	resp := fiber.Map{"status": "ok"}
	if s.pushClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.pushClient.Ping(ctx); err != nil {
			resp["push"] = fiber.Map{"status": "degraded", "error": err.Error()}
		} else {
			resp["push"] = fiber.Map{"status": "up"}
		}
	}
	return c.Status(http.StatusOK).JSON(resp)
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.JSON(model.Error("malformed request"))
	}
	if s.authSvc == nil || !s.authSvc.Enabled() {
		return c.JSON(model.Success("authentication disabled", fiber.Map{
			"token":   "",
			"enabled": false,
		}))
	}
	token, err := s.authSvc.Authenticate(req.Username, req.Password)
	if err != nil {
		return c.Status(http.StatusUnauthorized).JSON(model.Error(err.Error()))
	}
	return c.JSON(model.Success("login ok", fiber.Map{
		"token":    token,
		"enabled":  true,
		"username": s.authSvc.Username(),
	}))
}

// requireOperator guards the internal operator API. Two credentials are
// accepted: the collaborator's shared secret, or a dashboard bearer token
// issued by /auth/login. Unset secret plus disabled auth means the API is
// unreachable, not open.
func (s *Server) requireOperator(c *fiber.Ctx) error {
	expected := strings.TrimSpace(s.cfg.Server.SharedSecret)
	provided := c.Get("X-Altrii-Secret")
	if expected != "" && subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1 {
		return c.Next()
	}
	if s.authSvc != nil && s.authSvc.Enabled() {
		if token := extractBearerToken(c.Get(fiber.HeaderAuthorization)); token != "" {
			claims, err := s.authSvc.Validate(token)
			if err == nil {
				c.Locals("username", claims.Username)
				return c.Next()
			}
		}
	}
	return c.Status(http.StatusUnauthorized).JSON(model.Error("unauthorized"))
}

func extractBearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func (s *Server) fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(model.Error(message))
}
