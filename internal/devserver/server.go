// Package devserver is an in-process implementation of the SkillSwap API
// contract. It exists so the client can be exercised end-to-end without the
// production backend: integration tests and the demo binary run against it.
// All state is in memory.
package devserver

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

// Options configures a dev server instance.
type Options struct {
	JWTSecret string
	// Debug exposes the generated verification code in the request_code
	// response, mirroring the production server's debug mode.
	Debug bool
	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// Server bundles the echo instance with seed helpers for tests.
type Server struct {
	Echo     *echo.Echo
	Notifier *Notifier

	store *store
}

// New builds a dev server with all routes registered. Call Notifier.Start to
// enable event fanout.
func New(opts Options, log zerolog.Logger) *Server {
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	st := newStore()
	notifier := NewNotifier(defaultShards, log)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newValidator()
	e.HTTPErrorHandler = newHTTPErrorHandler(log)

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echoprometheus.NewMiddleware("skillswap_devserver"))

	auth := &authHandler{store: st, jwtSecret: opts.JWTSecret, debug: opts.Debug, now: now, log: log}
	deals := &dealHandler{store: st, notifier: notifier, now: now, log: log}
	users := &userHandler{store: st}

	e.POST("/auth/request_code", auth.RequestCode)
	e.POST("/auth/verify_code", auth.VerifyCode)
	e.POST("/auth/refresh", auth.Refresh)
	e.POST("/auth/logout", auth.Logout)

	protected := e.Group("", authMiddleware(opts.JWTSecret))
	protected.GET("/users/me", users.Me)
	protected.POST("/deals/chats/:chatId/propose", deals.Propose)
	protected.PATCH("/deals/chats/:chatId/status", deals.UpdateStatus)
	protected.GET("/deals/chats/:chatId", deals.GetChatDeal)
	protected.GET("/deals/my", deals.GetMyDeals)
	protected.GET("/deals/:dealId/logs", deals.GetLogs)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echoprometheus.NewHandler())

	return &Server{Echo: e, Notifier: notifier, store: st}
}

// Start runs the notifier workers and serves on addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.Notifier.Start(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Echo.Shutdown(shutdownCtx)
	}()
	if err := s.Echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// SeedUser registers a user directly, bypassing the SMS flow.
func (s *Server) SeedUser(id, phone, role string) { s.store.SeedUser(id, phone, role) }

// SeedChat registers a chat between two users so deals can be proposed on it.
func (s *Server) SeedChat(chatID int64, studentID, teacherID string) {
	s.store.SeedChat(chatID, studentID, teacherID)
}

// UserID returns the id of the user registered for phone, if any.
func (s *Server) UserID(phone string) (string, bool) {
	s.store.mu.Lock()
	defer s.store.mu.Unlock()
	u, ok := s.store.users[phone]
	if !ok {
		return "", false
	}
	return u.ID, true
}
