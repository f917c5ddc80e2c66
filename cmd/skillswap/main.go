// Command skillswap is a smoke client for the SkillSwap platform. With no
// API_BASE_URL configured it starts the embedded dev server and walks a full
// negotiation between two sessions: request code, verify, propose, accept,
// complete. Against a real API it restores the persisted session and prints
// its state.
package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/skillswap/skillswap-client/internal/core/domain"
	"github.com/skillswap/skillswap-client/internal/core/ports"
	"github.com/skillswap/skillswap-client/internal/core/service"
	"github.com/skillswap/skillswap-client/internal/devserver"
	"github.com/skillswap/skillswap-client/internal/infrastructure/api"
	"github.com/skillswap/skillswap-client/internal/infrastructure/config"
	"github.com/skillswap/skillswap-client/internal/infrastructure/db/badgerdb"
	"github.com/skillswap/skillswap-client/internal/infrastructure/db/memory"
	redisdb "github.com/skillswap/skillswap-client/internal/infrastructure/db/redis"
	"github.com/skillswap/skillswap-client/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.Env == "development"})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	baseURL := cfg.BaseURL
	var srv *devserver.Server
	if baseURL == "" {
		srv = devserver.New(devserver.Options{JWTSecret: cfg.JWTSecret, Debug: true}, log)
		go func() {
			if err := srv.Start(ctx, cfg.DevServerAddr); err != nil {
				log.Fatal().Err(err).Msg("dev server failed")
			}
		}()
		baseURL = "http://" + cfg.DevServerAddr
		waitReady(ctx, baseURL)
		log.Info().Str("addr", cfg.DevServerAddr).Msg("embedded dev server started")
	}

	store, closeStore, err := openCredentialStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.CredentialBackend).Msg("failed to open credential store")
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn().Err(err).Msg("credential store close failed")
		}
	}()

	client := newClient(baseURL, store, cfg.HTTPTimeout, log)

	state, err := client.session.Bootstrap(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("session bootstrap failed")
	}
	log.Info().Str("state", string(state)).Msg("session bootstrapped")

	if srv != nil {
		if err := runDemo(ctx, cfg, srv, client, log); err != nil {
			log.Fatal().Err(err).Msg("demo flow failed")
		}
	}
}

type client struct {
	session ports.SessionService
	deals   ports.DealService
}

// newClient wires a full client stack over one credential store. Each call
// builds an independent session, which is how the demo runs two users in one
// process.
func newClient(baseURL string, store ports.CredentialStore, timeout time.Duration, log zerolog.Logger) *client {
	httpClient := &http.Client{Timeout: timeout, Jar: newCookieJar()}
	refresher := api.NewRefreshCoordinator(baseURL, httpClient, store, log)
	gw := api.NewGateway(baseURL, httpClient, store, refresher, log)
	return &client{
		session: service.NewSessionService(gw, store, log),
		deals:   service.NewDealService(gw, log),
	}
}

// runDemo drives one full negotiation between a student and a teacher.
func runDemo(ctx context.Context, cfg *config.Config, srv *devserver.Server, student *client, log zerolog.Logger) error {
	const (
		studentPhone = "+79991234567"
		teacherPhone = "+79997654321"
		chatID       = int64(42)
	)

	baseURL := "http://" + cfg.DevServerAddr
	teacher := newClient(baseURL, memory.NewCredentialStore(), cfg.HTTPTimeout, log)

	events := make(chan devserver.DealEvent, 16)
	srv.Notifier.Subscribe(events)

	if err := login(ctx, student.session, studentPhone); err != nil {
		return fmt.Errorf("student login: %w", err)
	}
	if err := login(ctx, teacher.session, teacherPhone); err != nil {
		return fmt.Errorf("teacher login: %w", err)
	}

	studentID, _ := srv.UserID(studentPhone)
	teacherID, _ := srv.UserID(teacherPhone)
	srv.SeedChat(chatID, studentID, teacherID)

	deal, err := student.deals.Propose(ctx, chatID, ports.DealTerms{
		Skill: "Guitar",
		Time:  "Fri 17:00",
		Place: "Library",
	})
	if err != nil {
		return fmt.Errorf("propose: %w", err)
	}
	log.Info().Str("deal_id", deal.ID).Str("status", string(deal.Status)).Msg("deal proposed")

	if _, err := teacher.deals.ApplyTransition(ctx, chatID, domain.StatusAccepted, teacherID, "sounds good"); err != nil {
		return fmt.Errorf("accept: %w", err)
	}
	// The student's snapshot predates the acceptance; re-sync before completing.
	if _, err := student.deals.GetChatDeal(ctx, chatID); err != nil {
		return fmt.Errorf("resync deal: %w", err)
	}
	if _, err := student.deals.ApplyTransition(ctx, chatID, domain.StatusCompleted, studentID, "lesson done"); err != nil {
		return fmt.Errorf("complete: %w", err)
	}

	logs, err := student.deals.GetDealLogs(ctx, deal.ID)
	if err != nil {
		return fmt.Errorf("fetch logs: %w", err)
	}
	final, err := domain.Replay(logs)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	log.Info().Int("transitions", len(logs)).Str("replayed_status", string(final)).Msg("negotiation finished")

	drain(events, log)
	return nil
}

// newCookieJar holds the HTTP-only refresh cookie the server sets on login,
// shared between the gateway and the refresh coordinator.
func newCookieJar() http.CookieJar {
	jar, _ := cookiejar.New(nil)
	return jar
}

func login(ctx context.Context, s ports.SessionService, phone string) error {
	code, err := s.RequestCode(ctx, phone)
	if err != nil {
		return err
	}
	if code.DebugCode == "" {
		return fmt.Errorf("dev server did not expose a debug code")
	}
	_, err = s.VerifyCode(ctx, phone, code.DebugCode)
	return err
}

func openCredentialStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (ports.CredentialStore, func() error, error) {
	switch cfg.CredentialBackend {
	case "memory":
		return memory.NewCredentialStore(), func() error { return nil }, nil
	case "redis":
		client, err := redisdb.Connect(ctx, redisdb.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err != nil {
			return nil, nil, err
		}
		return redisdb.NewCredentialStore(client), client.Close, nil
	default:
		return badgerdb.Open(cfg.BadgerDir, log)
	}
}

func waitReady(ctx context.Context, baseURL string) {
	for i := 0; i < 50; i++ {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
		if resp, err := http.DefaultClient.Do(req); err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
}

func drain(events <-chan devserver.DealEvent, log zerolog.Logger) {
	for {
		select {
		case ev := <-events:
			log.Info().Str("deal_id", ev.DealID).Str("status", string(ev.NewStatus)).Str("actor", ev.ActorID).Msg("deal event")
		case <-time.After(200 * time.Millisecond):
			return
		}
	}
}
