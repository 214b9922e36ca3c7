package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"slackhooks/app"
	slackclient "slackhooks/clients/slack"
	"slackhooks/config"
	"slackhooks/core/log"
	"slackhooks/db"
	"slackhooks/handlers"
	"slackhooks/middleware"
	"slackhooks/services/jobs"
	"slackhooks/services/oauthflow"
	"slackhooks/services/oauthstate"
	"slackhooks/services/signature"
)

func main() {
	if err := run(); err != nil {
		log.Error("❌ Fatal error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if err := log.Init(cfg.LogLevel, cfg.Environment == "dev"); err != nil {
		return err
	}

	alerter := middleware.NewErrorAlerter(middleware.SlackAlertConfig{
		WebhookURL:  cfg.SlackConfig.AlertWebhookURL,
		Environment: cfg.Environment,
		AppName:     "slackhooks",
	})
	defer alerter.Wait()

	startupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	stores, err := db.OpenStores(startupCtx, cfg.StoreConfig)
	if err != nil {
		return err
	}
	defer stores.Close()

	slackClient := slackclient.NewSlackClient(slackclient.WithHTTPClient(&http.Client{Timeout: cfg.SlackConfig.APITimeout}))
	states := oauthstate.NewManager(stores.States)

	opts := []app.Option{
		app.WithVerifier(signature.NewVerifier(cfg.SlackConfig.SigningSecret, signature.WithTolerance(cfg.SlackConfig.SignatureTolerance))),
		app.WithInstallationStore(stores.Installations),
		app.WithChatClient(slackClient),
		app.WithBotToken(cfg.SlackConfig.BotToken),
		app.WithAPITimeout(cfg.SlackConfig.APITimeout),
	}
	if cfg.SlackConfig.IsOAuthConfigured() {
		flow := oauthflow.NewFlow(oauthflow.Config{
			ClientID:     cfg.SlackConfig.ClientID,
			ClientSecret: cfg.SlackConfig.ClientSecret,
			RedirectURI:  cfg.SlackConfig.RedirectURI,
			Scopes:       cfg.SlackConfig.Scopes,
			UserScopes:   cfg.SlackConfig.UserScopes,
			SuccessURL:   cfg.SlackConfig.InstallSuccessURL,
		}, stores.Installations, states, slackClient)
		opts = append(opts, app.WithOAuthFlow(flow))
	}

	slackApp := app.New(cfg.SlackConfig.SigningSecret, opts...)
	slackApp.Use(middleware.Recover(alerter))
	slackApp.Use(middleware.RequestLogger())
	if cfg.SlackConfig.IsOAuthConfigured() {
		slackApp.Use(middleware.RequireInstallation(stores.Installations))
		slackApp.WithUninstallCleanup()
	}
	slackApp.Use(middleware.IgnoreSelfEvents())
	registerHandlers(slackApp)

	router := mux.NewRouter()
	handlers.NewSlackHandler(slackApp).SetupEndpoints(router)

	scheduler := jobs.NewScheduler(jobs.WithTaskWrapper(alerter.WrapBackgroundTask))
	if err := scheduler.Register("CleanupExpiredOAuthStates", cfg.OAuthStateCleanupSchedule, jobs.CleanupExpiredStates(states)); err != nil {
		return err
	}
	scheduler.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		scheduler.Stop(stopCtx)
	}()

	allowedOrigins := strings.Split(cfg.CORSAllowedOrigins, ",")
	for i, origin := range allowedOrigins {
		allowedOrigins[i] = strings.TrimSpace(origin)
	}
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           alerter.HTTPMiddleware(c.Handler(router)),
		ReadHeaderTimeout: 30 * time.Second,
	}

	return handleGracefulShutdown(server)
}

func handleGracefulShutdown(server *http.Server) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		log.Info("✅ Listening on http://localhost%s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-stop:
	}
	log.Info("🛑 Shutdown signal received, cleaning up...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("❌ Server shutdown error: %v", err)
		return err
	}

	log.Info("✅ Server stopped gracefully")
	return nil
}
