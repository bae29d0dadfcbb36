package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/Altrii-recovery/Altrii/internal/config"
	"github.com/Altrii-recovery/Altrii/internal/enroll"
	"github.com/Altrii-recovery/Altrii/internal/logging"
	"github.com/Altrii-recovery/Altrii/internal/mdm"
	"github.com/Altrii-recovery/Altrii/internal/profile"
	"github.com/Altrii-recovery/Altrii/internal/pushclient"
	"github.com/Altrii-recovery/Altrii/internal/registry"
	"github.com/Altrii-recovery/Altrii/internal/server"
	"github.com/Altrii-recovery/Altrii/internal/service"
	"github.com/Altrii-recovery/Altrii/internal/storage"
	"github.com/Altrii-recovery/Altrii/internal/storage/bolt"
	"github.com/Altrii-recovery/Altrii/internal/storage/memory"
	"github.com/Altrii-recovery/Altrii/internal/wake"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Init("info", true, os.Stderr)
		logging.Logger.Fatal().Err(err).Msg("load config")
	}
	logging.Init(cfg.Log.Level, cfg.Log.JSON, os.Stdout)
	log := logging.WithComponent("main")

	store, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer store.Close()

	var pushClient *pushclient.Client
	if cfg.Push.BaseURL != "" {
		pushClient, err = pushclient.New(cfg.Push.BaseURL, cfg.Push.Token, cfg.Push.RequestTimeout)
		if err != nil {
			log.Fatal().Err(err).Msg("init push client")
		}
	}

	var pusher wake.Pusher
	if pushClient != nil {
		pusher = pushClient
	}
	dispatcher := wake.NewDispatcher(pusher, store, logging.WithComponent("wake"), cfg.Push.RequestTimeout)
	dispatcher.Start()
	defer dispatcher.Stop()

	signer, err := profile.LoadSigner(cfg.Signing.Certificate, cfg.Signing.PrivateKey)
	if err != nil {
		if !errors.Is(err, profile.ErrSignerUnavailable) {
			log.Fatal().Err(err).Msg("load signing identity")
		}
		log.Warn().Msg("no signing identity configured, profiles will be served unsigned")
	}

	reg := registry.New()
	engine := mdm.NewEngine(store, reg, dispatcher, logging.WithComponent("mdm"))
	registrar := enroll.NewRegistrar(store, cfg.Enrollment.TTL, logging.WithComponent("enroll"))
	builder := profile.NewBuilder(cfg.Server.PublicURL, cfg.Server.Topic, cfg.Server.CheckinInterval)
	statusSvc := service.NewStatusService(store, reg, cfg.Server.CheckinInterval)
	auditSvc := service.NewAuditService(store)
	authSvc := service.NewAuthService(cfg)

	var signerIface profile.Signer
	if signer != nil {
		signerIface = signer
	}
	srv := server.New(cfg, store, engine, registrar, builder, signerIface, statusSvc, auditSvc, authSvc, pushClient)

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()
	log.Info().Str("addr", cfg.HTTP.Addr).Msg("altrii-mdm listening")

	waitForSignal()
	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.WriteTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}

func openStore(cfg *config.Config) (storage.Store, error) {
	if cfg.Storage.Driver == "memory" {
		return memory.New(), nil
	}
	return bolt.New(cfg.Storage.Path)
}

func waitForSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
