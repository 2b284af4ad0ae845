package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Avaneesh27/Haathse-Marketplace/internal/eventlog"
	"github.com/Avaneesh27/Haathse-Marketplace/internal/httpapi"
	"github.com/Avaneesh27/Haathse-Marketplace/internal/jobs"
	"github.com/Avaneesh27/Haathse-Marketplace/internal/recommend"
	"github.com/Avaneesh27/Haathse-Marketplace/internal/store"
	"github.com/Avaneesh27/Haathse-Marketplace/internal/voice/interpret"
)

type App struct {
	cfg         Config
	logger      *log.Logger
	db          *pgxpool.Pool
	store       *store.Store
	eventLog    *eventlog.Logger
	recommender *recommend.Service
	refreshJob  *jobs.RecommendRefreshJob
	sessions    *httpapi.SessionRegistry
	packs       []interpret.KeywordPack
}

func New(cfg Config, logger *log.Logger) (*App, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s := store.New(db)
	el := eventlog.New(db)
	recommender := recommend.New(s, s, logger)

	// Extra interpreter locales are deploy config; a bad packs file should
	// fail loudly at startup, not at the first voice session.
	var packs []interpret.KeywordPack
	if cfg.KeywordPacksPath != "" {
		packs, err = interpret.LoadPacks(cfg.KeywordPacksPath)
		if err != nil {
			db.Close()
			return nil, err
		}
		logger.Printf("loaded %d keyword packs from %s", len(packs), cfg.KeywordPacksPath)
	}

	// Migrations are applied externally by the CI deploy job (docker exec psql).
	// No automatic migration runner at startup.

	return &App{
		cfg:         cfg,
		logger:      logger,
		db:          db,
		store:       s,
		eventLog:    el,
		recommender: recommender,
		refreshJob:  jobs.NewRecommendRefreshJob(recommender, logger, cfg.RecommendRefreshInterval),
		sessions:    httpapi.NewSessionRegistry(),
		packs:       packs,
	}, nil
}

func (a *App) Router() http.Handler {
	routerCfg := httpapi.RouterConfig{
		PublicBaseURL:         a.cfg.PublicBaseURL,
		TwilioAuthToken:       a.cfg.TwilioAuthToken,
		TwilioAccountSID:      a.cfg.TwilioAccountSID,
		TwilioVerifyServiceID: a.cfg.TwilioVerifyServiceID,
		SMSSenderNumber:       a.cfg.SMSSenderNumber,
		WhisperAPIKey:         a.cfg.WhisperAPIKey,
		DeepgramAPIKey:        a.cfg.DeepgramAPIKey,
		STTProvider:           a.cfg.STTProvider,
		ElevenLabsAPIKey:      a.cfg.ElevenLabsAPIKey,
		TTSVoiceID:            a.cfg.TTSVoiceID,
		CommandTimeout:        a.cfg.CommandTimeout,
		Turnaround:            a.cfg.Turnaround,
		KeywordPacks:          a.packs,
		JWTSecret:             a.cfg.JWTSecret,
		JWTExpiry:             a.cfg.JWTExpiry,
		AdminPhones:           a.cfg.AdminPhones,
		DiscordWebhookURL:     a.cfg.DiscordWebhookURL,
		APNsKeyPath:           a.cfg.APNsKeyPath,
		APNsKeyID:             a.cfg.APNsKeyID,
		APNsTeamID:            a.cfg.APNsTeamID,
		APNsBundleID:          a.cfg.APNsBundleID,
		APNsProduction:        a.cfg.APNsProduction,
	}
	return httpapi.NewRouter(routerCfg, a.logger, a.store, a.eventLog, a.recommender, a.sessions)
}

// Sessions exposes the registry so main can drain voice sessions before
// shutting the HTTP server down.
func (a *App) Sessions() *httpapi.SessionRegistry { return a.sessions }

// StartJobs launches the background workers.
func (a *App) StartJobs() {
	a.refreshJob.Start()
}

func (a *App) Close() error {
	a.refreshJob.Stop()
	if a.db != nil {
		a.db.Close()
	}
	return nil
}
