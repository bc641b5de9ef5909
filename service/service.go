// Package service wires the capture-to-sync pipeline together and owns
// its lifecycle: the store is opened at startup and closed at shutdown,
// and every component receives its dependencies explicitly.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/apex/log"

	"billboardwatch/assembler"
	"billboardwatch/backend"
	"billboardwatch/config"
	"billboardwatch/detector"
	"billboardwatch/gamification"
	"billboardwatch/models"
	"billboardwatch/providers"
	"billboardwatch/queue"
	"billboardwatch/storage"
	"billboardwatch/syncer"
)

// Service is the running field agent.
type Service struct {
	config    *config.Config
	store     storage.Store
	queue     *queue.Store
	assembler *assembler.Assembler
	engine    *syncer.Engine
	game      *gamification.Engine
}

// New builds the full pipeline from configuration.
func New(cfg *config.Config) (*Service, error) {
	store, err := storage.NewSQLiteStore(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("opening store at %s: %w", cfg.StorePath, err)
	}
	return NewWithStore(cfg, store)
}

// NewWithStore builds the pipeline over an externally owned store.
func NewWithStore(cfg *config.Config, store storage.Store) (*Service, error) {
	q := queue.NewStore(store, cfg.MaxRetries)

	catalog, err := gamification.LoadCatalog(cfg.RulesPath)
	if err != nil {
		return nil, err
	}
	game, err := gamification.NewEngine(store, gamification.PointsConfig{
		Verified:         cfg.PointsVerified,
		Resolved:         cfg.PointsResolved,
		AccuracyBonusMax: cfg.AccuracyBonusMax,
	}, catalog)
	if err != nil {
		return nil, err
	}

	var det detector.Detector
	switch cfg.DetectorMode {
	case "remote":
		det = detector.NewRemoteDetector(cfg.DetectorURL)
	default:
		det = detector.NewHeuristic(cfg, cfg.DetectorSeed)
	}

	locator := &providers.FixedClockLocator{
		Inner: &providers.StaticLocator{
			Latitude:  cfg.DeviceLatitude,
			Longitude: cfg.DeviceLongitude,
			Address:   cfg.DeviceAddress,
		},
		Timeout: 10 * time.Second,
	}
	camera := &providers.DirectoryCamera{Dir: cfg.CaptureDir}

	asm := assembler.New(locator, camera, det, cfg.DeviceID, cfg.ReportThreshold)

	client := backend.NewHTTPClient(cfg.BackendURL, cfg.SubmitTimeout)
	engine := syncer.NewEngine(q, client, syncer.Options{
		Interval:      cfg.SyncInterval,
		BackoffBase:   cfg.BackoffBase,
		BackoffMax:    cfg.BackoffMax,
		SubmitTimeout: cfg.SubmitTimeout,
	}, func(ev models.OutcomeEvent) {
		if _, err := game.Apply(ev); err != nil {
			log.Errorf("applying outcome for %s: %v", ev.ReportID, err)
		}
	})

	return &Service{
		config:    cfg,
		store:     store,
		queue:     q,
		assembler: asm,
		engine:    engine,
		game:      game,
	}, nil
}

// Start launches the sync engine.
func (s *Service) Start() error {
	log.Infof("starting field agent (device %s)", s.config.DeviceID)
	s.engine.Start()
	return nil
}

// Stop stops the sync engine and closes the store.
func (s *Service) Stop() error {
	log.Info("stopping field agent")
	s.engine.Stop()
	if err := s.store.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}
	return nil
}

// Capture runs one capture session, enqueues the assembled report and
// nudges the sync engine.
func (s *Service) Capture(ctx context.Context) (*models.ViolationReport, error) {
	report, err := s.assembler.Capture(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.queue.Enqueue(report); err != nil {
		// The report must not be dropped silently: the caller sees the
		// storage failure and can re-run the capture.
		return nil, err
	}
	s.engine.Trigger()
	return report, nil
}

// Queue exposes the offline queue to the HTTP and CLI surfaces.
func (s *Service) Queue() *queue.Store { return s.queue }

// Sync triggers a coalesced drain.
func (s *Service) Sync() { s.engine.Trigger() }

// DrainOnce runs one synchronous drain pass.
func (s *Service) DrainOnce(ctx context.Context) error { return s.engine.DrainOnce(ctx) }

// Profile returns the gamification state.
func (s *Service) Profile() models.GamificationState { return s.game.State() }
