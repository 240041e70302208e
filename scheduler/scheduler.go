package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"we_listings/config"
	"we_listings/models"
	"we_listings/scraper"
	"we_listings/services"
	"we_listings/storage"
)

// Triggerable lets the scheduler nudge a background worker out of its wait.
type Triggerable interface {
	Trigger()
}

// Scheduler drives periodic refreshes and drains the command queue. Commands
// arrive through the SQLite store, so anything that can write a row (CLI,
// admin tooling) can steer the daemon.
type Scheduler struct {
	cfg      *config.Config
	listings *services.ListingService
	orch     *scraper.Orchestrator
	store    *storage.SQLiteStore
	cron     *cron.Cron
	ticker   *time.Ticker
	stopCh   chan struct{}

	healthcheck Triggerable
}

func New(cfg *config.Config, listings *services.ListingService, orch *scraper.Orchestrator, store *storage.SQLiteStore) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		listings: listings,
		orch:     orch,
		store:    store,
		cron:     cron.New(),
		stopCh:   make(chan struct{}),
	}
}

// SetHealthcheck registers the healthcheck worker. After a successful refresh
// the worker gets a nudge: archive rows the fresh scrape did not touch are
// the ones worth probing.
func (s *Scheduler) SetHealthcheck(t Triggerable) {
	s.healthcheck = t
}

// Start spins up the command poller and whichever schedule is configured. A
// cron expression beats the interval; with neither, the daemon only answers
// commands.
func (s *Scheduler) Start(ctx context.Context) error {
	go s.pollCommands(ctx)

	if s.cfg.Scheduler.Cron != "" {
		log.Printf("Starting scheduler with cron: %s", s.cfg.Scheduler.Cron)
		_, err := s.cron.AddFunc(s.cfg.Scheduler.Cron, func() {
			s.RunAll(ctx)
		})
		if err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		s.cron.Start()
		return nil
	}

	if s.cfg.Scheduler.Interval > 0 {
		log.Printf("Starting scheduler with interval: %s", s.cfg.Scheduler.Interval)
		s.ticker = time.NewTicker(s.cfg.Scheduler.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.RunAll(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
		return nil
	}

	log.Println("No schedule configured, daemon will only respond to commands")
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
	if s.ticker != nil {
		s.ticker.Stop()
	}
	close(s.stopCh)
}

// RunAll refreshes every configured region. Per-region failures are logged
// and do not stop the rest.
func (s *Scheduler) RunAll(ctx context.Context) {
	if s.orch.IsPaused() {
		log.Println("Scheduled refresh skipped: scraping is paused")
		return
	}

	var refreshed int
	for id := range s.cfg.Regions {
		if _, err := s.listings.Refresh(ctx, id); err != nil {
			log.Printf("Scheduled refresh %s: %v", id, err)
			continue
		}
		refreshed++
	}

	if refreshed > 0 && s.healthcheck != nil {
		s.healthcheck.Trigger()
	}
}

func (s *Scheduler) pollCommands(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processPending(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) processPending(ctx context.Context) {
	cmds, err := s.store.PendingCommands()
	if err != nil {
		log.Printf("Error getting commands: %v", err)
		return
	}

	for i := range cmds {
		cmd := &cmds[i]
		log.Printf("Processing command: %s", cmd.Command)
		if err := s.handleCommand(ctx, cmd); err != nil {
			log.Printf("Command error: %v", err)
		}
		if err := s.store.MarkCommandProcessed(cmd.ID); err != nil {
			log.Printf("Error marking command processed: %v", err)
		}
	}
}

func (s *Scheduler) handleCommand(ctx context.Context, cmd *models.Command) error {
	switch cmd.Command {
	case models.CmdScrapeNow:
		params, err := s.store.ParseCommandParams(cmd)
		if err != nil {
			return err
		}
		if params.Region != "" {
			_, err := s.listings.Refresh(ctx, params.Region)
			return err
		}
		s.RunAll(ctx)
		return nil
	case models.CmdPause:
		s.orch.Pause()
		return nil
	case models.CmdResume:
		s.orch.Resume()
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd.Command)
	}
}

// TriggerNow runs a full refresh outside the schedule.
func (s *Scheduler) TriggerNow(ctx context.Context) {
	s.RunAll(ctx)
}
