// Package app assembles Kai's components from configuration.
// Both the daemon and the CLI build their core through New.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/kaiassist/kai/internal/api"
	"github.com/kaiassist/kai/internal/config"
	"github.com/kaiassist/kai/internal/core"
	"github.com/kaiassist/kai/internal/email"
	"github.com/kaiassist/kai/internal/intent"
	"github.com/kaiassist/kai/internal/logging"
	"github.com/kaiassist/kai/internal/memory"
	"github.com/kaiassist/kai/internal/personality"
	"github.com/kaiassist/kai/internal/research"
	"github.com/kaiassist/kai/internal/scheduler"
	"github.com/kaiassist/kai/internal/storage"
	"github.com/kaiassist/kai/internal/tasks"
)

// App holds the wired core
type App struct {
	Config *config.Config

	DB        *storage.DB // nil with the file backend
	Scheduler *scheduler.Scheduler
	Tasks     *tasks.Service
	Memory    *memory.Log
	Engine    *personality.Engine
	State     *personality.State
	Router    *intent.Router

	watcher *personality.Watcher
}

// New builds every component. Nothing runs until Start.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	taskRepo, memRepo, err := a.openStorage()
	if err != nil {
		return nil, err
	}

	a.Scheduler, err = scheduler.NewScheduler(scheduler.Config{Tick: cfg.Tasks.Tick})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Tasks = tasks.NewService(taskRepo, a.Scheduler, tasks.Config{Unit: cfg.DelayUnit()})
	a.Memory = memory.NewLog(memRepo)

	table := personality.DefaultTable()
	if cfg.Personality.TableFile != "" {
		table, err = personality.LoadTable(cfg.Path(cfg.Personality.TableFile))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("load personality table: %w", err)
		}
	}
	a.Engine = personality.NewEngine(table, nil)
	a.State = personality.NewState(core.Mode(cfg.Personality.DefaultMode))

	if cfg.Personality.Watch && cfg.Personality.TableFile != "" {
		a.watcher, err = personality.NewWatcher(cfg.Path(cfg.Personality.TableFile), a.Engine)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	mailer, mailAccount := buildMailer(ctx, cfg)

	a.Router, err = intent.NewRouter(intent.Config{
		Tasks:  a.Tasks,
		Memory: a.Memory,
		Engine: a.Engine,
		State:  a.State,
		Research: research.NewClient(research.Config{
			BaseURL:       cfg.Research.BaseURL,
			Timeout:       cfg.Research.Timeout,
			MaxParagraphs: cfg.Research.MaxParagraphs,
			UserAgent:     cfg.Research.UserAgent,
		}),
		Mail:        mailer,
		MailAccount: mailAccount,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

func (a *App) openStorage() (tasks.Repository, memory.Repository, error) {
	cfg := a.Config
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		db, err := storage.Open(storage.Config{
			Path:   cfg.Path(cfg.Storage.DBFile),
			Driver: cfg.Storage.Driver,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migration failed: %w", err)
		}
		a.DB = db
		return storage.NewTaskStore(db), storage.NewMemoryStore(db), nil
	default:
		return storage.NewFileTaskStore(cfg.Path(cfg.Storage.TasksFile)),
			storage.NewFileMemoryStore(cfg.Path(cfg.Storage.MemoryFile)), nil
	}
}

// buildMailer prefers the Gmail API when a token is configured.
// The second result reports whether it can send without request credentials.
func buildMailer(ctx context.Context, cfg *config.Config) (intent.Mailer, bool) {
	if cfg.Mail.GmailTokenFile != "" {
		sender, err := email.NewGmailSenderFromFiles(ctx,
			cfg.Path(cfg.Mail.GmailCredentialsFile), cfg.Path(cfg.Mail.GmailTokenFile))
		if err == nil {
			return sender, true
		}
		logging.Warn("gmail sender unavailable, falling back to SMTP: %v", err)
	}

	sender := email.NewSender(email.Config{
		SMTPHost:    cfg.Mail.SMTPHost,
		SMTPPort:    cfg.Mail.SMTPPort,
		Username:    cfg.Mail.Username,
		Password:    cfg.Mail.Password,
		FromEmail:   cfg.Mail.FromEmail,
		FromName:    cfg.Mail.FromName,
		UseTLS:      cfg.Mail.UseTLS,
		UseStartTLS: cfg.Mail.UseStartTLS,
		Timeout:     cfg.Mail.Timeout,
	})
	return sender, cfg.Mail.Username != "" && cfg.Mail.Password != ""
}

// Start runs the scheduler loop and, if configured, the table watcher
func (a *App) Start(ctx context.Context) error {
	if err := a.Scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	if a.watcher != nil {
		if err := a.watcher.Start(ctx); err != nil {
			logging.Warn("personality table watch disabled: %v", err)
		}
	}
	return nil
}

// NewServer creates the HTTP server over this core
func (a *App) NewServer() (*api.Server, error) {
	return api.New(api.Config{
		Host:      a.Config.Server.Host,
		Port:      a.Config.Server.Port,
		Router:    a.Router,
		Tasks:     a.Tasks,
		Memory:    a.Memory,
		State:     a.State,
		Scheduler: a.Scheduler,
	})
}

// Close stops background work and releases storage. Pending reminders are dropped.
func (a *App) Close() error {
	var errs []error
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.Scheduler != nil {
		if err := a.Scheduler.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
