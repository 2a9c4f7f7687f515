// Package app assembles the router from configuration. It is shared by the
// HTTP server and the operator CLI.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	ghclient "github.com/spec-kit/helpdesk-router/internal/clients/github"
	pdclient "github.com/spec-kit/helpdesk-router/internal/clients/pagerduty"
	"github.com/spec-kit/helpdesk-router/internal/clients/pagetitle"
	slackclient "github.com/spec-kit/helpdesk-router/internal/clients/slack"
	"github.com/spec-kit/helpdesk-router/internal/config"
	"github.com/spec-kit/helpdesk-router/internal/events"
	"github.com/spec-kit/helpdesk-router/internal/observability"
	"github.com/spec-kit/helpdesk-router/internal/persistence"
	"github.com/spec-kit/helpdesk-router/internal/repository"
	"github.com/spec-kit/helpdesk-router/internal/service"
	"github.com/spec-kit/helpdesk-router/internal/worker"
)

const ticketLockTTL = 15 * time.Second

// Tables are the five flat tables the router reads and writes.
type Tables struct {
	Teams           persistence.SheetTable
	Topics          persistence.SheetTable
	AutoAnswers     persistence.SheetTable
	Responses       persistence.SheetTable
	AnswerAnalytics persistence.SheetTable
}

// App holds every long-lived component.
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Postgres   *persistence.Postgres
	Redis      *persistence.Redis
	Slack      *slackclient.Client
	Dispatcher events.Dispatcher
	Pool       *worker.Pool

	Directory repository.DirectoryRepository
	Ledger    repository.LedgerRepository

	Tickets       *service.TicketService
	Roster        *service.RosterService
	Help          *service.HelpService
	Steps         service.WorkflowSteps
	Notifications *service.NotificationService
}

// Build connects the configured backends and constructs the services.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{
		Config:     cfg,
		Logger:     logger,
		Metrics:    observability.NewMetrics(),
		Dispatcher: events.NewInMemoryDispatcher(),
		Pool:       worker.NewPool(cfg.Worker.Concurrency, cfg.Worker.Concurrency*16, logger),
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	a.Postgres = pg
	if cfg.Store.Backend == config.StoreBackendPostgres && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), persistence.DefaultMigrationsDir, logger); err != nil {
			pg.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	a.Redis = persistence.NewRedis(cfg.Redis, logger)

	tables, err := OpenTables(ctx, cfg, pg, logger)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.Slack = slackclient.New(cfg.Slack.BotToken, logger)
	a.Directory = repository.NewDirectoryRepository(repository.DirectoryTables{
		Teams:       tables.Teams,
		Topics:      tables.Topics,
		AutoAnswers: tables.AutoAnswers,
	}, cfg.Store.CacheTTL())
	a.Ledger = repository.NewLedgerRepository(tables.Responses, cfg.App.Location())
	analytics := repository.NewAnalyticsRepository(tables.AnswerAnalytics)

	var paging service.PagingClient
	if cfg.PagerDuty.APIKey != "" {
		paging = pdclient.New(cfg.PagerDuty.APIKey, "")
	}
	resolver := service.NewOnCallResolver(paging, a.Slack, logger, a.Metrics)

	answers := service.NewAutoAnswerService(service.AutoAnswerDependencies{
		Directory:    a.Directory,
		Titles:       pagetitle.New(&http.Client{Timeout: cfg.AutoAnswer.TitleTimeout()}, cfg.App.Name+"/"+cfg.App.Version),
		TitleTimeout: cfg.AutoAnswer.TitleTimeout(),
		Concurrency:  cfg.AutoAnswer.TitleConcurrency,
		Logger:       logger,
	})

	issues, err := issueTracker(cfg.GitHub)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	pulls, err := pullRequests(cfg.GitHub)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	var locker service.Locker
	if cfg.App.TicketLocksEnabled && a.Redis.Configured() {
		locker = persistence.NewRedisLocker(a.Redis.Client, ticketLockTTL)
	}

	a.Tickets = service.NewTicketService(service.TicketDependencies{
		Directory:      a.Directory,
		Ledger:         a.Ledger,
		Analytics:      analytics,
		Resolver:       resolver,
		AutoAnswers:    answers,
		Chat:           a.Slack,
		Issues:         issues,
		PullRequests:   pulls,
		Locker:         locker,
		Runner:         a.Pool,
		Dispatcher:     a.Dispatcher,
		Logger:         logger,
		Metrics:        a.Metrics,
		SupportChannel: cfg.Slack.SupportChannel,
		WorkspaceURL:   cfg.Slack.WorkspaceURL,
		SurveyURL:      cfg.Slack.SurveyURL,
		ClosedReaction: cfg.Slack.ClosedReaction,
		SupportLabel:   cfg.GitHub.SupportLabel,
	})
	a.Roster = service.NewRosterService(service.RosterDependencies{
		Directory:      a.Directory,
		Resolver:       resolver,
		Chat:           a.Slack,
		Dispatcher:     a.Dispatcher,
		Logger:         logger,
		Metrics:        a.Metrics,
		SupportChannel: cfg.Slack.SupportChannel,
	})
	a.Help = service.NewHelpService(a.Directory, a.Slack, logger)
	a.Steps = service.NewWorkflowSteps(service.NewHelpWorkflowStep(a.Slack, a.Slack, logger))
	a.Notifications = service.NewNotificationService(a.Dispatcher, issues, logger, cfg.GitHub.SupportLabel)
	a.Notifications.RegisterHandlers()

	return a, nil
}

// OpenTables returns the tables of the configured store backend.
func OpenTables(ctx context.Context, cfg *config.Config, pg *persistence.Postgres, logger *zap.Logger) (Tables, error) {
	s := cfg.Sheets
	switch cfg.Store.Backend {
	case config.StoreBackendSheets:
		srv, err := persistence.NewSheetsService(ctx, s, logger)
		if err != nil {
			return Tables{}, fmt.Errorf("open sheets: %w", err)
		}
		return Tables{
			Teams:           persistence.NewGoogleSheetTable(srv, s.TeamsSpreadsheetID, s.TeamsSheet, repository.TeamColumns),
			Topics:          persistence.NewGoogleSheetTable(srv, s.TeamsSpreadsheetID, s.TopicsSheet, repository.TopicColumns),
			AutoAnswers:     persistence.NewGoogleSheetTable(srv, s.TeamsSpreadsheetID, s.AutoAnswerSheet, repository.AutoAnswerColumns),
			Responses:       persistence.NewGoogleSheetTable(srv, s.ResponsesSpreadsheetID, s.ResponsesSheet, repository.ResponseColumns),
			AnswerAnalytics: persistence.NewGoogleSheetTable(srv, s.ResponsesSpreadsheetID, s.AnswerAnalyticsSheet, repository.AnswerAnalyticsColumns),
		}, nil
	case config.StoreBackendPostgres:
		pool := pg.PoolHandle()
		if pool == nil {
			return Tables{}, fmt.Errorf("postgres backend selected but POSTGRES_DSN is empty")
		}
		return Tables{
			Teams:           persistence.NewPostgresSheetTable(pool, s.TeamsSheet, repository.TeamColumns),
			Topics:          persistence.NewPostgresSheetTable(pool, s.TopicsSheet, repository.TopicColumns),
			AutoAnswers:     persistence.NewPostgresSheetTable(pool, s.AutoAnswerSheet, repository.AutoAnswerColumns),
			Responses:       persistence.NewPostgresSheetTable(pool, s.ResponsesSheet, repository.ResponseColumns),
			AnswerAnalytics: persistence.NewPostgresSheetTable(pool, s.AnswerAnalyticsSheet, repository.AnswerAnalyticsColumns),
		}, nil
	case config.StoreBackendMemory:
		logger.Warn("using in-memory store; tickets are lost on restart")
		return Tables{
			Teams:           persistence.NewMemorySheetTable(s.TeamsSheet, repository.TeamColumns),
			Topics:          persistence.NewMemorySheetTable(s.TopicsSheet, repository.TopicColumns),
			AutoAnswers:     persistence.NewMemorySheetTable(s.AutoAnswerSheet, repository.AutoAnswerColumns),
			Responses:       persistence.NewMemorySheetTable(s.ResponsesSheet, repository.ResponseColumns),
			AnswerAnalytics: persistence.NewMemorySheetTable(s.AnswerAnalyticsSheet, repository.AnswerAnalyticsColumns),
		}, nil
	default:
		return Tables{}, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// issueTracker returns nil when no repository is configured so the
// services see a nil interface.
func issueTracker(cfg config.GitHubConfig) (service.IssueTracker, error) {
	if !cfg.IssuesEnabled() {
		return nil, nil
	}
	tokens, err := githubTokens(cfg)
	if err != nil {
		return nil, err
	}
	return ghclient.NewIssueTracker(cfg.Owner, cfg.IssueRepo, tokens), nil
}

// pullRequests returns nil without GitHub credentials.
func pullRequests(cfg config.GitHubConfig) (service.PullRequestSummarizer, error) {
	if !cfg.Authenticated() {
		return nil, nil
	}
	tokens, err := githubTokens(cfg)
	if err != nil {
		return nil, err
	}
	return ghclient.NewPullRequestReader(tokens), nil
}

func githubTokens(cfg config.GitHubConfig) (ghclient.TokenSource, error) {
	if cfg.AppAuthEnabled() {
		src, err := ghclient.NewAppTokenSource(cfg.AppID, cfg.InstallationID, cfg.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("github app credentials: %w", err)
		}
		return src, nil
	}
	return ghclient.StaticToken(cfg.Token), nil
}

// Close drains background work and releases connections.
func (a *App) Close(ctx context.Context) {
	if a.Pool != nil {
		if err := a.Pool.Shutdown(ctx); err != nil {
			a.Logger.Warn("worker pool shutdown", zap.Error(err))
		}
	}
	a.Redis.Close()
	a.Postgres.Close()
}
