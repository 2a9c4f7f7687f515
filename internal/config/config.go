package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends understood by the persistence layer.
const (
	StoreBackendSheets   = "sheets"
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"
)

// Config aggregates runtime configuration for the router.
type Config struct {
	App        AppConfig
	Logger     LoggerConfig
	Slack      SlackConfig
	Store      StoreConfig
	Sheets     SheetsConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	PagerDuty  PagerDutyConfig
	GitHub     GitHubConfig
	AutoAnswer AutoAnswerConfig
	Worker     WorkerConfig
	Admin      AdminConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	ReportTimezone        string
	TicketLocksEnabled    bool
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// SlackConfig holds chat platform credentials and routing targets.
type SlackConfig struct {
	BotToken       string
	SigningSecret  string
	SupportChannel string
	WorkspaceURL   string
	SurveyURL      string
	ClosedReaction string
}

// StoreConfig selects the flat-row backend.
type StoreConfig struct {
	Backend         string
	CacheTTLSeconds int
}

// SheetsConfig addresses the spreadsheet tabs used as directory and ledger.
type SheetsConfig struct {
	CredentialsFile        string
	CredentialsJSON        string
	TeamsSpreadsheetID     string
	ResponsesSpreadsheetID string
	TeamsSheet             string
	TopicsSheet            string
	AutoAnswerSheet        string
	ResponsesSheet         string
	AnswerAnalyticsSheet   string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr            string
	Password        string
	DB              int
	EventTTLSeconds int
}

// PagerDutyConfig holds the paging service token.
type PagerDutyConfig struct {
	APIKey string
}

// GitHubConfig configures the issue tracker and pull request status integrations.
type GitHubConfig struct {
	Token          string
	AppID          int64
	InstallationID int64
	PrivateKey     string
	Owner          string
	IssueRepo      string
	SupportLabel   string
}

// AutoAnswerConfig tunes documentation title fetching.
type AutoAnswerConfig struct {
	TitleTimeoutSeconds int
	TitleConcurrency    int
}

// WorkerConfig bounds background processing.
type WorkerConfig struct {
	Concurrency int
}

// AdminConfig defines admin API token parameters.
type AdminConfig struct {
	JWTSecret       string
	TokenTTLMinutes int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	appID, err := getEnvAsInt64("GITHUB_APP_ID", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid GITHUB_APP_ID: %w", err)
	}
	installationID, err := getEnvAsInt64("GITHUB_APP_INSTALLATION_ID", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid GITHUB_APP_INSTALLATION_ID: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "helpdesk-router"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "3000"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			ReportTimezone:        getEnv("REPORT_TIMEZONE", "America/New_York"),
			TicketLocksEnabled:    getEnvAsBool("TICKET_LOCKS_ENABLED", false),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Slack: SlackConfig{
			BotToken:       os.Getenv("SLACK_BOT_TOKEN"),
			SigningSecret:  os.Getenv("SLACK_SIGNING_SECRET"),
			SupportChannel: os.Getenv("SLACK_SUPPORT_CHANNEL"),
			WorkspaceURL:   strings.TrimRight(getEnv("SLACK_WORKSPACE_URL", "https://slack.com"), "/"),
			SurveyURL:      os.Getenv("SUPPORT_SURVEY_URL"),
			ClosedReaction: getEnv("SLACK_CLOSED_REACTION", "white_check_mark"),
		},
		Store: StoreConfig{
			Backend:         strings.ToLower(getEnv("STORE_BACKEND", StoreBackendSheets)),
			CacheTTLSeconds: getEnvAsInt("DIRECTORY_CACHE_TTL_SECONDS", 300),
		},
		Sheets: SheetsConfig{
			CredentialsFile:        os.Getenv("GOOGLE_CREDENTIALS_FILE"),
			CredentialsJSON:        os.Getenv("GOOGLE_CREDENTIALS_JSON"),
			TeamsSpreadsheetID:     os.Getenv("TEAMS_SPREADSHEET_ID"),
			ResponsesSpreadsheetID: os.Getenv("RESPONSES_SPREADSHEET_ID"),
			TeamsSheet:             getEnv("TEAMS_SHEET", "Teams"),
			TopicsSheet:            getEnv("TOPICS_SHEET", "Topics"),
			AutoAnswerSheet:        getEnv("AUTO_ANSWER_SHEET", "AutoAnswers"),
			ResponsesSheet:         getEnv("RESPONSES_SHEET", "Responses"),
			AnswerAnalyticsSheet:   getEnv("ANSWER_ANALYTICS_SHEET", "AnswerAnalytics"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:            os.Getenv("REDIS_ADDR"),
			Password:        os.Getenv("REDIS_PASSWORD"),
			DB:              redisDB,
			EventTTLSeconds: getEnvAsInt("REDIS_EVENT_TTL_SECONDS", 3600),
		},
		PagerDuty: PagerDutyConfig{
			APIKey: os.Getenv("PAGER_DUTY_API_KEY"),
		},
		GitHub: GitHubConfig{
			Token:          os.Getenv("GITHUB_TOKEN"),
			AppID:          appID,
			InstallationID: installationID,
			PrivateKey:     strings.ReplaceAll(os.Getenv("GITHUB_APP_PRIVATE_KEY"), `\n`, "\n"),
			Owner:          os.Getenv("GITHUB_OWNER"),
			IssueRepo:      os.Getenv("GITHUB_ISSUE_REPO"),
			SupportLabel:   getEnv("GITHUB_SUPPORT_LABEL", "support"),
		},
		AutoAnswer: AutoAnswerConfig{
			TitleTimeoutSeconds: getEnvAsInt("AUTO_ANSWER_TITLE_TIMEOUT_SECONDS", 5),
			TitleConcurrency:    getEnvAsInt("AUTO_ANSWER_TITLE_CONCURRENCY", 4),
		},
		Worker: WorkerConfig{
			Concurrency: getEnvAsInt("WORKER_CONCURRENCY", 16),
		},
		Admin: AdminConfig{
			JWTSecret:       os.Getenv("ADMIN_JWT_SECRET"),
			TokenTTLMinutes: getEnvAsInt("ADMIN_TOKEN_TTL_MINUTES", 60),
		},
	}

	return cfg, nil
}

// Validate reports missing values that the router cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.Slack.BotToken == "" {
		errs = append(errs, errors.New("SLACK_BOT_TOKEN is required"))
	}
	if c.Slack.SigningSecret == "" {
		errs = append(errs, errors.New("SLACK_SIGNING_SECRET is required"))
	}
	if c.Slack.SupportChannel == "" {
		errs = append(errs, errors.New("SLACK_SUPPORT_CHANNEL is required"))
	}
	switch c.Store.Backend {
	case StoreBackendSheets:
		if c.Sheets.TeamsSpreadsheetID == "" || c.Sheets.ResponsesSpreadsheetID == "" {
			errs = append(errs, errors.New("TEAMS_SPREADSHEET_ID and RESPONSES_SPREADSHEET_ID are required for the sheets backend"))
		}
		if c.Sheets.CredentialsFile == "" && c.Sheets.CredentialsJSON == "" {
			errs = append(errs, errors.New("GOOGLE_CREDENTIALS_FILE or GOOGLE_CREDENTIALS_JSON is required for the sheets backend"))
		}
	case StoreBackendPostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required for the postgres backend"))
		}
	case StoreBackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend))
	}
	if c.GitHub.IssuesEnabled() && c.GitHub.Token == "" && !c.GitHub.AppAuthEnabled() {
		errs = append(errs, errors.New("GITHUB_TOKEN or GitHub App credentials are required when GITHUB_ISSUE_REPO is set"))
	}
	return errors.Join(errs...)
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Location resolves the timezone used for human readable ledger columns.
func (a AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(a.ReportTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// CacheTTL returns how long a directory snapshot stays fresh.
func (s StoreConfig) CacheTTL() time.Duration {
	if s.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(s.CacheTTLSeconds) * time.Second
}

// EventTTL returns how long processed event ids are remembered.
func (r RedisConfig) EventTTL() time.Duration {
	if r.EventTTLSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(r.EventTTLSeconds) * time.Second
}

// TitleTimeout bounds a single documentation title fetch.
func (a AutoAnswerConfig) TitleTimeout() time.Duration {
	if a.TitleTimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(a.TitleTimeoutSeconds) * time.Second
}

// IssuesEnabled reports whether a target repository is configured.
func (g GitHubConfig) IssuesEnabled() bool {
	return g.Owner != "" && g.IssueRepo != ""
}

// Authenticated reports whether any GitHub credential is configured.
func (g GitHubConfig) Authenticated() bool {
	return g.Token != "" || g.AppAuthEnabled()
}

// AppAuthEnabled reports whether GitHub App credentials are present.
func (g GitHubConfig) AppAuthEnabled() bool {
	return g.AppID != 0 && g.InstallationID != 0 && g.PrivateKey != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsInt64(key string, fallback int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	return strconv.ParseInt(val, 10, 64)
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
