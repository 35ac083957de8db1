package config

import "time"

// Config holds all worker configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Redis    RedisConfig    `mapstructure:"redis" validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm" validate:"required"`
	Schedule ScheduleConfig `mapstructure:"schedule" validate:"required"`
	Email    EmailConfig    `mapstructure:"email"`
	Push     PushConfig     `mapstructure:"push"`
}

// ServerConfig contains process-level settings: the health/metrics listener
// and the log level.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url" validate:"required,url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gt=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gt=0"`
}

// RedisConfig configures the shared Redis connection used by the job queue
// and the event channel.
type RedisConfig struct {
	Addr        string        `mapstructure:"addr" validate:"required,hostname_port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db" validate:"gte=0"`
	KeyPrefix   string        `mapstructure:"key_prefix" validate:"required"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" validate:"gt=0"`
}

// QueueConfig holds the per-queue worker settings plus the lease and
// polling knobs shared by all consumers.
type QueueConfig struct {
	AIJobs        QueueSettings `mapstructure:"ai_jobs" validate:"required"`
	Notifications QueueSettings `mapstructure:"notifications" validate:"required"`
	Maintenance   QueueSettings `mapstructure:"maintenance" validate:"required"`

	// Lease is how long a reserved job stays invisible to other workers.
	// It must exceed the slowest handler, since jobs are never cancelled.
	Lease              time.Duration `mapstructure:"lease" validate:"gt=0"`
	PollInterval       time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	ReapInterval       time.Duration `mapstructure:"reap_interval" validate:"gt=0"`
	CompletedRetention time.Duration `mapstructure:"completed_retention" validate:"gt=0"`
	PriorityStep       time.Duration `mapstructure:"priority_step" validate:"gte=0"`
	// MaxStalls is how many lease expiries a job survives before it is
	// dead-lettered.
	MaxStalls int `mapstructure:"max_stalls" validate:"gt=0"`
}

// QueueSettings configures one named queue.
type QueueSettings struct {
	Concurrency int           `mapstructure:"concurrency" validate:"gt=0"`
	Attempts    int           `mapstructure:"attempts" validate:"gt=0"`
	BackoffBase time.Duration `mapstructure:"backoff_base" validate:"gte=0"`
	BackoffMax  time.Duration `mapstructure:"backoff_max" validate:"gte=0"`
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	Provider        string        `mapstructure:"provider" validate:"required,oneof=gemini openai anthropic"`
	Model           string        `mapstructure:"model"`
	GeminiAPIKey    string        `mapstructure:"gemini_api_key" validate:"required_if=Provider gemini"`
	OpenAIAPIKey    string        `mapstructure:"openai_api_key" validate:"required_if=Provider openai"`
	AnthropicAPIKey string        `mapstructure:"anthropic_api_key" validate:"required_if=Provider anthropic"`
	BaseURL         string        `mapstructure:"base_url" validate:"omitempty,url"`
	Timeout         time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxRetries      int           `mapstructure:"max_retries" validate:"gte=0,lte=10"`

	// Roles overrides Provider for individual generation roles.
	Roles LLMRoles `mapstructure:"roles"`
}

// LLMRoles names a provider per generation role. Empty entries use
// LLMConfig.Provider. Model applies only to roles on that provider.
type LLMRoles struct {
	Planner       string `mapstructure:"planner" validate:"omitempty,oneof=gemini openai anthropic"`
	TaskGenerator string `mapstructure:"task_generator" validate:"omitempty,oneof=gemini openai anthropic"`
	Mentor        string `mapstructure:"mentor" validate:"omitempty,oneof=gemini openai anthropic"`
	Evaluator     string `mapstructure:"evaluator" validate:"omitempty,oneof=gemini openai anthropic"`
}

// ScheduleConfig holds the cron expressions (standard five-field syntax)
// for every maintenance trigger. An empty expression disables the trigger.
type ScheduleConfig struct {
	Timezone         string `mapstructure:"timezone" validate:"required,timezone"`
	ResetTokens      string `mapstructure:"reset_tokens"`
	MarkMissed       string `mapstructure:"mark_missed"`
	AggregateStreaks string `mapstructure:"aggregate_streaks"`
	DailyTasks       string `mapstructure:"daily_tasks"`
	WeeklyMentor     string `mapstructure:"weekly_mentor"`
	Cleanup          string `mapstructure:"cleanup"`
	CleanupDaysOld   int    `mapstructure:"cleanup_days_old" validate:"gt=0"`
}

// EmailConfig configures the SendGrid email channel.
type EmailConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	APIKey    string        `mapstructure:"api_key" validate:"required_if=Enabled true"`
	BaseURL   string        `mapstructure:"base_url" validate:"omitempty,url"`
	FromEmail string        `mapstructure:"from_email" validate:"required_if=Enabled true"`
	FromName  string        `mapstructure:"from_name"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// PushConfig configures the push channel, delivered through an HTTP webhook
// owned by the push gateway.
type PushConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	WebhookURL string        `mapstructure:"webhook_url" validate:"required_if=Enabled true"`
	AuthToken  string        `mapstructure:"auth_token"`
	Timeout    time.Duration `mapstructure:"timeout"`
}
