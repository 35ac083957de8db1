package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load,
// e.g. GOALFORGE_DATABASE_URL for database.url.
const EnvPrefix = "GOALFORGE"

// Load reads configuration from environment variables and an optional
// config.yaml in the working directory. Environment variables take precedence
// over values from config files.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile behaves like Load but reads the given config file instead of
// searching for config.yaml. An empty path falls back to the search.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Keys without defaults are invisible to Unmarshal unless bound.
	for _, key := range []string{
		"database.url",
		"redis.password",
		"llm.model",
		"llm.gemini_api_key",
		"llm.openai_api_key",
		"llm.anthropic_api_key",
		"llm.base_url",
		"llm.roles.planner",
		"llm.roles.task_generator",
		"llm.roles.mentor",
		"llm.roles.evaluator",
		"email.api_key",
		"email.from_email",
		"push.webhook_url",
		"push.auth_token",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags and the cron expressions of the schedule.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	for name, expr := range cfg.Schedule.Expressions() {
		if expr == "" {
			continue
		}
		if _, err := cron.ParseStandard(expr); err != nil {
			return fmt.Errorf("invalid configuration: schedule.%s %q: %w", name, expr, err)
		}
	}

	return nil
}

// Expressions returns the configured cron expressions keyed by config name.
func (s ScheduleConfig) Expressions() map[string]string {
	return map[string]string{
		"reset_tokens":      s.ResetTokens,
		"mark_missed":       s.MarkMissed,
		"aggregate_streaks": s.AggregateStreaks,
		"daily_tasks":       s.DailyTasks,
		"weekly_mentor":     s.WeeklyMentor,
		"cleanup":           s.Cleanup,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "goalforge")
	v.SetDefault("redis.dial_timeout", 5*time.Second)

	v.SetDefault("queue.ai_jobs.concurrency", 5)
	v.SetDefault("queue.ai_jobs.attempts", 3)
	v.SetDefault("queue.ai_jobs.backoff_base", time.Second)
	v.SetDefault("queue.ai_jobs.backoff_max", 5*time.Minute)
	v.SetDefault("queue.notifications.concurrency", 10)
	v.SetDefault("queue.notifications.attempts", 3)
	v.SetDefault("queue.notifications.backoff_base", 2*time.Second)
	v.SetDefault("queue.notifications.backoff_max", 5*time.Minute)
	v.SetDefault("queue.maintenance.concurrency", 2)
	v.SetDefault("queue.maintenance.attempts", 2)
	v.SetDefault("queue.maintenance.backoff_base", 5*time.Second)
	v.SetDefault("queue.maintenance.backoff_max", 10*time.Minute)
	v.SetDefault("queue.lease", 5*time.Minute)
	v.SetDefault("queue.poll_interval", time.Second)
	v.SetDefault("queue.reap_interval", 30*time.Second)
	v.SetDefault("queue.completed_retention", 24*time.Hour)
	v.SetDefault("queue.priority_step", 30*time.Second)
	v.SetDefault("queue.max_stalls", 1)

	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.max_retries", 2)

	v.SetDefault("schedule.timezone", "UTC")
	v.SetDefault("schedule.reset_tokens", "0 0 * * *")
	v.SetDefault("schedule.mark_missed", "5 0 * * *")
	v.SetDefault("schedule.aggregate_streaks", "10 0 * * *")
	v.SetDefault("schedule.daily_tasks", "0 6 * * *")
	v.SetDefault("schedule.weekly_mentor", "0 18 * * 0")
	v.SetDefault("schedule.cleanup", "0 3 * * 0")
	v.SetDefault("schedule.cleanup_days_old", 30)

	v.SetDefault("email.enabled", false)
	v.SetDefault("email.base_url", "https://api.sendgrid.com")
	v.SetDefault("email.from_name", "Goalforge")
	v.SetDefault("email.timeout", 10*time.Second)

	v.SetDefault("push.enabled", false)
	v.SetDefault("push.timeout", 10*time.Second)
}
