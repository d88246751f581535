package config

import (
	"strings"
	"time"

	"github.com/castlemilk/pointsledger/internal/guard"
	"github.com/castlemilk/pointsledger/internal/model"
	"github.com/castlemilk/pointsledger/internal/rewards"
)

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Auth      AuthConfig      `yaml:"auth"`
	Rewards   RewardsConfig   `yaml:"rewards"`
	Recurring RecurringConfig `yaml:"recurring"`
	Export    ExportConfig    `yaml:"export"`
	Notify    NotifyConfig    `yaml:"notify"`
	Log       LogConfig       `yaml:"log"`
	CORS      CORSConfig      `yaml:"cors"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"             env:"PORT"                    env-default:"8111"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"10s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"120s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// StoreConfig selects the ledger store.
type StoreConfig struct {
	UseMemory bool   `yaml:"use_memory" env:"USE_MEMORY_STORE"     env-default:"false"`
	ProjectID string `yaml:"project_id" env:"GOOGLE_CLOUD_PROJECT"`
}

// AuthConfig holds identity settings.
type AuthConfig struct {
	SkipAuth        bool   `yaml:"skip_auth"        env:"SKIP_AUTH"                      env-default:"false"`
	CredentialsFile string `yaml:"credentials_file" env:"FIREBASE_SERVICE_ACCOUNT_KEY"`
}

// RewardsConfig holds point awards, unlock thresholds and point costs.
type RewardsConfig struct {
	BaseAward         int64 `yaml:"base_award"          env:"REWARDS_BASE_AWARD"          env-default:"500"`
	CategoryAward     int64 `yaml:"category_award"      env:"REWARDS_CATEGORY_AWARD"      env-default:"5"`
	WithinBudgetAward int64 `yaml:"within_budget_award" env:"REWARDS_WITHIN_BUDGET_AWARD" env-default:"15"`

	PremiumCategories    int64 `yaml:"premium_categories"    env:"REWARDS_TIER_PREMIUM_CATEGORIES"    env-default:"100"`
	ThemesSkins          int64 `yaml:"themes_skins"          env:"REWARDS_TIER_THEMES_SKINS"          env-default:"150"`
	BudgetAnalysis       int64 `yaml:"budget_analysis"       env:"REWARDS_TIER_BUDGET_ANALYSIS"       env-default:"200"`
	ProfileCustomization int64 `yaml:"profile_customization" env:"REWARDS_TIER_PROFILE_CUSTOMIZATION" env-default:"250"`
	PersonalizedAdvice   int64 `yaml:"personalized_advice"   env:"REWARDS_TIER_PERSONALIZED_ADVICE"   env-default:"300"`
	CustomNotifications  int64 `yaml:"custom_notifications"  env:"REWARDS_TIER_CUSTOM_NOTIFICATIONS"  env-default:"350"`
	GoalTracking         int64 `yaml:"goal_tracking"         env:"REWARDS_TIER_GOAL_TRACKING"         env-default:"400"`

	DarkModeCost           int64 `yaml:"dark_mode_cost"            env:"REWARDS_DARK_MODE_COST"            env-default:"1000"`
	BudgetIncreaseCost     int64 `yaml:"budget_increase_cost"      env:"REWARDS_BUDGET_INCREASE_COST"      env-default:"50"`
	ItemBudgetIncreaseCost int64 `yaml:"item_budget_increase_cost" env:"REWARDS_ITEM_BUDGET_INCREASE_COST" env-default:"20"`
}

// RecurringConfig controls firing of recurring definitions.
type RecurringConfig struct {
	WorkerEnabled   bool          `yaml:"worker_enabled"   env:"RECURRING_WORKER_ENABLED" env-default:"false"`
	Interval        time.Duration `yaml:"interval"         env:"RECURRING_INTERVAL"       env-default:"1h"`
	SchedulerSecret string        `yaml:"scheduler_secret" env:"SCHEDULER_SECRET"`
	DefaultPeriod   string        `yaml:"default_period"   env:"DEFAULT_PERIOD"           env-default:"monthly"`
}

// ExportConfig holds the ledger export destination.
type ExportConfig struct {
	Bucket string `yaml:"bucket" env:"EXPORT_BUCKET"`
}

// NotifyConfig toggles unlock push notifications.
type NotifyConfig struct {
	Enabled bool   `yaml:"enabled" env:"NOTIFY_ENABLED" env-default:"false"`
	Locale  string `yaml:"locale"  env:"NOTIFY_LOCALE"  env-default:"en"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"http://localhost:1234,http://127.0.0.1:1234"`
}

// Origins splits the comma-separated origin list.
func (c CORSConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Engine returns the rewards engine configuration.
func (r RewardsConfig) Engine() rewards.Config {
	return rewards.Config{
		BaseAward:         r.BaseAward,
		CategoryAward:     r.CategoryAward,
		WithinBudgetAward: r.WithinBudgetAward,
		Tiers: []rewards.Tier{
			{Feature: model.FeaturePremiumCategories, Threshold: r.PremiumCategories},
			{Feature: model.FeatureThemesSkins, Threshold: r.ThemesSkins},
			{Feature: model.FeatureBudgetAnalysis, Threshold: r.BudgetAnalysis},
			{Feature: model.FeatureProfileCustomization, Threshold: r.ProfileCustomization},
			{Feature: model.FeaturePersonalizedAdvice, Threshold: r.PersonalizedAdvice},
			{Feature: model.FeatureCustomNotifications, Threshold: r.CustomNotifications},
			{Feature: model.FeatureGoalTracking, Threshold: r.GoalTracking},
		},
	}
}

// GuardCosts returns the points charged by the budget guard.
func (r RewardsConfig) GuardCosts() guard.Costs {
	return guard.Costs{
		BudgetIncrease:     r.BudgetIncreaseCost,
		ItemBudgetIncrease: r.ItemBudgetIncreaseCost,
	}
}

// Period returns the parsed default period.
func (r RecurringConfig) Period() model.Period {
	p, err := model.ParsePeriod(r.DefaultPeriod)
	if err != nil {
		return model.PeriodMonthly
	}
	return p
}
