package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string `json:"host" env:"SERVER_HOST"`
	Port int    `json:"port" env:"SERVER_PORT"`
}

// DatabaseConfig controls persistence.
type DatabaseConfig struct {
	Driver          string `json:"driver" env:"DATABASE_DRIVER"`
	DSN             string `json:"dsn" env:"DATABASE_DSN"`
	Host            string `json:"host" env:"DATABASE_HOST"`
	Port            int    `json:"port" env:"DATABASE_PORT"`
	User            string `json:"user" env:"DATABASE_USER"`
	Password        string `json:"password" env:"DATABASE_PASSWORD"`
	Name            string `json:"name" env:"DATABASE_NAME"`
	SSLMode         string `json:"sslmode" env:"DATABASE_SSLMODE"`
	MaxOpenConns    int    `json:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `json:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime int    `json:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME"`
	MigrateOnStart  bool   `json:"migrate_on_start" yaml:"migrate_on_start" env:"DATABASE_MIGRATE_ON_START"`
}

// LoggingConfig controls application logging.
type LoggingConfig struct {
	Level      string `json:"level" env:"LOG_LEVEL"`
	Format     string `json:"format" env:"LOG_FORMAT"`
	Output     string `json:"output" env:"LOG_OUTPUT"`
	FilePrefix string `json:"file_prefix" env:"LOG_FILE_PREFIX"`
}

// SecurityConfig controls encryption-specific parameters.
type SecurityConfig struct {
	SecretEncryptionKey string `json:"secret_encryption_key" env:"SECRET_ENCRYPTION_KEY"`
}

// AuthConfig controls HTTP API authentication.
type AuthConfig struct {
	Tokens              []string   `json:"tokens"`
	JWTSecret           string     `json:"jwt_secret" env:"AUTH_JWT_SECRET"`
	Users               []UserSpec `json:"users"`
	SupabaseJWTSecret   string     `json:"supabase_jwt_secret" env:"SUPABASE_JWT_SECRET"`
	SupabaseJWTAud      string     `json:"supabase_jwt_aud" env:"SUPABASE_JWT_AUD"`
	SupabaseAdminRoles  []string   `json:"supabase_admin_roles" env:"SUPABASE_ADMIN_ROLES"`
	SupabaseTenantClaim string     `json:"supabase_tenant_claim" env:"SUPABASE_TENANT_CLAIM"`
	SupabaseRoleClaim   string     `json:"supabase_role_claim" env:"SUPABASE_ROLE_CLAIM"`
	SupabaseGoTrueURL   string     `json:"supabase_gotrue_url" env:"SUPABASE_GOTRUE_URL"`
	WebhookBotSecret    string     `json:"webhook_bot_secret" env:"AUTH_WEBHOOK_BOT_SECRET"`
}

// SupabaseConfig holds self-hosted Supabase connection settings.
type SupabaseConfig struct {
	ProjectURL     string `json:"project_url" env:"SUPABASE_URL"`
	AnonKey        string `json:"anon_key" env:"SUPABASE_ANON_KEY"`
	ServiceRoleKey string `json:"service_role_key" env:"SUPABASE_SERVICE_ROLE_KEY"`
	StorageURL     string `json:"storage_url" env:"SUPABASE_STORAGE_URL"`
}

// RuntimeConfig controls scheduler cadences and process-level toggles that
// don't belong to a single domain (§6 Scheduler endpoints/triggers).
type RuntimeConfig struct {
	AutoDepsFromAPIs      bool `json:"auto_deps_from_apis"`
	SweepInterval         int  `json:"sweep_interval_seconds" env:"RUNTIME_SWEEP_INTERVAL_SECONDS"`
	BusinessRevenueHours  int  `json:"business_revenue_interval_hours" env:"RUNTIME_BUSINESS_REVENUE_HOURS"`
	LotteryCheckInterval  int  `json:"lottery_check_interval_seconds" env:"RUNTIME_LOTTERY_CHECK_SECONDS"`
	NotificationRetention int  `json:"notification_retention_days" env:"RUNTIME_NOTIFICATION_RETENTION_DAYS"`
}

// StreamingConfig identifies the single live channel this deployment tracks
// for the economy-mode gate (§4.13).
type StreamingConfig struct {
	ChannelID string `json:"channel_id" env:"STREAMING_CHANNEL_ID"`
}

// CacheConfig controls the optional Redis-backed hot-row cache fronting the
// slots jackpot pool (§5 "Shared resources"). A blank Addr leaves the cache
// disabled; reads fall straight through to Postgres.
type CacheConfig struct {
	RedisAddr     string `json:"redis_addr" env:"CACHE_REDIS_ADDR"`
	RedisDB       int    `json:"redis_db" env:"CACHE_REDIS_DB"`
	JackpotTTLSecs int   `json:"jackpot_ttl_seconds" env:"CACHE_JACKPOT_TTL_SECONDS"`
}

// IngressConfig controls the webhook ingress edge: per-user rate limiting
// independent of domain cooldowns/jail, layered ahead of Dispatch.
type IngressConfig struct {
	RateLimitPerSecond float64 `json:"rate_limit_per_second" env:"INGRESS_RATE_LIMIT_PER_SECOND"`
	RateLimitBurst     int     `json:"rate_limit_burst" env:"INGRESS_RATE_LIMIT_BURST"`
}

// EconomyConfig carries every tunable named by the economy core's formulas
// and policies (§4.3-§4.11): robbery/bust rates, token/bond gates, mission
// caps, business revenue variance, and gambling limits.
type EconomyConfig struct {
	// Play / rob / bail (§4.8)
	BustChance       float64 `json:"bust_chance" env:"ECONOMY_BUST_CHANCE"`
	JailDurationMins int     `json:"jail_duration_minutes" env:"ECONOMY_JAIL_DURATION_MINUTES"`
	MinBail          int64   `json:"min_bail" env:"ECONOMY_MIN_BAIL"`
	StealPctMin      float64 `json:"steal_pct_min" env:"ECONOMY_STEAL_PCT_MIN"`
	StealPctMax      float64 `json:"steal_pct_max" env:"ECONOMY_STEAL_PCT_MAX"`
	RobCooldownSecs  int     `json:"rob_cooldown_seconds" env:"ECONOMY_ROB_COOLDOWN_SECONDS"`
	ItemStealChance  float64 `json:"item_steal_chance" env:"ECONOMY_ITEM_STEAL_CHANCE"`
	CrateDropChance  float64 `json:"crate_drop_chance" env:"ECONOMY_CRATE_DROP_CHANCE"`
	LootMultiplier   float64 `json:"loot_multiplier" env:"ECONOMY_LOOT_MULTIPLIER"`
	WeaponDecayMin   int     `json:"weapon_decay_min" env:"ECONOMY_WEAPON_DECAY_MIN"`
	WeaponDecayMax   int     `json:"weapon_decay_max" env:"ECONOMY_WEAPON_DECAY_MAX"`
	ArmorDecayMin    int     `json:"armor_decay_min" env:"ECONOMY_ARMOR_DECAY_MIN"`
	ArmorDecayMax    int     `json:"armor_decay_max" env:"ECONOMY_ARMOR_DECAY_MAX"`
	DefenderInsurancePct float64 `json:"defender_insurance_pct" env:"ECONOMY_DEFENDER_INSURANCE_PCT"`
	RobHouseCutPct       float64 `json:"rob_house_cut_pct" env:"ECONOMY_ROB_HOUSE_CUT_PCT"`

	// Inventory (§4.5)
	MaxInventorySlots int `json:"max_inventory_slots" env:"ECONOMY_MAX_INVENTORY_SLOTS"`
	MaxEscrowSlots    int `json:"max_escrow_slots" env:"ECONOMY_MAX_ESCROW_SLOTS"`
	ItemEscrowHours   int `json:"item_escrow_hours" env:"ECONOMY_ITEM_ESCROW_HOURS"`
	MaxBusinesses     int `json:"max_businesses" env:"ECONOMY_MAX_BUSINESSES"`

	// Tokens/bonds (§4.7)
	TokenSoftCap        int64   `json:"token_soft_cap" env:"ECONOMY_TOKEN_SOFT_CAP"`
	TokenHardCap        int64   `json:"token_hard_cap" env:"ECONOMY_TOKEN_HARD_CAP"`
	TokenMaxPerDay       int    `json:"token_max_per_day" env:"ECONOMY_TOKEN_MAX_PER_DAY"`
	TokenBaseCost        int64  `json:"token_base_cost" env:"ECONOMY_TOKEN_BASE_COST"`
	TokenCostScaling     float64 `json:"token_cost_scaling" env:"ECONOMY_TOKEN_COST_SCALING"`
	TokenDecayAtHardPct  float64 `json:"token_decay_at_hard_pct" env:"ECONOMY_TOKEN_DECAY_AT_HARD_PCT"`
	TokenDecayAboveSoftPct float64 `json:"token_decay_above_soft_pct" env:"ECONOMY_TOKEN_DECAY_ABOVE_SOFT_PCT"`
	ChannelPointsRate    int64  `json:"channel_points_rate" env:"ECONOMY_CHANNEL_POINTS_RATE"`
	BondMinLevel         int    `json:"bond_min_level" env:"ECONOMY_BOND_MIN_LEVEL"`
	BondCooldownDays     int    `json:"bond_cooldown_days" env:"ECONOMY_BOND_COOLDOWN_DAYS"`
	BondConversionCost   int64  `json:"bond_conversion_cost" env:"ECONOMY_BOND_CONVERSION_COST"`
	BondsReceivedPerConversion int64 `json:"bonds_received_per_conversion" env:"ECONOMY_BONDS_RECEIVED"`

	// Missions (§4.9)
	MissionDailyWealthCap  int64 `json:"mission_daily_wealth_cap" env:"ECONOMY_MISSION_DAILY_WEALTH_CAP"`
	MissionWeeklyWealthCap int64 `json:"mission_weekly_wealth_cap" env:"ECONOMY_MISSION_WEEKLY_WEALTH_CAP"`
	MissionDailyBonusWealth  int64 `json:"mission_daily_bonus_wealth" env:"ECONOMY_MISSION_DAILY_BONUS_WEALTH"`
	MissionDailyBonusXP      int64 `json:"mission_daily_bonus_xp" env:"ECONOMY_MISSION_DAILY_BONUS_XP"`
	MissionWeeklyBonusWealth int64 `json:"mission_weekly_bonus_wealth" env:"ECONOMY_MISSION_WEEKLY_BONUS_WEALTH"`
	MissionWeeklyBonusXP     int64 `json:"mission_weekly_bonus_xp" env:"ECONOMY_MISSION_WEEKLY_BONUS_XP"`
	MissionBonusCrateTier    string `json:"mission_bonus_crate_tier" env:"ECONOMY_MISSION_BONUS_CRATE_TIER"`

	// Business (§4.10)
	BusinessTicksPerDay   int     `json:"business_ticks_per_day" env:"ECONOMY_BUSINESS_TICKS_PER_DAY"`
	BusinessVariancePct   float64 `json:"business_variance_pct" env:"ECONOMY_BUSINESS_VARIANCE_PCT"`

	// Gambling (§4.11)
	GamblingMinBet          int64   `json:"gambling_min_bet" env:"ECONOMY_GAMBLING_MIN_BET"`
	GamblingMaxBetBase      int64   `json:"gambling_max_bet_base" env:"ECONOMY_GAMBLING_MAX_BET_BASE"`
	JackpotContributionRate float64 `json:"jackpot_contribution_rate" env:"ECONOMY_JACKPOT_CONTRIBUTION_RATE"`
	JackpotBasePool         int64   `json:"jackpot_base_pool" env:"ECONOMY_JACKPOT_BASE_POOL"`
	RandomJackpotChanceBase float64 `json:"random_jackpot_chance_base" env:"ECONOMY_RANDOM_JACKPOT_CHANCE_BASE"`
	CoinFlipExpiryMinutes   int     `json:"coin_flip_expiry_minutes" env:"ECONOMY_COIN_FLIP_EXPIRY_MINUTES"`
	LotteryTicketCost       int64   `json:"lottery_ticket_cost" env:"ECONOMY_LOTTERY_TICKET_COST"`
	LotteryHouseCut         float64 `json:"lottery_house_cut" env:"ECONOMY_LOTTERY_HOUSE_CUT"`
	LotteryNumberCount      int     `json:"lottery_number_count" env:"ECONOMY_LOTTERY_NUMBER_COUNT"`
	LotteryNumberMax        int     `json:"lottery_number_max" env:"ECONOMY_LOTTERY_NUMBER_MAX"`
	LotteryMaxTicketsPerDraw int    `json:"lottery_max_tickets_per_draw" env:"ECONOMY_LOTTERY_MAX_TICKETS_PER_DRAW"`
}

// TracingConfig configures OTLP/Tracing exporters.
type TracingConfig struct {
	Endpoint           string            `json:"endpoint" env:"TRACING_OTLP_ENDPOINT"`
	Insecure           bool              `json:"insecure" env:"TRACING_OTLP_INSECURE"`
	ServiceName        string            `json:"service_name" env:"TRACING_SERVICE_NAME"`
	ResourceAttributes map[string]string `json:"resource_attributes" mapstructure:"resource_attributes"`
	AttributesEnv      string            `json:"-" yaml:"-" env:"TRACING_OTLP_ATTRIBUTES"`
}

type UserSpec struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// Config is the top-level configuration structure.
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Logging  LoggingConfig  `json:"logging"`
	Runtime  RuntimeConfig  `json:"runtime"`
	Streaming StreamingConfig `json:"streaming"`
	Economy  EconomyConfig  `json:"economy"`
	Security SecurityConfig `json:"security"`
	Auth     AuthConfig     `json:"auth"`
	Supabase SupabaseConfig `json:"supabase"`
	Tracing  TracingConfig  `json:"tracing"`
	Cache    CacheConfig    `json:"cache"`
	Ingress  IngressConfig  `json:"ingress"`
}

// New returns a configuration populated with defaults.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Driver:          "postgres",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 300,
			MigrateOnStart:  true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stdout",
			FilePrefix: "service-layer",
		},
		Runtime: RuntimeConfig{
			AutoDepsFromAPIs:      true,
			SweepInterval:         60,
			BusinessRevenueHours:  3,
			LotteryCheckInterval:  60,
			NotificationRetention: 30,
		},
		Economy: EconomyConfig{
			BustChance:       0.08,
			JailDurationMins: 60,
			MinBail:          50,
			StealPctMin:      0.10,
			StealPctMax:      0.25,
			RobCooldownSecs:  900,
			ItemStealChance:  0.08,
			CrateDropChance:  0.02,
			LootMultiplier:   2.0,
			WeaponDecayMin:   2,
			WeaponDecayMax:   3,
			ArmorDecayMin:    2,
			ArmorDecayMax:    3,
			DefenderInsurancePct: 0.20,
			RobHouseCutPct:       0.0,

			MaxInventorySlots: 10,
			MaxEscrowSlots:    3,
			ItemEscrowHours:   24,
			MaxBusinesses:     3,

			TokenSoftCap:           500,
			TokenHardCap:           1000,
			TokenMaxPerDay:         20,
			TokenBaseCost:          100,
			TokenCostScaling:       1.15,
			TokenDecayAtHardPct:    0.10,
			TokenDecayAboveSoftPct: 0.05,
			ChannelPointsRate:      100,
			BondMinLevel:           20,
			BondCooldownDays:       7,
			BondConversionCost:     50000,
			BondsReceivedPerConversion: 10,

			MissionDailyWealthCap:  5000,
			MissionWeeklyWealthCap: 25000,
			MissionDailyBonusWealth:  500,
			MissionDailyBonusXP:      100,
			MissionWeeklyBonusWealth: 2500,
			MissionWeeklyBonusXP:     500,
			MissionBonusCrateTier:    "uncommon",

			BusinessTicksPerDay: 8,
			BusinessVariancePct: 0.15,

			GamblingMinBet:          10,
			GamblingMaxBetBase:      1000,
			JackpotContributionRate: 0.01,
			JackpotBasePool:         1000,
			RandomJackpotChanceBase: 0.001,
			CoinFlipExpiryMinutes:   10,
			LotteryTicketCost:       100,
			LotteryHouseCut:         0.20,
			LotteryNumberCount:      5,
			LotteryNumberMax:        49,
			LotteryMaxTicketsPerDraw: 10,
		},
		Streaming: StreamingConfig{
			ChannelID: "default",
		},
		Security: SecurityConfig{},
		Auth:     AuthConfig{},
		Supabase: SupabaseConfig{},
		Tracing:  TracingConfig{},
		Cache: CacheConfig{
			JackpotTTLSecs: 5,
		},
		Ingress: IngressConfig{
			RateLimitPerSecond: 5,
			RateLimitBurst:     10,
		},
	}
}

// ConnectionString builds a PostgreSQL connection string using host parameters.
func (c DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Load loads configuration from file (if present) and environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	} else {
		_ = loadFromFile("configs/config.yaml", cfg)
	}

	if err := envdecode.Decode(cfg); err != nil {
		// envdecode returns an error when no tagged fields are present in the
		// environment; treat that case as "no overrides" so local runs work
		// without exporting vars.
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	applyDatabaseURLOverride(cfg)
	cfg.normalize()

	return cfg, nil
}

// LoadFile reads configuration from a YAML file.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}
	applyDatabaseURLOverride(cfg)
	cfg.normalize()
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	expanded, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}
	return nil
}

// LoadConfig is a helper used by tests to load JSON config snippets.
func LoadConfig(path string) (*Config, error) {
	cfg := New()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	applyDatabaseURLOverride(cfg)
	cfg.normalize()
	return cfg, nil
}

// applyDatabaseURLOverride aligns config loading with cmd/appserver: DATABASE_URL (Supabase DSN)
// overrides any file-based DSN to reduce setup friction.
func applyDatabaseURLOverride(cfg *Config) {
	if cfg == nil {
		return
	}
	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		cfg.Database.DSN = dsn
	}
}

func (t *TracingConfig) normalize() {
	if t == nil {
		return
	}
	t.MergeAttributes(t.AttributesEnv)
}

// MergeAttributes merges comma-separated key=value pairs into ResourceAttributes.
func (t *TracingConfig) MergeAttributes(raw string) {
	if t == nil {
		return
	}
	pairs := parseAttributePairs(raw)
	if len(pairs) == 0 {
		return
	}
	if t.ResourceAttributes == nil {
		t.ResourceAttributes = make(map[string]string, len(pairs))
	}
	for k, v := range pairs {
		if k == "" {
			continue
		}
		t.ResourceAttributes[k] = v
	}
}

func parseAttributePairs(raw string) map[string]string {
	result := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		key := strings.TrimSpace(kv[0])
		if key == "" {
			continue
		}
		val := ""
		if len(kv) > 1 {
			val = strings.TrimSpace(kv[1])
		}
		result[key] = val
	}
	return result
}

func (c *Config) normalize() {
	if c == nil {
		return
	}
	c.Tracing.normalize()
}
