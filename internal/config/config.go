package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Network   NetworkConfig   `toml:"network"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	World     WorldConfig     `toml:"world"`
	AI        AIConfig        `toml:"ai"`
	Player    PlayerConfig    `toml:"player"`
	Spawn     SpawnConfig     `toml:"spawn"`
	Logging   LoggingConfig   `toml:"logging"`
	Database  DatabaseConfig  `toml:"database"`
	Scripting ScriptingConfig `toml:"scripting"`
}

type ServerConfig struct {
	Name      string `toml:"name"`
	StartTime int64  // set at boot, not from config
}

type NetworkConfig struct {
	Transport         string        `toml:"transport"` // "udp" or "websocket"
	BindAddress       string        `toml:"bind_address"`
	WSPath            string        `toml:"ws_path"`
	InQueueSize       int           `toml:"in_queue_size"`
	MaxPacketsPerTick int           `toml:"max_packets_per_tick"`
	IdleTimeout       time.Duration `toml:"idle_timeout"`
	CompressThreshold int           `toml:"compress_threshold"` // payload bytes; 0 disables
	ProtocolVersion   uint8         `toml:"protocol_version"`   // version used before a peer speaks
}

type RateLimitConfig struct {
	Window           time.Duration `toml:"window"`
	PacketsPerWindow int           `toml:"packets_per_window"`
	AbuseThreshold   int           `toml:"abuse_threshold"`
}

type WorldConfig struct {
	MapManifest string `toml:"map_manifest"`
	Creatures   string `toml:"creatures"`
	Spawns      string `toml:"spawns"`
	StartX      int32  `toml:"start_x"`
	StartY      int32  `toml:"start_y"`
	StartFloor  int8   `toml:"start_floor"`
	CellSize    int32  `toml:"cell_size"`
	ViewRangeX  int32  `toml:"view_range_x"`
	ViewRangeY  int32  `toml:"view_range_y"`
	TilePixels  int32  `toml:"tile_pixels"`
}

type AIConfig struct {
	AlertDelayTicks     int `toml:"alert_delay_ticks"`
	PathTTLTicks        int `toml:"path_ttl_ticks"`
	PathBudget          int `toml:"path_budget"`
	WanderRadius        int `toml:"wander_radius"`
	WanderCooldownTicks int `toml:"wander_cooldown_ticks"`
	DefaultChaseRange   int `toml:"default_chase_range"`
}

type PlayerConfig struct {
	BaseSpeed           int     `toml:"base_speed"`
	BaseHP              int32   `toml:"base_hp"`
	BaseMP              int32   `toml:"base_mp"`
	HPPerLevel          int32   `toml:"hp_per_level"`
	MPPerLevel          int32   `toml:"mp_per_level"`
	AttackCooldownTicks int     `toml:"attack_cooldown_ticks"`
	RegenIntervalTicks  int     `toml:"regen_interval_ticks"`
	RegenHP             int32   `toml:"regen_hp"`
	RegenMP             int32   `toml:"regen_mp"`
	WeaponAttack        int32   `toml:"weapon_attack"`
	WeaponRange         int32   `toml:"weapon_range"`
	WeaponSkill         string  `toml:"weapon_skill"` // fist, sword, club, axe, distance
	ShieldDefense       int32   `toml:"shield_defense"`
	Armor               int32   `toml:"armor"`
	MeleeMultiplier     float64 `toml:"melee_multiplier"`
	DistanceMultiplier  float64 `toml:"distance_multiplier"`
	ShieldingMultiplier float64 `toml:"shielding_multiplier"`
}

type SpawnConfig struct {
	RetryTicks        int `toml:"retry_ticks"`
	PlacementAttempts int `toml:"placement_attempts"`
}

type LoggingConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"` // "json" or "console"
	File       string `toml:"file"`   // optional rotating log file
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

type DatabaseConfig struct {
	DSN                string        `toml:"dsn"` // empty disables the audit log
	MaxConns           int32         `toml:"max_conns"`
	ConnMaxLifetime    time.Duration `toml:"conn_max_lifetime"`
	FlushIntervalTicks int           `toml:"flush_interval_ticks"`
}

type ScriptingConfig struct {
	Dir string `toml:"dir"` // empty disables Lua formula overrides
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML on top of the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.Server.StartTime = time.Now().Unix()
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Network.Transport {
	case "udp", "websocket":
	default:
		return fmt.Errorf("network.transport must be udp or websocket, got %q", c.Network.Transport)
	}
	if c.World.CellSize <= 0 {
		return fmt.Errorf("world.cell_size must be positive")
	}
	if c.RateLimit.PacketsPerWindow <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit window and packets_per_window must be positive")
	}
	return nil
}

func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Name: "TileRealm",
		},
		Network: NetworkConfig{
			Transport:         "udp",
			BindAddress:       "0.0.0.0:7171",
			WSPath:            "/ws",
			InQueueSize:       4096,
			MaxPacketsPerTick: 32,
			IdleTimeout:       30 * time.Second,
			CompressThreshold: 256,
			ProtocolVersion:   2,
		},
		RateLimit: RateLimitConfig{
			Window:           time.Second,
			PacketsPerWindow: 60,
			AbuseThreshold:   5,
		},
		World: WorldConfig{
			MapManifest: "data/map/world.yaml",
			Creatures:   "data/yaml/creatures.yaml",
			Spawns:      "data/yaml/spawns.yaml",
			StartX:      50,
			StartY:      50,
			StartFloor:  0,
			CellSize:    32,
			ViewRangeX:  9,
			ViewRangeY:  7,
			TilePixels:  32,
		},
		AI: AIConfig{
			AlertDelayTicks:     10,
			PathTTLTicks:        10,
			PathBudget:          2000,
			WanderRadius:        3,
			WanderCooldownTicks: 40,
			DefaultChaseRange:   12,
		},
		Player: PlayerConfig{
			BaseSpeed:           220,
			BaseHP:              150,
			BaseMP:              50,
			HPPerLevel:          5,
			MPPerLevel:          5,
			AttackCooldownTicks: 40,
			RegenIntervalTicks:  60,
			RegenHP:             2,
			RegenMP:             2,
			WeaponAttack:        14,
			WeaponRange:         1,
			WeaponSkill:         "sword",
			ShieldDefense:       12,
			Armor:               4,
			MeleeMultiplier:     1.1,
			DistanceMultiplier:  1.4,
			ShieldingMultiplier: 1.1,
		},
		Spawn: SpawnConfig{
			RetryTicks:        20,
			PlacementAttempts: 24,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
		Database: DatabaseConfig{
			MaxConns:           4,
			ConnMaxLifetime:    30 * time.Minute,
			FlushIntervalTicks: 100,
		},
	}
}
