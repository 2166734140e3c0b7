// Package config loads the server's JSON configuration document (spec.md
// §6). The format is spec-mandated JSON, not a free choice, so this loader
// uses encoding/json directly rather than a pack config library — see
// DESIGN.md.
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// Config mirrors spec.md §6's recognised option tree. Every field has a
// documented default, applied by Default() before a loaded document is
// merged on top of it.
type Config struct {
	Server      ServerConfig      `json:"server"`
	World       WorldConfig       `json:"world"`
	Performance PerformanceConfig `json:"performance"`
	Logging     LoggingConfig     `json:"logging"`
	Security    SecurityConfig    `json:"security"`
}

type ServerConfig struct {
	Name                 string `json:"name"`
	MOTD                 string `json:"motd"`
	Host                 string `json:"host"`
	Port                 int    `json:"port"`
	MaxPlayers           int    `json:"max_players"`
	ViewDistance         int    `json:"view_distance"`
	SimulationDistance   int    `json:"simulation_distance"`
	Difficulty           string `json:"difficulty"`
	Gamemode             string `json:"gamemode"`
	Hardcore             bool   `json:"hardcore"`
	PVP                  bool   `json:"pvp"`
	OnlineMode           bool   `json:"online_mode"`
	SpawnProtection       int    `json:"spawn_protection"`
}

type WorldConfig struct {
	Name      string `json:"name"`
	Seed      int64  `json:"seed"`
	Generator string `json:"generator"`
	SpawnX    int32  `json:"spawn_x"`
	SpawnY    int32  `json:"spawn_y"`
	SpawnZ    int32  `json:"spawn_z"`
}

type PerformanceConfig struct {
	IOThreads             int `json:"io_threads"`
	WorkerThreads         int `json:"worker_threads"` // 0 = auto (NumCPU)
	MaxChunksLoaded       int `json:"max_chunks_loaded"`
	ChunkUnloadTimeoutMS  int `json:"chunk_unload_timeout"`
	AutoSaveIntervalMS    int `json:"auto_save_interval"`
	CompressionThreshold  int `json:"compression_threshold"` // -1 disabled, never engaged
	NetworkBufferSize     int `json:"network_buffer_size"`
}

type LoggingConfig struct {
	Level      string `json:"level"`
	File       string `json:"file"`
	Console    bool   `json:"console"`
	MaxFileSize int   `json:"max_file_size"`
	MaxFiles    int   `json:"max_files"`
}

type SecurityConfig struct {
	IPForwarding             bool `json:"ip_forwarding"`
	MaxConnectionsPerIP      int  `json:"max_connections_per_ip"`
	ConnectionThrottle       bool `json:"connection_throttle"`
	PacketLimitPerSecond     int  `json:"packet_limit_per_second"`
}

// Default returns the documented defaults from spec.md §6.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Name:               "A craftd Server",
			MOTD:               "A Minecraft Server",
			Host:               "0.0.0.0",
			Port:               25565,
			MaxPlayers:         20,
			ViewDistance:       10,
			SimulationDistance: 10,
			Difficulty:         "normal",
			Gamemode:           "survival",
			Hardcore:           false,
			PVP:                true,
			OnlineMode:         false,
			SpawnProtection:    16,
		},
		World: WorldConfig{
			Name:      "world",
			Seed:      0,
			Generator: "flat",
			SpawnX:    0,
			SpawnY:    64,
			SpawnZ:    0,
		},
		Performance: PerformanceConfig{
			IOThreads:            4,
			WorkerThreads:        0,
			MaxChunksLoaded:      4096,
			ChunkUnloadTimeoutMS: 60_000,
			AutoSaveIntervalMS:   300_000,
			CompressionThreshold: -1,
			NetworkBufferSize:    8192,
		},
		Logging: LoggingConfig{
			Level:       "info",
			File:        "craftd.log",
			Console:     true,
			MaxFileSize: 10 * 1024 * 1024,
			MaxFiles:    5,
		},
		Security: SecurityConfig{
			IPForwarding:         false,
			MaxConnectionsPerIP:  10,
			ConnectionThrottle:   true,
			PacketLimitPerSecond: 200,
		},
	}
}

// Load reads a JSON document from r, applying it on top of Default(); any
// key the document omits keeps its default value.
func Load(r io.Reader) (Config, error) {
	cfg := Default()
	dec := json.NewDecoder(r)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, nil
}

// LoadFile opens path and loads it; a missing file is not an error, it
// yields Default() (spec.md treats configuration loading as an external
// collaborator — a missing file is normal for a first run).
func LoadFile(path string) (Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	return Load(f)
}

func (p PerformanceConfig) ChunkUnloadTimeout() time.Duration {
	return time.Duration(p.ChunkUnloadTimeoutMS) * time.Millisecond
}

func (p PerformanceConfig) AutoSaveInterval() time.Duration {
	return time.Duration(p.AutoSaveIntervalMS) * time.Millisecond
}
