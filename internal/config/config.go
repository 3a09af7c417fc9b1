package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/neuropath/rtcore/internal/util"

	"github.com/pion/webrtc/v4"
)

const FileName = "rtcore.json"

type Config struct {
	Server  Server  `json:"server"`
	Auth    Auth    `json:"auth"`
	Storage Storage `json:"storage"`
	Calls   Calls   `json:"calls"`
	Chat    Chat    `json:"chat"`
	Limits  Limits  `json:"limits"`
	Events  Events  `json:"events"`
	Admin   Admin   `json:"admin"`
	Log     Log     `json:"log"`
}

type Server struct {
	HTTPAddr string `json:"http_addr"`

	// Origins allowed to open a WebSocket. Empty allows any origin.
	AllowedOrigins []string `json:"allowed_origins"`

	// Tabs per user. The oldest connection is closed when exceeded. 0 = unlimited.
	MaxConnectionsPerUser int `json:"max_connections_per_user"`

	// Heartbeat: a ping every PingSec; a connection with no pong for
	// PongWaitSec is dropped. PingSec must be < PongWaitSec.
	PingSec      int `json:"ping_seconds"`
	PongWaitSec  int `json:"pong_wait_seconds"`
	WriteWaitSec int `json:"write_wait_seconds"`

	// Frames queued per connection before new frames are dropped.
	OutboundBuffer int `json:"outbound_buffer"`

	// Largest inbound frame in bytes.
	MaxFrameBytes int64 `json:"max_frame_bytes"`
}

type Auth struct {
	// HS256 secret shared with the account service. Usually set through
	// RTCORE_JWT_SECRET rather than the file.
	JWTSecret string `json:"jwt_secret"`
	Issuer    string `json:"issuer"`
}

type Storage struct {
	Driver string `json:"driver"` // sqlite | postgres | memory
	DSN    string `json:"dsn"`    // sqlite: path relative to the data dir
}

type Calls struct {
	RingTimeoutSec int                `json:"ring_timeout_seconds"`
	ICEServers     []webrtc.ICEServer `json:"ice_servers"`
}

type Chat struct {
	MaxContentLength int `json:"max_content_length"`
	HistoryLimit     int `json:"history_limit"`
}

type Limits struct {
	EventsPerMinutePerUser int `json:"events_per_minute_per_user"`
	EventsPerMinuteGlobal  int `json:"events_per_minute_global"`
}

type Events struct {
	Sink         string   `json:"sink"` // none | kafka | sqs
	KafkaBrokers []string `json:"kafka_brokers"`
	KafkaTopic   string   `json:"kafka_topic"`
	SQSQueueURL  string   `json:"sqs_queue_url"`
	SQSQueueName string   `json:"sqs_queue_name"`
}

type Admin struct {
	// bcrypt hash of the admin password (HTTP Basic, user "admin").
	// Empty disables the admin endpoints.
	PasswordHash string `json:"password_hash"`
}

type Log struct {
	Level      string            `json:"level"`
	Subsystems map[string]string `json:"subsystems"`
	BufferSize int               `json:"buffer_size"`
}

func Default() Config {
	return Config{
		Server: Server{
			HTTPAddr:              "127.0.0.1:8790",
			MaxConnectionsPerUser: 8,
			PingSec:               20,
			PongWaitSec:           45,
			WriteWaitSec:          10,
			OutboundBuffer:        64,
			MaxFrameBytes:         64 << 10,
		},
		Storage: Storage{
			Driver: "sqlite",
			DSN:    "data/rtcore.db",
		},
		Calls: Calls{
			RingTimeoutSec: 45,
			ICEServers: []webrtc.ICEServer{
				{URLs: []string{"stun:stun.l.google.com:19302"}},
			},
		},
		Chat: Chat{
			MaxContentLength: 4096,
			HistoryLimit:     200,
		},
		Limits: Limits{
			EventsPerMinutePerUser: 600,
			EventsPerMinuteGlobal:  60000,
		},
		Events: Events{
			Sink:       "none",
			KafkaTopic: "rtcore.audit",
		},
		Log: Log{
			Level:      "info",
			BufferSize: 500,
		},
	}
}

func (c *Config) Validate() error {
	// Server
	host, port, err := net.SplitHostPort(c.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("server.http_addr: %w", err)
	}
	if host != "" && net.ParseIP(host) == nil && host != "localhost" {
		return errors.New("server.http_addr host must be an IP address or localhost")
	}
	if port == "" {
		return errors.New("server.http_addr port is required")
	}
	if c.Server.MaxConnectionsPerUser < 0 {
		return errors.New("server.max_connections_per_user must be >= 0")
	}
	if c.Server.PingSec <= 0 || c.Server.PongWaitSec <= 0 {
		return errors.New("server.ping_seconds and server.pong_wait_seconds must be > 0")
	}
	if c.Server.PingSec >= c.Server.PongWaitSec {
		return errors.New("server.ping_seconds must be < server.pong_wait_seconds")
	}
	if c.Server.WriteWaitSec <= 0 {
		return errors.New("server.write_wait_seconds must be > 0")
	}
	if c.Server.OutboundBuffer < 1 || c.Server.OutboundBuffer > 4096 {
		return errors.New("server.outbound_buffer must be 1..4096")
	}
	if c.Server.MaxFrameBytes < 1024 {
		return errors.New("server.max_frame_bytes must be >= 1024")
	}

	// Auth
	if len(c.Auth.JWTSecret) < 16 {
		return errors.New("auth.jwt_secret must be at least 16 characters (set RTCORE_JWT_SECRET)")
	}

	// Storage
	switch c.Storage.Driver {
	case "sqlite", "postgres":
		if strings.TrimSpace(c.Storage.DSN) == "" {
			return fmt.Errorf("storage.dsn is required for driver %s", c.Storage.Driver)
		}
	case "memory":
	default:
		return fmt.Errorf("storage.driver must be sqlite, postgres or memory, got %q", c.Storage.Driver)
	}

	// Calls
	if c.Calls.RingTimeoutSec < 5 || c.Calls.RingTimeoutSec > 300 {
		return errors.New("calls.ring_timeout_seconds must be 5..300")
	}
	for i, s := range c.Calls.ICEServers {
		if len(s.URLs) == 0 {
			return fmt.Errorf("calls.ice_servers[%d] has no urls", i)
		}
	}

	// Chat
	if c.Chat.MaxContentLength < 1 || c.Chat.MaxContentLength > 65536 {
		return errors.New("chat.max_content_length must be 1..65536")
	}
	if c.Chat.HistoryLimit < 1 {
		return errors.New("chat.history_limit must be > 0")
	}

	// Limits
	if c.Limits.EventsPerMinutePerUser <= 0 {
		return errors.New("limits.events_per_minute_per_user must be > 0")
	}
	if c.Limits.EventsPerMinuteGlobal < c.Limits.EventsPerMinutePerUser {
		return errors.New("limits.events_per_minute_global must be >= events_per_minute_per_user")
	}

	// Events
	switch c.Events.Sink {
	case "", "none":
	case "kafka":
		if len(c.Events.KafkaBrokers) == 0 || c.Events.KafkaTopic == "" {
			return errors.New("events.kafka_brokers and events.kafka_topic are required for the kafka sink")
		}
	case "sqs":
		if c.Events.SQSQueueURL == "" && c.Events.SQSQueueName == "" {
			return errors.New("events.sqs_queue_url or events.sqs_queue_name is required for the sqs sink")
		}
	default:
		return fmt.Errorf("events.sink must be none, kafka or sqs, got %q", c.Events.Sink)
	}

	// Log
	if _, err := parseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	for name, lvl := range c.Log.Subsystems {
		if _, err := parseLevel(lvl); err != nil {
			return fmt.Errorf("log.subsystems.%s: %w", name, err)
		}
	}

	return nil
}

// Load reads path over the defaults, applies environment overrides and
// validates the result.
func Load(path string) (Config, error) {
	cfg, err := LoadPartial(path)
	if err != nil {
		return Config{}, err
	}
	ApplyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadPartial reads a config file without env overrides or validation.
func LoadPartial(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	b = stripBOM(b)

	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// stripBOM removes a UTF-8 byte order mark if present.
func stripBOM(b []byte) []byte {
	if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		return b[3:]
	}
	return b
}

// Save writes cfg without validating it, so a fresh file can be written
// before secrets are filled in.
func Save(path string, cfg Config) error {
	return util.WriteJSONFile(path, cfg)
}

// Ensure loads config if it exists; otherwise creates a default config file
// and then loads it. Returns (cfg, createdNew, err).
func Ensure(path string) (Config, bool, error) {
	if _, err := os.Stat(path); err == nil {
		cfg, err := Load(path)
		return cfg, false, err
	} else if !os.IsNotExist(err) {
		return Config{}, false, err
	}

	if err := Save(path, Default()); err != nil {
		return Config{}, false, fmt.Errorf("create default config: %w", err)
	}
	cfg, err := Load(path)
	return cfg, true, err
}
