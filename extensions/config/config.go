// Package config loads gateway and client settings from YAML or TOML files.
//
// Loading applies defaults first, then the file, then MQTTSN_* environment
// overrides, and finally validates the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for files that are neither YAML nor TOML.
var ErrUnsupportedFormat = errors.New("config: unsupported file format")

// File is the top level configuration document.
type File struct {
	Listen           string  `yaml:"listen" toml:"listen" validate:"required"`
	BroadcastAddress string  `yaml:"broadcast_address" toml:"broadcast_address" validate:"omitempty,ipv4"`
	BroadcastPort    int     `yaml:"broadcast_port" toml:"broadcast_port" validate:"gte=0,lte=65535"`
	Radius           int     `yaml:"radius" toml:"radius" validate:"gte=0,lte=255"`
	Logging          Logging `yaml:"logging" toml:"logging"`
	Metrics          Metrics `yaml:"metrics" toml:"metrics"`
	Gateway          Gateway `yaml:"gateway" toml:"gateway"`
	Client           Client  `yaml:"client" toml:"client"`
}

// Logging selects the log output.
type Logging struct {
	Level  string `yaml:"level" toml:"level" validate:"oneof=debug info warn warning error"`
	Format string `yaml:"format" toml:"format" validate:"oneof=console text json"`
	Output string `yaml:"output" toml:"output" validate:"oneof=stdout stderr"`
}

// Metrics configures the Prometheus endpoint. An empty Listen disables it.
type Metrics struct {
	Listen string `yaml:"listen" toml:"listen" validate:"omitempty,hostname_port"`
	Path   string `yaml:"path" toml:"path" validate:"required,startswith=/"`
}

// Gateway holds the gateway engine settings.
type Gateway struct {
	// ID 0 leaves the id to the host's gateway id allocator.
	ID                         int      `yaml:"id" toml:"id" validate:"gte=0,lte=255"`
	OnlineInterval             Duration `yaml:"online_interval" toml:"online_interval" validate:"gte=0"`
	OfflineInterval            Duration `yaml:"offline_interval" toml:"offline_interval" validate:"gte=0"`
	AdvertiseInterval          Duration `yaml:"advertise_interval" toml:"advertise_interval" validate:"gte=0"`
	ActiveClientsCheckInterval Duration `yaml:"active_clients_check_interval" toml:"active_clients_check_interval" validate:"gte=0"`
	AsleepClientsCheckInterval Duration `yaml:"asleep_clients_check_interval" toml:"asleep_clients_check_interval" validate:"gte=0"`
	ClientsClearInterval       Duration `yaml:"clients_clear_interval" toml:"clients_clear_interval" validate:"gte=0"`
	MaximumInactivityTime      Duration `yaml:"maximum_inactivity_time" toml:"maximum_inactivity_time" validate:"gte=0"`
	RetransmissionInterval     Duration `yaml:"retransmission_interval" toml:"retransmission_interval" validate:"gte=0"`
	MaxRetries                 int      `yaml:"max_retries" toml:"max_retries" validate:"gte=0"`
	MaximumClients             int      `yaml:"maximum_clients" toml:"maximum_clients" validate:"gte=0"`
	PublishRate                float64  `yaml:"publish_rate" toml:"publish_rate" validate:"gte=0"`
	PublishBurst               int      `yaml:"publish_burst" toml:"publish_burst" validate:"gte=0"`
	Strict                     bool     `yaml:"strict" toml:"strict"`
}

// Client holds the client engine settings.
type Client struct {
	ID                     string         `yaml:"id" toml:"id" validate:"lte=23"`
	Gateway                string         `yaml:"gateway" toml:"gateway" validate:"omitempty,hostname_port"`
	KeepAlive              Duration       `yaml:"keep_alive" toml:"keep_alive" validate:"gte=0"`
	CleanSession           bool           `yaml:"clean_session" toml:"clean_session"`
	SearchInterval         Duration       `yaml:"search_interval" toml:"search_interval" validate:"gte=0"`
	SearchRadius           int            `yaml:"search_radius" toml:"search_radius" validate:"gte=0,lte=255"`
	RetransmissionInterval Duration       `yaml:"retransmission_interval" toml:"retransmission_interval" validate:"gte=0"`
	MaxAttempts            int            `yaml:"max_attempts" toml:"max_attempts" validate:"gte=1"`
	WaitingInterval        Duration       `yaml:"waiting_interval" toml:"waiting_interval" validate:"gte=0"`
	RegistrationInterval   Duration       `yaml:"registration_interval" toml:"registration_interval" validate:"gte=0"`
	PublishInterval        Duration       `yaml:"publish_interval" toml:"publish_interval" validate:"gte=0"`
	Strict                 bool           `yaml:"strict" toml:"strict"`
	Will                   *Will          `yaml:"will" toml:"will"`
	Subscriptions          []Subscription `yaml:"subscriptions" toml:"subscriptions" validate:"dive"`
	Fixture                Fixture        `yaml:"fixture" toml:"fixture" validate:"dive,keys,required,endkeys,min=1,dive"`
}

// Will is the will registered on CONNECT.
type Will struct {
	Topic   string `yaml:"topic" toml:"topic" validate:"required"`
	Message string `yaml:"message" toml:"message"`
	QoS     int    `yaml:"qos" toml:"qos" validate:"gte=0,lte=2"`
	Retain  bool   `yaml:"retain" toml:"retain"`
}

// Subscription is a topic the client subscribes to once connected.
type Subscription struct {
	Topic string `yaml:"topic" toml:"topic" validate:"required"`
	QoS   int    `yaml:"qos" toml:"qos" validate:"gte=0,lte=2"`
}

// Default returns a File with the engine defaults.
func Default() *File {
	return &File{
		Listen:           ":1883",
		BroadcastAddress: "255.255.255.255",
		Logging: Logging{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		},
		Metrics: Metrics{
			Path: "/metrics",
		},
		Gateway: Gateway{
			AdvertiseInterval:          Duration(60 * time.Second),
			ActiveClientsCheckInterval: Duration(10 * time.Second),
			AsleepClientsCheckInterval: Duration(10 * time.Second),
			ClientsClearInterval:       Duration(60 * time.Second),
			MaximumInactivityTime:      Duration(5 * time.Minute),
			RetransmissionInterval:     Duration(10 * time.Second),
			MaxRetries:                 3,
			MaximumClients:             100,
		},
		Client: Client{
			KeepAlive:              Duration(60 * time.Second),
			CleanSession:           true,
			SearchInterval:         Duration(5 * time.Second),
			SearchRadius:           1,
			RetransmissionInterval: Duration(10 * time.Second),
			MaxAttempts:            5,
			WaitingInterval:        Duration(5 * time.Second),
			RegistrationInterval:   Duration(10 * time.Second),
			PublishInterval:        Duration(10 * time.Second),
		},
	}
}

// Load reads path, decoding by extension (.yaml, .yml or .toml).
func Load(path string) (*File, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		_, err = toml.Decode(string(data), cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies MQTTSN_<SECTION>_<KEY> variables.
func applyEnvOverrides(cfg *File) error {
	if v := os.Getenv("MQTTSN_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("MQTTSN_BROADCAST_ADDRESS"); v != "" {
		cfg.BroadcastAddress = v
	}
	if v := os.Getenv("MQTTSN_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MQTTSN_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("MQTTSN_METRICS_LISTEN"); v != "" {
		cfg.Metrics.Listen = v
	}
	if v := os.Getenv("MQTTSN_GATEWAY_ID"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MQTTSN_GATEWAY_ID: %w", err)
		}
		cfg.Gateway.ID = id
	}
	if v := os.Getenv("MQTTSN_CLIENT_ID"); v != "" {
		cfg.Client.ID = v
	}
	if v := os.Getenv("MQTTSN_CLIENT_GATEWAY"); v != "" {
		cfg.Client.Gateway = v
	}

	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(Duration); ok {
			return int64(d)
		}
		return nil
	}, Duration(0))
	return v
}

// Validate checks the struct tags and the fixture.
func (f *File) Validate() error {
	if err := validate.Struct(f); err != nil {
		return err
	}

	if len(f.Client.Fixture) > 0 {
		if err := f.Client.Fixture.Fixture().Validate(); err != nil {
			return err
		}
	}

	return nil
}
