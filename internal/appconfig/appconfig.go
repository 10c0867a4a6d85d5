// Package appconfig loads the client-wide settings that are independent of
// any one peer: rendezvous servers, the STUN server, and the licence
// key used to authenticate rendezvous requests. Per-peer settings (toggles,
// keyboard mode, remembered password) live in peerconfig instead.
package appconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/viper"

	"github.com/meshdesk/client/internal/logging"
)

var log = logging.L("appconfig")

type Config struct {
	RendezvousHosts []string `mapstructure:"rendezvous_hosts"`
	StunServer      string   `mapstructure:"stun_server"`
	LicenceKey      string   `mapstructure:"licence_key"`

	// RendezvousClientCertPEM/RendezvousClientKeyPEM configure an optional
	// client certificate presented to wss:// rendezvous hosts that require
	// mutual TLS. Both empty means plain TLS (or no TLS, for ws://).
	RendezvousClientCertPEM string `mapstructure:"rendezvous_client_cert_pem"`
	RendezvousClientKeyPEM  string `mapstructure:"rendezvous_client_key_pem"`

	ConnectTimeoutSeconds int `mapstructure:"connect_timeout_seconds"`
	PunchTimeMillis       int `mapstructure:"punch_time_millis"`

	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`
}

func Default() *Config {
	return &Config{
		RendezvousHosts:       []string{"wss://rs-sg.meshdesk.io", "wss://rs-ny.meshdesk.io"},
		StunServer:            "stun.meshdesk.io:3478",
		ConnectTimeoutSeconds: 18,
		PunchTimeMillis:       3000,
		LogLevel:              "info",
		LogFormat:             "text",
	}
}

// ConnectTimeout and PunchTime convert the duration fields stored as plain
// ints (so viper round-trips them cleanly) into time.Duration.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutSeconds) * time.Second
}

func (c *Config) PunchTime() time.Duration {
	return time.Duration(c.PunchTimeMillis) * time.Millisecond
}

func Load(cfgFile string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("client")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir())
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("MESHDESK")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("appconfig: read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("appconfig: unmarshal: %w", err)
	}

	if len(cfg.RendezvousHosts) == 0 {
		return nil, fmt.Errorf("appconfig: rendezvous_hosts must not be empty")
	}

	return cfg, nil
}

func SaveTo(cfg *Config, cfgFile string) error {
	v := viper.New()
	v.Set("rendezvous_hosts", cfg.RendezvousHosts)
	v.Set("stun_server", cfg.StunServer)
	v.Set("licence_key", cfg.LicenceKey)
	v.Set("rendezvous_client_cert_pem", cfg.RendezvousClientCertPEM)
	v.Set("rendezvous_client_key_pem", cfg.RendezvousClientKeyPEM)
	v.Set("connect_timeout_seconds", cfg.ConnectTimeoutSeconds)
	v.Set("punch_time_millis", cfg.PunchTimeMillis)
	v.Set("log_level", cfg.LogLevel)
	v.Set("log_format", cfg.LogFormat)
	v.Set("log_file", cfg.LogFile)

	var cfgPath string
	if cfgFile != "" {
		cfgPath = cfgFile
		if dir := filepath.Dir(cfgPath); dir != "." {
			if err := os.MkdirAll(dir, 0700); err != nil {
				return err
			}
		}
	} else {
		cfgPath = filepath.Join(configDir(), "client.yaml")
		if err := os.MkdirAll(configDir(), 0700); err != nil {
			return err
		}
	}

	if err := v.WriteConfigAs(cfgPath); err != nil {
		return err
	}
	return os.Chmod(cfgPath, 0600)
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "MeshDesk")
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "MeshDesk")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "meshdesk")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "meshdesk")
	}
}
