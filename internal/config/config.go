package config

import (
	"encoding/json"
	"os"
	"strconv"
	"time"
)

// --- Configuration ---

type Config struct {
	APIURL   string `json:"apiUrl"`
	WSURL    string `json:"wsUrl"`
	APIToken string `json:"apiToken"`

	PrinterIP   string `json:"printerIp"`   // empty: discover on the local subnet
	PrinterPort int    `json:"printerPort"` // default 9100
	// PrinterWidth is the printable width in characters (42 for 80mm paper).
	PrinterWidth    int    `json:"printerWidth"`
	PrinterTimezone string `json:"printerTimezone"` // IANA name, default UTC
	LogoPath        string `json:"logoPath"`        // optional PNG printed above the header

	PanelAddr string `json:"panelAddr"`

	QueueSize   int `json:"queueSize"`
	LogCapacity int `json:"logCapacity"`

	SendTimeoutSec  int `json:"sendTimeoutSec"`
	FetchTimeoutSec int `json:"fetchTimeoutSec"`

	BackoffBaseMs int `json:"backoffBaseMs"`
	BackoffCapMs  int `json:"backoffCapMs"`
}

// Load reads the JSON config file when present, then applies environment
// overrides and defaults. Env keys win over the file.
func Load(path string) (Config, error) {
	var cfg Config

	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	} else if !os.IsNotExist(err) {
		return cfg, err
	}

	overrideString(&cfg.APIURL, "API_URL")
	overrideString(&cfg.WSURL, "WS_URL")
	overrideString(&cfg.APIToken, "API_TOKEN")
	overrideString(&cfg.PrinterIP, "PRINTER_IP")
	overrideInt(&cfg.PrinterPort, "PRINTER_PORT")
	overrideString(&cfg.PrinterTimezone, "PRINTER_TIMEZONE")
	overrideString(&cfg.PanelAddr, "PANEL_ADDR")

	if cfg.APIURL == "" {
		cfg.APIURL = "http://api.localhost"
	}
	if cfg.WSURL == "" {
		cfg.WSURL = "ws://ws.localhost/agent"
	}
	if cfg.PrinterPort == 0 {
		cfg.PrinterPort = 9100
	}
	if cfg.PrinterWidth == 0 {
		cfg.PrinterWidth = 42
	}
	if cfg.PrinterTimezone == "" {
		cfg.PrinterTimezone = "UTC"
	}
	if cfg.PanelAddr == "" {
		cfg.PanelAddr = "127.0.0.1:7300"
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 32
	}
	if cfg.LogCapacity == 0 {
		cfg.LogCapacity = 200
	}
	if cfg.SendTimeoutSec == 0 {
		cfg.SendTimeoutSec = 10
	}
	if cfg.FetchTimeoutSec == 0 {
		cfg.FetchTimeoutSec = 10
	}
	if cfg.BackoffBaseMs == 0 {
		cfg.BackoffBaseMs = 500
	}
	if cfg.BackoffCapMs == 0 {
		cfg.BackoffCapMs = 30000
	}

	return cfg, nil
}

func (c Config) SendTimeout() time.Duration  { return time.Duration(c.SendTimeoutSec) * time.Second }
func (c Config) FetchTimeout() time.Duration { return time.Duration(c.FetchTimeoutSec) * time.Second }
func (c Config) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseMs) * time.Millisecond
}
func (c Config) BackoffCap() time.Duration { return time.Duration(c.BackoffCapMs) * time.Millisecond }

func overrideString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func overrideInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
