package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// SPC holds the connection settings for the alarm panel's web interface.
type SPC struct {
	Host                string
	User                string
	Pin                 string
	Language            int
	SessionCacheDir     string
	MinLoginIntervalSec int
}

// MQTT holds the broker connection and publish settings.
type MQTT struct {
	Host      string
	Port      int
	User      string
	Pass      string
	BaseTopic string
	ClientID  string
	QoS       int
	Retain    bool
}

// Flags enables or disables a whole category of publication or control.
type Flags struct {
	Zones    bool
	Secteurs bool
	Doors    bool
	Outputs  bool
}

// Enabled reports the flag for a category name as it appears in topics.
func (f Flags) Enabled(category string) bool {
	switch category {
	case "zones":
		return f.Zones
	case "secteurs":
		return f.Secteurs
	case "doors":
		return f.Doors
	case "outputs":
		return f.Outputs
	}
	return false
}

// Watchdog holds the polling intervals and the per-category feature flags.
type Watchdog struct {
	RefreshInterval           float64
	ControllerRefreshInterval float64
	LogChanges                bool
	Information               Flags
	Controle                  Flags
}

// Config is the full runtime configuration. It is immutable after Load.
type Config struct {
	SPC      SPC
	MQTT     MQTT
	Watchdog Watchdog
}

// Load reads the YAML configuration file at path, applies defaults and
// SPC2MQTT_* environment overrides, and validates the result.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("spc.language", 253)
	v.SetDefault("spc.session_cache_dir", "/var/lib/acre_exp")
	v.SetDefault("spc.min_login_interval_sec", 60)
	v.SetDefault("mqtt.host", "127.0.0.1")
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt.base_topic", "spc")
	v.SetDefault("mqtt.client_id", "spc42-watchdog")
	v.SetDefault("mqtt.qos", 0)
	v.SetDefault("mqtt.retain", true)
	v.SetDefault("watchdog.refresh_interval", 2)
	v.SetDefault("watchdog.controller_refresh_interval", 60)
	v.SetDefault("watchdog.log_changes", true)
	for _, c := range []string{"zones", "secteurs", "doors", "outputs"} {
		v.SetDefault("watchdog.information."+c, true)
		v.SetDefault("watchdog.controle."+c, false)
	}

	// SPC2MQTT_MQTT_HOST overrides mqtt.host, etc.
	v.SetEnvPrefix("SPC2MQTT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Config{
		SPC: SPC{
			Host:                strings.TrimRight(v.GetString("spc.host"), "/"),
			User:                v.GetString("spc.user"),
			Pin:                 v.GetString("spc.pin"),
			Language:            v.GetInt("spc.language"),
			SessionCacheDir:     v.GetString("spc.session_cache_dir"),
			MinLoginIntervalSec: v.GetInt("spc.min_login_interval_sec"),
		},
		MQTT: MQTT{
			Host:      v.GetString("mqtt.host"),
			Port:      v.GetInt("mqtt.port"),
			User:      v.GetString("mqtt.user"),
			Pass:      v.GetString("mqtt.pass"),
			BaseTopic: strings.Trim(v.GetString("mqtt.base_topic"), "/"),
			ClientID:  v.GetString("mqtt.client_id"),
			QoS:       v.GetInt("mqtt.qos"),
			Retain:    v.GetBool("mqtt.retain"),
		},
		Watchdog: Watchdog{
			RefreshInterval:           v.GetFloat64("watchdog.refresh_interval"),
			ControllerRefreshInterval: v.GetFloat64("watchdog.controller_refresh_interval"),
			LogChanges:                v.GetBool("watchdog.log_changes"),
			Information: Flags{
				Zones:    v.GetBool("watchdog.information.zones"),
				Secteurs: v.GetBool("watchdog.information.secteurs"),
				Doors:    v.GetBool("watchdog.information.doors"),
				Outputs:  v.GetBool("watchdog.information.outputs"),
			},
			Controle: Flags{
				Zones:    v.GetBool("watchdog.controle.zones"),
				Secteurs: v.GetBool("watchdog.controle.secteurs"),
				Doors:    v.GetBool("watchdog.controle.doors"),
				Outputs:  v.GetBool("watchdog.controle.outputs"),
			},
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the invariants that must hold before the main loop starts.
func (c *Config) Validate() error {
	if c.SPC.Host == "" {
		return fmt.Errorf("config: spc.host is required")
	}
	if c.SPC.SessionCacheDir == "" {
		return fmt.Errorf("config: spc.session_cache_dir is required")
	}
	if c.SPC.MinLoginIntervalSec < 0 {
		return fmt.Errorf("config: spc.min_login_interval_sec must be >= 0")
	}
	if c.MQTT.Host == "" {
		return fmt.Errorf("config: mqtt.host is required")
	}
	if c.MQTT.Port < 1 || c.MQTT.Port > 65535 {
		return fmt.Errorf("config: mqtt.port %d out of range", c.MQTT.Port)
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("config: mqtt.qos must be 0, 1 or 2")
	}
	if c.MQTT.BaseTopic == "" {
		return fmt.Errorf("config: mqtt.base_topic is required")
	}
	if c.Watchdog.RefreshInterval < 0.2 {
		return fmt.Errorf("config: watchdog.refresh_interval must be >= 0.2 seconds")
	}
	if c.Watchdog.ControllerRefreshInterval <= 0 {
		return fmt.Errorf("config: watchdog.controller_refresh_interval must be > 0")
	}
	return nil
}
