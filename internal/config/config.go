package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"tallyho/pkg/util"
)

// Duration accepts either a Go duration string ("45s") or a bare number,
// treated as seconds.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration must be a scalar, got %q", value.Tag)
	}
	if secs, err := strconv.Atoi(value.Value); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	dur, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parsing duration %q: %w", value.Value, err)
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type Config struct {
	Location struct {
		Lat      float64 `yaml:"lat"`
		Long     float64 `yaml:"long"`
		RadiusNM float64 `yaml:"radius_nm"`
	} `yaml:"location"`
	Source struct {
		Mode       string   `yaml:"mode"`
		BaseURL    string   `yaml:"base_url"`
		FeedURL    string   `yaml:"feed_url"`
		StaleAfter Duration `yaml:"stale_after"`
	} `yaml:"source"`
	Poll struct {
		Interval           Duration `yaml:"interval"`
		CycleBudget        Duration `yaml:"cycle_budget"`
		MaxDisplayFailures int      `yaml:"max_display_failures"`
	} `yaml:"poll"`
	Render struct {
		Width    int    `yaml:"width"`
		Height   int    `yaml:"height"`
		FontFile string `yaml:"font_file"`
	} `yaml:"render"`
	Display struct {
		Epaper struct {
			Enabled        bool     `yaml:"enabled"`
			SPI            string   `yaml:"spi"`
			RefreshTimeout Duration `yaml:"refresh_timeout"`
		} `yaml:"epaper"`
		Dot struct {
			Enabled    bool     `yaml:"enabled"`
			BaseURL    string   `yaml:"base_url"`
			APIKey     string   `yaml:"api_key"`
			DeviceID   string   `yaml:"device_id"`
			MinRefresh Duration `yaml:"min_refresh"`
		} `yaml:"dot"`
		File struct {
			Enabled bool   `yaml:"enabled"`
			Path    string `yaml:"path"`
		} `yaml:"file"`
	} `yaml:"display"`
	Journal struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"journal"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load reads the YAML file at path and layers environment overrides on top.
// A missing file is fine; defaults plus LATITUDE/LONGITUDE/RADIUS can carry
// the whole configuration.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(path); err == nil {
		cfg, err = util.LoadConfig[Config](path)
		if err != nil {
			return nil, err
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("stat config %s: %w", path, err)
	}

	cfg.fillDefaults()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) fillDefaults() {
	if c.Source.Mode == "" {
		c.Source.Mode = "rest"
	}
	if c.Source.BaseURL == "" {
		c.Source.BaseURL = "https://api.adsb.lol"
	}
	if c.Source.StaleAfter == 0 {
		c.Source.StaleAfter = Duration(60 * time.Second)
	}
	if c.Location.RadiusNM == 0 {
		c.Location.RadiusNM = 50
	}
	if c.Poll.Interval == 0 {
		c.Poll.Interval = Duration(30 * time.Second)
	}
	if c.Poll.CycleBudget == 0 {
		c.Poll.CycleBudget = Duration(25 * time.Second)
	}
	if c.Poll.MaxDisplayFailures == 0 {
		c.Poll.MaxDisplayFailures = 5
	}
	if c.Render.Width == 0 {
		c.Render.Width = 800
	}
	if c.Render.Height == 0 {
		c.Render.Height = 480
	}
	if c.Display.Epaper.SPI == "" {
		c.Display.Epaper.SPI = "SPI0.0"
	}
	if c.Display.Epaper.RefreshTimeout == 0 {
		c.Display.Epaper.RefreshTimeout = Duration(30 * time.Second)
	}
	if c.Display.Dot.BaseURL == "" {
		c.Display.Dot.BaseURL = "https://dot.mindreset.tech"
	}
	if c.Display.Dot.MinRefresh == 0 {
		c.Display.Dot.MinRefresh = Duration(5 * time.Second)
	}
	if c.Display.File.Path == "" {
		c.Display.File.Path = "frame.png"
	}
	if c.Journal.Path == "" {
		c.Journal.Path = "sightings.db"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) applyEnv() error {
	if v, ok, err := util.ParseFloatEnv("LATITUDE"); err != nil {
		return err
	} else if ok {
		c.Location.Lat = v
	}
	if v, ok, err := util.ParseFloatEnv("LONGITUDE"); err != nil {
		return err
	} else if ok {
		c.Location.Long = v
	}
	if v, ok, err := util.ParseFloatEnv("RADIUS"); err != nil {
		return err
	} else if ok {
		c.Location.RadiusNM = v
	}
	if v, ok, err := util.ParseDurationEnv("POLL_INTERVAL"); err != nil {
		return err
	} else if ok {
		c.Poll.Interval = Duration(v)
	}
	c.Source.BaseURL = util.Getenv("ADSB_BASE_URL", c.Source.BaseURL)
	c.Display.Dot.APIKey = util.Getenv("DOT_API_KEY", c.Display.Dot.APIKey)
	c.Log.Level = util.Getenv("LOG_LEVEL", c.Log.Level)
	return nil
}

// Validate rejects configurations the poll loop cannot run with. It is
// separate from Load so callers can patch in a location first.
func (c *Config) Validate() error {
	if c.Location.Lat == 0 && c.Location.Long == 0 {
		return errors.New("location not set: use location.lat/long or LATITUDE/LONGITUDE")
	}
	if c.Location.Lat < -90 || c.Location.Lat > 90 {
		return fmt.Errorf("latitude %.4f out of range", c.Location.Lat)
	}
	if c.Location.Long < -180 || c.Location.Long > 180 {
		return fmt.Errorf("longitude %.4f out of range", c.Location.Long)
	}
	if c.Location.RadiusNM <= 0 || c.Location.RadiusNM > 250 {
		return fmt.Errorf("radius %.1f NM outside (0, 250]", c.Location.RadiusNM)
	}
	if c.Source.Mode != "rest" && c.Source.Mode != "feed" {
		return fmt.Errorf("unknown source mode %q", c.Source.Mode)
	}
	if c.Poll.Interval.Std() < 5*time.Second {
		return fmt.Errorf("poll interval %s below the 5s floor", c.Poll.Interval.Std())
	}
	return nil
}
