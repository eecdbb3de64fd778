package formpage

import (
	"fmt"
	"time"

	"github.com/laji-form/mock-contract-tests/mocking"
	"github.com/laji-form/mock-contract-tests/syncbridge"

	"github.com/BurntSushi/toml"
)

// DefaultPort is the page service's default listening port.
const DefaultPort = 8000

// Config holds the page service settings. Sessions may override Strict, FallbackURL,
// Rendezvous and QueueCapacity when they are created.
type Config struct {
	Port          int           `toml:"port"`
	Strict        bool          `toml:"strict"`
	FallbackURL   string        `toml:"fallback_url"`
	Rendezvous    bool          `toml:"rendezvous"`
	QueueCapacity int           `toml:"queue_capacity"`
	PollInterval  time.Duration `toml:"poll_interval"`
	RouteTimeout  time.Duration `toml:"route_timeout"`
	CloseTimeout  time.Duration `toml:"close_timeout"`
	Debug         bool          `toml:"debug"`
	Derivations   []Derivation  `toml:"derivation"`
}

// DefaultConfig returns the settings used when no config file is given.
func DefaultConfig() Config {
	return Config{
		Port:          DefaultPort,
		Strict:        true,
		Rendezvous:    true,
		QueueCapacity: mocking.DefaultQueueCapacity,
		PollInterval:  syncbridge.DefaultPollInterval,
		RouteTimeout:  time.Second * 2,
		CloseTimeout:  time.Second * 2,
		Derivations:   DefaultDerivations(),
	}
}

// LoadConfig reads a TOML file on top of DefaultConfig. An empty path returns the defaults.
// A derivation table in the file replaces the default derivations entirely.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()
	if path == "" {
		return config, nil
	}
	config.Derivations = nil
	md, err := toml.DecodeFile(path, &config)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("unknown settings in config file %s: %v", path, undecoded)
	}
	if !md.IsDefined("derivation") {
		config.Derivations = DefaultDerivations()
	}
	return config, config.validate()
}

func (c Config) validate() error {
	if c.Port < 0 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.QueueCapacity < 0 {
		return fmt.Errorf("invalid queue_capacity %d", c.QueueCapacity)
	}
	if c.RouteTimeout <= 0 {
		return fmt.Errorf("route_timeout must be positive, got %s", c.RouteTimeout)
	}
	if c.CloseTimeout <= 0 {
		return fmt.Errorf("close_timeout must be positive, got %s", c.CloseTimeout)
	}
	for _, d := range c.Derivations {
		if d.CallPath == "" || d.Field == "" || d.Expr == "" {
			return fmt.Errorf("derivation needs call_path, field and expr: %+v", d)
		}
	}
	return nil
}
