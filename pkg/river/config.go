package river

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config carries the static tunables of a channel core: handshake timeout,
// codec selection, initial write credit, and logging level. The protocol
// itself has no CLI, no environment variables, and no persisted state;
// Config exists for the embedding application to populate programmatically
// or via its own Viper instance, following this corpus's
// Config/mapstructure/validator convention (pkg/config.Config) at a scale
// matched to a library rather than a server.
type Config struct {
	// HandshakeTimeout bounds the one-shot handshake. Zero selects the package default.
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout" yaml:"handshake_timeout"`

	// Codec names the codec, e.g. "river". Required by validation. From
	// does not read it: the handshake always sends the fixed "river" codec
	// tag (wireproto.CodecTag).
	Codec string `mapstructure:"codec" validate:"required" yaml:"codec"`

	// InitialWriteCredit seeds the write-credit counter. It is always
	// used as given; the Transport interface carries no credit value of
	// its own. Must be positive.
	InitialWriteCredit int `mapstructure:"initial_write_credit" validate:"required,gt=0" yaml:"initial_write_credit"`

	// LogLevel is one of DEBUG, INFO, WARN, ERROR.
	LogLevel string `mapstructure:"log_level" validate:"omitempty,oneof=DEBUG INFO WARN ERROR" yaml:"log_level"`
}

// DefaultConfig returns a Config with the package's documented defaults.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout:   5 * time.Second,
		Codec:              "river",
		InitialWriteCredit: 1,
		LogLevel:           "INFO",
	}
}

// LoadConfig reads a "river" sub-tree from v (already configured with its
// own file/env sources by the embedding application) into a Config
// seeded with DefaultConfig's values, then validates it.
func LoadConfig(v *viper.Viper) (Config, error) {
	cfg := DefaultConfig()
	if v != nil {
		sub := v.Sub("river")
		if sub != nil {
			if err := sub.Unmarshal(&cfg); err != nil {
				return Config{}, fmt.Errorf("unmarshal river config: %w", err)
			}
		}
	}
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var configValidator = validator.New()

func validateConfig(cfg Config) error {
	if err := configValidator.Struct(cfg); err != nil {
		return fmt.Errorf("invalid river config: %w", err)
	}
	return nil
}
