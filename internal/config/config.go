package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix prefixes environment variables that override file settings.
const EnvPrefix = "DAPCONSOLE_"

// Config is the complete dapconsole configuration.
type Config struct {
	Logging     LoggingConfig     `toml:"logging"`
	Adapter     AdapterConfig     `toml:"adapter"`
	Console     ConsoleConfig     `toml:"console"`
	Breakpoints BreakpointsConfig `toml:"breakpoints"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	// Level is the minimum level logged.
	Level string `toml:"level" validate:"oneof=debug info warn error"`

	// Encoding is "console" or "json".
	Encoding string `toml:"encoding" validate:"oneof=console json"`

	// Development enables stack traces on warnings and caller annotations.
	Development bool `toml:"development"`

	// OutputPaths are zap sink URLs or file paths.
	OutputPaths []string `toml:"output_paths" validate:"min=1,dive,required"`
}

// AdapterConfig configures the connection to the debug adapter.
type AdapterConfig struct {
	// Address is the host:port the adapter listens on.
	Address string `toml:"address" validate:"required,hostname_port"`

	// AdapterID is sent in the initialize request.
	AdapterID string `toml:"adapter_id" validate:"required"`

	// DialTimeout bounds one connection attempt.
	DialTimeout Duration `toml:"dial_timeout" validate:"gt=0"`

	// DialAttempts is the number of connection attempts.
	DialAttempts int `toml:"dial_attempts" validate:"min=1,max=100"`

	// RequestTimeout bounds every request; 0 disables the bound.
	RequestTimeout Duration `toml:"request_timeout" validate:"gte=0"`
}

// ConsoleConfig configures the debug console.
type ConsoleConfig struct {
	// ChunkSize is the paging base for large indexed collections.
	ChunkSize int `toml:"chunk_size" validate:"min=2"`

	// ExpandDepth is how many levels of a variable tree are printed.
	ExpandDepth int `toml:"expand_depth" validate:"min=0,max=16"`
}

// BreakpointsConfig configures the declared-breakpoints file.
type BreakpointsConfig struct {
	// File is the breakpoints file; empty disables it.
	File string `toml:"file"`

	// Watch reloads the file when it changes.
	Watch bool `toml:"watch"`

	// MaxConcurrentSources bounds concurrent setBreakpoints requests.
	MaxConcurrentSources int `toml:"max_concurrent_sources" validate:"min=1"`

	// ReloadDebounce is the quiet period before a changed file is reloaded.
	ReloadDebounce Duration `toml:"reload_debounce" validate:"gte=0"`
}

// Duration is a time.Duration written as a string like "5s" in TOML.
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// String returns the duration in time.Duration notation.
func (d Duration) String() string { return time.Duration(d).String() }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:       "info",
			Encoding:    "console",
			OutputPaths: []string{"stderr"},
		},
		Adapter: AdapterConfig{
			Address:        "127.0.0.1:4711",
			AdapterID:      "go",
			DialTimeout:    Duration(5 * time.Second),
			DialAttempts:   5,
			RequestTimeout: Duration(10 * time.Second),
		},
		Console: ConsoleConfig{
			ChunkSize:   100,
			ExpandDepth: 1,
		},
		Breakpoints: BreakpointsConfig{
			Watch:                true,
			MaxConcurrentSources: 4,
			ReloadDebounce:       Duration(200 * time.Millisecond),
		},
	}
}

// Load reads the configuration at path over the defaults, applies
// DAPCONSOLE_ environment overrides and validates the result. An empty
// path loads only defaults and environment.
func Load(path string) (*Config, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
			}
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}
	return parse(path, data, os.Environ())
}

func parse(source string, data []byte, environ []string) (*Config, error) {
	var settings map[string]any
	if len(data) > 0 {
		if err := toml.Unmarshal(data, &settings); err != nil {
			return nil, newParseError(source, err)
		}
	}

	if env := envOverrides(EnvPrefix, environ); len(env) > 0 {
		settings = DeepMerge(settings, env)
		source += " + environment"
	}

	cfg := Default()
	if len(settings) > 0 {
		merged, err := toml.Marshal(settings)
		if err != nil {
			return nil, fmt.Errorf("encoding merged config: %w", err)
		}
		dec := toml.NewDecoder(bytes.NewReader(merged))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, newParseError(source, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks every setting and returns a ValidationErrors listing all
// invalid ones.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := make(ValidationErrors, 0, len(verrs))
	for _, fe := range verrs {
		path := fe.Namespace()
		if _, rest, ok := strings.Cut(path, "."); ok {
			path = rest
		}
		out = append(out, &ValidationError{
			Path:    path,
			Message: validationMessage(fe),
			Value:   fe.Value(),
		})
	}
	return out
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "hostname_port":
		return "must be host:port"
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}
