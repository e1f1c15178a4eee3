// Package config parses and validates the layerpaper configuration file and
// holds the active snapshot. A snapshot is immutable once published; reload
// replaces it wholesale so readers never observe a half-applied config.
package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

type Mode string

const (
	ModeFill    Mode = "fill"
	ModeStretch Mode = "stretch"
	ModeCenter  Mode = "center"
	ModeTile    Mode = "tile"
	ModeFit     Mode = "fit"
)

type Easing string

const (
	EasingLinear    Easing = "linear"
	EasingEaseIn    Easing = "ease-in"
	EasingEaseOut   Easing = "ease-out"
	EasingEaseInOut Easing = "ease-in-out"
)

type Transition string

const (
	TransitionNone Transition = "none"
	TransitionFade Transition = "fade"
)

type Sorting string

const (
	SortingRandom     Sorting = "random"
	SortingAscending  Sorting = "ascending"
	SortingDescending Sorting = "descending"
)

// Policy is the resolved wallpaper behavior for one output. Policies are
// read-only borrows; the registry must re-resolve after every reload and
// never retain one across it.
type Policy struct {
	Path               string        `mapstructure:"path"`
	Mode               Mode          `mapstructure:"mode"`
	Duration           time.Duration `mapstructure:"duration"`
	Sorting            Sorting       `mapstructure:"sorting"`
	Transition         Transition    `mapstructure:"transition"`
	TransitionDuration time.Duration `mapstructure:"transition-duration"`
	Easing             Easing        `mapstructure:"easing"`
	InitialTransition  bool          `mapstructure:"initial-transition"`
	Recursive          bool          `mapstructure:"recursive"`
	QueueSize          int           `mapstructure:"queue-size"`
}

type Config struct {
	Default Policy
	Outputs map[string]Policy
}

// PolicyFor returns the policy for the named output, falling back to the
// default section when no section matches.
func (c *Config) PolicyFor(name string) Policy {
	if p, ok := c.Outputs[name]; ok {
		return p
	}
	return c.Default
}

// ParseError identifies the config field that failed validation. The previous
// snapshot stays active when Load returns one.
type ParseError struct {
	Field   string
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

func defaultPolicy() Policy {
	return Policy{
		Mode:               ModeFill,
		Duration:           5 * time.Minute,
		Sorting:            SortingRandom,
		Transition:         TransitionFade,
		TransitionDuration: 500 * time.Millisecond,
		Easing:             EasingEaseInOut,
		QueueSize:          10,
	}
}

// daemonKeys are the daemon-wide knobs the CLI layer reads through viper.
// They share the file's top level with the output sections and are not
// per-output policy.
var daemonKeys = map[string]bool{
	"framerate_limit": true,
	"debug":           true,
	"background":      true,
}

// Load parses the TOML file at path into a Config. Unknown keys are rejected
// with a ParseError naming the key; per-output sections inherit any field
// they do not set from the default section.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	raw := v.AllSettings()

	cfg := &Config{
		Default: defaultPolicy(),
		Outputs: make(map[string]Policy),
	}

	if section, ok := raw["default"]; ok {
		if err := decodeSection("default", section, &cfg.Default); err != nil {
			return nil, err
		}
	}
	if err := validatePolicy("default", cfg.Default); err != nil {
		return nil, err
	}

	// Sort for deterministic error reporting.
	names := make([]string, 0, len(raw))
	for name := range raw {
		if name != "default" && !daemonKeys[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		policy := cfg.Default
		if err := decodeSection(name, raw[name], &policy); err != nil {
			return nil, err
		}
		if err := validatePolicy(name, policy); err != nil {
			return nil, err
		}
		cfg.Outputs[name] = policy
	}

	return cfg, nil
}

func decodeSection(name string, raw any, out *Policy) error {
	section, ok := raw.(map[string]any)
	if !ok {
		return &ParseError{Field: name, Message: "expected a table"}
	}

	// A typo'd key is a hard parse failure, not a silently ignored setting.
	known := map[string]bool{
		"path": true, "mode": true, "duration": true, "sorting": true,
		"transition": true, "transition-duration": true, "easing": true,
		"initial-transition": true, "recursive": true, "queue-size": true,
	}
	var unknown []string
	for key := range section {
		if !known[key] {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return &ParseError{
			Field:   name + "." + unknown[0],
			Message: "unknown key",
		}
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     out,
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return fmt.Errorf("config decoder: %w", err)
	}
	if err := dec.Decode(section); err != nil {
		return &ParseError{Field: name, Message: err.Error()}
	}
	return nil
}

func validatePolicy(section string, p Policy) error {
	switch p.Mode {
	case ModeFill, ModeStretch, ModeCenter, ModeTile, ModeFit:
	default:
		return &ParseError{Field: section + ".mode", Message: fmt.Sprintf("invalid mode %q", p.Mode)}
	}
	switch p.Sorting {
	case SortingRandom, SortingAscending, SortingDescending:
	default:
		return &ParseError{Field: section + ".sorting", Message: fmt.Sprintf("invalid sorting %q", p.Sorting)}
	}
	switch p.Transition {
	case TransitionNone, TransitionFade:
	default:
		return &ParseError{Field: section + ".transition", Message: fmt.Sprintf("invalid transition %q", p.Transition)}
	}
	switch p.Easing {
	case EasingLinear, EasingEaseIn, EasingEaseOut, EasingEaseInOut:
	default:
		return &ParseError{Field: section + ".easing", Message: fmt.Sprintf("invalid easing %q", p.Easing)}
	}
	if p.Duration < 0 {
		return &ParseError{Field: section + ".duration", Message: "must not be negative"}
	}
	if p.TransitionDuration < 0 {
		return &ParseError{Field: section + ".transition-duration", Message: "must not be negative"}
	}
	if p.QueueSize < 0 {
		return &ParseError{Field: section + ".queue-size", Message: "must not be negative"}
	}
	return nil
}
