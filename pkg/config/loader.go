package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "DOCQA_"

// Load builds a Config from defaults, an optional env file, and DOCQA_*
// environment variables, then validates it. Missing required settings fail
// here rather than on first use.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: load env file %q: %w", envFile, err)
		}
	}
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}
	if err := k.Load(env.Provider(".", env.Opt{
		Prefix:        envPrefix,
		TransformFunc: transformEnvKey,
	}), nil); err != nil {
		return nil, fmt.Errorf("config: load environment: %w", err)
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &cfg,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// transformEnvKey maps DOCQA_SERVER_AUTH_TOKEN to server.auth_token. The
// first underscore after the prefix separates the section from the field.
func transformEnvKey(key, value string) (string, any) {
	trimmed := strings.ToLower(strings.TrimPrefix(key, envPrefix))
	parts := strings.SplitN(trimmed, "_", 2)
	if len(parts) != 2 {
		return trimmed, value
	}
	return parts[0] + "." + parts[1], value
}

// Validate checks struct-level constraints plus the cross-field rules the
// tags cannot express.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: configuration is required")
	}
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config: validation failed: %w", err)
	}
	if cfg.Pipeline.ChunkOverlap >= cfg.Pipeline.ChunkSize {
		return fmt.Errorf(
			"config: pipeline chunk_overlap %d must be smaller than chunk_size %d",
			cfg.Pipeline.ChunkOverlap,
			cfg.Pipeline.ChunkSize,
		)
	}
	if cfg.VectorDB.Provider != "memory" && strings.TrimSpace(cfg.VectorDB.DSN) == "" {
		return fmt.Errorf("config: vectordb dsn is required for provider %q", cfg.VectorDB.Provider)
	}
	return nil
}
