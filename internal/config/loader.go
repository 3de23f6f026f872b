package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/srprism/srprism-batch/internal/exception"
	"github.com/srprism/srprism-batch/internal/logger"
)

// Defaults returns the compiled-in baseline Run Configuration. Every
// loading stage starts here and overrides on top of it.
func Defaults() RunConfig {
	return RunConfig{
		MemLimitMB:      4096,
		BatchLimit:      1_000_000,
		StartBatch:      1,
		EndBatch:        1 << 30,
		NThreads:        1,
		NErr:            1,
		MaxQLen:         1024,
		PairDistance:    300,
		PairFuzz:        50,
		ResConfStr:      "1000",
		SearchMode:      SearchModeDefault,
		SAStart:         1,
		SAEnd:           1,
		ResLimit:        10,
		RepeatThreshold: 1,
		StorageBackend:  StorageBackendLocal,
		LogLevel:        "INFO",
	}
}

// Load produces a validated RunConfig by layering, in increasing
// priority: compiled-in defaults, a YAML configuration file decoded into
// a generic map and coerced via github.com/mitchellh/mapstructure (so
// unrecognized keys degrade gracefully rather than failing to parse),
// the SRPRISM_LOG_LEVEL, SRPRISM_RUN_HISTORY_DSN and SRPRISM_GCS_BUCKET
// environment variables (which an optional ".env" file, loaded first via
// github.com/joho/godotenv, may supply), and finally explicit overrides —
// the shape a CLI flag parser would supply, modeled here as a plain
// function for testability.
//
// yamlPath == "" skips the YAML stage; envFilePath == "" loads ".env"
// from the working directory if present (silently skipped if absent).
func Load(envFilePath, yamlPath string, overrides func(*RunConfig)) (*RunConfig, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else if err := godotenv.Load(); err != nil {
		logger.Debugf(".env file not found or could not be loaded: %v", err)
	}

	cfg := Defaults()

	if yamlPath != "" {
		raw, err := os.ReadFile(yamlPath)
		if err != nil {
			return nil, exception.Wrap(exception.KindValidation, "config", "failed to read config file", err)
		}
		var generic map[string]interface{}
		if err := yaml.Unmarshal(raw, &generic); err != nil {
			return nil, exception.Wrap(exception.KindValidation, "config", "failed to parse config file", err)
		}
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			ErrorUnused:      false,
			// snake_case keys (storage_backend) match CamelCase fields.
			MatchName: func(mapKey, fieldName string) bool {
				return strings.EqualFold(strings.ReplaceAll(mapKey, "_", ""), fieldName)
			},
		})
		if err != nil {
			return nil, exception.Wrap(exception.KindValidation, "config", "failed to build config decoder", err)
		}
		if err := decoder.Decode(generic); err != nil {
			return nil, exception.Wrap(exception.KindValidation, "config", "failed to decode config file", err)
		}
	}

	if v := os.Getenv("SRPRISM_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SRPRISM_RUN_HISTORY_DSN"); v != "" {
		cfg.RunHistoryDSN = v
	}
	if v := os.Getenv("SRPRISM_GCS_BUCKET"); v != "" {
		cfg.GCSBucket = v
		cfg.StorageBackend = StorageBackendGCS
	}

	if overrides != nil {
		overrides(&cfg)
	}

	logger.SetLevel(cfg.LogLevel)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
