// Package config loads server configuration from a TOML file overlaid with
// environment variables, grounded on the teacher's internal/config/loader
// package: TOMLLoader for the file, EnvLoader for the overlay, DeepMerge to
// combine them with the environment taking priority.
package config

import (
	"fmt"
	"time"

	"github.com/dshills/editorsrv/internal/config/loader"
)

// ServerConfig is the editor server's runtime configuration.
type ServerConfig struct {
	ListenAddr        string
	URLPrefix         string
	MessageTimeout    time.Duration
	SelfHostedDefault bool
	LanguageTablePath string
	LogLevel          string
}

// maxIncludeDepth bounds how many levels of "@include" a TOML config file
// may nest before Load gives up.
const maxIncludeDepth = 8

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() ServerConfig {
	return ServerConfig{
		ListenAddr:        ":8080",
		URLPrefix:         "/codechat",
		MessageTimeout:    10 * time.Second,
		SelfHostedDefault: false,
		LogLevel:          "info",
	}
}

// Load reads tomlPath (if it exists) and overlays the EDITORSRV_-prefixed
// environment, in that priority order, onto Default().
func Load(tomlPath string) (ServerConfig, error) {
	cfg := Default()

	// LoadWithIncludes, not the plain Load, so a server.toml may pull in
	// shared base config via "@include" (e.g. a dev/staging overlay
	// including a common.toml).
	fileMap, err := loader.NewTOMLLoader(tomlPath).LoadWithIncludes(tomlPath, maxIncludeDepth)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}

	envMap, err := loader.NewEnvLoader("EDITORSRV_").Load()
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}

	merged := loader.DeepMerge(loader.Clone(fileMap), envMap)
	applyServerSection(&cfg, merged["server"])
	applyLexerSection(&cfg, merged["lexer"])
	if logging, ok := merged["logging"].(map[string]any); ok {
		if lvl, ok := logging["level"].(string); ok && lvl != "" {
			cfg.LogLevel = lvl
		}
	}
	return cfg, nil
}

func applyServerSection(cfg *ServerConfig, v any) {
	section, ok := v.(map[string]any)
	if !ok {
		return
	}
	if s, ok := section["listenAddr"].(string); ok && s != "" {
		cfg.ListenAddr = s
	}
	if s, ok := section["urlPrefix"].(string); ok && s != "" {
		cfg.URLPrefix = s
	}
	if b, ok := section["selfHostedDefault"].(bool); ok {
		cfg.SelfHostedDefault = b
	}
	switch t := section["messageTimeout"].(type) {
	case time.Duration:
		cfg.MessageTimeout = t
	case int64:
		cfg.MessageTimeout = time.Duration(t) * time.Second
	case string:
		if d, err := time.ParseDuration(t); err == nil {
			cfg.MessageTimeout = d
		}
	}
}

func applyLexerSection(cfg *ServerConfig, v any) {
	section, ok := v.(map[string]any)
	if !ok {
		return
	}
	if s, ok := section["languageTablePath"].(string); ok && s != "" {
		cfg.LanguageTablePath = s
	}
}
