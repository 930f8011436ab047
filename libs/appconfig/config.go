// Package appconfig loads the file-based secrets the running service
// needs at startup: bare secret files under res/, read once and never
// logged raw.
package appconfig

import (
	"context"
	"fmt"
	"os"
	"strings"

	"athena/libs/aggregator"
	"athena/libs/observability"
)

// Paths are the default on-disk locations of the three secret files.
const (
	TelegramKeyPath = "res/telegram.key"
	PolygonKeyPath  = "res/polygon.key"
	MOEXKeyPath     = "res/moex.key"
)

// Config holds the credentials read from res/ at startup.
type Config struct {
	// TelegramToken authenticates the chat transport. Required.
	TelegramToken string

	// PolygonKeyPresent records whether res/polygon.key exists. The
	// Polygon adapter is not implemented (DESIGN.md), so the key
	// itself is never read into a usable credential, only noted as
	// present or absent.
	PolygonKeyPresent bool

	// MOEXCredentials authenticates the MOEX-analytic adapter. Absent
	// when res/moex.key does not exist or is empty; cmd/athena then does
	// not register the analytic adapter, so references to it fail with
	// ticker.ErrUnknownAggregator.
	MOEXCredentials aggregator.Credentials
}

// Load reads the secret files rooted at dir. telegram.key is
// required: its absence is a fatal startup error. polygon.key and
// moex.key are optional.
func Load(dir string) (Config, error) {
	var cfg Config

	token, err := os.ReadFile(join(dir, TelegramKeyPath))
	if err != nil {
		return Config{}, fmt.Errorf("read telegram key: %w", err)
	}
	cfg.TelegramToken = strings.TrimSpace(string(token))
	if cfg.TelegramToken == "" {
		return Config{}, fmt.Errorf("telegram key at %s is empty", TelegramKeyPath)
	}

	if _, err := os.Stat(join(dir, PolygonKeyPath)); err == nil {
		cfg.PolygonKeyPresent = true
	}

	if raw, err := os.ReadFile(join(dir, MOEXKeyPath)); err == nil {
		creds, parseErr := parseMOEXCredentials(raw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("parse moex key: %w", parseErr)
		}
		cfg.MOEXCredentials = creds
	}

	return cfg, nil
}

func join(dir, rel string) string {
	if dir == "" {
		return rel
	}
	return dir + "/" + rel
}

func parseMOEXCredentials(raw []byte) (aggregator.Credentials, error) {
	fields := strings.Fields(string(raw))
	if len(fields) == 0 {
		return aggregator.Credentials{}, nil
	}
	if len(fields) != 2 {
		return aggregator.Credentials{}, fmt.Errorf("expected \"login password\", got %d field(s)", len(fields))
	}
	return aggregator.Credentials{Login: fields[0], Password: fields[1]}, nil
}

// LogLoaded emits one structured summary of what was loaded, with the
// MOEX credentials redacted before they ever reach a log line.
func LogLoaded(ctx context.Context, cfg Config) {
	fields := observability.RedactValue(map[string]any{
		"telegram_token_present": cfg.TelegramToken != "",
		"polygon_key_present":    cfg.PolygonKeyPresent,
		"moex_credentials": map[string]any{
			"login":    cfg.MOEXCredentials.Login,
			"password": cfg.MOEXCredentials.Password,
		},
	})
	m, _ := fields.(map[string]any)
	observability.LogEvent(ctx, "info", "config_loaded", m)
}
