package webhook

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ay9334524-ux/mecfinder-backend/internal/config"
)

// FromGlobalConfig converts config.WebhookConfig to webhook.Config.
func FromGlobalConfig(wc config.WebhookConfig) (Config, error) {
	if wc.Secret == "" {
		return Config{}, fmt.Errorf("webhook secret is not configured")
	}
	maxBodySize, err := parseMaxBodySize(wc.MaxBodySize)
	if err != nil {
		return Config{}, fmt.Errorf("webhook: invalid max_body_size %q: %w", wc.MaxBodySize, err)
	}
	header := wc.SignatureHeader
	if header == "" {
		header = DefaultSignatureHeader
	}
	return Config{
		Listen:          wc.Listen,
		Path:            wc.Path,
		Secret:          wc.Secret,
		SignatureHeader: header,
		MaxBodySize:     maxBodySize,
	}, nil
}

// parseMaxBodySize parses sizes like "1MB", "512KB" or "2048576".
// Empty means DefaultMaxBodySize.
func parseMaxBodySize(size string) (int64, error) {
	if size == "" {
		return DefaultMaxBodySize, nil
	}

	upper := strings.ToUpper(strings.TrimSpace(size))
	multiplier := int64(1)
	for _, unit := range []struct {
		suffix string
		mult   int64
	}{{"KB", 1 << 10}, {"MB", 1 << 20}, {"GB", 1 << 30}} {
		if strings.HasSuffix(upper, unit.suffix) {
			multiplier = unit.mult
			upper = strings.TrimSuffix(upper, unit.suffix)
			break
		}
	}

	value, err := strconv.ParseInt(strings.TrimSpace(upper), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size value: %w", err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("size must be positive")
	}
	result := value * multiplier
	if result/multiplier != value {
		return 0, fmt.Errorf("size too large")
	}
	return result, nil
}
