package license

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/mod/semver"
)

// Checker periodically refreshes the license status and looks for updates.
type Checker struct {
	client   *Client
	interval time.Duration
	logger   *slog.Logger
}

// NewChecker creates a checker that runs every interval.
func NewChecker(client *Client, interval time.Duration, logger *slog.Logger) *Checker {
	return &Checker{client: client, interval: interval, logger: logger}
}

// Run checks once immediately and then on every tick until ctx is done.
func (c *Checker) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		c.CheckOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// CheckOnce refreshes the status and reports whether a newer version exists.
// A missing key skips both calls.
func (c *Checker) CheckOnce(ctx context.Context) (updateAvailable bool) {
	key, err := c.client.options.GetOption(ctx, OptionKey)
	if err != nil {
		c.logger.WarnContext(ctx, "reading license key", slog.String("error", err.Error()))
		return false
	}
	if key == "" {
		c.logger.DebugContext(ctx, "no license key, skipping license check")
		return false
	}

	status, err := c.client.Check(ctx, key)
	if err != nil {
		c.logger.WarnContext(ctx, "license check failed", slog.String("error", err.Error()))
	} else if status != StatusValid {
		c.logger.WarnContext(ctx, "license not valid", slog.String("status", status))
	}

	latest, err := c.client.LatestVersion(ctx, key)
	if err != nil {
		c.logger.WarnContext(ctx, "version check failed", slog.String("error", err.Error()))
		return false
	}
	if !NewerVersion(latest, c.client.cfg.Version) {
		return false
	}

	c.logger.InfoContext(ctx, "update available",
		slog.String("current", c.client.cfg.Version),
		slog.String("latest", latest),
	)
	return true
}

// NewerVersion reports whether latest is a higher semantic version than current.
// Versions may omit the "v" prefix. Unparseable versions are never newer.
func NewerVersion(latest, current string) bool {
	l, c := canonical(latest), canonical(current)
	if !semver.IsValid(l) || !semver.IsValid(c) {
		return false
	}
	return semver.Compare(l, c) > 0
}

func canonical(v string) string {
	v = strings.TrimSpace(v)
	if v != "" && !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
