package command

import (
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/stockgate/internal/core/domain"
	"github.com/yndnr/stockgate/internal/core/service"
	"github.com/yndnr/stockgate/internal/server/config"
	"github.com/yndnr/stockgate/internal/server/httpserver/handler"
	"github.com/yndnr/stockgate/internal/storage"
	"github.com/yndnr/stockgate/internal/telemetry/logger"
)

// RateLimitCommand returns the ratelimit subcommand group.
func RateLimitCommand() *cli.Command {
	return &cli.Command{
		Name:    "ratelimit",
		Aliases: []string{"rl"},
		Usage:   "Inspect and exercise the rate limiter",
		Subcommands: []*cli.Command{
			{
				Name:   "policy",
				Usage:  "Show the server's active rate limit policy (admin only)",
				Action: ratelimitPolicy,
			},
			{
				Name:  "probe",
				Usage: "Send checks for one client key through the configured counter store",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "key",
						Usage: "Client key to count (counters share the server's key prefix)",
						Value: "probe:stockgate-cli",
					},
					&cli.IntFlag{
						Name:    "requests",
						Aliases: []string{"n"},
						Usage:   "Number of checks",
						Value:   1,
					},
					&cli.Int64Flag{
						Name:  "limit",
						Usage: "Quota per window (default: rate_limit.limit)",
					},
					&cli.DurationFlag{
						Name:  "window",
						Usage: "Window length (default: rate_limit.window)",
					},
				},
				Action: ratelimitProbe,
			},
		},
	}
}

func ratelimitPolicy(c *cli.Context) error {
	client, err := newClient(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	var resp handler.RateLimitPolicyResponse
	if err := client.GetJSON(ctx, "/api/v1/admin/ratelimit", &resp); err != nil {
		return err
	}
	return render(c, resp)
}

// probeResult is one row of ratelimit probe output.
type probeResult struct {
	Attempt    int       `json:"attempt"`
	Allowed    bool      `json:"allowed"`
	Count      int64     `json:"count"`
	Remaining  int64     `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int64     `json:"retry_after_seconds"`
	Degraded   bool      `json:"degraded"`
	Error      string    `json:"error,omitempty" table:"wide"`
}

func ratelimitProbe(c *cli.Context) error {
	cfg, err := loadServerConfig(c)
	if err != nil {
		return err
	}
	n := c.Int("requests")
	if n < 1 {
		return fmt.Errorf("--requests must be at least 1")
	}
	limit := cfg.RateLimit.Limit
	if c.IsSet("limit") {
		limit = c.Int64("limit")
	}
	window := cfg.RateLimit.Window
	if c.IsSet("window") {
		window = c.Duration("window")
	}

	log := logger.NewNop()
	storageCfg, err := config.ToStorageConfig(cfg, log)
	if err != nil {
		return err
	}
	engine, err := storage.Open(c.Context, storageCfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	limiter, err := service.NewRateLimiter(engine.Counters(), config.ToRateLimiterConfig(cfg),
		service.WithRateLimiterLogger(log))
	if err != nil {
		return err
	}

	results := make([]probeResult, 0, n)
	for i := 1; i <= n; i++ {
		d, err := limiter.CheckAndIncrement(c.Context, c.String("key"), limit, window)
		// Argument errors carry no decision; store failures do.
		if err != nil && !errors.Is(err, domain.ErrRateLimitExceeded) && d.ResetAt.IsZero() {
			return err
		}
		r := probeResult{
			Attempt:    i,
			Allowed:    d.Allowed,
			Count:      d.Count,
			Remaining:  d.Remaining,
			ResetAt:    d.ResetAt,
			RetryAfter: d.RetryAfterSeconds(),
			Degraded:   d.Degraded,
		}
		if err != nil {
			r.Error = domain.GetErrorCode(err)
		}
		results = append(results, r)
	}

	if engine.Backend() == storage.BackendMemory {
		note(c, "\nnote: the memory backend is private to this process; counts do not reflect a running server.")
	}
	return render(c, results)
}
