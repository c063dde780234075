package command

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/stockgate/internal/cli/connection"
	"github.com/yndnr/stockgate/internal/server/httpserver/handler"
)

// StatusCommand returns the status command.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show server health and counter store status",
		Action: status,
	}
}

func status(c *cli.Context) error {
	client, err := newClient(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := client.Get(ctx, "/health")
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	// A fail-closed server reports a down counter store with 503 and the
	// regular health body.
	if resp.StatusCode != http.StatusServiceUnavailable {
		var health handler.HealthResponse
		if err := connection.ParseResponse(resp, &health); err != nil {
			return err
		}
		return render(c, health)
	}

	defer resp.Body.Close()
	var health handler.HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("server unavailable (status %d)", resp.StatusCode)
	}
	if err := render(c, health); err != nil {
		return err
	}
	return fmt.Errorf("server is not serving requests: counter store %s", health.Store.Status)
}
