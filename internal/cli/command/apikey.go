package command

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/stockgate/internal/core/domain"
	"github.com/yndnr/stockgate/internal/core/service"
	"github.com/yndnr/stockgate/internal/server/httpserver/handler"
)

// APIKeyCommand returns the apikey subcommand group.
func APIKeyCommand() *cli.Command {
	return &cli.Command{
		Name:    "apikey",
		Aliases: []string{"key"},
		Usage:   "Manage API keys",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Generate an API key (locally, or on the server with --remote)",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "name",
						Aliases:  []string{"n"},
						Usage:    "Key name",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "subject",
						Usage: "Principal id the key authenticates as (defaults to the key id)",
					},
					&cli.StringSliceFlag{
						Name:    "role",
						Aliases: []string{"r"},
						Usage:   "Key role (repeatable): admin, service, user",
						Value:   cli.NewStringSlice(domain.RoleService),
					},
					&cli.BoolFlag{
						Name:  "remote",
						Usage: "Create a runtime key on the server (admin only, lost on restart)",
					},
				},
				Action: apikeyCreate,
			},
			{
				Name:   "list",
				Usage:  "List the server's API keys",
				Action: apikeyList,
			},
			{
				Name:      "enable",
				Usage:     "Enable an API key on the server",
				ArgsUsage: "KEY_ID",
				Action:    func(c *cli.Context) error { return apikeySetEnabled(c, true) },
			},
			{
				Name:      "disable",
				Usage:     "Disable an API key on the server",
				ArgsUsage: "KEY_ID",
				Action:    func(c *cli.Context) error { return apikeySetEnabled(c, false) },
			},
		},
	}
}

// generatedKey is the output of a local apikey create. The fields below
// api_key go into the api_keys section of the server configuration.
type generatedKey struct {
	APIKey     string   `json:"api_key"`
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	SecretHash string   `json:"secret_hash"`
	Subject    string   `json:"subject,omitempty"`
	Roles      []string `json:"roles"`
}

var knownRoles = []string{domain.RoleAdmin, domain.RoleService, domain.RoleUser}

func apikeyCreate(c *cli.Context) error {
	for _, role := range c.StringSlice("role") {
		if !slices.Contains(knownRoles, role) {
			return fmt.Errorf("unknown role %q (want one of %s)", role, strings.Join(knownRoles, ", "))
		}
	}
	if c.Bool("remote") {
		return apikeyCreateRemote(c)
	}

	raw, key, err := service.GenerateAPIKey(c.String("name"), c.String("subject"), c.StringSlice("role"))
	if err != nil {
		return err
	}
	if err := render(c, generatedKey{
		APIKey:     raw,
		ID:         key.KeyID,
		Name:       key.Name,
		SecretHash: key.SecretHash,
		Subject:    key.Subject,
		Roles:      key.Roles,
	}); err != nil {
		return err
	}
	note(c, "\nAdd id, name, secret_hash, subject and roles to api_keys in the server configuration.")
	note(c, "The api_key value is the credential; it is not stored anywhere and cannot be shown again.")
	return nil
}

func apikeyCreateRemote(c *cli.Context) error {
	client, err := newClient(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	req := handler.CreateAPIKeyRequest{
		Name:    c.String("name"),
		Subject: c.String("subject"),
		Roles:   c.StringSlice("role"),
	}
	var resp handler.CreateAPIKeyResponse
	if err := client.PostJSON(ctx, "/api/v1/admin/keys", req, &resp); err != nil {
		return err
	}
	if err := render(c, resp); err != nil {
		return err
	}
	note(c, "\nSave the api_key now: it cannot be retrieved later.")
	return nil
}

func apikeyList(c *cli.Context) error {
	client, err := newClient(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	var resp handler.ListAPIKeysResponse
	if err := client.GetJSON(ctx, "/api/v1/admin/keys", &resp); err != nil {
		return err
	}
	return render(c, resp.Keys)
}

func apikeySetEnabled(c *cli.Context, enabled bool) error {
	keyID := c.Args().First()
	if keyID == "" {
		return fmt.Errorf("key ID required")
	}

	client, err := newClient(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	var resp handler.APIKeyResponse
	path := "/api/v1/admin/keys/" + url.PathEscape(keyID) + "/status"
	if err := client.PostJSON(ctx, path, handler.UpdateAPIKeyStatusRequest{Enabled: &enabled}, &resp); err != nil {
		return err
	}
	return render(c, resp)
}
