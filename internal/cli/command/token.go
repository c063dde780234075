package command

import (
	"bufio"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/stockgate/internal/core/domain"
	"github.com/yndnr/stockgate/internal/core/service"
	"github.com/yndnr/stockgate/internal/server/config"
	"github.com/yndnr/stockgate/internal/server/httpserver/handler"
)

// TokenCommand returns the token subcommand group.
func TokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Issue, verify and refresh tokens",
		Subcommands: []*cli.Command{
			{
				Name:  "issue",
				Usage: "Sign a token pair with the configured secret",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "subject",
						Aliases:  []string{"u"},
						Usage:    "User id (sub claim)",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "username",
						Usage: "Username claim",
					},
					&cli.StringSliceFlag{
						Name:    "role",
						Aliases: []string{"r"},
						Usage:   "Role claim (repeatable)",
						Value:   cli.NewStringSlice(domain.RoleUser),
					},
				},
				Action: tokenIssue,
			},
			{
				Name:      "verify",
				Usage:     "Verify a token and print its claims",
				ArgsUsage: "TOKEN",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "type",
						Usage: "Expected token type: access or refresh",
						Value: string(domain.TokenTypeAccess),
					},
					&cli.BoolFlag{
						Name:  "remote",
						Usage: "Ask the server (needs a service or admin credential)",
					},
				},
				Action: tokenVerify,
			},
			{
				Name:      "refresh",
				Usage:     "Exchange a refresh token for a new access token",
				ArgsUsage: "REFRESH_TOKEN",
				Action:    tokenRefresh,
			},
			{
				Name:  "login",
				Usage: "Log in to the server with a username and password",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "username",
						Aliases:  []string{"u"},
						Required: true,
					},
					&cli.StringFlag{
						Name:  "password",
						Usage: "Password (read from stdin when omitted)",
					},
				},
				Action: tokenLogin,
			},
		},
	}
}

// issuedTokens is the output of token issue and token refresh.
type issuedTokens struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token,omitempty"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at,omitzero"`
}

func localTokenService(c *cli.Context) (*service.TokenService, error) {
	cfg, err := loadServerConfig(c)
	if err != nil {
		return nil, err
	}
	return service.NewTokenService(config.ToTokenConfig(cfg))
}

func tokenIssue(c *cli.Context) error {
	tokens, err := localTokenService(c)
	if err != nil {
		return err
	}

	var opts []service.IssueOption
	if name := c.String("username"); name != "" {
		opts = append(opts, service.WithUsername(name))
	}
	pair, err := tokens.Issue(c.String("subject"), c.StringSlice("role"), opts...)
	if err != nil {
		return err
	}

	return render(c, issuedTokens{
		AccessToken:      pair.AccessToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshToken:     pair.RefreshToken,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	})
}

func tokenVerify(c *cli.Context) error {
	raw := c.Args().First()
	if raw == "" {
		return fmt.Errorf("token required")
	}
	typ, ok := domain.ParseTokenType(c.String("type"))
	if !ok {
		return fmt.Errorf("unknown token type %q", c.String("type"))
	}

	if c.Bool("remote") {
		return tokenVerifyRemote(c, raw, typ)
	}

	tokens, err := localTokenService(c)
	if err != nil {
		return err
	}
	claims, err := tokens.Verify(raw, typ)
	if err != nil {
		return fmt.Errorf("token is not valid: %w", err)
	}
	return render(c, claims)
}

func tokenVerifyRemote(c *cli.Context, raw string, typ domain.TokenType) error {
	client, err := newClient(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	var resp handler.VerifyTokenResponse
	req := handler.VerifyTokenRequest{Token: raw, TokenType: string(typ)}
	if err := client.PostJSON(ctx, "/api/v1/tokens/verify", req, &resp); err != nil {
		return err
	}
	if !resp.Valid {
		return fmt.Errorf("token is not valid: [%s] %s", resp.ErrorCode, resp.Message)
	}
	return render(c, resp.Claims)
}

func tokenRefresh(c *cli.Context) error {
	raw := c.Args().First()
	if raw == "" {
		return fmt.Errorf("refresh token required")
	}
	tokens, err := localTokenService(c)
	if err != nil {
		return err
	}
	access, err := tokens.Refresh(raw)
	if err != nil {
		return err
	}
	return render(c, issuedTokens{AccessToken: access.Token, AccessExpiresAt: access.ExpiresAt})
}

func tokenLogin(c *cli.Context) error {
	password := c.String("password")
	if password == "" {
		var err error
		if password, err = readSecret(c, "Password: "); err != nil {
			return err
		}
	}

	client, err := newClient(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	var resp handler.TokenResponse
	req := handler.LoginRequest{Username: c.String("username"), Password: password}
	if err := client.PostJSON(ctx, "/api/v1/auth/login", req, &resp); err != nil {
		return err
	}
	return render(c, resp)
}

// readSecret reads one line from the app's reader, prompting on stderr.
func readSecret(c *cli.Context, prompt string) (string, error) {
	fmt.Fprint(c.App.ErrWriter, prompt)
	line, err := bufio.NewReader(c.App.Reader).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return "", fmt.Errorf("empty input")
	}
	return line, nil
}
