package command

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	cliconfig "github.com/yndnr/stockgate/internal/cli/config"
	"github.com/yndnr/stockgate/internal/cli/connection"
	"github.com/yndnr/stockgate/internal/cli/output"
	"github.com/yndnr/stockgate/internal/infra/buildinfo"
	"github.com/yndnr/stockgate/internal/server/config"
)

const cliConfigKey = "cliConfig"

// requestTimeout bounds every remote command.
const requestTimeout = 30 * time.Second

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "stockgate-cli",
		Usage:   "stockgate command-line tool",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			TokenCommand(),
			HashCommand(),
			APIKeyCommand(),
			ConfigCommand(),
			RateLimitCommand(),
			StatusCommand(),
			ProfileCommand(),
		},
		Metadata: map[string]any{},
		Before: func(c *cli.Context) error {
			cfg, err := cliconfig.Load(c.String("cli-config"))
			if err != nil {
				return err
			}
			c.App.Metadata[cliConfigKey] = cfg
			return nil
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "cli-config",
			Usage:   "CLI settings file (default ~/.stockgate/cli.yaml)",
			EnvVars: []string{"STOCKGATE_CLI_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "profile",
			Aliases: []string{"p"},
			Usage:   "Saved server profile",
		},
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "stockgate-server base URL (e.g. http://localhost:8080)",
			EnvVars: []string{"STOCKGATE_CLI_SERVER"},
		},
		&cli.StringFlag{
			Name:    "api-key",
			Aliases: []string{"K"},
			Usage:   "API key as <key_id>:<secret>",
			EnvVars: []string{"STOCKGATE_CLI_API_KEY"},
		},
		&cli.StringFlag{
			Name:    "token",
			Aliases: []string{"t"},
			Usage:   "Bearer access token (takes precedence over --api-key)",
			EnvVars: []string{"STOCKGATE_CLI_TOKEN"},
		},
		&cli.StringFlag{
			Name:  "ca-file",
			Usage: "PEM CA bundle for a server certificate from a private CA",
		},
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Server configuration file for local commands",
			EnvVars: []string{"STOCKGATE_CONFIG_FILE"},
		},
		&cli.StringFlag{
			Name:  "env-file",
			Usage: ".env file applied before the environment",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
	}
}

// GlobalFlags holds the resolved global settings.
type GlobalFlags struct {
	Server string
	APIKey string
	Token  string
	CAFile string

	ConfigFile string
	EnvFile    string

	Output output.Format
	Wide   bool
}

// ParseGlobalFlags resolves global flags, falling back to the selected
// profile and the CLI settings file.
func ParseGlobalFlags(c *cli.Context) (*GlobalFlags, error) {
	cfg := cliConfig(c)

	profile, ok := cfg.Profile(c.String("profile"))
	if !ok {
		return nil, fmt.Errorf("unknown profile %q", c.String("profile"))
	}

	format := cfg.Output
	if c.IsSet("output") {
		format = c.String("output")
	}
	out, err := output.ParseFormat(format)
	if err != nil {
		return nil, err
	}

	flags := &GlobalFlags{
		Server:     profile.Server,
		APIKey:     profile.APIKey,
		Token:      c.String("token"),
		CAFile:     profile.CAFile,
		ConfigFile: c.String("config"),
		EnvFile:    c.String("env-file"),
		Output:     out,
		Wide:       c.Bool("wide"),
	}
	if c.IsSet("server") {
		flags.Server = c.String("server")
	}
	if c.IsSet("api-key") {
		flags.APIKey = c.String("api-key")
	}
	if c.IsSet("ca-file") {
		flags.CAFile = c.String("ca-file")
	}
	return flags, nil
}

func cliConfig(c *cli.Context) *cliconfig.CLIConfig {
	if cfg, ok := c.App.Metadata[cliConfigKey].(*cliconfig.CLIConfig); ok {
		return cfg
	}
	return cliconfig.Default()
}

// newClient builds an API client from the global flags.
func newClient(c *cli.Context) (*connection.HTTPClient, error) {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return nil, err
	}
	opts := []connection.Option{connection.WithTimeout(requestTimeout)}
	if flags.Token != "" {
		opts = append(opts, connection.WithBearer(flags.Token))
	}
	if flags.APIKey != "" {
		opts = append(opts, connection.WithAPIKey(flags.APIKey))
	}
	if flags.CAFile != "" {
		opts = append(opts, connection.WithCAFile(flags.CAFile))
	}
	return connection.NewHTTPClient(flags.Server, opts...)
}

func requestContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Context, requestTimeout)
}

// loadServerConfig loads and verifies the server configuration named by
// --config and --env-file.
func loadServerConfig(c *cli.Context) (*config.ServerConfig, error) {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return nil, err
	}
	return config.Load(flags.ConfigFile, flags.EnvFile)
}

// render writes data in the selected output format.
func render(c *cli.Context, data any) error {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}
	return output.NewFormatter(flags.Output, flags.Wide).Format(c.App.Writer, data)
}

// note prints a human-facing hint that must not pollute structured output.
func note(c *cli.Context, format string, args ...any) {
	fmt.Fprintf(c.App.ErrWriter, format+"\n", args...)
}
