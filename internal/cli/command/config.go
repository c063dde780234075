package command

import (
	"fmt"
	"sort"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/stockgate/internal/cli/output"
	"github.com/yndnr/stockgate/internal/server/config"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect the server configuration",
		Subcommands: []*cli.Command{
			{
				Name:   "validate",
				Usage:  "Load and verify the server configuration",
				Action: configValidate,
			},
			{
				Name:   "show",
				Usage:  "Print the effective configuration with secrets masked",
				Action: configShow,
			},
		},
	}
}

func configValidate(c *cli.Context) error {
	cfg, err := loadServerConfig(c)
	if err != nil {
		return err
	}
	accounts := "config"
	if cfg.Directory.Postgres.DSN != "" {
		accounts = "config+postgres"
	}
	fmt.Fprintf(c.App.Writer, "configuration is valid (%d users, %d api keys, accounts %s, storage %s)\n",
		len(cfg.Users), len(cfg.APIKeys), accounts, cfg.Storage.Backend)
	return nil
}

func configShow(c *cli.Context) error {
	cfg, err := loadServerConfig(c)
	if err != nil {
		return err
	}
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}

	m := config.ToMap(config.Sanitize(cfg))
	if flags.Output != output.FormatTable {
		return render(c, m)
	}

	flat := make(map[string]any)
	flatten("", m, flat)
	table := &output.Table{Headers: []string{"KEY", "VALUE"}}
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		table.AddRow(k, fmt.Sprint(flat[k]))
	}
	return render(c, table)
}

// flatten writes nested maps as dotted keys. Lists of maps are indexed.
func flatten(prefix string, v any, out map[string]any) {
	join := func(k string) string {
		if prefix == "" {
			return k
		}
		return prefix + "." + k
	}

	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			flatten(join(k), child, out)
		}
	case []any:
		nested := false
		for _, item := range t {
			if _, ok := item.(map[string]any); ok {
				nested = true
				break
			}
		}
		if !nested {
			out[prefix] = t
			return
		}
		for i, item := range t {
			flatten(fmt.Sprintf("%s[%d]", prefix, i), item, out)
		}
	default:
		out[prefix] = t
	}
}
