package command

import (
	"fmt"
	"sort"

	"github.com/urfave/cli/v2"

	cliconfig "github.com/yndnr/stockgate/internal/cli/config"
)

// ProfileCommand returns the profile subcommand group.
func ProfileCommand() *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "Manage saved server profiles",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List saved profiles",
				Action: profileList,
			},
			{
				Name:      "save",
				Usage:     "Save --server, --api-key and --ca-file under NAME",
				ArgsUsage: "NAME",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "use",
						Usage: "Make the profile current",
					},
				},
				Action: profileSave,
			},
			{
				Name:      "use",
				Usage:     "Make NAME the current profile",
				ArgsUsage: "NAME",
				Action:    profileUse,
			},
			{
				Name:      "remove",
				Usage:     "Delete a saved profile",
				ArgsUsage: "NAME",
				Action:    profileRemove,
			},
		},
	}
}

// profileRow is one row of profile list output. API keys are never printed.
type profileRow struct {
	Name    string `json:"name"`
	Server  string `json:"server"`
	Current bool   `json:"current"`
	APIKey  bool   `json:"has_api_key"`
	CAFile  string `json:"ca_file,omitempty" table:"wide"`
}

func profileList(c *cli.Context) error {
	cfg := cliConfig(c)
	names := make([]string, 0, len(cfg.Profiles))
	for name := range cfg.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([]profileRow, 0, len(names))
	for _, name := range names {
		p := cfg.Profiles[name]
		rows = append(rows, profileRow{
			Name:    name,
			Server:  p.Server,
			Current: name == cfg.Current,
			APIKey:  p.APIKey != "",
			CAFile:  p.CAFile,
		})
	}
	return render(c, rows)
}

func profileSave(c *cli.Context) error {
	name := c.Args().First()
	if name == "" {
		return fmt.Errorf("profile name required")
	}
	if !c.IsSet("server") {
		return fmt.Errorf("--server is required")
	}

	cfg := cliConfig(c)
	cfg.Profiles[name] = cliconfig.Profile{
		Server: c.String("server"),
		APIKey: c.String("api-key"),
		CAFile: c.String("ca-file"),
	}
	if c.Bool("use") || cfg.Current == "" {
		cfg.Current = name
	}
	if err := cliconfig.Save(cfg, c.String("cli-config")); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "profile %q saved\n", name)
	return nil
}

func profileUse(c *cli.Context) error {
	name := c.Args().First()
	cfg := cliConfig(c)
	if _, ok := cfg.Profiles[name]; !ok {
		return fmt.Errorf("unknown profile %q", name)
	}
	cfg.Current = name
	if err := cliconfig.Save(cfg, c.String("cli-config")); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "switched to profile %q\n", name)
	return nil
}

func profileRemove(c *cli.Context) error {
	name := c.Args().First()
	cfg := cliConfig(c)
	if _, ok := cfg.Profiles[name]; !ok {
		return fmt.Errorf("unknown profile %q", name)
	}
	delete(cfg.Profiles, name)
	if cfg.Current == name {
		cfg.Current = ""
	}
	if err := cliconfig.Save(cfg, c.String("cli-config")); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "profile %q removed\n", name)
	return nil
}
