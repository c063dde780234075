package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/stockgate/internal/core/domain"
)

// HashCommand returns the hash subcommand group.
func HashCommand() *cli.Command {
	return &cli.Command{
		Name:  "hash",
		Usage: "Hash credentials for the server configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "password",
				Usage: "Print the argon2id hash of a password for users[].password_hash",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "password",
						Usage: "Password (read from stdin when omitted)",
					},
				},
				Action: hashPassword,
			},
		},
	}
}

func hashPassword(c *cli.Context) error {
	password := c.String("password")
	if password == "" {
		var err error
		if password, err = readSecret(c, "Password: "); err != nil {
			return err
		}
	}

	hash, err := domain.HashSecret(password)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, hash)
	return nil
}
