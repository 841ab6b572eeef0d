package command

import (
	"github.com/urfave/cli/v2"

	"github.com/yndnr/snapkeep/internal/cli/config"
	"github.com/yndnr/snapkeep/internal/cli/output"
	"github.com/yndnr/snapkeep/internal/infra/buildinfo"
)

// VersionCommand prints build information.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show build information",
		Action: func(c *cli.Context) error {
			return printResult(c, buildinfo.Get())
		},
	}
}

// ConfigCommand groups configuration commands.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration commands",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the merged configuration with secrets masked",
				Action: func(c *cli.Context) error {
					cfg := config.Sanitize(appConfig(c))
					format, err := output.ParseFormat(cfg.Output)
					if err != nil {
						return err
					}
					if format == output.FormatTable {
						format = output.FormatYAML
					}
					return output.NewFormatter(format, false).Format(c.App.Writer, cfg)
				},
			},
			{
				Name:  "path",
				Usage: "Print the default configuration file path",
				Action: func(c *cli.Context) error {
					_, err := c.App.Writer.Write([]byte(config.DefaultConfigPath() + "\n"))
					return err
				},
			},
		},
	}
}
