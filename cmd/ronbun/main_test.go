package main

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func TestReindexCommandFlags(t *testing.T) {
	app := &cli.App{
		Name: "ronbun",
		Commands: []*cli.Command{
			{
				Name:   "reindex",
				Usage:  "Reembed every ready paper's sections",
				Action: reindexCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of papers to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N papers",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
				},
			},
		},
	}

	t.Run("batch-size has default value of 100", func(t *testing.T) {
		cmd := app.Commands[0]
		var batchFlag *cli.IntFlag
		for _, flag := range cmd.Flags {
			if f, ok := flag.(*cli.IntFlag); ok && f.Name == "batch-size" {
				batchFlag = f
				break
			}
		}
		require.NotNil(t, batchFlag)
		assert.Equal(t, 100, batchFlag.Value)
	})

	t.Run("max-retries has default value of 3", func(t *testing.T) {
		cmd := app.Commands[0]
		var retriesFlag *cli.IntFlag
		for _, flag := range cmd.Flags {
			if f, ok := flag.(*cli.IntFlag); ok && f.Name == "max-retries" {
				retriesFlag = f
				break
			}
		}
		require.NotNil(t, retriesFlag)
		assert.Equal(t, 3, retriesFlag.Value)
	})
}

func TestSetupLogger(t *testing.T) {
	defer slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	t.Run("valid levels", func(t *testing.T) {
		for _, level := range []string{"debug", "info", "warn", "error", "WARN"} {
			app := &cli.App{
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "log-level", Value: level},
				},
				Before: setupLogger,
				Action: func(c *cli.Context) error { return nil },
			}
			assert.NoError(t, app.Run([]string{"ronbun"}), "level %s", level)
		}
	})

	t.Run("invalid level", func(t *testing.T) {
		app := &cli.App{
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "log-level", Value: "loud"},
			},
			Before: setupLogger,
			Action: func(c *cli.Context) error { return nil },
		}
		err := app.Run([]string{"ronbun"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "log level")
	})
}
