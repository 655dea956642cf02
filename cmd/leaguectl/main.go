// Command leaguectl is the league admin tool: schema migrations, manual
// recomputes, weekly closes and spreadsheet exports.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/timeguessr-liga/timeguessr-bot/config"
	"github.com/timeguessr-liga/timeguessr-bot/internal/application/command"
	"github.com/timeguessr-liga/timeguessr-bot/internal/bootstrap"
	"github.com/timeguessr-liga/timeguessr-bot/internal/domain/shared"
	"github.com/timeguessr-liga/timeguessr-bot/internal/infrastructure/export"
	"github.com/timeguessr-liga/timeguessr-bot/internal/infrastructure/persistence/postgres"
	"github.com/timeguessr-liga/timeguessr-bot/pkg/timeutil"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "leaguectl: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "leaguectl",
		Usage: "TimeGuessr league administration",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to a YAML config file",
				EnvVars: []string{"CONFIG_FILE"},
			},
		},
		Before: func(c *cli.Context) error {
			if path := c.String("config"); path != "" {
				return os.Setenv("CONFIG_FILE", path)
			}
			return nil
		},
		Commands: []*cli.Command{
			migrateCommand(),
			recomputeDailyCommand(),
			closeWeekCommand(),
			exportCommand(),
		},
	}
}

// withInfra loads the configuration, connects and runs fn.
func withInfra(c *cli.Context, fn func(ctx context.Context, infra *bootstrap.Infrastructure) error) error {
	cfg, err := config.LoadUnvalidated()
	if err != nil {
		return err
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}

	log, closer := bootstrap.NewLogger(cfg, "leaguectl")
	defer closer.Close()

	infra, err := bootstrap.Open(c.Context, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	return fn(c.Context, infra)
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATE
// ══════════════════════════════════════════════════════════════════════════════

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "database migrations",
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply pending migrations",
				Action: func(c *cli.Context) error {
					return withInfra(c, func(ctx context.Context, infra *bootstrap.Infrastructure) error {
						n, err := postgres.NewMigrator(infra.DB).Migrate(ctx)
						if err != nil {
							return err
						}
						fmt.Fprintf(c.App.Writer, "applied %d migration(s)\n", n)
						return nil
					})
				},
			},
			{
				Name:  "down",
				Usage: "roll back the last migration",
				Action: func(c *cli.Context) error {
					return withInfra(c, func(ctx context.Context, infra *bootstrap.Infrastructure) error {
						version, err := postgres.NewMigrator(infra.DB).Rollback(ctx)
						if err != nil {
							return err
						}
						if version == 0 {
							fmt.Fprintln(c.App.Writer, "nothing to roll back")
						} else {
							fmt.Fprintf(c.App.Writer, "rolled back migration %d\n", version)
						}
						return nil
					})
				},
			},
			{
				Name:  "status",
				Usage: "list migrations",
				Action: func(c *cli.Context) error {
					return withInfra(c, func(ctx context.Context, infra *bootstrap.Infrastructure) error {
						status, err := postgres.NewMigrator(infra.DB).Status(ctx)
						if err != nil {
							return err
						}
						w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
						fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED")
						for _, m := range status {
							applied := "pending"
							if m.IsApplied {
								applied = m.AppliedAt.Format(time.RFC3339)
							}
							fmt.Fprintf(w, "%d\t%s\t%s\n", m.Version, m.Name, applied)
						}
						return w.Flush()
					})
				},
			},
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// RECOMPUTE / CLOSE
// ══════════════════════════════════════════════════════════════════════════════

func recomputeDailyCommand() *cli.Command {
	return &cli.Command{
		Name:  "recompute-daily",
		Usage: "rebuild the daily ranking of one game",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "game", Usage: "game number", Required: true},
		},
		Action: func(c *cli.Context) error {
			return withInfra(c, func(ctx context.Context, infra *bootstrap.Infrastructure) error {
				res, err := infra.Application().Recompute.Handle(ctx, command.RecomputeDailyCommand{
					GameNumber: c.Int("game"),
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "game #%d: %d player(s) ranked in %s\n",
					res.GameNumber, len(res.Rankings), res.Duration.Round(time.Millisecond))
				return nil
			})
		},
	}
}

func closeWeekCommand() *cli.Command {
	return &cli.Command{
		Name:  "close-week",
		Usage: "aggregate and finalize a week",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "week", Usage: "any date of the week (YYYY-MM-DD); defaults to the current week"},
		},
		Action: func(c *cli.Context) error {
			return withInfra(c, func(ctx context.Context, infra *bootstrap.Infrastructure) error {
				week, err := resolveWeek(c.String("week"), time.Now(), infra.Config.League.Location)
				if err != nil {
					return err
				}

				res, err := infra.Application().CloseWeek.Handle(ctx, command.CloseWeekCommand{
					WeekStart: week,
					Trigger:   command.TriggerCLI,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "week %s closed: %d player(s), %d award(s), run %s\n",
					res.WeekStart.Format(timeutil.DateLayout), res.Players, len(res.Awards), res.RunID)
				return nil
			})
		},
	}
}

// resolveWeek returns the Monday of the week containing date, or of the
// week containing now when date is empty.
func resolveWeek(date string, now time.Time, loc *time.Location) (time.Time, error) {
	if date == "" {
		return timeutil.StartOfWeek(now, loc), nil
	}
	return timeutil.ParseWeekStart(date, loc)
}

// ══════════════════════════════════════════════════════════════════════════════
// EXPORT
// ══════════════════════════════════════════════════════════════════════════════

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "write weekly awards and the all-time table to an .xlsx file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "week", Usage: "finalized week (YYYY-MM-DD); defaults to the latest"},
			&cli.StringFlag{Name: "out", Usage: "output file or directory", Value: "."},
		},
		Action: func(c *cli.Context) error {
			return withInfra(c, func(ctx context.Context, infra *bootstrap.Infrastructure) error {
				reports := infra.Application().Reports
				loc := infra.Config.League.Location

				var (
					week time.Time
					err  error
				)
				if c.String("week") != "" {
					week, err = timeutil.ParseWeekStart(c.String("week"), loc)
				} else {
					week, err = reports.LatestAwardWeek(ctx)
				}
				hasWeek := true
				if errors.Is(err, shared.ErrNoFinalizedWeek) {
					hasWeek = false
				} else if err != nil {
					return err
				}

				standings := export.Standings{}
				if hasWeek {
					standings.WeekStart = week.Format(timeutil.DateLayout)
					if standings.Weekly, err = reports.WeeklyAwards(ctx, week); err != nil {
						return err
					}
				}
				if standings.AllTime, err = reports.AllTime(ctx, 0); err != nil {
					return err
				}

				path := outputPath(c.String("out"), standings.WeekStart)
				f, err := os.Create(path)
				if err != nil {
					return err
				}
				if err := export.WriteXLSX(f, standings); err != nil {
					_ = f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}

				slog.Info("export written", "path", path, "weekly_rows", len(standings.Weekly), "all_time_rows", len(standings.AllTime))
				fmt.Fprintln(c.App.Writer, path)
				return nil
			})
		},
	}
}

// outputPath puts the default file name inside out when out is a directory.
func outputPath(out, weekStart string) string {
	if info, err := os.Stat(out); err == nil && info.IsDir() {
		return filepath.Join(out, export.FileName(weekStart))
	}
	return out
}
