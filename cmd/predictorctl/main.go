// Command predictorctl administers a prediction contest from the shell.
//
// Usage:
//
//	predictorctl migrate
//	predictorctl import fixtures fixtures.csv
//	predictorctl import results results.csv
//	predictorctl outcomes set --playoffs CSK,MI,RCB,KKR --finalists CSK,RCB --champion CSK
//	predictorctl outcomes clear
//	predictorctl leaderboard --limit 10
//	predictorctl leaderboard --csv > leaderboard.csv
//	predictorctl weekly --week 3
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/okian/predictor/internal/adapters/repository"
	service "github.com/okian/predictor/internal/app"
	"github.com/okian/predictor/internal/config"
	"github.com/okian/predictor/pkg/logger"
)

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "predictorctl",
		Short:        "Prediction contest administration CLI",
		SilenceUsage: true,
	}

	root.AddCommand(migrateCmd())
	root.AddCommand(importCmd())
	root.AddCommand(outcomesCmd())
	root.AddCommand(leaderboardCmd())
	root.AddCommand(weeklyCmd())
	root.AddCommand(statsCmd())
	return root
}

// --------------------------------------------------------------------------
// migrate
// --------------------------------------------------------------------------

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the store schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Start migrates; nothing else to do.
			return runWith(cmd, func(context.Context, *service.Service) error {
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// import
// --------------------------------------------------------------------------

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import fixtures or results from CSV",
	}
	cmd.AddCommand(importFileCmd("fixtures", "Import fixtures (match_id, match_date, team_a, team_b, week)",
		func(s *service.Service) func(context.Context, io.Reader) (int, error) { return s.ImportFixturesCSV }))
	cmd.AddCommand(importFileCmd("results", "Import results (match_id, winner)",
		func(s *service.Service) func(context.Context, io.Reader) (int, error) { return s.ImportResultsCSV }))
	return cmd
}

func importFileCmd(kind, short string, pick func(*service.Service) func(context.Context, io.Reader) (int, error)) *cobra.Command {
	return &cobra.Command{
		Use:   kind + " <file>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			return runWith(cmd, func(ctx context.Context, svc *service.Service) error {
				n, err := pick(svc)(ctx, f)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d %s\n", n, kind)
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// outcomes
// --------------------------------------------------------------------------

func outcomesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outcomes",
		Short: "Show, set or clear the actual season outcomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWith(cmd, func(ctx context.Context, svc *service.Service) error {
				out, err := svc.Outcomes(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.AddCommand(outcomesSetCmd())
	cmd.AddCommand(outcomesClearCmd())
	return cmd
}

func outcomesSetCmd() *cobra.Command {
	var picks service.SeasonPicks
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set playoff teams, finalists and champion",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWith(cmd, func(ctx context.Context, svc *service.Service) error {
				out, err := svc.SetOutcomes(ctx, picks)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.Flags().StringSliceVar(&picks.PlayoffTeams, "playoffs", nil, "The 4 playoff teams")
	cmd.Flags().StringSliceVar(&picks.Finalists, "finalists", nil, "The 2 finalists")
	cmd.Flags().StringVar(&picks.Champion, "champion", "", "The champion")
	_ = cmd.MarkFlagRequired("playoffs")
	_ = cmd.MarkFlagRequired("finalists")
	_ = cmd.MarkFlagRequired("champion")
	return cmd
}

func outcomesClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Unset every actual outcome",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWith(cmd, func(ctx context.Context, svc *service.Service) error {
				if err := svc.ClearOutcomes(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "outcomes cleared")
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// standings
// --------------------------------------------------------------------------

func leaderboardCmd() *cobra.Command {
	var (
		limit  int
		asCSV  bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the ranked leaderboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit must not be negative")
			}
			return runWith(cmd, func(ctx context.Context, svc *service.Service) error {
				rows, err := svc.Leaderboard(ctx, limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch {
				case asCSV:
					return service.WriteLeaderboardCSV(out, rows)
				case asJSON:
					return printJSON(out, rows)
				}
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "RANK\tNAME\tEMAIL\tMATCH\tPLAYOFF\tFINALIST\tCHAMPION\tTOTAL")
				for _, r := range rows {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
						r.Rank, r.Name, r.Email, r.MatchPoints, r.PlayoffPoints,
						r.FinalistPoints, r.ChampionPoints, r.TotalPoints)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Show only the top N rows (0 for all)")
	cmd.Flags().BoolVar(&asCSV, "csv", false, "Write CSV instead of a table")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Write JSON instead of a table")
	cmd.MarkFlagsMutuallyExclusive("csv", "json")
	return cmd
}

func weeklyCmd() *cobra.Command {
	var week int
	cmd := &cobra.Command{
		Use:   "weekly",
		Short: "Print weekly winners",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWith(cmd, func(ctx context.Context, svc *service.Service) error {
				if cmd.Flags().Changed("week") {
					summary, err := svc.Week(ctx, week)
					if err != nil {
						return err
					}
					return printJSON(cmd.OutOrStdout(), summary)
				}
				weeks, err := svc.Weekly(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), weeks)
			})
		},
	}
	cmd.Flags().IntVar(&week, "week", 0, "Show a single week")
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print row counts and contest settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWith(cmd, func(ctx context.Context, svc *service.Service) error {
				stats, err := svc.Stats(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), stats)
			})
		},
	}
}

// --------------------------------------------------------------------------
// helpers
// --------------------------------------------------------------------------

// runWith loads config, opens the store and runs fn against a started service.
func runWith(cmd *cobra.Command, fn func(ctx context.Context, svc *service.Service) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	// Logs go to stderr so command output stays pipeable.
	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithOutput(cmd.ErrOrStderr())); err != nil {
		return err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		_ = logger.SetLevelString("info")
	}

	cutoff, _, err := cfg.CutoffTime()
	if err != nil {
		return err
	}

	store, err := repository.Open(ctx, repository.Config{
		Backend:     cfg.Store,
		DatabaseURL: cfg.DatabaseURL,
		SQLitePath:  cfg.SQLitePath,
	}, repository.WithMaxConns(int32(cfg.DBMaxConns))) //nolint:gosec // validated pool size
	if err != nil {
		return err
	}

	svc := service.New(
		service.WithStore(store),
		service.WithRubric(cfg.Points),
		service.WithCutoff(cutoff),
		service.WithLogger(logger.Named("predictorctl")),
	)
	if err := svc.Start(ctx); err != nil {
		_ = store.Close()
		return err
	}
	defer svc.Stop()

	return fn(ctx, svc)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
