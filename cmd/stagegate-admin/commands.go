package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/stagegate/internal/adapters/credential"
	"github.com/okian/stagegate/internal/adapters/repository"
	app "github.com/okian/stagegate/internal/app"
	"github.com/okian/stagegate/internal/config"
	"github.com/okian/stagegate/internal/domain/model"
	"github.com/okian/stagegate/internal/domain/token"
	"github.com/okian/stagegate/internal/seeding"
	"github.com/okian/stagegate/pkg/logger"
)

// newRootCmd builds the command tree. Store-backed commands load the server
// configuration, so they act on the same database the server uses.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "stagegate-admin",
		Short: "Administer a stagegate store",
		Long: `Seed and inspect the store used by the stagegate server.

Available subcommands:
  seed             - write stage definitions, region start times and demo teams
  set-region-start - open a region at an instant
  leaderboard      - rebuild and print a leaderboard
  teams            - list team progress
  token            - print the token for a stage and three values`,
		SilenceUsage: true,
	}
	root.AddCommand(
		newSeedCmd(),
		newSetRegionStartCmd(),
		newLeaderboardCmd(),
		newTeamsCmd(),
		newTokenCmd(),
	)
	return root
}

// withStore loads configuration, opens the configured store and runs fn.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.Config, store repository.Store) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		_ = logger.SetLevelString("info")
	}
	store, err := repository.Open(ctx, cfg.StoreDriver, cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Get().Error(ctx, "store close failed", logger.Error(err))
		}
	}()
	return fn(ctx, cfg, store)
}

func newSeedCmd() *cobra.Command {
	var (
		demoTeams       bool
		defaultSchedule bool
		skipChallenges  bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write stage definitions, region start times and demo teams",
		Long: `Write the five stage definitions and the configured region start times.

Region start times come from region_start_times in the configuration, or from
the built-in schedule with --default-schedule. Existing demo teams are kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, func(ctx context.Context, cfg *config.Config, store repository.Store) error {
				schedule, err := cfg.Schedule()
				if err != nil {
					return err
				}
				if defaultSchedule {
					schedule = seeding.DefaultSchedule()
				}
				res, err := seeding.Seed(ctx, store, seeding.Options{
					Challenges: !skipChallenges,
					Schedule:   schedule,
					DemoTeams:  demoTeams,
					Hasher:     credential.NewBcrypt(credential.WithCost(cfg.BcryptCost)),
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "challenges=%d regions=%d teams=%d skipped=%d\n",
					res.Challenges, res.Regions, res.Teams, res.Skipped)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&demoTeams, "demo-teams", false, "also create the demo teams")
	cmd.Flags().BoolVar(&defaultSchedule, "default-schedule", false, "use the built-in region schedule")
	cmd.Flags().BoolVar(&skipChallenges, "skip-challenges", false, "leave stage definitions untouched")
	return cmd
}

func newSetRegionStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "set-region-start REGION TIME",
		Short:   "Open a region at an RFC 3339 instant",
		Example: "  stagegate-admin set-region-start EMEA 2025-10-16T10:00:00Z",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := model.ParseRegion(strings.ToUpper(args[0]))
			if err != nil {
				return err
			}
			at, err := time.Parse(time.RFC3339, args[1])
			if err != nil {
				return fmt.Errorf("parse time: %w", err)
			}
			return withStore(cmd, func(ctx context.Context, _ *config.Config, store repository.Store) error {
				if err := store.PutRegionStart(ctx, r, at.UTC()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s opens at %s\n", r, at.UTC().Format(time.RFC3339))
				return nil
			})
		},
	}
}

func newLeaderboardCmd() *cobra.Command {
	var (
		region string
		limit  int
		stored bool
	)
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Rebuild and print the global or a regional leaderboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, func(ctx context.Context, cfg *config.Config, store repository.Store) error {
				if stored {
					return printStored(ctx, cmd.OutOrStdout(), store, region, limit)
				}
				svc := app.New(store, credential.NewBcrypt(credential.WithCost(cfg.BcryptCost)),
					app.WithLeaderboardLimit(cfg.MaxLeaderboardLimit))
				if _, err := svc.Recompute(ctx); err != nil {
					return fmt.Errorf("recompute: %w", err)
				}
				rows, err := svc.Leaderboard(ctx, strings.ToUpper(region), limit)
				if err != nil {
					return err
				}
				return printRows(cmd.OutOrStdout(), rows)
			})
		},
	}
	cmd.Flags().StringVar(&region, "region", "", "region code (EMEA, AMRS, APAC); empty for global")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum rows")
	cmd.Flags().BoolVar(&stored, "stored", false, "print the persisted rows without rebuilding")
	return cmd
}

func printStored(ctx context.Context, w io.Writer, store repository.Store, code string, limit int) error {
	var r model.Region
	if code != "" {
		var err error
		if r, err = model.ParseRegion(strings.ToUpper(code)); err != nil {
			return err
		}
	}
	entries, err := store.ListLeaderboard(ctx, r, limit)
	if err != nil {
		return err
	}
	rows := make([]app.Row, len(entries))
	for i, e := range entries {
		rank := e.GlobalRank
		if r != "" {
			rank = e.RegionalRank
		}
		rows[i] = app.Row{
			Rank:           app.DisplayRank(rank),
			TeamName:       e.TeamName,
			Region:         e.Region,
			StagesUnlocked: e.StagesUnlocked,
			TotalTime:      app.DisplayTime(e.StagesUnlocked, e.TotalElapsed),
		}
	}
	return printRows(w, rows)
}

func printRows(w io.Writer, rows []app.Row) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tTEAM\tREGION\tSTAGES\tTIME")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", row.Rank, row.TeamName, row.Region, row.StagesUnlocked, row.TotalTime)
	}
	return tw.Flush()
}

func newTeamsCmd() *cobra.Command {
	var region string
	cmd := &cobra.Command{
		Use:   "teams",
		Short: "List team progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var r model.Region
			if region != "" {
				var err error
				if r, err = model.ParseRegion(strings.ToUpper(region)); err != nil {
					return err
				}
			}
			return withStore(cmd, func(ctx context.Context, _ *config.Config, store repository.Store) error {
				teams, err := store.ListTeams(ctx, r)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TEAM\tREGION\tSTAGES\tTIME\tSTARTED\tFINAL")
				for _, t := range teams {
					final := "-"
					if t.FinalSubmissionURL != nil {
						final = *t.FinalSubmissionURL
					}
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%t\t%s\n",
						t.Name, t.Region, t.StagesUnlocked,
						app.FormatDuration(t.TotalElapsed), t.TimerStartedAt != nil, final)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&region, "region", "", "region code; empty for all")
	return cmd
}

func newTokenCmd() *cobra.Command {
	var stage int
	cmd := &cobra.Command{
		Use:     "token V1 V2 V3",
		Short:   "Print the token that submits three values for a stage",
		Example: "  stagegate-admin token --stage 2 1 2 3",
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := token.Format(token.Token{Stage: stage, Values: [model.AnswerCount]string{args[0], args[1], args[2]}})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s)
			return nil
		},
	}
	cmd.Flags().IntVar(&stage, "stage", 0, "stage number the token is submitted for")
	_ = cmd.MarkFlagRequired("stage")
	return cmd
}
