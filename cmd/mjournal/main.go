package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mjournal/internal/job"
	"github.com/xxxsen/mjournal/internal/model"
	appErr "github.com/xxxsen/mjournal/internal/pkg/errors"
	"github.com/xxxsen/mjournal/internal/schedule"
	"github.com/xxxsen/mjournal/internal/search"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	rootCmd := &cobra.Command{
		Use:           "mjournal",
		Short:         "private journal with semantic search",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// a missing .env is fine
			_ = godotenv.Load()
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (.json, .yaml or .aix)")

	withApp := func(fn func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			return fn(ctx, a, cmd, args)
		}
	}

	rootCmd.AddCommand(
		newAddCmd(withApp),
		newSearchCmd(withApp),
		newReadCmd(withApp),
		newListCmd(withApp),
		newDeleteCmd(withApp),
		newResetCmd(withApp),
		newReindexCmd(withApp),
		newWatchCmd(withApp),
	)
	return rootCmd
}

type runner func(fn func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error

func newAddCmd(withApp runner) *cobra.Command {
	flags := map[model.Category]*string{}
	cmd := &cobra.Command{
		Use:   "add",
		Short: "write thoughts, one entry per category",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			thoughts := &model.Thoughts{}
			set := func(c model.Category, dst **string) {
				if cmd.Flags().Changed(flagName(c)) {
					*dst = flags[c]
				}
			}
			set(model.CategoryFeelings, &thoughts.Feelings)
			set(model.CategoryProjectNotes, &thoughts.ProjectNotes)
			set(model.CategoryUserContext, &thoughts.UserContext)
			set(model.CategoryTechnicalInsights, &thoughts.TechnicalInsights)
			set(model.CategoryWorldKnowledge, &thoughts.WorldKnowledge)

			entries, err := a.store.WriteThoughts(ctx, thoughts)
			if len(entries) > 0 {
				if perr := printJSON(cmd.OutOrStdout(), entries); perr != nil {
					return perr
				}
			}
			if appErr.IsIndexUnavailable(err) {
				return fmt.Errorf("%w (entries are saved; run `mjournal reindex` once the index is back)", err)
			}
			return err
		}),
	}
	for _, spec := range model.Categories {
		v := new(string)
		flags[spec.Category] = v
		cmd.Flags().StringVar(v, flagName(spec.Category), "", spec.Heading+" text")
	}
	return cmd
}

func flagName(c model.Category) string {
	return strings.ReplaceAll(string(c), "_", "-")
}

func newSearchCmd(withApp runner) *cobra.Command {
	var (
		limit    int
		typ      string
		sections []string
		days     int
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "semantic search over journal entries",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			scope, err := model.ParseScope(typ)
			if err != nil {
				return err
			}
			results, err := a.search.Search(ctx, args[0], search.Options{
				Limit:     limit,
				Scope:     scope,
				Sections:  sections,
				DateRange: model.LastDays(time.Now(), days),
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), results)
		}),
	}
	cmd.Flags().IntVar(&limit, "limit", search.DefaultLimit, "maximum number of results")
	cmd.Flags().StringVar(&typ, "type", "both", "scope to search: project, user or both")
	cmd.Flags().StringSliceVar(&sections, "sections", nil, "keep entries whose sections contain any of these")
	cmd.Flags().IntVar(&days, "days", 0, "only entries from the last N days (0 = all)")
	return cmd
}

func newReadCmd(withApp runner) *cobra.Command {
	return &cobra.Command{
		Use:   "read <path>",
		Short: "print an entry file",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			text, err := a.search.ReadEntry(ctx, args[0])
			if errors.Is(err, appErr.ErrEntryNotFound) {
				return fmt.Errorf("entry not found: %s", args[0])
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), text)
			return err
		}),
	}
}

func newListCmd(withApp runner) *cobra.Command {
	var (
		limit int
		typ   string
		days  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "list recent entries, newest first",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			scope, err := model.ParseScope(typ)
			if err != nil {
				return err
			}
			entries, err := a.search.ListRecent(ctx, search.ListOptions{
				Limit:     limit,
				Scope:     scope,
				DateRange: model.LastDays(time.Now(), days),
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entries)
		}),
	}
	cmd.Flags().IntVar(&limit, "limit", search.DefaultLimit, "maximum number of entries")
	cmd.Flags().StringVar(&typ, "type", "both", "scope to list: project, user or both")
	cmd.Flags().IntVar(&days, "days", 30, "only entries from the last N days (0 = all)")
	return cmd
}

func newDeleteCmd(withApp runner) *cobra.Command {
	var typ string
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "remove an entry from the search index (the file is kept)",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			scope, err := model.ParseScope(typ)
			if err != nil {
				return err
			}
			if !scope.Valid() {
				return fmt.Errorf("--type must be project or user")
			}
			return a.index.Delete(ctx, scope, args[0])
		}),
	}
	cmd.Flags().StringVar(&typ, "type", "", "scope of the entry: project or user")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newResetCmd(withApp runner) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "drop and recreate both index collections",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("reset deletes the whole search index; pass --yes to confirm")
			}
			return a.index.Reset(ctx)
		}),
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}

func newReindexCmd(withApp runner) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "index entry files missing from the search index",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			stats, err := a.store.Reindex(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		}),
	}
}

func newWatchCmd(withApp runner) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "reindex on the configured schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			reindex := job.NewReindexJob(a.store)
			scheduler := schedule.NewCronScheduler()
			if err := scheduler.AddJob(reindex, a.cfg.Reindex.Spec); err != nil {
				return err
			}
			scheduler.Start(ctx)
			defer scheduler.Stop()
			if err := scheduler.RunNow(reindex.Name()); err != nil {
				return err
			}

			logger := logutil.GetLogger(ctx)
			logger.Info("watching journal", zap.String("spec", a.cfg.Reindex.Spec))
			<-ctx.Done()
			logger.Info("watch stopping")
			return nil
		}),
	}
}
