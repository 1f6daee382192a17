package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/promptsched/internal/config"
)

func jobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage scheduled prompts",
	}
	cmd.AddCommand(jobsListCmd())
	cmd.AddCommand(jobsToggleCmd())
	cmd.AddCommand(jobsDeleteCmd())
	return cmd
}

func withStores(fn func(ctx context.Context, stores *storeSet) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	stores, closeStores, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer closeStores()
	return fn(context.Background(), stores)
}

func jobsListCmd() *cobra.Command {
	var userID string
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's scheduled prompts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(func(ctx context.Context, stores *storeSet) error {
				jobs, err := stores.jobs.ListByUser(ctx, userID)
				if err != nil {
					return err
				}

				if jsonOutput {
					enc := json.NewEncoder(os.Stdout)
					enc.SetIndent("", "  ")
					return enc.Encode(jobs)
				}

				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tCRON\tTZ\tENABLED\tNEXT RUN\tLAST STATUS\tRUNS")
				for _, j := range jobs {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\t%s\t%s\t%d\n",
						j.ID, j.Name, j.CronExpression, j.Timezone, j.Enabled,
						formatUnix(j.NextRunAt), j.LastStatus, j.RunCount)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user ID (required)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.MarkFlagRequired("user")
	return cmd
}

func jobsToggleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "toggle <id>",
		Short: "Enable or disable a scheduled prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(func(ctx context.Context, stores *storeSet) error {
				job, err := stores.jobs.Get(ctx, args[0])
				if err != nil {
					return err
				}
				if err := stores.jobs.SetEnabled(ctx, job.ID, !job.Enabled); err != nil {
					return err
				}
				fmt.Printf("%s enabled=%v\n", job.ID, !job.Enabled)
				return nil
			})
		},
	}
	return cmd
}

func jobsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a scheduled prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(func(ctx context.Context, stores *storeSet) error {
				if _, err := stores.jobs.Get(ctx, args[0]); err != nil {
					return err
				}
				if err := stores.jobs.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("%s deleted\n", args[0])
				return nil
			})
		},
	}
}

func formatUnix(ts *int64) string {
	if ts == nil {
		return "-"
	}
	return time.Unix(*ts, 0).UTC().Format(time.RFC3339)
}
