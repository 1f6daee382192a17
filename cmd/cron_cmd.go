package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/promptsched/internal/cron"
)

func cronCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cron",
		Short: "Work with cron expressions",
	}
	cmd.AddCommand(cronValidateCmd())
	cmd.AddCommand(cronNextCmd())
	cmd.AddCommand(cronDescribeCmd())
	return cmd
}

func cronValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <expr>",
		Short: "Check whether an expression is a valid 5-field cron",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cron.New().Validate(args[0]) {
				return fmt.Errorf("invalid cron expression: %s", args[0])
			}
			fmt.Println("valid")
			return nil
		},
	}
}

func cronNextCmd() *cobra.Command {
	var tz string
	var count int
	cmd := &cobra.Command{
		Use:   "next <expr>",
		Short: "Show the next fire instants of an expression",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e := cron.New()
			if !e.Validate(args[0]) {
				return fmt.Errorf("invalid cron expression: %s", args[0])
			}
			from := time.Now()
			for i := 0; i < count; i++ {
				next, err := e.Next(args[0], tz, from)
				if err != nil {
					return err
				}
				fmt.Println(next.Format(time.RFC3339))
				from = next
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tz, "tz", "UTC", "IANA timezone name")
	cmd.Flags().IntVar(&count, "count", 3, "number of instants to show")
	return cmd
}

func cronDescribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <expr>",
		Short: "Describe a cron expression in plain language",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(cron.Describe(args[0]))
			return nil
		},
	}
}
