package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/upb/card-control-plane/auth"
	"github.com/upb/card-control-plane/config"
	"github.com/upb/card-control-plane/internal/expression"
	"github.com/upb/card-control-plane/internal/mcc"
	rules "github.com/upb/card-control-plane/internal/policy"
	"github.com/upb/card-control-plane/models"
)

func classifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify <category-code>...",
		Short: "Map merchant category codes to budget categories",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, code := range args {
				category, known := mcc.Lookup(code)
				if !known {
					category = mcc.Classify(code)
					fmt.Fprintf(out, "%s\t%s\t(default)\n", code, category)
					continue
				}
				fmt.Fprintf(out, "%s\t%s\n", code, category)
			}
			return nil
		},
	}
}

func evalCmd() *cobra.Command {
	var (
		amount   int64
		merchant string
		category string
		location string
		at       string
	)

	cmd := &cobra.Command{
		Use:   "eval <expression>",
		Short: "Evaluate a policy expression against a sample transaction",
		Long: `Evaluate a policy expression, optionally merchant scoped
("Coffee Shop: amount > 500"), and report whether it would decline the
sample transaction.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := args[0]
			if err := rules.Validate(src); err != nil {
				return fmt.Errorf("invalid expression: %w", err)
			}

			evalCtx := expression.Context{
				Amount:   amount,
				Merchant: merchant,
				Category: strings.ToUpper(category),
				Location: location,
			}
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --time: %w", err)
				}
				evalCtx.Time = t
			}

			p := models.NewPolicy(uuid.Nil, "cli", src)
			result := rules.NewMatcher(nil).Match([]*models.Policy{p}, evalCtx)

			out := cmd.OutOrStdout()
			switch {
			case len(result.Skipped) > 0:
				return fmt.Errorf("evaluation failed: %s", result.Skipped[0].Error)
			case result.Approved:
				fmt.Fprintln(out, "approve")
			default:
				fmt.Fprintf(out, "decline: %s\n", result.Reason)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&amount, "amount", 0, "amount in cents")
	cmd.Flags().StringVar(&merchant, "merchant", "", "merchant name")
	cmd.Flags().StringVar(&category, "category", string(models.DefaultBudgetCategory), "budget category")
	cmd.Flags().StringVar(&location, "location", "", "transaction location")
	cmd.Flags().StringVar(&at, "time", "", "transaction time (RFC3339); binds hour and dayOfWeek")
	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		orgID   string
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a management API bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			org, err := uuid.Parse(orgID)
			if err != nil {
				return errors.New("--org must be a valid UUID")
			}

			cfg, err := config.New(cmd.Context())
			if err != nil {
				return err
			}
			validator, err := auth.NewValidator(auth.Config{
				Secret:   cfg.Auth.JWTSecret,
				Issuer:   cfg.Auth.Issuer,
				Audience: cfg.Auth.Audience,
			})
			if err != nil {
				return fmt.Errorf("cannot issue tokens: %w", err)
			}

			token, err := validator.IssueToken(subject, org, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&orgID, "org", "", "organization id the token is scoped to")
	cmd.Flags().StringVar(&subject, "subject", "operator", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}
