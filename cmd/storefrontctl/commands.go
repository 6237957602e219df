package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/viralforge/storefront/internal/adapters/cms"
	httpadapter "github.com/viralforge/storefront/internal/adapters/http"
	"github.com/viralforge/storefront/internal/application"
	"github.com/viralforge/storefront/internal/query"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "storefrontctl",
		Short:         "Build-time tooling for the storefront",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newCheckCmd(), newQueriesCmd(), newPathsCmd())
	return root
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the query fragment catalog and page templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			registry, err := query.DefaultRegistry()
			if err != nil {
				return fmt.Errorf("query catalog: %w", err)
			}
			if _, err := httpadapter.NewRenderer(); err != nil {
				return fmt.Errorf("page templates: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d fragments, templates parsed\n", len(registry.Names()))
			return nil
		},
	}
}

func newQueriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "queries [name...]",
		Short: "Print composed queries; lists fragment names when none are given",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := query.DefaultRegistry()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, name := range registry.Names() {
					fmt.Fprintln(out, name)
				}
				return nil
			}
			for _, name := range args {
				text, err := registry.Render(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "# %s\n%s\n", name, text)
			}
			return nil
		},
	}
}

func newPathsCmd() *cobra.Command {
	var (
		cmsURL  string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:       "paths orders|products",
		Short:     "Print the pre-render path list for a page",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"orders", "products"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var paths application.StaticPaths
			switch args[0] {
			case "orders":
				paths = application.OrderStaticPaths()
			case "products":
				svc, err := newCLIService(cmsURL)
				if err != nil {
					return err
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
				defer cancel()
				if paths, err = svc.ProductStaticPaths(ctx); err != nil {
					return fmt.Errorf("list product paths: %w", err)
				}
			default:
				return fmt.Errorf("unknown page %q", args[0])
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(paths)
		},
	}
	cmd.Flags().StringVar(&cmsURL, "cms-url", os.Getenv("CMS_URL"), "CMS base url")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
	return cmd
}

func newCLIService(cmsURL string) (*application.Service, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	client, err := cms.NewClient(cms.Config{BaseURL: cmsURL, Logger: logger})
	if err != nil {
		return nil, err
	}
	return application.NewService(application.Dependencies{
		Orders:   cms.NewOrders(client),
		GraphQL:  cms.NewGraphQL(client, ""),
		Sessions: cms.NewSessions(client),
		Logger:   logger,
	})
}
