package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudstore/cloudstore/internal/client"
	"github.com/cloudstore/cloudstore/internal/client/fileview"
	"github.com/cloudstore/cloudstore/internal/pathutil"
)

func newLsCmd() *cobra.Command {
	var view, match string

	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List a folder",
		Long:  "List the entries directly inside a folder. --view picks all, recent, shared or trash.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vt, err := fileview.ParseViewType(view)
			if err != nil {
				return err
			}
			var dir string
			if len(args) == 1 {
				dir = pathutil.Clean(args[0])
			}

			return withSession(cmd, func(ctx context.Context, c *client.Client) error {
				entries, err := c.View().Fetch(ctx, vt, fileview.FetchOptions{Force: true})
				if err != nil {
					return err
				}

				now := time.Now()
				entries = fileview.Filter(entries, vt, dir, now)
				if match != "" {
					kept := entries[:0]
					for _, e := range entries {
						if pathutil.Match(match, e.Name) {
							kept = append(kept, e)
						}
					}
					entries = kept
				}

				if dir != "" {
					fmt.Fprintln(cmd.OutOrStdout(), gray.Render(breadcrumbTrail(dir)))
				}
				printEntries(cmd.OutOrStdout(), entries, now)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&view, "view", string(fileview.ViewAll), "View to list (all, recent, shared, trash)")
	cmd.Flags().StringVarP(&match, "match", "m", "", "Only show names matching a glob, e.g. '*.pdf'")
	return cmd
}

// breadcrumbTrail renders "Home > a > b" for the path "a/b".
func breadcrumbTrail(dir string) string {
	crumbs := pathutil.Breadcrumbs(dir)
	names := make([]string, len(crumbs))
	for i, c := range crumbs {
		names[i] = c.Name
	}
	return strings.Join(names, " > ")
}
