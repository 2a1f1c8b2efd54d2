package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/cloudstore/cloudstore/internal/client"
	"github.com/cloudstore/cloudstore/internal/client/fileview"
	"github.com/cloudstore/cloudstore/internal/cloudsdk"
	"github.com/cloudstore/cloudstore/internal/utils"
)

func newShareCmd() *cobra.Command {
	var permission string

	cmd := &cobra.Command{
		Use:   "share <path> <email>",
		Short: "Share a file with another user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := args[1]
			if !utils.IsValidEmail(target) {
				return fmt.Errorf("invalid email %q", target)
			}
			return withSession(cmd, func(ctx context.Context, c *client.Client) error {
				entry, err := sharableFile(ctx, c, args[0])
				if err != nil {
					return err
				}
				share, err := c.SDK().Shares.ShareWithUser(ctx, &cloudsdk.ShareRequest{
					S3Key:       entry.S3Key,
					TargetEmail: target,
					Permission:  permission,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s with %s\n", green.Render("Shared"), entry.FullPath(), target)
				if share.ID != "" {
					printKV(cmd.OutOrStdout(), "Share ID", share.ID)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&permission, "permission", "read", "Permission to grant")
	return cmd
}

func newUnshareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unshare <share-id>",
		Short: "Revoke a share",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, c *client.Client) error {
				if err := c.SDK().Shares.Revoke(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Revoked share %s\n", args[0])
				return nil
			})
		},
	}
}

func newLinkCmd() *cobra.Command {
	var expires time.Duration

	cmd := &cobra.Command{
		Use:   "link <path>",
		Short: "Create a public download link for a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if expires < 0 {
				return errors.New("--expires must not be negative")
			}
			return withSession(cmd, func(ctx context.Context, c *client.Client) error {
				entry, err := sharableFile(ctx, c, args[0])
				if err != nil {
					return err
				}
				link, err := c.SDK().Shares.CreatePublicLink(ctx, &cloudsdk.PublicLinkRequest{
					S3Key:     entry.S3Key,
					ExpiresIn: int64(expires / time.Second),
				})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintln(out, link.URL)
				if link.ExpiresAt != nil {
					at := fileview.Timestamp(link.ExpiresAt, time.Now())
					printKV(out, "Expires", at.Local().Format(time.DateTime))
				}
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&expires, "expires", 0, "Link lifetime, e.g. 24h (server default when unset)")
	return cmd
}

// sharableFile resolves path to one of the caller's own files.
func sharableFile(ctx context.Context, c *client.Client, path string) (fileview.Entry, error) {
	entry, err := c.Lookup(ctx, fileview.ViewAll, path)
	if err != nil {
		return entry, err
	}
	if entry.IsFolder() {
		return entry, fmt.Errorf("%s is a folder; only files can be shared", entry.FullPath())
	}
	if entry.SharedWithMe() {
		return entry, fmt.Errorf("%s belongs to %s", entry.FullPath(), entry.Owner)
	}
	return entry, nil
}

func newActivityCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show recent account activity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, c *client.Client) error {
				list := c.SDK().Activity.Mine
				if all {
					list = c.SDK().Activity.All
				}
				events, err := list(ctx)
				if err != nil {
					return err
				}
				printEvents(cmd, events, all)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Show every user's activity (admins only)")
	return cmd
}

func printEvents(cmd *cobra.Command, events []cloudsdk.ActivityEvent, withActor bool) {
	out := cmd.OutOrStdout()
	if len(events) == 0 {
		fmt.Fprintln(out, gray.Render("(no activity)"))
		return
	}

	now := time.Now()
	for _, ev := range events {
		when := humanize.RelTime(fileview.Timestamp(ev.Timestamp, now), now, "ago", "from now")
		line := fmt.Sprintf("%s  %s", gray.Render(padRight(when, 16)), padRight(ev.Action, 16))
		if withActor {
			line += "  " + padRight(ev.Actor, 24)
		}
		fmt.Fprintln(out, line+"  "+ev.Target)
	}
}
