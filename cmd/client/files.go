package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cloudstore/cloudstore/internal/client"
	"github.com/cloudstore/cloudstore/internal/client/fileview"
	"github.com/cloudstore/cloudstore/internal/client/notify"
	"github.com/cloudstore/cloudstore/internal/pathutil"
)

func newMkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := pathutil.Clean(args[0])
			return withSession(cmd, func(ctx context.Context, c *client.Client) error {
				_, err := c.Ops().CreateFolder(ctx, pathutil.Parent(path), pathutil.Leaf(path))
				return err
			})
		},
	}
}

func newUploadCmd() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "upload <local-file> [folder]",
		Short: "Upload a file into a folder",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			local := args[0]
			var folder string
			if len(args) == 2 {
				folder = pathutil.Clean(args[1])
			}
			if name == "" {
				name = filepath.Base(local)
			}

			f, err := os.Open(local)
			if err != nil {
				return err
			}
			defer f.Close()

			if info, err := f.Stat(); err != nil {
				return err
			} else if info.IsDir() {
				return fmt.Errorf("%s is a directory", local)
			}

			return withSession(cmd, func(ctx context.Context, c *client.Client) error {
				return c.Ops().Upload(ctx, folder, name, f)
			})
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Name to store the file under (defaults to the local name)")
	return cmd
}

func newDownloadCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "download <path>",
		Short: "Download a file, or a folder as a zip archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, c *client.Client) error {
				entry, err := c.Lookup(ctx, fileview.ViewAll, args[0])
				if err != nil {
					return err
				}

				dst := output
				if dst == "" {
					dst = entry.Name
					if entry.IsFolder() {
						dst += ".zip"
					}
				}

				return writeFile(dst, func(w io.Writer) error {
					if !entry.IsFolder() {
						return c.Ops().Download(ctx, entry, w)
					}
					summary, err := c.Ops().DownloadFolder(ctx, entry.FullPath(), w)
					if err != nil {
						return err
					}
					for _, failed := range summary.Failed {
						fmt.Fprintf(cmd.ErrOrStderr(), "%s skipped %s\n", yellow.Render("!"), failed)
					}
					return nil
				})
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Local destination (defaults to the remote name)")
	return cmd
}

// writeFile creates path and fills it with fn. The file is removed when
// fn fails so no partial download is left behind.
func writeFile(path string, fn func(w io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(path)
		}
	}()
	return fn(f)
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <path>...",
		Aliases: []string{"delete"},
		Short:   "Move files or folders to the trash",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, c *client.Client) error {
				return forEachEntry(ctx, c, fileview.ViewAll, args, c.Ops().Delete)
			})
		},
	}
}

func newMvCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "mv <path> <new-name>",
		Aliases: []string{"rename"},
		Short:   "Rename a file or folder in place",
		Long:    "Rename a file or folder in place. A file keeps its extension; only the part before it changes.",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, c *client.Client) error {
				entry, err := c.Lookup(ctx, fileview.ViewAll, args[0])
				if err != nil {
					return err
				}
				return c.Ops().Rename(ctx, entry, args[1])
			})
		},
	}
}

func newRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <path>...",
		Short: "Bring files back from the trash",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, c *client.Client) error {
				return forEachEntry(ctx, c, fileview.ViewTrash, args, c.Ops().Restore)
			})
		},
	}
}

func newPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge <path>...",
		Short: "Permanently delete files from the trash",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(ctx context.Context, c *client.Client) error {
				return forEachEntry(ctx, c, fileview.ViewTrash, args, c.Ops().PermanentDelete)
			})
		},
	}
}

// forEachEntry resolves every path in view and applies op, carrying on
// past failures. Every failure is notified.
func forEachEntry(ctx context.Context, c *client.Client, view fileview.ViewType, paths []string, op func(context.Context, fileview.Entry) error) error {
	var errs []error
	for _, p := range paths {
		entry, err := c.Lookup(ctx, view, p)
		if err != nil {
			notify.Error(c.Notifier(), "Lookup failed", err.Error())
			errs = append(errs, err)
			continue
		}
		if err := op(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
