package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/cloudstore/cloudstore/internal/client"
	"github.com/cloudstore/cloudstore/internal/cloudsdk"
	"github.com/cloudstore/cloudstore/internal/utils"
)

func newLoginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the CloudStore server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				if email == "" || password == "" {
					if !isatty.IsTerminal(os.Stdin.Fd()) {
						return errors.New("--email and --password are required when stdin is not a terminal")
					}
					if err := RunLoginTUI(LoginTUIOpts{
						Email:      email,
						ServerURL:  c.Config().ServerURL,
						ConfigPath: c.Config().Path,
						SubmitHandler: func(email, password string) error {
							return c.Login(ctx, email, password)
						},
						EmailValidator: utils.IsValidEmail,
					}); err != nil {
						return err
					}
				} else {
					if !utils.IsValidEmail(email) {
						return fmt.Errorf("invalid email %q", email)
					}
					if err := c.Login(ctx, email, password); err != nil {
						return err
					}
				}
				return signedIn(cmd, c)
			})
		},
	}

	cmd.Flags().SortFlags = false
	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password")
	return cmd
}

// signedIn remembers the server and state file for the next run.
func signedIn(cmd *cobra.Command, c *client.Client) error {
	if err := c.Config().Save(); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", green.Render("Signed in as"), c.Identity())
	return nil
}

func newRegisterCmd() *cobra.Command {
	var email, password, name string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !utils.IsValidEmail(email) {
				return fmt.Errorf("invalid email %q", email)
			}
			if password == "" {
				return errors.New("--password is required")
			}
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				res, err := c.SDK().Auth.Register(ctx, &cloudsdk.RegisterRequest{
					Email:    email,
					Password: password,
					Name:     name,
				})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if res.Message != "" {
					fmt.Fprintln(out, res.Message)
				}
				fmt.Fprintf(out, "Confirm with %s\n", cyan.Render("cloudstore verify --email "+email+" --code <code>"))
				return nil
			})
		},
	}

	cmd.Flags().SortFlags = false
	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name")
	return cmd
}

func newVerifyCmd() *cobra.Command {
	var email, code string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Confirm a new account with the emailed code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" || code == "" {
				return errors.New("--email and --code are required")
			}
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				if err := c.Verify(ctx, email, code); err != nil {
					return err
				}
				return signedIn(cmd, c)
			})
		},
	}

	cmd.Flags().SortFlags = false
	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().StringVar(&code, "code", "", "Verification code")
	return cmd
}

func newResetCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Request a password reset email",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !utils.IsValidEmail(email) {
				return fmt.Errorf("invalid email %q", email)
			}
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				res, err := c.SDK().Auth.Reset(ctx, email)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), res.Message)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				who := c.Identity()
				if err := c.Logout(); err != nil {
					return err
				}
				if who == "" {
					fmt.Fprintln(cmd.OutOrStdout(), gray.Render("Not signed in"))
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Signed out %s\n", who)
				return nil
			})
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, c *client.Client) error {
				out := cmd.OutOrStdout()
				printKV(out, "Server", c.Config().ServerURL)
				printKV(out, "State", c.Config().StatePath)

				who := c.Identity()
				if who == "" {
					printKV(out, "Account", gray.Render("not signed in"))
					return nil
				}
				printKV(out, "Account", green.Render(who))

				t := c.Tokens().Tokens()
				token := utils.MaskSecret(t.AccessToken)
				if claims, err := cloudsdk.InspectToken(t.AccessToken); err == nil && claims.ExpiresAt != nil {
					token += "  " + expiryText(claims.ExpiresAt.Time, time.Now())
				}
				printKV(out, "Token", token)
				if claims, err := cloudsdk.InspectToken(t.RefreshToken); err == nil && claims.ExpiresAt != nil {
					printKV(out, "Session", expiryText(claims.ExpiresAt.Time, time.Now()))
				}
				if err := c.EnsureSession(); err != nil {
					printKV(out, "Status", red.Render(err.Error()))
				}
				return nil
			})
		},
	}
}

func expiryText(at, now time.Time) string {
	if !at.After(now) {
		return yellow.Render("expired " + at.Local().Format(time.DateTime))
	}
	return "expires " + at.Local().Format(time.DateTime)
}
