package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/gophauth/internal/client/authclient"

	pb "github.com/dmitrijs2005/gophauth/internal/proto"
)

func newRegisterCmd(opts *globalOptions) *cobra.Command {
	var email, username, fullName string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), "Password")
			if err != nil {
				return err
			}

			req := pb.RegisterRequest{Email: email, Password: password}
			if username != "" {
				req.Username = &username
			}
			if fullName != "" {
				req.FullName = &fullName
			}

			return opts.withClient(cmd.Context(), func(ctx context.Context, c *authclient.Client) error {
				user, err := c.Register(ctx, req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), user)
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&username, "username", "", "optional unique username")
	cmd.Flags().StringVar(&fullName, "full-name", "", "optional display name")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newLoginCmd(opts *globalOptions) *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and keep the token pair",
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), "Password")
			if err != nil {
				return err
			}

			return opts.withClient(cmd.Context(), func(ctx context.Context, c *authclient.Client) error {
				pair, err := c.Login(ctx, email, password)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "logged in, access token valid for %ds\n", pair.ExpiresIn)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func newRefreshCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Rotate the kept refresh token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withClient(cmd.Context(), func(ctx context.Context, c *authclient.Client) error {
				pair, err := c.Refresh(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "refreshed, access token valid for %ds\n", pair.ExpiresIn)
				return nil
			})
		},
	}
}

func newLogoutCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the kept refresh token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withClient(cmd.Context(), func(ctx context.Context, c *authclient.Client) error {
				if err := c.Logout(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "logged out")
				return nil
			})
		},
	}
}

func newWhoamiCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withClient(cmd.Context(), func(ctx context.Context, c *authclient.Client) error {
				user, err := c.Me(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), user)
			})
		},
	}
}
