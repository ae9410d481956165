// Package cli implements authctl, the operator and user command line for
// the auth service.
package cli

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/gophauth/internal/client/authclient"
)

type globalOptions struct {
	server    string
	tokenFile string
	timeout   time.Duration
}

// NewRootCmd builds the authctl command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "authctl",
		Short: "Manage and use a gophauth server",
		Long: `authctl talks to a gophauth server over gRPC and provides operator tools.

Account commands (register, login, refresh, logout, whoami) keep the token
pair in a file between runs. Operator commands (keygen, hash, migrate, user)
work locally or directly against the database.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.server, "server", "127.0.0.1:50051", "gRPC address of the auth server")
	cmd.PersistentFlags().StringVar(&opts.tokenFile, "token-file", defaultTokenFile(), "where the token pair is kept")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "per command timeout")

	cmd.AddCommand(
		newKeygenCmd(),
		newHashCmd(),
		newMigrateCmd(),
		newUserCmd(),
		newRegisterCmd(opts),
		newLoginCmd(opts),
		newRefreshCmd(opts),
		newLogoutCmd(opts),
		newWhoamiCmd(opts),
	)

	return cmd
}

// withClient dials the server with the saved tokens, runs fn and saves
// whatever pair the client holds afterwards.
func (o *globalOptions) withClient(ctx context.Context, fn func(ctx context.Context, c *authclient.Client) error) error {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	tokens, err := loadTokens(o.tokenFile)
	if err != nil {
		return err
	}

	c, err := authclient.New(o.server)
	if err != nil {
		return err
	}
	defer c.Close()
	c.SetTokens(tokens)

	runErr := fn(ctx, c)
	if after := c.Tokens(); after != tokens {
		if err := saveTokens(o.tokenFile, after); err != nil {
			return err
		}
	}
	return runErr
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
