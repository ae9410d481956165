package cli

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/gophauth/internal/cryptox"
	"github.com/dmitrijs2005/gophauth/internal/filex"
	"github.com/dmitrijs2005/gophauth/internal/server"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/keys"
	"github.com/dmitrijs2005/gophauth/internal/server/repositories/repomanager"
)

func newKeygenCmd() *cobra.Command {
	var alg, outDir string

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate token signing keys",
		Long: `Generate a key pair for RS256 or EdDSA and write private.pem and
public.pem to --out-dir. For HS256 a random secret is printed as hex.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ks, err := keys.Generate(alg)
			if err != nil {
				return err
			}

			if ks.Algorithm() == keys.AlgHS256 {
				fmt.Fprintln(cmd.OutOrStdout(), hex.EncodeToString(ks.SigningKey.([]byte)))
				return nil
			}

			priv, pub, err := keys.EncodePEM(ks)
			if err != nil {
				return err
			}
			dir, err := filex.EnsurePrivateDir(outDir)
			if err != nil {
				return err
			}
			privPath := filepath.Join(dir, "private.pem")
			if err := filex.WritePrivateFile(privPath, priv); err != nil {
				return err
			}
			pubPath := filepath.Join(dir, "public.pem")
			if err := os.WriteFile(pubPath, pub, 0o644); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s keys written to %s and %s\n", ks.Algorithm(), privPath, pubPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&alg, "alg", keys.AlgRS256, "RS256, EdDSA or HS256")
	cmd.Flags().StringVar(&outDir, "out-dir", ".", "directory for the PEM files")

	return cmd
}

func newHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash",
		Short: "Print the argon2id hash of a password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), "Password")
			if err != nil {
				return err
			}

			h, err := cryptox.NewArgon2Hasher(cryptox.DefaultArgon2Params())
			if err != nil {
				return err
			}
			encoded, err := h.Hash(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), encoded)
			return nil
		},
	}
}

func newMigrateCmd() *cobra.Command {
	var dsn string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := repomanager.OpenPostgres(cmd.Context(), dsn, repomanager.PoolOptions{MaxOpenConns: 1})
			if err != nil {
				return err
			}
			rm := repomanager.NewPostgresRepositoryManager(db)
			defer rm.Close()

			if err := rm.RunMigrations(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}

	cmd.Flags().StringVar(&dsn, "dsn", "", "PostgreSQL connection string")
	_ = cmd.MarkFlagRequired("dsn")

	return cmd
}

// openApp is a seam for tests.
var openApp = server.NewApp

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Administer accounts directly in the store",
	}

	cmd.AddCommand(
		newSetActiveCmd("disable", "Disable an account and revoke its sessions", false),
		newSetActiveCmd("enable", "Enable a disabled account", true),
	)

	return cmd
}

func newSetActiveCmd(use, short string, active bool) *cobra.Command {
	var email, store, dsn string

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := &config.Config{}
			c.LoadDefaults()
			c.Store = store
			c.DatabaseDSN = dsn
			c.MigrateOnStart = false
			c.LogLevel = "error"
			// this process never hands out tokens
			c.GenerateKeys = true

			return setActive(cmd.Context(), c, email, active, func(msg string) {
				fmt.Fprintln(cmd.OutOrStdout(), msg)
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&store, "store", config.StorePostgres, "postgres or memory")
	cmd.Flags().StringVar(&dsn, "dsn", "", "PostgreSQL connection string")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func setActive(ctx context.Context, c *config.Config, email string, active bool, report func(string)) (err error) {
	app, err := openApp(ctx, c)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(context.WithoutCancel(ctx)); err == nil {
			err = cerr
		}
	}()

	if err := app.UserService().SetActive(ctx, email, active); err != nil {
		return err
	}
	if active {
		report(email + " enabled")
	} else {
		report(email + " disabled")
	}
	return nil
}
