// Package cli implements the stamprally command line client.
package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/cobra"

	"github.com/s-hosono/stamprally/internal/client"
	"github.com/s-hosono/stamprally/internal/session"
	"github.com/s-hosono/stamprally/internal/store"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

var errNotSignedIn = errors.New("not signed in; run `stamprally login` first")

// RootOptions holds global flags and the per-invocation session.
type RootOptions struct {
	Server     string
	SessionDir string
	Format     string

	api   *client.Client
	state *session.State
}

// NewRootCommand creates the root command for the stamprally CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "stamprally",
		Short: "Collect stamps on the Yokohama stamp rally",
		Long: `Collect stamps on the Yokohama stamp rally.

Sign in once with "stamprally login"; the session is kept in --session-dir
until "stamprally logout".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.open(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Server, "server", envOr("STAMPRALLY_SERVER", client.DefaultServer), "API base URL")
	cmd.PersistentFlags().StringVar(&opts.SessionDir, "session-dir", defaultSessionDir(), "directory holding the cached session")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewRegisterCommand(opts))
	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewWhoamiCommand(opts))
	cmd.AddCommand(NewPointsCommand(opts))
	cmd.AddCommand(NewScanCommand(opts))
	cmd.AddCommand(NewProgressCommand(opts))

	return cmd
}

// open rehydrates the cached session and builds the API client.
func (o *RootOptions) open(cmd *cobra.Command) error {
	backend, err := store.NewFileBackend(o.SessionDir)
	if err != nil {
		return err
	}
	o.state = session.Rehydrate(cmd.Context(), session.NewStoreCache(store.New(backend, store.DefaultLockTimeout)))
	o.api = client.New(o.Server)
	return nil
}

// authed returns a client carrying the session token.
func (o *RootOptions) authed() (*client.Client, error) {
	if !o.state.Authenticated() {
		return nil, errNotSignedIn
	}
	return o.api.WithToken(o.state.Token()), nil
}

// explain turns a rejected token into a hint to sign in again.
func explain(err error) error {
	if client.IsUnauthorized(err) {
		return fmt.Errorf("session expired; run `stamprally login` again: %w", err)
	}
	return err
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultSessionDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".stamprally"
	}
	return filepath.Join(home, ".stamprally")
}
