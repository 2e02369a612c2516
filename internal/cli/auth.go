package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/s-hosono/stamprally/internal/client"
	"github.com/s-hosono/stamprally/internal/models"
)

// CredentialOptions holds flags shared by register and login.
type CredentialOptions struct {
	*RootOptions
	Name     string
	Email    string
	Password string
}

// NewRegisterCommand creates the register command.
func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CredentialOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := fill(cmd.InOrStdin(), cmd.ErrOrStderr(),
				field{label: "Name", value: &opts.Name},
				field{label: "Email", value: &opts.Email},
				field{label: "Password", value: &opts.Password, secret: true},
			); err != nil {
				return err
			}
			res, err := opts.api.Register(cmd.Context(), opts.Name, opts.Email, opts.Password)
			if err != nil {
				return err
			}
			return opts.signIn(cmd, res, nil)
		},
	}
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name")
	cmd.Flags().StringVar(&opts.Email, "email", "", "email address")
	cmd.Flags().StringVar(&opts.Password, "password", "", "password (prompted when omitted)")
	return cmd
}

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CredentialOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and download collected stamps",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := fill(cmd.InOrStdin(), cmd.ErrOrStderr(),
				field{label: "Email", value: &opts.Email},
				field{label: "Password", value: &opts.Password, secret: true},
			); err != nil {
				return err
			}
			res, err := opts.api.Login(cmd.Context(), opts.Email, opts.Password)
			if err != nil {
				return err
			}
			collected, err := opts.api.WithToken(res.Token).Collected(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch collected stamps: %w", err)
			}
			return opts.signIn(cmd, res, collected)
		},
	}
	cmd.Flags().StringVar(&opts.Email, "email", "", "email address")
	cmd.Flags().StringVar(&opts.Password, "password", "", "password (prompted when omitted)")
	return cmd
}

func (o *CredentialOptions) signIn(cmd *cobra.Command, res client.AuthResult, collected []models.UserStamp) error {
	if err := o.state.SignIn(cmd.Context(), res.User, res.Token, collected); err != nil {
		return err
	}
	if o.Format == "json" {
		return printJSON(cmd.OutOrStdout(), res.User)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s <%s>\n", res.User.Name, res.User.Email)
	return nil
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the cached session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.state.SignOut(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

// NewWhoamiCommand creates the whoami command.
func NewWhoamiCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, ok := opts.state.User()
			if !ok {
				return errNotSignedIn
			}
			collected := opts.state.Collected()
			if opts.Format == "json" {
				return printJSON(cmd.OutOrStdout(), map[string]any{"user": user, "collectedStamps": collected})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>, %d stamps collected\n", user.Name, user.Email, len(collected))
			return nil
		},
	}
}
