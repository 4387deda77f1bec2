package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/huebot/internal/api"
)

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Account and sign-in commands",
	}

	cmd.AddCommand(newAuthSignupCmd())
	cmd.AddCommand(newAuthLoginCmd())
	cmd.AddCommand(newAuthLogoutCmd())
	cmd.AddCommand(newAuthWhoamiCmd())
	cmd.AddCommand(newAuthDeleteCmd())
	return cmd
}

func newAuthSignupCmd() *cobra.Command {
	var (
		flags commonFlags
		req   api.SignupRequest
	)

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		Long:  "Creates an account on the diagnosis service. The password is read from the terminal twice.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthSignup(cmd, flags, req)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&req.Username, "username", "", "login id (required)")
	cmd.Flags().StringVar(&req.Nickname, "nickname", "", "display name (required)")
	cmd.Flags().StringVar(&req.Email, "email", "", "email address (required)")
	cmd.Flags().StringVar(&req.Gender, "gender", "", "남성 or 여성")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("nickname")
	cmd.MarkFlagRequired("email")
	return cmd
}

func runAuthSignup(cmd *cobra.Command, flags commonFlags, req api.SignupRequest) error {
	a, err := openApp(flags)
	if err != nil {
		return err
	}
	defer a.close()

	p := newPrompter(cmd)
	if req.Password, err = p.Secret("Password: "); err != nil {
		return err
	}
	if req.PasswordConfirm, err = p.Secret("Confirm password: "); err != nil {
		return err
	}

	user, err := a.client.Signup(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("signup: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created account %s (%s). Run `hue auth login` to sign in.\n", user.Username, user.Nickname)
	return nil
}

func newAuthLoginCmd() *cobra.Command {
	var (
		flags    commonFlags
		username string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the token for this profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthLogin(cmd, flags, username)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVarP(&username, "username", "u", "", "login id (prompted when empty)")
	return cmd
}

func runAuthLogin(cmd *cobra.Command, flags commonFlags, username string) error {
	a, err := openApp(flags)
	if err != nil {
		return err
	}
	defer a.close()

	p := newPrompter(cmd)
	if username == "" {
		if username, err = p.Line("Username: "); err != nil {
			return err
		}
	}
	password, err := p.Secret("Password: ")
	if err != nil {
		return err
	}

	tok, err := a.client.Login(cmd.Context(), username, password)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := a.saveLogin(tok); err != nil {
		return err
	}
	a.log.Info("signed in", "profile", a.profile, "user_id", tok.User.ID)

	name := tok.User.Nickname
	if name == "" {
		name = username
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (profile %s)\n", name, a.profile)
	return nil
}

func newAuthLogoutCmd() *cobra.Command {
	var flags commonFlags

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token for this profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(flags)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.signOut(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed out of profile %s\n", a.profile)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}

func newAuthWhoamiCmd() *cobra.Command {
	var flags commonFlags

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in account and its activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthWhoami(cmd, flags)
		},
	}

	flags.register(cmd)
	return cmd
}

func runAuthWhoami(cmd *cobra.Command, flags commonFlags) error {
	a, err := openApp(flags)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.requireLogin(); err != nil {
		return err
	}

	ctx := cmd.Context()
	user, err := a.client.Me(ctx)
	if err != nil {
		return err
	}
	stats, err := a.client.Stats(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "User:       %s (%s)\n", user.Username, user.Nickname)
	fmt.Fprintf(out, "Email:      %s\n", user.Email)
	if joined := api.FormatDate(user.CreateDate.Time, false); joined != "" {
		fmt.Fprintf(out, "Joined:     %s\n", joined)
	}
	fmt.Fprintf(out, "Surveys:    %d\n", stats.TotalSurveys)
	fmt.Fprintf(out, "Saved:      %d\n", stats.SavedResults)
	fmt.Fprintf(out, "Chats:      %d\n", stats.ChatSessions)
	return nil
}

func newAuthDeleteCmd() *cobra.Command {
	var (
		flags commonFlags
		yes   bool
	)

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Deactivate the signed-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuthDelete(cmd, flags, yes)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func runAuthDelete(cmd *cobra.Command, flags commonFlags, yes bool) error {
	a, err := openApp(flags)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.requireLogin(); err != nil {
		return err
	}

	p := newPrompter(cmd)
	password, err := p.Secret("Password: ")
	if err != nil {
		return err
	}
	if !yes {
		ok, err := p.Confirm("Deactivate this account? Stored diagnoses will no longer be available.")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
			return nil
		}
	}

	msg, err := a.client.DeleteMe(cmd.Context(), password)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if err := a.signOut(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), firstNonEmpty(msg.Message, "Account deactivated."))
	return nil
}
