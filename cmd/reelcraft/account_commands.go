package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"reelcraft/internal/session"
	"reelcraft/internal/videoapi"
)

const passwordEnv = "REELCRAFT_PASSWORD"

func newAccountCommands(ctx *commandContext) []*cobra.Command {
	return []*cobra.Command{
		newLoginCommand(ctx),
		newRegisterCommand(ctx),
		newLogoutCommand(ctx),
		newWhoAmICommand(ctx),
		newPasswdCommand(ctx),
	}
}

// readPassword takes the flag value, then the environment, then one line of
// stdin.
func readPassword(cmd *cobra.Command, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if value, ok := os.LookupEnv(passwordEnv); ok && value != "" {
		return value, nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", fmt.Errorf("password required (use --password, %s, or stdin)", passwordEnv)
	}
	return line, nil
}

func printIdentity(cmd *cobra.Command, ctx *commandContext, id session.Identity) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, id)
	}
	out := cmd.OutOrStdout()
	name := id.DisplayName
	if name == "" {
		name = id.Email
	}
	fmt.Fprintf(out, "Signed in as %s\n", name)
	fmt.Fprintf(out, "  User ID: %s\n", id.UserID)
	if id.Email != "" {
		fmt.Fprintf(out, "  Email:   %s\n", id.Email)
	}
	if id.ThemePref != "" {
		fmt.Fprintf(out, "  Theme:   %s\n", id.ThemePref)
	}
	return nil
}

func newLoginCommand(ctx *commandContext) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the generation service",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			pw, err := readPassword(cmd, password)
			if err != nil {
				return err
			}
			id, err := a.session.Login(cmd.Context(), email, pw)
			if err != nil {
				return userMessage(err)
			}
			return printIdentity(cmd, ctx, id)
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password (prefer "+passwordEnv+" or stdin)")
	return cmd
}

func newRegisterCommand(ctx *commandContext) *cobra.Command {
	var email, password, name string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			pw, err := readPassword(cmd, password)
			if err != nil {
				return err
			}
			id, err := a.session.Register(cmd.Context(), email, pw, name)
			if err != nil {
				return userMessage(err)
			}
			return printIdentity(cmd, ctx, id)
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Account password (prefer "+passwordEnv+" or stdin)")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name")
	return cmd
}

func newLogoutCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			if err := a.session.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWhoAmICommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			id, err := a.requireIdentity()
			if err != nil {
				return userMessage(err)
			}
			return printIdentity(cmd, ctx, id)
		},
	}
}

func newPasswdCommand(ctx *commandContext) *cobra.Command {
	var oldPassword, newPassword string
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change the account password",
		RunE: func(cmd *cobra.Command, args []string) error {
			if oldPassword == "" || newPassword == "" {
				return errors.New("both --old and --new are required")
			}
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			if err := a.session.ChangePassword(cmd.Context(), oldPassword, newPassword); err != nil {
				return userMessage(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password changed")
			return nil
		},
	}
	cmd.Flags().StringVar(&oldPassword, "old", "", "Current password")
	cmd.Flags().StringVar(&newPassword, "new", "", "New password")
	return cmd
}

func newProfileCommand(ctx *commandContext) *cobra.Command {
	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or edit the account profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			profile, err := a.session.Profile(cmd.Context())
			if err != nil {
				return userMessage(err)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, profile)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:      %s\n", profile.ID)
			fmt.Fprintf(out, "Email:   %s\n", profile.Email)
			fmt.Fprintf(out, "Name:    %s\n", profile.DisplayName)
			fmt.Fprintf(out, "Theme:   %s\n", profile.ThemePref)
			if !profile.CreatedAt.IsZero() {
				fmt.Fprintf(out, "Created: %s\n", profile.CreatedAt.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}

	var name, theme string
	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Change display name or theme preference",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" && theme == "" {
				return errors.New("nothing to update (use --name or --theme)")
			}
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			id, err := a.session.UpdateProfile(cmd.Context(), name, theme)
			if err != nil {
				return userMessage(err)
			}
			return printIdentity(cmd, ctx, id)
		},
	}
	updateCmd.Flags().StringVarP(&name, "name", "n", "", "Display name")
	updateCmd.Flags().StringVar(&theme, "theme", "", "Theme preference (light or dark)")

	avatarCmd := &cobra.Command{
		Use:   "avatar <file>",
		Short: "Upload a profile picture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			id, err := a.requireIdentity()
			if err != nil {
				return userMessage(err)
			}
			upload := videoapi.FileUpload(args[0])
			if err := upload.Validate(); err != nil {
				return err
			}
			loc, err := a.video.UploadAvatar(cmd.Context(), id.UserID, upload)
			if err != nil {
				return userMessage(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Avatar updated: %s\n", a.assets.Resolve(loc))
			return nil
		},
	}

	profileCmd.AddCommand(updateCmd, avatarCmd, newKeysCommand(ctx))
	return profileCmd
}

func newKeysCommand(ctx *commandContext) *cobra.Command {
	keys := make(map[string]*string, len(session.KeyProviders))
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Show or set the provider API keys stored on the account",
		Long:  "Without flags, shows which provider keys are set. Flags store new keys; slots left blank keep their current key.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			updates := map[string]string{}
			for provider, value := range keys {
				if cmd.Flags().Changed(provider) {
					updates[provider] = *value
				}
			}

			var presence session.KeyPresence
			if len(updates) == 0 {
				presence, err = a.session.APIKeys(cmd.Context())
			} else {
				presence, err = a.session.SaveAPIKeys(cmd.Context(), updates)
			}
			if err != nil {
				return userMessage(err)
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, presence)
			}
			rows := make([][]string, 0, len(session.KeyProviders))
			for _, provider := range session.KeyProviders {
				state := "not set"
				if presence[provider] {
					state = "set"
				}
				rows = append(rows, []string{provider, state})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(keysColumns, rows))
			return nil
		},
	}
	for _, provider := range session.KeyProviders {
		keys[provider] = cmd.Flags().String(provider, "", "API key for "+provider)
	}
	return cmd
}
