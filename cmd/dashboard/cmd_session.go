package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smukkama/weather-dashboard/internal/session"
)

var loginCmd = &cobra.Command{
	Use:   "login [email]",
	Short: "Sign in with the local demo authenticator",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		if app.Session().IsAuthenticated() {
			profile, err := app.Session().CurrentProfile(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Already signed in as %s\n", profile.DisplayName())
			return nil
		}

		email := ""
		if len(args) == 1 {
			email = args[0]
		}
		profile, err := app.Session().SignIn(ctx, email)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd, profile)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s <%s>\n", profile.DisplayName(), profile.Email)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear the stored profile and token",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		if err := app.Session().SignOut(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		profile, err := app.Session().CurrentProfile(ctx)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "Not signed in (%s)\n", app.Session().State())
			return nil
		}
		if err := app.Session().Touch(ctx); err != nil {
			logger.Debug("Failed to record activity", zap.Error(err))
		}
		if asJSON {
			return printJSON(cmd, profile)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\nid: %s\n", profile.DisplayName(), profile.Email, profile.ID)
		return nil
	},
}

var (
	profileFirstName string
	profileLastName  string
	profileEmail     string
	profileImageURL  string
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Update the signed-in user's profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		var patch session.ProfilePatch
		if cmd.Flags().Changed("first-name") {
			patch.FirstName = &profileFirstName
		}
		if cmd.Flags().Changed("last-name") {
			patch.LastName = &profileLastName
		}
		if cmd.Flags().Changed("email") {
			patch.Email = &profileEmail
		}
		if cmd.Flags().Changed("image-url") {
			patch.ProfileImageURL = &profileImageURL
		}

		profile, err := app.Session().UpdateProfile(ctx, patch)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(cmd, profile)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated profile for %s\n", profile.DisplayName())
		return nil
	},
}

func init() {
	profileCmd.Flags().StringVar(&profileFirstName, "first-name", "", "First name")
	profileCmd.Flags().StringVar(&profileLastName, "last-name", "", "Last name")
	profileCmd.Flags().StringVar(&profileEmail, "email", "", "Email address")
	profileCmd.Flags().StringVar(&profileImageURL, "image-url", "", "Profile image URL")
}
