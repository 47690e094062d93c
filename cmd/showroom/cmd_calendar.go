package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/showroom/calendar"
)

// calendarCmd groups Google Calendar commands
var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Google Calendar mirroring",
}

var calendarAuthCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize access to Google Calendar and cache the token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.Calendar.CredentialsFile == "" || cfg.Calendar.TokenFile == "" {
			return errors.New("calendar.credentials_file and calendar.token_file must be set")
		}
		oc, err := calendar.OAuthConfig(calendar.AuthConfig{
			CredentialsFile: cfg.Calendar.CredentialsFile,
			TokenFile:       cfg.Calendar.TokenFile,
		})
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Open this URL in your browser and approve access:\n\n  %s\n\nPaste the authorization code: ", calendar.AuthURL(oc))
		sc := bufio.NewScanner(cmd.InOrStdin())
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return err
			}
			return errors.New("no authorization code entered")
		}
		code := strings.TrimSpace(sc.Text())
		if err := calendar.Exchange(cmd.Context(), oc, code, cfg.Calendar.TokenFile); err != nil {
			return err
		}
		fmt.Fprintf(w, "token saved to %s\n", cfg.Calendar.TokenFile)
		return nil
	},
}

func init() {
	calendarCmd.AddCommand(calendarAuthCmd)
}
