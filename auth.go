package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/icloud-go/internal/icloud"
	"github.com/tonimelisma/icloud-go/internal/snapshotfile"
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with iCloud",
		Long: `Authenticate with iCloud, resuming from the saved session when possible.

Prompts for username and password only when the saved session is missing or
rejected, and for a one-time code when the account requires a second factor.`,
		RunE: runLogin,
	}

	cmd.Flags().Bool("trust", false, "trust this device so future logins skip the 2FA prompt")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the saved session snapshot",
		RunE:  runLogout,
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Display the current session state",
		RunE:  runStatus,
	}
}

func runLogin(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()
	ctx := context.Background()

	client, err := newSessionClient(logger)
	if err != nil {
		return err
	}

	trust, _ := cmd.Flags().GetBool("trust")

	authErr := establishSession(ctx, client, trust, os.Stdin)

	// Save regardless of outcome: session fields advanced by failed calls
	// (scnt, cookies) are never rolled back and shorten the next attempt.
	if err := saveSession(client); err != nil {
		if authErr != nil {
			return errors.Join(authErr, err)
		}

		return err
	}

	if authErr != nil {
		return authErr
	}

	logger.Info("login successful")
	statusf("Login successful.\n")

	return nil
}

// establishSession drives the login progression: resume the stored session,
// fall back to credential login when it is missing or rejected, verify the
// second factor when challenged, and optionally trust the device.
func establishSession(ctx context.Context, client *icloud.Client, trust bool, in io.Reader) error {
	reader := bufio.NewReader(in)

	state, err := client.Authenticate(ctx)

	switch {
	case err == nil && state == icloud.Authenticated:
		return nil
	case err == nil, errors.Is(err, icloud.ErrMissingCacheItem), errors.Is(err, icloud.ErrAuthenticationFailed):
		// Stored session absent, stale, or rejected — fall through to the
		// interactive progression below.
	default:
		return err
	}

	if state != icloud.NeedsSecondFactor {
		username, password, perr := promptCredentials(reader)
		if perr != nil {
			return perr
		}

		if lerr := client.Login(ctx, username, password); lerr != nil {
			return lerr
		}

		state, err = client.Authenticate(ctx)
		if err != nil {
			return err
		}
	}

	if state == icloud.NeedsSecondFactor {
		code, perr := promptLine(reader, "Enter 2FA code: ")
		if perr != nil {
			return perr
		}

		if verr := client.VerifySecurityCode(ctx, code); verr != nil {
			return verr
		}

		if trust {
			if terr := client.TrustSession(ctx); terr != nil {
				return terr
			}
		}

		state, err = client.Authenticate(ctx)
		if err != nil {
			return err
		}
	}

	if state != icloud.Authenticated {
		return fmt.Errorf("login finished in state %q", state)
	}

	return nil
}

// promptCredentials reads the username and password from the given reader.
// Prompts go to stderr so piped stdout stays clean.
func promptCredentials(reader *bufio.Reader) (string, string, error) {
	username, err := promptLine(reader, "Enter username: ")
	if err != nil {
		return "", "", err
	}

	password, err := promptLine(reader, "Enter password: ")
	if err != nil {
		return "", "", err
	}

	return username, password, nil
}

func promptLine(reader *bufio.Reader, prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading input: %w", err)
	}

	return strings.TrimSpace(line), nil
}

func runLogout(_ *cobra.Command, _ []string) error {
	logger := buildLogger()

	if err := snapshotfile.Remove(resolvedSessionPath); err != nil {
		return err
	}

	logger.Info("session snapshot removed", "path", resolvedSessionPath)
	statusf("Logged out.\n")

	return nil
}

// statusOutput is the JSON schema for `status --json`.
type statusOutput struct {
	State       string            `json:"state"`
	WebServices map[string]string `json:"webservices"`
}

func runStatus(_ *cobra.Command, _ []string) error {
	logger := buildLogger()
	ctx := context.Background()

	client, err := newSessionClient(logger)
	if err != nil {
		return err
	}

	state, err := client.Authenticate(ctx)
	if err != nil && !errors.Is(err, icloud.ErrMissingCacheItem) {
		return err
	}

	// The exchange may have refreshed tokens worth keeping.
	if err := saveSession(client); err != nil {
		return err
	}

	services := map[string]string{}

	for name, svc := range client.Snapshot().WebServices {
		services[name] = svc.URL
	}

	if flagJSON {
		out := statusOutput{State: state.String(), WebServices: services}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(out)
	}

	fmt.Printf("Session: %s\n", state)

	for name, url := range services {
		fmt.Printf("Service %s: %s\n", name, url)
	}

	return nil
}
