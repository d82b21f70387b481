package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/minios-linux/stringlate/github"
	"github.com/minios-linux/stringlate/i18n"
	"github.com/minios-linux/stringlate/settings"
)

// ---------------------------------------------------------------------------
// auth (login / logout / status)
// ---------------------------------------------------------------------------

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the GitHub login",
		Long: `Manage the GitHub credentials used to publish translations.

Gists, issues, commits and pull requests need a GitHub token. It is looked
up in this order:
  1. --token flag
  2. ` + settings.TokenEnv + ` environment variable
  3. The credential store written by 'stringlate auth login'

Examples:
  stringlate auth login                    Log in through the browser
  echo $TOKEN | stringlate auth login --with-token
  stringlate auth status
  stringlate auth logout`,
	}

	cmd.AddCommand(newAuthLoginCmd())
	cmd.AddCommand(newAuthLogoutCmd())
	cmd.AddCommand(newAuthStatusCmd())
	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	var withToken bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to GitHub",
		Long: `Log in to GitHub with the device flow: open the printed URL, enter the
code, and the token is stored once you approve the request.

With --with-token a personal access token (scopes: ` + strings.Join(github.Scopes, ", ") + `) is read
from standard input instead. The device flow needs an OAuth app client id,
set as github_client_id in the config file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if tokenFlag != "" || withToken || cfg.GitHubClientID == "" {
				token := tokenFlag
				if token == "" {
					if !withToken {
						logInfo("%s", i18n.T("No OAuth client id configured, paste a personal access token instead"))
					}
					t, err := readToken()
					if err != nil {
						return err
					}
					token = t
				}
				user, err := githubClient(token).User(ctx)
				if err != nil {
					return fmt.Errorf(i18n.T("checking token: %w"), err)
				}
				if err := settings.SetToken(settings.GitHub, token, user.Login); err != nil {
					return err
				}
				logSuccess(i18n.T("Logged in as %s"), user.Login)
				return nil
			}

			fmt.Fprintf(os.Stderr, "\n%s\n", blue(i18n.T("GitHub Authentication")))
			fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
			fmt.Fprintln(os.Stderr)

			flow := github.NewDeviceFlow("", cfg.GitHubClientID)
			tok, err := flow.Login(ctx, func(verificationURI, userCode string) {
				fmt.Fprintf(os.Stderr, "  1. Open this URL in your browser:\n")
				fmt.Fprintf(os.Stderr, "     %s\n\n", green(verificationURI))
				fmt.Fprintf(os.Stderr, "  2. Enter this code:\n")
				fmt.Fprintf(os.Stderr, "     %s\n\n", yellow(userCode))
				fmt.Fprintf(os.Stderr, "  Waiting for authorization...\n")
			})
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf(i18n.T("authentication failed: %w"), err)
			}

			user, err := githubClient(tok.AccessToken).User(ctx)
			if err != nil {
				return err
			}
			if err := settings.SetOAuth(settings.GitHub, tok.AccessToken, tok.Scope, user.Login); err != nil {
				return err
			}
			logSuccess(i18n.T("Logged in as %s"), user.Login)
			return nil
		},
	}

	cmd.Flags().BoolVar(&withToken, "with-token", false, "Read a personal access token from stdin")
	return cmd
}

// readToken reads one line from stdin.
func readToken() (string, error) {
	fmt.Fprintf(os.Stderr, "  %s", i18n.T("Token: "))
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", errors.New(i18n.T("no token provided"))
	}
	token := strings.TrimSpace(scanner.Text())
	if token == "" {
		return "", errors.New(i18n.T("no token provided"))
	}
	return token, nil
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored GitHub token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if settings.Get(settings.GitHub) == nil {
				logInfo("%s", i18n.T("Not logged in"))
				return nil
			}
			if err := settings.Remove(settings.GitHub); err != nil {
				return err
			}
			logSuccess("%s", i18n.T("Logged out"))
			if os.Getenv(settings.TokenEnv) != "" {
				logWarning(i18n.T("%s is still set"), settings.TokenEnv)
			}
			return nil
		},
	}
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(os.Stderr, "\n%s\n", blue(i18n.T("Stored Credentials")))
			fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))

			if info := settings.Get(settings.GitHub); info != nil && info.Access != "" {
				kind := "token"
				if info.IsOAuth() {
					kind = "oauth"
				}
				status := fmt.Sprintf("%s (%s: %s)", green("configured"), kind, settings.MaskKey(info.Access))
				if info.Login != "" {
					status += " as " + bold(info.Login)
				}
				fmt.Fprintf(os.Stderr, "  %-14s %s\n", settings.GitHub, status)
				if info.Scope != "" {
					fmt.Fprintf(os.Stderr, "  %14s scopes: %s\n", "", info.Scope)
				}
			} else {
				fmt.Fprintf(os.Stderr, "  %-14s %s\n", settings.GitHub, red("not configured"))
			}

			fmt.Fprintf(os.Stderr, "\n  %s\n", yellow(i18n.T("Environment Variables")))
			if env := os.Getenv(settings.TokenEnv); env != "" {
				fmt.Fprintf(os.Stderr, "  %s: %s (overrides stored token)\n", settings.TokenEnv, green(settings.MaskKey(env)))
			} else {
				fmt.Fprintf(os.Stderr, "  %s: %s\n", settings.TokenEnv, red("not set"))
			}
			fmt.Fprintf(os.Stderr, "\n  %s %s\n\n", i18n.T("Credentials file:"), settings.FilePath())
			return nil
		},
	}
}
