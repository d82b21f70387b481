package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/minios-linux/stringlate/android"
	"github.com/minios-linux/stringlate/github"
	"github.com/minios-linux/stringlate/i18n"
	"github.com/minios-linux/stringlate/repo"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export translations as files, gists, issues, commits or pull requests",
		Long: `Write the translation of a locale somewhere useful.

Every target applies the translation to the project's default resource
files: translated strings are written in the order of the originals, and
untranslated or untranslatable ones are left out.

Targets:
  file    Write the translated resources to a file or stdout
  gist    Publish them as a GitHub gist
  issue   Open (or comment on) an issue in the upstream repository
  commit  Commit them to a branch you can push to
  pr      Commit them on a fork and open a pull request
  zip     Back up the whole project`,
	}

	cmd.AddCommand(newExportFileCmd())
	cmd.AddCommand(newExportGistCmd())
	cmd.AddCommand(newExportIssueCmd())
	cmd.AddCommand(newExportCommitCmd())
	cmd.AddCommand(newExportPRCmd())
	cmd.AddCommand(newExportZipCmd())
	return cmd
}

// openLocale resolves the <project> <locale> argument pair.
func openLocale(args []string) (*repo.Handler, string, error) {
	h, err := openProject(args[0])
	if err != nil {
		return nil, "", err
	}
	locale := android.AndroidLocale(args[1])
	if err := requireLocale(h, locale); err != nil {
		return nil, "", err
	}
	return h, locale, nil
}

// translatedXML returns the translation of locale laid out like the default
// resources. Projects with several default files get them joined.
func translatedXML(h *repo.Handler, locale string) (string, error) {
	files := h.DefaultResourceFiles()
	if len(files) == 0 {
		return "", fmt.Errorf(i18n.T("%s has no default resources, synchronize it first"), h.ProjectName())
	}
	if len(files) > 1 {
		out, err := h.MergeDefaultTemplate(locale)
		if errors.Is(err, repo.ErrNothingTranslated) {
			return "", fmt.Errorf(i18n.T("nothing is translated into %s yet"), locale)
		}
		return out, err
	}

	var buf bytes.Buffer
	ok, err := h.ApplyTemplate(files[0], locale, &buf)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf(i18n.T("nothing is translated into %s yet"), locale)
	}
	return buf.String(), nil
}

// localeFiles maps the remote path of every translated resources file of
// locale to its content.
func localeFiles(h *repo.Handler, locale string) (map[string]string, error) {
	if !h.HasRemotePaths() {
		return nil, fmt.Errorf(i18n.T("%s does not know where its resources came from, synchronize it first"), h.ProjectName())
	}

	files := make(map[string]string)
	for tmpl, remote := range h.TemplateRemotePaths(locale) {
		var buf bytes.Buffer
		ok, err := h.ApplyTemplate(tmpl, locale, &buf)
		if err != nil {
			return nil, fmt.Errorf("applying %s: %w", filepath.Base(tmpl), err)
		}
		if ok {
			files[remote] = buf.String()
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf(i18n.T("nothing is translated into %s yet"), locale)
	}
	return files, nil
}

func upstreamRepo(h *repo.Handler) (github.Repo, error) {
	return github.ParseOwnerRepo(h.Settings().Source)
}

func defaultMessage(h *repo.Handler, locale string) string {
	return fmt.Sprintf("Update %s translation\n\nTranslated %s into %s with stringlate.",
		repo.DisplayName(locale), h.ProjectName(), repo.DisplayName(locale))
}

// ---------------------------------------------------------------------------
// file
// ---------------------------------------------------------------------------

func newExportFileCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "file <project> <locale>",
		Short: "Write the translated resources to a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, locale, err := openLocale(args)
			if err != nil {
				return err
			}
			content, err := translatedXML(h, locale)
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), content)
				return err
			}
			if err := os.WriteFile(output, []byte(content), 0644); err != nil {
				return fmt.Errorf("writing %s: %w", output, err)
			}
			logSuccess(i18n.T("Wrote %s"), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

// ---------------------------------------------------------------------------
// gist
// ---------------------------------------------------------------------------

func newExportGistCmd() *cobra.Command {
	var public bool

	cmd := &cobra.Command{
		Use:   "gist <project> <locale>",
		Short: "Publish the translated resources as a gist",
		Long: `Publish the translation as a GitHub gist. Without a login the gist is
created anonymously if the server allows it.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, locale, err := openLocale(args)
			if err != nil {
				return err
			}

			files := make(map[string]string)
			for _, tmpl := range h.DefaultResourceFiles() {
				var buf bytes.Buffer
				ok, err := h.ApplyTemplate(tmpl, locale, &buf)
				if err != nil {
					return err
				}
				if ok {
					files[filepath.Base(tmpl)] = buf.String()
				}
			}
			if len(files) == 0 {
				return fmt.Errorf(i18n.T("nothing is translated into %s yet"), locale)
			}

			description := fmt.Sprintf("%s translation of %s", repo.DisplayName(locale), h.ProjectName())
			gist, err := githubClient(settingsToken()).CreateGist(cmd.Context(), description, public, files)
			if err != nil {
				return err
			}
			logSuccess(i18n.T("Created %s"), gist.HTMLURL)
			return nil
		},
	}

	cmd.Flags().BoolVar(&public, "public", false, "Make the gist public")
	return cmd
}

// settingsToken returns the GitHub token if there is one, for requests
// that also work anonymously.
func settingsToken() string {
	t, _ := requireToken()
	return t
}

// ---------------------------------------------------------------------------
// issue
// ---------------------------------------------------------------------------

func newExportIssueCmd() *cobra.Command {
	var newIssue bool

	cmd := &cobra.Command{
		Use:   "issue <project> <locale>",
		Short: "Post the translation to the upstream issue tracker",
		Long: `Open an issue in the upstream repository holding the translation.
Later exports of the same locale comment on that issue instead of opening
a new one; pass --new to open another.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, locale, err := openLocale(args)
			if err != nil {
				return err
			}
			token, err := requireToken()
			if err != nil {
				return err
			}
			upstream, err := upstreamRepo(h)
			if err != nil {
				return err
			}
			content, err := translatedXML(h, locale)
			if err != nil {
				return err
			}

			body := fmt.Sprintf("Translation of %s into %s.\n\n```xml\n%s\n```\n",
				h.ProjectName(), repo.DisplayName(locale), strings.TrimRight(content, "\n"))
			client := githubClient(token)

			if number, ok := h.Settings().Issue(locale); ok && !newIssue {
				if _, err := client.CommentIssue(cmd.Context(), upstream, number, body); err != nil {
					return err
				}
				logSuccess(i18n.T("Updated %s/issues/%d"), upstream.URL(), number)
				return nil
			}

			title := fmt.Sprintf("%s translation", repo.DisplayName(locale))
			issue, err := client.CreateIssue(cmd.Context(), upstream, title, body)
			if err != nil {
				return err
			}
			h.Settings().SetIssue(locale, issue.Number)
			if err := h.SaveSettings(); err != nil {
				return err
			}
			logSuccess(i18n.T("Opened %s"), issue.HTMLURL)
			return nil
		},
	}

	cmd.Flags().BoolVar(&newIssue, "new", false, "Open a new issue even if one exists")
	return cmd
}

// ---------------------------------------------------------------------------
// commit / pr
// ---------------------------------------------------------------------------

func newExportCommitCmd() *cobra.Command {
	var branch, message string

	cmd := &cobra.Command{
		Use:   "commit <project> <locale>",
		Short: "Commit the translation to the upstream repository",
		Long: `Commit the translated resources directly to a branch of the upstream
repository. Requires push access; use 'export pr' otherwise.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, locale, err := openLocale(args)
			if err != nil {
				return err
			}
			token, err := requireToken()
			if err != nil {
				return err
			}
			upstream, err := upstreamRepo(h)
			if err != nil {
				return err
			}
			files, err := localeFiles(h, locale)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			client := githubClient(token)
			login, canPush, err := client.CanPush(ctx, upstream)
			if err != nil {
				return err
			}
			if !canPush {
				return fmt.Errorf(i18n.T("%s cannot push to %s, use 'stringlate export pr'"), login, upstream)
			}
			if branch == "" {
				if branch, err = client.DefaultBranch(ctx, upstream); err != nil {
					return err
				}
			}
			if message == "" {
				message = defaultMessage(h, locale)
			}

			logInfo(i18n.N("Committing %d file to %s", "Committing %d files to %s", len(files)), len(files), branch)
			ref, err := client.CommitFiles(ctx, upstream, branch, message, files)
			if err != nil {
				return err
			}
			logSuccess("%s", github.CommitURL(upstream, ref.Object.SHA))
			return nil
		},
	}

	cmd.Flags().StringVarP(&branch, "branch", "b", "", "Branch to commit to (default: repository default branch)")
	cmd.Flags().StringVarP(&message, "message", "m", "", "Commit message")
	return cmd
}

func newExportPRCmd() *cobra.Command {
	var base, message string

	cmd := &cobra.Command{
		Use:   "pr <project> <locale>",
		Short: "Propose the translation as a pull request",
		Long: `Commit the translated resources to a new branch and open a pull request
against the upstream repository. Users without push access work on a fork,
which is created when needed.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, locale, err := openLocale(args)
			if err != nil {
				return err
			}
			token, err := requireToken()
			if err != nil {
				return err
			}
			upstream, err := upstreamRepo(h)
			if err != nil {
				return err
			}
			files, err := localeFiles(h, locale)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			client := githubClient(token)
			if base == "" {
				if base, err = client.DefaultBranch(ctx, upstream); err != nil {
					return err
				}
			}
			if message == "" {
				message = defaultMessage(h, locale)
			}

			pr, err := client.ForkThenCommit(ctx, upstream, github.Change{
				Base:    base,
				Branch:  prBranch(locale),
				Message: message,
				Files:   files,
			})
			if err != nil {
				return err
			}
			logSuccess(i18n.T("Opened %s"), pr.HTMLURL)
			return nil
		},
	}

	cmd.Flags().StringVar(&base, "base", "", "Branch to propose the change to (default: repository default branch)")
	cmd.Flags().StringVarP(&message, "message", "m", "", "Commit message; the first line titles the pull request")
	return cmd
}

// prBranch names a fresh branch for a translation of locale.
func prBranch(locale string) string {
	return "stringlate-" + strings.ToLower(locale) + "-" + uuid.NewString()[:8]
}

// ---------------------------------------------------------------------------
// zip
// ---------------------------------------------------------------------------

func newExportZipCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "zip <project>",
		Short: "Back up a project to a zip archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openProject(args[0])
			if err != nil {
				return err
			}
			if output == "" {
				output = h.ProjectName() + ".zip"
			}

			f, err := os.Create(output)
			if err != nil {
				return err
			}
			if err := h.ExportZip(f); err != nil {
				f.Close()
				os.Remove(output)
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}

			info, err := os.Stat(output)
			if err != nil {
				return err
			}
			logSuccess(i18n.T("Wrote %s (%s)"), output, humanize.Bytes(uint64(info.Size())))
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Archive path (default: <name>.zip)")
	return cmd
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import projects",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "zip <archive>",
		Short: "Restore a project from a zip backup",
		Long: `Restore a project written by 'stringlate export zip'. An existing copy
of the project is replaced, and put back if the archive cannot be read.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			info, err := f.Stat()
			if err != nil {
				return err
			}

			name, err := repo.ArchiveRoot(f, info.Size())
			if err != nil {
				return err
			}
			h, err := repo.OpenRoot(filepath.Join(cfg.DataDir, name))
			if err != nil {
				return err
			}
			if _, busy := h.Syncing(); busy || syncer.Syncing(h.Root()) {
				return fmt.Errorf(i18n.T("%s is being synchronized"), name)
			}
			if err := h.ImportZip(f, info.Size()); err != nil {
				return err
			}

			h, err = repo.OpenRoot(h.Root())
			if err != nil {
				return err
			}
			locales := h.Locales()
			sort.Strings(locales)
			logSuccess(i18n.T("Imported %s (%s)"), h.ProjectName(), strings.Join(locales, ", "))
			return nil
		},
	})

	return cmd
}
