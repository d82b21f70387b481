package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/minios-linux/stringlate/android"
	"github.com/minios-linux/stringlate/github"
	"github.com/minios-linux/stringlate/gitsource"
	"github.com/minios-linux/stringlate/i18n"
	"github.com/minios-linux/stringlate/repo"
)

// ---------------------------------------------------------------------------
// add / sync
// ---------------------------------------------------------------------------

func newAddCmd() *cobra.Command {
	var branch string

	cmd := &cobra.Command{
		Use:   "add <git-url>",
		Short: "Add a project and fetch its strings",
		Long: `Clone a git repository, find its Android string resources and store
them as a new project. GitHub and GitLab page URLs are accepted too.

Examples:
  stringlate add https://github.com/owner/app
  stringlate add git@github.com:owner/app.git --branch origin/dev`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := github.GitURL(args[0])
			if repo.Exists(cfg.DataDir, url) {
				logWarning(i18n.T("%s is already added, synchronizing it"), url)
			}

			progress := newProgressLine()
			h, err := syncer.Add(cmd.Context(), cfg.DataDir, url, gitsource.New(url, branch, cfg.GitBinary), progress.update)
			progress.finish()
			if err != nil {
				return err
			}
			logSuccess(i18n.T("Added %s with %d locales"), h.ProjectName(), len(h.Locales()))
			return nil
		},
	}

	cmd.Flags().StringVarP(&branch, "branch", "b", "", "Branch to clone (default: remote HEAD)")
	return cmd
}

func newSyncCmd() *cobra.Command {
	var branch string

	cmd := &cobra.Command{
		Use:   "sync <project>",
		Short: "Fetch the latest strings of a project",
		Long: `Fetch the remote resources again and merge them into the project.

Strings edited locally are kept. Strings that no longer exist upstream are
removed from every locale.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openProject(args[0])
			if err != nil {
				return err
			}
			if holder, busy := h.Syncing(); busy {
				return fmt.Errorf(i18n.T("%s is being synchronized by process %d"), h.ProjectName(), holder.PID)
			}

			progress := newProgressLine()
			err = syncer.Sync(cmd.Context(), h, gitsource.New(h.Settings().Source, branch, cfg.GitBinary), progress.update)
			progress.finish()
			if err != nil {
				return err
			}
			logSuccess(i18n.T("%s is up to date"), h.ProjectName())
			return nil
		},
	}

	cmd.Flags().StringVarP(&branch, "branch", "b", "", "Branch to fetch (default: remote HEAD)")
	return cmd
}

// ---------------------------------------------------------------------------
// list / remove
// ---------------------------------------------------------------------------

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List projects",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			hs, err := repo.List(cfg.DataDir)
			if err != nil {
				return err
			}
			if len(hs) == 0 {
				logInfo("%s", i18n.T("No projects yet, add one with 'stringlate add <git-url>'"))
				return nil
			}

			fmt.Printf("%-24s %-8s %-16s %s\n", "Name", "Locales", "Synced", "Source")
			fmt.Println(strings.Repeat("─", 80))
			for _, h := range hs {
				fmt.Printf("%-24s %-8d %-16s %s\n", h.ProjectName(), len(h.Locales()), syncedAgo(h.Settings().LastSync), h.String())
			}
			return nil
		},
	}
}

func syncedAgo(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <project>",
		Aliases: []string{"rm"},
		Short:   "Delete a project and all its translations",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openProject(args[0])
			if err != nil {
				return err
			}
			if _, busy := h.Syncing(); busy {
				return fmt.Errorf(i18n.T("%s is being synchronized"), h.ProjectName())
			}
			if modified, err := h.AnyModified(); err == nil && modified {
				logWarning(i18n.T("%s had local translations"), h.ProjectName())
			}
			if err := h.Delete(); err != nil {
				return err
			}
			logSuccess(i18n.T("Removed %s"), h.ProjectName())
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// status
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <project>",
		Short: "Show project info and translation statistics",
		Long: `Show where a project comes from, when it was synchronized and how much
of each locale is translated. Does not modify any files.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openProject(args[0])
			if err != nil {
				return err
			}
			showStatus(h)
			return nil
		},
	}
}

func showStatus(h *repo.Handler) {
	st := h.Settings()
	src := h.SourceSettings()

	fmt.Fprintf(os.Stderr, "%s\n", bold(h.ProjectName()))
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	fmt.Fprintf(os.Stderr, "  %-12s %s\n", "Source:", st.Source)
	if st.Homepage() != st.Source {
		fmt.Fprintf(os.Stderr, "  %-12s %s\n", "Homepage:", st.Homepage())
	}
	fmt.Fprintf(os.Stderr, "  %-12s %s\n", "Directory:", h.Root())
	fmt.Fprintf(os.Stderr, "  %-12s %s\n", "Synced:", syncedAgo(st.LastSync))
	if svc := src.Get(gitsource.KeyTranslationService); svc != "" {
		logWarning(i18n.T("This project is translated on %s, consider contributing there"), svc)
	}
	if branches := src.List(gitsource.KeyRemoteBranches); len(branches) > 0 {
		fmt.Fprintf(os.Stderr, "  %-12s %s\n", "Branches:", strings.Join(branches, ", "))
	}
	if icon := st.Icon(); icon != "" {
		if info, err := os.Stat(icon); err == nil {
			fmt.Fprintf(os.Stderr, "  %-12s %s (%s)\n", "Icon:", icon, humanize.Bytes(uint64(info.Size())))
		}
	}
	if holder, busy := h.Syncing(); busy {
		fmt.Fprintf(os.Stderr, "  %-12s pid %d since %s\n", "Syncing:", holder.PID, humanize.Time(holder.Started))
	}

	fmt.Fprintf(os.Stderr, "\n  %-12s\n", "Default resources:")
	for _, name := range st.RemoteNames() {
		rp, _ := st.RemotePath(name)
		fmt.Fprintf(os.Stderr, "    %-14s %s\n", name, rp)
	}

	locales := h.Locales()
	if len(locales) == 0 {
		fmt.Fprintln(os.Stderr)
		logInfo("%s", i18n.T("No locales yet, add one with 'stringlate locale add'"))
		return
	}

	fmt.Fprintf(os.Stderr, "\n%-10s %-24s %-12s %s\n", "Locale", "Language", "Translated", "Progress")
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 72))
	for _, l := range locales {
		translated, total, err := h.Stats(l)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%-10s %-24s %s\n", l, repo.DisplayName(l), red(err.Error()))
			continue
		}
		percent := 0
		if total > 0 {
			percent = translated * 100 / total
		}
		marker := ""
		if l == st.LastLocale {
			marker = " *"
		}
		fmt.Fprintf(os.Stderr, "%-10s %-24s %-12s %s%s\n", l, repo.DisplayName(l),
			fmt.Sprintf("%d/%d", translated, total), progressBar(percent, 20), marker)
	}
	fmt.Fprintln(os.Stderr)
}

// ---------------------------------------------------------------------------
// locales / locale add|rm
// ---------------------------------------------------------------------------

func newLocalesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "locales <project>",
		Short: "List the locales of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openProject(args[0])
			if err != nil {
				return err
			}
			for _, l := range h.Locales() {
				fmt.Printf("%-10s %s\n", l, repo.DisplayName(l))
			}
			return nil
		},
	}
}

func newLocaleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locale",
		Short: "Add or remove locales",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <project> <locale>",
		Short: "Start translating a project into a new locale",
		Long: `Add a locale such as "es" or "pt-rBR" to a project.

Android region qualifiers ("pt-rBR") and BCP-47 tags ("pt-BR") are both
accepted; the Android form is stored.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openProject(args[0])
			if err != nil {
				return err
			}
			locale := android.AndroidLocale(args[1])
			if h.HasLocale(locale) {
				logInfo(i18n.T("%s already has %s"), h.ProjectName(), locale)
				return nil
			}
			if err := h.CreateLocale(locale); err != nil {
				return err
			}
			h.Settings().LastLocale = locale
			if err := h.SaveSettings(); err != nil {
				return err
			}
			logSuccess(i18n.T("Added %s (%s)"), locale, repo.DisplayName(locale))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "remove <project> <locale>",
		Aliases: []string{"rm"},
		Short:   "Delete a locale and its translations",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openProject(args[0])
			if err != nil {
				return err
			}
			locale := android.AndroidLocale(args[1])
			if err := requireLocale(h, locale); err != nil {
				return err
			}
			if err := h.DeleteLocale(locale); err != nil {
				return err
			}
			if h.Settings().LastLocale == locale {
				h.Settings().LastLocale = ""
				if err := h.SaveSettings(); err != nil {
					return err
				}
			}
			logSuccess(i18n.T("Removed %s"), locale)
			return nil
		},
	})

	return cmd
}

// ---------------------------------------------------------------------------
// strings / set / unset
// ---------------------------------------------------------------------------

func newStringsCmd() *cobra.Command {
	var (
		filter      string
		missingOnly bool
	)

	cmd := &cobra.Command{
		Use:   "strings <project> <locale>",
		Short: "Show the strings of a locale next to the originals",
		Long: `Print every translatable string id with its original text and its
translation. Locally edited translations are marked with "*".

--filter matches ids and original text, case-insensitively, and is
remembered for the project; pass --filter "" to clear it.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openProject(args[0])
			if err != nil {
				return err
			}
			locale := android.AndroidLocale(args[1])
			if err := requireLocale(h, locale); err != nil {
				return err
			}

			if cmd.Flags().Changed("filter") {
				h.Settings().SearchFilter = filter
			}
			h.Settings().LastLocale = locale
			if err := h.SaveSettings(); err != nil {
				return err
			}

			def, err := h.LoadDefaultResources()
			if err != nil {
				return err
			}
			tr, err := h.LoadResources(locale)
			if err != nil {
				return err
			}

			def.SetFilter(h.Settings().SearchFilter)
			shown := 0
			for _, t := range def.Filtered() {
				if !t.Translatable() {
					continue
				}
				content := tr.Content(t.ID())
				if missingOnly && content != "" {
					continue
				}
				mark := " "
				if tr.WasModified(t.ID()) {
					mark = yellow("*")
				}
				fmt.Printf("%s %s\n    %s\n    %s\n", mark, bold(t.ID()), t.Content(), green(content))
				shown++
			}
			if def.Filter() != "" {
				logInfo(i18n.N("%d string matches %q", "%d strings match %q", shown), shown, def.Filter())
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&filter, "filter", "f", "", "Only show ids or originals containing this text")
	cmd.Flags().BoolVarP(&missingOnly, "missing", "m", false, "Only show untranslated strings")
	return cmd
}

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <project> <locale> <id> <translation>...",
		Short: "Translate a string",
		Long: `Store the translation of one string. Array items and plurals are
addressed as "name:index" and "name:quantity", e.g. "planets:2" or
"files:other". An empty translation removes it.`,
		Args: cobra.MinimumNArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openProject(args[0])
			if err != nil {
				return err
			}
			locale, id := android.AndroidLocale(args[1]), args[2]
			content := strings.Join(args[3:], " ")
			if err := requireLocale(h, locale); err != nil {
				return err
			}

			def, err := h.LoadDefaultResources()
			if err != nil {
				return err
			}
			original, ok := def.Get(id)
			if !ok {
				return fmt.Errorf(i18n.T("%s has no string %q"), h.ProjectName(), id)
			}
			if !original.Translatable() {
				return fmt.Errorf(i18n.T("%q is marked as not translatable"), id)
			}

			tr, err := h.LoadResources(locale)
			if err != nil {
				return err
			}
			var changed bool
			if tr.Contains(id) || strings.TrimSpace(content) == "" {
				changed = tr.SetContent(id, content)
			} else {
				changed = tr.SetContentFrom(original, content)
			}
			if !changed {
				logInfo("%s", i18n.T("Nothing changed"))
				return nil
			}
			if err := tr.Save(); err != nil {
				return err
			}

			h.Settings().LastLocale = locale
			if err := h.SaveSettings(); err != nil {
				return err
			}
			logSuccess(i18n.T("Saved %s"), id)
			return nil
		},
	}
}

func newUnsetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unset <project> <locale> <id>...",
		Short: "Remove translations",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := openProject(args[0])
			if err != nil {
				return err
			}
			locale := android.AndroidLocale(args[1])
			if err := requireLocale(h, locale); err != nil {
				return err
			}
			tr, err := h.LoadResources(locale)
			if err != nil {
				return err
			}

			ids := args[2:]
			sort.Strings(ids)
			removed := 0
			for _, id := range ids {
				if tr.DeleteID(id) {
					removed++
				} else {
					logWarning(i18n.T("%s is not translated"), id)
				}
			}
			if removed == 0 {
				return nil
			}
			if err := tr.Save(); err != nil {
				return err
			}
			logSuccess(i18n.N("Removed %d translation", "Removed %d translations", removed), removed)
			return nil
		},
	}
}
