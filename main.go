// stringlate: translate the string resources of Android projects hosted in
// git repositories and publish the translations back to GitHub.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/minios-linux/stringlate/config"
	"github.com/minios-linux/stringlate/github"
	"github.com/minios-linux/stringlate/i18n"
	"github.com/minios-linux/stringlate/repo"
	"github.com/minios-linux/stringlate/settings"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	blue   = color.New(color.FgBlue).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow, color.Bold).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, blue("[INFO]")+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, green("[OK]")+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, yellow("[WARN]")+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, red("[ERROR]")+" "+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Global state
// ---------------------------------------------------------------------------

var (
	cfgFile   string
	verbose   bool
	tokenFlag string

	cfg    *config.Config
	syncer *repo.Syncer
)

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "stringlate",
		Short: i18n.T("Translate Android string resources from git repositories"),
		Long: `stringlate: translate the strings.xml resources of Android projects.

Projects are cloned from their git repository, their string resources are
merged into a local copy, and translations are published back as a file,
gist, issue, commit or pull request. Local edits always win over remote
changes when a project is synchronized again.

Commands:
  add       Add a project and fetch its strings
  sync      Fetch the latest strings of a project
  list      List projects
  status    Show project info and translation statistics
  strings   Show and filter the strings of a locale
  set       Translate a string
  export    Publish a translation
  auth      Manage GitHub authentication`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default "+config.DefaultFile()+")")
	pf.String("data-dir", "", "Directory holding the projects")
	pf.String("cache-dir", "", "Directory for temporary clones")
	pf.String("github-api", "", "GitHub API endpoint")
	pf.String("git", "", "git executable")
	pf.String("log-level", "", "Log level: debug, info, warn, error")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Verbose logging")
	pf.StringVar(&tokenFlag, "token", "", "GitHub token (overrides "+settings.TokenEnv+" and stored credentials)")

	root.AddCommand(
		newAddCmd(),
		newSyncCmd(),
		newListCmd(),
		newRemoveCmd(),
		newStatusCmd(),
		newLocalesCmd(),
		newLocaleCmd(),
		newStringsCmd(),
		newSetCmd(),
		newUnsetCmd(),
		newExportCmd(),
		newImportCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

// setup loads the configuration and installs the logger.
func setup(cmd *cobra.Command) error {
	c, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	cfg = c

	level := cfg.Level()
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})))

	syncer = repo.NewSyncer(cfg.CacheDir, cfg.IconDensity)
	return nil
}

func main() {
	i18n.Init("")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		if errors.Is(err, repo.ErrCancelled) {
			logWarning("%s", i18n.T("Cancelled"))
		} else {
			logError("%v", err)
		}
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("stringlate version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// Shared helpers
// ---------------------------------------------------------------------------

// openProject finds a project by source URL, name or directory name.
func openProject(arg string) (*repo.Handler, error) {
	for _, u := range []string{arg, github.GitURL(arg)} {
		if repo.Exists(cfg.DataDir, u) {
			return repo.OpenRoot(filepath.Join(cfg.DataDir, repo.ProjectID(u)))
		}
	}

	all, err := repo.List(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	var matches []*repo.Handler
	for _, h := range all {
		if strings.EqualFold(h.ProjectName(), arg) || filepath.Base(h.Root()) == arg || h.String() == arg {
			matches = append(matches, h)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf(i18n.T("no project matches %q, see 'stringlate list'"), arg)
	case 1:
		return matches[0], nil
	default:
		var names []string
		for _, h := range matches {
			names = append(names, h.String())
		}
		return nil, fmt.Errorf(i18n.T("%q matches several projects: %s"), arg, strings.Join(names, ", "))
	}
}

// requireLocale checks that locale exists in h.
func requireLocale(h *repo.Handler, locale string) error {
	if !h.HasLocale(locale) {
		return fmt.Errorf(i18n.T("%s has no locale %q, add it with 'stringlate locale add'"), h.ProjectName(), locale)
	}
	return nil
}

func githubClient(token string) *github.Client {
	return github.New(github.Options{
		BaseURL:   cfg.GitHubAPI,
		Token:     token,
		UserAgent: "stringlate/" + version,
		Timeout:   cfg.HTTPTimeout,
		Retries:   cfg.HTTPRetries,
		ForkWait:  cfg.ForkWait,
	})
}

// requireToken returns the GitHub token or explains how to get one.
func requireToken() (string, error) {
	if t := settings.ResolveToken(tokenFlag); t != "" {
		return t, nil
	}
	return "", fmt.Errorf(i18n.T("not logged in to GitHub, run 'stringlate auth login' or set %s"), settings.TokenEnv)
}

// progressBar renders percent as a colored bar of width cells.
func progressBar(percent, width int) string {
	percent = max(0, min(percent, 100))
	filled := percent * width / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	paint := red
	switch {
	case percent >= 100:
		paint = green
	case percent >= 50:
		paint = yellow
	}
	return paint(bar) + fmt.Sprintf(" %3d%%", percent)
}

// progressLine prints sync progress, redrawing one line on terminals.
type progressLine struct {
	tty    bool
	drawn  bool
	last   string
	stderr *os.File
}

func newProgressLine() *progressLine {
	return &progressLine{tty: isatty.IsTerminal(os.Stderr.Fd()), stderr: os.Stderr}
}

func (p *progressLine) update(pr repo.Progress) {
	msg := pr.Message
	if p.tty {
		fmt.Fprintf(p.stderr, "\r\033[K[%d/2] %s %s", pr.Stage, progressBar(int(pr.Fraction()*100), 20), msg)
		p.drawn = true
		return
	}
	if msg != "" && msg != p.last {
		logInfo("%s", msg)
		p.last = msg
	}
}

func (p *progressLine) finish() {
	if p.drawn {
		fmt.Fprintln(p.stderr)
		p.drawn = false
	}
}
