package repo

import (
	"context"

	"github.com/minios-linux/stringlate/android"
	"github.com/minios-linux/stringlate/settings"
)

// DefaultLocale names the untranslated resource set of a project.
const DefaultLocale = "default"

// Progress reports how far a sync has come. Stage 1 is the fetch done by the
// Source, stage 2 the local merge.
type Progress struct {
	Stage   int
	Done    int
	Total   int
	Message string
}

// Fraction returns Done/Total, or 0 when Total is unknown.
func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return 0
	}
	return float64(p.Done) / float64(p.Total)
}

// ProgressFunc receives progress updates. It may be nil.
type ProgressFunc func(Progress)

func (f ProgressFunc) report(p Progress) {
	if f != nil {
		f(p)
	}
}

// Source provides the remote resources a project is synchronized from.
//
// Setup fetches everything into workDir and must be called before any other
// method. It should return promptly once ctx is done or Cancel is called.
type Source interface {
	Name() string
	Setup(ctx context.Context, st *settings.Source, workDir, iconDensity string, progress ProgressFunc) error

	// Locales lists the translated locales, never DefaultLocale.
	Locales() []string
	Resources(locale string) ([]android.Tag, error)

	// DefaultResources lists the remote paths of the untranslated files.
	DefaultResources() []string
	DefaultResource(name string) ([]android.Tag, error)
	// DefaultResourceXML returns the raw file, if the source keeps one.
	DefaultResourceXML(name string) ([]byte, bool)

	// Icon returns a path to the project icon, or "".
	Icon() string

	Cancel()
	Dispose() error
}
