package github

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI records requests and serves canned responses.
type fakeAPI struct {
	t   *testing.T
	mux *http.ServeMux
	srv *httptest.Server

	mu    sync.Mutex
	calls []string
	blobs int
}

func newFakeAPI(t *testing.T) *fakeAPI {
	f := &fakeAPI{t: t, mux: http.NewServeMux()}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.calls = append(f.calls, r.Method+" "+r.URL.Path)
		f.mu.Unlock()
		f.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) client(token string) *Client {
	c := New(Options{BaseURL: f.srv.URL + "/", Token: token, ForkWait: 10 * time.Second})
	c.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return c
}

func (f *fakeAPI) called(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func reply(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&m))
	return m
}

// commitAPI serves the object endpoints used by CommitFiles on o/r.
func (f *fakeAPI) commitAPI(failBlob int) {
	f.mux.HandleFunc("GET /repos/o/r/git/ref/heads/main", func(w http.ResponseWriter, r *http.Request) {
		reply(w, 200, `{"ref":"refs/heads/main","object":{"sha":"head1","type":"commit"}}`)
	})
	f.mux.HandleFunc("GET /repos/o/r/git/commits/head1", func(w http.ResponseWriter, r *http.Request) {
		reply(w, 200, `{"sha":"head1","tree":{"sha":"tree1"}}`)
	})
	f.mux.HandleFunc("POST /repos/o/r/git/blobs", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.blobs++
		n := f.blobs
		f.mu.Unlock()
		body := decodeBody(f.t, r)
		assert.Equal(f.t, "utf-8", body["encoding"])
		if n == failBlob {
			reply(w, 422, `{"message":"blob rejected"}`)
			return
		}
		reply(w, 201, `{"sha":"blob`+string(rune('0'+n))+`"}`)
	})
	f.mux.HandleFunc("POST /repos/o/r/git/trees", func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(f.t, r)
		assert.Equal(f.t, "tree1", body["base_tree"])
		entries := body["tree"].([]any)
		assert.Len(f.t, entries, 3)
		first := entries[0].(map[string]any)
		assert.Equal(f.t, "100644", first["mode"])
		assert.Equal(f.t, "blob", first["type"])
		assert.Equal(f.t, "a/values-es/strings.xml", first["path"])
		reply(w, 201, `{"sha":"tree2"}`)
	})
	f.mux.HandleFunc("POST /repos/o/r/git/commits", func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(f.t, r)
		assert.Equal(f.t, "tree2", body["tree"])
		assert.Equal(f.t, []any{"head1"}, body["parents"])
		reply(w, 201, `{"sha":"commit2"}`)
	})
	f.mux.HandleFunc("PATCH /repos/o/r/git/refs/heads/main", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(f.t, "commit2", decodeBody(f.t, r)["sha"])
		reply(w, 200, `{"ref":"refs/heads/main","object":{"sha":"commit2"}}`)
	})
}

var threeFiles = map[string]string{
	"a/values-es/strings.xml": "<resources/>",
	"b/values-es/strings.xml": "<resources/>",
	"c/values-es/strings.xml": "<resources/>",
}

func TestCommitFiles(t *testing.T) {
	api := newFakeAPI(t)
	api.commitAPI(0)

	ref, err := api.client("tok").CommitFiles(context.Background(), Repo{"o", "r"}, "main", "Update es", threeFiles)
	require.NoError(t, err)
	assert.Equal(t, "commit2", ref.Object.SHA)
	assert.Equal(t, 3, api.called("POST /repos/o/r/git/blobs"))
	assert.Equal(t, 1, api.called("PATCH /repos/o/r/git/refs/heads/main"))
}

func TestCommitFilesBlobFailureLeavesBranch(t *testing.T) {
	api := newFakeAPI(t)
	api.commitAPI(2)

	_, err := api.client("tok").CommitFiles(context.Background(), Repo{"o", "r"}, "main", "Update es", threeFiles)
	require.Error(t, err)
	assert.True(t, IsStatus(err, 422))
	assert.Contains(t, err.Error(), "b/values-es/strings.xml")

	assert.Equal(t, 2, api.called("POST /repos/o/r/git/blobs"))
	assert.Zero(t, api.called("POST /repos/o/r/git/trees"))
	assert.Zero(t, api.called("POST /repos/o/r/git/commits"))
	assert.Zero(t, api.called("PATCH /repos/o/r/git/refs/heads/main"))
}

func TestCommitFilesMissingField(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("GET /repos/o/r/git/ref/heads/main", func(w http.ResponseWriter, r *http.Request) {
		reply(w, 200, `{"ref":"refs/heads/main","object":{}}`)
	})

	_, err := api.client("tok").CommitFiles(context.Background(), Repo{"o", "r"}, "main", "msg", threeFiles)
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestBearerTokenAndHeaders(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))
		assert.Equal(t, "stringlate", r.Header.Get("User-Agent"))
		reply(w, 200, `{"login":"octo"}`)
	})

	u, err := api.client("secret").User(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "octo", u.Login)
}

func TestAPIErrorIsDecoded(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		reply(w, 401, `{"message":"Bad credentials","documentation_url":"https://docs.github.com/rest"}`)
	})

	_, err := api.client("bad").User(context.Background())
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.Status)
	assert.Equal(t, "Bad credentials", apiErr.Message)
	assert.Equal(t, "https://docs.github.com/rest", apiErr.DocumentationURL)
}

func TestCanPush(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   bool
	}{
		{"push", 200, `[{"login":"other","permissions":{"push":true}},{"login":"octo","permissions":{"push":true}}]`, true},
		{"read only", 200, `[{"login":"octo","permissions":{"pull":true,"push":false}}]`, false},
		{"not listed", 200, `[{"login":"other","permissions":{"push":true}}]`, false},
		{"forbidden", 403, `{"message":"Must have push access to view repository collaborators."}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI(t)
			api.mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
				reply(w, 200, `{"login":"octo"}`)
			})
			api.mux.HandleFunc("GET /repos/o/r/collaborators", func(w http.ResponseWriter, r *http.Request) {
				reply(w, tt.status, tt.body)
			})

			login, push, err := api.client("tok").CanPush(context.Background(), Repo{"o", "r"})
			require.NoError(t, err)
			assert.Equal(t, "octo", login)
			assert.Equal(t, tt.want, push)
		})
	}
}

func TestForkTimeout(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("POST /repos/o/r/forks", func(w http.ResponseWriter, r *http.Request) {
		reply(w, 202, `{"name":"r","owner":{"login":"me"}}`)
	})
	api.mux.HandleFunc("GET /repos/me/r/commits", func(w http.ResponseWriter, r *http.Request) {
		reply(w, 409, `{"message":"Git Repository is empty."}`)
	})

	c := api.client("tok")
	var waits []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	c.forkWait = 40 * time.Second

	_, err := c.Fork(context.Background(), Repo{"o", "r"})
	assert.ErrorIs(t, err, ErrForkTimeout)
	assert.Equal(t, []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 9 * time.Second,
	}, waits)
}

func TestForkWaitsUntilReady(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("POST /repos/o/r/forks", func(w http.ResponseWriter, r *http.Request) {
		reply(w, 202, `{"name":"r","owner":{"login":"me"}}`)
	})
	polls := 0
	api.mux.HandleFunc("GET /repos/me/r/commits", func(w http.ResponseWriter, r *http.Request) {
		polls++
		if polls < 3 {
			reply(w, 409, `{"message":"Git Repository is empty."}`)
			return
		}
		reply(w, 200, `[{"sha":"abc"}]`)
	})

	fork, err := api.client("tok").Fork(context.Background(), Repo{"o", "r"})
	require.NoError(t, err)
	assert.Equal(t, "me", fork.Owner.Login)
	assert.Equal(t, 3, polls)
}

func TestForkHonoursContext(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("POST /repos/o/r/forks", func(w http.ResponseWriter, r *http.Request) {
		reply(w, 202, `{"name":"r","owner":{"login":"me"}}`)
	})
	c := api.client("tok")
	ctx, cancel := context.WithCancel(context.Background())
	c.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	_, err := c.Fork(ctx, Repo{"o", "r"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestForkThenCommit(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		reply(w, 200, `{"login":"me"}`)
	})
	api.mux.HandleFunc("GET /repos/up/r/collaborators", func(w http.ResponseWriter, r *http.Request) {
		reply(w, 403, `{"message":"Must have push access"}`)
	})
	api.mux.HandleFunc("POST /repos/up/r/forks", func(w http.ResponseWriter, r *http.Request) {
		reply(w, 202, `{"name":"r","owner":{"login":"me"}}`)
	})
	api.mux.HandleFunc("GET /repos/me/r/commits", func(w http.ResponseWriter, r *http.Request) {
		reply(w, 200, `[{"sha":"head1"}]`)
	})
	api.mux.HandleFunc("GET /repos/me/r/git/ref/heads/{branch}", func(w http.ResponseWriter, r *http.Request) {
		reply(w, 200, `{"object":{"sha":"head1"}}`)
	})
	api.mux.HandleFunc("POST /repos/me/r/git/refs", func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		assert.Equal(t, "refs/heads/stringlate-es", body["ref"])
		assert.Equal(t, "head1", body["sha"])
		reply(w, 201, `{"ref":"refs/heads/stringlate-es","object":{"sha":"head1"}}`)
	})
	api.mux.HandleFunc("GET /repos/me/r/git/commits/head1", func(w http.ResponseWriter, r *http.Request) {
		reply(w, 200, `{"sha":"head1","tree":{"sha":"tree1"}}`)
	})
	api.mux.HandleFunc("POST /repos/me/r/git/blobs", func(w http.ResponseWriter, r *http.Request) {
		reply(w, 201, `{"sha":"blob1"}`)
	})
	api.mux.HandleFunc("POST /repos/me/r/git/trees", func(w http.ResponseWriter, r *http.Request) {
		reply(w, 201, `{"sha":"tree2"}`)
	})
	api.mux.HandleFunc("POST /repos/me/r/git/commits", func(w http.ResponseWriter, r *http.Request) {
		reply(w, 201, `{"sha":"commit2"}`)
	})
	api.mux.HandleFunc("PATCH /repos/me/r/git/refs/heads/stringlate-es", func(w http.ResponseWriter, r *http.Request) {
		reply(w, 200, `{"object":{"sha":"commit2"}}`)
	})
	api.mux.HandleFunc("POST /repos/up/r/pulls", func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		assert.Equal(t, "Update Spanish translation", body["title"])
		assert.Equal(t, "Made with stringlate.", body["body"])
		assert.Equal(t, "me:stringlate-es", body["head"])
		assert.Equal(t, "main", body["base"])
		reply(w, 201, `{"number":7,"html_url":"https://github.com/up/r/pull/7"}`)
	})

	pr, err := api.client("tok").ForkThenCommit(context.Background(), Repo{"up", "r"}, Change{
		Base:    "main",
		Branch:  "stringlate-es",
		Message: "Update Spanish translation\n\nMade with stringlate.",
		Files:   map[string]string{"res/values-es/strings.xml": "<resources/>"},
	})
	require.NoError(t, err)
	assert.Equal(t, 7, pr.Number)
	assert.Equal(t, "https://github.com/up/r/pull/7", pr.HTMLURL)
}

func TestGistAndIssues(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("POST /gists", func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		assert.Equal(t, false, body["public"])
		files := body["files"].(map[string]any)
		assert.Equal(t, map[string]any{"content": "<resources/>"}, files["strings.xml"])
		reply(w, 201, `{"id":"g1","html_url":"https://gist.github.com/g1"}`)
	})
	api.mux.HandleFunc("POST /repos/o/r/issues", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Spanish translation", decodeBody(t, r)["title"])
		reply(w, 201, `{"number":12,"html_url":"https://github.com/o/r/issues/12"}`)
	})
	api.mux.HandleFunc("POST /repos/o/r/issues/12/comments", func(w http.ResponseWriter, r *http.Request) {
		reply(w, 201, `{"id":99,"html_url":"https://github.com/o/r/issues/12#issuecomment-99"}`)
	})

	c := api.client("tok")
	ctx := context.Background()

	g, err := c.CreateGist(ctx, "", false, map[string]string{"strings.xml": "<resources/>"})
	require.NoError(t, err)
	assert.Equal(t, "https://gist.github.com/g1", g.HTMLURL)

	is, err := c.CreateIssue(ctx, Repo{"o", "r"}, "Spanish translation", "body")
	require.NoError(t, err)
	assert.Equal(t, 12, is.Number)

	cm, err := c.CommentIssue(ctx, Repo{"o", "r"}, is.Number, "more")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(cm.HTMLURL, "issuecomment-99"))
}

func TestBranchesAndDefault(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("GET /repos/o/r/branches", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		reply(w, 200, `[{"name":"main","commit":{"sha":"a"}},{"name":"dev","commit":{"sha":"b"}}]`)
	})
	api.mux.HandleFunc("GET /repos/o/r", func(w http.ResponseWriter, r *http.Request) {
		reply(w, 200, `{"name":"r","default_branch":"main"}`)
	})

	c := api.client("")
	branches, err := c.Branches(context.Background(), Repo{"o", "r"})
	require.NoError(t, err)
	require.Len(t, branches, 2)
	assert.Equal(t, "dev", branches[1].Name)

	def, err := c.DefaultBranch(context.Background(), Repo{"o", "r"})
	require.NoError(t, err)
	assert.Equal(t, "main", def)
}

func TestParseOwnerRepo(t *testing.T) {
	tests := []struct {
		url     string
		want    Repo
		wantErr bool
	}{
		{"https://github.com/Example/DemoApp", Repo{"Example", "DemoApp"}, false},
		{"https://github.com/owner/repo.git", Repo{"owner", "repo"}, false},
		{"git@github.com:owner/my-repo.git", Repo{"owner", "my-repo"}, false},
		{"https://github.com/owner/repo/issues/3", Repo{"owner", "repo"}, false},
		{"https://github.com/owner/my.dotted.repo", Repo{"owner", "my.dotted.repo"}, false},
		{"https://gitlab.com/owner/repo", Repo{}, true},
		{"https://example.com/owner/repo", Repo{}, true},
	}
	for _, tt := range tests {
		got, err := ParseOwnerRepo(tt.url)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrNotGitHub, tt.url)
			continue
		}
		require.NoError(t, err, tt.url)
		assert.Equal(t, tt.want, got, tt.url)
	}
}

func TestGitURL(t *testing.T) {
	assert.Equal(t, "https://github.com/o/r.git", GitURL("https://github.com/o/r/tree/main"))
	assert.Equal(t, "https://gitlab.com/o/r.git", GitURL(" git@gitlab.com:o/r.git "))
	assert.Equal(t, "git://example.com/r", GitURL("git://example.com/r"))
	assert.Equal(t, "https://example.com/r.git", GitURL("https://example.com/r.git"))
}

func TestSplitMessage(t *testing.T) {
	title, body := SplitMessage("Title\n\nLine one\nLine two\n")
	assert.Equal(t, "Title", title)
	assert.Equal(t, "Line one\nLine two", body)

	title, body = SplitMessage("Only title")
	assert.Equal(t, "Only title", title)
	assert.Empty(t, body)
}
