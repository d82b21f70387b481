package github

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// reOwnerRepo matches GitHub and GitLab URLs, over https or ssh, including
// deep links such as ".../owner/repo/issues".
var reOwnerRepo = regexp.MustCompile(`^(?:https?://|git@)(git(?:hub|lab)\.com)[/:]([\w.-]+?)/([\w-]+(?:\.[\w-]+)*?)(?:/.*|\.git)?$`)

// Repo names a repository as owner/name.
type Repo struct {
	Owner string
	Name  string
}

func (r Repo) String() string { return r.Owner + "/" + r.Name }

// URL returns the web address of the repository.
func (r Repo) URL() string { return "https://github.com/" + r.String() }

// ParseOwnerRepo extracts owner and name from a GitHub repository URL.
func ParseOwnerRepo(url string) (Repo, error) {
	m := reOwnerRepo.FindStringSubmatch(strings.TrimSpace(url))
	if m == nil || !strings.EqualFold(m[1], "github.com") {
		return Repo{}, fmt.Errorf("%w: %s", ErrNotGitHub, url)
	}
	return Repo{Owner: m[2], Name: m[3]}, nil
}

// GitURL normalises links to GitHub and GitLab repositories into clonable
// "https://host/owner/repo.git" URLs. Other URLs are returned trimmed.
func GitURL(url string) string {
	url = strings.TrimSpace(url)
	if strings.HasPrefix(url, "git://") {
		return url
	}
	if m := reOwnerRepo.FindStringSubmatch(url); m != nil {
		return fmt.Sprintf("https://%s/%s/%s.git", strings.ToLower(m[1]), m[2], m[3])
	}
	return url
}

// User returns the authenticated user.
func (c *Client) User(ctx context.Context) (*User, error) {
	var u User
	if err := c.get(ctx, "get user", "/user", &u); err != nil {
		return nil, err
	}
	if u.Login == "" {
		return nil, missing("get user", "login")
	}
	return &u, nil
}

// Repository returns the metadata of repo.
func (c *Client) Repository(ctx context.Context, repo Repo) (*Repository, error) {
	var r Repository
	if err := c.get(ctx, "get repository", "/repos/"+repo.String(), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// DefaultBranch returns the name of the default branch of repo.
func (c *Client) DefaultBranch(ctx context.Context, repo Repo) (string, error) {
	r, err := c.Repository(ctx, repo)
	if err != nil {
		return "", err
	}
	if r.DefaultBranch == "" {
		return "", missing("get repository", "default_branch")
	}
	return r.DefaultBranch, nil
}

// Branches lists the branches of repo.
func (c *Client) Branches(ctx context.Context, repo Repo) ([]Branch, error) {
	var out []Branch
	for page := 1; ; page++ {
		var batch []Branch
		path := fmt.Sprintf("/repos/%s/branches?per_page=100&page=%d", repo, page)
		if err := c.get(ctx, "list branches", path, &batch); err != nil {
			return nil, err
		}
		out = append(out, batch...)
		if len(batch) < 100 {
			return out, nil
		}
	}
}

// Collaborators lists the collaborators of repo. Listing them requires push
// access, so callers without it get a 403 error.
func (c *Client) Collaborators(ctx context.Context, repo Repo) ([]Collaborator, error) {
	var out []Collaborator
	if err := c.get(ctx, "list collaborators", "/repos/"+repo.String()+"/collaborators?per_page=100", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CanPush returns the authenticated login and whether it may push to repo.
// Users who cannot list the collaborators have no push access.
func (c *Client) CanPush(ctx context.Context, repo Repo) (string, bool, error) {
	u, err := c.User(ctx)
	if err != nil {
		return "", false, err
	}
	collaborators, err := c.Collaborators(ctx, repo)
	if err != nil {
		if IsStatus(err, http.StatusForbidden) || IsStatus(err, http.StatusNotFound) {
			return u.Login, false, nil
		}
		return u.Login, false, err
	}
	for _, col := range collaborators {
		if col.Login == u.Login {
			return u.Login, col.Permissions.Push, nil
		}
	}
	return u.Login, false, nil
}

// CreateGist publishes files (name -> content) as a gist.
func (c *Client) CreateGist(ctx context.Context, description string, public bool, files map[string]string) (*Gist, error) {
	type file struct {
		Content string `json:"content"`
	}
	body := struct {
		Description string          `json:"description,omitempty"`
		Public      bool            `json:"public"`
		Files       map[string]file `json:"files"`
	}{Description: description, Public: public, Files: make(map[string]file, len(files))}
	for name, content := range files {
		body.Files[name] = file{Content: content}
	}

	var g Gist
	if err := c.send(ctx, "create gist", http.MethodPost, "/gists", body, &g); err != nil {
		return nil, err
	}
	if g.HTMLURL == "" {
		return nil, missing("create gist", "html_url")
	}
	return &g, nil
}

// CreateIssue opens an issue on repo.
func (c *Client) CreateIssue(ctx context.Context, repo Repo, title, body string) (*Issue, error) {
	var is Issue
	payload := map[string]string{"title": title, "body": body}
	if err := c.send(ctx, "create issue", http.MethodPost, "/repos/"+repo.String()+"/issues", payload, &is); err != nil {
		return nil, err
	}
	if is.Number == 0 {
		return nil, missing("create issue", "number")
	}
	return &is, nil
}

// CommentIssue adds a comment to an existing issue.
func (c *Client) CommentIssue(ctx context.Context, repo Repo, number int, body string) (*Comment, error) {
	var cm Comment
	path := fmt.Sprintf("/repos/%s/issues/%d/comments", repo, number)
	if err := c.send(ctx, "comment issue", http.MethodPost, path, map[string]string{"body": body}, &cm); err != nil {
		return nil, err
	}
	return &cm, nil
}
