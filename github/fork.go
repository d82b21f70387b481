package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	forkFirstWait = time.Second
	forkMaxWait   = 16 * time.Second
)

// Fork forks repo into the account of the token and waits until the fork
// can be used. Forking happens asynchronously upstream; the fork is ready
// once its commit history can be listed.
func (c *Client) Fork(ctx context.Context, repo Repo) (*Repository, error) {
	var fork Repository
	if err := c.send(ctx, "fork repository", http.MethodPost, "/repos/"+repo.String()+"/forks", nil, &fork); err != nil {
		return nil, err
	}
	if fork.Owner.Login == "" {
		return nil, missing("fork repository", "owner.login")
	}
	if fork.Name == "" {
		return nil, missing("fork repository", "name")
	}

	if err := c.waitForkReady(ctx, Repo{Owner: fork.Owner.Login, Name: fork.Name}); err != nil {
		return nil, err
	}
	return &fork, nil
}

func (c *Client) waitForkReady(ctx context.Context, fork Repo) error {
	wait := forkFirstWait
	var waited time.Duration
	for {
		if waited+wait > c.forkWait {
			wait = c.forkWait - waited
		}
		if wait <= 0 {
			return fmt.Errorf("%w: %s after %s", ErrForkTimeout, fork, waited)
		}
		if err := c.sleep(ctx, wait); err != nil {
			return err
		}
		waited += wait

		var commits []GitObject
		err := c.get(ctx, "list commits", "/repos/"+fork.String()+"/commits?per_page=1", &commits)
		if err == nil && len(commits) > 0 {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Debug("fork not ready", "repo", fork.String(), "waited", waited, "error", err)

		wait *= 2
		if wait > forkMaxWait {
			wait = forkMaxWait
		}
	}
}

// CreatePullRequest opens a pull request on repo merging head into base.
// head is "owner:branch" for branches of a fork.
func (c *Client) CreatePullRequest(ctx context.Context, repo Repo, title, head, base, body string) (*PullRequest, error) {
	payload := map[string]string{"title": title, "head": head, "base": base}
	if body != "" {
		payload["body"] = body
	}
	var pr PullRequest
	if err := c.send(ctx, "create pull request", http.MethodPost, "/repos/"+repo.String()+"/pulls", payload, &pr); err != nil {
		return nil, err
	}
	if pr.HTMLURL == "" {
		return nil, missing("create pull request", "html_url")
	}
	return &pr, nil
}

// Change is a set of files to propose to a repository.
type Change struct {
	// Base is the branch the change is based on and proposed to.
	Base string
	// Branch is the new branch that carries the commit.
	Branch  string
	Message string
	// Files maps remote paths to their new content.
	Files map[string]string
}

// SplitMessage returns the first line of a commit message as the title and
// the rest as the body.
func SplitMessage(message string) (title, body string) {
	title, body, _ = strings.Cut(strings.TrimSpace(message), "\n")
	return strings.TrimSpace(title), strings.TrimSpace(body)
}

// ForkThenCommit proposes ch to upstream as a pull request. Users who can
// push to upstream get a branch there; everyone else works on a fork. The
// pull request is titled with the first line of the commit message.
func (c *Client) ForkThenCommit(ctx context.Context, upstream Repo, ch Change) (*PullRequest, error) {
	login, canPush, err := c.CanPush(ctx, upstream)
	if err != nil {
		return nil, err
	}

	target := upstream
	head := ch.Branch
	if !canPush {
		fork, err := c.Fork(ctx, upstream)
		if err != nil {
			return nil, err
		}
		target = Repo{Owner: fork.Owner.Login, Name: fork.Name}
		head = fork.Owner.Login + ":" + ch.Branch
	}
	slog.Info("proposing change", "upstream", upstream.String(), "target", target.String(), "user", login, "branch", ch.Branch)

	if _, err := c.CreateBranch(ctx, target, ch.Branch, ch.Base); err != nil {
		return nil, err
	}
	if _, err := c.CommitFiles(ctx, target, ch.Branch, ch.Message, ch.Files); err != nil {
		return nil, err
	}

	title, body := SplitMessage(ch.Message)
	return c.CreatePullRequest(ctx, upstream, title, head, ch.Base, body)
}
