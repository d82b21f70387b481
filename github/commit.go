package github

import (
	"context"
	"fmt"
	"net/http"
	"sort"
)

// CommitFiles creates one commit on branch that writes files (remote path
// -> content) and moves the branch to it. The branch is only updated once
// every object was created; objects created before a failure are left
// unreferenced.
func (c *Client) CommitFiles(ctx context.Context, repo Repo, branch, message string, files map[string]string) (*Ref, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("commit to %s: no files", repo)
	}

	head, err := c.Ref(ctx, repo, branch)
	if err != nil {
		return nil, err
	}

	var base Commit
	if err := c.get(ctx, "get commit", fmt.Sprintf("/repos/%s/git/commits/%s", repo, head.Object.SHA), &base); err != nil {
		return nil, err
	}
	if base.SHA == "" {
		return nil, missing("get commit", "sha")
	}
	if base.Tree.SHA == "" {
		return nil, missing("get commit", "tree.sha")
	}

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	entries := make([]treeEntry, 0, len(paths))
	for _, p := range paths {
		blob, err := c.createBlob(ctx, repo, files[p])
		if err != nil {
			return nil, fmt.Errorf("uploading %s: %w", p, err)
		}
		entries = append(entries, treeEntry{Path: p, Mode: "100644", Type: "blob", SHA: blob})
	}

	var tree GitObject
	treeBody := map[string]any{"base_tree": base.Tree.SHA, "tree": entries}
	if err := c.send(ctx, "create tree", http.MethodPost, "/repos/"+repo.String()+"/git/trees", treeBody, &tree); err != nil {
		return nil, err
	}
	if tree.SHA == "" {
		return nil, missing("create tree", "sha")
	}

	var commit Commit
	commitBody := map[string]any{"message": message, "tree": tree.SHA, "parents": []string{base.SHA}}
	if err := c.send(ctx, "create commit", http.MethodPost, "/repos/"+repo.String()+"/git/commits", commitBody, &commit); err != nil {
		return nil, err
	}
	if commit.SHA == "" {
		return nil, missing("create commit", "sha")
	}

	var ref Ref
	path := fmt.Sprintf("/repos/%s/git/refs/heads/%s", repo, branch)
	if err := c.send(ctx, "update reference", http.MethodPatch, path, map[string]string{"sha": commit.SHA}, &ref); err != nil {
		return nil, err
	}
	if ref.Object.SHA == "" {
		return nil, missing("update reference", "object.sha")
	}
	return &ref, nil
}

func (c *Client) createBlob(ctx context.Context, repo Repo, content string) (string, error) {
	var blob GitObject
	body := map[string]string{"content": content, "encoding": "utf-8"}
	if err := c.send(ctx, "create blob", http.MethodPost, "/repos/"+repo.String()+"/git/blobs", body, &blob); err != nil {
		return "", err
	}
	if blob.SHA == "" {
		return "", missing("create blob", "sha")
	}
	return blob.SHA, nil
}

// Ref returns the head of branch.
func (c *Client) Ref(ctx context.Context, repo Repo, branch string) (*Ref, error) {
	var ref Ref
	if err := c.get(ctx, "get reference", fmt.Sprintf("/repos/%s/git/ref/heads/%s", repo, branch), &ref); err != nil {
		return nil, err
	}
	if ref.Object.SHA == "" {
		return nil, missing("get reference", "object.sha")
	}
	return &ref, nil
}

// CreateBranch creates branch pointing at the head of from.
func (c *Client) CreateBranch(ctx context.Context, repo Repo, branch, from string) (*Ref, error) {
	head, err := c.Ref(ctx, repo, from)
	if err != nil {
		return nil, err
	}
	var ref Ref
	body := map[string]string{"ref": "refs/heads/" + branch, "sha": head.Object.SHA}
	if err := c.send(ctx, "create branch", http.MethodPost, "/repos/"+repo.String()+"/git/refs", body, &ref); err != nil {
		return nil, err
	}
	if ref.Object.SHA == "" {
		return nil, missing("create branch", "object.sha")
	}
	return &ref, nil
}

// CommitURL returns the web address of a commit.
func CommitURL(repo Repo, sha string) string {
	return repo.URL() + "/commit/" + sha
}
