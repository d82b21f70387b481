package github

// User is a GitHub account.
type User struct {
	Login string `json:"login"`
}

// Collaborator is a user with explicit access to a repository.
type Collaborator struct {
	Login       string `json:"login"`
	Permissions struct {
		Pull  bool `json:"pull"`
		Push  bool `json:"push"`
		Admin bool `json:"admin"`
	} `json:"permissions"`
}

// Repository is the subset of repository metadata stringlate uses.
type Repository struct {
	Name          string `json:"name"`
	FullName      string `json:"full_name"`
	DefaultBranch string `json:"default_branch"`
	HTMLURL       string `json:"html_url"`
	Fork          bool   `json:"fork"`
	Owner         User   `json:"owner"`
}

// Branch is a branch and the commit it points at.
type Branch struct {
	Name   string    `json:"name"`
	Commit GitObject `json:"commit"`
}

// GitObject references a git object by hash.
type GitObject struct {
	SHA  string `json:"sha"`
	URL  string `json:"url,omitempty"`
	Type string `json:"type,omitempty"`
}

// Ref is a git reference such as refs/heads/main.
type Ref struct {
	Ref    string    `json:"ref"`
	Object GitObject `json:"object"`
}

// Commit is a git commit object.
type Commit struct {
	SHA     string      `json:"sha"`
	URL     string      `json:"url"`
	HTMLURL string      `json:"html_url"`
	Message string      `json:"message"`
	Tree    GitObject   `json:"tree"`
	Parents []GitObject `json:"parents"`
}

// Gist is a created gist.
type Gist struct {
	ID      string `json:"id"`
	HTMLURL string `json:"html_url"`
}

// Issue is an issue of a repository.
type Issue struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
}

// Comment is a comment on an issue.
type Comment struct {
	ID      int64  `json:"id"`
	HTMLURL string `json:"html_url"`
}

// PullRequest is an opened pull request.
type PullRequest struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
}

type treeEntry struct {
	Path string `json:"path"`
	Mode string `json:"mode"`
	Type string `json:"type"`
	SHA  string `json:"sha"`
}
