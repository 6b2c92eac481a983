package model

// RepoFile is one sampled source file.
type RepoFile struct {
	Path    string `json:"path"`
	Content string `json:"-"`
	Size    int    `json:"size"`
}

// RepoContext is a bounded snapshot of a source repository.
type RepoContext struct {
	Owner         string     `json:"owner"`
	Name          string     `json:"repo_name"`
	Description   string     `json:"description"`
	Language      string     `json:"primary_language"`
	Topics        []string   `json:"topics"`
	DefaultBranch string     `json:"default_branch"`
	URL           string     `json:"url"`
	Readme        string     `json:"-"`
	Files         []RepoFile `json:"files"`
}

// HasReadme reports whether a README was found.
func (r *RepoContext) HasReadme() bool { return r.Readme != "" }
