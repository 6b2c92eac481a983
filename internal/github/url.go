package github

import (
	"regexp"
	"strings"

	"github.com/yangwenmai/pmgenie/internal/model"
)

var (
	fullURLPattern  = regexp.MustCompile(`github\.com[:/]([^/]+)/([^/]+?)(?:\.git)?(?:/.*)?$`)
	shortURLPattern = regexp.MustCompile(`^([^/\s:]+)/([^/\s]+?)(?:\.git)?$`)
)

// ParseRepoURL extracts owner and repository name from an https or ssh
// GitHub URL, or from a bare "owner/repo".
func ParseRepoURL(raw string) (owner, repo string, err error) {
	s := strings.TrimSuffix(strings.TrimSpace(raw), "/")
	if s == "" {
		return "", "", model.InvalidInput("github_repo_url is required")
	}
	if m := fullURLPattern.FindStringSubmatch(s); m != nil {
		return m[1], m[2], nil
	}
	if m := shortURLPattern.FindStringSubmatch(s); m != nil {
		return m[1], m[2], nil
	}
	return "", "", model.InvalidInput("invalid GitHub repository URL: " + raw)
}
