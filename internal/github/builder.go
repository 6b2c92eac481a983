package github

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/yangwenmai/pmgenie/internal/model"
)

// Source is the source-hosting capability the Builder reads from.
type Source interface {
	RepoInfo(ctx context.Context, owner, repo string) (*RepoInfo, error)
	Readme(ctx context.Context, owner, repo string) (string, error)
	ListFiles(ctx context.Context, owner, repo string, opts ListOptions) ([]model.RepoFile, error)
}

var _ Source = (*Client)(nil)

// DefaultListOptions samples manifests, docs and front-end sources.
var DefaultListOptions = ListOptions{
	Patterns: []string{
		"**/package.json", "**/requirements.txt", "**/go.mod", "**/README.md",
		"**/*.json", "**/*.md", "**/*.yaml", "**/*.yml",
		"**/*.tsx", "**/*.jsx", "**/*.ts", "**/*.js",
		"**/*.css", "**/*.html",
	},
	MaxFiles:     15,
	MaxDepth:     3,
	MaxFileBytes: 8 << 10,
}

// Builder assembles RepoContext snapshots, optionally caching them for ttl.
type Builder struct {
	src   Source
	opts  ListOptions
	cache *expirable.LRU[string, *model.RepoContext]
	conv  *md.Converter
}

// NewBuilder creates a Builder. A zero ttl disables caching.
func NewBuilder(src Source, ttl time.Duration) *Builder {
	conv := md.NewConverter("", true, nil)
	conv.Use(plugin.GitHubFlavored())

	b := &Builder{src: src, opts: DefaultListOptions, conv: conv}
	if ttl > 0 {
		b.cache = expirable.NewLRU[string, *model.RepoContext](64, nil, ttl)
	}
	return b
}

// Build fetches metadata, README and sampled files for repoURL. A missing
// README is not an error.
func (b *Builder) Build(ctx context.Context, repoURL string) (*model.RepoContext, error) {
	owner, repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}
	key := strings.ToLower(owner + "/" + repo)
	if b.cache != nil {
		if rc, ok := b.cache.Get(key); ok {
			return rc, nil
		}
	}

	info, err := b.src.RepoInfo(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("repo info: %w", err)
	}

	readme, err := b.src.Readme(ctx, owner, repo)
	if err != nil {
		slog.Info("github: no readme", "repo", key, "error", err)
		readme = ""
	}

	files, err := b.src.ListFiles(ctx, owner, repo, b.opts)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	for i := range files {
		if isHTML(files[i].Path) {
			files[i].Content = b.toMarkdown(files[i].Content)
		}
	}

	rc := &model.RepoContext{
		Owner:         owner,
		Name:          repo,
		Description:   info.Description,
		Language:      info.Language,
		Topics:        info.Topics,
		DefaultBranch: info.DefaultBranch,
		URL:           info.HTMLURL,
		Readme:        readme,
		Files:         files,
	}
	if info.Name != "" {
		rc.Name = info.Name
	}
	if rc.Topics == nil {
		rc.Topics = []string{}
	}
	if b.cache != nil {
		b.cache.Add(key, rc)
	}
	return rc, nil
}

// Readme returns only the README of repoURL, using a cached snapshot when
// one exists.
func (b *Builder) Readme(ctx context.Context, repoURL string) (string, error) {
	owner, repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return "", err
	}
	if b.cache != nil {
		if rc, ok := b.cache.Get(strings.ToLower(owner + "/" + repo)); ok && rc.HasReadme() {
			return rc.Readme, nil
		}
	}
	return b.src.Readme(ctx, owner, repo)
}

func (b *Builder) toMarkdown(html string) string {
	out, err := b.conv.ConvertString(html)
	if err != nil {
		return html
	}
	return out
}

func isHTML(p string) bool {
	p = strings.ToLower(p)
	return strings.HasSuffix(p, ".html") || strings.HasSuffix(p, ".htm")
}
