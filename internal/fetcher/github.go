package fetcher

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/ternarybob/arbor"
)

// maxRepoFiles bounds how many markdown files one repository fetch will pull
const maxRepoFiles = 500

// GitHubFetcher resolves github.com repository URLs into a single assembled
// markdown document. A repo or tree URL pulls every markdown file under the
// referenced path; a blob URL pulls just that file.
type GitHubFetcher struct {
	client *github.Client
	logger arbor.ILogger
}

// NewGitHubFetcher creates a fetcher for github.com URLs. An empty token
// falls back to anonymous access with its lower rate limits.
func NewGitHubFetcher(token string, logger arbor.ILogger) *GitHubFetcher {
	client := github.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return &GitHubFetcher{client: client, logger: logger}
}

func (f *GitHubFetcher) Name() string { return "github" }

func (f *GitHubFetcher) CanFetch(rawURL string) bool {
	ref, err := parseGitHubURL(rawURL)
	return err == nil && ref != nil
}

type githubRef struct {
	owner string
	repo  string
	ref   string // Branch, tag, or commit; empty means default branch
	dir   string // Subtree filter for tree URLs
	file  string // Set for blob URLs
}

func parseGitHubURL(rawURL string) (*githubRef, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if u.Host != "github.com" && u.Host != "www.github.com" {
		return nil, fmt.Errorf("not a github.com URL")
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("missing owner/repo in %s", rawURL)
	}

	ref := &githubRef{owner: parts[0], repo: strings.TrimSuffix(parts[1], ".git")}
	if len(parts) == 2 {
		return ref, nil
	}

	switch parts[2] {
	case "tree":
		if len(parts) < 4 {
			return nil, fmt.Errorf("tree URL missing ref: %s", rawURL)
		}
		ref.ref = parts[3]
		ref.dir = strings.Join(parts[4:], "/")
	case "blob":
		if len(parts) < 5 {
			return nil, fmt.Errorf("blob URL missing path: %s", rawURL)
		}
		ref.ref = parts[3]
		ref.file = strings.Join(parts[4:], "/")
	default:
		return nil, fmt.Errorf("unsupported github URL form: %s", rawURL)
	}
	return ref, nil
}

func (f *GitHubFetcher) Fetch(ctx context.Context, rawURL string, opts FetchOptions) (*RawContent, error) {
	ref, err := parseGitHubURL(rawURL)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	if ref.ref == "" {
		ref.ref, err = f.resolveDefaultBranch(ctx, ref)
		if err != nil {
			return nil, &FetchError{URL: rawURL, Err: err}
		}
	}

	var body []byte
	if ref.file != "" {
		body, err = f.fetchFile(ctx, ref, ref.file)
	} else {
		body, err = f.assembleTree(ctx, ref)
	}
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	return &RawContent{
		URL:         rawURL,
		RequestedAt: time.Now(),
		Kind:        ContentKindMarkdown,
		MimeType:    "text/markdown",
		Body:        body,
		StatusCode:  200,
	}, nil
}

// resolveDefaultBranch asks the API for the default branch, falling back to
// main then master when the repo metadata call is rejected (common under
// anonymous rate limiting).
func (f *GitHubFetcher) resolveDefaultBranch(ctx context.Context, ref *githubRef) (string, error) {
	repo, _, err := f.client.Repositories.Get(ctx, ref.owner, ref.repo)
	if err == nil && repo.GetDefaultBranch() != "" {
		return repo.GetDefaultBranch(), nil
	}

	for _, candidate := range []string{"main", "master"} {
		_, _, berr := f.client.Repositories.GetBranch(ctx, ref.owner, ref.repo, candidate, 1)
		if berr == nil {
			return candidate, nil
		}
	}
	if err != nil {
		return "", fmt.Errorf("resolve default branch for %s/%s: %w", ref.owner, ref.repo, err)
	}
	return "", fmt.Errorf("no default branch found for %s/%s", ref.owner, ref.repo)
}

func (f *GitHubFetcher) fetchFile(ctx context.Context, ref *githubRef, filePath string) ([]byte, error) {
	content, _, _, err := f.client.Repositories.GetContents(ctx, ref.owner, ref.repo, filePath,
		&github.RepositoryContentGetOptions{Ref: ref.ref})
	if err != nil {
		return nil, fmt.Errorf("get contents %s: %w", filePath, err)
	}
	if content == nil {
		return nil, fmt.Errorf("%s is not a file", filePath)
	}
	text, err := content.GetContent()
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filePath, err)
	}
	return []byte(text), nil
}

// assembleTree walks the repository tree and concatenates every markdown
// file under the requested directory into one document, each file introduced
// by a heading carrying its repo path.
func (f *GitHubFetcher) assembleTree(ctx context.Context, ref *githubRef) ([]byte, error) {
	tree, _, err := f.client.Git.GetTree(ctx, ref.owner, ref.repo, ref.ref, true)
	if err != nil {
		return nil, fmt.Errorf("get tree %s@%s: %w", ref.repo, ref.ref, err)
	}
	if tree.GetTruncated() {
		f.logger.Warn().
			Str("repo", ref.owner+"/"+ref.repo).
			Msg("Repository tree truncated by API, some files may be missed")
	}

	var files []string
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" {
			continue
		}
		p := entry.GetPath()
		if ref.dir != "" && !strings.HasPrefix(p, ref.dir+"/") && p != ref.dir {
			continue
		}
		if !isMarkdownPath(p) {
			continue
		}
		files = append(files, p)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no markdown files under %s in %s/%s", ref.dir, ref.owner, ref.repo)
	}

	// README first, then stable path order
	sort.Slice(files, func(i, j int) bool {
		ri, rj := isReadme(files[i]), isReadme(files[j])
		if ri != rj {
			return ri
		}
		return files[i] < files[j]
	})
	if len(files) > maxRepoFiles {
		f.logger.Warn().
			Int("total", len(files)).
			Int("limit", maxRepoFiles).
			Msg("Capping markdown files fetched from repository")
		files = files[:maxRepoFiles]
	}

	var sb strings.Builder
	for _, p := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		body, err := f.fetchBlob(ctx, ref, p)
		if err != nil {
			f.logger.Warn().Str("path", p).Err(err).Msg("Skipping unreadable file")
			continue
		}
		fmt.Fprintf(&sb, "\n\n# %s\n\n", p)
		sb.Write(body)
	}
	return []byte(strings.TrimSpace(sb.String())), nil
}

func (f *GitHubFetcher) fetchBlob(ctx context.Context, ref *githubRef, filePath string) ([]byte, error) {
	content, _, _, err := f.client.Repositories.GetContents(ctx, ref.owner, ref.repo, filePath,
		&github.RepositoryContentGetOptions{Ref: ref.ref})
	if err != nil {
		return nil, err
	}
	if content.GetEncoding() == "base64" && content.Content != nil {
		return base64.StdEncoding.DecodeString(*content.Content)
	}
	text, err := content.GetContent()
	if err != nil {
		return nil, err
	}
	return []byte(text), nil
}

func isMarkdownPath(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".md", ".mdx", ".markdown":
		return true
	}
	return false
}

func isReadme(p string) bool {
	base := strings.ToLower(path.Base(p))
	return strings.HasPrefix(base, "readme.")
}
