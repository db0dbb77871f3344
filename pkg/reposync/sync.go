package reposync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/sync/errgroup"

	"rookpkg/pkg/helper/errors"
	"rookpkg/pkg/helper/log"
	"rookpkg/pkg/resilience"
	"rookpkg/pkg/trust"
)

// maxConcurrentRepoSyncs bounds how many repositories Update fetches at
// once, so a config listing many repositories doesn't open an unbounded
// number of simultaneous connections.
const maxConcurrentRepoSyncs = 4

const (
	descriptorPath = "repo.toml"
	indexPath      = "packages.json"
	sigPath        = "packages.json.sig"
)

// supportedFormatVersions bounds the repo.toml format_version this syncer
// understands. repo.toml's own schema version is the one place in the
// system that is genuinely semver-shaped, unlike package versions.
var supportedFormatVersions = mustConstraint(">= 1.0.0, < 2.0.0")

func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

func checkFormatVersion(raw string) error {
	v, err := semver.NewVersion(raw)
	if err != nil {
		return errors.Wrap(errors.ErrInvalidArchive, "repo.toml format_version %q is not a valid version: %v", raw, err)
	}
	if !supportedFormatVersions.Check(v) {
		return errors.Wrap(errors.ErrInvalidArchive, "repo.toml format_version %s is not supported by this build", raw)
	}
	return nil
}

// cachedRepo is one repository's in-memory view: its descriptor, its
// parsed index, and whether the index verified against the trust store.
type cachedRepo struct {
	repo       Repository
	descriptor Descriptor
	index      Index
	tainted    bool // index could not be verified; allow_untrusted let it through
}

// Syncer fetches and caches repository descriptors and indices, and serves
// search/lookup over the merged view of currently cached, enabled
// repositories.
type Syncer struct {
	client      *http.Client
	trustStore  *trust.Store
	cacheRoot   string // var/cache/rookpkg/repos
	retry       *resilience.RetryPolicy
	logger      log.Logger
	allowUntrusted bool

	mu    sync.Mutex
	repos map[string]*cachedRepo
}

// NewSyncer constructs a Syncer writing its cache under cacheRoot.
func NewSyncer(cacheRoot string, trustStore *trust.Store, allowUntrusted bool, logger log.Logger) *Syncer {
	if logger == nil {
		logger = log.NewBasicLogger(log.InfoLevel)
	}
	return &Syncer{
		client:         &http.Client{Timeout: 30 * time.Second},
		trustStore:     trustStore,
		cacheRoot:      cacheRoot,
		retry:          resilience.ConservativeRetryPolicy(),
		logger:         logger,
		allowUntrusted: allowUntrusted,
		repos:          make(map[string]*cachedRepo),
	}
}

// UpdateResult summarizes a multi-repository update: fault-isolated, so one
// repository's failure does not abort the others.
type UpdateResult struct {
	Updated   []string
	Unchanged []string
	Failed    []FailedRepo
}

// FailedRepo names a repository that failed to sync and why.
type FailedRepo struct {
	Name   string
	Reason string
}

// Update syncs every repository in repos concurrently, bounded by
// maxConcurrentRepoSyncs. Each repository is fault-isolated: one
// repository's failure is recorded in result.Failed and never cancels or
// aborts the others, so an errgroup (rather than WithContext's usual
// first-error-cancels-the-group behavior) is used only for bounding
// concurrency, not for propagating failure.
func (s *Syncer) Update(ctx context.Context, repos []Repository) UpdateResult {
	var (
		resultMu sync.Mutex
		result   UpdateResult
	)

	g := new(errgroup.Group)
	g.SetLimit(maxConcurrentRepoSyncs)

	for _, r := range repos {
		if !r.Enabled {
			continue
		}
		r := r
		g.Go(func() error {
			updated, err := s.updateOne(ctx, r)

			resultMu.Lock()
			defer resultMu.Unlock()
			if err != nil {
				s.logger.WithError(err).WithFields(map[string]interface{}{"repo": r.Name}).Warn("repository sync failed")
				result.Failed = append(result.Failed, FailedRepo{Name: r.Name, Reason: err.Error()})
				return nil
			}
			if updated {
				result.Updated = append(result.Updated, r.Name)
			} else {
				result.Unchanged = append(result.Unchanged, r.Name)
			}
			return nil
		})
	}

	_ = g.Wait() // every goroutine above returns nil; errors are routed into result.Failed instead
	sort.Strings(result.Updated)
	sort.Strings(result.Unchanged)
	sort.Slice(result.Failed, func(i, j int) bool { return result.Failed[i].Name < result.Failed[j].Name })
	return result
}

// updateOne runs the five-step sync protocol for a single repository.
func (s *Syncer) updateOne(ctx context.Context, r Repository) (updated bool, err error) {
	var descBytes, idxBytes, sigBytes []byte

	fetch := func(relPath string) ([]byte, error) {
		var data []byte
		err := s.retry.RetryWithLogger(ctx, func() error {
			b, ferr := s.fetchOnce(ctx, r.URL, relPath)
			if ferr != nil {
				return ferr
			}
			data = b
			return nil
		}, s.logger)
		return data, err
	}

	if descBytes, err = fetch(descriptorPath); err != nil {
		return false, errors.Wrap(errors.ErrNetworkTimeout, "fetching %s for %s: %v", descriptorPath, r.Name, err)
	}
	var desc Descriptor
	if err := toml.Unmarshal(descBytes, &desc); err != nil {
		return false, errors.Wrap(errors.ErrInvalidArchive, "parsing repo.toml for %s: %v", r.Name, err)
	}
	if err := checkFormatVersion(desc.FormatVersion); err != nil {
		return false, err
	}

	if idxBytes, err = fetch(indexPath); err != nil {
		return false, errors.Wrap(errors.ErrNetworkTimeout, "fetching %s for %s: %v", indexPath, r.Name, err)
	}

	tainted := false
	if sigBytes, err = fetch(sigPath); err != nil {
		if !s.allowUntrusted {
			return false, errors.Wrap(errors.ErrNetworkTimeout, "fetching %s for %s: %v", sigPath, r.Name, err)
		}
		s.logger.WithFields(map[string]interface{}{"repo": r.Name}).Warn("index signature unavailable, proceeding untrusted")
		tainted = true
	} else {
		env, perr := parseEnvelope(sigBytes)
		if perr != nil {
			return false, errors.Wrap(errors.ErrSignatureInvalid, "parsing signature envelope for %s: %v", r.Name, perr)
		}
		if _, verr := s.trustStore.VerifyPolicy(idxBytes, env, s.allowUntrusted); verr != nil {
			if !s.allowUntrusted {
				return false, verr
			}
			tainted = true
		}
	}

	var idx Index
	if err := json.Unmarshal(idxBytes, &idx); err != nil {
		return false, errors.Wrap(errors.ErrInvalidArchive, "parsing packages.json for %s: %v", r.Name, err)
	}

	s.mu.Lock()
	existing, hadCache := s.repos[r.Name]
	s.mu.Unlock()
	if hadCache && existing.index.Generated.Equal(idx.Generated) {
		return false, nil
	}

	if err := s.writeCacheAtomic(r.Name, descBytes, idxBytes, sigBytes); err != nil {
		return false, err
	}

	s.mu.Lock()
	s.repos[r.Name] = &cachedRepo{repo: r, descriptor: desc, index: idx, tainted: tainted}
	s.mu.Unlock()
	return true, nil
}

// LoadCache populates the in-memory view from each repository's
// already-synced cache files on disk, without any network access. This is
// how commands other than "update" (search, list, install) see the last
// successfully synced state; a repository with no cache yet is silently
// skipped rather than treated as an error, since "never synced" is a
// normal startup condition.
func (s *Syncer) LoadCache(repos []Repository) error {
	for _, r := range repos {
		if !r.Enabled {
			continue
		}
		dir := filepath.Join(s.cacheRoot, r.Name)
		idxBytes, err := os.ReadFile(filepath.Join(dir, indexPath))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return errors.Wrap(errors.ErrFilesystemIO, "reading cached index for %s: %v", r.Name, err)
		}
		descBytes, err := os.ReadFile(filepath.Join(dir, descriptorPath))
		if err != nil {
			return errors.Wrap(errors.ErrFilesystemIO, "reading cached descriptor for %s: %v", r.Name, err)
		}
		var desc Descriptor
		if err := toml.Unmarshal(descBytes, &desc); err != nil {
			return errors.Wrap(errors.ErrInvalidArchive, "parsing cached repo.toml for %s: %v", r.Name, err)
		}

		tainted := false
		sigBytes, err := os.ReadFile(filepath.Join(dir, sigPath))
		if err != nil {
			if !s.allowUntrusted {
				return errors.Wrap(errors.ErrFilesystemIO, "reading cached signature for %s: %v", r.Name, err)
			}
			tainted = true
		} else {
			env, perr := parseEnvelope(sigBytes)
			if perr != nil {
				return errors.Wrap(errors.ErrSignatureInvalid, "parsing cached signature envelope for %s: %v", r.Name, perr)
			}
			if _, verr := s.trustStore.VerifyPolicy(idxBytes, env, s.allowUntrusted); verr != nil {
				if !s.allowUntrusted {
					return verr
				}
				tainted = true
			}
		}

		var idx Index
		if err := json.Unmarshal(idxBytes, &idx); err != nil {
			return errors.Wrap(errors.ErrInvalidArchive, "parsing cached packages.json for %s: %v", r.Name, err)
		}
		s.repos[r.Name] = &cachedRepo{repo: r, descriptor: desc, index: idx, tainted: tainted}
	}
	return nil
}

func (s *Syncer) fetchOnce(ctx context.Context, baseURL, relPath string) ([]byte, error) {
	url := baseURL
	if len(url) == 0 || url[len(url)-1] != '/' {
		url += "/"
	}
	url += relPath

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, url)
	}
	return io.ReadAll(resp.Body)
}

// writeCacheAtomic replaces a repository's cached descriptor/index/sig by
// writing each to a temp file in the same directory and renaming over the
// previous one, so a crash mid-write never leaves a torn cache entry.
func (s *Syncer) writeCacheAtomic(name string, descBytes, idxBytes, sigBytes []byte) error {
	dir := filepath.Join(s.cacheRoot, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(errors.ErrFilesystemIO, "creating cache dir for %s: %v", name, err)
	}

	writes := []struct {
		name string
		data []byte
	}{
		{descriptorPath, descBytes},
		{indexPath, idxBytes},
		{sigPath, sigBytes},
	}
	for _, w := range writes {
		if w.data == nil {
			continue
		}
		final := filepath.Join(dir, w.name)
		tmp := final + ".tmp"
		if err := os.WriteFile(tmp, w.data, 0o644); err != nil {
			return errors.Wrap(errors.ErrFilesystemIO, "writing %s: %v", tmp, err)
		}
		f, err := os.Open(tmp)
		if err == nil {
			_ = f.Sync()
			f.Close()
		}
		if err := os.Rename(tmp, final); err != nil {
			return errors.Wrap(errors.ErrFilesystemIO, "renaming %s into place: %v", final, err)
		}
	}
	return nil
}

// parseEnvelope decodes a packages.json.sig body into a trust.Envelope. The
// wire format is the same key=value text shape as key files, with
// fingerprint, algorithm, and base64 signature fields.
func parseEnvelope(data []byte) (trust.Envelope, error) {
	return trust.ParseEnvelopeText(data)
}

// Search scans enabled, cached repositories in priority order (lower value
// = higher priority) and returns every matching entry.
func (s *Syncer) Search(name string) []PackageEntry {
	ordered := s.orderedRepos()
	var hits []PackageEntry
	for _, cr := range ordered {
		for _, e := range cr.index.Packages {
			if e.Name == name {
				hits = append(hits, e)
			}
		}
	}
	return hits
}

// Lookup returns the single highest-priority entry matching name, or false
// if no enabled repository carries it.
func (s *Syncer) Lookup(name string) (PackageEntry, bool) {
	hits := s.Search(name)
	if len(hits) == 0 {
		return PackageEntry{}, false
	}
	return hits[0], true
}

// AllEntries returns the merged view of every package entry across enabled
// repositories, in priority order, for the resolver to consume.
func (s *Syncer) AllEntries() []PackageEntry {
	ordered := s.orderedRepos()
	var all []PackageEntry
	for _, cr := range ordered {
		all = append(all, cr.index.Packages...)
	}
	return all
}

// RepoEntries pairs a repository's configuration with its currently cached
// package entries.
type RepoEntries struct {
	Repo    Repository
	Entries []PackageEntry
}

// AllByRepo returns each enabled, cached repository's entries in priority
// order, preserving repository origin — unlike AllEntries, which flattens
// the merged view for simple listing and search, this is what the
// resolver's candidate pool needs to know where to fetch a winning
// candidate's archive from.
func (s *Syncer) AllByRepo() []RepoEntries {
	ordered := s.orderedRepos()
	result := make([]RepoEntries, 0, len(ordered))
	for _, cr := range ordered {
		result = append(result, RepoEntries{Repo: cr.repo, Entries: cr.index.Packages})
	}
	return result
}

// IsTainted reports whether repoName's currently cached index could not be
// verified (only possible when allow_untrusted is set).
func (s *Syncer) IsTainted(repoName string) bool {
	cr, ok := s.repos[repoName]
	return ok && cr.tainted
}

func (s *Syncer) orderedRepos() []*cachedRepo {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ordered []*cachedRepo
	for _, cr := range s.repos {
		if cr.repo.Enabled {
			ordered = append(ordered, cr)
		}
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].repo.Priority < ordered[j].repo.Priority
	})
	return ordered
}
