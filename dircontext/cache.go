// Package dircontext gathers a short description of the working directory
// that can be attached to a prompt.
package dircontext

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/renameio"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/errgroup"
)

const (
	cacheTTL      = 1 * time.Hour
	gatherTimeout = 5 * time.Second
	fieldMaxBytes = 512

	snapshotVersion = 1
)

// Entry is the gathered context for one directory.
type Entry struct {
	Path           string            `json:"path"`
	ModTime        time.Time         `json:"mod_time"`
	Listing        string            `json:"listing"`             // ls -A output, space-separated
	GitRoot        string            `json:"git_root,omitempty"`  // empty outside a repository
	Manifests      map[string]string `json:"manifests,omitempty"` // label -> extracted summary
	PackageManager string            `json:"package_manager,omitempty"`
}

// Fragment renders the entry as prompt text. The first line is always the
// directory itself; the rest is included when it was found.
func (e *Entry) Fragment() string {
	if e == nil {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "The current directory is: %s", e.Path)
	if e.Listing != "" {
		fmt.Fprintf(&sb, "\nIt contains: %s", e.Listing)
	}
	if e.GitRoot != "" && e.GitRoot != e.Path {
		fmt.Fprintf(&sb, "\nGit repository root: %s", e.GitRoot)
	}
	labels := make([]string, 0, len(e.Manifests))
	for label := range e.Manifests {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		fmt.Fprintf(&sb, "\n%s: %s", label, e.Manifests[label])
	}
	if e.PackageManager != "" {
		fmt.Fprintf(&sb, "\nPackage manager: %s", e.PackageManager)
	}
	return sb.String()
}

// Cache is a TTL cache of entries keyed by absolute path. When created with
// a snapshot path, unexpired entries survive between invocations, so the
// follow-up run after a context-request command reuses the earlier scan.
type Cache struct {
	cache    *ttlcache.Cache[string, *Entry]
	snapshot string
}

type snapshotFile struct {
	Version int             `json:"version"`
	Entries []snapshotEntry `json:"entries"`
}

type snapshotEntry struct {
	Entry     *Entry    `json:"entry"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewCache creates a cache with TTL-based expiration, seeded from the
// snapshot file when one is given. An unreadable snapshot is ignored.
func NewCache(snapshot string) *Cache {
	c := &Cache{
		cache: ttlcache.New[string, *Entry](
			ttlcache.WithTTL[string, *Entry](cacheTTL),
			ttlcache.WithDisableTouchOnHit[string, *Entry](),
		),
		snapshot: snapshot,
	}
	go c.cache.Start()
	if snapshot != "" {
		c.load()
	}
	return c
}

// Close stops the expiration loop.
func (c *Cache) Close() {
	c.cache.Stop()
}

// Get returns the cached entry for path, or nil if absent, expired, or the
// directory was modified after the entry was gathered.
func (c *Cache) Get(path string) *Entry {
	item := c.cache.Get(path)
	if item == nil {
		return nil
	}
	e := item.Value()
	if !e.ModTime.IsZero() && !e.ModTime.Equal(dirModTime(path)) {
		c.cache.Delete(path)
		return nil
	}
	return e
}

// Gather collects context for cwd, caches it and returns it. Commands that
// fail or time out leave their field empty; Gather itself never fails.
func (c *Cache) Gather(ctx context.Context, cwd string) *Entry {
	if e := c.Get(cwd); e != nil {
		slog.Debug("directory context cache hit", "path", cwd)
		return e
	}

	ctx, cancel := context.WithTimeout(ctx, gatherTimeout)
	defer cancel()

	e := &Entry{Path: cwd, ModTime: dirModTime(cwd), Manifests: make(map[string]string)}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		e.Listing = singleLine(runCmd(gctx, cwd, "ls", "-A"), fieldMaxBytes)
		return nil
	})
	g.Go(func() error {
		e.GitRoot = strings.TrimSpace(runCmd(gctx, cwd, "git", "rev-parse", "--show-toplevel"))
		return nil
	})
	_ = g.Wait()

	gatherManifests(cwd, e.Manifests)
	if e.GitRoot != "" && e.GitRoot != cwd {
		// manifests in cwd take precedence over the repository root
		root := make(map[string]string)
		gatherManifests(e.GitRoot, root)
		for label, v := range root {
			if _, ok := e.Manifests[label]; !ok {
				e.Manifests[label] = v
			}
		}
	}
	e.PackageManager = detectPackageManager(cwd, e.GitRoot)

	c.cache.Set(cwd, e, ttlcache.DefaultTTL)
	slog.Debug("gathered directory context", "path", cwd, "manifests", len(e.Manifests))
	return e
}

// Save writes the unexpired entries to the snapshot file. It is a no-op for
// a cache created without one.
func (c *Cache) Save() error {
	if c.snapshot == "" {
		return nil
	}
	f := snapshotFile{Version: snapshotVersion}
	for _, item := range c.cache.Items() {
		f.Entries = append(f.Entries, snapshotEntry{Entry: item.Value(), ExpiresAt: item.ExpiresAt()})
	}
	sort.Slice(f.Entries, func(i, j int) bool { return f.Entries[i].Entry.Path < f.Entries[j].Entry.Path })

	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("failed to marshal directory context: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.snapshot), 0700); err != nil {
		return fmt.Errorf("failed to create directory context dir: %w", err)
	}
	if err := renameio.WriteFile(c.snapshot, data, 0600); err != nil {
		return fmt.Errorf("failed to write directory context: %w", err)
	}
	return nil
}

func (c *Cache) load() {
	data, err := os.ReadFile(c.snapshot)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Debug("failed to read directory context", "path", c.snapshot, "error", err)
		}
		return
	}
	var f snapshotFile
	if err := json.Unmarshal(data, &f); err != nil || f.Version != snapshotVersion {
		slog.Debug("discarding directory context snapshot", "path", c.snapshot)
		return
	}
	now := time.Now()
	for _, se := range f.Entries {
		if se.Entry == nil || !se.ExpiresAt.After(now) {
			continue
		}
		if se.Entry.Manifests == nil {
			se.Entry.Manifests = make(map[string]string)
		}
		c.cache.Set(se.Entry.Path, se.Entry, se.ExpiresAt.Sub(now))
	}
}

func dirModTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// runCmd runs a command and returns its stdout, or empty string on error.
func runCmd(ctx context.Context, dir string, name string, args ...string) string {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return string(out)
}

func singleLine(s string, maxBytes int) string {
	return truncate(strings.Join(strings.Fields(s), " "), maxBytes)
}

// truncate caps s at maxBytes, appending "..." if it was cut.
func truncate(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	return s[:maxBytes] + "..."
}
