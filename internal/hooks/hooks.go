// Package hooks loads hook scripts from a directory: it discovers
// executable files, parses their "## Fisher-<Provider>: {json}"
// declaration lines, and builds the read-only Repository shared by the
// scheduler, every worker, and the status-hook resolver.
package hooks

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/ChuLiYu/fisher/internal/providers"
	"github.com/ChuLiYu/fisher/pkg/types"
)

var headerRe = regexp.MustCompile(`## Fisher-([a-zA-Z]+): (\{.*\})`)

// statusMatcher is implemented by providers.StatusProvider; it lets
// LookupStatusHooks filter bound providers without depending on the
// concrete status-provider type beyond this one method.
type statusMatcher interface {
	Matches(event string) bool
}

// Repository is the immutable, name-keyed collection of loaded Hooks. A
// Repository is safe for concurrent read access by any number of workers
// once Load has returned.
type Repository struct {
	byName map[string]*types.Hook
	// names preserves the order hooks were discovered in, so
	// LookupStatusHooks is stable across calls.
	names []string
}

// Load walks dir (non-recursively) and builds a Repository from every
// regular, executable, readable file found there. A file's name (minus
// extension) becomes its hook name; its declaration lines (read up to the
// first blank line) are parsed for bound providers.
func Load(dir string) (*Repository, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("hooks: reading %s: %w", dir, err)
	}

	repo := &Repository{byName: make(map[string]*types.Hook)}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		path := filepath.Join(dir, name)

		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("hooks: stat %s: %w", path, err)
		}
		if !info.Mode().IsRegular() {
			continue
		}
		mode := info.Mode().Perm()
		if mode&0o111 == 0 || mode&0o444 == 0 {
			// Skip files that aren't both executable and readable.
			continue
		}

		hookName := name[:len(name)-len(filepath.Ext(name))]
		if hookName == "" {
			hookName = name
		}

		hook, err := loadHook(hookName, path)
		if err != nil {
			return nil, err
		}

		repo.byName[hook.Name] = hook
		repo.names = append(repo.names, hook.Name)
	}

	return repo, nil
}

// loadHook reads exec's declaration lines (everything up to the first
// blank line) and resolves every "## Fisher-<Provider>: {json}" match into
// a bound HookProvider.
func loadHook(name, exec string) (*types.Hook, error) {
	f, err := os.Open(exec)
	if err != nil {
		return nil, fmt.Errorf("hooks: opening %s: %w", exec, err)
	}
	defer f.Close()

	hook := &types.Hook{Name: name, Exec: exec}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			break
		}

		for _, match := range headerRe.FindAllStringSubmatch(line, -1) {
			kind, config := match[1], match[2]
			provider, err := providers.New(kind, []byte(config))
			if err != nil {
				return nil, fmt.Errorf("hooks: %s: provider %s: %w", exec, kind, err)
			}
			hook.Providers = append(hook.Providers, &types.HookProvider{
				Hook:     hook,
				Provider: provider,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("hooks: reading %s: %w", exec, err)
	}

	return hook, nil
}

// Get returns the hook named name, or false if no such hook was loaded.
func (r *Repository) Get(name string) (*types.Hook, bool) {
	h, ok := r.byName[name]
	return h, ok
}

// Names returns every loaded hook's name, in discovery order.
func (r *Repository) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// LookupStatusHooks returns, in the Repository's stable discovery order,
// every bound HookProvider whose provider is a status provider matching
// event.
func (r *Repository) LookupStatusHooks(event string) []*types.HookProvider {
	var matches []*types.HookProvider
	for _, name := range r.names {
		hook := r.byName[name]
		for _, hp := range hook.Providers {
			matcher, ok := hp.Provider.(statusMatcher)
			if !ok {
				continue
			}
			if matcher.Matches(event) {
				matches = append(matches, hp)
			}
		}
	}
	return matches
}
