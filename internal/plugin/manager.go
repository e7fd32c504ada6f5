package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ManifestFile is the name of the manifest inside a plugin directory.
const ManifestFile = "plugin.json"

var (
	// ErrPluginNotFound is returned when a requested plugin cannot be found.
	ErrPluginNotFound = errors.New("plugin not found")
	// ErrInvalidManifest is returned for a manifest without a name or an
	// executable.
	ErrInvalidManifest = errors.New("invalid plugin manifest")
	// ErrBusy is returned when a plugin is still handling an earlier gesture.
	ErrBusy = errors.New("plugin busy")
)

// Manager discovers plugins and runs at most one request per plugin at a
// time.
type Manager struct {
	pluginDir string

	mu      sync.RWMutex
	plugins map[string]*Plugin
	running map[string]bool
}

// NewManager creates a new plugin Manager with the given plugin directory.
func NewManager(pluginDir string) *Manager {
	return &Manager{
		pluginDir: pluginDir,
		plugins:   make(map[string]*Plugin),
		running:   make(map[string]bool),
	}
}

// LoadManifest reads the plugin living in dir.
func LoadManifest(dir string) (*Plugin, error) {
	// Read the manifest file
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}

	// Parse and check the manifest
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if manifest.Name == "" || manifest.Executable == "" {
		return nil, fmt.Errorf("%w: name and executable are required", ErrInvalidManifest)
	}

	return &Plugin{
		Manifest:   manifest,
		Path:       dir,
		Executable: filepath.Join(dir, manifest.Executable),
	}, nil
}

// Discover replaces the known plugins with the subdirectories of the plugin
// directory that hold a valid manifest. A missing plugin directory is not
// an error. When two directories declare the same name the first one in
// directory order wins.
func (m *Manager) Discover() error {
	found := make(map[string]*Plugin)

	// Read the plugin directory; a path that is not a directory holds no plugins
	entries, err := os.ReadDir(m.pluginDir)
	if err != nil && !os.IsNotExist(err) {
		info, statErr := os.Stat(m.pluginDir)
		if statErr != nil || info.IsDir() {
			return err
		}
	}

	for _, entry := range entries {
		// Skip non-directories
		if !entry.IsDir() {
			continue
		}

		p, err := LoadManifest(filepath.Join(m.pluginDir, entry.Name()))
		if err != nil {
			// Directories without a manifest are skipped silently
			if !os.IsNotExist(err) {
				log.Printf("Skipping plugin %s: %v", entry.Name(), err)
			}
			continue
		}
		if _, dup := found[p.Manifest.Name]; dup {
			log.Printf("Skipping plugin %s: name %q already taken", entry.Name(), p.Manifest.Name)
			continue
		}
		found[p.Manifest.Name] = p
	}

	// Swap in the new set
	m.mu.Lock()
	m.plugins = found
	m.mu.Unlock()
	return nil
}

// Get returns a plugin by name.
// Returns ErrPluginNotFound if the plugin does not exist.
func (m *Manager) Get(name string) (*Plugin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.plugins[name]
	if !ok {
		return nil, ErrPluginNotFound
	}
	return p, nil
}

// List returns all discovered plugins sorted by name.
func (m *Manager) List() []*Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()

	plugins := make([]*Plugin, 0, len(m.plugins))
	for _, p := range m.plugins {
		plugins = append(plugins, p)
	}
	sort.Slice(plugins, func(i, j int) bool {
		return plugins[i].Manifest.Name < plugins[j].Manifest.Name
	})
	return plugins
}

// Run looks up the named plugin and executes the request with ex.
// A response with Success false is returned as an error. While a request
// is running a second one for the same plugin fails with ErrBusy.
func (m *Manager) Run(ctx context.Context, ex *Executor, name string, req *Request) (*Response, error) {
	m.mu.Lock()
	p, ok := m.plugins[name]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrPluginNotFound, name)
	}
	if m.running[name] {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrBusy, name)
	}
	m.running[name] = true
	m.mu.Unlock()

	// Release the plugin when the run ends
	defer func() {
		m.mu.Lock()
		delete(m.running, name)
		m.mu.Unlock()
	}()

	// Execute outside the lock
	resp, err := ex.Execute(ctx, p, req)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return resp, fmt.Errorf("plugin %s action %s: %s", name, req.Action, resp.Error)
	}
	return resp, nil
}

// PluginDir returns the plugin directory path.
func (m *Manager) PluginDir() string {
	return m.pluginDir
}
