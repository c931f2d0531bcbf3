package source

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/relayhq/relay/pkg/logging"
)

// sourcesDirName is the per-workspace subdirectory holding source definitions.
const sourcesDirName = "sources"

// Storage persists source definitions as one YAML file per source under a
// per-workspace directory:
//
//	<root>/<workspaceID>/sources/<slug>.yaml
//
// It also implements the authentication side channel: MarkAuthenticated and
// MarkNeedsReauth are the only two writes the credential core performs on a
// source's persisted configuration. Both are idempotent.
type Storage struct {
	mu   sync.RWMutex
	root string
}

// NewStorage creates a Storage rooted at the default configuration directory
// (~/.config/relay/workspaces).
func NewStorage() (*Storage, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	return &Storage{root: filepath.Join(homeDir, ".config", "relay", "workspaces")}, nil
}

// NewStorageWithRoot creates a Storage rooted at a custom directory.
func NewStorageWithRoot(root string) *Storage {
	return &Storage{root: root}
}

// Save writes the source definition for its workspace and slug.
func (st *Storage) Save(src *Source) error {
	if src == nil {
		return fmt.Errorf("source cannot be nil")
	}
	if src.WorkspaceID == "" {
		return fmt.Errorf("source workspaceId cannot be empty")
	}
	if src.Slug == "" {
		return fmt.Errorf("source slug cannot be empty")
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	return st.writeLocked(src)
}

// Load reads a source definition. Returns (nil, nil) when the source does
// not exist.
func (st *Storage) Load(workspaceID, slug string) (*Source, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.readLocked(workspaceID, slug)
}

// List returns all source definitions in a workspace.
func (st *Storage) List(workspaceID string) ([]*Source, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	dir := st.sourcesDir(workspaceID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read sources directory %s: %w", dir, err)
	}

	var sources []*Source
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}
		slug := strings.TrimSuffix(entry.Name(), ".yaml")
		src, err := st.readLocked(workspaceID, slug)
		if err != nil {
			logging.Warn("SourceConfig", "Skipping unreadable source file %s: %v", entry.Name(), err)
			continue
		}
		if src != nil {
			sources = append(sources, src)
		}
	}
	return sources, nil
}

// Delete removes a source definition. Returns false when it did not exist.
func (st *Storage) Delete(workspaceID, slug string) (bool, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	path := st.sourcePath(workspaceID, slug)
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to delete source file %s: %w", path, err)
	}
	return true, nil
}

// MarkAuthenticated records a successful authentication on the persisted
// source: isAuthenticated=true, connectionStatus=connected, error cleared.
// Idempotent; marking an already-authenticated source is a no-op write.
func (st *Storage) MarkAuthenticated(workspaceID, slug string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	src, err := st.readLocked(workspaceID, slug)
	if err != nil {
		return err
	}
	if src == nil {
		return fmt.Errorf("source %s not found in workspace %s", slug, workspaceID)
	}

	src.IsAuthenticated = true
	src.ConnectionStatus = StatusConnected
	src.ConnectionError = ""

	if err := st.writeLocked(src); err != nil {
		return err
	}

	logging.Debug("SourceConfig", "Marked source %s/%s as authenticated", workspaceID, slug)
	return nil
}

// MarkNeedsReauth records that the source requires re-authentication:
// isAuthenticated=false, connectionStatus=needs_auth, connectionError=reason.
// Idempotent.
func (st *Storage) MarkNeedsReauth(workspaceID, slug, reason string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	src, err := st.readLocked(workspaceID, slug)
	if err != nil {
		return err
	}
	if src == nil {
		return fmt.Errorf("source %s not found in workspace %s", slug, workspaceID)
	}

	src.IsAuthenticated = false
	src.ConnectionStatus = StatusNeedsAuth
	src.ConnectionError = reason

	if err := st.writeLocked(src); err != nil {
		return err
	}

	logging.Debug("SourceConfig", "Marked source %s/%s as needing reauth: %s", workspaceID, slug, reason)
	return nil
}

func (st *Storage) sourcesDir(workspaceID string) string {
	return filepath.Join(st.root, sanitizeFilename(workspaceID), sourcesDirName)
}

func (st *Storage) sourcePath(workspaceID, slug string) string {
	return filepath.Join(st.sourcesDir(workspaceID), sanitizeFilename(slug)+".yaml")
}

func (st *Storage) writeLocked(src *Source) error {
	dir := st.sourcesDir(src.WorkspaceID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create sources directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(src)
	if err != nil {
		return fmt.Errorf("failed to marshal source %s: %w", src.Slug, err)
	}

	path := st.sourcePath(src.WorkspaceID, src.Slug)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write source file %s: %w", path, err)
	}
	return nil
}

func (st *Storage) readLocked(workspaceID, slug string) (*Source, error) {
	path := st.sourcePath(workspaceID, slug)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read source file %s: %w", path, err)
	}

	var src Source
	if err := yaml.Unmarshal(data, &src); err != nil {
		return nil, fmt.Errorf("failed to unmarshal source file %s: %w", path, err)
	}
	return &src, nil
}

// sanitizeFilename strips path separators and whitespace so slugs and
// workspace IDs map to safe file names.
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "/", "-")
	name = strings.ReplaceAll(name, "\\", "-")
	name = strings.ReplaceAll(name, "..", "-")
	return strings.TrimSpace(name)
}
