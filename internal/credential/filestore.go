package credential

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/relayhq/relay/pkg/logging"
)

// DefaultStoreDir is the default directory for stored credentials, relative
// to the user's home directory.
const DefaultStoreDir = ".config/relay/credentials"

// storeEnvelope is the on-disk record: the identity alongside the credential
// so List can recover IDs from files alone.
type storeEnvelope struct {
	Kind        string            `json:"kind"`
	WorkspaceID string            `json:"workspace_id"`
	SourceID    string            `json:"source_id"`
	Credential  *StoredCredential `json:"credential"`
	CreatedAt   time.Time         `json:"created_at"`
}

// FileStore is a file-backed Store: one JSON file per identity under a
// 0700 directory, files written with 0600 permissions, fronted by an
// in-memory cache.
//
// Credential values are never logged; only identities are, for audit.
type FileStore struct {
	mu    sync.RWMutex
	dir   string
	cache map[string]*StoredCredential
}

// NewFileStore creates a file store rooted at dir, creating it if needed.
// An empty dir selects DefaultStoreDir under the user's home directory.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(homeDir, DefaultStoreDir)
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create credential store directory: %w", err)
	}

	return &FileStore{
		dir:   dir,
		cache: make(map[string]*StoredCredential),
	}, nil
}

// Get loads the credential for an identity, or (nil, nil) if absent.
func (s *FileStore) Get(ctx context.Context, id ID) (*StoredCredential, error) {
	key := id.Key()

	s.mu.RLock()
	if cred, ok := s.cache[key]; ok {
		s.mu.RUnlock()
		return cred, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have populated the cache meanwhile.
	if cred, ok := s.cache[key]; ok {
		return cred, nil
	}

	env, err := s.readFile(s.filePath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read credential %s: %w", key, err)
	}

	s.cache[key] = env.Credential
	return env.Credential, nil
}

// Set persists the credential for an identity. The write goes to a temp file
// first and is renamed into place so readers never observe a partial write.
func (s *FileStore) Set(ctx context.Context, id ID, cred *StoredCredential) error {
	if cred == nil {
		return fmt.Errorf("credential cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	env := &storeEnvelope{
		Kind:        id.Kind.String(),
		WorkspaceID: id.WorkspaceID,
		SourceID:    id.SourceID,
		Credential:  cred,
		CreatedAt:   time.Now(),
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}

	key := id.Key()
	path := s.filePath(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write credential file: %w", err)
	}

	s.cache[key] = cred

	logging.Debug("CredentialStore", "Stored credential for %s (has_refresh_token=%v)", key, cred.RefreshToken != "")
	return nil
}

// Delete removes the credential for an identity. Returns false when none
// existed.
func (s *FileStore) Delete(ctx context.Context, id ID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := id.Key()
	_, cached := s.cache[key]
	delete(s.cache, key)

	err := os.Remove(s.filePath(key))
	if os.IsNotExist(err) {
		return cached, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to delete credential %s: %w", key, err)
	}

	logging.Debug("CredentialStore", "Deleted credential for %s", key)
	return true, nil
}

// List returns the identities of all stored credentials.
func (s *FileStore) List(ctx context.Context) ([]ID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read credential store directory: %w", err)
	}

	var ids []ID
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		env, err := s.readFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			logging.Warn("CredentialStore", "Skipping unreadable credential file %s: %v", entry.Name(), err)
			continue
		}
		kind, err := ParseKind(env.Kind)
		if err != nil {
			logging.Warn("CredentialStore", "Skipping credential file %s: %v", entry.Name(), err)
			continue
		}
		ids = append(ids, ID{Kind: kind, WorkspaceID: env.WorkspaceID, SourceID: env.SourceID})
	}
	return ids, nil
}

// filePath maps a storage key to a filesystem-safe file name.
func (s *FileStore) filePath(key string) string {
	hash := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(hash[:16])+".json")
}

func (s *FileStore) readFile(path string) (*storeEnvelope, error) {
	// #nosec G304 -- path is constructed from an internal key, not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var env storeEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential file: %w", err)
	}
	if env.Credential == nil {
		return nil, fmt.Errorf("credential file has no credential payload")
	}
	return &env, nil
}
