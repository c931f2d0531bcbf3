package credential

import "context"

// Store is the encrypted secret store credentials live in, keyed by ID.
//
// Contract:
//   - Get returns (nil, nil) when no credential exists for the identity;
//     failures are real errors, never a silent nil.
//   - Set is atomic per key: a reader never observes a partial write.
//   - Unknown fields written by newer schema versions survive a Get/Set
//     cycle (see StoredCredential.Extra).
//
// Implementations must be safe for concurrent use. Unrelated identities
// never contend: the store is addressed exclusively by ID.
type Store interface {
	// Get loads the credential for an identity, or (nil, nil) if absent.
	Get(ctx context.Context, id ID) (*StoredCredential, error)

	// Set persists the credential for an identity, replacing any previous
	// value.
	Set(ctx context.Context, id ID, cred *StoredCredential) error

	// Delete removes the credential. Returns false when none existed.
	Delete(ctx context.Context, id ID) (bool, error)

	// List returns the identities of all stored credentials.
	List(ctx context.Context) ([]ID, error)
}
