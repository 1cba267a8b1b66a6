package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/medassure/claims-engine/claims/constants"
	claimerrors "github.com/medassure/claims-engine/claims/errors"
	"github.com/medassure/claims-engine/claims/models"
	"github.com/medassure/claims-engine/conf"
	"github.com/medassure/claims-engine/log"
)

// Store is the versioned ledger of policy-level changes, keyed by
// (company, product). The backing file is a plain JSON mapping so external
// tooling can read the audit trail without the engine.
//
// The load-modify-persist cycle is serialized by a mutex: concurrent
// RecordChange calls for the same key always produce strictly increasing,
// non-colliding version numbers.
type Store struct {
	mu     sync.Mutex
	path   string
	logger logrus.FieldLogger

	// Overridable for tests
	now func() time.Time
}

func NewStore(path string) *Store {
	if path == "" {
		path = conf.GetEnv("CLAIMS_METADATA_FILE")
	}
	if path == "" {
		path = "policy_metadata.json"
	}
	return &Store{
		path:   path,
		logger: log.Metadata,
		now:    time.Now,
	}
}

// storeKey normalizes a (company, product) pair into the composite ledger
// key: lowercased, whitespace-trimmed, joined by "::".
func storeKey(company, product string) string {
	return strings.ToLower(strings.TrimSpace(company)) + "::" + strings.ToLower(strings.TrimSpace(product))
}

// RecordChange appends a change record for the (company, product) ledger,
// creating the ledger on first use, and persists the full store atomically.
// Write failures surface as a *claimerrors.StorageError.
func (s *Store) RecordChange(company, product, changeType string, details models.ChangeDetails, actor string) (*models.PolicyMetadataEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	store := s.load()
	key := storeKey(company, product)

	entry, ok := store[key]
	if !ok {
		entry = &models.PolicyMetadataEntry{
			Company: strings.TrimSpace(company),
			Product: strings.TrimSpace(product),
		}
		store[key] = entry
	}

	change := models.PolicyChange{
		Version:    entry.CurrentVersion + 1,
		ChangeType: changeType,
		Details:    details,
		Actor:      actor,
		Timestamp:  s.now().UTC(),
	}
	entry.CurrentVersion = change.Version
	entry.History = append(entry.History, change)

	if err := s.save(store); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"company":     entry.Company,
		"product":     entry.Product,
		"change_type": changeType,
		"version":     change.Version,
		"actor":       actor,
	}).Info("recorded policy metadata change")

	return entry, nil
}

// RecordFamilyUpdate records added/removed covered family members.
func (s *Store) RecordFamilyUpdate(company, product string, added, removed []string, note, actor string) (*models.PolicyMetadataEntry, error) {
	details := models.ChangeDetails{Added: added, Removed: removed, Note: note}
	return s.RecordChange(company, product, constants.ChangeTypeFamilyUpdate, details, actor)
}

// RecordPPNUpdate records preferred-provider-network membership changes.
func (s *Store) RecordPPNUpdate(company, product string, added, removed []string, note, actor string) (*models.PolicyMetadataEntry, error) {
	details := models.ChangeDetails{Added: added, Removed: removed, Note: note}
	return s.RecordChange(company, product, constants.ChangeTypePPNUpdate, details, actor)
}

// GetHistory returns the ledger for a (company, product) pair, or an
// *claimerrors.EntityNotFoundError when none exists.
func (s *Store) GetHistory(company, product string) (*models.PolicyMetadataEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.load()[storeKey(company, product)]
	if !ok {
		return nil, &claimerrors.EntityNotFoundError{Company: company, Product: product}
	}
	return entry, nil
}

// GetCurrentVersion returns the ledger's current version, 0 when no ledger
// exists.
func (s *Store) GetCurrentVersion(company, product string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.load()[storeKey(company, product)]; ok {
		return entry.CurrentVersion
	}
	return 0
}

// ListAll returns every ledger, ordered by key for stable output.
func (s *Store) ListAll() []*models.PolicyMetadataEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	store := s.load()
	keys := make([]string, 0, len(store))
	for k := range store {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]*models.PolicyMetadataEntry, 0, len(store))
	for _, k := range keys {
		entries = append(entries, store[k])
	}
	return entries
}

// load reads the backing file. A missing, unreadable, or corrupt file is
// treated as an empty store; losing reads is tolerable, losing writes is not.
func (s *Store) load() map[string]*models.PolicyMetadataEntry {
	store := make(map[string]*models.PolicyMetadataEntry)

	data, err := os.ReadFile(filepath.Clean(s.path))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warnf("Could not read metadata store %s, treating as empty: %s", s.path, err)
		}
		return store
	}
	if err := json.Unmarshal(data, &store); err != nil {
		s.logger.Warnf("Corrupt metadata store %s, treating as empty: %s", s.path, err)
		return make(map[string]*models.PolicyMetadataEntry)
	}
	return store
}

// save persists the full store via write-to-temp-then-rename so readers never
// observe a partial file.
func (s *Store) save(store map[string]*models.PolicyMetadataEntry) error {
	data, err := json.MarshalIndent(store, "", "  ")
	if err != nil {
		return &claimerrors.StorageError{Err: err, Path: s.path}
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, fmt.Sprintf(".%s-*", filepath.Base(s.path)))
	if err != nil {
		return &claimerrors.StorageError{Err: errors.Wrap(err, "creating temp file"), Path: s.path}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &claimerrors.StorageError{Err: errors.Wrap(err, "writing temp file"), Path: s.path}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &claimerrors.StorageError{Err: errors.Wrap(err, "closing temp file"), Path: s.path}
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return &claimerrors.StorageError{Err: errors.Wrap(err, "replacing store file"), Path: s.path}
	}
	return nil
}
