package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/medassure/claims-engine/claims/constants"
	claimerrors "github.com/medassure/claims-engine/claims/errors"
	"github.com/medassure/claims-engine/claims/models"
)

type StoreTestSuite struct {
	suite.Suite
	dir   string
	store *Store
}

func (s *StoreTestSuite) SetupTest() {
	s.dir = s.T().TempDir()
	s.store = NewStore(filepath.Join(s.dir, "policy_metadata.json"))
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func (s *StoreTestSuite) TestRecordChangeVersionSequence() {
	assert := assert.New(s.T())

	const n = 5
	for i := 1; i <= n; i++ {
		entry, err := s.store.RecordChange("Acme Health", "Gold Plan", constants.ChangeTypeFamilyUpdate,
			models.ChangeDetails{Added: []string{fmt.Sprintf("member-%d", i)}}, "ops")
		assert.NoError(err)
		assert.Equal(i, entry.CurrentVersion)
	}

	entry, err := s.store.GetHistory("Acme Health", "Gold Plan")
	assert.NoError(err)
	assert.Equal(n, entry.CurrentVersion)
	assert.Len(entry.History, n)
	for i, change := range entry.History {
		assert.Equal(i+1, change.Version)
		assert.False(change.Timestamp.IsZero())
		assert.Equal(time.UTC, change.Timestamp.Location())
	}
}

func (s *StoreTestSuite) TestKeyNormalization() {
	assert := assert.New(s.T())

	_, err := s.store.RecordChange("  Acme Health ", "GOLD plan", constants.ChangeTypePPNUpdate,
		models.ChangeDetails{Added: []string{"City Hospital"}}, "ops")
	assert.NoError(err)

	// Same logical key regardless of case and padding
	assert.Equal(1, s.store.GetCurrentVersion("acme health", "Gold Plan"))

	entry, err := s.store.GetHistory("ACME HEALTH", "  gold plan")
	assert.NoError(err)
	assert.Equal("Acme Health", entry.Company)
	assert.Equal("GOLD plan", entry.Product)
}

func (s *StoreTestSuite) TestConvenienceWrappers() {
	assert := assert.New(s.T())

	entry, err := s.store.RecordFamilyUpdate("Acme", "Silver", []string{"spouse"}, nil, "annual enrollment", "agent-7")
	assert.NoError(err)
	assert.Equal(constants.ChangeTypeFamilyUpdate, entry.History[0].ChangeType)
	assert.Equal([]string{"spouse"}, entry.History[0].Details.Added)
	assert.Equal("annual enrollment", entry.History[0].Details.Note)
	assert.Equal("agent-7", entry.History[0].Actor)

	entry, err = s.store.RecordPPNUpdate("Acme", "Silver", nil, []string{"Metro Clinic"}, "", "agent-7")
	assert.NoError(err)
	assert.Equal(2, entry.CurrentVersion)
	assert.Equal(constants.ChangeTypePPNUpdate, entry.History[1].ChangeType)
	assert.Equal([]string{"Metro Clinic"}, entry.History[1].Details.Removed)
}

func (s *StoreTestSuite) TestGetHistoryMissing() {
	_, err := s.store.GetHistory("Nobody", "Nothing")
	var notFound *claimerrors.EntityNotFoundError
	assert.ErrorAs(s.T(), err, &notFound)
	assert.Equal(s.T(), 0, s.store.GetCurrentVersion("Nobody", "Nothing"))
}

func (s *StoreTestSuite) TestCorruptFileTreatedAsEmpty() {
	assert := assert.New(s.T())

	assert.NoError(os.WriteFile(s.store.path, []byte("{not json"), 0600))
	assert.Equal(0, s.store.GetCurrentVersion("Acme", "Gold"))

	// Writes still work after a corrupt read
	entry, err := s.store.RecordChange("Acme", "Gold", constants.ChangeTypeFamilyUpdate,
		models.ChangeDetails{Note: "fresh start"}, "ops")
	assert.NoError(err)
	assert.Equal(1, entry.CurrentVersion)
}

func (s *StoreTestSuite) TestPersistedLayoutReadableByExternalTooling() {
	assert := assert.New(s.T())

	_, err := s.store.RecordPPNUpdate("Acme Health", "Gold Plan", []string{"City Hospital"}, nil, "", "ops")
	assert.NoError(err)

	data, err := os.ReadFile(s.store.path)
	assert.NoError(err)

	// The durable layout is a flat JSON mapping keyed company::product
	var raw map[string]map[string]interface{}
	assert.NoError(json.Unmarshal(data, &raw))
	entry, ok := raw["acme health::gold plan"]
	assert.True(ok)
	assert.Equal("Acme Health", entry["company"])
	assert.Equal("Gold Plan", entry["product"])
	assert.Equal(float64(1), entry["current_version"])
	history, ok := entry["history"].([]interface{})
	assert.True(ok)
	assert.Len(history, 1)
}

func (s *StoreTestSuite) TestListAll() {
	assert := assert.New(s.T())

	_, err := s.store.RecordFamilyUpdate("Zenith", "Basic", []string{"child"}, nil, "", "ops")
	assert.NoError(err)
	_, err = s.store.RecordFamilyUpdate("Acme", "Gold", []string{"spouse"}, nil, "", "ops")
	assert.NoError(err)

	entries := s.store.ListAll()
	assert.Len(entries, 2)
	// Ordered by normalized key
	assert.Equal("Acme", entries[0].Company)
	assert.Equal("Zenith", entries[1].Company)
}

func (s *StoreTestSuite) TestConcurrentWritersDoNotCollide() {
	assert := assert.New(s.T())

	const writers = 8
	var wg sync.WaitGroup
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func(i int) {
			defer wg.Done()
			_, err := s.store.RecordChange("Acme", "Gold", constants.ChangeTypeFamilyUpdate,
				models.ChangeDetails{Note: fmt.Sprintf("writer-%d", i)}, "ops")
			assert.NoError(err)
		}(i)
	}
	wg.Wait()

	entry, err := s.store.GetHistory("Acme", "Gold")
	assert.NoError(err)
	assert.Equal(writers, entry.CurrentVersion)
	assert.Len(entry.History, writers)
	seen := make(map[int]bool)
	for _, change := range entry.History {
		assert.False(seen[change.Version], "version %d recorded twice", change.Version)
		seen[change.Version] = true
	}
}

func TestWriteFailurePropagatesAsStorageError(t *testing.T) {
	dir := t.TempDir()
	// Point the store at a path whose parent directory does not exist so the
	// temp-file create fails
	store := NewStore(filepath.Join(dir, "missing", "policy_metadata.json"))

	_, err := store.RecordChange("Acme", "Gold", constants.ChangeTypeFamilyUpdate,
		models.ChangeDetails{}, "ops")
	var storageErr *claimerrors.StorageError
	assert.ErrorAs(t, err, &storageErr)
}
