package app

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordan1monts/COP3060FINAL/internal/model"
	"github.com/jordan1monts/COP3060FINAL/internal/repository"
)

type storeKey struct {
	userID      uint
	entryNumber int
}

// memoryStore implements SuggestionStore with the same conditional-insert
// contract as the MySQL repository.
type memoryStore struct {
	mu      sync.Mutex
	records map[storeKey]model.Suggestion
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[storeKey]model.Suggestion)}
}

func (s *memoryStore) ListByUserID(userID uint) ([]model.Suggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Suggestion
	for key, record := range s.records {
		if key.userID == userID {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntryNumber < out[j].EntryNumber })
	return out, nil
}

func (s *memoryStore) GetByUserIDAndEntryNumber(userID uint, entryNumber int) (*model.Suggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[storeKey{userID, entryNumber}]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (s *memoryStore) GetAnyByEntryNumber(entryNumber int) (*model.Suggestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var match *model.Suggestion
	for key, record := range s.records {
		if key.entryNumber != entryNumber {
			continue
		}
		if match == nil || key.userID < match.UserID {
			copied := record
			match = &copied
		}
	}
	return match, nil
}

func (s *memoryStore) MaxEntryNumber(userID uint) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	highest := 0
	for key := range s.records {
		if key.userID == userID && key.entryNumber > highest {
			highest = key.entryNumber
		}
	}
	return highest, nil
}

func (s *memoryStore) Insert(suggestion *model.Suggestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := storeKey{suggestion.UserID, suggestion.EntryNumber}
	if _, exists := s.records[key]; exists {
		return repository.ErrDuplicateKey
	}
	s.records[key] = *suggestion
	return nil
}

func (s *memoryStore) Update(suggestion *model.Suggestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[storeKey{suggestion.UserID, suggestion.EntryNumber}] = *suggestion
	return nil
}

func (s *memoryStore) Delete(userID uint, entryNumber int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := storeKey{userID, entryNumber}
	if _, exists := s.records[key]; !exists {
		return false, nil
	}
	delete(s.records, key)
	return true, nil
}

func (s *memoryStore) count(userID uint) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for key := range s.records {
		if key.userID == userID {
			n++
		}
	}
	return n
}

// staleMaxStore wraps memoryStore to report a fixed max entry number, which
// reproduces what the losing side of a concurrent create observes.
type staleMaxStore struct {
	*memoryStore
	staleMax int
}

func (s *staleMaxStore) MaxEntryNumber(userID uint) (int, error) {
	return s.staleMax, nil
}

type fakeGenerator struct {
	reply   string
	err     error
	prompts []string
}

func (g *fakeGenerator) Complete(ctx context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

func (g *fakeGenerator) Model() string { return "test-model" }

type recordingPublisher struct {
	events []model.GenerationAudit
}

func (p *recordingPublisher) Publish(ctx context.Context, audit model.GenerationAudit) error {
	p.events = append(p.events, audit)
	return nil
}

// failingPublisher simulates a broker outage: every publish attempt errors.
type failingPublisher struct {
	attempts int
}

func (p *failingPublisher) Publish(ctx context.Context, audit model.GenerationAudit) error {
	p.attempts++
	return errors.New("channel closed")
}

// fakeListCache implements SuggestionListCache in memory and counts writes so
// tests can tell a cache hit from a store round trip.
type fakeListCache struct {
	mu       sync.Mutex
	lists    map[uint][]model.Suggestion
	dirty    map[uint]bool
	setCalls int
}

func newFakeListCache() *fakeListCache {
	return &fakeListCache{
		lists: make(map[uint][]model.Suggestion),
		dirty: make(map[uint]bool),
	}
}

func (c *fakeListCache) GetList(ctx context.Context, userID uint) ([]model.Suggestion, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	list, ok := c.lists[userID]
	return list, ok, nil
}

func (c *fakeListCache) SetList(ctx context.Context, userID uint, suggestions []model.Suggestion) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setCalls++
	c.lists[userID] = suggestions
	return nil
}

func (c *fakeListCache) DeleteList(ctx context.Context, userID uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.lists, userID)
	return nil
}

func (c *fakeListCache) MarkDirty(ctx context.Context, userID uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dirty[userID] = true
	return nil
}

func (c *fakeListCache) IsDirty(ctx context.Context, userID uint) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.dirty[userID], nil
}

func (c *fakeListCache) clearDirty(userID uint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.dirty, userID)
}

func (c *fakeListCache) cached(userID uint) ([]model.Suggestion, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	list, ok := c.lists[userID]
	return list, ok
}

func newTestService(store SuggestionStore, gen *fakeGenerator, pub AuditPublisher) *SuggestionService {
	return NewSuggestionService(store, gen, pub, nil)
}

func newCachedService(store SuggestionStore, gen *fakeGenerator, cache *fakeListCache) *SuggestionService {
	return NewSuggestionService(store, gen, nil, cache)
}

const (
	alice uint = 1
	bob   uint = 2
)

func TestCreate_AssignsSequentialEntryNumbers(t *testing.T) {
	store := newMemoryStore()
	gen := &fakeGenerator{reply: "Suggested roles: ..."}
	svc := newTestService(store, gen, nil)

	first, err := svc.Create(context.Background(), alice, map[string]string{"skills": "Java"})
	require.NoError(t, err)
	assert.Equal(t, 1, first.EntryNumber)
	assert.Equal(t, alice, first.UserID)

	second, err := svc.Create(context.Background(), alice, map[string]string{"skills": "Go"})
	require.NoError(t, err)
	assert.Equal(t, 2, second.EntryNumber)
}

func TestCreate_NumbersAreIndependentPerUser(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store, &fakeGenerator{reply: "roles"}, nil)

	_, err := svc.Create(context.Background(), alice, map[string]string{"skills": "Java"})
	require.NoError(t, err)

	forBob, err := svc.Create(context.Background(), bob, map[string]string{"skills": "Rust"})
	require.NoError(t, err)
	assert.Equal(t, 1, forBob.EntryNumber)
}

func TestCreate_RoundTripAnswers(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store, &fakeGenerator{reply: "roles"}, nil)

	answers := map[string]string{"skills": "Java", "workHistory": "5 years backend"}
	created, err := svc.Create(context.Background(), alice, answers)
	require.NoError(t, err)

	got, err := svc.Get(alice, created.EntryNumber)
	require.NoError(t, err)
	assert.Equal(t, answers, got.Answers)
	assert.Equal(t, "roles", got.Suggestions)
	assert.Contains(t, got.ExternalAPIData, "test-model")
}

func TestCreate_AnonymousIdentityRejected(t *testing.T) {
	svc := newTestService(newMemoryStore(), &fakeGenerator{reply: "roles"}, nil)

	_, err := svc.Create(context.Background(), 0, map[string]string{"skills": "Java"})
	assert.ErrorIs(t, err, ErrIdentityRequired)
}

func TestCreate_EmptyAnswersRejected(t *testing.T) {
	svc := newTestService(newMemoryStore(), &fakeGenerator{reply: "roles"}, nil)

	_, err := svc.Create(context.Background(), alice, nil)
	assert.ErrorIs(t, err, ErrAnswersEmpty)

	_, err = svc.Create(context.Background(), alice, map[string]string{})
	assert.ErrorIs(t, err, ErrAnswersEmpty)
}

func TestCreate_GenerationFailureWritesNothing(t *testing.T) {
	store := newMemoryStore()
	okGen := &fakeGenerator{reply: "roles"}
	svc := newTestService(store, okGen, nil)

	_, err := svc.Create(context.Background(), alice, map[string]string{"skills": "Java"})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), alice, map[string]string{"skills": "Go"})
	require.NoError(t, err)

	failing := newTestService(store, &fakeGenerator{err: errors.New("401 unauthorized")}, nil)
	_, err = failing.Create(context.Background(), alice, map[string]string{"skills": "C"})
	assert.ErrorIs(t, err, ErrGeneration)
	assert.Equal(t, 2, store.count(alice))

	// The failed attempt consumed no entry number.
	next, err := svc.Create(context.Background(), alice, map[string]string{"skills": "C"})
	require.NoError(t, err)
	assert.Equal(t, 3, next.EntryNumber)
}

func TestCreate_ConflictOnConcurrentEntryNumber(t *testing.T) {
	inner := newMemoryStore()
	svc := newTestService(inner, &fakeGenerator{reply: "roles"}, nil)
	for i := 0; i < 3; i++ {
		_, err := svc.Create(context.Background(), alice, map[string]string{"skills": "Java"})
		require.NoError(t, err)
	}

	// A rival create computed the same next number (3) and lost the insert
	// race: entry 3 already exists when this attempt lands.
	stale := &staleMaxStore{memoryStore: inner, staleMax: 2}
	loser := newTestService(stale, &fakeGenerator{reply: "roles"}, nil)
	_, err := loser.Create(context.Background(), alice, map[string]string{"skills": "Go"})
	assert.ErrorIs(t, err, ErrEntryConflict)
	assert.Equal(t, 3, inner.count(alice))
}

func TestGet_OwnershipIsolation(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store, &fakeGenerator{reply: "roles"}, nil)

	created, err := svc.Create(context.Background(), alice, map[string]string{"skills": "Java"})
	require.NoError(t, err)

	_, err = svc.Get(bob, created.EntryNumber)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestGet_AnonymousSkipsOwnershipCheck(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store, &fakeGenerator{reply: "roles"}, nil)

	created, err := svc.Create(context.Background(), alice, map[string]string{"skills": "Java"})
	require.NoError(t, err)

	got, err := svc.Get(0, created.EntryNumber)
	require.NoError(t, err)
	assert.Equal(t, alice, got.UserID)
}

func TestGet_NotFound(t *testing.T) {
	svc := newTestService(newMemoryStore(), &fakeGenerator{reply: "roles"}, nil)

	_, err := svc.Get(alice, 7)
	assert.ErrorIs(t, err, ErrSuggestionNotFound)
}

func TestList_AnonymousReturnsEmpty(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store, &fakeGenerator{reply: "roles"}, nil)

	_, err := svc.Create(context.Background(), alice, map[string]string{"skills": "Java"})
	require.NoError(t, err)

	listed, err := svc.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, listed)
}

func TestList_OrderedByEntryNumber(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store, &fakeGenerator{reply: "roles"}, nil)

	for _, skills := range []string{"Java", "Go", "SQL"} {
		_, err := svc.Create(context.Background(), alice, map[string]string{"skills": skills})
		require.NoError(t, err)
	}
	_, err := svc.Create(context.Background(), bob, map[string]string{"skills": "Rust"})
	require.NoError(t, err)

	listed, err := svc.List(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	for i, record := range listed {
		assert.Equal(t, i+1, record.EntryNumber)
		assert.Equal(t, alice, record.UserID)
	}
}

func TestUpdate_ReplacesContentKeepsKey(t *testing.T) {
	store := newMemoryStore()
	gen := &fakeGenerator{reply: "first roles"}
	svc := newTestService(store, gen, nil)

	created, err := svc.Create(context.Background(), alice, map[string]string{"skills": "Java"})
	require.NoError(t, err)
	createdAt := created.CreatedAt

	gen.reply = "second roles"
	updated, err := svc.Update(context.Background(), alice, created.EntryNumber, map[string]string{"skills": "Go"})
	require.NoError(t, err)

	assert.Equal(t, created.EntryNumber, updated.EntryNumber)
	assert.Equal(t, alice, updated.UserID)
	assert.Equal(t, createdAt, updated.CreatedAt)
	assert.Equal(t, "second roles", updated.Suggestions)
	assert.Equal(t, map[string]string{"skills": "Go"}, updated.Answers)
}

func TestUpdate_GenerationFailureLeavesRecordUntouched(t *testing.T) {
	store := newMemoryStore()
	gen := &fakeGenerator{reply: "first roles"}
	svc := newTestService(store, gen, nil)

	created, err := svc.Create(context.Background(), alice, map[string]string{"skills": "Java"})
	require.NoError(t, err)

	failing := newTestService(store, &fakeGenerator{err: errors.New("timeout")}, nil)
	_, err = failing.Update(context.Background(), alice, created.EntryNumber, map[string]string{"skills": "Go"})
	assert.ErrorIs(t, err, ErrGeneration)

	got, err := svc.Get(alice, created.EntryNumber)
	require.NoError(t, err)
	assert.Equal(t, "first roles", got.Suggestions)
	assert.Equal(t, map[string]string{"skills": "Java"}, got.Answers)
}

func TestUpdate_ForbiddenForOtherUser(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store, &fakeGenerator{reply: "roles"}, nil)

	created, err := svc.Create(context.Background(), alice, map[string]string{"skills": "Java"})
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), bob, created.EntryNumber, map[string]string{"skills": "Go"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestUpdate_NotFound(t *testing.T) {
	svc := newTestService(newMemoryStore(), &fakeGenerator{reply: "roles"}, nil)

	_, err := svc.Update(context.Background(), alice, 9, map[string]string{"skills": "Go"})
	assert.ErrorIs(t, err, ErrSuggestionNotFound)
}

func TestDelete_Idempotent(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store, &fakeGenerator{reply: "roles"}, nil)

	created, err := svc.Create(context.Background(), alice, map[string]string{"skills": "Java"})
	require.NoError(t, err)

	removed, err := svc.Delete(context.Background(), alice, created.EntryNumber)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = svc.Delete(context.Background(), alice, created.EntryNumber)
	require.NoError(t, err)
	assert.False(t, removed)
	assert.Equal(t, 0, store.count(alice))
}

func TestDelete_ForbiddenForOtherUser(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(store, &fakeGenerator{reply: "roles"}, nil)

	created, err := svc.Create(context.Background(), alice, map[string]string{"skills": "Java"})
	require.NoError(t, err)

	_, err = svc.Delete(context.Background(), bob, created.EntryNumber)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, 1, store.count(alice))
}

func TestList_ServedFromCache(t *testing.T) {
	store := newMemoryStore()
	cache := newFakeListCache()
	svc := newCachedService(store, &fakeGenerator{reply: "roles"}, cache)

	// The cache holds a copy the store no longer has; a clean marker means
	// the copy wins without a store round trip.
	cache.lists[alice] = []model.Suggestion{{UserID: alice, EntryNumber: 1, Suggestions: "cached roles"}}

	listed, err := svc.List(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "cached roles", listed[0].Suggestions)
	assert.Equal(t, 0, cache.setCalls)
}

func TestList_PopulatesCacheAfterMiss(t *testing.T) {
	store := newMemoryStore()
	cache := newFakeListCache()
	svc := newCachedService(store, &fakeGenerator{reply: "roles"}, cache)

	_, err := svc.Create(context.Background(), alice, map[string]string{"skills": "Java"})
	require.NoError(t, err)
	cache.clearDirty(alice)

	listed, err := svc.List(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, listed, 1)

	assert.Equal(t, 1, cache.setCalls)
	cached, ok := cache.cached(alice)
	require.True(t, ok)
	assert.Equal(t, listed, cached)
}

func TestList_DirtyMarkerBypassesCache(t *testing.T) {
	store := newMemoryStore()
	cache := newFakeListCache()
	svc := newCachedService(store, &fakeGenerator{reply: "fresh roles"}, cache)

	_, err := svc.Create(context.Background(), alice, map[string]string{"skills": "Java"})
	require.NoError(t, err)

	// A stale copy lands in the cache while the dirty marker from the create
	// is still set: the store stays authoritative and nothing is re-cached.
	cache.lists[alice] = []model.Suggestion{{UserID: alice, EntryNumber: 1, Suggestions: "stale roles"}}

	listed, err := svc.List(context.Background(), alice)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "fresh roles", listed[0].Suggestions)
	assert.Equal(t, 0, cache.setCalls)
}

func TestMutationsInvalidateCachedList(t *testing.T) {
	store := newMemoryStore()
	cache := newFakeListCache()
	svc := newCachedService(store, &fakeGenerator{reply: "roles"}, cache)

	created, err := svc.Create(context.Background(), alice, map[string]string{"skills": "Java"})
	require.NoError(t, err)

	dirty, _ := cache.IsDirty(context.Background(), alice)
	assert.True(t, dirty, "create must mark the list dirty")

	// Warm the cache, then check each mutation drops it again.
	cache.clearDirty(alice)
	_, err = svc.List(context.Background(), alice)
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), alice, created.EntryNumber, map[string]string{"skills": "Go"})
	require.NoError(t, err)
	dirty, _ = cache.IsDirty(context.Background(), alice)
	assert.True(t, dirty, "update must mark the list dirty")
	_, ok := cache.cached(alice)
	assert.False(t, ok, "update must drop the cached list")

	cache.clearDirty(alice)
	_, err = svc.List(context.Background(), alice)
	require.NoError(t, err)

	removed, err := svc.Delete(context.Background(), alice, created.EntryNumber)
	require.NoError(t, err)
	require.True(t, removed)
	dirty, _ = cache.IsDirty(context.Background(), alice)
	assert.True(t, dirty, "delete must mark the list dirty")
	_, ok = cache.cached(alice)
	assert.False(t, ok, "delete must drop the cached list")
}

func TestAudit_PublishFailureDoesNotFailOperation(t *testing.T) {
	store := newMemoryStore()
	pub := &failingPublisher{}
	svc := newTestService(store, &fakeGenerator{reply: "roles"}, pub)

	created, err := svc.Create(context.Background(), alice, map[string]string{"skills": "Java"})
	require.NoError(t, err)
	assert.Equal(t, 1, store.count(alice))

	_, err = svc.Update(context.Background(), alice, created.EntryNumber, map[string]string{"skills": "Go"})
	require.NoError(t, err)

	got, err := svc.Get(alice, created.EntryNumber)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"skills": "Go"}, got.Answers)
	assert.Equal(t, 2, pub.attempts)
}

func TestAudit_RecordsAttemptOutcomes(t *testing.T) {
	store := newMemoryStore()
	pub := &recordingPublisher{}
	svc := newTestService(store, &fakeGenerator{reply: "roles"}, pub)

	created, err := svc.Create(context.Background(), alice, map[string]string{"skills": "Java"})
	require.NoError(t, err)

	failing := newTestService(store, &fakeGenerator{err: errors.New("quota exceeded")}, pub)
	_, err = failing.Update(context.Background(), alice, created.EntryNumber, map[string]string{"skills": "Go"})
	require.ErrorIs(t, err, ErrGeneration)

	require.Len(t, pub.events, 2)
	assert.Equal(t, model.AuditActionCreate, pub.events[0].Action)
	assert.Equal(t, model.AuditStatusSuccess, pub.events[0].Status)
	assert.Equal(t, model.AuditActionUpdate, pub.events[1].Action)
	assert.Equal(t, model.AuditStatusFailed, pub.events[1].Status)
	assert.Contains(t, pub.events[1].Detail, "quota exceeded")
}
