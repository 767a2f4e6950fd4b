package memory

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const previewLen = 50

// preview returns the first 50 characters for logging.
func preview(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= previewLen {
		return s
	}
	return s[:previewLen] + "..."
}

// Store is the typed facade over a VectorStore for dialogue memory: item
// lifecycle, role taxonomy, per-user/per-character partitioning, retention
// cleanup, and profile read/write.
//
// Store is safe for concurrent use as long as the underlying VectorStore is.
type Store struct {
	vs  VectorStore
	now func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock overrides the timestamp source. Used by tests to control item
// ordering.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a Store over the given vector store backend.
func NewStore(vs VectorStore, opts ...StoreOption) *Store {
	s := &Store{
		vs:  vs,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddItem stores a memory item and returns its generated ID. Blank content is
// silently dropped: the returned ID is empty and nothing is written. An
// unknown role is a caller error.
func (s *Store) AddItem(ctx context.Context, role Role, content, historyUID, confUID string) (string, error) {
	if !role.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return "", nil
	}

	item := Item{
		ID:         uuid.New().String(),
		Content:    content,
		Role:       role,
		HistoryUID: historyUID,
		ConfUID:    confUID,
		Timestamp:  s.now().Unix(),
	}
	doc := Document{ID: item.ID, Content: item.Content, Metadata: item.metadata()}
	if err := s.vs.Add(ctx, []Document{doc}); err != nil {
		return "", fmt.Errorf("add %s item: %w", role, err)
	}
	log.Printf("[MEMORY] Saved %s: %q", role, preview(content))
	return item.ID, nil
}

// QueryFilter narrows a similarity query. Zero-valued fields are not applied;
// supplied fields combine with logical AND.
type QueryFilter struct {
	HistoryUID string
	ConfUID    string
	Roles      []Role
}

func (q QueryFilter) filter() *Filter {
	var parts []*Filter
	if q.HistoryUID != "" {
		parts = append(parts, Eq(metaHistoryUID, q.HistoryUID))
	}
	if q.ConfUID != "" {
		parts = append(parts, Eq(metaConfUID, q.ConfUID))
	}
	if len(q.Roles) > 0 {
		roles := make([]string, len(q.Roles))
		for i, r := range q.Roles {
			roles[i] = string(r)
		}
		parts = append(parts, In(metaRole, roles...))
	}
	if len(parts) == 0 {
		return nil
	}
	return And(parts...)
}

// Query returns up to n items most similar to text, most similar first.
// An empty store or non-positive n yields an empty slice, never an error.
func (s *Store) Query(ctx context.Context, text string, n int, q QueryFilter) ([]Item, error) {
	if n <= 0 {
		return nil, nil
	}
	total, err := s.vs.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}
	if total == 0 {
		return nil, nil
	}
	if n > total {
		n = total
	}

	results, err := s.vs.Query(ctx, text, n, q.filter())
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	items := make([]Item, 0, len(results))
	for _, r := range results {
		if strings.TrimSpace(r.Content) == "" {
			continue
		}
		items = append(items, itemFromDocument(r.Document))
	}
	return items, nil
}

// GetAllFacts returns the fact contents for a thread, newest first, capped at
// limit. This is the evidence set for the profile merge.
func (s *Store) GetAllFacts(ctx context.Context, historyUID, confUID string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	parts := []*Filter{
		Eq(metaRole, string(RoleFact)),
		Eq(metaHistoryUID, historyUID),
	}
	if confUID != "" {
		parts = append(parts, Eq(metaConfUID, confUID))
	}
	docs, err := s.vs.Get(ctx, And(parts...))
	if err != nil {
		return nil, fmt.Errorf("get facts: %w", err)
	}

	items := sortNewestFirst(docs)
	facts := make([]string, 0, len(items))
	for _, it := range items {
		if c := strings.TrimSpace(it.Content); c != "" {
			facts = append(facts, c)
		}
		if len(facts) == limit {
			break
		}
	}
	return facts, nil
}

// GetUserProfile returns the most recent user_profile content for the scope,
// or an empty string if none exists.
func (s *Store) GetUserProfile(ctx context.Context, historyUID, confUID string) (string, error) {
	parts := []*Filter{
		Eq(metaRole, string(RoleUserProfile)),
		Eq(metaHistoryUID, historyUID),
	}
	if confUID != "" {
		parts = append(parts, Eq(metaConfUID, confUID))
	}
	docs, err := s.vs.Get(ctx, And(parts...))
	if err != nil {
		return "", fmt.Errorf("get profile: %w", err)
	}
	if len(docs) == 0 {
		return "", nil
	}
	items := sortNewestFirst(docs)
	return strings.TrimSpace(items[0].Content), nil
}

// SetUserProfile appends a new user_profile item, which becomes the active
// profile for the scope. Blank content is a no-op. Use this after an LLM
// merge; previous profiles remain as superseded history.
func (s *Store) SetUserProfile(ctx context.Context, historyUID, confUID, content string) error {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	_, err := s.AddItem(ctx, RoleUserProfile, content, historyUID, confUID)
	return err
}

// AddToUserProfile appends a bullet line to the current profile and writes the
// result as a new profile item. This is naive concatenation only — it does not
// resolve contradictions. Callers needing that must go through the
// Consolidator merge flow.
func (s *Store) AddToUserProfile(ctx context.Context, historyUID, confUID, newFact string) error {
	newFact = strings.TrimSpace(newFact)
	if newFact == "" {
		return nil
	}
	current, err := s.GetUserProfile(ctx, historyUID, confUID)
	if err != nil {
		return err
	}
	merged := "- " + newFact
	if current != "" {
		merged = current + "\n- " + newFact
	}
	return s.SetUserProfile(ctx, historyUID, confUID, merged)
}

// DeleteOlderThanDays removes items whose timestamp is older than now minus
// days, excluding the given roles. A nil excludeRoles keeps the default
// protection of facts and profiles. historyUID narrows the sweep when
// non-empty. Returns the number of items deleted; repeated calls are
// idempotent once the horizon has passed.
func (s *Store) DeleteOlderThanDays(ctx context.Context, days int, historyUID string, excludeRoles []Role) (int, error) {
	if excludeRoles == nil {
		excludeRoles = PersistentRoles
	}
	cutoff := s.now().Add(-time.Duration(days) * 24 * time.Hour).Unix()

	parts := []*Filter{Lt(metaTimestamp, cutoff)}
	if historyUID != "" {
		parts = append(parts, Eq(metaHistoryUID, historyUID))
	}
	if len(excludeRoles) > 0 {
		roles := make([]string, len(excludeRoles))
		for i, r := range excludeRoles {
			roles[i] = string(r)
		}
		parts = append(parts, NotIn(metaRole, roles...))
	}

	docs, err := s.vs.Get(ctx, And(parts...))
	if err != nil {
		return 0, fmt.Errorf("find stale items: %w", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	if err := s.vs.Delete(ctx, ids); err != nil {
		return 0, fmt.Errorf("delete stale items: %w", err)
	}
	log.Printf("[MEMORY] Deleted %d items older than %d days", len(ids), days)
	return len(ids), nil
}

// DeleteByIDs removes specific items. Empty IDs are skipped; the count of
// requested deletions is returned.
func (s *Store) DeleteByIDs(ctx context.Context, ids []string) (int, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return 0, nil
	}
	if err := s.vs.Delete(ctx, valid); err != nil {
		return 0, fmt.Errorf("delete by ids: %w", err)
	}
	log.Printf("[MEMORY] Deleted %d items by ID", len(valid))
	return len(valid), nil
}

// DeleteAll removes every item for a character, optionally narrowed to one
// history. Used for administrative reset.
func (s *Store) DeleteAll(ctx context.Context, confUID, historyUID string) (int, error) {
	parts := []*Filter{Eq(metaConfUID, confUID)}
	if historyUID != "" {
		parts = append(parts, Eq(metaHistoryUID, historyUID))
	}
	docs, err := s.vs.Get(ctx, And(parts...))
	if err != nil {
		return 0, fmt.Errorf("find items: %w", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	if err := s.vs.Delete(ctx, ids); err != nil {
		return 0, fmt.Errorf("delete items: %w", err)
	}
	log.Printf("[MEMORY] Cleared %d items for conf=%s", len(ids), confUID)
	return len(ids), nil
}

// ListItems returns items for a character sorted newest first, capped at
// limit. historyUID and role narrow the listing when non-zero. Read-only
// inspection path for admin surfaces.
func (s *Store) ListItems(ctx context.Context, confUID, historyUID string, role Role, limit int) ([]Item, error) {
	if limit <= 0 {
		return nil, nil
	}
	parts := []*Filter{Eq(metaConfUID, confUID)}
	if historyUID != "" {
		parts = append(parts, Eq(metaHistoryUID, historyUID))
	}
	if role != "" {
		if !role.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRole, role)
		}
		parts = append(parts, Eq(metaRole, string(role)))
	}
	docs, err := s.vs.Get(ctx, And(parts...))
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	items := sortNewestFirst(docs)
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// Count returns the total number of stored items.
func (s *Store) Count(ctx context.Context) (int, error) {
	return s.vs.Count(ctx)
}

// sortNewestFirst decodes documents and orders them by descending timestamp.
// Ties keep the later-inserted document first so same-second appends still
// read back in write order on adapters that preserve insertion order.
func sortNewestFirst(docs []Document) []Item {
	items := make([]Item, len(docs))
	for i, d := range docs {
		items[i] = itemFromDocument(d)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp > items[j].Timestamp
	})
	// Stable sort alone keeps insertion order within a tie, which is
	// oldest-first; reverse each equal-timestamp run.
	for lo := 0; lo < len(items); {
		hi := lo + 1
		for hi < len(items) && items[hi].Timestamp == items[lo].Timestamp {
			hi++
		}
		for l, r := lo, hi-1; l < r; l, r = l+1, r-1 {
			items[l], items[r] = items[r], items[l]
		}
		lo = hi
	}
	return items
}
