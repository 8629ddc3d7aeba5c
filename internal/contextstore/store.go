package contextstore

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultCapacity is the number of entries kept when Config.Capacity is zero.
// Older entries beyond it are dropped on every save.
const DefaultCapacity = 100

// Config configures a Store.
type Config struct {
	// Path is the store file, usually <workspace>/.context-manager/contexts.json.
	Path string
	// ProjectPath is stamped on every new entry.
	ProjectPath string
	// Capacity bounds the number of entries; zero means DefaultCapacity.
	Capacity int
	// Logger may be nil.
	Logger *slog.Logger
	// Recorder, if set, receives a snapshot after every mutation.
	Recorder Recorder
	// Now overrides the clock; tests use it to pin timestamps.
	Now func() time.Time
}

// Store is an in-memory cache of one store file plus the mutation API.
//
// All operations on a Store are serialized, and each mutation completes its
// write before the next operation starts. Separate processes (or separate
// Store values) pointing at the same file keep independent caches and do
// not coordinate: a load-mutate-save in one can overwrite a concurrent save
// in another.
type Store struct {
	mu          sync.Mutex
	path        string
	projectPath string
	capacity    int
	logger      *slog.Logger
	recorder    Recorder
	now         func() time.Time

	data   *Container // nil until the first operation loads the file
	lastID int64
}

// New creates a store. The file is not touched until the first operation.
func New(cfg Config) *Store {
	s := &Store{
		path:        cfg.Path,
		projectPath: cfg.ProjectPath,
		capacity:    cfg.Capacity,
		logger:      cfg.Logger,
		recorder:    cfg.Recorder,
		now:         cfg.Now,
	}
	if s.capacity <= 0 {
		s.capacity = DefaultCapacity
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Path returns the store file path.
func (s *Store) Path() string { return s.path }

// ProjectPath returns the workspace path stamped on new entries.
func (s *Store) ProjectPath() string { return s.projectPath }

// Capacity returns the retention bound.
func (s *Store) Capacity() int { return s.capacity }

// Invalidate drops the cached container so the next operation reloads the
// file. A mutation whose write failed is lost.
func (s *Store) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = nil
}

// Add creates an entry from nc, prepends it and saves. On a write failure
// the created entry is returned together with a *StorageError; it stays in
// memory.
func (s *Store) Add(ctx context.Context, nc NewContext) (Context, error) {
	c := Context{
		Content:    nc.Content,
		Type:       nc.Type,
		Importance: nc.Importance,
		Tags:       append([]string{}, nc.Tags...),
	}
	if c.Importance == 0 {
		c.Importance = DefaultImportance
	}
	if err := c.validate(); err != nil {
		return Context{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx); err != nil {
		return Context{}, err
	}

	now := s.timestamp()
	c.ID = s.nextID(now)
	c.Timestamp = now
	c.ProjectPath = s.projectPath

	s.data.Contexts = append([]Context{c}, s.data.Contexts...)
	s.record(OpAdd, c, now)
	for _, old := range s.evict() {
		s.record(OpEvict, old, now)
	}
	return c.clone(), s.persist()
}

// List returns the limit most recent entries; limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Context, error) {
	return s.Query(ctx, Filter{Limit: limit})
}

// Search returns entries whose content or type contains query, ignoring
// case, newest first. An empty query behaves like List.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Context, error) {
	return s.Query(ctx, Filter{Query: query, Limit: limit})
}

// Query returns the entries matching f, newest first.
func (s *Store) Query(ctx context.Context, f Filter) ([]Context, error) {
	if f.Type != "" && f.Type != TypeAll {
		if err := validateType(f.Type); err != nil {
			return nil, err
		}
	}
	if f.Range != "" {
		if _, err := ParseDateRange(string(f.Range)); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx); err != nil {
		return nil, err
	}
	return Apply(s.data.Contexts, f, s.now()), nil
}

// Get returns one entry by id.
func (s *Store) Get(ctx context.Context, id string) (Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx); err != nil {
		return Context{}, err
	}
	i := s.index(id)
	if i < 0 {
		return Context{}, &NotFoundError{ID: id}
	}
	return s.data.Contexts[i].clone(), nil
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx); err != nil {
		return 0, err
	}
	return len(s.data.Contexts), nil
}

// Update applies the supplied fields of p to the entry with the given id and
// saves. The id, timestamp and project path never change.
func (s *Store) Update(ctx context.Context, id string, p Patch) (Context, error) {
	if strings.TrimSpace(id) == "" {
		return Context{}, &ValidationError{Field: "id", Reason: "is required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx); err != nil {
		return Context{}, err
	}
	i := s.index(id)
	if i < 0 {
		return Context{}, &NotFoundError{ID: id}
	}

	updated := s.data.Contexts[i].clone()
	p.apply(&updated)
	if err := updated.validate(); err != nil {
		return Context{}, err
	}
	s.data.Contexts[i] = updated
	s.record(OpUpdate, updated, s.timestamp())
	return updated.clone(), s.persist()
}

// Delete removes the entry with the given id and saves.
func (s *Store) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return &ValidationError{Field: "id", Reason: "is required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx); err != nil {
		return err
	}
	i := s.index(id)
	if i < 0 {
		return &NotFoundError{ID: id}
	}
	removed := s.data.Contexts[i]
	s.data.Contexts = append(s.data.Contexts[:i], s.data.Contexts[i+1:]...)
	s.record(OpDelete, removed, s.timestamp())
	return s.persist()
}

// DeleteMany removes every entry whose id is in ids, skipping unknown ids,
// and saves once. It returns how many entries were removed.
func (s *Store) DeleteMany(ctx context.Context, ids []string) (int, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.begin(ctx); err != nil {
		return 0, err
	}
	now := s.timestamp()
	kept := s.data.Contexts[:0]
	removed := 0
	for _, c := range s.data.Contexts {
		if want[c.ID] {
			removed++
			s.record(OpDelete, c, now)
			continue
		}
		kept = append(kept, c)
	}
	s.data.Contexts = kept
	return removed, s.persist()
}

// begin loads the file on first use. The caller holds s.mu.
func (s *Store) begin(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.data != nil {
		return nil
	}
	c, err := ReadContainer(s.path)
	if err != nil {
		var corrupt *CorruptDataError
		if !errors.As(err, &corrupt) {
			return err
		}
		s.logger.Warn("Context file is corrupt, starting with no contexts", "path", s.path, "err", err)
	}
	s.data = c
	for _, e := range c.Contexts {
		if n, err := strconv.ParseInt(e.ID, 10, 64); err == nil && n > s.lastID {
			s.lastID = n
		}
	}
	if dropped := s.evict(); len(dropped) > 0 {
		s.logger.Info("Dropped contexts over capacity", "path", s.path, "dropped", len(dropped), "capacity", s.capacity)
	}
	s.logger.Debug("Loaded contexts", "path", s.path, "format", c.Format.String(), "count", len(c.Contexts))
	return nil
}

// evict truncates the container to capacity and returns what was dropped.
func (s *Store) evict() []Context {
	if len(s.data.Contexts) <= s.capacity {
		return nil
	}
	dropped := append([]Context{}, s.data.Contexts[s.capacity:]...)
	s.data.Contexts = s.data.Contexts[:s.capacity:s.capacity]
	return dropped
}

// persist writes the whole container. The caller holds s.mu.
func (s *Store) persist() error {
	s.evict()
	if err := WriteContainer(s.path, s.data, s.now()); err != nil {
		return err
	}
	s.logger.Debug("Saved contexts", "path", s.path, "count", len(s.data.Contexts))
	return nil
}

func (s *Store) record(op Op, c Context, at time.Time) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(op, c, at); err != nil {
		s.logger.Warn("Failed to record context revision", "id", c.ID, "op", string(op), "err", err)
	}
}

func (s *Store) index(id string) int {
	for i := range s.data.Contexts {
		if s.data.Contexts[i].ID == id {
			return i
		}
	}
	return -1
}

// nextID returns a millisecond timestamp id that is greater than any id
// issued or loaded so far and not already in use.
func (s *Store) nextID(now time.Time) string {
	n := now.UnixMilli()
	if n <= s.lastID {
		n = s.lastID + 1
	}
	for s.index(strconv.FormatInt(n, 10)) >= 0 {
		n++
	}
	s.lastID = n
	return strconv.FormatInt(n, 10)
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}
