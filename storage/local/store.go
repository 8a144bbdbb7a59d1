// Package local is the Local Store Adapter: typed, JSON-serialized collections over a
// durable key-value store.
package local

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/mistrzwujo098/quiz-sub001/core"
	"github.com/mistrzwujo098/quiz-sub001/core/quiz"
	"github.com/mistrzwujo098/quiz-sub001/core/user"
)

// Keys
const (
	KeyUsers       = "users"
	KeyQuizzes     = "quizzes"
	KeyInitVersion = "initVersion"
)

const (
	emptyCollection  = "[]"
	maxWriteAttempts = 3
)

// Store owns serialization and default values of every local key. Writers in the same
// process are serialized; writers in other processes are detected through KV revisions.
type Store struct {
	kv     KV
	logger core.Logger
	mu     sync.Mutex
}

func NewStore(kv KV, logger core.Logger) *Store {
	return &Store{kv: kv, logger: logger}
}

func (s *Store) Close() error {
	return s.kv.Close()
}

// EnsureDefaults seeds empty collections for absent keys.
func (s *Store) EnsureDefaults() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range []string{KeyUsers, KeyQuizzes} {
		if _, err := s.kv.Put(key, emptyCollection, 0); err != nil && err != ErrRevisionMismatch {
			return core.NewStoreError(core.Unavailable, "seeding "+key, err)
		}
	}
	return nil
}

func (s *Store) Users() ([]user.User, error) {
	users, _, err := loadCollection[user.User](s, KeyUsers)
	return users, err
}

func (s *Store) Quizzes() ([]quiz.Quiz, error) {
	quizzes, _, err := loadCollection[quiz.Quiz](s, KeyQuizzes)
	return quizzes, err
}

// UpdateUsers applies fn to the current users and persists the full result before
// returning. fn may run more than once when another process wrote concurrently.
func (s *Store) UpdateUsers(fn func([]user.User) ([]user.User, error)) error {
	return updateCollection(s, KeyUsers, fn)
}

// UpdateQuizzes is UpdateUsers for quizzes.
func (s *Store) UpdateQuizzes(fn func([]quiz.Quiz) ([]quiz.Quiz, error)) error {
	return updateCollection(s, KeyQuizzes, fn)
}

// ReplaceAll overwrites both collections wholesale.
func (s *Store) ReplaceAll(users []user.User, quizzes []quiz.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.put(KeyUsers, users, AnyRevision); err != nil {
		return err
	}
	return s.put(KeyQuizzes, quizzes, AnyRevision)
}

// InitVersion returns the Initialization Marker.
func (s *Store) InitVersion() (string, bool, error) {
	item, ok, err := s.kv.Get(KeyInitVersion)
	if err != nil {
		return "", false, core.NewStoreError(core.Unavailable, "reading "+KeyInitVersion, err)
	}
	if !ok || item.Value == "" {
		return "", false, nil
	}
	return item.Value, true, nil
}

func (s *Store) SetInitVersion(version string) error {
	if _, err := s.kv.Put(KeyInitVersion, version, AnyRevision); err != nil {
		return core.NewStoreError(core.Unavailable, "writing "+KeyInitVersion, err)
	}
	return nil
}

func (s *Store) ClearInitVersion() error {
	if err := s.kv.Delete(KeyInitVersion); err != nil {
		return core.NewStoreError(core.Unavailable, "clearing "+KeyInitVersion, err)
	}
	return nil
}

func (s *Store) put(key string, v interface{}, expectRev int64) error {
	data, err := json.Marshal(v)
	if err != nil {
		return core.NewStoreError(core.SerializationError, "encoding "+key, err)
	}
	if _, err = s.kv.Put(key, string(data), expectRev); err != nil {
		if err == ErrRevisionMismatch {
			return err
		}
		return core.NewStoreError(core.Unavailable, "writing "+key, err)
	}
	return nil
}

// reset restores key to its default value after a decode failure.
func (s *Store) reset(key string, cause error) (int64, error) {
	s.logger.Warn(fmt.Sprintf("local store: corrupt %q reset to default", key),
		core.NewStoreError(core.SerializationError, "decoding "+key, cause))
	rev, err := s.kv.Put(key, emptyCollection, AnyRevision)
	if err != nil {
		return 0, core.NewStoreError(core.Unavailable, "resetting "+key, err)
	}
	return rev, nil
}

// loadCollection decodes the collection under key. A value that is not a JSON array is
// reset to the empty collection; individual undecodable records are skipped.
func loadCollection[T any](s *Store, key string) ([]T, int64, error) {
	item, ok, err := s.kv.Get(key)
	if err != nil {
		return nil, 0, core.NewStoreError(core.Unavailable, "reading "+key, err)
	}
	if !ok {
		return []T{}, 0, nil
	}

	var raws []json.RawMessage
	if err = json.Unmarshal([]byte(item.Value), &raws); err != nil {
		rev, rErr := s.reset(key, err)
		return []T{}, rev, rErr
	}
	records := make([]T, 0, len(raws))
	for i, raw := range raws {
		var rec T
		if err = json.Unmarshal(raw, &rec); err != nil {
			s.logger.Warn(fmt.Sprintf("local store: skipping corrupt record %d of %q", i, key),
				core.NewStoreError(core.SerializationError, "decoding "+key, err))
			continue
		}
		records = append(records, rec)
	}
	return records, item.Revision, nil
}

func updateCollection[T any](s *Store, key string, fn func([]T) ([]T, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 1; attempt <= maxWriteAttempts; attempt++ {
		records, rev, err := loadCollection[T](s, key)
		if err != nil {
			return err
		}
		updated, err := fn(records)
		if err != nil {
			return err
		}
		if updated == nil {
			updated = []T{}
		}
		err = s.put(key, updated, rev)
		if err == nil {
			return nil
		}
		if err != ErrRevisionMismatch {
			return err
		}
	}
	return core.NewStoreError(core.Conflict, "writing "+key,
		errors.Errorf("concurrent writer changed %q %d times in a row", key, maxWriteAttempts))
}
