package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()

	_, ok := store.Current()
	assert.False(t, ok, "new store must be empty")

	sess := Session{ID: "s1", UserID: "u1", Username: "anna", Role: "teacher", DisplayName: "Anna", LoginTime: time.Now().UTC()}
	store.Save(sess)

	got, ok := store.Current()
	require.True(t, ok)
	assert.Equal(t, sess, got)
	assert.Equal(t, "u1", got.Identifier())

	// returned value is a copy
	got.Username = "changed"
	again, _ := store.Current()
	assert.Equal(t, "anna", again.Username)

	store.Clear()
	_, ok = store.Current()
	assert.False(t, ok)
}

func TestMemoryStore_concurrent(t *testing.T) {
	store := NewMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			store.Save(Session{ID: "s", UserID: "u"})
		}()
		go func() {
			defer wg.Done()
			store.Current()
		}()
	}
	wg.Wait()
	got, ok := store.Current()
	require.True(t, ok)
	assert.Equal(t, "u", got.UserID)
	assert.False(t, got.IsZero())
}
