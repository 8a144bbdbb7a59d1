package local

import "sync"

type memoryKV struct {
	sync.RWMutex
	table  map[string]Item
	closed bool
}

var _ KV = (*memoryKV)(nil) // interface compliance check

// NewMemoryKV returns a KV that lives for the lifetime of the process.
func NewMemoryKV() KV {
	return &memoryKV{table: make(map[string]Item)}
}

func (kv *memoryKV) Get(key string) (Item, bool, error) {
	kv.RLock()
	defer kv.RUnlock()
	if kv.closed {
		return Item{}, false, ErrClosed
	}
	item, ok := kv.table[key]
	return item, ok, nil
}

func (kv *memoryKV) Put(key, value string, expectRev int64) (int64, error) {
	kv.Lock()
	defer kv.Unlock()
	if kv.closed {
		return 0, ErrClosed
	}
	curr := kv.table[key]
	if expectRev != AnyRevision && curr.Revision != expectRev {
		return curr.Revision, ErrRevisionMismatch
	}
	item := Item{Value: value, Revision: curr.Revision + 1}
	kv.table[key] = item
	return item.Revision, nil
}

func (kv *memoryKV) Delete(key string) error {
	kv.Lock()
	defer kv.Unlock()
	if kv.closed {
		return ErrClosed
	}
	delete(kv.table, key)
	return nil
}

func (kv *memoryKV) Close() error {
	kv.Lock()
	defer kv.Unlock()
	kv.closed = true
	return nil
}
