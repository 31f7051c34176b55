package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
)

type fakeDeleter struct {
	mu      sync.Mutex
	deleted []string
	fail    map[string]bool
}

func (d *fakeDeleter) Delete(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail[key] {
		return errors.New("access denied")
	}
	d.deleted = append(d.deleted, key)
	return nil
}

func TestDeleteObjects(t *testing.T) {
	var keys []string
	for i := 0; i < 20; i++ {
		keys = append(keys, fmt.Sprintf("evacsim/uploads/facility/%02d.png", i))
	}
	d := &fakeDeleter{fail: map[string]bool{keys[3]: true, keys[11]: true}}

	removed := deleteObjects(context.Background(), d, keys)
	if removed != 18 {
		t.Errorf("removed = %d, want 18", removed)
	}

	sort.Strings(d.deleted)
	if len(d.deleted) != 18 || d.deleted[0] != keys[0] {
		t.Errorf("unexpected deletes: %v", d.deleted)
	}
}

func TestDeleteObjects_Empty(t *testing.T) {
	if removed := deleteObjects(context.Background(), &fakeDeleter{}, nil); removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
}
