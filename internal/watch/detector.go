package watch

import "sync"

// Detector tracks which release identifiers have been observed. The set only
// grows; Update is its single mutator.
type Detector struct {
	mu           sync.RWMutex
	seen         map[string]struct{}
	bootstrapped bool
}

func NewDetector() *Detector {
	return &Detector{seen: make(map[string]struct{})}
}

// Update absorbs ids into the seen set and returns those that were not seen
// before this call, in input order. The first call returns nothing.
func (d *Detector) Update(ids []string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.bootstrapped {
		for _, id := range ids {
			d.seen[id] = struct{}{}
		}
		d.bootstrapped = true
		return nil
	}

	var fresh []string
	for _, id := range ids {
		if _, ok := d.seen[id]; ok {
			continue
		}
		d.seen[id] = struct{}{}
		fresh = append(fresh, id)
	}
	return fresh
}

func (d *Detector) Bootstrapped() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.bootstrapped
}

func (d *Detector) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.seen)
}

func (d *Detector) Seen(id string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.seen[id]
	return ok
}
