// File: internal/tracker/dedup.go
// ============================================
package tracker

// Dedup remembers signal IDs already alerted today. It is owned by the
// scheduler goroutine and is not safe for concurrent use.
type Dedup struct {
	seen map[string]struct{}
}

func NewDedup() *Dedup {
	return &Dedup{seen: make(map[string]struct{})}
}

// Claim records id and reports whether it was new
func (d *Dedup) Claim(id string) bool {
	if _, ok := d.seen[id]; ok {
		return false
	}
	d.seen[id] = struct{}{}
	return true
}

func (d *Dedup) Len() int {
	return len(d.seen)
}

func (d *Dedup) Reset() {
	d.seen = make(map[string]struct{})
}
