// Package journal records undo actions so that a failed pool operation can be
// rolled back to the state it started from.
package journal

// Journal is an ordered list of undo actions. Revert runs them newest first.
type Journal struct {
	entries []func()
}

func New() *Journal {
	return &Journal{}
}

// Append records undo, the action restoring the state about to be changed.
// A nil journal records nothing.
func (j *Journal) Append(undo func()) {
	if j == nil {
		return
	}
	j.entries = append(j.entries, undo)
}

// Len returns the number of recorded entries, used as a revision id.
func (j *Journal) Len() int {
	if j == nil {
		return 0
	}
	return len(j.entries)
}

// Revert undoes every entry recorded after revision and drops them.
func (j *Journal) Revert(revision int) {
	if j == nil {
		return
	}
	for i := len(j.entries) - 1; i >= revision; i-- {
		j.entries[i]()
		j.entries[i] = nil
	}
	j.entries = j.entries[:revision]
}

// Reset drops all entries without running them.
func (j *Journal) Reset() {
	if j == nil {
		return
	}
	for i := range j.entries {
		j.entries[i] = nil
	}
	j.entries = j.entries[:0]
}
