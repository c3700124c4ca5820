package domain

import "path/filepath"

// StagedFile is one slot of the staged batch. An empty Path means no file has
// been chosen for the slot yet.
type StagedFile struct {
	Name string
	Path string
}

// Filled reports whether a file has been chosen for the slot.
func (f StagedFile) Filled() bool { return f.Path != "" }

// Batch is the ordered sequence of staged file slots. It always holds at least
// one slot.
type Batch struct {
	slots []StagedFile
}

// NewBatch returns a batch with a single empty slot.
func NewBatch() *Batch {
	return &Batch{slots: []StagedFile{{}}}
}

// Len returns the number of slots.
func (b *Batch) Len() int { return len(b.slots) }

// Slot returns the slot at position i.
func (b *Batch) Slot(i int) (StagedFile, error) {
	if i < 0 || i >= len(b.slots) {
		return StagedFile{}, ErrSlotRange
	}
	return b.slots[i], nil
}

// Slots returns a copy of every slot in order.
func (b *Batch) Slots() []StagedFile {
	out := make([]StagedFile, len(b.slots))
	copy(out, b.slots)
	return out
}

// Complete reports whether every slot holds a file.
func (b *Batch) Complete() bool {
	for _, s := range b.slots {
		if !s.Filled() {
			return false
		}
	}
	return len(b.slots) > 0
}

// Any reports whether at least one slot holds a file.
func (b *Batch) Any() bool {
	for _, s := range b.slots {
		if s.Filled() {
			return true
		}
	}
	return false
}

// Add appends an empty slot. It is only allowed once every existing slot is filled.
func (b *Batch) Add() error {
	if !b.Complete() {
		return ErrSlotPending
	}
	b.slots = append(b.slots, StagedFile{})
	return nil
}

// Remove deletes the slot at position i. The last remaining slot cannot be removed.
func (b *Batch) Remove(i int) error {
	if i < 0 || i >= len(b.slots) {
		return ErrSlotRange
	}
	if len(b.slots) == 1 {
		return ErrLastSlot
	}
	b.slots = append(b.slots[:i], b.slots[i+1:]...)
	return nil
}

// Select places the file at path into slot i, using its base name for display.
func (b *Batch) Select(i int, path string) error {
	if i < 0 || i >= len(b.slots) {
		return ErrSlotRange
	}
	if path == "" {
		return ErrNoFile
	}
	b.slots[i] = StagedFile{Name: filepath.Base(path), Path: path}
	return nil
}

// Reset returns the batch to a single empty slot.
func (b *Batch) Reset() {
	b.slots = []StagedFile{{}}
}
