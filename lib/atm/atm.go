//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

// Package atm provides a collection of thread-safe types.
package atm

import "sync/atomic"

// Bool provides an atomic boolean value.
type Bool uint32

// NewBool returns a Bool set to the provided starting value.
func NewBool(in bool) Bool {
	var b Bool
	if in {
		b.SetTrue()
	}
	return b
}

// SetTrue sets the Bool to true.
func (b *Bool) SetTrue() {
	atomic.StoreUint32((*uint32)(b), 1)
}

// SetTrueCond sets the Bool to true if it's false.
// Returns a bool indicating whether or not the value changed.
func (b *Bool) SetTrueCond() bool {
	return atomic.CompareAndSwapUint32((*uint32)(b), 0, 1)
}

// SetFalse sets the Bool to false.
func (b *Bool) SetFalse() {
	atomic.StoreUint32((*uint32)(b), 0)
}

// IsTrue returns true if the value is true.
func (b *Bool) IsTrue() bool {
	return b.Load()
}

// IsFalse returns true if the value is false.
func (b *Bool) IsFalse() bool {
	return !b.Load()
}

// Load returns a bool representing the value.
func (b *Bool) Load() bool {
	return atomic.LoadUint32((*uint32)(b)) != 0
}

// Uint64 provides an atomic counter.
type Uint64 uint64

// Add adds delta to the counter and returns the new value.
func (u *Uint64) Add(delta uint64) uint64 {
	return atomic.AddUint64((*uint64)(u), delta)
}

// Load returns the current value.
func (u *Uint64) Load() uint64 {
	return atomic.LoadUint64((*uint64)(u))
}
