//
// (C) Copyright 2025-2026 Hewlett Packard Enterprise Development LP
//
// SPDX-License-Identifier: BSD-2-Clause-Patent
//

package faultinject

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Claimer grants exclusive use of a device to one injection sequence.
type Claimer interface {
	// Claim returns a release function, or a fault if the device is busy.
	Claim(host, devUUID string) (func(), error)
}

func claimKey(host, devUUID string) string {
	return host + "/" + strings.ToLower(devUUID)
}

// ClaimSet is an in-process Claimer.
type ClaimSet struct {
	sync.Mutex
	claimed map[string]struct{}
}

// NewClaimSet returns an empty ClaimSet.
func NewClaimSet() *ClaimSet {
	return &ClaimSet{claimed: make(map[string]struct{})}
}

// Claim implements Claimer.
func (cs *ClaimSet) Claim(host, devUUID string) (func(), error) {
	cs.Lock()
	defer cs.Unlock()

	key := claimKey(host, devUUID)
	if _, busy := cs.claimed[key]; busy {
		return nil, FaultDeviceBusy(host, devUUID)
	}
	cs.claimed[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			cs.Lock()
			delete(cs.claimed, key)
			cs.Unlock()
		})
	}, nil
}

// Len returns the number of devices currently claimed.
func (cs *ClaimSet) Len() int {
	cs.Lock()
	defer cs.Unlock()
	return len(cs.claimed)
}

// FileClaimer extends a ClaimSet with an advisory flock per device in a
// shared directory so that separate harness processes exclude each other.
type FileClaimer struct {
	*ClaimSet
	dir string
}

// NewFileClaimer returns a FileClaimer keeping lock files in dir.
func NewFileClaimer(dir string) (*FileClaimer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating claim directory %s", dir)
	}
	return &FileClaimer{ClaimSet: NewClaimSet(), dir: dir}, nil
}

// LockPath returns the lock file used for a device.
func (fc *FileClaimer) LockPath(host, devUUID string) string {
	name := strings.NewReplacer("/", "_", ":", "_").Replace(host + "_" + strings.ToLower(devUUID))
	return filepath.Join(fc.dir, name+".lock")
}

// Claim implements Claimer.
func (fc *FileClaimer) Claim(host, devUUID string) (func(), error) {
	release, err := fc.ClaimSet.Claim(host, devUUID)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(fc.LockPath(host, devUUID), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		release()
		return nil, errors.Wrap(err, "opening device lock")
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		release()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, FaultDeviceBusy(host, devUUID)
		}
		return nil, errors.Wrap(err, "locking device")
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
			f.Close()
			release()
		})
	}, nil
}
