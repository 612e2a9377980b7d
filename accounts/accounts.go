// Package accounts persists the configured account list: a JSON array edited
// by the operator and rewritten by the process whenever a login produces a
// fresh wxid. All writes are atomic replaces and the whole read-modify-write
// runs under one lock, so concurrent logins from several account tasks never
// lose each other's updates.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/quailyquaily/lwherd/internal/fsstore"
	"github.com/quailyquaily/lwherd/lwapi"
)

// ErrCreatedPlaceholder reports that the accounts file did not exist and a
// placeholder was written for the operator to edit.
var ErrCreatedPlaceholder = errors.New("accounts: created placeholder file")

type Account struct {
	DeviceID string           `json:"device_id"`
	Wxid     string           `json:"wxid"`
	Remark   string           `json:"remark"`
	Proxy    *lwapi.ProxyInfo `json:"proxy"`
}

// Label is the identity prefix used in log lines: the remark when present,
// otherwise a device-id stub.
func (a Account) Label() string {
	if r := strings.TrimSpace(a.Remark); r != "" {
		return r
	}
	if len(a.DeviceID) > 8 {
		return a.DeviceID[:8]
	}
	return a.DeviceID
}

type Store struct {
	path string
	mu   sync.Mutex
}

func NewStore(path string) *Store {
	return &Store{path: strings.TrimSpace(path)}
}

func (s *Store) Path() string { return s.path }

func (s *Store) lockPath() string { return s.path + ".lck" }

// Load reads the account list. When the file is missing it writes a single
// placeholder record and returns ErrCreatedPlaceholder so the CLI can tell
// the operator to fill it in and rerun.
func (s *Store) Load(ctx context.Context) ([]Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var list []Account
	err := fsstore.WithLock(ctx, s.lockPath(), func() error {
		ok, err := fsstore.ReadJSON(s.path, &list)
		if err != nil {
			return err
		}
		if !ok {
			placeholder := []Account{{
				DeviceID: NewDeviceID(),
				Wxid:     "",
				Remark:   "main",
				Proxy:    nil,
			}}
			if err := fsstore.WriteJSONAtomic(s.path, placeholder, fsstore.FileOptions{}); err != nil {
				return err
			}
			return ErrCreatedPlaceholder
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i, acc := range list {
		if strings.TrimSpace(acc.DeviceID) == "" {
			return nil, fmt.Errorf("accounts: record %d in %s has no device_id", i, s.path)
		}
	}
	return list, nil
}

// Save atomically rewrites the whole account list.
func (s *Store) Save(ctx context.Context, list []Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fsstore.WithLock(ctx, s.lockPath(), func() error {
		return fsstore.WriteJSONAtomic(s.path, list, fsstore.FileOptions{})
	})
}

// SaveWxid records a fresh wxid for the account identified by deviceID. The
// list is reloaded under the lock so updates from sibling accounts that
// landed since our Load are preserved.
func (s *Store) SaveWxid(ctx context.Context, deviceID, wxid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fsstore.WithLock(ctx, s.lockPath(), func() error {
		var list []Account
		ok, err := fsstore.ReadJSON(s.path, &list)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("accounts: %s vanished while updating wxid", s.path)
		}
		found := false
		for i := range list {
			if list[i].DeviceID == deviceID {
				list[i].Wxid = wxid
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("accounts: no record with device_id %q in %s", deviceID, s.path)
		}
		return fsstore.WriteJSONAtomic(s.path, list, fsstore.FileOptions{})
	})
}

// NewDeviceID generates a device identifier in the service's expected shape:
// 32 lowercase hex characters.
func NewDeviceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
