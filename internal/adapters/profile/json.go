// Package profile stores user profiles in a checksummed JSON file.
package profile

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/lumia-zhu/aiplanner-sub000/internal/core"
	"github.com/lumia-zhu/aiplanner-sub000/internal/fsutil"
)

// JSONStore implements core.ProfileStore. The whole file is rewritten on
// every change; the previous version is kept at path+".bak".
type JSONStore struct {
	mu         sync.Mutex
	path       string
	backupPath string
	now        func() time.Time
	profiles   map[string]core.UserProfile
	loaded     bool
}

var _ core.ProfileStore = (*JSONStore)(nil)

type envelope struct {
	Version   int                         `json:"version"`
	Checksum  string                      `json:"checksum"`
	UpdatedAt time.Time                   `json:"updated_at"`
	Profiles  map[string]core.UserProfile `json:"profiles"`
}

// NewJSONStore creates a store backed by path. Nothing is read until first use.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{
		path:       path,
		backupPath: path + ".bak",
		now:        time.Now,
	}
}

// Path returns the profile file.
func (s *JSONStore) Path() string { return s.path }

// GetProfile implements core.ProfileStore.
func (s *JSONStore) GetProfile(_ context.Context, userID string) (*core.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return nil, err
	}
	p, ok := s.profiles[userID]
	if !ok {
		return nil, core.ErrNotFound("profile", userID)
	}
	return cloneProfile(p), nil
}

// UpsertProfile implements core.ProfileStore.
func (s *JSONStore) UpsertProfile(_ context.Context, profile *core.UserProfile) error {
	if profile == nil || profile.UserID == "" {
		return core.ErrValidation(core.CodeInvalidInput, "profile user id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return err
	}
	p := *cloneProfile(*profile)
	p.UpdatedAt = s.now()
	s.profiles[p.UserID] = p
	return s.save()
}

// AppendCustomTag implements core.ProfileStore. A missing profile is created.
func (s *JSONStore) AppendCustomTag(_ context.Context, userID, tag string) error {
	if userID == "" || tag == "" {
		return core.ErrValidation(core.CodeInvalidInput, "user id and tag are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return err
	}
	p := s.profiles[userID]
	if slices.Contains(p.CustomTags, tag) {
		return nil
	}
	p.UserID = userID
	p.CustomTags = append(slices.Clone(p.CustomTags), tag)
	p.UpdatedAt = s.now()
	s.profiles[userID] = p
	return s.save()
}

// load must be called with s.mu held.
func (s *JSONStore) load() error {
	if s.loaded {
		return nil
	}
	profiles, err := readFile(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		backup, backupErr := readFile(s.backupPath)
		if backupErr != nil {
			return fmt.Errorf("loading profiles: %w (backup also failed: %v)", err, backupErr)
		}
		profiles, err = backup, nil
	}
	if profiles == nil {
		profiles = make(map[string]core.UserProfile)
	}
	s.profiles = profiles
	s.loaded = true
	return nil
}

// save must be called with s.mu held.
func (s *JSONStore) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("creating profile directory: %w", err)
	}
	if current, err := os.ReadFile(s.path); err == nil {
		if err := atomicWriteFile(s.backupPath, current, 0o600); err != nil {
			return fmt.Errorf("writing profile backup: %w", err)
		}
	}

	sum, err := checksum(s.profiles)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(envelope{
		Version:   1,
		Checksum:  sum,
		UpdatedAt: s.now(),
		Profiles:  s.profiles,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling profiles: %w", err)
	}
	if err := atomicWriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("writing profile file: %w", err)
	}
	return nil
}

func readFile(path string) (map[string]core.UserProfile, error) {
	data, err := fsutil.ReadFileScoped(path)
	if err != nil {
		return nil, err
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshaling profile file: %w", err)
	}
	sum, err := checksum(env.Profiles)
	if err != nil {
		return nil, err
	}
	if sum != env.Checksum {
		return nil, core.ErrState("PROFILES_CORRUPTED", "checksum mismatch in "+path)
	}
	return env.Profiles, nil
}

func checksum(profiles map[string]core.UserProfile) (string, error) {
	raw, err := json.Marshal(profiles)
	if err != nil {
		return "", fmt.Errorf("marshaling profiles for checksum: %w", err)
	}
	hash := sha256.Sum256(raw)
	return hex.EncodeToString(hash[:]), nil
}

func cloneProfile(p core.UserProfile) *core.UserProfile {
	p.CustomTags = slices.Clone(p.CustomTags)
	if p.Preferences != nil {
		prefs := make(map[string]string, len(p.Preferences))
		for k, v := range p.Preferences {
			prefs[k] = v
		}
		p.Preferences = prefs
	}
	return &p
}
