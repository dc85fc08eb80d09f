package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/kalambet/trajectory/internal/storage"
)

// ProfileStore defines the storage operations the Manager needs.
// Implemented by storage.Store.
type ProfileStore interface {
	GetTargetProfile(userID string) (string, error)
	PutTargetProfile(userID, record string) error
	GetRoleProfile(userID string) (storage.RoleProfile, error)
	PutRoleProfile(p storage.RoleProfile) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type cacheEntry struct {
	profile  TargetProfile
	exists   bool
	cachedAt time.Time
}

// Manager is the profile store adapter: cached, validated access to target
// profiles keyed by user identity. Save always replaces the whole record.
type Manager struct {
	store ProfileStore
	clock Clock
	ttl   time.Duration

	mu     sync.RWMutex
	cached map[string]cacheEntry
}

// NewManager creates a Manager with a 60-second cache TTL.
func NewManager(store ProfileStore) *Manager {
	return NewManagerWithClock(store, realClock{}, 60*time.Second)
}

// NewManagerWithClock creates a Manager with a custom clock (for testing).
func NewManagerWithClock(store ProfileStore, clock Clock, ttl time.Duration) *Manager {
	return &Manager{
		store:  store,
		clock:  clock,
		ttl:    ttl,
		cached: make(map[string]cacheEntry),
	}
}

// Load returns the stored profile for userID, or Default() with exists=false
// when nothing has been saved yet. Served from cache within the TTL.
func (m *Manager) Load(userID string) (TargetProfile, bool, error) {
	m.mu.RLock()
	if e, ok := m.cached[userID]; ok && m.clock.Now().Before(e.cachedAt.Add(m.ttl)) {
		m.mu.RUnlock()
		return e.profile.Clone(), e.exists, nil
	}
	m.mu.RUnlock()

	return m.Reload(userID)
}

// Reload reads the authoritative record from storage, bypassing the cache,
// and refreshes the cache with it.
func (m *Manager) Reload(userID string) (TargetProfile, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, err := m.store.GetTargetProfile(userID)
	if errors.Is(err, storage.ErrNotFound) {
		p := Default()
		m.cached[userID] = cacheEntry{profile: p, exists: false, cachedAt: m.clock.Now()}
		return p.Clone(), false, nil
	}
	if err != nil {
		return TargetProfile{}, false, fmt.Errorf("loading profile for %q: %w", userID, err)
	}

	p, err := decodeRecord(raw)
	if err != nil {
		return TargetProfile{}, false, fmt.Errorf("decoding profile for %q: %w", userID, err)
	}
	m.cached[userID] = cacheEntry{profile: p, exists: true, cachedAt: m.clock.Now()}
	return p.Clone(), true, nil
}

// Save replaces the stored record for userID with p. It is not a patch:
// fields left zero in p are stored as zero.
func (m *Manager) Save(userID string, p TargetProfile) error {
	p = p.Clone()
	p.CurrentSkills = NormalizeSkills(p.CurrentSkills)
	p.TargetSkills = NormalizeSkills(p.TargetSkills)

	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshalling profile: %w", err)
	}
	if err := validateRecord(b); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.PutTargetProfile(userID, string(b)); err != nil {
		return fmt.Errorf("saving profile for %q: %w", userID, err)
	}

	delete(m.cached, userID)
	return nil
}

// CurrentRole returns the user's current-role profile. A missing record
// yields an empty role and DefaultExperience.
func (m *Manager) CurrentRole(userID string) (RoleInfo, error) {
	rp, err := m.store.GetRoleProfile(userID)
	if errors.Is(err, storage.ErrNotFound) {
		return RoleInfo{Experience: DefaultExperience}, nil
	}
	if err != nil {
		return RoleInfo{}, fmt.Errorf("loading current role for %q: %w", userID, err)
	}
	info := RoleInfo{Role: rp.CurrentRole, Experience: rp.Experience}
	if info.Experience == "" {
		info.Experience = DefaultExperience
	}
	return info, nil
}

// SetCurrentRole stores the user's current-role profile.
func (m *Manager) SetCurrentRole(userID string, info RoleInfo) error {
	err := m.store.PutRoleProfile(storage.RoleProfile{
		UserID:      userID,
		CurrentRole: strings.TrimSpace(info.Role),
		Experience:  strings.TrimSpace(info.Experience),
	})
	if err != nil {
		return fmt.Errorf("saving current role for %q: %w", userID, err)
	}
	return nil
}

// GetSummary returns a compact one-paragraph description of the user's
// target profile, for CLI and MCP output.
func (m *Manager) GetSummary(userID string) (string, error) {
	p, exists, err := m.Load(userID)
	if err != nil {
		return "", fmt.Errorf("getting profile for summary: %w", err)
	}
	if !exists {
		return "Career goals: not yet configured.", nil
	}
	return summarize(p), nil
}

// maxSummaryChars caps the summary length.
const maxSummaryChars = 2000

func summarize(p TargetProfile) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Target role: %s.", p.TargetRole))

	timeframe := p.Timeframe
	if p.CustomTimeframeMonths != nil && p.Timeframe == "Flexible" {
		timeframe = fmt.Sprintf("Flexible (%d months)", *p.CustomTimeframeMonths)
	}
	parts = append(parts, fmt.Sprintf("Learning: %s over %s.", p.LearningMode, timeframe))

	if len(p.CurrentSkills) > 0 {
		parts = append(parts, fmt.Sprintf("Current skills: %s.", strings.Join(p.CurrentSkills, ", ")))
	}
	if len(p.TargetSkills) > 0 {
		parts = append(parts, fmt.Sprintf("Target skills: %s.", strings.Join(p.TargetSkills, ", ")))
	}
	if p.ResumeFilename != nil {
		parts = append(parts, fmt.Sprintf("Resume: %s.", *p.ResumeFilename))
	}
	if p.HasAnalysis() {
		parts = append(parts, "Analysis available.")
	}
	if p.Motivation != "" {
		parts = append(parts, "Motivation: "+p.Motivation)
	}

	summary := strings.Join(parts, " ")
	if len(summary) > maxSummaryChars {
		// Ensure we don't split a multi-byte UTF-8 character.
		end := maxSummaryChars
		for end > 0 && !utf8.RuneStart(summary[end]) {
			end--
		}
		if idx := strings.LastIndex(summary[:end], " "); idx > 0 {
			summary = summary[:idx]
		} else {
			summary = summary[:end]
		}
	}
	return summary
}

// decodeRecord parses a stored record on top of the defaults. A record that
// fails schema validation is normalized and logged rather than rejected, so
// one bad write cannot lock the user out of their profile.
func decodeRecord(raw string) (TargetProfile, error) {
	p := Default()
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return TargetProfile{}, err
	}

	if err := validateRecord([]byte(raw)); err != nil {
		slog.Warn("stored profile failed validation, normalizing", "error", err)
	}

	p.CurrentSkills = NormalizeSkills(p.CurrentSkills)
	p.TargetSkills = NormalizeSkills(p.TargetSkills)
	if p.TargetRole == "" {
		p.TargetRole = Default().TargetRole
	}
	if p.LearningMode == "" {
		p.LearningMode = Default().LearningMode
	}
	if p.Timeframe == "" {
		p.Timeframe = Default().Timeframe
	}
	if m := p.CustomTimeframeMonths; m != nil && (*m < 1 || *m > 60) {
		p.CustomTimeframeMonths = nil
	}
	return p, nil
}
