package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Well-known keys. Unknown keys pass through Get/Set untouched, so callers
// may stash their own state without schema changes.
const (
	keySettings  = "settings"
	keyUsage     = "usageStats"
	keyHistory   = "transformHistory"
	keyFavorites = "favorites"
)

// Settings is the persisted default product input.
type Settings struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	Tone           string `json:"tone"`
	SaveCredential bool   `json:"save_credential"`
}

// LoadSettings returns the stored settings, zero-valued when none exist.
func (s *Store) LoadSettings(ctx context.Context) (Settings, error) {
	var out Settings
	err := s.getJSON(ctx, keySettings, &out)
	return out, err
}

// SaveSettings persists the settings.
func (s *Store) SaveSettings(ctx context.Context, set Settings) error {
	return s.setJSON(ctx, keySettings, set)
}

// Usage tracks cumulative transformation activity.
type Usage struct {
	Transformations int   `json:"transformations"`
	Elements        int   `json:"elements"`
	LastUsed        int64 `json:"last_used"`
}

// BumpUsage records one completed transformation touching n elements.
func (s *Store) BumpUsage(ctx context.Context, elements int) error {
	var u Usage
	if err := s.getJSON(ctx, keyUsage, &u); err != nil {
		return err
	}
	u.Transformations++
	u.Elements += elements
	u.LastUsed = time.Now().Unix()
	return s.setJSON(ctx, keyUsage, u)
}

// LoadUsage returns the cumulative counters.
func (s *Store) LoadUsage(ctx context.Context) (Usage, error) {
	var u Usage
	err := s.getJSON(ctx, keyUsage, &u)
	return u, err
}

// HistoryEntry is one completed transformation.
type HistoryEntry struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Title    string `json:"title"`
	Elements int    `json:"elements"`
	At       int64  `json:"at"`
}

// historyLimit bounds the stored history, newest first.
const historyLimit = 50

// AppendHistory prepends an entry, trimming to the history limit.
func (s *Store) AppendHistory(ctx context.Context, e HistoryEntry) error {
	var hist []HistoryEntry
	if err := s.getJSON(ctx, keyHistory, &hist); err != nil {
		return err
	}
	hist = append([]HistoryEntry{e}, hist...)
	if len(hist) > historyLimit {
		hist = hist[:historyLimit]
	}
	return s.setJSON(ctx, keyHistory, hist)
}

// History returns the stored history, newest first.
func (s *Store) History(ctx context.Context) ([]HistoryEntry, error) {
	var hist []HistoryEntry
	err := s.getJSON(ctx, keyHistory, &hist)
	return hist, err
}

// Favorite is a saved product preset.
type Favorite struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Tone        string `json:"tone"`
}

// AddFavorite appends a preset.
func (s *Store) AddFavorite(ctx context.Context, f Favorite) error {
	var favs []Favorite
	if err := s.getJSON(ctx, keyFavorites, &favs); err != nil {
		return err
	}
	favs = append(favs, f)
	return s.setJSON(ctx, keyFavorites, favs)
}

// Favorites returns all saved presets.
func (s *Store) Favorites(ctx context.Context) ([]Favorite, error) {
	var favs []Favorite
	err := s.getJSON(ctx, keyFavorites, &favs)
	return favs, err
}

// RemoveFavorite deletes the preset with the given id; unknown ids are a
// no-op.
func (s *Store) RemoveFavorite(ctx context.Context, id string) error {
	var favs []Favorite
	if err := s.getJSON(ctx, keyFavorites, &favs); err != nil {
		return err
	}
	out := favs[:0]
	for _, f := range favs {
		if f.ID != id {
			out = append(out, f)
		}
	}
	return s.setJSON(ctx, keyFavorites, out)
}

func (s *Store) getJSON(ctx context.Context, key string, v any) error {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("store: decode %s: %w", key, err)
	}
	return nil
}

func (s *Store) setJSON(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s: %w", key, err)
	}
	return s.Set(ctx, key, string(raw))
}
