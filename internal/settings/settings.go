// Package settings exposes the runtime-tunable pipeline knobs stored in the
// settings table as a typed snapshot read once per stage invocation.
package settings

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"orbix/internal/services"
	"orbix/internal/store"
)

// Setting keys.
const (
	KeyThreshold          = "threshold"
	KeyAutoApproveMinutes = "auto_approve_minutes"
	KeyDailyCap           = "daily_cap"
	KeyReviewMode         = "review_mode"
	KeyRumbleEnabled      = "rumble_enabled"
	KeyYouTubeVisibility  = "youtube_visibility"
)

// Visibilities accepted for youtube_visibility.
var Visibilities = []string{"public", "unlisted", "private"}

// Settings is an immutable snapshot of the pipeline knobs.
type Settings struct {
	Threshold          int
	AutoApproveMinutes int
	DailyCap           int
	ReviewMode         bool
	RumbleEnabled      bool
	YouTubeVisibility  string
}

// Defaults returns the values used when a key is absent.
func Defaults() Settings {
	return Settings{
		Threshold:          65,
		AutoApproveMinutes: 60,
		DailyCap:           10,
		ReviewMode:         false,
		RumbleEnabled:      false,
		YouTubeVisibility:  "public",
	}
}

// Reader is the store surface Load needs.
type Reader interface {
	GetSetting(ctx context.Context, key string) (*store.Setting, error)
}

// Writer is the store surface Set needs.
type Writer interface {
	SetSetting(ctx context.Context, key string, kind store.SettingKind, value string) error
}

// Definition describes one known key.
type Definition struct {
	Key     string
	Kind    store.SettingKind
	Default string
}

// Definitions lists every known key in display order.
func Definitions() []Definition {
	d := Defaults()
	return []Definition{
		{KeyThreshold, store.KindInt, strconv.Itoa(d.Threshold)},
		{KeyAutoApproveMinutes, store.KindInt, strconv.Itoa(d.AutoApproveMinutes)},
		{KeyDailyCap, store.KindInt, strconv.Itoa(d.DailyCap)},
		{KeyReviewMode, store.KindBool, strconv.FormatBool(d.ReviewMode)},
		{KeyRumbleEnabled, store.KindBool, strconv.FormatBool(d.RumbleEnabled)},
		{KeyYouTubeVisibility, store.KindString, d.YouTubeVisibility},
	}
}

// Lookup returns the definition of key.
func Lookup(key string) (Definition, bool) {
	for _, def := range Definitions() {
		if def.Key == key {
			return def, true
		}
	}
	return Definition{}, false
}

// Load reads every key fresh from r. Absent keys keep their defaults. Rows
// with the wrong kind or an unparsable value also keep the default and are
// reported in the returned warnings; only a store failure is an error.
func Load(ctx context.Context, r Reader) (Settings, []string, error) {
	out := Defaults()
	var warnings []string

	for _, def := range Definitions() {
		row, err := r.GetSetting(ctx, def.Key)
		if err != nil {
			return Defaults(), nil, services.Wrap(services.ErrTransient, "settings", "load", "read "+def.Key, err)
		}
		if row == nil {
			continue
		}
		if row.Kind != def.Kind {
			warnings = append(warnings, fmt.Sprintf("%s has kind %s, want %s; using default %s", def.Key, row.Kind, def.Kind, def.Default))
			continue
		}
		if err := apply(&out, def.Key, row.Value); err != nil {
			warnings = append(warnings, fmt.Sprintf("%s: %v; using default %s", def.Key, err, def.Default))
		}
	}
	return out, warnings, nil
}

func apply(s *Settings, key, raw string) error {
	value := strings.TrimSpace(raw)
	switch key {
	case KeyThreshold:
		n, err := parseInt(value, 0, 100)
		if err != nil {
			return err
		}
		s.Threshold = n
	case KeyAutoApproveMinutes:
		n, err := parseInt(value, 0, -1)
		if err != nil {
			return err
		}
		s.AutoApproveMinutes = n
	case KeyDailyCap:
		n, err := parseInt(value, 0, -1)
		if err != nil {
			return err
		}
		s.DailyCap = n
	case KeyReviewMode:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid bool %q", raw)
		}
		s.ReviewMode = b
	case KeyRumbleEnabled:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid bool %q", raw)
		}
		s.RumbleEnabled = b
	case KeyYouTubeVisibility:
		v := strings.ToLower(value)
		if !validVisibility(v) {
			return fmt.Errorf("invalid visibility %q (want %s)", raw, strings.Join(Visibilities, ", "))
		}
		s.YouTubeVisibility = v
	}
	return nil
}

func parseInt(value string, min, max int) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", value)
	}
	if n < min || (max >= min && n > max) {
		if max >= min {
			return 0, fmt.Errorf("%d outside [%d, %d]", n, min, max)
		}
		return 0, fmt.Errorf("%d below %d", n, min)
	}
	return n, nil
}

func validVisibility(v string) bool {
	for _, allowed := range Visibilities {
		if v == allowed {
			return true
		}
	}
	return false
}

// Set validates value against the key's definition and stores it.
func Set(ctx context.Context, w Writer, key, value string) error {
	def, ok := Lookup(key)
	if !ok {
		return services.Wrap(services.ErrValidation, "settings", "set", "unknown setting "+key, nil)
	}
	probe := Defaults()
	if err := apply(&probe, key, value); err != nil {
		return services.Wrap(services.ErrValidation, "settings", "set", key, err)
	}
	normalized := strings.TrimSpace(value)
	switch def.Kind {
	case store.KindBool:
		b, _ := strconv.ParseBool(normalized)
		normalized = strconv.FormatBool(b)
	case store.KindString:
		normalized = strings.ToLower(normalized)
	}
	return w.SetSetting(ctx, key, def.Kind, normalized)
}

// Seed writes the defaults for any key not yet present.
func Seed(ctx context.Context, rw interface {
	Reader
	Writer
}) error {
	for _, def := range Definitions() {
		row, err := rw.GetSetting(ctx, def.Key)
		if err != nil {
			return err
		}
		if row != nil {
			continue
		}
		if err := rw.SetSetting(ctx, def.Key, def.Kind, def.Default); err != nil {
			return err
		}
	}
	return nil
}
