package render

import (
	"math/rand/v2"
	"path/filepath"

	"orbix/internal/store"
)

// Background pools and templates available to the composer.
var (
	StillBackgrounds = []string{
		"bg_still_1.jpg", "bg_still_2.jpg", "bg_still_3.jpg",
		"bg_still_4.jpg", "bg_still_5.jpg", "bg_still_6.jpg",
	}
	MotionBackgrounds = []string{
		"bg_motion_1.mp4", "bg_motion_2.mp4", "bg_motion_3.mp4",
		"bg_motion_4.mp4", "bg_motion_5.mp4", "bg_motion_6.mp4",
	}
	Templates = []string{"A", "B", "C"}
)

// Selection is the randomized look of one render.
type Selection struct {
	Template       string
	BackgroundType string
	BackgroundID   string
}

// Pick chooses STILL or MOTION with equal odds, then a background from that
// pool and a template, all uniformly.
func Pick(rng *rand.Rand) Selection {
	sel := Selection{BackgroundType: store.BackgroundMotion}
	pool := MotionBackgrounds
	if rng.Float64() < 0.5 {
		sel.BackgroundType = store.BackgroundStill
		pool = StillBackgrounds
	}
	sel.BackgroundID = pool[rng.IntN(len(pool))]
	sel.Template = Templates[rng.IntN(len(Templates))]
	return sel
}

// AssetPath locates the background under the assets directory:
// backgrounds/stills/<id> or backgrounds/motion/<id>.
func (s Selection) AssetPath(assetsDir string) string {
	sub := "motion"
	if s.BackgroundType == store.BackgroundStill {
		sub = "stills"
	}
	return filepath.Join(assetsDir, "backgrounds", sub, s.BackgroundID)
}
