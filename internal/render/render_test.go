package render_test

import (
	"context"
	"math/rand/v2"
	"os"
	"slices"
	"strings"
	"testing"
	"time"

	"orbix/internal/logging"
	"orbix/internal/notifications"
	"orbix/internal/objectstore"
	"orbix/internal/render"
	"orbix/internal/services"
	"orbix/internal/services/ffmpeg"
	"orbix/internal/settings"
	"orbix/internal/store"
	"orbix/internal/testsupport"
)

type recordingNotifier struct {
	events   []notifications.Event
	payloads []notifications.Payload
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.events = append(r.events, event)
	r.payloads = append(r.payloads, payload)
	return nil
}

type failingRenderer struct{}

func (failingRenderer) Render(context.Context, ffmpeg.Composition, string) (ffmpeg.Output, error) {
	return ffmpeg.Output{Log: "Error opening input"}, services.Wrap(services.ErrExternalTool, "render", "ffmpeg", "exit status 1", nil)
}

type recordingRenderer struct {
	comps []ffmpeg.Composition
}

func (r *recordingRenderer) Render(_ context.Context, comp ffmpeg.Composition, output string) (ffmpeg.Output, error) {
	r.comps = append(r.comps, comp)
	if err := os.WriteFile(output, []byte("fake-mp4"), 0o644); err != nil {
		return ffmpeg.Output{}, err
	}
	return ffmpeg.Output{Path: output, Log: "ok"}, nil
}

func seeded() *rand.Rand { return rand.New(rand.NewPCG(7, 11)) }

func TestPickCoversPoolsUniformly(t *testing.T) {
	rng := seeded()
	counts := map[string]int{}
	templates := map[string]int{}
	for range 6000 {
		sel := render.Pick(rng)
		counts[sel.BackgroundType]++
		templates[sel.Template]++
		pool := render.MotionBackgrounds
		if sel.BackgroundType == store.BackgroundStill {
			pool = render.StillBackgrounds
		}
		if !slices.Contains(pool, sel.BackgroundID) {
			t.Fatalf("background %q not in %s pool", sel.BackgroundID, sel.BackgroundType)
		}
	}
	for _, typ := range []string{store.BackgroundStill, store.BackgroundMotion} {
		if counts[typ] < 2700 || counts[typ] > 3300 {
			t.Fatalf("%s picked %d times out of 6000", typ, counts[typ])
		}
	}
	for _, tpl := range render.Templates {
		if templates[tpl] < 1800 || templates[tpl] > 2200 {
			t.Fatalf("template %s picked %d times out of 6000", tpl, templates[tpl])
		}
	}
}

func TestPickIsDeterministicForSeed(t *testing.T) {
	a, b := seeded(), seeded()
	for range 20 {
		if render.Pick(a) != render.Pick(b) {
			t.Fatal("same seed produced different selections")
		}
	}
}

func TestAssetPath(t *testing.T) {
	still := render.Selection{BackgroundType: store.BackgroundStill, BackgroundID: "bg_still_2.jpg"}
	if got := still.AssetPath("/assets"); got != "/assets/backgrounds/stills/bg_still_2.jpg" {
		t.Fatalf("unexpected still path %q", got)
	}
	motion := render.Selection{BackgroundType: store.BackgroundMotion, BackgroundID: "bg_motion_4.mp4"}
	if got := motion.AssetPath("/assets"); got != "/assets/backgrounds/motion/bg_motion_4.mp4" {
		t.Fatalf("unexpected motion path %q", got)
	}
}

func TestAdmissionWaitsForReviewApproval(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	story, _, review := testsupport.SeedApprovedStory(t, st, "Review gated", true)
	if review == nil {
		t.Fatal("expected review item in review mode")
	}

	admission := render.NewAdmission(st, logging.NewNop())
	result, err := admission.Run(ctx, settings.Defaults())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Succeeded != 0 {
		t.Fatalf("admitted before review approval: %+v", result)
	}

	if ok, err := st.ApproveReview(ctx, review.ID, time.Now()); err != nil || !ok {
		t.Fatalf("ApproveReview ok=%v err=%v", ok, err)
	}
	result, err = admission.Run(ctx, settings.Defaults())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Succeeded != 1 {
		t.Fatalf("expected one admission, got %+v", result)
	}

	again, err := admission.Run(ctx, settings.Defaults())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if again.Succeeded != 0 {
		t.Fatalf("second run admitted again: %+v", again)
	}
	pending, err := st.RendersByStatus(ctx, store.RenderPending)
	if err != nil {
		t.Fatalf("RendersByStatus: %v", err)
	}
	if len(pending) != 1 || pending[0].StoryID != story.ID {
		t.Fatalf("expected exactly one pending render for story, got %+v", pending)
	}
}

func TestAdmissionSkipsRejectedReview(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	_, _, review := testsupport.SeedApprovedStory(t, st, "Rejected", true)
	if ok, err := st.RejectReview(ctx, review.ID, time.Now()); err != nil || !ok {
		t.Fatalf("RejectReview ok=%v err=%v", ok, err)
	}
	result, err := render.NewAdmission(st, logging.NewNop()).Run(ctx, settings.Defaults())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Empty() {
		t.Fatalf("rejected review must not be admitted: %+v", result)
	}
}

func admitOne(t *testing.T, st *store.Store, title string) (*store.Story, *store.Render) {
	t.Helper()
	story, script, _ := testsupport.SeedApprovedStory(t, st, title, false)
	rnd, created, err := st.AdmitRender(context.Background(), story.ID, script.ID)
	if err != nil || !created {
		t.Fatalf("AdmitRender created=%v err=%v", created, err)
	}
	return story, rnd
}

func TestRenderStageCompletesWithFFmpeg(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	story, pending := admitOne(t, st, "Rendered story")

	client, err := ffmpeg.New(cfg.Render)
	if err != nil {
		t.Fatalf("ffmpeg.New: %v", err)
	}
	objects := objectstore.FromConfig(cfg)
	stg := render.New(cfg, st, client, objects, nil, logging.NewNop(), render.WithRand(seeded()))

	result, err := stg.Run(ctx, settings.Defaults())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Succeeded != 1 {
		t.Fatalf("expected one success, got %+v", result)
	}

	done, err := st.GetRender(ctx, pending.ID)
	if err != nil || done == nil {
		t.Fatalf("GetRender: %v", err)
	}
	if done.Status != store.RenderCompleted || done.CompletedAt == nil {
		t.Fatalf("render not completed: %+v", done)
	}
	wantURL := "https://cdn.test/renders/renders/" + pending.ID + ".mp4"
	if done.OutputURL != wantURL {
		t.Fatalf("output url %q want %q", done.OutputURL, wantURL)
	}
	if !slices.Contains(render.Templates, done.Template) || done.BackgroundID == "" {
		t.Fatalf("selection not recorded: %+v", done)
	}

	f, err := objects.OpenURL(done.OutputURL)
	if err != nil {
		t.Fatalf("OpenURL: %v", err)
	}
	f.Close()

	got, err := st.GetStory(ctx, story.ID)
	if err != nil {
		t.Fatalf("GetStory: %v", err)
	}
	if got.Status != store.StoryRendered {
		t.Fatalf("story status %s want RENDERED", got.Status)
	}
}

func TestRenderComposesScriptText(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	admitOne(t, st, "Composed")

	rec := &recordingRenderer{}
	stg := render.New(cfg, st, rec, objectstore.FromConfig(cfg), nil, logging.NewNop(), render.WithRand(seeded()))
	if _, err := stg.Run(context.Background(), settings.Defaults()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rec.comps) != 1 {
		t.Fatalf("expected one composition, got %d", len(rec.comps))
	}
	comp := rec.comps[0]
	if comp.Hook == "" || comp.CTALine == "" || comp.Category == "" {
		t.Fatalf("composition missing script fields: %+v", comp)
	}
	if !strings.HasPrefix(comp.BackgroundPath, cfg.Paths.AssetsDir) {
		t.Fatalf("background path %q outside assets dir", comp.BackgroundPath)
	}
}

func TestRenderFailureLeavesStoryUntouched(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	story, pending := admitOne(t, st, "Broken render")

	notifier := &recordingNotifier{}
	stg := render.New(cfg, st, failingRenderer{}, objectstore.FromConfig(cfg), notifier, logging.NewNop(), render.WithRand(seeded()))
	result, err := stg.Run(ctx, settings.Defaults())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Failed != 1 {
		t.Fatalf("expected one failure, got %+v", result)
	}

	failed, _ := st.GetRender(ctx, pending.ID)
	if failed.Status != store.RenderFailed {
		t.Fatalf("render status %s want FAILED", failed.Status)
	}
	if !strings.Contains(failed.FFmpegLog, "exit status 1") || !strings.Contains(failed.FFmpegLog, "Error opening input") {
		t.Fatalf("diagnostic log missing detail: %q", failed.FFmpegLog)
	}
	got, _ := st.GetStory(ctx, story.ID)
	if got.Status != store.StoryApproved {
		t.Fatalf("story status %s, want APPROVED", got.Status)
	}
	if len(notifier.events) != 1 || notifier.events[0] != notifications.EventRenderFailed {
		t.Fatalf("expected render failed notification, got %v", notifier.events)
	}
	if notifier.payloads[0]["render_id"] != pending.ID {
		t.Fatalf("notification payload %+v", notifier.payloads[0])
	}

	again, err := stg.Run(ctx, settings.Defaults())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if !again.Empty() {
		t.Fatalf("failed render must not be retried automatically: %+v", again)
	}
}

func TestRecoverResetsInterruptedRenders(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	_, pending := admitOne(t, st, "Interrupted")
	if ok, err := st.ClaimRender(ctx, pending.ID, "A", store.BackgroundStill, "bg_still_1.jpg"); err != nil || !ok {
		t.Fatalf("ClaimRender ok=%v err=%v", ok, err)
	}

	later := func() time.Time { return time.Now().Add(time.Minute) }
	stg := render.New(cfg, st, &recordingRenderer{}, objectstore.FromConfig(cfg), nil, logging.NewNop(), render.WithClock(later))
	n, err := stg.Recover(ctx)
	if err != nil {
		t.Fatalf("Recover: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one reset, got %d", n)
	}
	got, _ := st.GetRender(ctx, pending.ID)
	if got.Status != store.RenderPending {
		t.Fatalf("status %s want PENDING", got.Status)
	}
}

func TestRenderSkipsWhenUnconfigured(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	admitOne(t, st, "Waiting")

	stg := render.New(cfg, st, nil, nil, nil, logging.NewNop())
	result, err := stg.Run(context.Background(), settings.Defaults())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Empty() {
		t.Fatalf("expected no-op, got %+v", result)
	}
	if h := stg.HealthCheck(context.Background()); h.Ready {
		t.Fatalf("expected unhealthy, got %+v", h)
	}
}

func TestRenderPassesScriptDuration(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	story := testsupport.SeedStory(t, st, "Long take")
	script := testsupport.NewScript(story.ID)
	script.DurationTargetSeconds = 42
	if _, err := st.CreateScript(ctx, script, false); err != nil {
		t.Fatalf("CreateScript: %v", err)
	}
	if _, created, err := st.AdmitRender(ctx, story.ID, script.ID); err != nil || !created {
		t.Fatalf("AdmitRender created=%v err=%v", created, err)
	}

	rec := &recordingRenderer{}
	stg := render.New(cfg, st, rec, objectstore.FromConfig(cfg), nil, logging.NewNop(), render.WithRand(seeded()))
	if _, err := stg.Run(ctx, settings.Defaults()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(rec.comps) != 1 || rec.comps[0].DurationSeconds != 42 {
		t.Fatalf("expected a 42s composition, got %+v", rec.comps)
	}
}
