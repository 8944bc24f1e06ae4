package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jonathan/audioscribe/internal/advisor"
	"github.com/jonathan/audioscribe/internal/checkpoint"
	"github.com/jonathan/audioscribe/internal/config"
	"github.com/jonathan/audioscribe/internal/polish"
	"github.com/jonathan/audioscribe/internal/stt"
	"github.com/jonathan/audioscribe/internal/types"
)

// fakeTranscriber replays scripted responses per chunk index. When a chunk's
// scripted responses run out, the last one repeats.
type fakeTranscriber struct {
	mu        sync.Mutex
	responses map[int][]string
	errs      map[int]error
	requests  []stt.Request
	calls     map[int]int
}

func newFakeTranscriber() *fakeTranscriber {
	return &fakeTranscriber{
		responses: make(map[int][]string),
		errs:      make(map[int]error),
		calls:     make(map[int]int),
	}
}

func (f *fakeTranscriber) Name() string { return "fake" }

func (f *fakeTranscriber) Transcribe(ctx context.Context, req stt.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if err := f.errs[req.ChunkIndex]; err != nil {
		return "", err
	}
	rs := f.responses[req.ChunkIndex]
	if len(rs) == 0 {
		return "", fmt.Errorf("no scripted response for chunk %d", req.ChunkIndex)
	}
	i := f.calls[req.ChunkIndex]
	f.calls[req.ChunkIndex]++
	if i >= len(rs) {
		i = len(rs) - 1
	}
	return rs[i], nil
}

func (f *fakeTranscriber) recorded() []stt.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]stt.Request, len(f.requests))
	copy(out, f.requests)
	return out
}

// fakeRefiner prefixes the raw text and records the context it was given.
type fakeRefiner struct {
	mu       sync.Mutex
	contexts []string
	raws     []string
	err      error
}

func (f *fakeRefiner) Refine(ctx context.Context, priorContext, rawText string, _ *polish.StyleConfig) (polish.Result, error) {
	if err := ctx.Err(); err != nil {
		return polish.Result{}, err
	}
	f.mu.Lock()
	f.contexts = append(f.contexts, priorContext)
	f.raws = append(f.raws, rawText)
	f.mu.Unlock()
	if f.err != nil {
		return polish.Result{}, f.err
	}
	return polish.Result{PolishedText: "polished " + rawText}, nil
}

// fakeAdvisor pops scripted decisions; when empty it retries at 0.6.
type fakeAdvisor struct {
	mu        sync.Mutex
	decisions []advisor.Decision
	requests  []advisor.Request
}

func (f *fakeAdvisor) Advise(_ context.Context, req advisor.Request) (advisor.Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if len(f.decisions) == 0 {
		return advisor.Decision{Action: advisor.ActionRetry, Temperature: 0.6}, nil
	}
	d := f.decisions[0]
	f.decisions = f.decisions[1:]
	return d, nil
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func testConfig(t *testing.T) config.Config {
	cfg := config.Defaults()
	cfg.OutputDir = t.TempDir()
	cfg.TranscribeWorkers = 2
	cfg.WatchdogInterval = 0 // watchdog exercised separately
	return cfg
}

// writeChunkFile puts a small fake audio file on disk for the runner to read.
func writeChunkFile(t *testing.T, dir string, index int) string {
	t.Helper()
	path := filepath.Join(dir, fmt.Sprintf("chunk_%03d.m4a", index))
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestRunner(t *testing.T, store *memStore, project *types.Project, tr stt.Transcriber, adv advisor.Advisor, ref polish.Refiner) *Runner {
	t.Helper()
	r, err := NewRunner(store, tr, ref, adv, testConfig(t), testLogger(), project, nil)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestRunCompletes(t *testing.T) {
	store := newMemStore()
	dir := t.TempDir()
	project := store.addProject(checkpoint.Chunked, types.ModeSolo)
	store.addChunk(project.ID, 0, writeChunkFile(t, dir, 0), false)
	store.addChunk(project.ID, 1, writeChunkFile(t, dir, 1), true) // silence
	store.addChunk(project.ID, 2, writeChunkFile(t, dir, 2), false)

	tr := newFakeTranscriber()
	tr.responses[0] = []string{"The quick brown fox jumps over the lazy dog."}
	tr.responses[2] = []string{"And the story continues with plenty more detail."}
	ref := &fakeRefiner{}

	r := newTestRunner(t, store, project, tr, &fakeAdvisor{}, ref)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	cp, _ := store.GetCheckpoint(context.Background(), project.ID)
	if cp != checkpoint.Complete {
		t.Errorf("checkpoint = %s, want COMPLETE", cp)
	}

	doc := store.finalDocument(project.ID)
	if doc == nil {
		t.Fatal("no final document")
	}
	want := "polished The quick brown fox jumps over the lazy dog.\n\npolished And the story continues with plenty more detail."
	if doc.Content != want {
		t.Errorf("merged content = %q, want %q", doc.Content, want)
	}
	if doc.ChunkCount != 2 || doc.SkippedCount != 1 {
		t.Errorf("counts = %d/%d, want 2 merged, 1 skipped", doc.ChunkCount, doc.SkippedCount)
	}

	// Transcript also written to disk.
	path := filepath.Join(r.cfg.OutputDir, project.ID.String(), "merged.md")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("merged file not written: %v", err)
	}
	if string(data) != want {
		t.Error("file content differs from stored document")
	}
}

func TestRetryAfterRepetition(t *testing.T) {
	store := newMemStore()
	dir := t.TempDir()
	project := store.addProject(checkpoint.Chunked, types.ModeSolo)
	chunk := store.addChunk(project.ID, 0, writeChunkFile(t, dir, 0), false)

	tr := newFakeTranscriber()
	tr.responses[0] = []string{
		strings.Repeat("ab", 40), // looping output, first half == second half
		"This is the corrected transcription of the audio.",
	}
	adv := &fakeAdvisor{decisions: []advisor.Decision{
		{Action: advisor.ActionRetry, Reasoning: "decoding loop", Temperature: 0.7},
	}}

	r := newTestRunner(t, store, project, tr, adv, &fakeRefiner{})
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	got, _ := store.GetChunk(context.Background(), chunk.ID)
	if got.Draft == nil {
		t.Fatal("no draft stored")
	}
	if got.Draft.ValidationStatus != types.ValidationVerified {
		t.Errorf("status = %s, want VERIFIED", got.Draft.ValidationStatus)
	}
	if got.Draft.RetryAttempt != 1 {
		t.Errorf("retry attempt = %d, want 1", got.Draft.RetryAttempt)
	}
	if got.Draft.RawText != "This is the corrected transcription of the audio." {
		t.Errorf("raw text = %q", got.Draft.RawText)
	}

	reqs := tr.recorded()
	if len(reqs) != 2 {
		t.Fatalf("transcriber called %d times, want 2", len(reqs))
	}
	if !reqs[1].Retry {
		t.Error("second request not marked as retry")
	}
	if reqs[1].Temperature != 0.7 {
		t.Errorf("retry temperature = %v, want advisor-suggested 0.7", reqs[1].Temperature)
	}

	cp, _ := store.GetCheckpoint(context.Background(), project.ID)
	if cp != checkpoint.Complete {
		t.Errorf("checkpoint = %s, want COMPLETE", cp)
	}
}

func TestExhaustedRetriesSkipChunk(t *testing.T) {
	store := newMemStore()
	dir := t.TempDir()
	project := store.addProject(checkpoint.Chunked, types.ModeSolo)
	store.addChunk(project.ID, 0, writeChunkFile(t, dir, 0), false)
	bad := store.addChunk(project.ID, 1, writeChunkFile(t, dir, 1), false)

	tr := newFakeTranscriber()
	tr.responses[0] = []string{"A perfectly reasonable sentence about the topic."}
	tr.responses[1] = []string{""} // empty response on every attempt

	r := newTestRunner(t, store, project, tr, &fakeAdvisor{}, &fakeRefiner{})
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	got, _ := store.GetChunk(context.Background(), bad.ID)
	if got.Draft == nil || got.Draft.ValidationStatus != types.ValidationFailed {
		t.Fatalf("bad chunk draft = %+v, want FAILED", got.Draft)
	}
	if got.Draft.FailureReason == "" {
		t.Error("expected a failure reason on the skipped chunk")
	}

	// The other chunk still made it into the transcript.
	doc := store.finalDocument(project.ID)
	if doc == nil {
		t.Fatal("no final document")
	}
	if !strings.Contains(doc.Content, "reasonable sentence") {
		t.Errorf("good chunk missing from transcript: %q", doc.Content)
	}
	if strings.Contains(doc.Content, "chunk 1") {
		t.Error("failed chunk leaked into transcript")
	}
	if doc.SkippedCount != 1 {
		t.Errorf("skipped = %d, want 1", doc.SkippedCount)
	}

	// A terminally skipped chunk does not stop the project: the run still
	// completes and the skip stays visible through status.
	cp, _ := store.GetCheckpoint(context.Background(), project.ID)
	if cp != checkpoint.Complete {
		t.Errorf("checkpoint = %s, want COMPLETE", cp)
	}
}

func TestAdvisorKeepResolvesSuspicious(t *testing.T) {
	store := newMemStore()
	dir := t.TempDir()
	project := store.addProject(checkpoint.Chunked, types.ModeSolo)
	chunk := store.addChunk(project.ID, 0, writeChunkFile(t, dir, 0), false)

	tr := newFakeTranscriber()
	tr.responses[0] = []string{strings.Repeat("la", 40)} // genuine chorus
	adv := &fakeAdvisor{decisions: []advisor.Decision{
		{Action: advisor.ActionKeep, Reasoning: "real repetition in audio"},
	}}

	r := newTestRunner(t, store, project, tr, adv, &fakeRefiner{})
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	got, _ := store.GetChunk(context.Background(), chunk.ID)
	if got.Draft.ValidationStatus != types.ValidationSuspiciousResolved {
		t.Errorf("status = %s, want SUSPICIOUS_RESOLVED", got.Draft.ValidationStatus)
	}
	// Resolved-suspicious text is flagged for human review after polish.
	if got.Draft.Polished == nil {
		t.Fatal("no polished segment")
	}
	if got.Draft.Polished.Status != types.ReviewNeedsReview {
		t.Errorf("review status = %s, want NEEDS_REVIEW", got.Draft.Polished.Status)
	}
}

func TestAdvisorSkipDiscardsChunk(t *testing.T) {
	store := newMemStore()
	dir := t.TempDir()
	project := store.addProject(checkpoint.Chunked, types.ModeSolo)
	chunk := store.addChunk(project.ID, 0, writeChunkFile(t, dir, 0), false)

	tr := newFakeTranscriber()
	tr.responses[0] = []string{strings.Repeat("zz", 40)}
	adv := &fakeAdvisor{decisions: []advisor.Decision{
		{Action: advisor.ActionSkip, Reasoning: "pure noise"},
	}}

	r := newTestRunner(t, store, project, tr, adv, &fakeRefiner{})
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	got, _ := store.GetChunk(context.Background(), chunk.ID)
	if got.Draft.RawText != "" || got.Draft.ValidationStatus != types.ValidationVerified {
		t.Errorf("draft = %q/%s, want empty VERIFIED", got.Draft.RawText, got.Draft.ValidationStatus)
	}

	doc := store.finalDocument(project.ID)
	if doc.Content != "" || doc.SkippedCount != 1 {
		t.Errorf("doc = %q skipped=%d, want empty with 1 skip", doc.Content, doc.SkippedCount)
	}
}

func TestTransportFailureHaltsStage(t *testing.T) {
	store := newMemStore()
	dir := t.TempDir()
	project := store.addProject(checkpoint.Chunked, types.ModeSolo)
	store.addChunk(project.ID, 0, writeChunkFile(t, dir, 0), false)

	tr := newFakeTranscriber()
	tr.errs[0] = errors.New("provider unreachable")

	r := newTestRunner(t, store, project, tr, &fakeAdvisor{}, &fakeRefiner{})
	err := r.Run(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("error = %v, want *TransportError", err)
	}

	// A transport failure parks the run for later resume rather than
	// burning quality retries or failing the project.
	cp, _ := store.GetCheckpoint(context.Background(), project.ID)
	if cp != checkpoint.TranscribedPartial {
		t.Errorf("checkpoint = %s, want TRANSCRIBED_PARTIAL", cp)
	}
}

func TestSilenceMarkerDiscarded(t *testing.T) {
	store := newMemStore()
	dir := t.TempDir()
	project := store.addProject(checkpoint.Chunked, types.ModeSolo)
	chunk := store.addChunk(project.ID, 0, writeChunkFile(t, dir, 0), false)

	tr := newFakeTranscriber()
	tr.responses[0] = []string{"[SILENCE]"}

	r := newTestRunner(t, store, project, tr, &fakeAdvisor{}, &fakeRefiner{})
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	got, _ := store.GetChunk(context.Background(), chunk.ID)
	if got.Draft.RawText != "" {
		t.Errorf("raw text = %q, want empty", got.Draft.RawText)
	}
	if got.Draft.ValidationStatus != types.ValidationVerified {
		t.Errorf("status = %s, want VERIFIED", got.Draft.ValidationStatus)
	}
}

func TestPauseBeforeRunPersistsPaused(t *testing.T) {
	store := newMemStore()
	project := store.addProject(checkpoint.Chunked, types.ModeSolo)

	r := newTestRunner(t, store, project, newFakeTranscriber(), &fakeAdvisor{}, &fakeRefiner{})
	r.Pause()
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	cp, _ := store.GetCheckpoint(context.Background(), project.ID)
	if cp != checkpoint.Paused {
		t.Errorf("checkpoint = %s, want PAUSED", cp)
	}
}

func TestRefinementFailureKeepsRawText(t *testing.T) {
	store := newMemStore()
	dir := t.TempDir()
	project := store.addProject(checkpoint.Chunked, types.ModeSolo)
	chunk := store.addChunk(project.ID, 0, writeChunkFile(t, dir, 0), false)

	tr := newFakeTranscriber()
	tr.responses[0] = []string{"Some raw text that will not get refined today."}
	ref := &fakeRefiner{err: errors.New("model refused")}

	r := newTestRunner(t, store, project, tr, &fakeAdvisor{}, ref)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	got, _ := store.GetChunk(context.Background(), chunk.ID)
	p := got.Draft.Polished
	if p == nil {
		t.Fatal("no polished segment")
	}
	if p.PolishedText != got.Draft.RawText {
		t.Errorf("polished = %q, want raw text fallback", p.PolishedText)
	}
	if p.Status != types.ReviewNeedsReview {
		t.Errorf("status = %s, want NEEDS_REVIEW", p.Status)
	}
	if len(p.Warnings) == 0 {
		t.Error("expected a warning on the fallback segment")
	}
}

func TestBuildContext(t *testing.T) {
	store := newMemStore()
	project := store.addProject(checkpoint.Validated, types.ModeSolo)
	r := newTestRunner(t, store, project, newFakeTranscriber(), &fakeAdvisor{}, &fakeRefiner{})
	r.cfg.ContextChunks = 2
	r.cfg.ContextMaxChars = 2000

	mk := func(index int, raw, polished string, silence bool) types.Chunk {
		c := types.Chunk{Index: index, IsSilence: silence}
		if raw != "" {
			c.Draft = &types.DraftSegment{RawText: raw}
			if polished != "" {
				c.Draft.Polished = &types.PolishedSegment{PolishedText: polished}
			}
		}
		return c
	}

	preceding := []types.Chunk{
		mk(0, "first raw", "first polished", false),
		mk(1, "", "", true), // silence, skipped
		mk(2, "second raw", "", false),
		mk(3, "third raw", "third polished", false),
	}

	got := r.buildContext(preceding)
	want := "second raw\n\nthird polished"
	if got != want {
		t.Errorf("context = %q, want %q", got, want)
	}

	// Character budget keeps the tail, closest to the current chunk.
	r.cfg.ContextMaxChars = 14
	got = r.buildContext(preceding)
	if got != "third polished" {
		t.Errorf("truncated context = %q, want %q", got, "third polished")
	}

	r.cfg.ContextChunks = 0
	if got := r.buildContext(preceding); got != "" {
		t.Errorf("context with zero budget = %q, want empty", got)
	}
}

func TestWatchdogSweepCancelsStalledChunk(t *testing.T) {
	store := newMemStore()
	dir := t.TempDir()
	project := store.addProject(checkpoint.Chunked, types.ModeSolo)
	chunk := store.addChunk(project.ID, 0, writeChunkFile(t, dir, 0), false)

	r := newTestRunner(t, store, project, newFakeTranscriber(), &fakeAdvisor{}, &fakeRefiner{})
	r.cfg.StallTimeout = 50 * time.Millisecond

	// Simulate an in-flight attempt whose heartbeat went stale.
	store.mu.Lock()
	store.chunks[chunk.ID].Phase = types.PhaseTranscribing
	store.chunks[chunk.ID].LastUpdated = time.Now().Add(-time.Second)
	store.mu.Unlock()

	cctx, cancel := context.WithCancel(context.Background())
	release := r.state.registerCancel(chunk.ID, cancel)
	defer release()

	r.sweep(context.Background())

	select {
	case <-cctx.Done():
	default:
		t.Error("stalled attempt was not cancelled")
	}
}

func TestWatchdogSweepLeavesFreshChunksAlone(t *testing.T) {
	store := newMemStore()
	dir := t.TempDir()
	project := store.addProject(checkpoint.Chunked, types.ModeSolo)
	chunk := store.addChunk(project.ID, 0, writeChunkFile(t, dir, 0), false)

	r := newTestRunner(t, store, project, newFakeTranscriber(), &fakeAdvisor{}, &fakeRefiner{})
	r.cfg.StallTimeout = time.Minute

	store.mu.Lock()
	store.chunks[chunk.ID].Phase = types.PhaseTranscribing
	store.chunks[chunk.ID].LastUpdated = time.Now()
	store.mu.Unlock()

	cctx, cancel := context.WithCancel(context.Background())
	release := r.state.registerCancel(chunk.ID, cancel)
	defer release()
	defer cancel()

	r.sweep(context.Background())

	select {
	case <-cctx.Done():
		t.Error("fresh attempt was cancelled")
	default:
	}
}

func TestRetryBudgetConsumedByStallsSkipsChunk(t *testing.T) {
	store := newMemStore()
	dir := t.TempDir()
	project := store.addProject(checkpoint.Chunked, types.ModeSolo)
	good := store.addChunk(project.ID, 0, writeChunkFile(t, dir, 0), false)
	bad := store.addChunk(project.ID, 1, writeChunkFile(t, dir, 1), false)

	// Every attempt went to stall cancellations, so no draft was ever stored.
	store.mu.Lock()
	store.chunks[bad.ID].RetryAttempt = 3
	store.mu.Unlock()

	tr := newFakeTranscriber()
	tr.responses[0] = []string{"The one chunk that still transcribes just fine."}

	r := newTestRunner(t, store, project, tr, &fakeAdvisor{}, &fakeRefiner{})
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	cp, _ := store.GetCheckpoint(context.Background(), project.ID)
	if cp != checkpoint.Complete {
		t.Errorf("checkpoint = %s, want COMPLETE", cp)
	}

	got, _ := store.GetChunk(context.Background(), bad.ID)
	if got.Draft == nil || got.Draft.ValidationStatus != types.ValidationFailed {
		t.Fatalf("draft = %+v, want FAILED placeholder", got.Draft)
	}
	if got.Draft.FailureReason == "" {
		t.Error("expected a failure reason on the skipped chunk")
	}

	// The sibling's work survived.
	doc := store.finalDocument(project.ID)
	if doc == nil || !strings.Contains(doc.Content, "still transcribes just fine") {
		t.Errorf("sibling chunk missing from transcript: %+v", doc)
	}
	if sibling, _ := store.GetChunk(context.Background(), good.ID); sibling.Draft.ValidationStatus != types.ValidationVerified {
		t.Errorf("sibling status = %s, want VERIFIED", sibling.Draft.ValidationStatus)
	}
}

// stallingTranscriber hangs the scripted chunk's first attempt until its
// context is cancelled, then answers normally on the relaunch.
type stallingTranscriber struct {
	mu         sync.Mutex
	stallIndex int
	calls      map[int]int
}

func (s *stallingTranscriber) Name() string { return "stalling" }

func (s *stallingTranscriber) Transcribe(ctx context.Context, req stt.Request) (string, error) {
	s.mu.Lock()
	s.calls[req.ChunkIndex]++
	first := s.calls[req.ChunkIndex] == 1
	s.mu.Unlock()
	if req.ChunkIndex == s.stallIndex && first {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return fmt.Sprintf("Chunk %d came back with a clean transcription.", req.ChunkIndex), nil
}

func TestWatchdogRestartsStalledChunk(t *testing.T) {
	store := newMemStore()
	dir := t.TempDir()
	project := store.addProject(checkpoint.Chunked, types.ModeSolo)
	good := store.addChunk(project.ID, 0, writeChunkFile(t, dir, 0), false)
	stalled := store.addChunk(project.ID, 1, writeChunkFile(t, dir, 1), false)

	tr := &stallingTranscriber{stallIndex: 1, calls: make(map[int]int)}
	r := newTestRunner(t, store, project, tr, &fakeAdvisor{}, &fakeRefiner{})
	r.cfg.WatchdogInterval = 10 * time.Millisecond
	r.cfg.StallTimeout = 30 * time.Millisecond

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	cp, _ := store.GetCheckpoint(context.Background(), project.ID)
	if cp != checkpoint.Complete {
		t.Errorf("checkpoint = %s, want COMPLETE", cp)
	}

	got, _ := store.GetChunk(context.Background(), stalled.ID)
	if got.RetryAttempt != 1 {
		t.Errorf("stalled chunk retry attempt = %d, want 1", got.RetryAttempt)
	}
	if got.Draft == nil || got.Draft.ValidationStatus != types.ValidationVerified {
		t.Fatalf("stalled chunk draft = %+v, want VERIFIED", got.Draft)
	}
	if got.Phase != types.PhaseIdle {
		t.Errorf("stalled chunk phase = %s, want idle", got.Phase)
	}

	// The sibling was untouched by the cancellation.
	sibling, _ := store.GetChunk(context.Background(), good.ID)
	if sibling.RetryAttempt != 0 {
		t.Errorf("sibling retry attempt = %d, want 0", sibling.RetryAttempt)
	}
	if sibling.Phase != types.PhaseIdle {
		t.Errorf("sibling phase = %s, want idle", sibling.Phase)
	}

	tr.mu.Lock()
	stallCalls := tr.calls[1]
	tr.mu.Unlock()
	if stallCalls != 2 {
		t.Errorf("stalled chunk transcribed %d times, want 2", stallCalls)
	}
}

func TestMimeTypeFor(t *testing.T) {
	tests := map[string]string{
		"a/chunk_000.m4a": "audio/mp4",
		"a/chunk_001.mp3": "audio/mpeg",
		"a/chunk_002.wav": "audio/wav",
		"a/chunk_003.xyz": "audio/mp4",
	}
	for path, want := range tests {
		if got := mimeTypeFor(path); got != want {
			t.Errorf("mimeTypeFor(%q) = %q, want %q", path, got, want)
		}
	}
}
