// Package pipeline orchestrates the chunk transcription pipeline: the
// checkpointed stage loop, the bounded transcription pool, the sequential
// refinement pass, the stall watchdog, and the final merge.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/audioscribe/internal/advisor"
	"github.com/jonathan/audioscribe/internal/checkpoint"
	"github.com/jonathan/audioscribe/internal/config"
	"github.com/jonathan/audioscribe/internal/db"
	"github.com/jonathan/audioscribe/internal/polish"
	"github.com/jonathan/audioscribe/internal/quality"
	"github.com/jonathan/audioscribe/internal/stt"
	"github.com/jonathan/audioscribe/internal/types"
)

// errPaused signals that a stage stopped cooperatively at a pause request.
var errPaused = errors.New("run paused")

// Runner executes one project's pipeline from its current checkpoint to
// completion. A Runner is single-use; the Manager creates one per Start.
type Runner struct {
	store       Store
	transcriber stt.Transcriber
	refiner     polish.Refiner
	advisor     advisor.Advisor
	cfg         config.Config
	log         *logrus.Entry
	project     *types.Project
	style       *polish.StyleConfig
	state       *runState
	onProgress  ProgressCallback
}

// NewRunner builds a runner for one project.
func NewRunner(store Store, transcriber stt.Transcriber, refiner polish.Refiner, adv advisor.Advisor, cfg config.Config, log *logrus.Entry, project *types.Project, onProgress ProgressCallback) (*Runner, error) {
	style, err := polish.ParseStyleConfig(project.StyleConfig)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", project.ID, err)
	}
	return &Runner{
		store:       store,
		transcriber: transcriber,
		refiner:     refiner,
		advisor:     adv,
		cfg:         cfg,
		log:         log.WithField("project", project.ID.String()),
		project:     project,
		style:       style,
		state:       newRunState(),
		onProgress:  onProgress,
	}, nil
}

// Pause requests a cooperative stop. In-flight chunk attempts finish; the
// run persists PAUSED at the next stage or chunk boundary.
func (r *Runner) Pause() {
	r.state.setPaused(true)
}

// Run drives the project forward one checkpoint at a time until COMPLETE,
// FAILED, a pause, or an error. The starting checkpoint must be resumable;
// the Manager rewinds mid-stage checkpoints before calling Run.
func (r *Runner) Run(ctx context.Context) error {
	wctx, stopWatchdog := context.WithCancel(ctx)
	defer stopWatchdog()
	go r.watchdog(wctx)

	cp := r.project.Checkpoint
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.state.isPaused() {
			return r.pause(ctx)
		}

		switch cp {
		case checkpoint.Chunked, checkpoint.TranscribedPartial:
			if err := checkpoint.Advance(ctx, r.store, r.project.ID, checkpoint.Transcribing); err != nil {
				return err
			}
			err := r.transcribeStage(ctx)
			switch {
			case errors.Is(err, errPaused):
				return r.pause(ctx)
			case isTransport(err):
				r.log.WithError(err).Warn("transcription halted by transport failure")
				if aerr := checkpoint.Advance(ctx, r.store, r.project.ID, checkpoint.TranscribedPartial); aerr != nil {
					return aerr
				}
				return err
			case err != nil:
				return r.fail(ctx, err)
			}
			if err := checkpoint.Advance(ctx, r.store, r.project.ID, checkpoint.Transcribed); err != nil {
				return err
			}
			cp = checkpoint.Transcribed

		case checkpoint.Transcribed:
			if err := r.validateStage(ctx); err != nil {
				return r.fail(ctx, err)
			}
			if err := checkpoint.Advance(ctx, r.store, r.project.ID, checkpoint.Validated); err != nil {
				return err
			}
			cp = checkpoint.Validated

		case checkpoint.Validated:
			if err := checkpoint.Advance(ctx, r.store, r.project.ID, checkpoint.Polishing); err != nil {
				return err
			}
			err := r.polishStage(ctx)
			if errors.Is(err, errPaused) {
				return r.pause(ctx)
			}
			if err != nil {
				return r.fail(ctx, err)
			}
			if err := checkpoint.Advance(ctx, r.store, r.project.ID, checkpoint.Polished); err != nil {
				return err
			}
			cp = checkpoint.Polished

		case checkpoint.Polished:
			if err := r.mergeStage(ctx); err != nil {
				return r.fail(ctx, err)
			}
			if err := checkpoint.Advance(ctx, r.store, r.project.ID, checkpoint.Merged); err != nil {
				return err
			}
			cp = checkpoint.Merged

		case checkpoint.Merged:
			return r.finalize(ctx)

		default:
			return &NotResumableError{ProjectID: r.project.ID, Checkpoint: cp}
		}
	}
}

// pause persists the PAUSED checkpoint once the stages have quiesced.
func (r *Runner) pause(ctx context.Context) error {
	if err := r.store.SetCheckpoint(ctx, r.project.ID, checkpoint.Paused); err != nil {
		return fmt.Errorf("failed to persist pause: %w", err)
	}
	r.emit("checkpoint", "run paused", -1)
	r.log.Info("run paused")
	return nil
}

// fail records a fatal stage error and moves the project to FAILED.
func (r *Runner) fail(ctx context.Context, cause error) error {
	r.log.WithError(cause).Error("run failed")
	if err := r.store.SetCheckpoint(ctx, r.project.ID, checkpoint.Failed); err != nil {
		r.log.WithError(err).Error("failed to persist FAILED checkpoint")
	}
	r.emit("checkpoint", "run failed: "+cause.Error(), -1)
	return cause
}

// finalize closes out the run at COMPLETE. Terminally skipped chunks are
// already excluded from the merge and stay visible through the status
// failed-chunk list; they do not keep the project from completing.
func (r *Runner) finalize(ctx context.Context) error {
	if err := checkpoint.Advance(ctx, r.store, r.project.ID, checkpoint.Complete); err != nil {
		return err
	}
	r.emit("checkpoint", "run complete", -1)
	r.log.Info("run complete")
	return nil
}

// transcribeStage transcribes every pending chunk with a bounded worker
// pool. Quality failures are handled per chunk; a transport failure cancels
// the remaining workers and halts the stage.
func (r *Runner) transcribeStage(ctx context.Context) error {
	chunks, err := r.store.ListChunks(ctx, r.project.ID)
	if err != nil {
		return err
	}
	total := len(chunks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.TranscribeWorkers)

	paused := false
	for _, chunk := range chunks {
		if r.state.isPaused() {
			paused = true
			break
		}
		if chunk.IsSilence || !needsTranscription(chunk) {
			continue
		}
		chunk := chunk
		g.Go(func() error {
			return r.transcribeChunk(gctx, chunk, total)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if paused || r.state.isPaused() {
		return errPaused
	}
	return nil
}

// needsTranscription reports whether a chunk still requires a transcription
// attempt. Verified, resolved, and terminally failed chunks are left alone
// on resume.
func needsTranscription(chunk types.Chunk) bool {
	if chunk.Draft == nil {
		return true
	}
	return chunk.Draft.ValidationStatus == types.ValidationPending
}

// transcribeChunk runs the retry and validation loop for one chunk. A
// quality exhaustion marks the chunk FAILED and returns nil; only transport
// failures and cancellation propagate as errors.
func (r *Runner) transcribeChunk(ctx context.Context, chunk types.Chunk, total int) error {
	log := r.log.WithField("chunk", chunk.Index)

	audio, err := os.ReadFile(chunk.FilePath)
	if err != nil {
		return &TransportError{ChunkIndex: chunk.Index, Err: fmt.Errorf("failed to read chunk audio: %w", err)}
	}

	if err := r.store.SetChunkPhase(ctx, chunk.ID, types.PhaseTranscribing); err != nil {
		return err
	}
	defer func() {
		_ = r.store.SetChunkPhase(context.WithoutCancel(ctx), chunk.ID, types.PhaseIdle)
	}()

	attempt := chunk.RetryAttempt
	var temperature float32
	var lastReason string

	for attempt < r.cfg.MaxAttempts {
		cctx, cancel := context.WithCancel(ctx)
		release := r.state.registerCancel(chunk.ID, cancel)

		text, err := r.transcriber.Transcribe(cctx, stt.Request{
			Audio:       audio,
			MIMEType:    mimeTypeFor(chunk.FilePath),
			ChunkIndex:  chunk.Index,
			TotalChunks: total,
			Retry:       attempt > 0,
			Temperature: temperature,
		})
		release()
		stalled := cctx.Err() != nil && ctx.Err() == nil
		cancel()

		if err != nil {
			if stalled {
				// The watchdog killed a stalled attempt; count it and go again.
				attempt++
				lastReason = "attempt stalled and was cancelled"
				_ = r.store.SetChunkRetry(ctx, chunk.ID, attempt)
				log.WithField("attempt", attempt).Warn("stalled attempt cancelled, retrying")
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &TransportError{ChunkIndex: chunk.Index, Err: err}
		}

		_ = r.store.TouchChunk(ctx, chunk.ID)
		text = quality.CleanText(text)
		if strings.EqualFold(text, "[SILENCE]") {
			// Provider-reported silence: accept with no text, like a discard.
			if _, err := r.store.UpsertDraft(ctx, chunk.ID, "", types.ValidationVerified, attempt); err != nil {
				return err
			}
			r.emit("transcribe", "silence reported by provider", chunk.Index)
			return nil
		}

		verdict := quality.Verify(text)
		switch verdict.Action {
		case quality.ActionKeep:
			if _, err := r.store.UpsertDraft(ctx, chunk.ID, text, types.ValidationVerified, attempt); err != nil {
				return err
			}
			r.emit("transcribe", "chunk transcribed", chunk.Index)
			return nil

		case quality.ActionDiscard:
			// Too short to be speech. Accept the chunk with no text so the
			// merge skips it without burning retries.
			if _, err := r.store.UpsertDraft(ctx, chunk.ID, "", types.ValidationVerified, attempt); err != nil {
				return err
			}
			r.emit("transcribe", "chunk discarded: "+verdict.Reason, chunk.Index)
			return nil

		case quality.ActionEscalate:
			decision, derr := r.advisor.Advise(ctx, advisor.Request{
				Text:         text,
				Reason:       verdict.Reason,
				ChunkIndex:   chunk.Index,
				RetryAttempt: attempt,
				MaxAttempts:  r.cfg.MaxAttempts,
			})
			if derr != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				decision = advisor.Decision{Action: advisor.ActionRetry, Reasoning: derr.Error()}
			}
			log.WithFields(logrus.Fields{
				"action": decision.Action,
				"reason": verdict.Reason,
			}).Info("quality gate escalated")

			switch decision.Action {
			case advisor.ActionKeep:
				if _, err := r.store.UpsertDraft(ctx, chunk.ID, text, types.ValidationSuspiciousResolved, attempt); err != nil {
					return err
				}
				r.emit("transcribe", "suspicious chunk accepted", chunk.Index)
				return nil

			case advisor.ActionSkip:
				if _, err := r.store.UpsertDraft(ctx, chunk.ID, "", types.ValidationVerified, attempt); err != nil {
					return err
				}
				r.emit("transcribe", "suspicious chunk skipped", chunk.Index)
				return nil

			default: // retry
				attempt++
				temperature = decision.Temperature
				lastReason = verdict.Reason
				if _, err := r.store.UpsertDraft(ctx, chunk.ID, text, types.ValidationPending, attempt); err != nil {
					return err
				}
				_ = r.store.SetChunkRetry(ctx, chunk.ID, attempt)
			}
		}
	}

	// Retries exhausted: terminally skip the chunk and keep the run going.
	// FailDraft also covers a chunk whose whole budget went to stalled
	// attempts and so never stored a draft.
	reason := "transcription retries exhausted"
	if lastReason != "" {
		reason += ": " + lastReason
	}
	if err := r.store.FailDraft(ctx, chunk.ID, reason, attempt); err != nil {
		return err
	}
	log.Warn("transcription retries exhausted, chunk skipped")
	r.emit("transcribe", "retries exhausted, chunk skipped", chunk.Index)
	return nil
}

// validateStage settles any drafts still PENDING, which only happens when a
// run was interrupted between storing a retry draft and finishing it.
func (r *Runner) validateStage(ctx context.Context) error {
	chunks, err := r.store.ListChunks(ctx, r.project.ID)
	if err != nil {
		return err
	}
	for _, chunk := range chunks {
		if chunk.Draft == nil || chunk.Draft.ValidationStatus != types.ValidationPending {
			continue
		}
		verdict := quality.Verify(chunk.Draft.RawText)
		if !verdict.OK {
			// Cannot re-run the advisor meaningfully without re-transcribing;
			// the leftover draft is terminally skipped.
			if err := r.store.FailDraft(ctx, chunk.ID, verdict.Reason, chunk.Draft.RetryAttempt); err != nil {
				return err
			}
			continue
		}
		if err := r.store.SetDraftStatus(ctx, chunk.ID, types.ValidationVerified); err != nil {
			return err
		}
	}
	return nil
}

// polishStage refines drafts sequentially in chunk order so each call can
// carry the preceding chunks' text as context.
func (r *Runner) polishStage(ctx context.Context) error {
	chunks, err := r.store.ListChunks(ctx, r.project.ID)
	if err != nil {
		return err
	}

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.state.isPaused() {
			return errPaused
		}
		if !needsPolish(chunk) {
			continue
		}
		if err := r.polishChunk(ctx, chunk, chunks[:i]); err != nil {
			return err
		}
	}
	return nil
}

// needsPolish reports whether a chunk has a refinable draft without a
// polished segment. Already-polished chunks are skipped on resume.
func needsPolish(chunk types.Chunk) bool {
	if chunk.IsSilence || chunk.Draft == nil {
		return false
	}
	d := chunk.Draft
	if d.RawText == "" || d.ValidationStatus == types.ValidationFailed {
		return false
	}
	return d.Polished == nil
}

func (r *Runner) polishChunk(ctx context.Context, chunk types.Chunk, preceding []types.Chunk) error {
	d := chunk.Draft

	if err := r.store.SetChunkPhase(ctx, chunk.ID, types.PhasePolishing); err != nil {
		return err
	}
	defer func() {
		_ = r.store.SetChunkPhase(context.WithoutCancel(ctx), chunk.ID, types.PhaseIdle)
	}()

	cctx, cancel := context.WithCancel(ctx)
	release := r.state.registerCancel(chunk.ID, cancel)
	result, err := r.refiner.Refine(cctx, r.buildContext(preceding), d.RawText, r.style)
	release()
	cancel()

	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Refinement is best-effort: a failed call keeps the raw text and
		// flags the segment for review instead of stalling the run.
		r.log.WithField("chunk", chunk.Index).WithError(err).Warn("refinement failed, keeping raw text")
		result = polish.Result{
			PolishedText: d.RawText,
			Warnings:     []string{"refinement failed: " + err.Error()},
		}
	}

	status := types.ReviewApproved
	if result.HasRepetition || len(result.Warnings) > 0 || d.ValidationStatus == types.ValidationSuspiciousResolved {
		status = types.ReviewNeedsReview
	}

	if _, err := r.store.UpsertPolished(ctx, d.ID, &db.PolishedInput{
		Text:          result.PolishedText,
		HasRepetition: result.HasRepetition,
		Warnings:      result.Warnings,
		Status:        status,
	}); err != nil {
		return err
	}
	r.emit("polish", "chunk polished", chunk.Index)
	return nil
}

// buildContext collects the closest preceding non-silence chunks' text,
// polished where available, capped at the configured character budget.
func (r *Runner) buildContext(preceding []types.Chunk) string {
	if r.cfg.ContextChunks <= 0 {
		return ""
	}

	var parts []string
	for i := len(preceding) - 1; i >= 0 && len(parts) < r.cfg.ContextChunks; i-- {
		chunk := preceding[i]
		if chunk.IsSilence || chunk.Draft == nil {
			continue
		}
		text := chunk.Draft.RawText
		if chunk.Draft.Polished != nil {
			text = chunk.Draft.Polished.PolishedText
		}
		if text == "" {
			continue
		}
		parts = append(parts, text)
	}

	// Restore chronological order.
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}

	joined := strings.Join(parts, "\n\n")
	if r.cfg.ContextMaxChars > 0 && utf8.RuneCountInString(joined) > r.cfg.ContextMaxChars {
		runes := []rune(joined)
		joined = string(runes[len(runes)-r.cfg.ContextMaxChars:])
	}
	return joined
}

// mergeStage joins the surviving segments into the final transcript, stores
// it, and writes it under the output directory.
func (r *Runner) mergeStage(ctx context.Context) error {
	chunks, err := r.store.ListChunks(ctx, r.project.ID)
	if err != nil {
		return err
	}

	var parts []string
	skipped := 0
	for _, chunk := range chunks {
		text, ok := mergeText(chunk)
		if !ok {
			skipped++
			continue
		}
		parts = append(parts, text)
	}

	content := strings.Join(parts, "\n\n")
	if _, err := r.store.SaveFinalDocument(ctx, r.project.ID, content, len(parts), skipped); err != nil {
		return err
	}

	dir := filepath.Join(r.cfg.OutputDir, r.project.ID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, "merged.md")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write merged transcript: %w", err)
	}

	r.log.WithFields(logrus.Fields{
		"segments": len(parts),
		"skipped":  skipped,
		"path":     path,
	}).Info("transcript merged")
	r.emit("merge", fmt.Sprintf("merged %d segments (%d skipped)", len(parts), skipped), -1)
	return nil
}

// mergeText returns the text a chunk contributes to the transcript, or
// false when the chunk is excluded: silence, discards, and failed chunks.
func mergeText(chunk types.Chunk) (string, bool) {
	if chunk.IsSilence || chunk.Draft == nil {
		return "", false
	}
	d := chunk.Draft
	if d.RawText == "" || d.ValidationStatus == types.ValidationFailed {
		return "", false
	}
	if d.Polished != nil && d.Polished.PolishedText != "" {
		return d.Polished.PolishedText, true
	}
	return d.RawText, true
}

func (r *Runner) emit(stage, message string, chunkIndex int) {
	if r.onProgress == nil {
		return
	}
	r.onProgress(ProgressEvent{
		ProjectID:  r.project.ID,
		Stage:      stage,
		Message:    message,
		ChunkIndex: chunkIndex,
	})
}

func isTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// mimeTypeFor maps a chunk file extension to the MIME type the provider
// expects. Unknown extensions fall back to audio/mp4, the splitter default.
func mimeTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".ogg":
		return "audio/ogg"
	case ".flac":
		return "audio/flac"
	case ".aac":
		return "audio/aac"
	default:
		return "audio/mp4"
	}
}
