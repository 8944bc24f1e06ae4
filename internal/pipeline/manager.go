package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jonathan/audioscribe/internal/advisor"
	"github.com/jonathan/audioscribe/internal/checkpoint"
	"github.com/jonathan/audioscribe/internal/config"
	"github.com/jonathan/audioscribe/internal/polish"
	"github.com/jonathan/audioscribe/internal/stt"
	"github.com/jonathan/audioscribe/internal/types"
)

// Manager tracks active runs and exposes the project control operations:
// start, pause, resume, abort, status, chunk retry, and crash recovery.
type Manager struct {
	store       Store
	transcriber stt.Transcriber
	refiner     polish.Refiner
	advisor     advisor.Advisor
	cfg         config.Config
	log         *logrus.Entry
	onProgress  ProgressCallback

	mu     sync.Mutex
	active map[uuid.UUID]*activeRun
}

type activeRun struct {
	runner *Runner
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager builds the run registry. onProgress may be nil.
func NewManager(store Store, transcriber stt.Transcriber, refiner polish.Refiner, adv advisor.Advisor, cfg config.Config, log *logrus.Entry, onProgress ProgressCallback) *Manager {
	return &Manager{
		store:       store,
		transcriber: transcriber,
		refiner:     refiner,
		advisor:     adv,
		cfg:         cfg,
		log:         log,
		onProgress:  onProgress,
		active:      make(map[uuid.UUID]*activeRun),
	}
}

// Start launches a run for the project in the background. Starting a
// COMPLETE project is a no-op; mid-stage checkpoints left by a crash are
// rewound to the nearest resumable point first.
func (m *Manager) Start(ctx context.Context, projectID uuid.UUID) error {
	project, err := m.store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if project == nil {
		return ErrProjectNotFound
	}
	if project.Checkpoint == checkpoint.Complete {
		return nil
	}
	if project.Checkpoint == checkpoint.Blocked {
		return &NotResumableError{ProjectID: projectID, Checkpoint: project.Checkpoint}
	}
	if project.Checkpoint == checkpoint.Uploaded || project.Checkpoint == checkpoint.Compressed {
		// No chunk manifest registered yet.
		return &NotResumableError{ProjectID: projectID, Checkpoint: project.Checkpoint}
	}

	resume, err := m.resumePoint(ctx, project)
	if err != nil {
		return err
	}
	if resume != project.Checkpoint {
		m.log.WithFields(logrus.Fields{
			"project": projectID.String(),
			"from":    project.Checkpoint,
			"to":      resume,
		}).Info("rewinding to resumable checkpoint")
		if err := m.store.SetCheckpoint(ctx, projectID, resume); err != nil {
			return err
		}
		project.Checkpoint = resume
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, running := m.active[projectID]; running {
		return ErrAlreadyRunning
	}

	runner, err := NewRunner(m.store, m.transcriber, m.refiner, m.advisor, m.cfg, m.log, project, m.onProgress)
	if err != nil {
		return err
	}

	rctx, cancel := context.WithCancel(context.Background())
	run := &activeRun{runner: runner, cancel: cancel, done: make(chan struct{})}
	m.active[projectID] = run

	go func() {
		defer close(run.done)
		defer m.remove(projectID)
		defer cancel()
		if err := runner.Run(rctx); err != nil && rctx.Err() == nil {
			m.log.WithField("project", projectID.String()).WithError(err).Error("run ended with error")
		}
	}()
	return nil
}

func (m *Manager) remove(projectID uuid.UUID) {
	m.mu.Lock()
	delete(m.active, projectID)
	m.mu.Unlock()
}

// resumePoint maps the stored checkpoint to the checkpoint the run should
// restart from. PAUSED and FAILED have no position of their own, so the
// stage is inferred from what the chunk records actually contain.
func (m *Manager) resumePoint(ctx context.Context, project *types.Project) (checkpoint.Checkpoint, error) {
	cp := project.Checkpoint
	if cp == checkpoint.Paused || cp == checkpoint.Failed {
		return m.inferFromData(ctx, project.ID)
	}
	if checkpoint.IsResumable(cp) || cp == checkpoint.TranscribedPartial {
		if cp == checkpoint.TranscribedPartial {
			return checkpoint.Chunked, nil
		}
		return cp, nil
	}
	return checkpoint.NearestResumable(cp), nil
}

// inferFromData finds the furthest checkpoint the stored segments support.
func (m *Manager) inferFromData(ctx context.Context, projectID uuid.UUID) (checkpoint.Checkpoint, error) {
	chunks, err := m.store.ListChunks(ctx, projectID)
	if err != nil {
		return "", err
	}

	for _, chunk := range chunks {
		if !chunk.IsSilence && needsTranscription(chunk) {
			return checkpoint.Chunked, nil
		}
	}
	for _, chunk := range chunks {
		if needsPolish(chunk) {
			return checkpoint.Validated, nil
		}
	}
	return checkpoint.Polished, nil
}

// Pause requests a cooperative stop of an active run.
func (m *Manager) Pause(projectID uuid.UUID) error {
	m.mu.Lock()
	run, ok := m.active[projectID]
	m.mu.Unlock()
	if !ok {
		return ErrNotRunning
	}
	run.runner.Pause()
	return nil
}

// Wait blocks until the project's active run finishes. Returns immediately
// if no run is active.
func (m *Manager) Wait(projectID uuid.UUID) {
	m.mu.Lock()
	run, ok := m.active[projectID]
	m.mu.Unlock()
	if ok {
		<-run.done
	}
}

// Resume restarts a paused or interrupted run. Same semantics as Start.
func (m *Manager) Resume(ctx context.Context, projectID uuid.UUID) error {
	return m.Start(ctx, projectID)
}

// Abort cancels any active run and marks the project FAILED.
func (m *Manager) Abort(ctx context.Context, projectID uuid.UUID) error {
	m.mu.Lock()
	run, running := m.active[projectID]
	m.mu.Unlock()

	if running {
		run.cancel()
		<-run.done
	}

	project, err := m.store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	if project == nil {
		return ErrProjectNotFound
	}
	if checkpoint.IsTerminal(project.Checkpoint) {
		return nil
	}
	return m.store.SetCheckpoint(ctx, projectID, checkpoint.Failed)
}

// Status builds a snapshot of the project's run from stored chunk records.
func (m *Manager) Status(ctx context.Context, projectID uuid.UUID) (*Status, error) {
	project, err := m.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}
	chunks, err := m.store.ListChunks(ctx, projectID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	run, active := m.active[projectID]
	m.mu.Unlock()

	status := &Status{
		ProjectID:   projectID,
		Checkpoint:  project.Checkpoint,
		Progress:    checkpoint.Progress(project.Checkpoint),
		Active:      active,
		TotalChunks: len(chunks),
	}
	if active {
		status.Paused = run.runner.state.isPaused()
	}

	for _, chunk := range chunks {
		switch chunk.Phase {
		case types.PhaseTranscribing:
			status.Transcribing++
		case types.PhasePolishing:
			status.Polishing++
		}
		if !chunk.IsSilence && needsTranscription(chunk) && chunk.Phase != types.PhaseTranscribing {
			status.TranscribePending++
		}
		if needsPolish(chunk) && chunk.Phase != types.PhasePolishing {
			status.PolishPending++
		}
		d := chunk.Draft
		if d == nil {
			continue
		}
		switch {
		case d.ValidationStatus == types.ValidationFailed:
			reason := d.FailureReason
			if reason == "" {
				reason = "transcription retries exhausted"
			}
			status.FailedChunks = append(status.FailedChunks, types.FailedChunk{
				ChunkID:      chunk.ID,
				ChunkIndex:   chunk.Index,
				Error:        reason,
				RetryAttempt: d.RetryAttempt,
			})
		case d.RawText == "":
			status.Discarded++
		default:
			status.Transcribed++
			if d.Polished != nil {
				status.Polished++
			}
		}
	}
	return status, nil
}

// RetryChunk resets a terminally skipped chunk and restarts the project so
// the pipeline re-transcribes it and re-merges.
func (m *Manager) RetryChunk(ctx context.Context, projectID, chunkID uuid.UUID) error {
	m.mu.Lock()
	_, running := m.active[projectID]
	m.mu.Unlock()
	if running {
		return ErrAlreadyRunning
	}

	chunk, err := m.store.GetChunk(ctx, chunkID)
	if err != nil {
		return err
	}
	if chunk == nil || chunk.ProjectID != projectID {
		return fmt.Errorf("chunk %s not found in project %s", chunkID, projectID)
	}
	if chunk.Draft == nil {
		return fmt.Errorf("chunk %s has no draft to retry", chunkID)
	}

	if err := m.store.SetDraftStatus(ctx, chunkID, types.ValidationPending); err != nil {
		return err
	}
	if err := m.store.SetChunkRetry(ctx, chunkID, 0); err != nil {
		return err
	}

	cp, err := m.store.GetCheckpoint(ctx, projectID)
	if err != nil {
		return err
	}
	if cp == checkpoint.Complete {
		// Re-opening a finished project: rewind so Start re-enters the
		// pipeline instead of treating it as a no-op.
		if err := m.store.SetCheckpoint(ctx, projectID, checkpoint.Chunked); err != nil {
			return err
		}
	}
	return m.Start(ctx, projectID)
}

// RecoverStuck rewinds projects left mid-stage by a crash and restarts the
// autonomous ones. Called once at startup.
func (m *Manager) RecoverStuck(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-m.cfg.StallTimeout)
	stuck, err := m.store.ListStuckProjects(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, project := range stuck {
		resume := checkpoint.NearestResumable(project.Checkpoint)
		m.log.WithFields(logrus.Fields{
			"project": project.ID.String(),
			"stuck":   project.Checkpoint,
			"resume":  resume,
		}).Warn("recovering stuck project")
		if err := m.store.SetCheckpoint(ctx, project.ID, resume); err != nil {
			m.log.WithError(err).Error("failed to rewind stuck project")
			continue
		}
		recovered++
		if project.Mode == types.ModeSolo {
			if err := m.Start(ctx, project.ID); err != nil {
				m.log.WithError(err).Error("failed to restart recovered project")
			}
		}
	}
	return recovered, nil
}

// StopAll cancels every active run and waits for them to settle. Used for
// graceful shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	runs := make([]*activeRun, 0, len(m.active))
	for _, run := range m.active {
		runs = append(runs, run)
	}
	m.mu.Unlock()

	for _, run := range runs {
		run.cancel()
	}
	for _, run := range runs {
		<-run.done
	}
}
