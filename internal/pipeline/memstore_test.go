package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/audioscribe/internal/checkpoint"
	"github.com/jonathan/audioscribe/internal/db"
	"github.com/jonathan/audioscribe/internal/types"
)

// memStore is an in-memory Store for runner and manager tests. All methods
// are safe for concurrent use, matching what the transcription pool needs.
type memStore struct {
	mu       sync.Mutex
	projects map[uuid.UUID]*types.Project
	chunks   map[uuid.UUID]*types.Chunk
	drafts   map[uuid.UUID]*types.DraftSegment    // keyed by chunk ID
	polished map[uuid.UUID]*types.PolishedSegment // keyed by draft ID
	docs     map[uuid.UUID]*types.FinalDocument
}

func newMemStore() *memStore {
	return &memStore{
		projects: make(map[uuid.UUID]*types.Project),
		chunks:   make(map[uuid.UUID]*types.Chunk),
		drafts:   make(map[uuid.UUID]*types.DraftSegment),
		polished: make(map[uuid.UUID]*types.PolishedSegment),
		docs:     make(map[uuid.UUID]*types.FinalDocument),
	}
}

var _ Store = (*memStore)(nil)

func (s *memStore) addProject(cp checkpoint.Checkpoint, mode types.ProcessingMode) *types.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := &types.Project{
		ID:               uuid.New(),
		OriginalFilename: "test.m4a",
		Mode:             mode,
		Checkpoint:       cp,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	s.projects[p.ID] = p
	return p
}

func (s *memStore) addChunk(projectID uuid.UUID, index int, filePath string, silence bool) *types.Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &types.Chunk{
		ID:          uuid.New(),
		ProjectID:   projectID,
		Index:       index,
		FilePath:    filePath,
		DurationMs:  60000,
		IsSilence:   silence,
		Phase:       types.PhaseIdle,
		LastUpdated: time.Now(),
	}
	s.chunks[c.ID] = c
	return c
}

func (s *memStore) GetProject(_ context.Context, projectID uuid.UUID) (*types.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		return nil, nil
	}
	clone := *p
	return &clone, nil
}

func (s *memStore) GetCheckpoint(_ context.Context, projectID uuid.UUID) (checkpoint.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		return "", fmt.Errorf("project not found: %s", projectID)
	}
	return p.Checkpoint, nil
}

func (s *memStore) SetCheckpoint(_ context.Context, projectID uuid.UUID, cp checkpoint.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.projects[projectID]
	if !ok {
		return fmt.Errorf("project not found: %s", projectID)
	}
	p.Checkpoint = cp
	p.UpdatedAt = time.Now()
	return nil
}

func (s *memStore) ListStuckProjects(_ context.Context, cutoff time.Time) ([]types.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Project
	for _, p := range s.projects {
		switch p.Checkpoint {
		case checkpoint.Transcribing, checkpoint.Polishing, checkpoint.Merged:
			if p.UpdatedAt.Before(cutoff) {
				out = append(out, *p)
			}
		}
	}
	return out, nil
}

func (s *memStore) GetChunk(_ context.Context, chunkID uuid.UUID) (*types.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chunks[chunkID]
	if !ok {
		return nil, nil
	}
	clone := s.cloneChunk(c)
	return &clone, nil
}

func (s *memStore) ListChunks(_ context.Context, projectID uuid.UUID) ([]types.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Chunk
	for _, c := range s.chunks {
		if c.ProjectID == projectID {
			out = append(out, s.cloneChunk(c))
		}
	}
	// Index order, as the SQL query guarantees.
	for i := range out {
		for j := i + 1; j < len(out); j++ {
			if out[j].Index < out[i].Index {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

// cloneChunk attaches draft and polished copies the way the joined SQL
// select does. Caller holds the lock.
func (s *memStore) cloneChunk(c *types.Chunk) types.Chunk {
	clone := *c
	if d, ok := s.drafts[c.ID]; ok {
		dClone := *d
		if p, ok := s.polished[d.ID]; ok {
			pClone := *p
			dClone.Polished = &pClone
		}
		clone.Draft = &dClone
	}
	return clone
}

func (s *memStore) SetChunkPhase(_ context.Context, chunkID uuid.UUID, phase types.ChunkPhase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chunks[chunkID]
	if !ok {
		return fmt.Errorf("chunk not found: %s", chunkID)
	}
	c.Phase = phase
	c.LastUpdated = time.Now()
	return nil
}

func (s *memStore) TouchChunk(_ context.Context, chunkID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.chunks[chunkID]; ok {
		c.LastUpdated = time.Now()
	}
	return nil
}

func (s *memStore) SetChunkRetry(_ context.Context, chunkID uuid.UUID, attempt int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.chunks[chunkID]; ok {
		c.RetryAttempt = attempt
		c.LastUpdated = time.Now()
	}
	return nil
}

func (s *memStore) UpsertDraft(_ context.Context, chunkID uuid.UUID, rawText string, status types.ValidationStatus, attempt int) (*types.DraftSegment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[chunkID]
	if !ok {
		d = &types.DraftSegment{ID: uuid.New(), ChunkID: chunkID, CreatedAt: time.Now()}
		s.drafts[chunkID] = d
	}
	d.RawText = rawText
	d.ValidationStatus = status
	d.RetryAttempt = attempt
	d.UpdatedAt = time.Now()
	clone := *d
	return &clone, nil
}

func (s *memStore) FailDraft(_ context.Context, chunkID uuid.UUID, reason string, attempt int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[chunkID]
	if !ok {
		d = &types.DraftSegment{ID: uuid.New(), ChunkID: chunkID, CreatedAt: time.Now()}
		s.drafts[chunkID] = d
	}
	d.ValidationStatus = types.ValidationFailed
	d.FailureReason = reason
	d.RetryAttempt = attempt
	d.UpdatedAt = time.Now()
	return nil
}

func (s *memStore) SetDraftStatus(_ context.Context, chunkID uuid.UUID, status types.ValidationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[chunkID]
	if !ok {
		return fmt.Errorf("draft not found for chunk: %s", chunkID)
	}
	d.ValidationStatus = status
	d.FailureReason = ""
	d.UpdatedAt = time.Now()
	return nil
}

func (s *memStore) UpsertPolished(_ context.Context, draftID uuid.UUID, input *db.PolishedInput) (*types.PolishedSegment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.polished[draftID]
	if !ok {
		p = &types.PolishedSegment{ID: uuid.New(), DraftSegmentID: draftID, CreatedAt: time.Now()}
		s.polished[draftID] = p
	}
	p.PolishedText = input.Text
	p.HasRepetition = input.HasRepetition
	p.Warnings = input.Warnings
	p.Status = input.Status
	clone := *p
	return &clone, nil
}

func (s *memStore) SaveFinalDocument(_ context.Context, projectID uuid.UUID, content string, chunkCount, skippedCount int) (*types.FinalDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := &types.FinalDocument{
		ID:           uuid.New(),
		ProjectID:    projectID,
		Content:      content,
		ChunkCount:   chunkCount,
		SkippedCount: skippedCount,
		CreatedAt:    time.Now(),
	}
	s.docs[projectID] = doc
	clone := *doc
	return &clone, nil
}

func (s *memStore) finalDocument(projectID uuid.UUID) *types.FinalDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[projectID]
}
