// pkg/store/memory.go
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/starkjeffrey/naga-migration/pkg/model"
)

type snapshotKey struct {
	tableID string
	stage   model.StageKind
}

// MemoryStore is the in-process Store used when no database is
// configured and by the pipeline tests. It honors the same atomicity
// contract as the Postgres store: CommitChunk applies the chunk and the
// run update under one lock, so a reader never observes half a chunk.
type MemoryStore struct {
	mu    sync.Mutex
	runs  []*model.StageRun
	rows  map[snapshotKey][]*model.Row
	order map[string]int64 // run ID -> insertion sequence
	seq   int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rows:  make(map[snapshotKey][]*model.Row),
		order: make(map[string]int64),
	}
}

func (s *MemoryStore) SaveStageRun(_ context.Context, run *model.StageRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveRunLocked(run)
	return nil
}

func (s *MemoryStore) saveRunLocked(run *model.StageRun) {
	cp := *run
	for i, existing := range s.runs {
		if existing.ID == run.ID {
			s.runs[i] = &cp
			return
		}
	}
	s.seq++
	s.order[run.ID] = s.seq
	s.runs = append(s.runs, &cp)
}

func (s *MemoryStore) LatestStageRun(_ context.Context, tableID string, stage model.StageKind) (*model.StageRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest *model.StageRun
	for _, run := range s.runs {
		if run.TableID != tableID || run.Stage != stage {
			continue
		}
		if latest == nil || s.order[run.ID] > s.order[latest.ID] {
			latest = run
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *MemoryStore) CommitChunk(_ context.Context, run *model.StageRun, rows []*model.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Snapshots are keyed by ordinal: committing the same ordinal again
	// (crash re-run, fresh run over a completed stage) supersedes the
	// stored snapshot, matching the Postgres upsert.
	key := snapshotKey{tableID: run.TableID, stage: run.Stage}
	for _, row := range rows {
		replaced := false
		for i, existing := range s.rows[key] {
			if existing.Ordinal == row.Ordinal {
				s.rows[key][i] = row.Clone()
				replaced = true
				break
			}
		}
		if !replaced {
			s.rows[key] = append(s.rows[key], row.Clone())
		}
	}
	sort.Slice(s.rows[key], func(i, j int) bool {
		return s.rows[key][i].Ordinal < s.rows[key][j].Ordinal
	})
	s.saveRunLocked(run)
	return nil
}

func (s *MemoryStore) LoadChunk(_ context.Context, tableID string, stage model.StageKind, offset, limit int64) ([]*model.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.rows[snapshotKey{tableID: tableID, stage: stage}]
	if offset >= int64(len(all)) {
		return nil, nil
	}
	end := offset + limit
	if end > int64(len(all)) {
		end = int64(len(all))
	}

	out := make([]*model.Row, 0, end-offset)
	for _, row := range all[offset:end] {
		out = append(out, row.Clone())
	}
	return out, nil
}

func (s *MemoryStore) CountRows(_ context.Context, tableID string, stage model.StageKind) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.rows[snapshotKey{tableID: tableID, stage: stage}])), nil
}

func (s *MemoryStore) Rejections(_ context.Context, tableID string) ([]model.RejectedRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.RejectedRow
	for _, row := range s.rows[snapshotKey{tableID: tableID, stage: model.StageValidate}] {
		if row.Rejection == nil {
			continue
		}
		snapshot := make(map[string]string, len(row.Values))
		for k, v := range row.Values {
			snapshot[k] = v
		}
		out = append(out, model.RejectedRow{
			TableID:   tableID,
			Stage:     model.StageValidate,
			Ordinal:   row.Ordinal,
			LegacyKey: row.LegacyKey,
			Category:  row.Rejection.Category,
			Rule:      row.Rejection.Rule,
			Reason:    row.Rejection.Reason,
			Snapshot:  snapshot,
		})
	}
	return out, nil
}

func (s *MemoryStore) TransformedRows(_ context.Context, tableID string, fn func(*model.Row) error) error {
	s.mu.Lock()
	rows := s.rows[snapshotKey{tableID: tableID, stage: model.StageTransform}]
	clones := make([]*model.Row, 0, len(rows))
	for _, row := range rows {
		if row.Accepted() {
			clones = append(clones, row.Clone())
		}
	}
	s.mu.Unlock()

	for _, row := range clones {
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
