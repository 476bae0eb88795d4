package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/eleven-am/triggerflow/internal/domain"
	"github.com/eleven-am/triggerflow/internal/xjson"
)

const maxConflictRetries = 5

type Options struct {
	Dir          string
	InMemory     bool
	LogRetention time.Duration
}

// BadgerStore persists workflows, runs, run logs and debug timelines.
type BadgerStore struct {
	db        *badger.DB
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

func Open(opts Options, logger *slog.Logger) (*BadgerStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	badgerOpts := badger.DefaultOptions(opts.Dir).
		WithLogger(newBadgerLogger(logger)).
		WithLoggingLevel(badger.WARNING)
	if opts.InMemory {
		badgerOpts = badgerOpts.WithDir("").WithValueDir("").WithInMemory(true)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, domain.NewStorageError("open", opts.Dir, err)
	}

	store := NewBadgerStore(db, logger)
	store.retention = opts.LogRetention
	return store, nil
}

func NewBadgerStore(db *badger.DB, logger *slog.Logger) *BadgerStore {
	if logger == nil {
		logger = slog.Default()
	}

	return &BadgerStore{
		db:     db,
		logger: logger.With("component", "storage"),
		now:    time.Now,
	}
}

func (s *BadgerStore) Healthy() bool {
	return !s.db.IsClosed()
}

func (s *BadgerStore) Close() error {
	return s.db.Close()
}

func (s *BadgerStore) entry(key string, value []byte) *badger.Entry {
	e := badger.NewEntry([]byte(key), value)
	if s.retention > 0 {
		e = e.WithTTL(s.retention)
	}
	return e
}

func (s *BadgerStore) CreateRun(ctx context.Context, run *domain.RunRecord) error {
	if run == nil || run.ID == "" {
		return domain.NewStorageError("create_run", "", domain.ErrInvalidInput)
	}

	record := *run
	record.Logs = nil
	now := s.now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	if record.Status == "" {
		record.Status = domain.RunStatusPending
	}

	data, err := xjson.Marshal(record)
	if err != nil {
		return domain.NewStorageError("create_run", run.ID, err)
	}

	key := domain.RunKey(run.ID)
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(s.entry(key, data))
	})
	if err != nil {
		return domain.NewStorageError("create_run", key, err)
	}

	s.logger.Debug("run created", "run_id", run.ID, "workflow_id", run.WorkflowID)
	return nil
}

func (s *BadgerStore) GetRun(ctx context.Context, runID string) (*domain.RunRecord, error) {
	var record domain.RunRecord
	key := domain.RunKey(runID)

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return xjson.Unmarshal(val, &record)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.NewNotFoundError("run", runID)
	}
	if err != nil {
		return nil, domain.NewStorageError("get_run", key, err)
	}

	logs, err := s.GetLogs(ctx, runID)
	if err != nil {
		return nil, err
	}
	record.Logs = logs
	return &record, nil
}

func (s *BadgerStore) ListRuns(ctx context.Context, workflowID string) ([]*domain.RunRecord, error) {
	var runs []*domain.RunRecord

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(domain.RunPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var record domain.RunRecord
			err := it.Item().Value(func(val []byte) error {
				return xjson.Unmarshal(val, &record)
			})
			if err != nil {
				s.logger.Warn("skipping unreadable run record", "key", string(it.Item().Key()), "error", err)
				continue
			}
			if workflowID != "" && record.WorkflowID != workflowID {
				continue
			}
			runs = append(runs, &record)
		}
		return nil
	})
	if err != nil {
		return nil, domain.NewStorageError("list_runs", domain.RunPrefix, err)
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	return runs, nil
}

func (s *BadgerStore) SetStatus(ctx context.Context, runID string, status domain.RunStatus) error {
	if !status.Valid() {
		return domain.NewStorageError("set_status", runID, fmt.Errorf("status %q: %w", status, domain.ErrInvalidInput))
	}

	key := domain.RunKey(runID)
	err := s.retryConflicts(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		var record domain.RunRecord
		if err := item.Value(func(val []byte) error {
			return xjson.Unmarshal(val, &record)
		}); err != nil {
			return err
		}

		record.Status = status
		record.UpdatedAt = s.now()
		data, err := xjson.Marshal(record)
		if err != nil {
			return err
		}
		return txn.SetEntry(s.entry(key, data))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.NewNotFoundError("run", runID)
	}
	if err != nil {
		return domain.NewStorageError("set_status", key, err)
	}

	s.logger.Debug("run status updated", "run_id", runID, "status", status)
	return nil
}

// AppendLog stores message under the run's next sequence number.
func (s *BadgerStore) AppendLog(ctx context.Context, runID, message string) error {
	seqKey := domain.RunSeqKey(runID)

	err := s.retryConflicts(func(txn *badger.Txn) error {
		var seq uint64
		item, err := txn.Get([]byte(seqKey))
		switch {
		case err == nil:
			if err := item.Value(func(val []byte) error {
				parsed, perr := strconv.ParseUint(string(val), 10, 64)
				seq = parsed
				return perr
			}); err != nil {
				return err
			}
		case errors.Is(err, badger.ErrKeyNotFound):
		default:
			return err
		}

		seq++
		if err := txn.SetEntry(s.entry(domain.RunLogKey(runID, seq), []byte(message))); err != nil {
			return err
		}
		return txn.SetEntry(s.entry(seqKey, []byte(strconv.FormatUint(seq, 10))))
	})
	if err != nil {
		return domain.NewStorageError("append_log", seqKey, err)
	}
	return nil
}

func (s *BadgerStore) GetLogs(ctx context.Context, runID string) ([]string, error) {
	logs := []string{}
	prefix := domain.RunLogPrefixFor(runID)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			logs = append(logs, string(val))
		}
		return nil
	})
	if err != nil {
		return nil, domain.NewStorageError("get_logs", prefix, err)
	}
	return logs, nil
}

func (s *BadgerStore) SaveWorkflow(ctx context.Context, wf *domain.WorkflowRecord) error {
	if wf == nil || wf.ID == "" {
		return domain.NewStorageError("save_workflow", "", domain.ErrInvalidInput)
	}

	key := domain.WorkflowKey(wf.ID)
	err := s.retryConflicts(func(txn *badger.Txn) error {
		now := s.now()
		record := *wf
		record.UpdatedAt = now
		record.Graph.ID = wf.ID

		item, err := txn.Get([]byte(key))
		switch {
		case err == nil:
			var existing domain.WorkflowRecord
			if err := item.Value(func(val []byte) error {
				return xjson.Unmarshal(val, &existing)
			}); err != nil {
				return err
			}
			record.CreatedAt = existing.CreatedAt
		case errors.Is(err, badger.ErrKeyNotFound):
			if record.CreatedAt.IsZero() {
				record.CreatedAt = now
			}
		default:
			return err
		}

		data, err := xjson.Marshal(record)
		if err != nil {
			return err
		}
		if err := txn.Set([]byte(key), data); err != nil {
			return err
		}
		*wf = record
		return nil
	})
	if err != nil {
		return domain.NewStorageError("save_workflow", key, err)
	}

	s.logger.Debug("workflow saved", "workflow_id", wf.ID)
	return nil
}

func (s *BadgerStore) GetWorkflow(ctx context.Context, id string) (*domain.WorkflowRecord, error) {
	var record domain.WorkflowRecord
	key := domain.WorkflowKey(id)

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return xjson.Unmarshal(val, &record)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.NewNotFoundError("workflow", id)
	}
	if err != nil {
		return nil, domain.NewStorageError("get_workflow", key, err)
	}
	return &record, nil
}

func (s *BadgerStore) ListWorkflows(ctx context.Context) ([]*domain.WorkflowRecord, error) {
	workflows := []*domain.WorkflowRecord{}

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(domain.WorkflowPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var record domain.WorkflowRecord
			if err := it.Item().Value(func(val []byte) error {
				return xjson.Unmarshal(val, &record)
			}); err != nil {
				s.logger.Warn("skipping unreadable workflow", "key", string(it.Item().Key()), "error", err)
				continue
			}
			workflows = append(workflows, &record)
		}
		return nil
	})
	if err != nil {
		return nil, domain.NewStorageError("list_workflows", domain.WorkflowPrefix, err)
	}

	sort.SliceStable(workflows, func(i, j int) bool {
		return workflows[i].UpdatedAt.After(workflows[j].UpdatedAt)
	})
	return workflows, nil
}

func (s *BadgerStore) DeleteWorkflow(ctx context.Context, id string) error {
	key := domain.WorkflowKey(id)

	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(key)); err != nil {
			return err
		}
		return txn.Delete([]byte(key))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.NewNotFoundError("workflow", id)
	}
	if err != nil {
		return domain.NewStorageError("delete_workflow", key, err)
	}

	s.logger.Debug("workflow deleted", "workflow_id", id)
	return nil
}

func (s *BadgerStore) SaveTimeline(ctx context.Context, runID string, events []domain.DebugEvent) error {
	key := domain.TimelineKey(runID)
	if events == nil {
		events = []domain.DebugEvent{}
	}

	data, err := xjson.Marshal(events)
	if err != nil {
		return domain.NewStorageError("save_timeline", key, err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(s.entry(key, data))
	})
	if err != nil {
		return domain.NewStorageError("save_timeline", key, err)
	}
	return nil
}

func (s *BadgerStore) GetTimeline(ctx context.Context, runID string) ([]domain.DebugEvent, error) {
	var events []domain.DebugEvent
	key := domain.TimelineKey(runID)

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return xjson.Unmarshal(val, &events)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, domain.NewNotFoundError("timeline", runID)
	}
	if err != nil {
		return nil, domain.NewStorageError("get_timeline", key, err)
	}
	return events, nil
}

func (s *BadgerStore) retryConflicts(fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.logger.Debug("transaction conflict, retrying", "attempt", attempt+1)
	}
	return err
}
