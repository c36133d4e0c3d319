// Package api provides the HTTP and gRPC query services over a log file.
package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/solatis/logview/internal/core/config"
	"github.com/solatis/logview/internal/core/db"
	"github.com/solatis/logview/internal/rules"
	"github.com/solatis/logview/internal/source"
	"github.com/solatis/logview/internal/types"
)

// QueryService runs views against the deployment's log file.
// Thin orchestration layer shared by the HTTP and gRPC surfaces; every
// query opens its own file handle and gets its own run.
type QueryService struct {
	engine *rules.Engine
	views  *db.ViewStore
	cfg    config.WebConfig
	logger *slog.Logger
}

// NewQueryService creates service instance with dependencies. views may be
// nil when no database is configured; stored-view requests then fail with
// ErrViewsDisabled.
func NewQueryService(engine *rules.Engine, views *db.ViewStore, cfg config.WebConfig, logger *slog.Logger) (*QueryService, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if cfg.LogFile == "" {
		return nil, fmt.Errorf("log file cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryService{
		engine: engine,
		views:  views,
		cfg:    cfg,
		logger: logger,
	}, nil
}

// ErrViewsDisabled indicates a stored-view operation without a database.
var ErrViewsDisabled = errors.New("stored views are not configured (no database)")

// Views returns the stored view store, or ErrViewsDisabled.
func (s *QueryService) Views() (*db.ViewStore, error) {
	if s.views == nil {
		return nil, ErrViewsDisabled
	}
	return s.views, nil
}

// LoadStored resolves a stored view by name.
func (s *QueryService) LoadStored(ctx context.Context, name string) (*rules.View, error) {
	views, err := s.Views()
	if err != nil {
		return nil, err
	}
	return views.Load(ctx, name)
}

// Page is the result of a bounded query.
type Page struct {
	Records []*types.Record `json:"records"`
	// NextOffset is where a follow-up query resumes.
	NextOffset int64 `json:"nextOffset"`
	// Truncated is set only when at least one more kept record follows
	// NextOffset. A page that ends exactly at the limit and the end of the
	// file is not truncated.
	Truncated bool `json:"truncated"`
}

// Query runs view from offset and collects at most limit records (capped by
// web.max_records). It stops pulling when ctx is done.
func (s *QueryService) Query(ctx context.Context, view *rules.View, offset int64, limit int) (*Page, error) {
	if limit <= 0 || limit > s.cfg.MaxRecords {
		limit = s.cfg.MaxRecords
	}

	page := &Page{Records: []*types.Record{}}
	var resume int64
	next, err := s.Stream(ctx, view, offset, func(record *types.Record, after int64) (bool, error) {
		// One record past the limit is pulled to learn whether the page
		// is really cut short; it is left for the follow-up query.
		if len(page.Records) == limit {
			page.Truncated = true
			return false, nil
		}
		page.Records = append(page.Records, record)
		resume = after
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if page.Truncated {
		page.NextOffset = resume
	} else {
		page.NextOffset = next
	}
	return page, nil
}

// Stream runs view from offset and hands each kept record to fn until fn
// returns false or an error, the file ends, or ctx is done. fn also gets
// the offset just past the record. Returns the offset of the first unread
// line.
func (s *QueryService) Stream(ctx context.Context, view *rules.View, offset int64, fn func(record *types.Record, after int64) (bool, error)) (int64, error) {
	file, err := source.Open(s.cfg.LogFile)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	if offset < 0 {
		return 0, fmt.Errorf("%w: %d", ErrBadOffset, offset)
	}
	if err := file.SeekTo(offset); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBadOffset, err)
	}

	it := s.engine.Process(file, view)
	for {
		if err := ctx.Err(); err != nil {
			return it.Offset(), err
		}
		record, err := it.Next()
		if err == io.EOF {
			return it.Offset(), nil
		}
		if err != nil {
			s.logger.Error("query aborted by read error", "run_id", string(it.RunID()), "error", err)
			return it.Offset(), err
		}
		more, err := fn(record, it.Offset())
		if err != nil || !more {
			return it.Offset(), err
		}
	}
}

// ErrBadOffset indicates an unusable ?offset / offset parameter.
var ErrBadOffset = errors.New("invalid offset")
