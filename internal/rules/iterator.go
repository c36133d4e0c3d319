// internal/rules/iterator.go
package rules

import (
	"io"
	"iter"
	"log/slog"
	"time"

	"github.com/solatis/logview/internal/source"
	"github.com/solatis/logview/internal/types"
)

/*
 * Filtered iterator.
 *
 * Composes a record source, a view and one FilterState into a lazy sequence
 * of kept records. Each pull reads lines until one survives the view:
 *
 *   read line --EOF--> exhausted, io.EOF
 *       |     --error--> exhausted, *types.ReadError (once), then io.EOF
 *       v
 *   fresh Record -> Apply -> false: drop, read next line
 *                         -> true:  return record
 *
 * Skips never surface to the consumer and never end the sequence; only end
 * of source or an I/O error does.
 */

// RunStats counts what a run has done so far.
type RunStats struct {
	Read    int64
	Emitted int64
	Skipped int64
}

// Iterator yields the records of one processing run. Not safe for
// concurrent use: runs are single-threaded by construction.
type Iterator struct {
	reader    source.Reader
	view      *View
	state     *FilterState
	exhausted bool

	runID   types.RunID
	logger  *slog.Logger
	metrics *Metrics
	started time.Time
	stats   RunStats
}

// Next returns the next kept record. It returns io.EOF once the source is
// exhausted, and a *types.ReadError for an I/O failure, after which the
// iterator is exhausted.
func (it *Iterator) Next() (*types.Record, error) {
	if it.exhausted {
		return nil, io.EOF
	}
	if it.started.IsZero() {
		it.started = time.Now()
		it.logger.Debug("run started", "offset", it.reader.Tell())
	}

	for {
		offset := it.reader.Tell()
		line, err := it.reader.ReadRecord()
		if err == io.EOF {
			it.finish(nil)
			return nil, io.EOF
		}
		if err != nil {
			readErr := &types.ReadError{Offset: offset, Err: err}
			it.metrics.readFailed()
			it.finish(readErr)
			return nil, readErr
		}

		it.stats.Read++
		it.metrics.recordRead()

		record := types.NewRecord(line, offset)
		kept := Apply(it.view.Operations, record, it.state)
		it.metrics.recordKept(kept)
		if !kept {
			it.stats.Skipped++
			continue
		}
		it.stats.Emitted++
		return record, nil
	}
}

// All returns the run as a sequence. An I/O error is yielded once as the
// final element; normal end of stream yields nothing more.
func (it *Iterator) All() iter.Seq2[*types.Record, error] {
	return func(yield func(*types.Record, error) bool) {
		for {
			record, err := it.Next()
			if err == io.EOF {
				return
			}
			if !yield(record, err) || err != nil {
				return
			}
		}
	}
}

// Collect drains up to limit records (limit <= 0 means no limit).
// Returns the records gathered before any I/O error.
func (it *Iterator) Collect(limit int) ([]*types.Record, error) {
	var out []*types.Record
	for limit <= 0 || len(out) < limit {
		record, err := it.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, record)
	}
	return out, nil
}

// Exhausted reports whether the sequence has ended.
func (it *Iterator) Exhausted() bool {
	return it.exhausted
}

// RunID identifies this run in logs.
func (it *Iterator) RunID() types.RunID {
	return it.runID
}

// State exposes the run's variable memory (read-only use).
func (it *Iterator) State() *FilterState {
	return it.state
}

// Stats returns the counters of the run so far.
func (it *Iterator) Stats() RunStats {
	return it.stats
}

// Offset returns the source offset of the next unread line.
func (it *Iterator) Offset() int64 {
	return it.reader.Tell()
}

func (it *Iterator) finish(err error) {
	it.exhausted = true
	elapsed := time.Since(it.started)
	it.metrics.runFinished(elapsed)

	attrs := []any{
		"read", it.stats.Read,
		"emitted", it.stats.Emitted,
		"skipped", it.stats.Skipped,
		"elapsed", elapsed,
	}
	if err != nil {
		it.logger.Warn("run ended by read error", append(attrs, "error", err)...)
		return
	}
	it.logger.Debug("run finished", attrs...)
}
