package cron

import (
	"sync"
	"time"
)

// historyRecord is heap-allocated; the pointer is the handle an execution
// uses to finalize its own entry regardless of later inserts or trims.
type historyRecord struct {
	entry HistoryEntry
}

// historyLog is newest-first and bounded to limit after every trim.
type historyLog struct {
	mu      sync.Mutex
	records []*historyRecord
	limit   int
}

func newHistoryLog(limit int) *historyLog {
	if limit < 0 {
		limit = 0
	}
	return &historyLog{limit: limit}
}

func (h *historyLog) insert(e HistoryEntry) *historyRecord {
	rec := &historyRecord{entry: e}
	h.mu.Lock()
	h.records = append(h.records, nil)
	copy(h.records[1:], h.records)
	h.records[0] = rec
	h.mu.Unlock()
	return rec
}

// finish finalizes a running record once. It reports false when the record was
// already finalized (a run that outlived its max runtime).
func (h *historyLog) finish(rec *historyRecord, end time.Time, status Status, msg string) (HistoryEntry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if rec == nil || rec.entry.Status != StatusRunning {
		return HistoryEntry{}, false
	}
	rec.entry.EndTime = &end
	rec.entry.Status = status
	rec.entry.Message = msg
	rec.entry.Runtime = end.Sub(rec.entry.StartTime)
	if rec.entry.Runtime < 0 {
		rec.entry.Runtime = 0
	}
	return copyEntry(rec.entry), true
}

// trim drops the oldest records beyond the limit and returns the new size.
func (h *historyLog) trim() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.records) > h.limit {
		for i := h.limit; i < len(h.records); i++ {
			h.records[i] = nil
		}
		h.records = h.records[:h.limit]
	}
	return len(h.records)
}

func (h *historyLog) setLimit(n int) {
	if n < 0 {
		n = 0
	}
	h.mu.Lock()
	h.limit = n
	h.mu.Unlock()
}

func (h *historyLog) capacity() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.limit
}

func (h *historyLog) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}

// list copies up to limit newest entries, never more than the capacity.
func (h *historyLog) list(limit int) []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := min(limit, h.limit, len(h.records))
	if n < 0 {
		n = 0
	}
	out := make([]HistoryEntry, n)
	for i := 0; i < n; i++ {
		out[i] = copyEntry(h.records[i].entry)
	}
	return out
}

func copyEntry(e HistoryEntry) HistoryEntry {
	if e.EndTime != nil {
		end := *e.EndTime
		e.EndTime = &end
	}
	return e
}
