package usecase

import (
	"sync"

	"companion/internal/domain"
)

// transcriptLog is the append-only conversation log. Entries are never
// mutated after creation.
type transcriptLog struct {
	mu      sync.Mutex
	entries []domain.TranscriptEntry
}

func newTranscriptLog() *transcriptLog {
	return &transcriptLog{}
}

func (l *transcriptLog) append(entry domain.TranscriptEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
}

func (l *transcriptLog) snapshot() []domain.TranscriptEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.TranscriptEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
