// Package moderation maintains the banned-term filter applied to every chat
// write. The live cache is authoritative after admin add/remove calls and is
// reloaded wholesale on Refresh; cache and durable table may briefly diverge
// between an admin write and the next refresh.
package moderation

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"shadownet-chat/internal/domain"
)

// defaultTerms seed the filter when the durable table is empty so moderation
// is never silently disabled.
var defaultTerms = map[string]int{
	"badword": 5,
	"abuse":   10,
	"vulgar":  5,
}

// Filter answers "does this text contain a banned term, and for how long
// should the author be muted". Safe for concurrent use.
type Filter struct {
	repo domain.BannedTermRepository

	mu    sync.RWMutex
	terms map[string]int
}

// NewFilter creates an empty filter backed by the given durable table.
// Call Refresh before serving traffic.
func NewFilter(repo domain.BannedTermRepository) *Filter {
	return &Filter{
		repo:  repo,
		terms: make(map[string]int),
	}
}

// Refresh reloads the term map wholesale from durable storage. If the table
// is empty the built-in default set is used instead.
func (f *Filter) Refresh(ctx context.Context) error {
	rows, err := f.repo.List(ctx)
	if err != nil {
		return err
	}

	terms := make(map[string]int, len(rows))
	for _, row := range rows {
		term := strings.ToLower(row.Term)
		if _, ok := terms[term]; !ok {
			terms[term] = row.MuteMinutes
		}
	}

	if len(terms) == 0 {
		for term, minutes := range defaultTerms {
			terms[term] = minutes
		}
		slog.Warn("banned-term table is empty, seeding built-in defaults",
			slog.Int("terms", len(terms)))
	}

	f.mu.Lock()
	f.terms = terms
	f.mu.Unlock()

	slog.Info("banned-term filter refreshed", slog.Int("terms", len(terms)))
	return nil
}

// Evaluate scans the lower-cased text for every known term as a substring and
// returns the maximum configured mute duration in minutes, or 0 when nothing
// matches. Empty input never matches. Substring containment only; no word
// boundaries, so "class" trips a ban on "ass".
func (f *Filter) Evaluate(text string) int {
	if text == "" {
		return 0
	}
	lower := strings.ToLower(text)

	f.mu.RLock()
	defer f.mu.RUnlock()

	max := 0
	for term, minutes := range f.terms {
		if strings.Contains(lower, term) && minutes > max {
			max = minutes
		}
	}
	return max
}

// AddTerm inserts or replaces a term in the live cache so admin additions are
// enforced immediately, without a full refresh.
func (f *Filter) AddTerm(term string, muteMinutes int) {
	f.mu.Lock()
	f.terms[strings.ToLower(term)] = muteMinutes
	f.mu.Unlock()
}

// RemoveTerm drops a term from the live cache.
func (f *Filter) RemoveTerm(term string) {
	f.mu.Lock()
	delete(f.terms, strings.ToLower(term))
	f.mu.Unlock()
}

// Len returns the number of cached terms.
func (f *Filter) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.terms)
}
