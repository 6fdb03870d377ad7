package email

import (
	"context"
	"fmt"
	"time"

	"github.com/emersion/go-imap/v2"
)

// Searcher is the part of a Session the enumerator needs.
type Searcher interface {
	Search(criteria *imap.SearchCriteria) ([]uint32, error)
	// NumMessages is the count from SELECT; zero when unknown.
	NumMessages() uint32
}

// Criterion restricts which messages are enumerated. The zero value matches
// every message.
type Criterion struct {
	Since time.Time
}

// SinceCriterion matches messages sent on or after now minus days. Zero or
// negative days means all messages.
func SinceCriterion(days int, now time.Time) Criterion {
	if days <= 0 {
		return Criterion{}
	}
	d := now.AddDate(0, 0, -days)
	return Criterion{Since: time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)}
}

func (c Criterion) String() string {
	if c.Since.IsZero() {
		return "ALL"
	}
	return "SENTSINCE " + c.Since.Format("02-Jan-2006")
}

func (c Criterion) apply(window imap.SeqSet) *imap.SearchCriteria {
	criteria := &imap.SearchCriteria{SeqNum: []imap.SeqSet{window}}
	if !c.Since.IsZero() {
		criteria.SentSince = c.Since
	}
	return criteria
}

// Search collects the sequence numbers matching crit in windows of batchSize
// sequence numbers, so that no single SEARCH spans the whole folder. When the
// folder size is known every window up to it is queried; otherwise the first
// empty window ends the enumeration. Results keep server order.
func Search(ctx context.Context, s Searcher, crit Criterion, batchSize int) ([]uint32, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	size := uint32(batchSize)
	total := s.NumMessages()

	var ids []uint32
	for start := uint32(1); ; start += size {
		if total > 0 && start > total {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := start + size - 1
		var window imap.SeqSet
		window.AddRange(start, end)

		batch, err := s.Search(crit.apply(window))
		if err != nil {
			return nil, fmt.Errorf("%w: %s in %d:%d: %w", ErrSearch, crit, start, end, err)
		}
		if len(batch) == 0 && total == 0 {
			break
		}
		ids = append(ids, batch...)
	}
	return ids, nil
}
