package backup

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imapbox/imapbox/pkgs/archive"
	"github.com/imapbox/imapbox/pkgs/email"
)

var errReset = &net.OpError{Op: "read", Net: "tcp", Err: os.NewSyscallError("read", syscall.ECONNRESET)}

// fakeSource serves message bodies by sequence number. failures[seq] is
// consumed one error per fetch before the body is returned.
type fakeSource struct {
	bodies   map[uint32]string
	failures map[uint32][]error
	always   map[uint32]error

	searchErr    error
	reconnectErr error

	fetches    map[uint32]int
	reconnects int
	searches   int
}

func newFakeSource(bodies ...string) *fakeSource {
	src := &fakeSource{
		bodies:   map[uint32]string{},
		failures: map[uint32][]error{},
		always:   map[uint32]error{},
		fetches:  map[uint32]int{},
	}
	for i, b := range bodies {
		src.bodies[uint32(i+1)] = b
	}
	return src
}

func (f *fakeSource) NumMessages() uint32 { return uint32(len(f.bodies)) }
func (f *fakeSource) MaxRetries() int     { return email.DefaultMaxRetries }
func (f *fakeSource) Folder() string      { return "INBOX" }

func (f *fakeSource) Search(criteria *imap.SearchCriteria) ([]uint32, error) {
	f.searches++
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	var ids []uint32
	for seq := uint32(1); seq <= uint32(len(f.bodies)); seq++ {
		if criteria.SeqNum[0].Contains(seq) {
			ids = append(ids, seq)
		}
	}
	return ids, nil
}

func (f *fakeSource) FetchRaw(_ context.Context, seq uint32) (*email.RawMessage, error) {
	f.fetches[seq]++
	if err := f.always[seq]; err != nil {
		return nil, err
	}
	if errs := f.failures[seq]; len(errs) > 0 {
		f.failures[seq] = errs[1:]
		return nil, errs[0]
	}
	return &email.RawMessage{SeqNum: seq, Body: []byte(f.bodies[seq])}, nil
}

func (f *fakeSource) Reconnect(context.Context) error {
	f.reconnects++
	return f.reconnectErr
}

// memArchive reports AlreadyPresent for bodies it has seen before.
type memArchive struct {
	seen map[string]bool
	err  error
}

func (m *memArchive) Persist(_ context.Context, raw []byte) (archive.Result, error) {
	if m.err != nil {
		return archive.Result{}, m.err
	}
	if m.seen == nil {
		m.seen = map[string]bool{}
	}
	if m.seen[string(raw)] {
		return archive.Result{Status: archive.AlreadyPresent}, nil
	}
	m.seen[string(raw)] = true
	return archive.Result{Status: archive.Saved}, nil
}

type recordingObserver struct {
	outcomes []Outcome
	folders  []string
}

func (o *recordingObserver) ObserveMessage(_ string, out Outcome) { o.outcomes = append(o.outcomes, out) }
func (o *recordingObserver) ObserveFolder(_, folder string, _ Stats, _ error, _ time.Duration) {
	o.folders = append(o.folders, folder)
}

func TestRunCountsSavedAndExisting(t *testing.T) {
	src := newFakeSource("a", "b", "a")
	obs := &recordingObserver{}

	var progress [][2]int
	stats, err := NewRunner(nil, obs).Run(context.Background(), src, RunOptions{
		Archive:  &memArchive{},
		Progress: func(done, total int) { progress = append(progress, [2]int{done, total}) },
	})
	require.NoError(t, err)
	assert.Equal(t, Stats{Saved: 2, Existing: 1}, stats)
	assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, progress)
	assert.Equal(t, []Outcome{OutcomeSaved, OutcomeSaved, OutcomeExisting}, obs.outcomes)
}

func TestRunIsIdempotent(t *testing.T) {
	src := newFakeSource("1", "2", "3")
	store := &memArchive{}
	r := NewRunner(nil, nil)

	first, err := r.Run(context.Background(), src, RunOptions{Archive: store})
	require.NoError(t, err)
	assert.Equal(t, Stats{Saved: 3}, first)

	second, err := r.Run(context.Background(), src, RunOptions{Archive: store})
	require.NoError(t, err)
	assert.Equal(t, Stats{Existing: 3}, second)
}

func TestRunPaginates(t *testing.T) {
	bodies := make([]string, 7)
	for i := range bodies {
		bodies[i] = string(rune('a' + i))
	}
	src := newFakeSource(bodies...)

	stats, err := NewRunner(nil, nil).Run(context.Background(), src, RunOptions{Archive: &memArchive{}, BatchSize: 3})
	require.NoError(t, err)
	assert.Equal(t, 7, stats.Saved)
	assert.Equal(t, 3, src.searches)
}

func TestRunEmptyFolder(t *testing.T) {
	stats, err := NewRunner(nil, nil).Run(context.Background(), newFakeSource(), RunOptions{Archive: &memArchive{}})
	require.NoError(t, err)
	assert.Equal(t, Stats{Empty: true}, stats)
}

func TestRunSearchError(t *testing.T) {
	src := newFakeSource("a")
	src.searchErr = errors.New("BAD")

	_, err := NewRunner(nil, nil).Run(context.Background(), src, RunOptions{Archive: &memArchive{}})
	assert.ErrorIs(t, err, email.ErrSearch)
}

func TestRunRetriesTransientFetchErrors(t *testing.T) {
	src := newFakeSource("a", "b")
	src.failures[1] = []error{errReset, errReset}

	stats, err := NewRunner(nil, nil).Run(context.Background(), src, RunOptions{Archive: &memArchive{}})
	require.NoError(t, err)
	assert.Equal(t, Stats{Saved: 2}, stats)
	assert.Equal(t, 3, src.fetches[1])
	assert.Equal(t, 2, src.reconnects)
}

func TestRunRetryExhaustionIsFatal(t *testing.T) {
	src := newFakeSource("a", "b")
	src.always[2] = errReset

	stats, err := NewRunner(nil, nil).Run(context.Background(), src, RunOptions{Archive: &memArchive{}})
	require.Error(t, err)
	assert.ErrorIs(t, err, email.ErrRetriesExhausted)
	assert.True(t, email.IsFatal(err))
	assert.Equal(t, Stats{Saved: 1}, stats)
	assert.Equal(t, email.DefaultMaxRetries, src.fetches[2])
	assert.Equal(t, email.DefaultMaxRetries-1, src.reconnects)
}

func TestRunAbortReconnectsAndSkips(t *testing.T) {
	src := newFakeSource("a", "b")
	src.failures[1] = []error{io.EOF}

	stats, err := NewRunner(nil, nil).Run(context.Background(), src, RunOptions{Archive: &memArchive{}})
	require.NoError(t, err)
	assert.Equal(t, Stats{Saved: 1, Skipped: 1}, stats)
	assert.Equal(t, 1, src.fetches[1])
	assert.Equal(t, 1, src.reconnects)
}

func TestRunOtherErrorSkipsWithoutReconnect(t *testing.T) {
	src := newFakeSource("a", "b")
	src.failures[2] = []error{errors.New("NO message expunged")}

	stats, err := NewRunner(nil, nil).Run(context.Background(), src, RunOptions{Archive: &memArchive{}})
	require.NoError(t, err)
	assert.Equal(t, Stats{Saved: 1, Skipped: 1}, stats)
	assert.Zero(t, src.reconnects)
}

func TestRunFailedReconnectStops(t *testing.T) {
	src := newFakeSource("a", "b")
	src.failures[1] = []error{errReset}
	src.reconnectErr = email.ErrFatal

	stats, err := NewRunner(nil, nil).Run(context.Background(), src, RunOptions{Archive: &memArchive{}})
	assert.ErrorIs(t, err, email.ErrFatal)
	assert.Equal(t, Stats{}, stats)
	assert.Zero(t, src.fetches[2])
}

func TestRunPersistErrorSkips(t *testing.T) {
	src := newFakeSource("a")

	stats, err := NewRunner(nil, nil).Run(context.Background(), src, RunOptions{Archive: &memArchive{err: os.ErrPermission}})
	require.NoError(t, err)
	assert.Equal(t, Stats{Skipped: 1}, stats)
}

func TestRunStopsBetweenMessagesOnCancel(t *testing.T) {
	src := newFakeSource("a", "b", "c")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stats, err := NewRunner(nil, nil).Run(ctx, src, RunOptions{
		Archive:  &memArchive{},
		Progress: func(done, _ int) { cancel() },
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Stats{Saved: 1}, stats)
}

func TestRunUsesDaysCriterion(t *testing.T) {
	var got *imap.SearchCriteria
	src := &criteriaSpy{fn: func(c *imap.SearchCriteria) { got = c }}
	now := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)

	_, err := NewRunner(nil, nil).Run(context.Background(), src, RunOptions{
		Days:    7,
		Archive: &memArchive{},
		Now:     func() time.Time { return now },
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), got.SentSince)
}

type criteriaSpy struct {
	fakeSource
	fn func(*imap.SearchCriteria)
}

func (s *criteriaSpy) Search(c *imap.SearchCriteria) ([]uint32, error) {
	s.fn(c)
	return nil, nil
}

func TestStatsAdd(t *testing.T) {
	total := Stats{Empty: true}
	total.Add(Stats{Empty: true})
	assert.True(t, total.Empty)
	total.Add(Stats{Saved: 2, Skipped: 1})
	total.Add(Stats{Existing: 4})
	assert.Equal(t, Stats{Saved: 2, Existing: 4, Skipped: 1}, total)
}
