package instagram

import (
	"context"
	"sync"

	"github.com/likebank/likebank/internal/domain"
)

// Call records one validation request made against the Fake.
type Call struct {
	Kind         domain.OrderKind
	Handle       string
	Target       string
	RequiredText string
}

// Fake is a scripted Adapter for tests. Results pushed with Push are
// consumed first, one per call; otherwise the per-kind result applies, and
// the zero Fake approves everything.
type Fake struct {
	mu      sync.Mutex
	scripts []scripted
	byKind  map[domain.OrderKind]scripted
	calls   []Call
}

type scripted struct {
	res Result
	err error
}

func NewFake() *Fake {
	return &Fake{byKind: make(map[domain.OrderKind]scripted)}
}

// Push queues a one-shot result consumed by the next validation call.
func (f *Fake) Push(res Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts = append(f.scripts, scripted{res: res})
}

// PushErr queues a one-shot unclassified error.
func (f *Fake) PushErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts = append(f.scripts, scripted{err: err})
}

// SetResult fixes the result for every call of the given kind.
func (f *Fake) SetResult(kind domain.OrderKind, res Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byKind[kind] = scripted{res: res}
}

// Calls returns a copy of the recorded validation calls.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *Fake) next(call Call) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	if len(f.scripts) > 0 {
		s := f.scripts[0]
		f.scripts = f.scripts[1:]
		return s.res, s.err
	}
	if s, ok := f.byKind[call.Kind]; ok {
		return s.res, s.err
	}
	return Result{OK: true}, nil
}

func (f *Fake) ValidateLike(_ context.Context, handle, postURL string) (Result, error) {
	return f.next(Call{Kind: domain.KindLike, Handle: handle, Target: postURL})
}

func (f *Fake) ValidateFollow(_ context.Context, handle, profileURL string) (Result, error) {
	return f.next(Call{Kind: domain.KindFollow, Handle: handle, Target: profileURL})
}

func (f *Fake) ValidateComment(_ context.Context, handle, postURL, requiredText string) (Result, error) {
	return f.next(Call{Kind: domain.KindComment, Handle: handle, Target: postURL, RequiredText: requiredText})
}

var _ Adapter = (*Fake)(nil)
