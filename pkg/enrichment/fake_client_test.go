package enrichment

import (
	"context"
	"sync"

	"github.com/Sternrassler/creature-catalog/pkg/catalog"
)

// fakeItem scripts one GetItem answer.
type fakeItem struct {
	detail *catalog.Detail
	err    error

	// gate, when set, holds the call until it is closed.
	gate chan struct{}
}

// fakeClient is an in-process catalog.Client with scripted answers.
type fakeClient struct {
	mu sync.Mutex

	summaries []catalog.Summary
	listErr   error
	listGate  chan struct{}
	items     map[int]fakeItem

	// ignoreCtx makes gated calls wait for their gate even after cancellation.
	ignoreCtx bool

	listCalls   int
	getCalls    map[int]int
	started     chan int
	inFlight    int
	maxInFlight int
}

func newFakeClient(summaries ...catalog.Summary) *fakeClient {
	return &fakeClient{
		summaries: summaries,
		items:     make(map[int]fakeItem),
		getCalls:  make(map[int]int),
		started:   make(chan int, 64),
	}
}

func (f *fakeClient) setItem(id int, item fakeItem) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[id] = item
}

func (f *fakeClient) setList(summaries []catalog.Summary, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summaries = summaries
	f.listErr = err
}

func (f *fakeClient) ListPage(ctx context.Context, offset, limit int) ([]catalog.Summary, error) {
	f.mu.Lock()
	f.listCalls++
	gate := f.listGate
	summaries := append([]catalog.Summary(nil), f.summaries...)
	err := f.listErr
	f.mu.Unlock()

	if gate != nil {
		if werr := f.wait(ctx, gate); werr != nil {
			return nil, catalog.NetworkError("list", 0, werr)
		}
	}
	if err != nil {
		return nil, err
	}
	return summaries, nil
}

func (f *fakeClient) GetItem(ctx context.Context, id int) (*catalog.Detail, error) {
	f.mu.Lock()
	f.getCalls[id]++
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	item, ok := f.items[id]
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	select {
	case f.started <- id:
	default:
	}

	if item.gate != nil {
		if err := f.wait(ctx, item.gate); err != nil {
			return nil, catalog.NetworkError("get", 0, err)
		}
	}

	if !ok {
		return nil, catalog.NotFoundError("get", id)
	}
	if item.err != nil {
		return nil, item.err
	}
	d := *item.detail
	return &d, nil
}

func (f *fakeClient) wait(ctx context.Context, gate chan struct{}) error {
	if f.ignoreCtx {
		<-gate
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeClient) calls() (list int, get map[int]int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	get = make(map[int]int, len(f.getCalls))
	for k, v := range f.getCalls {
		get[k] = v
	}
	return f.listCalls, get
}

func (f *fakeClient) peakInFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxInFlight
}

func strPtr(s string) *string {
	return &s
}

// serve scripts a detail for each summary, with category and image taken from
// the given maps.
func (f *fakeClient) serve(categories map[int]string, images map[int]string) {
	for _, s := range f.summaries {
		d := &catalog.Detail{ID: s.ID, Name: s.Name, PrimaryCategory: categories[s.ID]}
		if img, ok := images[s.ID]; ok {
			d.ImageURL = strPtr(img)
		}
		f.setItem(s.ID, fakeItem{detail: d})
	}
}
