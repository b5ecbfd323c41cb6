package app

import (
	"sync"

	"exit-ticket-service/internal/domain"
)

// ResultsFeed fans fresh analytics summaries out to instructor views
// subscribed to a ticket. Subscribers that fall behind have their stale
// update dropped rather than blocking the publisher.
type ResultsFeed struct {
	mu   sync.Mutex
	subs map[string]map[chan *domain.Summary]struct{}
}

func NewResultsFeed() *ResultsFeed {
	return &ResultsFeed{subs: make(map[string]map[chan *domain.Summary]struct{})}
}

// Subscribe registers a listener for one ticket code. The caller must invoke
// the returned cancel function to avoid leaks.
func (f *ResultsFeed) Subscribe(code string) (<-chan *domain.Summary, func()) {
	ch := make(chan *domain.Summary, 8)

	f.mu.Lock()
	if f.subs[code] == nil {
		f.subs[code] = make(map[chan *domain.Summary]struct{})
	}
	f.subs[code][ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if set, ok := f.subs[code]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(f.subs, code)
			}
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// Publish delivers the summary to every subscriber of the code.
func (f *ResultsFeed) Publish(code string, summary *domain.Summary) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs[code] {
		select {
		case ch <- summary:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- summary
		}
	}
}
