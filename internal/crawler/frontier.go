package crawler

import "sync"

type queueItem struct {
	url   string
	depth int
}

// frontier is the BFS work queue shared by crawl workers. It tracks visited
// URLs for deduplication and in-flight work so workers know the difference
// between "queue momentarily empty" and "crawl finished".
type frontier struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []queueItem
	visited  map[string]bool
	inflight int
	closed   bool
	capacity int // Maximum URLs ever admitted; 0 means unbounded
}

func newFrontier(capacity int) *frontier {
	f := &frontier{
		visited:  make(map[string]bool),
		capacity: capacity,
	}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Push admits a URL once. Returns false for duplicates, after Close, or
// when the admission cap is reached.
func (f *frontier) Push(url string, depth int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || f.visited[url] {
		return false
	}
	if f.capacity > 0 && len(f.visited) >= f.capacity {
		return false
	}

	f.visited[url] = true
	f.queue = append(f.queue, queueItem{url: url, depth: depth})
	f.cond.Signal()
	return true
}

// Next blocks until work is available or the crawl is finished. The second
// return is false exactly when no more items will ever arrive: the frontier
// was closed, or the queue drained with nothing in flight.
func (f *frontier) Next() (queueItem, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for {
		if f.closed {
			return queueItem{}, false
		}
		if len(f.queue) > 0 {
			item := f.queue[0]
			f.queue = f.queue[1:]
			f.inflight++
			return item, true
		}
		if f.inflight == 0 {
			f.closed = true
			f.cond.Broadcast()
			return queueItem{}, false
		}
		f.cond.Wait()
	}
}

// Done marks one item finished. Must pair with a successful Next.
func (f *frontier) Done() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.inflight--
	if f.inflight == 0 && len(f.queue) == 0 {
		// Last worker finished with nothing queued: wake the waiters so
		// they can observe completion
		f.cond.Broadcast()
	}
}

// Close aborts the crawl; blocked workers wake up and exit
func (f *frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.cond.Broadcast()
}

// Discovered reports how many unique URLs were ever admitted
func (f *frontier) Discovered() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}
