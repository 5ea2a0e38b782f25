package framesim

import (
	"github.com/eapache/queue"

	"github.com/pavanmanishd/framealloc"
)

// pendingRelease is a block that is still in flight until frame due.
type pendingRelease struct {
	due   int
	block framealloc.Block
}

// releaseQueue holds blocks whose deallocation is deferred by a fixed
// number of frames, the way a renderer keeps per-frame data alive while the
// GPU may still read it. Blocks leave in submission order.
type releaseQueue struct {
	q       *queue.Queue
	latency int
}

func newReleaseQueue(latency int) *releaseQueue {
	return &releaseQueue{q: queue.New(), latency: latency}
}

// push schedules b, used during frame, for release.
func (r *releaseQueue) push(frame int, b framealloc.Block) {
	r.q.Add(pendingRelease{due: frame + r.latency, block: b})
}

// drain deallocates every block due at or before frame into a and returns
// how many were released.
func (r *releaseQueue) drain(frame int, a framealloc.Allocator) int {
	n := 0
	for r.q.Length() > 0 {
		p := r.q.Peek().(pendingRelease)
		if p.due > frame {
			break
		}
		r.q.Remove()
		a.Deallocate(p.block)
		n++
	}
	return n
}

// flush deallocates everything still pending.
func (r *releaseQueue) flush(a framealloc.Allocator) int {
	n := 0
	for r.q.Length() > 0 {
		p := r.q.Remove().(pendingRelease)
		a.Deallocate(p.block)
		n++
	}
	return n
}

func (r *releaseQueue) len() int {
	return r.q.Length()
}
