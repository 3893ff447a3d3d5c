package campaign

import (
	"sync"
	"time"
)

// ProgressLabels is the cosmetic stage sequence shown while a batch runs. One
// label is emitted per interval; after the last one the ticker goes quiet.
var ProgressLabels = []string{
	"Firing Parallel Engine...",
	"Extracting Sacred Brand Assets...",
	"Executing Mathematical Anatomy Check...",
	"Verifying Limb Ownership Tracing...",
	"Finalizing Deployment Package...",
}

// DefaultProgressInterval paces ProgressLabels.
const DefaultProgressInterval = 1200 * time.Millisecond

// progressTicker emits ProgressLabels on its own goroutine until stopped.
type progressTicker struct {
	stopCh chan struct{}
	done   chan struct{}
	once   sync.Once
}

func startProgress(interval time.Duration, emit func(label string)) *progressTicker {
	p := &progressTicker{
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(p.done)
		t := time.NewTicker(interval)
		defer t.Stop()
		for _, label := range ProgressLabels {
			select {
			case <-p.stopCh:
				return
			case <-t.C:
			}
			select {
			case <-p.stopCh:
				return
			default:
			}
			emit(label)
		}
	}()
	return p
}

// stop halts the ticker and waits for its goroutine, so no label is emitted
// once stop returns. It is safe to call more than once.
func (p *progressTicker) stop() {
	p.once.Do(func() { close(p.stopCh) })
	<-p.done
}
