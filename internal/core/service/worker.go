package service

import (
	"math/big"
	"sync/atomic"

	"forge/internal/core/enumerate"
	"forge/internal/core/verifier"
	"forge/internal/port"
)

var bigOne = big.NewInt(1)

// worker runs one slice of the candidate list, then its exhaustive index
// range. It owns its verifier; the only shared state is the two atomics
// and the progress channel.
type worker struct {
	id         int
	name       string
	verifier   verifier.Verifier
	passwords  []string
	space      *enumerate.Space
	indexRange enumerate.Range
	tried      map[string]struct{}

	cancelled *atomic.Bool
	found     *atomic.Pointer[string]
	progress  chan<- int
	notifier  port.Notifier
}

func (w *worker) run() {
	count := 0
	flush := func() {
		if count > 0 {
			w.progress <- count
			count = 0
		}
	}
	defer flush()

	// Probe cancellation and report progress every reportFreq candidates.
	// There is no preemption mid-verification; cancellation is cooperative.
	probe := func() bool {
		count++
		if count < reportFreq {
			return true
		}
		flush()
		return !w.cancelled.Load()
	}

	for _, password := range w.passwords {
		if !probe() {
			return
		}
		ok, err := w.verifier.Verify(password)
		if err != nil {
			w.notifier.Error(w.name+": cryptographic library exception", err.Error())
			return
		}
		if ok {
			w.win(password)
			return
		}
	}

	if w.space == nil || w.indexRange.Start == nil {
		return
	}
	for index := new(big.Int).Set(w.indexRange.Start); index.Cmp(w.indexRange.End) < 0; index.Add(index, bigOne) {
		if !probe() {
			return
		}
		password := w.space.Password(index)
		if _, alreadyTried := w.tried[password]; alreadyTried {
			continue
		}
		ok, err := w.verifier.Verify(password)
		if err != nil {
			w.notifier.Error(w.name+": cryptographic library exception", err.Error())
			return
		}
		if ok {
			w.win(password)
			return
		}
	}
}

// win installs the password before raising the cancelled flag so that
// observers of cancelled always see the result. The first CAS wins; a
// simultaneous second find is discarded.
func (w *worker) win(password string) {
	p := password
	w.found.CompareAndSwap(nil, &p)
	w.cancelled.Store(true)
}
