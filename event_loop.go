package mqttsn

import (
	"context"
	"errors"
	"time"
)

const eventQueueSize = 256

// event is one unit of work for an engine loop. Exactly one field is set.
type event struct {
	datagram *Datagram
	timer    string
	gen      uint64
	call     func()
	readErr  error
}

// eventLoop serializes datagrams, timer firings and API calls for one
// engine instance. Handlers never run concurrently.
type eventLoop struct {
	events chan event
	done   chan struct{}
	timers *timerSet
}

func newEventLoop() *eventLoop {
	l := &eventLoop{
		events: make(chan event, eventQueueSize),
		done:   make(chan struct{}),
	}
	l.timers = &timerSet{
		loop:   l,
		timers: make(map[string]*scheduledTimer),
	}
	return l
}

// post enqueues ev. It returns false once the loop has stopped.
func (l *eventLoop) post(ev event) bool {
	select {
	case <-l.done:
		return false
	default:
	}

	select {
	case l.events <- ev:
		return true
	case <-l.done:
		return false
	}
}

// invoke runs fn on the loop.
func (l *eventLoop) invoke(fn func()) bool {
	return l.post(event{call: fn})
}

type loopHandlers struct {
	datagram func(Datagram) error
	timer    func(name string) error
}

// run drains events until ctx is done, the transport fails or a handler
// returns an error. Every timer is canceled on return.
func (l *eventLoop) run(ctx context.Context, transport Transport, h loopHandlers) error {
	defer func() {
		l.timers.cancelAll()
		close(l.done)
	}()

	go l.read(transport)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev := <-l.events:
			var err error
			switch {
			case ev.datagram != nil:
				err = h.datagram(*ev.datagram)
			case ev.timer != "":
				if l.timers.fired(ev.timer, ev.gen) {
					err = h.timer(ev.timer)
				}
			case ev.call != nil:
				ev.call()
			case ev.readErr != nil:
				if errors.Is(ev.readErr, ErrTransportClosed) {
					return nil
				}
				return ev.readErr
			}

			if err != nil {
				return err
			}
		}
	}
}

func (l *eventLoop) read(transport Transport) {
	for {
		dg, err := transport.Receive()
		if err != nil {
			l.post(event{readErr: err})
			return
		}

		if !l.post(event{datagram: &dg}) {
			return
		}
	}
}

type scheduledTimer struct {
	timer *time.Timer
	gen   uint64
}

// timerSet holds the named, cancelable timers of one engine. Rescheduling a
// name replaces its previous timer. A firing that was canceled or replaced
// after it was queued is ignored.
type timerSet struct {
	loop   *eventLoop
	timers map[string]*scheduledTimer
	gen    uint64
}

func (s *timerSet) schedule(name string, d time.Duration) {
	s.cancel(name)

	s.gen++
	gen := s.gen
	s.timers[name] = &scheduledTimer{
		gen: gen,
		timer: time.AfterFunc(d, func() {
			s.loop.post(event{timer: name, gen: gen})
		}),
	}
}

func (s *timerSet) cancel(name string) {
	if t, ok := s.timers[name]; ok {
		t.timer.Stop()
		delete(s.timers, name)
	}
}

func (s *timerSet) cancelAll() {
	for name := range s.timers {
		s.cancel(name)
	}
}

func (s *timerSet) active(name string) bool {
	_, ok := s.timers[name]
	return ok
}

// fired consumes a firing and reports whether it is still current.
func (s *timerSet) fired(name string, gen uint64) bool {
	t, ok := s.timers[name]
	if !ok || t.gen != gen {
		return false
	}
	delete(s.timers, name)
	return true
}
