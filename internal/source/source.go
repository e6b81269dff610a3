package source

import (
	"sync"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/sirupsen/logrus"
	"sr-dashboard-go/internal/logger"
	"sr-dashboard-go/internal/types"
)

var ErrClosed = goerr.New("source is closed")

// Snapshot is the full content of a source at one version.
type Snapshot struct {
	Version uint64      `json:"version"`
	Data    types.Frame `json:"data"`
}

// Source is a reactive column data source. Its content is only ever replaced
// as a whole; every replacement bumps the version and is delivered to the
// subscribers.
type Source struct {
	name string
	log  *logrus.Entry

	mu     sync.RWMutex
	snap   Snapshot
	subs   map[string]*Subscription
	closed bool
}

func New(name string, initial types.Frame) (*Source, error) {
	if initial == nil {
		return nil, goerr.New("initial frame is nil", goerr.V("source", name))
	}
	if err := initial.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid initial frame", goerr.V("source", name))
	}
	return &Source{
		name: name,
		log:  logger.New().Component("source").WithField("source", name),
		snap: Snapshot{Data: initial},
		subs: map[string]*Subscription{},
	}, nil
}

func (s *Source) Name() string { return s.name }

// Snapshot returns the current content.
func (s *Source) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Replace swaps the whole content for f and notifies subscribers. A frame
// whose fields are not parallel is rejected and the content is left as is.
func (s *Source) Replace(f types.Frame) (Snapshot, error) {
	if f == nil {
		return Snapshot{}, goerr.New("frame is nil", goerr.V("source", s.name))
	}
	if err := f.Validate(); err != nil {
		return Snapshot{}, goerr.Wrap(err, "replace rejected", goerr.V("source", s.name))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, ErrClosed
	}
	s.snap = Snapshot{Version: s.snap.Version + 1, Data: f}
	for _, sub := range s.subs {
		sub.deliver(s.snap)
	}
	s.log.WithFields(logrus.Fields{
		"version":     s.snap.Version,
		"rows":        f.Len(),
		"subscribers": len(s.subs),
	}).Debug("source replaced")
	return s.snap, nil
}

// Subscribe registers an observer. The current snapshot is queued right
// away. A subscriber that falls behind only sees the latest snapshot.
func (s *Source) Subscribe() (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	sub := &Subscription{
		ID:  uuid.New().String(),
		ch:  make(chan Snapshot, 1),
		src: s,
	}
	sub.deliver(s.snap)
	s.subs[sub.ID] = sub
	s.log.WithField("subscriber", sub.ID).Debug("subscribed")
	return sub, nil
}

// Subscribers returns the number of live subscriptions.
func (s *Source) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Close ends every subscription. Later calls to Replace or Subscribe fail.
func (s *Source) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, sub := range s.subs {
		close(sub.ch)
		delete(s.subs, id)
	}
}

func (s *Source) remove(sub *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[sub.ID]; !ok {
		return
	}
	delete(s.subs, sub.ID)
	close(sub.ch)
	s.log.WithField("subscriber", sub.ID).Debug("unsubscribed")
}

type Subscription struct {
	ID  string
	ch  chan Snapshot
	src *Source
}

// C yields snapshots until the subscription or the source is closed.
func (sub *Subscription) C() <-chan Snapshot { return sub.ch }

func (sub *Subscription) Close() { sub.src.remove(sub) }

// deliver runs with the source lock held, so it is the only sender.
func (sub *Subscription) deliver(snap Snapshot) {
	select {
	case <-sub.ch:
	default:
	}
	sub.ch <- snap
}
