package service

import (
	"sync"
	"time"
)

// State is the runtime snapshot exposed over the health endpoints. It is
// the only state shared between the control loop, the mark-price stream
// and the HTTP server, and it never feeds back into trading decisions.
type State struct {
	mu sync.RWMutex

	started     time.Time
	ready       bool
	wsConnected bool
	lastTick    time.Time
	lastPrice   float64
	cycles      int64
}

func NewState() *State {
	return &State{started: time.Now()}
}

func (s *State) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

func (s *State) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

func (s *State) SetWSConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wsConnected = connected
}

func (s *State) WSConnected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wsConnected
}

// ObserveMark records the latest mark-price tick.
func (s *State) ObserveMark(price float64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastPrice = price
	s.lastTick = at
}

// ObserveCycle counts one completed control-loop cycle.
func (s *State) ObserveCycle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles++
}

func (s *State) LastTick() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastTick
}

func (s *State) LastPrice() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastPrice
}

func (s *State) Cycles() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cycles
}

func (s *State) Uptime() time.Duration {
	return time.Since(s.started)
}
