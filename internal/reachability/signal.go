package reachability

import (
	"context"
	"net"
	"sync/atomic"
	"time"
)

// Signal is the platform's own notion of connectivity. It may report online
// while the backend is unreachable, never the other way round.
type Signal interface {
	Online() bool
	// Changes fires (coalesced) whenever the signal may have flipped.
	Changes() <-chan struct{}
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// ManualSignal is fed externally, e.g. by the browser UI relaying its
// online/offline events.
type ManualSignal struct {
	online  atomic.Bool
	changes chan struct{}
}

func NewManualSignal(initial bool) *ManualSignal {
	s := &ManualSignal{changes: make(chan struct{}, 1)}
	s.online.Store(initial)
	return s
}

func (s *ManualSignal) Online() bool { return s.online.Load() }

func (s *ManualSignal) Changes() <-chan struct{} { return s.changes }

// Set records the latest native reading and wakes the monitor.
func (s *ManualSignal) Set(online bool) {
	s.online.Store(online)
	notify(s.changes)
}

// InterfaceSignal reports online while the host has an up, non-loopback
// interface carrying a routable address.
type InterfaceSignal struct {
	interval time.Duration
	list     func() ([]net.Interface, error)
	addrs    func(net.Interface) ([]net.Addr, error)
	online   atomic.Bool
	changes  chan struct{}
}

func NewInterfaceSignal(interval time.Duration) *InterfaceSignal {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	s := &InterfaceSignal{
		interval: interval,
		list:     net.Interfaces,
		addrs:    func(i net.Interface) ([]net.Addr, error) { return i.Addrs() },
		changes:  make(chan struct{}, 1),
	}
	s.online.Store(s.scan())
	return s
}

func (s *InterfaceSignal) Online() bool { return s.online.Load() }

func (s *InterfaceSignal) Changes() <-chan struct{} { return s.changes }

// Refresh rescans the interfaces and reports the current reading.
func (s *InterfaceSignal) Refresh() bool {
	online := s.scan()
	if s.online.Swap(online) != online {
		notify(s.changes)
	}
	return online
}

// Run rescans on every tick until ctx is done.
func (s *InterfaceSignal) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Refresh()
		}
	}
}

func (s *InterfaceSignal) scan() bool {
	ifaces, err := s.list()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := s.addrs(iface)
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip := ipNet.IP
			if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsUnspecified() {
				continue
			}
			return true
		}
	}
	return false
}
