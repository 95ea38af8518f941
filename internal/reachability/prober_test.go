package reachability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestHTTPProberStatuses(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"ok", http.StatusOK, false},
		{"no content", http.StatusNoContent, false},
		{"redirect", http.StatusFound, false},
		{"server error", http.StatusServiceUnavailable, true},
		{"not found", http.StatusNotFound, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodHead {
					t.Errorf("expected HEAD, got %s", r.Method)
				}
				if tc.status == http.StatusFound {
					w.Header().Set("Location", "/elsewhere")
				}
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			err := NewHTTPProber(srv.URL, time.Second).Probe(context.Background())
			if (err != nil) != tc.wantErr {
				t.Fatalf("probe err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestHTTPProberTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	err := NewHTTPProber(srv.URL, 50*time.Millisecond).Probe(context.Background())
	if err == nil {
		t.Fatalf("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("probe took %s", elapsed)
	}
}

func TestInterfaceSignalScan(t *testing.T) {
	up := net.Interface{Name: "eth0", Flags: net.FlagUp}
	loop := net.Interface{Name: "lo", Flags: net.FlagUp | net.FlagLoopback}
	down := net.Interface{Name: "wlan0"}

	routable := []net.Addr{&net.IPNet{IP: net.ParseIP("192.168.1.20"), Mask: net.CIDRMask(24, 32)}}
	linkLocal := []net.Addr{&net.IPNet{IP: net.ParseIP("fe80::1"), Mask: net.CIDRMask(64, 128)}}

	cases := []struct {
		name   string
		ifaces []net.Interface
		addrs  map[string][]net.Addr
		want   bool
	}{
		{"routable", []net.Interface{loop, up}, map[string][]net.Addr{"eth0": routable}, true},
		{"loopback only", []net.Interface{loop}, map[string][]net.Addr{"lo": routable}, false},
		{"interface down", []net.Interface{down}, map[string][]net.Addr{"wlan0": routable}, false},
		{"link local only", []net.Interface{up}, map[string][]net.Addr{"eth0": linkLocal}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := &InterfaceSignal{
				list:    func() ([]net.Interface, error) { return tc.ifaces, nil },
				addrs:   func(i net.Interface) ([]net.Addr, error) { return tc.addrs[i.Name], nil },
				changes: make(chan struct{}, 1),
			}
			if got := s.Refresh(); got != tc.want {
				t.Fatalf("Refresh() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestInterfaceSignalNotifiesOnFlip(t *testing.T) {
	online := false
	s := &InterfaceSignal{
		list: func() ([]net.Interface, error) {
			if !online {
				return nil, errors.New("no interfaces")
			}
			return []net.Interface{{Name: "eth0", Flags: net.FlagUp}}, nil
		},
		addrs: func(net.Interface) ([]net.Addr, error) {
			return []net.Addr{&net.IPNet{IP: net.ParseIP("10.0.0.5"), Mask: net.CIDRMask(8, 32)}}, nil
		},
		changes: make(chan struct{}, 1),
	}

	s.Refresh()
	select {
	case <-s.Changes():
		t.Fatalf("no change expected")
	default:
	}

	online = true
	if !s.Refresh() {
		t.Fatalf("expected online")
	}
	select {
	case <-s.Changes():
	default:
		t.Fatalf("expected change notification")
	}
}
