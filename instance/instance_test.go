package instance

import (
	"testing"
	"time"
)

func startPrimary(t *testing.T) (*Coordinator, chan string, chan struct{}) {
	t.Helper()
	opened := make(chan string, 4)
	raised := make(chan struct{}, 4)
	c, primary, err := Start(Config{
		Addr:    "127.0.0.1:0",
		OnOpen:  func(path string) { opened <- path },
		OnRaise: func() { raised <- struct{}{} },
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !primary {
		t.Fatalf("ephemeral port bind should be primary")
	}
	t.Cleanup(c.Stop)
	return c, opened, raised
}

func TestSecondaryDetectsPrimary(t *testing.T) {
	c, _, _ := startPrimary(t)

	second, primary, err := Start(Config{Addr: c.Addr()})
	if err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if primary {
		second.Stop()
		t.Fatalf("second bind on a held port must not be primary")
	}
	if second != nil {
		t.Fatalf("secondary must get no coordinator")
	}
}

func TestSendOpenPath(t *testing.T) {
	c, opened, _ := startPrimary(t)

	if err := Send(c.Addr(), "/docs/handoff.pdf"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	select {
	case path := <-opened:
		if path != "/docs/handoff.pdf" {
			t.Fatalf("opened path = %q", path)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("primary never received the open request")
	}
}

func TestSendRaise(t *testing.T) {
	c, opened, raised := startPrimary(t)

	if err := Send(c.Addr(), ""); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	select {
	case <-raised:
	case <-time.After(3 * time.Second):
		t.Fatalf("primary never received the raise request")
	}
	select {
	case path := <-opened:
		t.Fatalf("raise must not open anything, got %q", path)
	default:
	}
}

func TestSequentialSecondaries(t *testing.T) {
	c, opened, _ := startPrimary(t)

	for i, path := range []string{"/a.pdf", "/b.pdf", "/c.pdf"} {
		if err := Send(c.Addr(), path); err != nil {
			t.Fatalf("Send() #%d error = %v", i, err)
		}
	}
	got := map[string]bool{}
	for i := 0; i < 3; i++ {
		select {
		case p := <-opened:
			got[p] = true
		case <-time.After(3 * time.Second):
			t.Fatalf("received %d of 3 open requests", i)
		}
	}
	if !got["/a.pdf"] || !got["/b.pdf"] || !got["/c.pdf"] {
		t.Fatalf("open requests = %v", got)
	}
}

func TestStopReleasesPort(t *testing.T) {
	c, _, _ := startPrimary(t)
	addr := c.Addr()
	c.Stop()

	again, primary, err := Start(Config{Addr: addr})
	if err != nil {
		t.Fatalf("rebind after Stop error = %v", err)
	}
	if !primary {
		t.Fatalf("port should be free after Stop")
	}
	again.Stop()
}
