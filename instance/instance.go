// Package instance enforces a single running viewer per machine through an
// exclusive localhost TCP port. The first process to bind becomes primary and
// serves an accept loop; any later process detects the bind failure, hands its
// file path (or a raise request) to the primary over the socket and exits.
package instance

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	"github.com/wudi/pdfview/observability"
)

// DefaultPort is the coordination port. Configurable for running isolated
// profiles side by side.
const DefaultPort = 48612

// DefaultAddr is the loopback address the coordinator binds by default.
var DefaultAddr = fmt.Sprintf("127.0.0.1:%d", DefaultPort)

// raiseSentinel asks the primary to bring its window to the front without
// opening anything.
const raiseSentinel = "\x00raise\x00"

const dialTimeout = 2 * time.Second

// Config wires the coordinator. Zero values take defaults; the callbacks are
// invoked from the accept-loop goroutine.
type Config struct {
	Addr    string
	Logger  observability.Logger
	OnOpen  func(path string)
	OnRaise func()
}

// Coordinator is the primary side: the bound socket plus its accept loop.
type Coordinator struct {
	ln      net.Listener
	logger  observability.Logger
	onOpen  func(path string)
	onRaise func()

	running atomic.Bool
	wg      sync.WaitGroup
}

// Start attempts to become the primary instance. primary is false when the
// port is already held by another process; the caller should then use Send
// and exit. The returned Coordinator is nil unless primary.
func Start(cfg Config) (*Coordinator, bool, error) {
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("bind instance port: %w", err)
	}

	c := &Coordinator{
		// One peer at a time; messages are tiny, so serializing them keeps
		// the loop trivial.
		ln:      netutil.LimitListener(ln, 1),
		logger:  cfg.Logger,
		onOpen:  cfg.OnOpen,
		onRaise: cfg.OnRaise,
	}
	c.running.Store(true)
	c.wg.Add(1)
	go c.acceptLoop()
	cfg.Logger.Info("primary instance", observability.String("addr", ln.Addr().String()))
	return c, true, nil
}

// Addr returns the bound address, usable as the Send target.
func (c *Coordinator) Addr() string { return c.ln.Addr().String() }

// Stop terminates the accept loop and releases the port.
func (c *Coordinator) Stop() {
	if !c.running.CompareAndSwap(true, false) {
		return
	}
	c.ln.Close()
	c.wg.Wait()
}

func (c *Coordinator) acceptLoop() {
	defer c.wg.Done()
	for {
		conn, err := c.ln.Accept()
		if err != nil {
			if c.running.Load() {
				c.logger.Warn("instance accept failed", observability.Error("err", err))
				continue
			}
			return
		}
		c.handle(conn)
	}
}

func (c *Coordinator) handle(conn net.Conn) {
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(dialTimeout))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		c.logger.Warn("instance message unreadable", observability.Error("err", err))
		return
	}
	msg := strings.TrimRight(line, "\n")
	switch {
	case msg == raiseSentinel:
		c.logger.Debug("raise requested by secondary")
		if c.onRaise != nil {
			c.onRaise()
		}
	case msg != "":
		c.logger.Info("open requested by secondary", observability.String("path", msg))
		if c.onOpen != nil {
			c.onOpen(msg)
		}
	}
}

// Send hands a message to the primary at addr: a non-empty absolute file path
// asks it to open that file, an empty path just raises the primary window.
func Send(addr, path string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	msg := path
	if msg == "" {
		msg = raiseSentinel
	}
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return fmt.Errorf("reach primary instance: %w", err)
	}
	defer conn.Close()
	conn.SetWriteDeadline(time.Now().Add(dialTimeout))
	if _, err := conn.Write([]byte(msg + "\n")); err != nil {
		return fmt.Errorf("send to primary instance: %w", err)
	}
	return nil
}
