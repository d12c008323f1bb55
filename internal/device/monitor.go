package device

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"github.com/mesler1/dadcam/internal/logging"
)

// Handler is called for every partition insertion, one at a time.
type Handler func(ctx context.Context, dev string)

// Monitor listens for udev partition add events over netlink.
type Monitor struct {
	logger  *slog.Logger
	handler Handler

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	done    chan struct{}
	running bool
}

// NewMonitor creates a monitor that calls handler for each new partition.
func NewMonitor(logger *slog.Logger, handler Handler) *Monitor {
	return &Monitor{
		logger:  logging.NewComponentLogger(logger, "netlink-monitor"),
		handler: handler,
	}
}

// Start connects to the udev netlink socket and begins dispatching events.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		return fmt.Errorf("connect udev netlink socket: %w", err)
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.done = make(chan struct{})
	m.running = true

	go m.monitorLoop(ctx, conn, m.quit, m.done)

	m.logger.Info("netlink monitor started",
		logging.String(logging.FieldEventType, "netlink_monitor_started"),
	)
	return nil
}

// Stop shuts down the monitor and waits for an in-flight handler to return.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	close(m.quit)
	done := m.done
	conn := m.conn
	m.quit, m.done, m.conn = nil, nil, nil
	m.running = false
	m.mu.Unlock()

	<-done
	_ = conn.Close()

	m.logger.Info("netlink monitor stopped",
		logging.String(logging.FieldEventType, "netlink_monitor_stopped"),
	)
}

// Running reports whether the monitor is active.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) monitorLoop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, partitionMatcher())
	defer close(monitorQuit)

	for {
		select {
		case <-ctx.Done():
			return
		case <-quit:
			return
		case uevent := <-queue:
			m.handleEvent(ctx, uevent)
		case err := <-errs:
			logging.WarnWithContext(m.logger, "netlink monitor error", "netlink_monitor_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "card insertions may be missed"),
			)
		}
	}
}

// partitionMatcher matches ACTION=add, SUBSYSTEM=block, DEVTYPE=partition.
func partitionMatcher() netlink.Matcher {
	action := "add"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "block",
			"DEVTYPE":   "partition",
		},
	})
	return rules
}

func (m *Monitor) handleEvent(ctx context.Context, uevent netlink.UEvent) {
	dev := deviceName(uevent)
	if dev == "" {
		m.logger.Debug("ignoring event without device name",
			logging.String("action", string(uevent.Action)),
			logging.String("kobj", uevent.KObj),
		)
		return
	}

	m.logger.Info("partition added",
		logging.String(logging.FieldEventType, "partition_added"),
		logging.String(logging.FieldDevice, dev),
	)
	if m.handler != nil {
		m.handler(ctx, dev)
	}
}

// deviceName gets the device path from a uevent.
func deviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		if !strings.HasPrefix(devname, "/") {
			devname = "/dev/" + devname
		}
		return devname
	}

	// Fall back to the last DEVPATH element, e.g. /devices/.../block/sdb/sdb1.
	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	return "/dev/" + parts[len(parts)-1]
}

// WaitForInsertion blocks until the next partition is added and returns its
// device path.
func WaitForInsertion(ctx context.Context, logger *slog.Logger) (string, error) {
	found := make(chan string, 1)
	monitor := NewMonitor(logger, func(_ context.Context, dev string) {
		select {
		case found <- dev:
		default:
		}
	})
	if err := monitor.Start(ctx); err != nil {
		return "", err
	}
	defer monitor.Stop()

	select {
	case dev := <-found:
		return dev, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
