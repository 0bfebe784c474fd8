package sysinfo

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"statusmonitor/internal/logger"
	"statusmonitor/internal/models"
)

// ErrNotReady is returned by Network before the first refresh completed.
var ErrNotReady = errors.New("sysinfo: no sample yet")

// WirelessPath is the kernel's wireless statistics table.
const WirelessPath = "/proc/net/wireless"

// AddrFunc returns the IPv4 address of an interface, or "" when it has none.
type AddrFunc func(iface string) (string, error)

// SignalFunc returns the signal level of a wireless interface in dBm.
type SignalFunc func(iface string) (int, error)

// Config names the interfaces to watch and how often to refresh.
type Config struct {
	WiFiInterface     string
	EthernetInterface string
	Interval          time.Duration
}

// Probe periodically samples interface addresses and WiFi signal strength.
type Probe struct {
	cfg    Config
	addr   AddrFunc
	signal SignalFunc
	log    logger.Logger

	mu     sync.RWMutex
	latest *models.Network

	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New creates a probe. Nil functions use the host's network stack and
// /proc/net/wireless.
func New(cfg Config, addr AddrFunc, signal SignalFunc, log logger.Logger) *Probe {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if addr == nil {
		addr = InterfaceIPv4
	}
	if signal == nil {
		signal = func(iface string) (int, error) {
			return ReadSignal(WirelessPath, iface)
		}
	}
	if log == nil {
		log = logger.Noop()
	}
	return &Probe{
		cfg:    cfg,
		addr:   addr,
		signal: signal,
		log:    log,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start takes one sample synchronously and keeps refreshing in the background.
func (p *Probe) Start() {
	p.Refresh()
	p.started.Store(true)
	go p.run()
}

// Stop requests the refresh loop to terminate and waits for it if it was
// started.
func (p *Probe) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	if p.started.Load() {
		<-p.doneCh
	}
}

// Network returns the most recent sample.
func (p *Probe) Network() (models.Network, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.latest == nil {
		return models.Network{}, ErrNotReady
	}
	return *p.latest, nil
}

// Refresh takes a new sample. Lookup failures leave the affected field empty.
func (p *Probe) Refresh() {
	sample := models.Network{Interface: p.cfg.WiFiInterface}

	if ip, err := p.addr(p.cfg.WiFiInterface); err != nil {
		p.log.Debug("wifi address on %s: %v", p.cfg.WiFiInterface, err)
	} else {
		sample.WiFiIP = models.StringPtr(ip)
	}

	if ip, err := p.addr(p.cfg.EthernetInterface); err != nil {
		p.log.Debug("ethernet address on %s: %v", p.cfg.EthernetInterface, err)
	} else {
		sample.EthernetIP = models.StringPtr(ip)
	}

	if level, err := p.signal(p.cfg.WiFiInterface); err != nil {
		p.log.Debug("wifi signal on %s: %v", p.cfg.WiFiInterface, err)
	} else {
		sample.WiFiSignal = level
	}

	p.mu.Lock()
	p.latest = &sample
	p.mu.Unlock()
}

func (p *Probe) run() {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.Refresh()
		case <-p.stopCh:
			return
		}
	}
}

// InterfaceIPv4 returns the first IPv4 address assigned to iface.
func InterfaceIPv4(iface string) (string, error) {
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		return "", fmt.Errorf("lookup interface: %w", err)
	}
	addrs, err := ifi.Addrs()
	if err != nil {
		return "", fmt.Errorf("list addresses: %w", err)
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			return v4.String(), nil
		}
	}
	return "", nil
}

// ReadSignal reads the signal level of iface from a wireless table file.
func ReadSignal(path, iface string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read wireless table: %w", err)
	}
	return ParseWirelessLevel(string(data), iface)
}
