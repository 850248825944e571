// Package nfs wires the TCP listener, connection lifecycle, and
// graceful shutdown around the NFSv3 and MOUNT protocol handlers,
// trimmed to the single-version, single-export surface SBFS serves: no
// NFSv4 pseudo-filesystem, no NLM/NSM lock-recovery machinery, no
// portmap registration.
package nfs

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shamirnfs/shamirnfs/internal/logger"
	"github.com/shamirnfs/shamirnfs/internal/nfs/mount"
	v3 "github.com/shamirnfs/shamirnfs/internal/nfs/v3"
)

// TimeoutsConfig groups connection timeout knobs.
type TimeoutsConfig struct {
	Read     time.Duration `mapstructure:"read" validate:"min=0"`
	Write    time.Duration `mapstructure:"write" validate:"min=0"`
	Idle     time.Duration `mapstructure:"idle" validate:"min=0"`
	Shutdown time.Duration `mapstructure:"shutdown" validate:"required,gt=0"`
}

// Config holds the NFS adapter's own configuration subtree: port,
// max_connections and timeouts.
type Config struct {
	Port           int            `mapstructure:"port" validate:"min=0,max=65535"`
	MaxConnections int            `mapstructure:"max_connections" validate:"min=0"`
	Timeouts       TimeoutsConfig `mapstructure:"timeouts"`
}

func (c *Config) applyDefaults() {
	if c.Port <= 0 {
		c.Port = 2049
	}
	if c.Timeouts.Read == 0 {
		c.Timeouts.Read = 5 * time.Minute
	}
	if c.Timeouts.Write == 0 {
		c.Timeouts.Write = 30 * time.Second
	}
	if c.Timeouts.Idle == 0 {
		c.Timeouts.Idle = 5 * time.Minute
	}
	if c.Timeouts.Shutdown == 0 {
		c.Timeouts.Shutdown = 30 * time.Second
	}
}

// Adapter runs the TCP accept loop and owns every live connection's
// lifecycle, including graceful shutdown on context cancellation.
type Adapter struct {
	config Config

	v3Handler    *v3.Handler
	mountHandler *mount.Handler

	listenerMu sync.RWMutex
	listener   net.Listener

	connSemaphore chan struct{}
	activeConns   sync.WaitGroup
	connCount     atomic.Int32

	activeConnections sync.Map // remoteAddr string -> net.Conn

	shutdownOnce sync.Once
	shutdown     chan struct{}

	listenerReady chan struct{}
}

func New(cfg Config, v3Handler *v3.Handler, mountHandler *mount.Handler) *Adapter {
	cfg.applyDefaults()

	var sem chan struct{}
	if cfg.MaxConnections > 0 {
		sem = make(chan struct{}, cfg.MaxConnections)
	}

	return &Adapter{
		config:        cfg,
		v3Handler:     v3Handler,
		mountHandler:  mountHandler,
		connSemaphore: sem,
		shutdown:      make(chan struct{}),
		listenerReady: make(chan struct{}),
	}
}

// Serve accepts connections until ctx is cancelled, then drains active
// connections up to Timeouts.Shutdown before returning.
func (a *Adapter) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", a.config.Port))
	if err != nil {
		return fmt.Errorf("nfs: listen on port %d: %w", a.config.Port, err)
	}

	a.listenerMu.Lock()
	a.listener = listener
	a.listenerMu.Unlock()
	close(a.listenerReady)

	logger.Info("nfs server listening", "port", a.config.Port)

	go func() {
		<-ctx.Done()
		a.initiateShutdown()
	}()

	for {
		if a.connSemaphore != nil {
			select {
			case a.connSemaphore <- struct{}{}:
			case <-a.shutdown:
				return a.gracefulShutdown()
			}
		}

		tcpConn, err := listener.Accept()
		if err != nil {
			if a.connSemaphore != nil {
				<-a.connSemaphore
			}
			select {
			case <-a.shutdown:
				return a.gracefulShutdown()
			default:
				logger.Debug("nfs accept error", "error", err)
				continue
			}
		}

		a.activeConns.Add(1)
		a.connCount.Add(1)
		addr := tcpConn.RemoteAddr().String()
		a.activeConnections.Store(addr, tcpConn)

		conn := newConnection(a, tcpConn)
		go func() {
			defer func() {
				a.activeConnections.Delete(addr)
				a.activeConns.Done()
				a.connCount.Add(-1)
				if a.connSemaphore != nil {
					<-a.connSemaphore
				}
			}()
			conn.serve(ctx)
		}()
	}
}

func (a *Adapter) initiateShutdown() {
	a.shutdownOnce.Do(func() {
		close(a.shutdown)
		a.listenerMu.Lock()
		if a.listener != nil {
			_ = a.listener.Close()
		}
		a.listenerMu.Unlock()

		deadline := time.Now().Add(100 * time.Millisecond)
		a.activeConnections.Range(func(_, v any) bool {
			if c, ok := v.(net.Conn); ok {
				_ = c.SetReadDeadline(deadline)
			}
			return true
		})
	})
}

func (a *Adapter) gracefulShutdown() error {
	done := make(chan struct{})
	go func() {
		a.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(a.config.Timeouts.Shutdown):
		remaining := a.connCount.Load()
		a.activeConnections.Range(func(_, v any) bool {
			if c, ok := v.(net.Conn); ok {
				_ = c.Close()
			}
			return true
		})
		return fmt.Errorf("nfs: shutdown timeout, %d connections force-closed", remaining)
	}
}

// Addr blocks until the listener is bound and returns its address.
func (a *Adapter) Addr() string {
	<-a.listenerReady
	a.listenerMu.RLock()
	defer a.listenerMu.RUnlock()
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}
