// Package daemon runs the event loop that owns every mutable piece of the
// wallpaper engine. Wayland events, decode results, rotation timers, config
// reloads and control requests are all serviced from one goroutine, so the
// registry and the GL surfaces never need locks.
package daemon

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jonboulle/clockwork"

	"github.com/layerpaper/layerpaper"
	"github.com/layerpaper/layerpaper/internal/config"
	"github.com/layerpaper/layerpaper/internal/decode"
	"github.com/layerpaper/layerpaper/internal/ipc"
	"github.com/layerpaper/layerpaper/internal/registry"
	"github.com/layerpaper/layerpaper/internal/wayland"
)

const defaultFramerate = 60

type reqResult struct {
	data any
	err  error
}

type request struct {
	run  func() (any, error)
	done chan reqResult
}

// Daemon wires the connection, the decode pool, the registry and the control
// socket together and runs them to completion.
type Daemon struct {
	conn    *wayland.Conn
	store   *config.Store
	pool    *decode.Pool
	reg     *registry.Registry
	watcher *config.Watcher
	server  *ipc.Server

	framerate int

	requests chan request
	stopC    chan struct{}
	stopOnce sync.Once
}

// New connects to the compositor and builds the daemon. The config file must
// parse; a broken config at startup is a startup failure, not something to
// limp along without.
func New(configPath string, framerate int) (*Daemon, error) {
	if framerate <= 0 {
		framerate = defaultFramerate
	}

	store := config.NewStore(configPath)
	if _, err := store.Load(); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	conn, err := wayland.Connect()
	if err != nil {
		return nil, err
	}

	watcher, err := config.NewWatcher(configPath)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to watch config: %w", err)
	}

	pool := decode.NewPool(0, decode.StdDecoder{})

	d := &Daemon{
		conn:      conn,
		store:     store,
		pool:      pool,
		watcher:   watcher,
		framerate: framerate,
		requests:  make(chan request),
		stopC:     make(chan struct{}),
	}
	d.reg = registry.New(store, pool, conn, clockwork.NewRealClock(), listImages)
	d.server = ipc.NewServer(d)

	return d, nil
}

// Run blocks until the daemon is stopped or the compositor goes away. A
// compositor loss is returned as an error so the process exits non-zero.
func (d *Daemon) Run() error {
	defer d.cleanup()

	go func() {
		if err := d.server.Start(); err != nil {
			log.Errorf("control socket closed: %v", err)
		}
	}()
	log.Infof("control socket listening on %s", d.server.Path())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	// Outputs discovered during the connect roundtrips.
	d.handleEvents(d.conn.Drain())

	var ticker *time.Ticker
	var frameC <-chan time.Time
	frameInterval := time.Second / time.Duration(d.framerate)

	stopTicker := func() {
		if ticker != nil {
			ticker.Stop()
			ticker = nil
			frameC = nil
		}
	}
	defer stopTicker()

	for {
		select {
		case s := <-sig:
			log.Infof("received %v, shutting down", s)
			return nil

		case <-d.stopC:
			log.Info("stop requested, shutting down")
			return nil

		case <-d.conn.Ready():
			evs, err := d.conn.Dispatch()
			d.handleEvents(evs)
			if err != nil {
				return err
			}

		case res := <-d.pool.Results():
			d.reg.OnDecodeResult(res)

		case id := <-d.reg.RotationC():
			d.reg.OnRotation(id)

		case <-d.watcher.C:
			if err := d.reloadConfig(); err != nil {
				log.Warnf("config reload failed, keeping previous config: %v", err)
			}

		case req := <-d.requests:
			data, err := req.run()
			req.done <- reqResult{data: data, err: err}

		case <-frameC:
			if !d.reg.RenderFrame() {
				stopTicker()
			}
			d.conn.Flush()
		}

		if ticker == nil && d.reg.AnyAnimating() {
			ticker = time.NewTicker(frameInterval)
			frameC = ticker.C
		}
	}
}

func (d *Daemon) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.server.Shutdown(ctx); err != nil {
		log.Debugf("control socket shutdown: %v", err)
	}
	if err := d.watcher.Close(); err != nil {
		log.Debugf("config watcher close: %v", err)
	}
	d.reg.CloseAll()
	d.pool.Close()
	d.conn.Close()
}

func (d *Daemon) handleEvents(evs []wayland.Event) {
	for _, ev := range evs {
		switch ev := ev.(type) {
		case wayland.OutputAdded:
			log.Infof("output added: %s (%dx%d@%dx)", ev.Name, ev.Geometry.Width, ev.Geometry.Height, ev.Geometry.Scale)
			d.reg.OnOutputAdded(ev.ID, ev.Name, ev.Geometry)
		case wayland.OutputChanged:
			log.Infof("output changed: id=%d (%dx%d@%dx)", ev.ID, ev.Geometry.Width, ev.Geometry.Height, ev.Geometry.Scale)
			d.reg.OnOutputChanged(ev.ID, ev.Geometry)
		case wayland.OutputRemoved:
			log.Infof("output removed: id=%d", ev.ID)
			d.reg.OnOutputRemoved(ev.ID)
		}
	}
}

func (d *Daemon) reloadConfig() error {
	cfg, err := d.store.Load()
	if err != nil {
		return err
	}
	log.Info("config reloaded")
	d.reg.ApplyConfig(cfg)
	return nil
}

// call runs fn on the event loop and waits for its answer.
func (d *Daemon) call(fn func() (any, error)) (any, error) {
	req := request{run: fn, done: make(chan reqResult, 1)}
	select {
	case d.requests <- req:
	case <-d.stopC:
		return nil, fmt.Errorf("daemon is shutting down")
	}
	res := <-req.done
	return res.data, res.err
}

var _ ipc.Manager = (*Daemon)(nil)

func (d *Daemon) Status() ipc.StatusPayload {
	data, _ := d.call(func() (any, error) {
		return ipc.StatusPayload{
			Version: layerpaper.Version,
			PID:     os.Getpid(),
			Socket:  d.server.Path(),
			Config:  d.store.Path(),
			Outputs: d.reg.Snapshot(),
		}, nil
	})
	payload, ok := data.(ipc.StatusPayload)
	if !ok {
		return ipc.StatusPayload{Version: layerpaper.Version, PID: os.Getpid()}
	}
	return payload
}

func (d *Daemon) GetWallpaper(output string) ([]registry.OutputStatus, error) {
	data, err := d.call(func() (any, error) {
		snap := d.reg.Snapshot()
		if output == "" {
			return snap, nil
		}
		for _, s := range snap {
			if s.Name == output {
				return []registry.OutputStatus{s}, nil
			}
		}
		return nil, fmt.Errorf("%w: %s", registry.ErrNoSuchOutput, output)
	})
	if err != nil {
		return nil, err
	}
	return data.([]registry.OutputStatus), nil
}

func (d *Daemon) SetWallpaper(output, path string) error {
	_, err := d.call(func() (any, error) {
		return nil, d.reg.SetWallpaper(output, path)
	})
	return err
}

func (d *Daemon) Pause(output string) error {
	_, err := d.call(func() (any, error) {
		return nil, d.reg.Pause(output)
	})
	return err
}

func (d *Daemon) Resume(output string) error {
	_, err := d.call(func() (any, error) {
		return nil, d.reg.Resume(output)
	})
	return err
}

func (d *Daemon) ReloadConfig() error {
	_, err := d.call(func() (any, error) {
		return nil, d.reloadConfig()
	})
	return err
}

func (d *Daemon) Stop() {
	d.stopOnce.Do(func() { close(d.stopC) })
}
