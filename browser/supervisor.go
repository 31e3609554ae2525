package browser

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

// Config controls how Chrome is located or launched.
type Config struct {
	Host          string
	Port          int
	ExecPath      string
	Headless      bool
	UserDataDir   string
	UserAgent     string
	Flags         []string
	LaunchTimeout time.Duration
	EvalTimeout   time.Duration
}

// Supervisor owns the Chrome process for a run. It attaches to a browser
// already listening on the debugging port, or launches one.
type Supervisor struct {
	cfg Config
	log *logrus.Entry

	mu          sync.Mutex
	terminated  bool
	launched    bool
	allocCancel context.CancelFunc
	tabCtx      context.Context
	tabCancel   context.CancelFunc

	once sync.Once
}

func NewSupervisor(cfg Config, log *logrus.Entry) *Supervisor {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 9222
	}
	if cfg.LaunchTimeout <= 0 {
		cfg.LaunchTimeout = 30 * time.Second
	}
	return &Supervisor{cfg: cfg, log: log.WithField("component", "chrome")}
}

// EnsureReady returns a session once Chrome answers on the debugging port.
// A launch failure is returned wrapped in ErrLaunch and is not retried.
func (s *Supervisor) EnsureReady(ctx context.Context) (*Session, error) {
	err := Probe(ctx, s.cfg.Host, s.cfg.Port)
	if err == nil {
		s.log.WithField("port", s.cfg.Port).Info("Attaching to running Chrome")
		return s.attach(ctx)
	}
	s.log.WithError(err).Info("Chrome not reachable, launching a new instance")
	return s.launch(ctx)
}

func (s *Supervisor) attach(ctx context.Context) (*Session, error) {
	url := "ws://" + net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)) + "/"
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), url)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	if err := s.own(allocCancel, tabCtx, tabCancel, false); err != nil {
		return nil, err
	}

	if err := s.start(ctx, tabCtx); err != nil {
		if IsConnectionRefused(err) {
			return nil, fmt.Errorf("%w: %w", ErrConnectionRefused, err)
		}
		return nil, fmt.Errorf("%w: attach: %w", ErrUnavailable, err)
	}
	return s.session(tabCtx), nil
}

func (s *Supervisor) launch(ctx context.Context) (*Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("remote-debugging-port", strconv.Itoa(s.cfg.Port)),
		chromedp.Flag("headless", s.cfg.Headless),
	)
	if s.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(s.cfg.ExecPath))
	}
	if s.cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(s.cfg.UserDataDir))
	}
	if s.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(s.cfg.UserAgent))
	}
	for _, f := range s.cfg.Flags {
		name, value, hasValue := strings.Cut(strings.TrimLeft(f, "-"), "=")
		if hasValue {
			opts = append(opts, chromedp.Flag(name, value))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	if err := s.own(allocCancel, tabCtx, tabCancel, true); err != nil {
		return nil, err
	}

	if err := s.start(ctx, tabCtx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLaunch, err)
	}
	if err := s.waitReachable(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLaunch, err)
	}
	s.log.WithField("port", s.cfg.Port).Info("Chrome launched")
	return s.session(tabCtx), nil
}

// own records the contexts so Terminate can release them. It refuses when
// Terminate already ran.
func (s *Supervisor) own(allocCancel context.CancelFunc, tabCtx context.Context, tabCancel context.CancelFunc, launched bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		tabCancel()
		allocCancel()
		return fmt.Errorf("%w: supervisor terminated", ErrUnavailable)
	}
	s.allocCancel = allocCancel
	s.tabCtx = tabCtx
	s.tabCancel = tabCancel
	s.launched = launched
	return nil
}

// start runs an empty action list so chromedp allocates the browser and tab.
// The caller's ctx only bounds the wait.
func (s *Supervisor) start(ctx context.Context, tabCtx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- chromedp.Run(tabCtx) }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Supervisor) waitReachable(ctx context.Context) error {
	deadline := time.NewTimer(s.cfg.LaunchTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for {
		err := Probe(ctx, s.cfg.Host, s.cfg.Port)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("not reachable after %s: %w", s.cfg.LaunchTimeout, err)
		case <-tick.C:
		}
	}
}

func (s *Supervisor) session(tabCtx context.Context) *Session {
	return &Session{
		ctx:     tabCtx,
		timeout: s.cfg.EvalTimeout,
		probe: func(ctx context.Context) error {
			return Probe(ctx, s.cfg.Host, s.cfg.Port)
		},
	}
}

// Terminate closes the browser. It is safe to call more than once and before
// EnsureReady finished; failures are logged only.
func (s *Supervisor) Terminate() {
	s.once.Do(func() {
		s.mu.Lock()
		s.terminated = true
		tabCtx, tabCancel, allocCancel, launched := s.tabCtx, s.tabCancel, s.allocCancel, s.launched
		s.mu.Unlock()

		if tabCtx == nil {
			s.log.Debug("Terminate called before Chrome was started")
			return
		}
		// Cancel already releases the tab when it succeeds. Calling tabCancel
		// after that blocks forever if the browser process never started.
		if err := chromedp.Cancel(tabCtx); err != nil {
			if !errors.Is(err, context.Canceled) {
				s.log.WithError(err).Warn("Failed to close Chrome cleanly")
			}
			tabCancel()
		}
		allocCancel()
		s.log.WithField("launched", launched).Info("Chrome terminated")
	})
}
