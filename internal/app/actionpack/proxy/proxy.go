package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/dennishilgert/actionpack/internal/app/actionpack"
	"github.com/dennishilgert/actionpack/internal/app/actionpack/publisher"
	"github.com/dennishilgert/actionpack/internal/app/actionpack/request"
	"github.com/dennishilgert/actionpack/pkg/concurrency/worker"
	"github.com/dennishilgert/actionpack/pkg/health"
	"github.com/dennishilgert/actionpack/pkg/logger"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

var log = logger.NewLogger("actionpack.proxy")

// ActivationSentinel is written to stdout and stderr after every activation so the
// platform can split the log streams of consecutive activations.
const ActivationSentinel = "XXX_THE_END_OF_A_WHISK_ACTIVATION_XXX"

// RunRequest is the body of a /run call of the action proxy protocol.
type RunRequest struct {
	Value        request.Request `json:"value"`
	ApiHost      string          `json:"api_host,omitempty"`
	ApiKey       string          `json:"api_key,omitempty"`
	Namespace    string          `json:"namespace,omitempty"`
	ActionName   string          `json:"action_name,omitempty"`
	ActivationId string          `json:"activation_id,omitempty"`
	Deadline     int64           `json:"deadline,omitempty"`
}

type Options struct {
	Port int

	// Credentials are used for every activation that does not carry its own.
	Credentials publisher.Credentials

	// BuildTimeout bounds a single activation. Zero disables the deadline.
	BuildTimeout time.Duration

	// HealthProvider is told when the proxy listens. /healthz reports unhealthy until all
	// of its targets are ready. Without a provider the proxy is always healthy.
	HealthProvider health.Provider

	// MetricsHandler serves /metrics when set.
	MetricsHandler http.Handler

	// LogWriters receive the activation sentinel. Defaults to stdout and stderr.
	LogWriters []io.Writer
}

type Server interface {
	Run(ctx context.Context) error
	Ready(ctx context.Context) error
	Handler() http.Handler
}

type proxyServer struct {
	port          int
	credentials   publisher.Credentials
	buildTimeout  time.Duration
	logWriters    []io.Writer
	health        health.Provider
	service       actionpack.Service
	workerManager worker.WorkerManager
	e             *echo.Echo
	readyCh       chan struct{}
	running       atomic.Bool
}

// NewServer creates the action proxy. Builds are executed by the worker manager, which
// must be running for /run to make progress.
func NewServer(service actionpack.Service, workerManager worker.WorkerManager, opts Options) Server {
	logWriters := opts.LogWriters
	if logWriters == nil {
		logWriters = []io.Writer{os.Stdout, os.Stderr}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &proxyServer{
		port:          opts.Port,
		credentials:   opts.Credentials,
		buildTimeout:  opts.BuildTimeout,
		logWriters:    logWriters,
		health:        opts.HealthProvider,
		service:       service,
		workerManager: workerManager,
		e:             e,
		readyCh:       make(chan struct{}),
	}

	e.POST("/init", s.handleInit)
	e.POST("/run", s.handleRun)
	e.GET("/healthz", s.handleHealth)
	if opts.MetricsHandler != nil {
		e.GET("/metrics", echo.WrapHandler(opts.MetricsHandler))
	}
	return s
}

func (s *proxyServer) Handler() http.Handler {
	return s.e
}

// Run serves the proxy until the context is done.
func (s *proxyServer) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("proxy server is already running")
	}

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("error while starting tcp listener: %w", err)
	}
	s.e.Listener = lis
	log.Infof("action proxy listening on %s", lis.Addr())
	close(s.readyCh)
	if s.health != nil {
		s.health.Ready()
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)

		if err := s.e.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down action proxy")
	case err := <-errCh:
		if err != nil {
			log.Errorf("error while serving action proxy: %v", err)
			serveErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.e.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		log.Warn("action proxy did not stop gracefully in time")
		return fmt.Errorf("error while shutting down action proxy: %w", err)
	}
	return serveErr
}

// Ready waits until the proxy is listening or the context is done.
func (s *proxyServer) Ready(ctx context.Context) error {
	select {
	case <-s.readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleInit acknowledges the initialization. The build code is part of the proxy.
func (s *proxyServer) handleInit(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

func (s *proxyServer) handleHealth(c echo.Context) error {
	if s.health != nil && !s.health.Healthy() {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *proxyServer) handleRun(c echo.Context) error {
	defer s.writeSentinel()

	var runRequest RunRequest
	if err := c.Bind(&runRequest); err != nil {
		return c.JSON(http.StatusBadRequest, actionpack.Result{Error: "invalid activation payload: " + err.Error()})
	}
	if runRequest.ActivationId != "" {
		log.Infof("running activation %s", runRequest.ActivationId)
	}

	credentials := s.credentials.Override(publisher.Credentials{
		ApiKey:  runRequest.ApiKey,
		ApiHost: runRequest.ApiHost,
	})

	ctx := c.Request().Context()
	resultCh := make(chan actionpack.Result, 1)
	task := worker.NewTask(func(ctx context.Context) (actionpack.Result, error) {
		return s.service.Build(ctx, runRequest.Value, credentials), nil
	}).WithTimeout(s.buildTimeout).Callback(func(result actionpack.Result, _ error) {
		resultCh <- result
	})
	if err := s.workerManager.Add(ctx, task); err != nil {
		return c.JSON(http.StatusServiceUnavailable, actionpack.Result{Error: "action proxy is not accepting builds: " + err.Error()})
	}

	select {
	case result := <-resultCh:
		return c.JSON(http.StatusOK, result)
	case <-ctx.Done():
		return c.JSON(http.StatusServiceUnavailable, actionpack.Result{Error: "activation cancelled: " + ctx.Err().Error()})
	}
}

func (s *proxyServer) writeSentinel() {
	for _, w := range s.logWriters {
		fmt.Fprintln(w, ActivationSentinel)
	}
}
