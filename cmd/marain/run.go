package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/aeolun/marain/pkg/client"
	"github.com/aeolun/marain/pkg/client/app"
	"github.com/aeolun/marain/pkg/client/command"
	"github.com/aeolun/marain/pkg/client/dispatch"
	"github.com/aeolun/marain/pkg/client/events"
	"github.com/aeolun/marain/pkg/client/ui"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
)

var errNoTerminal = errors.New("marain needs an interactive terminal")

func run(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return errNoTerminal
	}

	cfg, err := client.LoadConfig(configPath)
	if err != nil {
		return err
	}

	addr, err := serverAddress(cfg, args)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Client.LogPath, verbose)
	if err != nil {
		return err
	}
	defer logger.Sync()

	// the client works without history, it just forgets names and rooms
	var state client.StateStore
	if path, err := client.ExpandPath(cfg.Client.StatePath); err != nil {
		logger.Warn("state disabled", zap.Error(err))
	} else if st, err := client.OpenState(path); err != nil {
		logger.Warn("state disabled", zap.String("path", path), zap.Error(err))
	} else {
		state = st
		defer st.Close()
	}

	name := resolveUsername(username, cfg, state)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := client.NewMetrics()
	if cfg.Metrics.Addr != "" {
		shutdown := serveMetrics(cfg.Metrics.Addr, metrics, logger)
		defer shutdown()
	}

	fmt.Fprintf(os.Stderr, "Connecting to %s as %s...\n", addr, name)
	session, login, err := client.Handshake(ctx, addr, name, client.Options{
		Logger:   logger.Named("session"),
		Metrics:  metrics,
		Throttle: cfg.Client.ThrottleBytes,
	})
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}
	defer session.Close()

	if state != nil {
		if err := state.SaveSuccessfulConnection(addr, name); err != nil {
			logger.Warn("failed to save connection", zap.Error(err))
		}
	}

	a := app.New(app.Options{Username: name, Logger: logger})
	a.SetSession(login.Token, login.SharedSecret)

	prog := ui.NewProgram(ctx, logger)
	mux := events.New(events.Config{
		Input:          prog.Input(),
		Frames:         session,
		UpdateInterval: cfg.UpdateInterval(),
		RenderInterval: cfg.RenderInterval(),
		Logger:         logger,
	})

	var notifier dispatch.Notifier
	if cfg.Client.Notifications {
		notifier = client.NewDesktopNotifier("", logger)
	}

	disp := dispatch.New(dispatch.Config{
		App:           a,
		Events:        mux,
		Sender:        session,
		Renderer:      prog,
		Notifier:      notifier,
		Metrics:       metrics,
		State:         state,
		ServerAddress: addr,
		Logger:        logger,
	})

	if err := mux.Start(ctx); err != nil {
		return err
	}
	defer mux.Stop()

	if state != nil {
		if room, err := state.GetLastRoom(addr); err != nil {
			logger.Warn("failed to read last room", zap.Error(err))
		} else if room != "" {
			logger.Info("rejoining room", zap.String("room", room))
			disp.Execute(command.MoveRoomsTo(room))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// closing the window stops the event stream, which ends the dispatcher
		defer mux.Stop()
		return prog.Run()
	})
	g.Go(func() error {
		defer prog.Quit()
		return disp.Run(gctx)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.Info("client exited", zap.Error(err))
	return err
}

// serverAddress picks host and port from the arguments, falling back to
// the config file
func serverAddress(cfg client.Config, args []string) (string, error) {
	host := cfg.Server.Host
	port := cfg.Server.Port
	if len(args) > 0 {
		host = args[0]
	}
	if len(args) > 1 {
		p, err := strconv.Atoi(args[1])
		if err != nil || p <= 0 || p > 65535 {
			return "", fmt.Errorf("invalid port %q", args[1])
		}
		port = p
	}
	if host == "" {
		return "", errors.New("no server host given")
	}
	// a full URL carries its own port
	if strings.Contains(host, "://") {
		return host, nil
	}
	if port <= 0 {
		port = client.DefaultPort
	}
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}

// resolveUsername prefers the flag, then the config file, then the name
// used last time, and finally makes one up
func resolveUsername(flag string, cfg client.Config, state client.StateStore) string {
	if name := strings.TrimSpace(flag); name != "" {
		return name
	}
	if name := strings.TrimSpace(cfg.User.Username); name != "" {
		return name
	}
	if state != nil {
		if name := state.GetLastUsername(); name != "" {
			return name
		}
	}
	return "guest-" + uuid.NewString()[:8]
}

// newLogger writes JSON logs to a file; the terminal belongs to the UI
func newLogger(path string, debug bool) (*zap.Logger, error) {
	path, err := client.ExpandPath(path)
	if err != nil {
		return nil, err
	}
	if path == "" {
		return zap.NewNop(), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	config := zap.NewProductionConfig()
	config.OutputPaths = []string{path}
	config.ErrorOutputPaths = []string{path}
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if debug {
		config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// serveMetrics exposes the client registry on addr until the returned
// function is called
func serveMetrics(addr string, metrics *client.Metrics, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("metrics listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
