// Command channeld is the channel server process: it loads its definition
// and server-data catalogs from the configured data-store search paths,
// connects to persistence, and accepts encrypted client connections on the
// configured TCP port.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/duskforge/channelcore/internal/authflow"
	"github.com/duskforge/channelcore/internal/catalog"
	"github.com/duskforge/channelcore/internal/config"
	"github.com/duskforge/channelcore/internal/datastore"
	"github.com/duskforge/channelcore/internal/dispatch"
	"github.com/duskforge/channelcore/internal/persistence"
	"github.com/duskforge/channelcore/internal/serverdata"
	"github.com/duskforge/channelcore/internal/session"
	"github.com/duskforge/channelcore/internal/wire"
)

const defaultConfigPath = "config/channelserver.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfgPath := defaultConfigPath
	if p := os.Getenv("CHANNELCORE_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))
	slog.Info("channelcore starting", "bind", cfg.BindAddress, "port", cfg.Port, "log_level", cfg.LogLevel)

	store, err := persistence.New(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer store.Close()
	slog.Info("database connected")

	schema, err := persistence.RunMigrations(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database migrations applied", "schema_version", schema.Version, "persisted_objects", schema.ObjectCount)

	ds, err := datastore.New(cfg.DataStorePaths)
	if err != nil {
		return fmt.Errorf("opening data store: %w", err)
	}

	defs, err := catalog.Load(ds)
	if err != nil {
		return fmt.Errorf("loading definition catalog: %w", err)
	}
	slog.Info("definition catalog loaded")

	_, err = serverdata.Load(ds, defs)
	if err != nil {
		return fmt.Errorf("loading server-data catalog: %w", err)
	}
	slog.Info("server-data catalog loaded")

	d := dispatch.New(cfg.DispatchWorkers)
	authflow.New(store).Register(d)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return d.Run(gctx) })
	g.Go(func() error { return serve(gctx, cfg, d) })

	return g.Wait()
}

// serve listens on cfg.BindAddress:cfg.Port and runs the TCP accept loop
// until ctx is canceled.
func serve(ctx context.Context, cfg config.ChannelServer, d *dispatch.Dispatcher) error {
	addr := fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	slog.Info("channel server listening", "address", ln.Addr())

	var nextSessionID atomic.Uint64
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			slog.Error("accept failed", "error", err)
			continue
		}

		if tcpConn, ok := conn.(*net.TCPConn); ok {
			_ = tcpConn.SetKeepAlive(true)
			_ = tcpConn.SetKeepAlivePeriod(30 * time.Second)
		}

		id := nextSessionID.Add(1)
		go acceptSession(ctx, d, cfg, id, conn)
	}
}

// acceptSession runs the handshake for one connection and, once encrypted,
// hands the resulting session to the dispatcher for the rest of its life.
func acceptSession(ctx context.Context, d *dispatch.Dispatcher, cfg config.ChannelServer, id uint64, conn net.Conn) {
	cipher, err := wire.AcceptHandshake(conn)
	if err != nil {
		slog.Warn("handshake failed", "remote", conn.RemoteAddr(), "error", err)
		conn.Close()
		return
	}

	sess := session.New(id, conn, cipher)
	if cfg.KeepAliveInterval > 0 && cfg.SessionTimeout > 0 {
		sess.SetKeepAlive(cfg.KeepAliveInterval, cfg.SessionTimeout)
	}
	sess.NotifyEncrypted()

	d.Serve(ctx, sess)
	sess.Wait()
}

// parseLogLevel converts a string log level to slog.Level, defaulting to
// Info if invalid or empty.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
