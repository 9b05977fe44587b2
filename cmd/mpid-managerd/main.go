package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"xdao.co/mpid/config"
	"xdao.co/mpid/internal/logging"
	"xdao.co/mpid/manager"
	"xdao.co/mpid/transport/grpcmgr"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stderr))
}

func run(ctx context.Context, args []string, errOut io.Writer) int {
	fs := flag.NewFlagSet("mpid-managerd", flag.ContinueOnError)
	fs.SetOutput(errOut)
	configPath := fs.String("config", "", "JSON config file")
	listen := fs.String("listen", "", "listen address (overrides config)")
	logLevel := fs.String("log-level", "", "debug, info, warn or error (overrides config)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadFile(*configPath)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	log, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	defer func() { _ = log.Sync() }()

	lis, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		log.Error("listen failed", zap.String("addr", cfg.Listen), zap.Error(err))
		return 1
	}
	if err := serve(ctx, cfg, log, lis); err != nil {
		log.Error("server stopped", zap.Error(err))
		return 1
	}
	return 0
}

// serve runs the manager on lis until ctx is done, then drains in-flight calls.
func serve(ctx context.Context, cfg config.Config, log *zap.Logger, lis net.Listener) error {
	mgr := manager.New(manager.Options{
		OutboxCapacity: cfg.OutboxCapacity,
		InboxCapacity:  cfg.InboxCapacity,
		Logger:         log,
	})
	pubs, err := cfg.PublicKeys()
	if err != nil {
		return err
	}
	for _, pub := range pubs {
		if _, err := mgr.Register(pub); err != nil {
			return err
		}
	}

	opts := []grpc.ServerOption{grpc.UnaryInterceptor(grpcmgr.UnaryLogger(log.Named("grpc")))}
	if cfg.MaxMsgBytes > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(cfg.MaxMsgBytes), grpc.MaxSendMsgSize(cfg.MaxMsgBytes))
	}
	s := grpc.NewServer(opts...)
	grpcmgr.RegisterManagerServer(s, &grpcmgr.Server{Manager: mgr})

	errc := make(chan error, 1)
	go func() { errc <- s.Serve(lis) }()
	log.Info("mpid-managerd listening",
		zap.String("addr", lis.Addr().String()),
		zap.Int("accounts", len(pubs)),
		zap.Int64("outbox_capacity", cfg.OutboxCapacity),
		zap.Int64("inbox_capacity", cfg.InboxCapacity))

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		s.GracefulStop()
		return nil
	case err := <-errc:
		if errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return err
	}
}
