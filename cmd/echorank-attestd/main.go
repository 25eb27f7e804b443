package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"echorank.dev/attest/api/grpcapi"
	"echorank.dev/attest/api/httpapi"
	"echorank.dev/attest/archive"
	"echorank.dev/attest/attest"
	"echorank.dev/attest/config"
	"echorank.dev/attest/keys"
	"echorank.dev/attest/logging"
	"echorank.dev/attest/metrics"
	"echorank.dev/attest/publish"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Getenv, os.Stderr))
}

func run(ctx context.Context, args []string, getenv func(string) string, errOut io.Writer) int {
	fs := flag.NewFlagSet("echorank-attestd", flag.ContinueOnError)
	fs.SetOutput(errOut)
	configPath := fs.String("config", "", "YAML configuration file")
	checkOnly := fs.Bool("check", false, "Load configuration and signing key, then exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.LoadWithEnv(*configPath, getenv)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	log, syncLog, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	defer func() { _ = syncLog() }()

	sk, err := keys.LoadSigner(cfg.Signer, getenv)
	if err != nil {
		log.Error("signing key unavailable", zap.Error(err))
		return 1
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	var sinks []attest.Sink
	backend, closeArchive, err := archive.Open(ctx, cfg.Archive)
	if err != nil {
		log.Error("open archive", zap.String("backend", cfg.Archive.Backend), zap.Error(err))
		return 1
	}
	defer func() { _ = closeArchive() }()
	var archiveSink *archive.Sink
	if backend != nil {
		archiveSink = archive.NewSink(backend)
		sinks = append(sinks, archiveSink)
	}
	if cfg.Publish.AMQPURL != "" {
		pub, err := publish.Dial(publish.Config{URL: cfg.Publish.AMQPURL, Queue: cfg.Publish.Queue})
		if err != nil {
			log.Error("connect publisher", zap.Error(err))
			return 1
		}
		defer func() { _ = pub.Close() }()
		sinks = append(sinks, pub)
	}

	a, err := attest.New(sk, attest.Options{
		AlgoVersion:       cfg.AlgoVersion,
		Logger:            log,
		Metrics:           m,
		Sinks:             sinks,
		MaxRegisteredKeys: cfg.Server.MaxRegisteredKeys,
	})
	if err != nil {
		log.Error("attestor init", zap.String("code", attest.Code(err)), zap.Error(err))
		return 1
	}
	log.Info("attestor ready",
		zap.String("public_key", a.PublicKey().Hex()),
		zap.String("algo_version", a.AlgoVersion()),
		zap.Int("sinks", len(sinks)),
	)
	if *checkOnly {
		return 0
	}

	gin.SetMode(gin.ReleaseMode)
	httpSrv := httpapi.NewServer(cfg.Server.HTTPAddress, httpapi.NewRouter(httpapi.Options{
		Attestor:       a,
		Archive:        archiveSink,
		Metrics:        m,
		Gatherer:       reg,
		Logger:         log.Named("http"),
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
	}))

	errCh := make(chan error, 2)
	go func() {
		log.Info("http listening", zap.String("address", cfg.Server.HTTPAddress))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()

	var grpcSrv *grpc.Server
	if cfg.Server.GRPCAddress != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddress)
		if err != nil {
			log.Error("grpc listen", zap.String("address", cfg.Server.GRPCAddress), zap.Error(err))
			_ = httpSrv.Close()
			return 1
		}
		grpcSrv = grpc.NewServer(grpc.UnaryInterceptor(grpcapi.UnaryInterceptor(m, log.Named("grpc"))))
		grpcapi.RegisterAttestorServer(grpcSrv, &grpcapi.Server{Attestor: a})
		go func() {
			log.Info("grpc listening", zap.String("address", lis.Addr().String()))
			if err := grpcSrv.Serve(lis); err != nil {
				errCh <- fmt.Errorf("grpc: %w", err)
			}
		}()
	}

	code := 0
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		log.Error("server failed", zap.Error(err))
		code = 1
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	return code
}
