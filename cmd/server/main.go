package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/jt828/go-span-tracing/internal/bootstrap"
	"github.com/jt828/go-span-tracing/internal/controller"
	"github.com/jt828/go-span-tracing/internal/interceptor"
	"github.com/jt828/go-span-tracing/internal/service"
	"github.com/jt828/go-span-tracing/pkg/model"
	"github.com/jt828/go-span-tracing/pkg/observability"
	"github.com/jt828/go-span-tracing/pkg/observability/implementation"
	"github.com/jt828/go-span-tracing/pkg/reactive"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML config file")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := bootstrap.LoadConfig(*configPath)
	if err != nil {
		panic(err)
	}

	obs, err := implementation.NewObservability(ctx, implementation.Config{
		ServiceName:   cfg.ServiceName,
		LogLevel:      cfg.Log.Level,
		TraceEndpoint: cfg.Tracing.Endpoint,
		TraceInsecure: cfg.Tracing.Insecure,
		MetricsAddr:   cfg.Server.MetricsAddr,
	})
	if err != nil {
		panic(err)
	}
	log := obs.Logger()
	reg := implementation.PromRegistry(obs.Meter())
	if reg == nil {
		log.Fatal("prometheus registry not available")
	}

	grpcMetrics := grpc_prometheus.NewServerMetrics()
	reg.MustRegister(grpcMetrics)

	if err := obs.Start(ctx); err != nil {
		log.Error("failed to start observability", observability.Err(err))
	}

	idGen, err := bootstrap.InitializeSnowflake(cfg.Snowflake.NodeID)
	if err != nil {
		log.Fatal("failed to initialize snowflake", observability.Err(err))
	}
	tracker, err := bootstrap.InitializeTracker(cfg, obs)
	if err != nil {
		log.Fatal("failed to initialize tracker", observability.Err(err))
	}
	dbs, err := bootstrap.InitializeDatabase(cfg.Database, tracker, idGen, obs)
	if err != nil {
		log.Fatal("failed to initialize database", observability.Err(err))
	}

	probeSvc := service.NewProbeService(dbs.UnitOfWorkFactory, idGen, obs.Tracer(), log, cfg.Probe.Interval)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sig
		log.Info("shutting down server")
		cancel()
	}()

	lis, err := net.Listen("tcp", cfg.Server.GrpcAddr)
	if err != nil {
		log.Fatal("failed to listen", observability.String("addr", cfg.Server.GrpcAddr), observability.Err(err))
	}

	server := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			grpcMetrics.UnaryServerInterceptor(),
			interceptor.ErrorInterceptor(log),
		),
		grpc.ChainStreamInterceptor(
			grpcMetrics.StreamServerInterceptor(),
			interceptor.ErrorStreamInterceptor(log),
		),
	)

	controller.RegisterProbeServiceServer(server, controller.NewProbeController(probeSvc))

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	grpc_health_v1.RegisterHealthServer(server, healthServer)

	// the first probe runs immediately, the watch takes over from there
	setHealth(healthServer, probeSvc.ProbeOnce(ctx, -1), log)
	watch := reactive.SubscribeFunc(ctx, probeSvc.Watch(ctx),
		func(_ context.Context, r model.ProbeResult) { setHealth(healthServer, r, log) },
		func(_ context.Context, err error) {
			log.Error("probe watch failed", observability.Err(err))
			healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
		},
		nil,
	)

	grpcMetrics.InitializeMetrics(server)

	go func() {
		log.Info("gRPC server running", observability.String("addr", cfg.Server.GrpcAddr))
		if err := server.Serve(lis); err != nil {
			log.Fatal("failed to serve", observability.Err(err))
		}
	}()

	<-ctx.Done()
	log.Info("graceful stopping gRPC server")
	watch.Cancel(context.WithoutCancel(ctx))
	healthServer.Shutdown()
	server.GracefulStop()
	log.Info("gRPC server stopped")

	if err := dbs.Close(); err != nil {
		log.Error("failed to close database", observability.Err(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := obs.Close(shutdownCtx); err != nil {
		log.Error("failed to close observability", observability.Err(err))
	}
}

func setHealth(h *health.Server, r model.ProbeResult, log observability.Logger) {
	if r.Healthy {
		h.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
		return
	}
	log.Warn("database probe failed, server marked as not serving",
		observability.Int64("sequence", r.Sequence),
		observability.String("error", r.Error),
	)
	h.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
}
