// Package health поднимает gRPC-сервер со стандартным сервисом grpc.health.v1.Health.
//
// Статус сервиса billing пересчитывается по доступности зависимостей
// (Postgres, Redis) с заданным интервалом.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/magabrotheeeer/rhmaster-billing/internal/lib/sl"
)

// ServiceName имя сервиса в ответах Health/Check.
const ServiceName = "rhmaster.billing"

// Pinger зависимость, доступность которой проверяется.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server gRPC-сервер проверки здоровья.
type Server struct {
	addr     string
	grpc     *grpc.Server
	health   *grpchealth.Server
	pingers  map[string]Pinger
	interval time.Duration
	log      *slog.Logger
}

// NewServer создает Server на addr. Статус проверяется каждые interval.
func NewServer(addr string, pingers map[string]Pinger, interval time.Duration, log *slog.Logger) *Server {
	gs := grpc.NewServer()
	hs := grpchealth.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	return &Server{
		addr:     addr,
		grpc:     gs,
		health:   hs,
		pingers:  pingers,
		interval: interval,
		log:      log,
	}
}

// Refresh проверяет зависимости и выставляет статус SERVING или NOT_SERVING.
func (s *Server) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	for name, p := range s.pingers {
		if err := p.Ping(ctx); err != nil {
			s.log.Warn("dependency unavailable", slog.String("dependency", name), sl.Err(err))
			status = healthpb.HealthCheckResponse_NOT_SERVING
			break
		}
	}
	s.health.SetServingStatus(ServiceName, status)
	s.health.SetServingStatus("", status)
	return status
}

// Serve обслуживает соединения lis до отмены ctx.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	const op = "grpc.health.Serve"

	s.Refresh(ctx)
	go s.watch(ctx)
	go func() {
		<-ctx.Done()
		s.health.Shutdown()
		s.grpc.GracefulStop()
	}()

	s.log.Info("gRPC health server starting", slog.String("address", lis.Addr().String()))
	if err := s.grpc.Serve(lis); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Run слушает addr и обслуживает соединения до отмены ctx.
func (s *Server) Run(ctx context.Context) error {
	const op = "grpc.health.Run"

	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return s.Serve(ctx, lis)
}

func (s *Server) watch(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}
