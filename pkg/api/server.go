package api

import (
	"fmt"
	"net"
	"time"

	"github.com/cuemby/googol/pkg/log"
	"github.com/cuemby/googol/pkg/metrics"
	"github.com/cuemby/googol/pkg/types"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
)

// StopTimeout bounds how long Stop waits for open calls to finish
const StopTimeout = 5 * time.Second

// Server hosts the gRPC services of one Googol process
type Server struct {
	grpc     *grpc.Server
	listener net.Listener
	gateway  *gatewayServer
	logger   zerolog.Logger
}

// NewServer creates a new API server
func NewServer() *Server {
	return &Server{
		grpc: grpc.NewServer(
			grpc.ChainUnaryInterceptor(UnaryInterceptor()),
			grpc.ChainStreamInterceptor(StreamInterceptor()),
		),
		logger: log.WithComponent("api"),
	}
}

// RegisterDirectory serves a directory
func (s *Server) RegisterDirectory(svc types.DirectoryService) {
	s.grpc.RegisterService(directoryDesc(svc), svc)
}

// RegisterQueue serves a work queue
func (s *Server) RegisterQueue(svc types.QueueService) {
	s.grpc.RegisterService(queueDesc(svc), svc)
}

// RegisterBarrel serves a barrel
func (s *Server) RegisterBarrel(svc types.BarrelService) {
	s.grpc.RegisterService(barrelDesc(svc), svc)
}

// RegisterDownloader serves a downloader's callback surface
func (s *Server) RegisterDownloader(svc types.DownloaderService) {
	s.grpc.RegisterService(downloaderDesc(svc), svc)
}

// RegisterGateway serves a gateway, statistics stream included
func (s *Server) RegisterGateway(svc types.GatewayService) {
	s.gateway = newGatewayServer(svc)
	s.grpc.RegisterService(s.gateway.desc(), svc)
}

// RegisterStopWords serves a stop-word learner
func (s *Server) RegisterStopWords(svc types.StopWordsService) {
	s.grpc.RegisterService(stopWordsDesc(svc), svc)
}

// Listen binds addr and returns the bound address, which differs from addr
// when addr uses port 0.
func (s *Server) Listen(addr string) (string, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to listen: %w", err)
	}
	s.listener = lis
	return lis.Addr().String(), nil
}

// Serve accepts connections on the bound listener until Stop
func (s *Server) Serve() error {
	if s.listener == nil {
		return fmt.Errorf("server is not listening")
	}

	metrics.SetComponent("grpc", true, "serving")
	s.logger.Info().Str("addr", s.listener.Addr().String()).Msg("gRPC API listening")
	return s.grpc.Serve(s.listener)
}

// Start binds addr and serves in the background. It returns the bound address.
func (s *Server) Start(addr string) (string, error) {
	bound, err := s.Listen(addr)
	if err != nil {
		return "", err
	}
	go func() {
		if err := s.Serve(); err != nil {
			s.logger.Error().Err(err).Msg("gRPC server stopped")
		}
	}()
	return bound, nil
}

// Stop gracefully stops the gRPC server, ending open subscription streams
// first. Connections still open after StopTimeout are closed forcibly.
func (s *Server) Stop() {
	metrics.SetComponent("grpc", false, "stopped")
	if s.gateway != nil {
		s.gateway.closeAll()
	}
	if s.grpc == nil {
		return
	}

	stopped := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(StopTimeout):
		s.logger.Warn().Dur("timeout", StopTimeout).Msg("Graceful stop timed out, closing connections")
		s.grpc.Stop()
		<-stopped
	}
}
