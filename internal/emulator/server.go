package emulator

import (
	"cloud.google.com/go/bigtable/apiv2/bigtablepb"
	"errors"
	"fmt"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
	"net"
	"time"
)

//go:generate mockgen -destination=./server_mock.go -package=emulator -source=server.go

type grpcServer interface {
	Serve(lis net.Listener) error
	GracefulStop()
}

// Server implements the app.Dependency interface for the emulator's gRPC server
type Server struct {
	address  string
	server   grpcServer
	port     int
	listener net.Listener
}

type Config struct {
	Address string
	// Port 0 picks a free port; Addr reports it.
	Port    int
	Service *Service
}

func (c *Config) validate() error {
	var errGrp []error
	if c.Address == "" {
		errGrp = append(errGrp, fmt.Errorf("address required"))
	}
	if c.Port < 0 {
		errGrp = append(errGrp, fmt.Errorf("port cannot be negative"))
	}
	if c.Service == nil {
		errGrp = append(errGrp, fmt.Errorf("service required"))
	}

	return errors.Join(errGrp...)
}

// NewServer creates the emulator server and binds its listener.
func NewServer(cfg *Config) (*Server, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	srv := grpc.NewServer()
	bigtablepb.RegisterBigtableServer(srv, cfg.Service)
	reflection.Register(srv)

	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.Address, cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("failed to create listener on port %d: %w", cfg.Port, err)
	}

	return &Server{
		address:  cfg.Address,
		server:   srv,
		port:     lis.Addr().(*net.TCPAddr).Port,
		listener: lis,
	}, nil
}

// Addr returns the host:port the emulator listens on.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

func (s *Server) Start() error {
	log.Info().Msgf("Bigtable emulator listening at %s:%d", s.address, s.port)

	errCh := make(chan error, 1)

	go func() {
		if err := s.server.Serve(s.listener); err != nil {
			errCh <- err
			log.Error().Err(err).Msg("emulator server failed")
			return
		}
		errCh <- nil
	}()

	// Block briefly for error or nil return
	select {
	case err := <-errCh:
		return err
	case <-time.After(500 * time.Millisecond):
		return nil
	}
}

func (s *Server) Stop() error {
	log.Info().Msg("Stopping Bigtable emulator")
	s.server.GracefulStop()
	return nil
}

func (s *Server) Name() string {
	return "Bigtable Emulator"
}
