// Package transport opens ReadRows streams against a Bigtable-compatible service.
package transport

import (
	"cloud.google.com/go/bigtable/apiv2/bigtablepb"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"sync"
)

//go:generate mockgen -destination=./transport_mock.go -package=transport -source=transport.go

// Stream is one in-flight ReadRows call.
type Stream interface {
	// Recv returns the next response, io.EOF once the service ends the stream
	// cleanly, or the status error that terminated it.
	Recv() (*bigtablepb.ReadRowsResponse, error)
	// Header blocks until the service's header metadata is available.
	Header() (metadata.MD, error)
	// Trailer returns the trailing metadata. It is only populated once Recv has
	// returned a non-nil error.
	Trailer() metadata.MD
	// Close cancels the call. It is safe to call more than once.
	Close()
}

// Transport opens streaming read calls.
type Transport interface {
	Open(ctx context.Context, req *bigtablepb.ReadRowsRequest) (Stream, error)
}

// GRPC is a Transport over a gRPC client connection. It also implements the
// app.Dependency interface so the connection is closed on shutdown.
type GRPC struct {
	endpoint string
	conn     *grpc.ClientConn
	client   bigtablepb.BigtableClient
}

type Config struct {
	Endpoint string
	// Insecure disables TLS, for emulators and local services.
	Insecure bool
	// DialOptions are appended after the credentials option.
	DialOptions []grpc.DialOption
}

func (c *Config) validate() error {
	var errGrp []error
	if c.Endpoint == "" {
		errGrp = append(errGrp, errors.New("endpoint required"))
	}

	return errors.Join(errGrp...)
}

// New creates the client connection. No network activity happens until the first
// stream is opened.
func New(cfg *Config) (*GRPC, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	if cfg.Insecure {
		creds = insecure.NewCredentials()
	}
	opts := append([]grpc.DialOption{grpc.WithTransportCredentials(creds)}, cfg.DialOptions...)

	conn, err := grpc.NewClient(cfg.Endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", cfg.Endpoint, err)
	}

	return &GRPC{
		endpoint: cfg.Endpoint,
		conn:     conn,
		client:   bigtablepb.NewBigtableClient(conn),
	}, nil
}

// Open starts a ReadRows call. The returned Stream owns a child context of ctx that
// Close cancels.
func (g *GRPC) Open(ctx context.Context, req *bigtablepb.ReadRowsRequest) (Stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	rc, err := g.client.ReadRows(ctx, req)
	if err != nil {
		cancel()
		return nil, err
	}
	return &grpcStream{rc: rc, cancel: cancel}, nil
}

func (g *GRPC) Start() error {
	log.Info().Msgf("gRPC transport connecting to %s", g.endpoint)
	g.conn.Connect()
	return nil
}

func (g *GRPC) Stop() error {
	log.Info().Msg("Closing gRPC transport")
	return g.conn.Close()
}

func (g *GRPC) Name() string {
	return "gRPC Transport"
}

type grpcStream struct {
	rc     bigtablepb.Bigtable_ReadRowsClient
	cancel context.CancelFunc
	once   sync.Once
}

func (s *grpcStream) Recv() (*bigtablepb.ReadRowsResponse, error) {
	return s.rc.Recv()
}

func (s *grpcStream) Header() (metadata.MD, error) {
	return s.rc.Header()
}

func (s *grpcStream) Trailer() metadata.MD {
	return s.rc.Trailer()
}

func (s *grpcStream) Close() {
	s.once.Do(s.cancel)
}
