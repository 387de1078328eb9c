package reader

import (
	"cloud.google.com/go/bigtable/apiv2/bigtablepb"
	"context"
	"fmt"
	"github.com/litetable/litetable-reader/internal/transport"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
	"io"
	"sync"
)

// step is one Recv result of a scripted stream.
type step struct {
	resp *bigtablepb.ReadRowsResponse
	err  error
	// block waits for the call context to end and returns its status.
	block bool
}

// fakeTransport plays one script per attempt and records every request.
type fakeTransport struct {
	mu       sync.Mutex
	scripts  [][]step
	requests []*bigtablepb.ReadRowsRequest
	headers  []metadata.MD
	streams  []*fakeStream
}

func newFakeTransport(scripts ...[]step) *fakeTransport {
	return &fakeTransport{scripts: scripts}
}

func (f *fakeTransport) Open(ctx context.Context, req *bigtablepb.ReadRowsRequest) (transport.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := len(f.requests)
	f.requests = append(f.requests, proto.Clone(req).(*bigtablepb.ReadRowsRequest))
	md, _ := metadata.FromOutgoingContext(ctx)
	f.headers = append(f.headers, md)

	if n >= len(f.scripts) {
		return nil, status.Errorf(codes.Internal, "unexpected attempt %d", n+1)
	}
	s := &fakeStream{ctx: ctx, steps: f.scripts[n]}
	f.streams = append(f.streams, s)
	return s, nil
}

func (f *fakeTransport) Requests() []*bigtablepb.ReadRowsRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests
}

type fakeStream struct {
	ctx    context.Context
	steps  []step
	next   int
	closed bool
}

func (s *fakeStream) Recv() (*bigtablepb.ReadRowsResponse, error) {
	if s.closed {
		return nil, status.Error(codes.Canceled, "stream closed")
	}
	if s.next >= len(s.steps) {
		return nil, io.EOF
	}
	st := s.steps[s.next]
	s.next++

	if st.block {
		<-s.ctx.Done()
		return nil, status.FromContextError(s.ctx.Err()).Err()
	}
	return st.resp, st.err
}

func (s *fakeStream) Header() (metadata.MD, error) {
	return metadata.Pairs("server-timing", "gfet4t7; dur=3"), nil
}

func (s *fakeStream) Trailer() metadata.MD {
	return metadata.Pairs("x-trailer", "1")
}

func (s *fakeStream) Close() {
	s.closed = true
}

// rows returns one step per key, each a single committed one-cell row.
func rows(keys ...string) []step {
	out := make([]step, 0, len(keys))
	for _, k := range keys {
		out = append(out, step{resp: &bigtablepb.ReadRowsResponse{Chunks: []*bigtablepb.ReadRowsResponse_CellChunk{rowChunk(k, true)}}})
	}
	return out
}

func rowChunk(key string, commit bool) *bigtablepb.ReadRowsResponse_CellChunk {
	c := &bigtablepb.ReadRowsResponse_CellChunk{
		RowKey:          []byte(key),
		FamilyName:      wrapperspb.String("f"),
		Qualifier:       wrapperspb.Bytes([]byte("q")),
		TimestampMicros: 1000,
		Value:           []byte("value-" + key),
	}
	if commit {
		c.RowStatus = &bigtablepb.ReadRowsResponse_CellChunk_CommitRow{CommitRow: true}
	}
	return c
}

func fail(c codes.Code) step {
	return step{err: status.Error(c, fmt.Sprintf("injected %s", c))}
}

func then(parts ...[]step) []step {
	var out []step
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
