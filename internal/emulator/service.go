// Package emulator serves ReadRows from memory, with scripted faults for exercising
// the retry behaviour of readers.
package emulator

import (
	"cloud.google.com/go/bigtable/apiv2/bigtablepb"
	"github.com/litetable/litetable-reader/internal/rowset"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"sync"
)

// Fault makes one ReadRows call fail after it has sent some rows.
type Fault struct {
	// Attempt is the 1-based number of the ReadRows call to fail, counted across
	// every call the service receives.
	Attempt int
	// AfterRows is the number of complete rows sent before failing.
	AfterRows int
	Code      codes.Code
	Message   string
	// PartialRow sends the first chunk of the next row, uncommitted, before failing.
	PartialRow bool
}

// Service implements the ReadRows RPC of the Bigtable data API.
type Service struct {
	bigtablepb.UnimplementedBigtableServer

	tables      map[string]*Table
	splitSize   int
	scanMarkers bool

	mu       sync.Mutex
	faults   []Fault
	requests []*bigtablepb.ReadRowsRequest
}

type ServiceConfig struct {
	// Tables maps full table names to their contents.
	Tables map[string]*Table
	// SplitSize spreads values longer than this over several chunks. Zero never
	// splits.
	SplitSize int
	// ScanMarkers reports each skipped row as the last scanned row key.
	ScanMarkers bool
	Faults      []Fault
}

// NewService creates a Service.
func NewService(cfg *ServiceConfig) *Service {
	tables := cfg.Tables
	if tables == nil {
		tables = map[string]*Table{}
	}
	return &Service{
		tables:      tables,
		splitSize:   cfg.SplitSize,
		scanMarkers: cfg.ScanMarkers,
		faults:      cfg.Faults,
	}
}

// AddFault schedules another fault.
func (s *Service) AddFault(f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = append(s.faults, f)
}

// Requests returns a copy of every ReadRows request received so far.
func (s *Service) Requests() []*bigtablepb.ReadRowsRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*bigtablepb.ReadRowsRequest, 0, len(s.requests))
	for _, r := range s.requests {
		out = append(out, proto.Clone(r).(*bigtablepb.ReadRowsRequest))
	}
	return out
}

// record stores req and returns the fault scheduled for it, if any.
func (s *Service) record(req *bigtablepb.ReadRowsRequest) *Fault {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, proto.Clone(req).(*bigtablepb.ReadRowsRequest))
	attempt := len(s.requests)
	for i := range s.faults {
		if s.faults[i].Attempt == attempt {
			f := s.faults[i]
			return &f
		}
	}
	return nil
}

func (s *Service) ReadRows(req *bigtablepb.ReadRowsRequest, srv bigtablepb.Bigtable_ReadRowsServer) error {
	fault := s.record(req)

	table, ok := s.tables[req.GetTableName()]
	if !ok {
		return status.Errorf(codes.NotFound, "table %q not found", req.GetTableName())
	}
	if req.GetRowsLimit() < 0 {
		return status.Error(codes.InvalidArgument, "rows limit cannot be negative")
	}

	set := rowset.FromProto(req.GetRows())
	limit := req.GetRowsLimit()
	sent := 0

	for _, row := range table.Rows() {
		if err := srv.Context().Err(); err != nil {
			return status.FromContextError(err).Err()
		}

		if !set.Contains(row.Key) {
			if s.scanMarkers {
				if err := srv.Send(&bigtablepb.ReadRowsResponse{LastScannedRowKey: row.Key}); err != nil {
					return err
				}
			}
			continue
		}

		chunks := encodeRow(row, s.splitSize)
		if fault != nil && sent == fault.AfterRows {
			if fault.PartialRow {
				partial := proto.Clone(chunks[0]).(*bigtablepb.ReadRowsResponse_CellChunk)
				partial.RowStatus = nil
				if err := srv.Send(&bigtablepb.ReadRowsResponse{Chunks: []*bigtablepb.ReadRowsResponse_CellChunk{partial}}); err != nil {
					return err
				}
			}
			log.Debug().Int("rows", sent).Str("code", fault.Code.String()).Msg("emulator injecting fault")
			return status.Error(fault.Code, fault.Message)
		}

		if err := srv.Send(&bigtablepb.ReadRowsResponse{Chunks: chunks}); err != nil {
			return err
		}
		sent++
		if limit > 0 && int64(sent) >= limit {
			return nil
		}
	}

	if fault != nil && sent == fault.AfterRows {
		return status.Error(fault.Code, fault.Message)
	}
	return nil
}
