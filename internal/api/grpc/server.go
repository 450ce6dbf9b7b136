// Package grpcapi exposes the validator as a unary gRPC service. Records and
// reports travel as JSON inside google.protobuf.BytesValue messages so that
// integer and floating values keep their distinct types.
package grpcapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"trade-ingestion-service/internal/observability/logging"
	"trade-ingestion-service/internal/schema"
	"trade-ingestion-service/internal/service/ingest"
)

const (
	// ServiceName is the fully-qualified gRPC service name.
	ServiceName = "trade.ingest.v1.RecordValidator"

	// ValidateMethod is the full method name of Validate.
	ValidateMethod = "/" + ServiceName + "/Validate"

	// SourceMetadataKey optionally names the caller in batch IDs.
	SourceMetadataKey = "x-source"

	// BatchIDMetadataKey carries the batch ID in the response header.
	BatchIDMetadataKey = "x-batch-id"
)

// RecordValidatorServer is the server API for the RecordValidator service.
type RecordValidatorServer interface {
	// Validate takes a JSON array of records and returns the JSON report.
	Validate(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
}

// ServiceDesc describes the RecordValidator service for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RecordValidatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Validate", Handler: validateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "trade/ingest/v1/validator.proto",
}

func validateHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RecordValidatorServer).Validate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ValidateMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(RecordValidatorServer).Validate(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

// Server implements RecordValidatorServer over an ingest handler.
type Server struct {
	handler *ingest.Handler
}

// Register creates a Server for h and registers it on g.
func Register(g *grpc.Server, h *ingest.Handler) *Server {
	s := &Server{handler: h}
	g.RegisterService(&ServiceDesc, s)
	return s
}

// Validate implements RecordValidatorServer.
func (s *Server) Validate(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	records, err := schema.DecodeRecordsBytes(in.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	sourceName := "grpc"
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(SourceMetadataKey); len(v) > 0 && v[0] != "" {
			sourceName = v[0]
		}
	}

	result, err := s.handler.ValidateBatch(ctx, sourceName, records)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, status.FromContextError(err).Err()
		case errors.Is(err, ingest.ErrBatchDropped):
			return nil, status.Error(codes.Unavailable, err.Error())
		default:
			return nil, status.Error(codes.Internal, err.Error())
		}
	}

	payload, err := json.Marshal(result.Report)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	if err := grpc.SetHeader(ctx, metadata.Pairs(BatchIDMetadataKey, result.BatchID)); err != nil {
		logger := logging.WithBatch(sourceName, result.BatchID)
		logger.Warn().Err(err).Msg("Failed to set batch ID header")
	}
	return wrapperspb.Bytes(payload), nil
}

// Client is the client API for the RecordValidator service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient returns a RecordValidator client over cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Validate sends a JSON array of records and returns the JSON report.
func (c *Client) Validate(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, ValidateMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ValidateRecords marshals records, calls Validate and decodes the report.
// Numbers in the returned records are json.Number values.
func (c *Client) ValidateRecords(ctx context.Context, records []schema.Record, opts ...grpc.CallOption) (*schema.Report, error) {
	if records == nil {
		records = []schema.Record{}
	}
	payload, err := json.Marshal(records)
	if err != nil {
		return nil, err
	}
	out, err := c.Validate(ctx, wrapperspb.Bytes(payload), opts...)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(out.GetValue()))
	dec.UseNumber()

	var report schema.Report
	if err := dec.Decode(&report); err != nil {
		return nil, err
	}
	return &report, nil
}
