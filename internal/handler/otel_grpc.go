package handler

import (
	"context"

	collectortracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"go.uber.org/zap"

	"github.com/agentgauge/agentgauge/internal/service"
)

// OTelGRPCServer implements the OTLP TraceService so gRPC exporters can
// push straight into the ingestion pipeline. Registered by the server
// binary when the receiver is enabled.
type OTelGRPCServer struct {
	collectortracepb.UnimplementedTraceServiceServer

	ingestionService *service.IngestionService
	logger           *zap.Logger
}

// NewOTelGRPCServer creates a new OTLP gRPC receiver
func NewOTelGRPCServer(ingestionService *service.IngestionService, logger *zap.Logger) *OTelGRPCServer {
	return &OTelGRPCServer{
		ingestionService: ingestionService,
		logger:           logger.Named("otel_grpc"),
	}
}

// Export implements the OTLP trace export RPC
func (s *OTelGRPCServer) Export(ctx context.Context, request *collectortracepb.ExportTraceServiceRequest) (*collectortracepb.ExportTraceServiceResponse, error) {
	accepted, rejected := IngestOTLP(ctx, s.ingestionService, s.logger, request)

	response := &collectortracepb.ExportTraceServiceResponse{}
	if rejected > 0 {
		response.PartialSuccess = &collectortracepb.ExportTracePartialSuccess{
			RejectedSpans: rejected,
			ErrorMessage:  "some spans could not be stored",
		}
	}

	s.logger.Debug("OTLP gRPC export received",
		zap.Int("accepted_spans", accepted),
		zap.Int64("rejected_spans", rejected),
	)
	return response, nil
}
