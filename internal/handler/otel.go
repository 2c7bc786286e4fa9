package handler

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/gofiber/fiber/v2"
	collectortracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"
	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/agentgauge/agentgauge/internal/domain"
	"github.com/agentgauge/agentgauge/internal/middleware"
	"github.com/agentgauge/agentgauge/internal/service"
)

// OTelHandler receives OTLP trace exports over HTTP and feeds them through
// the regular ingestion pipeline. Spans arriving for the same OTLP trace id
// in one request become one ingestion batch.
type OTelHandler struct {
	ingestionService *service.IngestionService
	logger           *zap.Logger
}

// NewOTelHandler creates a new OTLP receiver handler
func NewOTelHandler(ingestionService *service.IngestionService, logger *zap.Logger) *OTelHandler {
	return &OTelHandler{
		ingestionService: ingestionService,
		logger:           logger,
	}
}

// ReceiveTraces handles POST /v1/otel/traces. Accepts OTLP/HTTP in both
// binary protobuf and JSON encodings.
func (h *OTelHandler) ReceiveTraces(c *fiber.Ctx) error {
	var request collectortracepb.ExportTraceServiceRequest

	switch c.Get("Content-Type") {
	case "application/json":
		if err := protojson.Unmarshal(c.Body(), &request); err != nil {
			return errorResponse(c, fiber.StatusBadRequest, "Invalid OTLP JSON payload: "+err.Error())
		}
	default:
		if err := proto.Unmarshal(c.Body(), &request); err != nil {
			return errorResponse(c, fiber.StatusBadRequest, "Invalid OTLP protobuf payload: "+err.Error())
		}
	}

	accepted, rejected := IngestOTLP(c.Context(), h.ingestionService, h.logger, &request)

	response := &collectortracepb.ExportTraceServiceResponse{}
	if rejected > 0 {
		response.PartialSuccess = &collectortracepb.ExportTracePartialSuccess{
			RejectedSpans: rejected,
			ErrorMessage:  "some spans could not be stored",
		}
	}

	h.logger.Debug("OTLP export received",
		zap.Int("accepted_spans", accepted),
		zap.Int64("rejected_spans", rejected),
	)

	payload, err := proto.Marshal(response)
	if err != nil {
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to encode response")
	}
	c.Set("Content-Type", "application/x-protobuf")
	return c.Send(payload)
}

// IngestOTLP converts an OTLP export request into ingestion batches, one
// per distinct trace id, and stores them. It is shared by the HTTP and
// gRPC receivers. Returns accepted span count and rejected span count.
func IngestOTLP(ctx context.Context, ingestion *service.IngestionService, logger *zap.Logger, request *collectortracepb.ExportTraceServiceRequest) (int, int64) {
	type pending struct {
		serviceName string
		spans       []*domain.SpanInput
	}
	byTrace := map[string]*pending{}

	for _, rs := range request.GetResourceSpans() {
		serviceName := resourceAttr(rs.GetResource().GetAttributes(), "service.name")

		for _, ss := range rs.GetScopeSpans() {
			for _, span := range ss.GetSpans() {
				traceID := hex.EncodeToString(span.GetTraceId())
				p, ok := byTrace[traceID]
				if !ok {
					p = &pending{serviceName: serviceName}
					byTrace[traceID] = p
				}
				p.spans = append(p.spans, convertOTLPSpan(span))
			}
		}
	}

	var accepted int
	var rejected int64
	for traceID, p := range byTrace {
		batch := buildOTLPBatch(traceID, p.serviceName, p.spans)
		if _, err := ingestion.IngestBatch(ctx, batch); err != nil {
			logger.Warn("failed to ingest OTLP trace",
				zap.String("trace_id", traceID),
				zap.Error(err),
			)
			rejected += int64(len(p.spans))
			continue
		}
		accepted += len(p.spans)
	}
	return accepted, rejected
}

// buildOTLPBatch derives the trace envelope from its spans: the window
// spans the earliest start to the latest end, and any error span marks the
// whole trace as errored.
func buildOTLPBatch(traceID, serviceName string, spans []*domain.SpanInput) *domain.IngestionBatch {
	var start, end *time.Time
	status := domain.TraceStatusSuccess
	for _, s := range spans {
		if s.StartTime != nil && (start == nil || s.StartTime.Before(*start)) {
			start = s.StartTime
		}
		if s.EndTime != nil && (end == nil || s.EndTime.After(*end)) {
			end = s.EndTime
		}
		if s.Status == domain.SpanStatusError {
			status = domain.TraceStatusError
		}
	}

	return &domain.IngestionBatch{
		Trace: &domain.TraceInput{
			TraceID:     traceID,
			ServiceName: serviceName,
			Status:      status,
			StartTime:   start,
			EndTime:     end,
		},
		Spans: spans,
	}
}

func convertOTLPSpan(span *tracepb.Span) *domain.SpanInput {
	start := time.Unix(0, int64(span.GetStartTimeUnixNano())).UTC()
	end := time.Unix(0, int64(span.GetEndTimeUnixNano())).UTC()

	attrs := make(map[string]any, len(span.GetAttributes()))
	for _, kv := range span.GetAttributes() {
		attrs[kv.GetKey()] = anyValue(kv.GetValue())
	}

	input := &domain.SpanInput{
		SpanID:       hex.EncodeToString(span.GetSpanId()),
		TraceID:      hex.EncodeToString(span.GetTraceId()),
		ParentSpanID: hex.EncodeToString(span.GetParentSpanId()),
		Name:         span.GetName(),
		SpanType:     otlpSpanType(attrs),
		StartTime:    &start,
		EndTime:      &end,
		Attributes:   attrs,
	}

	if span.GetStatus().GetCode() == tracepb.Status_STATUS_CODE_ERROR {
		input.Status = domain.SpanStatusError
		input.Error = span.GetStatus().GetMessage()
		if input.Error == "" {
			input.Error = "span reported error status"
		}
	} else {
		input.Status = domain.SpanStatusSuccess
	}

	for _, ev := range span.GetEvents() {
		evAttrs := make(map[string]any, len(ev.GetAttributes()))
		for _, kv := range ev.GetAttributes() {
			evAttrs[kv.GetKey()] = anyValue(kv.GetValue())
		}
		input.Events = append(input.Events, domain.SpanEvent{
			Name:       ev.GetName(),
			Timestamp:  time.Unix(0, int64(ev.GetTimeUnixNano())).UTC(),
			Attributes: evAttrs,
		})
	}

	return input
}

// otlpSpanType maps OTLP semantic-convention attributes onto the span
// taxonomy. An explicit agentgauge.span_type attribute wins.
func otlpSpanType(attrs map[string]any) domain.SpanType {
	if v, ok := attrs["agentgauge.span_type"].(string); ok {
		if st := domain.SpanType(v); st.IsValid() {
			return st
		}
	}
	if _, ok := attrs["gen_ai.request.model"]; ok {
		return domain.SpanTypeLLM
	}
	if _, ok := attrs["gen_ai.tool.name"]; ok {
		return domain.SpanTypeTool
	}
	return domain.SpanTypeCustom
}

func resourceAttr(attrs []*commonpb.KeyValue, key string) string {
	for _, kv := range attrs {
		if kv.GetKey() == key {
			if s, ok := anyValue(kv.GetValue()).(string); ok {
				return s
			}
		}
	}
	return ""
}

func anyValue(v *commonpb.AnyValue) any {
	switch val := v.GetValue().(type) {
	case *commonpb.AnyValue_StringValue:
		return val.StringValue
	case *commonpb.AnyValue_BoolValue:
		return val.BoolValue
	case *commonpb.AnyValue_IntValue:
		return val.IntValue
	case *commonpb.AnyValue_DoubleValue:
		return val.DoubleValue
	case *commonpb.AnyValue_ArrayValue:
		out := make([]any, 0, len(val.ArrayValue.GetValues()))
		for _, item := range val.ArrayValue.GetValues() {
			out = append(out, anyValue(item))
		}
		return out
	case *commonpb.AnyValue_KvlistValue:
		out := make(map[string]any, len(val.KvlistValue.GetValues()))
		for _, kv := range val.KvlistValue.GetValues() {
			out[kv.GetKey()] = anyValue(kv.GetValue())
		}
		return out
	default:
		return nil
	}
}

// RegisterRoutes registers the OTLP HTTP receiver route
func (h *OTelHandler) RegisterRoutes(app *fiber.App, authMiddleware *middleware.AuthMiddleware) {
	v1 := app.Group("/v1/otel", authMiddleware.RequireAuth())
	v1.Post("/traces", authMiddleware.RequireScope("traces:write"), h.ReceiveTraces)
}
