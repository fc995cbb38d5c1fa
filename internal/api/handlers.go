package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/stoicmail/reflection-guard/internal/models"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "reflectionguard.v1.ContentGuard"
	// ValidateMethod is the full method path of Validate.
	ValidateMethod = "/" + ServiceName + "/Validate"

	// RequestIDHeader carries the caller's request id in gRPC metadata.
	RequestIDHeader = "x-request-id"
)

// ValidateRequest is the wire form of one validation call.
type ValidateRequest struct {
	Text          string `json:"text"`
	ContentType   string `json:"content_type,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
	SkipAnomaly   bool   `json:"skip_anomaly,omitempty"`
}

// ContentGuardServer is implemented by the validation service.
type ContentGuardServer interface {
	Validate(ctx context.Context, req *ValidateRequest) (*models.ValidationReport, error)
}

// ContentGuardServiceDesc describes the service for grpc.Server.RegisterService.
var ContentGuardServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ContentGuardServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Validate", Handler: validateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "reflectionguard/v1/content_guard.json",
}

// RegisterContentGuardServer attaches srv to the registrar.
func RegisterContentGuardServer(s grpc.ServiceRegistrar, srv ContentGuardServer) {
	s.RegisterService(&ContentGuardServiceDesc, srv)
}

func validateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ValidateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ContentGuardServer).Validate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ValidateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ContentGuardServer).Validate(ctx, req.(*ValidateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// RequestIDFromContext returns the x-request-id sent by the caller, if any.
func RequestIDFromContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if v := md.Get(RequestIDHeader); len(v) > 0 {
		return v[0]
	}
	return ""
}

// WithRequestID attaches id to outgoing calls made with ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, RequestIDHeader, id)
}
