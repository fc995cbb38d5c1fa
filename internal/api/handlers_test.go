package api

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/stoicmail/reflection-guard/internal/config"
	"github.com/stoicmail/reflection-guard/internal/models"
)

type echoService struct {
	lastRequestID string
	lastDeadline  bool
}

func (e *echoService) Validate(ctx context.Context, req *ValidateRequest) (*models.ValidationReport, error) {
	e.lastRequestID = RequestIDFromContext(ctx)
	_, e.lastDeadline = ctx.Deadline()
	if req.Text == "" {
		return nil, status.Error(codes.InvalidArgument, "text is required")
	}
	text := req.Text
	return &models.ValidationReport{
		Success:        true,
		SecurityStatus: models.StatusPassed,
		ContentType:    req.ContentType,
		SanitizedText:  &text,
		CorrelationID:  req.CorrelationID,
		CheckResults:   []models.CheckResult{models.NewCheckResult("content_length", true, models.SeverityInfo, "ok")},
	}, nil
}

func startBufServer(t *testing.T, svc ContentGuardServer, cfg config.ServerConfig) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewServerOn(lis, cfg, svc)
	go func() { _ = srv.Start() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	client, err := NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestValidateRoundTrip(t *testing.T) {
	svc := &echoService{}
	client := startBufServer(t, svc, config.ServerConfig{RequestTimeout: 5 * time.Second})

	ctx := WithRequestID(context.Background(), "req-123")
	report, err := client.Validate(ctx, &ValidateRequest{Text: "calm mind", ContentType: "reflection", CorrelationID: "cid"})
	require.NoError(t, err)

	assert.Equal(t, models.StatusPassed, report.SecurityStatus)
	require.NotNil(t, report.SanitizedText)
	assert.Equal(t, "calm mind", *report.SanitizedText)
	assert.Equal(t, "cid", report.CorrelationID)
	require.Len(t, report.CheckResults, 1)
	assert.Equal(t, "content_length", report.CheckResults[0].CheckName)

	assert.Equal(t, "req-123", svc.lastRequestID)
	assert.True(t, svc.lastDeadline, "request timeout must bound the call")
}

func TestValidatePropagatesStatus(t *testing.T) {
	client := startBufServer(t, &echoService{}, config.ServerConfig{})

	_, err := client.Validate(context.Background(), &ValidateRequest{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestHealthService(t *testing.T) {
	client := startBufServer(t, &echoService{}, config.ServerConfig{})

	resp, err := healthpb.NewHealthClient(client.Conn()).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}

func TestRequestIDFromContextWithoutMetadata(t *testing.T) {
	assert.Equal(t, "", RequestIDFromContext(context.Background()))
	assert.Equal(t, context.Background(), WithRequestID(context.Background(), ""))
}

func TestTimeoutInterceptor(t *testing.T) {
	handler := func(ctx context.Context, _ any) (any, error) {
		if _, ok := ctx.Deadline(); !ok {
			return nil, errors.New("no deadline")
		}
		return "ok", nil
	}
	_, err := timeoutInterceptor(time.Second)(context.Background(), nil, &grpc.UnaryServerInfo{}, handler)
	assert.NoError(t, err)

	_, err = timeoutInterceptor(0)(context.Background(), nil, &grpc.UnaryServerInfo{}, handler)
	assert.Error(t, err)
}

func TestJSONCodec(t *testing.T) {
	c := jsonCodec{}
	data, err := c.Marshal(&ValidateRequest{Text: "x", SkipAnomaly: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"x","skip_anomaly":true}`, string(data))

	var out ValidateRequest
	require.NoError(t, c.Unmarshal(data, &out))
	assert.True(t, out.SkipAnomaly)
	assert.Equal(t, CodecName, c.Name())
}

func TestJSONCodecProtoMessages(t *testing.T) {
	c := jsonCodec{}
	data, err := c.Marshal(&healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING})
	require.NoError(t, err)
	assert.Contains(t, string(data), "SERVING")

	var out healthpb.HealthCheckResponse
	require.NoError(t, c.Unmarshal(data, &out))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, out.GetStatus())
}
