package services

import (
	"context"
	"strings"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/stoicmail/reflection-guard/internal/api"
	"github.com/stoicmail/reflection-guard/internal/config"
	"github.com/stoicmail/reflection-guard/internal/engine"
	"github.com/stoicmail/reflection-guard/internal/metrics"
	"github.com/stoicmail/reflection-guard/internal/models"
	"github.com/stoicmail/reflection-guard/internal/store"
)

type pipelineStub struct {
	got    engine.Request
	report models.ValidationReport
}

func (p *pipelineStub) Validate(_ context.Context, req engine.Request) models.ValidationReport {
	p.got = req
	return p.report
}

func TestValidateForwardsRequest(t *testing.T) {
	stub := &pipelineStub{report: models.ValidationReport{SecurityStatus: models.StatusRejected}}
	service := NewGuardService(nil, stub)

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(api.RequestIDHeader, "req-9"))
	report, err := service.Validate(ctx, &api.ValidateRequest{Text: "hello", ContentType: "journal_prompt", CorrelationID: "cid", SkipAnomaly: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.SecurityStatus != models.StatusRejected {
		t.Fatalf("rejections are reports, not errors")
	}
	want := engine.Request{Text: "hello", ContentType: "journal_prompt", CorrelationID: "cid", RequestID: "req-9", SkipAnomaly: true}
	if stub.got != want {
		t.Fatalf("unexpected forwarded request %+v", stub.got)
	}
	if service.Latency().Total != 1 {
		t.Fatalf("latency must be recorded")
	}
}

func TestValidateRejectsBadEnvelope(t *testing.T) {
	stub := &pipelineStub{}
	service := NewGuardService(nil, stub)

	cases := []struct {
		name string
		req  *api.ValidateRequest
	}{
		{name: "nil", req: nil},
		{name: "oversized", req: &api.ValidateRequest{Text: strings.Repeat("a", MaxRequestBytes+1)}},
		{name: "content type", req: &api.ValidateRequest{Text: "x", ContentType: "Reflection!"}},
		{name: "traversing correlation id", req: &api.ValidateRequest{Text: "x", CorrelationID: "/../../response_statistics"}},
		{name: "correlation id with slash", req: &api.ValidateRequest{Text: "x", CorrelationID: "a/b"}},
		{name: "long correlation id", req: &api.ValidateRequest{Text: "x", CorrelationID: strings.Repeat("c", 65)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.Validate(context.Background(), tc.req)
			if status.Code(err) != codes.InvalidArgument {
				t.Fatalf("expected invalid argument, got %v", err)
			}
			if stub.got != (engine.Request{}) {
				t.Fatalf("rejected envelope reached the pipeline: %+v", stub.got)
			}
		})
	}
}

func TestValidateAcceptsUUIDCorrelationID(t *testing.T) {
	stub := &pipelineStub{report: models.ValidationReport{SecurityStatus: models.StatusPassed}}
	service := NewGuardService(nil, stub)

	const cid = "0b6f1c2e-8a4d-4e0b-9c1a-2f3e4d5c6b7a"
	if _, err := service.Validate(context.Background(), &api.ValidateRequest{Text: "x", CorrelationID: cid}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stub.got.CorrelationID != cid {
		t.Fatalf("correlation id not forwarded: %+v", stub.got)
	}
}

func TestValidateWithoutPipeline(t *testing.T) {
	_, err := NewGuardService(nil, nil).Validate(context.Background(), &api.ValidateRequest{Text: "x"})
	if status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("expected failed precondition, got %v", err)
	}
}

func TestOutcome(t *testing.T) {
	cases := map[models.SecurityStatus]string{
		models.StatusPassed:   metrics.OutcomePassed,
		models.StatusRejected: metrics.OutcomeRejected,
		models.StatusError:    metrics.OutcomeError,
		"":                    metrics.OutcomeError,
	}
	for st, want := range cases {
		if got := Outcome(models.ValidationReport{SecurityStatus: st}); got != want {
			t.Fatalf("%q: expected %s, got %s", st, want, got)
		}
	}
}

func TestValidateWithPipeline(t *testing.T) {
	mem := store.NewMemory()
	pipeline, err := engine.NewPipeline(config.DefaultSecurity(), engine.Dependencies{History: mem, Audit: mem}, nil)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	service := NewGuardService(nil, pipeline)

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(api.RequestIDHeader, "req-1"))
	report, err := service.Validate(ctx, &api.ValidateRequest{Text: "<script>alert(1)</script>" + strings.Repeat("word ", 60)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.SecurityStatus != models.StatusRejected {
		t.Fatalf("expected rejection, got %s", report.SecurityStatus)
	}
	records := mem.AuditRecords()
	if len(records) != 1 || records[0].Entries[0].RequestID != "req-1" {
		t.Fatalf("request id must reach the audit trail, got %+v", records)
	}
}
