// Package client is a thin gRPC client for auditchain.v1.AuditService.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	core "github.com/spounge-ai/auditchain/internal/audit"
	"github.com/spounge-ai/auditchain/internal/constants"
	"github.com/spounge-ai/auditchain/internal/domain"
	"github.com/spounge-ai/auditchain/internal/service"
)

type Client struct {
	conn *grpc.ClientConn
}

// Dial connects without transport security; TLS termination is left to the deployment.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// New wraps an existing connection.
func New(conn *grpc.ClientConn) *Client {
	return &Client{conn: conn}
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// WithActor tags outgoing calls with the acting user.
func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	kv := []string{"x-actor-id", actor.UserID}
	if actor.Email != "" {
		kv = append(kv, "x-actor-email", actor.Email)
	}
	if actor.Role != "" {
		kv = append(kv, "x-actor-role", actor.Role)
	}
	return metadata.AppendToOutgoingContext(ctx, kv...)
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	in, err := toStruct(req)
	if err != nil {
		return err
	}
	out := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, constants.FullMethod(method), in, out); err != nil {
		return err
	}
	data, err := protojson.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", method, err)
	}
	if err := json.Unmarshal(data, resp); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	return nil
}

func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return out, nil
}

type rangeArgs struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	TopN  int       `json:"topN,omitempty"`
}

func (c *Client) Ingest(ctx context.Context, req *domain.IngestRequest) (*domain.AuditEntry, error) {
	var resp struct {
		Entry *domain.AuditEntry `json:"entry"`
	}
	if err := c.invoke(ctx, constants.MethodIngest, req, &resp); err != nil {
		return nil, err
	}
	return resp.Entry, nil
}

func (c *Client) Query(ctx context.Context, filter domain.QueryFilter, page domain.Page, sort domain.Sort) ([]*domain.AuditEntry, error) {
	req := map[string]any{"filter": filter, "page": page, "sort": sort}
	var resp struct {
		Entries []*domain.AuditEntry `json:"entries"`
	}
	if err := c.invoke(ctx, constants.MethodQuery, req, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

func (c *Client) VerifyChain(ctx context.Context, start, end time.Time) (*core.VerificationReport, error) {
	var report core.VerificationReport
	if err := c.invoke(ctx, constants.MethodVerifyChain, rangeArgs{Start: start, End: end}, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *Client) DetectAnomalies(ctx context.Context, window time.Duration) ([]core.AnomalyRecord, error) {
	req := map[string]any{}
	if window > 0 {
		req["window"] = window.String()
	}
	var resp struct {
		Anomalies []core.AnomalyRecord `json:"anomalies"`
	}
	if err := c.invoke(ctx, constants.MethodDetectAnomalies, req, &resp); err != nil {
		return nil, err
	}
	return resp.Anomalies, nil
}

func (c *Client) ArchiveOldLogs(ctx context.Context, daysOld int) (*service.ArchiveResult, error) {
	var result service.ArchiveResult
	if err := c.invoke(ctx, constants.MethodArchiveOldLogs, map[string]int{"daysOld": daysOld}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) GetStats(ctx context.Context, start, end time.Time, topN int) (*core.Stats, error) {
	var stats core.Stats
	if err := c.invoke(ctx, constants.MethodGetStats, rangeArgs{Start: start, End: end, TopN: topN}, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) AggregateForCompliance(ctx context.Context, start, end time.Time) (*core.ComplianceReport, error) {
	var report core.ComplianceReport
	if err := c.invoke(ctx, constants.MethodAggregateForCompliance, rangeArgs{Start: start, End: end}, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
