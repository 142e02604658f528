package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/goalmap/internal/domain"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the gRPC service implemented by step generator servers.
	ServiceName         = "goalmap.generator.v1.StepGenerator"
	generateStepsMethod = "/" + ServiceName + "/GenerateSteps"
)

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
)

// GRPCConfig holds configuration for the gRPC backend.
type GRPCConfig struct {
	Address          string
	ConnectTimeout   time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
	// DialOptions are appended to the defaults; tests use them to dial bufconn.
	DialOptions []grpc.DialOption
}

// DefaultGRPCConfig returns default configuration for addr.
func DefaultGRPCConfig(addr string) GRPCConfig {
	return GRPCConfig{
		Address:          addr,
		ConnectTimeout:   5 * time.Second,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// GRPCClient generates steps by calling a remote StepGenerator service.
// Requests and responses are google.protobuf.Struct values:
//
//	request:  {mode, topic, title, description}
//	response: {steps: [{title, description, difficulty}]} or {raw: "<model text>"}
type GRPCClient struct {
	conn   *grpc.ClientConn
	health healthpb.HealthClient
	addr   string
	logger *slog.Logger
}

var _ Generator = (*GRPCClient)(nil)

// NewGRPC connects to the step service and waits until the connection is
// ready, so a bad address fails at startup instead of on the first request.
func NewGRPC(cfg GRPCConfig, logger *slog.Logger) (*GRPCClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Address == "" {
		return nil, errors.New("grpc generator: address is required")
	}

	kacp := keepalive.ClientParameters{
		Time:                cfg.KeepaliveTime,
		Timeout:             cfg.KeepaliveTimeout,
		PermitWithoutStream: false,
	}
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kacp),
	}, cfg.DialOptions...)

	conn, err := grpc.NewClient(cfg.Address, opts...)
	if err != nil {
		return nil, fmt.Errorf("create step generator client for %s: %w", cfg.Address, err)
	}

	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := waitForReady(connectCtx, conn); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to close gRPC connection after readiness failure", "error", closeErr)
		}
		return nil, fmt.Errorf("step generator at %s not ready: %w", cfg.Address, err)
	}

	logger.Info("Connected to step generator service", "address", cfg.Address)

	return &GRPCClient{
		conn:   conn,
		health: healthpb.NewHealthClient(conn),
		addr:   cfg.Address,
		logger: logger,
	}, nil
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

// Close closes the gRPC connection.
func (c *GRPCClient) Close() {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Warn("failed to close gRPC connection", "error", err)
		}
	}
}

// Health reports whether the remote step service is serving.
func (c *GRPCClient) Health(ctx context.Context) error {
	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("step generator status %s", resp.GetStatus())
	}
	return nil
}

// GenerateTopLevel asks the remote service for the first level of a roadmap.
func (c *GRPCClient) GenerateTopLevel(ctx context.Context, topic string) ([]domain.StepDraft, error) {
	return c.generate(ctx, map[string]any{"mode": string(ModeTopLevel), "topic": topic})
}

// GenerateChildren asks the remote service to break a step into sub-steps.
func (c *GRPCClient) GenerateChildren(ctx context.Context, title, description string) ([]domain.StepDraft, error) {
	return c.generate(ctx, map[string]any{
		"mode":        string(ModeChildren),
		"title":       title,
		"description": description,
	})
}

func (c *GRPCClient) generate(ctx context.Context, fields map[string]any) ([]domain.StepDraft, error) {
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, generateStepsMethod, req, resp); err != nil {
		return nil, fmt.Errorf("generate steps rpc: %w", err)
	}
	return decodeStepsResponse(ctx, resp)
}

func decodeStepsResponse(ctx context.Context, resp *structpb.Struct) ([]domain.StepDraft, error) {
	fields := resp.GetFields()
	if raw, ok := fields["raw"]; ok {
		recordRaw(ctx, raw.GetStringValue())
		return ParseSteps(raw.GetStringValue())
	}

	list := fields["steps"].GetListValue()
	if list == nil {
		return nil, errors.New("response has neither steps nor raw")
	}
	drafts := make([]domain.StepDraft, 0, len(list.GetValues()))
	for i, v := range list.GetValues() {
		obj := v.GetStructValue()
		if obj == nil {
			slog.Warn("Skipping non-object step descriptor", "index", i)
			continue
		}
		drafts = append(drafts, DraftFromMap(i, obj.AsMap()))
	}
	return drafts, nil
}

// RegisterServer exposes gen over the StepGenerator contract on s.
func RegisterServer(s grpc.ServiceRegistrar, gen Generator) {
	s.RegisterService(&stepGeneratorDesc, &stepGeneratorServer{gen: gen})
}

type stepGeneratorServer struct {
	gen Generator
}

var stepGeneratorDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "GenerateSteps",
		Handler:    generateStepsHandler,
	}},
	Streams:  []grpc.StreamDesc{},
	Metadata: "goalmap/generator/v1/generator.proto",
}

func generateStepsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := &structpb.Struct{}
	if err := dec(in); err != nil {
		return nil, err
	}
	s := srv.(*stepGeneratorServer)
	if interceptor == nil {
		return s.generateSteps(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: generateStepsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return s.generateSteps(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func (s *stepGeneratorServer) generateSteps(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f := in.GetFields()
	var (
		drafts []domain.StepDraft
		err    error
	)
	switch Mode(f["mode"].GetStringValue()) {
	case ModeTopLevel:
		drafts, err = s.gen.GenerateTopLevel(ctx, f["topic"].GetStringValue())
	case ModeChildren:
		drafts, err = s.gen.GenerateChildren(ctx, f["title"].GetStringValue(), f["description"].GetStringValue())
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown mode %q", f["mode"].GetStringValue())
	}
	if err != nil {
		if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrDisabled) {
			return nil, status.Error(codes.Unavailable, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}

	steps := make([]any, 0, len(drafts))
	for _, d := range drafts {
		steps = append(steps, map[string]any{
			"title":       d.Title,
			"description": d.Description,
			"difficulty":  string(d.Difficulty),
		})
	}
	return structpb.NewStruct(map[string]any{"steps": steps})
}
