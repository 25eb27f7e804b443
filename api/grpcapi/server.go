package grpcapi

import (
	"context"
	"encoding/base64"
	"path"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"echorank.dev/attest/attest"
	"echorank.dev/attest/metrics"
	"echorank.dev/attest/model"
)

// AttestRequest is the Struct shape accepted by Attest.
type AttestRequest struct {
	ContentBase64 string         `json:"content_base64"`
	Result        map[string]any `json:"result"`
}

// AttestResponse is the Struct shape returned by Attest.
type AttestResponse struct {
	Result      model.AnalysisResult `json:"result"`
	Attestation model.Attestation    `json:"attestation"`
}

// Server exposes an attest.Attestor over the Attestor gRPC service.
type Server struct {
	UnimplementedAttestorServer
	Attestor *attest.Attestor
}

func (s *Server) ready() error {
	if s == nil || s.Attestor == nil {
		return status.Error(codes.FailedPrecondition, "attestor not configured")
	}
	return nil
}

func (s *Server) Attest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var req AttestRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	content, err := base64.StdEncoding.DecodeString(req.ContentBase64)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "content_base64 is not valid base64")
	}
	if len(content) == 0 {
		return nil, status.Error(codes.InvalidArgument, "empty audio content")
	}
	result, err := model.AnalysisResultFromMap(req.Result)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	att, err := s.Attestor.Attest(ctx, content, result)
	if err != nil {
		return nil, mapErr(err)
	}
	out, err := toStruct(AttestResponse{Result: result, Attestation: att})
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func (s *Server) Verify(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var att model.Attestation
	if err := fromStruct(in, &att); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	res := attest.VerifyResult(s.Attestor.VerifyAttestation(ctx, att))
	return toStructOrInternal(res)
}

func (s *Server) VerifyAggregate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var req model.AggregateVerifyRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	res := attest.VerifyResult(s.Attestor.VerifyAggregate(ctx, req))
	return toStructOrInternal(res)
}

func (s *Server) RegisterKey(ctx context.Context, in *structpb.Struct) (*wrapperspb.BoolValue, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	var reg model.KeyRegistration
	if err := fromStruct(in, &reg); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if _, err := s.Attestor.RegisterKey(ctx, reg); err != nil {
		return nil, mapErr(err)
	}
	return wrapperspb.Bool(true), nil
}

func (s *Server) PublicKey(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return toStructOrInternal(s.Attestor.PublicKeyInfo())
}

func toStructOrInternal(v any) (*structpb.Struct, error) {
	out, err := toStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if attest.Code(err) == attest.CodeRegistryFull {
		return status.Error(codes.ResourceExhausted, err.Error())
	}
	switch attest.KindOf(err) {
	case attest.KindValidation, attest.KindMalformed:
		return status.Error(codes.InvalidArgument, err.Error())
	case attest.KindConfig:
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		if ctxErr := status.FromContextError(err); ctxErr.Code() != codes.Unknown {
			return ctxErr.Err()
		}
		return status.Error(codes.Internal, err.Error())
	}
}

// UnaryInterceptor counts and logs every call.
func UnaryInterceptor(m *metrics.Collectors, log *zap.Logger) grpc.UnaryServerInterceptor {
	if log == nil {
		log = zap.NewNop()
	}
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		method := path.Base(info.FullMethod)
		m.ObserveGRPC(method, code.String())
		log.Info("grpc request",
			zap.String("method", method),
			zap.String("code", code.String()),
			zap.Duration("duration", time.Since(start)),
		)
		return resp, err
	}
}
