package grpcapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"

	"echorank.dev/attest/model"
)

// Client is a typed wrapper over AttestorClient.
type Client struct {
	cc     *grpc.ClientConn
	client AttestorClient

	// Timeout applies per RPC when non-zero.
	Timeout time.Duration
}

type DialOptions struct {
	// MaxMsgBytes sets both send/recv max sizes when non-zero.
	MaxMsgBytes int
	// Extra is appended to the default dial options.
	Extra []grpc.DialOption
}

// Dial creates a client for target over an insecure channel.
func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts,
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
				grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
			),
		)
	}
	dialOpts = append(dialOpts, opts.Extra...)
	cc, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{cc: cc, client: NewAttestorClient(cc)}, nil
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func (c *Client) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout > 0 {
		return context.WithTimeout(parent, c.Timeout)
	}
	return context.WithCancel(parent)
}

// Attest submits content and its analysis result for signing.
func (c *Client) Attest(ctx context.Context, content []byte, result model.AnalysisResult) (model.Attestation, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return model.Attestation{}, err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return model.Attestation{}, err
	}
	in, err := toStruct(AttestRequest{ContentBase64: base64.StdEncoding.EncodeToString(content), Result: fields})
	if err != nil {
		return model.Attestation{}, err
	}
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	out, err := c.client.Attest(ctx, in)
	if err != nil {
		return model.Attestation{}, err
	}
	var resp struct {
		Attestation model.Attestation `json:"attestation"`
	}
	if err := fromStruct(out, &resp); err != nil {
		return model.Attestation{}, fmt.Errorf("grpcapi: decode attest response: %w", err)
	}
	return resp.Attestation, nil
}

// Verify checks a complete attestation record.
func (c *Client) Verify(ctx context.Context, att model.Attestation) (model.VerifyResult, error) {
	in, err := toStruct(att)
	if err != nil {
		return model.VerifyResult{}, err
	}
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	out, err := c.client.Verify(ctx, in)
	if err != nil {
		return model.VerifyResult{}, err
	}
	var res model.VerifyResult
	if err := fromStruct(out, &res); err != nil {
		return model.VerifyResult{}, fmt.Errorf("grpcapi: decode verify response: %w", err)
	}
	return res, nil
}

func (c *Client) VerifyAggregate(ctx context.Context, req model.AggregateVerifyRequest) (model.VerifyResult, error) {
	in, err := toStruct(req)
	if err != nil {
		return model.VerifyResult{}, err
	}
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	out, err := c.client.VerifyAggregate(ctx, in)
	if err != nil {
		return model.VerifyResult{}, err
	}
	var res model.VerifyResult
	if err := fromStruct(out, &res); err != nil {
		return model.VerifyResult{}, fmt.Errorf("grpcapi: decode verify response: %w", err)
	}
	return res, nil
}

func (c *Client) RegisterKey(ctx context.Context, reg model.KeyRegistration) error {
	in, err := toStruct(reg)
	if err != nil {
		return err
	}
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	_, err = c.client.RegisterKey(ctx, in)
	return err
}

func (c *Client) PublicKey(ctx context.Context) (model.PublicKeyInfo, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()
	out, err := c.client.PublicKey(ctx, &emptypb.Empty{})
	if err != nil {
		return model.PublicKeyInfo{}, err
	}
	var info model.PublicKeyInfo
	if err := fromStruct(out, &info); err != nil {
		return model.PublicKeyInfo{}, fmt.Errorf("grpcapi: decode public key: %w", err)
	}
	return info, nil
}
