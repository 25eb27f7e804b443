package grpcapi

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"echorank.dev/attest/attest"
	"echorank.dev/attest/bls"
	"echorank.dev/attest/metrics"
	"echorank.dev/attest/model"
)

func newTestClient(t *testing.T) (*Client, *attest.Attestor, *prometheus.Registry) {
	t.Helper()
	return newTestClientWith(t, attest.Options{})
}

func newTestClientWith(t *testing.T, opts attest.Options) (*Client, *attest.Attestor, *prometheus.Registry) {
	t.Helper()
	sk, err := bls.ParseSecretKey("123456789")
	if err != nil {
		t.Fatalf("ParseSecretKey: %v", err)
	}
	opts.Rand = bytes.NewReader(make([]byte, 1<<12))
	opts.Now = func() time.Time { return time.Unix(1706600000, 0) }
	a, err := attest.New(sk, opts)
	if err != nil {
		t.Fatalf("attest.New: %v", err)
	}

	reg := prometheus.NewRegistry()
	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer(grpc.UnaryInterceptor(UnaryInterceptor(metrics.New(reg), nil)))
	RegisterAttestorServer(srv, &Server{Attestor: a})
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	dialer := func(ctx context.Context, s string) (net.Conn, error) { return lis.DialContext(ctx) }
	client, err := Dial("passthrough:///bufnet", DialOptions{Extra: []grpc.DialOption{grpc.WithContextDialer(dialer)}})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	client.Timeout = 5 * time.Second
	t.Cleanup(func() { _ = client.Close() })
	return client, a, reg
}

func testResult(t *testing.T) model.AnalysisResult {
	t.Helper()
	r, err := model.NewAnalysisResult(model.AnalysisFields{
		Emotion:    model.EmotionHappy,
		Intensity:  0.85,
		Confidence: 0.92,
		Keywords:   []string{"great"},
		Events:     []string{"applause"},
		Transcript: "great event",
		Language:   "en",
	})
	if err != nil {
		t.Fatalf("NewAnalysisResult: %v", err)
	}
	return r
}

func TestGRPC_AttestVerifyRoundTrip(t *testing.T) {
	client, a, reg := newTestClient(t)
	ctx := context.Background()

	att, err := client.Attest(ctx, []byte("audio"), testResult(t))
	if err != nil {
		t.Fatalf("Attest: %v", err)
	}
	if att.PublicKey != a.PublicKey().Hex() || att.Timestamp != 1706600000 {
		t.Fatalf("unexpected attestation %+v", att)
	}

	res, err := client.Verify(ctx, att)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !res.Valid {
		t.Fatalf("expected valid, got %+v", res)
	}

	att.Timestamp++
	res, err = client.Verify(ctx, att)
	if err != nil || res.Valid {
		t.Fatalf("tampered record: res=%+v err=%v", res, err)
	}

	n, err := testutil.GatherAndCount(reg, "echorank_grpc_requests_total")
	if err != nil || n != 2 {
		t.Fatalf("expected Attest and Verify series, got %d (%v)", n, err)
	}
}

func TestGRPC_VerifyMalformedIsNotAnRPCError(t *testing.T) {
	client, _, _ := newTestClient(t)
	res, err := client.Verify(context.Background(), model.Attestation{AudioHash: "zz"})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if res.Valid || res.ErrorKind != string(attest.KindMalformed) {
		t.Fatalf("unexpected %+v", res)
	}
}

func TestGRPC_AttestRejectsInvalidResult(t *testing.T) {
	client, _, _ := newTestClient(t)
	in, err := structpb.NewStruct(map[string]any{
		"content_base64": "YQ==",
		"result":         map[string]any{"emotion": "BORED", "intensity": 0.1, "confidence": 0.1},
	})
	if err != nil {
		t.Fatalf("NewStruct: %v", err)
	}
	_, err = client.client.Attest(context.Background(), in)
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestGRPC_PublicKeyAndRegister(t *testing.T) {
	client, a, _ := newTestClient(t)
	ctx := context.Background()

	info, err := client.PublicKey(ctx)
	if err != nil {
		t.Fatalf("PublicKey: %v", err)
	}
	if info != a.PublicKeyInfo() {
		t.Fatalf("unexpected info %+v", info)
	}

	cosigner, _ := bls.ParseSecretKey("31337")
	pop, err := cosigner.ProvePossession()
	if err != nil {
		t.Fatalf("ProvePossession: %v", err)
	}
	reg := model.KeyRegistration{PublicKey: cosigner.PublicKey().Hex(), ProofOfPossession: pop.Hex()}
	if err := client.RegisterKey(ctx, reg); err != nil {
		t.Fatalf("RegisterKey: %v", err)
	}
	if _, ok := a.Registry().Lookup(cosigner.PublicKey()); !ok {
		t.Fatalf("key not registered")
	}

	reg.ProofOfPossession = info.ProofOfPossession
	if err := client.RegisterKey(ctx, reg); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for a foreign proof, got %v", err)
	}
}

func TestGRPC_AttestRejectsEmptyContent(t *testing.T) {
	client, _, _ := newTestClient(t)
	_, err := client.Attest(context.Background(), nil, testResult(t))
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestGRPC_RegisterKeyRegistryFull(t *testing.T) {
	client, _, _ := newTestClientWith(t, attest.Options{MaxRegisteredKeys: 1})
	cosigner, _ := bls.ParseSecretKey("31337")
	pop, err := cosigner.ProvePossession()
	if err != nil {
		t.Fatalf("ProvePossession: %v", err)
	}
	reg := model.KeyRegistration{PublicKey: cosigner.PublicKey().Hex(), ProofOfPossession: pop.Hex()}
	if err := client.RegisterKey(context.Background(), reg); status.Code(err) != codes.ResourceExhausted {
		t.Fatalf("expected ResourceExhausted, got %v", err)
	}
}

func TestGRPC_VerifyAggregateUnregistered(t *testing.T) {
	client, _, _ := newTestClient(t)
	ctx := context.Background()
	att, err := client.Attest(ctx, []byte("audio"), testResult(t))
	if err != nil {
		t.Fatalf("Attest: %v", err)
	}
	stranger, _ := bls.ParseSecretKey("99")
	res, err := client.VerifyAggregate(ctx, model.AggregateVerifyRequest{
		AudioHash:  att.AudioHash,
		ResultHash: att.ResultHash,
		Timestamp:  att.Timestamp,
		Nonce:      att.Nonce,
		Signature:  att.Signature,
		PublicKeys: []string{att.PublicKey, stranger.PublicKey().Hex()},
	})
	if err != nil {
		t.Fatalf("VerifyAggregate: %v", err)
	}
	if res.Valid || res.ErrorKind != string(attest.KindValidation) {
		t.Fatalf("unexpected %+v", res)
	}
}

func TestServer_NotConfigured(t *testing.T) {
	var s Server
	if _, err := s.PublicKey(context.Background(), nil); status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("expected FailedPrecondition, got %v", err)
	}
}
