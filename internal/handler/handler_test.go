// internal/handler/handler_test.go
package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"net"
	"sync"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/SyedDaiam9101/breed-classifier/internal/classifier"
	"github.com/SyedDaiam9101/breed-classifier/internal/inference"
	"github.com/SyedDaiam9101/breed-classifier/internal/logger"
	"github.com/SyedDaiam9101/breed-classifier/internal/middleware"
	"github.com/SyedDaiam9101/breed-classifier/internal/preprocess"
	"github.com/SyedDaiam9101/breed-classifier/internal/service"
)

// fakeClassifier returns a canned result or error.
type fakeClassifier struct {
	mu     sync.Mutex
	result classifier.Result
	err    error
	calls  int
}

func (f *fakeClassifier) ClassifyImage(ctx context.Context, raw []byte) (classifier.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.result, f.err
}

func pngImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.RGBA{uint8(x * 8), 120, uint8(y * 8), 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode failed: %v", err)
	}
	return buf.Bytes()
}

// newMockService builds the real pipeline on top of the mock engine.
func newMockService(t *testing.T) *service.Service {
	t.Helper()
	c, err := classifier.New(inference.NewMock(), rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("classifier.New failed: %v", err)
	}
	return service.New(c, nil, logger.Discard())
}

func startBufconn(t *testing.T, svc ImageClassifier) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer(grpc.ChainUnaryInterceptor(
		middleware.UnaryRequestIDInterceptor(),
		middleware.UnaryMetricsInterceptor(),
	))
	RegisterClassifierServer(s, New(svc, Options{}))
	go func() {
		_ = s.Serve(lis)
	}()
	t.Cleanup(s.Stop)

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestClassifyWithNilClassifier(t *testing.T) {
	h := New(nil, Options{})

	_, err := h.Classify(context.Background(), wrapperspb.Bytes([]byte("x")))
	if err == nil {
		t.Fatal("Expected error when classifier is nil, got nil")
	}

	st, ok := status.FromError(err)
	if !ok {
		t.Fatalf("Expected gRPC status error, got: %v", err)
	}

	if st.Code() != codes.FailedPrecondition {
		t.Errorf("Expected FailedPrecondition, got: %v", st.Code())
	}
}

func TestClassifyWithNilRequest(t *testing.T) {
	h := New(&fakeClassifier{}, Options{})

	_, err := h.Classify(context.Background(), nil)
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("Expected InvalidArgument, got: %v", err)
	}
}

func TestClassifyErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
	}{
		{fmt.Errorf("%w: bad header", preprocess.ErrDecode), codes.InvalidArgument},
		{fmt.Errorf("%w: empty image", preprocess.ErrUnsupportedMode), codes.InvalidArgument},
		{fmt.Errorf("%w: session closed", classifier.ErrInference), codes.Internal},
		{fmt.Errorf("%w: warm-up failed", classifier.ErrStartup), codes.FailedPrecondition},
		{errors.New("boom"), codes.Internal},
	}

	for _, tc := range cases {
		h := New(&fakeClassifier{err: tc.err}, Options{})
		_, err := h.Classify(context.Background(), wrapperspb.Bytes([]byte("img")))
		if got := status.Code(err); got != tc.code {
			t.Errorf("For %v expected %v, got %v", tc.err, tc.code, got)
		}
	}
}

func TestClassifyOverGRPC(t *testing.T) {
	conn := startBufconn(t, newMockService(t))

	var header metadata.MD
	resp, err := Classify(context.Background(), conn, pngImage(t), grpc.Header(&header))
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	if !resp.GetFields()["success"].GetBoolValue() {
		t.Error("Expected success=true")
	}
	if msg := resp.GetFields()["message"].GetStringValue(); msg != SuccessMessage {
		t.Errorf("Expected message %q, got %q", SuccessMessage, msg)
	}

	result := ResultFromStruct(resp)
	want := []string{"Golden_Retriever", "Beagle", "Yorkshire_Terrier", "German_Shepherd", "Rottweiler"}
	if len(result) != len(want) {
		t.Fatalf("Expected %d predictions, got %d", len(want), len(result))
	}
	for i, label := range want {
		if result[i].Label != label {
			t.Errorf("Rank %d: expected %s, got %s", i, label, result[i].Label)
		}
		if i > 0 && result[i].Probability > result[i-1].Probability {
			t.Errorf("Rank %d probability %v exceeds rank %d", i, result[i].Probability, i-1)
		}
	}

	if ids := header.Get(middleware.RequestIDHeader); len(ids) != 1 || ids[0] == "" {
		t.Errorf("Expected request ID header, got %v", ids)
	}
}

func TestClassifyOverGRPC_InvalidImage(t *testing.T) {
	conn := startBufconn(t, newMockService(t))

	_, err := Classify(context.Background(), conn, []byte("not an image"))
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("Expected InvalidArgument, got: %v", err)
	}
}

func TestClassifyOverGRPC_Concurrent(t *testing.T) {
	conn := startBufconn(t, newMockService(t))
	img := pngImage(t)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := Classify(context.Background(), conn, img)
			if err != nil {
				errs <- err
				return
			}
			if top, _ := ResultFromStruct(resp).Top(); top.Label != "Golden_Retriever" {
				errs <- fmt.Errorf("unexpected top label %s", top.Label)
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestResultStructRoundTrip(t *testing.T) {
	result := classifier.Result{
		{Label: "Poodle", Probability: 0.6},
		{Label: "Boxer", Probability: 0.3},
	}

	s, err := resultStruct(result)
	if err != nil {
		t.Fatalf("resultStruct failed: %v", err)
	}

	got := ResultFromStruct(s)
	if len(got) != 2 || got[0] != result[0] || got[1] != result[1] {
		t.Errorf("Expected %v, got %v", result, got)
	}
}
