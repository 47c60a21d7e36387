package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// newPredictionServer serves a submit endpoint plus a poll endpoint whose
// responses are produced by status, called once per poll.
func newPredictionServer(t *testing.T, status func(poll int) (string, string)) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var polls atomic.Int64
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/v1/predictions", func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Token test-token" {
			t.Errorf("Authorization = %q", auth)
		}
		var req predictionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode submit body: %v", err)
		}
		if req.Version != modelVersion || req.Input.Prompt == "" {
			t.Errorf("submit request: %+v", req)
		}
		fmt.Fprintf(w, `{"status":"starting","urls":{"get":%q}}`, server.URL+"/v1/predictions/p1")
	})
	mux.HandleFunc("/v1/predictions/p1", func(w http.ResponseWriter, r *http.Request) {
		st, output := status(int(polls.Add(1)))
		if output == "" {
			fmt.Fprintf(w, `{"status":%q}`, st)
			return
		}
		fmt.Fprintf(w, `{"status":%q,"output":%s,"error":"boom"}`, st, output)
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &polls
}

func newTestClient(host string, maxAttempts int) *ReplicateClient {
	c := NewReplicateClient("test-token", host, time.Millisecond, maxAttempts)
	return c
}

func TestReplicateGenerate_SucceedsAfterPolling(t *testing.T) {
	server, _ := newPredictionServer(t, func(poll int) (string, string) {
		if poll < 3 {
			return "processing", ""
		}
		return "succeeded", `["https://cdn.example/in.png","https://cdn.example/out.png"]`
	})
	c := newTestClient(server.URL, 10)

	out, err := c.Generate(context.Background(), JobInput{ImageURL: "https://img.example/p.jpg", Prompt: "Modern style Bedroom"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(out) != 2 || out[1] != "https://cdn.example/out.png" {
		t.Errorf("output: %v", out)
	}
}

func TestReplicateGenerate_SingleStringOutput(t *testing.T) {
	server, _ := newPredictionServer(t, func(int) (string, string) {
		return "succeeded", `"https://cdn.example/out.png"`
	})
	c := newTestClient(server.URL, 10)

	out, err := c.Generate(context.Background(), JobInput{Prompt: "p"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(out) != 1 || out[0] != "https://cdn.example/out.png" {
		t.Errorf("output: %v", out)
	}
}

func TestReplicateGenerate_Failed(t *testing.T) {
	server, _ := newPredictionServer(t, func(int) (string, string) {
		return "failed", `null`
	})
	c := newTestClient(server.URL, 10)

	_, err := c.Generate(context.Background(), JobInput{Prompt: "p"})
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("err = %v, want ErrGenerationFailed", err)
	}
}

func TestReplicateGenerate_TimeoutAfterAttemptBudget(t *testing.T) {
	server, polls := newPredictionServer(t, func(int) (string, string) {
		return "processing", ""
	})
	c := newTestClient(server.URL, 5)

	_, err := c.Generate(context.Background(), JobInput{Prompt: "p"})
	if !errors.Is(err, ErrGenerationTimeout) {
		t.Fatalf("err = %v, want ErrGenerationTimeout", err)
	}
	if n := polls.Load(); n != 5 {
		t.Errorf("polled %d times, want exactly 5", n)
	}
}

func TestReplicateGenerate_ContextCanceled(t *testing.T) {
	server, _ := newPredictionServer(t, func(int) (string, string) {
		return "processing", ""
	})
	c := newTestClient(server.URL, 1000)
	c.PollInterval = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := c.Generate(ctx, JobInput{Prompt: "p"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestReplicateSubmit_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"invalid version"}`, http.StatusUnprocessableEntity)
	}))
	defer server.Close()
	c := newTestClient(server.URL, 10)

	_, err := c.Generate(context.Background(), JobInput{Prompt: "p"})
	if err == nil || !strings.Contains(err.Error(), "422") {
		t.Fatalf("err = %v, want 422 submit error", err)
	}
}
