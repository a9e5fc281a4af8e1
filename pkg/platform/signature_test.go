package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestSignatureFetcher_DecodesAndSendsRequestID(t *testing.T) {
	var gotID, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get("X-Request-Id")
		gotAccept = r.Header.Get("Accept")
		fmt.Fprint(w, `{"agentId":"77","corpId":"c","timeStamp":null,"nonceStr":"n","signature":"s"}`)
	}))
	defer srv.Close()

	f := NewSignatureFetcher(WithFetcherLogger(quietLogger()))
	var sig DingTalkSignature
	if err := f.Fetch(context.Background(), srv.URL, &sig); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if sig.AgentID != "77" || sig.TimeStamp != "" || sig.CorpID != "c" {
		t.Errorf("sig = %+v", sig)
	}
	if gotID == "" {
		t.Error("expected X-Request-Id header")
	}
	if gotAccept != "application/json" {
		t.Errorf("Accept = %q", gotAccept)
	}
}

func TestSignatureFetcher_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	f := NewSignatureFetcher(WithClient(&http.Client{Timeout: time.Second}), WithFetcherLogger(quietLogger()))
	var sig FeishuSignature
	err := f.Fetch(context.Background(), url, &sig)
	var fe *SignatureFetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *SignatureFetchError, got %v", err)
	}
	if fe.Status != 0 || fe.URL != url {
		t.Errorf("err = %+v", fe)
	}
}

func TestSignatureFetcher_RateLimitHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	f := NewSignatureFetcher(WithRateLimit(rate.Every(time.Hour), 1), WithFetcherLogger(quietLogger()))
	var sig FeishuSignature
	if err := f.Fetch(context.Background(), srv.URL, &sig); err != nil {
		t.Fatalf("first Fetch: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := f.Fetch(ctx, srv.URL, &sig); err == nil {
		t.Fatal("expected rate limited fetch to fail")
	}
}
