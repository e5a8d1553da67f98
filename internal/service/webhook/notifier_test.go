package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/unsend-dev/unsend-sub000/internal/domain"
	"github.com/unsend-dev/unsend-sub000/internal/pkg/cache"
)

type capture struct {
	mu        sync.Mutex
	bodies    [][]byte
	signature string
}

func newCaptureServer(t *testing.T, status int) (*httptest.Server, *capture) {
	t.Helper()
	c := &capture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.bodies = append(c.bodies, body)
		c.signature = r.Header.Get(SignatureHeader)
		c.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func newRedisCache(t *testing.T) *cache.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return cache.New(client, 10*time.Minute)
}

func testEmail() *domain.Email {
	return &domain.Email{
		ID:       "e1",
		TeamID:   7,
		DomainID: 1,
		To:       []string{"user@example.com"},
		From:     "hello@acme.com",
		Subject:  "Welcome",
	}
}

func TestNotify_DeliversSignedPayload(t *testing.T) {
	srv, cap := newCaptureServer(t, http.StatusOK)
	repo := newMockRepo()
	svc := NewService(repo, newRedisCache(t))

	w, err := svc.Create(context.Background(), 7, srv.URL, []domain.EmailStatus{domain.StatusDelivered}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	n := NewNotifier(svc, srv.Client())
	n.Notify(testEmail(), domain.StatusDelivered, map[string]any{"smtpResponse": "250 OK"})
	n.Flush()

	cap.mu.Lock()
	defer cap.mu.Unlock()
	if len(cap.bodies) != 1 {
		t.Fatalf("subscriber got %d deliveries, want 1", len(cap.bodies))
	}

	mac := hmac.New(sha256.New, []byte(w.Secret))
	mac.Write(cap.bodies[0])
	if cap.signature != hex.EncodeToString(mac.Sum(nil)) {
		t.Error("signature header must be the HMAC of the exact body")
	}

	var got eventPayload
	if err := json.Unmarshal(cap.bodies[0], &got); err != nil {
		t.Fatalf("payload unparseable: %v", err)
	}
	if got.Event != domain.StatusDelivered || got.Payload.EmailID != "e1" {
		t.Errorf("payload = %+v", got)
	}
	if got.Payload.Data["smtpResponse"] != "250 OK" {
		t.Error("provider detail must ride along in the payload")
	}
}

func TestNotify_FiltersByEventAndDomain(t *testing.T) {
	srv, cap := newCaptureServer(t, http.StatusOK)
	svc := NewService(newMockRepo(), newRedisCache(t))
	ctx := context.Background()

	otherDomain := int64(99)
	if _, err := svc.Create(ctx, 7, srv.URL, []domain.EmailStatus{domain.StatusBounced}, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Create(ctx, 7, srv.URL, []domain.EmailStatus{domain.StatusDelivered}, &otherDomain); err != nil {
		t.Fatal(err)
	}

	n := NewNotifier(svc, srv.Client())
	// DELIVERED on domain 1: first hook wants BOUNCED, second is scoped to
	// domain 99. Neither matches.
	n.Notify(testEmail(), domain.StatusDelivered, nil)
	n.Flush()

	cap.mu.Lock()
	defer cap.mu.Unlock()
	if len(cap.bodies) != 0 {
		t.Errorf("got %d deliveries, want 0", len(cap.bodies))
	}
}

func TestNotify_SubscriberErrorIsSwallowed(t *testing.T) {
	srv, cap := newCaptureServer(t, http.StatusInternalServerError)
	svc := NewService(newMockRepo(), newRedisCache(t))

	if _, err := svc.Create(context.Background(), 7, srv.URL, []domain.EmailStatus{domain.StatusDelivered}, nil); err != nil {
		t.Fatal(err)
	}

	n := NewNotifier(svc, srv.Client())
	n.Notify(testEmail(), domain.StatusDelivered, nil)
	n.Flush()

	cap.mu.Lock()
	defer cap.mu.Unlock()
	if len(cap.bodies) != 1 {
		t.Fatalf("delivery should have been attempted once, got %d", len(cap.bodies))
	}
	// No retry: exactly one attempt regardless of the response.
}

func TestNotify_NoWebhooksNoTraffic(t *testing.T) {
	srv, cap := newCaptureServer(t, http.StatusOK)
	svc := NewService(newMockRepo(), newRedisCache(t))

	n := NewNotifier(svc, srv.Client())
	n.Notify(testEmail(), domain.StatusDelivered, nil)
	n.Flush()

	cap.mu.Lock()
	defer cap.mu.Unlock()
	if len(cap.bodies) != 0 {
		t.Error("no subscribers means no outbound requests")
	}
}
