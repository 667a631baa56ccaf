package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"linkshare/internal/webhook"
)

func webhookRequest(body []byte, signature string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/update_server", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", "push")
	req.Header.Set("X-GitHub-Delivery", "72d3162e-cc78-11e3-81ab-4c9367dc0958")
	if signature != "" {
		req.Header.Set(webhook.SignatureHeader, signature)
	}
	return req
}

func TestHandleWebhook_ValidSignature(t *testing.T) {
	server, deployer := setupTestServer(t, Options{WebhookSecret: testSecret})
	body := []byte(`{"ref":"refs/heads/main"}`)

	rr := serve(server, webhookRequest(body, webhook.Sign(testSecret, body)))

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	if rr.Body.String() != "OK" {
		t.Errorf("Expected body OK, got %q", rr.Body.String())
	}
	if deployer.count() != 1 {
		t.Fatalf("Expected one deploy trigger, got %d", deployer.count())
	}
	if !strings.Contains(deployer.reasons[0], "72d3162e") {
		t.Errorf("Expected delivery id in trigger reason, got %q", deployer.reasons[0])
	}
}

func TestHandleWebhook_SucceedsEvenWhenTriggerDropped(t *testing.T) {
	server, deployer := setupTestServer(t, Options{WebhookSecret: testSecret})
	deployer.rejected = true
	body := []byte("b")

	rr := serve(server, webhookRequest(body, webhook.Sign(testSecret, body)))

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}
}

func TestHandleWebhook_Rejections(t *testing.T) {
	body := []byte("b")
	digest := webhook.Digest(testSecret, body)

	tests := []struct {
		name      string
		secret    string
		signature string
		want      int
	}{
		{"unset secret", "", webhook.Sign(testSecret, body), http.StatusInternalServerError},
		{"unset secret without header", "", "", http.StatusInternalServerError},
		{"missing header", testSecret, "", http.StatusForbidden},
		{"no separator", testSecret, "sha256" + digest, http.StatusForbidden},
		{"sha1 algorithm", testSecret, "sha1=" + digest, http.StatusNotImplemented},
		{"wrong secret", testSecret, webhook.Sign("other", body), http.StatusForbidden},
		{"empty digest", testSecret, "sha256=", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, deployer := setupTestServer(t, Options{WebhookSecret: tt.secret})

			rr := serve(server, webhookRequest(body, tt.signature))

			if rr.Code != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, rr.Code)
			}
			if deployer.count() != 0 {
				t.Errorf("Expected no deploy trigger, got %d", deployer.count())
			}
		})
	}
}

func TestHandleWebhook_BitFlippedDigest(t *testing.T) {
	server, deployer := setupTestServer(t, Options{WebhookSecret: testSecret})
	body := []byte("b")
	digest := []byte(webhook.Digest(testSecret, body))

	for _, pos := range []int{0, len(digest) / 2, len(digest) - 1} {
		flipped := append([]byte(nil), digest...)
		flipped[pos] ^= 0x01

		rr := serve(server, webhookRequest(body, "sha256="+string(flipped)))
		if rr.Code != http.StatusForbidden {
			t.Errorf("Flip at %d: expected status 403, got %d", pos, rr.Code)
		}
	}

	if deployer.count() != 0 {
		t.Errorf("Expected no deploy trigger, got %d", deployer.count())
	}
}

func TestHandleWebhook_BodyIsSignedRaw(t *testing.T) {
	server, _ := setupTestServer(t, Options{WebhookSecret: testSecret})
	signed := []byte(`{"ref": "refs/heads/main"}`)
	sent := []byte(`{"ref":"refs/heads/main"}`)

	rr := serve(server, webhookRequest(sent, webhook.Sign(testSecret, signed)))

	if rr.Code != http.StatusForbidden {
		t.Errorf("Expected re-encoded body to fail verification, got %d", rr.Code)
	}
}

func TestHandleWebhook_PayloadTooLarge(t *testing.T) {
	server, deployer := setupTestServer(t, Options{WebhookSecret: testSecret})
	body := make([]byte, MaxPayloadBytes+1)

	rr := serve(server, webhookRequest(body, webhook.Sign(testSecret, body)))

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status 413, got %d", rr.Code)
	}
	if deployer.count() != 0 {
		t.Error("Expected no deploy trigger for oversize payload")
	}
}

func TestHandleWebhook_BadHeaderWinsOverPayloadSize(t *testing.T) {
	server, _ := setupTestServer(t, Options{WebhookSecret: testSecret})
	body := bytes.Repeat([]byte("a"), MaxPayloadBytes+1)

	tests := []struct {
		name      string
		signature string
		want      int
	}{
		{"missing header", "", http.StatusForbidden},
		{"malformed header", "sha256", http.StatusForbidden},
		{"sha1 algorithm", "sha1=abc", http.StatusNotImplemented},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(server, webhookRequest(body, tt.signature))
			if rr.Code != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, rr.Code)
			}
		})
	}
}

func TestHandleWebhook_DroppedTriggerCounted(t *testing.T) {
	server, deployer := setupTestServer(t, Options{WebhookSecret: testSecret})
	deployer.rejected = true
	body := []byte("b")

	serve(server, webhookRequest(body, webhook.Sign(testSecret, body)))

	metrics := serve(server, httptest.NewRequest(http.MethodGet, "/metrics", nil)).Body.String()
	if !strings.Contains(metrics, `linkshare_deploy_runs_total{result="dropped"} 1`) {
		t.Error("Expected dropped trigger to be counted")
	}
}

func TestHandleWebhook_WrongMethod(t *testing.T) {
	server, _ := setupTestServer(t, Options{WebhookSecret: testSecret})

	rr := serve(server, httptest.NewRequest(http.MethodGet, "/update_server", nil))

	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", rr.Code)
	}
}

func TestHandleWebhook_RateLimited(t *testing.T) {
	server, deployer := setupTestServer(t, Options{WebhookSecret: testSecret, WebhookRateLimit: 2})
	router := server.Router()
	body := []byte("b")
	signature := webhook.Sign(testSecret, body)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, webhookRequest(body, signature))
		codes = append(codes, rr.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Errorf("Expected first two requests to pass, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("Expected third request to be rate limited, got %d", codes[2])
	}
	if deployer.count() != 2 {
		t.Errorf("Expected 2 deploy triggers, got %d", deployer.count())
	}

	// Link pages are not limited
	for i := 0; i < 5; i++ {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected index to stay available, got %d", rr.Code)
		}
	}
}
