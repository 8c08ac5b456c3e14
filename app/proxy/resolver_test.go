package proxy

import (
	"testing"
	"time"
)

func clearProxyEnv(t *testing.T) {
	t.Helper()
	for _, env := range []string{"HTTPS_PROXY", "https_proxy", "HTTP_PROXY", "http_proxy"} {
		t.Setenv(env, "")
	}
}

func probeAlways(addr string, timeout time.Duration) bool { return true }
func probeNever(addr string, timeout time.Duration) bool  { return false }

func TestResolverDirectWhenDisabled(t *testing.T) {
	clearProxyEnv(t)

	r := NewResolver(Config{Enabled: false}, 30*time.Second)
	r.probe = probeAlways

	if u := r.ProxyURL(); u != nil {
		t.Errorf("Expected direct connection, got proxy: %s", u)
	}
	if r.Client() == nil {
		t.Error("Expected a usable client even without a proxy")
	}
}

func TestResolverExplicitURL(t *testing.T) {
	clearProxyEnv(t)

	r := NewResolver(Config{Enabled: true, URL: "http://127.0.0.1:7890"}, 30*time.Second)
	r.probe = probeAlways

	u := r.ProxyURL()
	if u == nil {
		t.Fatal("Expected configured proxy to be used")
	}
	if u.String() != "http://127.0.0.1:7890" {
		t.Errorf("Expected configured proxy URL, got: %s", u)
	}
}

func TestResolverUnreachableProxyFallsThrough(t *testing.T) {
	clearProxyEnv(t)

	r := NewResolver(Config{Enabled: true, URL: "http://127.0.0.1:7890"}, 30*time.Second)
	r.probe = probeNever

	if u := r.ProxyURL(); u != nil {
		t.Errorf("Expected fallthrough to direct connection, got: %s", u)
	}
}

func TestResolverAutoDetect(t *testing.T) {
	clearProxyEnv(t)

	r := NewResolver(Config{Enabled: true, Auto: true}, 30*time.Second)
	r.probe = func(addr string, timeout time.Duration) bool {
		return addr == "127.0.0.1:7897"
	}

	u := r.ProxyURL()
	if u == nil {
		t.Fatal("Expected auto-detection to find the reachable port")
	}
	if u.String() != "http://127.0.0.1:7897" {
		t.Errorf("Expected detected proxy, got: %s", u)
	}
}

func TestResolverAutoDetectPortPriority(t *testing.T) {
	clearProxyEnv(t)

	r := NewResolver(Config{Enabled: true, Auto: true}, 30*time.Second)
	r.probe = probeAlways

	u := r.ProxyURL()
	if u == nil {
		t.Fatal("Expected a proxy when every port answers")
	}
	if u.String() != "http://127.0.0.1:7890" {
		t.Errorf("Expected the highest-priority port, got: %s", u)
	}
}

func TestResolverEnvFallback(t *testing.T) {
	clearProxyEnv(t)
	t.Setenv("HTTPS_PROXY", "http://127.0.0.1:10808")

	r := NewResolver(Config{Enabled: false}, 30*time.Second)
	r.probe = probeAlways

	u := r.ProxyURL()
	if u == nil {
		t.Fatal("Expected environment proxy to be used")
	}
	if u.String() != "http://127.0.0.1:10808" {
		t.Errorf("Expected env proxy, got: %s", u)
	}
}

func TestResolverEnvProxyMustBeReachable(t *testing.T) {
	clearProxyEnv(t)
	t.Setenv("HTTPS_PROXY", "http://127.0.0.1:10808")

	r := NewResolver(Config{Enabled: false}, 30*time.Second)
	r.probe = probeNever

	if u := r.ProxyURL(); u != nil {
		t.Errorf("Expected unreachable env proxy to be skipped, got: %s", u)
	}
}

func TestResolverMemoizes(t *testing.T) {
	clearProxyEnv(t)

	probeCalls := 0
	r := NewResolver(Config{Enabled: true, URL: "http://127.0.0.1:7890"}, 30*time.Second)
	r.probe = func(addr string, timeout time.Duration) bool {
		probeCalls++
		return true
	}

	first := r.Client()
	second := r.Client()

	if probeCalls != 1 {
		t.Errorf("Expected a single resolution, probe ran %d times", probeCalls)
	}
	if first != second {
		t.Error("Expected the same shared client across calls")
	}
}

func TestResolverInvalidateForcesReResolution(t *testing.T) {
	clearProxyEnv(t)

	r := NewResolver(Config{Enabled: true, URL: "http://127.0.0.1:7890"}, 30*time.Second)
	r.probe = probeAlways

	if u := r.ProxyURL(); u == nil || u.String() != "http://127.0.0.1:7890" {
		t.Fatalf("Expected initial proxy, got: %v", u)
	}

	r.Invalidate(Config{Enabled: true, URL: "http://127.0.0.1:1080"})

	u := r.ProxyURL()
	if u == nil {
		t.Fatal("Expected proxy after invalidation")
	}
	if u.String() != "http://127.0.0.1:1080" {
		t.Errorf("Expected new settings to take effect, got: %s", u)
	}
}
