package proxy

import (
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"
)

// Well-known local proxy ports probed in auto-detect mode, in priority order.
var probePorts = []int{7890, 7891, 7897, 7898, 10808, 10809, 1080, 789}

const probeTimeout = 500 * time.Millisecond

type Config struct {
	Enabled bool
	URL     string
	Auto    bool
}

// Resolver owns outbound proxy discovery and hands out a shared HTTP client.
// Resolution is memoized until Invalidate is called; a configured but
// unreachable proxy falls through to a direct connection rather than failing
// the caller.
type Resolver struct {
	mu       sync.Mutex
	config   Config
	resolved bool
	proxyURL *url.URL
	client   *http.Client
	timeout  time.Duration

	probe func(addr string, timeout time.Duration) bool
}

func NewResolver(config Config, requestTimeout time.Duration) *Resolver {
	return &Resolver{
		config:  config,
		timeout: requestTimeout,
		probe:   probeTCP,
	}
}

func probeTCP(addr string, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Client returns the shared HTTP client, resolving the proxy on first use.
func (r *Resolver) Client() *http.Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.resolved {
		r.proxyURL = r.resolve()
		r.client = r.buildClient(r.proxyURL)
		r.resolved = true
	}

	return r.client
}

// ProxyURL returns the resolved proxy address, or nil for a direct connection.
func (r *Resolver) ProxyURL() *url.URL {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.resolved {
		r.proxyURL = r.resolve()
		r.client = r.buildClient(r.proxyURL)
		r.resolved = true
	}

	return r.proxyURL
}

// Invalidate clears the memoized result; the next Client call re-resolves.
// Called when proxy settings change.
func (r *Resolver) Invalidate(config Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.config = config
	r.resolved = false
	r.proxyURL = nil
	r.client = nil
}

func (r *Resolver) resolve() *url.URL {
	if r.config.Enabled {
		if r.config.Auto {
			if u := r.detectLocal(); u != nil {
				return u
			}
			slog.Warn("Proxy auto-detection found no reachable local proxy, using direct connection")
		} else if r.config.URL != "" {
			if u := r.verify(r.config.URL); u != nil {
				return u
			}
			slog.Warn("Configured proxy is unreachable, using direct connection", "proxy", r.config.URL)
		}
	}

	for _, env := range []string{"HTTPS_PROXY", "https_proxy", "HTTP_PROXY", "http_proxy"} {
		if v := os.Getenv(env); v != "" {
			if u := r.verify(v); u != nil {
				slog.Info("Using proxy from environment", "env", env, "proxy", v)
				return u
			}
		}
	}

	return nil
}

func (r *Resolver) detectLocal() *url.URL {
	for _, port := range probePorts {
		addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
		if r.probe(addr, probeTimeout) {
			u, err := url.Parse("http://" + addr)
			if err != nil {
				continue
			}
			slog.Info("Detected local proxy", "addr", addr)
			return u
		}
	}
	return nil
}

func (r *Resolver) verify(rawURL string) *url.URL {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil
	}

	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), defaultPort(u.Scheme))
	}

	if !r.probe(host, probeTimeout) {
		return nil
	}

	return u
}

func (r *Resolver) buildClient(proxyURL *url.URL) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        20,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	if proxyURL != nil {
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &http.Client{
		Transport: transport,
		Timeout:   r.timeout,
	}
}

func defaultPort(scheme string) string {
	switch scheme {
	case "https":
		return "443"
	case "socks5":
		return "1080"
	default:
		return "80"
	}
}
