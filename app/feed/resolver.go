package feed

import (
	"net/url"
	"strings"
)

const (
	// Scheme is the indirection scheme for gateway-generated feeds,
	// e.g. rsshub://sspai/index.
	Scheme = "rsshub"

	DefaultGatewayBaseURL = "https://rsshub.app"

	gatewayKeyword = "rsshub"
)

type ResolveOptions struct {
	// GatewayBaseURL overrides the default gateway for namespace routes.
	GatewayBaseURL string
}

// ResolveFeedURL normalizes the three accepted address forms into one
// canonical fetchable URL:
//
//	rsshub://sspai/index          -> https://rsshub.app/sspai/index
//	rsshub://my-host.com/a/b      -> https://my-host.com/a/b
//	https://rsshub.example.com/x  -> accepted verbatim (gateway host)
//	sspai/index                   -> https://rsshub.app/sspai/index
//
// It is a pure string transform; no network I/O happens here.
func ResolveFeedURL(input string, opts ResolveOptions) Resolution {
	input = strings.TrimSpace(input)
	if input == "" {
		return Resolution{Error: "feed address is empty"}
	}

	base := strings.TrimRight(opts.GatewayBaseURL, "/")
	if base == "" {
		base = DefaultGatewayBaseURL
	}

	if strings.HasPrefix(input, Scheme+"://") {
		return resolveScheme(input, base)
	}

	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		return resolveDirect(input, base)
	}

	if strings.Contains(input, "://") {
		return Resolution{Error: "unsupported scheme in feed address: " + input}
	}

	// Bare namespace/route shorthand implies the configured gateway.
	if strings.Contains(input, "/") {
		route := strings.TrimLeft(input, "/")
		return Resolution{
			IsValid: true,
			FeedURL: base + "/" + route,
			BaseURL: base,
		}
	}

	return Resolution{Error: "unrecognized feed address: " + input}
}

func resolveScheme(input, base string) Resolution {
	remainder := strings.TrimPrefix(input, Scheme+"://")
	remainder = strings.TrimLeft(remainder, "/")
	if remainder == "" {
		return Resolution{Error: "feed address has no route: " + input}
	}

	first, rest, _ := strings.Cut(remainder, "/")

	// A dotted first segment is a custom gateway host, not a namespace.
	if strings.Contains(first, ".") {
		feedURL := "https://" + first
		if rest != "" {
			feedURL += "/" + rest
		}
		return Resolution{
			IsValid: true,
			FeedURL: feedURL,
			BaseURL: "https://" + first,
		}
	}

	return Resolution{
		IsValid: true,
		FeedURL: base + "/" + remainder,
		BaseURL: base,
	}
}

func resolveDirect(input, base string) Resolution {
	u, err := url.Parse(input)
	if err != nil || u.Host == "" {
		return Resolution{Error: "malformed feed URL: " + input}
	}

	host := strings.ToLower(u.Hostname())
	gatewayHost := gatewayHostname(base)

	matches := host == gatewayHost ||
		strings.HasSuffix(host, "."+gatewayHost) ||
		strings.Contains(host, gatewayKeyword)

	if !matches {
		return Resolution{Error: "not a recognized gateway URL: " + input}
	}

	return Resolution{
		IsValid: true,
		FeedURL: input,
		BaseURL: u.Scheme + "://" + u.Host,
	}
}

func gatewayHostname(base string) string {
	u, err := url.Parse(base)
	if err != nil || u.Hostname() == "" {
		return "rsshub.app"
	}
	return strings.ToLower(u.Hostname())
}
