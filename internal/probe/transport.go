package probe

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/proxy"
)

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// socksDialer returns a DialContext routing through the SOCKS5 proxy at
// address, given as host:port or socks5://[user:pass@]host:port.
func socksDialer(address string) (dialFunc, error) {
	hostPort, auth, err := parseProxyAddress(address)
	if err != nil {
		return nil, err
	}

	d, err := proxy.SOCKS5("tcp", hostPort, auth, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext, nil
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		type result struct {
			conn net.Conn
			err  error
		}
		ch := make(chan result, 1)
		go func() {
			conn, err := d.Dial(network, addr)
			ch <- result{conn, err}
		}()
		select {
		case r := <-ch:
			return r.conn, r.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}, nil
}

func parseProxyAddress(address string) (string, *proxy.Auth, error) {
	if !strings.Contains(address, "://") {
		if !isValidHostPort(address) {
			return "", nil, ErrInvalidProxyAddress
		}
		return address, nil, nil
	}

	u, err := url.Parse(address)
	if err != nil || (u.Scheme != "socks5" && u.Scheme != "socks5h") || !isValidHostPort(u.Host) {
		return "", nil, ErrInvalidProxyAddress
	}

	var auth *proxy.Auth
	if u.User != nil {
		pass, _ := u.User.Password()
		auth = &proxy.Auth{User: u.User.Username(), Password: pass}
	}
	return u.Host, auth, nil
}

func isValidHostPort(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}

// headerInjectingTransport adds the configured cookie and headers to every
// request before handing it to base.
type headerInjectingTransport struct {
	base    http.RoundTripper
	cookie  string
	headers map[string]string
}

func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}
	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}

	return t.base.RoundTrip(clone)
}
