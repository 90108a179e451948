package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"easydns/upstream/bootstrap"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/miekg/dns"
)

// DoH DNS over HTTPS 传输（RFC 8484，POST application/dns-message）
// 服务器域名通过 bootstrap resolver 解析，避免鸡生蛋问题
type DoH struct {
	url       string
	client    *http.Client
	bootstrap *bootstrap.Resolver
}

func NewDoH(urlStr string, boot *bootstrap.Resolver) (*DoH, error) {
	if _, err := url.Parse(urlStr); err != nil {
		return nil, err
	}

	// 以 cleanhttp 的池化 Transport 为底，替换 DialContext 走 bootstrap 解析
	tr := cleanhttp.DefaultPooledTransport()
	tr.ForceAttemptHTTP2 = true
	tr.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}

		ip, err := boot.Resolve(ctx, host)
		if err != nil {
			return nil, err
		}

		dialer := &net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}
		return dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
	}

	return &DoH{
		url:       urlStr,
		bootstrap: boot,
		client: &http.Client{
			Transport: tr,
		},
	}, nil
}

func (t *DoH) Exchange(ctx context.Context, msg *dns.Msg) (*dns.Msg, error) {
	buf, err := msg.Pack()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(buf))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/dns-message")
	req.Header.Set("Accept", "application/dns-message")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("doh request failed with status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	r := new(dns.Msg)
	if err := r.Unpack(body); err != nil {
		return nil, err
	}

	// HTTP 层不保证保留 ID，恢复为请求的 ID
	r.Id = msg.Id
	return r, nil
}

func (t *DoH) Address() string {
	return t.url
}

func (t *DoH) Protocol() string {
	return "doh"
}

// Close 关闭空闲的 HTTP 连接
func (t *DoH) Close() error {
	t.client.CloseIdleConnections()
	return nil
}
