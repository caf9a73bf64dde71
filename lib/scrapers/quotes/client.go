package quotes

import (
	"net/http/cookiejar"
	"net/url"
	"time"

	"quotecrawl/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

// Client wraps the HTTP side of a crawl against one quote site.
type Client struct {
	BaseURL *url.URL
	Http    *resty.Client
}

type ClientOptions struct {
	BaseURL string
	// Timeout defaults to 30s when zero.
	Timeout time.Duration
}

func NewClient(opts ClientOptions) (*Client, error) {
	baseURL, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, err
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = time.Second * 30
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseURL)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(baseURL.Hostname()))
	client.SetTimeout(timeout)

	restyutil.InstrumentClient(client, tracer, restyInstrumentOutput)

	return &Client{
		BaseURL: baseURL,
		Http:    client,
	}, nil
}
