package prospectus

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/els_batch/app/els_batch/pkg/config"
	"github.com/iWorld-y/els_batch/app/els_batch/pkg/logger"
	"github.com/iWorld-y/els_batch/app/els_batch/pkg/model"
)

// DocumentFetcher 抓取说明书的接口
type DocumentFetcher interface {
	Fetch(ctx context.Context, url string) (*Document, error)
}

// Fetcher 基于 HTTP 的说明书抓取器
type Fetcher struct {
	client    *http.Client
	userAgent string
	attempts  int
	limiter   *rate.Limiter
}

// Ensure Fetcher implements DocumentFetcher
var _ DocumentFetcher = (*Fetcher)(nil)

// NewFetcher 根据配置创建抓取器
func NewFetcher(cfg config.FetchConfig) *Fetcher {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 3
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = config.DefaultUserAgent
	}

	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
		},
		userAgent: ua,
		attempts:  attempts,
		limiter:   newLimiter(cfg.QPS, cfg.RPM),
	}
}

// newLimiter qps 与 rpm 都未配置时不限流
func newLimiter(qps, rpm int) *rate.Limiter {
	switch {
	case rpm > 0:
		burst := qps
		if burst < 1 {
			burst = 1
		}
		return rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst)
	case qps > 0:
		return rate.NewLimiter(rate.Limit(qps), qps)
	default:
		return nil
	}
}

// Fetch 抓取并解析说明书。
// 只在超时时重试，重试之间没有等待；其他错误与非 2xx 状态直接返回。
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Document, error) {
	body, err := f.retry(ctx, rawURL, true)
	if err != nil {
		return nil, err
	}

	doc, err := NewDocument(rawURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	logger.Log.WithField("url", rawURL).Debugf("说明书抓取完成: %d bytes", len(body))
	return doc, nil
}

// Get 带重试地读取原始响应体，用于下载表格与索引文件
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	return f.retry(ctx, rawURL, false)
}

// retry decode 为 true 时按声明的字符集转为 UTF-8
func (f *Fetcher) retry(ctx context.Context, rawURL string, decode bool) ([]byte, error) {
	var lastErr error
	for left := f.attempts; left > 0; left-- {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		body, err := f.get(ctx, rawURL, decode)
		if err == nil {
			return body, nil
		}
		if !isTimeout(err) {
			return nil, err
		}

		lastErr = err
		if left > 1 {
			logger.Log.Infof("Retrying... attempts left: %d", left-1)
		}
	}
	return nil, fmt.Errorf("%w: %s: %v", model.ErrFetchTimeout, rawURL, lastErr)
}

func (f *Fetcher) get(ctx context.Context, rawURL string, decode bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	res, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", rawURL, res.StatusCode)
	}

	var reader io.Reader = res.Body
	if decode {
		if reader, err = charset.NewReader(res.Body, res.Header.Get("Content-Type")); err != nil {
			return nil, fmt.Errorf("detect charset: %w", err)
		}
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
