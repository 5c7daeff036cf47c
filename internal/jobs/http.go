package jobs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cronwork/internal/config"
	"cronwork/internal/cron"
	logx "cronwork/pkg/logx"
)

const defaultHTTPTimeout = 30 * time.Second

type httpJob struct {
	method  string
	url     string
	body    string
	headers map[string]string
	client  *http.Client
	log     logx.Logger
}

func newHTTP(jc config.JobConfig, log logx.Logger) (cron.Job, error) {
	u, err := url.Parse(strings.TrimSpace(jc.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("job %q: url must be an absolute http(s) URL", jc.Name)
	}
	timeout, err := config.ParseDurationOrDefault("jobs."+jc.Name+".timeout", jc.Timeout, defaultHTTPTimeout)
	if err != nil {
		return nil, err
	}
	method := strings.ToUpper(strings.TrimSpace(jc.Method))
	if method == "" {
		method = http.MethodGet
	}
	headers := make(map[string]string, len(jc.Headers))
	for k, v := range jc.Headers {
		headers[k] = v
	}
	return &httpJob{
		method:  method,
		url:     u.String(),
		body:    jc.Body,
		headers: headers,
		client:  &http.Client{Timeout: timeout},
		log:     log,
	}, nil
}

// Run sends the request. Any non-2xx status is an error.
func (j *httpJob) Run(ctx context.Context) error {
	var body io.Reader
	if j.body != "" {
		body = strings.NewReader(j.body)
	}
	req, err := http.NewRequestWithContext(ctx, j.method, j.url, body)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "cronwork")
	for k, v := range j.headers {
		req.Header.Set(k, v)
	}

	resp, err := j.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", j.method, j.url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: unexpected status %s", j.method, j.url, resp.Status)
	}
	j.log.Debug("http job finished", logx.String("url", j.url), logx.Int("status", resp.StatusCode))
	return nil
}
