package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/maastricht-university/claimlens/retry"
)

// HTTP is shared by every collaborator client. Calls are retried with Policy.
type HTTP struct {
	c      *http.Client
	Policy retry.Policy
}

func NewHTTP(timeout time.Duration, p retry.Policy) *HTTP {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTP{c: &http.Client{Timeout: timeout}, Policy: p}
}

// StatusError is a non-2xx answer from a collaborator.
type StatusError struct {
	Service    string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Service, e.Status, e.Body)
}

func (e *StatusError) HTTPStatus() int { return e.StatusCode }

func (h *HTTP) do(ctx context.Context, service string, build func(ctx context.Context) (*http.Request, error), out any) error {
	return retry.Run(ctx, h.Policy, service, func(ctx context.Context) error {
		req, err := build(ctx)
		if err != nil {
			return retry.Permanent(err)
		}
		resp, err := h.c.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return &StatusError{Service: service, StatusCode: resp.StatusCode, Status: resp.Status, Body: string(body)}
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return retry.E(retry.CodeInvalidArgument, service+" decode", err)
		}
		return nil
	})
}

func (h *HTTP) postJSON(ctx context.Context, service, url string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return h.do(ctx, service, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, out)
}

func (h *HTTP) getJSON(ctx context.Context, service, url string, out any) error {
	return h.do(ctx, service, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}, out)
}

// postFiles uploads paths as repeated multipart parts named field.
func (h *HTTP) postFiles(ctx context.Context, service, url, field string, paths []string, out any) error {
	return h.do(ctx, service, func(ctx context.Context) (*http.Request, error) {
		var b bytes.Buffer
		w := multipart.NewWriter(&b)
		for _, p := range paths {
			fw, err := w.CreateFormFile(field, filepath.Base(p))
			if err != nil {
				return nil, err
			}
			fd, err := os.Open(p)
			if err != nil {
				return nil, err
			}
			_, err = io.Copy(fw, fd)
			fd.Close()
			if err != nil {
				return nil, err
			}
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &b)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", w.FormDataContentType())
		return req, nil
	}, out)
}
