package webhook

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/celldiag/eiscore/pkg/models"
)

// Client posts finished analysis reports to an external collector. The
// transport keeps connections pooled since batch runs deliver many small
// payloads to the same host.
type Client struct {
	url        string
	httpClient *http.Client
	quiet      bool
	bufferPool sync.Pool
}

// NewClient creates a webhook client for the given URL.
func NewClient(url string, quiet bool) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}

	return &Client{
		url:   url,
		quiet: quiet,
		httpClient: &http.Client{
			Timeout:   45 * time.Second,
			Transport: transport,
		},
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 4096))
			},
		},
	}
}

// Send posts one finished analysis. Non-finite chi-square values are
// zeroed before marshaling since JSON cannot carry them.
func (c *Client) Send(item models.WebhookItem) error {
	if item.Report != nil {
		item.Report.ChiSquare = sanitizeFloat(item.Report.ChiSquare)
	}

	payload := models.WebhookPayload{
		ID:     item.RequestID,
		Time:   time.Now().Format(time.RFC3339Nano),
		Source: item.Path,
		Report: item.Report,
	}

	buf := c.bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer c.bufferPool.Put(buf)

	if err := json.NewEncoder(buf).Encode(payload); err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	resp, err := c.httpClient.Post(c.url, "application/json", bytes.NewReader(buf.Bytes()))
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if !c.quiet {
		log.Printf("webhook sent - ID: %s, source: %s, status: %d", item.RequestID, item.Path, resp.StatusCode)
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook request failed with status %d", resp.StatusCode)
	}
	return nil
}

func sanitizeFloat(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
