// Package replication fans a message out to peer brokers and counts
// acknowledgements toward a configured quorum.
package replication

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ehgkals/realtime-fin-mq/pkg/types"
	"github.com/ehgkals/realtime-fin-mq/util"
)

// requestTimeout bounds each per-peer replication call so a single slow or
// unreachable peer cannot stall admission indefinitely.
const requestTimeout = 1 * time.Second

// Client issues one unary HTTP POST per peer per message. Failures are
// logged and never retried synchronously; the caller decides what a
// quorum shortfall means.
type Client struct {
	peers      []string
	httpClient *http.Client
}

// New builds a replication client for the given peer base URLs
// (e.g. "http://10.0.0.2:8080").
func New(peers []string) *Client {
	return &Client{
		peers:      peers,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// PeerCount returns the configured peer count, used by the broker to compute
// the effective quorum.
func (c *Client) PeerCount() int {
	return len(c.peers)
}

// Replicate fans msg out to every peer concurrently and returns the total
// number of acknowledgements, counting self (1) plus every peer that
// answered with a 2xx status within requestTimeout.
func (c *Client) Replicate(ctx context.Context, msg types.Message) int {
	var acks atomic.Int64
	acks.Store(1) // self

	var wg sync.WaitGroup
	for _, peer := range c.peers {
		wg.Add(1)
		go func(peer string) {
			defer wg.Done()
			if c.sendOne(ctx, peer, msg) {
				acks.Add(1)
			}
		}(peer)
	}
	wg.Wait()

	return int(acks.Load())
}

func (c *Client) sendOne(ctx context.Context, peer string, msg types.Message) bool {
	body, err := json.Marshal(msg)
	if err != nil {
		util.Warn("[replication] failed to marshal message %s: %v", msg.ID, err)
		return false
	}

	reqCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	url := strings.TrimRight(peer, "/") + "/_replicate"
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		util.Warn("[replication] failed to build request to %s: %v", peer, err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		util.Warn("[replication] peer %s unreachable: %v", peer, err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		util.Warn("[replication] peer %s returned non-2xx status %d", peer, resp.StatusCode)
		return false
	}
	return true
}
