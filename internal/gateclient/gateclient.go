// Package gateclient is the Brain-side half of the signed HTTPS channel
// to the Gatekeeper (spec §4.G): canonical JSON signing, the proposal
// POST, and the heartbeat loop. Grounded on the teacher's
// AlpacaTrader.generateHMAC/doRequest pair in trader/alpaca_trader.go,
// generalized from a single fixed-header signature into a canonicalized
// whole-body signature so proposal.context's semi-open map signs
// deterministically regardless of Go map iteration order.
package gateclient

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/zerotype19/gekko3/internal/logging"
	"github.com/zerotype19/gekko3/internal/model"
)

var log = logging.For("brain.gateclient")

// Client posts signed proposals and heartbeats to the Gatekeeper.
type Client struct {
	baseURL      string
	sharedSecret string
	http         *http.Client
}

func New(baseURL, sharedSecret string) *Client {
	return &Client{
		baseURL:      baseURL,
		sharedSecret: sharedSecret,
		http:         &http.Client{Timeout: 5 * time.Second},
	}
}

// ProposalOutcome is the Gate's synchronous response to a submitted
// proposal.
type ProposalOutcome struct {
	Status string `json:"status"` // "APPROVED" | "REJECTED" | "APPROVED_BUT_EXECUTION_FAILED"
	Reason string `json:"reason,omitempty"`
	OrderID string `json:"order_id,omitempty"`
}

// SubmitProposal canonically signs and POSTs a proposal to
// /v1/proposal, with a 2s timeout per spec §4.G.
func (c *Client) SubmitProposal(ctx context.Context, p model.Proposal) (ProposalOutcome, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.TimestampMs == 0 {
		p.TimestampMs = time.Now().UnixMilli()
	}

	body, sig, err := SignProposal(p, c.sharedSecret)
	if err != nil {
		return ProposalOutcome{}, fmt.Errorf("gateclient: sign proposal: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/proposal", bytes.NewReader(body))
	if err != nil {
		return ProposalOutcome{}, fmt.Errorf("gateclient: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GW-Signature", sig)

	resp, err := c.http.Do(req)
	if err != nil {
		return ProposalOutcome{}, fmt.Errorf("gateclient: proposal post failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return ProposalOutcome{}, fmt.Errorf("gateclient: read response: %w", err)
	}

	var outcome ProposalOutcome
	if err := json.Unmarshal(respBody, &outcome); err != nil {
		return ProposalOutcome{}, fmt.Errorf("gateclient: parse response: %w", err)
	}
	return outcome, nil
}

// Heartbeat sends the Brain's liveness signal. Failures are logged and
// swallowed: a missed heartbeat is non-fatal to the caller (spec §4.G);
// the Gate only records when it last accepted one.
func (c *Client) Heartbeat(ctx context.Context, state json.RawMessage) {
	payload := map[string]interface{}{
		"timestamp_ms": time.Now().UnixMilli(),
	}
	if len(state) > 0 {
		payload["brain_state"] = json.RawMessage(state)
	}
	body, sig, err := SignHeartbeat(payload, c.sharedSecret)
	if err != nil {
		log.Warn().Err(err).Msg("heartbeat: sign failed")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/heartbeat", bytes.NewReader(body))
	if err != nil {
		log.Warn().Err(err).Msg("heartbeat: build request failed")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GW-Signature", sig)

	resp, err := c.http.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("heartbeat: post failed")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		log.Warn().Int("status", resp.StatusCode).Msg("heartbeat: rejected")
	}
}

// SignHeartbeat canonically signs a heartbeat payload, exported so the
// Gate's own tests can construct a validly-signed heartbeat body
// without duplicating the canonicalization logic a third time.
func SignHeartbeat(payload map[string]interface{}, secret string) ([]byte, string, error) {
	return signCanonical(payload, secret)
}

// RunHeartbeatLoop sends a heartbeat every 60s until ctx is canceled.
func (c *Client) RunHeartbeatLoop(ctx context.Context, stateFn func() json.RawMessage) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()
	c.Heartbeat(ctx, stateFn())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Heartbeat(ctx, stateFn())
		}
	}
}

// SignProposal canonicalizes and signs a full Proposal, returning the
// exact bytes posted to the Gate and the hex-encoded signature.
func SignProposal(p model.Proposal, secret string) ([]byte, string, error) {
	p.Signature = ""
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, "", err
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, "", err
	}
	return signCanonical(generic, secret)
}

// signCanonical marshals v with recursively sorted object keys and
// compact separators, then HMAC-SHA256-signs the resulting bytes,
// returning the canonical body and a hex signature. This is the wire
// representation both sides must agree on byte-for-byte.
func signCanonical(v interface{}, secret string) ([]byte, string, error) {
	sorted := canonicalize(v)
	body, err := json.Marshal(sorted)
	if err != nil {
		return nil, "", err
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	sig := hex.EncodeToString(mac.Sum(nil))
	return body, sig, nil
}

// canonicalize recursively rewrites maps into sortedMap so
// encoding/json emits keys in a stable order (Go already sorts
// map[string]T keys when marshaling, but nested interface{} maps
// decoded from JSON are map[string]interface{}, which json also sorts
// -- canonicalize exists to make that guarantee explicit and to recurse
// into slices uniformly).
func canonicalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(sortedMap, 0, len(keys))
		for _, k := range keys {
			out = append(out, sortedEntry{key: k, value: canonicalize(t[k])})
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = canonicalize(e)
		}
		return out
	default:
		return v
	}
}

// sortedMap preserves explicit key order through json.Marshal, unlike a
// plain map which Go would still sort identically for string keys --
// kept explicit here so the canonical form never depends on that
// implementation detail of encoding/json.
type sortedEntry struct {
	key   string
	value interface{}
}

type sortedMap []sortedEntry

func (m sortedMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(e.key)
		if err != nil {
			return nil, err
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')
		valBytes, err := json.Marshal(e.value)
		if err != nil {
			return nil, err
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
