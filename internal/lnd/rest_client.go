package lnd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// RESTClient implements Client against the node's REST API.
type RESTClient struct {
	baseURL     string
	client      *http.Client
	macaroonHex string
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// ClientOption configures RESTClient.
type ClientOption func(*RESTClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *RESTClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *RESTClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *RESTClient) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *RESTClient) {
		c.maxDelay = d
	}
}

// WithMacaroonHex sets the hex-encoded admin macaroon sent with every
// request.
func WithMacaroonHex(macaroon string) ClientOption {
	return func(c *RESTClient) {
		c.macaroonHex = macaroon
	}
}

// WithHTTPClient sets a custom http.Client, e.g. one configured for the
// node's self-signed TLS certificate.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *RESTClient) {
		c.client = client
	}
}

// NewRESTClient creates a new REST client for the node at baseURL
// (e.g. "https://localhost:8080").
func NewRESTClient(baseURL string, opts ...ClientOption) *RESTClient {
	c := &RESTClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// statusError carries the HTTP status so callers can map specific codes to
// sentinel errors.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.body)
}

// call performs one REST call with retries and exponential backoff. Client
// errors (4xx other than 429) are returned immediately; network failures,
// rate limits and server errors are retried.
func (c *RESTClient) call(ctx context.Context, method, path string, reqBody, result interface{}) error {
	var body []byte
	if reqBody != nil {
		var err error
		body, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.macaroonHex != "" {
			req.Header.Set("Grpc-Metadata-macaroon", c.macaroonHex)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		// Handle rate limiting
		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			// Client errors are not retried
			return &statusError{code: resp.StatusCode, body: string(respBody)}
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = &statusError{code: resp.StatusCode, body: string(respBody)}
			continue
		}

		if result != nil {
			if err := json.Unmarshal(respBody, result); err != nil {
				return fmt.Errorf("unmarshal response: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// parseInt converts the node's string-encoded int64 fields. Empty strings
// decode to zero.
func parseInt(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}

// GetInfo retrieves the local node identity.
func (c *RESTClient) GetInfo(ctx context.Context) (*NodeInfo, error) {
	var result getInfoResult
	if err := c.call(ctx, http.MethodGet, "/v1/getinfo", nil, &result); err != nil {
		return nil, err
	}

	return &NodeInfo{
		IdentityPubkey: result.IdentityPubkey,
		Alias:          result.Alias,
	}, nil
}

type getInfoResult struct {
	IdentityPubkey string `json:"identity_pubkey"`
	Alias          string `json:"alias"`
}

// ListChannels retrieves all open channels.
func (c *RESTClient) ListChannels(ctx context.Context) ([]Channel, error) {
	var result listChannelsResult
	if err := c.call(ctx, http.MethodGet, "/v1/channels", nil, &result); err != nil {
		return nil, err
	}

	channels := make([]Channel, 0, len(result.Channels))
	for _, raw := range result.Channels {
		capacity, err := parseInt(raw.Capacity)
		if err != nil {
			return nil, fmt.Errorf("parse capacity %q: %w", raw.Capacity, err)
		}
		localBalance, err := parseInt(raw.LocalBalance)
		if err != nil {
			return nil, fmt.Errorf("parse local_balance %q: %w", raw.LocalBalance, err)
		}
		remoteBalance, err := parseInt(raw.RemoteBalance)
		if err != nil {
			return nil, fmt.Errorf("parse remote_balance %q: %w", raw.RemoteBalance, err)
		}

		channels = append(channels, Channel{
			ChanID:        raw.ChanID,
			ChannelPoint:  raw.ChannelPoint,
			Capacity:      capacity,
			LocalBalance:  localBalance,
			RemoteBalance: remoteBalance,
			Active:        raw.Active,
		})
	}

	return channels, nil
}

type listChannelsResult struct {
	Channels []listChannelsItem `json:"channels"`
}

type listChannelsItem struct {
	ChanID        string `json:"chan_id"`
	ChannelPoint  string `json:"channel_point"`
	Capacity      string `json:"capacity"`
	LocalBalance  string `json:"local_balance"`
	RemoteBalance string `json:"remote_balance"`
	Active        bool   `json:"active"`
}

// GetChanInfo retrieves the graph edge for a channel.
func (c *RESTClient) GetChanInfo(ctx context.Context, chanID string) (*ChannelEdge, error) {
	var result chanEdgeResult
	err := c.call(ctx, http.MethodGet, "/v1/graph/edge/"+chanID, nil, &result)
	if err != nil {
		var statusErr *statusError
		if errors.As(err, &statusErr) && statusErr.code == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", ErrChannelNotFound, chanID)
		}
		return nil, err
	}

	capacity, err := parseInt(result.Capacity)
	if err != nil {
		return nil, fmt.Errorf("parse capacity %q: %w", result.Capacity, err)
	}

	edge := &ChannelEdge{
		ChannelID: result.ChannelID,
		Node1Pub:  result.Node1Pub,
		Node2Pub:  result.Node2Pub,
		Capacity:  capacity,
	}

	if edge.Node1Policy, err = result.Node1Policy.toPolicy(); err != nil {
		return nil, fmt.Errorf("node1 policy: %w", err)
	}
	if edge.Node2Policy, err = result.Node2Policy.toPolicy(); err != nil {
		return nil, fmt.Errorf("node2 policy: %w", err)
	}

	return edge, nil
}

type chanEdgeResult struct {
	ChannelID   string           `json:"channel_id"`
	Node1Pub    string           `json:"node1_pub"`
	Node2Pub    string           `json:"node2_pub"`
	Capacity    string           `json:"capacity"`
	Node1Policy *chanEdgePolicy `json:"node1_policy"`
	Node2Policy *chanEdgePolicy `json:"node2_policy"`
}

type chanEdgePolicy struct {
	FeeRateMilliMsat string `json:"fee_rate_milli_msat"`
	FeeBaseMsat      string `json:"fee_base_msat"`
	MinHTLC          string `json:"min_htlc"`
	MaxHTLCMsat      string `json:"max_htlc_msat"`
	TimeLockDelta    uint32 `json:"time_lock_delta"`
	Disabled         bool   `json:"disabled"`
}

func (p *chanEdgePolicy) toPolicy() (*RoutingPolicy, error) {
	if p == nil {
		return nil, nil
	}

	feeRate, err := parseInt(p.FeeRateMilliMsat)
	if err != nil {
		return nil, fmt.Errorf("parse fee_rate_milli_msat %q: %w", p.FeeRateMilliMsat, err)
	}
	baseFee, err := parseInt(p.FeeBaseMsat)
	if err != nil {
		return nil, fmt.Errorf("parse fee_base_msat %q: %w", p.FeeBaseMsat, err)
	}
	minHTLC, err := parseInt(p.MinHTLC)
	if err != nil {
		return nil, fmt.Errorf("parse min_htlc %q: %w", p.MinHTLC, err)
	}
	maxHTLC, err := parseInt(p.MaxHTLCMsat)
	if err != nil {
		return nil, fmt.Errorf("parse max_htlc_msat %q: %w", p.MaxHTLCMsat, err)
	}

	return &RoutingPolicy{
		FeeRatePPM:    feeRate,
		BaseFeeMsat:   baseFee,
		MinHTLCMsat:   minHTLC,
		MaxHTLCMsat:   maxHTLC,
		TimeLockDelta: p.TimeLockDelta,
		Disabled:      p.Disabled,
	}, nil
}

// UpdateChanPolicy pushes a new routing policy for one channel.
func (c *RESTClient) UpdateChanPolicy(ctx context.Context, update *PolicyUpdate) error {
	txid, outputIndex, err := splitChannelPoint(update.ChannelPoint)
	if err != nil {
		return err
	}

	req := updatePolicyRequest{
		ChanPoint: &chanPoint{
			FundingTxidStr: txid,
			OutputIndex:    outputIndex,
		},
		BaseFeeMsat:          strconv.FormatInt(update.BaseFeeMsat, 10),
		FeeRatePPM:           uint64(update.FeeRatePPM),
		TimeLockDelta:        update.TimeLockDelta,
		MaxHTLCMsat:          strconv.FormatInt(update.MaxHTLCMsat, 10),
		MinHTLCMsat:          strconv.FormatInt(update.MinHTLCMsat, 10),
		MinHTLCMsatSpecified: true,
	}

	var result updatePolicyResult
	if err := c.call(ctx, http.MethodPost, "/v1/chanpolicy", &req, &result); err != nil {
		return err
	}

	if len(result.FailedUpdates) > 0 {
		f := result.FailedUpdates[0]
		return fmt.Errorf("%w: %s (%s)", ErrPolicyUpdateFailed, f.UpdateError, f.Reason)
	}

	return nil
}

// splitChannelPoint parses a "txid:index" funding outpoint.
func splitChannelPoint(channelPoint string) (string, uint32, error) {
	txid, indexStr, ok := strings.Cut(channelPoint, ":")
	if !ok {
		return "", 0, fmt.Errorf("invalid channel point %q", channelPoint)
	}
	index, err := strconv.ParseUint(indexStr, 10, 32)
	if err != nil {
		return "", 0, fmt.Errorf("invalid channel point %q: %w", channelPoint, err)
	}
	return txid, uint32(index), nil
}

type updatePolicyRequest struct {
	ChanPoint            *chanPoint `json:"chan_point"`
	BaseFeeMsat          string     `json:"base_fee_msat"`
	FeeRatePPM           uint64     `json:"fee_rate_ppm"`
	TimeLockDelta        uint32     `json:"time_lock_delta"`
	MaxHTLCMsat          string     `json:"max_htlc_msat"`
	MinHTLCMsat          string     `json:"min_htlc_msat"`
	MinHTLCMsatSpecified bool       `json:"min_htlc_msat_specified"`
}

type chanPoint struct {
	FundingTxidStr string `json:"funding_txid_str"`
	OutputIndex    uint32 `json:"output_index"`
}

type updatePolicyResult struct {
	FailedUpdates []failedUpdate `json:"failed_updates"`
}

type failedUpdate struct {
	Reason      string `json:"reason"`
	UpdateError string `json:"update_error"`
}
