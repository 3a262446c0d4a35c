// Package stub provides a scripted in-memory Client for testing.
package stub

import (
	"context"
	"sync"

	"channel-guard/internal/lnd"
)

// Client implements lnd.Client for testing. Error queues are consumed one
// entry per call; a nil entry (or an exhausted queue) means success.
type Client struct {
	mu sync.Mutex

	Info    lnd.NodeInfo
	InfoErr error

	Channels     []lnd.Channel
	ChannelsErrs []error

	Edges    map[string]*lnd.ChannelEdge
	EdgeErrs []error

	UpdateErrs []error
	Updates    []*lnd.PolicyUpdate

	ListCalls   int
	EdgeCalls   int
	UpdateCalls int
}

// NewClient creates a new stub client.
func NewClient() *Client {
	return &Client{
		Edges: make(map[string]*lnd.ChannelEdge),
	}
}

// GetInfo returns the scripted node identity.
func (c *Client) GetInfo(_ context.Context) (*lnd.NodeInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.InfoErr != nil {
		return nil, c.InfoErr
	}
	info := c.Info
	return &info, nil
}

// ListChannels returns the scripted channel list, or the next queued error.
func (c *Client) ListChannels(_ context.Context) ([]lnd.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ListCalls++
	if err := pop(&c.ChannelsErrs); err != nil {
		return nil, err
	}

	channels := make([]lnd.Channel, len(c.Channels))
	copy(channels, c.Channels)
	return channels, nil
}

// GetChanInfo returns the scripted edge, or the next queued error.
func (c *Client) GetChanInfo(_ context.Context, chanID string) (*lnd.ChannelEdge, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.EdgeCalls++
	if err := pop(&c.EdgeErrs); err != nil {
		return nil, err
	}

	edge, ok := c.Edges[chanID]
	if !ok {
		return nil, lnd.ErrChannelNotFound
	}
	return edge, nil
}

// UpdateChanPolicy records the update, or returns the next queued error.
func (c *Client) UpdateChanPolicy(_ context.Context, update *lnd.PolicyUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.UpdateCalls++
	if err := pop(&c.UpdateErrs); err != nil {
		return err
	}

	u := *update
	c.Updates = append(c.Updates, &u)
	return nil
}

// SetLocalBalance rewrites the local balance of the scripted channel with
// the given id, for multi-poll scenarios.
func (c *Client) SetLocalBalance(chanID string, balance int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.Channels {
		if c.Channels[i].ChanID == chanID {
			c.Channels[i].LocalBalance = balance
		}
	}
}

// LastUpdate returns the most recent recorded policy update, or nil.
func (c *Client) LastUpdate() *lnd.PolicyUpdate {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.Updates) == 0 {
		return nil
	}
	return c.Updates[len(c.Updates)-1]
}

func pop(queue *[]error) error {
	if len(*queue) == 0 {
		return nil
	}
	err := (*queue)[0]
	*queue = (*queue)[1:]
	return err
}
