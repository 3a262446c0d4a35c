// Package lnd talks to a Lightning node over its REST API.
package lnd

import (
	"context"
	"errors"
)

// Client errors.
var (
	// ErrChannelNotFound is returned when the node does not know the
	// requested channel.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrPolicyUpdateFailed is returned when the node accepted a policy
	// update request but reported a failed update for the channel.
	ErrPolicyUpdateFailed = errors.New("policy update failed")
)

// Client defines the node RPC surface the guard needs.
type Client interface {
	// GetInfo retrieves the local node identity.
	GetInfo(ctx context.Context) (*NodeInfo, error)

	// ListChannels retrieves all open channels with their balances.
	ListChannels(ctx context.Context) ([]Channel, error)

	// GetChanInfo retrieves the graph edge for a channel, including both
	// routing policies. Returns ErrChannelNotFound if the node does not
	// know the channel.
	GetChanInfo(ctx context.Context, chanID string) (*ChannelEdge, error)

	// UpdateChanPolicy pushes a new routing policy for one channel.
	// Returns ErrPolicyUpdateFailed if the node reports the update did
	// not apply.
	UpdateChanPolicy(ctx context.Context, update *PolicyUpdate) error
}

// NodeInfo identifies the local node.
type NodeInfo struct {
	IdentityPubkey string
	Alias          string
}

// Channel is one open channel from the node's channel list.
type Channel struct {
	ChanID        string // compact numeric short channel id, decimal
	ChannelPoint  string // funding outpoint "txid:index"
	Capacity      int64  // satoshis
	LocalBalance  int64  // satoshis
	RemoteBalance int64  // satoshis
	Active        bool
}

// RoutingPolicy is one side's forwarding policy on a channel edge.
type RoutingPolicy struct {
	FeeRatePPM    int64
	BaseFeeMsat   int64
	MinHTLCMsat   int64
	MaxHTLCMsat   int64 // 0 means the node reports no cap
	TimeLockDelta uint32
	Disabled      bool
}

// ChannelEdge is a channel as seen in the network graph, with the policies
// of both endpoints.
type ChannelEdge struct {
	ChannelID   string
	Node1Pub    string
	Node2Pub    string
	Capacity    int64
	Node1Policy *RoutingPolicy
	Node2Policy *RoutingPolicy
}

// PolicyForNode returns the policy advertised by the given node on this
// edge, or nil if the node is not an endpoint or has no policy yet.
func (e *ChannelEdge) PolicyForNode(pubkey string) *RoutingPolicy {
	switch pubkey {
	case e.Node1Pub:
		return e.Node1Policy
	case e.Node2Pub:
		return e.Node2Policy
	}
	return nil
}

// PolicyUpdate is the full policy sent to the node for one channel. Every
// field is applied; callers must carry over values they do not intend to
// change.
type PolicyUpdate struct {
	ChannelPoint  string // funding outpoint "txid:index"
	BaseFeeMsat   int64
	FeeRatePPM    int64
	TimeLockDelta uint32
	MaxHTLCMsat   int64
	MinHTLCMsat   int64
}
