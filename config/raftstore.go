package config

import (
	"go.etcd.io/etcd/raft/v3"
)

// RaftstoreConfig configures the multi-raft store.
type RaftstoreConfig struct {
	SyncLog bool `toml:"sync-log" yaml:"sync-log"`
	// RaftDBPath defaults to <data-dir>/raft and is canonicalized by Validate.
	RaftDBPath string       `toml:"raftdb-path" yaml:"raftdb-path"`
	Capacity   ReadableSize `toml:"capacity" yaml:"capacity"`

	RaftBaseTickInterval     ReadableDuration `toml:"raft-base-tick-interval" yaml:"raft-base-tick-interval"`
	RaftHeartbeatTicks       int              `toml:"raft-heartbeat-ticks" yaml:"raft-heartbeat-ticks"`
	RaftElectionTimeoutTicks int              `toml:"raft-election-timeout-ticks" yaml:"raft-election-timeout-ticks"`
	RaftMaxSizePerMsg        ReadableSize     `toml:"raft-max-size-per-msg" yaml:"raft-max-size-per-msg"`
	RaftMaxInflightMsgs      int              `toml:"raft-max-inflight-msgs" yaml:"raft-max-inflight-msgs"`
	RaftEntryMaxSize         ReadableSize     `toml:"raft-entry-max-size" yaml:"raft-entry-max-size"`

	RaftLogGCTickInterval ReadableDuration `toml:"raft-log-gc-tick-interval" yaml:"raft-log-gc-tick-interval"`
	RaftLogGCThreshold    uint64           `toml:"raft-log-gc-threshold" yaml:"raft-log-gc-threshold"`
	RaftLogGCCountLimit   uint64           `toml:"raft-log-gc-count-limit" yaml:"raft-log-gc-count-limit"`
	RaftLogGCSizeLimit    ReadableSize     `toml:"raft-log-gc-size-limit" yaml:"raft-log-gc-size-limit"`

	SplitRegionCheckTickInterval ReadableDuration `toml:"split-region-check-tick-interval" yaml:"split-region-check-tick-interval"`
	RegionMaxSize                ReadableSize     `toml:"region-max-size" yaml:"region-max-size"`
	RegionSplitSize              ReadableSize     `toml:"region-split-size" yaml:"region-split-size"`
	RegionSplitCheckDiff         ReadableSize     `toml:"region-split-check-diff" yaml:"region-split-check-diff"`
	RegionCompactCheckInterval   ReadableDuration `toml:"region-compact-check-interval" yaml:"region-compact-check-interval"`
	RegionCompactDeleteKeysCount uint64           `toml:"region-compact-delete-keys-count" yaml:"region-compact-delete-keys-count"`

	PDHeartbeatTickInterval      ReadableDuration `toml:"pd-heartbeat-tick-interval" yaml:"pd-heartbeat-tick-interval"`
	PDStoreHeartbeatTickInterval ReadableDuration `toml:"pd-store-heartbeat-tick-interval" yaml:"pd-store-heartbeat-tick-interval"`
	SnapMgrGCTickInterval        ReadableDuration `toml:"snap-mgr-gc-tick-interval" yaml:"snap-mgr-gc-tick-interval"`
	SnapGCTimeout                ReadableDuration `toml:"snap-gc-timeout" yaml:"snap-gc-timeout"`
	LockCFCompactInterval        ReadableDuration `toml:"lock-cf-compact-interval" yaml:"lock-cf-compact-interval"`
	LockCFCompactBytesThreshold  ReadableSize     `toml:"lock-cf-compact-bytes-threshold" yaml:"lock-cf-compact-bytes-threshold"`

	NotifyCapacity           int              `toml:"notify-capacity" yaml:"notify-capacity"`
	MessagesPerTick          int              `toml:"messages-per-tick" yaml:"messages-per-tick"`
	MaxPeerDownDuration      ReadableDuration `toml:"max-peer-down-duration" yaml:"max-peer-down-duration"`
	MaxLeaderMissingDuration ReadableDuration `toml:"max-leader-missing-duration" yaml:"max-leader-missing-duration"`
	SnapApplyBatchSize       ReadableSize     `toml:"snap-apply-batch-size" yaml:"snap-apply-batch-size"`
	ConsistencyCheckInterval ReadableDuration `toml:"consistency-check-interval" yaml:"consistency-check-interval"`
	ReportRegionFlowInterval ReadableDuration `toml:"report-region-flow-interval" yaml:"report-region-flow-interval"`
	RaftStoreMaxLeaderLease  ReadableDuration `toml:"raft-store-max-leader-lease" yaml:"raft-store-max-leader-lease"`
	RightDeriveWhenSplit     bool             `toml:"right-derive-when-split" yaml:"right-derive-when-split"`
	AllowRemoveLeader        bool             `toml:"allow-remove-leader" yaml:"allow-remove-leader"`
}

func defaultRaftstoreConfig() RaftstoreConfig {
	return RaftstoreConfig{
		SyncLog:                      true,
		RaftBaseTickInterval:         Seconds(1),
		RaftHeartbeatTicks:           2,
		RaftElectionTimeoutTicks:     10,
		RaftMaxSizePerMsg:            1 * MB,
		RaftMaxInflightMsgs:          256,
		RaftEntryMaxSize:             8 * MB,
		RaftLogGCTickInterval:        Seconds(10),
		RaftLogGCThreshold:           50,
		RaftLogGCCountLimit:          196608,
		RaftLogGCSizeLimit:           192 * MB,
		SplitRegionCheckTickInterval: Seconds(10),
		RegionMaxSize:                384 * MB,
		RegionSplitSize:              256 * MB,
		RegionSplitCheckDiff:         32 * MB,
		RegionCompactDeleteKeysCount: 1000000,
		PDHeartbeatTickInterval:      Minutes(1),
		PDStoreHeartbeatTickInterval: Seconds(10),
		SnapMgrGCTickInterval:        Minutes(1),
		SnapGCTimeout:                Hours(4),
		LockCFCompactInterval:        Minutes(10),
		LockCFCompactBytesThreshold:  256 * MB,
		NotifyCapacity:               40960,
		MessagesPerTick:              4096,
		MaxPeerDownDuration:          Minutes(5),
		MaxLeaderMissingDuration:     Hours(2),
		SnapApplyBatchSize:           10 * MB,
		ReportRegionFlowInterval:     Minutes(1),
		RaftStoreMaxLeaderLease:      Seconds(9),
		RightDeriveWhenSplit:         true,
	}
}

// ElectionTimeout is the base tick interval times the election ticks.
func (c *RaftstoreConfig) ElectionTimeout() ReadableDuration {
	return c.RaftBaseTickInterval * ReadableDuration(c.RaftElectionTimeoutTicks)
}

// RaftConfig returns the consensus settings of peer id. The caller supplies
// Storage before starting a node.
func (c *RaftstoreConfig) RaftConfig(id uint64) *raft.Config {
	return &raft.Config{
		ID:                       id,
		ElectionTick:             c.RaftElectionTimeoutTicks,
		HeartbeatTick:            c.RaftHeartbeatTicks,
		MaxSizePerMsg:            c.RaftMaxSizePerMsg.Bytes(),
		MaxCommittedSizePerReady: c.RaftEntryMaxSize.Bytes(),
		MaxInflightMsgs:          c.RaftMaxInflightMsgs,
		CheckQuorum:              true,
		PreVote:                  true,
	}
}

func (c *RaftstoreConfig) validate() error {
	if c.RaftHeartbeatTicks <= 0 {
		return invalidf("raftstore.raft-heartbeat-ticks must be positive, got %d", c.RaftHeartbeatTicks)
	}
	if c.RaftElectionTimeoutTicks <= c.RaftHeartbeatTicks {
		return invalidf("raftstore.raft-election-timeout-ticks (%d) must be greater than raft-heartbeat-ticks (%d)",
			c.RaftElectionTimeoutTicks, c.RaftHeartbeatTicks)
	}
	if c.RaftStoreMaxLeaderLease >= c.ElectionTimeout() {
		return invalidf("raftstore.raft-store-max-leader-lease (%s) must be less than the election timeout (%s)",
			c.RaftStoreMaxLeaderLease, c.ElectionTimeout())
	}
	if c.RegionSplitSize > c.RegionMaxSize {
		return invalidf("raftstore.region-split-size (%s) must not exceed region-max-size (%s)",
			c.RegionSplitSize, c.RegionMaxSize)
	}
	if c.RaftLogGCThreshold < 1 {
		return invalidf("raftstore.raft-log-gc-threshold must be at least 1")
	}
	return validateRaftConfig(c.RaftConfig(1))
}

// validateRaftConfig mirrors the checks raft applies when a node starts, so
// that a bad document fails before any node is created.
func validateRaftConfig(rc *raft.Config) error {
	if rc.ID == raft.None {
		return invalidf("raft: cannot use none as id")
	}
	if rc.HeartbeatTick <= 0 {
		return invalidf("raft: heartbeat tick must be greater than 0")
	}
	if rc.ElectionTick <= rc.HeartbeatTick {
		return invalidf("raft: election tick must be greater than heartbeat tick")
	}
	if rc.MaxInflightMsgs <= 0 {
		return invalidf("raft: max inflight messages must be greater than 0")
	}
	if rc.ReadOnlyOption == raft.ReadOnlyLeaseBased && !rc.CheckQuorum {
		return invalidf("raft: CheckQuorum must be enabled when ReadOnlyOption is ReadOnlyLeaseBased")
	}
	return nil
}
