// Package invocation tracks operation-heartbeat liveness per member.
// Heartbeat packets arrive at a fixed broadcast period; the monitor only
// records the most recent arrival time for each member and leaves deviation
// analysis to its readers.
package invocation

import (
	"sync/atomic"
	"time"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/gridwatch/gridwatch/internal/logging"
)

// Monitor owns the per-member last-heartbeat table. It is written by the
// heartbeat receive path and read concurrently by diagnostics.
type Monitor struct {
	heartbeatPerMember cmap.ConcurrentMap[string, *atomic.Int64]
	members            cmap.ConcurrentMap[string, Member]
	broadcastPeriod    time.Duration
	logger             *logging.Logger
}

// NewMonitor creates a monitor with the given heartbeat broadcast period.
func NewMonitor(broadcastPeriod time.Duration, logger *logging.Logger) *Monitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Monitor{
		heartbeatPerMember: cmap.New[*atomic.Int64](),
		members:            cmap.New[Member](),
		broadcastPeriod:    broadcastPeriod,
		logger:             logger.WithComponent("invocation-monitor"),
	}
}

// HeartbeatBroadcastPeriod returns the expected interval between heartbeats.
func (m *Monitor) HeartbeatBroadcastPeriod() time.Duration {
	return m.broadcastPeriod
}

// AddMember starts tracking a member. The first heartbeat timestamp is the
// join time so a silent member is detected rather than ignored.
func (m *Monitor) AddMember(member Member) {
	m.members.Set(member.Address, member)
	ts := &atomic.Int64{}
	ts.Store(time.Now().UnixMilli())
	m.heartbeatPerMember.SetIfAbsent(member.Address, ts)
	m.logger.Info("member added", "address", member.Address, "uuid", member.UUID)
}

// RemoveMember stops tracking a member.
func (m *Monitor) RemoveMember(address string) {
	m.members.Remove(address)
	m.heartbeatPerMember.Remove(address)
	m.logger.Info("member removed", "address", address)
}

// OnHeartbeat records a heartbeat arrival. Timestamps only move forward;
// a reordered packet with an older timestamp is dropped.
func (m *Monitor) OnHeartbeat(address string, timestampMillis int64) {
	entry, ok := m.heartbeatPerMember.Get(address)
	if !ok {
		// Heartbeat from an unknown member: late join or removal race.
		m.logger.Debug("heartbeat from untracked member", "address", address)
		return
	}
	for {
		last := entry.Load()
		if timestampMillis <= last {
			return
		}
		if entry.CompareAndSwap(last, timestampMillis) {
			return
		}
	}
}

// LastHeartbeats returns a snapshot of member address to last-heartbeat
// millis. The snapshot is weakly consistent with concurrent updates.
func (m *Monitor) LastHeartbeats() map[string]int64 {
	out := make(map[string]int64, m.heartbeatPerMember.Count())
	m.heartbeatPerMember.IterCb(func(address string, ts *atomic.Int64) {
		out[address] = ts.Load()
	})
	return out
}

// MemberCount returns the number of tracked members.
func (m *Monitor) MemberCount() int {
	return m.members.Count()
}
