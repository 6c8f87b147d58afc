/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package raft

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/firefly-oss/maelnode/internal/config"
	"github.com/firefly-oss/maelnode/internal/merr"
	"github.com/firefly-oss/maelnode/internal/metrics"
	"github.com/firefly-oss/maelnode/internal/transport"
	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"
)

// Role is one of the three Raft roles a Node can hold.
type Role int32

const (
	Follower Role = iota
	Candidate
	Leader
)

func (r Role) String() string {
	switch r {
	case Follower:
		return "follower"
	case Candidate:
		return "candidate"
	case Leader:
		return "leader"
	default:
		return "unknown"
	}
}

// Node is one replica participating in the Raft-replicated key/value
// store. Fields are grouped by concern — term/role/leader, leader-only
// replication bookkeeping, apply progress — each under its own
// independent reader/writer lock rather than one global mutex, so an
// RPC handler reading the log never blocks an unrelated election-state
// check.
type Node struct {
	conn   *transport.Conn
	log    logr.Logger
	cfg    *config.Config
	metric *metrics.Metrics

	nodeID   string
	peers    []string // other_nodes: full membership minus self
	allNodes []string // full membership including self

	// Election/term state, guarded by termMu.
	termMu      sync.RWMutex
	currentTerm int
	votedFor    string // "" means none
	role        Role
	leader      string // "" means none; only meaningful in Follower

	electionDeadline  time.Time
	stepDownDeadline  time.Time
	deadlineMu        sync.Mutex

	// Leader-only replication bookkeeping, guarded by leaderMu. Reset on
	// every become_leader transition.
	leaderMu   sync.RWMutex
	nextIndex  map[string]int
	matchIndex map[string]int

	raftLog *Log
	state   *KVState

	// Apply bookkeeping.
	applyMu     sync.Mutex
	lastApplied int
	commitMu    sync.RWMutex
	commitIndex int

	initialized sync.WaitGroup
	initOnce    sync.Once

	applyChOnce sync.Once
	applyChVal  chan struct{}
}

// NewNode constructs a Node not yet bound to a cluster; Init completes
// setup once the "init" message supplies node_id/node_ids.
func NewNode(conn *transport.Conn, cfg *config.Config, m *metrics.Metrics, log logr.Logger) *Node {
	n := &Node{
		conn:       conn,
		log:        log,
		cfg:        cfg,
		metric:     m,
		role:       Follower,
		raftLog:    NewLog(),
		state:      NewKVState(),
		nextIndex:  make(map[string]int),
		matchIndex: make(map[string]int),
	}
	n.initialized.Add(1)
	return n
}

// Init binds node identity from the harness's "init" message. A node
// must not participate in elections or accept client writes before
// this completes.
func (n *Node) Init(nodeID string, nodeIDs []string) {
	n.initOnce.Do(func() {
		n.nodeID = nodeID
		n.allNodes = nodeIDs
		n.conn.SetNodeID(nodeID)
		n.peers = make([]string, 0, len(nodeIDs)-1)
		for _, id := range nodeIDs {
			if id != nodeID {
				n.peers = append(n.peers, id)
			}
		}
		n.resetElectionDeadline()
		n.initialized.Done()
	})
}

// ready blocks until Init has completed, so background loops and
// handlers started before "init" arrives don't race node identity.
func (n *Node) ready() {
	n.initialized.Wait()
}

func (n *Node) NodeID() string   { return n.nodeID }
func (n *Node) Peers() []string  { return n.peers }
func (n *Node) Log() *Log        { return n.raftLog }
func (n *Node) State() *KVState  { return n.state }

// majority returns floor(total_nodes/2)+1, counting the node itself: a
// 3-node cluster must tolerate exactly one peer failure and still
// reach quorum with 2 votes, which is floor(3/2)+1 over the full
// membership, not floor(2/2)+1 over the other peers alone.
func (n *Node) majority() int {
	return len(n.allNodes)/2 + 1
}

// CurrentRole reports the node's role under its term lock.
func (n *Node) CurrentRole() Role {
	n.termMu.RLock()
	defer n.termMu.RUnlock()
	return n.role
}

// CurrentTerm reports the node's term under its term lock.
func (n *Node) CurrentTerm() int {
	n.termMu.RLock()
	defer n.termMu.RUnlock()
	return n.currentTerm
}

// KnownLeader reports the last node_id that sent a valid AppendEntries,
// or "" if none is known (only meaningful while Follower).
func (n *Node) KnownLeader() string {
	n.termMu.RLock()
	defer n.termMu.RUnlock()
	return n.leader
}

// advanceTerm adopts a higher term seen from an RPC, resetting voted_for
// to none. This is the ONLY path that clears voted_for; becomeFollower
// triggered by a valid AppendEntries from the current term's leader
// must not reset a vote already cast this term.
func (n *Node) advanceTerm(term int) {
	n.termMu.Lock()
	defer n.termMu.Unlock()
	if term <= n.currentTerm {
		return
	}
	n.currentTerm = term
	n.votedFor = ""
	n.role = Follower
	n.leader = ""
	n.metric.TermAdvances.Add(context.Background(), 1)
}

// maybeStepDown adopts remoteTerm and becomes Follower if remoteTerm is
// higher than the node's current term. Every RPC receive path checks
// this first.
func (n *Node) maybeStepDown(remoteTerm int) {
	n.termMu.RLock()
	higher := remoteTerm > n.currentTerm
	n.termMu.RUnlock()
	if higher {
		n.advanceTerm(remoteTerm)
		n.resetElectionDeadline()
	}
}

// becomeFollower transitions to Follower and records the sending
// leader, without touching voted_for (that only happens via advanceTerm
// on an actual term change).
func (n *Node) becomeFollower(leaderID string) {
	n.termMu.Lock()
	n.role = Follower
	n.leader = leaderID
	n.termMu.Unlock()
	n.resetElectionDeadline()
}

// becomeCandidate starts a new election: increments term, votes for
// self, and broadcasts request_vote to every peer. Requires role != Leader.
func (n *Node) becomeCandidate(ctx context.Context) {
	n.termMu.Lock()
	if n.role == Leader {
		n.termMu.Unlock()
		return
	}
	n.currentTerm++
	electionTerm := n.currentTerm
	n.votedFor = n.nodeID
	n.role = Candidate
	n.leader = ""
	n.termMu.Unlock()

	n.resetElectionDeadline()
	n.resetStepDownDeadline()
	n.metric.ElectionsStarted.Add(ctx, 1)

	lastIdx := n.raftLog.LastIndex()
	lastTerm := n.raftLog.Last().Term

	body := requestVoteReq{
		Type:         "request_vote",
		Term:         electionTerm,
		CandidateID:  n.nodeID,
		LastLogIndex: lastIdx,
		LastLogTerm:  lastTerm,
	}
	waiters := n.conn.BroadcastRPC(n.peers, body)

	votes := 1 // self-vote
	need := n.majority()
	if votes >= need {
		n.becomeLeader(electionTerm)
		return
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, w := range waiters {
		wg.Add(1)
		go func(w *transport.Waiter) {
			defer wg.Done()
			raw, ok := w.Wait(ctx)
			if !ok {
				return
			}
			var res requestVoteRes
			if err := decodeBody(raw, &res); err != nil {
				return
			}
			n.maybeStepDown(res.Term)
			n.resetStepDownDeadline()

			n.termMu.RLock()
			stillCandidate := n.role == Candidate && n.currentTerm == electionTerm
			n.termMu.RUnlock()
			if !stillCandidate {
				return
			}
			if res.Term != electionTerm || !res.VoteGranted {
				return
			}
			mu.Lock()
			votes++
			haveMajority := votes >= need
			mu.Unlock()
			if haveMajority {
				n.becomeLeader(electionTerm)
			}
		}(w)
	}
	wg.Wait()
}

// becomeLeader requires the node to still be Candidate in electionTerm;
// it seeds next_index/match_index for every peer and clears leader.
func (n *Node) becomeLeader(electionTerm int) {
	n.termMu.Lock()
	if n.role != Candidate || n.currentTerm != electionTerm {
		n.termMu.Unlock()
		return
	}
	n.role = Leader
	n.leader = ""
	n.termMu.Unlock()

	seedSize := n.raftLog.Size()
	n.leaderMu.Lock()
	n.nextIndex = make(map[string]int, len(n.peers))
	n.matchIndex = make(map[string]int, len(n.peers))
	for _, p := range n.peers {
		n.nextIndex[p] = seedSize
		n.matchIndex[p] = 0
	}
	n.leaderMu.Unlock()

	n.resetStepDownDeadline()
	n.metric.ElectionsWon.Add(context.Background(), 1)
	n.log.Info("became leader", "term", electionTerm)
}

func (n *Node) resetElectionDeadline() {
	d := n.cfg.ElectionTimeoutMin + time.Duration(rand.Int63n(int64(n.cfg.ElectionTimeoutMax-n.cfg.ElectionTimeoutMin)))
	n.deadlineMu.Lock()
	n.electionDeadline = time.Now().Add(d)
	n.deadlineMu.Unlock()
}

func (n *Node) resetStepDownDeadline() {
	d := n.cfg.ElectionTimeoutMin + time.Duration(rand.Int63n(int64(n.cfg.ElectionTimeoutMax-n.cfg.ElectionTimeoutMin)))
	n.deadlineMu.Lock()
	n.stepDownDeadline = time.Now().Add(d)
	n.deadlineMu.Unlock()
}

func (n *Node) electionExpired() bool {
	n.deadlineMu.Lock()
	defer n.deadlineMu.Unlock()
	return time.Now().After(n.electionDeadline)
}

func (n *Node) stepDownExpired() bool {
	n.deadlineMu.Lock()
	defer n.deadlineMu.Unlock()
	return time.Now().After(n.stepDownDeadline)
}

// Run launches the node's background loops (election timer, step-down
// watchdog, replication loop, apply pump), each supervised by an
// errgroup.Group so a panic or unexpected error in one loop tears the
// rest down together rather than leaving the node half-alive.
func (n *Node) Run(ctx context.Context) error {
	n.ready()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return n.electionLoop(ctx) })
	g.Go(func() error { return n.stepDownLoop(ctx) })
	g.Go(func() error { return n.replicationLoop(ctx) })
	g.Go(func() error { return n.applyLoop(ctx) })
	return g.Wait()
}

func (n *Node) electionLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(jitteredSleep()):
		}
		if n.CurrentRole() != Leader && n.electionExpired() {
			n.becomeCandidate(ctx)
		}
	}
}

func (n *Node) stepDownLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(jitteredSleep()):
		}
		if n.CurrentRole() == Leader && n.stepDownExpired() {
			n.becomeFollower("")
		}
	}
}

// jitteredSleep returns a 50-150ms jittered duration for the background
// loop polling cadence.
func jitteredSleep() time.Duration {
	return 50*time.Millisecond + time.Duration(rand.Int63n(int64(100*time.Millisecond)))
}

// merrToError is a small helper so handlers can treat a *merr.Error
// returned from the KV state as a plain error uniformly.
func merrToError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*merr.Error); ok {
		return err
	}
	return merr.NewAbort(err.Error())
}
