package archive

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nexusgraph/nexus/graph"
	"github.com/nexusgraph/nexus/nexuserr"
	"github.com/nexusgraph/nexus/schema"
)

// Policy ages out nodes of one label based on a timestamp property.
type Policy struct {
	Label         string
	TimestampProp string
	MaxAge        time.Duration
}

const day = 24 * time.Hour

// DefaultPolicies returns the standard aging rules: conversational
// artifacts age fastest, people and organizations slowest.
func DefaultPolicies() []Policy {
	return []Policy{
		{Label: schema.Message, TimestampProp: "timestamp", MaxAge: 90 * day},
		{Label: schema.Task, TimestampProp: "created_date", MaxAge: 60 * day},
		{Label: schema.Event, TimestampProp: "start_time", MaxAge: 60 * day},
		{Label: schema.Person, TimestampProp: "last_contact_date", MaxAge: 180 * day},
		{Label: schema.Organization, TimestampProp: "created_at", MaxAge: 270 * day},
	}
}

// Pruner archives aged nodes into cold storage. Scheduling is external;
// callers invoke RunPruningJob from a cron or ticker, and overlapping runs
// are rejected rather than queued.
type Pruner struct {
	store    graph.Store
	cold     ColdStorage
	policies []Policy
	batch    int
	logger   *slog.Logger

	running atomic.Bool

	mu      sync.Mutex
	lastRun time.Time
}

// PrunerOptions configures a Pruner.
type PrunerOptions struct {
	// Policies override DefaultPolicies when non-empty.
	Policies []Policy

	// BatchSize caps nodes archived per label per run. Zero uses 100.
	BatchSize int

	Logger *slog.Logger
}

// NewPruner creates a pruner over the graph store and cold storage.
func NewPruner(store graph.Store, cold ColdStorage, opts PrunerOptions) *Pruner {
	policies := opts.Policies
	if len(policies) == 0 {
		policies = DefaultPolicies()
	}
	batch := opts.BatchSize
	if batch <= 0 {
		batch = 100
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		store:    store,
		cold:     cold,
		policies: policies,
		batch:    batch,
		logger:   logger,
	}
}

// Stats summarizes one pruning run.
type Stats struct {
	Archived   int            `json:"archived"`
	PerLabel   map[string]int `json:"per_label"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// LastRun returns when the previous successful run started, or the zero
// time before the first run.
func (p *Pruner) LastRun() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastRun
}

// RunPruningJob archives every node older than its label's policy, one
// batch per label. A run that overlaps an in-flight run fails fast with
// ErrPruningInProgress; the caller's scheduler simply tries again next
// tick. Re-running over already archived nodes is a no-op, so a run cut
// short by an error can be retried safely.
func (p *Pruner) RunPruningJob(ctx context.Context) (*Stats, error) {
	const op = "Pruner.RunPruningJob"
	if !p.running.CompareAndSwap(false, true) {
		return nil, nexuserr.Unavailable(op, nexuserr.ErrPruningInProgress)
	}
	defer p.running.Store(false)

	stats := &Stats{
		PerLabel:  make(map[string]int, len(p.policies)),
		StartedAt: time.Now().UTC(),
	}
	for _, policy := range p.policies {
		if ctx.Err() != nil {
			return nil, nexuserr.FromContext(op, ctx.Err())
		}
		cutoff := stats.StartedAt.Add(-policy.MaxAge)
		nodes, err := p.store.FindOlderThan(ctx, policy.Label, policy.TimestampProp, cutoff, p.batch)
		if err != nil {
			return nil, err
		}
		for _, node := range nodes {
			if err := p.archiveNode(ctx, node); err != nil {
				return nil, err
			}
			stats.Archived++
			stats.PerLabel[policy.Label]++
		}
	}
	stats.FinishedAt = time.Now().UTC()

	p.mu.Lock()
	p.lastRun = stats.StartedAt
	p.mu.Unlock()

	p.logger.Info("pruning run complete",
		"archived", stats.Archived, "duration", stats.FinishedAt.Sub(stats.StartedAt))
	return stats, nil
}

// archiveNode moves the node's full payload to cold storage and rewrites
// the graph node as an archived stub. Message content is stripped from the
// stub; other labels keep their properties and only gain the archive
// bookkeeping.
func (p *Pruner) archiveNode(ctx context.Context, node *graph.Node) error {
	ref, err := p.cold.Store(ctx, node.ID(), node.Props)
	if err != nil {
		return err
	}

	update := map[string]any{
		"status":            schema.StatusArchived,
		"archived_at":       time.Now().UTC().Format(time.RFC3339),
		"archive_reference": ref,
	}
	if node.Label == schema.Message {
		update["content"] = ""
		update["has_archived_content"] = true
	}
	_, err = p.store.UpdateNode(ctx, node.Label, map[string]any{"id": node.ID()}, update)
	return err
}

// GetNodeWithArchive fetches a node and, when it is an archived stub,
// rehydrates the stripped properties from cold storage. The access is
// recorded either way so frequently read stubs surface in access stats.
func (p *Pruner) GetNodeWithArchive(ctx context.Context, label, nodeID string) (*graph.Node, error) {
	node, err := p.store.GetNode(ctx, label, map[string]any{"id": nodeID})
	if err != nil {
		return nil, err
	}

	if node.State().Kind == graph.StateArchived {
		if ref := node.StringProp("archive_reference"); ref != "" {
			data, err := p.cold.Retrieve(ctx, ref)
			if err != nil {
				return nil, err
			}
			for k, v := range data {
				if cur, ok := node.Props[k]; !ok || cur == "" {
					node.Props[k] = v
				}
			}
		}
	}

	if err := p.store.Touch(ctx, nodeID); err != nil {
		p.logger.Warn("recording archive access failed", "id", nodeID, "error", err)
	}
	return node, nil
}
