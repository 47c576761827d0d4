// Package dispatcher is the event intake: it receives goal creation,
// update, and resolution events, persists the triggering record, and
// enqueues a background auction that runs the debate, matching, and
// settlement pipeline to completion. Resolution runs synchronously.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mochiyaki/accountability-market/internal/apperr"
	"github.com/mochiyaki/accountability-market/internal/debate"
	"github.com/mochiyaki/accountability-market/internal/matching"
	"github.com/mochiyaki/accountability-market/internal/metrics"
	"github.com/mochiyaki/accountability-market/internal/model"
	"github.com/mochiyaki/accountability-market/internal/resolution"
	"github.com/mochiyaki/accountability-market/internal/settlement"
	"github.com/mochiyaki/accountability-market/internal/store"
)

// eventNamespace seeds the deterministic idempotence key derived for each
// (goal, update) auction event.
var eventNamespace = uuid.MustParse("7c3a6f0e-7e0a-4c9b-9a8b-7f6b2e1d4a3c")

// roster is the default agent lineup used to auto-seed a market the first
// time an auction runs and fewer than NumAgents exist.
var roster = []string{"Alice", "Bob", "Charlie", "Diana", "Eve"}

const defaultStartingCash = 1000

// Dispatcher is the HTTP intake's entry point into the market engine.
type Dispatcher struct {
	store      store.Store
	debate     *debate.Orchestrator
	settlement *settlement.Engine
	resolution *resolution.Engine
	numAgents  int
	now        func() time.Time

	goalLocksMu sync.Mutex
	goalLocks   map[int64]*sync.Mutex

	dispatchedMu sync.Mutex
	dispatched   map[uuid.UUID]bool
}

// New builds a Dispatcher. numAgents is the roster size auto-seeded on a
// goal's first auction if fewer agents already exist; 0 selects the
// default of 3.
func New(s store.Store, deb *debate.Orchestrator, numAgents int) *Dispatcher {
	if numAgents <= 0 {
		numAgents = 3
	}
	return &Dispatcher{
		store:      s,
		debate:     deb,
		settlement: settlement.New(s),
		resolution: resolution.New(s),
		numAgents:  numAgents,
		now:        time.Now,
		goalLocks:  make(map[int64]*sync.Mutex),
		dispatched: make(map[uuid.UUID]bool),
	}
}

// eventKey derives a stable idempotence key for one (goal, update) auction
// event: the same pair always yields the same uuid, so a duplicate enqueue
// of the same event (e.g. a retried HTTP call racing its own background
// task) can be recognized and skipped rather than re-run.
func eventKey(goalID, updateID int64) uuid.UUID {
	return uuid.NewSHA1(eventNamespace, []byte(fmt.Sprintf("%d:%d", goalID, updateID)))
}

// markDispatched records that an auction event is about to run, returning
// false if it was already dispatched.
func (d *Dispatcher) markDispatched(key uuid.UUID) bool {
	d.dispatchedMu.Lock()
	defer d.dispatchedMu.Unlock()
	if d.dispatched[key] {
		return false
	}
	d.dispatched[key] = true
	return true
}

func (d *Dispatcher) lockFor(goalID int64) *sync.Mutex {
	d.goalLocksMu.Lock()
	defer d.goalLocksMu.Unlock()
	m, ok := d.goalLocks[goalID]
	if !ok {
		m = &sync.Mutex{}
		d.goalLocks[goalID] = m
	}
	return m
}

// CreateGoal validates the target date, persists a new Goal, and enqueues
// its initial auction (update_id=0) to run in the background.
func (d *Dispatcher) CreateGoal(ctx context.Context, description, measurement, targetDateDDMMYYYY string) (*model.Goal, error) {
	isoDate, err := parseDDMMYYYY(targetDateDDMMYYYY)
	if err != nil {
		return nil, apperr.Validation("bad target date %q: %v", targetDateDDMMYYYY, err)
	}

	id, err := d.store.NextID(ctx, store.NamespaceGoal)
	if err != nil {
		return nil, apperr.Store(err, "allocate goal id")
	}

	fullDescription := description
	if measurement != "" {
		fullDescription = fmt.Sprintf("%s (Measurement: %s)", description, measurement)
	}

	goal := model.NewGoal(id, fullDescription, isoDate, d.now())
	if err := d.store.SaveGoal(ctx, goal); err != nil {
		return nil, apperr.Store(err, "save goal %d", id)
	}

	go d.runAuction(context.Background(), id, 0)
	return goal, nil
}

// CreateUpdate validates the report date, persists a new GoalUpdate, and
// enqueues its auction (update_id>0) to run in the background.
func (d *Dispatcher) CreateUpdate(ctx context.Context, goalID int64, content, reportDateISO string) (*model.GoalUpdate, error) {
	goal, err := d.store.GetGoal(ctx, goalID)
	if err != nil {
		return nil, err
	}
	if _, err := time.Parse("2006-01-02", reportDateISO); err != nil {
		return nil, apperr.Validation("bad update date %q: %v", reportDateISO, err)
	}

	id, err := d.store.NextID(ctx, store.NamespaceUpdate)
	if err != nil {
		return nil, apperr.Store(err, "allocate update id")
	}

	update := &model.GoalUpdate{
		ID:         id,
		GoalID:     goal.ID,
		Content:    content,
		ReportDate: reportDateISO,
		CreatedAt:  d.now(),
	}
	if err := d.store.SaveUpdate(ctx, update); err != nil {
		return nil, apperr.Store(err, "save update %d", id)
	}

	go d.runAuction(context.Background(), goal.ID, id)
	return update, nil
}

// ResolveGoal runs resolution synchronously: the one background-triggered
// action required to succeed visibly to the HTTP caller.
func (d *Dispatcher) ResolveGoal(ctx context.Context, goalID int64, outcome model.Outcome) (*model.Goal, error) {
	goal, err := d.resolution.Resolve(ctx, goalID, outcome)
	if err == nil {
		metrics.RecordGoalResolved(string(outcome))
	}
	return goal, err
}

// CreateAgent persists a manually created agent. A nil cashBalance falls
// back to the same starting cash auto-seeded agents receive.
func (d *Dispatcher) CreateAgent(ctx context.Context, name string, cashBalance *float64) (*model.Agent, error) {
	id, err := d.store.NextID(ctx, store.NamespaceAgent)
	if err != nil {
		return nil, apperr.Store(err, "allocate agent id")
	}
	cash := float64(defaultStartingCash)
	if cashBalance != nil {
		cash = *cashBalance
	}
	agent := model.NewAgent(id, name, cash)
	if err := d.store.SaveAgent(ctx, agent); err != nil {
		return nil, apperr.Store(err, "save agent %d", id)
	}
	return agent, nil
}

// runAuction is the background task enqueued by CreateGoal/CreateUpdate.
// Per-goal auctions are serialized: at most one auction for goalID runs
// at a time, while auctions for distinct goals proceed concurrently.
func (d *Dispatcher) runAuction(ctx context.Context, goalID, updateID int64) {
	key := eventKey(goalID, updateID)
	if !d.markDispatched(key) {
		log.Warn().Int64("goal_id", goalID).Int64("update_id", updateID).Msg("auction event already dispatched, skipping duplicate")
		return
	}

	lock := d.lockFor(goalID)
	lock.Lock()
	defer lock.Unlock()

	log := log.With().Str("event_id", key.String()).Logger()

	goal, err := d.store.GetGoal(ctx, goalID)
	if err != nil {
		log.Error().Err(err).Int64("goal_id", goalID).Msg("auction aborted: goal not found")
		return
	}

	agents, err := d.ensureRoster(ctx)
	if err != nil {
		log.Error().Err(err).Int64("goal_id", goalID).Msg("auction aborted: could not seed agent roster")
		return
	}

	var updates []*model.GoalUpdate
	var current *model.GoalUpdate
	if updateID != 0 {
		updates, err = d.store.ListUpdatesByGoal(ctx, goalID)
		if err != nil {
			log.Error().Err(err).Int64("goal_id", goalID).Msg("auction aborted: could not load update history")
			return
		}
		for _, u := range updates {
			if u.ID == updateID {
				current = u
				break
			}
		}
		if current == nil {
			log.Error().Int64("goal_id", goalID).Int64("update_id", updateID).Msg("auction aborted: update not found in history")
			return
		}
	}

	kind := "trading"
	if updateID == 0 {
		kind = "initial"
	}

	messages, spreads := d.debate.Round(ctx, goal, updateID, updates, current, agents, d.now())
	for _, m := range messages {
		if err := d.store.AppendDebateMessage(ctx, m); err != nil {
			log.Error().Err(err).Int64("goal_id", goalID).Msg("failed to persist debate message")
		}
	}
	d.updateMemos(ctx, spreads)

	if err := d.store.StoreSpreads(ctx, goalID, updateID, spreads); err != nil {
		log.Error().Err(err).Int64("goal_id", goalID).Msg("failed to persist spreads")
	}

	metrics.RecordAuctionRun(kind, len(spreads))

	if len(spreads) == 0 {
		log.Warn().Err(apperr.AuctionEmpty("goal %d update %d collected no spreads", goalID, updateID)).Msg("auction concluded empty")
		return
	}

	trades := matching.Clear(spreads, updateID)
	if len(trades) > 0 {
		metrics.RecordTradesMatched("continuous", len(trades))
	}
	if _, err := d.settlement.Apply(ctx, goal, updateID, trades, spreads, d.now); err != nil {
		log.Error().Err(err).Int64("goal_id", goalID).Msg("settlement failed")
	}
}

// updateMemos writes each spread's analysis onto its agent's memo. It
// routes through settlement.Engine's per-agent lock rather than a bare
// store load-modify-save, since that same agent record's cash/holdings can
// be mutated concurrently by a settlement from an overlapping auction on a
// different goal.
func (d *Dispatcher) updateMemos(ctx context.Context, spreads []*model.AgentSpread) {
	for _, s := range spreads {
		if s.Analysis == "" {
			continue
		}
		analysis := s.Analysis
		if err := d.settlement.UpdateAgent(ctx, s.AgentID, func(a *model.Agent) { a.Memo = analysis }); err != nil {
			log.Error().Err(err).Int64("agent_id", s.AgentID).Msg("failed to persist agent memo")
		}
	}
}

// ensureRoster seeds named agents from roster until numAgents exist, then
// returns the full agent list.
func (d *Dispatcher) ensureRoster(ctx context.Context) ([]*model.Agent, error) {
	agents, err := d.store.ListAgents(ctx)
	if err != nil {
		return nil, apperr.Store(err, "list agents")
	}

	for i := len(agents); i < d.numAgents && i < len(roster); i++ {
		id, err := d.store.NextID(ctx, store.NamespaceAgent)
		if err != nil {
			return nil, apperr.Store(err, "allocate seeded agent id")
		}
		agent := model.NewAgent(id, roster[i], defaultStartingCash)
		if err := d.store.SaveAgent(ctx, agent); err != nil {
			return nil, apperr.Store(err, "save seeded agent %s", roster[i])
		}
		agents = append(agents, agent)
	}
	return agents, nil
}

func parseDDMMYYYY(s string) (string, error) {
	t, err := time.Parse("02/01/2006", s)
	if err != nil {
		return "", err
	}
	return t.Format("2006-01-02"), nil
}
