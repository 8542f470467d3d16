// Package conversation implements the Conversation Orchestrator (CO):
// session/message/branch/summary lifecycle, per-branch turn ordering,
// periodic summarization, and memory-context assembly for AP/TGE to
// consult.
package conversation

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/taskforge/orchestrator/internal/clock"
	apperrors "github.com/taskforge/orchestrator/internal/errors"
	"github.com/taskforge/orchestrator/pkg/model"
)

const (
	defaultIdleExpiry      = 24 * time.Hour
	defaultSummaryThreshold = 20
	defaultShortTermWindow  = 20
	defaultLongTermWindow   = 5
)

// Summarizer produces a digest of a slice of messages. A nil Summarizer
// degrades to a heuristic summary (key topics/action items only, no
// prose) rather than aborting, matching the rest of this pipeline's
// degrade-not-abort posture.
type Summarizer interface {
	Summarize(ctx context.Context, content string, maxSentences int) (string, error)
}

// Config parameterizes session expiry and summary cadence.
type Config struct {
	IdleExpiry       time.Duration
	SummaryThreshold int
	ShortTermWindow  int
	LongTermWindow   int
}

// DefaultConfig returns the standard defaults: 24h idle expiry,
// summarize every 20 messages, 20-message short-term window, last 5
// summaries long-term.
func DefaultConfig() Config {
	return Config{
		IdleExpiry:       defaultIdleExpiry,
		SummaryThreshold: defaultSummaryThreshold,
		ShortTermWindow:  defaultShortTermWindow,
		LongTermWindow:   defaultLongTermWindow,
	}
}

// sessionState is the arena entry for one session: its metadata plus
// every message/branch/summary appended to it, guarded by its own mutex
// so unrelated sessions never contend (mirrors todograph's per-task
// taskGraph locking).
type sessionState struct {
	mu sync.Mutex

	session  model.Session
	messages []model.Message
	branches map[string]model.Branch
	summaries []model.Summary

	nextSeq              int64
	messagesSinceSummary int
}

// Orchestrator is the Conversation Orchestrator.
type Orchestrator struct {
	cfg        Config
	clock      clock.Clock
	summarizer Summarizer
	logger     *logrus.Logger

	mu       sync.RWMutex
	sessions map[string]*sessionState
}

// New constructs an Orchestrator. summarizer/logger may be nil.
func New(cfg Config, summarizer Summarizer, clk clock.Clock, logger *logrus.Logger) *Orchestrator {
	if cfg.SummaryThreshold <= 0 {
		cfg.SummaryThreshold = defaultSummaryThreshold
	}
	if cfg.IdleExpiry <= 0 {
		cfg.IdleExpiry = defaultIdleExpiry
	}
	if cfg.ShortTermWindow <= 0 {
		cfg.ShortTermWindow = defaultShortTermWindow
	}
	if cfg.LongTermWindow <= 0 {
		cfg.LongTermWindow = defaultLongTermWindow
	}
	if clk == nil {
		clk = clock.NewReal()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Orchestrator{
		cfg:        cfg,
		clock:      clk,
		summarizer: summarizer,
		logger:     logger,
		sessions:   map[string]*sessionState{},
	}
}

// StartSession creates a new active session.
func (o *Orchestrator) StartSession(userID, teamID, personaID string, initialContext string) model.Session {
	now := o.clock.Now()
	sess := model.Session{
		ID:             "sess-" + uuid.NewString(),
		UserID:         userID,
		TeamID:         teamID,
		PersonaID:      personaID,
		StartedAt:      now,
		LastActivityAt: now,
		Status:         model.SessionActive,
		ContextRef:     initialContext,
		Version:        1,
	}

	o.mu.Lock()
	o.sessions[sess.ID] = &sessionState{session: sess, branches: map[string]model.Branch{}}
	o.mu.Unlock()

	return sess
}

func (o *Orchestrator) stateFor(sessionID string) (*sessionState, error) {
	o.mu.RLock()
	st, ok := o.sessions[sessionID]
	o.mu.RUnlock()
	if !ok {
		return nil, apperrors.NewNotFoundError("session").WithDetails(sessionID)
	}
	return st, nil
}

// AppendMessage appends message to the session's branch (main if
// branchID is nil), enforcing total order per (sessionId, branchId) via
// the session's mutex plus a monotonic SeqNo tie-break.
func (o *Orchestrator) AppendMessage(sessionID string, msg model.Message, branchID *string) error {
	st, err := o.stateFor(sessionID)
	if err != nil {
		return err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	now := o.clock.Now()
	if st.session.Status == model.SessionExpired {
		return apperrors.New(apperrors.ErrorTypeInvalidState, "conversation: session expired").
			WithDetails(sessionID)
	}
	if st.session.Status == model.SessionEnded {
		return apperrors.New(apperrors.ErrorTypeInvalidState, "conversation: session already ended").
			WithDetails(sessionID)
	}
	if now.Sub(st.session.LastActivityAt) > o.cfg.IdleExpiry {
		st.session.Status = model.SessionExpired
		return apperrors.New(apperrors.ErrorTypeInvalidState, "conversation: session expired").
			WithDetails(sessionID)
	}

	if branchID != nil {
		if _, ok := st.branches[*branchID]; !ok {
			return apperrors.NewNotFoundError("branch").WithDetails(*branchID)
		}
	}

	if msg.ID == "" {
		msg.ID = "msg-" + uuid.NewString()
	}
	msg.SessionID = sessionID
	msg.BranchID = branchID
	msg.Timestamp = now
	st.nextSeq++
	msg.SeqNo = st.nextSeq

	st.messages = append(st.messages, msg)
	st.messagesSinceSummary++
	st.session.LastActivityAt = now
	st.session.Version++

	if st.messagesSinceSummary >= o.cfg.SummaryThreshold {
		o.generateSummaryLocked(context.Background(), st, model.SummaryPeriodic, nil, branchID)
		st.messagesSinceSummary = 0
	}

	return nil
}

// GetHistory returns a filtered, paginated view of a session's messages
// on one branch.
func (o *Orchestrator) GetHistory(sessionID string, filter model.HistoryFilter) (model.HistoryPage, error) {
	st, err := o.stateFor(sessionID)
	if err != nil {
		return model.HistoryPage{}, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	var branchCutoffSeq int64 = -1
	if filter.BranchID != nil {
		if branch, ok := st.branches[*filter.BranchID]; ok {
			for _, m := range st.messages {
				if m.ID == branch.ParentMessageID {
					branchCutoffSeq = m.SeqNo
					break
				}
			}
		}
	}

	matching := make([]model.Message, 0, len(st.messages))
	for _, m := range st.messages {
		if !visibleOnBranch(m, filter.BranchID, branchCutoffSeq) {
			continue
		}
		if filter.Since != nil && m.Timestamp.Before(*filter.Since) {
			continue
		}
		if filter.Until != nil && m.Timestamp.After(*filter.Until) {
			continue
		}
		if len(filter.Roles) > 0 && !roleIn(m.Role, filter.Roles) {
			continue
		}
		matching = append(matching, m)
	}

	total := len(matching)
	offset := filter.Offset
	if offset > total {
		offset = total
	}
	end := total
	if filter.Limit > 0 && offset+filter.Limit < end {
		end = offset + filter.Limit
	}
	page := append([]model.Message{}, matching[offset:end]...)

	var latest *model.Summary
	for i := len(st.summaries) - 1; i >= 0; i-- {
		latest = &st.summaries[i]
		break
	}

	return model.HistoryPage{
		Messages:      page,
		TotalCount:    total,
		HasMore:       end < total,
		LatestSummary: latest,
	}, nil
}

// CreateBranch forks a new named branch from parentMessageID.
func (o *Orchestrator) CreateBranch(sessionID, parentMessageID, name, description string) (model.Branch, error) {
	st, err := o.stateFor(sessionID)
	if err != nil {
		return model.Branch{}, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	found := false
	for _, m := range st.messages {
		if m.ID == parentMessageID {
			found = true
			break
		}
	}
	if !found {
		return model.Branch{}, apperrors.NewNotFoundError("message").WithDetails(parentMessageID)
	}

	branch := model.Branch{
		ID:              "branch-" + uuid.NewString(),
		SessionID:       sessionID,
		ParentMessageID: parentMessageID,
		Name:            name,
		Description:     description,
		CreatedAt:       o.clock.Now(),
	}
	st.branches[branch.ID] = branch
	return branch, nil
}

// GenerateSummary produces a Summary of kind over range (nil means the
// whole active branch so far), advisory only.
func (o *Orchestrator) GenerateSummary(ctx context.Context, sessionID string, kind model.SummaryKind, rng *model.TimeRange) (model.Summary, error) {
	st, err := o.stateFor(sessionID)
	if err != nil {
		return model.Summary{}, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	return o.generateSummaryLocked(ctx, st, kind, rng, nil), nil
}

func (o *Orchestrator) generateSummaryLocked(ctx context.Context, st *sessionState, kind model.SummaryKind, rng *model.TimeRange, branchID *string) model.Summary {
	var relevant []model.Message
	for _, m := range st.messages {
		if !exactBranchMatch(m.BranchID, branchID) {
			continue
		}
		if rng != nil {
			if m.Timestamp.Before(rng.Since) || (!rng.Until.IsZero() && m.Timestamp.After(rng.Until)) {
				continue
			}
		}
		relevant = append(relevant, m)
	}

	summary := model.Summary{
		ID:          "summary-" + uuid.NewString(),
		SessionID:   st.session.ID,
		Kind:        kind,
		KeyTopics:   extractTopics(relevant),
		ActionItems: extractActionItems(relevant),
		TimeRange:   rng,
		CreatedAt:   o.clock.Now(),
	}

	text := joinContent(relevant)
	if o.summarizer != nil && text != "" {
		if prose, err := o.summarizer.Summarize(ctx, text, 3); err == nil {
			summary.Text = prose
		} else {
			o.logger.WithError(err).Warn("conversation: summarizer degraded, using heuristic summary")
		}
	}
	if summary.Text == "" {
		summary.Text = heuristicSummaryText(summary.KeyTopics, summary.ActionItems)
	}

	st.summaries = append(st.summaries, summary)
	return summary
}

// BuildMemoryContext assembles the conversational view for the analysis
// and todo-graph components to consult: short-term = last N messages of
// the active branch, long-term = most recent summaries, semantic =
// deduplicated reference union,
// procedural = open action items.
func (o *Orchestrator) BuildMemoryContext(sessionID string) (model.MemoryContext, error) {
	st, err := o.stateFor(sessionID)
	if err != nil {
		return model.MemoryContext{}, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	var mainBranch []model.Message
	for _, m := range st.messages {
		if m.BranchID == nil {
			mainBranch = append(mainBranch, m)
		}
	}

	start := 0
	if len(mainBranch) > o.cfg.ShortTermWindow {
		start = len(mainBranch) - o.cfg.ShortTermWindow
	}
	shortTerm := append([]model.Message{}, mainBranch[start:]...)

	longTermStart := 0
	if len(st.summaries) > o.cfg.LongTermWindow {
		longTermStart = len(st.summaries) - o.cfg.LongTermWindow
	}
	longTerm := append([]model.Summary{}, st.summaries[longTermStart:]...)

	seen := map[string]bool{}
	var semantic []string
	for _, m := range shortTerm {
		for _, ref := range m.References {
			if !seen[ref] {
				seen[ref] = true
				semantic = append(semantic, ref)
			}
		}
	}

	var procedural []string
	for _, s := range st.summaries {
		procedural = append(procedural, s.ActionItems...)
	}

	return model.MemoryContext{
		ShortTerm:  shortTerm,
		LongTerm:   longTerm,
		Semantic:   semantic,
		Procedural: procedural,
	}, nil
}

// EndSession transitions a session to ended and always produces a
// session-kind summary.
func (o *Orchestrator) EndSession(ctx context.Context, sessionID string) (model.Summary, error) {
	st, err := o.stateFor(sessionID)
	if err != nil {
		return model.Summary{}, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	st.session.Status = model.SessionEnded
	st.session.Version++
	return o.generateSummaryLocked(ctx, st, model.SummarySession, nil, nil), nil
}

// SweepExpiredSessions promotes every session idle past cfg.IdleExpiry
// to expired. Intended to be called periodically by a background sweeper.
func (o *Orchestrator) SweepExpiredSessions() int {
	o.mu.RLock()
	states := make([]*sessionState, 0, len(o.sessions))
	for _, st := range o.sessions {
		states = append(states, st)
	}
	o.mu.RUnlock()

	now := o.clock.Now()
	count := 0
	for _, st := range states {
		st.mu.Lock()
		if st.session.Status == model.SessionActive && now.Sub(st.session.LastActivityAt) > o.cfg.IdleExpiry {
			st.session.Status = model.SessionExpired
			st.session.Version++
			count++
		}
		st.mu.Unlock()
	}
	return count
}

// RunSweeper starts a background goroutine sweeping expired sessions on
// interval until ctx is cancelled.
func (o *Orchestrator) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := o.SweepExpiredSessions(); n > 0 {
					o.logger.WithField("count", n).Info("conversation: swept expired sessions")
				}
			}
		}
	}()
}

// exactBranchMatch reports whether a and b name the same branch (both
// nil counts as a match), with no main-branch inheritance — used for
// summary scoping, which only digests a branch's own messages.
func exactBranchMatch(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// visibleOnBranch reports whether m belongs to the requested branch's
// history: main-branch messages up to and including the branch point
// (cutoffSeq), plus every message explicitly appended to that branch
//. A nil wanted means "main branch only".
func visibleOnBranch(m model.Message, wanted *string, cutoffSeq int64) bool {
	if wanted == nil {
		return m.BranchID == nil
	}
	if m.BranchID != nil {
		return *m.BranchID == *wanted
	}
	return m.SeqNo <= cutoffSeq
}

func roleIn(role model.MessageRole, roles []model.MessageRole) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func joinContent(messages []model.Message) string {
	var out string
	for _, m := range messages {
		if out != "" {
			out += "\n"
		}
		out += m.Content
	}
	return out
}

func extractTopics(messages []model.Message) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range messages {
		for _, w := range keywordsIn(m.Content) {
			if !seen[w] {
				seen[w] = true
				out = append(out, w)
			}
		}
	}
	sort.Strings(out)
	return out
}

func extractActionItems(messages []model.Message) []string {
	var out []string
	for _, m := range messages {
		if isActionItem(m.Content) {
			out = append(out, m.Content)
		}
	}
	return out
}

func heuristicSummaryText(topics, actionItems []string) string {
	text := "discussed: "
	if len(topics) == 0 {
		text += "(no distinct topics detected)"
	} else {
		for i, t := range topics {
			if i > 0 {
				text += ", "
			}
			text += t
		}
	}
	if len(actionItems) > 0 {
		text += "; open action items: " + strconv.Itoa(len(actionItems))
	}
	return text
}
