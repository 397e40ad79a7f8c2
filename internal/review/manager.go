package review

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/techspec-reviewer/backend/internal/analysis"
	"github.com/techspec-reviewer/backend/internal/extract"
	"github.com/techspec-reviewer/backend/internal/models"
	"github.com/techspec-reviewer/backend/internal/prompt"
	"github.com/techspec-reviewer/backend/internal/report"
	"github.com/techspec-reviewer/backend/internal/reviewer"
	"github.com/techspec-reviewer/backend/internal/storage"
)

// MaxSessions limits how many review sessions are held in memory
const MaxSessions = 50

// SessionMaxAge is how long to keep completed sessions before cleanup
const SessionMaxAge = 30 * time.Minute

// SessionKeepAliveWindow is how long to keep sessions that are actively being used
const SessionKeepAliveWindow = 5 * time.Minute

// ReviewTimeout bounds a single pipeline run.
const ReviewTimeout = 5 * time.Minute

// Pipeline stages with the progress reported on entering them.
const (
	StageQueued      = "queued"
	StageExtracting  = "extracting"
	StageStructuring = "structuring"
	StagePrompting   = "prompting"
	StageReviewing   = "reviewing"
	StageAnnotating  = "annotating"
	StageComplete    = "complete"
	StageFailed      = "failed"
)

var stageProgress = map[string]float64{
	StageExtracting:  10,
	StageStructuring: 30,
	StagePrompting:   40,
	StageReviewing:   50,
	StageAnnotating:  90,
	StageComplete:    100,
}

// Recorder persists finished reviews.
type Recorder interface {
	Record(ctx context.Context, r *models.ReviewResult) error
}

// Event is a progress notification for subscribers.
type Event struct {
	SessionID string               `json:"sessionId"`
	FileID    string               `json:"fileId"`
	Status    models.SessionStatus `json:"status"`
	Stage     string               `json:"stage"`
	Progress  float64              `json:"progress"`
	Error     string               `json:"error,omitempty"`
}

// Options configure a Manager. Zero values disable the optional parts.
type Options struct {
	History          Recorder
	Archive          storage.Archive
	ArchiveFormat    report.Format
	MaxSessions      int
	ChunkAnnotations bool
	ChunkSize        int
}

// Manager runs reviews in the background and keeps their sessions.
type Manager struct {
	sessions map[string]*sessionState
	mu       sync.RWMutex

	registry *extract.Registry
	reviewer reviewer.Reviewer
	opts     Options

	tmplMu   sync.RWMutex
	headings []models.TemplateHeading
	tmplText map[string][]string
	rules    *models.ReviewRules

	subMu     sync.Mutex
	subs      map[int]chan Event
	nextSubID int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type sessionState struct {
	Session      *models.ReviewSession
	Result       *models.ReviewResult
	LastAccessed time.Time
}

func NewManager(registry *extract.Registry, rv reviewer.Reviewer, opts Options) *Manager {
	if opts.MaxSessions <= 0 {
		opts.MaxSessions = MaxSessions
	}
	if opts.ArchiveFormat == "" {
		opts.ArchiveFormat = report.FormatJSON
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = analysis.DefaultChunkSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		sessions: make(map[string]*sessionState),
		registry: registry,
		reviewer: rv,
		opts:     opts,
		subs:     make(map[int]chan Event),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetTemplate replaces the template headings and the template's own section
// text used for copy detection.
func (m *Manager) SetTemplate(headings []models.TemplateHeading, paragraphs []string) {
	m.tmplMu.Lock()
	defer m.tmplMu.Unlock()
	m.headings = append([]models.TemplateHeading(nil), headings...)
	m.tmplText = analysis.TemplateSectionContent(paragraphs, headings)
	fmt.Printf("[Manager] Template set: %d headings\n", len(headings))
}

// SetRules replaces the review rules.
func (m *Manager) SetRules(rules *models.ReviewRules) {
	m.tmplMu.Lock()
	defer m.tmplMu.Unlock()
	m.rules = rules
}

// Rules returns the current review rules (may be nil).
func (m *Manager) Rules() *models.ReviewRules {
	m.tmplMu.RLock()
	defer m.tmplMu.RUnlock()
	return m.rules
}

// Headings returns the template headings in effect. Without a template the
// sections configured in the rules are used.
func (m *Manager) Headings() []models.TemplateHeading {
	m.tmplMu.RLock()
	defer m.tmplMu.RUnlock()
	if len(m.headings) > 0 {
		return append([]models.TemplateHeading(nil), m.headings...)
	}
	return m.rules.Headings()
}

func (m *Manager) templateState() ([]models.TemplateHeading, map[string][]string, *models.ReviewRules) {
	m.tmplMu.RLock()
	defer m.tmplMu.RUnlock()
	headings := m.headings
	if len(headings) == 0 {
		headings = m.rules.Headings()
	}
	return headings, m.tmplText, m.rules
}

// StartReview queues a review of the stored file at path.
func (m *Manager) StartReview(file models.FileInfo, path string) (*models.ReviewSession, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("file %s not readable: %w", file.ID, err)
	}

	m.cleanupOldSessionsIfNeeded()

	sessionID := uuid.New().String()
	session := models.NewReviewSession(sessionID, file.ID, file.Name)
	session.Provider = m.reviewer.Name()
	session.ModelID = m.reviewer.Model()

	m.mu.Lock()
	m.sessions[sessionID] = &sessionState{Session: session, LastAccessed: time.Now()}
	m.mu.Unlock()

	m.wg.Add(1)
	go m.runReview(sessionID, file, path)

	snapshot := *session
	return &snapshot, nil
}

func (m *Manager) runReview(sessionID string, file models.FileInfo, path string) {
	defer m.wg.Done()
	short := sessionID[:8]

	// Recover from panics to prevent backend crash
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("[Review %s] PANIC recovered: %v\n", short, r)
			m.fail(sessionID, StageFailed, fmt.Sprintf("review panicked: %v", r))
		}
	}()

	ctx, cancel := context.WithTimeout(m.ctx, ReviewTimeout)
	defer cancel()

	start := time.Now()
	fmt.Printf("[Review %s] Starting review of %s (%s)\n", short, file.Name, file.ID)

	m.setStage(sessionID, models.SessionStatusExtracting, StageExtracting)
	blocks, err := m.registry.ExtractFile(path, file.Name)
	if err != nil {
		fmt.Printf("[Review %s] ERROR: extraction failed: %v\n", short, err)
		m.fail(sessionID, StageExtracting, fmt.Sprintf("Failed to extract text from file: %v", err))
		return
	}
	fmt.Printf("[Review %s] Extracted %d blocks\n", short, len(blocks))

	m.setStage(sessionID, models.SessionStatusExtracting, StageStructuring)
	headings, tmplText, rules := m.templateState()
	if len(headings) == 0 {
		m.addError(sessionID, StageStructuring, "no template headings configured")
	}
	structure := analysis.BuildStructure(blocks, headings, tmplText, rules)
	info := analysis.ExtractDocumentInfo(blocks)

	m.mu.Lock()
	if state, ok := m.sessions[sessionID]; ok {
		state.Session.SectionCount = len(structure.Sections)
		state.Session.BlockCount = len(blocks)
	}
	m.mu.Unlock()

	m.setStage(sessionID, models.SessionStatusReviewing, StagePrompting)
	userPrompt := prompt.Build(structure, "", "", rules)

	m.setStage(sessionID, models.SessionStatusReviewing, StageReviewing)
	req, aiReview, err := m.reviewer.Review(ctx, userPrompt)
	if err != nil {
		m.addError(sessionID, StageReviewing, err.Error())
	}

	m.setStage(sessionID, models.SessionStatusReviewing, StageAnnotating)
	Apply(structure, aiReview)
	annotations := Annotate(structure)

	if m.opts.ChunkAnnotations {
		if src, ok := m.reviewer.(interface{ Completer() reviewer.Completer }); ok {
			text := analysis.JoinBlocks(analysis.SectionTexts(structure))
			chunkAnns, err := reviewer.AnnotateChunks(ctx, src.Completer(), text, m.opts.ChunkSize)
			if err != nil {
				m.addError(sessionID, StageAnnotating, err.Error())
			}
			annotations = append(annotations, chunkAnns...)
		}
	}

	result := &models.ReviewResult{
		ReviewID:    sessionID,
		File:        file,
		Info:        info,
		Headings:    headings,
		Structure:   *structure,
		Prompt:      userPrompt,
		Request:     req,
		Annotations: annotations,
		Provider:    m.reviewer.Name(),
		ModelID:     m.reviewer.Model(),
		CreatedAt:   time.Now(),
	}

	m.archive(ctx, result)

	if m.opts.History != nil {
		if err := m.opts.History.Record(ctx, result); err != nil {
			fmt.Printf("[Review %s] WARNING: history record failed: %v\n", short, err)
		}
	}

	elapsed := time.Since(start).Milliseconds()

	m.mu.Lock()
	state, ok := m.sessions[sessionID]
	if !ok {
		m.mu.Unlock()
		return
	}
	result.Errors = append([]models.ReviewError(nil), state.Session.Errors...)
	state.Result = result
	state.Session.Status = models.SessionStatusComplete
	state.Session.Stage = StageComplete
	state.Session.Progress = stageProgress[StageComplete]
	state.Session.ProcessingTimeMs = elapsed
	m.publish(eventFor(state.Session))
	m.mu.Unlock()

	fmt.Printf("[Review %s] Review complete: %d sections, %d annotations in %dms\n",
		short, len(structure.Sections), len(annotations), elapsed)
}

func (m *Manager) archive(ctx context.Context, result *models.ReviewResult) {
	if m.opts.Archive == nil {
		return
	}
	var buf bytes.Buffer
	if err := report.Render(&buf, m.opts.ArchiveFormat, result); err != nil {
		fmt.Printf("[Review %s] WARNING: archive render failed: %v\n", result.ReviewID[:8], err)
		return
	}
	key := result.ReviewID + "." + string(m.opts.ArchiveFormat)
	uri, err := m.opts.Archive.Put(ctx, key, m.opts.ArchiveFormat.ContentType(), buf.Bytes())
	if err != nil {
		fmt.Printf("[Review %s] WARNING: archive upload failed: %v\n", result.ReviewID[:8], err)
		return
	}
	result.ArchiveURI = uri
}

// setStage and fail publish while holding mu so a subscriber sees every
// event before GetSession reports the new state.
func (m *Manager) setStage(sessionID string, status models.SessionStatus, stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	state.Session.Status = status
	state.Session.Stage = stage
	state.Session.Progress = stageProgress[stage]
	m.publish(eventFor(state.Session))
}

func (m *Manager) addError(sessionID, stage, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state, ok := m.sessions[sessionID]; ok {
		state.Session.Errors = append(state.Session.Errors, models.ReviewError{Stage: stage, Reason: reason})
	}
}

func (m *Manager) fail(sessionID, stage, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[sessionID]
	if !ok {
		return
	}
	state.Session.Status = models.SessionStatusError
	state.Session.Stage = StageFailed
	state.Session.Errors = append(state.Session.Errors, models.ReviewError{Stage: stage, Reason: reason})
	event := eventFor(state.Session)
	event.Error = reason
	m.publish(event)
}

func eventFor(s *models.ReviewSession) Event {
	return Event{
		SessionID: s.ID,
		FileID:    s.FileID,
		Status:    s.Status,
		Stage:     s.Stage,
		Progress:  s.Progress,
	}
}

// Subscribe returns a channel of progress events and a function that ends
// the subscription. Slow subscribers miss events rather than block reviews.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 32)

	m.subMu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subs[id] = ch
	m.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subs, id)
			m.subMu.Unlock()
			close(ch)
		})
	}
}

func (m *Manager) publish(e Event) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// cleanupOldSessionsIfNeeded removes the oldest finished sessions if at capacity
func (m *Manager) cleanupOldSessionsIfNeeded() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) < m.opts.MaxSessions {
		return
	}

	var (
		oldestID string
		oldest   time.Time
	)
	toFree := len(m.sessions) - m.opts.MaxSessions + 1
	for deleted := 0; deleted < toFree; deleted++ {
		oldestID = ""
		for id, state := range m.sessions {
			if !state.Session.Finished() {
				continue
			}
			if oldestID == "" || state.LastAccessed.Before(oldest) {
				oldestID, oldest = id, state.LastAccessed
			}
		}
		if oldestID == "" {
			return
		}
		delete(m.sessions, oldestID)
		fmt.Printf("[Manager] Cleaned up old session %s to free memory\n", oldestID[:8])
	}
}

// CleanupOldSessions removes finished sessions older than maxAge,
// but keeps sessions that have been accessed within SessionKeepAliveWindow.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-maxAge)
	keepAliveCutoff := now.Add(-SessionKeepAliveWindow)

	removed := 0
	for id, state := range m.sessions {
		if !state.Session.Finished() {
			continue
		}
		if state.LastAccessed.After(keepAliveCutoff) || state.LastAccessed.After(cutoff) {
			continue
		}
		delete(m.sessions, id)
		removed++
		fmt.Printf("[Manager] Cleaned up aged session %s (last accessed: %s ago)\n",
			id[:8], now.Sub(state.LastAccessed).Round(time.Second))
	}
	return removed
}

// GetSession returns a snapshot of a session by ID.
func (m *Manager) GetSession(id string) (*models.ReviewSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	snapshot := *state.Session
	snapshot.Errors = append([]models.ReviewError(nil), state.Session.Errors...)
	return &snapshot, true
}

// GetResult returns the result of a completed review.
func (m *Manager) GetResult(id string) (*models.ReviewResult, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.sessions[id]
	if !ok || state.Result == nil {
		return nil, false
	}
	return state.Result, true
}

// TouchSession updates the LastAccessed timestamp for a session.
func (m *Manager) TouchSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return false
	}
	state.LastAccessed = time.Now()
	return true
}

// SessionCount returns the number of sessions held.
func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close cancels running reviews and waits for them to stop.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}
