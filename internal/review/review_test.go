package review

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/techspec-reviewer/backend/internal/extract"
	"github.com/techspec-reviewer/backend/internal/models"
	"github.com/techspec-reviewer/backend/internal/reviewer"
)

func intPtr(n int) *int { return &n }

func TestApply(t *testing.T) {
	s := &models.DocumentStructure{Sections: []models.SectionContent{
		{Header: "Introduction"},
		{Header: "Scope"},
	}}
	r := &models.AIReview{
		OverallScore:   intPtr(7),
		OverallComment: "Good",
		Sections: []models.SectionFeedback{
			{Header: "Introduction", Score: intPtr(4), Comment: "Clear", Suggestions: "More data"},
			{Header: "introduction", Score: intPtr(1)},
			{Header: "Unknown", Score: intPtr(2)},
		},
	}

	Apply(s, r)

	assert.Equal(t, intPtr(7), s.OverallScore)
	assert.Equal(t, "Good", s.OverallComment)
	assert.Equal(t, intPtr(4), s.Sections[0].AIScore)
	assert.Equal(t, "Clear", s.Sections[0].AIComment)
	assert.Equal(t, "More data", s.Sections[0].AISuggestions)
	assert.Nil(t, s.Sections[1].AIScore)
	assert.Empty(t, s.Sections[1].AIComment)
}

func TestAnnotate(t *testing.T) {
	s := &models.DocumentStructure{
		OverallScore:   intPtr(6),
		OverallComment: "Decent.",
		Sections: []models.SectionContent{
			{Header: "Intro", Status: models.SectionPresent, Position: 0, AIScore: intPtr(5), AIComment: "Great"},
			{Header: "Scope", Status: models.SectionPresent, Position: 3, AIScore: intPtr(3), AIComment: "Thin", AISuggestions: "List exclusions"},
			{Header: "Design", Status: models.SectionBoilerplate, Position: 5, AIScore: intPtr(1)},
			{Header: "Security", Status: models.SectionMissing, Position: -1, Mandatory: true},
			{Header: "Goals", Status: models.SectionMissing, Position: 8},
		},
	}

	anns := Annotate(s)

	type key struct {
		section  string
		category string
		severity models.Severity
	}
	var got []key
	for _, a := range anns {
		got = append(got, key{a.Section, a.Category, a.Severity})
	}
	assert.Equal(t, []key{
		{"", "summary", models.SeverityInfo},
		{"Intro", "review", models.SeverityInfo},
		{"Scope", "review", models.SeverityWarning},
		{"Design", "boilerplate", models.SeverityError},
		{"Design", "review", models.SeverityError},
		{"Security", "missing", models.SeverityError},
		{"Security", "mandatory", models.SeverityError},
		{"Goals", "missing", models.SeverityError},
	}, got)

	assert.Equal(t, -1, anns[0].Position)
	assert.Equal(t, "Overall score 6/10. Decent.", anns[0].Comment)
	assert.Equal(t, "Score 3/5. Thin\nSuggestions: List exclusions", anns[2].Comment)
	assert.Equal(t, "Section not found in uploaded document.", anns[5].Comment)
	assert.Equal(t, "Section heading is present but the section is empty.", anns[7].Comment)
	assert.Equal(t, 8, anns[7].Position)
}

type fakeRecorder struct {
	mu      sync.Mutex
	results []*models.ReviewResult
}

func (f *fakeRecorder) Record(_ context.Context, r *models.ReviewResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, r)
	return nil
}

func (f *fakeRecorder) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.results)
}

type fakeArchive struct {
	mu   sync.Mutex
	keys []string
}

func (f *fakeArchive) Put(_ context.Context, key, _ string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(data) == 0 {
		return "", errors.New("empty")
	}
	f.keys = append(f.keys, key)
	return "s3://bucket/" + key, nil
}

func writeSpec(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stored")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func waitFinished(t *testing.T, m *Manager, id string) *models.ReviewSession {
	t.Helper()
	for i := 0; i < 100; i++ {
		s, ok := m.GetSession(id)
		require.True(t, ok, "session not found")
		if s.Finished() {
			return s
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("session %s did not finish", id)
	return nil
}

func newTestManager(opts Options) (*Manager, *reviewer.Mock) {
	mock := reviewer.NewMock()
	m := NewManager(extract.NewRegistry(), reviewer.NewService(mock), opts)
	m.SetTemplate(
		[]models.TemplateHeading{
			{Style: "Heading 1", Text: "Introduction"},
			{Style: "Heading 1", Text: "Scope"},
			{Style: "Heading 1", Text: "Security"},
		},
		[]string{"Introduction", "Describe the problem.", "Scope", "Describe the scope of the system.", "Security"},
	)
	m.SetRules(&models.ReviewRules{Sections: []models.SectionRule{{Heading: "Security", Mandatory: true}}})
	return m, mock
}

func TestManager_FullReview(t *testing.T) {
	rec := &fakeRecorder{}
	arc := &fakeArchive{}
	m, mock := newTestManager(Options{History: rec, Archive: arc})
	defer m.Close()

	events, unsubscribe := m.Subscribe()
	defer unsubscribe()

	path := writeSpec(t, strings.Join([]string{
		"Payment Gateway",
		"Version: 2.0",
		"Introduction",
		"We process card payments.",
		"Settlement happens nightly.",
		"Scope",
		"Describe the scope of the system.",
	}, "\n"))

	file := models.FileInfo{ID: "file-1", Name: "gateway.txt"}
	sess, err := m.StartReview(file, path)
	require.NoError(t, err)
	assert.Equal(t, "mock", sess.Provider)

	final := waitFinished(t, m, sess.ID)
	require.Equal(t, models.SessionStatusComplete, final.Status, "errors: %v", final.Errors)
	assert.Equal(t, float64(100), final.Progress)
	assert.Equal(t, 3, final.SectionCount)
	assert.Equal(t, 7, final.BlockCount)
	assert.Equal(t, 1, mock.Calls())

	result, ok := m.GetResult(sess.ID)
	require.True(t, ok)
	assert.Equal(t, "Payment Gateway", result.Info.Title)
	assert.Equal(t, "2.0", result.Info.Version)
	assert.Contains(t, result.Prompt, "Section: Security\nMandatory: yes\n")
	assert.Equal(t, "mock-scorer", result.Request["model"])

	secs := result.Structure.Sections
	assert.Equal(t, models.SectionPresent, secs[0].Status)
	assert.Equal(t, intPtr(3), secs[0].AIScore)
	assert.Equal(t, models.SectionBoilerplate, secs[1].Status)
	assert.Equal(t, models.SectionMissing, secs[2].Status)
	assert.NotNil(t, result.Structure.OverallScore)

	var categories []string
	for _, a := range result.Annotations {
		categories = append(categories, a.Category)
	}
	assert.Contains(t, categories, "summary")
	assert.Contains(t, categories, "boilerplate")
	assert.Contains(t, categories, "mandatory")

	assert.Equal(t, 1, rec.count())
	assert.Equal(t, "s3://bucket/"+sess.ID+".json", result.ArchiveURI)

	var stages []string
	for len(events) > 0 {
		e := <-events
		if e.SessionID == sess.ID {
			stages = append(stages, e.Stage)
		}
	}
	assert.Equal(t, []string{StageExtracting, StageStructuring, StagePrompting, StageReviewing, StageAnnotating, StageComplete}, stages)
}

func TestManager_ProviderErrorStillCompletes(t *testing.T) {
	m, mock := newTestManager(Options{})
	defer m.Close()
	mock.Err = errors.New("service unavailable")

	sess, err := m.StartReview(models.FileInfo{ID: "f", Name: "spec.txt"}, writeSpec(t, "Introduction\nSomething here."))
	require.NoError(t, err)

	final := waitFinished(t, m, sess.ID)
	assert.Equal(t, models.SessionStatusComplete, final.Status)
	require.Len(t, final.Errors, 1)
	assert.Equal(t, StageReviewing, final.Errors[0].Stage)

	result, ok := m.GetResult(sess.ID)
	require.True(t, ok)
	assert.Nil(t, result.Structure.OverallScore)
	assert.Equal(t, "Error during review: service unavailable", result.Structure.OverallComment)
	assert.Len(t, result.Errors, 1)
}

func TestManager_ExtractionFailure(t *testing.T) {
	m, _ := newTestManager(Options{})
	defer m.Close()

	sess, err := m.StartReview(models.FileInfo{ID: "f", Name: "spec.txt"}, writeSpec(t, "\n \n"))
	require.NoError(t, err)

	final := waitFinished(t, m, sess.ID)
	assert.Equal(t, models.SessionStatusError, final.Status)
	assert.Equal(t, StageFailed, final.Stage)
	require.NotEmpty(t, final.Errors)
	assert.Equal(t, StageExtracting, final.Errors[0].Stage)

	_, ok := m.GetResult(sess.ID)
	assert.False(t, ok)
}

func TestManager_StartReviewMissingFile(t *testing.T) {
	m, _ := newTestManager(Options{})
	defer m.Close()

	_, err := m.StartReview(models.FileInfo{ID: "f", Name: "x.txt"}, filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
	assert.Zero(t, m.SessionCount())
}

func TestManager_ChunkAnnotations(t *testing.T) {
	m, mock := newTestManager(Options{ChunkAnnotations: true, ChunkSize: 30})
	defer m.Close()

	sess, err := m.StartReview(models.FileInfo{ID: "f", Name: "spec.txt"},
		writeSpec(t, "Introduction\nWe process card payments.\nScope\nAll of Europe and more."))
	require.NoError(t, err)
	waitFinished(t, m, sess.ID)

	result, ok := m.GetResult(sess.ID)
	require.True(t, ok)
	assert.Greater(t, mock.Calls(), 1)

	chunks := 0
	for _, a := range result.Annotations {
		if a.Category == "review" && a.Section == "" {
			chunks++
		}
	}
	assert.Greater(t, chunks, 0)
}

func TestManager_HeadingsFallBackToRules(t *testing.T) {
	m := NewManager(extract.NewRegistry(), reviewer.NewService(reviewer.NewMock()), Options{})
	defer m.Close()

	assert.Empty(t, m.Headings())
	m.SetRules(&models.ReviewRules{Sections: []models.SectionRule{{Heading: "Overview"}}})
	assert.Equal(t, []models.TemplateHeading{{Style: "Heading 1", Text: "Overview"}}, m.Headings())
}

func TestManager_Cleanup(t *testing.T) {
	m, _ := newTestManager(Options{MaxSessions: 2})
	defer m.Close()

	var ids []string
	for i := 0; i < 3; i++ {
		sess, err := m.StartReview(models.FileInfo{ID: "f", Name: "spec.txt"}, writeSpec(t, "Introduction\ntext"))
		require.NoError(t, err)
		waitFinished(t, m, sess.ID)
		ids = append(ids, sess.ID)
	}
	assert.Equal(t, 2, m.SessionCount())
	_, ok := m.GetSession(ids[0])
	assert.False(t, ok)

	assert.True(t, m.TouchSession(ids[2]))
	assert.False(t, m.TouchSession("missing"))

	m.mu.Lock()
	for _, st := range m.sessions {
		st.LastAccessed = time.Now().Add(-time.Hour)
	}
	m.sessions[ids[2]].LastAccessed = time.Now()
	m.mu.Unlock()

	assert.Equal(t, 1, m.CleanupOldSessions(30*time.Minute))
	_, ok = m.GetSession(ids[2])
	assert.True(t, ok)
}
