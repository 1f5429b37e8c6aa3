package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/assessment/internal/model"
	"github.com/sells-group/assessment/internal/scoring"
	"github.com/sells-group/assessment/internal/session"
)

func newTestServer(t *testing.T, maxSessions int) (*httptest.Server, *prometheus.Registry) {
	t.Helper()
	env, reg := newTestApp(t, testConfig(t), "serve")
	sessions, err := newSessionRegistry(maxSessions, env.Metrics)
	require.NoError(t, err)
	api := &sessionAPI{newController: env.newController, sessions: sessions}
	srv := httptest.NewServer(buildRouter(api, []string{"*"}, reg))
	t.Cleanup(srv.Close)
	return srv, reg
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

var directorBody = map[string]any{
	"position":   "Director",
	"role":       "Operations",
	"team_size":  25,
	"motivation": "growing people",
	"user_id":    "user-1",
}

func startSession(t *testing.T, base string) questionResponse {
	t.Helper()
	var created questionResponse
	require.Equal(t, http.StatusCreated, doJSON(t, http.MethodPost, base+"/sessions", directorBody, &created))
	require.NotNil(t, created.Question)
	return created
}

func answerFor(q model.Question) model.Answer {
	switch q.Type {
	case model.QuestionMultipleChoice:
		return model.Answer{Choice: q.Options[0]}
	case model.QuestionScale:
		return model.Answer{Scale: 6}
	case model.QuestionMostLeast:
		return model.Answer{Ranking: &model.MostLeast{Most: q.Options[0], Least: q.Options[1]}}
	default:
		return model.Answer{Text: "I coach each lead weekly and review goals with the whole team."}
	}
}

func TestSessionAPI_FullSession(t *testing.T) {
	srv, _ := newTestServer(t, 10)
	created := startSession(t, srv.URL)
	id := created.Session.ConversationID
	require.NotEmpty(t, id)
	assert.Equal(t, model.QuestionScale, created.Question.Type)
	assert.Equal(t, 4, created.Session.TotalQuestions)

	base := srv.URL + "/sessions/" + id

	// Evaluation before the last answer.
	var errBody map[string]string
	assert.Equal(t, http.StatusConflict, doJSON(t, http.MethodPost, base+"/evaluation", nil, &errBody))

	q := *created.Question
	for i := 0; i < 4; i++ {
		var resp questionResponse
		require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, base+"/answers", answerFor(q), &resp), "answer %d", i+1)
		assert.Equal(t, i+1, resp.Session.QuestionsAsked)
		if i == 3 {
			assert.Nil(t, resp.Question)
			assert.True(t, resp.Session.Complete)
			break
		}
		require.NotNil(t, resp.Question)
		q = *resp.Question
	}

	var res model.EvaluationResult
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, base+"/evaluation", nil, &res))
	assert.Len(t, res.Frameworks, 12)
	assert.NotEmpty(t, res.Overall.Persona)

	// Evaluation is cached.
	var again model.EvaluationResult
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, base+"/evaluation", nil, &again))
	assert.Equal(t, res, again)

	var snap session.Snapshot
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, base, nil, &snap))
	assert.True(t, snap.Complete)
	assert.Len(t, snap.Exchanges, 4)
	assert.Equal(t, "user-1", snap.Profile.UserID)

	var insights model.ConversationInsights
	assert.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, base+"/insights", nil, &insights))

	// No edits after completion.
	assert.Equal(t, http.StatusConflict, doJSON(t, http.MethodPost, base+"/back", nil, nil))
}

func TestSessionAPI_Back(t *testing.T) {
	srv, _ := newTestServer(t, 10)
	created := startSession(t, srv.URL)
	base := srv.URL + "/sessions/" + created.Session.ConversationID

	var errBody map[string]string
	assert.Equal(t, http.StatusConflict, doJSON(t, http.MethodPost, base+"/back", nil, &errBody))
	assert.Contains(t, errBody["error"], "go back")

	var next questionResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, base+"/answers", model.Answer{Scale: 8}, &next))

	var back questionResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, base+"/back", nil, &back))
	require.NotNil(t, back.Question)
	assert.Equal(t, created.Question.Text, back.Question.Text)
	assert.Equal(t, 0, back.Session.QuestionsAsked)
}

func TestSessionAPI_Errors(t *testing.T) {
	srv, _ := newTestServer(t, 10)
	created := startSession(t, srv.URL)
	base := srv.URL + "/sessions/" + created.Session.ConversationID

	tests := []struct {
		name   string
		method string
		url    string
		body   any
		status int
	}{
		{"unknown session", http.MethodGet, srv.URL + "/sessions/nope", nil, http.StatusNotFound},
		{"unknown session answer", http.MethodPost, srv.URL + "/sessions/nope/answers", model.Answer{Text: "x"}, http.StatusNotFound},
		{"wrong answer type", http.MethodPost, base + "/answers", model.Answer{Text: "very"}, http.StatusUnprocessableEntity},
		{"scale out of range", http.MethodPost, base + "/answers", model.Answer{Scale: 11}, http.StatusUnprocessableEntity},
		{"bad body", http.MethodPost, base + "/answers", "not an answer", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body map[string]any
			assert.Equal(t, tt.status, doJSON(t, tt.method, tt.url, tt.body, &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestSessionAPI_IncompleteProfile(t *testing.T) {
	srv, _ := newTestServer(t, 10)

	var body struct {
		Error   string   `json:"error"`
		Missing []string `json:"missing"`
	}
	status := doJSON(t, http.MethodPost, srv.URL+"/sessions", map[string]any{"position": "Director", "team_size": "many"}, &body)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.ElementsMatch(t, []string{"role", "team_size"}, body.Missing)
}

func TestSessionAPI_TeamSizeAsString(t *testing.T) {
	srv, _ := newTestServer(t, 10)

	var created questionResponse
	status := doJSON(t, http.MethodPost, srv.URL+"/sessions", map[string]any{"position": "Lead", "role": "Support", "team_size": "4"}, &created)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, 4, created.Session.Profile.TeamSize)
}

func TestSessionAPI_EvictionAbandonsSession(t *testing.T) {
	srv, reg := newTestServer(t, 1)
	first := startSession(t, srv.URL)
	assert.Equal(t, 1.0, gaugeValue(t, reg, "assessment_session_active"))

	startSession(t, srv.URL)
	assert.Equal(t, 1.0, gaugeValue(t, reg, "assessment_session_active"))

	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodGet, srv.URL+"/sessions/"+first.Session.ConversationID, nil, nil))
}

func TestSessionAPI_HealthAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t, 10)
	startSession(t, srv.URL)

	var health map[string]any
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, srv.URL+"/health", nil, &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, 1.0, health["sessions"])

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "assessment_session_active 1")
	assert.Contains(t, string(body), "assessment_session_questions_shown_total")
}

func TestSessionAPI_CORS(t *testing.T) {
	srv, _ := newTestServer(t, 10)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/sessions", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func gaugeValue(t *testing.T, g prometheus.Gatherer, name string) float64 {
	t.Helper()
	families, err := g.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			require.NotEmpty(t, f.GetMetric())
			return f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

// gatedScorer holds Evaluate until release is closed.
type gatedScorer struct {
	*scoring.Engine
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *gatedScorer) Evaluate(ctx context.Context, in scoring.Input) model.EvaluationResult {
	s.once.Do(func() { close(s.entered) })
	<-s.release
	return s.Engine.Evaluate(ctx, in)
}

// newCustomServer serves sessions built by newCtrl over the test app's
// catalog and analyzer.
func newCustomServer(t *testing.T, newCtrl func(env *appEnv) *session.Controller) *httptest.Server {
	t.Helper()
	env, reg := newTestApp(t, testConfig(t), "serve")
	sessions, err := newSessionRegistry(10, env.Metrics)
	require.NoError(t, err)
	api := &sessionAPI{newController: func() *session.Controller { return newCtrl(env) }, sessions: sessions}
	srv := httptest.NewServer(buildRouter(api, []string{"*"}, reg))
	t.Cleanup(srv.Close)
	return srv
}

func answerAll(t *testing.T, base string, q model.Question) {
	t.Helper()
	for {
		var resp questionResponse
		require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, base+"/answers", answerFor(q), &resp))
		if resp.Question == nil {
			return
		}
		q = *resp.Question
	}
}

func TestSessionAPI_ConcurrentEvaluation(t *testing.T) {
	gate := &gatedScorer{entered: make(chan struct{}), release: make(chan struct{})}
	srv := newCustomServer(t, func(env *appEnv) *session.Controller {
		gate.Engine = env.Scorer
		return session.New(session.Deps{
			Catalog:  env.Catalog,
			Analyzer: env.Analyzer,
			Scorer:   gate,
		}, session.Options{TotalQuestions: 4, StructuredQuestions: 3})
	})

	created := startSession(t, srv.URL)
	base := srv.URL + "/sessions/" + created.Session.ConversationID
	answerAll(t, base, *created.Question)

	type outcome struct {
		status int
		res    model.EvaluationResult
	}
	first := make(chan outcome, 1)
	go func() {
		var res model.EvaluationResult
		status := doJSON(t, http.MethodPost, base+"/evaluation", nil, &res)
		first <- outcome{status, res}
	}()

	<-gate.entered
	var errBody map[string]string
	assert.Equal(t, http.StatusConflict, doJSON(t, http.MethodPost, base+"/evaluation", nil, &errBody))
	assert.Contains(t, errBody["error"], "pending")

	close(gate.release)
	got := <-first
	assert.Equal(t, http.StatusOK, got.status)
	assert.Len(t, got.res.Frameworks, 12)
}

func TestSessionAPI_AnswerNotSaved(t *testing.T) {
	var failing atomic.Bool
	srv := newCustomServer(t, func(env *appEnv) *session.Controller {
		return session.New(session.Deps{
			Catalog:  env.Catalog,
			Analyzer: env.Analyzer,
			Scorer:   env.Scorer,
			Listener: session.ListenerFunc(func(_ context.Context, ev session.Event) error {
				if ev.Type == session.EventAnswerRecorded && failing.Load() {
					return errors.New("disk full")
				}
				return nil
			}),
		}, session.Options{TotalQuestions: 4, StructuredQuestions: 3})
	})

	created := startSession(t, srv.URL)
	base := srv.URL + "/sessions/" + created.Session.ConversationID

	failing.Store(true)
	var errBody map[string]string
	assert.Equal(t, http.StatusServiceUnavailable, doJSON(t, http.MethodPost, base+"/answers", model.Answer{Scale: 7}, &errBody))
	assert.NotEmpty(t, errBody["error"])

	failing.Store(false)
	var next questionResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, base+"/next", nil, &next))
	require.NotNil(t, next.Question)
	assert.Equal(t, model.QuestionMultipleChoice, next.Question.Type)
	assert.Equal(t, 1, next.Session.QuestionsAsked)

	// Asking again returns the same question.
	var again questionResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, base+"/next", nil, &again))
	assert.Equal(t, next.Question.Text, again.Question.Text)
}
