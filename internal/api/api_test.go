package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/blindtest/internal/api"
	"github.com/victornm/blindtest/internal/domain"
	"github.com/victornm/blindtest/internal/gateway/ws"
	"github.com/victornm/blindtest/internal/leaderboard"
	"github.com/victornm/blindtest/internal/question"
	"github.com/victornm/blindtest/internal/session"
)

const (
	token    = "s3cret"
	musicSet = `[{"name": "song 1", "answer": ["Believer", ["Imagine Dragons", "Dragons"]]}]`
)

func TestAPI_Game(t *testing.T) {
	h := makeHandler(t)

	steps := []struct {
		method, path string
		body         any
		wantStatus   int
	}{
		{http.MethodPost, "/v1/communities/g1/game", api.CreateGameRequest{AdminChannel: "admin"}, http.StatusCreated},
		{http.MethodPost, "/v1/communities/g1/game/teams", api.AddTeamRequest{Name: "red", Channel: "c1"}, http.StatusCreated},
		{http.MethodPost, "/v1/communities/g1/game/start", nil, http.StatusOK},
		{http.MethodPost, "/v1/communities/g1/game/messages", api.PostMessageRequest{Channel: "c1", Author: "u1", Text: "believer"}, http.StatusAccepted},
		{http.MethodPost, "/v1/communities/g1/game/messages", api.PostMessageRequest{Channel: "c1", Author: "u2", Text: "Dragons"}, http.StatusAccepted},
	}

	for _, s := range steps {
		w := do(t, h, s.method, s.path, s.body, token)
		require.Equal(t, s.wantStatus, w.Code, "%s %s: %s", s.method, s.path, w.Body.String())
	}

	w := do(t, h, http.MethodGet, "/v1/communities/g1/game/leaderboard?json=true", nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var l domain.Leaderboard
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &l))
	assert.Equal(t, "started", l.State, "one alias of the group is still to be found")
	require.Len(t, l.Teams, 1)
	assert.Equal(t, "1.5", l.Teams[0].TotalPoints.String())
	require.Len(t, l.Teams[0].Entries, 2)
	assert.Equal(t, domain.UserID("u2"), l.Teams[0].Entries[0].User, "entries are sorted by ascending points")
	require.NotNil(t, l.Teams[0].Export)

	w = do(t, h, http.MethodPost, "/v1/communities/g1/game/end", nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, h, http.MethodDelete, "/v1/communities/g1/game", nil, token)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestAPI_Errors(t *testing.T) {
	tests := map[string]struct {
		method, path string
		body         any
		token        string
		wantStatus   int
		wantReason   string
	}{
		"missing token": {
			method: http.MethodPost, path: "/v1/communities/g1/game/start",
			wantStatus: http.StatusUnauthorized, wantReason: "operator_only",
		},
		"wrong token": {
			method: http.MethodPost, path: "/v1/communities/g1/game/start", token: "nope",
			wantStatus: http.StatusUnauthorized, wantReason: "operator_only",
		},
		"no game": {
			method: http.MethodPost, path: "/v1/communities/g2/game/start", token: token,
			wantStatus: http.StatusNotFound, wantReason: "no_session",
		},
		"game exists": {
			method: http.MethodPost, path: "/v1/communities/g1/game", token: token,
			body:       api.CreateGameRequest{AdminChannel: "admin"},
			wantStatus: http.StatusConflict, wantReason: "session_exists",
		},
		"unknown question set": {
			method: http.MethodPost, path: "/v1/communities/g2/game", token: token,
			body:       api.CreateGameRequest{AdminChannel: "admin", QuestionSet: "movies"},
			wantStatus: http.StatusNotFound, wantReason: "question_set_not_found",
		},
		"missing admin channel": {
			method: http.MethodPost, path: "/v1/communities/g2/game", token: token,
			body:       map[string]string{},
			wantStatus: http.StatusBadRequest, wantReason: "invalid_request",
		},
		"start without teams": {
			method: http.MethodPost, path: "/v1/communities/g1/game/start", token: token,
			wantStatus: http.StatusBadRequest, wantReason: "no_teams",
		},
		"delete running game": {
			method: http.MethodDelete, path: "/v1/communities/g1/game", token: token,
			wantStatus: http.StatusConflict, wantReason: "not_ended",
		},
		"remove unknown team": {
			method: http.MethodDelete, path: "/v1/communities/g1/game/teams/blue", token: token,
			wantStatus: http.StatusNotFound, wantReason: "team_not_found",
		},
		"invalid limit": {
			method: http.MethodGet, path: "/v1/communities/g1/game/leaderboard?limit=ten", token: token,
			wantStatus: http.StatusBadRequest, wantReason: "invalid_limit",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			h := makeHandler(t)
			w := do(t, h, http.MethodPost, "/v1/communities/g1/game", api.CreateGameRequest{AdminChannel: "admin"}, token)
			require.Equal(t, http.StatusCreated, w.Code)

			w = do(t, h, tt.method, tt.path, tt.body, tt.token)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())

			var resp api.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantReason, resp.Reason)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func makeHandler(t *testing.T) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "music.json"), []byte(musicSet), 0o600))

	s := session.NewService(session.Config{
		Questions:  question.FileSource{Dir: dir},
		DefaultSet: "music",
	})

	e := gin.New()
	api.New(api.Config{Games: s, OperatorToken: token}).Register(e)

	return e
}

func do(t *testing.T, h http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	return w
}

type scoreboard []domain.LeaderboardEntry

func (s scoreboard) GetLeaderboard(_ context.Context, req leaderboard.GetLeaderboardRequest) ([]domain.LeaderboardEntry, error) {
	if req.Team != "red" {
		return nil, nil
	}
	return s, nil
}

func TestAPI_Scoreboard(t *testing.T) {
	gin.SetMode(gin.TestMode)

	e := gin.New()
	api.New(api.Config{
		Scoreboard: scoreboard{{User: "u1", Points: decimal.RequireFromString("0.5")}},
	}).Register(e)

	w := do(t, e, http.MethodGet, "/v1/communities/g1/game/teams/red/scoreboard", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp api.ScoreboardResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "red", resp.Team)
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "0.5", resp.Entries[0].Points.String())

	w = do(t, e, http.MethodGet, "/v1/communities/g1/game/teams/red/scoreboard?limit=x", nil, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_IssueGrant(t *testing.T) {
	gin.SetMode(gin.TestMode)

	grants := ws.NewGrants(ws.GrantsConfig{Secret: "players"})
	e := gin.New()
	api.New(api.Config{Grants: grants, OperatorToken: token}).Register(e)

	w := do(t, e, http.MethodPost, "/v1/communities/g1/game/grants", api.IssueGrantRequest{Channel: "c1", User: "u1"}, "")
	require.Equal(t, http.StatusUnauthorized, w.Code, "only operators issue grants")

	w = do(t, e, http.MethodPost, "/v1/communities/g1/game/grants", api.IssueGrantRequest{Channel: "c1"}, token)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = do(t, e, http.MethodPost, "/v1/communities/g1/game/grants", api.IssueGrantRequest{Channel: "c1", User: "u1"}, token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp api.IssueGrantResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	user, err := grants.Verify(resp.Token, "g1", "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("u1"), user)
}
