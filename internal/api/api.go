// Package api exposes the operator HTTP API that drives games.
package api

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc/codes"

	"github.com/victornm/blindtest/internal/domain"
	"github.com/victornm/blindtest/internal/errors"
	"github.com/victornm/blindtest/internal/leaderboard"
	"github.com/victornm/blindtest/internal/session"
)

// Games is the part of the session service the API needs.
type Games interface {
	CreateGame(ctx context.Context, req session.CreateGameRequest) error
	StartGame(ctx context.Context, community domain.CommunityID) error
	EndGame(ctx context.Context, community domain.CommunityID) error
	DeleteGame(ctx context.Context, community domain.CommunityID) error
	AddTeam(ctx context.Context, req session.AddTeamRequest) error
	RemoveTeam(ctx context.Context, req session.RemoveTeamRequest) error
	HandleMessage(ctx context.Context, m domain.MessageEvent) error
	GetLeaderboard(ctx context.Context, req session.GetLeaderboardRequest) (*domain.Leaderboard, error)
}

// Grants issues the tokens players present to the websocket gateway.
type Grants interface {
	Issue(community domain.CommunityID, channel domain.ChannelID, user domain.UserID) (string, error)
}

// Scoreboard reads the leaderboards projected in Redis.
type Scoreboard interface {
	GetLeaderboard(ctx context.Context, req leaderboard.GetLeaderboardRequest) ([]domain.LeaderboardEntry, error)
}

type Config struct {
	Games      Games
	Scoreboard Scoreboard
	Grants     Grants
	// OperatorToken guards every route when set.
	OperatorToken string
}

type API struct {
	games      Games
	scoreboard Scoreboard
	grants     Grants
	token      string
}

func New(c Config) *API {
	return &API{
		games:      c.Games,
		scoreboard: c.Scoreboard,
		grants:     c.Grants,
		token:      c.OperatorToken,
	}
}

type (
	ErrorResponse struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Reason  string `json:"reason,omitempty"`
	}

	MessageResponse struct {
		Message string `json:"message"`
	}

	ScoreboardResponse struct {
		Team    string                    `json:"team"`
		Entries []domain.LeaderboardEntry `json:"entries"`
	}

	CreateGameRequest struct {
		AdminChannel string `json:"admin_channel" binding:"required"`
		QuestionSet  string `json:"question_set"`
	}

	AddTeamRequest struct {
		Name    string `json:"name" binding:"required"`
		Channel string `json:"channel" binding:"required"`
	}

	IssueGrantRequest struct {
		Channel string `json:"channel" binding:"required"`
		User    string `json:"user" binding:"required"`
	}

	IssueGrantResponse struct {
		Token string `json:"token"`
	}

	PostMessageRequest struct {
		Channel   string `json:"channel" binding:"required"`
		Author    string `json:"author" binding:"required"`
		Text      string `json:"text"`
		Automated bool   `json:"automated"`
	}
)

// Register mounts the API on r.
func (a *API) Register(r gin.IRouter) {
	g := r.Group("/v1/communities/:community/game", a.operatorAuth())

	g.POST("", a.createGame)
	g.DELETE("", a.deleteGame)
	g.POST("/start", a.startGame)
	g.POST("/end", a.endGame)
	g.POST("/teams", a.addTeam)
	g.DELETE("/teams/:name", a.removeTeam)
	g.POST("/messages", a.postMessage)
	g.GET("/leaderboard", a.getLeaderboard)
	if a.scoreboard != nil {
		g.GET("/teams/:name/scoreboard", a.getScoreboard)
	}
	if a.grants != nil {
		g.POST("/grants", a.issueGrant)
	}
}

func (a *API) createGame(c *gin.Context) {
	var req CreateGameRequest
	if !bind(c, &req) {
		return
	}

	err := a.games.CreateGame(c, session.CreateGameRequest{
		Community:    community(c),
		AdminChannel: domain.ChannelID(req.AdminChannel),
		QuestionSet:  req.QuestionSet,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, MessageResponse{Message: "Created a game in the community !"})
}

func (a *API) deleteGame(c *gin.Context) {
	if err := a.games.DeleteGame(c, community(c)); err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Removed the game"})
}

func (a *API) startGame(c *gin.Context) {
	if err := a.games.StartGame(c, community(c)); err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "The game has started !"})
}

func (a *API) endGame(c *gin.Context) {
	if err := a.games.EndGame(c, community(c)); err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Ended the game"})
}

func (a *API) addTeam(c *gin.Context) {
	var req AddTeamRequest
	if !bind(c, &req) {
		return
	}

	err := a.games.AddTeam(c, session.AddTeamRequest{
		Community: community(c),
		Name:      req.Name,
		Channel:   domain.ChannelID(req.Channel),
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, MessageResponse{
		Message: fmt.Sprintf("Added team named %s in channel %s !", req.Name, req.Channel),
	})
}

func (a *API) removeTeam(c *gin.Context) {
	name := c.Param("name")
	err := a.games.RemoveTeam(c, session.RemoveTeamRequest{
		Community: community(c),
		Name:      name,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: fmt.Sprintf("Removed team named %s !", name)})
}

// postMessage injects a chat message, as if a player had sent it.
func (a *API) postMessage(c *gin.Context) {
	var req PostMessageRequest
	if !bind(c, &req) {
		return
	}

	err := a.games.HandleMessage(c, domain.MessageEvent{
		Community: community(c),
		Channel:   domain.ChannelID(req.Channel),
		Author:    domain.UserID(req.Author),
		Text:      req.Text,
		Automated: req.Automated,
	})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusAccepted, MessageResponse{Message: "Message handled"})
}

func (a *API) getLeaderboard(c *gin.Context) {
	req := session.GetLeaderboardRequest{Community: community(c)}

	if s := c.Query("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil {
			abort(c, errors.New(errors.CodePrecondition,
				errors.WithReason("invalid_limit"),
				errors.WithMessagef("limit must be an integer: %q", s)))
			return
		}
		req.Limit = limit
	}

	if s := c.Query("json"); s != "" {
		export, err := strconv.ParseBool(s)
		if err != nil {
			abort(c, errors.New(errors.CodePrecondition,
				errors.WithReason("invalid_json_flag"),
				errors.WithMessagef("json must be a boolean: %q", s)))
			return
		}
		req.Export = export
	}

	l, err := a.games.GetLeaderboard(c, req)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, l)
}

// getScoreboard serves the projected leaderboard of one team, the view shared
// by every instance.
func (a *API) getScoreboard(c *gin.Context) {
	req := leaderboard.GetLeaderboardRequest{
		Community: community(c),
		Team:      c.Param("name"),
	}

	if s := c.Query("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil {
			abort(c, errors.New(errors.CodePrecondition,
				errors.WithReason("invalid_limit"),
				errors.WithMessagef("limit must be an integer: %q", s)))
			return
		}
		req.Limit = limit
	}

	entries, err := a.scoreboard.GetLeaderboard(c, req)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, ScoreboardResponse{Team: req.Team, Entries: entries})
}

// issueGrant hands out the token a player uses to join a channel over websocket.
func (a *API) issueGrant(c *gin.Context) {
	var req IssueGrantRequest
	if !bind(c, &req) {
		return
	}

	token, err := a.grants.Issue(community(c), domain.ChannelID(req.Channel), domain.UserID(req.User))
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, IssueGrantResponse{Token: token})
}

// operatorAuth checks the bearer token of the operator.
func (a *API) operatorAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.token == "" {
			c.Next()
			return
		}

		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(a.token)) != 1 {
			abort(c, errors.New(errors.CodeUnauthenticated,
				errors.WithReason("operator_only"),
				errors.WithMessagef("only operators can drive games")))
			return
		}

		c.Next()
	}
}

func community(c *gin.Context) domain.CommunityID {
	return domain.CommunityID(c.Param("community"))
}

func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		abort(c, errors.New(errors.CodePrecondition,
			errors.WithReason("invalid_request"),
			errors.WithMessagef("invalid request body: %v", err)))
		return false
	}

	return true
}

func abort(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.Code == errors.CodeInternal || e.Code == errors.CodeUpstream {
		slog.ErrorContext(c, "api: request failed", "path", c.FullPath(), "error", err)
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), ErrorResponse{
		Code:    codes.Code(e.Code).String(),
		Message: e.Message,
		Reason:  e.Reason,
	})
}
