package session

import (
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/blindtest/internal/domain"
	"github.com/victornm/blindtest/internal/errors"
	"github.com/victornm/blindtest/internal/event"
	"github.com/victornm/blindtest/internal/game"
	"github.com/victornm/blindtest/internal/notify"
	"github.com/victornm/blindtest/internal/question"
	"github.com/victornm/blindtest/internal/telemetry"
)

const defaultLeaderboardLimit = 20

// noState stands for a game that does not exist, before creation or after deletion.
const noState game.State = -1

type Config struct {
	Registry   *Registry
	Questions  question.Source
	DefaultSet string
	Notifier   notify.Notifier
	EventBus   *event.Bus
	Now        func() time.Time
}

// Service runs the games of every community. State changes are committed under
// the game lock; notifications are delivered after it is released.
type Service struct {
	registry   *Registry
	questions  question.Source
	defaultSet string
	notifier   notify.Notifier
	eb         *event.Bus
	now        func() time.Time
}

func NewService(c Config) *Service {
	s := &Service{
		registry:   c.Registry,
		questions:  c.Questions,
		defaultSet: c.DefaultSet,
		notifier:   c.Notifier,
		eb:         c.EventBus,
		now:        c.Now,
	}

	if s.registry == nil {
		s.registry = NewRegistry()
	}
	if s.now == nil {
		s.now = time.Now
	}

	return s
}

// CreateGameRequest represents a request to create a new game in a community.
type CreateGameRequest struct {
	Community domain.CommunityID
	// AdminChannel receives the answer lists and the end of game notice.
	AdminChannel domain.ChannelID
	// QuestionSet names the set to load when Questions is empty.
	QuestionSet string
	// Questions in play order, optional.
	Questions []game.Question
}

// CreateGame creates a game in the configuring state.
func (s *Service) CreateGame(ctx context.Context, req CreateGameRequest) error {
	if s.registry.Exists(req.Community) {
		return game.ErrSessionExists
	}

	questions := req.Questions
	if len(questions) == 0 {
		set := req.QuestionSet
		if set == "" {
			set = s.defaultSet
		}

		var err error
		if questions, err = s.questions.Load(ctx, set); err != nil {
			return err
		}
	}

	gs, err := game.NewSession(req.Community, req.AdminChannel, questions)
	if err != nil {
		return err
	}

	if err := s.registry.Insert(gs); err != nil {
		return err
	}

	slog.InfoContext(ctx, "session: game created",
		"community", req.Community,
		"admin_channel", req.AdminChannel,
		"questions", len(questions),
	)
	s.publishState(ctx, req.Community, noState, game.StateConfiguring)
	return nil
}

// StartGame starts the game of community and announces it.
func (s *Service) StartGame(ctx context.Context, community domain.CommunityID) error {
	var out []domain.Notification
	err := s.registry.Do(community, func(gs *game.Session) error {
		var err error
		out, err = gs.Start()
		return err
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "session: game started", "community", community)
	s.publishState(ctx, community, game.StateConfiguring, game.StateStarted)
	return s.dispatch(ctx, out)
}

// EndGame ends the game of community, even if questions remain.
func (s *Service) EndGame(ctx context.Context, community domain.CommunityID) error {
	var from game.State
	err := s.registry.Do(community, func(gs *game.Session) error {
		from = gs.State()
		return gs.End()
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "session: game ended", "community", community)
	s.publishState(ctx, community, from, game.StateEnded)
	return nil
}

// DeleteGame removes an ended game.
func (s *Service) DeleteGame(ctx context.Context, community domain.CommunityID) error {
	var teams []string
	err := s.registry.Delete(community, func(gs *game.Session) error {
		teams = gs.TeamNames()
		return gs.CanDelete()
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "session: game deleted", "community", community)
	s.publishState(ctx, community, game.StateEnded, noState)
	if s.eb != nil {
		s.eb.Publish(ctx, domain.EventGameDeleted{Community: community, Teams: teams})
	}
	return nil
}

type AddTeamRequest struct {
	Community domain.CommunityID
	Name      string
	Channel   domain.ChannelID
}

// AddTeam registers a team answering in a channel.
func (s *Service) AddTeam(ctx context.Context, req AddTeamRequest) error {
	if req.Name == "" || req.Channel == "" {
		return errors.New(errors.CodePrecondition,
			errors.WithReason("invalid_team"),
			errors.WithMessagef("a team needs a name and a channel"))
	}

	return s.registry.Do(req.Community, func(gs *game.Session) error {
		if err := gs.AddTeam(req.Name, req.Channel); err != nil {
			return err
		}

		if gs.State() != game.StateConfiguring {
			slog.WarnContext(ctx, "session: team added to a running game",
				"community", req.Community, "team", req.Name, "state", gs.State())
		}
		slog.InfoContext(ctx, "session: team added",
			"community", req.Community, "team", req.Name, "channel", req.Channel)
		return nil
	})
}

type RemoveTeamRequest struct {
	Community domain.CommunityID
	Name      string
}

// RemoveTeam drops a team and its scores.
func (s *Service) RemoveTeam(ctx context.Context, req RemoveTeamRequest) error {
	err := s.registry.Do(req.Community, func(gs *game.Session) error {
		if err := gs.RemoveTeam(req.Name); err != nil {
			return err
		}

		if gs.State() != game.StateConfiguring {
			slog.WarnContext(ctx, "session: team removed from a running game",
				"community", req.Community, "team", req.Name, "state", gs.State())
		}
		slog.InfoContext(ctx, "session: team removed", "community", req.Community, "team", req.Name)
		return nil
	})
	if err != nil {
		return err
	}

	if s.eb != nil {
		s.eb.Publish(ctx, domain.EventTeamRemoved{Community: req.Community, Team: req.Name})
	}
	return nil
}

// HandleMessage scores an inbound chat message. Messages that don't belong to
// a running game are ignored without error.
func (s *Service) HandleMessage(ctx context.Context, m domain.MessageEvent) error {
	if m.Automated {
		telemetry.ObserveMessage(telemetry.MessageIgnored)
		return nil
	}

	var (
		out    []domain.Notification
		from   game.State
		to     game.State
		played bool
	)
	err := s.registry.Do(m.Community, func(gs *game.Session) error {
		from = gs.State()
		played = from == game.StateStarted && gs.IsTeamChannel(m.Channel)
		out = gs.HandleMessage(m.Channel, m.Author, m.Text)
		to = gs.State()
		return nil
	})
	if stderrors.Is(err, game.ErrNoSession) {
		telemetry.ObserveMessage(telemetry.MessageIgnored)
		return nil
	}
	if err != nil {
		return err
	}

	switch {
	case len(out) > 0:
		telemetry.ObserveMessage(telemetry.MessageMatched)
	case played && from == to:
		telemetry.ObserveMessage(telemetry.MessageMissed)
	default:
		telemetry.ObserveMessage(telemetry.MessageIgnored)
	}

	s.publishCredits(ctx, out)
	if from != to {
		slog.InfoContext(ctx, "session: game finished", "community", m.Community)
		s.publishState(ctx, m.Community, from, to)
	}

	return s.dispatch(ctx, out)
}

type GetLeaderboardRequest struct {
	Community domain.CommunityID
	// Limit bounds the entries per team, 20 when zero, unbounded when negative.
	Limit int
	// Export attaches the structured export of each team.
	Export bool
}

// GetLeaderboard returns the standings of every team. Entries are sorted in
// ascending order of points.
func (s *Service) GetLeaderboard(_ context.Context, req GetLeaderboardRequest) (*domain.Leaderboard, error) {
	limit := req.Limit
	if limit == 0 {
		limit = defaultLeaderboardLimit
	}

	var l domain.Leaderboard
	err := s.registry.Do(req.Community, func(gs *game.Session) error {
		l = gs.Standings(limit, req.Export)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &l, nil
}

// dispatch delivers every notification to each of its targets. State is
// already committed; failures are reported, not retried.
func (s *Service) dispatch(ctx context.Context, out []domain.Notification) error {
	if s.notifier == nil {
		return nil
	}

	var errs []error
	for _, n := range out {
		id, err := uuid.NewV7()
		if err == nil {
			n.ID = id.String()
		}

		for _, c := range n.Targets {
			err := s.notifier.Notify(ctx, c, n)
			telemetry.ObserveNotification(string(n.Kind), err)
			if err != nil {
				slog.ErrorContext(ctx, "session: notification failed",
					"community", n.Community, "channel", c, "kind", n.Kind, "error", err)
				errs = append(errs, err)
			}
		}
	}

	if len(errs) > 0 {
		return errors.Upstream(stderrors.Join(errs...))
	}

	return nil
}

func (s *Service) publishCredits(ctx context.Context, out []domain.Notification) {
	var events []event.Event
	for _, n := range out {
		a := n.AnswerFound
		if a == nil {
			continue
		}

		telemetry.ObservePoints(a.Points.InexactFloat64())
		events = append(events, domain.EventScoreCredited{
			Community:  n.Community,
			Team:       a.Team,
			User:       a.Finder,
			Points:     a.Points,
			UserTotal:  a.UserTotal,
			TeamTotal:  a.TeamTotal,
			CreditTime: s.now(),
		})
	}

	if s.eb != nil && len(events) > 0 {
		s.eb.Publish(ctx, events...)
	}
}

// publishState reports a lifecycle change.
func (s *Service) publishState(ctx context.Context, community domain.CommunityID, from, to game.State) {
	name := func(st game.State) string {
		if st == noState {
			return ""
		}
		return st.String()
	}

	e := domain.EventGameStateChanged{Community: community, From: name(from), To: name(to)}
	telemetry.ObserveGameState(e.From, e.To)
	if s.eb != nil {
		s.eb.Publish(ctx, e)
	}
}
