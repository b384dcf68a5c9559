// Package game implements the blind-test rules: answer matching, the question
// deck, team ledgers and the session state machine. Nothing here performs I/O;
// every effect is returned as a list of notifications.
package game

import (
	"slices"

	"github.com/victornm/blindtest/internal/domain"
)

type State int

const (
	StateConfiguring State = iota
	StateStarted
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateConfiguring:
		return "configuring"
	case StateStarted:
		return "started"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

const (
	titleGameStarting = "New game !"
	titleAnswerList   = "Next question !"
	titleAnswerFound  = "Answer found !"
	titleAllFound     = "All answer found"
	titleGameFinished = "Game is finished !"
)

// Session is the game of one community. It is not safe for concurrent use;
// callers serialize access through the session registry.
type Session struct {
	community domain.CommunityID
	admin     domain.ChannelID
	state     State
	teams     []*Team
	deck      *Deck
}

// NewSession creates a session in the configuring state. questions are given
// in play order.
func NewSession(community domain.CommunityID, admin domain.ChannelID, questions []Question) (*Session, error) {
	if len(questions) == 0 {
		return nil, ErrEmptyQuestionSet
	}

	return &Session{
		community: community,
		admin:     admin,
		state:     StateConfiguring,
		deck:      NewDeck(questions),
	}, nil
}

func (s *Session) Community() domain.CommunityID { return s.community }

func (s *Session) AdminChannel() domain.ChannelID { return s.admin }

func (s *Session) State() State { return s.state }

func (s *Session) Deck() *Deck { return s.deck }

// Teams returns the teams in their current order.
func (s *Session) Teams() []*Team {
	return slices.Clone(s.teams)
}

func (s *Session) TeamNames() []string {
	names := make([]string, 0, len(s.teams))
	for _, t := range s.teams {
		names = append(names, t.Name)
	}

	return names
}

// AddTeam registers a team answering in channel. Teams may be changed in any
// state, a started game included.
func (s *Session) AddTeam(name string, channel domain.ChannelID) error {
	for _, t := range s.teams {
		if t.Channel == channel {
			return ErrDuplicateChannel
		}
	}
	for _, t := range s.teams {
		if t.Name == name {
			return ErrDuplicateName
		}
	}

	s.teams = append(s.teams, NewTeam(name, channel))
	return nil
}

// RemoveTeam drops the named team. The last team takes its place, so team
// order is not preserved across a removal.
func (s *Session) RemoveTeam(name string) error {
	i := slices.IndexFunc(s.teams, func(t *Team) bool { return t.Name == name })
	if i < 0 {
		return ErrTeamNotFound
	}

	last := len(s.teams) - 1
	s.teams[i] = s.teams[last]
	s.teams[last] = nil
	s.teams = s.teams[:last]

	return nil
}

// Start moves a configured session with at least one team to the started state.
func (s *Session) Start() ([]domain.Notification, error) {
	if s.state != StateConfiguring {
		return nil, ErrNotConfiguring
	}
	if len(s.teams) == 0 {
		return nil, ErrNoTeams
	}

	s.state = StateStarted

	out := []domain.Notification{
		{
			Community: s.community,
			Kind:      domain.NotificationGameStarting,
			Severity:  domain.SeverityInfo,
			Title:     titleGameStarting,
			Targets:   s.BroadcastSet(),
		},
	}
	if n, ok := s.answerList(); ok {
		out = append(out, n)
	}

	return out, nil
}

// End stops the game, whatever questions remain.
func (s *Session) End() error {
	if s.state == StateEnded {
		return ErrAlreadyEnded
	}

	s.state = StateEnded
	return nil
}

// CanDelete reports whether the session may be removed from its registry.
func (s *Session) CanDelete() error {
	if s.state != StateEnded {
		return ErrNotEnded
	}

	return nil
}

// HandleMessage scores text sent by author in channel. Messages outside a
// started game or outside team channels are ignored.
func (s *Session) HandleMessage(channel domain.ChannelID, author domain.UserID, text string) []domain.Notification {
	if s.state != StateStarted {
		return nil
	}

	team := s.teamByChannel(channel)
	if team == nil {
		return nil
	}

	q, ok := s.deck.Current()
	if !ok {
		s.state = StateEnded
		return nil
	}

	m, ok := MatchAnswer(q, text)
	if !ok {
		return nil
	}

	points := s.deck.ConsumeMatch(m.Slot, m.Alias)
	userTotal := team.Credit(author, points)

	broadcast := s.BroadcastSet()
	out := []domain.Notification{
		{
			Community: s.community,
			Kind:      domain.NotificationAnswerFound,
			Severity:  domain.SeveritySuccess,
			Title:     titleAnswerFound,
			Targets:   broadcast,
			AnswerFound: &domain.AnswerFound{
				Team:      team.Name,
				Finder:    author,
				Answer:    m.Alias,
				Points:    points,
				UserTotal: userTotal,
				TeamTotal: team.Total(),
			},
		},
	}

	if !s.deck.IsCurrentSolved() {
		return out
	}

	solved, _ := s.deck.Advance()
	finished := s.deck.Len() == 0
	out = append(out, domain.Notification{
		Community: s.community,
		Kind:      domain.NotificationQuestionSolved,
		Severity:  domain.SeveritySuccess,
		Title:     titleAllFound,
		Targets:   broadcast,
		QuestionSolved: &domain.QuestionSolved{
			Question: solved.Name,
			Finished: finished,
		},
	})

	if finished {
		s.state = StateEnded
		return append(out, domain.Notification{
			Community: s.community,
			Kind:      domain.NotificationGameFinished,
			Severity:  domain.SeverityAdmin,
			Title:     titleGameFinished,
			Targets:   []domain.ChannelID{s.admin},
		})
	}

	if n, ok := s.answerList(); ok {
		out = append(out, n)
	}

	return out
}

// BroadcastSet is every team channel followed by the admin channel.
func (s *Session) BroadcastSet() []domain.ChannelID {
	channels := make([]domain.ChannelID, 0, len(s.teams)+1)
	for _, t := range s.teams {
		channels = append(channels, t.Channel)
	}

	return append(channels, s.admin)
}

// Standings snapshots every team for a leaderboard query.
func (s *Session) Standings(limit int, export bool) domain.Leaderboard {
	l := domain.Leaderboard{
		Community: s.community,
		State:     s.state.String(),
		Teams:     make([]domain.TeamStanding, 0, len(s.teams)),
	}
	for _, t := range s.teams {
		l.Teams = append(l.Teams, t.Standing(limit, export))
	}

	return l
}

// IsTeamChannel reports whether a team answers in channel.
func (s *Session) IsTeamChannel(channel domain.ChannelID) bool {
	return s.teamByChannel(channel) != nil
}

func (s *Session) teamByChannel(channel domain.ChannelID) *Team {
	for _, t := range s.teams {
		if t.Channel == channel {
			return t
		}
	}

	return nil
}

// answerList discloses the aliases of the current question to the admin channel.
func (s *Session) answerList() (domain.Notification, bool) {
	q, ok := s.deck.Current()
	if !ok {
		return domain.Notification{}, false
	}

	return domain.Notification{
		Community: s.community,
		Kind:      domain.NotificationAnswerList,
		Severity:  domain.SeverityAdmin,
		Title:     titleAnswerList,
		Targets:   []domain.ChannelID{s.admin},
		AnswerList: &domain.AnswerList{
			Question:  q.Name,
			Slots:     q.answerList(),
			Remaining: s.deck.Len() - 1,
		},
	}, true
}
