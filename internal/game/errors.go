package game

import (
	"github.com/victornm/blindtest/internal/errors"
)

var (
	ErrNoSession = errors.New(errors.CodeNotFound,
		errors.WithReason("no_session"),
		errors.WithMessagef("no game exists in this community"))

	ErrSessionExists = errors.New(errors.CodeConflict,
		errors.WithReason("session_exists"),
		errors.WithMessagef("this community already has a game ongoing"))

	ErrEmptyQuestionSet = errors.New(errors.CodePrecondition,
		errors.WithReason("empty_question_set"),
		errors.WithMessagef("the question list is empty"))

	ErrDuplicateChannel = errors.New(errors.CodeConflict,
		errors.WithReason("duplicate_channel"),
		errors.WithMessagef("a team already exists with that channel"))

	ErrDuplicateName = errors.New(errors.CodeConflict,
		errors.WithReason("duplicate_name"),
		errors.WithMessagef("a team already exists with that name"))

	ErrTeamNotFound = errors.New(errors.CodeNotFound,
		errors.WithReason("team_not_found"),
		errors.WithMessagef("no team exists with this name"))

	ErrNotConfiguring = errors.New(errors.CodeInvalidState,
		errors.WithReason("not_configuring"),
		errors.WithMessagef("the game has already started, or it has ended"))

	ErrNoTeams = errors.New(errors.CodePrecondition,
		errors.WithReason("no_teams"),
		errors.WithMessagef("no team has been added"))

	ErrAlreadyEnded = errors.New(errors.CodeInvalidState,
		errors.WithReason("already_ended"),
		errors.WithMessagef("the game was already finished"))

	ErrNotEnded = errors.New(errors.CodeInvalidState,
		errors.WithReason("not_ended"),
		errors.WithMessagef("the game isn't finished"))
)
