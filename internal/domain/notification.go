package domain

import (
	"github.com/shopspring/decimal"
)

type NotificationKind string

const (
	NotificationGameStarting   NotificationKind = "game_starting"
	NotificationAnswerList     NotificationKind = "answer_list"
	NotificationAnswerFound    NotificationKind = "answer_found"
	NotificationQuestionSolved NotificationKind = "question_solved"
	NotificationGameFinished   NotificationKind = "game_finished"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityAdmin   Severity = "admin"
)

// Notification is an outbound message produced by a game. Targets lists every
// channel it must be delivered to. Exactly one payload field is set, matching Kind.
type Notification struct {
	ID        string           `json:"id,omitempty"`
	Community CommunityID      `json:"community"`
	Kind      NotificationKind `json:"kind"`
	Severity  Severity         `json:"severity"`
	Title     string           `json:"title"`
	Targets   []ChannelID      `json:"-"`

	AnswerFound    *AnswerFound    `json:"answer_found,omitempty"`
	AnswerList     *AnswerList     `json:"answer_list,omitempty"`
	QuestionSolved *QuestionSolved `json:"question_solved,omitempty"`
}

type AnswerFound struct {
	Team      string          `json:"team"`
	Finder    UserID          `json:"finder"`
	Answer    string          `json:"answer"`
	Points    decimal.Decimal `json:"points"`
	UserTotal decimal.Decimal `json:"user_total"`
	TeamTotal decimal.Decimal `json:"team_total"`
}

// AnswerList discloses every accepted spelling of the current question.
// Each element of Slots holds the remaining aliases of one slot.
type AnswerList struct {
	Question  string     `json:"question"`
	Slots     [][]string `json:"slots"`
	Remaining int        `json:"remaining"`
}

type QuestionSolved struct {
	Question string `json:"question"`
	Finished bool   `json:"finished"`
}
