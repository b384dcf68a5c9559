package notify

import (
	"fmt"
	"strings"

	"github.com/victornm/blindtest/internal/domain"
)

const footer = "blind test, have fun ❤️"

const rulesText = `We will soon start the blindtest !
If you know the name of the song, and the author/band that made it, send a message here
One point will be given for the author/band name and one point for the song name
Be careful about mistakes in the response, and remember: One message for the song name, and one for the band name

ENJOY :D`

// Message is a notification rendered for a chat channel, the shape of an embed.
type Message struct {
	ID        string                  `json:"id"`
	Community domain.CommunityID      `json:"community"`
	Channel   domain.ChannelID        `json:"channel"`
	Kind      domain.NotificationKind `json:"kind"`
	Title     string                  `json:"title"`
	Color     int                     `json:"color"`
	Body      string                  `json:"body"`
	Footer    string                  `json:"footer"`
}

var colors = map[domain.NotificationKind]int{
	domain.NotificationGameStarting:   0x000000,
	domain.NotificationAnswerFound:    0x00ff00,
	domain.NotificationQuestionSolved: 0x00ff00,
	domain.NotificationAnswerList:     0x0000ff,
	domain.NotificationGameFinished:   0x0000ff,
}

// Render lays out n for delivery to channel.
func Render(channel domain.ChannelID, n domain.Notification) Message {
	return Message{
		ID:        n.ID,
		Community: n.Community,
		Channel:   channel,
		Kind:      n.Kind,
		Title:     n.Title,
		Color:     colors[n.Kind],
		Body:      body(n),
		Footer:    footer,
	}
}

func body(n domain.Notification) string {
	switch n.Kind {
	case domain.NotificationGameStarting:
		return rulesText
	case domain.NotificationAnswerFound:
		if a := n.AnswerFound; a != nil {
			return fmt.Sprintf("<@%s> found an answer !\nIt was: `%s`\nThey now have %s points !",
				a.Finder, a.Answer, a.TeamTotal)
		}
	case domain.NotificationQuestionSolved:
		if q := n.QuestionSolved; q != nil && q.Finished {
			return "The game is finished\n Hope you had fun !"
		}
		return "All answers were found for the current question !"
	case domain.NotificationAnswerList:
		if l := n.AnswerList; l != nil {
			return answerList(l)
		}
	case domain.NotificationGameFinished:
		return "Hope it was fun!"
	}

	return ""
}

// answerList lists single answers one per line and draws a bracket around the
// aliases of a group.
func answerList(l *domain.AnswerList) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here are the next answers for the question: `%s`\n\n", l.Question)

	for _, slot := range l.Slots {
		switch len(slot) {
		case 0:
		case 1:
			fmt.Fprintf(&b, "-> `%s`\n", slot[0])
		default:
			for i, a := range slot {
				prefix := "│"
				switch i {
				case 0:
					prefix = "┌"
				case len(slot) - 1:
					prefix = "└"
				}
				fmt.Fprintf(&b, "%s -> `%s`\n", prefix, a)
			}
		}
	}

	fmt.Fprintf(&b, "\nThere are %d remaining questions", l.Remaining)
	return b.String()
}
