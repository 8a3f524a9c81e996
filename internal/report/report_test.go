package report

import (
	"encoding/json"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"clubprogress/internal/components/chrono"
	"clubprogress/internal/config"
	"clubprogress/internal/model"

	"github.com/jordan-wright/email"
	"github.com/stretchr/testify/require"
)

var clock = chrono.FixedTime{At: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}

func testClub() *model.Club {
	return &model.Club{
		ClubId:   "club-uuid",
		ClubName: "Floor Speakers",
		Members: map[string]*model.Member{
			"jdoe": {
				Username:    "jdoe",
				DisplayName: "Jane Doe",
				CurrentPathways: []model.Pathway{
					{Name: "Dynamic Leadership", CurrentLevel: 3, CompletionPercentage: 85.5, Status: model.StatusActive},
					{Name: "Presentation Mastery", CurrentLevel: 1, CompletionPercentage: 10, Status: model.StatusActive},
				},
				NextProjects: []model.Project{
					{Name: "Choose 1 elective(s) from Level 3", Type: model.TypeElective, PathwayName: "Dynamic Leadership", Level: 3},
				},
			},
			"asmith": {
				Username:    "asmith",
				DisplayName: "<b>Alex</b> Smith",
				CurrentPathways: []model.Pathway{
					{Name: "Presentation Mastery", CurrentLevel: 1, CompletionPercentage: 0, Status: model.StatusActive},
				},
				NextProjects: []model.Project{
					{Name: "Ice Breaker", Type: model.TypeSpeech, PathwayName: "Presentation Mastery", Level: 1},
				},
			},
			"nopath": {Username: "nopath", DisplayName: "No Path"},
		},
		Order: []string{"jdoe", "asmith", "nopath"},
		Statistics: model.Statistics{
			TotalMembers:           3,
			ActiveMembers:          2,
			CompletedPathwaysTotal: 1,
		},
		Distribution: model.Distribution{
			PathwayDistribution: model.Counts{{Key: "Presentation Mastery", Count: 2}, {Key: "Dynamic Leadership", Count: 1}},
			LevelDistribution:   model.Counts{{Key: "1", Count: 2}, {Key: "3", Count: 1}},
		},
	}
}

func TestMarkdown(t *testing.T) {
	out, err := NewMarkdown(clock).Render(testClub())
	require.NoError(t, err)
	md := string(out)

	require.True(t, strings.HasPrefix(md, "# Floor Speakers - Club Progress Summary"))
	require.Contains(t, md, "*Generated on March 01, 2026*")
	require.Contains(t, md, "## Club Overview")
	require.Contains(t, md, "| **Total Members** | 3 |")
	require.Contains(t, md, "| Presentation Mastery | 2 | 66.7% |")
	require.Contains(t, md, "| Level 3 | 1 | 33.3% |")
	require.Contains(t, md, "### Advanced Members (Level 3+)")
	require.Contains(t, md, "**Jane Doe** - 2 pathway(s), 85.5% highest progress")
	require.Contains(t, md, "| Presentation Mastery | 1 | 10.0% | No project assigned |")
	require.Contains(t, md, "### Beginning Members (Level 1-2)")
	require.Contains(t, md, "- **Jane Doe**: Choose 1 elective(s) from Level 3 (Dynamic Leadership)")
	require.Contains(t, md, "Get 1 new member started with Ice Breaker speeches")
	require.Contains(t, md, "Celebrate upcoming pathway completions")
	require.NotContains(t, md, "No Path")
}

func TestHTML(t *testing.T) {
	out, err := NewHTML(clock).Render(testClub())
	require.NoError(t, err)
	html := string(out)

	require.Contains(t, html, "<title>Floor Speakers - Club Progress Summary</title>")
	require.Contains(t, html, "<table>")
	require.Contains(t, html, "<h2>Club Overview</h2>")
	require.NotContains(t, html, "<b>Alex</b>")
}

func TestJSON(t *testing.T) {
	out, err := JSON{}.Render(testClub())
	require.NoError(t, err)

	var decoded model.Club
	require.NoError(t, json.Unmarshal(out, &decoded))
	require.Equal(t, []string{"jdoe", "asmith", "nopath"}, decoded.Order)
	require.Equal(t, 3, decoded.Statistics.TotalMembers)
	require.Equal(t, testClub().Distribution, decoded.Distribution)

	var doc struct {
		Distribution struct {
			PathwayDistribution map[string]int `json:"pathway_distribution"`
			LevelDistribution   map[string]int `json:"level_distribution"`
		} `json:"distribution"`
	}
	require.NoError(t, json.Unmarshal(out, &doc))
	require.Equal(t, map[string]int{"Presentation Mastery": 2, "Dynamic Leadership": 1}, doc.Distribution.PathwayDistribution)
	require.Equal(t, map[string]int{"1": 2, "3": 1}, doc.Distribution.LevelDistribution)
}

func TestRenderers(t *testing.T) {
	renderers, err := Renderers([]string{TypeJSON, TypeMarkdown, TypeHTML}, clock)
	require.NoError(t, err)
	require.Len(t, renderers, 3)
	require.Equal(t, ".json", renderers[0].Extension())
	require.Equal(t, ".md", renderers[1].Extension())
	require.Equal(t, ".html", renderers[2].Extension())

	_, err = Renderers([]string{"pdf"}, clock)
	require.Error(t, err)

	require.Equal(t, "floor_speakers_report.md", FileName("Floor Speakers", ".md"))
}

func TestMailer(t *testing.T) {
	disabled := NewMailer(config.Mail{})
	require.ErrorIs(t, disabled.Send("Floor Speakers", nil, ""), ErrMailDisabled)

	var sent []*email.Email
	var auths []smtp.Auth
	mailer := NewMailer(config.Mail{
		SmtpHost: "smtp.example.org",
		SmtpPort: 587,
		Username: "reports@example.org",
		Password: "secret",
		To:       []string{"officers@example.org"},
	})
	mailer.send = func(mail *email.Email, addr string, auth smtp.Auth) error {
		require.Equal(t, "smtp.example.org:587", addr)
		sent = append(sent, mail)
		auths = append(auths, auth)
		if auth != nil {
			return errors.New("smtp: server doesn't support AUTH")
		}
		return nil
	}

	require.NoError(t, mailer.Send("Floor Speakers", []byte("<p>hi</p>"), ""))
	require.Len(t, sent, 2)
	require.NotNil(t, auths[0])
	require.Nil(t, auths[1])
	require.Equal(t, "reports@example.org", sent[1].From)
	require.Equal(t, "Floor Speakers - Club Progress Summary", sent[1].Subject)
	require.Equal(t, []string{"officers@example.org"}, sent[1].To)
}
