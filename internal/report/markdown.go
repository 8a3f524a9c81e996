package report

import (
	"fmt"
	"slices"
	"strings"

	"clubprogress/internal/components/chrono"
	"clubprogress/internal/model"

	"github.com/jedib0t/go-pretty/v6/table"
)

const noProjectAssigned = "No project assigned"

// members at or above this level get a per pathway breakdown
const advancedLevel = 3

// pathways above this completion are close to done
const nearCompletion = 80.0

type Markdown struct {
	time chrono.TimeAPI
}

func NewMarkdown(time chrono.TimeAPI) Markdown {
	return Markdown{time: time}
}

func (Markdown) Type() string      { return TypeMarkdown }
func (Markdown) Extension() string { return ".md" }

func (m Markdown) Render(club *model.Club) ([]byte, error) {
	return []byte(m.document(club)), nil
}

type document struct {
	strings.Builder
}

func (d *document) line(format string, args ...any) {
	fmt.Fprintf(d, format, args...)
	d.WriteString("\n")
}

func (d *document) heading(level int, text string) {
	d.line("\n%s %s\n", strings.Repeat("#", level), text)
}

func (d *document) rule() {
	d.WriteString("\n---\n")
}

func (d *document) table(header table.Row, rows []table.Row) {
	if len(rows) == 0 {
		return
	}
	t := table.NewWriter()
	t.AppendHeader(header)
	t.AppendRows(rows)
	d.WriteString(t.RenderMarkdown())
	d.WriteString("\n")
}

func (m Markdown) document(club *model.Club) string {
	var d document
	d.line("# %s - Club Progress Summary\n", club.ClubName)
	d.line("*Generated on %s*", m.time.Now().Format("January 02, 2006"))
	d.rule()

	overview(&d, club)
	d.rule()
	distribution(&d, club)
	d.rule()
	memberProgress(&d, club)
	d.rule()
	nextSteps(&d, club)
	return d.String()
}

func totalActivePathways(club *model.Club) int {
	total := 0
	for _, c := range club.Distribution.PathwayDistribution {
		total += c.Count
	}
	return total
}

func share(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total) * 100
}

func overview(d *document, club *model.Club) {
	stats := club.Statistics
	active := totalActivePathways(club)
	average := 0.0
	if stats.TotalMembers > 0 {
		average = float64(active) / float64(stats.TotalMembers)
	}

	d.heading(2, "Club Overview")
	d.table(table.Row{"Metric", "Value"}, []table.Row{
		{"**Total Members**", stats.TotalMembers},
		{"**Active Members**", stats.ActiveMembers},
		{"**Total Active Pathways**", active},
		{"**Completed Pathways**", stats.CompletedPathwaysTotal},
		{"**Average Pathways per Member**", fmt.Sprintf("%.1f", average)},
	})
}

func distribution(d *document, club *model.Club) {
	d.heading(2, "Distribution")

	d.heading(3, "Pathways")
	total := totalActivePathways(club)
	var rows []table.Row
	for _, c := range club.Distribution.PathwayDistribution {
		rows = append(rows, table.Row{c.Key, c.Count, fmt.Sprintf("%.1f%%", share(c.Count, total))})
	}
	d.table(table.Row{"Pathway", "Members", "Share"}, rows)

	d.heading(3, "Levels")
	levelTotal := 0
	for _, c := range club.Distribution.LevelDistribution {
		levelTotal += c.Count
	}
	rows = nil
	for _, c := range club.Distribution.LevelDistribution {
		rows = append(rows, table.Row{"Level " + c.Key, c.Count, fmt.Sprintf("%.1f%%", share(c.Count, levelTotal))})
	}
	d.table(table.Row{"Level", "Pathways", "Share"}, rows)
}

func nextProjectFor(m *model.Member, pathway string) string {
	for _, p := range m.NextProjects {
		if p.PathwayName == pathway {
			return p.Name
		}
	}
	return noProjectAssigned
}

func highestLevel(m *model.Member) int {
	level := 0
	for _, p := range m.CurrentPathways {
		level = max(level, p.CurrentLevel)
	}
	return level
}

// primaryPathway is the member's most complete pathway, the earliest wins a tie.
func primaryPathway(m *model.Member) model.Pathway {
	best := m.CurrentPathways[0]
	for _, p := range m.CurrentPathways[1:] {
		if p.CompletionPercentage > best.CompletionPercentage {
			best = p
		}
	}
	return best
}

func byProgress(members []*model.Member) {
	slices.SortStableFunc(members, func(a, b *model.Member) int {
		pa := primaryPathway(a).CompletionPercentage
		pb := primaryPathway(b).CompletionPercentage
		switch {
		case pa > pb:
			return -1
		case pa < pb:
			return 1
		}
		return 0
	})
}

func memberProgress(d *document, club *model.Club) {
	d.heading(2, "Member Progress")

	var advanced, beginning []*model.Member
	for _, m := range club.OrderedMembers() {
		if len(m.CurrentPathways) == 0 {
			continue
		}
		if highestLevel(m) >= advancedLevel {
			advanced = append(advanced, m)
		} else {
			beginning = append(beginning, m)
		}
	}
	byProgress(advanced)
	byProgress(beginning)

	if len(advanced) > 0 {
		d.heading(3, fmt.Sprintf("Advanced Members (Level %d+)", advancedLevel))
		for _, m := range advanced {
			d.line("\n**%s** - %d pathway(s), %.1f%% highest progress\n", m.DisplayName, len(m.CurrentPathways), primaryPathway(m).CompletionPercentage)

			pathways := slices.Clone(m.CurrentPathways)
			slices.SortStableFunc(pathways, func(a, b model.Pathway) int {
				switch {
				case a.CompletionPercentage > b.CompletionPercentage:
					return -1
				case a.CompletionPercentage < b.CompletionPercentage:
					return 1
				}
				return 0
			})
			var rows []table.Row
			for _, p := range pathways {
				rows = append(rows, table.Row{
					p.Name,
					p.CurrentLevel,
					fmt.Sprintf("%.1f%%", p.CompletionPercentage),
					nextProjectFor(m, p.Name),
				})
			}
			d.table(table.Row{"Pathway", "Level", "Progress", "Next Project"}, rows)
		}
	}

	if len(beginning) > 0 {
		d.heading(3, fmt.Sprintf("Beginning Members (Level 1-%d)", advancedLevel-1))
		var rows []table.Row
		for _, m := range beginning {
			primary := primaryPathway(m)
			next := noProjectAssigned
			if len(m.NextProjects) > 0 {
				next = m.NextProjects[0].Name
			}
			rows = append(rows, table.Row{
				m.DisplayName,
				primary.Name,
				fmt.Sprintf("%.1f%%", primary.CompletionPercentage),
				next,
			})
		}
		d.table(table.Row{"Member", "Primary Pathway", "Progress", "Next Project"}, rows)
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func nextSteps(d *document, club *model.Club) {
	d.heading(2, "Immediate Next Steps")

	var electives, firstSpeeches []string
	celebrate := false
	for _, m := range club.OrderedMembers() {
		for _, p := range m.NextProjects {
			name := strings.ToLower(p.Name)
			entry := fmt.Sprintf("**%s**: %s (%s)", m.DisplayName, p.Name, p.PathwayName)
			switch {
			case p.Type == model.TypeElective && strings.Contains(name, "choose"):
				electives = append(electives, entry)
			case strings.Contains(name, "ice breaker"):
				firstSpeeches = append(firstSpeeches, entry)
			}
		}
		for _, p := range m.CurrentPathways {
			if p.CompletionPercentage > nearCompletion {
				celebrate = true
			}
		}
	}

	d.heading(3, "Priority Actions")
	if len(firstSpeeches) == 0 && len(electives) == 0 {
		d.line("No immediate actions.")
	}
	if len(firstSpeeches) > 0 {
		d.line("**First Pathway Speech Opportunities:**\n")
		for _, s := range firstSpeeches {
			d.line("- %s", s)
		}
		d.line("")
	}
	if len(electives) > 0 {
		d.line("**Elective Choices Required:**\n")
		for _, s := range electives {
			d.line("- %s", s)
		}
	}

	d.heading(3, "Club Goals")
	var goals []string
	if len(firstSpeeches) > 0 {
		goals = append(goals, fmt.Sprintf("Get %s started with Ice Breaker speeches", plural(len(firstSpeeches), "new member")))
	}
	if len(electives) > 0 {
		goals = append(goals, fmt.Sprintf("Support %s with elective choices", plural(len(electives), "member")))
	}
	if celebrate {
		goals = append(goals, "Celebrate upcoming pathway completions")
	}
	if len(goals) == 0 {
		goals = append(goals, "Keep members progressing through their current levels")
	}
	for _, g := range goals {
		d.line("- %s", g)
	}
}
