// Package aggregate builds the club model out of a fetched dataset.
package aggregate

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	"clubprogress/internal/basecamp"
	"clubprogress/internal/components/assert"
	"clubprogress/internal/components/chrono"
	"clubprogress/internal/components/telemetry"
	"clubprogress/internal/fetch"
	"clubprogress/internal/model"
	"clubprogress/internal/progression"
)

const (
	report_aggregator_overview = "aggregator.overview"
	report_aggregator_progress = "aggregator.progress"
	report_aggregator_details  = "aggregator.details"
)

// Enricher fills in project details from pathway definitions.
type Enricher interface {
	Enrich(project *model.Project) bool
}

// ClubInfo is everything about the club that does not come from the fetched pages.
type ClubInfo struct {
	ClubId          string
	ClubName        string
	DashboardClubId string
	Enrollment      []model.Enrollment
}

type Aggregator struct {
	// catalog may be nil, projects then keep their default duration and type.
	catalog Enricher
	time    chrono.TimeAPI
	tel     telemetry.API
}

func NewAggregator(catalog Enricher, time chrono.TimeAPI, tel telemetry.API) Aggregator {
	assert.NotNil(time)
	return Aggregator{
		catalog: catalog,
		time:    time,
		tel:     telemetry.NewScopedAPI("aggregate", tel),
	}
}

// Build turns the dataset into a club. It does not modify the dataset, building
// twice from the same dataset at the same time gives equal clubs.
func (a Aggregator) Build(dataset fetch.Dataset, info ClubInfo) *model.Club {
	club := &model.Club{
		ClubId:          info.ClubId,
		ClubName:        info.ClubName,
		DashboardClubId: info.DashboardClubId,
		Members:         map[string]*model.Member{},
	}

	a.addMembers(club, dataset.Pages[basecamp.EndpointOverview])
	a.addProgress(club, dataset.Pages[basecamp.EndpointProgress])
	a.addDetails(club, dataset.Details)

	members := club.OrderedMembers()
	if a.catalog != nil {
		for _, m := range members {
			for i := range m.NextProjects {
				a.catalog.Enrich(&m.NextProjects[i])
			}
		}
	}
	for _, m := range members {
		m.Summary = Summarize(m)
	}

	club.Statistics = Statistics(members, info.Enrollment)
	club.Statistics.SummaryGeneratedAt = a.time.Now()
	club.Distribution = Distribute(members)

	a.tel.ReportInfo("built club model", telemetry.KV{Key: "members", Value: len(members)})
	return club
}

func (a Aggregator) addMembers(club *model.Club, pages []basecamp.Page) {
	results, skipped := basecamp.DecodeResults[basecamp.OverviewResult](pages)
	if skipped > 0 {
		a.tel.ReportWarning(report_aggregator_overview, fmt.Errorf("%d overview results could not be decoded", skipped))
	}
	for _, r := range results {
		username := r.User.Username
		if username == "" {
			continue
		}
		if _, ok := club.Members[username]; ok {
			continue
		}
		club.Members[username] = &model.Member{
			MemberId:          r.User.Id.String(),
			Username:          username,
			FirstName:         r.User.FirstName,
			LastName:          r.User.LastName,
			DisplayName:       r.User.FirstName + " " + r.User.LastName,
			Email:             r.User.Email,
			CompletedPathways: append([]string{}, r.CompletedPaths...),
			CurrentPathways:   []model.Pathway{},
			NextProjects:      []model.Project{},
		}
		club.Order = append(club.Order, username)
	}
}

func (a Aggregator) addProgress(club *model.Club, pages []basecamp.Page) {
	results, skipped := basecamp.DecodeResults[basecamp.ProgressResult](pages)
	if skipped > 0 {
		a.tel.ReportWarning(report_aggregator_progress, fmt.Errorf("%d progress results could not be decoded", skipped))
	}
	for _, r := range results {
		member, ok := club.Members[r.User.Username]
		if !ok {
			continue
		}
		pathway := progression.Pathway(r.PathName, r.CourseId.String(), r.Progression, member.CompletedPathways)
		if existing, ok := member.Pathway(pathway.Name); ok {
			*existing = pathway
			continue
		}
		member.CurrentPathways = append(member.CurrentPathways, pathway)
	}
}

func (a Aggregator) addDetails(club *model.Club, entries []fetch.DetailEntry) {
	for _, entry := range entries {
		member, ok := club.Members[entry.Username]
		if !ok {
			continue
		}
		var data basecamp.DetailData
		err := json.Unmarshal(entry.Data, &data)
		if err != nil {
			a.tel.ReportWarning(report_aggregator_details, err, entry.Username, entry.CourseId)
			continue
		}
		if data.Blocks.Empty() {
			continue
		}

		pathwayName := data.Blocks.PathwayName()
		if member.HasNextProject(pathwayName) {
			continue
		}
		projects := progression.NextProjects(data.Blocks.Children, pathwayName, entry.CourseId)
		if len(projects) == 0 {
			continue
		}
		member.NextProjects = append(member.NextProjects, projects[0])
	}
}

// Summarize counts a member's pathways. A completed pathway that is also listed as a
// current pathway counts once toward the total. The most active pathway is the one
// with the highest completion, the earliest wins a tie.
func Summarize(m *model.Member) model.Summary {
	total := len(m.CurrentPathways)
	for _, name := range m.CompletedPathways {
		if _, current := m.Pathway(name); current {
			continue
		}
		total++
	}

	active := 0
	mostActive := model.NoActivePathway
	best := -1.0
	for _, p := range m.CurrentPathways {
		if p.Status == model.StatusActive {
			active++
		}
		if p.CompletionPercentage > best {
			best = p.CompletionPercentage
			mostActive = p.Name
		}
	}

	return model.Summary{
		TotalPathways:     total,
		ActivePathways:    active,
		CompletedPathways: len(m.CompletedPathways),
		MostActivePathway: mostActive,
	}
}

// Statistics counts paid and active (paid and enrolled) members from the enrollment
// snapshot and sums completed pathways over all members.
func Statistics(members []*model.Member, enrollment []model.Enrollment) model.Statistics {
	var stats model.Statistics
	for _, e := range enrollment {
		if !e.IsPaid {
			continue
		}
		stats.TotalMembers++
		if e.IsEnrolled {
			stats.ActiveMembers++
		}
	}
	for _, m := range members {
		stats.CompletedPathwaysTotal += m.Summary.CompletedPathways
	}
	return stats
}

// Distribute counts active pathways by name and by current level. Pathways are ordered
// by descending count with ties in first seen order, levels ascending.
func Distribute(members []*model.Member) model.Distribution {
	var pathways model.Counts
	pathwayIndex := map[string]int{}
	levels := map[int]int{}
	for _, m := range members {
		for _, p := range m.CurrentPathways {
			if p.Status != model.StatusActive {
				continue
			}
			idx, ok := pathwayIndex[p.Name]
			if !ok {
				idx = len(pathways)
				pathwayIndex[p.Name] = idx
				pathways = append(pathways, model.Count{Key: p.Name})
			}
			pathways[idx].Count++
			levels[p.CurrentLevel]++
		}
	}
	slices.SortStableFunc(pathways, func(a, b model.Count) int {
		return b.Count - a.Count
	})

	levelKeys := make([]int, 0, len(levels))
	for level := range levels {
		levelKeys = append(levelKeys, level)
	}
	slices.Sort(levelKeys)
	levelCounts := make(model.Counts, len(levelKeys))
	for i, level := range levelKeys {
		levelCounts[i] = model.Count{Key: strconv.Itoa(level), Count: levels[level]}
	}

	if pathways == nil {
		pathways = model.Counts{}
	}
	return model.Distribution{
		PathwayDistribution: pathways,
		LevelDistribution:   levelCounts,
	}
}
