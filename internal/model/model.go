// Package model is the aggregated club model handed to reports and persisted as the
// summary documents. JSON names are part of the on-disk format.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

const (
	StatusActive    = "active"
	StatusCompleted = "completed"

	TypeSpeech   = "speech"
	TypeProject  = "project"
	TypeElective = "elective"

	DefaultDuration  = "Duration not specified"
	ElectiveDuration = "Varies by selection"

	// NoActivePathway is the most active pathway of a member without pathways.
	NoActivePathway = "None"
)

type Pathway struct {
	Name                       string  `json:"name"`
	CourseId                   string  `json:"course_id"`
	CurrentLevel               int     `json:"current_level"`
	CompletionPercentage       float64 `json:"completion_percentage"`
	RemainingProjectsInLevel   int     `json:"remaining_projects_in_level"`
	RemainingProjectsInPathway int     `json:"remaining_projects_in_pathway"`
	Status                     string  `json:"status"`
}

type Project struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	PathwayName string `json:"pathway_name"`
	CourseId    string `json:"course_id"`
	Duration    string `json:"duration"`
	Level       int    `json:"level"`
}

type Summary struct {
	TotalPathways     int    `json:"total_pathways"`
	ActivePathways    int    `json:"active_pathways"`
	CompletedPathways int    `json:"completed_pathways"`
	MostActivePathway string `json:"most_active_pathway"`
}

type Member struct {
	MemberId          string    `json:"member_id"`
	Username          string    `json:"username"`
	FirstName         string    `json:"first_name"`
	LastName          string    `json:"last_name"`
	DisplayName       string    `json:"display_name"`
	Email             string    `json:"email"`
	CompletedPathways []string  `json:"completed_pathways"`
	CurrentPathways   []Pathway `json:"current_pathways"`
	NextProjects      []Project `json:"next_projects"`
	Summary           Summary   `json:"summary"`
}

// Pathway returns the member's current pathway with the given name.
func (m *Member) Pathway(name string) (*Pathway, bool) {
	for i := range m.CurrentPathways {
		if m.CurrentPathways[i].Name == name {
			return &m.CurrentPathways[i], true
		}
	}
	return nil, false
}

// HasNextProject reports whether a next project was already recorded for the pathway.
func (m *Member) HasNextProject(pathwayName string) bool {
	for _, p := range m.NextProjects {
		if p.PathwayName == pathwayName {
			return true
		}
	}
	return false
}

type Statistics struct {
	TotalMembers           int       `json:"total_members"`
	ActiveMembers          int       `json:"active_members"`
	CompletedPathwaysTotal int       `json:"completed_pathways_total"`
	SummaryGeneratedAt     time.Time `json:"summary_generated_at"`
}

// Count is a single entry of a distribution.
type Count struct {
	Key   string
	Count int
}

// Counts is a distribution serialized as a JSON object whose keys keep the slice
// order.
type Counts []Count

func (c Counts) MarshalJSON() ([]byte, error) {
	var buff bytes.Buffer
	buff.WriteByte('{')
	for i, entry := range c {
		if i > 0 {
			buff.WriteByte(',')
		}
		key, err := json.Marshal(entry.Key)
		if err != nil {
			return nil, err
		}
		buff.Write(key)
		buff.WriteByte(':')
		buff.WriteString(strconv.Itoa(entry.Count))
	}
	buff.WriteByte('}')
	return buff.Bytes(), nil
}

func (c *Counts) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*c = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("model: expected distribution object, got %v", tok)
	}

	out := Counts{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var count int
		err = dec.Decode(&count)
		if err != nil {
			return fmt.Errorf("model: distribution entry %q: %w", key, err)
		}
		out = append(out, Count{Key: key, Count: count})
	}
	*c = out
	return nil
}

type Distribution struct {
	// PathwayDistribution is ordered by descending count, ties in first seen order.
	PathwayDistribution Counts `json:"pathway_distribution"`
	// LevelDistribution is ordered by ascending level.
	LevelDistribution Counts `json:"level_distribution"`
}

type Club struct {
	ClubId          string
	ClubName        string
	DashboardClubId string
	// Members is keyed by username.
	Members map[string]*Member
	// Order is the username order members were first seen in.
	Order        []string
	Statistics   Statistics
	Distribution Distribution
}

// OrderedMembers returns members in the order they were first seen.
func (c *Club) OrderedMembers() []*Member {
	out := make([]*Member, 0, len(c.Order))
	for _, username := range c.Order {
		if m, ok := c.Members[username]; ok {
			out = append(out, m)
		}
	}
	return out
}

// clubDocument is the serialized club, members become a list in first seen order.
type clubDocument struct {
	ClubId          string       `json:"club_id"`
	ClubName        string       `json:"club_name"`
	DashboardClubId string       `json:"dashboard_club_id"`
	Statistics      Statistics   `json:"statistics"`
	Distribution    Distribution `json:"distribution"`
	Members         []*Member    `json:"members"`
}

func (c Club) MarshalJSON() ([]byte, error) {
	return json.Marshal(clubDocument{
		ClubId:          c.ClubId,
		ClubName:        c.ClubName,
		DashboardClubId: c.DashboardClubId,
		Statistics:      c.Statistics,
		Distribution:    c.Distribution,
		Members:         c.OrderedMembers(),
	})
}

func (c *Club) UnmarshalJSON(data []byte) error {
	var doc clubDocument
	err := json.Unmarshal(data, &doc)
	if err != nil {
		return err
	}
	*c = Club{
		ClubId:          doc.ClubId,
		ClubName:        doc.ClubName,
		DashboardClubId: doc.DashboardClubId,
		Members:         make(map[string]*Member, len(doc.Members)),
		Statistics:      doc.Statistics,
		Distribution:    doc.Distribution,
	}
	for _, m := range doc.Members {
		if _, seen := c.Members[m.Username]; seen {
			continue
		}
		c.Members[m.Username] = m
		c.Order = append(c.Order, m.Username)
	}
	return nil
}

// Enrollment is one member's entry in the enrollment snapshot captured at login.
type Enrollment struct {
	Username   string `json:"username,omitempty"`
	IsPaid     bool   `json:"is_paid"`
	IsEnrolled bool   `json:"is_enrolled"`
}
