// Package progression derives a member's progress state from the platform's raw
// level counts and course outlines. Everything here is pure.
package progression

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"clubprogress/internal/model"
	"clubprogress/lib/textutil"
)

const (
	MinLevel = 1
	MaxLevel = 5
)

const levelToken = "Level"

// LevelNumber parses the integer that follows "Level" in a level or chapter name,
// "Level 3 - Deepen" gives 3. A name without a parsable number gives 0.
func LevelNumber(name string) int {
	_, after, found := strings.Cut(name, levelToken)
	if !found {
		return 0
	}
	fields := strings.Fields(after)
	if len(fields) == 0 {
		return 0
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0
	}
	return n
}

func isLevel(l Level) bool {
	return strings.HasPrefix(l.Name, levelToken)
}

func (l Level) complete() bool {
	return l.Approved || l.Completed == l.Total
}

// CurrentLevel scans the levels in payload order. Every complete level moves the
// current level past it, the first started but unfinished level is the current one.
// The result is clamped to [MinLevel, MaxLevel] and remaining to >= 0.
func CurrentLevel(levels Levels) (level int, remainingInLevel int) {
	level = MinLevel
	for _, l := range levels {
		if !isLevel(l) {
			continue
		}
		n := LevelNumber(l.Name)
		if l.complete() {
			level = n + 1
			continue
		}
		if l.Completed > 0 {
			level = n
			remainingInLevel = l.Total - l.Completed
			break
		}
	}
	return min(max(level, MinLevel), MaxLevel), max(remainingInLevel, 0)
}

// Completion is the share of completed projects over all levels as a percentage
// rounded to one decimal, with the number of projects left in the pathway.
func Completion(levels Levels) (percent float64, remainingInPathway int) {
	var completed, total int
	for _, l := range levels {
		if !isLevel(l) {
			continue
		}
		completed += l.Completed
		total += l.Total
	}
	if total > 0 {
		percent = roundTenth(float64(completed) / float64(total) * 100)
		percent = min(max(percent, 0), 100)
	}
	return percent, max(total-completed, 0)
}

// roundTenth rounds to one decimal on the exact binary value, so ties go to even:
// 1.25 -> 1.2, 1.35 -> 1.4.
func roundTenth(v float64) float64 {
	out, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 1, 64), 64)
	return out
}

// Status is completed when the pathway's name is among the member's completed
// pathways.
func Status(pathwayName string, completedPathways []string) string {
	if slices.Contains(completedPathways, pathwayName) {
		return model.StatusCompleted
	}
	return model.StatusActive
}

// Pathway computes the full progress state of one pathway.
func Pathway(name, courseId string, levels Levels, completedPathways []string) model.Pathway {
	level, remainingInLevel := CurrentLevel(levels)
	percent, remainingInPathway := Completion(levels)
	return model.Pathway{
		Name:                       name,
		CourseId:                   courseId,
		CurrentLevel:               level,
		CompletionPercentage:       percent,
		RemainingProjectsInLevel:   remainingInLevel,
		RemainingProjectsInPathway: remainingInPathway,
		Status:                     Status(name, completedPathways),
	}
}

// ProjectName strips the legacy annotation the platform appends to retired projects.
func ProjectName(displayName string) string {
	if displayName == "" {
		return "Unknown Project"
	}
	return strings.TrimSpace(strings.ReplaceAll(displayName, "(Legacy)", ""))
}

// NextProjects walks the chapters in order and returns the incomplete items of the
// first chapter that has any. Incomplete electives are not listed one by one, they
// collapse into a single "Choose N elective(s)" entry when the chapter still needs
// more electives than were completed.
func NextProjects(chapters []Block, pathwayName, courseId string) []model.Project {
	for _, chapter := range chapters {
		if chapter.Type != blockChapter {
			continue
		}
		levelNum := LevelNumber(chapter.DisplayName)

		var incomplete []model.Project
		openElectives := 0
		completedElectives := 0
		for _, child := range chapter.Children {
			if child.Type != blockSequential {
				continue
			}
			elective := child.BlockLibType == blockElective
			if child.Complete {
				if elective {
					completedElectives++
				}
				continue
			}
			if elective {
				openElectives++
				continue
			}

			projectType := model.TypeProject
			if textutil.ContainsFold(child.DisplayName, "speech") {
				projectType = model.TypeSpeech
			}
			incomplete = append(incomplete, model.Project{
				Name:        ProjectName(child.DisplayName),
				Type:        projectType,
				PathwayName: pathwayName,
				CourseId:    courseId,
				Duration:    model.DefaultDuration,
				Level:       levelNum,
			})
		}

		if openElectives > 0 && chapter.MinReqElectives > completedElectives {
			incomplete = append(incomplete, model.Project{
				Name: fmt.Sprintf(
					"Choose %d elective(s) from %s",
					chapter.MinReqElectives-completedElectives,
					chapter.DisplayName,
				),
				Type:        model.TypeElective,
				PathwayName: pathwayName,
				CourseId:    courseId,
				Duration:    model.ElectiveDuration,
				Level:       levelNum,
			})
		}

		if len(incomplete) > 0 {
			return incomplete
		}
	}
	return nil
}
