// Package pathways reads the pathway definition files used to fill in project
// durations and types that the platform does not report.
package pathways

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"clubprogress/internal/components/telemetry"
	"clubprogress/internal/model"
	"clubprogress/lib/textutil"
)

const (
	report_catalog_load = "catalog.load"
)

const IndexFile = "index.json"

type index struct {
	PathwaysIndex struct {
		AvailablePathways []struct {
			Name     string `json:"name"`
			Filename string `json:"filename"`
		} `json:"available_pathways"`
	} `json:"pathways_index"`
}

type ElectiveOption struct {
	Name string `json:"name"`
}

type Project struct {
	Name            string           `json:"name"`
	Type            string           `json:"type"`
	Duration        string           `json:"duration"`
	ElectiveOptions []ElectiveOption `json:"elective_options"`
}

type Level struct {
	Projects []Project `json:"projects"`
}

type Definition struct {
	Levels map[string]Level `json:"levels"`
}

// Details is what a definition adds to a project, empty fields are unknown.
type Details struct {
	Duration string
	Type     string
}

// Catalog holds the pathway definitions keyed by pathway name. The zero value is an
// empty catalog that never matches.
type Catalog struct {
	pathways map[string]Definition
	tel      telemetry.API
}

// Load reads dir/index.json and every pathway file it lists. A missing directory or
// index gives an empty catalog with a warning, a listed file that is missing or
// broken is skipped.
func Load(dir string, tel telemetry.API) Catalog {
	tel = telemetry.NewScopedAPI("pathways", tel)
	catalog := Catalog{
		pathways: map[string]Definition{},
		tel:      tel,
	}

	indexPath := filepath.Join(dir, IndexFile)
	buff, err := os.ReadFile(indexPath)
	if err != nil {
		tel.ReportWarning(report_catalog_load, fmt.Errorf("pathway enrichment unavailable: %w", err), indexPath)
		return catalog
	}
	var idx index
	err = json.Unmarshal(buff, &idx)
	if err != nil {
		tel.ReportWarning(report_catalog_load, fmt.Errorf("parse index: %w", err), indexPath)
		return catalog
	}

	for _, entry := range idx.PathwaysIndex.AvailablePathways {
		if entry.Name == "" || entry.Filename == "" {
			continue
		}
		path := filepath.Join(dir, entry.Filename)
		buff, err := os.ReadFile(path)
		if err != nil {
			tel.ReportWarning(report_catalog_load, fmt.Errorf("pathway file: %w", err), entry.Name, path)
			continue
		}
		var def Definition
		err = json.Unmarshal(buff, &def)
		if err != nil {
			tel.ReportWarning(report_catalog_load, fmt.Errorf("parse pathway file: %w", err), entry.Name, path)
			continue
		}
		catalog.pathways[entry.Name] = def
		tel.ReportDebug("loaded pathway definition", entry.Name)
	}
	tel.ReportInfo("pathway definitions loaded", telemetry.KV{Key: "count", Value: len(catalog.pathways)})
	return catalog
}

// Len is the number of loaded pathway definitions.
func (c Catalog) Len() int {
	return len(c.pathways)
}

// Lookup finds a project by pathway, name and level. Names compare without case or
// whitespace. A project that is an elective slot also matches any of its options by
// name, unless the name being looked up is itself an elective label; such a match
// only reports the slot's duration.
func (c Catalog) Lookup(pathwayName, projectName string, level int) (Details, bool) {
	def, ok := c.pathways[pathwayName]
	if !ok {
		return Details{}, false
	}
	lvl, ok := def.Levels["Level "+strconv.Itoa(level)]
	if !ok {
		return Details{}, false
	}

	wanted := textutil.NormalizeName(projectName)
	for _, project := range lvl.Projects {
		if textutil.NormalizeName(project.Name) == wanted {
			return Details{
				Duration: durationOrDefault(project.Duration),
				Type:     project.Type,
			}, true
		}
		if project.Type == model.TypeElective && !strings.Contains(wanted, model.TypeElective) {
			for _, option := range project.ElectiveOptions {
				if textutil.NormalizeName(option.Name) == wanted {
					return Details{Duration: durationOrDefault(project.Duration)}, true
				}
			}
		}
	}
	return Details{}, false
}

func durationOrDefault(duration string) string {
	if duration == "" {
		return model.DefaultDuration
	}
	return duration
}

// Enrich overwrites the project's duration and type with whatever the catalog knows.
func (c Catalog) Enrich(project *model.Project) bool {
	details, ok := c.Lookup(project.PathwayName, project.Name, project.Level)
	if !ok {
		if c.tel != nil {
			c.tel.ReportDebug("no pathway definition for project", project.PathwayName, project.Name, project.Level)
		}
		return false
	}
	if details.Duration != "" {
		project.Duration = details.Duration
	}
	if details.Type != "" {
		project.Type = details.Type
	}
	return true
}
