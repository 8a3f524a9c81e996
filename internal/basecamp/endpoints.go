package basecamp

import (
	"fmt"
	"strconv"

	"clubprogress/internal/config"

	"github.com/yosida95/uritemplate/v3"
)

const (
	EndpointOverview       = "overview"
	EndpointProgress       = "progress"
	EndpointProgressDetail = "progress_detail"
	EndpointProfile        = "profile"
)

// Endpoints expands the configured URI templates.
type Endpoints struct {
	overview       *uritemplate.Template
	progress       *uritemplate.Template
	progressDetail *uritemplate.Template
	profile        *uritemplate.Template
}

func NewEndpoints(cfg config.Endpoints) (Endpoints, error) {
	var e Endpoints
	templates := []struct {
		name string
		raw  string
		out  **uritemplate.Template
	}{
		{EndpointOverview, cfg.Overview, &e.overview},
		{EndpointProgress, cfg.Progress, &e.progress},
		{EndpointProgressDetail, cfg.ProgressDetail, &e.progressDetail},
		{EndpointProfile, cfg.Profile, &e.profile},
	}
	for _, t := range templates {
		tmpl, err := uritemplate.New(t.raw)
		if err != nil {
			return Endpoints{}, fmt.Errorf("endpoint %s: %w", t.name, err)
		}
		*t.out = tmpl
	}
	return e, nil
}

func expand(tmpl *uritemplate.Template, pairs ...string) string {
	values := uritemplate.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		values.Set(pairs[i], uritemplate.String(pairs[i+1]))
	}
	// expansion only fails on values of the wrong kind, every value here is a string
	out, _ := tmpl.Expand(values)
	return out
}

func (e Endpoints) Overview(clubId string, page int) string {
	return expand(e.overview, "club_id", clubId, "page", strconv.Itoa(page))
}

func (e Endpoints) Progress(clubId string, page int) string {
	return expand(e.progress, "club_id", clubId, "page", strconv.Itoa(page))
}

func (e Endpoints) ProgressDetail(courseId, username string) string {
	return expand(e.progressDetail, "course_id", courseId, "username", username)
}

func (e Endpoints) Profile(userId string) string {
	return expand(e.profile, "user_id", userId)
}

// Named is an endpoint name paired with the URL of its first page.
type Named struct {
	Name string
	Url  string
}

// Primary lists the endpoints every run needs in full, in a fixed order.
func (e Endpoints) Primary(clubId string) []Named {
	return []Named{
		{Name: EndpointOverview, Url: e.Overview(clubId, 1)},
		{Name: EndpointProgress, Url: e.Progress(clubId, 1)},
	}
}
