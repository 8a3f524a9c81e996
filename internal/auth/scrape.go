package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"clubprogress/internal/model"
	"clubprogress/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

var errNoDashboardClub = errors.New("no dashboard club matches the club name")

// dashboardClubId finds the element tagged with data-club-id whose text is the club
// name.
func dashboardClubId(html, clubName string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}

	var id string
	doc.Find("[data-club-id]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if htmlutil.CleanText(sel) != clubName {
			return true
		}
		id = htmlutil.Attr(sel, "data-club-id")
		return false
	})
	if id == "" {
		return "", errNoDashboardClub
	}
	return id, nil
}

// memberEnrollment reads the enrollment snapshot embedded in the roster page.
func memberEnrollment(html string) ([]model.Enrollment, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	script := doc.Find("script#member-enrollment").First()
	if script.Length() == 0 {
		return nil, errors.New("roster page has no member-enrollment script")
	}

	var out []model.Enrollment
	err = json.Unmarshal([]byte(strings.TrimSpace(script.Text())), &out)
	if err != nil {
		return nil, fmt.Errorf("decode member enrollment: %w", err)
	}
	if out == nil {
		out = []model.Enrollment{}
	}
	return out, nil
}
