package basecamp

import (
	"bytes"
	"encoding/json"
	"strconv"

	"clubprogress/internal/progression"
)

// FlexString decodes from either a JSON string or number, the platform is not
// consistent about which one it uses for ids.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		err := json.Unmarshal(data, &s)
		if err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	err := json.Unmarshal(data, &n)
	if err != nil {
		return err
	}
	if i, err := n.Int64(); err == nil {
		*f = FlexString(strconv.FormatInt(i, 10))
		return nil
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string {
	return string(f)
}

type User struct {
	Id        FlexString `json:"id"`
	Username  string     `json:"username"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Email     string     `json:"email"`
}

// OverviewResult is one result of the member overview endpoint.
type OverviewResult struct {
	User           User     `json:"user"`
	CompletedPaths []string `json:"completed_paths"`
}

// ProgressResult is one result of the progress endpoint, a member's standing in a
// single pathway.
type ProgressResult struct {
	User        User               `json:"user"`
	PathName    string             `json:"path_name"`
	CourseId    FlexString         `json:"course_id"`
	Progression progression.Levels `json:"progression"`
}

// DetailData is the body of the progress detail endpoint.
type DetailData struct {
	Blocks progression.Blocks `json:"blocks"`
}

type ProfileClub struct {
	Name string     `json:"name"`
	Uuid FlexString `json:"uuid"`
}

// Profile is the body of the profile endpoint.
type Profile struct {
	Clubs []ProfileClub `json:"clubs"`
}
