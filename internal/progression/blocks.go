package progression

// Blocks is the course outline of a progress detail payload: chapters (levels) that
// hold sequentials (projects).
type Blocks struct {
	DisplayName string  `json:"display_name"`
	Children    []Block `json:"children"`
}

type Block struct {
	Type            string  `json:"type"`
	DisplayName     string  `json:"display_name"`
	Complete        bool    `json:"complete"`
	BlockLibType    string  `json:"block_lib_type"`
	MinReqElectives int     `json:"min_req_electives"`
	Children        []Block `json:"children"`
}

const (
	blockChapter    = "chapter"
	blockSequential = "sequential"
	blockElective   = "elective"
)

// PathwayName is the outline's display name, "Unknown" when the payload has none.
func (b Blocks) PathwayName() string {
	if b.DisplayName == "" {
		return "Unknown"
	}
	return b.DisplayName
}

// Empty reports whether the payload carried no outline at all.
func (b Blocks) Empty() bool {
	return b.DisplayName == "" && len(b.Children) == 0
}
