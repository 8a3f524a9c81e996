package telemetry

import (
	"strings"
	"sync"
)

// Severity of a recorded report.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityBroken
	SeverityCount
)

// Report is a single call captured by Recorder.
type Report struct {
	Severity Severity
	Id       string
	Params   []any
}

// Recorder is an API that keeps every report in memory so tests can assert on what
// a component logged. It is safe for concurrent use.
type Recorder struct {
	mutex   sync.Mutex
	reports []Report
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) add(sev Severity, id string, params []any) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.reports = append(r.reports, Report{Severity: sev, Id: id, Params: params})
}

func (r *Recorder) ReportBroken(id string, params ...any)  { r.add(SeverityBroken, id, params) }
func (r *Recorder) ReportWarning(id string, params ...any) { r.add(SeverityWarning, id, params) }
func (r *Recorder) ReportInfo(msg string, params ...any)   { r.add(SeverityInfo, msg, params) }
func (r *Recorder) ReportDebug(msg string, params ...any)  { r.add(SeverityDebug, msg, params) }
func (r *Recorder) ReportCount(id string, count int64)     { r.add(SeverityCount, id, []any{count}) }

// Reports returns a copy of everything recorded so far.
func (r *Recorder) Reports() []Report {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	out := make([]Report, len(r.reports))
	copy(out, r.reports)
	return out
}

// Find returns the reports of the given severity whose id contains substr.
func (r *Recorder) Find(sev Severity, substr string) []Report {
	var out []Report
	for _, rep := range r.Reports() {
		if rep.Severity == sev && strings.Contains(rep.Id, substr) {
			out = append(out, rep)
		}
	}
	return out
}
