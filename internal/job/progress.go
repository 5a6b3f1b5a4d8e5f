package job

import (
	"sync"
	"time"
)

// Status is the JSON view of a run served on /v1/status.
type Status struct {
	RunID      string     `json:"run_id"`
	Phase      Phase      `json:"phase,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Units      int        `json:"units"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
	Records    int        `json:"records"`
}

// Progress counts unit outcomes as workers report them.
type Progress struct {
	mu     sync.Mutex
	status Status
}

func newProgress(runID string) *Progress {
	return &Progress{status: Status{RunID: runID}}
}

func (p *Progress) start(phase Phase, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.Phase = phase
	p.status.StartedAt = &at
	p.status.FinishedAt = nil
}

func (p *Progress) finish(at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.FinishedAt = &at
}

func (p *Progress) addUnits(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.Units += n
}

func (p *Progress) unitDone(records int, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.status.Failed++
		return
	}
	p.status.Succeeded++
	p.status.Records += records
}

func (p *Progress) snapshot() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}
