package agent

// ActionResult is the outcome of one action executed by the agent.
type ActionResult struct {
	Action           string `json:"action"`
	IsDone           bool   `json:"is_done,omitempty"`
	Success          bool   `json:"success"`
	ExtractedContent string `json:"extracted_content,omitempty"`
	Error            string `json:"error,omitempty"`
}

// StepRecord captures one iteration of the agent loop.
type StepRecord struct {
	Step    int            `json:"step"`
	URL     string         `json:"url,omitempty"`
	Title   string         `json:"title,omitempty"`
	Thought string         `json:"thought,omitempty"`
	Results []ActionResult `json:"results"`
}

// History is the ordered record of an agent run.
type History struct {
	Steps []StepRecord `json:"steps"`
}

// IsDone reports whether the last recorded action finished the task.
func (h *History) IsDone() bool {
	last := h.lastStep()
	if last == nil || len(last.Results) == 0 {
		return false
	}
	return last.Results[len(last.Results)-1].IsDone
}

// FinalResult returns the content of the action that finished the run,
// or "" when the run is not done or produced no text. A step may chain
// several actions before done, so only the last result counts.
func (h *History) FinalResult() string {
	if !h.IsDone() {
		return ""
	}
	last := h.lastStep()
	return last.Results[len(last.Results)-1].ExtractedContent
}

// Errors returns every non-empty action error in step order.
func (h *History) Errors() []string {
	if h == nil {
		return nil
	}
	var out []string
	for _, s := range h.Steps {
		for _, r := range s.Results {
			if r.Error != "" {
				out = append(out, r.Error)
			}
		}
	}
	return out
}

func (h *History) lastStep() *StepRecord {
	if h == nil || len(h.Steps) == 0 {
		return nil
	}
	return &h.Steps[len(h.Steps)-1]
}
