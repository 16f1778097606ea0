package pipeline

import (
	"time"

	"github.com/use-agent/fundscrape/export"
	"github.com/use-agent/fundscrape/models"
	"github.com/use-agent/fundscrape/webhook"
)

// RunSummary is the webhook payload body.
type RunSummary struct {
	RunDate   string          `json:"run_date"`
	Stats     models.RunStats `json:"stats"`
	Outputs   export.Outputs  `json:"outputs"`
	Failed    []string        `json:"failed_urls,omitempty"`
	Published []string        `json:"published,omitempty"`
	Error     string          `json:"error,omitempty"`
	Code      string          `json:"code,omitempty"`
}

// Event builds the completion event for a run. res may be nil when the
// run aborted before producing anything.
func Event(meta models.RunMeta, res *Result, runErr error) *webhook.Event {
	sum := RunSummary{RunDate: meta.RunDate}
	if res != nil {
		sum.Stats = res.Stats
		sum.Outputs = res.Outputs
		sum.Failed = res.Failed
		sum.Published = res.Published
	}
	typ := webhook.EventRunCompleted
	if runErr != nil {
		typ = webhook.EventRunFailed
		sum.Error = runErr.Error()
		sum.Code = models.CodeOf(runErr)
	}
	return &webhook.Event{
		Type:      typ,
		RunID:     meta.RunID,
		Timestamp: time.Now().Unix(),
		Data:      sum,
	}
}
