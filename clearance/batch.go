package clearance

import (
	"clearance-chromedp/entity"

	"golang.org/x/sync/errgroup"
)

type Target struct {
	URL      string
	Selector string
	Policy   entity.HijackRequestFunc // nil 不拦截
}

type Result struct {
	URL    string  `json:"url"`
	Params *Params `json:"params,omitempty"`
	Err    error   `json:"-"`
}

// HarvestAll runs one independent session per target, at most limit at a
// time. Results keep the order of targets; a failed target does not stop
// the others.
func (h *Harvester) HarvestAll(targets []Target, limit int) []Result {
	results := make([]Result, len(targets))
	if limit <= 0 {
		limit = 1
	}

	var eg errgroup.Group
	eg.SetLimit(limit)
	for i, t := range targets {
		i, t := i, t
		eg.Go(func() error {
			params, err := h.browse(t.URL, t.Selector, t.Policy)
			results[i] = Result{URL: t.URL, Params: params, Err: err}
			if err != nil {
				h.logger.WithField("url", t.URL).WithError(err).Warn("harvest failed")
			}
			return nil
		})
	}
	_ = eg.Wait()
	return results
}
