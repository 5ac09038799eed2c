package release

import (
	"encoding/json"
	"strconv"

	"github.com/zhubert/changeset-release/pnpm"
)

// Result is what one run did, exposed to later CI steps as outputs.
type Result struct {
	HasChangesets     bool
	Published         bool
	PublishedPackages []pnpm.Published
	PullRequestNumber int
	PullRequestURL    string
}

// Outputs returns the step outputs for the result.
func (r *Result) Outputs() (map[string]string, error) {
	packages := r.PublishedPackages
	if packages == nil {
		packages = []pnpm.Published{}
	}
	encoded, err := json.Marshal(packages)
	if err != nil {
		return nil, err
	}

	outputs := map[string]string{
		"hasChangesets":     strconv.FormatBool(r.HasChangesets),
		"published":         strconv.FormatBool(r.Published),
		"publishedPackages": string(encoded),
	}
	if r.PullRequestNumber > 0 {
		outputs["pullRequestNumber"] = strconv.Itoa(r.PullRequestNumber)
	}
	return outputs, nil
}
