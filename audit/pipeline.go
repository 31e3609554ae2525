package audit

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"page-audit/artifact"
	"page-audit/metrics"
)

// Pipeline runs every check once against a target's artifacts.
type Pipeline struct {
	Log     *logrus.Entry
	Checks  []Check
	Metrics *metrics.Recorder
}

// Evaluate returns exactly one result per check, in registration order. A
// check that errors or panics yields an indeterminate result carrying the
// reason; the remaining checks still run.
func (p *Pipeline) Evaluate(m artifact.Map) []Result {
	results := make([]Result, 0, len(p.Checks))
	for _, c := range p.Checks {
		meta, res, err := p.run(c, m)
		if err != nil {
			p.Log.WithField("check", meta.Name).WithError(err).Warn("check could not complete")
			p.Metrics.CheckErrored(meta.Name)
			res = indeterminate(err)
		}
		res.Name = meta.Name
		res.Category = meta.Category
		res.Description = meta.Description
		results = append(results, res)
	}
	return results
}

// run guards both Meta and Audit. A check whose Meta panics is reported under
// its Go type name.
func (p *Pipeline) run(c Check, m artifact.Map) (meta Meta, res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			if meta.Name == "" {
				meta.Name = fmt.Sprintf("%T", c)
			}
			err = fmt.Errorf("check panicked: %v", r)
		}
	}()
	meta = c.Meta()
	res, err = c.Audit(m)
	return meta, res, err
}

// requirements lists, per check, the required artifacts missing from
// collected. An empty map means every check can be fed.
func requirements(checks []Check, collected []string) map[string][]string {
	have := make(map[string]bool, len(collected))
	for _, name := range collected {
		have[name] = true
	}
	missing := make(map[string][]string)
	for _, c := range checks {
		meta := c.Meta()
		for _, req := range meta.RequiredArtifacts {
			if !have[req] {
				missing[meta.Name] = append(missing[meta.Name], req)
			}
		}
	}
	return missing
}
