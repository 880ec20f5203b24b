// Package pipeline evaluates one discovered URL through an ordered list of
// decision steps.
//
// Every URL found on a page becomes a model.ResourceDecision that runs
// through the same steps: map it onto the mirror, check it against the
// origin and pattern filters, probe its metadata, check its size and look at
// what is already on disk. A step that finds the URL ineligible marks the
// decision and lets later steps run, because a URL that is not downloaded may
// still be crawled. A step that returns an error aborts the URL altogether.
package pipeline
