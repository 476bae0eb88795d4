package domain

import "fmt"

const (
	WorkflowPrefix = "workflow:"
	RunPrefix      = "run:"
	RunLogPrefix   = "runlog:"
	RunSeqPrefix   = "runseq:"
	TimelinePrefix = "timeline:"
)

func WorkflowKey(id string) string {
	return fmt.Sprintf("%s%s", WorkflowPrefix, id)
}

func RunKey(runID string) string {
	return fmt.Sprintf("%s%s", RunPrefix, runID)
}

func RunLogPrefixFor(runID string) string {
	return fmt.Sprintf("%s%s:", RunLogPrefix, runID)
}

// RunLogKey keys a single log line; the zero-padded sequence keeps
// lexicographic order equal to append order.
func RunLogKey(runID string, seq uint64) string {
	return fmt.Sprintf("%s%s:%010d", RunLogPrefix, runID, seq)
}

func RunSeqKey(runID string) string {
	return fmt.Sprintf("%s%s", RunSeqPrefix, runID)
}

func TimelineKey(runID string) string {
	return fmt.Sprintf("%s%s", TimelinePrefix, runID)
}
