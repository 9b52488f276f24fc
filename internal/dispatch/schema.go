package dispatch

import (
	"engram/internal/phase"
	"engram/internal/types"
)

// ============================================================================
// SCHEMA ENUMS
// ============================================================================
//
// Advertised enum lists come from the same types slices the handlers parse
// against, so the catalog can never advertise a value a handler rejects.

func domainEnum() []string {
	ds := types.Domains()
	out := make([]string, len(ds))
	for i, d := range ds {
		out[i] = string(d)
	}
	return out
}

func strategyEnum() []string {
	ss := types.Strategies()
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}

func rootCauseEnum() []string {
	cs := types.RootCauseCategories()
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = string(c)
	}
	return out
}

func axisEnum() []string {
	as := types.Axes()
	out := make([]string, len(as))
	for i, a := range as {
		out[i] = string(a)
	}
	return out
}

func outcomeEnum() []string {
	os := types.OutcomeStatuses()
	out := make([]string, len(os))
	for i, o := range os {
		out[i] = string(o)
	}
	return out
}

func taskTypeEnum() []string {
	ts := types.TaskTypes()
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = string(t)
	}
	return out
}

// phaseEnum is the union of both workflows; DONE is shared and appears once.
func phaseEnum() []string {
	var out []string
	seen := make(map[types.Phase]bool)
	for _, tt := range types.TaskTypes() {
		for _, p := range phase.Phases(tt) {
			if seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, string(p))
		}
	}
	return out
}

func reviewTypeEnum() []string {
	ts := types.ReviewTypes()
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = string(t)
	}
	return out
}

func reviewResultEnum() []string {
	rs := types.ReviewResults()
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return out
}

func workerStatusEnum() []string {
	ss := types.WorkerStatuses()
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}

func memoryCategoryEnum() []string {
	cs := types.MemoryCategories()
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = string(c)
	}
	return out
}
