package jobaction

// FailedJobIDs returns the ids of failed results in result order.
func FailedJobIDs(results []Result) []string {
	var ids []string
	for _, r := range results {
		if !r.OK {
			ids = append(ids, r.JobID)
		}
	}
	return ids
}

// ReconcileSelection computes a caller's selection after a batch finished. atStart is
// the selection the batch was issued from and current is the selection as edited while
// it ran. Failed jobs stay selected for retry, succeeded ones drop out, and edits made
// during the batch win: ids added are kept and ids removed stay removed.
//
// The result lists failures first, then additions, each in their input order.
func ReconcileSelection(atStart, current []string, results []Result) []string {
	startSet := toSet(atStart)
	currentSet := toSet(current)

	next := make([]string, 0, len(current))
	seen := map[string]struct{}{}
	add := func(id string) {
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		next = append(next, id)
	}

	for _, id := range FailedJobIDs(results) {
		_, wasSelected := startSet[id]
		_, stillSelected := currentSet[id]
		if wasSelected && !stillSelected {
			continue
		}
		add(id)
	}
	for _, id := range current {
		if _, wasSelected := startSet[id]; !wasSelected {
			add(id)
		}
	}
	return next
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
