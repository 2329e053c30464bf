package engine

// SortDocumentTypes orders document type identifiers so that every type a
// rule's validation reads comes before the type its action produces. Used
// by the reporting matrix. Tie-break is the stable original order of
// allTypes; a genuine cycle is broken by skipping already-visited types
// rather than erroring, so the result is always a permutation of allTypes.
func SortDocumentTypes(allTypes []string, rules []*ParsedRule) []string {
	index := map[string]int{}
	for i, t := range allTypes {
		index[t] = i
	}

	// prereqs[t] = types that must precede t.
	prereqs := map[string]map[string]bool{}
	for _, r := range rules {
		target := r.Action.DocType
		if _, known := index[target]; !known {
			continue
		}
		for _, dep := range r.DependsOn {
			if _, known := index[dep]; !known || dep == target {
				continue
			}
			if prereqs[target] == nil {
				prereqs[target] = map[string]bool{}
			}
			prereqs[target][dep] = true
		}
	}

	out := make([]string, 0, len(allTypes))
	placed := map[string]bool{}
	visiting := map[string]bool{}

	var place func(t string)
	place = func(t string) {
		if placed[t] || visiting[t] {
			// Revisit means a cycle; skip and let original order decide.
			return
		}
		visiting[t] = true
		deps := make([]string, 0, len(prereqs[t]))
		for d := range prereqs[t] {
			deps = append(deps, d)
		}
		// Stable original order among prerequisites.
		for i := 0; i < len(deps); i++ {
			for j := i + 1; j < len(deps); j++ {
				if index[deps[j]] < index[deps[i]] {
					deps[i], deps[j] = deps[j], deps[i]
				}
			}
		}
		for _, d := range deps {
			place(d)
		}
		visiting[t] = false
		if !placed[t] {
			placed[t] = true
			out = append(out, t)
		}
	}

	for _, t := range allTypes {
		place(t)
	}
	return out
}
