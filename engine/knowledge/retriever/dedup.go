package retriever

// MergeContexts flattens per-question retrieval results into one
// duplicate-free sequence, preserving first-seen order across questions.
func MergeContexts(lists [][]string) []string {
	total := 0
	for _, list := range lists {
		total += len(list)
	}
	flat := make([]string, 0, total)
	for _, list := range lists {
		flat = append(flat, list...)
	}
	return DedupeContexts(flat)
}

// DedupeContexts removes exact duplicate context texts while preserving
// first-seen order.
func DedupeContexts(contexts []string) []string {
	if len(contexts) < 2 {
		return contexts
	}
	seen := make(map[string]struct{}, len(contexts))
	out := make([]string, 0, len(contexts))
	for _, text := range contexts {
		if _, ok := seen[text]; ok {
			continue
		}
		seen[text] = struct{}{}
		out = append(out, text)
	}
	return out
}
