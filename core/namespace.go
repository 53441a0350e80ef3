package core

// Namespace is the caller-supplied scope map (user, session, agent
// identifiers). It gates strategy eligibility and filters every search and
// persistence operation the pipeline performs.
type Namespace map[string]string

// Covers reports whether every named field is present as a key. An empty
// field list is trivially covered.
func (n Namespace) Covers(fields []string) bool {
	for _, f := range fields {
		if _, ok := n[f]; !ok {
			return false
		}
	}
	return true
}

// Clone returns an independent copy safe for concurrent pipelines.
func (n Namespace) Clone() Namespace {
	out := make(Namespace, len(n))
	for k, v := range n {
		out[k] = v
	}
	return out
}
