package cluster

import (
	"sort"
	"strings"
)

const (
	// put on every resource this worker applies and every namespace it creates.
	LabelManagedBy = "kubeplayground/managed-by"

	// value of LabelManagedBy.
	ManagerName = "validation-worker"

	// put on isolation-scope namespaces. value: "scope".
	LabelScope = "kubeplayground/scope"

	ScopeMark = "scope"
)

// LabelSelector for equality-based resource queries.
type LabelSelector map[string]string

// convert to string value in form of query string.
//
// keys are sorted, so the same selector always yields the same string.
func (ls LabelSelector) QueryString() string {
	if len(ls) == 0 {
		return ""
	}

	keys := make([]string, 0, len(ls))
	for k := range ls {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b := &strings.Builder{}
	for _, k := range keys {
		if b.Len() != 0 {
			b.WriteRune(',')
		}
		b.WriteString(k)
		b.WriteRune('=')
		b.WriteString(ls[k])
	}
	return b.String()
}

// ManagedSelector matches every resource applied by this worker.
func ManagedSelector() LabelSelector {
	return LabelSelector{LabelManagedBy: ManagerName}
}

// ScopeSelector matches every isolation-scope namespace created by this worker.
func ScopeSelector() LabelSelector {
	return LabelSelector{
		LabelManagedBy: ManagerName,
		LabelScope:     ScopeMark,
	}
}
