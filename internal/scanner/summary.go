package scanner

import (
	"sort"
	"strings"

	"github.com/yairfalse/ephemera/pkg/resource"
)

// Summary is a quick inventory of preview environment objects.
type Summary struct {
	TotalContainers   int   `json:"total_containers"`
	RunningContainers int   `json:"running_containers"`
	Volumes           int   `json:"total_volumes"`
	Networks          int   `json:"total_networks"`
	UniquePRs         int   `json:"unique_prs"`
	PRNumbers         []int `json:"pr_numbers"`
}

// Summarize counts a scan. A container is running when its status
// contains "Up", the runtime's wording for started containers.
func Summarize(scan resource.ScanResult) Summary {
	s := Summary{
		TotalContainers: len(scan.Containers),
		Volumes:         len(scan.Volumes),
		Networks:        len(scan.Networks),
	}

	prs := make(map[int]struct{})
	for _, kind := range resource.Kinds {
		for _, r := range scan.ByKind(kind) {
			if kind == resource.KindContainer && strings.Contains(r.Status, "Up") {
				s.RunningContainers++
			}
			if pr, ok := r.PRNumber(); ok {
				prs[pr] = struct{}{}
			}
		}
	}

	s.PRNumbers = make([]int, 0, len(prs))
	for pr := range prs {
		s.PRNumbers = append(s.PRNumbers, pr)
	}
	sort.Ints(s.PRNumbers)
	s.UniquePRs = len(s.PRNumbers)
	return s
}
