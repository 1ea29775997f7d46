package enrichment

import "github.com/octobees/enrichment-pipeline/internal/entity"

// Group is a maximal run of consecutive steps sharing an execution class.
type Group struct {
	Remote bool
	Steps  []entity.Step
}

// Partition splits steps into groups, coalescing consecutive steps of the same class.
// Group order and step order inside each group follow the input.
func Partition(steps []entity.Step) []Group {
	var groups []Group
	for _, step := range steps {
		remote := step.Remote()
		if n := len(groups); n > 0 && groups[n-1].Remote == remote {
			groups[n-1].Steps = append(groups[n-1].Steps, step)
			continue
		}
		groups = append(groups, Group{Remote: remote, Steps: []entity.Step{step}})
	}
	return groups
}

func countRemote(groups []Group) int {
	n := 0
	for _, g := range groups {
		if g.Remote {
			n++
		}
	}
	return n
}

// declaredOutputs returns the fields a remote group may write back.
func declaredOutputs(steps []entity.Step) map[string]struct{} {
	out := make(map[string]struct{})
	for _, s := range steps {
		if s.Prompt != nil {
			out[s.Prompt.OutputField] = struct{}{}
		}
		if s.Extract != nil {
			for _, f := range s.Extract.Fields {
				out[f] = struct{}{}
			}
		}
	}
	return out
}
