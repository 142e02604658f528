package roadmap

import (
	"strconv"

	"github.com/ashureev/goalmap/internal/domain"
)

// Progress is the (done, total) pair over a step forest.
type Progress struct {
	Done  int
	Total int
}

// String renders progress as "done/total"; an empty forest is "0/0".
func (p Progress) String() string {
	return strconv.Itoa(p.Done) + "/" + strconv.Itoa(p.Total)
}

// CountProgress counts every step at every depth once. A step's own flag is
// all that decides whether it is done: parents do not roll up from children.
// A cycle or a tree deeper than MaxTreeDepth is reported as a
// StructuralError, the same as BuildTree does.
func CountProgress(steps []*domain.Step) (Progress, error) {
	var p Progress
	err := countProgress(steps, 1, make(map[int64]struct{}), &p)
	if err != nil {
		return Progress{}, err
	}
	return p, nil
}

func countProgress(steps []*domain.Step, depth int, onPath map[int64]struct{}, p *Progress) error {
	for _, st := range steps {
		if depth > MaxTreeDepth {
			return &domain.StructuralError{StepID: st.ID, Reason: "tree exceeds maximum depth"}
		}
		if _, seen := onPath[st.ID]; seen {
			return &domain.StructuralError{StepID: st.ID, Reason: "cycle in step tree"}
		}
		p.Total++
		if st.IsDone {
			p.Done++
		}
		if len(st.Children) > 0 {
			onPath[st.ID] = struct{}{}
			err := countProgress(st.Children, depth+1, onPath, p)
			delete(onPath, st.ID)
			if err != nil {
				return err
			}
		}
	}
	return nil
}
