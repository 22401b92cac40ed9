// Package pipeline implements the executor (C8): a small stage DAG with
// acyclicity validation, bounded fan-out over per-item work, cooperative
// cancellation, and a non-blocking progress channel. Grounded on the
// worker-pool shape of internal/indexing/pipeline_processor.go (per-task
// panic recovery, back-pressured result delivery) and the sharded,
// time-gated counters of internal/indexing/pipeline_progress.go, with the
// teacher's ad-hoc channel bookkeeping replaced by sourcegraph/conc for
// panic-safe fan-out.
package pipeline

import "fmt"

// StageID names one stage in the DAG.
type StageID string

// StageDef declares one stage and the stages it depends on. Dependencies
// must all appear earlier in the plan once sorted; a stage with no
// dependencies may run first.
type StageDef struct {
	ID        StageID
	DependsOn []StageID
}

// TopoSort orders stages so every dependency precedes its dependents,
// failing if the declared dependencies form a cycle or name a stage not
// present in the plan. Ties are broken by the stage's position in the
// input slice, so the result is deterministic for a fixed plan.
func TopoSort(stages []StageDef) ([]StageID, error) {
	index := make(map[StageID]int, len(stages))
	for i, s := range stages {
		if _, dup := index[s.ID]; dup {
			return nil, fmt.Errorf("pipeline: duplicate stage %q", s.ID)
		}
		index[s.ID] = i
	}
	for _, s := range stages {
		for _, dep := range s.DependsOn {
			if _, ok := index[dep]; !ok {
				return nil, fmt.Errorf("pipeline: stage %q depends on unknown stage %q", s.ID, dep)
			}
		}
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]int, len(stages))
	order := make([]StageID, 0, len(stages))

	var visit func(i int) error
	visit = func(i int) error {
		switch color[i] {
		case black:
			return nil
		case gray:
			return fmt.Errorf("pipeline: cycle detected at stage %q", stages[i].ID)
		}
		color[i] = gray
		for _, dep := range stages[i].DependsOn {
			if err := visit(index[dep]); err != nil {
				return err
			}
		}
		color[i] = black
		order = append(order, stages[i].ID)
		return nil
	}

	for i := range stages {
		if err := visit(i); err != nil {
			return nil, err
		}
	}
	return order, nil
}
