package hypothesis

import (
	"fmt"
	"math/rand"
	"time"
)

// Mutation archetypes applied to a previously successful hypothesis.
type mutationKind struct {
	name     string
	describe func(base string) string
}

var mutationKinds = []mutationKind{
	{"parameter_change", func(base string) string {
		return fmt.Sprintf("Modify parameters in %s", base)
	}},
	{"combination", func(base string) string {
		return fmt.Sprintf("Combine %s with new approach", base)
	}},
	{"extension", func(base string) string {
		return fmt.Sprintf("Extend %s to handle edge cases", base)
	}},
}

// mutate derives one hypothesis from a recent success. The archetype is
// chosen uniformly at random.
func mutate(base Prior, rng *rand.Rand, now time.Time) Hypothesis {
	kind := mutationKinds[rng.Intn(len(mutationKinds))]

	approach := base.Approach
	if approach == "" {
		approach = "previous approach"
	}

	metrics := base.Metrics
	if len(metrics) == 0 {
		metrics = []string{"performance"}
	}

	return Hypothesis{
		Timestamp:       now,
		Source:          SourceMutation,
		Description:     kind.describe(base.Description),
		Approach:        fmt.Sprintf("%s of %s", kind.name, approach),
		CodeSketch:      mutateCode(base.CodeSketch),
		ExpectedOutcome: "Improved upon previous success",
		Metrics:         metrics,
	}
}

func mutateCode(original string) string {
	if original == "" {
		return "# Mutation of previous successful approach"
	}
	return "# Mutated version\n" + original
}
