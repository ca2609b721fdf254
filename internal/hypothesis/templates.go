package hypothesis

import (
	"math/rand"
	"strings"
)

// Objective classes and their canned hypothesis templates.
const (
	classOptimization = "optimization"
	classDiscovery    = "discovery"
	classAlgorithm    = "algorithm"
)

var hypothesisTemplates = map[string][]string{
	classOptimization: {
		"What if we modify {algorithm} by {modification} to improve {metric}?",
		"Can we combine {approach1} with {approach2} to achieve better {outcome}?",
		"Would {technique} reduce the complexity of {process}?",
	},
	classDiscovery: {
		"Is there a pattern in {data} that correlates with {property}?",
		"Can we find a {relationship} between {variable1} and {variable2}?",
		"What emerges when we apply {method} to {problem}?",
	},
	classAlgorithm: {
		"Can we design an algorithm that {goal} in O({complexity}) time?",
		"What if we use {datastructure} to solve {problem} more efficiently?",
		"Is there a {approach} solution to {challenge}?",
	},
}

var codeSketches = map[string]string{
	classOptimization: `def optimized_solution(data):
    result = []
    for item in data:
        result.append(process(item))
    return result`,
	classDiscovery: `def find_pattern(data):
    patterns = {}
    for i, item in enumerate(data):
        key = extract_feature(item)
        patterns[key] = patterns.get(key, 0) + 1
    return patterns`,
	classAlgorithm: `def new_algorithm(input_data):
    state = initialize_state(input_data)
    while not is_complete(state):
        state = update_state(state)
    return extract_result(state)`,
}

// classifyObjective buckets an objective by keyword. Optimization wins over
// discovery when both match; anything else is treated as algorithm design.
func classifyObjective(objective string) string {
	lower := strings.ToLower(objective)
	for _, word := range []string{"optimize", "improve", "efficient"} {
		if strings.Contains(lower, word) {
			return classOptimization
		}
	}
	for _, word := range []string{"find", "discover", "pattern"} {
		if strings.Contains(lower, word) {
			return classDiscovery
		}
	}
	return classAlgorithm
}

// Placeholder vocabularies for template filling.
var placeholderChoices = map[string][]string{
	"{algorithm}":    {"algorithm", "method", "approach"},
	"{modification}": {"parallelization", "caching", "optimization"},
	"{metric}":       {"speed", "accuracy", "memory usage"},
	"{approach1}":    {"iterative", "recursive", "dynamic"},
	"{approach2}":    {"greedy", "divide-conquer", "memoization"},
	"{outcome}":      {"performance", "results", "efficiency"},
}

// fillTemplate substitutes known placeholders with randomly chosen terms.
// Unknown placeholders are left alone.
func fillTemplate(template string, rng *rand.Rand) string {
	filled := template
	for placeholder, choices := range placeholderChoices {
		if strings.Contains(filled, placeholder) {
			filled = strings.ReplaceAll(filled, placeholder, choices[rng.Intn(len(choices))])
		}
	}
	return filled
}
