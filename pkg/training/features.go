package training

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/cuemby/burrow/pkg/types"
)

// FeatureDim is the length of every model input vector:
//
//	[0..8]  one-hot task type
//	[9]     description length / 2000
//	[10]    word count / 300
//	[11]    complexity keyword hits / 5
//	[12]    estimated files / 50
//	[13]    deadline flag
//	[14]    priority level (P0 1.0, P3 0.0)
//	[15]    dependency fan-out / 10
//	[16]    historical mean of the resource / ceiling
//	[17]    historical std of the resource / ceiling
const FeatureDim = 18

const (
	descLengthScale = 2000.0
	wordCountScale  = 300.0
	complexityScale = 5.0
	fileCountScale  = 50.0
	dependencyScale = 10.0

	// DescriptionLimit caps the description stored with a training record
	DescriptionLimit = 200
)

var complexityKeywords = []string{
	"refactor",
	"architecture",
	"migrate",
	"security",
	"distributed",
	"concurrent",
	"performance",
	"database",
	"integration",
	"multiple",
}

var (
	fileMentionRe = regexp.MustCompile(`(\d+)\s+files?\b`)
	filePathRe    = regexp.MustCompile(`[\w./-]+\.(go|py|js|jsx|ts|tsx|java|rb|rs|c|h|cc|cpp|hpp|cs|kt|swift|md|yaml|yml|json|toml|sql|sh|html|css|proto|tf)\b`)
)

// Ceiling returns the upper bound a resource is normalized against
func Ceiling(resource types.ResourceKind) float64 {
	switch resource {
	case types.ResourceMemory:
		return 8192
	case types.ResourceCPU:
		return 3600
	case types.ResourceTokens:
		return 200000
	case types.ResourceDuration:
		return 3600000
	}
	return 1
}

// ExtractFeatures computes the resource-independent features of a task
func ExtractFeatures(task *types.Task) types.Features {
	desc := strings.ToLower(task.Description)

	oneHot := make([]float64, len(types.TaskTypes))
	oneHot[task.Type.Index()] = 1

	f := types.Features{
		TypeOneHot:    oneHot,
		DescLength:    clamp01(float64(len(task.Description)) / descLengthScale),
		WordCount:     clamp01(float64(len(strings.Fields(task.Description))) / wordCountScale),
		Complexity:    ComplexityScore(desc),
		FileCount:     clamp01(float64(estimateFiles(task, desc)) / fileCountScale),
		PriorityLevel: task.Priority.Level(),
		DependencyFan: clamp01(float64(len(task.Dependencies)) / dependencyScale),
	}
	if task.HasDeadline() {
		f.HasDeadline = 1
	}
	return f
}

// ComplexityScore counts complexity keywords in a lower-cased description,
// scaled into [0,1].
func ComplexityScore(desc string) float64 {
	hits := 0
	for _, kw := range complexityKeywords {
		if strings.Contains(desc, kw) {
			hits++
		}
	}
	return clamp01(float64(hits) / complexityScale)
}

func estimateFiles(task *types.Task, desc string) int {
	if task.EstimatedFiles > 0 {
		return task.EstimatedFiles
	}

	best := 0
	for _, m := range fileMentionRe.FindAllStringSubmatch(desc, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n > best {
			best = n
		}
	}
	if best > 0 {
		return best
	}

	seen := make(map[string]bool)
	for _, path := range filePathRe.FindAllString(desc, -1) {
		seen[path] = true
	}
	return len(seen)
}

// Vector assembles the model input for one resource dimension
func Vector(f types.Features, hist TypeStat, resource types.ResourceKind) []float64 {
	x := make([]float64, 0, FeatureDim)
	oneHot := f.TypeOneHot
	if len(oneHot) != len(types.TaskTypes) {
		oneHot = make([]float64, len(types.TaskTypes))
		oneHot[types.TaskTypeUnknown.Index()] = 1
	}
	x = append(x, oneHot...)

	ceiling := Ceiling(resource)
	x = append(x,
		clamp01(f.DescLength),
		clamp01(f.WordCount),
		clamp01(f.Complexity),
		clamp01(f.FileCount),
		clamp01(f.HasDeadline),
		clamp01(f.PriorityLevel),
		clamp01(f.DependencyFan),
		clamp01(hist.Mean/ceiling),
		clamp01(hist.Std/ceiling),
	)
	return x
}

// TruncateDescription shortens s to DescriptionLimit runes
func TruncateDescription(s string) string {
	if len(s) <= DescriptionLimit {
		return s
	}
	r := []rune(s)
	if len(r) <= DescriptionLimit {
		return s
	}
	return string(r[:DescriptionLimit])
}

func clamp01(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
