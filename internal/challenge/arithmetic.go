package challenge

import (
	"math"
	"math/rand"
	"sort"
	"strconv"

	"github.com/dtroode/anonrelay-server/internal/model"
)

// maxGenerateAttempts bounds expression generation before falling back to
// the canonical pair.
const maxGenerateAttempts = 32

// optionCount is the number of multiple-choice answers presented, the
// correct one included.
const optionCount = 4

// Arithmetic is a generated arithmetic challenge: a rendered expression, its
// answer, and the multiple-choice options sorted ascending.
type Arithmetic struct {
	Prompt  string
	Answer  string
	Options []string
}

type op int

const (
	opAdd op = iota
	opSub
	opMul
	opDiv
)

func (o op) String() string {
	switch o {
	case opAdd:
		return "+"
	case opSub:
		return "-"
	case opMul:
		return "*"
	default:
		return "/"
	}
}

// expr is a binary expression tree. A node with no children is an operand.
type expr struct {
	left  *expr
	right *expr
	op    op
	value float64
}

func (e *expr) eval() float64 {
	if e.left == nil {
		return e.value
	}
	l, r := e.left.eval(), e.right.eval()
	switch e.op {
	case opAdd:
		return l + r
	case opSub:
		return l - r
	case opMul:
		return l * r
	default:
		return l / r
	}
}

// render produces the text shown to the user. Non-leaf children are always
// parenthesized so the displayed expression reads exactly as the tree
// evaluates.
func (e *expr) render() string {
	if e.left == nil {
		return strconv.FormatInt(int64(e.value), 10)
	}
	return e.renderChild(e.left) + " " + e.op.String() + " " + e.renderChild(e.right)
}

func (e *expr) renderChild(child *expr) string {
	if child.left == nil {
		return child.render()
	}
	return "(" + child.render() + ")"
}

// tier holds generation parameters per difficulty.
type tier struct {
	minOperands int
	maxOperands int
	maxValue    int
	ops         []op
	bound       float64
}

var tiers = map[model.Difficulty]tier{
	model.DifficultyEasy:    {2, 2, 9, []op{opAdd, opSub}, 100},
	model.DifficultyMedium:  {2, 3, 20, []op{opAdd, opSub, opMul}, 1000},
	model.DifficultyHard:    {3, 4, 50, []op{opAdd, opSub, opMul, opDiv}, 1e4},
	model.DifficultyExtreme: {4, 5, 99, []op{opAdd, opSub, opMul, opDiv}, 1e5},
}

// NewArithmetic generates an arithmetic challenge for the given tier.
// Candidate expressions whose answer is zero, non-finite, or over the tier
// bound are rejected and regenerated; after maxGenerateAttempts the
// canonical fallback pair is used.
func NewArithmetic(d model.Difficulty, rng *rand.Rand) Arithmetic {
	t, ok := tiers[d]
	if !ok {
		t = tiers[model.DifficultyEasy]
	}

	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		operands := t.minOperands + rng.Intn(t.maxOperands-t.minOperands+1)
		root := buildTree(operands, t, rng)

		answer := root.eval()
		if math.IsNaN(answer) || math.IsInf(answer, 0) {
			continue
		}
		answer = roundAnswer(answer)
		if answer == 0 || math.Abs(answer) > t.bound {
			continue
		}

		return Arithmetic{
			Prompt:  root.render(),
			Answer:  formatNumber(answer),
			Options: makeOptions(answer, rng),
		}
	}

	// Generation kept failing: fall back to the canonical pair.
	return Arithmetic{
		Prompt:  "3 + 4",
		Answer:  "7",
		Options: makeOptions(7, rng),
	}
}

func buildTree(operands int, t tier, rng *rand.Rand) *expr {
	if operands == 1 {
		return &expr{value: float64(1 + rng.Intn(t.maxValue))}
	}
	split := 1 + rng.Intn(operands-1)
	return &expr{
		op:    t.ops[rng.Intn(len(t.ops))],
		left:  buildTree(split, t, rng),
		right: buildTree(operands-split, t, rng),
	}
}

// roundAnswer keeps integral answers exact and rounds the rest to two
// decimals.
func roundAnswer(v float64) float64 {
	return math.Round(v*100) / 100
}

func formatNumber(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// makeOptions produces optionCount distinct answers: the correct one plus
// distractors perturbed within a magnitude-scaled window, sorted ascending.
func makeOptions(answer float64, rng *rand.Rand) []string {
	window := math.Max(4, math.Abs(answer)*0.25)
	integral := answer == math.Trunc(answer)

	values := []float64{answer}
	for attempt := 0; len(values) < optionCount; attempt++ {
		var candidate float64
		if attempt < 100 {
			candidate = answer + (rng.Float64()*2-1)*window
		} else {
			// Random perturbation keeps colliding: space distractors out
			// deterministically.
			candidate = answer + float64(len(values))
		}
		if integral {
			candidate = math.Round(candidate)
		} else {
			candidate = roundAnswer(candidate)
		}
		if containsValue(values, candidate) {
			continue
		}
		values = append(values, candidate)
	}

	sort.Float64s(values)

	options := make([]string, len(values))
	for i, v := range values {
		options[i] = formatNumber(v)
	}
	return options
}

func containsValue(values []float64, v float64) bool {
	for _, existing := range values {
		if existing == v {
			return true
		}
	}
	return false
}
