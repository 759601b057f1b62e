package datamodel

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ParallelModel turns a total flop count and a core count into the
// sequential and perfectly-parallel shares of work a Compute action must
// run, per the classic Amdahl-style decomposition.
type ParallelModel interface {
	// Split returns the flop count that must run on a single core
	// (seq) and the flop count available to split evenly across cores
	// (perThread is the per-core share of that parallel portion).
	Split(flops float64, cores int) (seq, perThread float64)
}

// amdahlModel implements Amdahl's law: alpha is the strictly sequential
// fraction of the work.
type amdahlModel struct {
	alpha float64
}

// Amdahl builds a ParallelModel where alpha is the fraction of flops that
// cannot be parallelized.
func Amdahl(alpha float64) ParallelModel {
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	return &amdahlModel{alpha: alpha}
}

func (m *amdahlModel) Split(flops float64, cores int) (seq, perThread float64) {
	if cores < 1 {
		cores = 1
	}
	seq = flops * m.alpha
	parallel := flops - seq
	return seq, parallel / float64(cores)
}

// constantEfficiencyModel scales the parallel share by a fixed efficiency
// factor e ∈ (0, 1], modelling constant per-core overhead rather than a
// fixed sequential remainder.
type constantEfficiencyModel struct {
	efficiency float64
}

// ConstantEfficiency builds a ParallelModel where adding cores always
// delivers efficiency (0 < e <= 1) of ideal speedup.
func ConstantEfficiency(e float64) ParallelModel {
	if e <= 0 {
		e = 1
	}
	if e > 1 {
		e = 1
	}
	return &constantEfficiencyModel{efficiency: e}
}

func (m *constantEfficiencyModel) Split(flops float64, cores int) (seq, perThread float64) {
	if cores < 1 {
		cores = 1
	}
	return 0, flops / (float64(cores) * m.efficiency)
}

// customModel evaluates two compiled expr-lang/expr programs against an
// environment of {flops float64, cores int} — compiled once at
// construction, evaluated on every Split call. Grounded on mbflow's
// compile-once/evaluate-many condition-cache pattern for hot-path
// expression evaluation.
type customModel struct {
	seqProgram  *vm.Program
	parProgram  *vm.Program
	seqExpr     string
	perThread   string
}

type modelEnv struct {
	Flops float64 `expr:"flops"`
	Cores int     `expr:"cores"`
}

// Custom builds a ParallelModel whose seq and per-thread shares are
// computed by user-supplied expressions over `flops` and `cores`.
func Custom(seqExpr, perThreadExpr string) (ParallelModel, error) {
	seqProg, err := expr.Compile(seqExpr, expr.Env(modelEnv{}), expr.AsFloat64())
	if err != nil {
		return nil, fmt.Errorf("datamodel: compiling seq expression %q: %w", seqExpr, err)
	}
	parProg, err := expr.Compile(perThreadExpr, expr.Env(modelEnv{}), expr.AsFloat64())
	if err != nil {
		return nil, fmt.Errorf("datamodel: compiling per-thread expression %q: %w", perThreadExpr, err)
	}
	return &customModel{
		seqProgram: seqProg,
		parProgram: parProg,
		seqExpr:    seqExpr,
		perThread:  perThreadExpr,
	}, nil
}

func (m *customModel) Split(flops float64, cores int) (seq, perThread float64) {
	env := modelEnv{Flops: flops, Cores: cores}

	seqOut, err := expr.Run(m.seqProgram, env)
	if err != nil {
		return 0, 0
	}
	parOut, err := expr.Run(m.parProgram, env)
	if err != nil {
		return 0, 0
	}

	seq, _ = seqOut.(float64)
	perThread, _ = parOut.(float64)
	return seq, perThread
}
