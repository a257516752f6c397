// Package compare reports structured differences between replay.Results:
// whether two runs agree, and — when run across every registered rule-set
// version — which versions produce equivalent outcomes for the same
// transaction sequence.
package compare

import (
	"fmt"

	"github.com/brutalist-labs/dtre/hashing"
	"github.com/brutalist-labs/dtre/replay"
	"github.com/brutalist-labs/dtre/rules"
)

// Divergence names the first point at which two Results disagree.
type Divergence struct {
	Index          int64
	TransactionID  string
	SequentialHash string
	ParallelHash   string
}

// ResultComparison is the structured outcome of Compare: a named boolean
// plus, on mismatch, exactly where and how the two results disagree —
// modeled on the teacher's AssertionError (Expected/Actual/context) rather
// than a free-form diff string, so a caller can branch on Equal without
// parsing anything.
type ResultComparison struct {
	Equal             bool
	FinalHashesMatch  bool
	TraceLengthsMatch bool
	Divergence        *Divergence
}

// Compare reports how a and b differ. Two Results are Equal only if their
// FinalHash, Trace.ChainedHash, and every individual transition's ToHash
// agree at every index.
func Compare(a, b replay.Result) ResultComparison {
	cmp := ResultComparison{
		FinalHashesMatch:  a.FinalHash == b.FinalHash,
		TraceLengthsMatch: len(a.Trace.RuleApplications) == len(b.Trace.RuleApplications),
	}

	n := len(a.Trace.RuleApplications)
	if len(b.Trace.RuleApplications) < n {
		n = len(b.Trace.RuleApplications)
	}
	for i := 0; i < n; i++ {
		aApp := a.Trace.RuleApplications[i]
		bApp := b.Trace.RuleApplications[i]
		if aApp.Transition.ToHash != bApp.Transition.ToHash {
			cmp.Divergence = &Divergence{
				Index:          int64(i),
				TransactionID:  aApp.TransactionID,
				SequentialHash: aApp.Transition.ToHash.String(),
				ParallelHash:   bApp.Transition.ToHash.String(),
			}
			break
		}
	}
	if cmp.Divergence == nil && !cmp.TraceLengthsMatch {
		cmp.Divergence = &Divergence{
			Index:          int64(n),
			SequentialHash: fmt.Sprintf("%d applications", len(a.Trace.RuleApplications)),
			ParallelHash:   fmt.Sprintf("%d applications", len(b.Trace.RuleApplications)),
		}
	}

	cmp.Equal = cmp.FinalHashesMatch && cmp.TraceLengthsMatch && cmp.Divergence == nil &&
		a.Trace.ChainedHash == b.Trace.ChainedHash
	return cmp
}

// EquivalenceClass groups every rule-set version whose Result for the
// same transaction sequence produced the same FinalHash — the simplest
// reading of "equivalent outcome": two versions that reached the same
// final state via different transition paths are still one class, since
// FinalHash is the only thing spec.md's impact-analysis consumers can
// observe without re-deriving a full trace diff.
type EquivalenceClass struct {
	FinalHash hashing.Digest
	Versions  []rules.Version
}

// ImpactReport is the result of AnalyzeImpact: every rule-set version
// partitioned into equivalence classes by FinalHash, ordered by first
// occurrence so the report is deterministic across runs.
type ImpactReport struct {
	Classes []EquivalenceClass
}

// AnalyzeImpact partitions results (one per rule-set version, for the
// same transaction sequence) into equivalence classes by FinalHash.
func AnalyzeImpact(results map[rules.Version]replay.Result) ImpactReport {
	versions := make([]rules.Version, 0, len(results))
	for v := range results {
		versions = append(versions, v)
	}
	for i := 1; i < len(versions); i++ {
		for j := i; j > 0 && versions[j].Compare(versions[j-1]) < 0; j-- {
			versions[j], versions[j-1] = versions[j-1], versions[j]
		}
	}

	classIndex := make(map[hashing.Digest]int)
	var report ImpactReport
	for _, v := range versions {
		h := results[v].FinalHash
		idx, ok := classIndex[h]
		if !ok {
			idx = len(report.Classes)
			classIndex[h] = idx
			report.Classes = append(report.Classes, EquivalenceClass{FinalHash: h})
		}
		report.Classes[idx].Versions = append(report.Classes[idx].Versions, v)
	}
	return report
}
