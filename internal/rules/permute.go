package rules

// Permutate expands e into every operand order its commutative operators
// allow. Leaves yield themselves; a unary operation yields one result per
// operand permutation; a binary operation yields the cartesian product of
// its operand permutations, each pair followed by its swap when the
// operator is swappable. Identical results are not merged.
func Permutate(e Expr) []Expr {
	op, ok := e.(Operation)
	if !ok {
		return []Expr{e}
	}
	if len(op.Args) == 1 {
		inner := Permutate(op.Args[0])
		out := make([]Expr, 0, len(inner))
		for _, a := range inner {
			out = append(out, Operation{Op: op.Op, Args: []Expr{a}})
		}
		return out
	}

	lhs, rhs := Permutate(op.Args[0]), Permutate(op.Args[1])
	n := len(lhs) * len(rhs)
	if op.Op.Swappable() {
		n *= 2
	}
	out := make([]Expr, 0, n)
	for _, l := range lhs {
		for _, r := range rhs {
			out = append(out, Operation{Op: op.Op, Args: []Expr{l, r}})
			if op.Op.Swappable() {
				out = append(out, Operation{Op: op.Op, Args: []Expr{r, l}})
			}
		}
	}
	return out
}
