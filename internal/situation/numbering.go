package situation

// NextStatementNumber returns 1 + the highest existing number, or 1 when the
// site has no statement yet. Callers must pass the list read at composition
// time; persistence still enforces uniqueness of (site, number).
func NextStatementNumber(existing []int) int {
	highest := 0
	for _, n := range existing {
		if n > highest {
			highest = n
		}
	}
	return highest + 1
}
