package matcher

// Ratio returns the Ratcliff/Obershelp similarity of a and b: twice the number
// of characters in matching blocks divided by the total length. Matching
// blocks are found by taking the longest common substring and recursing on
// the unmatched text to its left and right. Two empty strings score 1.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	return 2 * float64(matchingChars(ra, rb)) / float64(total)
}

func matchingChars(a, b []rune) int {
	i, j, k := longestCommon(a, b)
	if k == 0 {
		return 0
	}
	return k + matchingChars(a[:i], b[:j]) + matchingChars(a[i+k:], b[j+k:])
}

// longestCommon finds the longest common substring of a and b. Ties go to the
// block that starts earliest in a, then earliest in b.
func longestCommon(a, b []rune) (besti, bestj, bestk int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}

	// prev[j+1] is the length of the common run ending at a[i-1], b[j].
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)

	for i := range a {
		for j := range b {
			if a[i] == b[j] {
				k := prev[j] + 1
				cur[j+1] = k
				if k > bestk {
					besti, bestj, bestk = i-k+1, j-k+1, k
				}
			} else {
				cur[j+1] = 0
			}
		}
		prev, cur = cur, prev
	}

	return besti, bestj, bestk
}
