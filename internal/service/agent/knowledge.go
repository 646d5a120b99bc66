package agent

import "strings"

// similarityThreshold is the minimum token-overlap score for a knowledge
// snippet to be served as an answer.
const similarityThreshold = 0.6

// searchKnowledge finds the best-matching active snippet for the utterance.
// Ties are broken by the first entry encountered with the highest score.
func (e *Engine) searchKnowledge(utterance string) (string, bool) {
	lower := strings.ToLower(utterance)

	bestScore := 0.0
	bestAnswer := ""
	found := false

	for _, entry := range e.knowledge.ActiveKnowledge() {
		score := similarity(lower, strings.ToLower(entry.Question))
		if score > similarityThreshold && score > bestScore {
			bestScore = score
			bestAnswer = entry.Answer
			found = true
		}
	}

	return bestAnswer, found
}

// similarity scores token overlap between two lowercased strings: the share
// of words (longer than two characters) in either string contained in a word
// of the other, over the longer word count.
func similarity(a, b string) float64 {
	wordsA := strings.Fields(a)
	wordsB := strings.Fields(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	matches := 0
	for _, wa := range wordsA {
		if len(wa) <= 2 {
			continue
		}
		for _, wb := range wordsB {
			if strings.Contains(wb, wa) || strings.Contains(wa, wb) {
				matches++
				break
			}
		}
	}

	longest := len(wordsA)
	if len(wordsB) > longest {
		longest = len(wordsB)
	}
	return float64(matches) / float64(longest)
}
