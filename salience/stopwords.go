package salience

// English stop-words excluded from the statistical stage. Deliberately
// small: over-aggressive lists strip domain terms ("can", "will" appear
// in product names), and the n-gram weighting already drowns out the
// generic remainder.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "had": true,
	"her": true, "was": true, "one": true, "our": true, "out": true,
	"has": true, "have": true, "been": true, "were": true, "they": true,
	"their": true, "them": true, "then": true, "than": true, "that": true,
	"this": true, "these": true, "those": true, "with": true, "will": true,
	"what": true, "when": true, "where": true, "which": true, "while": true,
	"who": true, "whom": true, "why": true, "how": true, "from": true,
	"into": true, "onto": true, "over": true, "under": true, "about": true,
	"after": true, "before": true, "between": true, "through": true,
	"during": true, "above": true, "below": true, "again": true,
	"also": true, "any": true, "because": true, "being": true, "both": true,
	"does": true, "doing": true, "down": true, "each": true, "few": true,
	"further": true, "here": true, "its": true, "itself": true, "just": true,
	"more": true, "most": true, "other": true, "own": true, "same": true,
	"should": true, "some": true, "such": true, "there": true, "too": true,
	"very": true, "would": true, "your": true, "yours": true,
}
