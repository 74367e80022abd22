package conversation

// Default pruning ceilings.
const (
	defaultMaxMessages = 100
	defaultMaxTokens   = 150000
)

// keepFraction is the share of the ceiling retained after a prune.
const (
	keepNumerator   = 7
	keepDenominator = 10
)

// PruneReason explains why a message sequence needs pruning.
type PruneReason string

const (
	// PruneNone means the sequence is within both ceilings.
	PruneNone PruneReason = "none"
	// PruneMessageLimit means the message count exceeded its ceiling.
	PruneMessageLimit PruneReason = "message_limit"
	// PruneTokenLimit means the estimated token total exceeded its ceiling.
	PruneTokenLimit PruneReason = "token_limit"
)

// Pruner bounds a message sequence by count and estimated token budget.
// Pruning only ever removes an oldest-first prefix: the kept messages are
// a suffix of the input, in original order, unmodified.
type Pruner struct {
	estimator   *TokenEstimator
	maxMessages int
	maxTokens   int
}

// NewPruner creates a pruner with the given ceilings. A nil estimator
// and non-positive ceilings select the defaults.
func NewPruner(estimator *TokenEstimator, maxMessages, maxTokens int) *Pruner {
	if estimator == nil {
		estimator = NewTokenEstimator(0)
	}
	if maxMessages <= 0 {
		maxMessages = defaultMaxMessages
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Pruner{
		estimator:   estimator,
		maxMessages: maxMessages,
		maxTokens:   maxTokens,
	}
}

// Check reports whether messages need pruning and why. The message-count
// ceiling is evaluated first; the token ceiling only when the count is
// within bounds.
func (p *Pruner) Check(messages []Message) (bool, PruneReason) {
	if len(messages) > p.maxMessages {
		return true, PruneMessageLimit
	}
	if p.estimator.EstimateMessages(messages) > p.maxTokens {
		return true, PruneTokenLimit
	}
	return false, PruneNone
}

// Prune returns the bounded suffix of messages. The input is never
// mutated; when no pruning is needed it is returned as-is.
func (p *Pruner) Prune(messages []Message) []Message {
	prune, reason := p.Check(messages)
	if !prune {
		return messages
	}

	if reason == PruneMessageLimit {
		return p.pruneByMessageCount(messages)
	}
	return p.pruneByTokenCount(messages)
}

// pruneByMessageCount keeps the newest 70% of the message ceiling.
func (p *Pruner) pruneByMessageCount(messages []Message) []Message {
	keep := p.maxMessages * keepNumerator / keepDenominator
	if keep >= len(messages) {
		return messages
	}
	return messages[len(messages)-keep:]
}

// pruneByTokenCount keeps the maximal suffix whose cumulative estimate
// stays within 70% of the token ceiling. A non-empty input always yields
// at least the most recent message, even when that message alone exceeds
// the target.
func (p *Pruner) pruneByTokenCount(messages []Message) []Message {
	if len(messages) == 0 {
		return messages
	}

	target := p.maxTokens * keepNumerator / keepDenominator
	tokens := 0
	start := len(messages)

	for i := len(messages) - 1; i >= 0; i-- {
		cost := p.estimator.Estimate(messages[i].Content)
		if tokens+cost > target {
			break
		}
		tokens += cost
		start = i
	}

	if start == len(messages) {
		// Even the newest message exceeds the target; keep it alone.
		start = len(messages) - 1
	}
	return messages[start:]
}
