package nlp

// Vocabulary maps tokens to dense positive integer ids. Id 0 is reserved for
// unknown tokens and padding; assigned ids are contiguous from 1 and are
// never reused.
type Vocabulary struct {
	ids  map[string]int
	next int
}

func NewVocabulary() *Vocabulary {
	return &Vocabulary{ids: make(map[string]int), next: 1}
}

// VocabularyFromMap restores a vocabulary from its persisted token→id map.
func VocabularyFromMap(m map[string]int) *Vocabulary {
	v := &Vocabulary{ids: make(map[string]int, len(m)), next: 1}
	for token, id := range m {
		v.ids[token] = id
		if id >= v.next {
			v.next = id + 1
		}
	}
	return v
}

// BaseVocabulary seeds a fresh vocabulary with the domain's core monitoring
// terms so a bootstrapped model has a usable feature space before the first
// training run grows it.
func BaseVocabulary() *Vocabulary {
	baseWords := []string{
		"threat", "danger", "security", "attack", "defense", "system",
		"information", "data", "user", "network", "breach", "access",
		"virus", "vulnerability", "risk", "monitoring", "incident", "event",
		"finance", "money", "economy", "crisis", "bank", "account", "transfer",
		"social", "society", "protest", "rally", "conflict", "tension",
		"extremism", "terrorism", "radical", "weapon", "violence", "aggression",
	}

	v := NewVocabulary()
	for _, w := range baseWords {
		v.Assign(w)
	}
	return v
}

func (v *Vocabulary) Size() int {
	return len(v.ids)
}

// ID returns the id for token, or 0 if the token is unknown.
func (v *Vocabulary) ID(token string) int {
	return v.ids[token]
}

// Assign returns the token's id, allocating the next free id for unseen
// tokens. Only the training path may call this.
func (v *Vocabulary) Assign(token string) int {
	if id, ok := v.ids[token]; ok {
		return id
	}
	id := v.next
	v.ids[token] = id
	v.next++
	return id
}

// Map returns a copy of the token→id mapping for persistence.
func (v *Vocabulary) Map() map[string]int {
	m := make(map[string]int, len(v.ids))
	for token, id := range v.ids {
		m[token] = id
	}
	return m
}

// ToSequence converts tokens to a fixed-length id sequence: the first maxLen
// tokens are looked up (0 for unknown), the rest is right-padded with 0.
// The vocabulary is never mutated.
func (v *Vocabulary) ToSequence(tokens []string, maxLen int) []int {
	return v.sequence(tokens, maxLen, v.ID)
}

// GrowSequence is ToSequence for the training path: unseen tokens get fresh
// ids instead of 0.
func (v *Vocabulary) GrowSequence(tokens []string, maxLen int) []int {
	return v.sequence(tokens, maxLen, v.Assign)
}

func (v *Vocabulary) sequence(tokens []string, maxLen int, lookup func(string) int) []int {
	seq := make([]int, maxLen)
	for i := 0; i < len(tokens) && i < maxLen; i++ {
		seq[i] = lookup(tokens[i])
	}
	return seq
}
