package trainer

import (
	"strings"
	"unicode"
)

// Vectorizer turns (callsign, origin) pairs into sparse feature vectors:
// a term-frequency representation of the callsign text combined with a
// one-hot encoding of the origin airport code.
//
// The vocabulary and the origin category universe are frozen on the first
// Fit. Later batches reuse them, so callsign tokens and origin codes never
// seen during the first fit degrade to an empty contribution instead of
// erroring or shifting feature indices.
type Vectorizer struct {
	vocab   map[string]int
	origins map[string]int
	fitted  bool
}

// NewVectorizer creates an unfitted vectorizer
func NewVectorizer() *Vectorizer {
	return &Vectorizer{
		vocab:   make(map[string]int),
		origins: make(map[string]int),
	}
}

// Fitted reports whether the vocabulary has been established
func (v *Vectorizer) Fitted() bool {
	return v.fitted
}

// Dim returns the total feature dimension (callsign vocabulary plus
// origin categories)
func (v *Vectorizer) Dim() int {
	return len(v.vocab) + len(v.origins)
}

// Fit establishes the callsign vocabulary and the origin category
// universe from the given samples, then freezes both. Calling Fit on an
// already fitted vectorizer is a no-op.
func (v *Vectorizer) Fit(callsigns, origins []string) {
	if v.fitted {
		return
	}
	for _, cs := range callsigns {
		for _, tok := range tokenize(cs) {
			if _, ok := v.vocab[tok]; !ok {
				v.vocab[tok] = len(v.vocab)
			}
		}
	}
	for _, origin := range origins {
		if origin == "" {
			continue
		}
		if _, ok := v.origins[origin]; !ok {
			v.origins[origin] = len(v.origins)
		}
	}
	v.fitted = true
}

// Transform produces the sparse feature vector for one sample. Unknown
// tokens and unknown origin codes are ignored.
func (v *Vectorizer) Transform(callsign, origin string) map[int]float64 {
	features := make(map[int]float64)
	for _, tok := range tokenize(callsign) {
		if idx, ok := v.vocab[tok]; ok {
			features[idx]++
		}
	}
	if idx, ok := v.origins[origin]; ok {
		features[len(v.vocab)+idx] = 1
	}
	return features
}

// clone returns an independent copy, used when publishing a serving snapshot
func (v *Vectorizer) clone() *Vectorizer {
	c := &Vectorizer{
		vocab:   make(map[string]int, len(v.vocab)),
		origins: make(map[string]int, len(v.origins)),
		fitted:  v.fitted,
	}
	for k, i := range v.vocab {
		c.vocab[k] = i
	}
	for k, i := range v.origins {
		c.origins[k] = i
	}
	return c
}

// tokenize lowercases the text and splits it into alphanumeric runs of at
// least two characters
func tokenize(text string) []string {
	lower := strings.ToLower(text)
	var tokens []string
	start := -1
	for i, r := range lower {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			if tok := lower[start:i]; len(tok) >= 2 {
				tokens = append(tokens, tok)
			}
			start = -1
		}
	}
	if start >= 0 {
		if tok := lower[start:]; len(tok) >= 2 {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}
