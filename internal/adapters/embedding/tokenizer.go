package embedding

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
)

// MaxSequenceLength is the fixed number of token positions per text.
// Longer texts keep their first MaxSequenceLength tokens; shorter ones are
// zero-padded on the right.
const MaxSequenceLength = 100

// OOVToken is the vocabulary entry used for unknown words when present.
const OOVToken = "<OOV>"

// Padding is the reserved token index for empty positions.
const Padding = 0

// punctuation is stripped before splitting into words.
const punctuation = "!\"#$%&()*+,-./:;<=>?@[\\]^_`{|}~\t\n\r"

// Tokenizer maps text to fixed-length token index sequences using a
// pre-built vocabulary. It is read-only after construction.
type Tokenizer struct {
	vocab    map[string]int
	oov      int
	maxIndex int
	replacer *strings.Replacer
}

// NewTokenizer builds a tokenizer from a word -> index vocabulary.
// Index 0 is reserved for padding and must not be assigned to a word.
func NewTokenizer(vocab map[string]int) (*Tokenizer, error) {
	if len(vocab) == 0 {
		return nil, fmt.Errorf("%w: empty vocabulary", ErrLoadModel)
	}
	t := &Tokenizer{vocab: make(map[string]int, len(vocab)), oov: -1}
	for w, idx := range vocab {
		if idx <= Padding {
			return nil, fmt.Errorf("%w: word %q has reserved index %d", ErrLoadModel, w, idx)
		}
		t.vocab[w] = idx
		if idx > t.maxIndex {
			t.maxIndex = idx
		}
	}
	if idx, ok := t.vocab[OOVToken]; ok {
		t.oov = idx
	}

	pairs := make([]string, 0, 2*len(punctuation))
	for _, r := range punctuation {
		pairs = append(pairs, string(r), " ")
	}
	t.replacer = strings.NewReplacer(pairs...)
	return t, nil
}

// LoadTokenizer reads a JSON object of word -> index from path.
func LoadTokenizer(path string) (*Tokenizer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read vocabulary: %w", ErrLoadModel, err)
	}
	var vocab map[string]int
	if err := json.Unmarshal(raw, &vocab); err != nil {
		return nil, fmt.Errorf("%w: decode vocabulary: %w", ErrLoadModel, err)
	}
	return NewTokenizer(vocab)
}

// MaxIndex returns the largest token index in the vocabulary.
func (t *Tokenizer) MaxIndex() int { return t.maxIndex }

// Words lowercases text, strips punctuation and splits on whitespace.
func (t *Tokenizer) Words(text string) []string {
	return strings.Fields(t.replacer.Replace(strings.ToLower(text)))
}

// Tokenize returns exactly MaxSequenceLength token indices for text.
func (t *Tokenizer) Tokenize(text string) []int {
	seq := make([]int, MaxSequenceLength)
	n := 0
	for _, w := range t.Words(text) {
		if n == MaxSequenceLength {
			break
		}
		idx, ok := t.vocab[w]
		if !ok {
			if t.oov < 0 {
				continue
			}
			idx = t.oov
		}
		seq[n] = idx
		n++
	}
	return seq
}
