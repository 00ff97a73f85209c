package badger

import (
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// Stop words to filter out when tokenizing for the keyword index
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true, "we": true, "our": true,
}

// tokenize splits text into words, lowercases, trims punctuation, and removes
// stop words.
func tokenize(text string) []string {
	words := strings.Fields(text)
	filtered := make([]string, 0, len(words))

	for _, word := range words {
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}"))
		if cleaned != "" && !stopWords[cleaned] {
			filtered = append(filtered, cleaned)
		}
	}

	return filtered
}

// termCounts returns the distinct tokens of text and their frequencies.
func termCounts(text string) map[string]int {
	counts := make(map[string]int)
	for _, token := range tokenize(text) {
		counts[token]++
	}
	return counts
}

// posting is one keyword index entry: a document that contains a token.
type posting struct {
	DocID string
	Freq  int
	Order int64 // document insertion time in Unix micros, for stable ranking
}

func marshalPosting(p posting) []byte {
	size := ord.String.Size(p.DocID) + varint.Int.Size(p.Freq) + varint.Int64.Size(p.Order)
	buf := make([]byte, size)
	n := ord.String.Marshal(p.DocID, buf)
	n += varint.Int.Marshal(p.Freq, buf[n:])
	varint.Int64.Marshal(p.Order, buf[n:])
	return buf
}

func unmarshalPosting(data []byte) (posting, error) {
	var (
		p   posting
		err error
		n   int
		m   int
	)
	if p.DocID, n, err = ord.String.Unmarshal(data); err != nil {
		return p, err
	}
	if p.Freq, m, err = varint.Int.Unmarshal(data[n:]); err != nil {
		return p, err
	}
	n += m
	if p.Order, _, err = varint.Int64.Unmarshal(data[n:]); err != nil {
		return p, err
	}
	return p, nil
}

// indexDocument writes keyword postings for a document's text.
func indexDocument(tx *badger.Txn, domain, docID, text string, order int64) error {
	for token, freq := range termCounts(text) {
		key := makeTermKey(domain, token, docID)
		value := marshalPosting(posting{DocID: docID, Freq: freq, Order: order})
		if err := tx.Set(key, value); err != nil {
			return err
		}
	}
	return nil
}

// deindexDocument removes a document's keyword postings. The text must match
// what was indexed.
func deindexDocument(tx *badger.Txn, domain, docID, text string) error {
	for token := range termCounts(text) {
		if err := tx.Delete(makeTermKey(domain, token, docID)); err != nil {
			return err
		}
	}
	return nil
}

// termHit accumulates a document's score across all query tokens.
type termHit struct {
	docID   string
	matched int
	freq    int
	order   int64
}

// searchTerms ranks documents in a domain against the query. Documents
// matching more distinct query tokens rank first, then higher total term
// frequency, then earlier insertion. Returns up to limit document IDs.
// A non-nil keep filters ranked documents before the limit is applied, so
// rejected documents never consume result slots.
func searchTerms(tx *badger.Txn, domain, query string, limit int, keep func(docID string) (bool, error)) ([]string, error) {
	tokens := tokenize(query)
	if len(tokens) == 0 || limit <= 0 {
		return nil, nil
	}

	seen := make(map[string]bool, len(tokens))
	hits := make(map[string]*termHit)

	for _, token := range tokens {
		// A repeated query token counts once.
		if seen[token] {
			continue
		}
		seen[token] = true

		prefix := makeTermPrefix(domain, token)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var p posting
			err := iter.Item().Value(func(val []byte) error {
				var err error
				p, err = unmarshalPosting(val)
				return err
			})
			if err != nil {
				iter.Close()
				return nil, err
			}

			hit, ok := hits[p.DocID]
			if !ok {
				hit = &termHit{docID: p.DocID, order: p.Order}
				hits[p.DocID] = hit
			}
			hit.matched++
			hit.freq += p.Freq
		}
		iter.Close()
	}

	ranked := make([]*termHit, 0, len(hits))
	for _, hit := range hits {
		ranked = append(ranked, hit)
	}
	slices.SortFunc(ranked, func(a, b *termHit) int {
		if a.matched != b.matched {
			return b.matched - a.matched
		}
		if a.freq != b.freq {
			return b.freq - a.freq
		}
		if a.order != b.order {
			if a.order < b.order {
				return -1
			}
			return 1
		}
		return strings.Compare(a.docID, b.docID)
	})

	var ids []string
	for _, hit := range ranked {
		if len(ids) == limit {
			break
		}
		if keep != nil {
			ok, err := keep(hit.docID)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		ids = append(ids, hit.docID)
	}
	return ids, nil
}
