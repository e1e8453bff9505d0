package quality

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strings"
	"sync"

	"github.com/agext/levenshtein"
	lru "github.com/hashicorp/golang-lru/v2"
)

type dupKind int

const (
	dupNone dupKind = iota
	dupSimilar
	dupNear
	dupExact
)

// maxFingerprints bounds the dedup memory; the oldest fingerprints age out
// first, so duplicate detection is strongest against recent content.
const maxFingerprints = 4096

// shortTextLimit is the size under which edit distance is cheap enough to
// refine the token-set similarity estimate.
const shortTextLimit = 500

type fingerprint struct {
	tokens map[string]struct{}
	text   string // kept only for short content
}

// dedupIndex tracks normalized hashes and token fingerprints of previously
// accepted content. Safe for concurrent use.
type dedupIndex struct {
	mu        sync.Mutex
	threshold float64
	hashes    *lru.Cache[string, struct{}]
	prints    *lru.Cache[string, fingerprint]
}

func newDedupIndex(threshold float64) *dedupIndex {
	hashes, _ := lru.New[string, struct{}](maxFingerprints)
	prints, _ := lru.New[string, fingerprint](maxFingerprints)
	return &dedupIndex{
		threshold: threshold,
		hashes:    hashes,
		prints:    prints,
	}
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// normalizedHash hashes the lowercased, whitespace-collapsed content so that
// trivial formatting differences do not defeat exact-duplicate detection.
func normalizedHash(content string) string {
	normalized := whitespaceRun.ReplaceAllString(strings.ToLower(content), " ")
	sum := md5.Sum([]byte(strings.TrimSpace(normalized)))
	return hex.EncodeToString(sum[:])
}

// classify compares content against everything recorded so far.
func (d *dedupIndex) classify(content string) dupKind {
	hash := normalizedHash(content)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.hashes.Contains(hash) {
		return dupExact
	}

	tokens := tokenSet(content)
	if len(tokens) == 0 {
		return dupNone
	}

	best := 0.0
	for _, key := range d.prints.Keys() {
		fp, ok := d.prints.Peek(key)
		if !ok {
			continue
		}
		sim := jaccard(tokens, fp.tokens)
		if fp.text != "" && len(content) <= shortTextLimit {
			if edit := levenshtein.Similarity(content, fp.text, nil); edit > sim {
				sim = edit
			}
		}
		if sim > best {
			best = sim
		}
	}

	switch {
	case best > d.threshold:
		return dupNear
	case best > 0.7:
		return dupSimilar
	}
	return dupNone
}

// record remembers content for future duplicate checks. Callers only record
// content that was not rejected.
func (d *dedupIndex) record(content string) {
	hash := normalizedHash(content)

	fp := fingerprint{tokens: tokenSet(content)}
	if len(content) <= shortTextLimit {
		fp.text = content
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.hashes.Add(hash, struct{}{})
	d.prints.Add(hash, fp)
}

func tokenSet(content string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(content))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".,;:!?\"'()[]{}")
		if len(w) >= 3 {
			set[w] = struct{}{}
		}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	inter := 0
	for w := range small {
		if _, ok := large[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
