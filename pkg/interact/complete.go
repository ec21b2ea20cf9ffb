package interact

import (
	"sort"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/tchap/go-patricia/v2/patricia"

	"github.com/proofpilot-dev/proofpilot/internal/utils"
	"github.com/proofpilot-dev/proofpilot/pkg/editbuf"
	"github.com/proofpilot-dev/proofpilot/pkg/wire"
)

// Completion is the matched span on the cursor's line plus the candidate
// identifiers for it. Start and End are byte columns, End being the cursor.
type Completion struct {
	Start      int
	End        int
	Candidates []string
}

// CompleteAt completes the identifier run ending at the cursor.
//
// It deliberately never forces a load: triggering compilation on a
// half-edited, likely ill-typed buffer mid-keystroke is worse than stale
// candidates. No running process is a normal not-yet-available condition,
// not an error: the result is nil with no call attempted.
func (c *Client) CompleteAt(b editbuf.Buffer) (*Completion, error) {
	if !c.disp.Running() {
		return nil, nil
	}
	start, prefix := utils.IdentRunEndingAt(b.CurrentLineText(), b.CursorCol())
	if prefix == "" {
		return nil, nil
	}

	if names, ok := c.index.cached(prefix); ok {
		return c.completion(b, start, names)
	}

	val, err := c.disp.CallSync(wire.NewCommand(wire.TagReplCompletions, wire.StringValue(prefix)))
	if err != nil {
		return nil, err
	}
	names, ok := val.Names()
	if !ok {
		names = nil
	}
	if len(names) == 0 {
		// Fall back to identifiers already observed this session.
		names = c.index.local(prefix, c.limit)
	}
	if len(names) == 0 {
		return nil, nil
	}
	if len(names) > c.limit {
		names = names[:c.limit]
	}
	c.index.remember(prefix, names)
	return c.completion(b, start, names)
}

func (c *Client) completion(b editbuf.Buffer, start int, names []string) (*Completion, error) {
	return &Completion{Start: start, End: b.CursorCol(), Candidates: names}, nil
}

// candidateIndex keeps completion traffic off the compiler where possible:
// a short-TTL cache of per-prefix candidate lists absorbs bursts of
// keystrokes, and a prefix trie accumulates every identifier the compiler
// has mentioned this session as a local fallback.
type candidateIndex struct {
	mu    sync.Mutex
	trie  *patricia.Trie
	cache *ttlcache.Cache[string, []string]
}

func newCandidateIndex(ttl time.Duration) *candidateIndex {
	cache := ttlcache.New[string, []string](
		ttlcache.WithTTL[string, []string](ttl),
		ttlcache.WithDisableTouchOnHit[string, []string](),
	)
	go cache.Start()
	return &candidateIndex{trie: patricia.NewTrie(), cache: cache}
}

func (x *candidateIndex) close() { x.cache.Stop() }

func (x *candidateIndex) cached(prefix string) ([]string, bool) {
	item := x.cache.Get(prefix)
	if item == nil {
		return nil, false
	}
	return item.Value(), true
}

// remember caches the list for its prefix and counts each name into the trie.
func (x *candidateIndex) remember(prefix string, names []string) {
	x.cache.Set(prefix, names, ttlcache.DefaultTTL)
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, name := range names {
		seen := 0
		if item := x.trie.Get(patricia.Prefix(name)); item != nil {
			seen = item.(int)
		}
		x.trie.Set(patricia.Prefix(name), seen+1)
	}
}

// local lists session-seen identifiers under prefix, most-seen first.
func (x *candidateIndex) local(prefix string, limit int) []string {
	type scored struct {
		name string
		seen int
	}
	var hits []scored
	x.mu.Lock()
	x.trie.VisitSubtree(patricia.Prefix(prefix), func(p patricia.Prefix, item patricia.Item) error {
		hits = append(hits, scored{name: string(p), seen: item.(int)})
		return nil
	})
	x.mu.Unlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].seen != hits[j].seen {
			return hits[i].seen > hits[j].seen
		}
		return hits[i].name < hits[j].name
	})
	if len(hits) > limit && limit > 0 {
		hits = hits[:limit]
	}
	names := make([]string, len(hits))
	for i, h := range hits {
		names[i] = h.name
	}
	return names
}
