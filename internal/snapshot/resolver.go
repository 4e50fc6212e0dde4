package snapshot

import (
	"context"

	"github.com/prepforge/mocktest-engine/internal/db"
	"github.com/prepforge/mocktest-engine/internal/pool"
)

// Resolver re-resolves a document's token lists against live pool data,
// ignoring whatever content the cache carries. Used for the no-cache read
// path and for staleness checks against the snapshot.
type Resolver struct {
	Registry *pool.Registry
}

// Resolve returns a copy of doc with every tab's questions resolved fresh.
// One bulk query per pool covers both ids and external keys; an
// external-key match wins over an id match because keys are the more stable
// reference across data migrations. Tokens that resolve to nothing come back
// found=false with empty content, never as an error.
func (r *Resolver) Resolve(ctx context.Context, q db.DBTX, doc Document) (Document, error) {
	type group struct {
		ids     []int64
		keys    []string
		idSeen  map[int64]bool
		keySeen map[string]bool
	}
	groups := map[string]*group{}
	want := func(t Token) {
		g := groups[t.Pool]
		if g == nil {
			g = &group{idSeen: map[int64]bool{}, keySeen: map[string]bool{}}
			groups[t.Pool] = g
		}
		if !g.idSeen[t.ID] {
			g.idSeen[t.ID] = true
			g.ids = append(g.ids, t.ID)
		}
		if t.ExternalKey != "" && !g.keySeen[t.ExternalKey] {
			g.keySeen[t.ExternalKey] = true
			g.keys = append(g.keys, t.ExternalKey)
		}
	}

	parsed := make([][]*Token, len(doc.Tabs))
	for i, tab := range doc.Tabs {
		parsed[i] = make([]*Token, len(tab.MCQs))
		for j, raw := range tab.MCQs {
			t, err := ParseToken(raw)
			if err != nil {
				continue // stays nil: emitted as found=false
			}
			if _, ok := r.Registry.Resolve(t.Pool); !ok {
				continue
			}
			parsed[i][j] = &t
			want(t)
		}
	}

	byID := map[string]map[int64]pool.Content{}
	byKey := map[string]map[string]pool.Content{}
	for name, g := range groups {
		d, _ := r.Registry.Resolve(name)
		contents, err := pool.FetchByIDsOrKeys(ctx, q, d, g.ids, g.keys)
		if err != nil {
			return Document{}, err
		}
		byID[name] = make(map[int64]pool.Content, len(contents))
		byKey[name] = map[string]pool.Content{}
		for _, c := range contents {
			byID[name][c.ID] = c
			if c.ExternalKey != "" {
				byKey[name][c.ExternalKey] = c
			}
		}
	}

	out := doc
	out.Tabs = make([]TabConfig, len(doc.Tabs))
	copy(out.Tabs, doc.Tabs)
	for i := range out.Tabs {
		questions := make([]pool.Content, len(out.Tabs[i].MCQs))
		for j := range out.Tabs[i].MCQs {
			t := parsed[i][j]
			if t == nil {
				questions[j] = pool.Content{Found: false}
				continue
			}
			if c, ok := byKey[t.Pool][t.ExternalKey]; ok && t.ExternalKey != "" {
				questions[j] = c
				continue
			}
			if c, ok := byID[t.Pool][t.ID]; ok {
				questions[j] = c
				continue
			}
			questions[j] = pool.NotFound(t.Pool, t.ID)
		}
		out.Tabs[i].Questions = questions
	}
	return out, nil
}
