package intent

import (
	"fmt"
	"regexp"
	"sort"
	"sync"

	"callqa-server/pkg/errors"
	"callqa-server/pkg/textutil"
)

type compiledEntry struct {
	Entry
	patterns []*regexp.Regexp
}

// Catalog is the compiled, read-only form of the intent, step and context
// tables. It is safe for concurrent use.
type Catalog struct {
	entries  []compiledEntry
	byKey    map[string]int
	steps    map[int]Step
	contexts map[string]Context
}

// NewCatalog compiles and cross-checks the three tables. Any inconsistency is
// reported as errors.ErrCatalogCorrupt.
func NewCatalog(entries []Entry, steps []Step, contexts []Context) (*Catalog, error) {
	c := &Catalog{
		entries:  make([]compiledEntry, 0, len(entries)),
		byKey:    make(map[string]int, len(entries)),
		steps:    make(map[int]Step, len(steps)),
		contexts: make(map[string]Context, len(contexts)),
	}

	for _, s := range steps {
		if s.Number <= 0 {
			return nil, errors.NewCatalogCorrupt(fmt.Sprintf("step %q has number %d", s.Name, s.Number))
		}
		if _, dup := c.steps[s.Number]; dup {
			return nil, errors.NewCatalogCorrupt(fmt.Sprintf("duplicate step %d", s.Number))
		}
		c.steps[s.Number] = s
	}

	for _, e := range entries {
		if e.Key == "" || e.Key == KeyUnknown {
			return nil, errors.NewCatalogCorrupt(fmt.Sprintf("invalid intent key %q", e.Key))
		}
		if _, dup := c.byKey[e.Key]; dup {
			return nil, errors.NewCatalogCorrupt("duplicate intent " + e.Key)
		}
		if len(e.Patterns) == 0 {
			return nil, errors.NewCatalogCorrupt("intent " + e.Key + " has no patterns")
		}
		if e.StepNumber != 0 {
			if _, ok := c.steps[e.StepNumber]; !ok {
				return nil, errors.NewCatalogCorrupt(fmt.Sprintf("intent %s references unknown step %d", e.Key, e.StepNumber))
			}
		}

		ce := compiledEntry{Entry: e, patterns: make([]*regexp.Regexp, 0, len(e.Patterns))}
		for i, expr := range e.Patterns {
			re, err := textutil.WordPattern(expr)
			if err != nil {
				return nil, errors.Wrap(errors.ErrCatalogCorrupt, err.Error(), map[string]interface{}{
					"intent":  e.Key,
					"pattern": i,
				}).WithCode("CATALOG_CORRUPT")
			}
			ce.patterns = append(ce.patterns, re)
		}
		c.byKey[e.Key] = len(c.entries)
		c.entries = append(c.entries, ce)
	}

	for _, s := range c.steps {
		if _, ok := c.byKey[s.Intent]; !ok {
			return nil, errors.NewCatalogCorrupt(fmt.Sprintf("step %d references unknown intent %q", s.Number, s.Intent))
		}
	}

	for _, ctx := range contexts {
		all := append(append([]int{}, ctx.RequiredSteps...), ctx.CriticalSteps...)
		for _, steps := range ctx.ConditionalSteps {
			all = append(all, steps...)
		}
		for _, n := range all {
			if _, ok := c.steps[n]; !ok {
				return nil, errors.NewCatalogCorrupt(fmt.Sprintf("context %s references unknown step %d", ctx.Key, n))
			}
		}
		if len(ctx.RequiredSteps) == 0 {
			return nil, errors.NewCatalogCorrupt("context " + ctx.Key + " has no required steps")
		}
		c.contexts[ctx.Key] = ctx
	}

	for _, key := range []string{ContextSuccessful, ContextAlternative, ContextCallback, ContextVoicemail, ContextWrongNumber, ContextFailed} {
		if _, ok := c.contexts[key]; !ok {
			return nil, errors.NewCatalogCorrupt("missing context " + key)
		}
	}

	return c, nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
	defaultErr     error
)

// DefaultCatalog returns the built-in catalog, compiled once per process.
func DefaultCatalog() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = NewCatalog(DefaultEntries(), DefaultSteps(), DefaultContexts())
	})
	return defaultCatalog, defaultErr
}

// Entries returns the catalog entries in evaluation order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Entry
	}
	return out
}

// Steps returns the step table ordered by number.
func (c *Catalog) Steps() []Step {
	out := make([]Step, 0, len(c.steps))
	for _, s := range c.steps {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// Step looks up a step by number.
func (c *Catalog) Step(n int) (Step, bool) {
	s, ok := c.steps[n]
	return s, ok
}

// Context looks up a context by key.
func (c *Catalog) Context(key string) Context {
	return c.contexts[key]
}

// Contexts returns all contexts ordered by key.
func (c *Catalog) Contexts() []Context {
	out := make([]Context, 0, len(c.contexts))
	for _, ctx := range c.contexts {
		out = append(out, ctx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Matches reports whether any pattern of the given intent matches text.
func (c *Catalog) Matches(key, text string) bool {
	i, ok := c.byKey[key]
	if !ok {
		return false
	}
	return textutil.AnyMatch(c.entries[i].patterns, text)
}

// FirstMatchStep returns the step of the first entry, in evaluation order,
// with any pattern matching text. It is 0 when nothing matches or the
// matching entry has no step.
func (c *Catalog) FirstMatchStep(text string) int {
	for _, e := range c.entries {
		if textutil.AnyMatch(e.patterns, text) {
			return e.StepNumber
		}
	}
	return 0
}
