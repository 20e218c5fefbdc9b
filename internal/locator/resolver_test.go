package locator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/gotrs-io/boardcheck/internal/page"
	"github.com/gotrs-io/boardcheck/internal/page/htmlpage"
)

const boardDoc = `<!doctype html>
<html><body>
<header><h1>Web Application</h1></header>
<aside>
  <button type="submit">Web Application <small>Main web platform</small></button>
  <button type="submit">Mobile Application <small>Native mobile app development</small></button>
  <button type="submit">Marketing Campaign <small>Q3 launch</small></button>
</aside>
<main>
  <div class="column" id="todo">
    <h2>To Do</h2>
    <div class="card"><h3>Implement user authentication</h3><span>Feature</span><span>High Priority</span></div>
    <div class="card"><h3>Fix navigation bug</h3><span>Bug</span></div>
  </div>
  <div class="column" id="progress">
    <h2>In Progress</h2>
    <div class="card"><h3>Design system updates</h3><span>Design</span></div>
  </div>
</main>
</body></html>`

func load(t *testing.T, src string) *htmlpage.Page {
	t.Helper()
	p, err := htmlpage.FromHTML(src)
	require.NoError(t, err)
	return p
}

func fastResolver() *Resolver {
	r := NewResolver(40 * time.Millisecond)
	r.Interval = 5 * time.Millisecond
	return r
}

func outerHTML(t *testing.T, l page.Locator) string {
	t.Helper()
	s, err := l.OuterHTML()
	require.NoError(t, err)
	return s
}

func TestSectionResolution(t *testing.T) {
	ctx := context.Background()

	t.Run("button when no link matches", func(t *testing.T) {
		p := load(t, boardDoc)
		res, err := fastResolver().Section(ctx, p, "Mobile Application")
		require.NoError(t, err)
		assert.Equal(t, "button-prefix", res.Strategy)
		text, err := res.Locator.InnerText()
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(text, "Mobile Application"))
	})

	t.Run("link preferred over button", func(t *testing.T) {
		p := load(t, `<nav><a href="/mobile">Mobile Application</a></nav>`+boardDoc)
		res, err := fastResolver().Section(ctx, p, "mobile application")
		require.NoError(t, err)
		assert.Equal(t, "link-prefix", res.Strategy)
	})

	t.Run("text as last resort", func(t *testing.T) {
		p := load(t, `<ul><li>Mobile Application</li></ul>`)
		res, err := fastResolver().Section(ctx, p, "MOBILE APPLICATION")
		require.NoError(t, err)
		assert.Equal(t, "text-exact", res.Strategy)
		assert.Equal(t, "<li>Mobile Application</li>", outerHTML(t, res.Locator))
	})

	t.Run("prefix must end on a word boundary", func(t *testing.T) {
		p := load(t, `<button>Web Applications Hub</button>`)
		_, err := fastResolver().Section(ctx, p, "Web Application")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("not found names category and strategies", func(t *testing.T) {
		p := load(t, boardDoc)
		_, err := fastResolver().Section(ctx, p, "Data Platform")
		var nf *NotFoundError
		require.True(t, errors.As(err, &nf))
		assert.Equal(t, CategorySection, nf.Category)
		assert.Equal(t, "Data Platform", nf.Name)
		assert.Equal(t, []string{"link-prefix", "button-prefix", "text-exact"}, nf.Tried)
		assert.GreaterOrEqual(t, nf.Waited, 40*time.Millisecond)
	})
}

func TestColumnResolution(t *testing.T) {
	ctx := context.Background()

	t.Run("heading container", func(t *testing.T) {
		p := load(t, boardDoc)
		res, err := fastResolver().Column(ctx, p, "In Progress")
		require.NoError(t, err)
		assert.Equal(t, "heading-container", res.Strategy)
		assert.Contains(t, outerHTML(t, res.Locator), `id="progress"`)
	})

	t.Run("heading strategy alone", func(t *testing.T) {
		p := load(t, boardDoc)
		loc := ColumnStrategies()[1].Find(p, "To Do")
		n, err := loc.Count()
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, "<h2>To Do</h2>", outerHTML(t, loc))
	})

	t.Run("region landmark", func(t *testing.T) {
		p := load(t, `<main><section aria-label="Done"><article><h3>App icon design</h3></article></section></main>`)
		res, err := fastResolver().Column(ctx, p, "Done")
		require.NoError(t, err)
		assert.Equal(t, "region", res.Strategy)
	})

	t.Run("missing column never resolves to the page", func(t *testing.T) {
		p := load(t, boardDoc)
		res, err := fastResolver().Column(ctx, p, "Done")
		assert.Nil(t, res)
		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, CategoryColumn, nf.Category)
	})

	t.Run("hidden column is not found", func(t *testing.T) {
		p := load(t, `<div hidden><h2>Done</h2></div>`)
		_, err := fastResolver().Column(ctx, p, "Done")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestCardResolutionIsScopedToColumn(t *testing.T) {
	ctx := context.Background()
	p := load(t, boardDoc)
	r := fastResolver()

	todo, err := r.Column(ctx, p, "To Do")
	require.NoError(t, err)

	for _, task := range []string{"Implement user authentication", "Fix navigation bug"} {
		card, err := r.Card(ctx, todo.Locator, task)
		require.NoError(t, err, task)
		title, err := card.Locator.GetByRole(page.RoleHeading, page.RoleQuery{Level: 3}).First().InnerText()
		require.NoError(t, err)
		assert.Equal(t, task, title)
	}

	_, err = r.Card(ctx, todo.Locator, "Design system updates")
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, CategoryCard, nf.Category)
}

func TestResolveHonorsContext(t *testing.T) {
	p := load(t, boardDoc)
	r := NewResolver(time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := r.Column(ctx, p, "Nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Less(t, time.Since(start), time.Second)
}

func TestResolveStopsAtDeadline(t *testing.T) {
	p := load(t, boardDoc)
	r := NewResolver(time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := r.Column(ctx, p, "Nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStrategiesFor(t *testing.T) {
	assert.Len(t, StrategiesFor(CategorySection), 3)
	assert.Len(t, StrategiesFor(CategoryColumn), 3)
	assert.Len(t, StrategiesFor(CategoryCard), 1)
	assert.Nil(t, StrategiesFor("tag"))
}

func testWholeWordPrefix(t *rapid.T) {
	name := rapid.StringMatching(`[A-Za-z][A-Za-z0-9 .+()?*]{0,20}[A-Za-z0-9]`).Draw(t, "name")
	suffix := rapid.StringMatching(`[a-z]{1,8}`).Draw(t, "suffix")
	re := WholeWordPrefix(name)

	if !re.MatchString(name) {
		t.Fatalf("%q should match itself", name)
	}
	if !re.MatchString(strings.ToUpper(name) + " " + suffix) {
		t.Fatalf("%q should match with a trailing subtitle, ignoring case", name)
	}
	if re.MatchString(name + suffix) {
		t.Fatalf("%q must not match a longer word %q", name, name+suffix)
	}
	if re.MatchString("- " + name) {
		t.Fatalf("%q must only match as a prefix", name)
	}
}

func TestWholeWordPrefixProperties(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testWholeWordPrefix)
}

func testExactFold(t *rapid.T) {
	name := rapid.StringMatching(`[A-Za-z][A-Za-z0-9 .+]{0,20}`).Draw(t, "name")
	re := ExactFold(name)

	if !re.MatchString("  " + strings.ToLower(name) + "\n") {
		t.Fatalf("%q should match padded lower-case form", name)
	}
	if re.MatchString(name + "!") {
		t.Fatalf("%q must not match extra text", name)
	}
}

func TestExactFoldProperties(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testExactFold)
}
