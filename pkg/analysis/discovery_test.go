package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCandidates(t *testing.T) {
	t.Run("clean JSON array", func(t *testing.T) {
		raw := `[{"name":"Acme","website":"acme.com","products":"widgets"},{"name":"Globex","website":"globex.com","products":"gadgets"}]`

		got := ParseCandidates(raw, 5)
		require.Len(t, got, 2)
		assert.Equal(t, "Acme", got[0].Name)
		assert.Equal(t, "globex.com", got[1].Website)
	})

	t.Run("JSON wrapped in prose and code fences", func(t *testing.T) {
		raw := "Here are the competitors you asked for:\n```json\n" +
			`[{"name":"Acme","website":"acme.com"}]` +
			"\n```\nLet me know if you need more."

		got := ParseCandidates(raw, 5)
		require.Len(t, got, 1)
		assert.Equal(t, "Acme", got[0].Name)
	})

	t.Run("caps to n keeping the first n", func(t *testing.T) {
		raw := `[{"name":"A","website":"a.com"},{"name":"B","website":"b.com"},{"name":"C","website":"c.com"}]`

		got := ParseCandidates(raw, 2)
		require.Len(t, got, 2)
		assert.Equal(t, "A", got[0].Name)
		assert.Equal(t, "B", got[1].Name)
	})

	t.Run("drops entries without a website", func(t *testing.T) {
		raw := `[{"name":"NoSite","website":""},{"name":"Acme","website":"acme.com"}]`

		got := ParseCandidates(raw, 5)
		require.Len(t, got, 1)
		assert.Equal(t, "Acme", got[0].Name)
	})

	t.Run("name defaults to website", func(t *testing.T) {
		raw := `[{"website":"acme.com"}]`

		got := ParseCandidates(raw, 5)
		require.Len(t, got, 1)
		assert.Equal(t, "acme.com", got[0].Name)
	})

	t.Run("unparseable reply yields empty", func(t *testing.T) {
		assert.Empty(t, ParseCandidates("I could not find any competitors.", 5))
		assert.Empty(t, ParseCandidates("", 5))
		assert.Empty(t, ParseCandidates("[not json at all", 5))
	})
}

func TestParseURLList(t *testing.T) {
	raw := "Some competitors:\nhttps://a.com\nhttp://b.com\n- not a url\nhttps://c.com\n"

	got := ParseURLList(raw, 2)
	assert.Equal(t, []string{"https://a.com", "http://b.com"}, got)

	got = ParseURLList(raw, 10)
	assert.Len(t, got, 3)
}
