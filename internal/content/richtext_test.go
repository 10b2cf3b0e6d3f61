package content

import (
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsolidate_MergesIdenticalNeighbours(t *testing.T) {
	bold := style{bold: true}
	runs := []notionapi.RichText{
		newRun("foo", bold),
		newRun("bar", bold),
		newRun("baz", style{}),
	}

	out := Consolidate(runs)
	require.Len(t, out, 2)
	assert.Equal(t, "foobar", out[0].Text.Content)
	assert.True(t, out[0].Annotations.Bold)
	assert.Equal(t, "baz", out[1].Text.Content)

	// inputs are not mutated
	assert.Equal(t, "foo", runs[0].Text.Content)
}

func TestConsolidate_DifferentLinksStaySeparate(t *testing.T) {
	out := Consolidate([]notionapi.RichText{
		newRun("a", style{link: "https://a.example"}),
		newRun("b", style{link: "https://b.example"}),
		newRun("c", style{link: "https://b.example"}),
	})
	require.Len(t, out, 2)
	assert.Equal(t, "bc", out[1].Text.Content)
}

func TestConsolidate_NewlineNeverMerges(t *testing.T) {
	out := Consolidate([]notionapi.RichText{
		Text("a"),
		Text("\n"),
		Text("\n"),
		Text("b"),
	})
	require.Len(t, out, 4)
	assert.Equal(t, "\n", out[1].Text.Content)
	assert.Equal(t, "\n", out[2].Text.Content)
}

func TestTrimEdges(t *testing.T) {
	out := TrimEdges([]notionapi.RichText{
		Text("  "),
		Text(" hello"),
		Text(" world  "),
		Text(" "),
	})
	require.Len(t, out, 2)
	assert.Equal(t, "hello", out[0].Text.Content)
	assert.Equal(t, " world", out[1].Text.Content)
}

func TestTrimEdges_KeepsIntentionalNewline(t *testing.T) {
	out := TrimEdges([]notionapi.RichText{Text("line"), Text("\n")})
	require.Len(t, out, 2)
	assert.Equal(t, "\n", out[1].Text.Content)
}

func TestNormalizeLanguage(t *testing.T) {
	assert.Equal(t, "python", NormalizeLanguage("py"))
	assert.Equal(t, "go", NormalizeLanguage("Go"))
	assert.Equal(t, "plain text", NormalizeLanguage("brainfuck"))
	assert.Equal(t, "plain text", NormalizeLanguage(""))
}

func TestMatchColor(t *testing.T) {
	assert.Equal(t, notionapi.Color("gray"), matchColor("DarkGrey", false))
	assert.Equal(t, notionapi.Color("purple_background"), matchColor("purple", true))
	assert.Equal(t, notionapi.Color("default"), matchColor("#ff0000", false))
}
