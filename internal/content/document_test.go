package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_JSON(t *testing.T) {
	doc := Parse(`{"title":"T","short":"S"}`)
	require.NotNil(t, doc)
	assert.Equal(t, &Document{Title: "T", Short: "S"}, doc)
}

func TestParse_JSONKeepsFieldsAsIs(t *testing.T) {
	doc := Parse(`  {"long":"  padded  ","cta":"Buy","extra":1}  `)
	require.NotNil(t, doc)
	assert.Equal(t, "  padded  ", doc.Long)
	assert.Equal(t, "Buy", doc.CTA)
}

func TestParse_Labeled(t *testing.T) {
	doc := Parse("Заголовок: T\nКоротко: S")
	require.NotNil(t, doc)
	assert.Equal(t, &Document{Title: "T", Short: "S"}, doc)
}

func TestParse_LabeledMultiline(t *testing.T) {
	raw := "Intro text\n" +
		"  заголовок : Big news\r\n" +
		"Развернуто:\n" +
		"First paragraph.\n" +
		"\n" +
		"Second paragraph.\n" +
		"ключевые слова: go, chat\n" +
		"cta:   Subscribe now  \n"

	doc := Parse(raw)
	require.NotNil(t, doc)
	assert.Equal(t, "Big news", doc.Title)
	assert.Equal(t, "", doc.Short)
	assert.Equal(t, "First paragraph.\n\nSecond paragraph.", doc.Long)
	assert.Equal(t, "go, chat", doc.Keywords)
	assert.Equal(t, "Subscribe now", doc.CTA)
}

func TestParse_FirstOccurrenceWins(t *testing.T) {
	doc := Parse("Заголовок: first\nКоротко: s\nЗаголовок: second")
	require.NotNil(t, doc)
	assert.Equal(t, "first", doc.Title)
	assert.Equal(t, "s", doc.Short)
}

func TestParse_LabelMustStartLine(t *testing.T) {
	doc := Parse("Заголовок: T and then Коротко: inline")
	require.NotNil(t, doc)
	assert.Equal(t, "T and then Коротко: inline", doc.Title)
	assert.Empty(t, doc.Short)
}

func TestParse_TruncatedJSONFallsThrough(t *testing.T) {
	doc := Parse(`{"title":"T","short":"S`)
	assert.Nil(t, doc)

	doc = Parse("{\"title\":\"T\"\nКоротко: from label")
	require.NotNil(t, doc)
	assert.Equal(t, "from label", doc.Short)
}

func TestParse_None(t *testing.T) {
	cases := []string{
		"",
		"Just some plain prose without any structure.",
		"{not json}",
		`{"title":""}`,
		`null`,
		"Заголовок:\nКоротко:   ",
	}
	for _, raw := range cases {
		assert.Nil(t, Parse(raw), "input %q", raw)
	}
}

func TestParse_WrongShapeIsNotJSONDocument(t *testing.T) {
	assert.Nil(t, Parse(`["title"]`))
	assert.Nil(t, Parse(`{"title": 5}`))
}

func TestFormat(t *testing.T) {
	doc := &Document{Title: "T", Long: "L1\nL2", CTA: "C"}
	assert.Equal(t, "Заголовок: T\n\nРазвернуто:\nL1\nL2\n\nCTA: C", Format(doc))
	assert.Equal(t, "", Format(nil))
	assert.Equal(t, "", Format(&Document{}))
}

func TestFormatParseRoundTrip(t *testing.T) {
	orig := &Document{
		Title:    "Title",
		Short:    "Short answer.",
		Long:     "Paragraph one.\n\nParagraph two.",
		Keywords: "a, b",
		CTA:      "Go!",
	}
	assert.Equal(t, orig, Parse(Format(orig)))
}

func TestFormatResponse(t *testing.T) {
	assert.Equal(t, "Заголовок: T\n\nКоротко: S", FormatResponse(`{"title":"T","short":"S"}`))
	assert.Equal(t, "plain answer", FormatResponse("plain answer"))
	assert.Equal(t, "{}", FormatResponse("{}"))
}
