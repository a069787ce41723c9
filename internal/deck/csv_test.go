package deck

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amarmeena/anki-auto-image-finder/internal/config"
	"github.com/amarmeena/anki-auto-image-finder/internal/domain"
)

func testDeckConfig() config.DeckConfig {
	return config.DeckConfig{
		QuestionField: "Question",
		AnswerField:   "Answer",
		ImageField:    "Image",
		SearchField:   config.SearchFieldAnswer,
	}
}

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deck.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSVSourceRead(t *testing.T) {
	path := writeTempCSV(t, "Question,Answer,Image\ncapital of France?,Paris,\nlargest cat?,Tiger,tiger.jpg\n")
	src := NewCSVSource(path, testDeckConfig())

	notes, err := src.Read(context.Background())

	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "capital of France?", notes[0].Get("Question"))
	assert.Equal(t, "Paris", notes[0].Get("Answer"))
	assert.Equal(t, "", notes[0].Get("Image"))
	assert.Equal(t, "tiger.jpg", notes[1].Get("Image"))
	assert.Equal(t, []string{"Question", "Answer", "Image"}, notes[0].FieldOrder)
}

func TestCSVSourceReadWithoutImageColumn(t *testing.T) {
	path := writeTempCSV(t, "Question,Answer\ncapital of France?,Paris\n")
	src := NewCSVSource(path, testDeckConfig())

	notes, err := src.Read(context.Background())

	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "", notes[0].Get("Image"))
}

func TestCSVSourceReadExtraColumnsPreserved(t *testing.T) {
	path := writeTempCSV(t, "Question,Answer,Hint,Image\nq,a,think feline,\n")
	src := NewCSVSource(path, testDeckConfig())

	notes, err := src.Read(context.Background())

	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "think feline", notes[0].Get("Hint"))
	assert.Equal(t, []string{"Question", "Answer", "Hint", "Image"}, notes[0].FieldOrder)
}

func TestCSVSourceReadMissingRequiredColumn(t *testing.T) {
	path := writeTempCSV(t, "Front,Back\nq,a\n")
	src := NewCSVSource(path, testDeckConfig())

	_, err := src.Read(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Question")
}

func TestCSVSourceReadEmptyFile(t *testing.T) {
	path := writeTempCSV(t, "")
	src := NewCSVSource(path, testDeckConfig())

	_, err := src.Read(context.Background())
	require.Error(t, err)
}

func TestWriteCSVRoundTrip(t *testing.T) {
	note := domain.NewNote("Question", "Answer", "Image")
	note.Set("Question", "largest cat?")
	note.Set("Answer", "Tiger")
	note.Set("Image", "tiger-0.jpg")

	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, WriteCSV(context.Background(), path, []domain.Note{note}, "Image"))

	src := NewCSVSource(path, testDeckConfig())
	notes, err := src.Read(context.Background())

	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, note.Fields, notes[0].Fields)
}

func TestWriteCSVAppendsImageColumn(t *testing.T) {
	// A deck read without an image column keeps that shape until enrichment;
	// writing it back must still produce the image column.
	note := domain.NewNote("Question", "Answer")
	note.Set("Question", "q")
	note.Set("Answer", "a")

	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, WriteCSV(context.Background(), path, []domain.Note{note}, "Image"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Question,Answer,Image\nq,a,\n", string(data))
}

func TestWriteCSVNoNotes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.Error(t, WriteCSV(context.Background(), path, nil, "Image"))
}

func TestNewSourcePicksByExtension(t *testing.T) {
	deck := testDeckConfig()

	src, err := NewSource("deck.csv", deck)
	require.NoError(t, err)
	assert.IsType(t, &CSVSource{}, src)

	src, err = NewSource("Deck.APKG", deck)
	require.NoError(t, err)
	assert.IsType(t, &APKGSource{}, src)

	_, err = NewSource("deck.txt", deck)
	require.Error(t, err)
}
