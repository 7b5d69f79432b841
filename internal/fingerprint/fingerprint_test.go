package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mangashelf/pkg/models"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  Solo Leveling! ", "sololeveling"},
		{"Re:Zero - Season 2", "rezeroseason2"},
		{"Ünïcode Ōnly", "ncodenly"},
		{"", ""},
		{"---", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func TestFingerprint_TitleOnlyForStructuredImports(t *testing.T) {
	e := models.Entry{Title: "One Piece", Description: "pirates", DataType: models.DataTypeJSON}
	assert.Equal(t, "onepiece", Fingerprint(e))

	e.DataType = models.DataTypeLib
	assert.Equal(t, "onepiece", Fingerprint(e))
}

func TestFingerprint_MarkdownIncludesDescription(t *testing.T) {
	e := models.Entry{Title: "Notes", Description: "First Draft.", DataType: "MD"}
	assert.Equal(t, "notes::firstdraft", Fingerprint(e))

	other := e
	other.Description = "Second draft"
	assert.NotEqual(t, Fingerprint(e), Fingerprint(other))
}

func TestFingerprint_AltTitleOrderIndependent(t *testing.T) {
	a := models.Entry{Title: "Foo", AlternativeTitles: []string{"B", "A"}}
	b := models.Entry{Title: "Foo", AlternativeTitles: []string{"A", "B"}}

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
	assert.Equal(t, "foo::a|b", Fingerprint(a))
}

func TestFingerprint_AltTitlesDeduplicated(t *testing.T) {
	e := models.Entry{Title: "Foo", AlternativeTitles: []string{"Bar", "bar!", " ", "BAR"}}
	assert.Equal(t, "foo::bar", Fingerprint(e))
}

func TestFingerprint_SlugTakesPrecedence(t *testing.T) {
	a := models.Entry{Slug: "x-1", Title: "First title", AlternativeTitles: []string{"alt"}}
	b := models.Entry{Slug: "X-1", Title: "Completely different", DataType: models.DataTypeMD, Description: "notes"}

	assert.Equal(t, "x1", Fingerprint(a))
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprint_BlankSlugFallsBackToTitle(t *testing.T) {
	e := models.Entry{Slug: " -- ", Title: "Berserk"}
	assert.Equal(t, "berserk", Fingerprint(e))
}

func TestFingerprint_BlankEntriesCollide(t *testing.T) {
	assert.Equal(t, "", Fingerprint(models.Entry{}))
	assert.Equal(t, Fingerprint(models.Entry{Title: "  "}), Fingerprint(models.Entry{Title: "!!"}))
}

func TestFingerprint_AltOnly(t *testing.T) {
	e := models.Entry{AlternativeTitles: []string{"Zeta", "Alpha"}}
	assert.Equal(t, "alpha|zeta", Fingerprint(e))
}
