package deck

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"gorm.io/gorm"
)

// Fixed identifiers for the generated model and deck. Stable ids mean a
// re-import updates the same deck instead of duplicating it.
const (
	imageModelID int64 = 1607392319
	outputDeckID int64 = 2059400110
)

// fieldSeparator is the byte Anki uses between note fields in the flds column.
const fieldSeparator = "\x1f"

// ankiNote maps the notes table of a collection.anki2 database.
type ankiNote struct {
	ID    int64  `gorm:"column:id;primaryKey"`
	GUID  string `gorm:"column:guid"`
	MID   int64  `gorm:"column:mid"`
	Mod   int64  `gorm:"column:mod"`
	USN   int    `gorm:"column:usn"`
	Tags  string `gorm:"column:tags"`
	Flds  string `gorm:"column:flds"`
	Sfld  string `gorm:"column:sfld"`
	Csum  int64  `gorm:"column:csum"`
	Flags int    `gorm:"column:flags"`
	Data  string `gorm:"column:data"`
}

func (ankiNote) TableName() string {
	return "notes"
}

// ankiCard maps the cards table of a collection.anki2 database.
type ankiCard struct {
	ID     int64  `gorm:"column:id;primaryKey"`
	NID    int64  `gorm:"column:nid"`
	DID    int64  `gorm:"column:did"`
	Ord    int    `gorm:"column:ord"`
	Mod    int64  `gorm:"column:mod"`
	USN    int    `gorm:"column:usn"`
	Type   int    `gorm:"column:type"`
	Queue  int    `gorm:"column:queue"`
	Due    int64  `gorm:"column:due"`
	Ivl    int    `gorm:"column:ivl"`
	Factor int    `gorm:"column:factor"`
	Reps   int    `gorm:"column:reps"`
	Lapses int    `gorm:"column:lapses"`
	Left   int    `gorm:"column:left"`
	Odue   int64  `gorm:"column:odue"`
	Odid   int64  `gorm:"column:odid"`
	Flags  int    `gorm:"column:flags"`
	Data   string `gorm:"column:data"`
}

func (ankiCard) TableName() string {
	return "cards"
}

// collectionDDL is the Anki 2 collection schema. Executed statement by
// statement when packaging a new deck.
var collectionDDL = []string{
	`CREATE TABLE col (
		id integer primary key,
		crt integer not null,
		mod integer not null,
		scm integer not null,
		ver integer not null,
		dty integer not null,
		usn integer not null,
		ls integer not null,
		conf text not null,
		models text not null,
		decks text not null,
		dconf text not null,
		tags text not null
	)`,
	`CREATE TABLE notes (
		id integer primary key,
		guid text not null,
		mid integer not null,
		mod integer not null,
		usn integer not null,
		tags text not null,
		flds text not null,
		sfld integer not null,
		csum integer not null,
		flags integer not null,
		data text not null
	)`,
	`CREATE TABLE cards (
		id integer primary key,
		nid integer not null,
		did integer not null,
		ord integer not null,
		mod integer not null,
		usn integer not null,
		type integer not null,
		queue integer not null,
		due integer not null,
		ivl integer not null,
		factor integer not null,
		reps integer not null,
		lapses integer not null,
		left integer not null,
		odue integer not null,
		odid integer not null,
		flags integer not null,
		data text not null
	)`,
	`CREATE TABLE revlog (
		id integer primary key,
		cid integer not null,
		usn integer not null,
		ease integer not null,
		ivl integer not null,
		lastIvl integer not null,
		factor integer not null,
		time integer not null,
		type integer not null
	)`,
	`CREATE TABLE graves (
		usn integer not null,
		oid integer not null,
		type integer not null
	)`,
	`CREATE INDEX ix_notes_usn ON notes (usn)`,
	`CREATE INDEX ix_cards_usn ON cards (usn)`,
	`CREATE INDEX ix_revlog_usn ON revlog (usn)`,
	`CREATE INDEX ix_cards_nid ON cards (nid)`,
	`CREATE INDEX ix_cards_sched ON cards (did, queue, due)`,
	`CREATE INDEX ix_revlog_cid ON revlog (cid)`,
	`CREATE INDEX ix_notes_csum ON notes (csum)`,
}

func createCollectionSchema(db *gorm.DB) error {
	for _, stmt := range collectionDDL {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create collection schema: %w", err)
		}
	}
	return nil
}

// modelsJSON builds the models column of the col row: one model with
// question, answer, and image fields and a single card template whose answer
// side shows the image when present.
func modelsJSON(questionField, answerField, imageField string, now int64) (string, error) {
	fields := make([]map[string]interface{}, 0, 3)
	for i, name := range []string{questionField, answerField, imageField} {
		fields = append(fields, map[string]interface{}{
			"name":   name,
			"ord":    i,
			"sticky": false,
			"rtl":    false,
			"font":   "Arial",
			"size":   20,
			"media":  []string{},
		})
	}

	qfmt := fmt.Sprintf(`<div class="question">{{%s}}</div>`, questionField)
	afmt := fmt.Sprintf(`<div class="question">{{%s}}</div>
<hr id="answer">
<div class="answer">{{%s}}</div>
{{#%s}}
<div class="image"><img src="{{%s}}"></div>
{{/%s}}`, questionField, answerField, imageField, imageField, imageField)

	model := map[string]interface{}{
		"id":    imageModelID,
		"name":  "Image Model",
		"type":  0,
		"mod":   now,
		"usn":   -1,
		"sortf": 0,
		"did":   outputDeckID,
		"flds":  fields,
		"tmpls": []map[string]interface{}{
			{
				"name":  "Card 1",
				"ord":   0,
				"qfmt":  qfmt,
				"afmt":  afmt,
				"bqfmt": "",
				"bafmt": "",
				"did":   nil,
			},
		},
		"css":       ".card { font-family: arial; font-size: 20px; text-align: center; color: black; background-color: white; }",
		"latexPre":  "\\documentclass[12pt]{article}\n\\special{papersize=3in,5in}\n\\usepackage{amssymb,amsmath}\n\\pagestyle{empty}\n\\setlength{\\parindent}{0in}\n\\begin{document}\n",
		"latexPost": "\\end{document}",
		"req":       []interface{}{[]interface{}{0, "all", []int{0}}},
		"tags":      []string{},
		"vers":      []string{},
	}

	out, err := json.Marshal(map[string]interface{}{
		strconv.FormatInt(imageModelID, 10): model,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal models: %w", err)
	}
	return string(out), nil
}

// decksJSON builds the decks column: the mandatory default deck plus the
// output deck.
func decksJSON(deckName string, now int64) (string, error) {
	deckEntry := func(id int64, name string) map[string]interface{} {
		return map[string]interface{}{
			"id":               id,
			"name":             name,
			"desc":             "",
			"mod":              now,
			"usn":              -1,
			"collapsed":        false,
			"browserCollapsed": false,
			"dyn":              0,
			"conf":             1,
			"extendNew":        10,
			"extendRev":        50,
			"newToday":         []int{0, 0},
			"revToday":         []int{0, 0},
			"lrnToday":         []int{0, 0},
			"timeToday":        []int{0, 0},
		}
	}

	out, err := json.Marshal(map[string]interface{}{
		"1":                                 deckEntry(1, "Default"),
		strconv.FormatInt(outputDeckID, 10): deckEntry(outputDeckID, deckName),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal decks: %w", err)
	}
	return string(out), nil
}

// confJSON builds the conf column.
func confJSON() string {
	return fmt.Sprintf(`{"activeDecks":[1],"addToCur":true,"collapseTime":1200,"curDeck":1,"curModel":"%d","dueCounts":true,"estTimes":true,"newBury":true,"newSpread":0,"nextPos":1,"sortBackwards":false,"sortType":"noteFld","timeLim":0}`, imageModelID)
}

// dconfJSON builds the dconf column with the default options group.
func dconfJSON() string {
	return `{"1":{"id":1,"name":"Default","autoplay":true,"dyn":false,"lapse":{"delays":[10],"leechAction":0,"leechFails":8,"minInt":1,"mult":0},"maxTaken":60,"new":{"bury":true,"delays":[1,10],"initialFactor":2500,"ints":[1,4,7],"order":1,"perDay":20,"separate":true},"replayq":true,"rev":{"bury":true,"ease4":1.3,"fuzz":0.05,"ivlFct":1,"maxIvl":36500,"minSpace":1,"perDay":100},"timer":0,"usn":-1}}`
}

// noteChecksum computes Anki's field checksum: the first 8 hex digits of the
// SHA1 of the sort field, as an integer.
func noteChecksum(sortField string) int64 {
	sum := sha1.Sum([]byte(sortField))
	value, _ := strconv.ParseInt(hex.EncodeToString(sum[:])[:8], 16, 64)
	return value
}

// noteGUID derives a stable GUID from the note's field contents so re-runs
// over identical input produce identical notes.
func noteGUID(flds string) string {
	sum := sha1.Sum([]byte(flds))
	return hex.EncodeToString(sum[:])[:10]
}
