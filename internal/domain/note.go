package domain

// Note represents one flashcard as a mapping from field name to text content.
// FieldOrder preserves the column/field order of the source deck so that
// output packages are written with the same layout they were read with.
type Note struct {
	Fields     map[string]string `json:"fields"`
	FieldOrder []string          `json:"field_order"`
	Tags       string            `json:"tags,omitempty"`
}

// NewNote creates a Note with the given field order and empty field values.
// Parameters:
//   - fieldOrder: ordered field names for this note.
// Returns:
//   - Note: note with all fields initialized to empty strings.
func NewNote(fieldOrder ...string) Note {
	fields := make(map[string]string, len(fieldOrder))
	for _, name := range fieldOrder {
		fields[name] = ""
	}
	order := make([]string, len(fieldOrder))
	copy(order, fieldOrder)
	return Note{Fields: fields, FieldOrder: order}
}

// Get returns the text content of the named field, or "" if absent.
func (n *Note) Get(field string) string {
	if n.Fields == nil {
		return ""
	}
	return n.Fields[field]
}

// Set assigns text content to the named field, appending the field to
// FieldOrder if it was not present before.
func (n *Note) Set(field, value string) {
	if n.Fields == nil {
		n.Fields = make(map[string]string)
	}
	if _, ok := n.Fields[field]; !ok {
		n.FieldOrder = append(n.FieldOrder, field)
	}
	n.Fields[field] = value
}

// Clone returns a deep copy of the note.
func (n *Note) Clone() Note {
	fields := make(map[string]string, len(n.Fields))
	for k, v := range n.Fields {
		fields[k] = v
	}
	order := make([]string, len(n.FieldOrder))
	copy(order, n.FieldOrder)
	return Note{Fields: fields, FieldOrder: order, Tags: n.Tags}
}
