package model

import "time"

// Form is a named collection of field definitions owned by one user.
// It corresponds to a row in the `forms` table.  Description is empty
// when the column is NULL.
type Form struct {
	ID          uint64    // forms.id
	OwnerID     uint64    // forms.owner_id
	Title       string    // forms.title
	Description string    // forms.description (nullable)
	CreatedAt   time.Time // forms.created_at
}

// Field is one typed input of a form.  FieldID is the caller-chosen key
// that submissions refer to; Type is free-form and not validated.
// Position preserves the order the fields were supplied in.
type Field struct {
	ID       uint64 // fields.id
	FormID   uint64 // fields.form_id
	FieldID  string // fields.field_id
	Type     string // fields.type
	Label    string // fields.label
	Required bool   // fields.required
	Position int    // fields.position
}

// FormDetail is a form together with its ordered fields.
type FormDetail struct {
	Form
	Fields []Field
}
