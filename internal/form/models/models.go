// Package models defines the form schema: a named set of questions bound to
// one table at the remote store, each question optionally gated on the answer
// to an earlier single-select question.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	id "formbridge/pkg/domain"
	dErrors "formbridge/pkg/domain-errors"
)

// FieldType is the closed set of field kinds a question can map to.
type FieldType string

const (
	FieldSingleLineText      FieldType = "singleLineText"
	FieldMultilineText       FieldType = "multilineText"
	FieldSingleSelect        FieldType = "singleSelect"
	FieldMultipleSelects     FieldType = "multipleSelects"
	FieldMultipleAttachments FieldType = "multipleAttachments"
)

// Valid reports whether t is one of the supported field types.
func (t FieldType) Valid() bool {
	switch t {
	case FieldSingleLineText, FieldMultilineText, FieldSingleSelect,
		FieldMultipleSelects, FieldMultipleAttachments:
		return true
	}
	return false
}

// Select reports whether t carries a choice list.
func (t FieldType) Select() bool {
	return t == FieldSingleSelect || t == FieldMultipleSelects
}

// Operator compares a dependency's answer against a condition value.
type Operator string

const (
	OperatorIs    Operator = "is"
	OperatorIsNot Operator = "isNot"
)

// SelectOption is one choice of a select field, mirrored from the remote
// store's schema. Conditions match on Name, not ID.
type SelectOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ConditionalLogic gates a question's visibility on the answer to an earlier
// single-select question. A disabled condition means always visible.
type ConditionalLogic struct {
	Enabled          bool     `json:"enabled"`
	DependentFieldID string   `json:"dependentFieldId,omitempty"`
	Operator         Operator `json:"operator,omitempty"`
	Value            string   `json:"value,omitempty"`
}

// Question binds one field of the target table into the form.
type Question struct {
	FieldID     string           `json:"fieldId"`
	Label       string           `json:"label"`
	Type        FieldType        `json:"type"`
	Required    bool             `json:"required"`
	Options     []SelectOption   `json:"options,omitempty"`
	Conditional ConditionalLogic `json:"conditional"`
}

// Form is a published questionnaire whose submissions land in one table of
// one base at the remote store.
type Form struct {
	ID        id.FormID      `json:"id"`
	CreatorID id.PrincipalID `json:"creatorId"`
	Name      string         `json:"name"`
	BaseID    string         `json:"baseId"`
	TableID   string         `json:"tableId"`
	Questions []Question     `json:"questions"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Question returns the question bound to fieldID, or false.
func (f *Form) Question(fieldID string) (Question, bool) {
	for _, q := range f.Questions {
		if q.FieldID == fieldID {
			return q, true
		}
	}
	return Question{}, false
}

// NewForm validates the schema and stamps identity and timestamps. The
// dependency rules keep evaluation well-defined: a condition may only point
// at an earlier single-select question, and its value must be one of that
// question's option names.
func NewForm(creatorID id.PrincipalID, name, baseID, tableID string, questions []Question, now time.Time) (*Form, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "form name is required")
	}
	if baseID == "" || tableID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "form must reference a base and a table")
	}
	if len(questions) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "form must have at least one question")
	}

	seen := make(map[string]int, len(questions))
	for i, q := range questions {
		if q.FieldID == "" {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("question %d has no field id", i))
		}
		if strings.TrimSpace(q.Label) == "" {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("question %q has no label", q.FieldID))
		}
		if !q.Type.Valid() {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("question %q has unsupported type %q", q.FieldID, q.Type))
		}
		if _, dup := seen[q.FieldID]; dup {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("duplicate field id %q", q.FieldID))
		}
		if len(q.Options) > 0 && !q.Type.Select() {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("question %q of type %q cannot carry options", q.FieldID, q.Type))
		}
		if q.Type.Select() && len(q.Options) == 0 {
			return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("select question %q has no options", q.FieldID))
		}
		if err := validateConditional(q, questions, seen); err != nil {
			return nil, err
		}
		seen[q.FieldID] = i
	}

	return &Form{
		ID:        id.FormID(uuid.New()),
		CreatorID: creatorID,
		Name:      name,
		BaseID:    baseID,
		TableID:   tableID,
		Questions: questions,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func validateConditional(q Question, questions []Question, earlier map[string]int) error {
	c := q.Conditional
	if !c.Enabled {
		return nil
	}
	if c.Operator != OperatorIs && c.Operator != OperatorIsNot {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("question %q has unsupported operator %q", q.FieldID, c.Operator))
	}
	depIndex, ok := earlier[c.DependentFieldID]
	if !ok {
		return dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("question %q depends on %q, which is not an earlier question", q.FieldID, c.DependentFieldID))
	}
	dep := questions[depIndex]
	if dep.Type != FieldSingleSelect {
		return dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("question %q depends on %q, which is not a single select", q.FieldID, c.DependentFieldID))
	}
	for _, opt := range dep.Options {
		if opt.Name == c.Value {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeValidation,
		fmt.Sprintf("question %q condition value %q is not an option of %q", q.FieldID, c.Value, c.DependentFieldID))
}
