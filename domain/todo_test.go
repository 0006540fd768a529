package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
)

func TestSortTodosOrdering(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	todos := []Todo{
		{ID: "done-late", Completed: true, Order: 1, CreatedAt: base},
		{ID: "second", Order: 2, CreatedAt: base},
		{ID: "first", Order: 1, CreatedAt: base},
		{ID: "tie-new", Order: 3, CreatedAt: base.Add(time.Hour)},
		{ID: "tie-old", Order: 3, CreatedAt: base},
	}

	SortTodos(todos)

	want := []string{"first", "second", "tie-new", "tie-old", "done-late"}
	for i, id := range want {
		if todos[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, todos[i].ID)
		}
	}
}

func TestPatchAppliesOnlyPresentFields(t *testing.T) {
	due := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	todo := Todo{
		ID:          "t1",
		Title:       "Buy milk",
		Description: "two liters",
		Priority:    PriorityLow,
		Category:    "Shopping",
		DueDate:     &due,
		Order:       4,
	}
	completed := true

	if err := (TodoPatch{Completed: &completed}).Apply(&todo); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if !todo.Completed {
		t.Fatal("expected completed to be set")
	}
	if todo.Title != "Buy milk" || todo.Description != "two liters" || todo.Category != "Shopping" {
		t.Fatalf("untouched fields changed: %#v", todo)
	}
	if todo.Order != 4 {
		t.Fatalf("order changed to %d", todo.Order)
	}
	if todo.DueDate == nil || !todo.DueDate.Equal(due) {
		t.Fatalf("due date changed: %v", todo.DueDate)
	}
}

func TestPatchClearsOptionalFields(t *testing.T) {
	due := time.Now()
	todo := Todo{Title: "Pay rent", Description: "monthly", Category: "Finance", DueDate: &due}
	empty := ""

	patch := TodoPatch{Description: &empty, Category: &empty, DueDate: &empty}
	if err := patch.Apply(&todo); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if todo.Description != "" || todo.Category != "" {
		t.Fatalf("expected cleared fields, got %#v", todo)
	}
	if todo.DueDate != nil {
		t.Fatalf("expected cleared due date, got %v", todo.DueDate)
	}
}

func TestPatchRejectsBadValues(t *testing.T) {
	blank := "   "
	bogus := Priority("urgent")
	badDate := "someday"

	cases := map[string]TodoPatch{
		"blank_title":  {Title: &blank},
		"bad_priority": {Priority: &bogus},
		"bad_due_date": {DueDate: &badDate},
	}
	for name, patch := range cases {
		t.Run(name, func(t *testing.T) {
			todo := Todo{Title: "keep"}
			err := patch.Apply(&todo)
			if !errors.Is(err, ErrInvalidField) {
				t.Fatalf("expected ErrInvalidField, got %v", err)
			}
			if todo.Title != "keep" {
				t.Fatalf("todo mutated on invalid patch: %#v", todo)
			}
		})
	}
}

func TestPatchDecodeDistinguishesNullFromAbsent(t *testing.T) {
	var patch TodoPatch
	if err := sonic.Unmarshal([]byte(`{"description":null,"dueDate":"","completed":true}`), &patch); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if patch.Description == nil || *patch.Description != "" {
		t.Fatalf("explicit null should clear description, got %#v", patch.Description)
	}
	if patch.DueDate == nil || *patch.DueDate != "" {
		t.Fatalf("explicit empty string should clear due date, got %#v", patch.DueDate)
	}
	if patch.Category != nil || patch.Title != nil || patch.Order != nil {
		t.Fatalf("absent fields should stay nil: %#v", patch)
	}
	if patch.Empty() {
		t.Fatal("patch with fields reported empty")
	}
	if !(TodoPatch{}).Empty() {
		t.Fatal("zero patch not reported empty")
	}
}

func TestPatchNullClearsOptionalFields(t *testing.T) {
	due := time.Now()
	todo := Todo{Title: "Pay rent", Description: "monthly", Category: "Finance", DueDate: &due}

	var patch TodoPatch
	if err := sonic.Unmarshal([]byte(`{"description":null,"category":null,"dueDate":null}`), &patch); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := patch.Apply(&todo); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if todo.Description != "" || todo.Category != "" || todo.DueDate != nil {
		t.Fatalf("explicit null did not clear optional fields: %#v", todo)
	}
	if todo.Title != "Pay rent" {
		t.Fatalf("title changed: %q", todo.Title)
	}
}

func TestPatchNullOnValueFieldsIsAbsent(t *testing.T) {
	var patch TodoPatch
	if err := sonic.Unmarshal([]byte(`{"title":null,"completed":null,"priority":null,"order":null}`), &patch); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !patch.Empty() {
		t.Fatalf("null on non-clearable fields should decode as absent: %#v", patch)
	}
}

func TestPatchDecodeRejectsUnknownFields(t *testing.T) {
	var patch TodoPatch
	if err := sonic.Unmarshal([]byte(`{"owner":"someone-else"}`), &patch); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseDueDate(t *testing.T) {
	if due, err := ParseDueDate(""); err != nil || due != nil {
		t.Fatalf("empty value should clear, got %v, %v", due, err)
	}
	due, err := ParseDueDate("2026-09-15")
	if err != nil {
		t.Fatalf("date-only: %v", err)
	}
	if due.Format("2006-01-02") != "2026-09-15" {
		t.Fatalf("unexpected parsed date: %v", due)
	}
	if _, err := ParseDueDate("2026-09-15T10:30:00Z"); err != nil {
		t.Fatalf("rfc3339: %v", err)
	}
	if _, err := ParseDueDate("next tuesday"); !errors.Is(err, ErrInvalidField) {
		t.Fatalf("expected ErrInvalidField, got %v", err)
	}
}

func TestNextOrder(t *testing.T) {
	if got := NextOrder(nil); got != 1 {
		t.Fatalf("empty list: expected order 1, got %d", got)
	}
	todos := []Todo{{Order: 2}, {Order: 7}, {Order: 0}}
	if got := NextOrder(todos); got != 8 {
		t.Fatalf("expected order 8, got %d", got)
	}
}

func TestTodoMarshalOmitsUnsetOptionals(t *testing.T) {
	payload, err := sonic.Marshal(Todo{ID: "t1", Title: "Title", Priority: PriorityMedium})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	body := string(payload)
	for _, field := range []string{"dueDate", "description", "category"} {
		if strings.Contains(body, field) {
			t.Fatalf("expected %s omitted, got %s", field, body)
		}
	}
	if !strings.Contains(body, `"order":0`) {
		t.Fatalf("expected zero order to be serialized, got %s", body)
	}
}
