package core

import (
	"testing"
	"time"
)

func TestParseCategory(t *testing.T) {
	cases := []struct {
		in    string
		want  Category
		known bool
	}{
		{"Food", CategoryFood, true},
		{"food", CategoryFood, true},
		{"  TRAVEL  ", CategoryTravel, true},
		{"Subscriptions", CategorySubscriptions, true},
		{"groceries", CategoryOther, false},
		{"", CategoryOther, false},
		{"Overall", CategoryOther, false}, // never a valid expense category
	}
	for _, tc := range cases {
		got, known := ParseCategory(tc.in)
		if got != tc.want || known != tc.known {
			t.Errorf("ParseCategory(%q) = (%v, %v), want (%v, %v)", tc.in, got, known, tc.want, tc.known)
		}
	}
}

func TestParseFrequency(t *testing.T) {
	for _, in := range []string{"daily", "Weekly", " MONTHLY "} {
		if _, err := ParseFrequency(in); err != nil {
			t.Errorf("ParseFrequency(%q) unexpected error: %v", in, err)
		}
	}
	if _, err := ParseFrequency("yearly"); err == nil {
		t.Error("ParseFrequency(yearly) expected error")
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-01-31")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.ISO() != "2025-01-31" {
		t.Errorf("ISO() = %q, want 2025-01-31", d.ISO())
	}

	for _, in := range []string{"31/01/2025", "2025-13-01", "2025-02-30", ""} {
		if _, err := ParseDate(in); err == nil {
			t.Errorf("ParseDate(%q) expected error", in)
		}
	}
}

func TestDateMonthHelpers(t *testing.T) {
	d := NewDate(2025, 3, 17)
	if got := d.MonthStart(); got.ISO() != "2025-03-01" {
		t.Errorf("MonthStart() = %q, want 2025-03-01", got.ISO())
	}
	if !d.SameMonth(NewDate(2025, 3, 1)) {
		t.Error("SameMonth same month = false, want true")
	}
	if d.SameMonth(NewDate(2024, 3, 17)) {
		t.Error("SameMonth different year = true, want false")
	}
}

func TestExpenseValidate(t *testing.T) {
	valid := Expense{
		UserID:   1,
		Title:    "Coffee",
		Amount:   Money{Cents: 350},
		Date:     NewDate(2025, 6, 1),
		Category: CategoryFood,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid expense rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Expense)
	}{
		{"empty title", func(e *Expense) { e.Title = "   " }},
		{"zero amount", func(e *Expense) { e.Amount = Money{} }},
		{"negative amount", func(e *Expense) { e.Amount = Money{Cents: -100} }},
		{"zero date", func(e *Expense) { e.Date = Date{} }},
		{"overall category", func(e *Expense) { e.Category = CategoryOverall }},
		{"unknown category", func(e *Expense) { e.Category = "Groceries" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := valid
			tc.mutate(&e)
			if err := e.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestBudgetValidate(t *testing.T) {
	b := Budget{
		UserID:   1,
		Category: CategoryOverall,
		Amount:   Money{Cents: 50000},
		Month:    NewDate(2025, 6, 1),
	}
	if err := b.Validate(); err != nil {
		t.Fatalf("overall budget rejected: %v", err)
	}
	if !b.IsOverall() {
		t.Error("IsOverall() = false for Overall budget")
	}

	b.Category = CategoryFood
	if err := b.Validate(); err != nil {
		t.Fatalf("category budget rejected: %v", err)
	}
	if b.IsOverall() {
		t.Error("IsOverall() = true for category budget")
	}
}

func TestRecurringExpenseValidate(t *testing.T) {
	valid := RecurringExpense{
		UserID:    1,
		Title:     "Rent",
		Amount:    Money{Cents: 120000},
		Category:  CategoryRent,
		Frequency: Monthly,
		StartDate: NewDate(2025, 1, 1),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid template rejected: %v", err)
	}

	openEnded := valid
	openEnded.EndDate = Date{}
	if err := openEnded.Validate(); err != nil {
		t.Fatalf("open-ended template rejected: %v", err)
	}

	inverted := valid
	inverted.EndDate = NewDate(2024, 12, 31)
	if err := inverted.Validate(); err == nil {
		t.Error("end date before start date accepted")
	}

	badFreq := valid
	badFreq.Frequency = "yearly"
	if err := badFreq.Validate(); err == nil {
		t.Error("unknown frequency accepted")
	}
}

func TestGeneratedTitleAndNotes(t *testing.T) {
	re := RecurringExpense{Title: "Netflix"}
	if got := re.GeneratedTitle(); got != "[Recurring] Netflix" {
		t.Errorf("GeneratedTitle() = %q", got)
	}
	if got := re.GeneratedNotes(); got != GeneratedNotesMarker {
		t.Errorf("GeneratedNotes() = %q", got)
	}

	re.Notes = "family plan"
	if got := re.GeneratedNotes(); got != GeneratedNotesMarker+" family plan" {
		t.Errorf("GeneratedNotes() with notes = %q", got)
	}
}

func TestDateOfNormalizesToUTCMidnight(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	d := DateOf(time.Date(2025, 6, 15, 23, 45, 0, 0, loc))
	if d.ISO() != "2025-06-15" {
		t.Errorf("DateOf ISO = %q, want 2025-06-15", d.ISO())
	}
	if h, m, s := d.Clock(); h+m+s != 0 {
		t.Errorf("DateOf not at midnight: %02d:%02d:%02d", h, m, s)
	}
}
