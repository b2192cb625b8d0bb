package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
)

const (
	CategoryFood          Category = "Food"
	CategoryTravel        Category = "Travel"
	CategoryUtilities     Category = "Utilities"
	CategoryEntertainment Category = "Entertainment"
	CategoryOther         Category = "Other"

	// Extended values used by recurring templates and the entries
	// they generate.
	CategoryRent          Category = "Rent"
	CategorySubscriptions Category = "Subscriptions"
	CategorySalary        Category = "Salary"

	// CategoryOverall is the budget sentinel for total monthly spending
	// across all categories. It is never a valid expense category.
	CategoryOverall Category = "Overall"
)

// RecurringTitlePrefix marks expenses created from a recurring template.
// It is part of the deduplication key, so changing it would re-generate
// every already-materialized entry.
const RecurringTitlePrefix = "[Recurring] "

// GeneratedNotesMarker prefixes the notes of generated expenses.
const GeneratedNotesMarker = "Auto-generated from recurring template."

type (
	Frequency string

	Category string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Expense struct {
		ID       int64
		UserID   int64
		Title    string
		Amount   Money
		Date     Date
		Category Category
		Notes    string
	}

	Budget struct {
		ID       int64
		UserID   int64
		Category Category // expense category or CategoryOverall
		Amount   Money
		Month    Date // normalized to the first day of the month
	}

	RecurringExpense struct {
		ID            int64
		UserID        int64
		Title         string
		Amount        Money
		Category      Category
		Frequency     Frequency
		StartDate     Date
		EndDate       Date // zero value = open-ended
		Active        bool
		Notes         string
		LastGenerated Date // advisory cache, zero value = never generated
	}

	User struct {
		ID           int64
		Username     string
		Email        string
		PasswordHash string
		CreatedAt    time.Time
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidCategory  = errors.New("invalid category")
	ErrInvalidFrequency = errors.New("invalid frequency")
	ErrEmptyTitle       = errors.New("empty title")
)

// ExpenseCategories lists the categories selectable on the expense form.
var ExpenseCategories = []Category{
	CategoryFood,
	CategoryTravel,
	CategoryUtilities,
	CategoryEntertainment,
	CategoryOther,
}

// RecurringCategories lists the categories selectable on recurring
// templates, a superset of the expense categories.
var RecurringCategories = []Category{
	CategoryFood,
	CategoryTravel,
	CategoryUtilities,
	CategoryEntertainment,
	CategoryRent,
	CategorySubscriptions,
	CategorySalary,
	CategoryOther,
}

// BudgetCategories lists the categories a budget can be set for,
// including the Overall sentinel.
var BudgetCategories = append([]Category{CategoryOverall}, RecurringCategories...)

// ParseCategory matches a string against the known categories,
// case-insensitively. Unknown values fall back to CategoryOther.
func ParseCategory(s string) (Category, bool) {
	s = strings.TrimSpace(s)
	for _, c := range RecurringCategories {
		if strings.EqualFold(s, string(c)) {
			return c, true
		}
	}
	return CategoryOther, false
}

// ParseFrequency matches a string against the known frequencies.
func ParseFrequency(s string) (Frequency, error) {
	switch Frequency(strings.ToLower(strings.TrimSpace(s))) {
	case Daily:
		return Daily, nil
	case Weekly:
		return Weekly, nil
	case Monthly:
		return Monthly, nil
	}
	return "", ErrInvalidFrequency
}

// NewDate creates a Date at UTC midnight.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a time.Time to its calendar date in UTC.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// ISO returns the date formatted as YYYY-MM-DD.
func (d Date) ISO() string {
	return d.Format("2006-01-02")
}

// MonthStart returns the first day of the date's month.
func (d Date) MonthStart() Date {
	return NewDate(d.Year(), int(d.Time.Month()), 1)
}

// SameMonth reports whether two dates fall in the same calendar month.
func (d Date) SameMonth(o Date) bool {
	return d.Year() == o.Year() && d.Time.Month() == o.Time.Month()
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (c Category) validExpense() bool {
	for _, known := range RecurringCategories {
		if c == known {
			return true
		}
	}
	return false
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(e.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(e.Title) > 100 {
		return errors.New("title too long (max 100 characters)")
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if !e.Category.validExpense() {
		return ErrInvalidCategory
	}
	return nil
}

// IsOverall reports whether the budget covers total monthly spending
// rather than a single category.
func (b Budget) IsOverall() bool {
	return b.Category == CategoryOverall
}

func (b Budget) Validate() error {
	if err := b.Month.Validate(); err != nil {
		return err
	}
	if err := b.Amount.Validate(); err != nil {
		return err
	}
	if !b.IsOverall() && !b.Category.validExpense() {
		return ErrInvalidCategory
	}
	return nil
}

// GeneratedTitle is the synthesized title of expenses created from this
// template, and part of their deduplication key.
func (re RecurringExpense) GeneratedTitle() string {
	return RecurringTitlePrefix + re.Title
}

// GeneratedNotes is the notes text of expenses created from this template.
func (re RecurringExpense) GeneratedNotes() string {
	if strings.TrimSpace(re.Notes) == "" {
		return GeneratedNotesMarker
	}
	return GeneratedNotesMarker + " " + re.Notes
}

func (re RecurringExpense) Validate() error {
	if err := re.StartDate.Validate(); err != nil {
		return errors.New("invalid start date: " + err.Error())
	}

	if !re.EndDate.IsZero() && re.EndDate.Before(re.StartDate.Time) {
		return errors.New("end date must not precede start date")
	}

	switch re.Frequency {
	case Daily, Weekly, Monthly:
	default:
		return ErrInvalidFrequency
	}

	if len(strings.TrimSpace(re.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(re.Title) > 100 {
		return errors.New("title too long (max 100 characters)")
	}

	if err := re.Amount.Validate(); err != nil {
		return err
	}

	if !re.Category.validExpense() {
		return ErrInvalidCategory
	}

	return nil
}
