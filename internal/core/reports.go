package core

// CategoryTotal is an aggregate of spending for one category.
type CategoryTotal struct {
	Category Category
	Total    Money
}

// MonthTotal is an aggregate of spending for one calendar month.
type MonthTotal struct {
	Month Date // first day of the month
	Total Money
}

// MonthlyReport carries the data behind the reports page: spending per
// month and per category, both over the user's full history.
type MonthlyReport struct {
	MonthTotals    []MonthTotal
	CategoryTotals []CategoryTotal
}
