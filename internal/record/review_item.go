package record

var reviewColumns = []string{
	"name",
	"rating",
	"text",
	"title",
	"date",
}

// ReviewItem is one consumer review from a business detail page.
type ReviewItem struct {
	Name   string
	Rating float64
	Text   string
	Title  string
	Date   string
}

// NewReviewItem returns a normalized copy of in.
func NewReviewItem(in ReviewItem) ReviewItem {
	in.Name = normalize("name", in.Name)
	in.Text = normalize("text", in.Text)
	in.Title = normalize("title", in.Title)
	in.Date = normalize("date", in.Date)
	return in
}

// ReviewColumns returns the ReviewItem schema.
func ReviewColumns() []string {
	return append([]string(nil), reviewColumns...)
}

// Kind implements Record.
func (ReviewItem) Kind() Kind { return KindReview }

// Key implements Record.
func (r ReviewItem) Key() string { return r.Name }

// Columns implements Record.
func (ReviewItem) Columns() []string { return ReviewColumns() }

// Values implements Record.
func (r ReviewItem) Values() []string {
	return []string{r.Name, formatFloat(r.Rating), r.Text, r.Title, r.Date}
}
