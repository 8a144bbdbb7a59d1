package core

// DBOrdering is a single ORDER BY term.
type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// NewestFirst is the ordering selected by the OrderByKey filter.
var NewestFirst = DBOrdering{Field: "created_at", Ascending: false}
