package store

// Topic is a learning topic grouped under a category (e.g. Python under Programming Languages).
type Topic struct {
	ID          int32
	Name        string
	Category    string
	Description string
}

type FindTopic struct {
	ID *int32
}
