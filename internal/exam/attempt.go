package exam

// Unresolved is a question that was scraped but whose correct answer could not be found.
type Unresolved struct {
	Question Question
	Err      error
}

// Attempt is everything a single exam attempt produced, in the order the server served it.
type Attempt struct {
	Questions  []Question
	Unresolved []Unresolved
}

// Len is the number of questions the server served during the attempt.
func (a Attempt) Len() int {
	return len(a.Questions) + len(a.Unresolved)
}
