package quotes

import (
	"context"
	"math/rand/v2"
)

// localQuotes is the embedded fallback list, used whenever the scraper
// is unavailable or fails.
var localQuotes = []Quote{
	{Text: "The secret of getting ahead is getting started", Author: "Mark Twain"},
	{Text: "It always seems impossible until it's done", Author: "Nelson Mandela"},
	{Text: "Success is the sum of small efforts, repeated day in and day out", Author: "Robert Collier"},
	{Text: "The expert in anything was once a beginner", Author: "Helen Hayes"},
	{Text: "Don't watch the clock; do what it does. Keep going", Author: "Sam Levenson"},
	{Text: "Learning is not attained by chance, it must be sought for with ardor", Author: "Abigail Adams"},
	{Text: "The beautiful thing about learning is that no one can take it away from you", Author: "B.B. King"},
	{Text: "Strive for progress, not perfection", Author: ""},
}

// Local serves quotes from the embedded list. Fetch never fails.
type Local struct{}

// NewLocal creates the fallback quote source.
func NewLocal() *Local { return &Local{} }

// Fetch returns a randomly chosen embedded quote.
func (*Local) Fetch(_ context.Context) (Quote, error) {
	return localQuotes[rand.IntN(len(localQuotes))], nil
}
