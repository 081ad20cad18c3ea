package testhistory

import (
	"context"
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
	"github.com/okian/bookrec/pkg/logger"
)

// shelf is the pool synthetic readers pick their history from.
var shelf = []Book{
	{Title: "Dune", Description: "Desert planet politics, prophecy and the spice melange."},
	{Title: "Foundation", Description: "A mathematician predicts the fall of a galactic empire."},
	{Title: "Neuromancer", Description: "A washed up hacker is hired for one last cyberspace run."},
	{Title: "The Left Hand of Darkness", Description: "An envoy on a frozen world of ambisexual people."},
	{Title: "Hyperion", Description: "Pilgrims travel to the Time Tombs and tell their stories."},
	{Title: "Pride and Prejudice", Description: "Manners, marriage and misjudgment in Regency England."},
	{Title: "The Name of the Rose", Description: "A monk investigates murders in a medieval abbey."},
	{Title: "Gone Girl", Description: "A wife disappears and her husband becomes the suspect."},
	{Title: "The Hobbit", Description: "A hobbit joins dwarves on a quest to reclaim a mountain."},
	{Title: "Sapiens", Description: "A brief history of humankind from foragers to today."},
	{Title: "The Road", Description: "A father and son walk through a burned America."},
	{Title: "Beloved", Description: "A former slave is haunted by the ghost of her daughter."},
}

// Reader is a synthetic user and the books it will post.
type Reader struct {
	UserID string
	Books  []Book
}

func randomIndex(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

// generateReaders creates users with distinct books drawn from the shelf.
func generateReaders(ctx context.Context, config *Config) []Reader {
	perUser := config.BooksPerUser
	if perUser <= 0 {
		perUser = DefaultBooksPerUser
	}
	if perUser > len(shelf) {
		perUser = len(shelf)
	}
	logger.Get().Info(ctx, "generating readers",
		logger.Int("users", config.Users),
		logger.Int("booksPerUser", perUser))

	readers := make([]Reader, config.Users)
	for i := range readers {
		picked := make(map[int]bool, perUser)
		books := make([]Book, 0, perUser)
		for len(books) < perUser {
			idx := randomIndex(len(shelf))
			if picked[idx] {
				continue
			}
			picked[idx] = true
			books = append(books, shelf[idx])
		}
		readers[i] = Reader{UserID: uuid.NewString(), Books: books}
	}
	return readers
}
