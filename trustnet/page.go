package trustnet

import (
	"context"
	"time"

	"github.com/use-agent/fundscrape/scraper"
)

// Page is the slice of a loaded browser tab the scrapers use.
type Page interface {
	InnerTexts(ctx context.Context, selector string, max int) ([]string, error)
	HTML(ctx context.Context) (string, error)
	ClickText(ctx context.Context, selector, label string) (bool, error)
	ScrollToEnd(ctx context.Context) error
	Settle(ctx context.Context, d time.Duration) error
	Close() error
}

// Opener loads a URL into a fresh Page.
type Opener interface {
	Open(ctx context.Context, url string) (Page, error)
}

type sessionOpener struct {
	s *scraper.Session
}

// SessionOpener adapts a browser session to Opener.
func SessionOpener(s *scraper.Session) Opener {
	return sessionOpener{s: s}
}

func (o sessionOpener) Open(ctx context.Context, url string) (Page, error) {
	p, err := o.s.Open(ctx, url)
	if err != nil {
		return nil, err
	}
	return p, nil
}
