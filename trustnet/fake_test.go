package trustnet

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// fakePage serves canned content keyed by selector. Pagination is modelled
// as a list of HTML snapshots advanced by ClickText.
type fakePage struct {
	texts    map[string][]string
	htmls    []string
	buttons  []string
	clickErr error
	current  int
	clicks   []string
	closed   bool
}

func (p *fakePage) InnerTexts(_ context.Context, selector string, max int) ([]string, error) {
	v := p.texts[selector]
	if max > 0 && len(v) > max {
		v = v[:max]
	}
	return v, nil
}

func (p *fakePage) HTML(context.Context) (string, error) {
	if len(p.htmls) == 0 {
		return "", nil
	}
	return p.htmls[p.current], nil
}

func (p *fakePage) ClickText(_ context.Context, _ string, label string) (bool, error) {
	if p.clickErr != nil {
		return false, p.clickErr
	}
	for _, b := range p.buttons {
		if b == label {
			p.clicks = append(p.clicks, label)
			n, _ := strconv.Atoi(label)
			if n-1 < len(p.htmls) {
				p.current = n - 1
			}
			return true, nil
		}
	}
	return false, nil
}

func (p *fakePage) ScrollToEnd(context.Context) error { return nil }

func (p *fakePage) Settle(context.Context, time.Duration) error { return nil }

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

// fakeOpener hands out pages per URL. A URL listed in fail always errors.
type fakeOpener struct {
	pages map[string]func() *fakePage
	fail  map[string]error
	opens map[string]int
}

func newFakeOpener() *fakeOpener {
	return &fakeOpener{
		pages: map[string]func() *fakePage{},
		fail:  map[string]error{},
		opens: map[string]int{},
	}
}

func (o *fakeOpener) Open(_ context.Context, url string) (Page, error) {
	o.opens[url]++
	if err, ok := o.fail[url]; ok {
		return nil, err
	}
	mk, ok := o.pages[url]
	if !ok {
		return nil, errors.New("no page for " + url)
	}
	return mk(), nil
}
