// Quote is a command line client of the repair catalog.
//
//	quote --brands
//	quote --brand Samsung
//	quote --brand Samsung --model A32 --select color=Negro --select frame="Con marco"
//	quote --search < terms.txt
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/niksmo/repair-shop/internal/adapter/catalog"
	"github.com/niksmo/repair-shop/internal/core/domain"
	"github.com/niksmo/repair-shop/internal/core/quote"
	"github.com/niksmo/repair-shop/internal/core/variant"
	"github.com/niksmo/repair-shop/pkg/debounce"
	"github.com/niksmo/repair-shop/pkg/retry"
	"github.com/niksmo/repair-shop/pkg/sigctx"
)

type flags struct {
	catalogURL string
	token      string
	timeout    time.Duration
	retries    int
	phone      string
	brands     bool
	search     bool
	brand      string
	model      string
	selection  map[string]string
}

func parseFlags() flags {
	var f flags
	pflag.StringVar(&f.catalogURL, "catalog-url", "http://localhost:8080", "catalog base url")
	pflag.StringVar(&f.token, "token", "", "bearer token")
	pflag.DurationVar(&f.timeout, "timeout", 10*time.Second, "request timeout")
	pflag.IntVar(&f.retries, "retries", 3, "attempts for transient failures")
	pflag.StringVar(&f.phone, "phone", "+54 9 11 5555-0000", "contact phone for quote links")
	pflag.BoolVar(&f.brands, "brands", false, "list brands")
	pflag.BoolVar(&f.search, "search", false, "search terms read from stdin")
	pflag.StringVarP(&f.brand, "brand", "b", "", "brand")
	pflag.StringVarP(&f.model, "model", "m", "", "model")
	pflag.StringToStringVarP(&f.selection, "select", "s", nil, "attribute selection, e.g. color=Negro")
	pflag.Parse()
	return f
}

func main() {
	f := parseFlags()

	slog.SetDefault(slog.New(slog.NewTextHandler(
		os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn},
	)))

	ctx, stop := sigctx.NotifyContext()
	defer stop()

	cl, err := catalog.New(catalog.Config{
		BaseURL:   f.catalogURL,
		Timeout:   f.timeout,
		Authorize: bearer(f.token),
		OnUnauthorized: func() {
			fmt.Fprintln(os.Stderr, "catalog rejected credentials, check --token")
		},
		Retry: retry.RetryConfig{
			MaxAttempts: f.retries,
			Backoff:     retry.ExponentialBackoff(200 * time.Millisecond),
		},
	})
	if err != nil {
		fallDown(err)
	}

	switch {
	case f.search:
		err = runSearch(ctx, cl, os.Stdin, os.Stdout)
	case f.brands:
		var brands []string
		if brands, err = cl.Brands(ctx); err == nil {
			printList(os.Stdout, brands)
		}
	case f.brand != "" && f.model == "":
		var models []string
		if models, err = cl.Models(ctx, f.brand); err == nil {
			printList(os.Stdout, models)
		}
	case f.brand != "" && f.model != "":
		err = runQuote(ctx, cl, f, os.Stdout)
	default:
		pflag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fallDown(err)
	}
}

func bearer(token string) func(*http.Request) {
	if token == "" {
		return nil
	}
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

func printList(w io.Writer, items []string) {
	for _, item := range items {
		fmt.Fprintln(w, item)
	}
}

func runQuote(ctx context.Context, cl *catalog.Client, f flags, w io.Writer) error {
	records, err := cl.Records(ctx, f.brand, f.model)
	if err != nil {
		return err
	}

	c := variant.NewConfigurator()
	c.Load(f.brand, f.model, records)
	for name, value := range f.selection {
		k, ok := domain.ParseAttributeKey(name)
		if !ok {
			return fmt.Errorf("unknown attribute %q", name)
		}
		c.Select(k, value)
	}

	printOptions(w, c)

	if c.State() != variant.StateComplete {
		return nil
	}

	messenger, err := quote.NewMessenger(f.phone, "")
	if err != nil {
		return err
	}
	res, err := messenger.Resolve(c.Resolve())
	if err != nil {
		return err
	}
	printResult(w, res)
	return nil
}

func printOptions(w io.Writer, c *variant.Configurator) {
	fmt.Fprintf(w, "%s %s: %d records, %s\n",
		c.Brand(), c.Model(), len(c.Records()), c.State())

	options := c.Options()
	required := c.RequiredKeys()
	sel := c.Selection()

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, k := range required {
		selected, _ := sel.Get(k)
		fmt.Fprintf(tw, "  %s\t[%s]\t%s\n", k, selected, strings.Join(options[k], " | "))
	}
	_ = tw.Flush()
}

func printResult(w io.Writer, res quote.Result) {
	if res.Status != variant.StatusResolved {
		fmt.Fprintf(w, "no quote: %s (%d matches)\n", res.Status, res.Matches)
		return
	}

	r := res.Quote.Record
	fmt.Fprintf(w, "\n%s %s %s\n", r.Brand, r.Model, quote.DescribeAttributes(r.Attributes))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, line := range res.Quote.Lines {
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", line.Service.Title(), line.PriceText, line.ContactLink)
	}
	_ = tw.Flush()
}

type searchResult struct {
	term    string
	records []domain.Record
	err     error
}

// runSearch searches every line of r, only the latest term within the
// debounce delay reaches the catalog.
func runSearch(ctx context.Context, cl *catalog.Client, r io.Reader, w io.Writer) error {
	d := debounce.New[[]domain.Record](debounce.DefaultDelay)
	defer d.Cancel()

	results := make(chan searchResult, 16)
	var last string

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		term := strings.TrimSpace(sc.Text())
		if term == "" {
			continue
		}
		last = term
		d.Schedule(ctx,
			func(ctx context.Context) ([]domain.Record, error) {
				return cl.Search(ctx, term)
			},
			func(rs []domain.Record, err error) {
				results <- searchResult{term, rs, err}
			},
		)
		drain(w, results)
	}
	if err := sc.Err(); err != nil {
		return err
	}
	if last == "" {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case res := <-results:
			printSearch(w, res)
			if res.term == last {
				return nil
			}
		}
	}
}

func drain(w io.Writer, results <-chan searchResult) {
	for {
		select {
		case res := <-results:
			printSearch(w, res)
		default:
			return
		}
	}
}

func printSearch(w io.Writer, res searchResult) {
	fmt.Fprintf(w, "%q:\n", res.term)
	if res.err != nil {
		if errors.Is(res.err, domain.ErrInvalidArgument) {
			fmt.Fprintln(w, "  invalid term")
			return
		}
		fmt.Fprintf(w, "  error: %v\n", res.err)
		return
	}
	if len(res.records) == 0 {
		fmt.Fprintln(w, "  no records")
		return
	}
	for _, r := range res.records {
		fmt.Fprintf(w, "  %s %s %s\n", r.Brand, r.Model, quote.DescribeAttributes(r.Attributes))
	}
}

func fallDown(err error) {
	fmt.Fprintf(os.Stderr, "quote: %v\n", err)
	os.Exit(1)
}
