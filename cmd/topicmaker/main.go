package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lovoo/goka"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/sasl/plain"

	"github.com/niksmo/repair-shop/config"
	"github.com/niksmo/repair-shop/internal/adapter"
	"github.com/niksmo/repair-shop/pkg/sigctx"
)

const (
	partitions        = 3
	replicationFactor = 3
	minISR            = "2"
	cleanupDelete     = "delete"
	cleanupCompact    = "compact"
)

func main() {
	sigCtx, closeApp := sigctx.NotifyContext()
	defer closeApp()

	cfg := config.Load()

	cl, err := createClient(cfg)
	if err != nil {
		printFail(err)
		return
	}
	defer cl.Close()

	streams := []string{
		cfg.Broker.Topics.RecordsFromAdmin,
		cfg.Broker.Topics.RecordsToStorage,
		cfg.Broker.Topics.RecordBlockStream,
	}
	tables := []string{
		toGroupTable(cfg.Broker.Consumers.RecordBlockGroup),
	}

	printStart(append(streams, tables...))
	defer printComplete(time.Now())

	// regular topics
	if err := makeTopics(sigCtx, cl, cleanupDelete, streams...); err != nil {
		printFail(err)
		return
	}

	// group table topics
	if err := makeTopics(sigCtx, cl, cleanupCompact, tables...); err != nil {
		printFail(err)
		return
	}
}

func createClient(cfg config.Config) (*kadm.Client, error) {
	opts := []kgo.Opt{kgo.SeedBrokers(cfg.Broker.SeedBrokers...)}

	if t := cfg.Broker.TLS; t.Enabled {
		tlsCfg, err := adapter.MakeTLSConfig(t.CA, t.Cert, t.Key)
		if err != nil {
			return nil, err
		}
		opts = append(opts, kgo.DialTLSConfig(tlsCfg))
	}

	if s := cfg.Broker.SASL; s.User != "" {
		opts = append(opts, kgo.SASL(plain.Auth{
			User: s.User,
			Pass: s.Pass,
		}.AsMechanism()))
	}

	return kadm.NewOptClient(opts...)
}

func makeTopics(
	ctx context.Context, cl *kadm.Client, cleanupPolicy string, topics ...string,
) error {
	isr := minISR
	config := map[string]*string{
		"cleanup.policy":      &cleanupPolicy,
		"min.insync.replicas": &isr,
	}

	responses, err := cl.CreateTopics(
		ctx, partitions, replicationFactor, config, topics...,
	)
	if err != nil {
		return err
	}

	var errs []error
	for _, res := range responses.Sorted() {
		if res.Err == nil {
			fmt.Printf("topic: %q (%s) successfully created\n", res.Topic, cleanupPolicy)
			continue
		}
		if errors.Is(res.Err, kerr.TopicAlreadyExists) {
			fmt.Printf("topic: %q already exists\n", res.Topic)
			continue
		}
		errs = append(errs, fmt.Errorf("%s: %w", res.Topic, res.Err))
	}

	return errors.Join(errs...)
}

func printStart(topics []string) {
	var b strings.Builder
	for _, t := range topics {
		fmt.Fprintf(&b, "\t- %q\n", t)
	}
	fmt.Printf("initializing topics...\n%s\n", b.String())
}

func printComplete(start time.Time) {
	fmt.Printf("\ncomplete in %s\n", time.Since(start))
}

func printFail(err error) {
	fmt.Printf("failed to create topics: \n%s\n", err)
}

func toGroupTable(group string) string {
	return string(goka.GroupTable(goka.Group(group)))
}
