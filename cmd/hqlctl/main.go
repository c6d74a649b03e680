// Command hqlctl runs one HQL statement against a namespace and prints the
// result.
//
//	hqlctl -config hqlctl.toml -ns /test "SELECT * FROM t"
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"hqlrpc/client"
	"hqlrpc/config"
	"hqlrpc/hql"
	"hqlrpc/loadbalance"
	"hqlrpc/middleware"
	"hqlrpc/observability"
	"hqlrpc/registry"
	"hqlrpc/transport"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("hqlctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to a TOML config file")
	namespace := fs.String("ns", "/", "namespace to open")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	statement := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if statement == "" {
		fmt.Fprintln(stderr, "hqlctl: missing HQL statement")
		fs.Usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "hqlctl: %v\n", err)
		return 1
	}
	logger := observability.InitLogger("hqlctl", cfg.LogLevel)
	observability.RegisterMetrics()

	pool, closeFn, err := newPool(cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "hqlctl: %v\n", err)
		return 1
	}
	defer closeFn()

	if err := query(context.Background(), pool, *namespace, statement, stdout); err != nil {
		var ce *hql.ClientException
		if errors.As(err, &ce) {
			fmt.Fprintf(stderr, "hqlctl: error %d: %s\n", ce.Code, ce.Message)
		} else {
			fmt.Fprintf(stderr, "hqlctl: %v\n", err)
		}
		return 1
	}
	return 0
}

// newPool wires the configured discovery, transport and middleware into a
// client pool. The returned function releases everything.
func newPool(cfg config.Config, logger zerolog.Logger) (*hql.Pool, func(), error) {
	balancer, err := loadbalance.New(cfg.Balancer)
	if err != nil {
		return nil, nil, err
	}
	dialer := &transport.Dialer{
		Addr:        cfg.Addr,
		Service:     cfg.Service,
		Balancer:    balancer,
		AffinityKey: cfg.AffinityKey,
		Timeout:     cfg.DialTimeout,
		Attempts:    cfg.DialAttempts,
		Backoff:     transport.DefaultBackoff,
		Wrap:        cfg.Wrap(),
		Logger:      logger,
	}

	var reg registry.Registry
	if cfg.Addr == "" {
		etcd, err := registry.NewEtcd(cfg.EtcdEndpoints, cfg.DialTimeout)
		if err != nil {
			return nil, nil, fmt.Errorf("connect etcd: %w", err)
		}
		reg = etcd
		dialer.Registry = reg
	}

	mws := []client.Middleware{middleware.Logging(logger), middleware.Metrics()}
	if cfg.RateLimit > 0 {
		mws = append(mws, middleware.RateLimit(cfg.RateLimit, cfg.RateBurst))
	}
	if cfg.CallTimeout > 0 {
		mws = append(mws, middleware.Timeout(cfg.CallTimeout))
	}

	pool := hql.NewPool(cfg.PoolSize, dialer.Dial,
		client.WithAccelerated(cfg.Accelerated),
		client.WithProtocolOptions(cfg.ProtocolOptions()),
		client.WithLogger(logger),
		client.WithMiddleware(middleware.Chain(mws...)),
	)
	closeFn := func() {
		pool.Close()
		if reg != nil {
			reg.Close()
		}
	}
	return pool, closeFn, nil
}

func query(ctx context.Context, pool *hql.Pool, namespace, statement string, out io.Writer) error {
	return pool.Do(ctx, func(c *hql.Client) error {
		ns, err := c.NamespaceOpen(ctx, namespace)
		if err != nil {
			return err
		}
		res, qerr := c.HqlQuery(ctx, ns, statement)
		if qerr == nil {
			printResult(out, res)
		}
		// Close even after a failed query, unless the connection itself broke.
		if qerr != nil && client.KindOf(qerr) != client.KindDeclared {
			return qerr
		}
		if err := c.NamespaceClose(ctx, ns); err != nil && qerr == nil {
			return err
		}
		return qerr
	})
}

func printResult(out io.Writer, res *hql.HqlResult) {
	for _, line := range res.Results.OrElse(nil) {
		fmt.Fprintln(out, line)
	}
	for _, cell := range res.Cells.OrElse(nil) {
		key := cell.Key.OrElse(&hql.Key{})
		column := key.ColumnFamily.OrElse("")
		if q := key.ColumnQualifier.OrElse(""); q != "" {
			column += ":" + q
		}
		ts := ""
		if v, ok := key.Timestamp.Get(); ok {
			ts = time.Unix(0, v).UTC().Format(time.RFC3339Nano) + "\t"
		}
		fmt.Fprintf(out, "%s%s\t%s\t%s\n", ts, key.Row.OrElse(""), column, cell.Value.OrElse(""))
	}
}
