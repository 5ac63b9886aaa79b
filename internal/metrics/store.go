package metrics

import (
	"context"
	"database/sql/driver"
	"regexp"
	"strings"
	"time"

	"github.com/ngrok/sqlmw"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	opRegex = regexp.MustCompile(`^\s*(\w+)`)

	storeOpLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "store_op_duration_milliseconds",
		Help:      "Time spent on a job store operation",
		Buckets:   []float64{1, 5, 25, 100, 500, 1000, 5000},
	}, []string{"op", "method"})

	storeOpTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_op_total",
		Help:      "Number of job store operations",
	}, []string{"op"})
)

func init() {
	prometheus.MustRegister(storeOpLatency)
	prometheus.MustRegister(storeOpTotal)
}

// StoreInterceptor records driver level timings for the job store.
type StoreInterceptor struct {
	sqlmw.NullInterceptor
}

func (si *StoreInterceptor) ConnBeginTx(ctx context.Context, conn driver.ConnBeginTx, opts driver.TxOptions) (context.Context, driver.Tx, error) {
	start := time.Now()
	defer si.measure("conn-begin-tx", "conn-begin-tx", start)

	tx, err := conn.BeginTx(ctx, opts)
	return ctx, tx, err
}

func (si *StoreInterceptor) ConnPing(ctx context.Context, conn driver.Pinger) error {
	start := time.Now()
	defer si.measure("conn-ping", "conn-ping", start)

	return conn.Ping(ctx)
}

func (si *StoreInterceptor) ConnExecContext(ctx context.Context, conn driver.ExecerContext, query string, args []driver.NamedValue) (driver.Result, error) {
	start := time.Now()
	defer si.measure("conn-exec-context", queryMethod(query, "conn-exec-context"), start)

	return conn.ExecContext(ctx, query, args)
}

func (si *StoreInterceptor) ConnQueryContext(ctx context.Context, conn driver.QueryerContext, query string, args []driver.NamedValue) (context.Context, driver.Rows, error) {
	start := time.Now()
	defer si.measure("conn-query-context", queryMethod(query, "conn-query-context"), start)

	rows, err := conn.QueryContext(ctx, query, args)
	return ctx, rows, err
}

func (si *StoreInterceptor) StmtExecContext(ctx context.Context, conn driver.StmtExecContext, query string, args []driver.NamedValue) (driver.Result, error) {
	start := time.Now()
	defer si.measure("stmt-exec-context", queryMethod(query, "stmt-exec-context"), start)
	return conn.ExecContext(ctx, args)
}

func (si *StoreInterceptor) StmtQueryContext(ctx context.Context, conn driver.StmtQueryContext, query string, args []driver.NamedValue) (context.Context, driver.Rows, error) {
	start := time.Now()
	defer si.measure("stmt-query-context", queryMethod(query, "stmt-query-context"), start)

	rows, err := conn.QueryContext(ctx, args)
	return ctx, rows, err
}

func (si *StoreInterceptor) TxCommit(ctx context.Context, conn driver.Tx) error {
	start := time.Now()
	defer si.measure("tx-commit", "tx-commit", start)
	return conn.Commit()
}

func (si *StoreInterceptor) TxRollback(ctx context.Context, conn driver.Tx) error {
	start := time.Now()
	defer si.measure("tx-rollback", "tx-rollback", start)
	return conn.Rollback()
}

func (si *StoreInterceptor) measure(op, method string, start time.Time) {
	storeOpTotal.WithLabelValues(op).Inc()
	storeOpLatency.WithLabelValues(op, method).Observe(float64(time.Since(start).Microseconds()) / 1000)
}

// queryMethod returns the lower-cased leading SQL verb, or fallback.
func queryMethod(query, fallback string) string {
	matches := opRegex.FindStringSubmatch(query)
	if len(matches) < 2 {
		return fallback
	}
	return strings.ToLower(matches[1])
}
