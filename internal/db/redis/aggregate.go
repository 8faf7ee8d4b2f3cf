package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/corpusq/internal/db"
	"github.com/kailas-cloud/corpusq/internal/domain/search/expr"
)

// Aggregate runs a grouped statistic via FT.AGGREGATE.
func (s *Store) Aggregate(ctx context.Context, q *db.AggregateQuery) (*db.AggregateResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	cmd := s.b().Arbitrary("FT.AGGREGATE").Args(buildAggregateArgs(q)...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		if isRedisErr(err, "unknown index name") || isRedisErr(err, "no such index") {
			return nil, db.ErrIndexNotFound
		}
		return nil, &db.Error{Op: db.OpAggregate, Err: err}
	}

	return parseAggregateResult(raw)
}

// buildAggregateArgs lays the pipeline out in execution order:
// LOAD, APPLY, GROUPBY/REDUCE, FILTER, SORTBY, LIMIT.
func buildAggregateArgs(q *db.AggregateQuery) []string {
	args := []string{q.IndexName, buildQuery(q.Filters)}

	if len(q.Load) > 0 {
		args = append(args, "LOAD", strconv.Itoa(len(q.Load)))
		for _, f := range q.Load {
			args = append(args, "@"+f)
		}
	}

	for _, a := range q.Apply {
		args = append(args, "APPLY", a.Expr, "AS", a.As)
	}

	args = append(args, "GROUPBY", strconv.Itoa(len(q.GroupBy)))
	for _, p := range q.GroupBy {
		args = append(args, "@"+p)
	}
	for _, r := range q.Reducers {
		if r.Field == "" {
			args = append(args, "REDUCE", string(r.Func), "0", "AS", r.As)
			continue
		}
		args = append(args, "REDUCE", string(r.Func), "1", "@"+r.Field, "AS", r.As)
	}

	if q.Having != "" {
		args = append(args, "FILTER", q.Having)
	}

	if len(q.SortBy) > 0 {
		args = append(args, "SORTBY", strconv.Itoa(len(q.SortBy)*2))
		for _, k := range q.SortBy {
			dir := "ASC"
			if k.Desc {
				dir = "DESC"
			}
			args = append(args, "@"+k.Property, dir)
		}
	}

	if q.Limit > 0 {
		args = append(args, "LIMIT", "0", strconv.Itoa(q.Limit))
	}

	return append(args, "DIALECT", "2")
}

// --- Result parsing ---

// parseAggregateResult reads the RESP2 reply: [total, [k1, v1, k2, v2, ...], ...].
func parseAggregateResult(raw []rueidis.RedisMessage) (*db.AggregateResult, error) {
	if len(raw) == 0 {
		return &db.AggregateResult{}, nil
	}
	if _, err := raw[0].AsInt64(); err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}

	rows := make([]map[string]string, 0, len(raw)-1)
	for _, msg := range raw[1:] {
		fields, err := msg.ToArray()
		if err != nil {
			continue
		}
		rows = append(rows, parseFieldPairs(fields))
	}
	return &db.AggregateResult{Rows: rows}, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// --- Query building ---

// buildQuery translates an expression into an FT query string. Conditions are
// intersected; an empty expression matches every document.
func buildQuery(e expr.Expression) string {
	if e.IsEmpty() {
		return "*"
	}

	var parts []string
	if text := strings.TrimSpace(e.Text()); text != "" {
		parts = append(parts, "("+escapeQuery(text)+")")
	}
	for _, cond := range e.Conditions() {
		if c := buildCondition(cond); c != "" {
			parts = append(parts, c)
		}
	}
	if len(parts) == 0 {
		return "*"
	}
	return strings.Join(parts, " ")
}

func buildCondition(cond expr.Condition) string {
	if cond.IsMatch() {
		return buildTagFilter(cond.Key(), cond.AnyOf())
	}
	if cond.IsRange() {
		return buildNumericFilter(cond.Key(), *cond.Range())
	}
	return ""
}

func buildTagFilter(key string, values []string) string {
	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = tagEscaper.Replace(v)
	}
	return fmt.Sprintf("@%s:{%s}", key, strings.Join(escaped, " | "))
}

func buildNumericFilter(key string, r expr.Range) string {
	return fmt.Sprintf("@%s:[%s %s]", key, formatBound(r.GTE()), formatBound(r.LTE()))
}

func formatBound(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// --- Query helpers ---

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	"|", "\\|",
	" ", "\\ ",
)

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

var queryEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	`@`, `\@`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`~`, `\~`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`!`, `\!`,
	`%`, `\%`,
	`^`, `\^`,
	`$`, `\$`,
	`<`, `\<`,
	`>`, `\>`,
	`=`, `\=`,
	`;`, `\;`,
	`+`, `\+`,
)
