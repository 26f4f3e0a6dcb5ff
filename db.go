package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"go.uber.org/zap"

	"cetcompare/internal/agent"
	"cetcompare/internal/api"
	"cetcompare/internal/compare"
)

// cutoffYears are the admission years with a CSV under cutoff_trends/.
var cutoffYears = []int{2021, 2022, 2023, 2024, 2025}

// searchLimit caps college search results.
const searchLimit = 100

// columnAliases lists, per canonical column, the header names accepted in
// the yearly CSVs. Headers are compared lowercased and trimmed.
var columnAliases = []struct {
	name    string
	aliases []string
	numeric bool
}{
	{"college_code", []string{"college_code", "collegecode", "code", "institute_code"}, false},
	{"college_name", []string{"college_name", "collegename", "name", "institute_name"}, false},
	{"city", []string{"city", "district", "location"}, false},
	{"type", []string{"type", "college_type", "institution_type", "status"}, false},
	{"branch_code", []string{"branch_code", "branchcode", "branch", "course_code"}, false},
	{"branch_name", []string{"branch_name", "branchname", "course_name", "course"}, false},
	{"category", []string{"category", "seat_type", "caste_category"}, false},
	{"closing_percentile", []string{"closing_percentile", "percentile", "closing_percent", "cutoff", "percent"}, true},
	{"closing_rank", []string{"closing_rank", "rank", "cutoff_rank", "merit_rank"}, true},
}

// metricColumns maps a metric onto its column and the per-year aggregate
// that picks the cutoff when a year has several rows (CAP rounds).
var metricColumns = map[compare.Metric]struct{ column, aggregate string }{
	compare.MetricPercentile: {"closing_percentile", "MIN"},
	compare.MetricRank:       {"closing_rank", "MAX"},
}

type DB struct {
	conn    *sql.DB
	dataDir string

	// mu keeps readers off the cutoffs table while it is rebuilt.
	mu       sync.RWMutex
	imported []int
}

// cutoffRow is one aggregated year of a college's series.
type cutoffRow struct {
	College    compare.College
	BranchName string
	Year       int
	Value      float64
}

// TrendsDir is where the yearly cutoff CSVs live.
func TrendsDir(dataDir string) string {
	return filepath.Join(dataDir, "cutoff_trends")
}

func NewDB(dataDir string) (*DB, error) {
	dbPath := filepath.Join(dataDir, "cutoffs.duckdb")

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		if logger != nil {
			logger.Error("Failed to open DuckDB database", zap.Error(err), zap.String("db_path", dbPath))
		}
		return nil, fmt.Errorf("failed to open duckdb: %w", err)
	}

	d := &DB{
		conn:    db,
		dataDir: dataDir,
	}

	if err := d.createChatTables(); err != nil {
		db.Close()
		return nil, err
	}

	if err := d.Reload(); err != nil {
		db.Close()
		if logger != nil {
			logger.Error("Cutoff import failed", zap.Error(err), zap.String("data_dir", dataDir))
		}
		return nil, fmt.Errorf("failed to import cutoff data: %w", err)
	}

	return d, nil
}

// Reload rebuilds the cutoffs table from the yearly CSVs. Missing or
// unreadable years are skipped. The previous table stays visible until the
// rebuilt one replaces it.
func (d *DB) Reload() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	start := time.Now()
	// Each year loads in its own statement outside any transaction, so a
	// failing file cannot abort the others.
	_, err := d.conn.Exec(`
		CREATE OR REPLACE TABLE cutoffs_staging (
			year INTEGER,
			college_code VARCHAR,
			college_name VARCHAR,
			city VARCHAR,
			type VARCHAR,
			branch_code VARCHAR,
			branch_name VARCHAR,
			category_raw VARCHAR,
			category VARCHAR,
			closing_percentile DOUBLE,
			closing_rank DOUBLE
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create staging table: %w", err)
	}
	defer func() {
		if _, err := d.conn.Exec(`DROP TABLE IF EXISTS cutoffs_staging`); err != nil && logger != nil {
			logger.Warn("Failed to drop staging table", zap.Error(err))
		}
	}()

	var imported []int
	for _, year := range cutoffYears {
		path := filepath.Join(TrendsDir(d.dataDir), fmt.Sprintf("%d.csv", year))
		if _, err := os.Stat(path); err != nil {
			if logger != nil {
				logger.Warn("Cutoff file missing", zap.Int("year", year), zap.String("path", path))
			}
			continue
		}

		n, err := importYear(d.conn, year, path)
		if err != nil {
			if logger != nil {
				logger.Warn("Skipping cutoff file", zap.Int("year", year), zap.Error(err))
			}
			continue
		}
		imported = append(imported, year)
		if logger != nil {
			logger.Info("Loaded cutoff file", zap.Int("year", year), zap.Int64("rows", n))
		}
	}

	if len(imported) == 0 {
		return fmt.Errorf("no cutoff files found in %s", TrendsDir(d.dataDir))
	}

	if err := canonicalizeCategories(d.conn); err != nil {
		return err
	}

	if _, err := d.conn.Exec(`CREATE OR REPLACE TABLE cutoffs AS SELECT * FROM cutoffs_staging`); err != nil {
		return fmt.Errorf("failed to replace cutoffs table: %w", err)
	}
	d.imported = imported
	if logger != nil {
		logger.Info("Cutoff data ready", zap.Ints("years", imported), zap.Duration("elapsed", time.Since(start)))
	}
	return nil
}

func csvSource(path string) string {
	return fmt.Sprintf("read_csv('%s', all_varchar=true, header=true)", strings.ReplaceAll(path, "'", "''"))
}

// importYear appends one CSV to the staging table, mapping its headers
// onto the canonical columns.
func importYear(conn *sql.DB, year int, path string) (int64, error) {
	rows, err := conn.Query("SELECT * FROM " + csvSource(path) + " LIMIT 0")
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	headers, err := rows.Columns()
	rows.Close()
	if err != nil {
		return 0, fmt.Errorf("failed to read headers of %s: %w", path, err)
	}

	mapping := resolveColumns(headers)
	for _, required := range []string{"college_code", "branch_code"} {
		if _, ok := mapping[required]; !ok {
			return 0, fmt.Errorf("%s has no %s column (headers: %s)", filepath.Base(path), required, strings.Join(headers, ", "))
		}
	}
	_, hasPercentile := mapping["closing_percentile"]
	_, hasRank := mapping["closing_rank"]
	if !hasPercentile && !hasRank {
		return 0, fmt.Errorf("%s has neither a percentile nor a rank column", filepath.Base(path))
	}

	exprs := []string{fmt.Sprintf("%d", year)}
	for _, col := range columnAliases {
		src, ok := mapping[col.name]
		switch {
		case !ok && col.name == "category":
			exprs = append(exprs, "NULL", "NULL")
		case !ok:
			exprs = append(exprs, "NULL")
		case col.numeric:
			exprs = append(exprs, fmt.Sprintf("TRY_CAST(NULLIF(TRIM(%s), '') AS DOUBLE)", quoteIdent(src)))
		case col.name == "category":
			exprs = append(exprs, fmt.Sprintf("NULLIF(TRIM(%s), '')", quoteIdent(src)), "NULL")
		default:
			exprs = append(exprs, fmt.Sprintf("NULLIF(TRIM(%s), '')", quoteIdent(src)))
		}
	}

	res, err := conn.Exec(fmt.Sprintf(`
		INSERT INTO cutoffs_staging (year, college_code, college_name, city, type, branch_code, branch_name,
			category_raw, category, closing_percentile, closing_rank)
		SELECT %s FROM %s
	`, strings.Join(exprs, ", "), csvSource(path)))
	if err != nil {
		return 0, fmt.Errorf("failed to load %s: %w", path, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// resolveColumns maps canonical column names onto the CSV's own headers.
func resolveColumns(headers []string) map[string]string {
	byNormalized := make(map[string]string, len(headers))
	for _, h := range headers {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, seen := byNormalized[key]; !seen {
			byNormalized[key] = h
		}
	}

	mapping := map[string]string{}
	for _, col := range columnAliases {
		for _, alias := range col.aliases {
			if h, ok := byNormalized[alias]; ok {
				mapping[col.name] = h
				break
			}
		}
	}
	return mapping
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// canonicalizeCategories fills the staged category column from
// category_raw. Rows without a category are treated as OPEN.
func canonicalizeCategories(conn *sql.DB) error {
	rows, err := conn.Query(`SELECT DISTINCT category_raw FROM cutoffs_staging WHERE category_raw IS NOT NULL`)
	if err != nil {
		return fmt.Errorf("failed to list categories: %w", err)
	}
	var raws []string
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan category: %w", err)
		}
		raws = append(raws, raw)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to list categories: %w", err)
	}

	for _, raw := range raws {
		cat, ok := compare.CanonicalCategory(raw)
		if !ok {
			continue
		}
		if _, err := conn.Exec(`UPDATE cutoffs_staging SET category = ? WHERE category_raw = ?`, string(cat), raw); err != nil {
			return fmt.Errorf("failed to map category %s: %w", raw, err)
		}
	}

	if _, err := conn.Exec(`UPDATE cutoffs_staging SET category = ? WHERE category_raw IS NULL`, string(compare.CategoryOpen)); err != nil {
		return fmt.Errorf("failed to default categories: %w", err)
	}
	return nil
}

// createChatTables creates the conversation history table
func (d *DB) createChatTables() error {
	_, err := d.conn.Exec(`
		CREATE SEQUENCE IF NOT EXISTS chat_history_seq;
		CREATE TABLE IF NOT EXISTS chat_history (
			id BIGINT DEFAULT nextval('chat_history_seq'),
			conversation_id VARCHAR,
			user_message TEXT,
			bot_message TEXT,
			service VARCHAR,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		if logger != nil {
			logger.Error("Failed to create chat_history table", zap.Error(err))
		}
		return fmt.Errorf("failed to create chat_history table: %w", err)
	}
	return nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

// Years returns the years imported by the last reload.
func (d *DB) Years() []int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]int(nil), d.imported...)
}

// SearchColleges returns distinct colleges whose name or city contains
// query, case-insensitively. An empty query lists every college.
func (d *DB) SearchColleges(query string, limit int) ([]compare.College, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if limit <= 0 || limit > searchLimit {
		limit = searchLimit
	}

	sqlQuery := `
		SELECT college_code, college_name, city, type FROM (
			SELECT college_code,
			       COALESCE(MAX(college_name), 'Unknown College') AS college_name,
			       COALESCE(MAX(city), 'Unknown City') AS city,
			       COALESCE(MAX(type), 'Unknown Type') AS type
			FROM cutoffs
			WHERE college_code IS NOT NULL
			GROUP BY college_code
		) c`
	var args []any
	if q := strings.ToLower(strings.TrimSpace(query)); q != "" {
		sqlQuery += ` WHERE contains(lower(c.college_name), ?) OR contains(lower(c.city), ?)`
		args = append(args, q, q)
	}
	sqlQuery += fmt.Sprintf(` ORDER BY c.college_name, c.college_code LIMIT %d`, limit)

	rows, err := d.conn.Query(sqlQuery, args...)
	if err != nil {
		if logger != nil {
			logger.Error("College search failed", zap.Error(err), zap.String("query", query))
		}
		return nil, fmt.Errorf("failed to search colleges: %w", err)
	}
	defer rows.Close()

	colleges := []compare.College{}
	for rows.Next() {
		var c compare.College
		if err := rows.Scan(&c.Code, &c.Name, &c.City, &c.Type); err != nil {
			return nil, fmt.Errorf("failed to scan college: %w", err)
		}
		colleges = append(colleges, c)
	}
	return colleges, rows.Err()
}

// BranchesForColleges returns the union of branches offered by the colleges.
func (d *DB) BranchesForColleges(codes []string) ([]compare.Branch, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if len(codes) == 0 {
		return []compare.Branch{}, nil
	}

	placeholders, args := inClause(codes)
	rows, err := d.conn.Query(fmt.Sprintf(`
		SELECT branch_code, COALESCE(MAX(branch_name), branch_code) AS branch_name
		FROM cutoffs
		WHERE college_code IN (%s) AND branch_code IS NOT NULL
		GROUP BY branch_code
		ORDER BY branch_name, branch_code
	`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load branches: %w", err)
	}
	defer rows.Close()

	branches := []compare.Branch{}
	for rows.Next() {
		var b compare.Branch
		if err := rows.Scan(&b.Code, &b.Name); err != nil {
			return nil, fmt.Errorf("failed to scan branch: %w", err)
		}
		branches = append(branches, b)
	}
	return branches, rows.Err()
}

// CutoffSeries returns one row per college and year for the branch and
// category, ordered by college and year. Years without a value are left out.
func (d *DB) CutoffSeries(codes []string, branch string, category compare.Category, metric compare.Metric) ([]cutoffRow, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	m, ok := metricColumns[metric]
	if !ok {
		return nil, fmt.Errorf("unsupported metric %q", metric)
	}
	if len(codes) == 0 {
		return nil, nil
	}

	placeholders, args := inClause(codes)
	args = append(args, branch, string(category))
	rows, err := d.conn.Query(fmt.Sprintf(`
		SELECT college_code,
		       MAX(college_name), MAX(city), MAX(type), MAX(branch_name),
		       year, %s(%s) AS value
		FROM cutoffs
		WHERE college_code IN (%s) AND branch_code = ? AND category = ? AND %s IS NOT NULL
		GROUP BY college_code, year
		ORDER BY college_code, year
	`, m.aggregate, m.column, placeholders, m.column), args...)
	if err != nil {
		if logger != nil {
			logger.Error("Cutoff query failed", zap.Error(err), zap.Strings("colleges", codes), zap.String("branch", branch))
		}
		return nil, fmt.Errorf("failed to query cutoffs: %w", err)
	}
	defer rows.Close()

	var out []cutoffRow
	for rows.Next() {
		var (
			r                             cutoffRow
			name, city, kind, branchName sql.NullString
		)
		if err := rows.Scan(&r.College.Code, &name, &city, &kind, &branchName, &r.Year, &r.Value); err != nil {
			return nil, fmt.Errorf("failed to scan cutoff: %w", err)
		}
		r.College.Name = nullOr(name, "Unknown College")
		r.College.City = nullOr(city, "Unknown City")
		r.College.Type = nullOr(kind, "Unknown Type")
		r.BranchName = nullOr(branchName, branch)
		out = append(out, r)
	}
	return out, rows.Err()
}

// DataStats summarizes the loaded dataset.
func (d *DB) DataStats() (*api.DataStats, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	stats := &api.DataStats{YearsAvailable: []int{}}
	err := d.conn.QueryRow(`
		SELECT COUNT(*), COUNT(DISTINCT college_code), COUNT(DISTINCT branch_code) FROM cutoffs
	`).Scan(&stats.TotalRecords, &stats.TotalColleges, &stats.TotalBranches)
	if err != nil {
		return nil, fmt.Errorf("failed to count cutoffs: %w", err)
	}

	rows, err := d.conn.Query(`SELECT DISTINCT year FROM cutoffs ORDER BY year`)
	if err != nil {
		return nil, fmt.Errorf("failed to list years: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, fmt.Errorf("failed to scan year: %w", err)
		}
		stats.YearsAvailable = append(stats.YearsAvailable, y)
	}
	return stats, rows.Err()
}

// ExecuteQuery runs an arbitrary read query and returns rows as maps.
func (d *DB) ExecuteQuery(query string) ([]map[string]interface{}, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var results []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// TableSchema describes the columns of a table.
func (d *DB) TableSchema(table string) ([]map[string]interface{}, error) {
	if table == "" {
		return nil, errors.New("table name is required")
	}
	return d.ExecuteQuery(fmt.Sprintf("DESCRIBE %s", quoteIdent(table)))
}

// SaveChatExchange records one answered question.
func (d *DB) SaveChatExchange(conversationID, userMessage, botMessage, service string) error {
	_, err := d.conn.Exec(`
		INSERT INTO chat_history (conversation_id, user_message, bot_message, service)
		VALUES (?, ?, ?, ?)
	`, conversationID, userMessage, botMessage, service)
	if err != nil {
		return fmt.Errorf("failed to save chat exchange: %w", err)
	}
	return nil
}

// LoadChatHistory returns up to limit of the latest exchanges, oldest first.
func (d *DB) LoadChatHistory(conversationID string, limit int) ([]agent.Exchange, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := d.conn.Query(fmt.Sprintf(`
		SELECT user_message, bot_message FROM chat_history
		WHERE conversation_id = ?
		ORDER BY id DESC
		LIMIT %d
	`, limit), conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}
	defer rows.Close()

	var history []agent.Exchange
	for rows.Next() {
		var ex agent.Exchange
		if err := rows.Scan(&ex.User, &ex.Bot); err != nil {
			return nil, fmt.Errorf("failed to scan chat exchange: %w", err)
		}
		history = append(history, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(history)-1; i < j; i, j = i+1, j-1 {
		history[i], history[j] = history[j], history[i]
	}
	return history, nil
}

// ClearChatHistory deletes a conversation and reports how many exchanges it had.
func (d *DB) ClearChatHistory(conversationID string) (int64, error) {
	res, err := d.conn.Exec(`DELETE FROM chat_history WHERE conversation_id = ?`, conversationID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear chat history: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func inClause(values []string) (string, []any) {
	placeholders := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		placeholders[i] = "?"
		args[i] = v
	}
	return strings.Join(placeholders, ", "), args
}

func nullOr(s sql.NullString, fallback string) string {
	if s.Valid && s.String != "" {
		return s.String
	}
	return fallback
}
