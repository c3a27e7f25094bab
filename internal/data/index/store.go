package index

import (
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"pymeta/internal/core/errors"
	"pymeta/internal/engine/parser"
	"pymeta/internal/shared/observability"
	"pymeta/internal/shared/util"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

// Store persists extracted documents keyed by file path so that callers and
// definitions can be joined across files by qualified name.
type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

// Run is one scan or watch session.
type Run struct {
	ID         string
	Root       string
	StartedAt  time.Time
	FinishedAt time.Time
	FileCount  int
}

// CallSite is a call record together with the file it came from.
type CallSite struct {
	Path              string `json:"path" yaml:"path"`
	parser.CallRecord `yaml:",inline"`
}

// Definition locates a declared function or class.
type Definition struct {
	Path          string `json:"path" yaml:"path"`
	Kind          string `json:"kind" yaml:"kind"`
	QualifiedName string `json:"qualified_name" yaml:"qualified_name"`
	StartLine     int    `json:"start_line" yaml:"start_line"`
	EndLine       int    `json:"end_line" yaml:"end_line"`
}

const defaultBusyTimeout = 2 * time.Second

func Open(path string) (*Store, error) {
	return OpenWithBusyTimeout(path, defaultBusyTimeout)
}

// OpenWithBusyTimeout opens the index with a custom lock wait. Non-positive
// values use the default.
func OpenWithBusyTimeout(path string, busyTimeout time.Duration) (*Store, error) {
	if busyTimeout <= 0 {
		busyTimeout = defaultBusyTimeout
	}
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("index path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("index path %q is a directory, expected file", cleanPath)
	}
	if err := util.EnsureParentDir(cleanPath); err != nil {
		return nil, fmt.Errorf("create index directory for %q: %w", cleanPath, err)
	}

	// busy_timeout + WAL reduce lock conflicts during watch-mode churn.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)",
		cleanPath, busyTimeout.Milliseconds())
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite index %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite index %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// BeginRun records a new run and returns its identifier.
func (s *Store) BeginRun(root string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	err := s.withRetry("begin run", func() error {
		_, err := s.db.Exec(`INSERT INTO runs (id, root, started_at_utc) VALUES (?, ?, ?)`,
			id, root, time.Now().UTC().Format(time.RFC3339Nano))
		return err
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) FinishRun(runID string, fileCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withRetry("finish run", func() error {
		res, err := s.db.Exec(`UPDATE runs SET finished_at_utc = ?, file_count = ? WHERE id = ?`,
			time.Now().UTC().Format(time.RFC3339Nano), fileCount, runID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errors.New(errors.CodeNotFound, fmt.Sprintf("run %q not found", runID))
		}
		return nil
	})
}

// Runs lists runs, newest first.
func (s *Store) Runs(limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 20
	}
	var rows *sql.Rows
	err := s.withRetry("load runs", func() error {
		var qErr error
		rows, qErr = s.db.Query(`
SELECT id, root, started_at_utc, finished_at_utc, file_count
FROM runs ORDER BY started_at_utc DESC LIMIT ?`, limit)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		var (
			run                   Run
			startedRaw, finishRaw string
		)
		if err := rows.Scan(&run.ID, &run.Root, &startedRaw, &finishRaw, &run.FileCount); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		if run.StartedAt, err = time.Parse(time.RFC3339Nano, startedRaw); err != nil {
			return nil, fmt.Errorf("parse run start %q: %w", startedRaw, err)
		}
		if finishRaw != "" {
			if run.FinishedAt, err = time.Parse(time.RFC3339Nano, finishRaw); err != nil {
				return nil, fmt.Errorf("parse run finish %q: %w", finishRaw, err)
			}
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

// SaveDocument replaces everything stored for path in one transaction.
func (s *Store) SaveDocument(runID, path, hash string, doc *parser.Document) error {
	if doc == nil {
		return errors.New(errors.CodeValidationError, "document must not be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.withRetry("save document", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if err := writeDocument(tx, runID, path, hash, doc); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return errors.AddContext(err, errors.CtxPath, path)
	}
	observability.IndexWritesTotal.WithLabelValues("save").Inc()
	return nil
}

func writeDocument(tx *sql.Tx, runID, path, hash string, doc *parser.Document) error {
	if _, err := tx.Exec(`DELETE FROM files WHERE path = ?`, path); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT INTO files (path, run_id, sha256, indexed_at_utc) VALUES (?, ?, ?, ?)`,
		path, runID, hash, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return err
	}

	for i, fn := range doc.Functions {
		if _, err := tx.Exec(`
INSERT INTO functions (path, seq, qualified_name, parameters, start_line, end_line, doc_comment, decorators, snippet, is_async)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			path, i, fn.QualifiedName, encodeList(fn.Parameters), fn.StartLine, fn.EndLine,
			nullable(fn.DocComment), encodeList(fn.Decorators), fn.Snippet, fn.IsAsync); err != nil {
			return err
		}
	}
	for i, cls := range doc.Classes {
		if _, err := tx.Exec(`
INSERT INTO classes (path, seq, qualified_name, base_types, start_line, end_line, doc_comment, decorators, snippet)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			path, i, cls.QualifiedName, encodeList(cls.BaseTypes), cls.StartLine, cls.EndLine,
			nullable(cls.DocComment), encodeList(cls.Decorators), cls.Snippet); err != nil {
			return err
		}
	}
	for i, imp := range doc.Imports {
		if _, err := tx.Exec(`
INSERT INTO imports (path, seq, kind, source_module, imported_name, alias, relative_depth, start_line, end_line)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			path, i, string(imp.Kind), nullable(imp.SourceModule), imp.ImportedName, nullable(imp.Alias),
			imp.RelativeDepth, imp.StartLine, imp.EndLine); err != nil {
			return err
		}
	}
	for i, call := range doc.Calls {
		if _, err := tx.Exec(`
INSERT INTO calls (path, seq, caller, callee, start_line, end_line) VALUES (?, ?, ?, ?, ?, ?)`,
			path, i, call.Caller, call.Callee, call.StartLine, call.EndLine); err != nil {
			return err
		}
	}
	return nil
}

// FileHash returns the content hash stored for path.
func (s *Store) FileHash(path string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var hash string
	err := s.withRetry("load file hash", func() error {
		return s.db.QueryRow(`SELECT sha256 FROM files WHERE path = ?`, path).Scan(&hash)
	})
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return hash, true, nil
}

// DeleteFile drops path and all of its records. It reports whether the
// file was indexed.
func (s *Store) DeleteFile(path string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var affected int64
	err := s.withRetry("delete file", func() error {
		res, err := s.db.Exec(`DELETE FROM files WHERE path = ?`, path)
		if err != nil {
			return err
		}
		affected, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return false, err
	}
	if affected > 0 {
		observability.IndexWritesTotal.WithLabelValues("delete").Inc()
	}
	return affected > 0, nil
}

// LoadDocument rebuilds the stored document for path in its original order.
func (s *Store) LoadDocument(path string) (*parser.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	err := s.withRetry("load document", func() error {
		return s.db.QueryRow(`SELECT COUNT(*) FROM files WHERE path = ?`, path).Scan(&exists)
	})
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		de := &errors.DomainError{Code: errors.CodeNotFound, Message: "file is not indexed"}
		return nil, de.WithContext(errors.CtxPath, path)
	}

	doc := &parser.Document{
		Functions: []parser.FunctionRecord{},
		Classes:   []parser.ClassRecord{},
		Imports:   []parser.ImportRecord{},
		Calls:     []parser.CallRecord{},
	}
	if err := s.loadFunctions(path, doc); err != nil {
		return nil, err
	}
	if err := s.loadClasses(path, doc); err != nil {
		return nil, err
	}
	if err := s.loadImports(path, doc); err != nil {
		return nil, err
	}
	if err := s.loadCalls(path, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Store) loadFunctions(path string, doc *parser.Document) error {
	rows, err := s.db.Query(`
SELECT qualified_name, parameters, start_line, end_line, doc_comment, decorators, snippet, is_async
FROM functions WHERE path = ? ORDER BY seq`, path)
	if err != nil {
		return fmt.Errorf("query functions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			fn                parser.FunctionRecord
			params, decorated string
			docComment        sql.NullString
		)
		if err := rows.Scan(&fn.QualifiedName, &params, &fn.StartLine, &fn.EndLine, &docComment, &decorated, &fn.Snippet, &fn.IsAsync); err != nil {
			return fmt.Errorf("scan function row: %w", err)
		}
		if fn.Parameters, err = decodeList(params); err != nil {
			return err
		}
		if fn.Decorators, err = decodeList(decorated); err != nil {
			return err
		}
		fn.DocComment = fromNullable(docComment)
		doc.Functions = append(doc.Functions, fn)
	}
	return rows.Err()
}

func (s *Store) loadClasses(path string, doc *parser.Document) error {
	rows, err := s.db.Query(`
SELECT qualified_name, base_types, start_line, end_line, doc_comment, decorators, snippet
FROM classes WHERE path = ? ORDER BY seq`, path)
	if err != nil {
		return fmt.Errorf("query classes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cls              parser.ClassRecord
			bases, decorated string
			docComment       sql.NullString
		)
		if err := rows.Scan(&cls.QualifiedName, &bases, &cls.StartLine, &cls.EndLine, &docComment, &decorated, &cls.Snippet); err != nil {
			return fmt.Errorf("scan class row: %w", err)
		}
		if cls.BaseTypes, err = decodeList(bases); err != nil {
			return err
		}
		if cls.Decorators, err = decodeList(decorated); err != nil {
			return err
		}
		cls.DocComment = fromNullable(docComment)
		doc.Classes = append(doc.Classes, cls)
	}
	return rows.Err()
}

func (s *Store) loadImports(path string, doc *parser.Document) error {
	rows, err := s.db.Query(`
SELECT kind, source_module, imported_name, alias, relative_depth, start_line, end_line
FROM imports WHERE path = ? ORDER BY seq`, path)
	if err != nil {
		return fmt.Errorf("query imports: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			imp           parser.ImportRecord
			kind          string
			module, alias sql.NullString
		)
		if err := rows.Scan(&kind, &module, &imp.ImportedName, &alias, &imp.RelativeDepth, &imp.StartLine, &imp.EndLine); err != nil {
			return fmt.Errorf("scan import row: %w", err)
		}
		imp.Kind = parser.ImportKind(kind)
		imp.SourceModule = fromNullable(module)
		imp.Alias = fromNullable(alias)
		doc.Imports = append(doc.Imports, imp)
	}
	return rows.Err()
}

func (s *Store) loadCalls(path string, doc *parser.Document) error {
	rows, err := s.db.Query(`
SELECT caller, callee, start_line, end_line FROM calls WHERE path = ? ORDER BY seq`, path)
	if err != nil {
		return fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var call parser.CallRecord
		if err := rows.Scan(&call.Caller, &call.Callee, &call.StartLine, &call.EndLine); err != nil {
			return fmt.Errorf("scan call row: %w", err)
		}
		doc.Calls = append(doc.Calls, call)
	}
	return rows.Err()
}

// Callers returns every recorded call whose callee is exactly callee, or
// whose callee ends with "."+callee (so "helper" matches "self.helper").
func (s *Store) Callers(callee string) ([]CallSite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows *sql.Rows
	err := s.withRetry("query callers", func() error {
		var qErr error
		rows, qErr = s.db.Query(`
SELECT path, caller, callee, start_line, end_line FROM calls
WHERE callee = ? OR callee LIKE ? ESCAPE '\'
ORDER BY path, seq`, callee, "%."+escapeLike(callee))
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sites := make([]CallSite, 0)
	for rows.Next() {
		var site CallSite
		if err := rows.Scan(&site.Path, &site.Caller, &site.Callee, &site.StartLine, &site.EndLine); err != nil {
			return nil, fmt.Errorf("scan call row: %w", err)
		}
		sites = append(sites, site)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate call rows: %w", err)
	}
	return sites, nil
}

// Definitions finds functions and classes declared as qualifiedName.
func (s *Store) Definitions(qualifiedName string) ([]Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows *sql.Rows
	err := s.withRetry("query definitions", func() error {
		var qErr error
		rows, qErr = s.db.Query(`
SELECT path, 'function', qualified_name, start_line, end_line FROM functions WHERE qualified_name = ?
UNION ALL
SELECT path, 'class', qualified_name, start_line, end_line FROM classes WHERE qualified_name = ?
ORDER BY 1, 4`, qualifiedName, qualifiedName)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	defs := make([]Definition, 0)
	for rows.Next() {
		var def Definition
		if err := rows.Scan(&def.Path, &def.Kind, &def.QualifiedName, &def.StartLine, &def.EndLine); err != nil {
			return nil, fmt.Errorf("scan definition row: %w", err)
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate definition rows: %w", err)
	}
	return defs, nil
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func encodeList(values []string) string {
	if values == nil {
		values = []string{}
	}
	data, _ := json.Marshal(values)
	return string(data)
}

func decodeList(raw string) ([]string, error) {
	out := []string{}
	if raw == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("decode list %q: %w", raw, err)
	}
	return out, nil
}

func nullable(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func fromNullable(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}

func escapeLike(value string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(value)
}
