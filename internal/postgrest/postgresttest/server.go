// Package postgresttest provides an in-memory stand-in for the tabular REST
// endpoint, good enough for the queries this module issues.
package postgresttest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

type Row = map[string]any

type Server struct {
	URL    string
	APIKey string

	mu       sync.Mutex
	tables   map[string][]Row
	nextID   map[string]int64
	failWith int
	requests []string
}

// New starts a server that is closed when the test ends.
func New(t testing.TB, apiKey string) *Server {
	t.Helper()

	s := &Server{
		APIKey: apiKey,
		tables: make(map[string][]Row),
		nextID: make(map[string]int64),
	}

	r := chi.NewRouter()
	r.Use(s.record, s.authorize)
	r.Get("/rest/v1/{table}", s.handleSelect)
	r.Post("/rest/v1/{table}", s.handleInsert)
	r.Patch("/rest/v1/{table}", s.handleUpdate)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	s.URL = srv.URL

	return s
}

// Seed appends rows, assigning ids to rows that lack one.
func (s *Server) Seed(table string, rows ...Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		s.insertLocked(table, row)
	}
}

func (s *Server) Rows(table string) []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Row, len(s.tables[table]))
	copy(out, s.tables[table])
	return out
}

// FailWith makes every request answer with status. Zero restores normal
// operation.
func (s *Server) FailWith(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = status
}

// Requests lists "METHOD /path?query" for every request received.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.RequestURI())
		fail := s.failWith
		s.mu.Unlock()

		if fail != 0 {
			writeError(w, fail, "forced failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != s.APIKey || r.Header.Get("Authorization") != "Bearer "+s.APIKey {
			writeError(w, http.StatusUnauthorized, "Invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	q := r.URL.Query()

	s.mu.Lock()
	matched, err := filterRows(s.tables[table], q)
	s.mu.Unlock()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if order := q.Get("order"); order != "" {
		sortRows(matched, order)
	}

	total := len(matched)
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		if n < len(matched) {
			matched = matched[:n]
		}
	}

	out := project(matched, q.Get("select"))

	status := http.StatusOK
	if strings.Contains(r.Header.Get("Prefer"), "count=exact") {
		if len(out) == 0 {
			w.Header().Set("Content-Range", fmt.Sprintf("*/%d", total))
		} else {
			w.Header().Set("Content-Range", fmt.Sprintf("0-%d/%d", len(out)-1, total))
		}
		if len(out) < total {
			status = http.StatusPartialContent
		}
	}

	writeJSON(w, status, out)
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var row Row
	if err := json.Unmarshal(body, &row); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	s.mu.Lock()
	created := s.insertLocked(table, row)
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, []Row{created})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	var patch Row
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	matched, err := filterRows(s.tables[table], r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	for _, row := range matched {
		for k, v := range patch {
			row[k] = v
		}
	}

	if !strings.Contains(r.Header.Get("Prefer"), "return=representation") {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, matched)
}

func (s *Server) insertLocked(table string, row Row) Row {
	stored := make(Row, len(row)+2)
	for k, v := range row {
		stored[k] = v
	}

	if id, ok := stored["id"]; ok {
		if f, ok := toFloat(id); ok && int64(f) > s.nextID[table] {
			s.nextID[table] = int64(f)
		}
	} else {
		s.nextID[table]++
		stored["id"] = float64(s.nextID[table])
	}

	if _, ok := stored["created_at"]; !ok {
		stored["created_at"] = time.Now().UTC().Format("2006-01-02T15:04:05.000000Z07:00")
	}

	s.tables[table] = append(s.tables[table], stored)
	return stored
}

var reserved = map[string]bool{"select": true, "order": true, "limit": true, "offset": true}

func filterRows(rows []Row, q url.Values) ([]Row, error) {
	out := make([]Row, 0, len(rows))
rows:
	for _, row := range rows {
		for column, conds := range q {
			if reserved[column] {
				continue
			}
			for _, cond := range conds {
				ok, err := match(row[column], cond)
				if err != nil {
					return nil, err
				}
				if !ok {
					continue rows
				}
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func match(v any, cond string) (bool, error) {
	op, want, found := strings.Cut(cond, ".")
	if !found {
		return false, fmt.Errorf("invalid filter %q", cond)
	}

	switch op {
	case "eq":
		return fmt.Sprint(v) == want, nil
	case "neq":
		return fmt.Sprint(v) != want, nil
	case "gt", "lt", "gte", "lte":
		got, ok := toFloat(v)
		if !ok {
			return false, nil
		}
		w, err := strconv.ParseFloat(want, 64)
		if err != nil {
			return false, fmt.Errorf("invalid numeric filter %q", cond)
		}
		switch op {
		case "gt":
			return got > w, nil
		case "lt":
			return got < w, nil
		case "gte":
			return got >= w, nil
		default:
			return got <= w, nil
		}
	default:
		return false, fmt.Errorf("unsupported operator %q", op)
	}
}

func sortRows(rows []Row, order string) {
	column, dir, _ := strings.Cut(order, ".")
	desc := dir == "desc"

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i][column], rows[j][column]
		if desc {
			return less(b, a)
		}
		return less(a, b)
	})
}

func less(a, b any) bool {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		return fa < fb
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

func project(rows []Row, sel string) []Row {
	out := make([]Row, 0, len(rows))
	if sel == "" || sel == "*" {
		for _, row := range rows {
			out = append(out, row)
		}
		return out
	}

	columns := strings.Split(sel, ",")
	for _, row := range rows {
		p := make(Row, len(columns))
		for _, c := range columns {
			c = strings.TrimSpace(c)
			if v, ok := row[c]; ok {
				p[c] = v
			}
		}
		out = append(out, p)
	}
	return out
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
