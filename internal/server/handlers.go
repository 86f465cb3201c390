package server

import (
	"bytes"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/koustreak/relgen/internal/errs"
	"github.com/koustreak/relgen/internal/relation"
	"github.com/koustreak/relgen/internal/report"
)

type tableSummary struct {
	Table       string `json:"table"`
	Model       string `json:"model"`
	PrimaryKey  string `json:"primary_key,omitempty"`
	ForeignKeys int    `json:"foreign_keys"`
}

type refreshResult struct {
	Tables   int       `json:"tables"`
	LoadedAt time.Time `json:"loaded_at"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		fail(w, err)
		return
	}
	success(w, nil, "ok")
}

func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshots.Get(r.Context())
	if err != nil {
		fail(w, err)
		return
	}

	tables := make([]tableSummary, 0, snap.Len())
	for name, t := range snap.All() {
		tables = append(tables, tableSummary{
			Table:       name,
			Model:       relation.ModelName(name),
			PrimaryKey:  t.PrimaryKey.GetOrZero(),
			ForeignKeys: len(t.ForeignKeys),
		})
	}
	success(w, tables, "")
}

func (s *Server) handleTableRelations(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "table")

	snap, err := s.snapshots.Get(r.Context())
	if err != nil {
		fail(w, err)
		return
	}
	t, ok := snap.Get(name)
	if !ok {
		fail(w, errs.Newf(errs.ErrKindNotFound, "table %q is not in the schema snapshot", name))
		return
	}

	decls, err := relation.Infer(name, snap)
	if err != nil {
		fail(w, err)
		return
	}
	success(w, report.NewTable(name, t, decls), "")
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	format := report.FormatJSON
	if q := r.URL.Query().Get("format"); q != "" {
		f, err := report.ParseFormat(q)
		if err != nil {
			fail(w, err)
			return
		}
		format = f
	}

	snap, err := s.snapshots.Get(r.Context())
	if err != nil {
		fail(w, err)
		return
	}

	meta := s.opts.Meta
	meta.GeneratedAt = time.Now()
	rep, err := report.Generate(r.Context(), snap, s.opts.Workers, meta)
	if err != nil {
		fail(w, err)
		return
	}

	if format == report.FormatJSON {
		success(w, rep, "")
		return
	}

	var buf bytes.Buffer
	if err := report.Encode(&buf, format, rep); err != nil {
		fail(w, err)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshots.Refresh(r.Context())
	if err != nil {
		s.log.Warn().Err(err).Msg("snapshot refresh failed")
		fail(w, err)
		return
	}
	s.log.Info().Int("tables", snap.Len()).Msg("snapshot refreshed")
	success(w, refreshResult{Tables: snap.Len(), LoadedAt: time.Now().UTC()}, "snapshot refreshed")
}
