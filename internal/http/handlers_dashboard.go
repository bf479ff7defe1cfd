package http

import (
	"bytes"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"tally/internal/core"
	tlog "tally/internal/log"
	"tally/internal/present"
	"tally/internal/services"
)

type option struct {
	Value string
	Label string
}

type filterView struct {
	Type   string
	Method string
	Query  string
	From   string
	To     string
}

// dashboardView is the data of the "dashboard" partial.
type dashboardView struct {
	Seq          uint64
	Warning      string
	Filter       filterView
	KPIs         []present.KPI
	Methods      []present.MethodRow
	Transactions []present.TransactionRow
	Balances     []present.BalanceRow
	LatestMoney  string
	LoadedAt     string
}

type pageData struct {
	Email    string
	Today    string
	Currency string
	Types    []option
	Methods  []option
	Kinds    []option
	View     dashboardView
}

var (
	typeOptions = []option{
		{Value: string(core.Income), Label: "Income"},
		{Value: string(core.Expense), Label: "Expense"},
	}
	kindOptions = []option{
		{Value: string(core.KindCash), Label: "Cash"},
		{Value: string(core.KindBank), Label: "Bank"},
	}
)

func methodOptions() []option {
	methods := core.Methods()
	opts := make([]option, len(methods))
	for i, m := range methods {
		opts[i] = option{Value: string(m), Label: m.Label()}
	}
	return opts
}

func newFilterView(f core.Filter) filterView {
	v := filterView{Type: string(f.Type), Method: string(f.Method), Query: f.Query}
	if v.Type == "" {
		v.Type = core.All
	}
	if v.Method == "" {
		v.Method = core.All
	}
	if !f.From.IsZero() {
		v.From = f.From.String()
	}
	if !f.To.IsZero() {
		v.To = f.To.String()
	}
	return v
}

func (s *Server) dashboardView(d services.Dashboard, f core.Filter, seq uint64, loadErr error) dashboardView {
	v := dashboardView{
		Seq:          seq,
		Filter:       newFilterView(f),
		KPIs:         s.formatter.KPIs(d.Totals),
		Methods:      s.formatter.MethodRows(d.Totals),
		Transactions: s.formatter.TransactionRows(d.Transactions),
		Balances:     s.formatter.BalanceRows(d.Balances, s.loc),
		LatestMoney:  s.formatter.Money(d.Totals.LatestMoney),
	}
	if !d.LoadedAt.IsZero() {
		v.LoadedAt = d.LoadedAt.In(s.loc).Format(present.TimeLayout)
	}
	if loadErr != nil {
		v.Warning = "Could not load data: " + loadErr.Error()
	}
	return v
}

// refresh runs one sequenced load for the requesting user.
func (s *Server) refresh(r *http.Request, f core.Filter, requested uint64) (dashboardView, error) {
	id := owner(r)
	d, seq, err := s.sessions.For(id.ID).Refresh(r.Context(), s.loader, id.ID, requested, f)
	if errors.Is(err, services.ErrSuperseded) {
		atomic.AddInt64(&s.appMetrics.supersededRefreshes, 1)
		return dashboardView{}, err
	}
	if err != nil {
		atomic.AddInt64(&s.appMetrics.loadFailures, 1)
		s.structured.LogError(r.Context(), "Dashboard load failed", err, tlog.ComponentLedger, tlog.OpList,
			tlog.NewFields().WithRequestID(requestID(r)))
	}
	return s.dashboardView(d, f, seq, err), nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded",
			tlog.FieldPath, r.URL.Path,
			tlog.FieldComponent, tlog.ComponentTemplate)
		InternalServerError("templates not loaded").Write(w)
		return
	}

	f, _ := ParseFilterParams(r.URL.Query())
	view, err := s.refresh(r, f, 0)
	if err != nil {
		// A newer refresh won the race; show what it applied.
		d, seq := s.sessions.For(owner(r).ID).Current()
		view = s.dashboardView(d, f, seq, nil)
	}

	data := pageData{
		Email:    owner(r).Email,
		Today:    time.Now().In(s.loc).Format(core.DateLayout),
		Currency: s.formatter.Symbol,
		Types:    typeOptions,
		Methods:  methodOptions(),
		Kinds:    kindOptions,
		View:     view,
	}
	s.render(w, r, "index.html", data)
}

// handleDashboard renders the KPI and tables partial. Out-of-order refreshes
// answer 204 so the client keeps the newer content.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	f, seq := ParseFilterParams(r.URL.Query())
	view, err := s.refresh(r, f, seq)
	if errors.Is(err, services.ErrSuperseded) {
		s.logger.DebugContext(r.Context(), "Dashboard refresh superseded", "seq", seq)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.render(w, r, "dashboard", view)
}

// render buffers the template output and writes it only on success.
func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		InternalServerError("templates not loaded").Write(w)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.structured.LogError(r.Context(), "Template execution failed", err, tlog.ComponentTemplate, tlog.OpRender,
			tlog.NewFields().WithRequestID(requestID(r)))
		InternalServerError("Error rendering page").Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
