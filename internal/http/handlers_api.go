package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/core"
	tlog "tally/internal/log"
	"tally/internal/present"
	"tally/internal/reconcile"
	"tally/internal/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type (
	methodTotalsJSON struct {
		Method  core.Method     `json:"method"`
		Income  decimal.Decimal `json:"income"`
		Expense decimal.Decimal `json:"expense"`
		Net     decimal.Decimal `json:"net"`
	}

	totalsJSON struct {
		Income       decimal.Decimal    `json:"income"`
		Expense      decimal.Decimal    `json:"expense"`
		Net          decimal.Decimal    `json:"net"`
		CurrentMoney decimal.Decimal    `json:"currentMoney"`
		Gap          decimal.Decimal    `json:"gap"`
		LatestMoney  decimal.Decimal    `json:"latestMoney"`
		ByMethod     []methodTotalsJSON `json:"byMethod"`
	}

	transactionJSON struct {
		ID       string          `json:"id"`
		Date     string          `json:"date"`
		Type     core.TxType     `json:"type"`
		Category string          `json:"category,omitempty"`
		Method   core.Method     `json:"method"`
		Amount   decimal.Decimal `json:"amount"`
		Notes    string          `json:"notes,omitempty"`
	}

	balanceJSON struct {
		ID        string           `json:"id"`
		Label     string           `json:"label"`
		Kind      core.BalanceKind `json:"kind"`
		Balance   decimal.Decimal  `json:"balance"`
		UpdatedAt time.Time        `json:"updatedAt"`
	}
)

func newTotalsJSON(t reconcile.Totals) totalsJSON {
	out := totalsJSON{
		Income:       t.Income,
		Expense:      t.Expense,
		Net:          t.Net,
		CurrentMoney: t.CurrentMoney,
		Gap:          t.Gap,
		LatestMoney:  t.LatestMoney,
		ByMethod:     make([]methodTotalsJSON, len(t.ByMethod)),
	}
	for i, m := range t.ByMethod {
		out.ByMethod[i] = methodTotalsJSON{Method: m.Method, Income: m.Income, Expense: m.Expense, Net: m.Net()}
	}
	return out
}

// load runs an unsequenced load for the JSON and export endpoints.
func (s *Server) load(w http.ResponseWriter, r *http.Request) (services.Dashboard, bool) {
	f, _ := ParseFilterParams(r.URL.Query())
	d, err := s.loader.Load(r.Context(), owner(r).ID, f)
	if err != nil {
		s.structured.LogError(r.Context(), "Dashboard load failed", err, tlog.ComponentLedger, tlog.OpList,
			tlog.NewFields().WithRequestID(requestID(r)))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return services.Dashboard{}, false
	}
	return d, true
}

func (s *Server) handleAPITotals(w http.ResponseWriter, r *http.Request) {
	d, ok := s.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newTotalsJSON(d.Totals))
}

func (s *Server) handleAPITransactions(w http.ResponseWriter, r *http.Request) {
	d, ok := s.load(w, r)
	if !ok {
		return
	}
	out := make([]transactionJSON, len(d.Transactions))
	for i, tx := range d.Transactions {
		out[i] = transactionJSON{
			ID:       tx.ID,
			Date:     tx.Date.String(),
			Type:     tx.Type,
			Category: tx.Category,
			Method:   tx.Method,
			Amount:   tx.Amount,
			Notes:    tx.Notes,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAPIBalances(w http.ResponseWriter, r *http.Request) {
	d, ok := s.load(w, r)
	if !ok {
		return
	}
	out := make([]balanceJSON, len(d.Balances))
	for i, b := range d.Balances {
		out[i] = balanceJSON{ID: b.ID, Label: b.Label, Kind: b.Kind, Balance: b.Balance, UpdatedAt: b.UpdatedAt.UTC()}
	}
	writeJSON(w, http.StatusOK, out)
}

// handleExport streams the filtered transactions, every balance snapshot and
// the totals as an XLSX workbook.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	d, ok := s.load(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := present.WriteWorkbook(&buf, d.Transactions, d.Balances, d.Totals); err != nil {
		s.structured.LogError(r.Context(), "Export failed", err, tlog.ComponentLedger, tlog.OpExport,
			tlog.NewFields().WithRequestID(requestID(r)))
		InternalServerError("Export failed").Write(w)
		return
	}
	name := "tally-" + time.Now().In(s.loc).Format(core.DateLayout) + ".xlsx"
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
