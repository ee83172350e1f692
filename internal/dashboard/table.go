// Package dashboard renders backtest output for the terminal.
package dashboard

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"bullscan/internal/domain"
	"bullscan/internal/store"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4")).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	symbolStyle  = cellStyle.Bold(true).Foreground(lipgloss.Color("12"))
	gainStyle    = cellStyle.Foreground(lipgloss.Color("10"))
	lossStyle    = cellStyle.Foreground(lipgloss.Color("9"))
	dimStyle     = cellStyle.Foreground(lipgloss.Color("245"))
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("6")).Padding(0, 1)
	summaryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// resultHeaders are the columns of the terminal result table.
var resultHeaders = []string{"Symbol", "Entry", "Exit", "Reason", "Return", "MaxDD", "Win%", "Sharpe", "Sortino", "BO", "Eng"}

// Column indexes that carry signed percentages.
const (
	colSymbol = 0
	colReason = 3
	colReturn = 4
)

// ResultRows formats results as table rows aligned with resultHeaders.
// Skipped symbols show dashes.
func ResultRows(results []domain.Result) [][]string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		if r.Skipped {
			rows = append(rows, []string{r.Symbol, "-", "-", "skipped", "-", "-", "-", "-", "-", "-", "-"})
			continue
		}
		m, t := r.Metrics, r.Trade
		bo := "no"
		if r.BreakoutDetected {
			bo = "yes"
		}
		rows = append(rows, []string{
			r.Symbol,
			FormatPrice(&t.EntryPrice),
			FormatPrice(t.ExitPrice),
			string(t.ExitReason),
			FormatPct(m.TotalReturnPct),
			fmt.Sprintf("%.2f%%", m.MaxDrawdownPct),
			fmt.Sprintf("%.1f", m.WinRatePct),
			FormatRatio(m.SharpeRatio),
			FormatRatio(m.SortinoRatio),
			bo,
			FormatInt(r.EngulfingCount),
		})
	}
	return rows
}

// RenderResults renders the result table. Returns are coloured by sign and
// skipped rows are dimmed.
func RenderResults(title string, results []domain.Result) string {
	return titleStyle.Render(title) + "\n" + renderResultTable(results)
}

func renderResultTable(results []domain.Result) string {
	rows := ResultRows(results)
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(resultHeaders...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row < 0 || row >= len(results) {
				return cellStyle
			}
			r := results[row]
			switch {
			case r.Skipped:
				return dimStyle
			case col == colSymbol:
				return symbolStyle
			case col == colReturn && r.Metrics.TotalReturnPct > 0:
				return gainStyle
			case col == colReturn && r.Metrics.TotalReturnPct < 0:
				return lossStyle
			case col == colReason && r.Trade.ExitReason == domain.ExitTargetHit:
				return gainStyle
			case col == colReason && r.Trade.ExitReason == domain.ExitStopLoss:
				return lossStyle
			}
			return cellStyle
		})
	return t.Render()
}

// RenderRunSummary is the one-line footer under a run's table.
func RenderRunSummary(run *domain.Run, winners int, elapsed time.Duration) string {
	return summaryStyle.Render(fmt.Sprintf(
		"%s symbols, %s skipped, %s winners, target %+.0f%%, lookback %dd, %s",
		FormatInt(len(run.Results)), FormatInt(len(run.Skipped)), FormatInt(winners),
		run.Params.ReturnTarget*100, run.Params.LookbackDays, elapsed.Round(time.Millisecond),
	))
}

// RenderRuns renders the stored run history.
func RenderRuns(runs []store.RunSummary) string {
	rows := make([][]string, len(runs))
	for i, r := range runs {
		rows[i] = []string{
			fmt.Sprintf("%d", r.ID),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%+.0f%%", r.ReturnTarget*100),
			fmt.Sprintf("%d", r.LookbackDays),
			FormatInt(r.Symbols),
			FormatInt(r.Skipped),
		}
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("Run", "Started", "Target", "Lookback", "Symbols", "Skipped").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return t.Render()
}
