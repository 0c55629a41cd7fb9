package bot

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/finsight/finsight/internal/supabase"
)

const helpText = "/income — show your incomes\n" +
	"/addincome <amount> [frequency] [desc]\n" +
	"/expense — show recent expenses\n" +
	"/addexpense <amount> <category> [note]\n" +
	"/budget — show budgets\n" +
	"/setbudget <category> <limit>\n" +
	"/portfolio — show portfolios\n" +
	"/stats — quick savings/budget heuristics\n" +
	"/link — get dashboard link\n" +
	"/consent — opt-in/out for AI consultant\n" +
	"/export — get CSV of recent transactions\n"

const exportPreviewLines = 10

func (b *Bot) start(_ context.Context, _ string, _ []string) (string, error) {
	dashboard := b.appURL
	if dashboard == "" {
		dashboard = "<dashboard link>"
	}
	return "Welcome to FinSight! I can store your income/expenses and show quick stats.\n" +
		"Use /help to see commands.\n" +
		"For detailed visual advice, open your dashboard: " + dashboard, nil
}

func (b *Bot) help(_ context.Context, _ string, _ []string) (string, error) {
	return helpText, nil
}

func (b *Bot) link(_ context.Context, _ string, _ []string) (string, error) {
	dashboard := b.appURL
	if dashboard == "" {
		dashboard = "<dashboard-url>"
	}
	return "Open your dashboard: " + dashboard, nil
}

func (b *Bot) addIncome(ctx context.Context, sender string, args []string) (string, error) {
	if len(args) < 1 {
		return "Usage: /addincome <amount> [frequency] [description]", nil
	}
	amount, ok := ParseAmount(args[0])
	if !ok {
		return "Could not parse amount. Usage: /addincome 50000 monthly salary", nil
	}

	frequency := "monthly"
	if len(args) > 1 {
		frequency = args[1]
	}
	description := ""
	if len(args) > 2 {
		description = strings.Join(args[2:], " ")
	}

	row := Income{
		TelegramID:  sender,
		Amount:      Amount(amount),
		Frequency:   frequency,
		Description: description,
		CreatedAt:   b.timestamp(),
	}
	if err := b.insert(ctx, TableIncomes, row); err != nil {
		return "", err
	}
	return fmt.Sprintf("Added income %s (%s)", FormatCurrency(amount), frequency), nil
}

func (b *Bot) income(ctx context.Context, sender string, _ []string) (string, error) {
	var rows []Income
	b.selectRows(ctx, TableIncomes, supabase.Query{
		Columns: "amount,frequency,description",
		Filters: []supabase.Filter{supabase.Eq("telegram_id", sender)},
		Limit:   50,
	}, &rows)
	if len(rows) == 0 {
		return "No incomes found. Add one with /addincome <amount> monthly salary", nil
	}

	lines := make([]string, 0, len(rows))
	total := 0.0
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("%s — %s — %s", FormatCurrency(r.Amount.Float()), r.Frequency, r.Description))
		total += r.Amount.Float()
	}
	return "Your incomes:\n" + strings.Join(lines, "\n") +
		"\n\nTotal monthly (approx): " + FormatCurrency(total), nil
}

func (b *Bot) addExpense(ctx context.Context, sender string, args []string) (string, error) {
	if len(args) < 2 {
		return "Usage: /addexpense <amount> <category> [note]", nil
	}
	amount, ok := ParseAmount(args[0])
	if !ok {
		return "Could not parse amount. Usage: /addexpense 250 food lunch", nil
	}

	category := args[1]
	note := ""
	if len(args) > 2 {
		note = strings.Join(args[2:], " ")
	}

	row := Expense{
		TelegramID: sender,
		Amount:     Amount(amount),
		Category:   category,
		Note:       note,
		CreatedAt:  b.timestamp(),
	}
	if err := b.insert(ctx, TableExpenses, row); err != nil {
		return "", err
	}
	return fmt.Sprintf("Added expense %s (%s)", FormatCurrency(amount), category), nil
}

func (b *Bot) expense(ctx context.Context, sender string, _ []string) (string, error) {
	var rows []Expense
	b.selectRows(ctx, TableExpenses, supabase.Query{
		Columns: "amount,category,note,created_at",
		Filters: []supabase.Filter{supabase.Eq("telegram_id", sender)},
		Order:   "created_at.desc",
		Limit:   5,
	}, &rows)
	if len(rows) == 0 {
		return "No expenses recorded. Add one with /addexpense 250 food lunch", nil
	}

	lines := make([]string, 0, len(rows))
	total := 0.0
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("%s — %s — %s", FormatCurrency(r.Amount.Float()), r.Category, r.Note))
		total += r.Amount.Float()
	}
	return "Recent expenses:\n" + strings.Join(lines, "\n") +
		fmt.Sprintf("\n\nTotal (last %d): %s", len(rows), FormatCurrency(total)), nil
}

func (b *Bot) setBudget(ctx context.Context, sender string, args []string) (string, error) {
	if len(args) < 2 {
		return "Usage: /setbudget <category> <monthly_limit>", nil
	}
	category := args[0]
	limit, ok := ParseAmount(args[1])
	if !ok {
		return "Could not parse limit amount. Example: /setbudget food 5000", nil
	}

	row := Budget{
		TelegramID:   sender,
		Category:     category,
		MonthlyLimit: Amount(limit),
		CreatedAt:    b.timestamp(),
	}
	if err := b.insert(ctx, TableBudgets, row); err != nil {
		return "", err
	}
	return fmt.Sprintf("Set budget for %s = %s / month", category, FormatCurrency(limit)), nil
}

func (b *Bot) budget(ctx context.Context, sender string, _ []string) (string, error) {
	var budgets []Budget
	b.selectRows(ctx, TableBudgets, supabase.Query{
		Columns: "category,monthly_limit",
		Filters: []supabase.Filter{supabase.Eq("telegram_id", sender)},
		Limit:   100,
	}, &budgets)
	if len(budgets) == 0 {
		return "No budgets set. Use /setbudget <category> <limit>", nil
	}

	now := b.now().UTC()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	var expenses []Expense
	b.selectRows(ctx, TableExpenses, supabase.Query{
		Columns: "amount,category",
		Filters: []supabase.Filter{
			supabase.Eq("telegram_id", sender),
			supabase.Gte("created_at", monthStart.Format("2006-01-02T15:04:05")),
		},
		Limit: 1000,
	}, &expenses)

	used := make(map[string]float64)
	for _, e := range expenses {
		category := e.Category
		if category == "" {
			category = "other"
		}
		used[category] += e.Amount.Float()
	}

	lines := make([]string, 0, len(budgets))
	for _, bu := range budgets {
		limit := bu.MonthlyLimit.Float()
		spent := used[bu.Category]
		pct := 0
		if limit > 0 {
			pct = int(spent / limit * 100)
		}
		lines = append(lines, fmt.Sprintf("%s: %s used of %s — %d%%",
			bu.Category, FormatCurrency(spent), FormatCurrency(limit), pct))
	}
	return "Budgets:\n" + strings.Join(lines, "\n"), nil
}

func (b *Bot) portfolio(ctx context.Context, sender string, _ []string) (string, error) {
	var rows []Portfolio
	b.selectRows(ctx, TablePortfolios, supabase.Query{
		Columns: "id,name,data",
		Filters: []supabase.Filter{supabase.Eq("telegram_id", sender)},
		Limit:   50,
	}, &rows)
	if len(rows) == 0 {
		return "No portfolios stored. Add via the app dashboard.", nil
	}

	lines := make([]string, 0, len(rows))
	for _, p := range rows {
		name := p.Name
		if name == "" {
			name = "unnamed"
		}
		lines = append(lines, fmt.Sprintf("%s — approx value %s", name, FormatCurrency(p.Value())))
	}
	return "Portfolios:\n" + strings.Join(lines, "\n"), nil
}

func (b *Bot) stats(ctx context.Context, sender string, _ []string) (string, error) {
	var incomes []Income
	b.selectRows(ctx, TableIncomes, supabase.Query{
		Columns: "amount,frequency",
		Filters: []supabase.Filter{supabase.Eq("telegram_id", sender)},
		Limit:   50,
	}, &incomes)

	var expenses []Expense
	b.selectRows(ctx, TableExpenses, supabase.Query{
		Columns: "amount",
		Filters: []supabase.Filter{supabase.Eq("telegram_id", sender)},
		Limit:   1000,
	}, &expenses)

	totalIncome := 0.0
	for _, r := range incomes {
		totalIncome += r.Amount.Float()
	}
	totalExpense := 0.0
	for _, r := range expenses {
		totalExpense += r.Amount.Float()
	}

	if totalIncome == 0 {
		return "No income recorded. Add one with /addincome <amount> monthly salary", nil
	}

	savings := max(totalIncome-totalExpense, 0)
	pct := int(savings / totalIncome * 100)
	return fmt.Sprintf("Estimated savings: %s (%d%% of income). Suggested target: 20%% (50/30/20 heuristic).",
		FormatCurrency(savings), pct), nil
}

func (b *Bot) consent(ctx context.Context, sender string, args []string) (string, error) {
	usage := "Usage: /consent yes|no\nExample: /consent yes (to allow detailed AI advice)"
	if len(args) < 1 {
		return usage, nil
	}

	var consented bool
	switch strings.ToLower(args[0]) {
	case "yes", "y", "1", "true":
		consented = true
	case "no", "n", "0", "false":
		consented = false
	default:
		return usage, nil
	}

	row := Consent{
		TelegramID: sender,
		Consented:  consented,
		Scope:      "ai_advice",
		CreatedAt:  b.timestamp(),
	}
	if err := b.insert(ctx, TableConsents, row); err != nil {
		return "", err
	}
	return "Consent set to: " + strconv.FormatBool(consented), nil
}

func (b *Bot) export(ctx context.Context, sender string, _ []string) (string, error) {
	var expenses []Expense
	b.selectRows(ctx, TableExpenses, supabase.Query{
		Columns: "amount,category,note,created_at",
		Filters: []supabase.Filter{supabase.Eq("telegram_id", sender)},
		Limit:   500,
	}, &expenses)

	var incomes []Income
	b.selectRows(ctx, TableIncomes, supabase.Query{
		Columns: "amount,frequency,description,created_at",
		Filters: []supabase.Filter{supabase.Eq("telegram_id", sender)},
		Limit:   500,
	}, &incomes)

	records := [][]string{{"type", "amount", "category_or_freq", "note_or_desc", "created_at"}}
	for _, e := range expenses {
		records = append(records, []string{"expense", formatRaw(e.Amount), e.Category, e.Note, e.CreatedAt})
	}
	for _, i := range incomes {
		records = append(records, []string{"income", formatRaw(i.Amount), i.Frequency, i.Description, i.CreatedAt})
	}
	if len(records) > exportPreviewLines {
		records = records[:exportPreviewLines]
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return "", fmt.Errorf("write csv: %w", err)
	}

	preview := strings.TrimRight(buf.String(), "\n")
	return "Generated CSV (preview):\n" + preview + "\n\nFull export available on dashboard.", nil
}

func formatRaw(a Amount) string {
	return strconv.FormatFloat(a.Float(), 'f', -1, 64)
}
