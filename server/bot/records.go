package bot

import "encoding/json"

// Supabase table names
const (
	TableMessages   = "messages"
	TableIncomes    = "incomes"
	TableExpenses   = "expenses"
	TableBudgets    = "budgets"
	TablePortfolios = "portfolios"
	TableConsents   = "consents"
)

// MessageRecord mirrors an inbound update into the messages table
type MessageRecord struct {
	Platform  string          `json:"platform"`
	Sender    string          `json:"sender"`
	Username  string          `json:"username"`
	Text      string          `json:"text"`
	Raw       json.RawMessage `json:"raw"`
	CreatedAt string          `json:"created_at"`
}

// Income is a row of the incomes table
type Income struct {
	TelegramID  string `json:"telegram_id,omitempty"`
	Amount      Amount `json:"amount"`
	Frequency   string `json:"frequency"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// Expense is a row of the expenses table
type Expense struct {
	TelegramID string `json:"telegram_id,omitempty"`
	Amount     Amount `json:"amount"`
	Category   string `json:"category"`
	Note       string `json:"note"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// Budget is a row of the budgets table
type Budget struct {
	TelegramID   string `json:"telegram_id,omitempty"`
	Category     string `json:"category"`
	MonthlyLimit Amount `json:"monthly_limit"`
	CreatedAt    string `json:"created_at,omitempty"`
}

// Consent is a row of the consents table
type Consent struct {
	TelegramID string `json:"telegram_id"`
	Consented  bool   `json:"consented"`
	Scope      string `json:"scope"`
	CreatedAt  string `json:"created_at"`
}

// Portfolio is a row of the portfolios table; Data is free-form JSON
type Portfolio struct {
	ID   json.RawMessage `json:"id"`
	Name string          `json:"name"`
	Data json.RawMessage `json:"data"`
}

// Value sums data.holdings[].value when data has that shape
func (p Portfolio) Value() float64 {
	var data struct {
		Holdings []struct {
			Value Amount `json:"value"`
		} `json:"holdings"`
	}
	if err := json.Unmarshal(p.Data, &data); err != nil {
		return 0
	}

	total := 0.0
	for _, h := range data.Holdings {
		total += h.Value.Float()
	}
	return total
}
