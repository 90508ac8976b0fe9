package bot

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"cashbot/internal/core"
)

// ParsedMessage is what the bot extracted from a free-form chat message.
type ParsedMessage struct {
	Amount      decimal.Decimal
	Description string
	Category    core.Category
	Type        core.TransactionType
}

var amountRe = regexp.MustCompile(`(?:€|\$|₪)?\s*([0-9]+(?:[.,][0-9]{1,2})?)`)

var incomeKeywords = []string{
	"salary", "paycheck", "income", "received", "refund", "bonus", "got paid",
}

// Keyword order matters: the first matching category wins.
var categoryKeywords = []struct {
	category core.Category
	words    []string
}{
	{"Food", []string{"lunch", "dinner", "breakfast", "coffee", "groceries", "restaurant", "pizza", "food", "snack"}},
	{"Transport", []string{"taxi", "uber", "bus", "train", "fuel", "gas", "parking", "metro", "flight"}},
	{"Bills", []string{"rent", "electricity", "electric", "water", "internet", "phone", "bill", "insurance", "mortgage"}},
	{"Entertainment", []string{"movie", "cinema", "concert", "game", "netflix", "spotify", "bar", "drinks"}},
	{"Shopping", []string{"clothes", "shoes", "amazon", "shopping", "gift"}},
	{"Health", []string{"pharmacy", "doctor", "dentist", "gym", "medicine", "clinic"}},
	{"Salary", []string{"salary", "paycheck"}},
}

// Parse extracts a transaction from a chat message like "Lunch 50" or
// "received salary 12000". Returns false when no usable amount is present;
// the caller may then fall back to the LLM parser.
func Parse(text string) (ParsedMessage, bool) {
	text = normalize(text)
	if text == "" {
		return ParsedMessage{}, false
	}

	m := amountRe.FindStringSubmatchIndex(text)
	if m == nil {
		return ParsedMessage{}, false
	}
	amount, err := core.ParseAmount(text[m[2]:m[3]])
	if err != nil {
		return ParsedMessage{}, false
	}

	// Whatever surrounds the amount is the description.
	description := normalize(text[:m[0]] + " " + text[m[1]:])

	typ := core.Expense
	lower := strings.ToLower(text)
	for _, kw := range incomeKeywords {
		if strings.Contains(lower, kw) {
			typ = core.Income
			break
		}
	}

	category := guessCategory(lower, typ)

	if description == "" {
		if typ == core.Income {
			description = "Income"
		} else {
			description = "Expense"
		}
	}

	return ParsedMessage{
		Amount:      amount,
		Description: description,
		Category:    category,
		Type:        typ,
	}, true
}

func guessCategory(lower string, typ core.TransactionType) core.Category {
	if typ == core.Income {
		return "Salary"
	}
	for _, ck := range categoryKeywords {
		for _, w := range ck.words {
			if strings.Contains(lower, w) {
				return ck.category
			}
		}
	}
	return "Other"
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}
