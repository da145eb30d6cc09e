package pipeline

import (
	"fmt"
	"strings"
)

const basePrompt = "You are a financial statement parser for bank statements.\n\n" +
	"Task:\n" +
	"- Extract complete bank statement data from the attached statement.\n" +
	"- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n\n" +
	"Each account must include:\n" +
	"- \"account_number\": string\n" +
	"- \"account_name\": string or null\n" +
	"- \"currency\": string, ISO 4217 code (e.g. \"MYR\", \"GBP\") or null\n" +
	"- \"opening_balance\": number or null\n" +
	"- \"closing_balance\": number or null\n" +
	"- \"transactions\": list of all the account's transactions\n\n" +
	"Each transaction must include:\n" +
	"- \"date\": string, as printed on the statement\n" +
	"- \"description\": string\n" +
	"- \"debit\": number if money was withdrawn, otherwise null\n" +
	"- \"credit\": number if money was deposited, otherwise null\n" +
	"- \"balance\": number, the running balance printed on that line, or null\n" +
	"- \"note\": string or null\n\n" +
	"Statement metadata must include \"bank_name\" and \"statement_period\" with \"start_date\" and \"end_date\".\n\n" +
	"JSON OUTPUT STRUCTURE:\n" +
	"{\n" +
	"  \"bank_name\": \"string\",\n" +
	"  \"statement_period\": {\"start_date\": \"string\", \"end_date\": \"string\"},\n" +
	"  \"accounts\": [\n" +
	"    {\n" +
	"      \"account_number\": \"string\",\n" +
	"      \"account_name\": \"string\",\n" +
	"      \"currency\": \"string\",\n" +
	"      \"opening_balance\": number,\n" +
	"      \"closing_balance\": number,\n" +
	"      \"transactions\": [\n" +
	"        {\"date\": \"string\", \"description\": \"string\", \"debit\": number, \"credit\": number, \"balance\": number, \"note\": \"string\"}\n" +
	"      ]\n" +
	"    }\n" +
	"  ]\n" +
	"}\n\n"

const rulesPrompt = "Rules:\n" +
	"- Only one of \"debit\" or \"credit\" can be non-null.\n" +
	"- Copy dates exactly as printed; do not guess a missing year.\n" +
	"- Copy amounts without currency symbols or thousands separators.\n" +
	"- If the statement contains multiple accounts, attribute transactions correctly.\n" +
	"- Keep transactions in the order they appear.\n\n" +
	"Return ONLY valid raw JSON.\n" +
	"Do NOT wrap the response in code fences.\n" +
	"Output must begin with \"{\" and end with \"}\".\n"

// buildStatementPrompt returns the instructions sent with a PDF, or with the
// page text when the PDF already had a text layer.
func buildStatementPrompt(pages []string) string {
	var b strings.Builder
	b.WriteString(basePrompt)
	b.WriteString(rulesPrompt)
	if len(pages) == 0 {
		return b.String()
	}

	b.WriteString("\nExtract from this bank statement:\n")
	for i, p := range pages {
		fmt.Fprintf(&b, "\n--- page %d ---\n", i+1)
		b.WriteString(strings.TrimSpace(p))
		b.WriteString("\n")
	}
	return b.String()
}
