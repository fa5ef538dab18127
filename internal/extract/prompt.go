package extract

import (
	"strings"

	"github.com/dunbot/dunbot/internal/email"
)

// SystemPrompt defines the assistant's role for every extraction call.
const SystemPrompt = `You are an assistant that deals with payment collections. Your role is to extract structured data from email conversations and suggest the next best replies.`

// promptTemplate is the fixed instruction set sent with every thread. The
// discussion placeholder is substituted verbatim; the schema below is what
// the response parser validates against, so the instructions insist on
// machine-parseable JSON and nothing else.
const promptTemplate = `Acting as a helper to a payment collections agent for a B2B company, your task is to get the relevant data out of the email discussion with the customer. The email thread is about unpaid invoices.

Your specific task is to return data per each separate invoice in the thread, indicating what the customer has responded about each invoice's payment status. Produce a JSON-formatted response only.

This is the email conversation between the agent and the customer:
###--DISCUSSION--###

The response must be JSON containing the following keys and values:
{
"summary": "summary of the entire conversation in max 3 sentences",
"account_id": "account id of the customer, typically found in the subject line",
"invoices": "list of JSON objects with the following data for each invoice covered in the discussion: invoice_id, total_value, currency, status (one of 'paid', 'payment_promised', 'dispute', 'request_info', 'waiting_approval' or 'other', see detailed descriptions below), promised_payment_date (the date the customer has indicated the payment will be made, formatted YYYY-MM-DD if status is payment_promised, otherwise an empty string) and summary (a one-sentence invoice-specific summary of what the customer said about this invoice)",
"suggested_reply": "recommend a reply to the customer's last message based on the discussion so far, with the goal of giving the customer the information needed to proceed with the payment(s). Use placeholders for content you don't have available."
}

Description of the statuses:
- paid: customer has indicated that this invoice has already been paid
- payment_promised: customer indicates an intention to pay the invoice at a certain date. Enter the date in promised_payment_date.
- dispute: customer disputes or rejects the invoice for any reason.
- request_info: customer has asked for more information such as a copy of the invoice
- waiting_approval: customer indicates that their business owner or buyer still has to approve the invoice before payment can be scheduled
- other: anything other than the above

Make sure the invoices list contains the correct promised payment date if a specific date is mentioned, or an empty string otherwise.

Give only the properly structured JSON in the response (not code, not comments, not anything else):`

const discussionPlaceholder = "###--DISCUSSION--###"

// BuildPrompt substitutes the thread into the fixed instruction template.
// The subject line and full body are embedded verbatim, no truncation.
func BuildPrompt(t *email.Thread) string {
	var b strings.Builder
	b.WriteString("Subject: ")
	b.WriteString(t.Subject)
	b.WriteString("\n\n")
	b.WriteString(t.Body())
	return strings.Replace(promptTemplate, discussionPlaceholder, b.String(), 1)
}
