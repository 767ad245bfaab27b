// Package billing defines the bill extraction data model and the
// validation/reconciliation pass applied to model output.
package billing

import "strings"

// BillItem is a single billed line on a bill page.
type BillItem struct {
	ItemName     string  `json:"item_name"`
	ItemAmount   float64 `json:"item_amount"`
	ItemRate     float64 `json:"item_rate"`
	ItemQuantity float64 `json:"item_quantity"`
}

// NormalizedName returns the dedup identity form of the item name:
// lowercased with whitespace runs collapsed to a single space.
func (b BillItem) NormalizedName() string {
	return strings.Join(strings.Fields(strings.ToLower(b.ItemName)), " ")
}

// Page type classifications for a bill page.
const (
	PageTypeBillDetail = "Bill Detail"
	PageTypeFinalBill  = "Final Bill"
	PageTypePharmacy   = "Pharmacy"
)

// NormalizePageType maps free-form model output onto the three known page
// types. Unknown values fall back to "Bill Detail".
func NormalizePageType(v string) string {
	switch v {
	case PageTypeBillDetail, PageTypeFinalBill, PageTypePharmacy:
		return v
	}
	lower := strings.ToLower(v)
	switch {
	case strings.Contains(lower, "pharmacy"):
		return PageTypePharmacy
	case strings.Contains(lower, "final"), strings.Contains(lower, "summary"):
		return PageTypeFinalBill
	default:
		return PageTypeBillDetail
	}
}

// PageItems groups the line items extracted from one page.
// PageNo is a string to match the wire format.
type PageItems struct {
	PageNo    string     `json:"page_no"`
	PageType  string     `json:"page_type"`
	BillItems []BillItem `json:"bill_items"`
}

// TokenUsage accumulates model token counts for cost accounting.
type TokenUsage struct {
	TotalTokens  int `json:"total_tokens"`
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add accumulates another usage record into this one.
func (t *TokenUsage) Add(other TokenUsage) {
	t.TotalTokens += other.TotalTokens
	t.InputTokens += other.InputTokens
	t.OutputTokens += other.OutputTokens
}

// ExtractionData is the payload of a successful extraction.
type ExtractionData struct {
	PagewiseLineItems []PageItems `json:"pagewise_line_items"`
	TotalItemCount    int         `json:"total_item_count"`
}

// ExtractionResponse is the success envelope returned to the caller.
// FailedPages lists page numbers that could not be extracted; the response
// is still a success as long as at least one page came through.
type ExtractionResponse struct {
	IsSuccess   bool           `json:"is_success"`
	TokenUsage  TokenUsage     `json:"token_usage"`
	Data        ExtractionData `json:"data"`
	FailedPages []int          `json:"failed_pages,omitempty"`
}

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	IsSuccess bool   `json:"is_success"`
	Message   string `json:"message"`
}
