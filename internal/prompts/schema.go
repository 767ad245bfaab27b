package prompts

import "github.com/billscan/billscan/internal/billing"

// ExtractionSchema is the JSON schema for bill page extraction output.
var ExtractionSchema = map[string]any{
	"type": "json_schema",
	"json_schema": map[string]any{
		"name":   "bill_page_extraction",
		"strict": true,
		"schema": map[string]any{
			"type": "object",
			"properties": map[string]any{
				"page_type": map[string]any{
					"type": "string",
					"enum": []string{
						"Bill Detail",
						"Final Bill",
						"Pharmacy",
					},
					"description": "Classification of the bill page",
				},
				"bill_items": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"item_name": map[string]any{
								"type":        "string",
								"description": "Item name exactly as written in the bill",
							},
							"item_amount": map[string]any{
								"type":        "number",
								"description": "Net amount after any discounts",
							},
							"item_rate": map[string]any{
								"type":        "number",
								"description": "Rate per unit",
							},
							"item_quantity": map[string]any{
								"type":        "number",
								"description": "Billed quantity, 1.0 if not shown",
							},
						},
						"required": []string{
							"item_name",
							"item_amount",
							"item_rate",
							"item_quantity",
						},
						"additionalProperties": false,
					},
				},
			},
			"required":             []string{"page_type", "bill_items"},
			"additionalProperties": false,
		},
	},
}

// Result represents the parsed result from a single page extraction.
type Result struct {
	PageType  string             `json:"page_type"`
	BillItems []billing.BillItem `json:"bill_items"`
}
