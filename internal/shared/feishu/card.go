package feishu

import "fmt"

// SupplyStatusCard fields of a supply request status notification
type SupplyStatusCard struct {
	RequestID   uint
	BranchID    uint
	FromStatus  string
	ToStatus    string
	Priority    string
	TotalCost   string
	ProcessedBy string
	Reason      string
	DetailURL   string
}

var statusTemplates = map[string]string{
	"APPROVED":   "blue",
	"IN_TRANSIT": "orange",
	"DELIVERED":  "green",
	"CANCELLED":  "red",
}

// NewSupplyStatusCard builds the status change card
func NewSupplyStatusCard(s SupplyStatusCard) InteractiveCard {
	template := statusTemplates[s.ToStatus]
	if template == "" {
		template = "grey"
	}
	processedBy := s.ProcessedBy
	if processedBy == "" {
		processedBy = "-"
	}

	elements := []CardElement{
		{
			Tag: "div",
			Fields: []CardField{
				{IsShort: true, Text: CardText{Tag: "lark_md", Content: fmt.Sprintf("**Request**\n#%d", s.RequestID)}},
				{IsShort: true, Text: CardText{Tag: "lark_md", Content: fmt.Sprintf("**Branch**\n%d", s.BranchID)}},
				{IsShort: true, Text: CardText{Tag: "lark_md", Content: fmt.Sprintf("**Status**\n%s → %s", s.FromStatus, s.ToStatus)}},
				{IsShort: true, Text: CardText{Tag: "lark_md", Content: fmt.Sprintf("**Priority**\n%s", s.Priority)}},
				{IsShort: true, Text: CardText{Tag: "lark_md", Content: fmt.Sprintf("**Total cost**\n%s", s.TotalCost)}},
				{IsShort: true, Text: CardText{Tag: "lark_md", Content: fmt.Sprintf("**Processed by**\n%s", processedBy)}},
			},
		},
	}
	if s.Reason != "" {
		elements = append(elements, CardElement{
			Tag:  "div",
			Text: &CardText{Tag: "lark_md", Content: fmt.Sprintf("**Reason**\n%s", s.Reason)},
		})
	}
	if s.DetailURL != "" {
		elements = append(elements, CardElement{Tag: "hr"}, CardElement{
			Tag: "action",
			Actions: []CardAction{
				{
					Tag:  "button",
					Text: CardText{Tag: "plain_text", Content: "View request"},
					Type: "primary",
					URL:  s.DetailURL,
				},
			},
		})
	}

	return InteractiveCard{
		Config: &CardConfig{WideScreenMode: true},
		Header: &CardHeader{
			Title:    CardText{Tag: "plain_text", Content: fmt.Sprintf("Supply request #%d %s", s.RequestID, s.ToStatus)},
			Template: template,
		},
		Elements: elements,
	}
}
