package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/shstksdbs/ERP-Project-sub001/internal/shared/feishu"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/entity"
)

// CardSender posts interactive cards
type CardSender interface {
	SendCard(ctx context.Context, card feishu.InteractiveCard) error
}

// FeishuSink posts a status card to a group bot
type FeishuSink struct {
	sender  CardSender
	baseURL string
}

// NewFeishuSink baseURL, when set, links the card to the request page
func NewFeishuSink(sender CardSender, baseURL string) *FeishuSink {
	return &FeishuSink{sender: sender, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *FeishuSink) Name() string { return "feishu" }

func (s *FeishuSink) Send(ctx context.Context, ev entity.StatusChangeEvent) error {
	card := feishu.SupplyStatusCard{
		RequestID:   ev.RequestID,
		BranchID:    ev.BranchID,
		FromStatus:  ev.FromStatus.Label(),
		ToStatus:    string(ev.ToStatus),
		Priority:    ev.Priority.Label(),
		TotalCost:   ev.TotalCost.StringFixed(2),
		ProcessedBy: ev.ProcessedBy,
		Reason:      ev.Reason,
	}
	if s.baseURL != "" {
		card.DetailURL = fmt.Sprintf("%s/supply-requests/%d", s.baseURL, ev.RequestID)
	}
	return s.sender.SendCard(ctx, feishu.NewSupplyStatusCard(card))
}
