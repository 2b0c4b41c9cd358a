package skills

import (
	"context"

	"github.com/tjfontaine/jarvis/internal/core/domain"
	"github.com/tjfontaine/jarvis/internal/textnorm"
)

// Inbox plans connector reads of email, SMS, WhatsApp and Messenger.
type Inbox struct{}

func (Inbox) Name() string { return "inbox" }

func detectConnector(text string) (domain.Connector, bool) {
	t := textnorm.Normalize(text)
	switch {
	case textnorm.ContainsAny(t, "whatsapp", "what sapp"):
		return domain.ConnectorWhatsApp, true
	case textnorm.ContainsAny(t, "messenger"):
		return domain.ConnectorMessenger, true
	case textnorm.ContainsAny(t, "sms", "texto"):
		return domain.ConnectorSMS, true
	case textnorm.ContainsAny(t, "email", "e mail", "mail", "gmail", "outlook"):
		return domain.ConnectorEmail, true
	}
	return "", false
}

func inboxWantsSummary(text string) bool {
	return textnorm.ContainsAny(textnorm.Normalize(text), "resume", "summary", "summarize")
}

func inboxWantsRead(text string) bool {
	return textnorm.ContainsAny(textnorm.Normalize(text),
		"lis", "lire", "read", "check", "latest", "dernier", "nouveau", "recent")
}

func (Inbox) Match(in domain.Input) Match {
	connector, ok := detectConnector(in.Text)
	if !ok {
		return NoMatch
	}
	switch {
	case inboxWantsRead(in.Text):
		return Match{Score: 0.7, Intent: string(connector) + ".read_latest"}
	case inboxWantsSummary(in.Text):
		return Match{Score: 0.75, Intent: string(connector) + ".summarize"}
	}
	return Match{Score: 0.4, Intent: string(connector) + ".inbox"}
}

func (Inbox) Run(_ context.Context, in domain.Input, rc *RunContext) (*Outcome, error) {
	connector, ok := detectConnector(in.Text)
	if !ok {
		return &Outcome{
			Intent: "inbox.unknown",
			Result: map[string]any{
				"message":   "Inbox skill could not detect a connector.",
				"supported": []string{"email", "whatsapp", "messenger", "sms"},
			},
			Actions: domain.Actions{},
		}, nil
	}

	operation := domain.OperationReadLatest
	if inboxWantsSummary(in.Text) {
		operation = domain.OperationSummarize
	}
	params := map[string]any{
		"limit":          5,
		"includePreview": true,
		"language":       "auto",
	}

	return &Outcome{
		Intent: string(connector) + "." + string(operation),
		Result: map[string]any{
			"message":   "Planned inbox read; the connector executes it.",
			"connector": string(connector),
			"operation": string(operation),
			"params":    params,
			"requestId": rc.RequestID,
		},
		Actions: domain.Actions{domain.ConnectorRequest{
			Connector: connector,
			Operation: operation,
			Params:    params,
		}},
	}, nil
}
