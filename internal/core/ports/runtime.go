package ports

import "context"

// ServiceCallRequest is one call to a Home Assistant service.
type ServiceCallRequest struct {
	Domain      string
	Service     string
	Target      map[string]any
	ServiceData map[string]any
}

// HAResponse is the raw status and decoded body of a Home Assistant call.
type HAResponse struct {
	Status int `json:"status"`
	Data   any `json:"data"`
}

// ServiceField describes one field of a Home Assistant service.
type ServiceField struct {
	Name        string         `json:"name,omitempty"`
	Description string         `json:"description,omitempty"`
	Required    bool           `json:"required,omitempty"`
	Example     any            `json:"example,omitempty"`
	Selector    map[string]any `json:"selector,omitempty"`
}

// ServiceInfo describes one service of a domain.
type ServiceInfo struct {
	Name        string                  `json:"name,omitempty"`
	Description string                  `json:"description,omitempty"`
	Fields      map[string]ServiceField `json:"fields,omitempty"`
	Target      map[string]any          `json:"target,omitempty"`
}

// DomainServices is one entry of the Home Assistant service catalog.
type DomainServices struct {
	Domain   string                 `json:"domain"`
	Services map[string]ServiceInfo `json:"services"`
}

// HomeAssistant is the home automation controller.
type HomeAssistant interface {
	CallService(ctx context.Context, req ServiceCallRequest) (*HAResponse, error)
	GetServices(ctx context.Context) ([]DomainServices, error)
}

// ChatRole is the author of a chat completion turn.
type ChatRole string

const (
	ChatRoleSystem    ChatRole = "system"
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage is one turn sent to the language model.
type ChatMessage struct {
	Role    ChatRole
	Content string
}

// ChatModel returns one completion expected to hold a JSON object.
type ChatModel interface {
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
}
