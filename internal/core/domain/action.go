package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ActionType is the discriminator of an Action on the wire.
type ActionType string

const (
	ActionServiceCall      ActionType = "home_assistant.service_call"
	ActionAddTask          ActionType = "todo.add_task"
	ActionPlayMusic        ActionType = "music.play_request"
	ActionPlayMedia        ActionType = "plex.play_request"
	ActionStartRobot       ActionType = "robot.start"
	ActionTimerRequest     ActionType = "timer.requested"
	ActionWeatherQuery     ActionType = "weather.query"
	ActionConnectorRequest ActionType = "connector.request"
)

// ActionTypes lists every supported action type in catalog order.
var ActionTypes = []ActionType{
	ActionServiceCall,
	ActionAddTask,
	ActionPlayMusic,
	ActionPlayMedia,
	ActionStartRobot,
	ActionTimerRequest,
	ActionWeatherQuery,
	ActionConnectorRequest,
}

// Action is a structured side-effect request produced by a skill or by the
// language model fallback. The set of implementations is closed.
type Action interface {
	Type() ActionType
	isAction()
}

// ServiceCall invokes one Home Assistant service.
type ServiceCall struct {
	Domain      string         `json:"domain"`
	Service     string         `json:"service"`
	Target      map[string]any `json:"target,omitempty"`
	ServiceData map[string]any `json:"serviceData,omitempty"`
}

// AddTask adds an item to a todo list.
type AddTask struct {
	Title    string `json:"title"`
	List     string `json:"list,omitempty"`
	DueAt    string `json:"dueAt,omitempty"`
	RemindAt string `json:"remindAt,omitempty"`
}

type PlayMusic struct {
	Query string `json:"query"`
}

// PlayMedia asks the media server (Plex) to play a title or link.
type PlayMedia struct {
	Query string `json:"query"`
}

type StartRobot struct {
	Robot string `json:"robot"`
	Mode  string `json:"mode,omitempty"`
}

// TimerRequest records a timer the user asked for. RequestedAt is RFC 3339.
type TimerRequest struct {
	Seconds     int    `json:"seconds"`
	RequestedAt string `json:"requestedAt"`
}

// WeatherWhen selects current conditions or a forecast window.
type WeatherWhen string

const (
	WeatherNow      WeatherWhen = "now"
	WeatherToday    WeatherWhen = "today"
	WeatherTomorrow WeatherWhen = "tomorrow"
	WeatherWeek     WeatherWhen = "week"
)

type WeatherQuery struct {
	When     WeatherWhen `json:"when"`
	EntityID string      `json:"entityId,omitempty"`
}

// Connector names a downstream messaging or task service.
type Connector string

const (
	ConnectorEmail     Connector = "email"
	ConnectorSMS       Connector = "sms"
	ConnectorWhatsApp  Connector = "whatsapp"
	ConnectorMessenger Connector = "messenger"
	ConnectorTodo      Connector = "todo"
)

// ConnectorOperation is what a connector is asked to do.
type ConnectorOperation string

const (
	OperationReadLatest ConnectorOperation = "read_latest"
	OperationSummarize  ConnectorOperation = "summarize"
	OperationSearch     ConnectorOperation = "search"
	OperationList       ConnectorOperation = "list"
	OperationCreate     ConnectorOperation = "create"
)

// ConnectorRequest is handed to a connector service; Params are free-form.
type ConnectorRequest struct {
	Connector Connector          `json:"connector"`
	Operation ConnectorOperation `json:"operation"`
	Params    map[string]any     `json:"params,omitempty"`
}

func (ServiceCall) Type() ActionType      { return ActionServiceCall }
func (AddTask) Type() ActionType          { return ActionAddTask }
func (PlayMusic) Type() ActionType        { return ActionPlayMusic }
func (PlayMedia) Type() ActionType        { return ActionPlayMedia }
func (StartRobot) Type() ActionType       { return ActionStartRobot }
func (TimerRequest) Type() ActionType     { return ActionTimerRequest }
func (WeatherQuery) Type() ActionType     { return ActionWeatherQuery }
func (ConnectorRequest) Type() ActionType { return ActionConnectorRequest }

func (ServiceCall) isAction()      {}
func (AddTask) isAction()          {}
func (PlayMusic) isAction()        {}
func (PlayMedia) isAction()        {}
func (StartRobot) isAction()       {}
func (TimerRequest) isAction()     {}
func (WeatherQuery) isAction()     {}
func (ConnectorRequest) isAction() {}

// MarshalAction encodes an action as a flat JSON object carrying a "type" field.
func MarshalAction(a Action) ([]byte, error) {
	if a == nil {
		return nil, fmt.Errorf("nil action")
	}
	body, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s action: %w", a.Type(), err)
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("failed to flatten %s action: %w", a.Type(), err)
	}
	typ, _ := json.Marshal(a.Type())
	fields["type"] = typ

	return json.Marshal(fields)
}

// UnmarshalAction decodes a JSON object produced by MarshalAction (or by the
// language model) into the matching Action variant. Required fields and enum
// values are checked; unknown types are rejected.
func UnmarshalAction(data []byte) (Action, error) {
	var head struct {
		Type ActionType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("invalid action: %w", err)
	}

	var (
		action Action
		err    error
	)
	switch head.Type {
	case ActionServiceCall:
		var a ServiceCall
		err = json.Unmarshal(data, &a)
		action = a
	case ActionAddTask:
		var a AddTask
		err = json.Unmarshal(data, &a)
		action = a
	case ActionPlayMusic:
		var a PlayMusic
		err = json.Unmarshal(data, &a)
		action = a
	case ActionPlayMedia:
		var a PlayMedia
		err = json.Unmarshal(data, &a)
		action = a
	case ActionStartRobot:
		var a StartRobot
		err = json.Unmarshal(data, &a)
		action = a
	case ActionTimerRequest:
		var a TimerRequest
		err = json.Unmarshal(data, &a)
		action = a
	case ActionWeatherQuery:
		var a WeatherQuery
		err = json.Unmarshal(data, &a)
		action = a
	case ActionConnectorRequest:
		var a ConnectorRequest
		err = json.Unmarshal(data, &a)
		action = a
	case "":
		return nil, fmt.Errorf("invalid action: missing type")
	default:
		return nil, fmt.Errorf("invalid action: unknown type %q", head.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid %s action: %w", head.Type, err)
	}

	if err := ValidateAction(action); err != nil {
		return nil, err
	}
	return action, nil
}

// ValidateAction checks the required fields and enum values of an action.
func ValidateAction(a Action) error {
	switch v := a.(type) {
	case ServiceCall:
		if strings.TrimSpace(v.Domain) == "" || strings.TrimSpace(v.Service) == "" {
			return fmt.Errorf("invalid %s action: domain and service are required", v.Type())
		}
	case AddTask:
		if strings.TrimSpace(v.Title) == "" {
			return fmt.Errorf("invalid %s action: title is required", v.Type())
		}
	case PlayMusic:
		if strings.TrimSpace(v.Query) == "" {
			return fmt.Errorf("invalid %s action: query is required", v.Type())
		}
	case PlayMedia:
		if strings.TrimSpace(v.Query) == "" {
			return fmt.Errorf("invalid %s action: query is required", v.Type())
		}
	case StartRobot:
		if strings.TrimSpace(v.Robot) == "" {
			return fmt.Errorf("invalid %s action: robot is required", v.Type())
		}
	case TimerRequest:
		if v.Seconds <= 0 {
			return fmt.Errorf("invalid %s action: seconds must be positive", v.Type())
		}
	case WeatherQuery:
		switch v.When {
		case WeatherNow, WeatherToday, WeatherTomorrow, WeatherWeek:
		default:
			return fmt.Errorf("invalid %s action: unsupported when %q", v.Type(), v.When)
		}
	case ConnectorRequest:
		switch v.Connector {
		case ConnectorEmail, ConnectorSMS, ConnectorWhatsApp, ConnectorMessenger, ConnectorTodo:
		default:
			return fmt.Errorf("invalid %s action: unsupported connector %q", v.Type(), v.Connector)
		}
		switch v.Operation {
		case OperationReadLatest, OperationSummarize, OperationSearch, OperationList, OperationCreate:
		default:
			return fmt.Errorf("invalid %s action: unsupported operation %q", v.Type(), v.Operation)
		}
	case nil:
		return fmt.Errorf("nil action")
	}
	return nil
}

// Actions is an ordered list of actions that encodes with type discriminators.
type Actions []Action

func (as Actions) MarshalJSON() ([]byte, error) {
	raw := make([]json.RawMessage, 0, len(as))
	for _, a := range as {
		b, err := MarshalAction(a)
		if err != nil {
			return nil, err
		}
		raw = append(raw, b)
	}
	return json.Marshal(raw)
}

func (as *Actions) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Actions, 0, len(raw))
	for i, r := range raw {
		a, err := UnmarshalAction(r)
		if err != nil {
			return fmt.Errorf("actions[%d]: %w", i, err)
		}
		out = append(out, a)
	}
	*as = out
	return nil
}
