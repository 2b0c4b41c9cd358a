package fallback

import (
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// directiveSchemaJSON is the closed contract of a model response.
const directiveSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["type"],
  "properties": {
    "type": {"enum": ["chat", "command", "actions", "select_service"]}
  },
  "allOf": [
    {
      "if": {"properties": {"type": {"const": "chat"}}},
      "then": {"required": ["text"], "properties": {"text": {"$ref": "#/$defs/text"}}}
    },
    {
      "if": {"properties": {"type": {"const": "command"}}},
      "then": {"required": ["text"], "properties": {"text": {"$ref": "#/$defs/text"}}}
    },
    {
      "if": {"properties": {"type": {"const": "actions"}}},
      "then": {
        "required": ["intent", "actions"],
        "properties": {
          "intent": {"$ref": "#/$defs/text"},
          "message": {"type": "string"},
          "actions": {"type": "array", "items": {"$ref": "#/$defs/action"}}
        }
      }
    },
    {
      "if": {"properties": {"type": {"const": "select_service"}}},
      "then": {
        "required": ["domain", "service"],
        "properties": {"domain": {"$ref": "#/$defs/text"}, "service": {"$ref": "#/$defs/text"}}
      }
    }
  ],
  "$defs": {
    "text": {"type": "string", "pattern": "\\S"},
    "action": {
      "type": "object",
      "required": ["type"],
      "properties": {
        "type": {"enum": [
          "home_assistant.service_call", "todo.add_task", "music.play_request", "plex.play_request",
          "robot.start", "timer.requested", "weather.query", "connector.request"
        ]}
      },
      "allOf": [
        {
          "if": {"properties": {"type": {"const": "home_assistant.service_call"}}},
          "then": {
            "required": ["domain", "service"],
            "properties": {
              "domain": {"$ref": "#/$defs/text"},
              "service": {"$ref": "#/$defs/text"},
              "target": {"type": "object"},
              "serviceData": {"type": "object"}
            }
          }
        },
        {
          "if": {"properties": {"type": {"const": "todo.add_task"}}},
          "then": {
            "required": ["title"],
            "properties": {
              "title": {"$ref": "#/$defs/text"},
              "list": {"type": "string"},
              "dueAt": {"type": "string"},
              "remindAt": {"type": "string"}
            }
          }
        },
        {
          "if": {"properties": {"type": {"enum": ["music.play_request", "plex.play_request"]}}},
          "then": {"required": ["query"], "properties": {"query": {"$ref": "#/$defs/text"}}}
        },
        {
          "if": {"properties": {"type": {"const": "robot.start"}}},
          "then": {
            "required": ["robot"],
            "properties": {"robot": {"$ref": "#/$defs/text"}, "mode": {"type": "string"}}
          }
        },
        {
          "if": {"properties": {"type": {"const": "timer.requested"}}},
          "then": {
            "required": ["seconds"],
            "properties": {"seconds": {"type": "integer", "minimum": 1}, "requestedAt": {"type": "string"}}
          }
        },
        {
          "if": {"properties": {"type": {"const": "weather.query"}}},
          "then": {
            "required": ["when"],
            "properties": {
              "when": {"enum": ["now", "today", "tomorrow", "week"]},
              "entityId": {"type": "string"}
            }
          }
        },
        {
          "if": {"properties": {"type": {"const": "connector.request"}}},
          "then": {
            "required": ["connector", "operation"],
            "properties": {
              "connector": {"enum": ["email", "sms", "whatsapp", "messenger", "todo"]},
              "operation": {"enum": ["read_latest", "summarize", "search", "list", "create"]},
              "params": {"type": "object"}
            }
          }
        }
      ]
    }
  }
}`

var directiveSchema = jsonschema.MustCompileString("directive.json", directiveSchemaJSON)
