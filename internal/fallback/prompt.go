package fallback

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/tjfontaine/jarvis/internal/core/ports"
)

// systemPrompt describes the closed action catalog, the deterministic
// command grammar and the response contract.
func systemPrompt() string {
	return strings.Join([]string{
		"You are Jarvis, an intent router for a smart-home assistant.",
		"Decide whether the user message is a conversation reply, a command to rewrite into Jarvis command syntax, or a list of structured actions.",
		"",
		"Return ONLY one JSON object, one of:",
		`{"type":"chat","text":"..."}`,
		`{"type":"command","text":"..."}`,
		`{"type":"actions","intent":"...","message":"...","actions":[...]}`,
		`{"type":"select_service","domain":"...","service":"..."}`,
		"",
		"Action types (the only ones allowed in actions):",
		`- {"type":"home_assistant.service_call","domain":"light","service":"turn_on","target":{"entity_id":"..."},"serviceData":{...}}`,
		`- {"type":"todo.add_task","title":"...","dueAt":"ISO-8601?","remindAt":"ISO-8601?"}`,
		`- {"type":"music.play_request","query":"..."}`,
		`- {"type":"plex.play_request","query":"..."}`,
		`- {"type":"robot.start","robot":"vacuum","mode":"auto"}`,
		`- {"type":"timer.requested","seconds":300}`,
		`- {"type":"weather.query","when":"now|today|tomorrow|week","entityId":"weather.home?"}`,
		`- {"type":"connector.request","connector":"email|sms|whatsapp|messenger|todo","operation":"read_latest|summarize|search|list|create","params":{...}}`,
		"",
		"Supported command patterns (examples):",
		"- ping",
		"- time",
		"- todo: buy milk",
		"- timer 5 minutes (or: set a timer 5 minutes)",
		"- turn on kitchen light 40% (FR also: allume lumière cuisine 40%)",
		"- ha: <domain>.<service> entity_id=<entity_id> (ONLY if you know a valid target key like entity_id/area_id/device_id)",
		"- read my emails / read my sms / read my whatsapp / read my messenger",
		"- play music <query>",
		"- mets <title> sur plex",
		"",
		"Rules:",
		"- Language: respond in the same language as the user (French if the user speaks French).",
		"- Never invent entity_id, area_id or device_id values.",
		"- If the user gave no explicit identifier, prefer type=command with the natural command (lights/todo/timer/etc.) over raw service calls.",
		"- If the request is ambiguous, use type=chat to ask a short clarification question.",
		"- Use select_service only to get the field schema of a service listed in the service index, and at most once.",
		"- Keep commands short and directly executable.",
	}, "\n")
}

// compactIndex lists every domain with its service names, one domain per line.
func compactIndex(catalog []ports.DomainServices) string {
	if len(catalog) == 0 {
		return ""
	}

	domains := make([]ports.DomainServices, len(catalog))
	copy(domains, catalog)
	sort.Slice(domains, func(i, j int) bool { return domains[i].Domain < domains[j].Domain })

	var b strings.Builder
	b.WriteString("Home Assistant service index (domain: services). Use select_service to get one service's fields.\n")
	for _, d := range domains {
		names := make([]string, 0, len(d.Services))
		for name := range d.Services {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintf(&b, "%s: %s\n", d.Domain, strings.Join(names, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

// serviceDetail is the follow-up message carrying one service's schema.
func serviceDetail(domainName, serviceName string, info ports.ServiceInfo) string {
	encoded, err := json.Marshal(info)
	if err != nil {
		encoded = []byte("{}")
	}
	return fmt.Sprintf(
		"Service %s.%s schema: %s\nAnswer now with chat, command or actions. Do not use select_service again.",
		domainName, serviceName, encoded)
}
