package node_registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/eleven-am/triggerflow/internal/domain"
	"github.com/eleven-am/triggerflow/internal/ports"
)

const (
	TypeHTTPTrigger    = "trigger.http"
	TypeChatCompletion = "action.chat_completion"
	TypeHTTPRequest    = "action.http_request"
	TypeEcho           = "transform.echo"
	TypeUppercase      = "transform.uppercase"

	simulatedRequestNote = "模拟请求已执行，未进行真实的网络调用。"
)

// RegisterSimulated installs the demonstration handlers. None of them
// perform I/O.
func RegisterSimulated(r *Manager, now func() time.Time) error {
	if now == nil {
		now = time.Now
	}
	handlers := []ports.NodeHandler{
		&HTTPTrigger{now: now},
		&ChatCompletion{},
		&HTTPRequest{},
		&Echo{},
		&Uppercase{},
	}
	for _, h := range handlers {
		if err := r.RegisterHandler(h); err != nil {
			return err
		}
	}
	return nil
}

type HTTPTrigger struct {
	now func() time.Time
}

func (h *HTTPTrigger) GetType() string { return TypeHTTPTrigger }

func (h *HTTPTrigger) Defaults() map[string]interface{} {
	return map[string]interface{}{"method": "GET", "path": "/"}
}

func (h *HTTPTrigger) Handle(_ context.Context, config map[string]interface{}, upstream interface{}) (interface{}, error) {
	payload := firstTruthy(config["samplePayload"], upstream)
	if payload == nil {
		payload = map[string]interface{}{}
	}

	now := time.Now
	if h.now != nil {
		now = h.now
	}

	return map[string]interface{}{
		"method":    strings.ToUpper(fmt.Sprint(config["method"])),
		"path":      config["path"],
		"timestamp": now().UTC().Format(time.RFC3339Nano),
		"payload":   payload,
	}, nil
}

type ChatCompletion struct{}

func (h *ChatCompletion) GetType() string { return TypeChatCompletion }

func (h *ChatCompletion) Defaults() map[string]interface{} {
	return map[string]interface{}{"model": "gpt-4o-mini", "prompt": ""}
}

func (h *ChatCompletion) Handle(_ context.Context, config map[string]interface{}, upstream interface{}) (interface{}, error) {
	model := domain.Stringify(config["model"])

	var message interface{}
	if incoming, ok := upstream.(map[string]interface{}); ok {
		if payload, ok := incoming["payload"].(map[string]interface{}); ok {
			message = firstTruthy(payload["message"])
		}
		if message == nil {
			message = firstTruthy(incoming["reply"])
		}
	}
	if message == nil {
		message = firstTruthy(config["prompt"])
	}

	reply := fmt.Sprintf("%s 生成了一个空回复", model)
	prompt := ""
	if message != nil {
		prompt = domain.Stringify(message)
		reply = fmt.Sprintf("%s 回复: %s", model, prompt)
	}

	return map[string]interface{}{
		"model":  model,
		"prompt": prompt,
		"reply":  reply,
		"history": []interface{}{
			map[string]interface{}{"prompt": prompt, "reply": reply},
		},
	}, nil
}

type HTTPRequest struct{}

func (h *HTTPRequest) GetType() string { return TypeHTTPRequest }

func (h *HTTPRequest) Defaults() map[string]interface{} {
	return map[string]interface{}{"method": "GET", "url": ""}
}

func (h *HTTPRequest) Handle(_ context.Context, config map[string]interface{}, upstream interface{}) (interface{}, error) {
	payload := firstTruthy(upstream)
	if payload == nil {
		payload = map[string]interface{}{}
	}

	return map[string]interface{}{
		"method":  strings.ToUpper(fmt.Sprint(config["method"])),
		"url":     config["url"],
		"payload": payload,
		"response": map[string]interface{}{
			"status": 200,
			"body": map[string]interface{}{
				"echo": payload,
				"note": simulatedRequestNote,
			},
			"headers": map[string]interface{}{"content-type": "application/json"},
		},
	}, nil
}

// Echo renders a template where {value} is the upstream value and {name}
// the configured name.
type Echo struct{}

func (h *Echo) GetType() string { return TypeEcho }

func (h *Echo) Defaults() map[string]interface{} {
	return map[string]interface{}{"template": "{value}", "name": ""}
}

func (h *Echo) Handle(_ context.Context, config map[string]interface{}, upstream interface{}) (interface{}, error) {
	template, ok := config["template"].(string)
	if !ok {
		return nil, fmt.Errorf("template must be a string, got %T: %w", config["template"], domain.ErrInvalidInput)
	}
	replacer := strings.NewReplacer(
		"{value}", domain.Stringify(upstream),
		"{name}", domain.Stringify(config["name"]),
	)
	return replacer.Replace(template), nil
}

type Uppercase struct{}

func (h *Uppercase) GetType() string { return TypeUppercase }

func (h *Uppercase) Handle(_ context.Context, _ map[string]interface{}, upstream interface{}) (interface{}, error) {
	return strings.ToUpper(domain.Stringify(upstream)), nil
}

func firstTruthy(values ...interface{}) interface{} {
	for _, v := range values {
		if truthy(v) {
			return v
		}
	}
	return nil
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	case map[string]interface{}:
		return len(t) > 0
	case []interface{}:
		return len(t) > 0
	case []string:
		return len(t) > 0
	}
	return true
}
