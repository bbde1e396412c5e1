package relay

import (
	"errors"
	"fmt"
	"strings"

	"mercator-hq/difyrelay/pkg/proxy/types"
)

// ErrNoUserMessage is returned when a request carries no user message to
// forward.
var ErrNoUserMessage = errors.New("no user message provided")

// RoleUser is the role of caller-authored messages.
const RoleUser = "user"

// LastUserQuery returns the text of the most recent user message. It returns
// ErrNoUserMessage when there is none or its text is empty.
func LastUserQuery(messages []types.Message) (string, error) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != RoleUser {
			continue
		}
		query := MessageText(messages[i].Content)
		if query == "" {
			return "", ErrNoUserMessage
		}
		return query, nil
	}
	return "", ErrNoUserMessage
}

// IsReset reports whether the last message is the reset command. Only plain
// string content matches, regardless of role.
func IsReset(messages []types.Message, command string) bool {
	if len(messages) == 0 || command == "" {
		return false
	}
	content, ok := messages[len(messages)-1].Content.(string)
	return ok && content == command
}

// MessageText converts message content to a string. Content is either a
// plain string or an array of content parts, of which only text parts are
// kept.
func MessageText(content interface{}) string {
	if content == nil {
		return ""
	}

	if str, ok := content.(string); ok {
		return str
	}

	if arr, ok := content.([]interface{}); ok {
		return textParts(arr)
	}

	return fmt.Sprintf("%v", content)
}

func textParts(parts []interface{}) string {
	var texts []string

	for _, part := range parts {
		partMap, ok := part.(map[string]interface{})
		if !ok {
			continue
		}

		// image_url and other media are not forwarded upstream
		if partType, _ := partMap["type"].(string); partType != "text" {
			continue
		}
		if text, ok := partMap["text"].(string); ok {
			texts = append(texts, text)
		}
	}

	return strings.Join(texts, " ")
}
