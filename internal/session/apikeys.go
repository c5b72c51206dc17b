package session

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strings"

	"reelcraft/internal/logging"
	"reelcraft/internal/services"
	"reelcraft/internal/transport"
)

// KeyProviders lists the provider slots the auth service stores keys for.
var KeyProviders = []string{"gemini", "groq1", "groq2", "groq3"}

// KeyPresence reports which provider slots hold a key. The service never
// returns the keys themselves.
type KeyPresence map[string]bool

// APIKeys fetches which provider keys are set for the signed-in user.
func (m *Manager) APIKeys(ctx context.Context) (KeyPresence, error) {
	env, err := m.Do(ctx, transport.Request{Method: http.MethodGet, Path: "/api-keys"})
	if err != nil {
		return nil, services.Wrap(classify(err), stageName, "api keys", "Could not load API keys", err)
	}
	return decodePresence(env)
}

// SaveAPIKeys stores the non-empty keys and leaves the other slots as they
// are. Unknown providers are rejected before any request.
func (m *Manager) SaveAPIKeys(ctx context.Context, keys map[string]string) (KeyPresence, error) {
	body := make(map[string]string, len(keys))
	for provider, key := range keys {
		provider = strings.ToLower(strings.TrimSpace(provider))
		if !slices.Contains(KeyProviders, provider) {
			return nil, services.Wrap(services.ErrValidation, stageName, "save api keys", "Unknown provider "+provider, nil)
		}
		if key = strings.TrimSpace(key); key != "" {
			body[provider] = key
		}
	}
	if len(body) == 0 {
		return nil, services.Wrap(services.ErrValidation, stageName, "save api keys", "No keys to save", nil)
	}

	env, err := m.Do(ctx, transport.Request{Method: http.MethodPut, Path: "/api-keys", JSON: body})
	if err != nil {
		return nil, services.Wrap(classify(err), stageName, "save api keys", "Could not save API keys", err)
	}
	presence, err := decodePresence(env)
	if err != nil {
		return nil, err
	}
	m.logger.Info("api keys saved",
		logging.Int("keys", len(body)),
		logging.String(logging.FieldEventType, "session_api_keys_saved"),
	)
	return presence, nil
}

// decodePresence accepts booleans or the stored values themselves for each
// slot; anything non-empty counts as set.
func decodePresence(env *transport.Envelope) (KeyPresence, error) {
	var raw map[string]json.RawMessage
	if err := env.Decode(&raw); err != nil {
		return nil, services.Wrap(services.ErrApplication, stageName, "api keys", "Unexpected response from auth service", err)
	}
	presence := make(KeyPresence, len(KeyProviders))
	for _, provider := range KeyProviders {
		presence[provider] = slotSet(raw[provider])
	}
	return presence, nil
}

func slotSet(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var flag bool
	if err := json.Unmarshal(raw, &flag); err == nil {
		return flag
	}
	var value string
	if err := json.Unmarshal(raw, &value); err == nil {
		return strings.TrimSpace(value) != ""
	}
	return string(raw) != "null"
}
