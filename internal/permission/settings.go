package permission

import (
	"log/slog"

	"github.com/spf13/viper"
)

// LoadRules reads permissions.allow and permissions.deny from the agent's
// settings file. A missing or unreadable file, or a non-list value, yields
// empty rules.
func LoadRules(path string) Rules {
	if path == "" {
		return Rules{Allow: []string{}, Deny: []string{}}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		slog.Debug("Settings not loaded, using empty rules", "path", path, "error", err)
		return Rules{Allow: []string{}, Deny: []string{}}
	}

	return Rules{
		Allow: stringList(v.Get("permissions.allow")),
		Deny:  stringList(v.Get("permissions.deny")),
	}
}

func stringList(raw any) []string {
	items, ok := raw.([]any)
	if !ok {
		return []string{}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
