package config

import "strings"

var secretKeys = map[string]bool{
	"jupyter.token": true,
}

// IsSecretKey reports whether the dot-separated key holds a credential.
func IsSecretKey(key string) bool {
	return secretKeys[key]
}

// Flatten turns nested sections into dot-separated keys, so
// {"http": {"listen": ":8790"}} becomes {"http.listen": ":8790"}.
// Lists such as http.allowed_origins stay leaf values.
func Flatten(m map[string]any) map[string]any {
	out := make(map[string]any)
	var walk func(path []string, section map[string]any)
	walk = func(path []string, section map[string]any) {
		for k, v := range section {
			key := append(path[:len(path):len(path)], k)
			if child, ok := v.(map[string]any); ok {
				walk(key, child)
				continue
			}
			out[strings.Join(key, ".")] = v
		}
	}
	walk(nil, m)
	return out
}

// Unflatten is the inverse of Flatten. A leaf that collides with a section
// is replaced by the section.
func Unflatten(flat map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range flat {
		section, leaf := sectionFor(out, k)
		section[leaf] = v
	}
	return out
}

// sectionFor walks key's parent sections in root, creating them as needed,
// and returns the innermost section with the final key segment.
func sectionFor(root map[string]any, key string) (map[string]any, string) {
	parts := strings.Split(key, ".")
	section := root
	for _, part := range parts[:len(parts)-1] {
		next, ok := section[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			section[part] = next
		}
		section = next
	}
	return section, parts[len(parts)-1]
}

// MaskSecrets copies flat, replacing non-empty credentials with "***" and
// their last four characters.
func MaskSecrets(flat map[string]any) map[string]any {
	out := make(map[string]any, len(flat))
	for k, v := range flat {
		out[k] = v
		if !secretKeys[k] {
			continue
		}
		if s, ok := v.(string); ok && s != "" {
			out[k] = "***" + s[max(0, len(s)-4):]
		}
	}
	return out
}
