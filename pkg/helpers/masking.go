package helpers

import (
	"github.com/sirupsen/logrus"
)

// RedactedPlaceholder replaces secret values in log output. Fixed length so
// log shape stays stable regardless of the secret's real length.
const RedactedPlaceholder = "********"

// MaskFields returns a copy of fields with the named keys replaced by
// RedactedPlaceholder. Keys that are absent or empty are left untouched,
// everything else is redacted regardless of type. Apply this to any request
// payload before it is logged.
func MaskFields(fields logrus.Fields, keys ...string) logrus.Fields {
	out := make(logrus.Fields, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	for _, k := range keys {
		v, ok := out[k]
		if !ok {
			continue
		}
		if s, isStr := v.(string); isStr && s == "" {
			continue
		}
		out[k] = RedactedPlaceholder
	}
	return out
}
