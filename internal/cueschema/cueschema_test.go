// SPDX-License-Identifier: MPL-2.0

package cueschema

import (
	"strings"
	"testing"
)

const testSchema = `
#Settings: close({
	name:     string
	retries?: int
	labels?: [...string]
})
`

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		value   map[string]any
		wantErr string
	}{
		{
			name:  "minimal valid",
			value: map[string]any{"name": "pkg"},
		},
		{
			name:  "all fields valid",
			value: map[string]any{"name": "pkg", "retries": int64(3), "labels": []any{"a", "b"}},
		},
		{
			name:    "unknown field rejected",
			value:   map[string]any{"name": "pkg", "foo": "bar"},
			wantErr: "foo",
		},
		{
			name:    "wrong type rejected",
			value:   map[string]any{"name": int64(7)},
			wantErr: "name",
		},
		{
			name:    "missing required rejected",
			value:   map[string]any{"retries": int64(1)},
			wantErr: "name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := Validate([]byte(testSchema), "#Settings", tt.value, "settings.toml")
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error %q does not mention %q", err, tt.wantErr)
			}
			if !strings.Contains(err.Error(), "settings.toml") {
				t.Errorf("Validate() error %q does not mention the source", err)
			}
		})
	}
}

func TestValidateUnknownDefinition(t *testing.T) {
	t.Parallel()

	err := Validate([]byte(testSchema), "#Nope", map[string]any{}, "x")
	if err == nil || !strings.Contains(err.Error(), "#Nope") {
		t.Fatalf("Validate() error = %v, want unknown definition error", err)
	}
}

func TestFormatPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path []string
		want string
	}{
		{nil, ""},
		{[]string{"name"}, "name"},
		{[]string{"requires", "0"}, "requires[0]"},
		{[]string{"urls", "Homepage"}, "urls.Homepage"},
	}

	for _, tt := range tests {
		if got := formatPath(tt.path); got != tt.want {
			t.Errorf("formatPath(%v) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
