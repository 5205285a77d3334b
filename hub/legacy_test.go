package hub

import (
	"testing"

	"github.com/pithecene-io/stencil/types"
)

func TestParseLegacyStatus_Markers(t *testing.T) {
	tests := []struct {
		name string
		page string
		want types.TemplateState
	}{
		{"pending", "<html><p>Template validation is in progress</p></html>", types.StatePending},
		{"validated", "<html><p>Template has been validated</p></html>", types.StateValidated},
		{"failed", "<html><article>Template validation failed\n</article></html>", types.StateFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, err := parseLegacyStatus("abc-123", tt.page)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if status.State != tt.want {
				t.Errorf("expected %s, got %s", tt.want, status.State)
			}
			if status.ID != "abc-123" {
				t.Errorf("expected original id, got %s", status.ID)
			}
		})
	}
}

func TestParseLegacyStatus_NoMarker(t *testing.T) {
	if _, err := parseLegacyStatus("x", "<html>nothing here</html>"); err == nil {
		t.Error("expected error for page without markers")
	}
}

func TestExtractLegacyErrors(t *testing.T) {
	page := "<article><h2>Template validation failed</h2>\n<p>Error one</p>\n<p>Error two</p>\n</article><footer>ignored</footer>"

	errs := extractLegacyErrors(page)

	want := []string{"Error one", "Error two"}
	if len(errs) != len(want) {
		t.Fatalf("expected %v, got %v", want, errs)
	}
	for i := range want {
		if errs[i] != want[i] {
			t.Errorf("errs[%d]: expected %q, got %q", i, want[i], errs[i])
		}
	}
}

func TestExtractLegacyErrors_TrimsAndDropsEmptyLines(t *testing.T) {
	page := "Template validation failed\n\n  <p>  padded  </p>  \n\n</article>"

	errs := extractLegacyErrors(page)

	if len(errs) != 1 || errs[0] != "padded" {
		t.Errorf("expected [padded], got %v", errs)
	}
}

func TestStripTags(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"<p>wrapped</p>", "wrapped"},
		{"<li><em>nested</em> tail</li>", "nested tail"},
		{"a &amp; b", "a &amp; b"}, // no markup, returned untouched
	}

	for _, tt := range tests {
		if got := stripTags(tt.in); got != tt.want {
			t.Errorf("stripTags(%q): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}
