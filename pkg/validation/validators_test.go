package validation

import (
	"errors"
	"strings"
	"testing"

	pkgerrs "github.com/snooproxy/pkg/errors"
)

func TestSubredditName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid lowercase", "golang", false},
		{"valid with digits", "programming2", false},
		{"valid with underscore", "ask_science", false},
		{"minimum length", "aww", false},
		{"maximum length", strings.Repeat("a", 21), false},
		{"empty", "", true},
		{"too short", "ab", true},
		{"too long", strings.Repeat("a", 22), true},
		{"leading underscore", "_golang", true},
		{"trailing underscore", "golang_", true},
		{"doubled underscore", "go__lang", true},
		{"hyphen", "go-lang", true},
		{"space", "go lang", true},
		{"path traversal", "../admin", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SubredditName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("SubredditName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil {
				var configErr *pkgerrs.ConfigError
				if !errors.As(err, &configErr) {
					t.Errorf("error type = %T, want *ConfigError", err)
				}
			}
		})
	}
}

func TestPostID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid", "abc123", false},
		{"digits only", "123456", false},
		{"empty", "", true},
		{"too long", strings.Repeat("a", 101), true},
		{"with prefix separator", "t3_abc", true},
		{"with slash", "abc/def", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := PostID(tt.input); (err != nil) != tt.wantErr {
				t.Errorf("PostID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestPostSort(t *testing.T) {
	for _, sort := range []string{"hot", "new", "top", "rising"} {
		if err := PostSort(sort); err != nil {
			t.Errorf("PostSort(%q) = %v, want nil", sort, err)
		}
	}
	for _, sort := range []string{"", "best", "controversial", "HOT"} {
		if err := PostSort(sort); err == nil {
			t.Errorf("PostSort(%q) = nil, want error", sort)
		}
	}
}

func TestCommentSort(t *testing.T) {
	for _, sort := range []string{"", "confidence", "top", "new", "controversial", "old", "qa"} {
		if err := CommentSort(sort); err != nil {
			t.Errorf("CommentSort(%q) = %v, want nil", sort, err)
		}
	}
	if err := CommentSort("hot"); err == nil {
		t.Error("CommentSort(hot) = nil, want error")
	}
}

func TestTimeRange(t *testing.T) {
	for _, window := range []string{"", "hour", "day", "week", "month", "year", "all"} {
		if err := TimeRange(window); err != nil {
			t.Errorf("TimeRange(%q) = %v, want nil", window, err)
		}
	}
	if err := TimeRange("decade"); err == nil {
		t.Error("TimeRange(decade) = nil, want error")
	}
}

func TestListing(t *testing.T) {
	tests := []struct {
		name    string
		limit   int
		after   string
		before  string
		wantErr bool
	}{
		{name: "defaults", limit: 0},
		{name: "max limit", limit: 100},
		{name: "after cursor", limit: 25, after: "t3_abc123"},
		{name: "before cursor", limit: 25, before: "t3_abc123"},
		{name: "negative limit", limit: -1, wantErr: true},
		{name: "limit above cap", limit: 101, wantErr: true},
		{name: "both cursors", after: "t3_a1", before: "t3_b2", wantErr: true},
		{name: "malformed after", after: "abc123", wantErr: true},
		{name: "malformed before", before: "t9_abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Listing(tt.limit, tt.after, tt.before)
			if (err != nil) != tt.wantErr {
				t.Errorf("Listing(%d, %q, %q) error = %v, wantErr %v", tt.limit, tt.after, tt.before, err, tt.wantErr)
			}
		})
	}
}

func TestDepth(t *testing.T) {
	if err := Depth(0); err != nil {
		t.Errorf("Depth(0) = %v, want nil", err)
	}
	// Values above the maximum pass validation; the client clamps them.
	if err := Depth(MaxCommentDepth + 5); err != nil {
		t.Errorf("Depth(%d) = %v, want nil", MaxCommentDepth+5, err)
	}
	if err := Depth(-1); err == nil {
		t.Error("Depth(-1) = nil, want error")
	}
}

func TestCommentIDs(t *testing.T) {
	tests := []struct {
		name    string
		ids     []string
		wantErr bool
	}{
		{name: "single", ids: []string{"abc123"}},
		{name: "several", ids: []string{"a1", "b2", "c3"}},
		{name: "at cap", ids: make([]string, 100)},
		{name: "empty list", ids: nil, wantErr: true},
		{name: "above cap", ids: make([]string, 101), wantErr: true},
		{name: "invalid entry", ids: []string{"ok1", "bad/id"}, wantErr: true},
	}

	// Filled IDs for the sized slices.
	for _, tt := range tests {
		for i := range tt.ids {
			if tt.ids[i] == "" {
				tt.ids[i] = "abc"
			}
		}
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := CommentIDs(tt.ids); (err != nil) != tt.wantErr {
				t.Errorf("CommentIDs(%d ids) error = %v, wantErr %v", len(tt.ids), err, tt.wantErr)
			}
		})
	}
}

func TestLinkID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"bare ID", "abc123", false},
		{"full fullname", "t3_abc123", false},
		{"empty", "", true},
		{"wrong prefix kind", "t1_abc123", true},
		{"invalid characters", "t3_abc!", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := LinkID(tt.input); (err != nil) != tt.wantErr {
				t.Errorf("LinkID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestUserAgent(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"typical", "server:snooproxy:1.0 (by /u/owner)", false},
		{"empty", "", true},
		{"carriage return", "agent\rX-Evil: yes", true},
		{"newline", "agent\nX-Evil: yes", true},
		{"too long", strings.Repeat("a", 257), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := UserAgent(tt.input); (err != nil) != tt.wantErr {
				t.Errorf("UserAgent(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestIsFullname(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"t1_abc123", true},
		{"t3_abc123", true},
		{"t5_2qh1i", true},
		{"abc123", false},
		{"t7_abc123", false},
		{"t3_", false},
		{"t3_ABC", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsFullname(tt.input); got != tt.want {
			t.Errorf("IsFullname(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
