package parser

import "testing"

func TestSplitPageText(t *testing.T) {
	cases := []struct {
		name        string
		text        string
		page        int
		wantTitle   string
		wantContent string
	}{
		{
			name:        "title and body",
			text:        "Market Opportunity\nTAM: $10B\nGrowing 20% YoY",
			page:        3,
			wantTitle:   "Market Opportunity",
			wantContent: "TAM: $10B\nGrowing 20% YoY",
		},
		{
			name:        "single line",
			text:        "Thank you",
			page:        12,
			wantTitle:   "Thank you",
			wantContent: "",
		},
		{
			name:        "empty page falls back to page number",
			text:        "",
			page:        7,
			wantTitle:   "Page 7",
			wantContent: "",
		},
		{
			name:        "whitespace only falls back to page number",
			text:        "  \n\t\n   ",
			page:        2,
			wantTitle:   "Page 2",
			wantContent: "",
		},
		{
			name:        "blank lines are dropped from content",
			text:        "\n\nTitle line\n\n  body one  \n\nbody two\n",
			page:        1,
			wantTitle:   "Title line",
			wantContent: "body one\nbody two",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			title, content := splitPageText(tc.text, tc.page)
			if title != tc.wantTitle {
				t.Errorf("title = %q, want %q", title, tc.wantTitle)
			}
			if content != tc.wantContent {
				t.Errorf("content = %q, want %q", content, tc.wantContent)
			}
		})
	}
}

func TestCountTextBlocks(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"one line", 1},
		{"line one\nline two", 1},
		{"block one\n\nblock two", 2},
		{"a\n\n\nb\n\nc", 3},
		{"\n\n  \n", 0},
	}
	for _, tc := range cases {
		if got := countTextBlocks(tc.text); got != tc.want {
			t.Errorf("countTextBlocks(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}

func TestTextLayerFallbackRejectsGarbage(t *testing.T) {
	f := newTextLayerFallback([]byte("definitely not a pdf"))
	if got := f.pageText(1); got != "" {
		t.Errorf("pageText on garbage input = %q, want empty", got)
	}
}
