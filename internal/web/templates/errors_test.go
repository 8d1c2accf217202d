package templates

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestErrorAlert(t *testing.T) {
	var buf bytes.Buffer
	if err := ErrorAlert("Schema <b>not</b> found", "Check the id", "RES001").Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()

	if strings.Contains(out, "<b>") {
		t.Errorf("message was not escaped: %s", out)
	}
	for _, want := range []string{"Schema &lt;b&gt;not&lt;/b&gt; found", "Check the id", "Code: RES001"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %s", want, out)
		}
	}
}

func TestErrorAlert_NoAction(t *testing.T) {
	var buf bytes.Buffer
	if err := ErrorAlert("Oops", "", "ERR000").Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if strings.Contains(buf.String(), "alert-action") {
		t.Errorf("empty action rendered: %s", buf.String())
	}
}

func TestErrorAlert_Markup(t *testing.T) {
	var buf bytes.Buffer
	if err := ErrorAlert("Dataset not found", "Check the dataset id", "RES003").Render(context.Background(), &buf); err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := `<div class="alert alert-error" role="alert">` +
		`<p class="alert-message">Dataset not found</p>` +
		`<p class="alert-action">Check the dataset id</p>` +
		`<p class="alert-code">Code: RES003</p></div>`
	if got := buf.String(); got != want {
		t.Errorf("ErrorAlert =\n%s\nwant\n%s", got, want)
	}
}
