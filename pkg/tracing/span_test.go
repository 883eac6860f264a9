package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestStepsNestUnderRun(t *testing.T) {
	ctx, root := StartRun(context.Background(), "topics.train", "run-1")
	stepCtx, step := StartStep(ctx, "normalize")
	_, inner := StartStep(stepCtx, "insert")
	inner.End()
	step.SetAttr("documents", 2)
	step.End()
	root.End()

	if len(root.Children) != 1 || root.Children[0] != step {
		t.Fatalf("root children = %v", root.Children)
	}
	if len(step.Children) != 1 || inner.RunID != "run-1" {
		t.Errorf("inner span = %+v", inner)
	}
	if SpanFromContext(stepCtx) != step {
		t.Error("step span not in context")
	}

	var buf bytes.Buffer
	root.Log(slog.New(slog.NewTextHandler(&buf, nil)))
	out := buf.String()
	for _, want := range []string{"span=topics.train", "span=normalize", "span=insert", "documents=2", "depth=2"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestStepWithoutRun(t *testing.T) {
	_, span := StartStep(context.Background(), "orphan")
	span.End()
	if span.RunID != "" {
		t.Errorf("orphan span run id = %q", span.RunID)
	}
}
